package cacheinfra

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/viccon/sturdyc"
)

// Config holds the configuration for the sturdyc backed memo.
type Config struct {
	// Capacity defines the maximum number of entries the memo can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of shards for concurrent access.
	// Must be greater than 0. Default: 16
	NumShards int

	// TTL is how long a memoized value stays valid.
	// Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the memo reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often expired entries are swept.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config sized for a test run: few entries that
// live for the whole process.
func DefaultConfig() Config {
	return Config{
		Capacity:           1024,
		NumShards:          16,
		TTL:                24 * time.Hour,
		EvictionPercentage: 10,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Capacity, validation.Required, validation.Min(1)),
		validation.Field(&c.NumShards, validation.Required, validation.Min(1)),
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Nanosecond)),
		validation.Field(&c.EvictionPercentage, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.EvictionInterval, validation.Min(time.Duration(0))),
	)
}

// ToSturdycOptions converts the optional settings to sturdyc options.
// Capacity, NumShards, TTL and EvictionPercentage go to sturdyc.New directly.
func (c Config) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// Memo stores one value per key and builds missing values at most once at a
// time: concurrent GetOrFetch calls for the same key share a single fetch.
type Memo[T any] struct {
	client *sturdyc.Client[T]
}

// NewMemo validates cfg and creates a sturdyc client with it.
func NewMemo[T any](cfg Config) (*Memo[T], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[T](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.ToSturdycOptions()...,
	)
	return &Memo[T]{client: client}, nil
}

// GetOrFetch returns the value stored under key, calling fetch when there is
// none. Errors from fetch are returned and not stored.
func (m *Memo[T]) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, error) {
	return m.client.GetOrFetch(ctx, key, fetch)
}

// Get returns the stored value without fetching.
func (m *Memo[T]) Get(key string) (T, bool) {
	return m.client.Get(key)
}

// Delete removes key so that the next GetOrFetch fetches again.
func (m *Memo[T]) Delete(key string) {
	m.client.Delete(key)
}

// Keys lists the stored keys.
func (m *Memo[T]) Keys() []string {
	return m.client.ScanKeys()
}

// Size returns the number of stored entries.
func (m *Memo[T]) Size() int {
	return m.client.Size()
}
