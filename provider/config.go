package provider

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jmalloc/twelf/src/twelf"
)

// Config configures the prefetching provider.
type Config struct {
	// TargetSize is how many prepared databases each preparer keeps ready,
	// counting those still being prepared. Default: 3
	TargetSize int

	// Concurrency is the number of background workers shared by all
	// preparers. Default: 3
	Concurrency int

	// QueueSize bounds the number of background tasks waiting for a worker.
	// Tasks that do not fit are dropped and retried on the next request.
	// Default: 64
	QueueSize int

	// Logger receives background failures and, in debug mode, buffer
	// activity. Nil means &twelf.StandardLogger{}.
	Logger twelf.Logger
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TargetSize:  3,
		Concurrency: 3,
		QueueSize:   64,
		Logger:      &twelf.StandardLogger{},
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.TargetSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.QueueSize, validation.Required, validation.Min(1)),
	)
}
