package provider

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-testdb/database"
	"github.com/goliatone/go-testdb/internal/cacheinfra"
	"github.com/goliatone/go-testdb/preparer"
	"github.com/puzpuzpuz/xsync/v3"
)

// TemplateConfig sizes the memo of prepared templates.
type TemplateConfig struct {
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration
}

// DefaultTemplateConfig keeps templates for the lifetime of a test run.
func DefaultTemplateConfig() TemplateConfig {
	cfg := cacheinfra.DefaultConfig()
	return TemplateConfig{
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
	}
}

// Validate checks whether the configuration values are valid.
func (c TemplateConfig) Validate() error {
	return c.toInternal().Validate()
}

func (c TemplateConfig) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
	}
}

// Templating prepares one template database per preparer identity and
// serves every request with a copy of it. Concurrent first requests for the
// same identity share one template build.
type Templating struct {
	engine database.TemplateEngine
	memo   *cacheinfra.Memo[*database.Instance]

	// templates holds every template built, including ones the memo has
	// since evicted, so that Close can drop them all.
	templates *xsync.MapOf[string, *database.Instance]
	closed    atomic.Bool
}

var _ Provider = (*Templating)(nil)

// NewTemplating returns a provider copying templates on engine.
func NewTemplating(engine database.TemplateEngine, cfg TemplateConfig) (*Templating, error) {
	memo, err := cacheinfra.NewMemo[*database.Instance](cfg.toInternal())
	if err != nil {
		return nil, errors.Wrap(err, "template memo")
	}
	return &Templating{
		engine:    engine,
		memo:      memo,
		templates: xsync.NewMapOf[string, *database.Instance](),
	}, nil
}

// CreateDatabase implements Provider.
func (t *Templating) CreateDatabase(ctx context.Context, p preparer.DatabasePreparer) (*Handle, error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}

	tmpl, err := t.template(ctx, p)
	if err != nil {
		return nil, err
	}

	inst, err := t.engine.CreateFromTemplate(ctx, tmpl)
	if err != nil {
		return nil, provisioningError(err, "copy template %s", tmpl.Name())
	}
	return NewHandle(inst, inst.Drop), nil
}

func (t *Templating) template(ctx context.Context, p preparer.DatabasePreparer) (*database.Instance, error) {
	return t.memo.GetOrFetch(ctx, p.Identity(), func(ctx context.Context) (*database.Instance, error) {
		inst, err := prepareInstance(ctx, t.engine, p)
		if err != nil {
			return nil, err
		}
		t.templates.Store(inst.Name(), inst)
		return inst, nil
	})
}

// Templates returns the number of templates built so far.
func (t *Templating) Templates() int {
	return t.templates.Size()
}

// Close drops every template. Databases already handed out are not affected.
func (t *Templating) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	var err error
	t.templates.Range(func(name string, inst *database.Instance) bool {
		err = errors.CombineErrors(err, inst.Drop(context.Background()))
		t.templates.Delete(name)
		return true
	})
	return err
}
