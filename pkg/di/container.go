package di

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-testdb/database"
	"github.com/goliatone/go-testdb/database/sqlite"
	"github.com/goliatone/go-testdb/preparer"
	"github.com/goliatone/go-testdb/provider"
)

// Config selects and sizes the providers a Container builds.
type Config struct {
	// Prefetch configures the prefetching provider handed to callers.
	Prefetch provider.Config

	// Templates configures the template memo used when UseTemplates is set.
	Templates provider.TemplateConfig

	// UseTemplates prepares each preparer once and copies the result. It
	// requires an engine implementing database.TemplateEngine.
	UseTemplates bool
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Prefetch:     provider.DefaultConfig(),
		Templates:    provider.DefaultTemplateConfig(),
		UseTemplates: true,
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if err := c.Prefetch.Validate(); err != nil {
		return errors.Wrap(err, "prefetch")
	}
	if c.UseTemplates {
		if err := c.Templates.Validate(); err != nil {
			return errors.Wrap(err, "templates")
		}
	}
	return nil
}

// Container wires a database engine to the provider stack: a direct or
// templating provider underneath a prefetching provider. It owns every
// component, the engine included, and closes them in reverse order.
type Container struct {
	engine      database.Engine
	underlying  provider.Provider
	templating  *provider.Templating
	prefetching *provider.Prefetching
	config      Config
}

// NewContainer builds the provider stack on engine.
func NewContainer(engine database.Engine, config Config) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Container{engine: engine, config: config}
	if config.UseTemplates {
		te, ok := engine.(database.TemplateEngine)
		if !ok {
			return nil, errors.Newf("engine %T cannot copy templates", engine)
		}
		templating, err := provider.NewTemplating(te, config.Templates)
		if err != nil {
			return nil, err
		}
		c.templating = templating
		c.underlying = templating
	} else {
		c.underlying = provider.NewDirect(engine)
	}

	prefetching, err := provider.NewPrefetching(c.underlying, config.Prefetch)
	if err != nil {
		if c.templating != nil {
			_ = c.templating.Close()
		}
		return nil, err
	}
	c.prefetching = prefetching
	return c, nil
}

// NewSQLiteContainer builds a container on a SQLite engine writing to a
// temporary directory.
func NewSQLiteContainer(config Config) (*Container, error) {
	engine, err := sqlite.New(sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	c, err := NewContainer(engine, config)
	if err != nil {
		return nil, errors.CombineErrors(err, engine.Close())
	}
	return c, nil
}

// NewContainerWithDefaults is NewSQLiteContainer with DefaultConfig.
func NewContainerWithDefaults() (*Container, error) {
	return NewSQLiteContainer(DefaultConfig())
}

// Provider returns the prefetching provider.
func (c *Container) Provider() *provider.Prefetching {
	return c.prefetching
}

// Underlying returns the provider the prefetching provider draws from.
func (c *Container) Underlying() provider.Provider {
	return c.underlying
}

// Engine returns the database engine.
func (c *Container) Engine() database.Engine {
	return c.engine
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() Config {
	return c.config
}

// CreateDatabase is a shortcut for Provider().CreateDatabase.
func (c *Container) CreateDatabase(ctx context.Context, p preparer.DatabasePreparer) (*provider.Handle, error) {
	return c.prefetching.CreateDatabase(ctx, p)
}

// Close releases buffered databases, drops templates and closes the engine.
// Handles already returned must be closed before the engine goes away.
func (c *Container) Close() error {
	err := c.prefetching.Close()
	if c.templating != nil {
		err = errors.CombineErrors(err, c.templating.Close())
	}
	return errors.CombineErrors(err, c.engine.Close())
}
