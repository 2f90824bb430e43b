// Package postgres is a database.Engine that creates databases on a
// PostgreSQL server.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-testdb/database"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/schema"
)

var namePrefixPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Config holds the server coordinates and credentials of a role allowed to
// create databases.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string

	// Database is the maintenance database the engine connects to for
	// CREATE and DROP DATABASE.
	Database string

	SSLMode string

	// NamePrefix starts the name of every created database.
	NamePrefix string
}

// DefaultConfig matches a local development server.
func DefaultConfig() Config {
	return Config{
		Host:       "localhost",
		Port:       5432,
		User:       "postgres",
		Database:   "postgres",
		SSLMode:    "disable",
		NamePrefix: "testdb_",
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Host, validation.Required),
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.User, validation.Required),
		validation.Field(&c.Database, validation.Required),
		validation.Field(&c.SSLMode, validation.In("disable", "allow", "prefer", "require", "verify-ca", "verify-full")),
		validation.Field(&c.NamePrefix, validation.Required, validation.Match(namePrefixPattern)),
	)
}

// DSN returns a key/value connection string for dbname.
func (c Config) DSN(dbname string) string {
	parts := []string{
		"host=" + quoteValue(c.Host),
		fmt.Sprintf("port=%d", c.Port),
		"user=" + quoteValue(c.User),
		"dbname=" + quoteValue(dbname),
	}
	if c.Password != "" {
		parts = append(parts, "password="+quoteValue(c.Password))
	}
	if c.SSLMode != "" {
		parts = append(parts, "sslmode="+quoteValue(c.SSLMode))
	}
	return strings.Join(parts, " ")
}

// quoteValue quotes a connection string value as libpq expects.
func quoteValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Engine creates databases through an administrative connection.
type Engine struct {
	cfg     Config
	admin   *sql.DB
	dialect schema.Dialect
}

var _ database.TemplateEngine = (*Engine)(nil)

// New connects to cfg.Database. The connection is established lazily.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	admin, err := openDB(cfg.DSN(cfg.Database))
	if err != nil {
		return nil, errors.Wrap(err, "open admin connection")
	}
	return &Engine{cfg: cfg, admin: admin, dialect: pgdialect.New()}, nil
}

func openDB(dsn string) (*sql.DB, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, err
	}
	return sql.OpenDB(connector), nil
}

// Dialect implements database.Engine.
func (e *Engine) Dialect() schema.Dialect {
	return e.dialect
}

// Create implements database.Engine.
func (e *Engine) Create(ctx context.Context) (*database.Instance, error) {
	name := e.newName()
	if _, err := e.admin.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return nil, errors.Wrapf(err, "create database %s", name)
	}
	return e.open(ctx, name)
}

// CreateFromTemplate closes tmpl's pool, since PostgreSQL refuses to copy a
// database with open connections, and creates a copy of it.
func (e *Engine) CreateFromTemplate(ctx context.Context, tmpl *database.Instance) (*database.Instance, error) {
	if err := tmpl.Close(); err != nil {
		return nil, errors.Wrapf(err, "close template %s", tmpl.Name())
	}

	name := e.newName()
	q := fmt.Sprintf("CREATE DATABASE %s TEMPLATE %s", pq.QuoteIdentifier(name), pq.QuoteIdentifier(tmpl.Name()))
	if _, err := e.admin.ExecContext(ctx, q); err != nil {
		return nil, errors.Wrapf(err, "create database %s from template %s", name, tmpl.Name())
	}
	return e.open(ctx, name)
}

// Close closes the administrative connection.
func (e *Engine) Close() error {
	return e.admin.Close()
}

func (e *Engine) newName() string {
	return e.cfg.NamePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (e *Engine) open(ctx context.Context, name string) (*database.Instance, error) {
	drop := func(ctx context.Context) error {
		_, err := e.admin.ExecContext(ctx, "DROP DATABASE IF EXISTS "+pq.QuoteIdentifier(name))
		return err
	}

	db, err := openDB(e.cfg.DSN(name))
	if err == nil {
		err = db.PingContext(ctx)
		if err != nil {
			_ = db.Close()
		}
	}
	if err != nil {
		return nil, errors.CombineErrors(errors.Wrapf(err, "connect to %s", name), drop(ctx))
	}
	return database.NewInstance(name, db, e.dialect, drop), nil
}
