// Package sqlite is a database.Engine that keeps every instance in its own
// SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-testdb/database"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// Config configures the SQLite engine.
type Config struct {
	// Dir holds the database files. When empty the engine creates a
	// temporary directory and removes it on Close.
	Dir string

	// Options is appended to every DSN as its query string.
	Options string
}

// DefaultConfig enables foreign keys and waits on locks instead of failing.
func DefaultConfig() Config {
	return Config{
		Options: "_foreign_keys=on&_busy_timeout=5000",
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Options, validation.By(func(value any) error {
			if strings.HasPrefix(value.(string), "?") {
				return errors.New("must not start with '?'")
			}
			return nil
		})),
	)
}

// Engine creates file-backed SQLite databases.
type Engine struct {
	cfg     Config
	dir     string
	ownsDir bool
	dialect schema.Dialect
}

var _ database.TemplateEngine = (*Engine)(nil)

// New returns an engine writing to cfg.Dir.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{cfg: cfg, dir: cfg.Dir, dialect: sqlitedialect.New()}
	if e.dir == "" {
		dir, err := os.MkdirTemp("", "testdb-sqlite-")
		if err != nil {
			return nil, errors.Wrap(err, "create sqlite directory")
		}
		e.dir, e.ownsDir = dir, true
	} else if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create sqlite directory %s", e.dir)
	}
	return e, nil
}

// Dir returns the directory holding the database files.
func (e *Engine) Dir() string {
	return e.dir
}

// Dialect implements database.Engine.
func (e *Engine) Dialect() schema.Dialect {
	return e.dialect
}

// Create implements database.Engine.
func (e *Engine) Create(ctx context.Context) (*database.Instance, error) {
	name, path := e.newPath()
	return e.open(ctx, name, path)
}

// CreateFromTemplate copies tmpl with VACUUM INTO. The template stays open.
func (e *Engine) CreateFromTemplate(ctx context.Context, tmpl *database.Instance) (*database.Instance, error) {
	name, path := e.newPath()
	if _, err := tmpl.DB().ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return nil, errors.Wrapf(err, "copy template %s", tmpl.Name())
	}
	return e.open(ctx, name, path)
}

// Close removes the temporary directory if the engine created it.
func (e *Engine) Close() error {
	if !e.ownsDir {
		return nil
	}
	return errors.Wrap(os.RemoveAll(e.dir), "remove sqlite directory")
}

func (e *Engine) newPath() (string, string) {
	name := "db_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	return name, filepath.Join(e.dir, name+".sqlite")
}

func (e *Engine) dsn(path string) string {
	dsn := "file:" + path
	if e.cfg.Options != "" {
		dsn += "?" + e.cfg.Options
	}
	return dsn
}

func (e *Engine) open(ctx context.Context, name, path string) (*database.Instance, error) {
	db, err := sql.Open("sqlite3", e.dsn(path))
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = removeFiles(path)
		return nil, errors.Wrapf(err, "ping %s", name)
	}

	drop := func(context.Context) error {
		return removeFiles(path)
	}
	return database.NewInstance(name, db, e.dialect, drop), nil
}

// removeFiles deletes the database file and its journals.
func removeFiles(path string) error {
	var err error
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if rmErr := os.Remove(p); rmErr != nil && !os.IsNotExist(rmErr) {
			err = errors.CombineErrors(err, rmErr)
		}
	}
	return err
}
