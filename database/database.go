// Package database creates and drops the throwaway databases handed to tests.
//
// An Engine owns a database server (or, for SQLite, a directory) and creates
// uniquely named instances on it. Engines that can copy an existing database
// cheaply also implement TemplateEngine.
package database

import (
	"context"
	"database/sql"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// Engine creates empty database instances.
type Engine interface {
	// Create returns a new, empty, uniquely named instance.
	Create(ctx context.Context) (*Instance, error)

	// Dialect is the bun dialect of the instances this engine creates.
	Dialect() schema.Dialect

	// Close releases the engine's own resources. Instances already created
	// are not dropped.
	Close() error
}

// TemplateEngine is an Engine that can create an instance as a copy of
// another one.
type TemplateEngine interface {
	Engine

	// CreateFromTemplate returns a new instance holding the same schema and
	// data as tmpl. Engines may close tmpl's connection pool to make the copy.
	CreateFromTemplate(ctx context.Context, tmpl *Instance) (*Instance, error)
}

// DropFunc removes the physical database behind an instance. It runs after
// the instance's pool has been closed.
type DropFunc func(ctx context.Context) error

// Instance is one database created by an Engine.
type Instance struct {
	name    string
	db      *sql.DB
	bunDB   *bun.DB
	dialect schema.Dialect
	drop    DropFunc

	closeOnce sync.Once
	closeErr  error
	dropOnce  sync.Once
	dropErr   error
}

// NewInstance wraps an open pool. drop may be nil when there is nothing to
// remove beyond the pool itself.
func NewInstance(name string, db *sql.DB, dialect schema.Dialect, drop DropFunc) *Instance {
	return &Instance{
		name:    name,
		db:      db,
		bunDB:   bun.NewDB(db, dialect),
		dialect: dialect,
		drop:    drop,
	}
}

// Name returns the database name, unique within its engine.
func (i *Instance) Name() string {
	return i.name
}

// DB returns the connection pool of the instance.
func (i *Instance) DB() *sql.DB {
	return i.db
}

// Bun returns a bun database over DB.
func (i *Instance) Bun() *bun.DB {
	return i.bunDB
}

// Dialect returns the bun dialect of the instance.
func (i *Instance) Dialect() schema.Dialect {
	return i.dialect
}

// Close closes the connection pool. The database itself stays in place.
func (i *Instance) Close() error {
	i.closeOnce.Do(func() {
		i.closeErr = i.db.Close()
	})
	return i.closeErr
}

// Drop closes the pool and removes the database. Only the first call has an
// effect.
func (i *Instance) Drop(ctx context.Context) error {
	i.dropOnce.Do(func() {
		err := i.Close()
		if i.drop != nil {
			err = errors.CombineErrors(err, i.drop(ctx))
		}
		if err != nil {
			i.dropErr = errors.Wrapf(err, "drop database %s", i.name)
		}
	})
	return i.dropErr
}
