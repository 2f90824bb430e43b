package provider

import (
	"context"
	"database/sql"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-testdb/client"
	"github.com/goliatone/go-testdb/client/sqlclient"
	"github.com/goliatone/go-testdb/database"
	"github.com/goliatone/go-testdb/preparer"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// ErrProvisioning marks errors raised while creating or preparing a
// database. Test with errors.Is.
var ErrProvisioning = errors.New("database provisioning failed")

// ErrClosed is returned by providers after Close.
var ErrClosed = errors.New("provider is closed")

// Provider hands out prepared databases.
type Provider interface {
	// CreateDatabase returns a database on which p has been run. Every call
	// returns a distinct database; the caller owns it and releases it with
	// Handle.Close.
	CreateDatabase(ctx context.Context, p preparer.DatabasePreparer) (*Handle, error)
}

// Handle is a prepared database owned by one caller.
type Handle struct {
	id      string
	inst    *database.Instance
	release func(ctx context.Context) error

	once sync.Once
	err  error
}

// NewHandle wraps inst. release runs once, on the first Close.
func NewHandle(inst *database.Instance, release func(ctx context.Context) error) *Handle {
	return &Handle{id: uuid.NewString(), inst: inst, release: release}
}

// ID identifies the handle in logs.
func (h *Handle) ID() string {
	return h.id
}

// Name returns the database name.
func (h *Handle) Name() string {
	return h.inst.Name()
}

// DB returns the connection pool of the database.
func (h *Handle) DB() *sql.DB {
	return h.inst.DB()
}

// DataSource returns the database as a client.DataSource.
func (h *Handle) DataSource() client.DataSource {
	return sqlclient.New(h.inst.DB())
}

// Bun returns a bun database over DB.
func (h *Handle) Bun() *bun.DB {
	return h.inst.Bun()
}

// Dialect returns the bun dialect of the database.
func (h *Handle) Dialect() schema.Dialect {
	return h.inst.Dialect()
}

// Close releases the database. Only the first call has an effect.
func (h *Handle) Close(ctx context.Context) error {
	h.once.Do(func() {
		if h.release != nil {
			h.err = h.release(ctx)
		}
	})
	return h.err
}

func provisioningError(err error, format string, args ...any) error {
	return errors.Mark(errors.Wrapf(err, format, args...), ErrProvisioning)
}
