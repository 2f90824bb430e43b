package provider

import (
	"context"

	"github.com/goliatone/go-testdb/client/sqlclient"
	"github.com/goliatone/go-testdb/database"
	"github.com/goliatone/go-testdb/preparer"
)

// Direct creates a fresh database for every request and runs the preparer
// on it.
type Direct struct {
	engine database.Engine
}

var _ Provider = (*Direct)(nil)

// NewDirect returns a provider creating databases on engine.
func NewDirect(engine database.Engine) *Direct {
	return &Direct{engine: engine}
}

// CreateDatabase implements Provider. Closing the handle drops the database.
func (d *Direct) CreateDatabase(ctx context.Context, p preparer.DatabasePreparer) (*Handle, error) {
	inst, err := prepareInstance(ctx, d.engine, p)
	if err != nil {
		return nil, err
	}
	return NewHandle(inst, inst.Drop), nil
}

// prepareInstance creates an instance and runs p on it, dropping the
// instance when preparation fails.
func prepareInstance(ctx context.Context, engine database.Engine, p preparer.DatabasePreparer) (*database.Instance, error) {
	inst, err := engine.Create(ctx)
	if err != nil {
		return nil, provisioningError(err, "create database")
	}
	if err := p.Prepare(ctx, sqlclient.New(inst.DB())); err != nil {
		_ = inst.Drop(context.WithoutCancel(ctx))
		return nil, provisioningError(err, "prepare %s with %s", inst.Name(), preparer.Fingerprint(p.Identity()))
	}
	return inst, nil
}
