package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Dir = t.TempDir()

	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{Options: "?_foreign_keys=on"}.Validate())
}

func TestEngine_CreateAndDrop(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	a, err := e.Create(ctx)
	require.NoError(t, err)
	b, err := e.Create(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, a.Name(), b.Name())

	_, err = a.DB().ExecContext(ctx, "create table t (id integer primary key)")
	require.NoError(t, err)

	var count int
	require.NoError(t, b.DB().QueryRowContext(ctx, "select count(*) from sqlite_master where name = 't'").Scan(&count))
	assert.Equal(t, 0, count, "instances are isolated")

	path := filepath.Join(e.Dir(), a.Name()+".sqlite")
	_, err = os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, a.Drop(ctx))
	require.NoError(t, a.Drop(ctx), "drop is idempotent")
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, b.Drop(ctx))
}

func TestEngine_ForeignKeysEnabled(t *testing.T) {
	ctx := context.Background()
	inst, err := newEngine(t).Create(ctx)
	require.NoError(t, err)
	defer inst.Drop(ctx)

	var enabled int
	require.NoError(t, inst.DB().QueryRowContext(ctx, "pragma foreign_keys").Scan(&enabled))
	assert.Equal(t, 1, enabled)
}

func TestEngine_CreateFromTemplate(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	tmpl, err := e.Create(ctx)
	require.NoError(t, err)
	defer tmpl.Drop(ctx)

	_, err = tmpl.DB().ExecContext(ctx, "create table users (id integer primary key, name text)")
	require.NoError(t, err)
	_, err = tmpl.DB().ExecContext(ctx, "insert into users (name) values ('alice')")
	require.NoError(t, err)

	clone, err := e.CreateFromTemplate(ctx, tmpl)
	require.NoError(t, err)
	defer clone.Drop(ctx)

	var name string
	require.NoError(t, clone.DB().QueryRowContext(ctx, "select name from users").Scan(&name))
	assert.Equal(t, "alice", name)

	_, err = clone.DB().ExecContext(ctx, "insert into users (name) values ('bob')")
	require.NoError(t, err)

	var count int
	require.NoError(t, tmpl.DB().QueryRowContext(ctx, "select count(*) from users").Scan(&count))
	assert.Equal(t, 1, count, "the template is unaffected by clone writes")
}

func TestEngine_TemporaryDirectory(t *testing.T) {
	e, err := New(DefaultConfig())
	require.NoError(t, err)

	dir := e.Dir()
	_, err = os.Stat(dir)
	require.NoError(t, err)

	require.NoError(t, e.Close())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestInstance_Bun(t *testing.T) {
	ctx := context.Background()
	inst, err := newEngine(t).Create(ctx)
	require.NoError(t, err)
	defer inst.Drop(ctx)

	var one int
	require.NoError(t, inst.Bun().NewSelect().ColumnExpr("1").Scan(ctx, &one))
	assert.Equal(t, 1, one)
	assert.Equal(t, "sqlite", inst.Dialect().Name().String())
}
