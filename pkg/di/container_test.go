package di

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-testdb/database"
	"github.com/goliatone/go-testdb/database/sqlite"
	"github.com/goliatone/go-testdb/pkg/testsupport"
	"github.com/goliatone/go-testdb/preparer"
	"github.com/goliatone/go-testdb/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var schema = preparer.NewScript(
	"create table users (id integer primary key, name text)",
	"insert into users (name) values ('alice')",
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Prefetch.Logger = &testsupport.Logger{}
	return cfg
}

func newSQLiteEngine(t *testing.T) *sqlite.Engine {
	t.Helper()
	cfg := sqlite.DefaultConfig()
	cfg.Dir = t.TempDir()
	e, err := sqlite.New(cfg)
	require.NoError(t, err)
	return e
}

func TestNewContainerWithDefaults(t *testing.T) {
	container, err := NewContainerWithDefaults()
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.Provider())
	assert.IsType(t, &provider.Templating{}, container.Underlying())
	assert.Equal(t, provider.DefaultConfig().TargetSize, container.Config().Prefetch.TargetSize)
}

func TestNewContainer_Direct(t *testing.T) {
	cfg := testConfig()
	cfg.UseTemplates = false

	container, err := NewContainer(newSQLiteEngine(t), cfg)
	require.NoError(t, err)
	defer container.Close()

	assert.IsType(t, &provider.Direct{}, container.Underlying())
}

func TestNewContainer_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "prefetch target size", mutate: func(c *Config) { c.Prefetch.TargetSize = 0 }},
		{name: "template capacity", mutate: func(c *Config) { c.Templates.Capacity = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			_, err := NewContainer(newSQLiteEngine(t), cfg)
			assert.Error(t, err)
		})
	}
}

// plainEngine hides the template support of the engine it wraps.
type plainEngine struct {
	database.Engine
}

func TestNewContainer_TemplatesNeedTemplateEngine(t *testing.T) {
	_, err := NewContainer(plainEngine{newSQLiteEngine(t)}, testConfig())
	assert.Error(t, err)

	cfg := testConfig()
	cfg.UseTemplates = false
	container, err := NewContainer(plainEngine{newSQLiteEngine(t)}, cfg)
	require.NoError(t, err)
	assert.NoError(t, container.Close())
}

func TestContainer_CreateDatabase(t *testing.T) {
	ctx := context.Background()
	engine := newSQLiteEngine(t)
	container, err := NewContainer(engine, testConfig())
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		h, err := container.CreateDatabase(ctx, schema)
		require.NoError(t, err)

		var name string
		require.NoError(t, h.DB().QueryRow("select name from users").Scan(&name))
		assert.Equal(t, "alice", name)
		require.NoError(t, h.Close(ctx))
	}

	require.Eventually(t, func() bool {
		buffered, inFlight := container.Provider().EntryState(schema)
		return buffered == 3 && inFlight == 0
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, container.Close())
}

func BenchmarkContainer_CreateDatabase(b *testing.B) {
	for _, useTemplates := range []bool{false, true} {
		name := "direct"
		if useTemplates {
			name = "templates"
		}
		b.Run(name, func(b *testing.B) {
			cfg := testConfig()
			cfg.UseTemplates = useTemplates
			container, err := NewSQLiteContainer(cfg)
			require.NoError(b, err)
			defer container.Close()

			ctx := context.Background()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				h, err := container.CreateDatabase(ctx, schema)
				if err != nil {
					b.Fatal(err)
				}
				_ = h.Close(ctx)
			}
		})
	}
}
