package testsupport

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goliatone/go-testdb/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// capturingTB records Errorf calls instead of failing the enclosing test.
type capturingTB struct {
	testing.TB
	errors []string
}

func (c *capturingTB) Helper() {}

func (c *capturingTB) Errorf(format string, args ...any) {
	c.errors = append(c.errors, format)
}

func TestAssertInOrder(t *testing.T) {
	calls := []string{"a()", "x()", "b()", "c()"}

	tb := &capturingTB{TB: t}
	AssertInOrder(tb, calls, "a()", "b()", "c()")
	assert.Empty(t, tb.errors)

	tb = &capturingTB{TB: t}
	AssertInOrder(tb, calls, "b()", "a()")
	assert.Len(t, tb.errors, 1)
}

func TestCompareWithGolden_CreatesMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "golden", "out.golden")

	CompareWithGolden(t, path, []byte("content"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))

	tb := &capturingTB{TB: t}
	CompareWithGolden(tb, path, []byte("other"))
	assert.Len(t, tb.errors, 1)
}

func TestGoldenPath(t *testing.T) {
	assert.Equal(t, filepath.Join("testdata", "golden", "x.golden"), GoldenPath("x.golden"))
}

func TestOpenSQLite(t *testing.T) {
	db := OpenSQLite(t)

	_, err := db.Exec("create table t (id integer primary key)")
	require.NoError(t, err)
}

func TestFakeDataSource_CallLog(t *testing.T) {
	ctx := context.Background()
	ds := NewFakeDataSource()

	conn, err := ds.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.SetAutoCommit(ctx, false))

	stmt, err := conn.CreateStatement(ctx)
	require.NoError(t, err)
	_, err = stmt.ExecuteUpdate(ctx, "create table")
	require.NoError(t, err)

	sp, err := conn.SetSavepoint(ctx, "")
	require.NoError(t, err)
	require.NoError(t, conn.ReleaseSavepoint(ctx, sp))

	assert.Equal(t, []string{
		"ds.Connect()",
		"conn1.SetAutoCommit(false)",
		"conn1.CreateStatement()",
		`stmt1.ExecuteUpdate("create table")`,
		`conn1.SetSavepoint("")`,
		"conn1.ReleaseSavepoint(sp1)",
	}, ds.Calls())
	assert.Equal(t, []string{`stmt1.ExecuteUpdate("create table")`}, ds.CallsOn("stmt1"))
}

func TestFakeDataSource_FailNext(t *testing.T) {
	ctx := context.Background()
	ds := NewFakeDataSource()
	boom := errors.New("boom")
	ds.FailNext("Commit", boom)

	conn, err := ds.Connect(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, conn.Commit(ctx), boom)
	assert.NoError(t, conn.Commit(ctx))
}

func TestFakeDataSource_BindsStreamsAndBlobs(t *testing.T) {
	ctx := context.Background()
	ds := NewFakeDataSource()

	conn, err := ds.Connect(ctx)
	require.NoError(t, err)
	ps, err := conn.PrepareStatement(ctx, "insert")
	require.NoError(t, err)

	require.NoError(t, ps.SetBinaryStream(1, strings.NewReader("abcd"), 4))
	require.NoError(t, ps.SetBlob(2, client.NewBlob([]byte("xy"))))

	assert.Equal(t, [][]byte{[]byte("abcd"), []byte("xy")}, ds.Bound())
}
