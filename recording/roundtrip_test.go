package recording_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-testdb/client"
	"github.com/goliatone/go-testdb/client/sqlclient"
	"github.com/goliatone/go-testdb/pkg/testsupport"
	"github.com/goliatone/go-testdb/recording"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordEveryOperation issues every logged method with every argument kind.
func recordEveryOperation(t *testing.T, ds client.DataSource) *recording.Preparer {
	t.Helper()
	ctx := context.Background()
	rec := recording.Wrap(ds)

	conn, err := rec.Connect(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.SetAutoCommit(ctx, false))

	sp, err := conn.SetSavepoint(ctx, "start")
	require.NoError(t, err)

	stmt, err := conn.CreateStatement(ctx)
	require.NoError(t, err)
	_, err = stmt.ExecuteUpdate(ctx, "create table")
	require.NoError(t, err)
	cursor, err := stmt.ExecuteQuery(ctx, "select data")
	require.NoError(t, err)
	require.NoError(t, cursor.Close())
	require.NoError(t, stmt.Close())

	lob, err := conn.CreateBlob(ctx)
	require.NoError(t, err)
	_, err = lob.SetBytes(1, []byte("abcdef"))
	require.NoError(t, err)
	require.NoError(t, lob.Truncate(4))

	ps, err := conn.PrepareStatement(ctx, "insert data")
	require.NoError(t, err)
	values := []any{
		nil,
		true,
		int32(-3),
		uint16(7),
		2.5,
		"text",
		[]byte{1, 2, 3},
		time.Date(2020, 1, 2, 3, 4, 5, 6, time.FixedZone("CET", 3600)),
		time.Date(2021, 6, 7, 8, 9, 10, 0, time.UTC),
	}
	for i, v := range values {
		require.NoError(t, ps.SetValue(i+1, v))
	}
	require.NoError(t, ps.SetBinaryStream(10, strings.NewReader("stream"), 6))
	require.NoError(t, ps.SetBinaryStream(11, strings.NewReader("to eof"), -1))
	require.NoError(t, ps.SetBlob(12, lob))
	require.NoError(t, ps.SetBlob(13, client.NewBlob([]byte("foreign"))))
	_, err = ps.ExecuteUpdate(ctx)
	require.NoError(t, err)
	require.NoError(t, ps.ClearParameters())
	result, err := ps.ExecuteQuery(ctx)
	require.NoError(t, err)
	require.NoError(t, result.Close())
	require.NoError(t, ps.Close())
	require.NoError(t, lob.Free())

	require.NoError(t, conn.RollbackTo(ctx, sp))
	require.NoError(t, conn.ReleaseSavepoint(ctx, sp))
	require.NoError(t, conn.Rollback(ctx))
	require.NoError(t, conn.Commit(ctx))
	require.NoError(t, conn.Close())
	return rec.Preparer()
}

func TestRecordEveryOperation_CoversMethodsAndKinds(t *testing.T) {
	p := recordEveryOperation(t, testsupport.NewFakeDataSource())

	methods := map[recording.Method]bool{}
	kinds := map[recording.Kind]bool{}
	for _, inv := range p.Invocations() {
		methods[inv.Method] = true
		for _, a := range inv.Args {
			kinds[a.Kind] = true
		}
	}

	for _, m := range []recording.Method{
		recording.MethodConnect, recording.MethodSetAutoCommit, recording.MethodCreateStatement,
		recording.MethodPrepareStatement, recording.MethodCreateBlob, recording.MethodSetSavepoint,
		recording.MethodReleaseSavepoint, recording.MethodRollbackTo, recording.MethodCommit,
		recording.MethodRollback, recording.MethodClose, recording.MethodExecuteUpdate,
		recording.MethodExecuteQuery, recording.MethodSetValue, recording.MethodSetBinaryStream,
		recording.MethodSetBlob, recording.MethodClearParameters, recording.MethodSetBytes,
		recording.MethodTruncate, recording.MethodFree,
	} {
		assert.True(t, methods[m], "method %s not recorded", m)
	}
	for _, k := range []recording.Kind{
		recording.KindNil, recording.KindBool, recording.KindInt, recording.KindUint,
		recording.KindFloat, recording.KindString, recording.KindBytes, recording.KindTime,
		recording.KindHandle, recording.KindStream, recording.KindBlob,
	} {
		assert.True(t, kinds[k], "argument kind %d not recorded", k)
	}
}

func TestReplay_EveryOperationMatchesLiveCalls(t *testing.T) {
	live := testsupport.NewFakeDataSource()
	p := recordEveryOperation(t, live)

	data, err := p.MarshalBinary()
	require.NoError(t, err)
	decoded, err := recording.Decode(data)
	require.NoError(t, err)
	require.True(t, p.Equal(decoded))

	tests := []struct {
		name     string
		preparer *recording.Preparer
	}{
		{name: "extracted", preparer: p},
		{name: "decoded", preparer: decoded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := testsupport.NewFakeDataSource()
			require.NoError(t, tt.preparer.Replay(context.Background(), target))

			assert.Equal(t, live.Calls(), target.Calls())
			assert.Equal(t, live.Bound(), target.Bound())
		})
	}
}

func TestReplay_PreservesTimeZone(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2020, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600))

	recorded := testsupport.OpenSQLite(t)
	rec := recording.Wrap(sqlclient.New(recorded))
	conn, err := rec.Connect(ctx)
	require.NoError(t, err)
	stmt, err := conn.CreateStatement(ctx)
	require.NoError(t, err)
	_, err = stmt.ExecuteUpdate(ctx, "create table events (at text)")
	require.NoError(t, err)
	ps, err := conn.PrepareStatement(ctx, "insert into events (at) values (?)")
	require.NoError(t, err)
	require.NoError(t, ps.SetValue(1, at))
	_, err = ps.ExecuteUpdate(ctx)
	require.NoError(t, err)
	require.NoError(t, ps.Close())
	require.NoError(t, stmt.Close())
	require.NoError(t, conn.Close())

	replayed := testsupport.OpenSQLite(t)
	require.NoError(t, rec.Preparer().Replay(ctx, sqlclient.New(replayed)))

	var want, got string
	require.NoError(t, recorded.QueryRowContext(ctx, "select at from events").Scan(&want))
	require.NoError(t, replayed.QueryRowContext(ctx, "select at from events").Scan(&got))
	assert.Equal(t, want, got)
	assert.Contains(t, got, "03:04:05+01:00")
}

func TestPreparer_TimeEqualityIncludesZone(t *testing.T) {
	instant := time.Date(2020, 1, 2, 2, 4, 5, 0, time.UTC)
	cet := time.FixedZone("CET", 3600)

	base, err := recordInsert(t, instant.In(cet))
	require.NoError(t, err)

	tests := []struct {
		name  string
		value time.Time
		equal bool
	}{
		{name: "same zone", value: time.Date(2020, 1, 2, 3, 4, 5, 0, time.FixedZone("CET", 3600)), equal: true},
		{name: "same instant in UTC", value: instant, equal: false},
		{name: "same offset other name", value: instant.In(time.FixedZone("WAT", 3600)), equal: false},
		{name: "other instant", value: instant.Add(time.Nanosecond).In(cet), equal: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other, err := recordInsert(t, tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.equal, base.Equal(other))
			assert.Equal(t, tt.equal, base.Identity() == other.Identity())
		})
	}
}

func TestArgument_TimeValue(t *testing.T) {
	ctx := context.Background()
	at := time.Date(1600, 3, 4, 5, 6, 7, 8, time.FixedZone("", -5*3600))

	p, err := recordInsert(t, at)
	require.NoError(t, err)

	var arg recording.Argument
	for _, inv := range p.Invocations() {
		if inv.Method == recording.MethodSetValue {
			arg = inv.Args[1]
		}
	}
	require.Equal(t, recording.KindTime, arg.Kind)

	got := arg.TimeValue()
	assert.True(t, at.Equal(got))
	assert.Equal(t, at.Format(time.RFC3339Nano), got.Format(time.RFC3339Nano))

	target := testsupport.NewFakeDataSource()
	require.NoError(t, p.Replay(ctx, target))
	assert.Contains(t, target.Calls(), "pstmt1.SetValue(1, "+at.String()+")")
}

func TestRecording_ByteValueIsCopiedBeforeForwarding(t *testing.T) {
	ctx := context.Background()
	live := testsupport.NewFakeDataSource()
	rec := recording.Wrap(live)

	conn, err := rec.Connect(ctx)
	require.NoError(t, err)
	ps, err := conn.PrepareStatement(ctx, "insert")
	require.NoError(t, err)

	value := []byte{1, 2, 3}
	require.NoError(t, ps.SetValue(1, value))
	value[0] = 9
	_, err = ps.ExecuteUpdate(ctx)
	require.NoError(t, err)

	target := testsupport.NewFakeDataSource()
	require.NoError(t, rec.Preparer().Replay(ctx, target))

	assert.Contains(t, live.Calls(), "pstmt1.SetValue(1, [1 2 3])")
	assert.Equal(t, live.Calls(), target.Calls())
}

func TestUnwrap_BypassesRecording(t *testing.T) {
	ctx := context.Background()
	live := testsupport.NewFakeDataSource()
	rec := recording.Wrap(live)
	assert.Same(t, live, rec.Unwrap())

	conn, err := rec.Connect(ctx)
	require.NoError(t, err)
	stmt, err := conn.CreateStatement(ctx)
	require.NoError(t, err)

	inner, ok := conn.(client.Unwrapper).Unwrap().(client.Conn)
	require.True(t, ok)
	require.NoError(t, inner.Commit(ctx))

	innerStmt, ok := stmt.(client.Unwrapper).Unwrap().(client.Statement)
	require.True(t, ok)
	_, err = innerStmt.ExecuteUpdate(ctx, "not recorded")
	require.NoError(t, err)

	assert.Equal(t, 2, rec.Preparer().Len())
	assert.Contains(t, live.Calls(), "conn1.Commit()")

	target := testsupport.NewFakeDataSource()
	require.NoError(t, rec.Preparer().Replay(ctx, target))
	assert.Equal(t, []string{"ds.Connect()", "conn1.CreateStatement()"}, target.Calls())
}
