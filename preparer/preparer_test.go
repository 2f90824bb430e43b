package preparer_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-testdb/client"
	"github.com/goliatone/go-testdb/pkg/testsupport"
	"github.com/goliatone/go-testdb/preparer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	a := preparer.Fingerprint("script:a")

	assert.Len(t, a, 16)
	assert.Equal(t, a, preparer.Fingerprint("script:a"))
	assert.NotEqual(t, a, preparer.Fingerprint("script:b"))
}

func TestFunc(t *testing.T) {
	called := 0
	f := preparer.Func{ID: "seed", Fn: func(ctx context.Context, ds client.DataSource) error {
		called++
		return nil
	}}

	assert.Equal(t, "func:seed", f.Identity())
	require.NoError(t, f.Prepare(context.Background(), testsupport.NewFakeDataSource()))
	assert.Equal(t, 1, called)
}

func TestScript_Prepare(t *testing.T) {
	ds := testsupport.NewFakeDataSource()
	s := preparer.NewScript("create table users", "insert into users")

	require.NoError(t, s.Prepare(context.Background(), ds))

	assert.Equal(t, []string{
		"ds.Connect()",
		"conn1.CreateStatement()",
		`stmt1.ExecuteUpdate("create table users")`,
		`stmt1.ExecuteUpdate("insert into users")`,
		"stmt1.Close()",
		"conn1.Close()",
	}, ds.Calls())
}

func TestScript_PrepareFailureClosesResources(t *testing.T) {
	ds := testsupport.NewFakeDataSource()
	boom := errors.New("bad statement")
	ds.FailNext("ExecuteUpdate", boom)

	err := preparer.NewScript("create tabel", "insert").Prepare(context.Background(), ds)

	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "script statement 0")
	testsupport.AssertInOrder(t, ds.Calls(), "stmt1.Close()", "conn1.Close()")
	assert.NotContains(t, ds.Calls(), `stmt1.ExecuteUpdate("insert")`)
}

func TestScript_Identity(t *testing.T) {
	tests := []struct {
		name  string
		a, b  []string
		equal bool
	}{
		{name: "same statements", a: []string{"a", "b"}, b: []string{"a", "b"}, equal: true},
		{name: "different order", a: []string{"a", "b"}, b: []string{"b", "a"}},
		{name: "split boundary", a: []string{"ab", "c"}, b: []string{"a", "bc"}},
		{name: "empty", a: nil, b: []string{}, equal: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := preparer.NewScript(tt.a...), preparer.NewScript(tt.b...)
			assert.Equal(t, tt.equal, a.Identity() == b.Identity())
		})
	}
}

func TestScript_StatementsIsCopy(t *testing.T) {
	s := preparer.NewScript("a")
	got := s.Statements()
	got[0] = "b"

	assert.Equal(t, []string{"a"}, s.Statements())
}

func TestCompose(t *testing.T) {
	a := preparer.NewScript("a")
	b := preparer.NewScript("b")
	c := preparer.NewScript("c")

	flat := preparer.Compose(a, b, c)
	nested := preparer.Compose(a, preparer.Compose(b, c))

	assert.Equal(t, 3, nested.Len())
	assert.Equal(t, flat.Identity(), nested.Identity())
	assert.NotEqual(t, flat.Identity(), preparer.Compose(c, b, a).Identity())
	assert.Equal(t, 2, preparer.Compose(a, nil, b).Len())

	ds := testsupport.NewFakeDataSource()
	require.NoError(t, nested.Prepare(context.Background(), ds))
	testsupport.AssertInOrder(t, ds.Calls(),
		`stmt1.ExecuteUpdate("a")`,
		`stmt2.ExecuteUpdate("b")`,
		`stmt3.ExecuteUpdate("c")`,
	)
}

func TestCompose_StopsAtFirstFailure(t *testing.T) {
	ds := testsupport.NewFakeDataSource()
	boom := errors.New("boom")
	ds.FailNext("ExecuteUpdate", boom)

	err := preparer.Compose(preparer.NewScript("a"), preparer.NewScript("b")).Prepare(context.Background(), ds)

	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "composite step 0")
	assert.NotContains(t, ds.Calls(), `stmt2.ExecuteUpdate("b")`)
}
