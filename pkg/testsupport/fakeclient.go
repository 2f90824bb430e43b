package testsupport

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/goliatone/go-testdb/client"
)

// Call is one method invocation observed by a fake.
type Call struct {
	Target string
	Method string
	Args   []any
}

// String renders the call as target.Method(args), quoting strings.
func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = formatArg(a)
	}
	return fmt.Sprintf("%s.%s(%s)", c.Target, c.Method, strings.Join(args, ", "))
}

func formatArg(a any) string {
	switch v := a.(type) {
	case string:
		return strconv.Quote(v)
	case []byte:
		return fmt.Sprintf("%v", v)
	case named:
		return v.fakeName()
	case client.Savepoint:
		return v.Name()
	case client.Blob:
		data, err := client.ReadAll(v)
		if err != nil {
			return "blob(?)"
		}
		return fmt.Sprintf("blob%v", data)
	case nil:
		return "nil"
	}
	return fmt.Sprintf("%v", a)
}

type named interface {
	fakeName() string
}

// fakeState is shared by every object a FakeDataSource hands out, so the
// call log has a single total order.
type fakeState struct {
	mu       sync.Mutex
	calls    []Call
	seq      map[string]int
	failures map[string][]error
	bound    [][]byte
}

func (s *fakeState) nextName(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq[prefix]++
	return prefix + strconv.Itoa(s.seq[prefix])
}

// call logs the invocation and returns the failure queued for the method, if
// any.
func (s *fakeState) call(target, method string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{Target: target, Method: method, Args: args})
	if queued := s.failures[method]; len(queued) > 0 {
		s.failures[method] = queued[1:]
		return queued[0]
	}
	return nil
}

func (s *fakeState) bind(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bound = append(s.bound, append([]byte(nil), data...))
}

// FakeDataSource is an in-memory client.DataSource that records every call
// made on it and on the objects it returns. Objects are named by role and
// creation order: conn1, stmt1, pstmt1, rows1, blob1, sp1.
type FakeDataSource struct {
	state *fakeState
}

var _ client.DataSource = (*FakeDataSource)(nil)

// NewFakeDataSource returns an empty fake.
func NewFakeDataSource() *FakeDataSource {
	return &FakeDataSource{state: &fakeState{
		seq:      make(map[string]int),
		failures: make(map[string][]error),
	}}
}

// FailNext makes the next call to method (on any object) return err.
func (f *FakeDataSource) FailNext(method string, err error) {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()

	f.state.failures[method] = append(f.state.failures[method], err)
}

// Calls returns the call log rendered with Call.String.
func (f *FakeDataSource) Calls() []string {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()

	out := make([]string, len(f.state.calls))
	for i, c := range f.state.calls {
		out[i] = c.String()
	}
	return out
}

// CallsOn returns the rendered calls made on a single object.
func (f *FakeDataSource) CallsOn(target string) []string {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()

	var out []string
	for _, c := range f.state.calls {
		if c.Target == target {
			out = append(out, c.String())
		}
	}
	return out
}

// Bound returns the content of every stream and blob bound to a prepared
// statement, in binding order.
func (f *FakeDataSource) Bound() [][]byte {
	f.state.mu.Lock()
	defer f.state.mu.Unlock()

	out := make([][]byte, len(f.state.bound))
	copy(out, f.state.bound)
	return out
}

func (f *FakeDataSource) fakeName() string { return "ds" }

// Connect implements client.DataSource.
func (f *FakeDataSource) Connect(ctx context.Context) (client.Conn, error) {
	if err := f.state.call("ds", "Connect"); err != nil {
		return nil, err
	}
	return &fakeConn{state: f.state, name: f.state.nextName("conn")}, nil
}

type fakeConn struct {
	state *fakeState
	name  string
}

func (c *fakeConn) fakeName() string { return c.name }

func (c *fakeConn) SetAutoCommit(ctx context.Context, enabled bool) error {
	return c.state.call(c.name, "SetAutoCommit", enabled)
}

func (c *fakeConn) CreateStatement(ctx context.Context) (client.Statement, error) {
	if err := c.state.call(c.name, "CreateStatement"); err != nil {
		return nil, err
	}
	return &fakeStatement{state: c.state, name: c.state.nextName("stmt")}, nil
}

func (c *fakeConn) PrepareStatement(ctx context.Context, query string) (client.PreparedStatement, error) {
	if err := c.state.call(c.name, "PrepareStatement", query); err != nil {
		return nil, err
	}
	return &fakePrepared{state: c.state, name: c.state.nextName("pstmt")}, nil
}

func (c *fakeConn) CreateBlob(ctx context.Context) (client.Blob, error) {
	if err := c.state.call(c.name, "CreateBlob"); err != nil {
		return nil, err
	}
	return &fakeBlob{state: c.state, name: c.state.nextName("blob"), data: client.NewBlob(nil)}, nil
}

func (c *fakeConn) SetSavepoint(ctx context.Context, name string) (client.Savepoint, error) {
	if err := c.state.call(c.name, "SetSavepoint", name); err != nil {
		return nil, err
	}
	return fakeSavepoint(c.state.nextName("sp")), nil
}

func (c *fakeConn) ReleaseSavepoint(ctx context.Context, sp client.Savepoint) error {
	return c.state.call(c.name, "ReleaseSavepoint", sp)
}

func (c *fakeConn) RollbackTo(ctx context.Context, sp client.Savepoint) error {
	return c.state.call(c.name, "RollbackTo", sp)
}

func (c *fakeConn) Commit(ctx context.Context) error {
	return c.state.call(c.name, "Commit")
}

func (c *fakeConn) Rollback(ctx context.Context) error {
	return c.state.call(c.name, "Rollback")
}

func (c *fakeConn) Close() error {
	return c.state.call(c.name, "Close")
}

type fakeStatement struct {
	state *fakeState
	name  string
}

func (s *fakeStatement) ExecuteUpdate(ctx context.Context, query string) (int64, error) {
	if err := s.state.call(s.name, "ExecuteUpdate", query); err != nil {
		return 0, err
	}
	return 1, nil
}

func (s *fakeStatement) ExecuteQuery(ctx context.Context, query string) (client.Rows, error) {
	if err := s.state.call(s.name, "ExecuteQuery", query); err != nil {
		return nil, err
	}
	return &fakeRows{state: s.state, name: s.state.nextName("rows")}, nil
}

func (s *fakeStatement) Close() error {
	return s.state.call(s.name, "Close")
}

type fakePrepared struct {
	state *fakeState
	name  string
}

func (p *fakePrepared) SetValue(index int, value any) error {
	return p.state.call(p.name, "SetValue", index, value)
}

// SetBinaryStream reads the stream in full at bind time, the way a driver
// would, and keeps the content for Bound.
func (p *fakePrepared) SetBinaryStream(index int, r io.Reader, length int64) error {
	if length >= 0 {
		r = io.LimitReader(r, length)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if length >= 0 && int64(len(data)) < length {
		return io.ErrUnexpectedEOF
	}
	if err := p.state.call(p.name, "SetBinaryStream", index, data, length); err != nil {
		return err
	}
	p.state.bind(data)
	return nil
}

func (p *fakePrepared) SetBlob(index int, b client.Blob) error {
	data, err := client.ReadAll(b)
	if err != nil {
		return err
	}
	if err := p.state.call(p.name, "SetBlob", index, b); err != nil {
		return err
	}
	p.state.bind(data)
	return nil
}

func (p *fakePrepared) ClearParameters() error {
	return p.state.call(p.name, "ClearParameters")
}

func (p *fakePrepared) ExecuteUpdate(ctx context.Context) (int64, error) {
	if err := p.state.call(p.name, "ExecuteUpdate"); err != nil {
		return 0, err
	}
	return 1, nil
}

func (p *fakePrepared) ExecuteQuery(ctx context.Context) (client.Rows, error) {
	if err := p.state.call(p.name, "ExecuteQuery"); err != nil {
		return nil, err
	}
	return &fakeRows{state: p.state, name: p.state.nextName("rows")}, nil
}

func (p *fakePrepared) Close() error {
	return p.state.call(p.name, "Close")
}

// fakeRows is always empty.
type fakeRows struct {
	state *fakeState
	name  string
}

func (r *fakeRows) Next() bool {
	_ = r.state.call(r.name, "Next")
	return false
}

func (r *fakeRows) Scan(dest ...any) error {
	return r.state.call(r.name, "Scan")
}

func (r *fakeRows) Err() error {
	return r.state.call(r.name, "Err")
}

func (r *fakeRows) Close() error {
	return r.state.call(r.name, "Close")
}

type fakeBlob struct {
	state *fakeState
	name  string
	data  client.Blob
}

func (b *fakeBlob) fakeName() string { return b.name }

func (b *fakeBlob) Length() (int64, error) {
	if err := b.state.call(b.name, "Length"); err != nil {
		return 0, err
	}
	return b.data.Length()
}

func (b *fakeBlob) Bytes(pos int64, length int) ([]byte, error) {
	if err := b.state.call(b.name, "Bytes", pos, length); err != nil {
		return nil, err
	}
	return b.data.Bytes(pos, length)
}

func (b *fakeBlob) SetBytes(pos int64, p []byte) (int, error) {
	if err := b.state.call(b.name, "SetBytes", pos, append([]byte(nil), p...)); err != nil {
		return 0, err
	}
	return b.data.SetBytes(pos, p)
}

func (b *fakeBlob) Truncate(length int64) error {
	if err := b.state.call(b.name, "Truncate", length); err != nil {
		return err
	}
	return b.data.Truncate(length)
}

func (b *fakeBlob) Free() error {
	if err := b.state.call(b.name, "Free"); err != nil {
		return err
	}
	return b.data.Free()
}

type fakeSavepoint string

func (s fakeSavepoint) Name() string { return string(s) }
