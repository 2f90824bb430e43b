package recording

import (
	"bytes"
	"context"
	"io"

	"github.com/goliatone/go-testdb/client"
)

var (
	_ client.DataSource        = (*DataSource)(nil)
	_ client.Conn              = (*Conn)(nil)
	_ client.Statement         = (*statement)(nil)
	_ client.PreparedStatement = (*preparedStatement)(nil)
	_ client.Rows              = (*rows)(nil)
	_ client.Blob              = (*blob)(nil)
	_ client.Savepoint         = (*savepoint)(nil)

	_ client.Unwrapper = (*DataSource)(nil)
	_ client.Unwrapper = (*Conn)(nil)
)

// DataSource is the recording variant of client.DataSource.
type DataSource struct {
	tracked
	live client.DataSource
}

// Connect implements client.DataSource.
func (d *DataSource) Connect(ctx context.Context) (client.Conn, error) {
	live, err := d.live.Connect(ctx)
	if err != nil {
		return nil, err
	}
	ref := d.record(MethodConnect, true)
	return &Conn{tracked: d.child(ref, RoleConn), live: live}, nil
}

// Conn is the recording variant of client.Conn.
type Conn struct {
	tracked
	live client.Conn
}

// SetAutoCommit implements client.Conn.
func (c *Conn) SetAutoCommit(ctx context.Context, enabled bool) error {
	if err := c.live.SetAutoCommit(ctx, enabled); err != nil {
		return err
	}
	c.record(MethodSetAutoCommit, false, boolArg(enabled))
	return nil
}

// CreateStatement implements client.Conn.
func (c *Conn) CreateStatement(ctx context.Context) (client.Statement, error) {
	live, err := c.live.CreateStatement(ctx)
	if err != nil {
		return nil, err
	}
	ref := c.record(MethodCreateStatement, true)
	return &statement{tracked: c.child(ref, RoleStatement), live: live}, nil
}

// PrepareStatement implements client.Conn.
func (c *Conn) PrepareStatement(ctx context.Context, query string) (client.PreparedStatement, error) {
	live, err := c.live.PrepareStatement(ctx, query)
	if err != nil {
		return nil, err
	}
	ref := c.record(MethodPrepareStatement, true, stringArg(query))
	return &preparedStatement{tracked: c.child(ref, RolePreparedStatement), live: live}, nil
}

// CreateBlob implements client.Conn.
func (c *Conn) CreateBlob(ctx context.Context) (client.Blob, error) {
	live, err := c.live.CreateBlob(ctx)
	if err != nil {
		return nil, err
	}
	ref := c.record(MethodCreateBlob, true)
	return &blob{tracked: c.child(ref, RoleBlob), live: live}, nil
}

// SetSavepoint implements client.Conn.
func (c *Conn) SetSavepoint(ctx context.Context, name string) (client.Savepoint, error) {
	live, err := c.live.SetSavepoint(ctx, name)
	if err != nil {
		return nil, err
	}
	ref := c.record(MethodSetSavepoint, true, stringArg(name))
	return &savepoint{tracked: c.child(ref, RoleSavepoint), live: live}, nil
}

// ReleaseSavepoint implements client.Conn.
func (c *Conn) ReleaseSavepoint(ctx context.Context, sp client.Savepoint) error {
	return c.withSavepoint(MethodReleaseSavepoint, sp, func(live client.Savepoint) error {
		return c.live.ReleaseSavepoint(ctx, live)
	})
}

// RollbackTo implements client.Conn.
func (c *Conn) RollbackTo(ctx context.Context, sp client.Savepoint) error {
	return c.withSavepoint(MethodRollbackTo, sp, func(live client.Savepoint) error {
		return c.live.RollbackTo(ctx, live)
	})
}

// withSavepoint resolves a savepoint argument to its live counterpart. Only
// savepoints created through this session can be replayed.
func (c *Conn) withSavepoint(method Method, sp client.Savepoint, call func(client.Savepoint) error) error {
	rsp, ok := sp.(*savepoint)
	if !ok || rsp.s != c.s {
		return &SnapshotError{Method: method, Position: 0, Err: ErrForeignHandle}
	}
	if err := call(rsp.live); err != nil {
		return err
	}
	c.record(method, false, handleArg(rsp.ref))
	return nil
}

// Commit implements client.Conn.
func (c *Conn) Commit(ctx context.Context) error {
	if err := c.live.Commit(ctx); err != nil {
		return err
	}
	c.record(MethodCommit, false)
	return nil
}

// Rollback implements client.Conn.
func (c *Conn) Rollback(ctx context.Context) error {
	if err := c.live.Rollback(ctx); err != nil {
		return err
	}
	c.record(MethodRollback, false)
	return nil
}

// Close implements client.Conn.
func (c *Conn) Close() error {
	if err := c.live.Close(); err != nil {
		return err
	}
	c.record(MethodClose, false)
	return nil
}

type statement struct {
	tracked
	live client.Statement
}

// ExecuteUpdate implements client.Statement.
func (s *statement) ExecuteUpdate(ctx context.Context, query string) (int64, error) {
	n, err := s.live.ExecuteUpdate(ctx, query)
	if err != nil {
		return n, err
	}
	s.record(MethodExecuteUpdate, false, stringArg(query))
	return n, nil
}

// ExecuteQuery implements client.Statement.
func (s *statement) ExecuteQuery(ctx context.Context, query string) (client.Rows, error) {
	live, err := s.live.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	ref := s.record(MethodExecuteQuery, true, stringArg(query))
	return &rows{tracked: s.child(ref, RoleRows), live: live}, nil
}

// Close implements client.Statement.
func (s *statement) Close() error {
	if err := s.live.Close(); err != nil {
		return err
	}
	s.record(MethodClose, false)
	return nil
}

type preparedStatement struct {
	tracked
	live client.PreparedStatement
}

// SetValue implements client.PreparedStatement. Byte values are forwarded as
// the captured copy so later changes by the caller reach neither side.
func (p *preparedStatement) SetValue(index int, value any) error {
	arg, err := snapshotValue(value)
	if err != nil {
		return &SnapshotError{Method: MethodSetValue, Position: 1, Err: err}
	}
	if arg.Kind == KindBytes {
		value = append([]byte(nil), arg.Bytes...)
	}
	if err := p.live.SetValue(index, value); err != nil {
		return err
	}
	p.record(MethodSetValue, false, intArg(int64(index)), arg)
	return nil
}

// SetBinaryStream consumes r before forwarding; the live statement receives
// a reader over the captured bytes.
func (p *preparedStatement) SetBinaryStream(index int, r io.Reader, length int64) error {
	data, err := snapshotStream(r, length)
	if err != nil {
		return &SnapshotError{Method: MethodSetBinaryStream, Position: 1, Err: err}
	}
	if err := p.live.SetBinaryStream(index, bytes.NewReader(data), length); err != nil {
		return err
	}
	p.record(MethodSetBinaryStream, false, intArg(int64(index)), bytesArg(KindStream, data), intArg(length))
	return nil
}

// SetBlob records blobs created through this session by reference and any
// other blob by content.
func (p *preparedStatement) SetBlob(index int, b client.Blob) error {
	if rb, ok := b.(*blob); ok && rb.s == p.s {
		if err := p.live.SetBlob(index, rb.live); err != nil {
			return err
		}
		p.record(MethodSetBlob, false, intArg(int64(index)), handleArg(rb.ref))
		return nil
	}

	data, err := snapshotBlob(b)
	if err != nil {
		return &SnapshotError{Method: MethodSetBlob, Position: 1, Err: err}
	}
	if err := p.live.SetBlob(index, b); err != nil {
		return err
	}
	p.record(MethodSetBlob, false, intArg(int64(index)), bytesArg(KindBlob, data))
	return nil
}

// ClearParameters implements client.PreparedStatement.
func (p *preparedStatement) ClearParameters() error {
	if err := p.live.ClearParameters(); err != nil {
		return err
	}
	p.record(MethodClearParameters, false)
	return nil
}

// ExecuteUpdate implements client.PreparedStatement.
func (p *preparedStatement) ExecuteUpdate(ctx context.Context) (int64, error) {
	n, err := p.live.ExecuteUpdate(ctx)
	if err != nil {
		return n, err
	}
	p.record(MethodExecuteUpdate, false)
	return n, nil
}

// ExecuteQuery implements client.PreparedStatement.
func (p *preparedStatement) ExecuteQuery(ctx context.Context) (client.Rows, error) {
	live, err := p.live.ExecuteQuery(ctx)
	if err != nil {
		return nil, err
	}
	ref := p.record(MethodExecuteQuery, true)
	return &rows{tracked: p.child(ref, RoleRows), live: live}, nil
}

// Close implements client.PreparedStatement.
func (p *preparedStatement) Close() error {
	if err := p.live.Close(); err != nil {
		return err
	}
	p.record(MethodClose, false)
	return nil
}

// rows forwards cursor reads without logging them. Only Close is part of the
// replayed sequence.
type rows struct {
	tracked
	live client.Rows
}

// Cursor reads implement client.Rows without being logged.
func (r *rows) Next() bool             { return r.live.Next() }
func (r *rows) Scan(dest ...any) error { return r.live.Scan(dest...) }
func (r *rows) Err() error             { return r.live.Err() }

// Close implements client.Rows.
func (r *rows) Close() error {
	if err := r.live.Close(); err != nil {
		return err
	}
	r.record(MethodClose, false)
	return nil
}

// blob logs mutations; reads are forwarded only.
type blob struct {
	tracked
	live client.Blob
}

// Length implements client.Blob.
func (b *blob) Length() (int64, error) { return b.live.Length() }

// Bytes implements client.Blob.
func (b *blob) Bytes(pos int64, length int) ([]byte, error) {
	return b.live.Bytes(pos, length)
}

// SetBytes implements client.Blob.
func (b *blob) SetBytes(pos int64, p []byte) (int, error) {
	data := append([]byte(nil), p...)
	n, err := b.live.SetBytes(pos, append([]byte(nil), data...))
	if err != nil {
		return n, err
	}
	b.record(MethodSetBytes, false, intArg(pos), bytesArg(KindBytes, data))
	return n, nil
}

// Truncate implements client.Blob.
func (b *blob) Truncate(length int64) error {
	if err := b.live.Truncate(length); err != nil {
		return err
	}
	b.record(MethodTruncate, false, intArg(length))
	return nil
}

// Free implements client.Blob.
func (b *blob) Free() error {
	if err := b.live.Free(); err != nil {
		return err
	}
	b.record(MethodFree, false)
	return nil
}

type savepoint struct {
	tracked
	live client.Savepoint
}

// Name implements client.Savepoint.
func (s *savepoint) Name() string { return s.live.Name() }

// Unwrap returns the live data source. Calls made on it are not recorded.
func (d *DataSource) Unwrap() any { return d.live }

// Unwrap returns the live connection. Calls made on it are not recorded.
func (c *Conn) Unwrap() any { return c.live }

func (s *statement) Unwrap() any         { return s.live }
func (p *preparedStatement) Unwrap() any { return p.live }
func (r *rows) Unwrap() any              { return r.live }
func (b *blob) Unwrap() any              { return b.live }
func (s *savepoint) Unwrap() any         { return s.live }
