package sqlclient

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-testdb/client"
	"github.com/lib/pq"
	"github.com/uptrace/bun"
)

// ErrNoTransaction is returned by savepoint operations while auto-commit is on.
var ErrNoTransaction = errors.New("savepoints require auto-commit to be disabled")

// ErrClosed is returned by operations on a closed connection or statement.
var ErrClosed = errors.New("sqlclient: use of closed handle")

var _ client.DataSource = (*DataSource)(nil)

// DataSource adapts a *sql.DB to client.DataSource. Every Connect pins a
// dedicated *sql.Conn from the pool.
type DataSource struct {
	db *sql.DB
}

// New wraps db.
func New(db *sql.DB) *DataSource {
	return &DataSource{db: db}
}

// FromBun wraps the *sql.DB underneath a bun database.
func FromBun(db *bun.DB) *DataSource {
	return New(db.DB)
}

// DB returns the wrapped pool.
func (d *DataSource) DB() *sql.DB {
	return d.db
}

// Connect implements client.DataSource.
func (d *DataSource) Connect(ctx context.Context) (client.Conn, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "acquire connection")
	}
	return &sqlConn{conn: conn, autoCommit: true}, nil
}

// execer is satisfied by both *sql.Conn and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type sqlConn struct {
	conn       *sql.Conn
	tx         *sql.Tx
	autoCommit bool
	closed     bool
	spSeq      int
}

func (c *sqlConn) target() execer {
	if c.tx != nil {
		return c.tx
	}
	return c.conn
}

func (c *sqlConn) begin(ctx context.Context) error {
	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	c.tx = tx
	return nil
}

func (c *sqlConn) SetAutoCommit(ctx context.Context, enabled bool) error {
	if c.closed {
		return ErrClosed
	}
	if enabled == c.autoCommit {
		return nil
	}
	c.autoCommit = enabled
	if enabled {
		// Re-enabling auto-commit commits the open transaction.
		if c.tx == nil {
			return nil
		}
		tx := c.tx
		c.tx = nil
		return tx.Commit()
	}
	return c.begin(ctx)
}

func (c *sqlConn) CreateStatement(ctx context.Context) (client.Statement, error) {
	if c.closed {
		return nil, ErrClosed
	}
	return &sqlStatement{conn: c}, nil
}

func (c *sqlConn) PrepareStatement(ctx context.Context, query string) (client.PreparedStatement, error) {
	if c.closed {
		return nil, ErrClosed
	}
	stmt, err := c.conn.PrepareContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(err, "prepare %q", query)
	}
	return &sqlPrepared{conn: c, stmt: stmt, query: query}, nil
}

func (c *sqlConn) CreateBlob(ctx context.Context) (client.Blob, error) {
	if c.closed {
		return nil, ErrClosed
	}
	return client.NewBlob(nil), nil
}

func (c *sqlConn) SetSavepoint(ctx context.Context, name string) (client.Savepoint, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if c.tx == nil {
		return nil, ErrNoTransaction
	}
	if name == "" {
		c.spSeq++
		name = fmt.Sprintf("sp_%d", c.spSeq)
	}
	if _, err := c.tx.ExecContext(ctx, "SAVEPOINT "+pq.QuoteIdentifier(name)); err != nil {
		return nil, errors.Wrapf(err, "savepoint %s", name)
	}
	return savepoint(name), nil
}

func (c *sqlConn) ReleaseSavepoint(ctx context.Context, sp client.Savepoint) error {
	if c.tx == nil {
		return ErrNoTransaction
	}
	_, err := c.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+pq.QuoteIdentifier(sp.Name()))
	return errors.Wrapf(err, "release savepoint %s", sp.Name())
}

func (c *sqlConn) RollbackTo(ctx context.Context, sp client.Savepoint) error {
	if c.tx == nil {
		return ErrNoTransaction
	}
	_, err := c.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+pq.QuoteIdentifier(sp.Name()))
	return errors.Wrapf(err, "rollback to savepoint %s", sp.Name())
}

func (c *sqlConn) Commit(ctx context.Context) error {
	return c.finish(ctx, (*sql.Tx).Commit)
}

func (c *sqlConn) Rollback(ctx context.Context) error {
	return c.finish(ctx, (*sql.Tx).Rollback)
}

// finish ends the open transaction and, while auto-commit stays off, opens
// the next one.
func (c *sqlConn) finish(ctx context.Context, end func(*sql.Tx) error) error {
	if c.closed {
		return ErrClosed
	}
	if c.tx == nil {
		return nil
	}
	tx := c.tx
	c.tx = nil
	if err := end(tx); err != nil {
		return err
	}
	if !c.autoCommit {
		return c.begin(ctx)
	}
	return nil
}

func (c *sqlConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.tx != nil {
		_ = c.tx.Rollback()
		c.tx = nil
	}
	return c.conn.Close()
}

type savepoint string

func (s savepoint) Name() string { return string(s) }

type sqlStatement struct {
	conn   *sqlConn
	closed bool
}

func (s *sqlStatement) ExecuteUpdate(ctx context.Context, query string) (int64, error) {
	if s.closed || s.conn.closed {
		return 0, ErrClosed
	}
	res, err := s.conn.target().ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

func (s *sqlStatement) ExecuteQuery(ctx context.Context, query string) (client.Rows, error) {
	if s.closed || s.conn.closed {
		return nil, ErrClosed
	}
	rows, err := s.conn.target().QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *sqlStatement) Close() error {
	s.closed = true
	return nil
}

type sqlPrepared struct {
	conn   *sqlConn
	stmt   *sql.Stmt
	query  string
	params []any
	closed bool
}

func (p *sqlPrepared) set(index int, value any) error {
	if p.closed {
		return ErrClosed
	}
	if index < 1 {
		return errors.Newf("parameter index %d out of range", index)
	}
	for len(p.params) < index {
		p.params = append(p.params, nil)
	}
	p.params[index-1] = value
	return nil
}

func (p *sqlPrepared) SetValue(index int, value any) error {
	return p.set(index, value)
}

// SetBinaryStream reads at most length bytes (all of r when length is
// negative). The buffer grows with the data actually read.
func (p *sqlPrepared) SetBinaryStream(index int, r io.Reader, length int64) error {
	if r == nil {
		return errors.Newf("nil stream for parameter %d", index)
	}
	if length < 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return errors.Wrapf(err, "read binary stream for parameter %d", index)
		}
		return p.set(index, data)
	}

	var buf bytes.Buffer
	n, err := io.CopyN(&buf, r, length)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.Wrapf(io.ErrUnexpectedEOF, "stream ended after %d of %d bytes", n, length)
		}
		return errors.Wrapf(err, "read binary stream for parameter %d", index)
	}
	return p.set(index, buf.Bytes())
}

func (p *sqlPrepared) SetBlob(index int, b client.Blob) error {
	data, err := client.ReadAll(b)
	if err != nil {
		return errors.Wrapf(err, "read blob for parameter %d", index)
	}
	return p.set(index, data)
}

func (p *sqlPrepared) ClearParameters() error {
	p.params = nil
	return nil
}

// bound returns the statement bound to the open transaction, if any.
func (p *sqlPrepared) bound(ctx context.Context) *sql.Stmt {
	if p.conn.tx != nil {
		return p.conn.tx.StmtContext(ctx, p.stmt)
	}
	return p.stmt
}

func (p *sqlPrepared) ExecuteUpdate(ctx context.Context) (int64, error) {
	if p.closed || p.conn.closed {
		return 0, ErrClosed
	}
	res, err := p.bound(ctx).ExecContext(ctx, p.params...)
	if err != nil {
		return 0, err
	}
	return rowsAffected(res), nil
}

func (p *sqlPrepared) ExecuteQuery(ctx context.Context) (client.Rows, error) {
	if p.closed || p.conn.closed {
		return nil, ErrClosed
	}
	rows, err := p.bound(ctx).QueryContext(ctx, p.params...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (p *sqlPrepared) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return p.stmt.Close()
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
