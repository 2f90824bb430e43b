package client

import (
	"context"
	"io"
)

// DataSource is the entry point of the client API. Every session starts by
// asking a DataSource for a connection.
type DataSource interface {
	Connect(ctx context.Context) (Conn, error)
}

// Conn is a live database session.
type Conn interface {
	// SetAutoCommit toggles auto-commit mode. Turning it off starts a
	// transaction that Commit and Rollback end.
	SetAutoCommit(ctx context.Context, enabled bool) error
	CreateStatement(ctx context.Context) (Statement, error)
	PrepareStatement(ctx context.Context, query string) (PreparedStatement, error)
	CreateBlob(ctx context.Context) (Blob, error)
	// SetSavepoint creates a savepoint in the current transaction. An empty
	// name lets the implementation pick one.
	SetSavepoint(ctx context.Context, name string) (Savepoint, error)
	ReleaseSavepoint(ctx context.Context, sp Savepoint) error
	RollbackTo(ctx context.Context, sp Savepoint) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close() error
}

// Statement executes ad-hoc SQL.
type Statement interface {
	ExecuteUpdate(ctx context.Context, query string) (int64, error)
	ExecuteQuery(ctx context.Context, query string) (Rows, error)
	Close() error
}

// PreparedStatement executes a single parameterized query. Parameter indexes
// are 1-based.
type PreparedStatement interface {
	SetValue(index int, value any) error
	// SetBinaryStream binds the content of r. A negative length reads r to EOF.
	SetBinaryStream(index int, r io.Reader, length int64) error
	SetBlob(index int, b Blob) error
	ClearParameters() error
	ExecuteUpdate(ctx context.Context) (int64, error)
	ExecuteQuery(ctx context.Context) (Rows, error)
	Close() error
}

// Rows is a forward-only result cursor.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// Blob is a mutable large-object handle. Positions are 1-based.
type Blob interface {
	Length() (int64, error)
	Bytes(pos int64, length int) ([]byte, error)
	SetBytes(pos int64, b []byte) (int, error)
	Truncate(length int64) error
	Free() error
}

// Savepoint identifies a point inside a transaction.
type Savepoint interface {
	Name() string
}

// Unwrapper is implemented by wrappers that hand out the object they wrap.
type Unwrapper interface {
	Unwrap() any
}
