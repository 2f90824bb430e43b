package recording

import (
	"bytes"
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-testdb/client"
)

// ErrRootMismatch is returned when a preparer is replayed against a root of
// the wrong role.
var ErrRootMismatch = errors.New("preparer root does not match replay target")

// ErrMalformedLog is returned when an invocation cannot be dispatched.
var ErrMalformedLog = errors.New("malformed invocation log")

// ReplayError reports the invocation that failed during replay. Index is -1
// when the connection for a connection-rooted preparer could not be opened.
type ReplayError struct {
	Index  int
	Role   Role
	Method Method
	Err    error
}

func (e *ReplayError) Error() string {
	return fmt.Sprintf("replay invocation %d (%s.%s): %v", e.Index, e.Role, e.Method, e.Err)
}

func (e *ReplayError) Unwrap() error {
	return e.Err
}

// Replay executes the log in order against ds. A preparer recorded with
// WrapConn opens one connection from ds, replays against it and closes it.
//
// Replay stops at the first failure; effects of earlier invocations are left
// in place.
func (p *Preparer) Replay(ctx context.Context, ds client.DataSource) error {
	switch p.root {
	case RoleDataSource:
		return p.replay(ctx, ds)
	case RoleConn:
		conn, err := ds.Connect(ctx)
		if err != nil {
			return &ReplayError{Index: -1, Role: RoleDataSource, Method: MethodConnect, Err: err}
		}
		err = p.replay(ctx, conn)
		return errors.CombineErrors(err, conn.Close())
	}
	return errors.Wrapf(ErrRootMismatch, "root %s", p.root)
}

// ReplayConn executes a connection-rooted log against a caller-owned
// connection, which stays open.
func (p *Preparer) ReplayConn(ctx context.Context, conn client.Conn) error {
	if p.root != RoleConn {
		return errors.Wrapf(ErrRootMismatch, "root %s replayed on a connection", p.root)
	}
	return p.replay(ctx, conn)
}

func (p *Preparer) replay(ctx context.Context, root any) error {
	r := replayer{arena: make([]any, len(p.log))}
	for i, inv := range p.log {
		if err := ctx.Err(); err != nil {
			return &ReplayError{Index: i, Role: inv.Role, Method: inv.Method, Err: err}
		}

		recv := root
		if inv.Receiver != RootRef {
			recv = r.arena[inv.Receiver]
		}

		out, err := r.invoke(ctx, recv, inv)
		if err != nil {
			return &ReplayError{Index: i, Role: inv.Role, Method: inv.Method, Err: err}
		}
		if inv.Produces {
			r.arena[i] = out
		}
	}
	return nil
}

// replayer holds the live objects produced so far, indexed by Ref.
type replayer struct {
	arena []any
}

func (r *replayer) invoke(ctx context.Context, recv any, inv Invocation) (any, error) {
	switch inv.Role {
	case RoleDataSource:
		ds, ok := recv.(client.DataSource)
		if !ok {
			return nil, receiverError(recv, inv)
		}
		if inv.Method == MethodConnect {
			return ds.Connect(ctx)
		}

	case RoleConn:
		conn, ok := recv.(client.Conn)
		if !ok {
			return nil, receiverError(recv, inv)
		}
		return r.invokeConn(ctx, conn, inv)

	case RoleStatement:
		stmt, ok := recv.(client.Statement)
		if !ok {
			return nil, receiverError(recv, inv)
		}
		switch inv.Method {
		case MethodExecuteUpdate:
			q, err := argString(inv, 0)
			if err != nil {
				return nil, err
			}
			_, err = stmt.ExecuteUpdate(ctx, q)
			return nil, err
		case MethodExecuteQuery:
			q, err := argString(inv, 0)
			if err != nil {
				return nil, err
			}
			return stmt.ExecuteQuery(ctx, q)
		case MethodClose:
			return nil, stmt.Close()
		}

	case RolePreparedStatement:
		ps, ok := recv.(client.PreparedStatement)
		if !ok {
			return nil, receiverError(recv, inv)
		}
		return r.invokePrepared(ctx, ps, inv)

	case RoleRows:
		rows, ok := recv.(client.Rows)
		if !ok {
			return nil, receiverError(recv, inv)
		}
		if inv.Method == MethodClose {
			return nil, rows.Close()
		}

	case RoleBlob:
		b, ok := recv.(client.Blob)
		if !ok {
			return nil, receiverError(recv, inv)
		}
		switch inv.Method {
		case MethodSetBytes:
			pos, err := argInt(inv, 0)
			if err != nil {
				return nil, err
			}
			data, err := argBytes(inv, 1, KindBytes)
			if err != nil {
				return nil, err
			}
			_, err = b.SetBytes(pos, data)
			return nil, err
		case MethodTruncate:
			n, err := argInt(inv, 0)
			if err != nil {
				return nil, err
			}
			return nil, b.Truncate(n)
		case MethodFree:
			return nil, b.Free()
		}
	}

	return nil, errors.Wrapf(ErrMalformedLog, "unknown operation %s.%s", inv.Role, inv.Method)
}

func (r *replayer) invokeConn(ctx context.Context, conn client.Conn, inv Invocation) (any, error) {
	switch inv.Method {
	case MethodSetAutoCommit:
		enabled, err := argBool(inv, 0)
		if err != nil {
			return nil, err
		}
		return nil, conn.SetAutoCommit(ctx, enabled)
	case MethodCreateStatement:
		return conn.CreateStatement(ctx)
	case MethodPrepareStatement:
		q, err := argString(inv, 0)
		if err != nil {
			return nil, err
		}
		return conn.PrepareStatement(ctx, q)
	case MethodCreateBlob:
		return conn.CreateBlob(ctx)
	case MethodSetSavepoint:
		name, err := argString(inv, 0)
		if err != nil {
			return nil, err
		}
		return conn.SetSavepoint(ctx, name)
	case MethodReleaseSavepoint, MethodRollbackTo:
		sp, err := r.argSavepoint(inv, 0)
		if err != nil {
			return nil, err
		}
		if inv.Method == MethodReleaseSavepoint {
			return nil, conn.ReleaseSavepoint(ctx, sp)
		}
		return nil, conn.RollbackTo(ctx, sp)
	case MethodCommit:
		return nil, conn.Commit(ctx)
	case MethodRollback:
		return nil, conn.Rollback(ctx)
	case MethodClose:
		return nil, conn.Close()
	}
	return nil, errors.Wrapf(ErrMalformedLog, "unknown operation %s.%s", inv.Role, inv.Method)
}

func (r *replayer) invokePrepared(ctx context.Context, ps client.PreparedStatement, inv Invocation) (any, error) {
	switch inv.Method {
	case MethodSetValue:
		index, err := argInt(inv, 0)
		if err != nil {
			return nil, err
		}
		value, err := argValue(inv, 1)
		if err != nil {
			return nil, err
		}
		return nil, ps.SetValue(int(index), value)
	case MethodSetBinaryStream:
		index, err := argInt(inv, 0)
		if err != nil {
			return nil, err
		}
		data, err := argBytes(inv, 1, KindStream)
		if err != nil {
			return nil, err
		}
		length, err := argInt(inv, 2)
		if err != nil {
			return nil, err
		}
		return nil, ps.SetBinaryStream(int(index), bytes.NewReader(data), length)
	case MethodSetBlob:
		index, err := argInt(inv, 0)
		if err != nil {
			return nil, err
		}
		b, err := r.argBlob(inv, 1)
		if err != nil {
			return nil, err
		}
		return nil, ps.SetBlob(int(index), b)
	case MethodClearParameters:
		return nil, ps.ClearParameters()
	case MethodExecuteUpdate:
		_, err := ps.ExecuteUpdate(ctx)
		return nil, err
	case MethodExecuteQuery:
		return ps.ExecuteQuery(ctx)
	case MethodClose:
		return nil, ps.Close()
	}
	return nil, errors.Wrapf(ErrMalformedLog, "unknown operation %s.%s", inv.Role, inv.Method)
}

func receiverError(recv any, inv Invocation) error {
	return errors.Wrapf(ErrMalformedLog, "receiver %s of %s is %T", inv.Receiver, inv.Method, recv)
}

func arg(inv Invocation, pos int, kind Kind) (Argument, error) {
	if pos >= len(inv.Args) {
		return Argument{}, errors.Wrapf(ErrMalformedLog, "%s has no argument %d", inv.Method, pos)
	}
	a := inv.Args[pos]
	if a.Kind != kind {
		return Argument{}, errors.Wrapf(ErrMalformedLog, "argument %d of %s is kind %d, want %d", pos, inv.Method, a.Kind, kind)
	}
	return a, nil
}

func argBool(inv Invocation, pos int) (bool, error) {
	a, err := arg(inv, pos, KindBool)
	return a.Bool, err
}

func argInt(inv Invocation, pos int) (int64, error) {
	a, err := arg(inv, pos, KindInt)
	return a.Int, err
}

func argString(inv Invocation, pos int) (string, error) {
	a, err := arg(inv, pos, KindString)
	return a.Str, err
}

// argBytes returns a private copy so that replays never share buffers.
func argBytes(inv Invocation, pos int, kind Kind) ([]byte, error) {
	a, err := arg(inv, pos, kind)
	if err != nil {
		return nil, err
	}
	return append([]byte{}, a.Bytes...), nil
}

// argValue turns a plain argument back into the value handed to SetValue.
func argValue(inv Invocation, pos int) (any, error) {
	if pos >= len(inv.Args) {
		return nil, errors.Wrapf(ErrMalformedLog, "%s has no argument %d", inv.Method, pos)
	}
	a := inv.Args[pos]
	switch a.Kind {
	case KindNil:
		return nil, nil
	case KindBool:
		return a.Bool, nil
	case KindInt:
		return a.Int, nil
	case KindUint:
		return a.Uint, nil
	case KindFloat:
		return a.Float, nil
	case KindString:
		return a.Str, nil
	case KindBytes:
		return append([]byte{}, a.Bytes...), nil
	case KindTime:
		return a.TimeValue(), nil
	}
	return nil, errors.Wrapf(ErrMalformedLog, "argument %d of %s is not a plain value", pos, inv.Method)
}

func (r *replayer) handle(inv Invocation, pos int) (any, error) {
	a, err := arg(inv, pos, KindHandle)
	if err != nil {
		return nil, err
	}
	if a.Handle < 0 || int(a.Handle) >= len(r.arena) || r.arena[a.Handle] == nil {
		return nil, errors.Wrapf(ErrMalformedLog, "argument %d of %s refers to missing handle %s", pos, inv.Method, a.Handle)
	}
	return r.arena[a.Handle], nil
}

func (r *replayer) argSavepoint(inv Invocation, pos int) (client.Savepoint, error) {
	h, err := r.handle(inv, pos)
	if err != nil {
		return nil, err
	}
	sp, ok := h.(client.Savepoint)
	if !ok {
		return nil, errors.Wrapf(ErrMalformedLog, "handle %s is %T, not a savepoint", inv.Args[pos].Handle, h)
	}
	return sp, nil
}

// argBlob resolves either a blob produced during replay or a fresh copy of a
// blob snapshot.
func (r *replayer) argBlob(inv Invocation, pos int) (client.Blob, error) {
	if pos < len(inv.Args) && inv.Args[pos].Kind == KindBlob {
		return client.NewBlob(inv.Args[pos].Bytes), nil
	}
	h, err := r.handle(inv, pos)
	if err != nil {
		return nil, err
	}
	b, ok := h.(client.Blob)
	if !ok {
		return nil, errors.Wrapf(ErrMalformedLog, "handle %s is %T, not a blob", inv.Args[pos].Handle, h)
	}
	return b, nil
}
