// Package recording captures calls made against the client API and replays
// them against other databases.
//
// # Overview
//
// A recording session wraps a live data source (or an open connection). The
// session hands out recording variants of every API object: each call is
// forwarded to the live object first, so the session behaves exactly like an
// ordinary one, and then appended to an ordered log. Objects returned by a
// call, such as the statement returned by CreateStatement, are wrapped in turn
// and remember which log entry produced them.
//
//	rec := recording.Wrap(sqlclient.New(db))
//
//	conn, _ := rec.Connect(ctx)
//	stmt, _ := conn.CreateStatement(ctx)
//	stmt.ExecuteUpdate(ctx, "create table users (id int primary key)")
//	stmt.Close()
//	conn.Close()
//
//	p := rec.Preparer()
//	err := p.Replay(ctx, sqlclient.New(otherDB))
//
// # The log
//
// The log is an arena of Invocation values. An invocation names its receiver
// by Ref, the index of the invocation that produced it, or RootRef for the
// wrapped object. Handles passed as arguments (a savepoint to release, a blob
// created by the same session) are recorded the same way, so the log holds no
// pointers and encodes to bytes with MarshalBinary.
//
// Only successful calls are logged. A failing live call returns its error
// unchanged and leaves no trace in the log.
//
// Cursor reads (Rows.Next, Scan, Err) and blob reads are forwarded but not
// logged; they carry output pointers and leave schema state untouched.
//
// # Argument snapshots
//
// Arguments are captured by content at call time:
//
//   - plain values are normalized (integers to int64, times to UTC, and so on)
//   - stream arguments are read in full and the live call receives a reader
//     over the captured bytes
//   - blobs created elsewhere are copied
//
// An argument that cannot be captured fails the call with a *SnapshotError
// before it reaches the live object.
//
// # Equality
//
// Two preparers are equal when their logs match element-wise. Identity
// returns the canonical encoding, so equal preparers share an identity across
// sessions and process runs regardless of which live objects were recorded.
package recording
