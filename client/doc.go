// Package client defines the database client API that recording sessions
// capture and preparers replay.
//
// The API is deliberately narrower than database/sql and shaped around the
// objects a setup script touches: a DataSource hands out connections, a Conn
// creates statements, prepared statements, blobs and savepoints, and
// statements produce result cursors. Each of these is an interface so that a
// recording variant can stand in for a live implementation.
//
// # Implementations
//
//   - sqlclient: an adapter over *sql.DB (and *bun.DB)
//   - recording: recording variants that forward to a live implementation
//   - testsupport.FakeDataSource: an in-order call log for tests
//
// NewBlob provides an in-memory Blob for adapters that lack a native
// large-object type.
package client
