// Package provider hands out prepared databases to tests.
//
// # Overview
//
// A Provider turns a preparer.DatabasePreparer into a fresh database on which
// the preparer has run. Every call returns a new database owned by the
// caller, who releases it with Handle.Close.
//
// Three providers stack on top of each other:
//
//   - Direct creates an empty database on a database.Engine and runs the
//     preparer on it for every request.
//   - Templating runs each preparer once into a template database and serves
//     requests with copies of it.
//   - Prefetching keeps a few databases per preparer ready ahead of demand,
//     drawing them from any other Provider on background workers.
//
// # Usage
//
//	engine, _ := sqlite.New(sqlite.DefaultConfig())
//	templates, _ := provider.NewTemplating(engine, provider.DefaultTemplateConfig())
//	p, _ := provider.NewPrefetching(templates, provider.DefaultConfig())
//	defer p.Close()
//
//	h, err := p.CreateDatabase(ctx, recorded)
//	if err != nil {
//		return err
//	}
//	defer h.Close(ctx)
//
// The pkg/di container builds this stack from a single Config.
//
// # Prefetching
//
// Buffers are keyed by preparer identity, so equal preparers share one buffer
// and distinct preparers never do. A request takes the oldest buffered
// database or, when the buffer is empty, calls the underlying provider
// directly with the caller's context. Either way the buffer is then topped up
// to TargetSize by scheduling background tasks; the count includes databases
// still being prepared, so a buffer never holds more than TargetSize.
//
// The task queue is bounded. A task that does not fit is not scheduled and
// the next request for the same preparer tries again. Background failures are
// logged and counted in Stats; they never reach callers.
//
// # Errors
//
// Failures to create or prepare a database are marked with ErrProvisioning:
//
//	if errors.Is(err, provider.ErrProvisioning) { ... }
//
// All providers return ErrClosed once closed.
package provider
