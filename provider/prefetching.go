package provider

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-testdb/internal/workerpool"
	"github.com/goliatone/go-testdb/preparer"
	"github.com/jmalloc/twelf/src/twelf"
	"github.com/puzpuzpuz/xsync/v3"
)

// Prefetching keeps prepared databases ready ahead of demand. For every
// preparer identity it buffers up to Config.TargetSize databases created by
// an underlying provider on a shared pool of background workers.
type Prefetching struct {
	underlying Provider
	cfg        Config
	logger     twelf.Logger

	pool    *workerpool.Pool
	entries *xsync.MapOf[string, *entry]

	// ctx is passed to background provisioning and cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	hits        atomic.Int64
	misses      atomic.Int64
	provisioned atomic.Int64
	failed      atomic.Int64
}

var _ Provider = (*Prefetching)(nil)

// entry is the buffer of one preparer identity. The mutex guards both
// fields; len(buffer)+inFlight never exceeds the target size.
type entry struct {
	fingerprint string

	mu       sync.Mutex
	buffer   []*Handle
	inFlight int
}

// Stats are cumulative counters of a prefetching provider.
type Stats struct {
	// Hits counts requests served from a buffer.
	Hits int64
	// Misses counts requests served by a synchronous call.
	Misses int64
	// Provisioned counts databases created in the background.
	Provisioned int64
	// Failed counts background attempts that returned an error.
	Failed int64
}

// NewPrefetching starts the worker pool. Close it to stop the workers and
// release buffered databases.
func NewPrefetching(underlying Provider, cfg Config) (*Prefetching, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = &twelf.StandardLogger{}
	}

	pool, err := workerpool.New(cfg.Concurrency, cfg.QueueSize)
	if err != nil {
		return nil, errors.Wrap(err, "prefetch workers")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Prefetching{
		underlying: underlying,
		cfg:        cfg,
		logger:     cfg.Logger,
		pool:       pool,
		entries:    xsync.NewMapOf[string, *entry](),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// CreateDatabase implements Provider. A buffered database is returned when
// one is ready; otherwise the underlying provider is called with ctx and its
// error is returned. Either way the buffer is topped up in the background.
func (p *Prefetching) CreateDatabase(ctx context.Context, prep preparer.DatabasePreparer) (*Handle, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}

	e := p.entry(prep)
	h, buffered, inFlight := e.pop()
	p.replenish(e, prep)

	if h != nil {
		p.hits.Add(1)
		logHit(p.logger, e.fingerprint, h, buffered)
		return h, nil
	}

	p.misses.Add(1)
	logMiss(p.logger, e.fingerprint, inFlight)

	h, err := p.underlying.CreateDatabase(ctx, prep)
	if err != nil {
		if errors.Is(err, ErrProvisioning) {
			return nil, err
		}
		return nil, provisioningError(err, "create database for %s", e.fingerprint)
	}
	return h, nil
}

func (p *Prefetching) entry(prep preparer.DatabasePreparer) *entry {
	id := prep.Identity()
	e, _ := p.entries.LoadOrCompute(id, func() *entry {
		return &entry{fingerprint: preparer.Fingerprint(id)}
	})
	return e
}

// pop removes the oldest buffered handle, if any, and reports the state left
// behind.
func (e *entry) pop() (*Handle, int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.buffer) == 0 {
		return nil, 0, e.inFlight
	}
	h := e.buffer[0]
	e.buffer[0] = nil
	e.buffer = e.buffer[1:]
	return h, len(e.buffer), e.inFlight
}

// replenish schedules one background task per missing database. Only
// accepted tasks are counted as in flight.
func (p *Prefetching) replenish(e *entry, prep preparer.DatabasePreparer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	missing := p.cfg.TargetSize - (len(e.buffer) + e.inFlight)
	scheduled := 0
	for ; scheduled < missing; scheduled++ {
		if !p.pool.TrySubmit(func() { p.fill(e, prep) }) {
			if !p.closed.Load() {
				logQueueFull(p.logger, e.fingerprint)
			}
			break
		}
		e.inFlight++
	}
	logScheduled(p.logger, e.fingerprint, scheduled, missing)
}

// fill runs on a worker: it provisions one database and buffers it.
func (p *Prefetching) fill(e *entry, prep preparer.DatabasePreparer) {
	h, err := p.underlying.CreateDatabase(p.ctx, prep)

	e.mu.Lock()
	e.inFlight--
	if err != nil {
		p.failed.Add(1)
		e.mu.Unlock()
		logPrefetchFailed(p.logger, e.fingerprint, err)
		return
	}
	p.provisioned.Add(1)

	if !p.closed.Load() && len(e.buffer)+e.inFlight < p.cfg.TargetSize {
		e.buffer = append(e.buffer, h)
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	logDiscarded(p.logger, e.fingerprint, h, h.Close(context.Background()))
}

// Stats returns a snapshot of the counters.
func (p *Prefetching) Stats() Stats {
	return Stats{
		Hits:        p.hits.Load(),
		Misses:      p.misses.Load(),
		Provisioned: p.provisioned.Load(),
		Failed:      p.failed.Load(),
	}
}

// EntryState reports how many databases are buffered and being prepared for
// prep.
func (p *Prefetching) EntryState(prep preparer.DatabasePreparer) (buffered, inFlight int) {
	e, ok := p.entries.Load(prep.Identity())
	if !ok {
		return 0, 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buffer), e.inFlight
}

// Close stops the workers, waits for running tasks and releases every
// buffered database. Handles already returned stay valid. The underlying
// provider is not closed.
func (p *Prefetching) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.cancel()
	err := p.pool.Close()

	p.entries.Range(func(_ string, e *entry) bool {
		e.mu.Lock()
		buffer := e.buffer
		e.buffer = nil
		e.mu.Unlock()

		for _, h := range buffer {
			err = errors.CombineErrors(err, h.Close(context.Background()))
		}
		return true
	})
	return err
}
