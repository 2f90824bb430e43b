package preparer

import (
	"context"
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/goliatone/go-testdb/client"
	hex "github.com/tmthrgd/go-hex"
)

// DatabasePreparer describes the setup steps that turn an empty database into
// the state a test expects.
//
// Identity must be stable across process runs and equal for preparers that
// produce the same setup sequence; providers use it as their cache key.
type DatabasePreparer interface {
	Prepare(ctx context.Context, ds client.DataSource) error
	Identity() string
}

// Func adapts a function into a DatabasePreparer with a caller-chosen
// identity.
type Func struct {
	ID string
	Fn func(ctx context.Context, ds client.DataSource) error
}

// Prepare implements DatabasePreparer.
func (f Func) Prepare(ctx context.Context, ds client.DataSource) error {
	return f.Fn(ctx, ds)
}

// Identity implements DatabasePreparer.
func (f Func) Identity() string {
	return "func:" + f.ID
}

// Fingerprint returns a short, stable hex digest of an identity, suitable for
// logs and database names. Unlike the identity it may collide.
func Fingerprint(identity string) string {
	var sum [8]byte
	binary.BigEndian.PutUint64(sum[:], xxhash.Sum64String(identity))
	return hex.EncodeToString(sum[:])
}
