package preparer

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-testdb/client"
	"github.com/vmihailenco/msgpack/v5"
)

// Composite runs preparers one after another.
type Composite struct {
	preparers []DatabasePreparer
	identity  string
}

// Compose combines preparers in order. Nested composites are flattened so
// that Compose(a, Compose(b, c)) and Compose(a, b, c) share an identity.
func Compose(preparers ...DatabasePreparer) *Composite {
	var flat []DatabasePreparer
	for _, p := range preparers {
		if c, ok := p.(*Composite); ok {
			if c != nil {
				flat = append(flat, c.preparers...)
			}
			continue
		}
		if p != nil {
			flat = append(flat, p)
		}
	}

	ids := make([]string, len(flat))
	for i, p := range flat {
		ids[i] = p.Identity()
	}
	return &Composite{preparers: flat, identity: "composite:" + encodeStrings(ids)}
}

// Prepare implements DatabasePreparer.
func (c *Composite) Prepare(ctx context.Context, ds client.DataSource) error {
	for i, p := range c.preparers {
		if err := p.Prepare(ctx, ds); err != nil {
			return errors.Wrapf(err, "composite step %d", i)
		}
	}
	return nil
}

// Identity implements DatabasePreparer.
func (c *Composite) Identity() string {
	return c.identity
}

// Len returns the number of combined preparers.
func (c *Composite) Len() int {
	return len(c.preparers)
}

// encodeStrings length-prefixes each element so that no two distinct lists
// share an encoding.
func encodeStrings(values []string) string {
	data, err := msgpack.Marshal(values)
	if err != nil {
		// a []string always encodes
		panic(errors.Wrap(err, "encode identity"))
	}
	return string(data)
}
