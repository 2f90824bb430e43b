package recording

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-testdb/client"
	"github.com/goliatone/go-testdb/preparer"
	"github.com/vmihailenco/msgpack/v5"
)

// identityPrefix namespaces recorded identities among other preparer kinds.
const identityPrefix = "recording:"

// encodingVersion is bumped whenever the persisted layout changes.
const encodingVersion = 1

var _ preparer.DatabasePreparer = (*Preparer)(nil)

// Preparer is an immutable recording of setup calls that can be replayed
// against any data source.
type Preparer struct {
	root     Role
	log      []Invocation
	encoded  []byte
	identity string
}

type encodedPreparer struct {
	Version int          `msgpack:"v"`
	Root    Role         `msgpack:"r"`
	Log     []Invocation `msgpack:"l"`
}

func newPreparer(root Role, log []Invocation) *Preparer {
	data, err := msgpack.Marshal(encodedPreparer{Version: encodingVersion, Root: root, Log: log})
	if err != nil {
		// the log holds only plain values
		panic(errors.Wrap(err, "encode preparer"))
	}
	return &Preparer{
		root:     root,
		log:      log,
		encoded:  data,
		identity: identityPrefix + string(data),
	}
}

// Decode restores a Preparer persisted with MarshalBinary.
func Decode(data []byte) (*Preparer, error) {
	var ep encodedPreparer
	if err := msgpack.Unmarshal(data, &ep); err != nil {
		return nil, errors.Wrap(err, "decode preparer")
	}
	if ep.Version != encodingVersion {
		return nil, errors.Newf("unsupported preparer encoding version %d", ep.Version)
	}
	if ep.Root != RoleDataSource && ep.Root != RoleConn {
		return nil, errors.Newf("unsupported preparer root %s", ep.Root)
	}
	for i, inv := range ep.Log {
		if inv.Receiver != RootRef && (inv.Receiver < 0 || int(inv.Receiver) >= i) {
			return nil, errors.Newf("invocation %d refers to unknown handle %s", i, inv.Receiver)
		}
		if inv.Receiver != RootRef && !ep.Log[inv.Receiver].Produces {
			return nil, errors.Newf("invocation %d refers to %s which produced no handle", i, inv.Receiver)
		}
	}
	return newPreparer(ep.Root, ep.Log), nil
}

// MarshalBinary returns the canonical encoding of the log.
func (p *Preparer) MarshalBinary() ([]byte, error) {
	return append([]byte(nil), p.encoded...), nil
}

// Root returns the role the recording session was wrapped around.
func (p *Preparer) Root() Role {
	return p.root
}

// Len returns the number of recorded invocations.
func (p *Preparer) Len() int {
	return len(p.log)
}

// Invocations returns a copy of the log.
func (p *Preparer) Invocations() []Invocation {
	out := make([]Invocation, len(p.log))
	for i, inv := range p.log {
		inv.Args = append([]Argument(nil), inv.Args...)
		out[i] = inv
	}
	return out
}

// Equal reports whether both preparers recorded the same calls with the
// same argument content in the same order.
func (p *Preparer) Equal(other *Preparer) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.root != other.root || len(p.log) != len(other.log) {
		return false
	}
	for i := range p.log {
		if !p.log[i].Equal(other.log[i]) {
			return false
		}
	}
	return true
}

// Identity implements preparer.DatabasePreparer. Equal preparers have equal
// identities.
func (p *Preparer) Identity() string {
	return p.identity
}

// Fingerprint returns a short digest of the identity.
func (p *Preparer) Fingerprint() string {
	return preparer.Fingerprint(p.identity)
}

// Prepare implements preparer.DatabasePreparer.
func (p *Preparer) Prepare(ctx context.Context, ds client.DataSource) error {
	return p.Replay(ctx, ds)
}

// String lists the log, one invocation per line.
func (p *Preparer) String() string {
	var b strings.Builder
	for i, inv := range p.log {
		b.WriteString(Ref(i).String())
		b.WriteString(" = ")
		b.WriteString(inv.String())
		b.WriteByte('\n')
	}
	return b.String()
}
