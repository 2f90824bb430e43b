package recording

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-testdb/client"
)

// ErrNotRecording is returned by Extract for values that are not recording
// variants.
var ErrNotRecording = errors.New("value is not a recording proxy")

// session owns the invocation log shared by every proxy it hands out.
type session struct {
	mu   sync.Mutex
	root Role
	log  []Invocation
}

// appendInvocation adds a successful call to the log and returns its Ref.
func (s *session) appendInvocation(inv Invocation) Ref {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref := Ref(len(s.log))
	s.log = append(s.log, inv)
	return ref
}

func (s *session) preparer() *Preparer {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := make([]Invocation, len(s.log))
	for i, inv := range s.log {
		inv.Args = append([]Argument(nil), inv.Args...)
		log[i] = inv
	}
	return newPreparer(s.root, log)
}

// tracked is embedded by every recording variant.
type tracked struct {
	s    *session
	ref  Ref
	role Role
}

func (t tracked) record(method Method, produces bool, args ...Argument) Ref {
	return t.s.appendInvocation(Invocation{
		Receiver: t.ref,
		Role:     t.role,
		Method:   method,
		Args:     args,
		Produces: produces,
	})
}

func (t tracked) child(ref Ref, role Role) tracked {
	return tracked{s: t.s, ref: ref, role: role}
}

func (t tracked) recordingSession() *session {
	return t.s
}

// Preparer extracts the calls recorded so far. Recording may continue
// afterwards; the returned Preparer does not change.
func (t tracked) Preparer() *Preparer {
	return t.s.preparer()
}

// Wrap starts a recording session around a data source. Calls made through
// the returned proxy, and through every API object it returns, are forwarded
// to live and logged.
func Wrap(live client.DataSource) *DataSource {
	s := &session{root: RoleDataSource}
	return &DataSource{
		tracked: tracked{s: s, ref: RootRef, role: RoleDataSource},
		live:    live,
	}
}

// WrapConn starts a recording session around an already open connection.
func WrapConn(live client.Conn) *Conn {
	s := &session{root: RoleConn}
	return &Conn{
		tracked: tracked{s: s, ref: RootRef, role: RoleConn},
		live:    live,
	}
}

// Extract returns the Preparer of the session that produced proxy, which may
// be any recording variant handed out by Wrap or WrapConn.
func Extract(proxy any) (*Preparer, error) {
	v, ok := proxy.(interface{ recordingSession() *session })
	if !ok {
		return nil, errors.Wrapf(ErrNotRecording, "%T", proxy)
	}
	return v.recordingSession().preparer(), nil
}
