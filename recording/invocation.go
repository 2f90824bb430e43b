package recording

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Ref addresses a tracked handle by the index of the invocation that
// produced it.
type Ref int

// RootRef addresses the object the session was wrapped around.
const RootRef Ref = -1

func (r Ref) String() string {
	if r == RootRef {
		return "root"
	}
	return "#" + strconv.Itoa(int(r))
}

// Role identifies which part of the client API an invocation targets.
type Role uint8

const (
	RoleDataSource Role = iota + 1
	RoleConn
	RoleStatement
	RolePreparedStatement
	RoleRows
	RoleBlob
	RoleSavepoint
)

var roleNames = map[Role]string{
	RoleDataSource:        "datasource",
	RoleConn:              "conn",
	RoleStatement:         "statement",
	RolePreparedStatement: "prepared",
	RoleRows:              "rows",
	RoleBlob:              "blob",
	RoleSavepoint:         "savepoint",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "role(" + strconv.Itoa(int(r)) + ")"
}

// Method names a client API operation.
type Method string

const (
	MethodConnect          Method = "Connect"
	MethodSetAutoCommit    Method = "SetAutoCommit"
	MethodCreateStatement  Method = "CreateStatement"
	MethodPrepareStatement Method = "PrepareStatement"
	MethodCreateBlob       Method = "CreateBlob"
	MethodSetSavepoint     Method = "SetSavepoint"
	MethodReleaseSavepoint Method = "ReleaseSavepoint"
	MethodRollbackTo       Method = "RollbackTo"
	MethodCommit           Method = "Commit"
	MethodRollback         Method = "Rollback"
	MethodClose            Method = "Close"
	MethodExecuteUpdate    Method = "ExecuteUpdate"
	MethodExecuteQuery     Method = "ExecuteQuery"
	MethodSetValue         Method = "SetValue"
	MethodSetBinaryStream  Method = "SetBinaryStream"
	MethodSetBlob          Method = "SetBlob"
	MethodClearParameters  Method = "ClearParameters"
	MethodSetBytes         Method = "SetBytes"
	MethodTruncate         Method = "Truncate"
	MethodFree             Method = "Free"
)

// Invocation is one successful call captured during recording.
type Invocation struct {
	Receiver Ref        `msgpack:"r"`
	Role     Role       `msgpack:"o"`
	Method   Method     `msgpack:"m"`
	Args     []Argument `msgpack:"a,omitempty"`
	Produces bool       `msgpack:"p,omitempty"`
}

// Equal reports whether two invocations have the same receiver, operation and
// argument content.
func (i Invocation) Equal(other Invocation) bool {
	if i.Receiver != other.Receiver || i.Role != other.Role ||
		i.Method != other.Method || i.Produces != other.Produces ||
		len(i.Args) != len(other.Args) {
		return false
	}
	for n := range i.Args {
		if !i.Args[n].Equal(other.Args[n]) {
			return false
		}
	}
	return true
}

func (i Invocation) String() string {
	args := make([]string, len(i.Args))
	for n, a := range i.Args {
		args[n] = a.String()
	}
	return fmt.Sprintf("%s %s.%s(%s)", i.Receiver, i.Role, i.Method, strings.Join(args, ", "))
}

// Kind tags the variant held by an Argument.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindBytes
	KindTime
	// KindHandle refers to a handle produced earlier in the same log.
	KindHandle
	// KindStream holds the content read from an io.Reader argument.
	KindStream
	// KindBlob holds the content of a blob the session did not produce.
	KindBlob
)

// Argument is an immutable, content-comparable argument value.
//
// A KindTime argument keeps Unix seconds in Int, the nanosecond in Uint and
// its zone in Zone and Offset, so replay binds the same wall clock.
type Argument struct {
	Kind   Kind    `msgpack:"k"`
	Bool   bool    `msgpack:"b,omitempty"`
	Int    int64   `msgpack:"i,omitempty"`
	Uint   uint64  `msgpack:"u,omitempty"`
	Float  float64 `msgpack:"f,omitempty"`
	Str    string  `msgpack:"s,omitempty"`
	Bytes  []byte  `msgpack:"y,omitempty"`
	Zone   string  `msgpack:"z,omitempty"`
	Offset int32   `msgpack:"o,omitempty"`
	Handle Ref     `msgpack:"h,omitempty"`
}

// Equal compares arguments by content.
func (a Argument) Equal(other Argument) bool {
	if a.Kind != other.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool:
		return a.Bool == other.Bool
	case KindInt:
		return a.Int == other.Int
	case KindUint:
		return a.Uint == other.Uint
	case KindFloat:
		return math.Float64bits(a.Float) == math.Float64bits(other.Float)
	case KindString:
		return a.Str == other.Str
	case KindBytes, KindStream, KindBlob:
		return bytes.Equal(a.Bytes, other.Bytes)
	case KindTime:
		return a.Int == other.Int && a.Uint == other.Uint &&
			a.Offset == other.Offset && a.Zone == other.Zone
	case KindHandle:
		return a.Handle == other.Handle
	}
	return false
}

func (a Argument) String() string {
	switch a.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		return strconv.FormatBool(a.Bool)
	case KindInt:
		return strconv.FormatInt(a.Int, 10)
	case KindUint:
		return strconv.FormatUint(a.Uint, 10) + "u"
	case KindFloat:
		return strconv.FormatFloat(a.Float, 'g', -1, 64)
	case KindString:
		return strconv.Quote(a.Str)
	case KindBytes:
		return fmt.Sprintf("bytes[%d]", len(a.Bytes))
	case KindTime:
		return a.TimeValue().Format(time.RFC3339Nano)
	case KindHandle:
		return a.Handle.String()
	case KindStream:
		return fmt.Sprintf("stream[%d]", len(a.Bytes))
	case KindBlob:
		return fmt.Sprintf("blob[%d]", len(a.Bytes))
	}
	return "?"
}

func boolArg(v bool) Argument     { return Argument{Kind: KindBool, Bool: v} }
func intArg(v int64) Argument     { return Argument{Kind: KindInt, Int: v} }
func stringArg(v string) Argument { return Argument{Kind: KindString, Str: v} }
func handleArg(r Ref) Argument    { return Argument{Kind: KindHandle, Handle: r} }

func timeArg(t time.Time) Argument {
	zone, offset := t.Zone()
	return Argument{
		Kind:   KindTime,
		Int:    t.Unix(),
		Uint:   uint64(t.Nanosecond()),
		Zone:   zone,
		Offset: int32(offset),
	}
}

// TimeValue rebuilds a KindTime argument in its recorded zone.
func (a Argument) TimeValue() time.Time {
	t := time.Unix(a.Int, int64(a.Uint))
	if a.Offset == 0 && a.Zone == "UTC" {
		return t.UTC()
	}
	return t.In(time.FixedZone(a.Zone, int(a.Offset)))
}

func bytesArg(kind Kind, v []byte) Argument {
	return Argument{Kind: kind, Bytes: append([]byte(nil), v...)}
}
