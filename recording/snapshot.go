package recording

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"io"
	"reflect"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-testdb/client"
)

// ErrUnsupportedArgument is returned when a value has no content-comparable
// representation.
var ErrUnsupportedArgument = errors.New("unsupported argument type")

// ErrForeignHandle is returned when a handle argument was not produced by the
// recording session it is passed to.
var ErrForeignHandle = errors.New("handle does not belong to this recording session")

// SnapshotError reports an argument that could not be captured. The call is
// neither forwarded nor recorded.
type SnapshotError struct {
	Method   Method
	Position int
	Err      error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot argument %d of %s: %v", e.Position, e.Method, e.Err)
}

func (e *SnapshotError) Unwrap() error {
	return e.Err
}

// snapshotValue normalizes a plain value into its comparable form. Named
// types collapse onto their underlying kind so that equal content always
// produces equal arguments. Times keep their zone offset.
func snapshotValue(v any) (Argument, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		resolved, err := valuer.Value()
		if err != nil {
			return Argument{}, errors.Wrap(err, "resolve driver.Valuer")
		}
		v = resolved
	}

	switch x := v.(type) {
	case nil:
		return Argument{Kind: KindNil}, nil
	case []byte:
		return bytesArg(KindBytes, x), nil
	case time.Time:
		return timeArg(x), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Bool:
		return boolArg(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return intArg(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Argument{Kind: KindUint, Uint: rv.Uint()}, nil
	case reflect.Float32, reflect.Float64:
		return Argument{Kind: KindFloat, Float: rv.Float()}, nil
	case reflect.String:
		return stringArg(rv.String()), nil
	case reflect.Ptr:
		if rv.IsNil() {
			return Argument{Kind: KindNil}, nil
		}
		return snapshotValue(rv.Elem().Interface())
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return bytesArg(KindBytes, rv.Bytes()), nil
		}
	}

	return Argument{}, errors.Wrapf(ErrUnsupportedArgument, "%T", v)
}

// snapshotStream reads r up to length bytes (to EOF when length is negative).
// A short read is an error: the recorded content would not match what the
// caller meant to bind.
func snapshotStream(r io.Reader, length int64) ([]byte, error) {
	if r == nil {
		return nil, errors.New("nil stream")
	}
	if length < 0 {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.Wrap(err, "read stream")
		}
		return data, nil
	}

	var buf bytes.Buffer
	n, err := io.CopyN(&buf, r, length)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.Wrapf(io.ErrUnexpectedEOF, "stream ended after %d of %d bytes", n, length)
		}
		return nil, errors.Wrap(err, "read stream")
	}
	return buf.Bytes(), nil
}

// snapshotBlob captures the full content of a blob.
func snapshotBlob(b client.Blob) ([]byte, error) {
	if b == nil {
		return nil, errors.New("nil blob")
	}
	data, err := client.ReadAll(b)
	if err != nil {
		return nil, errors.Wrap(err, "read blob")
	}
	return data, nil
}
