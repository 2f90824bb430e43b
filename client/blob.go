package client

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrBlobFreed is returned by every operation on a freed blob.
var ErrBlobFreed = errors.New("blob has been freed")

// ErrBlobPosition is returned when a position falls outside the blob.
var ErrBlobPosition = errors.New("blob position out of range")

// memoryBlob is an in-memory Blob. Adapters without a native large-object
// type hand these out, and replay rebuilds blob snapshots with them.
type memoryBlob struct {
	mu    sync.Mutex
	data  []byte
	freed bool
}

// NewBlob returns an in-memory Blob holding a copy of data.
func NewBlob(data []byte) Blob {
	return &memoryBlob{data: append([]byte(nil), data...)}
}

// Length implements Blob.
func (b *memoryBlob) Length() (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.freed {
		return 0, ErrBlobFreed
	}
	return int64(len(b.data)), nil
}

// Bytes implements Blob. It returns at most length bytes starting at pos.
func (b *memoryBlob) Bytes(pos int64, length int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.freed {
		return nil, ErrBlobFreed
	}
	if pos < 1 || pos > int64(len(b.data))+1 || length < 0 {
		return nil, errors.Wrapf(ErrBlobPosition, "read at %d (length %d)", pos, len(b.data))
	}

	start := int(pos - 1)
	end := start + length
	if end > len(b.data) {
		end = len(b.data)
	}
	return append([]byte(nil), b.data[start:end]...), nil
}

// SetBytes implements Blob. Writing past the end grows the blob.
func (b *memoryBlob) SetBytes(pos int64, p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.freed {
		return 0, ErrBlobFreed
	}
	if pos < 1 || pos > int64(len(b.data))+1 {
		return 0, errors.Wrapf(ErrBlobPosition, "write at %d (length %d)", pos, len(b.data))
	}

	start := int(pos - 1)
	if end := start + len(p); end > len(b.data) {
		grown := make([]byte, end)
		copy(grown, b.data)
		b.data = grown
	}
	return copy(b.data[start:], p), nil
}

// Truncate implements Blob.
func (b *memoryBlob) Truncate(length int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.freed {
		return ErrBlobFreed
	}
	if length < 0 || length > int64(len(b.data)) {
		return errors.Wrapf(ErrBlobPosition, "truncate to %d (length %d)", length, len(b.data))
	}
	b.data = b.data[:length]
	return nil
}

// Free implements Blob.
func (b *memoryBlob) Free() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.freed = true
	b.data = nil
	return nil
}

// ReadAll returns the full content of b.
func ReadAll(b Blob) ([]byte, error) {
	n, err := b.Length()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}
	return b.Bytes(1, int(n))
}
