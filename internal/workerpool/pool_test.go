package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(0, 1)
	assert.Error(t, err)

	_, err = New(1, -1)
	assert.Error(t, err)
}

func TestPool_RunsTasks(t *testing.T) {
	p, err := New(3, 16)
	require.NoError(t, err)

	var ran atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.True(t, p.TrySubmit(func() {
			defer wg.Done()
			ran.Add(1)
		}))
	}
	wg.Wait()

	require.NoError(t, p.Close())
	assert.Equal(t, int32(10), ran.Load())
}

func TestPool_RejectsWhenQueueFull(t *testing.T) {
	p, err := New(1, 1)
	require.NoError(t, err)

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, p.TrySubmit(func() {
		close(started)
		<-release
	}))
	<-started

	assert.True(t, p.TrySubmit(func() {}), "one slot in the queue")
	assert.False(t, p.TrySubmit(func() {}), "queue is full")

	close(release)
	require.NoError(t, p.Close())
}

func TestPool_CloseWaitsForQueuedTasks(t *testing.T) {
	p, err := New(1, 4)
	require.NoError(t, err)

	var ran atomic.Int32
	for i := 0; i < 4; i++ {
		require.True(t, p.TrySubmit(func() {
			time.Sleep(5 * time.Millisecond)
			ran.Add(1)
		}))
	}

	require.NoError(t, p.Close())
	assert.Equal(t, int32(4), ran.Load())

	assert.False(t, p.TrySubmit(func() {}), "closed pools reject tasks")
	assert.NoError(t, p.Close())
}
