package queue

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigrelay/internal/task"
)

func TestMemoryQueue_FIFO(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	a := task.New("a", []byte("a"), "")
	b := task.New("b", []byte("b"), "")
	require.NoError(t, q.Add(ctx, a))
	require.NoError(t, q.Add(ctx, b))

	assert.Equal(t, 2, q.Len())

	lease, ok, err := q.Lease(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", lease.Task.ID)
	require.NoError(t, lease.Ack())

	assert.Equal(t, 1, q.Len())

	lease2, ok, err := q.Lease(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", lease2.Task.ID)
}

func TestMemoryQueue_EmptyLeaseNoop(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	lease, ok, err := q.Lease(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, lease.Task)
	assert.NoError(t, lease.Ack())
}

func TestMemoryQueue_NackLeavesHeadInPlace(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	a := task.New("a", []byte("a"), "")
	require.NoError(t, q.Add(ctx, a))

	lease, ok, err := q.Lease(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, lease.Nack())

	assert.Equal(t, 1, q.Len())

	lease2, ok, err := q.Lease(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", lease2.Task.ID)
}

func TestMemoryQueue_SingleLeaseholder(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	require.NoError(t, q.Add(ctx, task.New("a", []byte("a"), "")))

	_, ok, err := q.Lease(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok2, err := q.Lease(ctx)
	require.NoError(t, err)
	assert.False(t, ok2)
}

func TestMemoryQueue_DoubleCloseErrors(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	require.NoError(t, q.Add(ctx, task.New("a", []byte("a"), "")))

	lease, _, _ := q.Lease(ctx)
	require.NoError(t, lease.Ack())
	assert.ErrorIs(t, lease.Ack(), ErrLeaseAlreadyClosed)
}
