package publish

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTriggerQueue_FIFOOrder(t *testing.T) {
	q := NewTriggerQueue(10)
	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, q.Enqueue(Trigger{JobID: id}))
	}
	require.Equal(t, 3, q.Len())

	for _, want := range []int64{1, 2, 3} {
		trigger, ok := q.Dequeue()
		require.True(t, ok)
		require.Equal(t, want, trigger.JobID)
	}

	_, ok := q.Dequeue()
	require.False(t, ok)
}

func TestTriggerQueue_RejectsWhenFull(t *testing.T) {
	q := NewTriggerQueue(2)
	require.NoError(t, q.Enqueue(Trigger{JobID: 1}))
	require.NoError(t, q.Enqueue(Trigger{JobID: 2}))

	err := q.Enqueue(Trigger{JobID: 3})
	require.ErrorIs(t, err, ErrQueueFull)

	// Draining one slot makes room again.
	_, ok := q.Dequeue()
	require.True(t, ok)
	require.NoError(t, q.Enqueue(Trigger{JobID: 3}))
}

func TestTriggerQueue_Drain(t *testing.T) {
	q := NewTriggerQueue(10)
	require.NoError(t, q.Enqueue(Trigger{JobID: 1}))
	require.NoError(t, q.Enqueue(Trigger{JobID: 2}))

	drained := q.Drain()
	require.Len(t, drained, 2)
	require.Equal(t, int64(1), drained[0].JobID)
	require.Equal(t, 0, q.Len())

	require.Empty(t, q.Drain())
}

func TestTriggerQueue_DefaultSize(t *testing.T) {
	q := NewTriggerQueue(0)
	for i := 0; i < DefaultQueueSize; i++ {
		require.NoError(t, q.Enqueue(Trigger{JobID: int64(i)}))
	}
	require.ErrorIs(t, q.Enqueue(Trigger{JobID: 999}), ErrQueueFull)
}
