package queue_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Viet-ph/goevent/internal/queue"
)

func TestNextOrdersByPriorityThenFIFO(t *testing.T) {
	aq := queue.NewActiveQueue[string](3)
	aq.Add(2, "low-1")
	aq.Add(0, "high-1")
	aq.Add(1, "mid-1")
	aq.Add(0, "high-2")
	aq.Add(2, "low-2")
	require.Equal(t, 5, aq.Len())

	var got []string
	require.NoError(t, aq.DrainQueue(func(item string) error {
		got = append(got, item)
		return nil
	}))
	assert.Equal(t, []string{"high-1", "high-2", "mid-1", "low-1", "low-2"}, got)
	assert.Equal(t, 0, aq.Len())
}

func TestDrainQueueStopsOnErrorAndKeepsRest(t *testing.T) {
	aq := queue.NewActiveQueue[int](1)
	for i := 1; i <= 4; i++ {
		aq.Add(0, i)
	}

	boom := errors.New("boom")
	var seen []int
	err := aq.DrainQueue(func(item int) error {
		seen = append(seen, item)
		if item == 2 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []int{1, 2}, seen)
	assert.Equal(t, 2, aq.Len())

	next, ok := aq.Next()
	require.True(t, ok)
	assert.Equal(t, 3, next)
}

func TestDrainQueueRunsItemsAddedDuringDrain(t *testing.T) {
	aq := queue.NewActiveQueue[int](2)
	aq.Add(1, 1)

	var seen []int
	require.NoError(t, aq.DrainQueue(func(item int) error {
		seen = append(seen, item)
		if item == 1 {
			aq.Add(0, 2)
		}
		return nil
	}))
	assert.Equal(t, []int{1, 2}, seen)
}

func TestAddOutOfRangePanics(t *testing.T) {
	aq := queue.NewActiveQueue[int](0)
	assert.Equal(t, 1, aq.Priorities())
	assert.Panics(t, func() { aq.Add(1, 0) })
}
