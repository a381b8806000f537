package queue

import (
	"fmt"

	"github.com/eapache/queue"
)

// ActiveQueue holds activated items awaiting their callbacks, one FIFO per
// priority. Lower priorities drain first.
type ActiveQueue[T any] struct {
	queues []*queue.Queue
	size   int
}

func NewActiveQueue[T any](priorities int) *ActiveQueue[T] {
	if priorities <= 0 {
		priorities = 1
	}
	queues := make([]*queue.Queue, priorities)
	for i := range queues {
		queues[i] = queue.New()
	}
	return &ActiveQueue[T]{queues: queues}
}

func (aq *ActiveQueue[T]) Priorities() int {
	return len(aq.queues)
}

func (aq *ActiveQueue[T]) Len() int {
	return aq.size
}

func (aq *ActiveQueue[T]) Add(priority int, item T) {
	if priority < 0 || priority >= len(aq.queues) {
		panic(fmt.Sprintf("queue: priority %d out of range [0, %d)", priority, len(aq.queues)))
	}
	aq.queues[priority].Add(item)
	aq.size++
}

// Next removes the oldest item of the lowest non-empty priority.
func (aq *ActiveQueue[T]) Next() (T, bool) {
	for _, q := range aq.queues {
		if q.Length() > 0 {
			aq.size--
			return q.Remove().(T), true
		}
	}
	var zero T
	return zero, false
}

// DrainQueue runs fn on every queued item, including items queued by fn
// itself. The first error stops the drain; the remaining items stay queued.
func (aq *ActiveQueue[T]) DrainQueue(fn func(item T) error) error {
	for {
		item, ok := aq.Next()
		if !ok {
			return nil
		}
		if err := fn(item); err != nil {
			return err
		}
	}
}
