package queue

import (
	"context"
	"sync"

	"github.com/emrgen/qda/internal/coding"
)

var _ EventQueue = (*MemoryQueue)(nil)

// MemoryQueue is a buffered in-process queue.
type MemoryQueue struct {
	events chan coding.Event
	once   sync.Once
}

func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{events: make(chan coding.Event, size)}
}

func (m *MemoryQueue) Publish(ctx context.Context, event coding.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case m.events <- event:
		return nil
	}
}

// Subscribe returns the channel of published events. It is closed by Close.
func (m *MemoryQueue) Subscribe() <-chan coding.Event {
	return m.events
}

func (m *MemoryQueue) Close() error {
	m.once.Do(func() {
		close(m.events)
	})
	return nil
}
