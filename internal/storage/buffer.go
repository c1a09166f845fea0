package storage

import (
	"fmt"
	"sync"

	"github.com/roman-kulish/sky-view/internal/gnss"
)

type node struct {
	epoch *gnss.Epoch
	next  *node
}

// EpochBuffer is a thread-safe buffer collecting epochs for batched writes.
// Epochs are kept in timestamp order; epochs with equal timestamps keep their
// arrival order.
type EpochBuffer struct {
	capacity   int // Maximum number of epochs to hold before a flush is due
	flushCount int // Number of epochs removed by Flush

	mu   sync.Mutex
	head *node
	tail *node
	size int
}

// NewEpochBuffer creates a buffer holding up to capacity epochs, of which
// Flush removes the oldest flushCount.
func NewEpochBuffer(capacity, flushCount int) (*EpochBuffer, error) {
	if capacity <= 0 || flushCount <= 0 || flushCount > capacity {
		return nil, fmt.Errorf("invalid buffer parameters: capacity=%d, flushCount=%d", capacity, flushCount)
	}
	return &EpochBuffer{
		capacity:   capacity,
		flushCount: flushCount,
	}, nil
}

// Insert adds an epoch in timestamp order.
func (eb *EpochBuffer) Insert(epoch *gnss.Epoch) error {
	if epoch == nil {
		return fmt.Errorf("cannot insert nil epoch")
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	n := &node{epoch: epoch}
	eb.size++

	switch {
	case eb.head == nil:
		eb.head, eb.tail = n, n
		return nil

	// Receivers report in order, so appending is the common case
	case !epoch.Timestamp.Before(eb.tail.epoch.Timestamp):
		eb.tail.next = n
		eb.tail = n
		return nil

	case epoch.Timestamp.Before(eb.head.epoch.Timestamp):
		n.next = eb.head
		eb.head = n
		return nil
	}

	current := eb.head
	for !epoch.Timestamp.Before(current.next.epoch.Timestamp) {
		current = current.next
	}
	n.next = current.next
	current.next = n
	return nil
}

// IsFull returns true if the buffer has reached its capacity.
func (eb *EpochBuffer) IsFull() bool {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	return eb.size >= eb.capacity
}

// Flush removes and returns the oldest epochs, nil if the buffer is empty.
// Anything above capacity is flushed too.
func (eb *EpochBuffer) Flush() []*gnss.Epoch {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	count := eb.flushCount
	if eb.size > eb.capacity {
		count += eb.size - eb.capacity
	}
	return eb.take(min(count, eb.size))
}

// DrainAll removes and returns all epochs, nil if the buffer is empty.
func (eb *EpochBuffer) DrainAll() []*gnss.Epoch {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	return eb.take(eb.size)
}

// Size returns the current number of epochs in the buffer.
func (eb *EpochBuffer) Size() int {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	return eb.size
}

func (eb *EpochBuffer) take(count int) []*gnss.Epoch {
	if eb.head == nil || count == 0 {
		return nil
	}

	results := make([]*gnss.Epoch, 0, count)
	current := eb.head
	for i := 0; i < count && current != nil; i++ {
		results = append(results, current.epoch)
		current = current.next
	}

	eb.head = current
	if current == nil {
		eb.tail = nil
	}
	eb.size -= len(results)
	return results
}
