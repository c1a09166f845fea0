package storage

import (
	"testing"
	"time"

	"github.com/roman-kulish/sky-view/internal/gnss"
)

func epochsAt(offsets ...int) []*gnss.Epoch {
	epochs := make([]*gnss.Epoch, len(offsets))
	for i, offset := range offsets {
		epochs[i] = &gnss.Epoch{
			ID:        int64(i + 1),
			Timestamp: epochStart.Add(time.Duration(offset) * time.Second),
		}
	}
	return epochs
}

func TestEpochBuffer_Ordering(t *testing.T) {
	eb, err := NewEpochBuffer(10, 5)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	// IDs record arrival order
	epochs := epochsAt(2, 3, 0, 5, 3, 1, 7)
	for i, epoch := range epochs {
		if err := eb.Insert(epoch); err != nil {
			t.Errorf("Failed to insert epoch %d: %v", i, err)
		}
	}

	if size := eb.Size(); size != len(epochs) {
		t.Errorf("Expected buffer size %d, got %d", len(epochs), size)
	}

	results := eb.DrainAll()
	if len(results) != len(epochs) {
		t.Fatalf("Expected %d results, got %d", len(epochs), len(results))
	}

	// Equal timestamps keep arrival order: epoch 2 before epoch 5
	expected := []int64{3, 6, 1, 2, 5, 4, 7}
	for i, id := range expected {
		if results[i].ID != id {
			t.Errorf("Result %d: expected epoch %d, got %d", i, id, results[i].ID)
		}
	}

	if eb.Size() != 0 {
		t.Errorf("Expected empty buffer after drain, got %d", eb.Size())
	}
	if err = eb.Insert(epochsAt(9)[0]); err != nil || eb.Size() != 1 {
		t.Errorf("Expected buffer to be reusable after drain, got size %d, %v", eb.Size(), err)
	}
}

func TestEpochBuffer_FlushBehavior(t *testing.T) {
	eb, err := NewEpochBuffer(3, 2)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	for i, epoch := range epochsAt(1, 0, 2) {
		if err := eb.Insert(epoch); err != nil {
			t.Errorf("Failed to insert epoch %d: %v", i, err)
		}
	}

	if !eb.IsFull() {
		t.Error("Buffer should be full")
	}

	flushed := eb.Flush()
	if len(flushed) != 2 {
		t.Fatalf("Expected 2 flushed items, got %d", len(flushed))
	}
	if flushed[0].ID != 2 || flushed[1].ID != 1 {
		t.Errorf("Expected the two oldest epochs, got %d and %d", flushed[0].ID, flushed[1].ID)
	}

	if size := eb.Size(); size != 1 {
		t.Errorf("Expected remaining size 1, got %d", size)
	}
}

func TestEpochBuffer_FlushOverCapacity(t *testing.T) {
	eb, err := NewEpochBuffer(2, 1)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	for _, epoch := range epochsAt(0, 1, 2, 3) {
		_ = eb.Insert(epoch)
	}

	if flushed := eb.Flush(); len(flushed) != 3 {
		t.Errorf("Expected 3 flushed items, got %d", len(flushed))
	}
	if size := eb.Size(); size != 1 {
		t.Errorf("Expected remaining size 1, got %d", size)
	}
}

func TestEpochBuffer_EdgeCases(t *testing.T) {
	eb, err := NewEpochBuffer(5, 2)
	if err != nil {
		t.Fatalf("Failed to create buffer: %v", err)
	}

	if err := eb.Insert(nil); err == nil {
		t.Error("Expected error when inserting nil epoch")
	}

	if eb.Flush() != nil {
		t.Error("Flush on empty buffer should return nil")
	}
	if eb.DrainAll() != nil {
		t.Error("DrainAll on empty buffer should return nil")
	}
	if eb.IsFull() {
		t.Error("Empty buffer should not be full")
	}

	testCases := []struct {
		name     string
		capacity int
		flush    int
	}{
		{"invalid capacity", 0, 1},
		{"invalid flush count", 5, 6},
		{"zero flush count", 5, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewEpochBuffer(tc.capacity, tc.flush); err == nil {
				t.Error("Expected error for invalid parameters")
			}
		})
	}
}
