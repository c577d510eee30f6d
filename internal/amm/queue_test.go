package amm

import (
	"reflect"
	"testing"
)

func TestQueueRegisterIdempotent(t *testing.T) {
	t.Parallel()
	q := newPendingQueue()
	q.register(7)
	q.register(7)
	q.register(8)
	q.register(7)

	if got := q.pending(); !reflect.DeepEqual(got, []uint64{7, 8}) {
		t.Errorf("pending = %v, want [7 8]", got)
	}
}

func TestQueueDrainAll(t *testing.T) {
	t.Parallel()
	q := newPendingQueue()
	for id := uint64(1); id <= 5; id++ {
		q.register(id)
	}

	var visited []uint64
	q.drain(0, func(id uint64) bool {
		visited = append(visited, id)
		return true
	})

	if !reflect.DeepEqual(visited, []uint64{1, 2, 3, 4, 5}) {
		t.Errorf("visited = %v, want oldest-first order", visited)
	}
	if q.size() != 0 {
		t.Errorf("size = %d after full drain, want 0", q.size())
	}
}

func TestQueueDrainCapped(t *testing.T) {
	t.Parallel()
	q := newPendingQueue()
	for id := uint64(1); id <= 55; id++ {
		q.register(id)
	}

	drainPage := func() int {
		n := 0
		q.drain(25, func(uint64) bool { n++; return true })
		return n
	}

	if n := drainPage(); n != 25 {
		t.Fatalf("first page visited %d, want 25", n)
	}
	if n := drainPage(); n != 25 {
		t.Fatalf("second page visited %d, want 25", n)
	}
	if got := q.pending(); !reflect.DeepEqual(got, []uint64{51, 52, 53, 54, 55}) {
		t.Errorf("remaining = %v, want the five most-recently-added", got)
	}
	if n := drainPage(); n != 5 {
		t.Fatalf("last page visited %d, want 5", n)
	}
	if q.size() != 0 {
		t.Errorf("size = %d, want 0", q.size())
	}
}

func TestQueueDrainKeepsUndoneInOrder(t *testing.T) {
	t.Parallel()
	q := newPendingQueue()
	for id := uint64(1); id <= 6; id++ {
		q.register(id)
	}

	// Only even ids are done; odd ones stay queued, still in order.
	q.drain(4, func(id uint64) bool { return id%2 == 0 })

	if got := q.pending(); !reflect.DeepEqual(got, []uint64{1, 3, 5, 6}) {
		t.Errorf("pending = %v, want [1 3 5 6]", got)
	}

	// A kept entry can be registered again without duplication.
	q.register(1)
	if got := q.pending(); !reflect.DeepEqual(got, []uint64{1, 3, 5, 6}) {
		t.Errorf("pending after re-register = %v, want [1 3 5 6]", got)
	}
}

func TestQueueUndoneConsumesBudget(t *testing.T) {
	t.Parallel()
	q := newPendingQueue()
	for id := uint64(1); id <= 4; id++ {
		q.register(id)
	}

	// Nothing is done: the capped call visits two entries and removes none.
	visited := 0
	q.drain(2, func(uint64) bool { visited++; return false })
	if visited != 2 {
		t.Errorf("visited = %d, want 2", visited)
	}
	if got := q.pending(); !reflect.DeepEqual(got, []uint64{1, 2, 3, 4}) {
		t.Errorf("pending = %v, want all retained", got)
	}
}

func TestQueueReleasesConsumedPrefix(t *testing.T) {
	t.Parallel()
	q := newPendingQueue()
	for id := uint64(1); id <= 20; id++ {
		q.register(id)
	}

	// One entry is never done; repeated capped drains must not pin the
	// consumed prefix of the backing array behind it.
	q.drain(10, func(id uint64) bool { return id != 1 })
	q.drain(10, func(id uint64) bool { return id != 1 })

	if got := q.pending(); !reflect.DeepEqual(got, []uint64{1, 20}) {
		t.Errorf("pending = %v, want [1 20]", got)
	}
	if q.head != 0 || len(q.rounds) != q.size() {
		t.Errorf("backing array not released: head = %d, len = %d, size = %d",
			q.head, len(q.rounds), q.size())
	}
}

func TestQueueDrainEmpty(t *testing.T) {
	t.Parallel()
	q := newPendingQueue()
	q.drain(25, func(uint64) bool {
		t.Fatal("visit called on empty queue")
		return false
	})
}
