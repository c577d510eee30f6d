package amm

// pendingQueue tracks the round ids with a possible pending payout for one
// (user, market) pair. Registration is idempotent via the presence set.
//
// Capped draining scans oldest-first from head. Unresolved entries inside
// the scanned window are compacted back, in order, to just before the new
// head, so a capped call does O(page) work no matter how long the queue
// has grown.
type pendingQueue struct {
	rounds  []uint64
	head    int
	present map[uint64]struct{}
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{present: make(map[uint64]struct{})}
}

func (q *pendingQueue) size() int { return len(q.rounds) - q.head }

// register appends roundID unless it is already queued.
func (q *pendingQueue) register(roundID uint64) {
	if _, ok := q.present[roundID]; ok {
		return
	}
	q.present[roundID] = struct{}{}
	q.rounds = append(q.rounds, roundID)
}

// drain visits up to limit queued rounds oldest-first (all of them when
// limit <= 0), calling visit for each. Rounds visit reports done are
// removed; the rest stay queued in their original order. Unresolved
// entries still consume visit budget.
func (q *pendingQueue) drain(limit int, visit func(roundID uint64) (done bool)) {
	n := q.size()
	if n == 0 {
		return
	}
	scan := n
	if limit > 0 && limit < n {
		scan = limit
	}

	kept := make([]uint64, 0, scan)
	for _, id := range q.rounds[q.head : q.head+scan] {
		if visit(id) {
			delete(q.present, id)
		} else {
			kept = append(kept, id)
		}
	}
	newHead := q.head + scan - len(kept)
	copy(q.rounds[newHead:q.head+scan], kept)
	q.head = newHead

	// Release the consumed prefix once it outgrows the live entries, so
	// a long-lived queue cannot pin its whole drain history.
	switch {
	case q.size() == 0:
		q.rounds = nil
		q.head = 0
	case q.head > len(q.rounds)/2:
		q.rounds = append([]uint64(nil), q.rounds[q.head:]...)
		q.head = 0
	}
}

// pending returns a copy of the queued round ids in order.
func (q *pendingQueue) pending() []uint64 {
	out := make([]uint64, q.size())
	copy(out, q.rounds[q.head:])
	return out
}
