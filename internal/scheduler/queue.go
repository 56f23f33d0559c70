package scheduler

import "sync"

// tierQueue is a FIFO of instrument IDs with membership dedup, so an
// instrument sits in a tier's queue at most once regardless of how many
// paths re-enqueue it.
type tierQueue struct {
	mu      sync.Mutex
	ids     []string
	present map[string]struct{}
}

func newTierQueue() *tierQueue {
	return &tierQueue{present: make(map[string]struct{})}
}

func (q *tierQueue) push(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.present[id]; ok {
		return
	}
	q.present[id] = struct{}{}
	q.ids = append(q.ids, id)
}

// popN removes and returns up to n IDs, oldest first.
func (q *tierQueue) popN(n int) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.ids) {
		n = len(q.ids)
	}
	if n == 0 {
		return nil
	}
	out := make([]string, n)
	copy(out, q.ids[:n])
	q.ids = append(q.ids[:0], q.ids[n:]...)
	for _, id := range out {
		delete(q.present, id)
	}
	return out
}

func (q *tierQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}
