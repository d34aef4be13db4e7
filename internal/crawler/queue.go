package crawler

import (
	"sync"
)

// Queue implements a thread-safe FIFO of domains to scrape with deduplication
type Queue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []string
	queued  map[string]bool
	stopped bool
}

// NewQueue creates a new domain queue
func NewQueue() *Queue {
	q := &Queue{
		items:  make([]string, 0),
		queued: make(map[string]bool),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push adds a domain to the queue unless it was queued before.
// Returns true if added, false if duplicate or stopped.
func (q *Queue) Push(domain string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	// Don't accept new entries if stopped
	if q.stopped || q.queued[domain] {
		return false
	}

	q.queued[domain] = true
	q.items = append(q.items, domain)

	// Signal waiting workers
	q.cond.Signal()

	return true
}

// Pop removes and returns the first domain in the queue.
// Blocks if queue is empty and not stopped.
// Returns ("", false) once stopped and drained.
func (q *Queue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		if len(q.items) > 0 {
			domain := q.items[0]
			q.items = q.items[1:]
			return domain, true
		}

		if q.stopped {
			return "", false
		}

		// Queue is empty but not stopped - wait for new items
		q.cond.Wait()
	}
}

// IsEmpty returns true if the queue has no items
func (q *Queue) IsEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Size returns the current number of items in the queue
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Stop signals the queue to stop accepting new entries.
// Workers blocked on Pop() will drain remaining items, then receive false.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.stopped = true
	q.cond.Broadcast()
}
