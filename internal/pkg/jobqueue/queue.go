package jobqueue

import (
	"context"
	"sync"
)

// MemoryQueue is an unbounded in-process FIFO. Ids are lost on restart;
// Manager.Recover re-enqueues pending jobs from the database.
type MemoryQueue struct {
	mu     sync.Mutex
	items  []string
	notify chan struct{}
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{notify: make(chan struct{}, 1)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, jobID string) error {
	if jobID == "" {
		return ErrEmptyJobID
	}
	q.mu.Lock()
	q.items = append(q.items, jobID)
	q.mu.Unlock()
	q.signal()
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if id, ok := q.pop(); ok {
			return id, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-q.notify:
		}
	}
}

func (q *MemoryQueue) Len(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

func (q *MemoryQueue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	id := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	if len(q.items) > 0 {
		// wake the next consumer, the token we took may have covered several ids
		q.signal()
	}
	return id, true
}

func (q *MemoryQueue) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
