package queue

import (
	"sync"
	"time"
)

type MemoryQueue struct {
	mu        sync.Mutex
	sessions  map[string][]PendingRequest
	onEnqueue func(PendingRequest)
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{sessions: make(map[string][]PendingRequest)}
}

func (q *MemoryQueue) OnEnqueue(fn func(PendingRequest)) {
	q.mu.Lock()
	q.onEnqueue = fn
	q.mu.Unlock()
}

func (q *MemoryQueue) Enqueue(sessionID string, req PendingRequest) error {
	req.SessionID = sessionID
	if req.ReceivedAt.IsZero() {
		req.ReceivedAt = time.Now()
	}

	q.mu.Lock()
	pending := q.sessions[sessionID]
	for _, p := range pending {
		if p.ID == req.ID {
			q.mu.Unlock()
			return ErrDuplicate
		}
	}
	q.sessions[sessionID] = append(pending, req)
	hook := q.onEnqueue
	q.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	return nil
}

func (q *MemoryQueue) Dequeue(sessionID, id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.sessions[sessionID]
	for i, p := range pending {
		if p.ID != id {
			continue
		}
		pending = append(pending[:i:i], pending[i+1:]...)
		if len(pending) == 0 {
			delete(q.sessions, sessionID)
		} else {
			q.sessions[sessionID] = pending
		}
		return true
	}
	return false
}

func (q *MemoryQueue) Empty(sessionID string) {
	q.mu.Lock()
	delete(q.sessions, sessionID)
	q.mu.Unlock()
}

// List returns a copy of the session's pending requests in arrival order.
func (q *MemoryQueue) List(sessionID string) []PendingRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending := q.sessions[sessionID]
	out := make([]PendingRequest, len(pending))
	copy(out, pending)
	return out
}

func (q *MemoryQueue) Get(sessionID, id string) (PendingRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range q.sessions[sessionID] {
		if p.ID == id {
			return p, true
		}
	}
	return PendingRequest{}, false
}

func (q *MemoryQueue) Close() error {
	return nil
}
