// Package queue tracks the requests a surface has sent and that have not
// yet been resolved or rejected.
package queue

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrDuplicate is returned by Enqueue when the id is already pending.
var ErrDuplicate = errors.New("request id already pending")

// PendingRequest is a single in-flight call from a surface.
type PendingRequest struct {
	SessionID  string            `json:"session_id"`
	Channel    string            `json:"channel"`
	ID         string            `json:"id"`
	Args       []json.RawMessage `json:"args"`
	ReceivedAt time.Time         `json:"received_at"`
}

// Queue is shared by every session's bridge. Implementations serialize
// operations per session. Apart from Enqueue they never fail: an absent
// entry is a valid outcome.
//
// Request ids are unique within a session. Enqueue returns ErrDuplicate and
// leaves the queue unchanged when the id is already pending; any other error
// means the backend could not record the request.
type Queue interface {
	Enqueue(sessionID string, req PendingRequest) error
	Dequeue(sessionID, id string) bool
	Empty(sessionID string)
	List(sessionID string) []PendingRequest
	Get(sessionID, id string) (PendingRequest, bool)
	OnEnqueue(fn func(PendingRequest))
	Close() error
}
