package entities

import (
	"time"

	"github.com/google/uuid"
)

// QueueEvent represents a real-time update published after an accepted queue
// transition. Events are best-effort and carried outside the atomic
// persistence unit; the audit log remains the source of historical truth.
type QueueEvent struct {
	ID         string                 `json:"id"`
	Token      string                 `json:"token"`
	Department string                 `json:"department"`
	Kind       EventKind              `json:"kind"`
	Timestamp  time.Time              `json:"timestamp"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
}

// NewQueueEvent creates a new queue event
func NewQueueEvent(token, department string, kind EventKind, payload map[string]interface{}) *QueueEvent {
	return &QueueEvent{
		ID:         uuid.New().String(),
		Token:      token,
		Department: department,
		Kind:       kind,
		Timestamp:  time.Now(),
		Payload:    payload,
	}
}
