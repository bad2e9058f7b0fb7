package entities

import "time"

// QueueEntry is a waiting patient's position record inside the queue engine.
// It exists only while the patient is in status waiting and holds a weak
// reference (the token), never the patient data itself.
type QueueEntry struct {
	Token      string        `json:"token"`
	Department string        `json:"department"`
	Priority   PriorityClass `json:"priority"`
	ArrivalAt  time.Time     `json:"arrival_at"`
}

// Before reports whether e should be served ahead of other. Ordering is
// priority rank descending, then arrival ascending, then token ascending so
// that two entries never compare equal.
func (e *QueueEntry) Before(other *QueueEntry) bool {
	if e.Priority.Rank() != other.Priority.Rank() {
		return e.Priority.Rank() > other.Priority.Rank()
	}
	if !e.ArrivalAt.Equal(other.ArrivalAt) {
		return e.ArrivalAt.Before(other.ArrivalAt)
	}
	return e.Token < other.Token
}
