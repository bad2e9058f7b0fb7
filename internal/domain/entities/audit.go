package entities

import "time"

// EventKind represents the kind of queue transition being recorded
type EventKind string

const (
	EventKindRegistered            EventKind = "registered"
	EventKindPromoted              EventKind = "promoted"
	EventKindConsultationStarted   EventKind = "consultation_started"
	EventKindConsultationCompleted EventKind = "consultation_completed"
	EventKindCancelled             EventKind = "cancelled"
)

// AuditRecord is one immutable entry in the append-only transition ledger.
// Sequence is assigned by the audit store and is strictly monotonic.
type AuditRecord struct {
	Sequence       int64         `json:"sequence" db:"sequence"`
	Token          string        `json:"token" db:"token"`
	Kind           EventKind     `json:"kind" db:"kind"`
	FromStatus     PatientStatus `json:"from_status,omitempty" db:"from_status"`
	ToStatus       PatientStatus `json:"to_status" db:"to_status"`
	PositionBefore *int          `json:"position_before,omitempty" db:"position_before"`
	PositionAfter  *int          `json:"position_after,omitempty" db:"position_after"`
	Actor          string        `json:"actor,omitempty" db:"actor"`
	Timestamp      time.Time     `json:"timestamp" db:"timestamp"`
}
