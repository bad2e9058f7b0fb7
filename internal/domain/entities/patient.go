package entities

import (
	"fmt"
	"time"

	apperrors "github.com/triagewell/hospital-queue/pkg/errors"
)

// PatientStatus represents the lifecycle status of a patient
type PatientStatus string

const (
	PatientStatusWaiting        PatientStatus = "waiting"
	PatientStatusInConsultation PatientStatus = "in_consultation"
	PatientStatusCompleted      PatientStatus = "completed"
	PatientStatusCancelled      PatientStatus = "cancelled"
)

// IsTerminal reports whether the status can never be left again
func (s PatientStatus) IsTerminal() bool {
	return s == PatientStatusCompleted || s == PatientStatusCancelled
}

// PriorityClass represents the queue precedence category of a patient
type PriorityClass string

const (
	PriorityClassEmergency PriorityClass = "EMERGENCY"
	PriorityClassUrgent    PriorityClass = "URGENT"
	PriorityClassNormal    PriorityClass = "NORMAL"
)

// Rank returns the numeric precedence of the class; higher surfaces first
func (p PriorityClass) Rank() int {
	switch p {
	case PriorityClassEmergency:
		return 3
	case PriorityClassUrgent:
		return 2
	case PriorityClassNormal:
		return 1
	default:
		return 0
	}
}

// Valid reports whether the class is one of the known categories
func (p PriorityClass) Valid() bool {
	return p.Rank() > 0
}

// Patient represents a registered patient and their queue state
type Patient struct {
	Token             string        `json:"token" db:"token"`
	FullName          string        `json:"full_name" db:"full_name"`
	Age               *int          `json:"age,omitempty" db:"age"`
	Gender            string        `json:"gender,omitempty" db:"gender"`
	Phone             string        `json:"phone,omitempty" db:"phone"`
	MedicalCondition  string        `json:"medical_condition,omitempty" db:"medical_condition"`
	Department        string        `json:"department" db:"department"`
	Priority          PriorityClass `json:"priority" db:"priority"`
	FollowUp          bool          `json:"follow_up" db:"follow_up"`
	Status            PatientStatus `json:"status" db:"status"`
	DoctorID          *string       `json:"doctor_id,omitempty" db:"doctor_id"`
	RegisteredAt      time.Time     `json:"registered_at" db:"registered_at"`
	ConsultStartedAt  *time.Time    `json:"consult_started_at,omitempty" db:"consult_started_at"`
	ConsultEndedAt    *time.Time    `json:"consult_ended_at,omitempty" db:"consult_ended_at"`
	EstimatedWaitMins int           `json:"estimated_wait_minutes" db:"estimated_wait_minutes"`
	Notes             string        `json:"notes,omitempty" db:"notes"`
}

// StartConsultation transitions the patient from waiting to in consultation
func (p *Patient) StartConsultation(at time.Time) error {
	if p.Status != PatientStatusWaiting {
		return apperrors.NewInvalidTransitionError(
			fmt.Sprintf("patient %s cannot start consultation from status %s", p.Token, p.Status))
	}
	p.Status = PatientStatusInConsultation
	p.ConsultStartedAt = &at
	return nil
}

// Complete transitions the patient from in consultation to completed
func (p *Patient) Complete(at time.Time) error {
	if p.Status != PatientStatusInConsultation {
		return apperrors.NewInvalidTransitionError(
			fmt.Sprintf("patient %s cannot complete consultation from status %s", p.Token, p.Status))
	}
	p.Status = PatientStatusCompleted
	p.ConsultEndedAt = &at
	return nil
}

// Cancel transitions the patient from waiting to cancelled
func (p *Patient) Cancel() error {
	if p.Status != PatientStatusWaiting {
		return apperrors.NewInvalidTransitionError(
			fmt.Sprintf("patient %s cannot be cancelled from status %s", p.Token, p.Status))
	}
	p.Status = PatientStatusCancelled
	return nil
}

// WaitDuration returns how long the patient waited before consultation started
func (p *Patient) WaitDuration() time.Duration {
	if p.ConsultStartedAt == nil {
		return 0
	}
	return p.ConsultStartedAt.Sub(p.RegisteredAt)
}

// ConsultDuration returns how long the consultation lasted
func (p *Patient) ConsultDuration() time.Duration {
	if p.ConsultStartedAt == nil || p.ConsultEndedAt == nil {
		return 0
	}
	return p.ConsultEndedAt.Sub(*p.ConsultStartedAt)
}
