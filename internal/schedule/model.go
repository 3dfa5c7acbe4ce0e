package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusValidated Status = "validated"
	StatusCancelled Status = "cancelled"
	StatusPostponed Status = "postponed"
	StatusNoShow    Status = "no_show"
	StatusDeleted   Status = "deleted"
)

// Kind distinguishes patient visits from blocks of clinic time that hold
// no patient.
type Kind string

const (
	KindVisit      Kind = "visit"
	KindLunchBreak Kind = "lunch_break"
	KindOffSite    Kind = "off_site"
)

var (
	ErrInvalidAppointment      = errors.New("invalid appointment")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrAppointmentDeleted      = errors.New("appointment is deleted")
	ErrUnknownStatus           = errors.New("unknown appointment status")
)

// Exempt blocks are not checked for slot availability.
func (k Kind) Exempt() bool {
	return k == KindLunchBreak || k == KindOffSite
}

func (k Kind) Valid() bool {
	switch k {
	case KindVisit, KindLunchBreak, KindOffSite:
		return true
	}
	return false
}

type Appointment struct {
	ID              uuid.UUID
	Kind            Kind
	PatientID       *uuid.UUID // set for visits only
	Start           time.Time
	DurationMinutes int
	Status          Status
	Note            string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a Appointment) End() time.Time {
	return a.Start.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

func (a Appointment) Deleted() bool {
	return a.Status == StatusDeleted
}

// Validate checks the fields that depend on the appointment's kind.
func (a Appointment) Validate() error {
	if !a.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAppointment, a.Kind)
	}
	if a.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidAppointment)
	}
	if a.Start.IsZero() {
		return fmt.Errorf("%w: start is required", ErrInvalidAppointment)
	}
	if a.Kind == KindVisit && (a.PatientID == nil || *a.PatientID == uuid.Nil) {
		return fmt.Errorf("%w: a visit needs a patient", ErrInvalidAppointment)
	}
	if a.Kind.Exempt() && a.PatientID != nil {
		return fmt.Errorf("%w: %s blocks cannot reference a patient", ErrInvalidAppointment, a.Kind)
	}
	return nil
}

// ParseStatus normalizes user input such as "Confirmed" or "no-show".
func ParseStatus(raw string) (Status, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)

	switch s {
	case "pending", "":
		return StatusPending, true
	case "validated", "confirmed":
		return StatusValidated, true
	case "cancelled", "canceled":
		return StatusCancelled, true
	case "postponed":
		return StatusPostponed, true
	case "no_show", "noshow":
		return StatusNoShow, true
	case "deleted":
		return StatusDeleted, true
	}
	return Status(raw), false
}

// CheckTransition enforces pending -> {validated, cancelled, postponed,
// no_show} -> deleted. Moving between the middle states is allowed;
// deleted is terminal.
func CheckTransition(from, to Status) error {
	if from == StatusDeleted {
		return ErrAppointmentDeleted
	}
	if from == to {
		return nil
	}
	if to == StatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
	}
	return nil
}
