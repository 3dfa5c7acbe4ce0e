package clinic

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling-core/internal/schedule"
)

const (
	EventPatientRegistered        = "PATIENT_REGISTERED"
	EventPatientNumberAssigned    = "PATIENT_NUMBER_ASSIGNED"
	EventPatientDeleted           = "PATIENT_DELETED"
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentRescheduled   = "APPOINTMENT_RESCHEDULED"
	EventAppointmentShifted       = "APPOINTMENT_SHIFTED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
)

// Patient is the slice of a patient record the scheduling core reads and
// writes. Status is the effective status; Number is the rendered patient
// number or "-".
type Patient struct {
	ID        uuid.UUID
	Name      string
	Status    string
	Number    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	PatientID     *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// NewAppointment is a scheduling request. PatientID is required for visits
// and must be nil for lunch breaks and off-site blocks.
type NewAppointment struct {
	Kind            schedule.Kind
	PatientID       *uuid.UUID
	Start           time.Time
	DurationMinutes int
	Note            string
}

// StatusChange describes the outcome of an appointment status update.
type StatusChange struct {
	Appointment     schedule.Appointment
	Patient         *Patient // nil for blocks without a patient
	PreviousNumber  string
	EffectiveStatus string
	Warning         string
}

// Reschedule describes a moved or resized appointment and the later
// appointments pushed to make room for it.
type Reschedule struct {
	Appointment schedule.Appointment
	Shifts      []schedule.Shift
}

// PatientUpdate is the outcome of a change to a patient's own status.
type PatientUpdate struct {
	Patient        Patient
	PreviousNumber string
	Warning        string
}
