package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling-core/internal/schedule"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// PatientStore is the patient record store.
type PatientStore interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListPatients(ctx context.Context) ([]Patient, error)
	UpsertPatient(ctx context.Context, p *Patient) error
	DeletePatient(ctx context.Context, id uuid.UUID) error
}

// AppointmentStore is the appointment record store. Deleted appointments are
// kept and returned; callers filter them.
type AppointmentStore interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error)
	// ListByDay returns the appointments starting on the calendar day that
	// begins at day.
	ListByDay(ctx context.Context, day time.Time) ([]schedule.Appointment, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]schedule.Appointment, error)
	UpsertAppointment(ctx context.Context, a *schedule.Appointment) error
}

// Repository contains all store interactions needed by the service.
type Repository interface {
	PatientStore
	AppointmentStore

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
