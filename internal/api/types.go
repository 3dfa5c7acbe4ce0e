package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling-core/internal/clinic"
	"github.com/hackgods/clinic-scheduling-core/internal/schedule"
)

type CreatePatientRequest struct {
	Name string `json:"name"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type CreateAppointmentRequest struct {
	Kind            string    `json:"kind"`
	PatientID       string    `json:"patient_id,omitempty"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
	Note            string    `json:"note,omitempty"`
}

type RescheduleRequest struct {
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration_minutes"`
}

type PatientResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Number    string    `json:"number"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	Kind            string     `json:"kind"`
	PatientID       *uuid.UUID `json:"patient_id,omitempty"`
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	Note            string     `json:"note,omitempty"`
}

type DayResponse struct {
	Date         string                `json:"date"`
	Appointments []AppointmentResponse `json:"appointments"`
}

type ShiftResponse struct {
	ID          uuid.UUID `json:"id"`
	NewStart    time.Time `json:"new_start"`
	PastClosing bool      `json:"past_closing,omitempty"`
}

type RescheduleResponse struct {
	Appointment AppointmentResponse `json:"appointment"`
	Shifts      []ShiftResponse     `json:"shifts"`
}

type StatusChangeResponse struct {
	Appointment     AppointmentResponse `json:"appointment"`
	Patient         *PatientResponse    `json:"patient,omitempty"`
	PreviousNumber  string              `json:"previous_number,omitempty"`
	EffectiveStatus string              `json:"effective_status,omitempty"`
	Warning         string              `json:"warning,omitempty"`
}

type PatientUpdateResponse struct {
	Patient        PatientResponse `json:"patient"`
	PreviousNumber string          `json:"previous_number"`
	Warning        string          `json:"warning,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toPatientResponse(p clinic.Patient) PatientResponse {
	return PatientResponse{
		ID:        p.ID,
		Name:      p.Name,
		Status:    p.Status,
		Number:    p.Number,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toAppointmentResponse(a schedule.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		Kind:            string(a.Kind),
		PatientID:       a.PatientID,
		Start:           a.Start,
		End:             a.End(),
		DurationMinutes: a.DurationMinutes,
		Status:          string(a.Status),
		Note:            a.Note,
	}
}
