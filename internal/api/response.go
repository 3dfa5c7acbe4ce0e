package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/clinic-scheduling-core/internal/clinic"
	"github.com/hackgods/clinic-scheduling-core/internal/schedule"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, clinic.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, clinic.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, clinic.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, clinic.ErrBusy):
		writeError(w, http.StatusConflict, "schedule_busy", "schedule is being modified, please retry shortly")
	case errors.Is(err, schedule.ErrOutOfBusinessHours):
		writeError(w, http.StatusUnprocessableEntity, "out_of_business_hours", err.Error())
	case errors.Is(err, schedule.ErrInvalidAppointment):
		writeError(w, http.StatusBadRequest, "invalid_appointment", err.Error())
	case errors.Is(err, schedule.ErrUnknownStatus):
		writeError(w, http.StatusBadRequest, "unknown_status", err.Error())
	case errors.Is(err, schedule.ErrAppointmentDeleted):
		writeError(w, http.StatusConflict, "appointment_deleted", err.Error())
	case errors.Is(err, schedule.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
