package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling-core/internal/clinic"
	"github.com/hackgods/clinic-scheduling-core/internal/schedule"
)

func parseID(w http.ResponseWriter, r *http.Request, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

// Patients

func createPatientHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePatientRequest
		if !decode(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			writeError(w, http.StatusBadRequest, "invalid_patient", "name is required")
			return
		}

		p, err := svc.RegisterPatient(r.Context(), req.Name)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toPatientResponse(*p))
	}
}

func getPatientHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_patient_id")
		if !ok {
			return
		}

		p, err := svc.GetPatient(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toPatientResponse(*p))
	}
}

func setPatientStatusHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_patient_id")
		if !ok {
			return
		}
		var req StatusRequest
		if !decode(w, r, &req) {
			return
		}

		up, err := svc.SetPatientStatus(r.Context(), id, req.Status)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, PatientUpdateResponse{
			Patient:        toPatientResponse(up.Patient),
			PreviousNumber: up.PreviousNumber,
			Warning:        up.Warning,
		})
	}
}

func deletePatientHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_patient_id")
		if !ok {
			return
		}

		if err := svc.DeletePatient(r.Context(), id); err != nil {
			handleServiceError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// Appointments

func createAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decode(w, r, &req) {
			return
		}

		kind := schedule.Kind(req.Kind)
		if kind == "" {
			kind = schedule.KindVisit
		}

		var patientID *uuid.UUID
		if req.PatientID != "" {
			id, err := uuid.Parse(req.PatientID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
				return
			}
			patientID = &id
		}

		appt, err := svc.CreateAppointment(r.Context(), clinic.NewAppointment{
			Kind:            kind,
			PatientID:       patientID,
			Start:           req.Start,
			DurationMinutes: req.DurationMinutes,
			Note:            req.Note,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func getAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func listDayHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "date")
		date, err := time.ParseInLocation(schedule.DateFormat, raw, svc.Timeline().Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted as YYYY-MM-DD")
			return
		}

		appts, err := svc.ListDay(r.Context(), date)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := DayResponse{Date: raw, Appointments: make([]AppointmentResponse, 0, len(appts))}
		for _, a := range appts {
			resp.Appointments = append(resp.Appointments, toAppointmentResponse(a))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func rescheduleAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}
		var req RescheduleRequest
		if !decode(w, r, &req) {
			return
		}

		res, err := svc.RescheduleAppointment(r.Context(), id, req.Start, req.DurationMinutes)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := RescheduleResponse{
			Appointment: toAppointmentResponse(res.Appointment),
			Shifts:      make([]ShiftResponse, 0, len(res.Shifts)),
		}
		for _, s := range res.Shifts {
			resp.Shifts = append(resp.Shifts, ShiftResponse{ID: s.ID, NewStart: s.NewStart, PastClosing: s.PastClosing})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func changeAppointmentStatusHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}
		var req StatusRequest
		if !decode(w, r, &req) {
			return
		}

		change, err := svc.ChangeAppointmentStatus(r.Context(), id, req.Status)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toStatusChangeResponse(change))
	}
}

func deleteAppointmentHandler(svc *clinic.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		change, err := svc.DeleteAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toStatusChangeResponse(change))
	}
}

func toStatusChangeResponse(change *clinic.StatusChange) StatusChangeResponse {
	resp := StatusChangeResponse{
		Appointment:     toAppointmentResponse(change.Appointment),
		PreviousNumber:  change.PreviousNumber,
		EffectiveStatus: change.EffectiveStatus,
		Warning:         change.Warning,
	}
	if change.Patient != nil {
		p := toPatientResponse(*change.Patient)
		resp.Patient = &p
	}
	return resp
}
