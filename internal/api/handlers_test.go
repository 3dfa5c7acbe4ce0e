package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling-core/internal/clinic"
	"github.com/hackgods/clinic-scheduling-core/internal/config"
	"github.com/hackgods/clinic-scheduling-core/internal/numbering"
	redisclient "github.com/hackgods/clinic-scheduling-core/internal/redis"
	"github.com/hackgods/clinic-scheduling-core/internal/schedule"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Config{Location: time.UTC, BusinessHours: schedule.DefaultBusinessHours}
	svc := clinic.NewService(
		clinic.NewMemoryRepository(),
		redisclient.NewLocalLocker(),
		numbering.NewLifecycle(numbering.NewPool()),
		cfg,
		zerolog.Nop(),
	)

	srv := httptest.NewServer(NewRouter(RouterConfig{Service: svc, Logger: zerolog.Nop(), Env: "test"}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any, out any) int {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestAPI_AppointmentFlow(t *testing.T) {
	srv := newTestServer(t)
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	var patient PatientResponse
	if code := do(t, srv, http.MethodPost, "/patients", CreatePatientRequest{Name: "Ada"}, &patient); code != http.StatusCreated {
		t.Fatalf("create patient: status %d", code)
	}
	if patient.Number != numbering.NoNumber {
		t.Errorf("expected no number, got %s", patient.Number)
	}

	var first AppointmentResponse
	code := do(t, srv, http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID: patient.ID.String(), Start: start, DurationMinutes: 30,
	}, &first)
	if code != http.StatusCreated {
		t.Fatalf("create appointment: status %d", code)
	}
	if first.Kind != string(schedule.KindVisit) || !first.End.Equal(start.Add(30*time.Minute)) {
		t.Errorf("unexpected appointment %+v", first)
	}

	var errResp ErrorResponse
	code = do(t, srv, http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID: patient.ID.String(), Start: start.Add(15 * time.Minute), DurationMinutes: 30,
	}, &errResp)
	if code != http.StatusConflict || errResp.Error != "slot_unavailable" {
		t.Errorf("expected 409 slot_unavailable, got %d %+v", code, errResp)
	}

	var second AppointmentResponse
	do(t, srv, http.MethodPost, "/appointments", CreateAppointmentRequest{
		PatientID: patient.ID.String(), Start: start.Add(30 * time.Minute), DurationMinutes: 30,
	}, &second)

	var moved RescheduleResponse
	code = do(t, srv, http.MethodPut, "/appointments/"+first.ID.String()+"/window", RescheduleRequest{
		Start: start, DurationMinutes: 60,
	}, &moved)
	if code != http.StatusOK {
		t.Fatalf("reschedule: status %d", code)
	}
	if len(moved.Shifts) != 1 || moved.Shifts[0].ID != second.ID || !moved.Shifts[0].NewStart.Equal(start.Add(time.Hour)) {
		t.Errorf("unexpected shifts %+v", moved.Shifts)
	}

	var change StatusChangeResponse
	code = do(t, srv, http.MethodPut, "/appointments/"+first.ID.String()+"/status", StatusRequest{Status: "Confirmed"}, &change)
	if code != http.StatusOK {
		t.Fatalf("change status: status %d", code)
	}
	if change.Patient == nil || change.Patient.Number != "P0001" {
		t.Errorf("expected P0001, got %+v", change.Patient)
	}

	var day DayResponse
	if code := do(t, srv, http.MethodGet, "/days/2025-03-10/appointments", nil, &day); code != http.StatusOK {
		t.Fatalf("list day: status %d", code)
	}
	if len(day.Appointments) != 2 || day.Appointments[0].ID != first.ID {
		t.Errorf("unexpected day %+v", day)
	}
}

func TestAPI_Errors(t *testing.T) {
	srv := newTestServer(t)
	late := time.Date(2025, 3, 10, 20, 45, 0, 0, time.UTC)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"bad patient id", http.MethodGet, "/patients/nope", nil, http.StatusBadRequest, "invalid_patient_id"},
		{"missing patient", http.MethodGet, "/patients/1b4e28ba-2fa1-11d2-883f-0016d3cca427", nil, http.StatusNotFound, "patient_not_found"},
		{"missing appointment", http.MethodPut, "/appointments/1b4e28ba-2fa1-11d2-883f-0016d3cca427/status", StatusRequest{Status: "validated"}, http.StatusNotFound, "appointment_not_found"},
		{"unknown status", http.MethodPut, "/appointments/1b4e28ba-2fa1-11d2-883f-0016d3cca427/status", StatusRequest{Status: "archived"}, http.StatusBadRequest, "unknown_status"},
		{"out of hours", http.MethodPost, "/appointments", CreateAppointmentRequest{Kind: "off_site", Start: late, DurationMinutes: 30}, http.StatusUnprocessableEntity, "out_of_business_hours"},
		{"visit without patient", http.MethodPost, "/appointments", CreateAppointmentRequest{Start: late.Add(-2 * time.Hour), DurationMinutes: 30}, http.StatusBadRequest, "invalid_appointment"},
		{"bad date", http.MethodGet, "/days/10-03-2025/appointments", nil, http.StatusBadRequest, "invalid_date"},
		{"empty name", http.MethodPost, "/patients", CreatePatientRequest{}, http.StatusBadRequest, "invalid_patient"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp ErrorResponse
			status := do(t, srv, tt.method, tt.path, tt.body, &resp)
			if status != tt.status || resp.Error != tt.code {
				t.Errorf("expected %d %s, got %d %s", tt.status, tt.code, status, resp.Error)
			}
		})
	}
}

func TestAPI_Health(t *testing.T) {
	srv := newTestServer(t)

	var ready ReadinessResponse
	if code := do(t, srv, http.MethodGet, "/health/ready", nil, &ready); code != http.StatusOK {
		t.Fatalf("ready: status %d", code)
	}
	if ready.Status != "ok" || ready.Dependencies["postgres"] != "disabled" || ready.Dependencies["redis"] != "disabled" {
		t.Errorf("unexpected readiness %+v", ready)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(GetRequestID(r.Context())))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Body.String() != "abc" || rec.Header().Get("X-Request-ID") != "abc" {
		t.Errorf("expected request id to be propagated, got %q", rec.Body.String())
	}
}
