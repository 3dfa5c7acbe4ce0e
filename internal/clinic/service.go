package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling-core/internal/config"
	"github.com/hackgods/clinic-scheduling-core/internal/numbering"
	redisclient "github.com/hackgods/clinic-scheduling-core/internal/redis"
	"github.com/hackgods/clinic-scheduling-core/internal/schedule"
)

var (
	ErrSlotUnavailable = errors.New("slot overlaps an existing appointment")
	ErrBusy            = errors.New("schedule is being modified, please retry")

	errLockScopeChanged = errors.New("appointments moved to a day outside the held locks")
)

// deletePatientAttempts bounds how often DeletePatient widens its lock set
// when appointments appear on new days while it is acquiring locks.
const deletePatientAttempts = 3

type Service struct {
	repo        Repository
	locker      redisclient.Locker
	timeline    *schedule.Timeline
	resolver    *schedule.Resolver
	lifecycle   *numbering.Lifecycle
	coordinator *Coordinator
	log         zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, lifecycle *numbering.Lifecycle, cfg config.Config, log zerolog.Logger) *Service {
	hours := cfg.BusinessHours
	if hours == (schedule.BusinessHours{}) {
		hours = schedule.DefaultBusinessHours
	}

	return &Service{
		repo:        repo,
		locker:      locker,
		timeline:    schedule.NewTimeline(repo, cfg.Location),
		resolver:    schedule.NewResolver(hours, cfg.Location),
		lifecycle:   lifecycle,
		coordinator: NewCoordinator(repo, repo, lifecycle, log),
		log:         log,
	}
}

func (s *Service) Timeline() *schedule.Timeline {
	return s.timeline
}

// Lock keys

func (s *Service) dayKey(instant time.Time) string {
	return "lock:timeline:" + s.timeline.DateKey(instant)
}

func numberingKeys(cats ...numbering.Category) []string {
	if len(cats) == 0 {
		cats = numbering.Categories
	}
	keys := make([]string, 0, len(cats))
	for _, cat := range cats {
		keys = append(keys, "lock:numbering:"+string(cat))
	}
	return keys
}

func (s *Service) withLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	err := s.locker.WithLocks(ctx, keys, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return fmt.Errorf("%w: %v", ErrBusy, err)
	}
	return err
}

// BootstrapNumbering rebuilds the number pool from the numbers patients
// currently hold. It must run before the service handles requests.
func (s *Service) BootstrapNumbering(ctx context.Context) error {
	return s.withLocks(ctx, numberingKeys(), func(lockCtx context.Context) error {
		count, err := s.syncNumbering(lockCtx)
		if err != nil {
			return err
		}
		s.log.Info().Int("patients", count).Msg("patient number pool bootstrapped")
		return nil
	})
}

// syncNumbering reloads the pool from the store. Every process sharing the
// store allocates from the same state this way, as long as the caller holds
// the numbering locks.
func (s *Service) syncNumbering(ctx context.Context) (int, error) {
	patients, err := s.repo.ListPatients(ctx)
	if err != nil {
		return 0, fmt.Errorf("list patients: %w", err)
	}

	numbers := make([]string, 0, len(patients))
	for _, p := range patients {
		numbers = append(numbers, p.Number)
	}
	s.lifecycle.Bootstrap(numbers)
	return len(patients), nil
}

// Patients

func (s *Service) RegisterPatient(ctx context.Context, name string) (*Patient, error) {
	p := &Patient{
		ID:     uuid.New(),
		Name:   name,
		Number: numbering.NoNumber,
	}
	if err := s.repo.UpsertPatient(ctx, p); err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}

	s.logEvent(ctx, nil, &p.ID, EventPatientRegistered, map[string]any{"name": name})
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetPatient(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

// SetPatientStatus changes a patient's own status, for instance when the
// patient record is soft-deleted, and moves their number accordingly. An
// unrecognized status clears the number and is reported as a warning.
func (s *Service) SetPatientStatus(ctx context.Context, id uuid.UUID, status string) (*PatientUpdate, error) {
	var update *PatientUpdate

	err := s.withLocks(ctx, numberingKeys(), func(lockCtx context.Context) error {
		p, err := s.repo.GetPatient(lockCtx, id)
		if err != nil {
			return fmt.Errorf("load patient: %w", err)
		}
		if _, err := s.syncNumbering(lockCtx); err != nil {
			return err
		}

		previous := p.Number
		p.Status = status
		p.Number = s.lifecycle.AssignOrUpdate(previous, status)

		if err := s.repo.UpsertPatient(lockCtx, p); err != nil {
			s.lifecycle.Revert(previous, p.Number)
			return fmt.Errorf("save patient: %w", err)
		}

		update = &PatientUpdate{Patient: *p, PreviousNumber: previous}
		if !numbering.KnownStatus(status) {
			update.Warning = fmt.Sprintf("status %q has no patient number category", status)
		}

		s.logNumberChange(lockCtx, nil, p, previous)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return update, nil
}

// DeletePatient hard-deletes a patient. Their number becomes reusable and
// their remaining appointments are soft-deleted.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	for attempt := 1; attempt <= deletePatientAttempts; attempt++ {
		appts, err := s.repo.ListByPatient(ctx, id)
		if err != nil {
			return fmt.Errorf("list patient appointments: %w", err)
		}

		err = s.deletePatient(ctx, id, appts)
		if !errors.Is(err, errLockScopeChanged) {
			return err
		}
		s.log.Debug().
			Str("patient_id", id.String()).
			Int("attempt", attempt).
			Msg("patient appointments changed days, retrying with wider locks")
	}
	return fmt.Errorf("%w: %v", ErrBusy, errLockScopeChanged)
}

// deletePatient locks the numbering categories and the days of seen. It
// returns errLockScopeChanged if a live appointment sits on a day outside
// that set once the locks are held.
func (s *Service) deletePatient(ctx context.Context, id uuid.UUID, seen []schedule.Appointment) error {
	keys := numberingKeys()
	days := make(map[string]bool, len(seen))
	for _, a := range seen {
		key := s.dayKey(a.Start)
		keys = append(keys, key)
		days[key] = true
	}

	return s.withLocks(ctx, keys, func(lockCtx context.Context) error {
		p, err := s.repo.GetPatient(lockCtx, id)
		if err != nil {
			return fmt.Errorf("load patient: %w", err)
		}

		appts, err := s.repo.ListByPatient(lockCtx, id)
		if err != nil {
			return fmt.Errorf("list patient appointments: %w", err)
		}
		for _, a := range appts {
			if !a.Deleted() && !days[s.dayKey(a.Start)] {
				return errLockScopeChanged
			}
		}

		if _, err := s.syncNumbering(lockCtx); err != nil {
			return err
		}

		var written []schedule.Appointment
		for _, a := range appts {
			if a.Deleted() {
				continue
			}
			original := a
			a.Status = schedule.StatusDeleted
			if err := s.repo.UpsertAppointment(lockCtx, &a); err != nil {
				s.restoreAppointments(lockCtx, written)
				return fmt.Errorf("soft-delete appointment %s: %w", a.ID, err)
			}
			written = append(written, original)
		}

		if err := s.repo.DeletePatient(lockCtx, id); err != nil {
			s.restoreAppointments(lockCtx, written)
			return fmt.Errorf("delete patient: %w", err)
		}
		s.lifecycle.Release(p.Number)

		s.logEvent(lockCtx, nil, &p.ID, EventPatientDeleted, map[string]any{
			"released_number": p.Number,
			"appointments":    len(written),
		})
		return nil
	})
}

// restoreAppointments writes back the prior state of appointments changed
// by a batch that failed partway. Failures are logged; the batch error is
// what the caller reports.
func (s *Service) restoreAppointments(ctx context.Context, originals []schedule.Appointment) {
	ctx = context.WithoutCancel(ctx)
	for i := len(originals) - 1; i >= 0; i-- {
		a := originals[i]
		if err := s.repo.UpsertAppointment(ctx, &a); err != nil {
			s.log.Error().
				Err(err).
				Str("appointment_id", a.ID.String()).
				Msg("failed to restore appointment after partial write")
		}
	}
}

// Appointments

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*schedule.Appointment, error) {
	a, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

// ListDay returns the non-deleted appointments of the day containing date,
// ordered by start.
func (s *Service) ListDay(ctx context.Context, date time.Time) ([]schedule.Appointment, error) {
	day, err := s.timeline.Load(ctx, date)
	if err != nil {
		return nil, err
	}
	return day.All(), nil
}

// CreateAppointment schedules a new appointment in pending status. Visits
// must fit a free slot; lunch breaks and off-site blocks skip the
// availability check.
func (s *Service) CreateAppointment(ctx context.Context, req NewAppointment) (*schedule.Appointment, error) {
	appt := schedule.Appointment{
		ID:              uuid.New(),
		Kind:            req.Kind,
		PatientID:       req.PatientID,
		Start:           req.Start.In(s.timeline.Location()),
		DurationMinutes: req.DurationMinutes,
		Status:          schedule.StatusPending,
		Note:            req.Note,
	}

	if err := appt.Validate(); err != nil {
		return nil, err
	}
	if err := s.resolver.ValidateWindow(appt.Start, appt.End()); err != nil {
		return nil, err
	}

	if appt.PatientID != nil {
		if _, err := s.repo.GetPatient(ctx, *appt.PatientID); err != nil {
			if errors.Is(err, ErrPatientNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load patient: %w", err)
		}
	}

	err := s.withLocks(ctx, []string{s.dayKey(appt.Start)}, func(lockCtx context.Context) error {
		if !appt.Kind.Exempt() {
			free, err := s.timeline.IsSlotAvailable(lockCtx, appt.Start, appt.DurationMinutes, uuid.Nil)
			if err != nil {
				return fmt.Errorf("check slot: %w", err)
			}
			if !free {
				return ErrSlotUnavailable
			}
		}

		if err := s.repo.UpsertAppointment(lockCtx, &appt); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}

		s.logEvent(lockCtx, &appt.ID, appt.PatientID, EventAppointmentCreated, map[string]any{
			"kind":     appt.Kind,
			"start":    appt.Start,
			"duration": appt.DurationMinutes,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &appt, nil
}

// RescheduleAppointment moves or resizes an appointment and pushes later
// appointments of the same day forward until nothing overlaps. A window
// outside business hours, or one that runs into an earlier visit, is
// rejected before anything is written.
func (s *Service) RescheduleAppointment(ctx context.Context, id uuid.UUID, start time.Time, minutes int) (*Reschedule, error) {
	current, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if current.Deleted() {
		return nil, schedule.ErrAppointmentDeleted
	}

	changed := *current
	changed.Start = start.In(s.timeline.Location())
	changed.DurationMinutes = minutes

	if err := changed.Validate(); err != nil {
		return nil, err
	}
	if err := s.resolver.ValidateWindow(changed.Start, changed.End()); err != nil {
		return nil, err
	}

	var result *Reschedule

	keys := []string{s.dayKey(current.Start), s.dayKey(changed.Start)}
	err = s.withLocks(ctx, keys, func(lockCtx context.Context) error {
		fresh, err := s.repo.GetAppointment(lockCtx, id)
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}
		if fresh.Deleted() {
			return schedule.ErrAppointmentDeleted
		}
		changed.Status = fresh.Status

		day, err := s.timeline.Load(lockCtx, changed.Start)
		if err != nil {
			return err
		}

		if !changed.Kind.Exempt() && day.OverlapsEarlier(changed) {
			return ErrSlotUnavailable
		}

		shifts := s.resolver.Reflow(day, changed)

		byID := make(map[uuid.UUID]schedule.Appointment, day.Len())
		for _, a := range day.All() {
			byID[a.ID] = a
		}

		if err := s.repo.UpsertAppointment(lockCtx, &changed); err != nil {
			return fmt.Errorf("save appointment: %w", err)
		}

		// Prior states of everything written so far, restored if a later
		// write fails so the day never keeps half a cascade.
		written := []schedule.Appointment{*fresh}
		moved := make([]schedule.Appointment, 0, len(shifts))
		for _, shift := range shifts {
			a := byID[shift.ID]
			original := a
			a.Start = shift.NewStart
			if err := s.repo.UpsertAppointment(lockCtx, &a); err != nil {
				s.restoreAppointments(lockCtx, written)
				return fmt.Errorf("shift appointment %s: %w", a.ID, err)
			}
			written = append(written, original)
			moved = append(moved, a)
		}

		s.logEvent(lockCtx, &changed.ID, changed.PatientID, EventAppointmentRescheduled, map[string]any{
			"from_start":    fresh.Start,
			"from_duration": fresh.DurationMinutes,
			"start":         changed.Start,
			"duration":      changed.DurationMinutes,
		})
		for i, a := range moved {
			shift := shifts[i]
			if shift.PastClosing {
				s.log.Warn().
					Str("appointment_id", a.ID.String()).
					Time("start", a.Start).
					Time("end", a.End()).
					Msg("cascade pushed appointment past closing time")
			}
			s.logEvent(lockCtx, &a.ID, a.PatientID, EventAppointmentShifted, map[string]any{
				"cause":        changed.ID.String(),
				"from_start":   written[i+1].Start,
				"start":        a.Start,
				"past_closing": shift.PastClosing,
			})
		}

		result = &Reschedule{Appointment: changed, Shifts: shifts}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ChangeAppointmentStatus applies a status transition and updates the
// patient's effective status and number.
func (s *Service) ChangeAppointmentStatus(ctx context.Context, id uuid.UUID, rawStatus string) (*StatusChange, error) {
	status, ok := schedule.ParseStatus(rawStatus)
	if !ok {
		return nil, fmt.Errorf("%w: %q", schedule.ErrUnknownStatus, rawStatus)
	}

	current, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	// The target number category depends on the patient's other
	// appointments, so every category is locked.
	keys := append(numberingKeys(), s.dayKey(current.Start))

	var change *StatusChange
	err = s.withLocks(ctx, keys, func(lockCtx context.Context) error {
		fresh, err := s.repo.GetAppointment(lockCtx, id)
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}
		if fresh.PatientID != nil {
			if _, err := s.syncNumbering(lockCtx); err != nil {
				return err
			}
		}

		change, err = s.coordinator.OnStatusChange(lockCtx, *fresh, status)
		if err != nil {
			return err
		}

		s.logEvent(lockCtx, &fresh.ID, fresh.PatientID, EventAppointmentStatusChanged, map[string]any{
			"from": fresh.Status,
			"to":   status,
		})
		if change.Patient != nil {
			s.logNumberChange(lockCtx, &fresh.ID, change.Patient, change.PreviousNumber)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if change.Warning != "" {
		s.log.Warn().Str("appointment_id", id.String()).Msg(change.Warning)
	}
	return change, nil
}

// DeleteAppointment soft-deletes an appointment; the record is kept for
// history.
func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) (*StatusChange, error) {
	return s.ChangeAppointmentStatus(ctx, id, string(schedule.StatusDeleted))
}

// Events

func (s *Service) logNumberChange(ctx context.Context, appointmentID *uuid.UUID, p *Patient, previous string) {
	if p.Number == previous {
		return
	}
	s.logEvent(ctx, appointmentID, &p.ID, EventPatientNumberAssigned, map[string]any{
		"from":   previous,
		"to":     p.Number,
		"status": p.Status,
	})
}

func (s *Service) logEvent(ctx context.Context, appointmentID, patientID *uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		PatientID:     patientID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("failed to insert event log")
	}
}
