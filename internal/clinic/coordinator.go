package clinic

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-scheduling-core/internal/numbering"
	"github.com/hackgods/clinic-scheduling-core/internal/schedule"
)

// Coordinator applies an appointment status change together with the
// resulting change to the patient's effective status and number.
type Coordinator struct {
	patients  PatientStore
	appts     AppointmentStore
	lifecycle *numbering.Lifecycle
	log       zerolog.Logger
}

func NewCoordinator(patients PatientStore, appts AppointmentStore, lifecycle *numbering.Lifecycle, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		patients:  patients,
		appts:     appts,
		lifecycle: lifecycle,
		log:       log,
	}
}

// OnStatusChange moves appt to newStatus and brings its patient, if any, in
// line. The caller holds the locks for the appointment's day and for the
// number categories.
func (c *Coordinator) OnStatusChange(ctx context.Context, appt schedule.Appointment, newStatus schedule.Status) (*StatusChange, error) {
	if err := schedule.CheckTransition(appt.Status, newStatus); err != nil {
		return nil, err
	}

	previousStatus := appt.Status
	appt.Status = newStatus
	if err := c.appts.UpsertAppointment(ctx, &appt); err != nil {
		return nil, fmt.Errorf("save appointment status: %w", err)
	}

	change := &StatusChange{Appointment: appt}

	if appt.PatientID == nil {
		return change, nil
	}

	patient, err := c.patients.GetPatient(ctx, *appt.PatientID)
	if errors.Is(err, ErrPatientNotFound) {
		c.log.Warn().
			Str("appointment_id", appt.ID.String()).
			Str("patient_id", appt.PatientID.String()).
			Msg("appointment references a missing patient, skipping number update")
		return change, nil
	}
	if err != nil {
		return nil, c.undoStatus(ctx, appt, previousStatus, fmt.Errorf("load patient: %w", err))
	}

	siblings, err := c.appts.ListByPatient(ctx, patient.ID)
	if err != nil {
		return nil, c.undoStatus(ctx, appt, previousStatus, fmt.Errorf("list patient appointments: %w", err))
	}

	effective := EffectiveStatus(siblings, appt)

	previousNumber := patient.Number
	assigned := c.lifecycle.AssignOrUpdate(previousNumber, effective)

	updated := *patient
	updated.Status = effective
	updated.Number = assigned
	if err := c.patients.UpsertPatient(ctx, &updated); err != nil {
		c.lifecycle.Revert(previousNumber, assigned)
		return nil, c.undoStatus(ctx, appt, previousStatus, fmt.Errorf("save patient: %w", err))
	}

	change.Patient = &updated
	change.PreviousNumber = previousNumber
	change.EffectiveStatus = effective
	if !numbering.KnownStatus(effective) {
		change.Warning = fmt.Sprintf("status %q has no patient number category", effective)
	}

	return change, nil
}

// undoStatus restores the appointment's previous status after a later step
// failed, so that no partial change is left behind.
func (c *Coordinator) undoStatus(ctx context.Context, appt schedule.Appointment, previous schedule.Status, cause error) error {
	appt.Status = previous
	if err := c.appts.UpsertAppointment(ctx, &appt); err != nil {
		c.log.Error().Err(err).
			Str("appointment_id", appt.ID.String()).
			Msg("failed to restore appointment status")
	}
	return cause
}

// EffectiveStatus derives a patient's status from their appointments after
// changed has been applied. Any validated, non-deleted appointment makes the
// patient validated. Otherwise the patient follows changed, or, when changed
// was deleted, the latest remaining appointment. A patient with nothing left
// falls back to "-".
func EffectiveStatus(appts []schedule.Appointment, changed schedule.Appointment) string {
	var latest *schedule.Appointment

	consider := func(a schedule.Appointment) bool {
		if a.Deleted() {
			return false
		}
		if a.Status == schedule.StatusValidated {
			return true
		}
		if latest == nil || a.Start.After(latest.Start) {
			cp := a
			latest = &cp
		}
		return false
	}

	if consider(changed) {
		return string(schedule.StatusValidated)
	}
	for _, a := range appts {
		if a.ID == changed.ID {
			continue
		}
		if consider(a) {
			return string(schedule.StatusValidated)
		}
	}

	if !changed.Deleted() {
		return string(changed.Status)
	}
	if latest != nil {
		return string(latest.Status)
	}
	return numbering.NoNumber
}
