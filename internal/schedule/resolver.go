package schedule

import (
	"time"

	"github.com/google/uuid"
)

// Shift moves one appointment to a new start. PastClosing is set when the
// shifted appointment now ends after closing time; such shifts are still
// returned as-is.
type Shift struct {
	ID          uuid.UUID
	NewStart    time.Time
	PastClosing bool
}

// Resolver enforces business hours and pushes later appointments forward
// when one appointment's window changes.
type Resolver struct {
	hours BusinessHours
	loc   *time.Location
}

func NewResolver(hours BusinessHours, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{hours: hours, loc: loc}
}

func (r *Resolver) Hours() BusinessHours {
	return r.hours
}

// ValidateWindow returns ErrOutOfBusinessHours if [start, end) does not fit
// inside the clinic's opening hours.
func (r *Resolver) ValidateWindow(start, end time.Time) error {
	if !r.hours.Allows(start.In(r.loc), end.In(r.loc)) {
		return ErrOutOfBusinessHours
	}
	return nil
}

// Reflow walks the appointments after changed in start order and pushes
// each one that now overlaps its predecessor to the predecessor's end,
// keeping its duration. It stops at the first appointment that already
// starts at or after the running end.
//
// day must reflect the stored state of the other appointments; changed
// carries its new window.
func (r *Resolver) Reflow(day Day, changed Appointment) []Shift {
	var shifts []Shift
	cursor := changed.End()

	for a := range day.OnOrAfter(changed.Start, changed.ID) {
		if !a.Start.Before(cursor) {
			break
		}

		moved := a
		moved.Start = cursor
		shifts = append(shifts, Shift{
			ID:          a.ID,
			NewStart:    cursor,
			PastClosing: r.ValidateWindow(moved.Start, moved.End()) != nil,
		})
		cursor = moved.End()
	}

	return shifts
}
