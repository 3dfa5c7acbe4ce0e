package schedule

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"time"

	"github.com/google/uuid"
)

const DateFormat = "2006-01-02"

// AppointmentLister is the read side of the appointment store the timeline
// needs. day is midnight of the requested calendar day.
type AppointmentLister interface {
	ListByDay(ctx context.Context, day time.Time) ([]Appointment, error)
}

// Timeline builds per-day views of the appointment store in the clinic's
// time zone.
type Timeline struct {
	store AppointmentLister
	loc   *time.Location
}

func NewTimeline(store AppointmentLister, loc *time.Location) *Timeline {
	if loc == nil {
		loc = time.Local
	}
	return &Timeline{store: store, loc: loc}
}

func (t *Timeline) Location() *time.Location {
	return t.loc
}

// DayOf returns midnight of the calendar day containing instant.
func (t *Timeline) DayOf(instant time.Time) time.Time {
	y, m, d := instant.In(t.loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.loc)
}

// DateKey renders the calendar day containing instant as YYYY-MM-DD.
func (t *Timeline) DateKey(instant time.Time) string {
	return instant.In(t.loc).Format(DateFormat)
}

// Load reads the non-deleted appointments of the day containing instant.
func (t *Timeline) Load(ctx context.Context, instant time.Time) (Day, error) {
	day := t.DayOf(instant)

	appts, err := t.store.ListByDay(ctx, day)
	if err != nil {
		return Day{}, fmt.Errorf("list appointments for %s: %w", day.Format(DateFormat), err)
	}

	return NewDay(day, appts), nil
}

// AppointmentsOnOrAfter lists the non-deleted appointments on instant's day
// starting at or after instant, ascending, skipping excluding.
func (t *Timeline) AppointmentsOnOrAfter(ctx context.Context, instant time.Time, excluding uuid.UUID) ([]Appointment, error) {
	day, err := t.Load(ctx, instant)
	if err != nil {
		return nil, err
	}

	var out []Appointment
	for a := range day.OnOrAfter(instant, excluding) {
		out = append(out, a)
	}
	return out, nil
}

func (t *Timeline) IsSlotAvailable(ctx context.Context, start time.Time, minutes int, excluding uuid.UUID) (bool, error) {
	day, err := t.Load(ctx, start)
	if err != nil {
		return false, err
	}
	return day.IsSlotAvailable(start, minutes, excluding), nil
}

// Day is an immutable, start-ordered view of one calendar day.
type Day struct {
	Date  time.Time
	appts []Appointment
}

// NewDay keeps the non-deleted appointments of date's calendar day and
// orders them by start.
func NewDay(date time.Time, appts []Appointment) Day {
	kept := make([]Appointment, 0, len(appts))
	for _, a := range appts {
		if a.Deleted() || !sameDay(date, a.Start) {
			continue
		}
		kept = append(kept, a)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Start.Before(kept[j].Start)
	})

	return Day{Date: date, appts: kept}
}

func (d Day) Len() int {
	return len(d.appts)
}

// All returns a copy of the day's appointments in start order.
func (d Day) All() []Appointment {
	out := make([]Appointment, len(d.appts))
	copy(out, d.appts)
	return out
}

// OnOrAfter yields the appointments starting at or after instant, in start
// order, skipping excluding. Each call restarts from the beginning.
func (d Day) OnOrAfter(instant time.Time, excluding uuid.UUID) iter.Seq[Appointment] {
	return func(yield func(Appointment) bool) {
		if !sameDay(d.Date, instant) {
			return
		}
		for _, a := range d.appts {
			if a.Start.Before(instant) || (excluding != uuid.Nil && a.ID == excluding) {
				continue
			}
			if !yield(a) {
				return
			}
		}
	}
}

// Overlaps reports whether the half-open windows of a and b intersect.
func Overlaps(a, b Appointment) bool {
	return a.Start.Before(b.End()) && a.End().After(b.Start)
}

// IsSlotAvailable reports whether [start, start+minutes) is free of
// non-exempt appointments other than excluding.
func (d Day) IsSlotAvailable(start time.Time, minutes int, excluding uuid.UUID) bool {
	candidate := Appointment{Start: start, DurationMinutes: minutes}
	for _, a := range d.appts {
		if a.Kind.Exempt() || (excluding != uuid.Nil && a.ID == excluding) {
			continue
		}
		if Overlaps(candidate, a) {
			return false
		}
	}
	return true
}

// OverlapsEarlier reports whether a non-exempt appointment that starts
// before a still runs into it. Reflow only pushes later appointments, so
// such a move has to be refused instead.
func (d Day) OverlapsEarlier(a Appointment) bool {
	for _, other := range d.appts {
		if !other.Start.Before(a.Start) {
			break
		}
		if other.Kind.Exempt() || other.ID == a.ID {
			continue
		}
		if Overlaps(a, other) {
			return true
		}
	}
	return false
}

// Conflicts returns every pair of overlapping non-exempt appointments.
func (d Day) Conflicts() [][2]Appointment {
	var out [][2]Appointment
	for i := 0; i < len(d.appts); i++ {
		if d.appts[i].Kind.Exempt() {
			continue
		}
		for j := i + 1; j < len(d.appts); j++ {
			if d.appts[j].Kind.Exempt() {
				continue
			}
			// sorted by start: nothing later can overlap i once j starts after i ends
			if !d.appts[j].Start.Before(d.appts[i].End()) {
				break
			}
			out = append(out, [2]Appointment{d.appts[i], d.appts[j]})
		}
	}
	return out
}
