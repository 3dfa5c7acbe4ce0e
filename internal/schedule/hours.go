package schedule

import (
	"errors"
	"fmt"
	"time"
)

const clockFormat = "15:04"

var ErrOutOfBusinessHours = errors.New("appointment is outside business hours")

// BusinessHours is the daily opening window as offsets from midnight.
type BusinessHours struct {
	Open  time.Duration
	Close time.Duration
}

var DefaultBusinessHours = BusinessHours{Open: 9 * time.Hour, Close: 21 * time.Hour}

// ParseBusinessHours parses "HH:MM" opening and closing times.
func ParseBusinessHours(opening, closing string) (BusinessHours, error) {
	o, err := parseClock(opening)
	if err != nil {
		return BusinessHours{}, fmt.Errorf("parse opening time: %w", err)
	}
	c, err := parseClock(closing)
	if err != nil {
		return BusinessHours{}, fmt.Errorf("parse closing time: %w", err)
	}
	if c <= o {
		return BusinessHours{}, fmt.Errorf("closing time %s is not after opening time %s", closing, opening)
	}
	return BusinessHours{Open: o, Close: c}, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse(clockFormat, s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func (h BusinessHours) String() string {
	return fmt.Sprintf("%s-%s", formatClock(h.Open), formatClock(h.Close))
}

func formatClock(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// Allows reports whether [start, end) fits inside the opening window. Only the
// time of day is compared; an end that lands on a later calendar day is past
// closing.
func (h BusinessHours) Allows(start, end time.Time) bool {
	if timeOfDay(start) < h.Open {
		return false
	}
	if !sameDay(start, end) || timeOfDay(end) > h.Close {
		return false
	}
	return true
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
