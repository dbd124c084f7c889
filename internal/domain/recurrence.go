package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// MaxOccurrences caps how many slots one weekly pattern may expand to.
const MaxOccurrences = 366

var (
	ErrInvalidPattern     = errors.New("invalid availability pattern")
	ErrTooManyOccurrences = errors.New("availability pattern expands to too many slots")
)

// WeeklyAvailability is availability repeating on fixed weekdays at the wall
// clock time of First in Location.
type WeeklyAvailability struct {
	First      time.Time
	Duration   time.Duration
	Weekdays   []time.Weekday
	EveryWeeks int
	// Until and Count are optional bounds; zero means unbounded.
	Until    time.Time
	Count    int
	Location *time.Location
}

func (w WeeklyAvailability) validate() error {
	switch {
	case w.First.IsZero():
		return fmt.Errorf("%w: first occurrence is required", ErrInvalidPattern)
	case w.Duration <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidPattern)
	case len(w.Weekdays) == 0:
		return fmt.Errorf("%w: at least one weekday is required", ErrInvalidPattern)
	case w.EveryWeeks < 0 || w.Count < 0:
		return fmt.Errorf("%w: interval and count must not be negative", ErrInvalidPattern)
	case !w.Until.IsZero() && w.Until.Before(w.First):
		return fmt.Errorf("%w: until is before the first occurrence", ErrInvalidPattern)
	}
	for _, wd := range w.Weekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("%w: invalid weekday", ErrInvalidPattern)
		}
	}
	return nil
}

// Occurrences expands the pattern into the intervals lying entirely inside
// window, in chronological order. Count is measured from First, not from the
// start of the window.
func (w WeeklyAvailability) Occurrences(window Interval) ([]Interval, error) {
	if err := w.validate(); err != nil {
		return nil, err
	}
	if !window.Valid() {
		return nil, ErrInvalidInterval
	}

	rule, err := w.rule()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}

	var out []Interval
	next := rule.Iterator()
	for {
		start, ok := next()
		if !ok || start.After(window.End) {
			return out, nil
		}
		iv := Interval{Start: start.UTC(), End: start.Add(w.Duration).UTC()}
		if !iv.Within(window) {
			continue
		}
		if len(out) == MaxOccurrences {
			return nil, ErrTooManyOccurrences
		}
		out = append(out, iv)
	}
}

// rule builds the weekly RRULE anchored at First. Weeks start on Monday so
// EveryWeeks groups weekdays the way a calendar week does.
func (w WeeklyAvailability) rule() (*rrule.RRule, error) {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	opt := rrule.ROption{
		Freq:      rrule.WEEKLY,
		Dtstart:   w.First.In(loc),
		Interval:  w.EveryWeeks,
		Wkst:      rrule.MO,
		Byweekday: make([]rrule.Weekday, 0, len(w.Weekdays)),
		Count:     w.Count,
	}
	if !w.Until.IsZero() {
		opt.Until = w.Until.In(loc)
	}
	for _, wd := range w.Weekdays {
		opt.Byweekday = append(opt.Byweekday, weekdays[wd])
	}
	return rrule.NewRRule(opt)
}

var weekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}
