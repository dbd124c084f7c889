package domain

import (
	"errors"
	"testing"
	"time"
)

func TestWeeklyAvailability_Validation(t *testing.T) {
	base := WeeklyAvailability{
		First:    time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		Duration: time.Hour,
		Weekdays: []time.Weekday{time.Monday},
	}
	window := Interval{Start: base.First, End: base.First.Add(7 * 24 * time.Hour)}

	tests := []struct {
		name    string
		pattern func() WeeklyAvailability
		wantErr error
	}{
		{"missing first", func() WeeklyAvailability { p := base; p.First = time.Time{}; return p }, ErrInvalidPattern},
		{"zero duration", func() WeeklyAvailability { p := base; p.Duration = 0; return p }, ErrInvalidPattern},
		{"no weekdays", func() WeeklyAvailability { p := base; p.Weekdays = nil; return p }, ErrInvalidPattern},
		{"bad weekday", func() WeeklyAvailability { p := base; p.Weekdays = []time.Weekday{9}; return p }, ErrInvalidPattern},
		{"negative count", func() WeeklyAvailability { p := base; p.Count = -1; return p }, ErrInvalidPattern},
		{"until before first", func() WeeklyAvailability { p := base; p.Until = base.First.Add(-time.Hour); return p }, ErrInvalidPattern},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.pattern().Occurrences(window)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := base.Occurrences(Interval{Start: window.End, End: window.Start}); !errors.Is(err, ErrInvalidInterval) {
		t.Fatalf("inverted window err = %v, want %v", err, ErrInvalidInterval)
	}
}

func TestWeeklyAvailability_ExpandsWeekdaysInOrder(t *testing.T) {
	// Wednesday 2026-01-07 10:00 UTC.
	first := time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC)
	p := WeeklyAvailability{
		First:    first,
		Duration: 30 * time.Minute,
		Weekdays: []time.Weekday{time.Friday, time.Monday, time.Wednesday, time.Monday},
	}
	window := Interval{Start: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)}

	got, err := p.Occurrences(window)
	if err != nil {
		t.Fatalf("Occurrences error: %v", err)
	}

	want := []time.Time{
		time.Date(2026, 1, 7, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 9, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 14, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 16, 10, 0, 0, 0, time.UTC),
	}
	if len(got) != len(want) {
		t.Fatalf("occurrences = %d, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Start.Equal(want[i]) || got[i].Duration() != 30*time.Minute {
			t.Fatalf("occurrence[%d] = %v..%v, want start %v", i, got[i].Start, got[i].End, want[i])
		}
	}
}

func TestWeeklyAvailability_EveryOtherWeekWithCount(t *testing.T) {
	first := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	p := WeeklyAvailability{
		First:      first,
		Duration:   time.Hour,
		Weekdays:   []time.Weekday{time.Monday},
		EveryWeeks: 2,
		Count:      3,
	}
	window := Interval{Start: first, End: first.AddDate(0, 3, 0)}

	got, err := p.Occurrences(window)
	if err != nil {
		t.Fatalf("Occurrences error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("occurrences = %d, want 3", len(got))
	}
	if !got[2].Start.Equal(first.AddDate(0, 0, 28)) {
		t.Fatalf("third occurrence = %v, want %v", got[2].Start, first.AddDate(0, 0, 28))
	}
}

func TestWeeklyAvailability_CountStartsAtFirstNotWindow(t *testing.T) {
	first := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	p := WeeklyAvailability{First: first, Duration: time.Hour, Weekdays: []time.Weekday{time.Monday}, Count: 2}

	// The window starts after both counted occurrences.
	got, err := p.Occurrences(Interval{Start: first.AddDate(0, 0, 14), End: first.AddDate(0, 0, 60)})
	if err != nil {
		t.Fatalf("Occurrences error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("occurrences = %v, want none", got)
	}
}

func TestWeeklyAvailability_UntilIsInclusive(t *testing.T) {
	first := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	p := WeeklyAvailability{
		First:    first,
		Duration: time.Hour,
		Weekdays: []time.Weekday{time.Monday},
		Until:    first.AddDate(0, 0, 7),
	}

	got, err := p.Occurrences(Interval{Start: first, End: first.AddDate(0, 1, 0)})
	if err != nil {
		t.Fatalf("Occurrences error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("occurrences = %d, want 2", len(got))
	}
}

func TestWeeklyAvailability_KeepsWallClockAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	// DST starts on 2026-03-08 in New York.
	first := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)
	p := WeeklyAvailability{First: first, Duration: time.Hour, Weekdays: []time.Weekday{time.Monday}, Location: loc}

	got, err := p.Occurrences(Interval{Start: first, End: first.AddDate(0, 0, 10)})
	if err != nil {
		t.Fatalf("Occurrences error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("occurrences = %d, want 2", len(got))
	}
	if h := got[1].Start.In(loc).Hour(); h != 9 {
		t.Fatalf("second occurrence local hour = %d, want 9", h)
	}
	if got[1].Start.Sub(got[0].Start) != 7*24*time.Hour-time.Hour {
		t.Fatalf("gap = %s, want 167h", got[1].Start.Sub(got[0].Start))
	}
}

func TestWeeklyAvailability_RejectsOversizedExpansion(t *testing.T) {
	first := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	p := WeeklyAvailability{
		First:    first,
		Duration: time.Hour,
		Weekdays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	}

	_, err := p.Occurrences(Interval{Start: first, End: first.AddDate(3, 0, 0)})
	if !errors.Is(err, ErrTooManyOccurrences) {
		t.Fatalf("err = %v, want %v", err, ErrTooManyOccurrences)
	}
}
