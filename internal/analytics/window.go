package analytics

import (
	"time"
)

const (
	monthLayout    = "2006-01"
	trailingMonths = 12
)

// Clock supplies the reference instant for implicit "now" windows.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in the configured location.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time {
	return time.Time(c)
}

// Windows holds the date boundaries every dashboard figure is computed against.
type Windows struct {
	Now                   time.Time
	CurrentMonthStart     time.Time
	PreviousMonthStart    time.Time
	YearStart             time.Time
	Last30DaysStart       time.Time
	Last7DaysStart        time.Time
	Trailing12MonthsStart time.Time
}

// Resolve derives all reporting windows from now. Boundaries use now's location.
func Resolve(now time.Time) Windows {
	loc := now.Location()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return Windows{
		Now:                   now,
		CurrentMonthStart:     time.Date(y, m, 1, 0, 0, 0, 0, loc),
		PreviousMonthStart:    time.Date(y, m-1, 1, 0, 0, 0, 0, loc),
		YearStart:             time.Date(y, time.January, 1, 0, 0, 0, 0, loc),
		Last30DaysStart:       today.AddDate(0, 0, -30),
		Last7DaysStart:        today.AddDate(0, 0, -7),
		Trailing12MonthsStart: time.Date(y, m-(trailingMonths-1), 1, 0, 0, 0, 0, loc),
	}
}

// MonthIndex places t inside the trailing twelve month series.
func (w Windows) MonthIndex(t time.Time) (int, bool) {
	if t.Before(w.Trailing12MonthsStart) {
		return 0, false
	}
	t = t.In(w.Trailing12MonthsStart.Location())
	idx := (t.Year()-w.Trailing12MonthsStart.Year())*12 + int(t.Month()) - int(w.Trailing12MonthsStart.Month())
	if idx < 0 || idx >= trailingMonths {
		return 0, false
	}
	return idx, true
}

// MonthLabels returns the YYYY-MM label of each trailing month, oldest first.
func (w Windows) MonthLabels() []string {
	labels := make([]string, trailingMonths)
	for i := range labels {
		labels[i] = w.Trailing12MonthsStart.AddDate(0, i, 0).Format(monthLayout)
	}
	return labels
}

// Last30Days is the default range for ranking queries. It closes at the end
// of the current day so every request on the same day shares one cache key.
func (w Windows) Last30Days() DateRange {
	return DateRange{Start: w.Last30DaysStart, End: endOfDay(w.Now)}
}

// CurrentMonth spans the whole calendar month containing now.
func (w Windows) CurrentMonth() DateRange {
	return DateRange{Start: w.CurrentMonthStart, End: w.CurrentMonthStart.AddDate(0, 1, 0).Add(-time.Nanosecond)}
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location()).Add(-time.Nanosecond)
}

// DateRange is inclusive on both ends.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Validate rejects empty or inverted ranges.
func (r DateRange) Validate() error {
	if r.Start.IsZero() {
		return invalid("start", "required")
	}
	if r.End.IsZero() {
		return invalid("end", "required")
	}
	if r.Start.After(r.End) {
		return invalid("range", "start must not be after end")
	}
	return nil
}

// Contains reports whether t lies inside the range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// MonthRange expands a YYYY-MM period into a full calendar month.
func MonthRange(period string, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(monthLayout, period, loc)
	if err != nil {
		return DateRange{}, &ValidationError{Field: "period", Reason: "expected YYYY-MM", Err: err}
	}
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return DateRange{Start: start, End: end}, nil
}
