package fleet

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - A calendar day, independent of time of day
// =============================================================================

// DayLayout is the ISO layout used for entry dates and file name stamps.
const DayLayout = "2006-01-02"

// Day is a civil date. The zero value means "no day".
type Day struct {
	Time time.Time // always midnight UTC
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDay parses "YYYY-MM-DD".
func ParseDay(s string) (Day, error) {
	t, err := time.Parse(DayLayout, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid day %q (use YYYY-MM-DD): %w", s, err)
	}
	return NewDay(t.Year(), t.Month(), t.Day()), nil
}

// DayOf returns the calendar day of an epoch-millis timestamp in loc.
func DayOf(millis int64, loc *time.Location) Day {
	return DayOfTime(time.UnixMilli(millis), loc)
}

// DayOfTime returns the calendar day of t in loc.
func DayOfTime(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return NewDay(t.Year(), t.Month(), t.Day())
}

// Comparison
func (d Day) Equal(other Day) bool  { return d.Time.Equal(other.Time) }
func (d Day) Before(other Day) bool { return d.Time.Before(other.Time) }
func (d Day) After(other Day) bool  { return d.Time.After(other.Time) }
func (d Day) IsZero() bool          { return d.Time.IsZero() }

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time.Format(DayLayout)
}

// EntryDay resolves the calendar day of an entry. The timestamp wins; a
// non-positive timestamp falls back to the stored date. ok is false when
// neither is usable.
func EntryDay(e Entry, loc *time.Location) (Day, bool) {
	if e.Stamp() > 0 {
		return DayOf(e.Stamp(), loc), true
	}
	d, err := ParseDay(e.DateString())
	if err != nil {
		return Day{}, false
	}
	return d, true
}

// =============================================================================
// DAY RANGE - Inclusive [From, To]; a zero bound is open
// =============================================================================

type DayRange struct {
	From Day
	To   Day
}

// Contains returns true if d is within the range.
func (r DayRange) Contains(d Day) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}

func (r DayRange) Validate() error {
	if !r.From.IsZero() && !r.To.IsZero() && r.To.Before(r.From) {
		return ErrInvalidRange
	}
	return nil
}

func (r DayRange) String() string {
	return "[" + r.From.String() + ", " + r.To.String() + "]"
}

// ToMillis converts t to epoch milliseconds, the entry timestamp unit.
func ToMillis(t time.Time) int64 {
	return t.UnixMilli()
}
