package recurrence

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Frequency identifies how often an availability rule repeats.
type Frequency string

const (
	// FrequencyNever marks a one-off rule producing a single occurrence.
	FrequencyNever Frequency = "never"
	// FrequencyWeekly repeats on the selected weekdays every week.
	FrequencyWeekly Frequency = "weekly"
	// FrequencyBiweekly repeats on the selected weekdays every other week.
	FrequencyBiweekly Frequency = "biweekly"
	// FrequencyMonthly repeats on the selected weekdays every month.
	FrequencyMonthly Frequency = "monthly"
)

// Ends identifies the termination policy of a recurring rule.
type Ends string

const (
	// EndsNever lets a recurring rule run indefinitely, bounded only by the query window.
	EndsNever Ends = "never"
	// EndsOnDate terminates a recurring rule on a calendar date, inclusive.
	EndsOnDate Ends = "on_date"
	// EndsAfterOccurrences terminates a recurring rule after a fixed number of occurrences.
	EndsAfterOccurrences Ends = "after_occurrences"
)

// Rule is a worker's declared availability window, either one-off or recurring.
//
// EndDate is overloaded: for one-off rules (FrequencyNever) it holds the date
// of the single occurrence; for recurring rules it is only meaningful when
// Ends is EndsOnDate, where it holds the inclusive termination date. Callers
// must go through OccurrenceDate and TerminationDate instead of reading the
// raw field.
type Rule struct {
	ID          string
	WorkerID    string
	StartTime   string // wall clock, HH:MM, 24 hour
	EndTime     string // wall clock, HH:MM, strictly after StartTime
	Days        []string
	Frequency   Frequency
	Ends        Ends
	EndDate     string // calendar date, YYYY-MM-DD
	Occurrences int
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsRecurring reports whether the rule produces more than one occurrence.
func (r Rule) IsRecurring() bool {
	return r.Frequency != "" && r.Frequency != FrequencyNever
}

// OccurrenceDate resolves the single-occurrence date of a one-off rule.
func (r Rule) OccurrenceDate(loc *time.Location) (time.Time, bool) {
	if r.IsRecurring() {
		return time.Time{}, false
	}
	return parseDate(r.EndDate, loc)
}

// TerminationDate resolves the inclusive end date of a recurring rule that
// ends on a fixed date.
func (r Rule) TerminationDate(loc *time.Location) (time.Time, bool) {
	if !r.IsRecurring() || r.Ends != EndsOnDate {
		return time.Time{}, false
	}
	return parseDate(r.EndDate, loc)
}

// DaySet resolves the rule's weekday names into a set. Unknown names are
// ignored rather than rejected; a rule with no resolvable day never matches.
func (r Rule) DaySet() map[time.Weekday]struct{} {
	set := make(map[time.Weekday]struct{}, len(r.Days))
	for _, name := range r.Days {
		if day, ok := ParseWeekday(name); ok {
			set[day] = struct{}{}
		}
	}
	return set
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday maps a lower-case weekday name onto time.Weekday.
func ParseWeekday(name string) (time.Weekday, bool) {
	day, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	return day, ok
}

// WeekdayName returns the canonical lower-case name for a weekday.
func WeekdayName(day time.Weekday) string {
	return strings.ToLower(day.String())
}

// Clock is a parsed wall-clock time of day.
type Clock struct {
	Hour   int
	Minute int
}

// Minutes returns the clock as minutes past midnight, used for interval
// overlap arithmetic.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

// ParseClock parses a strict HH:MM 24-hour time string.
func ParseClock(value string) (Clock, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return Clock{}, fmt.Errorf("recurrence: malformed time %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("recurrence: malformed time %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("recurrence: malformed time %q", value)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// clockRange parses both rule clocks, reporting an error when either is
// malformed or the span is not strictly forward within one day.
func (r Rule) clockRange() (Clock, Clock, error) {
	start, err := ParseClock(r.StartTime)
	if err != nil {
		return Clock{}, Clock{}, err
	}
	end, err := ParseClock(r.EndTime)
	if err != nil {
		return Clock{}, Clock{}, err
	}
	if start.Minutes() >= end.Minutes() {
		return Clock{}, Clock{}, fmt.Errorf("recurrence: rule %s has inverted time span", r.ID)
	}
	return start, end, nil
}

func parseDate(value string, loc *time.Location) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
