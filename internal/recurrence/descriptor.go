package recurrence

import (
	"time"

	"github.com/teambition/rrule-go"
)

// Descriptor is the machine-readable recurrence summary attached to every
// derived occurrence: frequency, interval, selected days, and termination.
// It is computed from the source rule and never stored.
type Descriptor struct {
	Frequency   Frequency `json:"frequency"`
	Interval    int       `json:"interval"`
	Days        []string  `json:"days,omitempty"`
	Ends        Ends      `json:"ends,omitempty"`
	Until       string    `json:"until,omitempty"`
	Occurrences int       `json:"occurrences,omitempty"`
}

// DescribeMachine derives the recurrence descriptor for a rule.
func DescribeMachine(rule Rule) Descriptor {
	if !rule.IsRecurring() {
		return Descriptor{Frequency: FrequencyNever, Interval: 0}
	}

	d := Descriptor{
		Frequency: rule.Frequency,
		Interval:  1,
		Days:      canonicalDays(rule),
		Ends:      rule.Ends,
	}
	if rule.Frequency == FrequencyBiweekly {
		d.Interval = 2
	}
	switch rule.Ends {
	case EndsOnDate:
		d.Until = rule.EndDate
	case EndsAfterOccurrences:
		d.Occurrences = rule.Occurrences
	}
	return d
}

// RRule renders the descriptor as an RFC 5545 recurrence rule string, or ""
// for one-off rules and descriptors that cannot be expressed.
func (d Descriptor) RRule() string {
	var freq rrule.Frequency
	switch d.Frequency {
	case FrequencyWeekly, FrequencyBiweekly:
		freq = rrule.WEEKLY
	case FrequencyMonthly:
		freq = rrule.MONTHLY
	default:
		return ""
	}

	opt := rrule.ROption{
		Freq:     freq,
		Interval: d.Interval,
	}
	for _, name := range d.Days {
		if day, ok := ParseWeekday(name); ok {
			opt.Byweekday = append(opt.Byweekday, rruleWeekday(day))
		}
	}
	switch d.Ends {
	case EndsOnDate:
		// The termination date is inclusive, so the exported bound is the end
		// of that day. Midnight would exclude the occurrence on the date
		// itself.
		if until, ok := parseDate(d.Until, time.UTC); ok {
			opt.Until = until.Add(24*time.Hour - time.Second)
		}
	case EndsAfterOccurrences:
		if d.Occurrences > 0 {
			opt.Count = d.Occurrences
		}
	}

	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return ""
	}
	return rule.String()
}

func rruleWeekday(day time.Weekday) rrule.Weekday {
	switch day {
	case time.Monday:
		return rrule.MO
	case time.Tuesday:
		return rrule.TU
	case time.Wednesday:
		return rrule.WE
	case time.Thursday:
		return rrule.TH
	case time.Friday:
		return rrule.FR
	case time.Saturday:
		return rrule.SA
	default:
		return rrule.SU
	}
}

// scheduleOrder lists weekdays Monday-first, the order used for day listings
// in descriptors and summaries.
var scheduleOrder = []time.Weekday{
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
	time.Saturday,
	time.Sunday,
}

// canonicalDays returns the rule's resolvable weekday names in Monday-first
// order, with duplicates and unknown names dropped.
func canonicalDays(rule Rule) []string {
	set := rule.DaySet()
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for _, day := range scheduleOrder {
		if _, ok := set[day]; ok {
			out = append(out, WeekdayName(day))
		}
	}
	return out
}
