package recurrence

import (
	"fmt"
	"strings"
)

// Describe renders a rule as a human-readable recurrence summary using
// en-GB day and month formatting, e.g.
//
//	Single occurrence on Sunday, 15 June 2025
//	Repeats Mon-Wed-Fri every week until 12 Mar 2025
//	Repeats Sat-Sun every 2 weeks (3 times)
func Describe(rule Rule) string {
	loc := DefaultLocation()

	if !rule.IsRecurring() {
		date, ok := rule.OccurrenceDate(loc)
		if !ok {
			return "Single occurrence"
		}
		return "Single occurrence on " + date.Format("Monday, 2 January 2006")
	}

	var b strings.Builder
	b.WriteString("Repeats")
	if labels := shortDayLabels(rule); len(labels) > 0 {
		b.WriteString(" ")
		b.WriteString(strings.Join(labels, "-"))
	}
	b.WriteString(" every ")
	b.WriteString(intervalWord(rule.Frequency))

	switch rule.Ends {
	case EndsOnDate:
		if until, ok := rule.TerminationDate(loc); ok {
			b.WriteString(" until ")
			b.WriteString(until.Format("2 Jan 2006"))
		}
	case EndsAfterOccurrences:
		if rule.Occurrences > 0 {
			b.WriteString(fmt.Sprintf(" (%d times)", rule.Occurrences))
		}
	}

	return b.String()
}

func intervalWord(freq Frequency) string {
	switch freq {
	case FrequencyBiweekly:
		return "2 weeks"
	case FrequencyMonthly:
		return "month"
	default:
		return "week"
	}
}

func shortDayLabels(rule Rule) []string {
	set := rule.DaySet()
	if len(set) == 0 {
		return nil
	}
	labels := make([]string, 0, len(set))
	for _, day := range scheduleOrder {
		if _, ok := set[day]; ok {
			labels = append(labels, day.String()[:3])
		}
	}
	return labels
}
