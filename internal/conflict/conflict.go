// Package conflict detects temporal overlap between availability rules.
//
// Detection is deliberately conservative: it is used to warn workers about
// overlapping declarations before saving, never to reject a save, so false
// positives are acceptable and false negatives are not.
package conflict

import (
	"time"

	"github.com/example/able-marketplace/internal/recurrence"
)

// Conflict identifies an existing rule that overlaps a candidate rule.
type Conflict struct {
	WithRuleID string
}

// Overlaps reports whether two availability rules can ever occupy the same
// wall-clock window. Checks run cheapest first and short-circuit:
//
//  1. Time-of-day overlap (half-open): no shared minutes means no conflict
//     regardless of dates.
//  2. Both one-off: conflict only on the identical calendar date.
//  3. Both recurring: conflict on any shared weekday. Termination differences
//     are ignored at this level.
//  4. Mixed: conflict when the one-off's date falls on one of the recurring
//     rule's weekdays.
func Overlaps(a, b recurrence.Rule) bool {
	if !clocksOverlap(a, b) {
		return false
	}

	switch {
	case !a.IsRecurring() && !b.IsRecurring():
		dateA, okA := a.OccurrenceDate(time.UTC)
		dateB, okB := b.OccurrenceDate(time.UTC)
		return okA && okB && sameDate(dateA, dateB)
	case a.IsRecurring() && b.IsRecurring():
		return shareWeekday(a.DaySet(), b.DaySet())
	default:
		oneOff, recurring := a, b
		if a.IsRecurring() {
			oneOff, recurring = b, a
		}
		date, ok := oneOff.OccurrenceDate(time.UTC)
		if !ok {
			return false
		}
		_, hit := recurring.DaySet()[date.Weekday()]
		return hit
	}
}

// Detect compares a candidate rule against a set of existing rules and
// returns one Conflict per overlapping rule, in input order. The candidate
// itself (matched by ID) is skipped so updates do not conflict with their own
// stored copy.
func Detect(existing []recurrence.Rule, candidate recurrence.Rule) []Conflict {
	var conflicts []Conflict
	for _, rule := range existing {
		if rule.ID != "" && rule.ID == candidate.ID {
			continue
		}
		if Overlaps(rule, candidate) {
			conflicts = append(conflicts, Conflict{WithRuleID: rule.ID})
		}
	}
	return conflicts
}

func clocksOverlap(a, b recurrence.Rule) bool {
	aStart, err := recurrence.ParseClock(a.StartTime)
	if err != nil {
		return false
	}
	aEnd, err := recurrence.ParseClock(a.EndTime)
	if err != nil {
		return false
	}
	bStart, err := recurrence.ParseClock(b.StartTime)
	if err != nil {
		return false
	}
	bEnd, err := recurrence.ParseClock(b.EndTime)
	if err != nil {
		return false
	}
	return aStart.Minutes() < bEnd.Minutes() && bStart.Minutes() < aEnd.Minutes()
}

func shareWeekday(a, b map[time.Weekday]struct{}) bool {
	for day := range a {
		if _, ok := b[day]; ok {
			return true
		}
	}
	return false
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
