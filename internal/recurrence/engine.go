package recurrence

import (
	"fmt"
	"sort"
	"time"
)

// Engine expands availability rules into concrete occurrences.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that materializes occurrences in the
// provided location. If loc is nil, Europe/London is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = DefaultLocation()
	}
	return &Engine{location: loc}
}

// Location returns the engine's display location.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return DefaultLocation()
	}
	return e.location
}

// DefaultLocation resolves the canonical display timezone, falling back to
// UTC when the zone database is unavailable.
func DefaultLocation() *time.Location {
	if loc, err := time.LoadLocation("Europe/London"); err == nil {
		return loc
	}
	return time.UTC
}

// Occurrence is one concrete calendar instance of a rule. Occurrences are
// derived on every read and never persisted; the ID is a stable composite of
// the rule ID and the occurrence date so re-expansion is idempotent.
type Occurrence struct {
	ID           string
	Start        time.Time
	End          time.Time
	IsRecurring  bool
	Descriptor   Descriptor
	SourceRuleID string
}

// Expand materializes every occurrence of the given rules that falls within
// [windowStart, windowEnd].
//
// The effective expansion start is the later of windowStart and now's
// midnight: past occurrences are never produced, regardless of how far back
// the window reaches. Rules with malformed clock strings are skipped
// entirely; a corrupt record must not blank the calendar. Output is ordered
// ascending by start time, with the source rule ID as tiebreak so repeated
// expansions of identical input are byte-for-byte identical.
func (e *Engine) Expand(rules []Rule, windowStart, windowEnd, now time.Time) []Occurrence {
	loc := e.Location()

	today := startOfDay(now.In(loc))
	startDay := startOfDay(windowStart.In(loc))
	if today.After(startDay) {
		startDay = today
	}
	endDay := startOfDay(windowEnd.In(loc))
	if endDay.Before(startDay) {
		return nil
	}

	occurrences := make([]Occurrence, 0)
	for _, rule := range rules {
		occurrences = append(occurrences, e.expandRule(rule, startDay, endDay, today)...)
	}

	sort.SliceStable(occurrences, func(i, j int) bool {
		if occurrences[i].Start.Equal(occurrences[j].Start) {
			return occurrences[i].SourceRuleID < occurrences[j].SourceRuleID
		}
		return occurrences[i].Start.Before(occurrences[j].Start)
	})

	return occurrences
}

// OccursOn reports whether any of the rules produces an occurrence on the
// given calendar day. Used by the month grid for per-day presence flags.
func (e *Engine) OccursOn(rules []Rule, day, now time.Time) bool {
	day = startOfDay(day.In(e.Location()))
	return len(e.Expand(rules, day, day, now)) > 0
}

func (e *Engine) expandRule(rule Rule, emitFrom, endDay, today time.Time) []Occurrence {
	loc := e.Location()

	startClock, endClock, err := rule.clockRange()
	if err != nil {
		return nil
	}

	if !rule.IsRecurring() {
		date, ok := rule.OccurrenceDate(loc)
		if !ok {
			return nil
		}
		date = startOfDay(date.In(loc))
		if date.Before(emitFrom) || date.After(endDay) {
			return nil
		}
		return []Occurrence{makeOccurrence(rule, date, startClock, endClock, loc)}
	}

	days := rule.DaySet()
	if len(days) == 0 {
		return nil
	}

	until, hasUntil := rule.TerminationDate(loc)
	if hasUntil {
		until = startOfDay(until.In(loc))
	}

	// The occurrence cap counts instances from the later of today and the
	// rule's creation day, independent of where the query window begins. A
	// window months in the future must not reset consumption: matching days
	// between today and the window still use up the cap, so the scan starts
	// at the counting origin even when emission starts later.
	countFrom := today
	if created := startOfDay(rule.CreatedAt.In(loc)); !rule.CreatedAt.IsZero() && created.After(countFrom) {
		countFrom = created
	}
	capped := rule.Ends == EndsAfterOccurrences && rule.Occurrences > 0
	counted := 0

	scanFrom := emitFrom
	if capped && countFrom.Before(scanFrom) {
		scanFrom = countFrom
	}

	out := make([]Occurrence, 0)
	for day := scanFrom; !day.After(endDay); day = day.AddDate(0, 0, 1) {
		if hasUntil && day.After(until) {
			break
		}
		if _, ok := days[day.Weekday()]; !ok {
			continue
		}
		if capped && !day.Before(countFrom) {
			if counted >= rule.Occurrences {
				break
			}
			counted++
		}
		if day.Before(emitFrom) {
			continue
		}
		out = append(out, makeOccurrence(rule, day, startClock, endClock, loc))
	}
	return out
}

func makeOccurrence(rule Rule, day time.Time, startClock, endClock Clock, loc *time.Location) Occurrence {
	y, m, d := day.Date()
	return Occurrence{
		ID:           fmt.Sprintf("%s-%s", rule.ID, day.Format("2006-01-02")),
		Start:        time.Date(y, m, d, startClock.Hour, startClock.Minute, 0, 0, loc),
		End:          time.Date(y, m, d, endClock.Hour, endClock.Minute, 0, 0, loc),
		IsRecurring:  rule.IsRecurring(),
		Descriptor:   DescribeMachine(rule),
		SourceRuleID: rule.ID,
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
