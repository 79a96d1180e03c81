// Package calendar projects availability rules and booked gigs onto a fixed
// month grid for rendering.
package calendar

import (
	"time"

	"github.com/example/able-marketplace/internal/recurrence"
)

// GridCells is the fixed cell count of a projected month: 6 weeks of 7 days,
// always, so the layout never reflows between months.
const GridCells = 42

// GigEvent is a booked gig supplied by the caller. The projector passes gigs
// through to the matching cells without transformation.
type GigEvent struct {
	ID    string
	Title string
	Start time.Time
	End   time.Time
}

// Cell describes one day slot of the projected grid.
type Cell struct {
	Date            time.Time
	InMonth         bool
	IsToday         bool
	IsSelected      bool
	HasAvailability bool
	Gigs            []GigEvent
}

// Grid is a fully projected month.
type Grid struct {
	Year  int
	Month time.Month
	Cells []Cell
}

// Projector tracks calendar navigation state and renders month grids. It
// holds no occurrence cache: every projection re-expands from the rule list
// it is handed, so cleared or edited rules are reflected immediately.
type Projector struct {
	engine   *recurrence.Engine
	current  time.Time // first day of the displayed month
	selected time.Time
	hasSel   bool
}

// NewProjector creates a projector showing the month containing start.
func NewProjector(engine *recurrence.Engine, start time.Time) *Projector {
	if engine == nil {
		engine = recurrence.NewEngine(nil)
	}
	loc := engine.Location()
	start = start.In(loc)
	return &Projector{
		engine:  engine,
		current: time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, loc),
	}
}

// Current returns the first day of the displayed month.
func (p *Projector) Current() time.Time {
	return p.current
}

// Next advances the displayed month by one. The underlying rule set is
// untouched; the caller re-projects.
func (p *Projector) Next() {
	p.current = p.current.AddDate(0, 1, 0)
}

// Prev moves the displayed month back by one.
func (p *Projector) Prev() {
	p.current = p.current.AddDate(0, -1, 0)
}

// Select marks a date as selected and reports it to the caller unchanged.
func (p *Projector) Select(date time.Time) time.Time {
	loc := p.engine.Location()
	date = date.In(loc)
	p.selected = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	p.hasSel = true
	return p.selected
}

// ClearSelection removes the selected date.
func (p *Projector) ClearSelection() {
	p.selected = time.Time{}
	p.hasSel = false
}

// Project renders the displayed month against the given rules and booked
// gigs. The grid always spans exactly GridCells cells beginning on the Sunday
// on or before the 1st of the month.
func (p *Projector) Project(rules []recurrence.Rule, gigs []GigEvent, now time.Time) Grid {
	loc := p.engine.Location()
	today := dateOnly(now.In(loc))
	first := p.current
	gridStart := first.AddDate(0, 0, -int(first.Weekday()))

	cells := make([]Cell, 0, GridCells)
	for i := 0; i < GridCells; i++ {
		day := gridStart.AddDate(0, 0, i)
		cells = append(cells, Cell{
			Date:            day,
			InMonth:         day.Month() == first.Month() && day.Year() == first.Year(),
			IsToday:         day.Equal(today),
			IsSelected:      p.hasSel && day.Equal(p.selected),
			HasAvailability: p.engine.OccursOn(rules, day, now),
			Gigs:            gigsOnDay(gigs, day),
		})
	}

	return Grid{Year: first.Year(), Month: first.Month(), Cells: cells}
}

func gigsOnDay(gigs []GigEvent, day time.Time) []GigEvent {
	dayEnd := day.AddDate(0, 0, 1)
	var out []GigEvent
	for _, gig := range gigs {
		if gig.Start.Before(dayEnd) && day.Before(gig.End) {
			out = append(out, gig)
		}
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
