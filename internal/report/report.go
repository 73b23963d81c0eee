// Package report collects run statistics and renders them for people.
package report

import (
	"time"

	"VolumeSentinel/internal/model"
	"VolumeSentinel/internal/strategy"
	"VolumeSentinel/internal/universe"
)

// ClassStats counts one board class during a screen.
type ClassStats struct {
	Processed int
	HasTarget int // series contained the screening date
	RatioHits int
	ZHits     int
	Failed    int
}

// UpdateStats compares each series' last date before and after its sync.
type UpdateStats struct {
	Updated   int // new series, or last date advanced
	Unchanged int
	Failed    int // no usable data, or last date went backwards
}

// Failure is an instrument that produced no usable series.
type Failure struct {
	Code   string
	Name   string
	Reason string
}

// Lagging is an instrument whose data trails the latest trading date.
type Lagging struct {
	Code       string
	Name       string
	LastDate   string
	DaysBehind int
}

// Skip is an instrument excluded for insufficient history.
type Skip struct {
	Code string
	Name string
	Have int
	Need int
}

// Screen is the outcome of one live screening pass.
type Screen struct {
	Today     string
	TradeDate string // latest trading date, empty when the probe failed
	Hits      strategy.Hits
	Classes   map[string]*ClassStats
	Updates   UpdateStats
	Failed    []Failure
	Lagging   []Lagging
	Skipped   []Skip
	Recovered []string // failures fixed by the second pass
	LastDates map[string]int
	Duration  time.Duration
}

// NewScreen returns an empty report with every class present.
func NewScreen(today, tradeDate string) *Screen {
	s := &Screen{
		Today:     today,
		TradeDate: tradeDate,
		Hits:      strategy.Hits{},
		Classes:   make(map[string]*ClassStats, len(universe.Classes)),
		LastDates: map[string]int{},
	}
	for _, c := range universe.Classes {
		s.Classes[c] = &ClassStats{}
	}
	return s
}

// Class returns the stats bucket for code.
func (s *Screen) Class(code string) *ClassStats {
	return s.Classes[universe.Class(code)]
}

// Processed is the number of instruments handled in the first pass.
func (s *Screen) Processed() int {
	n := 0
	for _, c := range s.Classes {
		n += c.Processed
	}
	return n
}

// Backtest is the outcome of one backtest pass over the universe.
type Backtest struct {
	TradeDate   string
	Instruments int
	Evaluated   int
	Horizon     int
	Skipped     []Skip
	Failed      []Failure
	Summaries   []model.RuleSummary
	Duration    time.Duration
}
