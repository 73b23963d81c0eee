// Package datasync keeps each instrument's stored history current against the
// remote provider.
package datasync

import (
	"fmt"
	"time"

	"VolumeSentinel/internal/collector"
	"VolumeSentinel/internal/config"
	"VolumeSentinel/internal/model"
	"VolumeSentinel/internal/tradedate"
)

// Mode is the refresh decision for one instrument.
type Mode string

const (
	ModeInitial     Mode = "initial"     // nothing stored, download full history
	ModeCurrent     Mode = "current"     // already holds the latest trading date
	ModeIncremental Mode = "incremental" // recent, fetch from the day after the last bar
	ModeWiden       Mode = "widen"       // behind, re-request a few days before the last bar
	ModeAhead       Mode = "ahead"       // computed start is after today
)

// State is derived from the stored series; it is never persisted.
type State struct {
	HasExisting   bool
	LastDate      time.Time
	StalenessDays int
	TargetCovered bool
}

// Plan is what the policy decided for one instrument.
type Plan struct {
	Mode  Mode
	State State
	Start time.Time
	End   time.Time
}

// NeedsFetch reports whether the plan issues a provider request.
func (p Plan) NeedsFetch() bool {
	return p.Mode == ModeInitial || p.Mode == ModeIncremental || p.Mode == ModeWiden
}

// Window returns the plan's primary request window.
func (p Plan) Window() collector.Window {
	return collector.Window{Label: string(p.Mode), Start: p.Start, End: p.End}
}

// Policy decides refresh windows. It holds no mutable state.
type Policy struct {
	cfg          config.Sync
	defaultStart time.Time
}

// NewPolicy validates cfg.DefaultStart.
func NewPolicy(cfg config.Sync) (*Policy, error) {
	start, err := tradedate.Parse(cfg.DefaultStart)
	if err != nil {
		return nil, fmt.Errorf("default start: %w", err)
	}
	return &Policy{cfg: cfg, defaultStart: start}, nil
}

// State derives the sync state of existing relative to today and the latest
// known trading date (zero when unknown).
func (p *Policy) State(existing *model.Series, today, latest time.Time) (State, error) {
	if existing.Len() == 0 {
		return State{}, nil
	}
	last, err := tradedate.Parse(existing.LastDate())
	if err != nil {
		return State{}, err
	}
	st := State{
		HasExisting:   true,
		LastDate:      last,
		StalenessDays: max(tradedate.DaysBetween(last, today), 0),
	}
	if !latest.IsZero() {
		st.TargetCovered = existing.IndexOf(tradedate.Day(latest).Format(tradedate.Layout)) >= 0
	}
	return st, nil
}

// Plan chooses the primary request window.
func (p *Policy) Plan(existing *model.Series, today, latest time.Time) (Plan, error) {
	today = tradedate.Day(today)
	st, err := p.State(existing, today, latest)
	if err != nil {
		return Plan{}, err
	}
	plan := Plan{State: st, End: today}

	switch {
	case !st.HasExisting:
		plan.Mode = ModeInitial
		plan.Start = p.defaultStart
	case st.StalenessDays < p.cfg.StaleDays && !latest.IsZero() && st.LastDate.Equal(tradedate.Day(latest)):
		plan.Mode = ModeCurrent
		return plan, nil
	case st.StalenessDays < p.cfg.StaleDays:
		plan.Mode = ModeIncremental
		plan.Start = tradedate.AddDays(st.LastDate, 1)
	default:
		plan.Mode = ModeWiden
		plan.Start = tradedate.AddDays(st.LastDate, -p.cfg.WidenDays)
	}

	if plan.Start.After(today) {
		plan.Mode = ModeAhead
	}
	return plan, nil
}

// anchor is the latest trading date when known, today otherwise.
func anchor(today, latest time.Time) time.Time {
	if latest.IsZero() {
		return tradedate.Day(today)
	}
	return tradedate.Day(latest)
}

// FallbackWindows lists the windows tried after the primary window failed.
// A malformed provider date skips the trading-date anchored window, since the
// provider's own notion of "latest" is not trusted then.
func (p *Policy) FallbackWindows(plan Plan, today, latest time.Time, malformed bool) []collector.Window {
	if !plan.State.HasExisting {
		return nil
	}
	today = tradedate.Day(today)
	var windows []collector.Window
	if !malformed {
		windows = append(windows, collector.Window{
			Label: "trading-anchor",
			Start: tradedate.AddDays(anchor(today, latest), -p.cfg.TradingLookback),
			End:   today,
		})
	}
	windows = append(windows, collector.Window{
		Label: "series-anchor",
		Start: tradedate.AddDays(plan.State.LastDate, -p.cfg.SeriesLookback),
		End:   today,
	})
	return windows
}

// EmptyWindow is the single alternative tried when a stale instrument's
// primary window came back empty. ok is false when no retry applies.
func (p *Policy) EmptyWindow(plan Plan, today, latest time.Time) (w collector.Window, ok bool) {
	if !plan.State.HasExisting || plan.State.StalenessDays < p.cfg.StaleDays {
		return collector.Window{}, false
	}
	today = tradedate.Day(today)
	return collector.Window{
		Label: "empty-retry",
		Start: tradedate.AddDays(anchor(today, latest), -p.cfg.EmptyLookback),
		End:   today,
	}, true
}
