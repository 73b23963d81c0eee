package datasync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"VolumeSentinel/internal/collector"
	"VolumeSentinel/internal/config"
	"VolumeSentinel/internal/metrics"
	"VolumeSentinel/internal/model"
	"VolumeSentinel/internal/store"
	"VolumeSentinel/internal/tradedate"
)

// Outcome summarizes what a sync did to one instrument.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"   // no request needed
	OutcomeUpdated   Outcome = "updated"   // new bars merged and persisted
	OutcomeUnchanged Outcome = "unchanged" // provider had nothing new
	OutcomeRecovered Outcome = "recovered" // primary window failed, a fallback window succeeded
	OutcomeStale     Outcome = "stale"     // every window failed, prior state returned
	OutcomeEmpty     Outcome = "empty"     // first download returned no rows
	OutcomeFailed    Outcome = "failed"    // no valid state exists
)

// Result is the per-instrument sync report. Series is the best valid state
// after the sync (nil when none exists). Err carries the last error seen,
// even when a prior state was recovered.
type Result struct {
	Code         string
	Series       *model.Series
	Plan         Plan
	Outcome      Outcome
	Window       string
	Fetched      int
	PrevLastDate string
	Err          error
}

// Syncer runs the fetch -> merge -> persist cycle for one instrument at a time.
type Syncer struct {
	Store   store.Store
	Fetcher collector.Fetcher
	Policy  *Policy
	Retry   collector.RetryPolicy
	Log     *zap.Logger
	Now     func() time.Time

	probeLookback int
}

// NewSyncer wires a syncer from the sync configuration.
func NewSyncer(st store.Store, f collector.Fetcher, cfg config.Sync, log *zap.Logger) (*Syncer, error) {
	policy, err := NewPolicy(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{
		Store:   st,
		Fetcher: f,
		Policy:  policy,
		Retry: collector.RetryPolicy{
			Attempts: cfg.RetryAttempts,
			Delay:    cfg.RetryDelay,
			Jitter:   cfg.RetryJitter,
		},
		Log:           log,
		Now:           time.Now,
		probeLookback: cfg.ProbeLookback,
	}, nil
}

func (s *Syncer) today() time.Time {
	return tradedate.Day(s.Now())
}

// Sync brings code's stored series up to date. latest is the known latest
// trading date, zero when unknown. Sync never panics on provider or store
// failures; they are reported through Result.
func (s *Syncer) Sync(ctx context.Context, code string, latest time.Time) Result {
	res := s.sync(ctx, code, latest)
	metrics.SyncOutcomes.WithLabelValues(string(res.Outcome)).Inc()

	fields := []zap.Field{
		zap.String("code", code),
		zap.String("mode", string(res.Plan.Mode)),
		zap.String("outcome", string(res.Outcome)),
		zap.String("prev_last_date", res.PrevLastDate),
		zap.String("last_date", res.Series.LastDate()),
		zap.Int("fetched", res.Fetched),
		zap.Int("staleness_days", res.Plan.State.StalenessDays),
	}
	if res.Window != "" {
		fields = append(fields, zap.String("window", res.Window))
	}
	switch {
	case res.Err != nil && res.Series == nil:
		s.Log.Warn("sync failed", append(fields, zap.Error(res.Err))...)
	case res.Err != nil:
		s.Log.Info("sync fell back", append(fields, zap.Error(res.Err))...)
	default:
		s.Log.Debug("sync done", fields...)
	}
	return res
}

func (s *Syncer) sync(ctx context.Context, code string, latest time.Time) Result {
	res := Result{Code: code}

	existing, err := s.Store.Load(code)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = fmt.Errorf("load: %w", err)
		return res
	}
	res.Series = existing
	res.PrevLastDate = existing.LastDate()

	today := s.today()
	plan, err := s.Policy.Plan(existing, today, latest)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}
	res.Plan = plan
	if !plan.NeedsFetch() {
		res.Outcome = OutcomeSkipped
		return res
	}

	hooks := collector.ChainHooks{OnAttempt: func(a collector.Attempt) { s.observe(code, a) }}
	bars, _, err := collector.FetchChain(ctx, s.Fetcher, code, []collector.Window{plan.Window()}, s.Retry, hooks)
	if err != nil {
		return s.fallback(ctx, res, plan, today, latest, err, hooks)
	}
	res.Window = string(plan.Mode)

	if len(bars) == 0 {
		if existing == nil {
			res.Outcome = OutcomeEmpty
			return res
		}
		alt, ok := s.Policy.EmptyWindow(plan, today, latest)
		if !ok {
			res.Outcome = OutcomeUnchanged
			return res
		}
		bars, _, err = collector.FetchChain(ctx, s.Fetcher, code, []collector.Window{alt}, s.Retry, hooks)
		if err != nil || len(bars) == 0 {
			res.Outcome = OutcomeUnchanged
			res.Err = err
			return res
		}
		res.Window = alt.Label
	}

	return s.apply(res, bars, OutcomeUpdated)
}

// fallback walks the fallback windows after the primary window failed.
// Without stored history there is nothing to anchor a partial window on, so
// the instrument is reported as failed.
func (s *Syncer) fallback(ctx context.Context, res Result, plan Plan, today, latest time.Time, cause error, hooks collector.ChainHooks) Result {
	res.Err = cause
	if ctx.Err() != nil {
		res.Outcome = outcomeWithoutData(res.Series)
		return res
	}
	if res.Series == nil {
		res.Outcome = OutcomeFailed
		return res
	}

	var mde *model.MalformedDateError
	malformed := errors.As(cause, &mde)
	windows := s.Policy.FallbackWindows(plan, today, latest, malformed)

	// an empty answer moves on to the next window like an error does
	for _, w := range windows {
		bars, _, err := collector.FetchChain(ctx, s.Fetcher, res.Code, []collector.Window{w}, s.Retry, hooks)
		if err != nil {
			res.Err = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if len(bars) == 0 {
			continue
		}
		res.Window = w.Label
		res.Err = nil
		return s.apply(res, bars, OutcomeRecovered)
	}
	res.Outcome = OutcomeStale
	return res
}

func outcomeWithoutData(series *model.Series) Outcome {
	if series == nil {
		return OutcomeFailed
	}
	return OutcomeStale
}

// apply merges bars into the prior series and persists the result. A failed
// write keeps the prior series as the result.
func (s *Syncer) apply(res Result, bars []model.Bar, success Outcome) Result {
	res.Fetched = len(bars)
	prevLen := res.Series.Len()
	merged := store.Merge(res.Code, res.Series, bars)
	if merged.Len() == 0 {
		res.Outcome = outcomeWithoutData(res.Series)
		return res
	}
	if err := s.Store.Persist(merged); err != nil {
		res.Err = err
		res.Outcome = outcomeWithoutData(res.Series)
		return res
	}
	res.Series = merged
	res.Outcome = success
	if success == OutcomeUpdated && merged.Len() == prevLen && merged.LastDate() == res.PrevLastDate {
		res.Outcome = OutcomeUnchanged
	}
	return res
}

func (s *Syncer) observe(code string, a collector.Attempt) {
	result := "ok"
	if a.Err != nil {
		result = "error"
	}
	metrics.FetchAttempts.WithLabelValues(a.Window.Label, result).Inc()
	if a.Err != nil {
		s.Log.Debug("fetch attempt failed",
			zap.String("code", code),
			zap.String("window", a.Window.Label),
			zap.String("start", tradedate.Compact(a.Window.Start)),
			zap.String("end", tradedate.Compact(a.Window.End)),
			zap.Int("attempt", a.Number),
			zap.Error(a.Err))
	}
}
