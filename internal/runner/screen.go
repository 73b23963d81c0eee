package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"VolumeSentinel/internal/collector"
	"VolumeSentinel/internal/datasync"
	"VolumeSentinel/internal/metrics"
	"VolumeSentinel/internal/model"
	"VolumeSentinel/internal/recorder"
	"VolumeSentinel/internal/report"
	"VolumeSentinel/internal/tradedate"
)

// Screen syncs every instrument and ranks the spikes on the latest trading
// date (each series' last bar when that date is unknown). A cancelled ctx
// returns the partial report together with the context error.
func (r *Runner) Screen(ctx context.Context) (*report.Screen, error) {
	started := time.Now()
	instruments, err := r.Universe()
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	r.Log.Info("screen started", zap.Int("instruments", len(instruments)))

	latest := r.probe(ctx, instruments)
	rep := report.NewScreen(r.Syncer.Now().Format(tradedate.Layout), dateString(latest))

	runErr := r.each(ctx, instruments, func(inst model.Instrument) {
		rep.Class(inst.Code).Processed++
		res := r.Syncer.Sync(ctx, inst.Code, latest)
		r.countUpdate(rep, res)
		r.evaluate(inst, res, latest, rep)
	})
	if runErr == nil && r.retryFailed && len(rep.Failed) > 0 {
		runErr = r.retryFailures(ctx, instruments, latest, rep)
	}

	rep.Hits.Ranked()
	rep.Duration = time.Since(started)
	r.finishScreen(ctx, rep, len(instruments))
	return rep, runErr
}

// countUpdate compares the last date before and after the sync.
func (r *Runner) countUpdate(rep *report.Screen, res datasync.Result) {
	after := res.Series.LastDate()
	switch {
	case after == "":
		rep.Updates.Failed++
	case res.PrevLastDate == "" || after > res.PrevLastDate:
		rep.Updates.Updated++
	case after == res.PrevLastDate:
		rep.Updates.Unchanged++
	default:
		rep.Updates.Failed++
	}
}

// evaluate screens one synced series.
func (r *Runner) evaluate(inst model.Instrument, res datasync.Result, latest time.Time, rep *report.Screen) {
	cls := rep.Class(inst.Code)
	series := res.Series
	if series.Len() == 0 {
		cls.Failed++
		rep.Failed = append(rep.Failed, report.Failure{Code: inst.Code, Name: inst.Name, Reason: failureReason(res)})
		r.recordFailure(rep.TradeDate, inst, string(res.Outcome), failureReason(res))
		return
	}
	if n := series.Len(); n < r.minHistory {
		metrics.InstrumentsSkipped.WithLabelValues("insufficient_history").Inc()
		rep.Skipped = append(rep.Skipped, report.Skip{Code: inst.Code, Name: inst.Name, Have: n, Need: r.minHistory})
		return
	}

	last := series.LastDate()
	rep.LastDates[last]++
	if !latest.IsZero() {
		if lastDay, err := tradedate.Parse(last); err == nil {
			if behind := tradedate.DaysBetween(lastDay, latest); behind >= r.staleDays {
				rep.Lagging = append(rep.Lagging, report.Lagging{Code: inst.Code, Name: inst.Name, LastDate: last, DaysBehind: behind})
			}
		}
	}

	var ratioHit, zHit bool
	var ev *model.SpikeEvent
	if latest.IsZero() {
		ratioHit, zHit, ev = r.Detector.DetectLatest(series.Bars)
	} else {
		ratioHit, zHit, ev = r.Detector.DetectOn(series.Bars, dateString(latest))
	}
	if ev == nil {
		metrics.InstrumentsSkipped.WithLabelValues("no_target_bar").Inc()
		return
	}
	cls.HasTarget++
	ev.Code, ev.Name = inst.Code, inst.Name
	rep.Hits.Add(ev, ratioHit, zHit)
	if ratioHit {
		cls.RatioHits++
		metrics.SpikeHits.WithLabelValues(string(model.RuleRatio), "live").Inc()
	}
	if zHit {
		cls.ZHits++
		metrics.SpikeHits.WithLabelValues(string(model.RuleZScore), "live").Inc()
	}
	if ratioHit || zHit {
		r.Log.Info("spike detected",
			zap.String("code", inst.Code),
			zap.String("date", ev.Date),
			zap.Float64("ratio", ev.Ratio),
			zap.Float64("zscore", ev.ZScore),
			zap.Bool("ratio_hit", ratioHit),
			zap.Bool("z_hit", zHit))
	}
}

// retryFailures re-syncs every failed instrument once and screens the ones
// that now have data. Instruments not reached before cancellation keep their
// first-pass failure.
func (r *Runner) retryFailures(ctx context.Context, instruments []model.Instrument, latest time.Time, rep *report.Screen) error {
	failed := rep.Failed
	rep.Failed = nil
	r.Log.Info("retrying failed instruments", zap.Int("count", len(failed)))

	names := make(map[string]string, len(instruments))
	for _, inst := range instruments {
		names[inst.Code] = inst.Name
	}
	for i, f := range failed {
		if err := collector.Sleep(ctx, r.pacing); err != nil {
			rep.Failed = append(rep.Failed, failed[i:]...)
			return err
		}
		inst := model.Instrument{Code: f.Code, Name: names[f.Code]}
		res := r.Syncer.Sync(ctx, inst.Code, latest)
		if res.Series.Len() == 0 {
			f.Reason = "retry: " + failureReason(res)
			rep.Failed = append(rep.Failed, f)
			continue
		}
		rep.Class(inst.Code).Failed--
		rep.Updates.Failed--
		rep.Updates.Updated++
		rep.Recovered = append(rep.Recovered, inst.Code)
		r.evaluate(inst, res, latest, rep)
	}
	return nil
}

func (r *Runner) finishScreen(ctx context.Context, rep *report.Screen, instruments int) {
	for _, rule := range model.Rules {
		if err := r.Recorder.RecordScreenHits(rep.TradeDate, rule, rep.Hits[rule]); err != nil {
			r.Log.Error("record screen hits", zap.String("rule", string(rule)), zap.Error(err))
		}
	}
	if err := r.Recorder.RecordRun(&recorder.RunSummary{
		Mode:        "screen",
		TradeDate:   rep.TradeDate,
		Instruments: instruments,
		Updated:     rep.Updates.Updated,
		Unchanged:   rep.Updates.Unchanged,
		Failed:      len(rep.Failed),
		Skipped:     len(rep.Skipped),
		Duration:    rep.Duration,
	}); err != nil {
		r.Log.Error("record run", zap.Error(err))
	}
	if r.outputDir != "" {
		if err := report.WriteScreen(r.outputDir, rep); err != nil {
			r.Log.Error("write screen output", zap.Error(err))
		}
	}

	r.Log.Info("screen finished",
		zap.String("trade_date", rep.TradeDate),
		zap.Int("processed", rep.Processed()),
		zap.Int("ratio_hits", len(rep.Hits[model.RuleRatio])),
		zap.Int("zscore_hits", len(rep.Hits[model.RuleZScore])),
		zap.Int("failed", len(rep.Failed)),
		zap.Int("stale", len(rep.Lagging)),
		zap.Duration("duration", rep.Duration))
	r.notify(ctx, report.FormatScreen(rep, topN))
}
