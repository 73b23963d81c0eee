package runner

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"VolumeSentinel/internal/backtest"
	"VolumeSentinel/internal/metrics"
	"VolumeSentinel/internal/model"
	"VolumeSentinel/internal/recorder"
	"VolumeSentinel/internal/report"
	"VolumeSentinel/internal/tradedate"
)

// Backtest replays the detector over every instrument's stored history.
// With refresh set each series is synced first; otherwise the store is read
// as is and no provider call is made.
func (r *Runner) Backtest(ctx context.Context, refresh bool) (*report.Backtest, error) {
	started := time.Now()
	instruments, err := r.Universe()
	if err != nil {
		return nil, fmt.Errorf("load universe: %w", err)
	}
	r.Log.Info("backtest started", zap.Int("instruments", len(instruments)), zap.Bool("refresh", refresh))

	var latest time.Time
	if refresh {
		latest = r.probe(ctx, instruments)
	}
	rep := &report.Backtest{
		TradeDate:   r.Syncer.Now().Format(tradedate.Layout),
		Instruments: len(instruments),
		Horizon:     r.Engine.Horizon(),
	}
	recs := backtest.Records{}

	step := func(inst model.Instrument) {
		series, reason := r.loadForBacktest(ctx, inst, latest, refresh)
		if series == nil {
			rep.Failed = append(rep.Failed, report.Failure{Code: inst.Code, Name: inst.Name, Reason: reason})
			r.recordFailure(rep.TradeDate, inst, "failed", reason)
			return
		}
		got, err := r.Engine.Run(series)
		if ih, ok := insufficient(err); ok {
			metrics.InstrumentsSkipped.WithLabelValues("insufficient_history").Inc()
			rep.Skipped = append(rep.Skipped, report.Skip{Code: inst.Code, Name: inst.Name, Have: ih.Have, Need: ih.Need})
			return
		}
		if err != nil {
			rep.Failed = append(rep.Failed, report.Failure{Code: inst.Code, Name: inst.Name, Reason: err.Error()})
			return
		}
		rep.Evaluated++
		for rule, list := range got {
			metrics.SpikeHits.WithLabelValues(string(rule), "backtest").Add(float64(len(list)))
		}
		recs.Merge(got)
	}

	var runErr error
	if refresh {
		runErr = r.each(ctx, instruments, step)
	} else {
		for _, inst := range instruments {
			if runErr = ctx.Err(); runErr != nil {
				break
			}
			step(inst)
		}
	}

	rep.Summaries = backtest.Summarize(recs, rep.Horizon)
	rep.Duration = time.Since(started)
	r.finishBacktest(ctx, rep)
	return rep, runErr
}

func (r *Runner) loadForBacktest(ctx context.Context, inst model.Instrument, latest time.Time, refresh bool) (*model.Series, string) {
	if refresh {
		res := r.Syncer.Sync(ctx, inst.Code, latest)
		if res.Series.Len() == 0 {
			return nil, failureReason(res)
		}
		return res.Series, ""
	}
	series, err := r.Syncer.Store.Load(inst.Code)
	if err != nil {
		return nil, err.Error()
	}
	if series.Len() == 0 {
		return nil, "not in store"
	}
	return series, ""
}

func (r *Runner) finishBacktest(ctx context.Context, rep *report.Backtest) {
	if err := r.Recorder.RecordBacktest(rep.TradeDate, rep.Summaries); err != nil {
		r.Log.Error("record backtest", zap.Error(err))
	}
	if err := r.Recorder.RecordRun(&recorder.RunSummary{
		Mode:        "backtest",
		TradeDate:   rep.TradeDate,
		Instruments: rep.Instruments,
		Failed:      len(rep.Failed),
		Skipped:     len(rep.Skipped),
		Duration:    rep.Duration,
	}); err != nil {
		r.Log.Error("record run", zap.Error(err))
	}
	if r.outputDir != "" {
		if err := report.WriteBacktest(r.outputDir, rep); err != nil {
			r.Log.Error("write backtest output", zap.Error(err))
		}
	}

	fields := []zap.Field{
		zap.Int("evaluated", rep.Evaluated),
		zap.Int("skipped", len(rep.Skipped)),
		zap.Int("failed", len(rep.Failed)),
		zap.Duration("duration", rep.Duration),
	}
	for _, s := range rep.Summaries {
		fields = append(fields, zap.Int(string(s.Rule)+"_count", s.Count))
	}
	r.Log.Info("backtest finished", fields...)
	r.notify(ctx, report.FormatBacktest(rep))
}
