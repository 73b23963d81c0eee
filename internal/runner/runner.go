// Package runner drives screening and backtest passes over the universe.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"VolumeSentinel/internal/backtest"
	"VolumeSentinel/internal/collector"
	"VolumeSentinel/internal/config"
	"VolumeSentinel/internal/datasync"
	"VolumeSentinel/internal/model"
	"VolumeSentinel/internal/notifier"
	"VolumeSentinel/internal/recorder"
	"VolumeSentinel/internal/strategy"
	"VolumeSentinel/internal/tradedate"
	"VolumeSentinel/internal/universe"
)

// topN is how many hits per rule the notification lists.
const topN = 10

// Runner processes instruments one at a time: sync, then detect.
type Runner struct {
	Syncer   *datasync.Syncer
	Detector *strategy.Detector
	Engine   *backtest.Engine
	Recorder recorder.Recorder
	Notifier notifier.Notifier
	Log      *zap.Logger

	// Universe returns the instruments of one pass.
	Universe func() ([]model.Instrument, error)

	sampleCode  string
	pacing      time.Duration
	staleDays   int
	retryFailed bool
	minHistory  int
	outputDir   string
}

// New wires a runner from configuration. rec and notif may be nil.
func New(cfg *config.Config, syncer *datasync.Syncer, rec recorder.Recorder, notif notifier.Notifier, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if notif == nil {
		notif = notifier.LogNotifier{Log: log}
	}
	det := strategy.NewDetector(cfg.Analysis)
	path, prefixes := cfg.Universe.Path, cfg.Universe.Prefixes
	return &Runner{
		Syncer:      syncer,
		Detector:    det,
		Engine:      backtest.NewEngine(det, cfg.Analysis),
		Recorder:    rec,
		Notifier:    notif,
		Log:         log,
		Universe:    func() ([]model.Instrument, error) { return universe.Load(path, prefixes) },
		sampleCode:  cfg.Universe.SampleCode,
		pacing:      cfg.Sync.Pacing,
		staleDays:   cfg.Sync.StaleDays,
		retryFailed: cfg.Sync.RetryFailed,
		minHistory:  cfg.Analysis.MinHistory(),
		outputDir:   cfg.Output.Dir,
	}
}

// probe returns the latest trading date, zero when it cannot be confirmed.
// The sample defaults to the first instrument of the universe.
func (r *Runner) probe(ctx context.Context, instruments []model.Instrument) time.Time {
	sample := r.sampleCode
	if sample == "" && len(instruments) > 0 {
		sample = instruments[0].Code
	}
	latest, err := r.Syncer.LatestTradingDate(ctx, sample)
	if err != nil {
		r.Log.Warn("latest trading date unknown", zap.String("sample", sample), zap.Error(err))
		return time.Time{}
	}
	return latest
}

func dateString(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(tradedate.Layout)
}

// each calls fn for every instrument with the pacing delay in between. It
// stops early only when ctx is cancelled.
func (r *Runner) each(ctx context.Context, instruments []model.Instrument, fn func(model.Instrument)) error {
	for i, inst := range instruments {
		if i > 0 {
			if err := collector.Sleep(ctx, r.pacing); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		fn(inst)
	}
	return nil
}

func failureReason(res datasync.Result) string {
	if res.Err != nil {
		return res.Err.Error()
	}
	if res.Outcome == datasync.OutcomeEmpty {
		return model.ErrNoData.Error()
	}
	return fmt.Sprintf("no data (%s)", res.Outcome)
}

func (r *Runner) recordFailure(tradeDate string, inst model.Instrument, outcome, reason string) {
	if err := r.Recorder.RecordSyncFailure(&recorder.SyncFailure{
		TradeDate: tradeDate,
		Code:      inst.Code,
		Name:      inst.Name,
		Outcome:   outcome,
		Reason:    reason,
	}); err != nil {
		r.Log.Error("record sync failure", zap.String("code", inst.Code), zap.Error(err))
	}
}

func (r *Runner) notify(ctx context.Context, text string) {
	if err := r.Notifier.Notify(ctx, text); err != nil {
		r.Log.Error("send notification", zap.Error(err))
	}
}

func insufficient(err error) (*model.InsufficientHistoryError, bool) {
	var ih *model.InsufficientHistoryError
	ok := errors.As(err, &ih)
	return ih, ok
}
