package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"VolumeSentinel/internal/report"
)

type fakeJobs struct {
	screens   atomic.Int32
	backtests atomic.Int32
	block     chan struct{}
	refresh   atomic.Bool
}

func (f *fakeJobs) Screen(ctx context.Context) (*report.Screen, error) {
	f.screens.Add(1)
	if f.block != nil {
		<-f.block
	}
	return nil, errors.New("provider down")
}

func (f *fakeJobs) Backtest(ctx context.Context, refresh bool) (*report.Backtest, error) {
	f.backtests.Add(1)
	f.refresh.Store(refresh)
	return &report.Backtest{}, nil
}

func TestRegisterAll(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeJobs{}, nil)
	require.NoError(t, s.RegisterAll("0 30 15 * * 1-5", "0 0 10 * * 6"))
	assert.Len(t, s.Cron.Entries(), 2)

	s = NewScheduler(context.Background(), &fakeJobs{}, nil)
	require.NoError(t, s.RegisterAll("0 30 15 * * 1-5", ""))
	assert.Len(t, s.Cron.Entries(), 1)

	s = NewScheduler(context.Background(), &fakeJobs{}, nil)
	assert.Error(t, s.RegisterAll("not a cron", ""))
}

func TestRunScreenNow(t *testing.T) {
	jobs := &fakeJobs{}
	s := NewScheduler(context.Background(), jobs, nil)
	s.RunScreenNow()
	assert.Equal(t, int32(1), jobs.screens.Load(), "job errors are logged, not fatal")

	s.backtestTask()
	assert.Equal(t, int32(1), jobs.backtests.Load())
	assert.True(t, jobs.refresh.Load(), "scheduled backtests refresh data first")
}

func TestOverlappingRunsAreDropped(t *testing.T) {
	jobs := &fakeJobs{block: make(chan struct{})}
	s := NewScheduler(context.Background(), jobs, nil)

	done := make(chan struct{})
	go func() {
		s.RunScreenNow()
		close(done)
	}()
	require.Eventually(t, func() bool { return jobs.screens.Load() == 1 }, time.Second, 5*time.Millisecond)

	s.backtestTask()
	assert.Zero(t, jobs.backtests.Load())

	close(jobs.block)
	<-done
	s.backtestTask()
	assert.Equal(t, int32(1), jobs.backtests.Load())
}
