package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rasviz/backend/internal/models"
)

type fakeRunner struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, job string) (*models.RunReport, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	report := models.NewRunReport(job)
	report.Finish()
	return report, f.err
}

func TestScheduler_TriggerKeepsLastReport(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner, "all", "0 3 * * 1")

	report, err := s.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "all", report.Job)
	assert.Same(t, report, s.LastReport())
}

func TestScheduler_TriggerFailureStillRecordsReport(t *testing.T) {
	runner := &fakeRunner{err: errors.New("fatal stage")}
	s := NewScheduler(runner, "all", "0 3 * * 1")

	_, err := s.Trigger(context.Background())
	assert.Error(t, err)
	assert.NotNil(t, s.LastReport())
}

func TestScheduler_OverlappingTriggerIsBusy(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	s := NewScheduler(runner, "all", "0 3 * * 1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Trigger(context.Background())
	}()

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	_, err := s.Trigger(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(runner.release)
	<-done
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestScheduler_InitialRun(t *testing.T) {
	runner := &fakeRunner{}
	s := NewScheduler(runner, "all", "0 3 * * 1")

	require.NoError(t, s.Start(context.Background(), true))
	require.Eventually(t, func() bool { return s.LastReport() != nil }, time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestScheduler_StopWaitsForAsyncRefresh(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	s := NewScheduler(runner, "all", "0 3 * * 1")
	require.NoError(t, s.Start(context.Background(), false))

	require.NoError(t, s.TriggerAsync(context.Background()))
	assert.ErrorIs(t, s.TriggerAsync(context.Background()), ErrBusy)
	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a refresh was still running")
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after the refresh finished")
	}
	assert.NotNil(t, s.LastReport())
	assert.False(t, s.Running())
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(&fakeRunner{}, "all", "not a cron line")
	assert.Error(t, s.Start(context.Background(), false))
}
