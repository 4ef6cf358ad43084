package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketScreener/internal/model"
)

type fakeRunner struct {
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context) (*model.RunReport, error) {
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &model.RunReport{RunID: "r1"}, nil
}

func (f *fakeRunner) CurrentRegime(context.Context) model.RegimeSnapshot {
	return model.RegimeSnapshot{Regime: model.RegimeBearish, Threshold: 8}
}

type fakeSink struct {
	mu       sync.Mutex
	reports  []*model.RunReport
	alerts   []error
	failWith error
}

func (f *fakeSink) Name() string { return "fake" }

func (f *fakeSink) Deliver(_ context.Context, r *model.RunReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return f.failWith
}

func (f *fakeSink) Alert(_ context.Context, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, err)
	return f.failWith
}

func (f *fakeSink) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports), len(f.alerts)
}

func TestRunOnce_DeliversReport(t *testing.T) {
	sink := &fakeSink{failWith: errors.New("telegram down")}
	require.NoError(t, RunOnce(context.Background(), &fakeRunner{}, sink))
	reports, alerts := sink.counts()
	assert.Equal(t, 1, reports)
	assert.Zero(t, alerts)
}

func TestRunOnce_AlertsOnFatal(t *testing.T) {
	sink := &fakeSink{}
	fatal := errors.Join(model.ErrFatalInput, errors.New("no universe"))
	err := RunOnce(context.Background(), &fakeRunner{err: fatal}, sink)
	assert.ErrorIs(t, err, model.ErrFatalInput)
	reports, alerts := sink.counts()
	assert.Zero(t, reports)
	assert.Equal(t, 1, alerts)
}

func TestRunNow_RefusesOverlap(t *testing.T) {
	r := &fakeRunner{block: make(chan struct{}), started: make(chan struct{}, 1)}
	sink := &fakeSink{}
	s := NewScheduler(context.Background(), r, sink, time.UTC)

	done := make(chan error, 1)
	go func() { done <- s.RunNow() }()
	<-r.started

	assert.True(t, s.Running())
	assert.ErrorIs(t, s.RunNow(), ErrBusy)
	assert.Contains(t, s.HandleCommand(context.Background(), "/scan"), "already in progress")

	close(r.block)
	require.NoError(t, <-done)
	assert.False(t, s.Running())
	reports, _ := sink.counts()
	assert.Equal(t, 1, reports)
}

func TestHandleCommand(t *testing.T) {
	sink := &fakeSink{}
	s := NewScheduler(context.Background(), &fakeRunner{}, sink, time.UTC)

	assert.Contains(t, s.HandleCommand(context.Background(), "/regime"), "Market: BEARISH")
	assert.Contains(t, s.HandleCommand(context.Background(), "/help"), "/scan")

	assert.Contains(t, s.HandleCommand(context.Background(), "/scan"), "Screening started")
	assert.Eventually(t, func() bool {
		reports, _ := sink.counts()
		return reports == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRegister(t *testing.T) {
	s := NewScheduler(context.Background(), &fakeRunner{}, &fakeSink{}, time.UTC)
	assert.NoError(t, s.Register("0 30 16 * * 1-5"))
	assert.Error(t, s.Register("not a cron spec"))
	assert.Len(t, s.Cron.Entries(), 1)
}
