package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"MarketScreener/internal/model"
	"MarketScreener/internal/notifier"
)

// ErrBusy is returned when a screening run is already in progress.
var ErrBusy = errors.New("screening already running")

// Runner executes screening runs.
type Runner interface {
	Run(ctx context.Context) (*model.RunReport, error)
	CurrentRegime(ctx context.Context) model.RegimeSnapshot
}

// RunOnce executes one run and delivers exactly one message: the report,
// or the alert when the run failed fatally. The run error is returned.
func RunOnce(ctx context.Context, r Runner, sink notifier.Sink) error {
	report, err := r.Run(ctx)
	if err != nil {
		if aerr := sink.Alert(ctx, err); aerr != nil {
			log.Error().Err(aerr).Str("sink", sink.Name()).Msg("deliver alert")
		}
		return err
	}
	if err := sink.Deliver(ctx, report); err != nil {
		log.Error().Err(err).Str("sink", sink.Name()).Str("run_id", report.RunID).Msg("deliver report")
	}
	return nil
}

// Scheduler triggers screening runs from cron and chat commands.
type Scheduler struct {
	Cron     *cron.Cron
	Screener Runner
	Sink     notifier.Sink
	Ctx      context.Context

	mu      sync.Mutex
	running bool
	logger  zerolog.Logger
}

// NewScheduler creates a Scheduler whose cron specs are evaluated in loc.
func NewScheduler(ctx context.Context, r Runner, sink notifier.Sink, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		Screener: r,
		Sink:     sink,
		Ctx:      ctx,
		logger:   log.With().Str("component", "scheduler").Logger(),
	}
}

// Register adds the recurring screening task.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.screeningTask); err != nil {
		return fmt.Errorf("register screening task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	for _, e := range s.Cron.Entries() {
		s.logger.Info().Time("next", e.Next).Msg("scheduler started")
	}
}

// Stop stops the cron scheduler and waits for a running task.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

// RunNow executes a screening run immediately. Overlapping runs are
// refused with ErrBusy.
func (s *Scheduler) RunNow() error {
	if !s.tryAcquire() {
		return ErrBusy
	}
	defer s.release()
	return RunOnce(s.Ctx, s.Screener, s.Sink)
}

func (s *Scheduler) screeningTask() {
	s.logger.Info().Msg("running scheduled screening")
	if err := s.RunNow(); err != nil {
		s.logger.Error().Err(err).Msg("scheduled screening")
	}
}

func (s *Scheduler) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// Running reports whether a run is in progress.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	switch command {
	case "/scan":
		if s.Running() {
			return "⏳ A screening run is already in progress."
		}
		go func() {
			if err := s.RunNow(); err != nil && !errors.Is(err, ErrBusy) {
				s.logger.Error().Err(err).Msg("manual screening")
			}
		}()
		return "🔎 Screening started, the report follows when it finishes."
	case "/regime":
		return notifier.FormatRegime(s.Screener.CurrentRegime(ctx))
	default:
		return "Available commands:\n/scan - run the screener now\n/regime - show the market regime"
	}
}
