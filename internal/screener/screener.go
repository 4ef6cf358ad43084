// Package screener runs one screening pass over the instrument universe:
// it fetches history in paced batches, scores instruments on a bounded
// worker pool, confirms candidates on the weekly chart and ranks them.
package screener

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"MarketScreener/internal/calculator"
	"MarketScreener/internal/collector"
	"MarketScreener/internal/metrics"
	"MarketScreener/internal/model"
	"MarketScreener/internal/recorder"
	"MarketScreener/internal/regime"
	"MarketScreener/internal/risk"
	"MarketScreener/internal/strategy"
)

// WeeklyTag is the reason appended when the weekly chart confirms a candidate.
const WeeklyTag = "Weekly Uptrend (Above MA20W)"

// UniverseLoader supplies the raw instrument list.
type UniverseLoader interface {
	Load() ([]model.Instrument, error)
}

// Params holds every tunable of a run.
type Params struct {
	BatchSize      int
	BatchPause     time.Duration
	Concurrency    int
	RunTimeout     time.Duration
	MinHistoryBars int
	DailyLookback  int
	WeeklyLookback int
	WeeklyMinBars  int
	WeeklyBonus    int
	WeeklySMA      int
	TopN           int
	Suffix         string
	Benchmark      string
	Thresholds     model.ScoreThresholds
	Scoring        strategy.Params
	Risk           risk.Params
}

// DefaultParams mirrors the defaults of the config package.
func DefaultParams() Params {
	return Params{
		BatchSize:      50,
		BatchPause:     time.Second,
		Concurrency:    8,
		RunTimeout:     15 * time.Minute,
		MinHistoryBars: 60,
		DailyLookback:  365,
		WeeklyLookback: 26,
		WeeklyMinBars:  20,
		WeeklyBonus:    2,
		WeeklySMA:      20,
		TopN:           15,
		Suffix:         collector.DefaultSuffix,
		Benchmark:      "^JKSE",
		Thresholds:     model.DefaultThresholds,
		Scoring:        strategy.DefaultParams(),
		Risk:           risk.DefaultParams(),
	}
}

// Screener wires the collaborators of a screening run. Metrics and Recorder
// are optional.
type Screener struct {
	Fetcher  collector.Fetcher
	Engine   calculator.Engine
	Regime   *regime.Classifier
	Universe UniverseLoader
	Params   Params
	Metrics  *metrics.Metrics
	Recorder recorder.Recorder

	logger zerolog.Logger
	pause  func(ctx context.Context, d time.Duration) error
}

// New creates a Screener using engine for both instruments and the benchmark.
func New(f collector.Fetcher, engine calculator.Engine, universe UniverseLoader, p Params) *Screener {
	return &Screener{
		Fetcher:  f,
		Engine:   engine,
		Regime:   regime.NewClassifier(engine, p.Thresholds),
		Universe: universe,
		Params:   p,
		Recorder: recorder.NewNoopRecorder(),
		logger:   log.With().Str("component", "screener").Logger(),
		pause:    sleepCtx,
	}
}

// Run executes one screening pass. The only error it returns wraps
// model.ErrFatalInput; every per-instrument problem is folded into the
// report counts.
func (s *Screener) Run(ctx context.Context) (*model.RunReport, error) {
	p := s.Params
	pause := s.pause
	if pause == nil {
		pause = sleepCtx
	}
	if p.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.RunTimeout)
		defer cancel()
	}

	report := &model.RunReport{RunID: uuid.NewString(), StartedAt: time.Now()}
	logger := s.logger.With().Str("run_id", report.RunID).Logger()

	universe, err := s.loadUniverse()
	if err != nil {
		logger.Error().Err(err).Msg("universe unavailable, aborting run")
		s.Metrics.RunFailed()
		s.record(&recorder.RunRecord{
			RunID: report.RunID, StartedAt: report.StartedAt, Elapsed: time.Since(report.StartedAt),
			Status: recorder.StatusFatal, Error: err.Error(),
		})
		return nil, err
	}
	names := make(map[string]string, len(universe))
	symbols := make([]string, len(universe))
	for i, inst := range universe {
		symbols[i] = inst.Symbol
		names[inst.Symbol] = inst.Name
	}
	logger.Info().Int("instruments", len(symbols)).Str("engine", s.Engine.Name()).Msg("screening started")

	regimeCh := s.classifyAsync(ctx)
	var snap *model.RegimeSnapshot
	awaitRegime := func() model.RegimeSnapshot {
		if snap == nil {
			r := s.awaitRegime(ctx, regimeCh)
			snap = &r
			logger.Info().Str("regime", string(r.Regime)).Int("threshold", r.Threshold).Str("note", r.Note).Msg("market regime")
		}
		return *snap
	}

	outcomes := make([]model.Outcome, 0, len(symbols))
	batches := chunk(symbols, p.BatchSize)
	for i, batch := range batches {
		if i > 0 && p.BatchPause > 0 {
			if err := pause(ctx, p.BatchPause); err != nil {
				outcomes = append(outcomes, abandon(batches[i:], err)...)
				break
			}
		}
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, abandon(batches[i:], err)...)
			break
		}
		logger.Debug().Int("batch", i+1).Int("of", len(batches)).Int("size", len(batch)).Msg("processing batch")

		fetched := collector.FetchBatch(ctx, s.Fetcher, batch, p.DailyLookback, p.Concurrency)
		threshold := awaitRegime().Threshold
		outcomes = append(outcomes, s.evaluateBatch(fetched, names, threshold)...)
	}
	report.Regime = awaitRegime()

	var candidates []*model.Candidate
	var failures []recorder.FailureEvent
	for _, o := range outcomes {
		s.Metrics.ObserveOutcome(o)
		switch o.Status {
		case model.OutcomeQualified:
			report.Qualified++
			candidates = append(candidates, o.Candidate)
		case model.OutcomeRejected:
			report.Rejected++
		case model.OutcomeFailed:
			report.Failed++
			failures = append(failures, recorder.FailureEvent{RunID: report.RunID, Symbol: o.Symbol, Reason: o.Reason})
			logger.Debug().Str("symbol", o.Symbol).Err(o.Err).Msg("instrument failed")
		}
	}
	report.Scanned = len(outcomes)

	s.confirmWeekly(ctx, candidates)
	report.Candidates = Rank(candidates, p.TopN)
	report.Elapsed = time.Since(report.StartedAt)

	logger.Info().
		Int("scanned", report.Scanned).
		Int("failed", report.Failed).
		Int("rejected", report.Rejected).
		Int("qualified", report.Qualified).
		Dur("elapsed", report.Elapsed).
		Msg("screening finished")

	s.Metrics.ObserveRun(report)
	s.record(recorder.RecordFromReport(report))
	if s.Recorder != nil {
		if err := s.Recorder.RecordRegime(report.RunID, report.Regime); err != nil {
			logger.Warn().Err(err).Msg("record regime")
		}
		if err := s.Recorder.RecordFailures(failures); err != nil {
			logger.Warn().Err(err).Msg("record failures")
		}
	}
	return report, nil
}

// CurrentRegime fetches the benchmark and classifies it.
func (s *Screener) CurrentRegime(ctx context.Context) model.RegimeSnapshot {
	series, err := s.Fetcher.FetchDailyBars(ctx, s.Params.Benchmark, s.Params.DailyLookback)
	if err != nil {
		s.logger.Warn().Err(err).Str("benchmark", s.Params.Benchmark).Msg("benchmark fetch failed, defaulting to NEUTRAL")
		return s.Regime.Neutral(s.Params.Benchmark, err)
	}
	return s.Regime.Classify(series)
}

func (s *Screener) loadUniverse() ([]model.Instrument, error) {
	if s.Universe == nil {
		return nil, fmt.Errorf("no universe configured: %w", model.ErrFatalInput)
	}
	list, err := s.Universe.Load()
	if err != nil {
		if !errors.Is(err, model.ErrFatalInput) {
			err = fmt.Errorf("%w: %w", model.ErrFatalInput, err)
		}
		return nil, err
	}
	list = collector.Normalize(list, s.Params.Suffix)
	if len(list) == 0 {
		return nil, fmt.Errorf("universe has no usable symbols: %w", model.ErrFatalInput)
	}
	return list, nil
}

// classifyAsync starts the benchmark classification alongside instrument
// fetching. The channel receives exactly one snapshot.
func (s *Screener) classifyAsync(ctx context.Context) <-chan model.RegimeSnapshot {
	ch := make(chan model.RegimeSnapshot, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- s.Regime.Neutral(s.Params.Benchmark, fmt.Errorf("regime panic: %v", r))
			}
		}()
		ch <- s.CurrentRegime(ctx)
	}()
	return ch
}

func (s *Screener) awaitRegime(ctx context.Context, ch <-chan model.RegimeSnapshot) model.RegimeSnapshot {
	select {
	case snap := <-ch:
		return snap
	case <-ctx.Done():
		return s.Regime.Neutral(s.Params.Benchmark, ctx.Err())
	}
}

func (s *Screener) evaluateBatch(fetched []collector.BatchResult, names map[string]string, threshold int) []model.Outcome {
	out := make([]model.Outcome, len(fetched))
	var g errgroup.Group
	if s.Params.Concurrency > 0 {
		g.SetLimit(s.Params.Concurrency)
	}
	for i, fr := range fetched {
		i, fr := i, fr
		g.Go(func() error {
			out[i] = s.evaluate(fr, names[fr.Symbol], threshold)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// evaluate turns one fetched series into exactly one Outcome. Panics are
// recovered into a failed outcome.
func (s *Screener) evaluate(fr collector.BatchResult, name string, threshold int) (out model.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = model.Failed(fr.Symbol, fmt.Errorf("panic while scoring: %v", r))
		}
	}()

	if fr.Err != nil {
		return model.Failed(fr.Symbol, fr.Err)
	}
	if n := fr.Series.Len(); n < s.Params.MinHistoryBars {
		return model.Rejected(fr.Symbol, fmt.Sprintf("%s (%d/%d bars)", model.ErrInsufficientHistory, n, s.Params.MinHistoryBars))
	}

	frame, err := s.Engine.Compute(fr.Series)
	if err != nil {
		if errors.Is(err, model.ErrInsufficientHistory) {
			return model.Rejected(fr.Symbol, err.Error())
		}
		return model.Failed(fr.Symbol, fmt.Errorf("indicators: %w", err))
	}

	v, err := strategy.Evaluate(frame, threshold, s.Params.Scoring)
	if err != nil {
		return model.Rejected(fr.Symbol, err.Error())
	}
	if !v.Qualified {
		return model.Rejected(fr.Symbol, v.Rejection)
	}

	last := frame.Last()
	return model.Qualified(&model.Candidate{
		Symbol:  fr.Symbol,
		Name:    name,
		Close:   last.Close,
		RSI:     last.RSI,
		Volume:  last.Volume,
		Score:   v.Score,
		Reasons: v.Reasons,
		Levels:  risk.Calculate(last, s.Params.Risk),
	})
}

func (s *Screener) record(rec *recorder.RunRecord) {
	if s.Recorder == nil {
		return
	}
	if err := s.Recorder.RecordRun(rec); err != nil {
		s.logger.Warn().Err(err).Str("run_id", rec.RunID).Msg("record run")
	}
}

// Rank sorts candidates by score, highest first, keeping the original order
// among equal scores, and keeps at most topN (all when topN <= 0).
func Rank(candidates []*model.Candidate, topN int) []*model.Candidate {
	ranked := make([]*model.Candidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

func chunk(xs []string, size int) [][]string {
	if size <= 0 {
		size = len(xs)
	}
	var out [][]string
	for size > 0 && len(xs) > 0 {
		n := min(size, len(xs))
		out = append(out, xs[:n])
		xs = xs[n:]
	}
	return out
}

func abandon(batches [][]string, cause error) []model.Outcome {
	var out []model.Outcome
	for _, b := range batches {
		for _, sym := range b {
			out = append(out, model.Failed(sym, fmt.Errorf("run budget exhausted: %w", cause)))
		}
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
