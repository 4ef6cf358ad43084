package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"MarketScreener/internal/calculator"
	"MarketScreener/internal/collector"
	"MarketScreener/internal/config"
	"MarketScreener/internal/metrics"
	"MarketScreener/internal/notifier"
	"MarketScreener/internal/recorder"
	"MarketScreener/internal/screener"
	"MarketScreener/internal/strategy"
)

// app holds everything built from the configuration.
type app struct {
	cfg      *config.Config
	screener *screener.Screener
	metrics  *metrics.Metrics
	recorder recorder.Recorder
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.DefaultPath
		if v := os.Getenv("CONFIG_PATH"); v != "" {
			path = v
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	setupLogging(cfg)
	log.Info().Str("config", path).Msg("configuration loaded")
	return cfg, nil
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func screenerParams(cfg *config.Config) screener.Params {
	s := cfg.Screening
	return screener.Params{
		BatchSize:      s.BatchSize,
		BatchPause:     s.BatchPause,
		Concurrency:    s.Concurrency,
		RunTimeout:     s.RunTimeout,
		MinHistoryBars: s.MinHistoryBars,
		DailyLookback:  s.DailyLookback,
		WeeklyLookback: s.WeeklyLookback,
		WeeklyMinBars:  s.WeeklyMinBars,
		WeeklyBonus:    s.WeeklyBonus,
		WeeklySMA:      s.WeeklySMA,
		TopN:           s.TopN,
		Suffix:         cfg.DataSource.Suffix,
		Benchmark:      cfg.DataSource.Benchmark,
		Thresholds:     s.Thresholds,
		Scoring:        strategy.Params{MinPrice: s.MinPrice, MinVolumeAvg: s.MinVolumeAvg},
		Risk:           cfg.Risk,
	}
}

// newApp wires the screener. withRecorder opens the SQLite audit log.
func newApp(cfg *config.Config, withRecorder bool) (*app, error) {
	engine, err := calculator.NewEngine(cfg.Indicators.Backend, cfg.Indicators.Params)
	if err != nil {
		return nil, err
	}
	fetcher := collector.NewYahooFetcher(collector.YahooOptions{
		BaseURL:        cfg.DataSource.BaseURL,
		ProxyURL:       cfg.Proxy,
		Timeout:        cfg.DataSource.Timeout,
		RequestsPerSec: cfg.DataSource.RequestsPerSec,
	})
	log.Info().Str("data_source", fetcher.Name()).Str("engine", engine.Name()).Msg("providers ready")

	a := &app{cfg: cfg, metrics: metrics.New(), recorder: recorder.NewNoopRecorder()}
	if withRecorder && cfg.Database.SQLitePath != "" {
		if err := os.MkdirAll(dirOf(cfg.Database.SQLitePath), 0o755); err != nil {
			log.Warn().Err(err).Msg("create database directory")
		}
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			a.recorder = sr
		}
	}

	s := screener.New(fetcher, engine, collector.CSVUniverse{Path: cfg.DataSource.UniverseFile}, screenerParams(cfg))
	s.Metrics = a.metrics
	s.Recorder = a.recorder
	a.screener = s
	return a, nil
}

func (a *app) sink(dryRun bool) (notifier.Sink, error) {
	if dryRun {
		return notifier.NewConsoleSink(os.Stdout), nil
	}
	if err := a.cfg.ValidateTelegram(); err != nil {
		return nil, fmt.Errorf("%w (use --dry-run to print instead)", err)
	}
	tn, err := notifier.NewTelegramNotifier(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID, a.cfg.Proxy)
	if err != nil {
		return nil, err
	}
	tn.Metrics = a.metrics
	return tn, nil
}

func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		log.Warn().Err(err).Msg("close recorder")
	}
}

func dirOf(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i > 0 {
		return path[:i]
	}
	return "."
}
