package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"MarketScreener/internal/calculator"
	"MarketScreener/internal/model"
	"MarketScreener/internal/risk"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "configs/config.yaml"

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id"`
	} `yaml:"telegram"`
	DataSource struct {
		BaseURL        string        `yaml:"base_url"`
		Benchmark      string        `yaml:"benchmark"`
		Suffix         string        `yaml:"suffix"`
		UniverseFile   string        `yaml:"universe_file"`
		RequestsPerSec float64       `yaml:"requests_per_sec"`
		Timeout        time.Duration `yaml:"timeout"`
	} `yaml:"data_source"`
	Screening struct {
		MinPrice       float64               `yaml:"min_price"`
		MinVolumeAvg   float64               `yaml:"min_volume_avg"`
		Thresholds     model.ScoreThresholds `yaml:"thresholds"`
		BatchSize      int                   `yaml:"batch_size"`
		BatchPause     time.Duration         `yaml:"batch_pause"`
		Concurrency    int                   `yaml:"concurrency"`
		RunTimeout     time.Duration         `yaml:"run_timeout"`
		MinHistoryBars int                   `yaml:"min_history_bars"`
		DailyLookback  int                   `yaml:"daily_lookback"`
		WeeklyLookback int                   `yaml:"weekly_lookback"`
		WeeklyMinBars  int                   `yaml:"weekly_min_bars"`
		WeeklyBonus    int                   `yaml:"weekly_bonus"`
		WeeklySMA      int                   `yaml:"weekly_sma"`
		TopN           int                   `yaml:"top_n"`
	} `yaml:"screening"`
	Indicators struct {
		calculator.Params `yaml:",inline"`

		Backend string `yaml:"backend"`
	} `yaml:"indicators"`
	Risk     risk.Params `yaml:"risk"`
	Schedule struct {
		Cron     string `yaml:"cron"`
		Timezone string `yaml:"timezone"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
	Proxy string `yaml:"proxy"`
}

// Default returns the configuration used for every key the file omits.
func Default() *Config {
	cfg := &Config{}
	cfg.DataSource.Benchmark = "^JKSE"
	cfg.DataSource.Suffix = ".JK"
	cfg.DataSource.UniverseFile = "bei_universe.csv"
	cfg.DataSource.RequestsPerSec = 10
	cfg.DataSource.Timeout = 30 * time.Second

	s := &cfg.Screening
	s.MinPrice = 100
	s.MinVolumeAvg = 100_000
	s.Thresholds = model.DefaultThresholds
	s.BatchSize = 50
	s.BatchPause = time.Second
	s.Concurrency = 8
	s.RunTimeout = 15 * time.Minute
	s.MinHistoryBars = 60
	s.DailyLookback = 365
	s.WeeklyLookback = 26
	s.WeeklyMinBars = 20
	s.WeeklyBonus = 2
	s.WeeklySMA = 20
	s.TopN = 15

	cfg.Indicators.Backend = calculator.BackendNative
	cfg.Indicators.Params = calculator.DefaultParams()
	cfg.Risk = risk.DefaultParams()
	cfg.Schedule.Cron = "0 30 16 * * 1-5"
	cfg.Schedule.Timezone = "Asia/Jakarta"
	cfg.Database.SQLitePath = "data/screener.db"
	cfg.Log.Level = "info"
	return cfg
}

// Load reads .env (when present) and the YAML file on top of the defaults,
// then applies environment variable overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	for _, o := range []struct {
		keys []string
		dst  *string
	}{
		{[]string{"TELEGRAM_BOT_TOKEN", "TELEGRAM_TOKEN"}, &cfg.Telegram.BotToken},
		{[]string{"TELEGRAM_CHAT_ID"}, &cfg.Telegram.ChatID},
		{[]string{"UNIVERSE_FILE"}, &cfg.DataSource.UniverseFile},
		{[]string{"BENCHMARK_SYMBOL"}, &cfg.DataSource.Benchmark},
		{[]string{"YAHOO_BASE_URL"}, &cfg.DataSource.BaseURL},
		{[]string{"INDICATOR_BACKEND"}, &cfg.Indicators.Backend},
		{[]string{"SCREEN_CRON"}, &cfg.Schedule.Cron},
		{[]string{"SQLITE_PATH"}, &cfg.Database.SQLitePath},
		{[]string{"METRICS_ADDR"}, &cfg.Metrics.Addr},
		{[]string{"LOG_LEVEL"}, &cfg.Log.Level},
		{[]string{"HTTPS_PROXY"}, &cfg.Proxy},
	} {
		for _, k := range o.keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				*o.dst = v
				break
			}
		}
	}
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		cfg.Log.Pretty = v == "1" || strings.EqualFold(v, "true")
	}

	return cfg, nil
}

// Validate checks that every setting is usable. Telegram credentials are
// checked separately because dry runs do not need them.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	s := c.Screening
	check(c.DataSource.UniverseFile != "", "data_source.universe_file is required")
	check(c.DataSource.Benchmark != "", "data_source.benchmark is required")
	check(s.MinPrice >= 0, "screening.min_price must not be negative")
	check(s.MinVolumeAvg >= 0, "screening.min_volume_avg must not be negative")
	check(s.BatchSize > 0, "screening.batch_size must be positive")
	check(s.Concurrency > 0, "screening.concurrency must be positive")
	check(s.BatchPause >= 0, "screening.batch_pause must not be negative")
	check(s.MinHistoryBars >= 2, "screening.min_history_bars must be at least 2")
	check(s.WeeklySMA > 0 && s.WeeklyMinBars >= s.WeeklySMA,
		"screening.weekly_min_bars (%d) must cover weekly_sma (%d)", s.WeeklyMinBars, s.WeeklySMA)
	check(s.TopN >= 0, "screening.top_n must not be negative")

	p := c.Indicators.Params
	for name, v := range map[string]int{
		"rsi_period": p.RSIPeriod, "macd_fast": p.MACDFast, "macd_slow": p.MACDSlow, "macd_signal": p.MACDSignal,
		"sma_fast": p.SMAFast, "sma_slow": p.SMASlow, "ema_period": p.EMAPeriod, "atr_period": p.ATRPeriod,
		"bb_period": p.BBPeriod, "stoch_period": p.StochPeriod, "stoch_k": p.StochK, "stoch_d": p.StochD,
		"obv_ma_period": p.OBVMAPeriod, "volume_ma_fast": p.VolumeMAFast, "volume_ma_slow": p.VolumeMASlow,
		"swing_low_period": p.SwingLowPeriod,
	} {
		check(v > 0, "indicators.%s must be positive", name)
	}
	check(p.MACDFast < p.MACDSlow, "indicators.macd_fast must be below macd_slow")
	check(p.SqueezePercentile > 0 && p.SqueezePercentile < 1, "indicators.squeeze_percentile must be in (0,1)")
	if _, err := calculator.NewEngine(c.Indicators.Backend, p); err != nil {
		errs = append(errs, err)
	}

	r := c.Risk
	check(r.ATRMultiplier > 0, "risk.atr_multiplier must be positive")
	check(r.TP1Ratio > 0 && r.TP1Ratio < r.TP2Ratio, "risk.tp1_ratio must be positive and below tp2_ratio")
	check(r.FallbackStopRatio > 0 && r.FallbackStopRatio < 1, "risk.fallback_stop_ratio must be in (0,1)")

	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateTelegram checks the credentials needed to deliver reports.
func (c *Config) ValidateTelegram() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("telegram.chat_id is required")
	}
	return nil
}

// Location returns the schedule time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}
