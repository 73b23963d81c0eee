package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Analysis holds the detection and backtest parameters.
type Analysis struct {
	Window      int     `yaml:"window" env:"ANALYSIS_WINDOW"`
	VolMultiple float64 `yaml:"vol_multiple" env:"ANALYSIS_VOL_MULTIPLE"`
	ZThreshold  float64 `yaml:"z_threshold" env:"ANALYSIS_Z_THRESHOLD"`
	MinPctChg   float64 `yaml:"min_pct_chg" env:"ANALYSIS_MIN_PCT_CHG"`
	MaxPctChg   float64 `yaml:"max_pct_chg" env:"ANALYSIS_MAX_PCT_CHG"` // exclusive, approximates limit-up
	MinAmount   float64 `yaml:"min_amount" env:"ANALYSIS_MIN_AMOUNT"`
	StdFloor    float64 `yaml:"std_floor" env:"ANALYSIS_STD_FLOOR"`
	Horizons    []int   `yaml:"horizons" env:"ANALYSIS_HORIZONS" envSeparator:","`
}

// MaxHorizon returns the largest forward horizon.
func (a Analysis) MaxHorizon() int {
	if len(a.Horizons) == 0 {
		return 0
	}
	return slices.Max(a.Horizons)
}

// MinHistory is the shortest series the backtest can use.
func (a Analysis) MinHistory() int {
	return a.Window + a.MaxHorizon() + 1
}

// Sync holds the refresh policy and provider retry budget.
type Sync struct {
	DefaultStart    string        `yaml:"default_start" env:"SYNC_DEFAULT_START"`
	StaleDays       int           `yaml:"stale_days" env:"SYNC_STALE_DAYS"`
	WidenDays       int           `yaml:"widen_days" env:"SYNC_WIDEN_DAYS"`
	EmptyLookback   int           `yaml:"empty_lookback_days" env:"SYNC_EMPTY_LOOKBACK_DAYS"`
	TradingLookback int           `yaml:"trading_lookback_days" env:"SYNC_TRADING_LOOKBACK_DAYS"`
	SeriesLookback  int           `yaml:"series_lookback_days" env:"SYNC_SERIES_LOOKBACK_DAYS"`
	ProbeLookback   int           `yaml:"probe_lookback_days" env:"SYNC_PROBE_LOOKBACK_DAYS"`
	RetryAttempts   int           `yaml:"retry_attempts" env:"SYNC_RETRY_ATTEMPTS"`
	RetryDelay      time.Duration `yaml:"retry_delay" env:"SYNC_RETRY_DELAY"`
	RetryJitter     time.Duration `yaml:"retry_jitter" env:"SYNC_RETRY_JITTER"`
	Pacing          time.Duration `yaml:"pacing" env:"SYNC_PACING"`
	RetryFailed     bool          `yaml:"retry_failed" env:"SYNC_RETRY_FAILED"`
}

// Config holds all application configuration.
type Config struct {
	Analysis   Analysis `yaml:"analysis"`
	Sync       Sync     `yaml:"sync"`
	DataSource struct {
		BaseURL string        `yaml:"base_url" env:"EASTMONEY_BASE_URL"`
		Timeout time.Duration `yaml:"timeout" env:"DATA_SOURCE_TIMEOUT"`
	} `yaml:"data_source"`
	Store struct {
		Backend    string `yaml:"backend" env:"STORE_BACKEND"` // csv or sqlite
		Dir        string `yaml:"dir" env:"STORE_DIR"`
		SQLitePath string `yaml:"sqlite_path" env:"STORE_SQLITE_PATH"`
	} `yaml:"store"`
	Universe struct {
		Path       string   `yaml:"path" env:"UNIVERSE_PATH"`
		Prefixes   []string `yaml:"prefixes" env:"UNIVERSE_PREFIXES" envSeparator:","`
		SampleCode string   `yaml:"sample_code" env:"UNIVERSE_SAMPLE_CODE"`
	} `yaml:"universe"`
	Schedule struct {
		ScreenCron   string `yaml:"screen_cron" env:"CRON_SCREEN"`
		BacktestCron string `yaml:"backtest_cron" env:"CRON_BACKTEST"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" env:"SQLITE_PATH"`
	} `yaml:"database"`
	Output struct {
		Dir string `yaml:"dir" env:"OUTPUT_DIR"`
	} `yaml:"output"`
	Telegram struct {
		BotToken string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN"`
		ChatID   string `yaml:"chat_id" env:"TELEGRAM_CHAT_ID"`
	} `yaml:"telegram"`
	Log struct {
		Level string `yaml:"level" env:"LOG_LEVEL"`
	} `yaml:"log"`
	Metrics struct {
		Addr string `yaml:"addr" env:"METRICS_ADDR"`
	} `yaml:"metrics"`
	Proxy string `yaml:"proxy" env:"HTTPS_PROXY"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{
		Analysis: Analysis{
			Window:      20,
			VolMultiple: 2.0,
			ZThreshold:  2.5,
			MinPctChg:   3.0,
			MaxPctChg:   9.5,
			MinAmount:   1e8,
			StdFloor:    1e-6,
			Horizons:    []int{1, 5},
		},
		Sync: Sync{
			DefaultStart:    "20180101",
			StaleDays:       2,
			WidenDays:       3,
			EmptyLookback:   5,
			TradingLookback: 7,
			SeriesLookback:  14,
			ProbeLookback:   10,
			RetryAttempts:   3,
			RetryDelay:      time.Second,
			RetryJitter:     500 * time.Millisecond,
			Pacing:          300 * time.Millisecond,
		},
	}
	cfg.DataSource.Timeout = 30 * time.Second
	cfg.Store.Backend = "csv"
	cfg.Store.Dir = "data/daily"
	cfg.Store.SQLitePath = "data/bars.db"
	cfg.Universe.Path = "data/universe.csv"
	cfg.Universe.Prefixes = []string{"60", "68"}
	cfg.Schedule.ScreenCron = "0 30 15 * * 1-5"
	cfg.Schedule.BacktestCron = "0 0 10 * * 6"
	cfg.Database.SQLitePath = "data/volume_sentinel.db"
	cfg.Output.Dir = "output"
	cfg.Log.Level = "info"
	return cfg
}

// Load reads config from a YAML file over the defaults, then applies
// environment variable overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	a := c.Analysis
	if a.Window < 2 {
		return fmt.Errorf("analysis.window must be >= 2, got %d", a.Window)
	}
	if len(a.Horizons) == 0 {
		return fmt.Errorf("analysis.horizons must not be empty")
	}
	for _, h := range a.Horizons {
		if h <= 0 {
			return fmt.Errorf("analysis.horizons must be positive, got %d", h)
		}
	}
	if a.MaxPctChg <= a.MinPctChg {
		return fmt.Errorf("analysis.max_pct_chg (%v) must exceed min_pct_chg (%v)", a.MaxPctChg, a.MinPctChg)
	}
	if a.StdFloor <= 0 {
		return fmt.Errorf("analysis.std_floor must be positive")
	}
	if a.VolMultiple <= 0 {
		return fmt.Errorf("analysis.vol_multiple must be positive")
	}

	s := c.Sync
	if s.RetryAttempts < 1 {
		return fmt.Errorf("sync.retry_attempts must be >= 1")
	}
	if s.RetryDelay < 0 || s.RetryJitter < 0 || s.Pacing < 0 {
		return fmt.Errorf("sync delays must not be negative")
	}
	if s.StaleDays < 1 || s.WidenDays < 0 {
		return fmt.Errorf("sync.stale_days must be >= 1 and widen_days >= 0")
	}
	if _, err := time.Parse("20060102", s.DefaultStart); err != nil {
		return fmt.Errorf("sync.default_start must be YYYYMMDD: %w", err)
	}

	switch c.Store.Backend {
	case "csv":
		if c.Store.Dir == "" {
			return fmt.Errorf("store.dir is required for the csv backend")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("store.backend must be csv or sqlite, got %q", c.Store.Backend)
	}
	if c.Universe.Path == "" {
		return fmt.Errorf("universe.path is required")
	}
	return nil
}
