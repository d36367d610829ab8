package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"PBRSentinel/internal/model"
)

// ErrMissingCredential is wrapped by Validate when a delivery credential is empty.
var ErrMissingCredential = errors.New("missing delivery credential")

// Config holds all application configuration. It is read from the environment only.
type Config struct {
	Telegram struct {
		BotToken string
		ChatID   string
		BaseURL  string
	}
	Index struct {
		Market string
		Name   string
	}
	DataSource struct {
		Fetcher   string // "krx" or "mock"
		BaseURL   string
		ChunkDays int
		RPS       float64
	}
	Thresholds    model.Thresholds
	HistoryYears  int
	ForceRun      bool
	RunOnStart    bool
	ExtraHolidays []string
	ScheduleCrons []string
	Pushgateway   string
	Proxy         string
	Log           struct {
		Level  string
		Format string
	}
}

// Getenv matches os.Getenv; tests substitute a map lookup.
type Getenv func(key string) string

// Load reads config from the process environment and applies defaults.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads config through getenv. Malformed values are errors; empty values take defaults.
func LoadFrom(getenv Getenv) (*Config, error) {
	cfg := &Config{}
	p := parser{getenv: getenv}

	cfg.Telegram.BotToken = strings.TrimSpace(getenv("TELEGRAM_BOT_TOKEN"))
	cfg.Telegram.ChatID = strings.TrimSpace(getenv("TELEGRAM_CHAT_ID"))
	cfg.Telegram.BaseURL = p.str("TELEGRAM_API_BASE", "https://api.telegram.org")

	cfg.Index.Market = p.str("PBR_MARKET", "KOSPI")
	cfg.Index.Name = p.str("PBR_INDEX_NAME", "코스피")

	cfg.DataSource.Fetcher = strings.ToLower(p.str("FETCHER", "krx"))
	cfg.DataSource.BaseURL = p.str("KRX_BASE_URL", "http://data.krx.co.kr")
	cfg.DataSource.ChunkDays = p.integer("KRX_CHUNK_DAYS", 730)
	cfg.DataSource.RPS = p.float("KRX_RPS", 2)

	cfg.Thresholds.Low = p.float("PBR_LOW", 0.84)
	cfg.Thresholds.High = p.float("PBR_HIGH", 1.60)
	cfg.Thresholds.HighEnabled = p.boolean("PBR_HIGH_ENABLED", true)
	cfg.Thresholds.TargetEnabled = p.boolean("TARGET_LEVEL_ENABLED", true)

	cfg.HistoryYears = p.integer("HISTORY_YEARS", 10)
	cfg.ForceRun = p.boolean("FORCE_RUN", false)
	cfg.RunOnStart = p.boolean("RUN_ON_START", false)
	cfg.ExtraHolidays = splitList(getenv("EXTRA_HOLIDAYS"), ",")
	cfg.ScheduleCrons = splitList(p.str("SCHEDULE_CRONS", "0 5 9 * * 1-5;0 40 15 * * 1-5"), ";")
	cfg.Pushgateway = strings.TrimSpace(getenv("PUSHGATEWAY_URL"))
	cfg.Proxy = strings.TrimSpace(getenv("HTTPS_PROXY"))

	cfg.Log.Level = strings.ToLower(p.str("LOG_LEVEL", "info"))
	cfg.Log.Format = strings.ToLower(p.str("LOG_FORMAT", "console"))

	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	return cfg, nil
}

// Validate checks that all required fields are set. It runs before any network call.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN: %w", ErrMissingCredential)
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("TELEGRAM_CHAT_ID: %w", ErrMissingCredential)
	}
	if c.Thresholds.Low <= 0 {
		return fmt.Errorf("PBR_LOW must be positive")
	}
	if c.Thresholds.HighEnabled && c.Thresholds.High <= c.Thresholds.Low {
		return fmt.Errorf("PBR_HIGH (%.2f) must be greater than PBR_LOW (%.2f)", c.Thresholds.High, c.Thresholds.Low)
	}
	if c.HistoryYears <= 0 {
		return fmt.Errorf("HISTORY_YEARS must be positive")
	}
	switch c.DataSource.Fetcher {
	case "krx", "mock":
	default:
		return fmt.Errorf("FETCHER must be krx or mock, got %q", c.DataSource.Fetcher)
	}
	return nil
}

type parser struct {
	getenv Getenv
	errs   []error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) float(key string, def float64) float64 {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return f
}

func (p *parser) integer(key string, def int) int {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(p.getenv(key)))
	switch v {
	case "":
		return def
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	p.errs = append(p.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
	return def
}

func splitList(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
