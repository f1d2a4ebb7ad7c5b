package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	RateSourceREST   = "rest"
	RateSourceStream = "stream"
)

type ExchangeConfig struct {
	RestURL           string  `toml:"rest_url"`
	WsURL             string  `toml:"ws_url"`
	APIKey            string  `toml:"api_key"`
	APISecret         string  `toml:"api_secret"`
	RecvWindowMs      int     `toml:"recv_window_ms"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

func (e ExchangeConfig) HasCredentials() bool {
	return strings.TrimSpace(e.APIKey) != "" && strings.TrimSpace(e.APISecret) != ""
}

type Config struct {
	App struct {
		CheckIntervalMin   int     `toml:"check_interval_min"`
		SummaryIntervalMin int     `toml:"summary_interval_min"`
		SummaryRetryMin    int     `toml:"summary_retry_min"`
		ErrorBackoffSec    int     `toml:"error_backoff_sec"`
		Threshold          float64 `toml:"threshold"`
		RateConcurrency    int     `toml:"rate_concurrency"`
		RateSource         string  `toml:"rate_source"`
		StreamMaxAgeSec    int     `toml:"stream_max_age_sec"`
	} `toml:"app"`

	Log struct {
		Level string `toml:"level"`
		File  string `toml:"file"`
	} `toml:"log"`

	Exchange struct {
		Binance ExchangeConfig `toml:"binance"`
		Bybit   ExchangeConfig `toml:"bybit"`
	} `toml:"exchange"`

	Telegram struct {
		Enabled  bool   `toml:"enabled"`
		APIURL   string `toml:"api_url"`
		BotToken string `toml:"bot_token"`
		ChatID   string `toml:"chat_id"`
	} `toml:"telegram"`

	Console struct {
		Enabled bool `toml:"enabled"`
	} `toml:"console"`

	Redis struct {
		Enabled       bool   `toml:"enabled"`
		Addr          string `toml:"addr"`
		Password      string `toml:"password"`
		DB            int    `toml:"db"`
		Prefix        string `toml:"prefix"`
		ReportStream  string `toml:"report_stream"`
		ReportChannel string `toml:"report_channel"`
		MaxLen        int64  `toml:"max_len"`
	} `toml:"redis"`

	SQLite struct {
		Enabled bool   `toml:"enabled"`
		Path    string `toml:"path"`
		// 报告保留天数，0 表示不清理
		RetentionDays int `toml:"retention_days"`
	} `toml:"sqlite"`

	Postgres struct {
		Enabled bool   `toml:"enabled"`
		DSN     string `toml:"dsn"`
	} `toml:"postgres"`

	Metrics struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"metrics"`

	// 显式设置过的键（文件或环境变量），显式的 0 不会被默认值覆盖
	defined map[string]bool
}

const (
	keyCheckInterval   = "app.check_interval_min"
	keySummaryInterval = "app.summary_interval_min"
)

func (c *Config) markDefined(key string) {
	if c.defined == nil {
		c.defined = make(map[string]bool)
	}
	c.defined[key] = true
}

func (c *Config) isDefined(key string) bool { return c.defined[key] }

func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.App.CheckIntervalMin) * time.Minute
}

func (c *Config) SummaryInterval() time.Duration {
	return time.Duration(c.App.SummaryIntervalMin) * time.Minute
}

func (c *Config) SummaryRetry() time.Duration {
	return time.Duration(c.App.SummaryRetryMin) * time.Minute
}

func (c *Config) ErrorBackoff() time.Duration {
	return time.Duration(c.App.ErrorBackoffSec) * time.Second
}

func (c *Config) ReportRetention() time.Duration {
	return time.Duration(c.SQLite.RetentionDays) * 24 * time.Hour
}

func (c *Config) StreamMaxAge() time.Duration {
	return time.Duration(c.App.StreamMaxAgeSec) * time.Second
}

// ConfigError 汇总所有配置问题，启动时一次性报告
type ConfigError struct {
	Problems []string
}

func (e *ConfigError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *ConfigError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

// Load reads the TOML file (optional when path is empty), the .env file in the
// working directory if present, then overlays the environment.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		for _, key := range []string{keyCheckInterval, keySummaryInterval} {
			if md.IsDefined(strings.Split(key, ".")...) {
				cfg.markDefined(key)
			}
		}
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	cerr := &ConfigError{}
	num := func(key, cfgKey string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			cerr.add("%s: not an integer: %q", key, v)
			return
		}
		*dst = n
		cfg.markDefined(cfgKey)
	}

	str("BINANCE_API_KEY", &cfg.Exchange.Binance.APIKey)
	str("BINANCE_API_SECRET", &cfg.Exchange.Binance.APISecret)
	str("BYBIT_API_KEY", &cfg.Exchange.Bybit.APIKey)
	str("BYBIT_API_SECRET", &cfg.Exchange.Bybit.APISecret)
	str("TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken)
	str("TELEGRAM_CHAT_ID", &cfg.Telegram.ChatID)
	str("LOG_LEVEL", &cfg.Log.Level)
	num("MONITOR_INTERVAL_MINUTES", keyCheckInterval, &cfg.App.CheckIntervalMin)
	num("SUMMARY_INTERVAL_MINUTES", keySummaryInterval, &cfg.App.SummaryIntervalMin)

	if v, ok := lookup("FUNDING_RATE_THRESHOLD"); ok && strings.TrimSpace(v) != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			cerr.add("FUNDING_RATE_THRESHOLD: not a number: %q", v)
		} else {
			cfg.App.Threshold = f
		}
	}

	// 设置了 token 和 chat id 即视为启用 telegram
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		cfg.Telegram.Enabled = true
	}

	if len(cerr.Problems) > 0 {
		return cerr
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.CheckIntervalMin == 0 && !cfg.isDefined(keyCheckInterval) {
		cfg.App.CheckIntervalMin = 1
	}
	if cfg.App.SummaryIntervalMin == 0 && !cfg.isDefined(keySummaryInterval) {
		cfg.App.SummaryIntervalMin = 60
	}
	if cfg.App.SummaryRetryMin == 0 {
		cfg.App.SummaryRetryMin = 5
	}
	if cfg.App.ErrorBackoffSec == 0 {
		cfg.App.ErrorBackoffSec = 60
	}
	if cfg.App.RateConcurrency <= 0 {
		cfg.App.RateConcurrency = 8
	}
	if cfg.App.RateSource == "" {
		cfg.App.RateSource = RateSourceREST
	}
	if cfg.App.StreamMaxAgeSec <= 0 {
		cfg.App.StreamMaxAgeSec = 120
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	bn := &cfg.Exchange.Binance
	if bn.RestURL == "" {
		bn.RestURL = "https://fapi.binance.com"
	}
	if bn.WsURL == "" {
		bn.WsURL = "wss://fstream.binance.com/ws/!markPrice@arr"
	}
	by := &cfg.Exchange.Bybit
	if by.RestURL == "" {
		by.RestURL = "https://api.bybit.com"
	}
	if by.WsURL == "" {
		by.WsURL = "wss://stream.bybit.com/v5/public/linear"
	}
	for _, ex := range []*ExchangeConfig{bn, by} {
		if ex.RecvWindowMs <= 0 {
			ex.RecvWindowMs = 5000
		}
		if ex.RequestsPerSecond <= 0 {
			ex.RequestsPerSecond = 10
		}
		if ex.Burst <= 0 {
			ex.Burst = 5
		}
	}

	if cfg.Telegram.APIURL == "" {
		cfg.Telegram.APIURL = "https://api.telegram.org"
	}
	// 没有 telegram 时至少要有一个输出
	if !cfg.Telegram.Enabled {
		cfg.Console.Enabled = true
	}

	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "frmon"
	}
	if cfg.Redis.MaxLen <= 0 {
		cfg.Redis.MaxLen = 10000
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = "frmon.db"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9102"
	}
}

func validate(cfg *Config) error {
	cerr := &ConfigError{}

	if cfg.App.CheckIntervalMin <= 0 {
		cerr.add("check interval must be > 0 minutes, got %d", cfg.App.CheckIntervalMin)
	}
	if cfg.App.SummaryIntervalMin <= 0 {
		cerr.add("summary interval must be > 0 minutes, got %d", cfg.App.SummaryIntervalMin)
	}
	if cfg.App.SummaryRetryMin < 0 {
		cerr.add("app.summary_retry_min must be >= 0")
	}
	if cfg.SQLite.RetentionDays < 0 {
		cerr.add("sqlite.retention_days must be >= 0")
	}
	if cfg.App.ErrorBackoffSec < 0 {
		cerr.add("app.error_backoff_sec must be >= 0")
	}
	switch cfg.App.RateSource {
	case RateSourceREST, RateSourceStream:
	default:
		cerr.add("app.rate_source must be %q or %q, got %q", RateSourceREST, RateSourceStream, cfg.App.RateSource)
	}

	if strings.TrimSpace(cfg.Exchange.Binance.APIKey) == "" {
		cerr.add("BINANCE_API_KEY is not set")
	}
	if strings.TrimSpace(cfg.Exchange.Binance.APISecret) == "" {
		cerr.add("BINANCE_API_SECRET is not set")
	}
	if strings.TrimSpace(cfg.Exchange.Bybit.APIKey) == "" {
		cerr.add("BYBIT_API_KEY is not set")
	}
	if strings.TrimSpace(cfg.Exchange.Bybit.APISecret) == "" {
		cerr.add("BYBIT_API_SECRET is not set")
	}

	if cfg.Telegram.Enabled {
		if cfg.Telegram.BotToken == "" {
			cerr.add("TELEGRAM_BOT_TOKEN is not set but telegram is enabled")
		}
		if cfg.Telegram.ChatID == "" {
			cerr.add("TELEGRAM_CHAT_ID is not set but telegram is enabled")
		}
	}
	if cfg.Redis.Enabled && strings.TrimSpace(cfg.Redis.Addr) == "" {
		cerr.add("redis.addr empty but enabled")
	}
	if cfg.Postgres.Enabled && strings.TrimSpace(cfg.Postgres.DSN) == "" {
		cerr.add("postgres.dsn empty but enabled")
	}

	if len(cerr.Problems) > 0 {
		return cerr
	}
	return nil
}

func mask(s string) string {
	if s == "" {
		return "unset"
	}
	return "set"
}

// String 脱敏后的配置摘要，可直接写日志
func (c *Config) String() string {
	return fmt.Sprintf(
		"check=%dm summary=%dm threshold=%+.4f%% rates=%s binance_key=%s bybit_key=%s telegram=%t(token=%s) console=%t redis=%t sqlite=%t postgres=%t metrics=%t",
		c.App.CheckIntervalMin, c.App.SummaryIntervalMin, c.App.Threshold, c.App.RateSource,
		mask(c.Exchange.Binance.APIKey), mask(c.Exchange.Bybit.APIKey),
		c.Telegram.Enabled, mask(c.Telegram.BotToken), c.Console.Enabled,
		c.Redis.Enabled, c.SQLite.Enabled, c.Postgres.Enabled, c.Metrics.Enabled,
	)
}
