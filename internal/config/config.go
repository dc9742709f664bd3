package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. SENTINEL_TELEGRAM_BOT_TOKEN.
const EnvPrefix = "SENTINEL"

// Config holds all application configuration.
type Config struct {
	Telegram struct {
		BotToken    string `yaml:"bot_token" envconfig:"BOT_TOKEN"`
		AdminChatID string `yaml:"admin_chat_id" envconfig:"ADMIN_CHAT_ID"`
		APIBase     string `yaml:"api_base" envconfig:"API_BASE"`
		Polling     bool   `yaml:"polling" envconfig:"POLLING"`
	} `yaml:"telegram"`
	Upstream struct {
		BinanceBaseURL   string        `yaml:"binance_base_url" envconfig:"BINANCE_BASE_URL"`
		CoinGeckoBaseURL string        `yaml:"coingecko_base_url" envconfig:"COINGECKO_BASE_URL"`
		Timeout          time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
		MaxAttempts      int           `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
		BaseBackoff      time.Duration `yaml:"base_backoff" envconfig:"BASE_BACKOFF"`
		Proxy            string        `yaml:"proxy" envconfig:"PROXY"`
	} `yaml:"upstream"`
	Monitor struct {
		Interval    time.Duration `yaml:"interval" envconfig:"INTERVAL"`
		SymbolDelay time.Duration `yaml:"symbol_delay" envconfig:"SYMBOL_DELAY"`
		Timeframe   string        `yaml:"timeframe" envconfig:"TIMEFRAME"`
	} `yaml:"monitor"`
	Scan struct {
		Cron       string   `yaml:"cron" envconfig:"CRON"`
		Timeframe  string   `yaml:"timeframe" envconfig:"TIMEFRAME"`
		Symbols    []string `yaml:"symbols" envconfig:"SYMBOLS"`
		RunOnStart bool     `yaml:"run_on_start" envconfig:"RUN_ON_START"`
	} `yaml:"scan"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`
	} `yaml:"database"`
	HTTP struct {
		Addr string `yaml:"addr" envconfig:"ADDR"`
	} `yaml:"http"`
}

// Load reads .env, then the YAML file, then applies SENTINEL_* environment overrides
// and fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	// Standard proxy variable, honoured when nothing more specific is set
	if cfg.Upstream.Proxy == "" {
		cfg.Upstream.Proxy = os.Getenv("HTTPS_PROXY")
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Telegram.APIBase == "" {
		c.Telegram.APIBase = "https://api.telegram.org"
	}
	if c.Upstream.BinanceBaseURL == "" {
		c.Upstream.BinanceBaseURL = "https://api.binance.com"
	}
	if c.Upstream.CoinGeckoBaseURL == "" {
		c.Upstream.CoinGeckoBaseURL = "https://api.coingecko.com"
	}
	if c.Upstream.Timeout == 0 {
		c.Upstream.Timeout = 10 * time.Second
	}
	if c.Upstream.MaxAttempts == 0 {
		c.Upstream.MaxAttempts = 3
	}
	if c.Upstream.BaseBackoff == 0 {
		c.Upstream.BaseBackoff = time.Second
	}
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = 30 * time.Second
	}
	if c.Monitor.SymbolDelay == 0 {
		c.Monitor.SymbolDelay = time.Second
	}
	if c.Monitor.Timeframe == "" {
		c.Monitor.Timeframe = "1m"
	}
	if c.Scan.Cron == "" {
		c.Scan.Cron = "0 0 * * * *"
	}
	if c.Scan.Timeframe == "" {
		c.Scan.Timeframe = "1h"
	}
	if len(c.Scan.Symbols) == 0 {
		c.Scan.Symbols = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT"}
	}
	if c.Database.SQLitePath == "" {
		c.Database.SQLitePath = "data/sentinel.db"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
}

// Validate checks that all fields hold usable values.
func (c *Config) Validate() error {
	if c.Telegram.BotToken != "" && c.Telegram.AdminChatID == "" {
		return fmt.Errorf("telegram.admin_chat_id is required when bot_token is set")
	}
	if c.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if c.Upstream.MaxAttempts < 1 {
		return fmt.Errorf("upstream.max_attempts must be at least 1")
	}
	if c.Upstream.BaseBackoff < 0 {
		return fmt.Errorf("upstream.base_backoff must not be negative")
	}
	if c.Monitor.Interval < time.Second {
		return fmt.Errorf("monitor.interval must be at least 1s, got %v", c.Monitor.Interval)
	}
	if c.Monitor.SymbolDelay < 0 {
		return fmt.Errorf("monitor.symbol_delay must not be negative")
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(c.Scan.Cron); err != nil {
		return fmt.Errorf("scan.cron %q: %w", c.Scan.Cron, err)
	}
	for _, s := range c.Scan.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("scan.symbols contains an empty entry")
		}
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	return nil
}
