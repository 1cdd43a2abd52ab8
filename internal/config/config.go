// Package config builds the single configuration value handed to the commands.
// Sources, lowest precedence first: built-in defaults, an optional YAML file,
// environment variables, then command-line flags applied by each command.
package config

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // exchange timezones on hosts without zoneinfo

	yaml "gopkg.in/yaml.v3"

	"switchBotTrade/internal/backtest"
)

const dateLayout = "2006-01-02"

// Config is the complete application configuration.
type Config struct {
	Backtest BacktestConfig `yaml:"backtest"`
	Trade    TradeConfig    `yaml:"trade"`
	Data     DataConfig     `yaml:"data"`
	Signal   SignalConfig   `yaml:"signal"`
	Notify   NotifyConfig   `yaml:"notify"`
	Bot      BotConfig      `yaml:"bot"`
	Output   OutputConfig   `yaml:"output"`
	Log      LogConfig      `yaml:"log"`
}

// BacktestConfig selects the pair, the date range and the starting position.
type BacktestConfig struct {
	Ticker1 string  `yaml:"ticker1"`
	Ticker2 string  `yaml:"ticker2"`
	Start   string  `yaml:"start"` // YYYY-MM-DD
	End     string  `yaml:"end"`   // YYYY-MM-DD, inclusive
	Shares1 int64   `yaml:"shares1"`
	Shares2 int64   `yaml:"shares2"`
	Cash    float64 `yaml:"cash"`
}

// TradeConfig holds the switching rule and the cost model.
type TradeConfig struct {
	HysteresisBps float64 `yaml:"hysteresis_bps"`
	CooldownDays  int     `yaml:"cooldown_days"`
	FeeBps        float64 `yaml:"fee_bps"`
	SlippageBps   float64 `yaml:"slippage_bps"`
	RiskFree      float64 `yaml:"risk_free"`
}

// DataConfig picks the market-data provider.
type DataConfig struct {
	Provider     string   `yaml:"provider"` // yahoo | alpaca
	YahooHosts   []string `yaml:"yahoo_hosts"`
	AlpacaKeyID  string   `yaml:"alpaca_key_id"`
	AlpacaSecret string   `yaml:"alpaca_secret"`
	AlpacaFeed   string   `yaml:"alpaca_feed"` // iex | sip
	TimeoutSec   int      `yaml:"timeout_sec"`
	Breaker      bool     `yaml:"breaker"`
}

// SignalConfig drives the point-in-time evaluation.
type SignalConfig struct {
	TickerA           string  `yaml:"ticker_a"`
	TickerB           string  `yaml:"ticker_b"`
	LabelA            string  `yaml:"label_a"`
	LabelB            string  `yaml:"label_b"`
	Holding           string  `yaml:"holding"` // A | B | auto
	DeltaBps          float64 `yaml:"delta_bps"`
	TimeGuard         bool    `yaml:"time_guard"`
	Timezone          string  `yaml:"timezone"`
	WindowStart       string  `yaml:"window_start"` // HH:MM
	WindowEnd         string  `yaml:"window_end"`   // HH:MM
	OpenRetries       int     `yaml:"open_retries"`
	OpenRetryDelaySec int     `yaml:"open_retry_delay_sec"`
}

// NotifyConfig lists where a signal is posted. Empty targets are skipped.
type NotifyConfig struct {
	DiscordWebhookURL string `yaml:"discord_webhook_url"`
	TelegramChatID    int64  `yaml:"telegram_chat_id"`
}

// BotConfig is the Telegram bot and its HTTP server.
type BotConfig struct {
	TelegramToken    string `yaml:"telegram_token"`
	WebhookPublicURL string `yaml:"webhook_public_url"`
	OpenAIKey        string `yaml:"openai_api_key"`
	OpenAIModel      string `yaml:"openai_model"`
	Port             string `yaml:"port"`
}

// OutputConfig controls exports and persistence.
type OutputConfig struct {
	ExportCSV   string `yaml:"export_csv"`
	SwitchesCSV string `yaml:"switches_csv"`
	Chart       string `yaml:"chart"`
	DBPath      string `yaml:"db_path"`
}

// LogConfig sets the logger level: debug | info | warn | error.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Backtest: BacktestConfig{
			Ticker1: "VEQT.TO",
			Ticker2: "SU.TO",
			Start:   "2024-01-01",
			End:     "2025-08-01",
			Shares1: 500,
		},
		Trade: TradeConfig{
			HysteresisBps: 7,
			CooldownDays:  7,
		},
		Data: DataConfig{
			Provider:   "yahoo",
			YahooHosts: []string{"query1.finance.yahoo.com", "query2.finance.yahoo.com"},
			AlpacaFeed: "iex",
			TimeoutSec: 20,
			Breaker:    true,
		},
		Signal: SignalConfig{
			TickerA:           "VFV.TO",
			TickerB:           "VEQT.TO",
			LabelA:            "A",
			LabelB:            "B",
			Holding:           "A",
			DeltaBps:          7,
			Timezone:          "America/Toronto",
			WindowStart:       "09:31",
			WindowEnd:         "09:40",
			OpenRetries:       8,
			OpenRetryDelaySec: 10,
		},
		Bot: BotConfig{
			OpenAIModel: "gpt-4",
			Port:        "9095",
		},
		Output: OutputConfig{
			DBPath: "/app/data/switch.db",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the optional YAML file at path over the defaults, then applies the
// environment, then validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator supplied config path
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := decodeYAML(string(data), &cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func decodeYAML(raw string, cfg *Config) error {
	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

// applyEnv overrides fields from the environment. Unset or empty variables are ignored.
func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	var errs []string
	float := func(key string, dst *float64) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %q is not a number", key, v))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %q is not an integer", key, v))
				return
			}
			*dst = n
		}
	}

	str("TICKER_A", &c.Signal.TickerA)
	str("TICKER_B", &c.Signal.TickerB)
	str("LABEL_A", &c.Signal.LabelA)
	str("LABEL_B", &c.Signal.LabelB)
	str("CURRENT_HOLDING", &c.Signal.Holding)
	float("DELTA_BPS", &c.Signal.DeltaBps)
	if v := getenv("TIME_GUARD"); v != "" {
		c.Signal.TimeGuard = envBool(v)
	}
	integer("OPEN_RETRIES", &c.Signal.OpenRetries)
	integer("OPEN_RETRY_DELAY", &c.Signal.OpenRetryDelaySec)

	str("DISCORD_WEBHOOK_URL", &c.Notify.DiscordWebhookURL)
	if v := strings.TrimSpace(getenv("TELEGRAM_CHAT_ID")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("TELEGRAM_CHAT_ID: %q is not an integer", v))
		} else {
			c.Notify.TelegramChatID = id
		}
	}

	str("TELEGRAM_BOT_TOKEN", &c.Bot.TelegramToken)
	str("WEBHOOK_PUBLIC_URL", &c.Bot.WebhookPublicURL)
	str("OPENAI_API_KEY", &c.Bot.OpenAIKey)
	str("PORT", &c.Bot.Port)

	str("DATA_PROVIDER", &c.Data.Provider)
	str("APCA_API_KEY_ID", &c.Data.AlpacaKeyID)
	str("APCA_API_SECRET_KEY", &c.Data.AlpacaSecret)

	str("DB_PATH", &c.Output.DBPath)
	str("LOG_LEVEL", &c.Log.Level)

	if len(errs) > 0 {
		return fmt.Errorf("environment: %s", strings.Join(errs, "; "))
	}
	return nil
}

func envBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}

// Validate checks that all configuration values are valid and consistent.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Backtest.Ticker1) == "" || strings.TrimSpace(c.Backtest.Ticker2) == "" {
		return fmt.Errorf("backtest.ticker1 and backtest.ticker2 are required")
	}
	if strings.EqualFold(c.Backtest.Ticker1, c.Backtest.Ticker2) {
		return fmt.Errorf("backtest.ticker1 and backtest.ticker2 must differ")
	}
	if _, _, err := c.Range(); err != nil {
		return err
	}
	if err := c.Holdings().Validate(); err != nil {
		return fmt.Errorf("backtest: %w", err)
	}
	if err := c.TradeParams().Validate(); err != nil {
		return fmt.Errorf("trade: %w", err)
	}
	if math.IsNaN(c.Trade.RiskFree) || math.IsInf(c.Trade.RiskFree, 0) {
		return fmt.Errorf("trade.risk_free must be a finite number")
	}

	switch c.Data.Provider {
	case "yahoo":
		if len(c.Data.YahooHosts) == 0 {
			return fmt.Errorf("data.yahoo_hosts must list at least one host")
		}
	case "alpaca":
		if c.Data.AlpacaKeyID == "" || c.Data.AlpacaSecret == "" {
			return fmt.Errorf("data.alpaca_key_id and data.alpaca_secret are required for the alpaca provider")
		}
		if c.Data.AlpacaFeed != "iex" && c.Data.AlpacaFeed != "sip" {
			return fmt.Errorf("data.alpaca_feed must be 'iex' or 'sip'")
		}
	default:
		return fmt.Errorf("data.provider must be 'yahoo' or 'alpaca'")
	}
	if c.Data.TimeoutSec <= 0 {
		return fmt.Errorf("data.timeout_sec must be > 0")
	}

	if c.Signal.TickerA == "" || c.Signal.TickerB == "" {
		return fmt.Errorf("signal.ticker_a and signal.ticker_b are required")
	}
	switch strings.ToUpper(c.Signal.Holding) {
	case "A", "B", "AUTO":
	default:
		return fmt.Errorf("signal.holding must be 'A', 'B' or 'auto'")
	}
	if math.IsNaN(c.Signal.DeltaBps) {
		return fmt.Errorf("signal.delta_bps must be a number")
	}
	if _, err := time.LoadLocation(c.Signal.Timezone); err != nil {
		return fmt.Errorf("signal.timezone invalid: %w", err)
	}
	start, err := parseClock(c.Signal.WindowStart)
	if err != nil {
		return fmt.Errorf("signal.window_start invalid: %w", err)
	}
	end, err := parseClock(c.Signal.WindowEnd)
	if err != nil {
		return fmt.Errorf("signal.window_end invalid: %w", err)
	}
	if end < start {
		return fmt.Errorf("signal.window_end must not be before signal.window_start")
	}
	if c.Signal.OpenRetries < 1 {
		return fmt.Errorf("signal.open_retries must be >= 1")
	}
	if c.Signal.OpenRetryDelaySec < 0 {
		return fmt.Errorf("signal.open_retry_delay_sec must be >= 0")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

// RequireBot reports the settings the Telegram bot cannot start without.
func (c *Config) RequireBot() error {
	var missing []string
	if c.Bot.TelegramToken == "" {
		missing = append(missing, "bot.telegram_token (TELEGRAM_BOT_TOKEN)")
	}
	if c.Bot.WebhookPublicURL == "" {
		missing = append(missing, "bot.webhook_public_url (WEBHOOK_PUBLIC_URL)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Range parses the backtest dates. End must not precede start.
func (c *Config) Range() (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, c.Backtest.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.start must be YYYY-MM-DD: %w", err)
	}
	end, err := time.Parse(dateLayout, c.Backtest.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.end must be YYYY-MM-DD: %w", err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.end (%s) is before backtest.start (%s)", c.Backtest.End, c.Backtest.Start)
	}
	return start, end, nil
}

// TradeParams converts the trade section into engine parameters.
func (c *Config) TradeParams() backtest.TradeParams {
	return backtest.TradeParams{
		HysteresisBps: c.Trade.HysteresisBps,
		CooldownDays:  c.Trade.CooldownDays,
		FeeBps:        c.Trade.FeeBps,
		SlippageBps:   c.Trade.SlippageBps,
	}
}

// Holdings converts the starting position into engine holdings.
func (c *Config) Holdings() backtest.Holdings {
	return backtest.Holdings{
		Shares1: c.Backtest.Shares1,
		Shares2: c.Backtest.Shares2,
		Cash:    c.Backtest.Cash,
	}
}

// SignalHolding maps A/B to an asset. ok is false for "auto", which means the
// caller must look up the last persisted signal.
func (c *Config) SignalHolding() (a backtest.Asset, ok bool) {
	switch strings.ToUpper(c.Signal.Holding) {
	case "A":
		return backtest.Asset1, true
	case "B":
		return backtest.Asset2, true
	}
	return 0, false
}

// Location returns the signal timezone, falling back to fixed EST if tzdata is missing.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Signal.Timezone)
	if err != nil {
		return time.FixedZone("EST", -5*3600)
	}
	return loc
}

// InWindow reports whether now, read in the signal timezone, falls inside the
// inclusive [window_start, window_end] minute range.
func (c *Config) InWindow(now time.Time) bool {
	start, err1 := parseClock(c.Signal.WindowStart)
	end, err2 := parseClock(c.Signal.WindowEnd)
	if err1 != nil || err2 != nil {
		return false
	}
	local := now.In(c.Location())
	m := local.Hour()*60 + local.Minute()
	return m >= start && m <= end
}

// OpenRetryDelay is the pause between attempts to read today's open.
func (c *Config) OpenRetryDelay() time.Duration {
	return time.Duration(c.Signal.OpenRetryDelaySec) * time.Second
}

// parseClock turns HH:MM into minutes after midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
