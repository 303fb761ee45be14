// Package config loads and validates the bot's run configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tendbot/market"
	"tendbot/risk"
)

// Config is the complete run configuration.
type Config struct {
	Risk       RiskConfig        `json:"risk" yaml:"risk"`
	Monitor    MonitorConfig     `json:"monitor" yaml:"monitor"`
	Exchange   ExchangeConfig    `json:"exchange" yaml:"exchange"`
	Journal    JournalConfig     `json:"journal" yaml:"journal"`
	Ops        OpsConfig         `json:"ops" yaml:"ops"`
	Log        LogConfig         `json:"log" yaml:"log"`
	Candidates []CandidateConfig `json:"candidates" yaml:"candidates"`
}

// RiskConfig mirrors risk.Params in file form.
type RiskConfig struct {
	MaxPositions      int     `json:"max_positions" yaml:"max_positions"`
	RiskPerTradeUSD   float64 `json:"risk_per_trade_usd" yaml:"risk_per_trade_usd"`
	MaxAccountRiskPct float64 `json:"max_account_risk_pct" yaml:"max_account_risk_pct"`
	Leverage          float64 `json:"leverage" yaml:"leverage"`
	PartialTPFraction float64 `json:"partial_tp_fraction" yaml:"partial_tp_fraction"`
	TimeLimitHours    float64 `json:"time_limit_hours" yaml:"time_limit_hours"`
	TimeWarnThreshold float64 `json:"time_warn_threshold" yaml:"time_warn_threshold"`
}

func (r RiskConfig) Params() risk.Params {
	return risk.Params{
		MaxPositions:      r.MaxPositions,
		RiskPerTradeUSD:   r.RiskPerTradeUSD,
		MaxAccountRiskPct: r.MaxAccountRiskPct,
		Leverage:          r.Leverage,
		PartialTPFraction: r.PartialTPFraction,
		TimeLimitHours:    r.TimeLimitHours,
		TimeWarnThreshold: r.TimeWarnThreshold,
	}
}

// MonitorConfig contains loop timing parameters.
type MonitorConfig struct {
	IntervalSeconds       int `json:"interval_seconds" yaml:"interval_seconds"`
	RequestTimeoutSeconds int `json:"request_timeout_seconds" yaml:"request_timeout_seconds"`
	EntryTimeoutMinutes   int `json:"entry_timeout_minutes" yaml:"entry_timeout_minutes"`
	FailureEscalation     int `json:"failure_escalation" yaml:"failure_escalation"`
}

func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

func (m MonitorConfig) RequestTimeout() time.Duration {
	return time.Duration(m.RequestTimeoutSeconds) * time.Second
}

func (m MonitorConfig) EntryTimeout() time.Duration {
	return time.Duration(m.EntryTimeoutMinutes) * time.Minute
}

// ExchangeConfig selects and parameterizes the trading venue. Credentials
// never live in the file; LoadEnv pulls them from the environment.
type ExchangeConfig struct {
	Mode        string  `json:"mode" yaml:"mode"` // "paper" or "bitget"
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	WSURL       string  `json:"ws_url,omitempty" yaml:"ws_url,omitempty"`
	FeedCSV     string  `json:"feed_csv,omitempty" yaml:"feed_csv,omitempty"`
	PaperEquity float64 `json:"paper_equity,omitempty" yaml:"paper_equity,omitempty"`

	APIKey     string `json:"-" yaml:"-"`
	APISecret  string `json:"-" yaml:"-"`
	Passphrase string `json:"-" yaml:"-"`
}

// JournalConfig selects the archive backend.
type JournalConfig struct {
	Driver        string `json:"driver" yaml:"driver"` // "sqlite", "csv" or "none"
	DBPath        string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	PositionsFile string `json:"positions_file,omitempty" yaml:"positions_file,omitempty"`
	EquityFile    string `json:"equity_file,omitempty" yaml:"equity_file,omitempty"`
	OrgPath       string `json:"org_path,omitempty" yaml:"org_path,omitempty"`
}

// OpsConfig parameterizes the operational HTTP server.
type OpsConfig struct {
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"` // empty disables the server
}

// LogConfig controls output.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

// CandidateConfig is one trade setup in file form.
type CandidateConfig struct {
	Symbol        string  `json:"symbol" yaml:"symbol"`
	Side          string  `json:"side" yaml:"side"`
	EntryPrice    float64 `json:"entry_price" yaml:"entry_price"`
	TargetPrice   float64 `json:"target_price" yaml:"target_price"`
	StopLossPrice float64 `json:"stop_loss_price" yaml:"stop_loss_price"`
	Confidence    string  `json:"confidence" yaml:"confidence"`
	BaseIncrement float64 `json:"base_increment" yaml:"base_increment"`
	TickSize      float64 `json:"tick_size" yaml:"tick_size"`
}

// Candidate converts the file form into a validated market.Candidate.
func (cc CandidateConfig) Candidate() (market.Candidate, error) {
	side, err := market.ParseSide(cc.Side)
	if err != nil {
		return market.Candidate{}, fmt.Errorf("candidate %s: %w", cc.Symbol, err)
	}
	conf, err := market.ParseConfidence(cc.Confidence)
	if err != nil {
		return market.Candidate{}, fmt.Errorf("candidate %s: %w", cc.Symbol, err)
	}
	c := market.Candidate{
		Symbol:        cc.Symbol,
		Side:          side,
		EntryPrice:    cc.EntryPrice,
		TargetPrice:   cc.TargetPrice,
		StopLossPrice: cc.StopLossPrice,
		Confidence:    conf,
		BaseIncrement: cc.BaseIncrement,
		TickSize:      cc.TickSize,
	}
	if err := c.Validate(); err != nil {
		return market.Candidate{}, err
	}
	return c, nil
}

// CandidateList converts and validates every configured candidate.
func (c *Config) CandidateList() ([]market.Candidate, error) {
	out := make([]market.Candidate, 0, len(c.Candidates))
	for _, cc := range c.Candidates {
		cand, err := cc.Candidate()
		if err != nil {
			return nil, err
		}
		out = append(out, cand)
	}
	return out, nil
}

// LoadFromFile loads configuration from a file, trying YAML then JSON, and
// validates it.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile writes the configuration, YAML for .yaml/.yml paths and
// indented JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// LoadEnv fills exchange credentials from the environment, reading a .env
// file first when one exists.
func (c *Config) LoadEnv() {
	_ = godotenv.Load()

	if val := os.Getenv("BITGET_API_KEY"); val != "" {
		c.Exchange.APIKey = val
	}
	if val := os.Getenv("BITGET_API_SECRET"); val != "" {
		c.Exchange.APISecret = val
	}
	if val := os.Getenv("BITGET_PASSPHRASE"); val != "" {
		c.Exchange.Passphrase = val
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.Risk.Params().Validate(); err != nil {
		return err
	}
	if c.Monitor.IntervalSeconds <= 0 {
		return fmt.Errorf("monitor.interval_seconds must be positive")
	}
	if c.Monitor.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("monitor.request_timeout_seconds must be positive")
	}
	if c.Monitor.RequestTimeoutSeconds >= c.Monitor.IntervalSeconds {
		return fmt.Errorf("monitor.request_timeout_seconds must be shorter than the interval")
	}
	if c.Monitor.EntryTimeoutMinutes <= 0 {
		return fmt.Errorf("monitor.entry_timeout_minutes must be positive")
	}
	if c.Monitor.FailureEscalation <= 0 {
		return fmt.Errorf("monitor.failure_escalation must be positive")
	}
	switch c.Exchange.Mode {
	case "paper":
		if c.Exchange.PaperEquity <= 0 {
			return fmt.Errorf("exchange.paper_equity must be positive in paper mode")
		}
	case "bitget":
	default:
		return fmt.Errorf("exchange.mode must be 'paper' or 'bitget'")
	}
	switch c.Journal.Driver {
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal.db_path required for the sqlite driver")
		}
	case "csv":
		if c.Journal.PositionsFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal positions_file and equity_file required for the csv driver")
		}
	case "none":
	default:
		return fmt.Errorf("journal.driver must be 'sqlite', 'csv' or 'none'")
	}
	for _, cc := range c.Candidates {
		if _, err := cc.Candidate(); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a configuration with sensible defaults. Candidates and
// credentials still have to come from the file and the environment.
func Default() *Config {
	return &Config{
		Risk: RiskConfig{
			MaxPositions:      5,
			RiskPerTradeUSD:   6,
			MaxAccountRiskPct: 0.02,
			Leverage:          10,
			PartialTPFraction: 0.5,
			TimeLimitHours:    24,
			TimeWarnThreshold: 0.9,
		},
		Monitor: MonitorConfig{
			IntervalSeconds:       30,
			RequestTimeoutSeconds: 10,
			EntryTimeoutMinutes:   60,
			FailureEscalation:     3,
		},
		Exchange: ExchangeConfig{
			Mode:        "paper",
			BaseURL:     "https://api.bitget.com",
			WSURL:       "wss://ws.bitget.com/mix/v1/stream",
			PaperEquity: 300,
		},
		Journal: JournalConfig{
			Driver: "sqlite",
			DBPath: "./tendbot.db",
		},
		Ops: OpsConfig{
			Listen: ":8089",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
