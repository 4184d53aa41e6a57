// Package config loads simulator settings from YAML or JSON files with
// environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/optsim/data"
	"github.com/rustyeddy/optsim/execution"
	"github.com/rustyeddy/optsim/journal"
	"github.com/rustyeddy/optsim/market"
	"github.com/rustyeddy/optsim/pricing"
)

// Environment variables honoured by ApplyEnv.
const (
	EnvData       = "OPTIONS_SIM_DATA"
	EnvSession    = "OPTIONS_SIM_SESSION"
	EnvJournalDSN = "OPTIONS_SIM_JOURNAL_DSN"
	EnvFillModel  = "OPTIONS_SIM_FILL_MODEL"
)

// Config represents the complete simulator configuration
type Config struct {
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Execution  execution.Policy `json:"execution" yaml:"execution"`
	Pricing    PricingConfig    `json:"pricing" yaml:"pricing"`
	Data       DataConfig       `json:"data" yaml:"data"`
	Journal    journal.Options  `json:"journal" yaml:"journal"`
	Session    SessionConfig    `json:"session" yaml:"session"`
	Server     ServerConfig     `json:"server" yaml:"server"`
}

// SimulationConfig holds the defaults for a new session
type SimulationConfig struct {
	Symbol            string  `json:"symbol" yaml:"symbol"`
	StartDate         string  `json:"start_date" yaml:"start_date"`
	InitialCash       float64 `json:"initial_cash" yaml:"initial_cash"`
	FillModel         string  `json:"fill_model" yaml:"fill_model"`
	RiskFreeRate      float64 `json:"risk_free_rate" yaml:"risk_free_rate"`
	DividendYield     float64 `json:"dividend_yield" yaml:"dividend_yield"`
	DefaultVolatility float64 `json:"default_volatility" yaml:"default_volatility"`
}

type PricingConfig struct {
	Backend string `json:"backend" yaml:"backend"` // "gonum" or "gaussian"
}

// DataConfig selects where quotes come from
type DataConfig struct {
	Source    string               `json:"source" yaml:"source"` // "csv" or "synthetic"
	Path      string               `json:"path,omitempty" yaml:"path,omitempty"`
	Holidays  []string             `json:"holidays,omitempty" yaml:"holidays,omitempty"`
	Synthetic data.SyntheticConfig `json:"synthetic" yaml:"synthetic"`
}

type SessionConfig struct {
	Path string `json:"path" yaml:"path"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON)
func LoadFromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(raw, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(raw, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SaveToFile saves configuration to a file (YAML or JSON based on extension)
func (c *Config) SaveToFile(path string) error {
	var raw []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		raw, err = yaml.Marshal(c)
	default:
		raw, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// ApplyEnv loads envFile (when it exists) into the process environment
// and applies the OPTIONS_SIM_* overrides. Variables already set in the
// environment win over the file.
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	if v := os.Getenv(EnvData); v != "" {
		c.Data.Source = "csv"
		c.Data.Path = v
	}
	if v := os.Getenv(EnvSession); v != "" {
		c.Session.Path = v
	}
	if v := os.Getenv(EnvJournalDSN); v != "" {
		c.Journal.Type = journal.TypePostgres
		c.Journal.DSN = v
	}
	if v := os.Getenv(EnvFillModel); v != "" {
		c.Simulation.FillModel = v
	}
	return c.Validate()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	s := c.Simulation
	if s.InitialCash <= 0 {
		return fmt.Errorf("simulation.initial_cash must be positive")
	}
	if s.StartDate != "" {
		if _, err := time.Parse(market.DateLayout, s.StartDate); err != nil {
			return fmt.Errorf("simulation.start_date must be YYYY-MM-DD")
		}
	}
	if _, err := execution.ParseFillModel(s.FillModel); err != nil {
		return fmt.Errorf("simulation.fill_model: %w", err)
	}
	if s.DefaultVolatility < 0 {
		return fmt.Errorf("simulation.default_volatility must be non-negative")
	}
	if err := c.Execution.Validate(); err != nil {
		return fmt.Errorf("execution: %w", err)
	}
	if _, err := pricing.New(c.Pricing.Backend); err != nil {
		return fmt.Errorf("pricing.backend: %w", err)
	}

	switch c.Data.Source {
	case "csv":
		if c.Data.Path == "" {
			return fmt.Errorf("data.path required for csv source")
		}
	case "synthetic":
		if err := c.Data.Synthetic.Validate(); err != nil {
			return fmt.Errorf("data.synthetic: %w", err)
		}
	default:
		return fmt.Errorf("data.source must be 'csv' or 'synthetic'")
	}
	if _, err := c.Data.HolidayDates(); err != nil {
		return err
	}

	if err := c.Journal.Validate(); err != nil {
		return err
	}
	if c.Session.Path == "" {
		return fmt.Errorf("session.path is required")
	}
	return nil
}

// HolidayDates parses the configured market holidays.
func (d DataConfig) HolidayDates() ([]time.Time, error) {
	out := make([]time.Time, 0, len(d.Holidays))
	for _, h := range d.Holidays {
		t, err := time.Parse(market.DateLayout, h)
		if err != nil {
			return nil, fmt.Errorf("data.holidays: bad date %q", h)
		}
		out = append(out, t)
	}
	return out, nil
}

// Calendar builds the trading calendar.
func (d DataConfig) Calendar() (data.Calendar, error) {
	hs, err := d.HolidayDates()
	if err != nil {
		return data.Calendar{}, err
	}
	return data.NewCalendar(hs...), nil
}

// DefaultSessionPath is ~/.options-sim/session.json.
func DefaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".options-sim", "session.json")
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Symbol:            "SPY",
			StartDate:         "2024-01-15",
			InitialCash:       100000,
			FillModel:         string(execution.Midpoint),
			RiskFreeRate:      0.05,
			DefaultVolatility: 0.25,
		},
		Execution: execution.DefaultPolicy(),
		Pricing:   PricingConfig{Backend: pricing.BackendGonum},
		Data: DataConfig{
			Source:    "synthetic",
			Synthetic: data.DefaultSyntheticConfig(),
		},
		Journal: journal.Options{Type: journal.TypeNone},
		Session: SessionConfig{Path: DefaultSessionPath()},
		Server:  ServerConfig{Addr: ":8080"},
	}
}
