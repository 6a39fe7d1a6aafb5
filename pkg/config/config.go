package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/peter-kozarec/arbiter/pkg/exchange"
	"github.com/peter-kozarec/arbiter/pkg/exchange/sandbox"
	"github.com/peter-kozarec/arbiter/pkg/ledger"
	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

const (
	DataSynthetic = "synthetic"
	DataBinary    = "binary"
	DataDuckDB    = "duckdb"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Instruments []exchange.InstrumentInfo `yaml:"instruments"`
	Data        Data                      `yaml:"data"`
	Engine      Engine                    `yaml:"engine"`
	Sessions    []Session                 `yaml:"sessions"`
	Runner      Runner                    `yaml:"runner"`
	Telemetry   Listener                  `yaml:"telemetry"`
	Stream      Listener                  `yaml:"stream"`
	Persist     Persist                   `yaml:"persist"`
	Logging     Logging                   `yaml:"logging"`
}

type Data struct {
	Kind   string        `yaml:"kind"`
	Period time.Duration `yaml:"period"`
	From   time.Time     `yaml:"from"`
	To     time.Time     `yaml:"to"`

	// Files maps a symbol to its binary quote file.
	Files map[string]string `yaml:"files"`

	DSN   string `yaml:"dsn"`
	Table string `yaml:"table"`

	Synthetic Synthetic `yaml:"synthetic"`
}

type Synthetic struct {
	Seed            int64                 `yaml:"seed"`
	Steps           int64                 `yaml:"steps"`
	Correlation     float64               `yaml:"correlation"`
	GapProbability  float64               `yaml:"gap_probability"`
	HoleProbability float64               `yaml:"hole_probability"`
	Instruments     []SyntheticInstrument `yaml:"instruments"`
}

type SyntheticInstrument struct {
	Symbol     string      `yaml:"symbol"`
	StartPrice fixed.Point `yaml:"start_price"`
	Spread     fixed.Point `yaml:"spread"`
	Mu         float64     `yaml:"mu"`
	Sigma      float64     `yaml:"sigma"`
}

type Engine struct {
	CommissionRate  fixed.Point `yaml:"commission_rate"`
	LiquidityPolicy string      `yaml:"liquidity_policy"`
	MaxAttempts     int         `yaml:"max_attempts"`
	FillPriority    string      `yaml:"fill_priority"`
	ShortSelling    *bool       `yaml:"short_selling"`
	MaxPosition     fixed.Point `yaml:"max_position"`
	MarkMode        string      `yaml:"mark_mode"`
	CloseOnTeardown bool        `yaml:"close_on_teardown"`
}

type Session struct {
	Name           string      `yaml:"name"`
	StartCash      fixed.Point `yaml:"start_cash"`
	RebalanceEvery int         `yaml:"rebalance_every"`
	Strategy       Strategy    `yaml:"strategy"`
}

type Strategy struct {
	Kind       string      `yaml:"kind"`
	Legs       []string    `yaml:"legs"`
	Size       fixed.Point `yaml:"size"`
	Threshold  fixed.Point `yaml:"threshold"`
	TakeProfit fixed.Point `yaml:"take_profit"`
	HoldBars   int64       `yaml:"hold_bars"`
	Window     uint        `yaml:"window"`
	ZEntry     fixed.Point `yaml:"z_entry"`
}

type Runner struct {
	Parallelism   int           `yaml:"parallelism"`
	AuditInterval time.Duration `yaml:"audit_interval"`
}

type Listener struct {
	Listen string `yaml:"listen"`
}

// Persist stores finished sessions in postgres when DSN is set.
type Persist struct {
	DSN string `yaml:"dsn"`
}

type Logging struct {
	Level       string   `yaml:"level"`
	Development bool     `yaml:"development"`
	Monitor     []string `yaml:"monitor"`
	// Performance logs handler timings and router statistics per session.
	Performance bool `yaml:"performance"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read configuration %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unable to parse configuration: %w", err)
	}
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) withDefaults() {
	if c.Data.Kind == "" {
		c.Data.Kind = DataSynthetic
	}
	if c.Data.Period == 0 {
		c.Data.Period = time.Minute
	}
	if c.Data.Synthetic.Steps == 0 {
		c.Data.Synthetic.Steps = 1000
	}
	if c.Data.Synthetic.Seed == 0 {
		c.Data.Synthetic.Seed = 1
	}
	if c.Data.From.IsZero() {
		c.Data.From = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if c.Data.To.IsZero() {
		c.Data.To = c.Data.From.Add(time.Duration(c.Data.Synthetic.Steps) * c.Data.Period)
	}
	if c.Runner.Parallelism == 0 {
		c.Runner.Parallelism = 4
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	for i := range c.Sessions {
		session := &c.Sessions[i]
		if session.Name == "" {
			session.Name = fmt.Sprintf("session-%d", i)
		}
		if session.StartCash.IsZero() {
			session.StartCash = fixed.FromInt(100000, 0)
		}
		if session.RebalanceEvery == 0 {
			session.RebalanceEvery = 1
		}
		if session.Strategy.Size.IsZero() {
			session.Strategy.Size = fixed.One
		}
	}
}

func (c *Config) Validate() error {
	if len(c.Instruments) == 0 {
		return fmt.Errorf("no instruments: %w", ErrInvalidConfig)
	}
	if _, err := exchange.NewInstrumentTable(c.Instruments...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.EngineOptions(); err != nil {
		return err
	}

	switch c.Data.Kind {
	case DataSynthetic:
		if len(c.Data.Synthetic.Instruments) == 0 {
			return fmt.Errorf("synthetic data without instruments: %w", ErrInvalidConfig)
		}
	case DataBinary:
		for _, instrument := range c.Instruments {
			if c.Data.Files[instrument.Symbol] == "" {
				return fmt.Errorf("no binary file for %s: %w", instrument.Symbol, ErrInvalidConfig)
			}
		}
	case DataDuckDB:
		if c.Data.DSN == "" {
			return fmt.Errorf("duckdb data without dsn: %w", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("unknown data kind %q: %w", c.Data.Kind, ErrInvalidConfig)
	}
	if !c.Data.To.After(c.Data.From) {
		return fmt.Errorf("data range %s - %s is empty: %w", c.Data.From, c.Data.To, ErrInvalidConfig)
	}

	if len(c.Sessions) == 0 {
		return fmt.Errorf("no sessions: %w", ErrInvalidConfig)
	}
	names := make(map[string]struct{}, len(c.Sessions))
	for _, session := range c.Sessions {
		if _, ok := names[session.Name]; ok {
			return fmt.Errorf("duplicate session %q: %w", session.Name, ErrInvalidConfig)
		}
		names[session.Name] = struct{}{}
		if !session.StartCash.IsPositive() {
			return fmt.Errorf("session %q: start cash must be positive: %w", session.Name, ErrInvalidConfig)
		}
		if session.RebalanceEvery < 1 {
			return fmt.Errorf("session %q: rebalance_every must be at least 1: %w", session.Name, ErrInvalidConfig)
		}
	}
	return nil
}

// EngineOptions translates the engine section into sandbox options shared
// by every session.
func (c *Config) EngineOptions() ([]sandbox.Option, error) {
	policy, err := sandbox.ParseLiquidityPolicy(c.Engine.LiquidityPolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	priority, err := sandbox.ParseFillPriority(c.Engine.FillPriority)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	markMode, err := ledger.ParseMarkMode(c.Engine.MarkMode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Engine.MaxAttempts < 0 {
		return nil, fmt.Errorf("max_attempts must not be negative: %w", ErrInvalidConfig)
	}
	if c.Engine.CommissionRate.IsNegative() || c.Engine.MaxPosition.IsNegative() {
		return nil, fmt.Errorf("commission rate and max position must not be negative: %w", ErrInvalidConfig)
	}

	options := []sandbox.Option{
		sandbox.WithLiquidityPolicy(policy),
		sandbox.WithMaxAttempts(c.Engine.MaxAttempts),
		sandbox.WithFillPriority(priority),
		sandbox.WithMarkMode(markMode),
		sandbox.WithCloseOnTeardown(c.Engine.CloseOnTeardown),
	}
	if c.Engine.ShortSelling != nil {
		options = append(options, sandbox.WithShortSelling(*c.Engine.ShortSelling))
	}
	if c.Engine.MaxPosition.IsPositive() {
		options = append(options, sandbox.WithMaxPosition(c.Engine.MaxPosition))
	}
	if c.Engine.CommissionRate.IsPositive() {
		options = append(options, sandbox.WithCommissionRate(c.Engine.CommissionRate))
	}
	return options, nil
}

func (c *Config) InstrumentTable() (exchange.InstrumentTable, error) {
	return exchange.NewInstrumentTable(c.Instruments...)
}
