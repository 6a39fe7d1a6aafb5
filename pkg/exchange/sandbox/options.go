package sandbox

import (
	"fmt"
	"strings"

	"github.com/peter-kozarec/arbiter/pkg/bus"
	"github.com/peter-kozarec/arbiter/pkg/ledger"
	"github.com/peter-kozarec/arbiter/pkg/utility/fixed"
)

type Option func(*sessionConfig)

// LiquidityPolicy decides what happens to a market-equivalent order whose
// quote side is absent.
type LiquidityPolicy int

const (
	// LiquidityRetry keeps the order resting until the side reappears.
	LiquidityRetry LiquidityPolicy = iota
	// LiquidityExpire expires the order on the first failed attempt.
	LiquidityExpire
)

// FillPriority orders the resting orders evaluated on one snapshot. Ties
// are always broken by order id.
type FillPriority int

const (
	PriorityFIFO FillPriority = iota
	PriorityProtectiveFirst
)

func (p LiquidityPolicy) String() string {
	if p == LiquidityExpire {
		return "expire"
	}
	return "retry"
}

func ParseLiquidityPolicy(s string) (LiquidityPolicy, error) {
	switch strings.ToLower(s) {
	case "", "retry":
		return LiquidityRetry, nil
	case "expire":
		return LiquidityExpire, nil
	default:
		return 0, fmt.Errorf("unknown liquidity policy %q", s)
	}
}

func (p FillPriority) String() string {
	if p == PriorityProtectiveFirst {
		return "protective-first"
	}
	return "fifo"
}

func ParseFillPriority(s string) (FillPriority, error) {
	switch strings.ToLower(s) {
	case "", "fifo":
		return PriorityFIFO, nil
	case "protective-first":
		return PriorityProtectiveFirst, nil
	default:
		return 0, fmt.Errorf("unknown fill priority %q", s)
	}
}

type sessionConfig struct {
	symbols         []string
	router          *bus.Router
	liquidityPolicy LiquidityPolicy
	maxAttempts     int
	priority        FillPriority
	closeOnTeardown bool
	constraints     ledger.Constraints
	ledgerOptions   []ledger.Option
}

// WithSymbols restricts a session to a subset of the instrument table.
func WithSymbols(symbols ...string) Option {
	return func(c *sessionConfig) {
		c.symbols = append([]string(nil), symbols...)
	}
}

// WithRouter delivers the session's events to router. Without it events
// go to an empty router.
func WithRouter(router *bus.Router) Option {
	return func(c *sessionConfig) {
		c.router = router
	}
}

func WithLiquidityPolicy(policy LiquidityPolicy) Option {
	return func(c *sessionConfig) {
		c.liquidityPolicy = policy
	}
}

// WithMaxAttempts expires a market-equivalent order after n snapshots
// without liquidity. Zero retries forever.
func WithMaxAttempts(n int) Option {
	return func(c *sessionConfig) {
		c.maxAttempts = n
	}
}

func WithFillPriority(priority FillPriority) Option {
	return func(c *sessionConfig) {
		c.priority = priority
	}
}

// WithCloseOnTeardown flattens open positions at the last seen quotes when
// the session closes.
func WithCloseOnTeardown(enabled bool) Option {
	return func(c *sessionConfig) {
		c.closeOnTeardown = enabled
	}
}

func WithShortSelling(allowed bool) Option {
	return func(c *sessionConfig) {
		c.constraints.AllowShort = allowed
	}
}

func WithMaxPosition(limit fixed.Point) Option {
	return func(c *sessionConfig) {
		c.constraints.MaxPosition = limit
	}
}

func WithCommissionRate(rate fixed.Point) Option {
	return func(c *sessionConfig) {
		c.ledgerOptions = append(c.ledgerOptions, ledger.WithCommissionRate(rate))
	}
}

func WithCommissionHandler(handler ledger.CommissionHandler) Option {
	return func(c *sessionConfig) {
		c.ledgerOptions = append(c.ledgerOptions, ledger.WithCommissionHandler(handler))
	}
}

func WithMarkMode(mode ledger.MarkMode) Option {
	return func(c *sessionConfig) {
		c.ledgerOptions = append(c.ledgerOptions, ledger.WithMarkMode(mode))
	}
}
