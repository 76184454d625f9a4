package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"solsniper/internal/fees"
	"solsniper/internal/marketdata"
	"solsniper/internal/signal"
	"solsniper/internal/target"
)

const (
	// DiscoveryFloor is the lowest priority worth tracking in the ranker.
	DiscoveryFloor = 30.0
	// ExecutionFloor is the lowest priority eligible for execution.
	ExecutionFloor = 70.0

	DefaultStrengthWeight = 0.5
	DefaultMinLiquidity   = 10_000.0

	freshLaunchAge = 5 * time.Minute
)

var (
	baseFeeSOL        = decimal.RequireFromString("0.000005")
	freshLaunchFeeSOL = decimal.RequireFromString("0.000008")
	minSizeFactor     = decimal.RequireFromString("0.5")
	maxSizeFactor     = decimal.NewFromInt(2)
	fallbackBuySOL    = decimal.RequireFromString("0.1")
)

// Params are the strategy-specific thresholds the scorer runs with.
type Params struct {
	StrengthWeight    float64
	MinLiquidity      float64
	BuyAmount         decimal.Decimal
	MaxSlippage       float64
	ReputableCreators []string
}

// Input is everything the scorer looks at for one signal.
type Input struct {
	Signal  signal.Signal
	Metrics marketdata.SubjectMetrics
	// Fee is the current execution cost recommendation; nil uses the fallback fee.
	Fee *fees.Estimate
	Now time.Time
}

type rule struct {
	bonus float64
	note  string
	hit   func(in Input, p Params, age time.Duration, hasAge bool) bool
}

// rules run in this order; the rationale lists hits in the same order.
var rules = []rule{
	{50, "fresh launch (<5m)", func(_ Input, _ Params, age time.Duration, hasAge bool) bool {
		return hasAge && age < freshLaunchAge
	}},
	{20, "liquidity above minimum", func(in Input, p Params, _ time.Duration, _ bool) bool {
		return in.Metrics.Liquidity >= p.minLiquidity()
	}},
	{20, "early liquidity (<100k)", func(in Input, _ Params, _ time.Duration, _ bool) bool {
		return in.Metrics.Liquidity > 0 && in.Metrics.Liquidity < 100_000
	}},
	{15, "low market cap", func(in Input, _ Params, _ time.Duration, _ bool) bool {
		return in.Metrics.MarketCap > 0 && in.Metrics.MarketCap < 1_000_000
	}},
	{30, "volume/market-cap above 0.5", func(in Input, _ Params, _ time.Duration, _ bool) bool {
		return in.Metrics.MarketCap > 0 && in.Metrics.Volume24h > 0.5*in.Metrics.MarketCap
	}},
	{15, "volume/liquidity above 0.5", func(in Input, _ Params, _ time.Duration, _ bool) bool {
		return in.Metrics.Liquidity > 0 && in.Metrics.Volume24h > 0.5*in.Metrics.Liquidity
	}},
	{25, "bonding curve 80-95%", func(in Input, _ Params, _ time.Duration, _ bool) bool {
		return in.Metrics.BondingProgress >= 80 && in.Metrics.BondingProgress <= 95
	}},
	{15, "verified socials", func(in Input, _ Params, _ time.Duration, _ bool) bool {
		return len(in.Metrics.Socials) >= 2
	}},
	{10, "reputable creator", func(in Input, p Params, _ time.Duration, _ bool) bool {
		c := strings.TrimSpace(in.Metrics.Creator)
		if c == "" {
			return false
		}
		for _, rc := range p.ReputableCreators {
			if strings.EqualFold(strings.TrimSpace(rc), c) {
				return true
			}
		}
		return false
	}},
}

// Score returns the clamped priority and the rationale for one input. It is a
// pure function of its arguments.
func Score(in Input, p Params) (float64, string) {
	weight := p.StrengthWeight
	if weight <= 0 {
		weight = DefaultStrengthWeight
	}
	var notes []string
	total := in.Signal.Strength * weight
	if total > 0 {
		notes = append(notes, fmt.Sprintf("signal strength %.0f", in.Signal.Strength))
	}
	age, hasAge := launchAge(in)
	for _, r := range rules {
		if r.hit(in, p, age, hasAge) {
			total += r.bonus
			notes = append(notes, r.note)
		}
	}
	return clamp(total, 0, 100), strings.Join(notes, "; ")
}

// Evaluate scores the input and builds a Target when the priority reaches floor.
func Evaluate(in Input, p Params, floor float64) (target.Target, bool) {
	priority, rationale := Score(in, p)
	if priority <= 0 || priority < floor {
		return target.Target{}, false
	}
	m := in.Metrics
	symbol := m.Symbol
	if symbol == "" {
		symbol = in.Signal.Symbol
	}
	buy := p.BuyAmount
	if !buy.IsPositive() {
		buy = fallbackBuySOL
	}
	slippage := p.MaxSlippage
	if slippage <= 0 {
		slippage = 3
	}
	return target.Target{
		SubjectID:    in.Signal.SubjectID,
		Symbol:       symbol,
		CreatorID:    m.Creator,
		Kind:         string(in.Signal.Kind),
		Source:       in.Signal.Source,
		Price:        m.Price,
		Liquidity:    m.Liquidity,
		MarketCap:    m.MarketCap,
		Priority:     priority,
		Rationale:    rationale,
		EstimatedFee: estimatedFee(in),
		MinSize:      buy.Mul(minSizeFactor),
		MaxSize:      buy.Mul(maxSizeFactor),
		MaxSlippage:  slippage,
		CreatedAt:    in.now(),
	}, true
}

func estimatedFee(in Input) decimal.Decimal {
	if in.Fee != nil && in.Fee.TotalFee > 0 {
		return decimal.NewFromFloat(in.Fee.TotalFee)
	}
	if age, ok := launchAge(in); ok && age < freshLaunchAge {
		return freshLaunchFeeSOL
	}
	return baseFeeSOL
}

func launchAge(in Input) (time.Duration, bool) {
	launched := in.Metrics.LaunchedAt
	if launched.IsZero() {
		launched = in.Signal.Raw.LaunchedAt
	}
	if launched.IsZero() {
		return 0, false
	}
	age := in.now().Sub(launched)
	if age < 0 {
		age = 0
	}
	return age, true
}

func (in Input) now() time.Time {
	if !in.Now.IsZero() {
		return in.Now
	}
	if !in.Signal.ObservedAt.IsZero() {
		return in.Signal.ObservedAt
	}
	return time.Now().UTC()
}

func (p Params) minLiquidity() float64 {
	if p.MinLiquidity > 0 {
		return p.MinLiquidity
	}
	return DefaultMinLiquidity
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
