package strategy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"solsniper/internal/admission"
	"solsniper/internal/config"
	"solsniper/internal/position"
	"solsniper/internal/scoring"
)

var ErrConfigInvalid = errors.New("invalid strategy config")

// VolumeStrategy is one rule set of the volume trader.
type VolumeStrategy struct {
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	MinVolume    float64 `json:"min_volume"`
	MaxSlippage  float64 `json:"max_slippage"`
	TargetImpact float64 `json:"target_impact"`
	CooldownMs   int64   `json:"cooldown_ms"`
	Enabled      bool    `json:"enabled"`
}

func (v VolumeStrategy) Cooldown() time.Duration {
	return time.Duration(v.CooldownMs) * time.Millisecond
}

// Config is one immutable version of the trading parameters. Readers get a
// copy from Store.Current; changes go through Store.Update.
type Config struct {
	Version           int64            `json:"version"`
	BuyAmount         decimal.Decimal  `json:"buy_amount"`
	TakeProfitPct     float64          `json:"take_profit_pct"`
	StopLossPct       float64          `json:"stop_loss_pct"`
	MaxPositions      int              `json:"max_positions"`
	CooldownMs        int64            `json:"cooldown_ms"`
	DiscoveryFloor    float64          `json:"discovery_floor"`
	ExecutionFloor    float64          `json:"execution_floor"`
	MaxSlippage       float64          `json:"max_slippage"`
	MinLiquidity      float64          `json:"min_liquidity"`
	StrengthWeight    float64          `json:"strength_weight"`
	ReputableCreators []string         `json:"reputable_creators"`
	Volume            []VolumeStrategy `json:"volume_strategies"`
	UpdatedBy         string           `json:"updated_by,omitempty"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func DefaultVolumeStrategies() []VolumeStrategy {
	return []VolumeStrategy{
		{Name: "volume_spike", Description: "trade subjects with sudden volume increases", MinVolume: 50_000, MaxSlippage: 2, TargetImpact: 5, CooldownMs: 30_000, Enabled: true},
		{Name: "accumulation", Description: "accumulate subjects with consistent volume", MinVolume: 25_000, MaxSlippage: 1.5, TargetImpact: 2, CooldownMs: 60_000, Enabled: true},
		{Name: "momentum", Description: "follow strong volume momentum", MinVolume: 100_000, MaxSlippage: 3, TargetImpact: 8, CooldownMs: 15_000, Enabled: false},
		{Name: "whale_watching", Description: "track large volume movements", MinVolume: 500_000, MaxSlippage: 5, TargetImpact: 15, CooldownMs: 10_000, Enabled: true},
	}
}

// FromSettings builds the boot configuration from the sniper config section.
func FromSettings(s config.SniperConfig) Config {
	return Config{
		BuyAmount:         decimal.NewFromFloat(s.BuyAmount),
		TakeProfitPct:     s.TakeProfitPct,
		StopLossPct:       s.StopLossPct,
		MaxPositions:      s.MaxPositions,
		CooldownMs:        s.Cooldown.Milliseconds(),
		DiscoveryFloor:    s.DiscoveryFloor,
		ExecutionFloor:    s.ExecutionFloor,
		MaxSlippage:       s.MaxSlippage,
		MinLiquidity:      s.MinLiquidity,
		StrengthWeight:    scoring.DefaultStrengthWeight,
		ReputableCreators: append([]string(nil), s.ReputableCreators...),
		Volume:            DefaultVolumeStrategies(),
	}
}

func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) { problems = append(problems, fmt.Sprintf(format, args...)) }
	if !c.BuyAmount.IsPositive() {
		add("buy_amount must be positive")
	}
	if c.TakeProfitPct <= 0 {
		add("take_profit_pct must be positive")
	}
	if c.StopLossPct <= 0 || c.StopLossPct > 100 {
		add("stop_loss_pct must be in (0,100]")
	}
	if c.MaxPositions < 1 {
		add("max_positions must be at least 1")
	}
	if c.CooldownMs < 0 {
		add("cooldown_ms must not be negative")
	}
	if c.DiscoveryFloor < 0 || c.ExecutionFloor > 100 || c.DiscoveryFloor > c.ExecutionFloor {
		add("floors must satisfy 0 <= discovery_floor <= execution_floor <= 100")
	}
	if c.MaxSlippage <= 0 || c.MaxSlippage > 50 {
		add("max_slippage must be in (0,50]")
	}
	if c.MinLiquidity < 0 {
		add("min_liquidity must not be negative")
	}
	if c.StrengthWeight <= 0 {
		add("strength_weight must be positive")
	}
	seen := map[string]bool{}
	for _, v := range c.Volume {
		name := strings.TrimSpace(v.Name)
		switch {
		case name == "":
			add("volume strategy without name")
		case seen[name]:
			add("duplicate volume strategy %q", name)
		}
		seen[name] = true
		if v.MinVolume <= 0 {
			add("volume strategy %q: min_volume must be positive", name)
		}
		if v.TargetImpact <= 0 || v.TargetImpact > 100 {
			add("volume strategy %q: target_impact must be in (0,100]", name)
		}
		if v.CooldownMs < 0 {
			add("volume strategy %q: cooldown_ms must not be negative", name)
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrConfigInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownMs) * time.Millisecond
}

func (c Config) ScoringParams() scoring.Params {
	return scoring.Params{
		StrengthWeight:    c.StrengthWeight,
		MinLiquidity:      c.MinLiquidity,
		BuyAmount:         c.BuyAmount,
		MaxSlippage:       c.MaxSlippage,
		ReputableCreators: c.ReputableCreators,
	}
}

func (c Config) Limits() admission.Limits {
	return admission.Limits{
		MaxPositions:   c.MaxPositions,
		ExecutionFloor: c.ExecutionFloor,
		Cooldown:       c.Cooldown(),
		BuyAmount:      c.BuyAmount,
		MaxSlippage:    c.MaxSlippage,
	}
}

func (c Config) Thresholds() position.Thresholds {
	return position.Thresholds{TakeProfitPct: c.TakeProfitPct, StopLossPct: c.StopLossPct}
}

// VolumeByName looks up a volume strategy by name.
func (c Config) VolumeByName(name string) (VolumeStrategy, bool) {
	for _, v := range c.Volume {
		if v.Name == name {
			return v, true
		}
	}
	return VolumeStrategy{}, false
}

func (c Config) clone() Config {
	c.ReputableCreators = append([]string(nil), c.ReputableCreators...)
	c.Volume = append([]VolumeStrategy(nil), c.Volume...)
	return c
}
