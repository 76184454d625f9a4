package volume

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"solsniper/internal/execution"
	"solsniper/internal/marketdata"
	"solsniper/internal/metrics"
	"solsniper/internal/models"
	"solsniper/internal/notify"
	"solsniper/internal/repository"
	"solsniper/internal/strategy"
	"solsniper/internal/wallet"
)

const (
	spikeRatio      = 3.0
	momentumPct     = 5.0
	consistentTrade = 100
	baseAmountSOL   = 0.1
	maxVolumeMult   = 5.0
	sideThreshold   = 2.0
)

// Observation is the merged volume picture of one subject.
type Observation struct {
	SubjectID     string    `json:"subject_id"`
	Symbol        string    `json:"symbol"`
	Volume1h      float64   `json:"volume_1h"`
	Volume24h     float64   `json:"volume_24h"`
	PriceChange1h float64   `json:"price_change_1h"`
	Liquidity     float64   `json:"liquidity"`
	MarketCap     float64   `json:"market_cap"`
	Trades24h     int       `json:"trades_24h"`
	Sources       int       `json:"sources"`
	ObservedAt    time.Time `json:"observed_at"`
}

// BatchTrader fans a trade out across a wallet batch.
type BatchTrader interface {
	CoordinatedBuy(ctx context.Context, name, subjectID string, amounts []decimal.Decimal, maxSlippage float64) (wallet.Result, error)
	CoordinatedSell(ctx context.Context, name, subjectID string, amounts []decimal.Decimal, maxSlippage float64) (wallet.Result, error)
}

type Stats struct {
	Attempts      int        `json:"attempts"`
	Executed      int        `json:"executed"`
	Failed        int        `json:"failed"`
	Buys          int        `json:"buys"`
	Sells         int        `json:"sells"`
	SuccessRate   float64    `json:"success_rate"`
	TotalVolume   float64    `json:"total_volume"`
	AverageImpact float64    `json:"average_impact"`
	LastTradeAt   *time.Time `json:"last_trade_at,omitempty"`
}

// Trader watches market volume and trades subjects that match the enabled
// volume strategies. Each strategy keeps its own per-subject cooldown.
type Trader struct {
	Market     marketdata.Source
	Strategies func() []strategy.VolumeStrategy
	Executor   execution.Executor
	Account    execution.Account
	Batches    BatchTrader
	Batch      string
	Repo       repository.Repository
	Notifier   notify.Notifier
	Logger     *zap.Logger
	Metrics    *metrics.Registry

	Query string
	Limit int
	Now   func() time.Time

	mu           sync.Mutex
	observations map[string]Observation
	lastTrade    map[string]time.Time
	stats        Stats
	impactSum    float64
}

// RunOnce refreshes volume data and runs every enabled strategy over it.
func (t *Trader) RunOnce(ctx context.Context) error {
	if t == nil || t.Market == nil {
		return nil
	}
	recs, err := t.Market.FetchRecent(ctx, marketdata.Filter{Query: t.Query, Limit: t.Limit})
	if err != nil {
		return err
	}
	obs := t.merge(recs)
	for _, s := range t.strategies() {
		if !s.Enabled {
			continue
		}
		for _, o := range obs {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if o.Volume24h < s.MinVolume {
				continue
			}
			if t.coolingDown(s, o.SubjectID) {
				t.Metrics.VolumeDecision(s.Name, "cooldown")
				continue
			}
			reason, ok := Evaluate(o, s)
			if !ok {
				t.Metrics.VolumeDecision(s.Name, "no_signal")
				continue
			}
			if err := t.execute(ctx, s, o, reason); err != nil && t.Logger != nil {
				t.Logger.Warn("volume trade failed",
					zap.String("strategy", s.Name),
					zap.String("subject", o.SubjectID),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Evaluate reports whether o is worth a trade under s and why.
func Evaluate(o Observation, s strategy.VolumeStrategy) (string, bool) {
	if o.Volume24h > 0 {
		ratio := o.Volume1h / (o.Volume24h / 24)
		if ratio > spikeRatio {
			return fmt.Sprintf("volume spike %.1fx hourly average", ratio), true
		}
	}
	if math.Abs(o.PriceChange1h) > momentumPct && o.Volume1h > s.MinVolume {
		return fmt.Sprintf("price momentum %.1f%% with volume", o.PriceChange1h), true
	}
	if o.Volume24h > 2*s.MinVolume && o.Trades24h > consistentTrade {
		return fmt.Sprintf("consistent volume over %d trades", o.Trades24h), true
	}
	return "", false
}

// Amount sizes a trade: a base amount scaled by 24h volume, capped by the
// strategy's target impact on liquidity.
func Amount(o Observation, s strategy.VolumeStrategy) decimal.Decimal {
	mult := math.Min(o.Volume24h/100_000, maxVolumeMult)
	byVolume := baseAmountSOL * mult
	byImpact := s.TargetImpact / 100 * o.Liquidity
	return decimal.NewFromFloat(math.Min(byVolume, byImpact)).Round(9)
}

// Side buys on strength or neutral tape and sells on a falling hour.
func Side(o Observation) string {
	if o.PriceChange1h < -sideThreshold {
		return "sell"
	}
	return "buy"
}

func (t *Trader) execute(ctx context.Context, s strategy.VolumeStrategy, o Observation, reason string) error {
	amount := Amount(o, s)
	if !amount.IsPositive() {
		t.Metrics.VolumeDecision(s.Name, "zero_amount")
		return nil
	}
	side := Side(o)
	impact := 0.0
	if o.Liquidity > 0 {
		impact = amount.InexactFloat64() / o.Liquidity * 100
	}

	var sigs []string
	var err error
	accounts := 1
	batch := ""
	if t.Batches != nil && strings.TrimSpace(t.Batch) != "" {
		batch = t.Batch
		var res wallet.Result
		if side == "sell" {
			res, err = t.Batches.CoordinatedSell(ctx, batch, o.SubjectID, []decimal.Decimal{amount}, s.MaxSlippage)
		} else {
			res, err = t.Batches.CoordinatedBuy(ctx, batch, o.SubjectID, []decimal.Decimal{amount}, s.MaxSlippage)
		}
		sigs = res.Signatures
		accounts = len(res.Signatures) + res.Failed
	} else {
		var sig string
		if side == "sell" {
			sig, err = t.Executor.Sell(ctx, t.Account, o.SubjectID, amount, s.MaxSlippage)
		} else {
			sig, err = t.Executor.Buy(ctx, t.Account, o.SubjectID, amount, s.MaxSlippage)
		}
		if sig != "" {
			sigs = []string{sig}
		}
	}
	t.Metrics.Trade("volume_"+side, err)

	t.mu.Lock()
	t.stats.Attempts++
	if err != nil {
		t.stats.Failed++
		t.mu.Unlock()
		t.Metrics.VolumeDecision(s.Name, "failed")
		return err
	}
	now := t.now()
	t.lastTrade[cooldownKey(s.Name, o.SubjectID)] = now
	t.stats.Executed++
	if side == "sell" {
		t.stats.Sells++
	} else {
		t.stats.Buys++
	}
	t.stats.TotalVolume += o.Volume24h
	t.impactSum += impact
	t.stats.LastTradeAt = &now
	t.mu.Unlock()
	t.Metrics.VolumeDecision(s.Name, "executed")

	if t.Repo != nil {
		raw, _ := json.Marshal(sigs)
		if err := t.Repo.InsertVolumeTrade(ctx, &models.VolumeTrade{
			Strategy:   s.Name,
			SubjectID:  o.SubjectID,
			Symbol:     o.Symbol,
			Side:       side,
			Amount:     amount,
			Impact:     impact,
			Batch:      batch,
			Accounts:   accounts,
			Signatures: datatypes.JSON(raw),
			Reason:     reason,
			CreatedAt:  now,
		}); err != nil && t.Logger != nil {
			t.Logger.Warn("record volume trade failed", zap.Error(err))
		}
	}
	if t.Logger != nil {
		t.Logger.Info("volume trade executed",
			zap.String("strategy", s.Name),
			zap.String("subject", o.SubjectID),
			zap.String("side", side),
			zap.String("amount", amount.String()),
			zap.Int("signatures", len(sigs)),
		)
	}
	notify.Send(t.Notifier, t.Logger, notify.Event{
		Kind:    notify.KindVolumeTrade,
		Subject: o.SubjectID,
		Symbol:  o.Symbol,
		Message: fmt.Sprintf("%s %s SOL via %s: %s", side, amount, s.Name, reason),
	})
	return nil
}

// merge folds records for the same subject into one observation: volumes
// are averaged, liquidity takes the deepest source and trades add up.
func (t *Trader) merge(recs []marketdata.Record) []Observation {
	now := t.now()
	byID := map[string]*Observation{}
	for _, r := range recs {
		if strings.TrimSpace(r.SubjectID) == "" {
			continue
		}
		o, ok := byID[r.SubjectID]
		if !ok {
			byID[r.SubjectID] = &Observation{
				SubjectID:     r.SubjectID,
				Symbol:        r.Symbol,
				Volume1h:      r.Volume1h,
				Volume24h:     r.Volume24h,
				PriceChange1h: r.PriceChange1h,
				Liquidity:     r.Liquidity,
				MarketCap:     r.MarketCap,
				Trades24h:     r.Trades24h,
				Sources:       1,
				ObservedAt:    now,
			}
			continue
		}
		o.Volume1h = (o.Volume1h + r.Volume1h) / 2
		o.Volume24h = (o.Volume24h + r.Volume24h) / 2
		o.Liquidity = math.Max(o.Liquidity, r.Liquidity)
		o.Trades24h += r.Trades24h
		o.Sources++
	}
	out := make([]Observation, 0, len(byID))
	t.mu.Lock()
	if t.observations == nil {
		t.observations = map[string]Observation{}
	}
	if t.lastTrade == nil {
		t.lastTrade = map[string]time.Time{}
	}
	for id, o := range byID {
		t.observations[id] = *o
		out = append(out, *o)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Volume24h > out[j].Volume24h })
	return out
}

// Observations returns the latest merged volume data, highest volume first.
func (t *Trader) Observations() []Observation {
	t.mu.Lock()
	out := make([]Observation, 0, len(t.observations))
	for _, o := range t.observations {
		out = append(out, o)
	}
	t.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Volume24h > out[j].Volume24h })
	return out
}

func (t *Trader) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.stats
	if s.Attempts > 0 {
		s.SuccessRate = float64(s.Executed) / float64(s.Attempts) * 100
	}
	if s.Executed > 0 {
		s.AverageImpact = t.impactSum / float64(s.Executed)
	}
	return s
}

// Prune forgets observations older than cutoff and cooldowns that have expired.
func (t *Trader) Prune(cutoff time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, o := range t.observations {
		if o.ObservedAt.Before(cutoff) {
			delete(t.observations, id)
		}
	}
	for k, at := range t.lastTrade {
		if at.Before(cutoff) {
			delete(t.lastTrade, k)
		}
	}
}

func (t *Trader) coolingDown(s strategy.VolumeStrategy, subjectID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.lastTrade[cooldownKey(s.Name, subjectID)]
	return ok && t.now().Sub(last) < s.Cooldown()
}

func (t *Trader) strategies() []strategy.VolumeStrategy {
	if t.Strategies != nil {
		return t.Strategies()
	}
	return strategy.DefaultVolumeStrategies()
}

func (t *Trader) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now().UTC()
}

func cooldownKey(strategyName, subjectID string) string {
	return strategyName + "|" + subjectID
}
