package scoring

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"solsniper/internal/fees"
	"solsniper/internal/marketdata"
	"solsniper/internal/signal"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func params() Params {
	return Params{
		StrengthWeight:    0.5,
		MinLiquidity:      10_000,
		BuyAmount:         decimal.RequireFromString("0.1"),
		MaxSlippage:       3,
		ReputableCreators: []string{"DevGood"},
	}
}

func TestZeroStrengthNoBonusesYieldsNothing(t *testing.T) {
	in := Input{Signal: signal.Signal{SubjectID: "A"}, Now: now}
	p, why := Score(in, params())
	if p != 0 || why != "" {
		t.Fatalf("priority=%v rationale=%q want=0,\"\"", p, why)
	}
	if _, ok := Evaluate(in, params(), DiscoveryFloor); ok {
		t.Fatalf("expected no target below discovery floor")
	}
	if _, ok := Evaluate(in, params(), 0); ok {
		t.Fatalf("expected no target for zero priority")
	}
}

func TestEveryBonusClampsToHundred(t *testing.T) {
	in := Input{
		Signal: signal.Signal{SubjectID: "A", Strength: 100, Kind: signal.KindNewListing},
		Metrics: marketdata.SubjectMetrics{
			Liquidity:       50_000,
			MarketCap:       200_000,
			Volume24h:       150_000,
			BondingProgress: 88,
			Socials:         map[string]string{"twitter": "x", "telegram": "t"},
			Creator:         "devgood",
			LaunchedAt:      now.Add(-time.Minute),
		},
		Now: now,
	}
	p, why := Score(in, params())
	if p != 100 {
		t.Fatalf("priority=%v want=100", p)
	}
	want := "signal strength 100; fresh launch (<5m); liquidity above minimum; early liquidity (<100k); " +
		"low market cap; volume/market-cap above 0.5; volume/liquidity above 0.5; bonding curve 80-95%; " +
		"verified socials; reputable creator"
	if why != want {
		t.Fatalf("rationale=%q\nwant=%q", why, want)
	}
}

func TestScoreIsDeterministic(t *testing.T) {
	in := Input{
		Signal:  signal.Signal{SubjectID: "A", Strength: 60},
		Metrics: marketdata.SubjectMetrics{Liquidity: 20_000, MarketCap: 5_000_000, Volume24h: 1_000},
		Now:     now,
	}
	p1, r1 := Score(in, params())
	p2, r2 := Score(in, params())
	if p1 != p2 || r1 != r2 {
		t.Fatalf("non-deterministic: %v/%q vs %v/%q", p1, r1, p2, r2)
	}
	// 60*0.5 + 20 + 20
	if p1 != 70 {
		t.Fatalf("priority=%v want=70", p1)
	}
	if r1 != "signal strength 60; liquidity above minimum; early liquidity (<100k)" {
		t.Fatalf("rationale=%q", r1)
	}
}

func TestEvaluateFloorsAndSizing(t *testing.T) {
	in := Input{
		Signal:  signal.Signal{SubjectID: "A", Symbol: "SIG", Strength: 40, Source: "pumpfun"},
		Metrics: marketdata.SubjectMetrics{Liquidity: 12_000, Price: 0.002, Creator: "C"},
		Now:     now,
	}
	// 20 + 20 + 20 = 60: tracked, not execution-eligible
	tgt, ok := Evaluate(in, params(), DiscoveryFloor)
	if !ok || tgt.Priority != 60 {
		t.Fatalf("target=%+v ok=%v", tgt, ok)
	}
	if _, ok := Evaluate(in, params(), ExecutionFloor); ok {
		t.Fatalf("priority 60 must not pass the execution floor")
	}
	if tgt.Symbol != "SIG" || tgt.CreatorID != "C" || tgt.Price != 0.002 {
		t.Fatalf("target fields=%+v", tgt)
	}
	if !tgt.MinSize.Equal(decimal.RequireFromString("0.05")) || !tgt.MaxSize.Equal(decimal.RequireFromString("0.2")) {
		t.Fatalf("sizes=%s/%s", tgt.MinSize, tgt.MaxSize)
	}
	if !tgt.EstimatedFee.Equal(decimal.RequireFromString("0.000005")) {
		t.Fatalf("fee=%s", tgt.EstimatedFee)
	}
	if !tgt.CreatedAt.Equal(now) {
		t.Fatalf("createdAt=%s", tgt.CreatedAt)
	}
}

func TestEstimatedFeeSources(t *testing.T) {
	young := Input{
		Signal:  signal.Signal{SubjectID: "A", Strength: 80},
		Metrics: marketdata.SubjectMetrics{LaunchedAt: now.Add(-2 * time.Minute)},
		Now:     now,
	}
	tgt, ok := Evaluate(young, params(), 0)
	if !ok || !tgt.EstimatedFee.Equal(decimal.RequireFromString("0.000008")) {
		t.Fatalf("fee=%s ok=%v", tgt.EstimatedFee, ok)
	}

	est := fees.EstimateFromSamples([]uint64{5000})
	young.Fee = &est
	tgt, _ = Evaluate(young, params(), 0)
	if !tgt.EstimatedFee.Equal(decimal.RequireFromString("0.000006")) {
		t.Fatalf("fee=%s want=0.000006", tgt.EstimatedFee)
	}
	if !tgt.EstimatedFee.IsPositive() || !tgt.MinSize.IsPositive() || !tgt.MaxSize.IsPositive() {
		t.Fatalf("sizes and fee must be positive: %+v", tgt)
	}
}

func TestLaunchAgeFallsBackToRawRecord(t *testing.T) {
	in := Input{
		Signal: signal.Signal{
			SubjectID: "A",
			Raw:       marketdata.Record{LaunchedAt: now.Add(-time.Minute)},
		},
		Now: now,
	}
	p, why := Score(in, params())
	if p != 50 || why != "fresh launch (<5m)" {
		t.Fatalf("priority=%v rationale=%q", p, why)
	}
}
