package volume

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"solsniper/internal/execution"
	"solsniper/internal/marketdata"
	"solsniper/internal/repository"
	memoryrepository "solsniper/internal/repository/memory"
	"solsniper/internal/strategy"
	"solsniper/internal/wallet"
)

type recentSource struct {
	recs []marketdata.Record
	err  error
}

func (s *recentSource) Name() string { return "stub" }

func (s *recentSource) FetchSubject(context.Context, string) (marketdata.SubjectMetrics, error) {
	return marketdata.SubjectMetrics{}, marketdata.ErrNotFound
}

func (s *recentSource) FetchRecent(context.Context, marketdata.Filter) ([]marketdata.Record, error) {
	return s.recs, s.err
}

type countingExec struct {
	mu    sync.Mutex
	sides []string
	err   error
}

func (e *countingExec) Buy(_ context.Context, _ execution.Account, _ string, _ decimal.Decimal, _ float64) (string, error) {
	return e.record("buy")
}

func (e *countingExec) Sell(_ context.Context, _ execution.Account, _ string, _ decimal.Decimal, _ float64) (string, error) {
	return e.record("sell")
}

func (e *countingExec) record(side string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	e.sides = append(e.sides, side)
	return "sig-" + side, nil
}

type batchStub struct {
	calls []string
}

func (b *batchStub) CoordinatedBuy(_ context.Context, name, _ string, _ []decimal.Decimal, _ float64) (wallet.Result, error) {
	b.calls = append(b.calls, "buy:"+name)
	return wallet.Result{Op: "buy", Batch: name, Signatures: []string{"a", "b"}, Failed: 1}, nil
}

func (b *batchStub) CoordinatedSell(_ context.Context, name, _ string, _ []decimal.Decimal, _ float64) (wallet.Result, error) {
	b.calls = append(b.calls, "sell:"+name)
	return wallet.Result{Op: "sell", Batch: name, Signatures: []string{"a"}}, nil
}

func spikeStrategy() strategy.VolumeStrategy {
	s, _ := strategy.Config{Volume: strategy.DefaultVolumeStrategies()}.VolumeByName("volume_spike")
	return s
}

func TestEvaluateTriggers(t *testing.T) {
	s := spikeStrategy()
	cases := []struct {
		name string
		o    Observation
		want bool
	}{
		{"spike", Observation{Volume1h: 40_000, Volume24h: 240_000}, true},
		{"momentum", Observation{Volume1h: 60_000, Volume24h: 1_440_000, PriceChange1h: -7}, true},
		{"consistent", Observation{Volume1h: 5_000, Volume24h: 120_000, Trades24h: 150}, true},
		{"quiet", Observation{Volume1h: 5_000, Volume24h: 120_000, Trades24h: 50}, false},
		{"momentum without volume", Observation{Volume1h: 10_000, Volume24h: 240_000, PriceChange1h: 9}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := Evaluate(tc.o, s); ok != tc.want {
				t.Fatalf("ok=%v want=%v", ok, tc.want)
			}
		})
	}
}

func TestAmountAndSide(t *testing.T) {
	s := spikeStrategy()
	if got := Amount(Observation{Volume24h: 240_000, Liquidity: 100_000}, s); !got.Equal(decimal.RequireFromString("0.24")) {
		t.Fatalf("amount=%s want=0.24", got)
	}
	if got := Amount(Observation{Volume24h: 10_000_000, Liquidity: 100_000}, s); !got.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("capped amount=%s want=0.5", got)
	}
	if got := Amount(Observation{Volume24h: 240_000, Liquidity: 2}, s); !got.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("impact-capped amount=%s want=0.1", got)
	}
	if Side(Observation{PriceChange1h: -3}) != "sell" || Side(Observation{PriceChange1h: 0}) != "buy" {
		t.Fatalf("side mapping wrong")
	}
}

func TestRunOnceTradesAndCoolsDown(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	src := &recentSource{recs: []marketdata.Record{
		{SubjectID: "HOT", Symbol: "HOT", Volume1h: 40_000, Volume24h: 240_000, Liquidity: 100_000},
		{SubjectID: "COLD", Symbol: "COLD", Volume1h: 1_000, Volume24h: 30_000, Liquidity: 100_000},
	}}
	ex := &countingExec{}
	repo := memoryrepository.New()
	tr := &Trader{
		Market:     src,
		Executor:   ex,
		Repo:       repo,
		Strategies: func() []strategy.VolumeStrategy { return []strategy.VolumeStrategy{spikeStrategy()} },
		Now:        func() time.Time { return now },
	}
	ctx := context.Background()
	if err := tr.RunOnce(ctx); err != nil {
		t.Fatalf("run err=%v", err)
	}
	if err := tr.RunOnce(ctx); err != nil {
		t.Fatalf("run err=%v", err)
	}
	if len(ex.sides) != 1 || ex.sides[0] != "buy" {
		t.Fatalf("sides=%v want one buy", ex.sides)
	}
	now = now.Add(31 * time.Second)
	if err := tr.RunOnce(ctx); err != nil {
		t.Fatalf("run err=%v", err)
	}
	if len(ex.sides) != 2 {
		t.Fatalf("after cooldown sides=%v", ex.sides)
	}
	trades, _ := repo.ListVolumeTrades(ctx, repository.ListVolumeTradesParams{})
	if len(trades) != 2 || trades[0].SubjectID != "HOT" || trades[0].Strategy != "volume_spike" {
		t.Fatalf("trades=%+v", trades)
	}
	st := tr.Stats()
	if st.Executed != 2 || st.Buys != 2 || st.SuccessRate != 100 {
		t.Fatalf("stats=%+v", st)
	}
	if obs := tr.Observations(); len(obs) != 2 || obs[0].SubjectID != "HOT" {
		t.Fatalf("observations=%+v", obs)
	}
}

func TestRunOnceUsesBatchWhenConfigured(t *testing.T) {
	src := &recentSource{recs: []marketdata.Record{
		{SubjectID: "DUMP", Volume1h: 40_000, Volume24h: 240_000, PriceChange1h: -4, Liquidity: 100_000},
	}}
	b := &batchStub{}
	repo := memoryrepository.New()
	tr := &Trader{
		Market:     src,
		Batches:    b,
		Batch:      "alpha",
		Repo:       repo,
		Strategies: func() []strategy.VolumeStrategy { return []strategy.VolumeStrategy{spikeStrategy()} },
	}
	if err := tr.RunOnce(context.Background()); err != nil {
		t.Fatalf("run err=%v", err)
	}
	if len(b.calls) != 1 || b.calls[0] != "sell:alpha" {
		t.Fatalf("calls=%v", b.calls)
	}
	trades, _ := repo.ListVolumeTrades(context.Background(), repository.ListVolumeTradesParams{})
	if len(trades) != 1 || trades[0].Accounts != 1 || trades[0].Batch != "alpha" || trades[0].Side != "sell" {
		t.Fatalf("trades=%+v", trades)
	}
}

func TestFailedTradeDoesNotCoolDown(t *testing.T) {
	src := &recentSource{recs: []marketdata.Record{
		{SubjectID: "HOT", Volume1h: 40_000, Volume24h: 240_000, Liquidity: 100_000},
	}}
	ex := &countingExec{err: execution.ErrExecutionFailed}
	tr := &Trader{
		Market:     src,
		Executor:   ex,
		Strategies: func() []strategy.VolumeStrategy { return []strategy.VolumeStrategy{spikeStrategy()} },
	}
	_ = tr.RunOnce(context.Background())
	_ = tr.RunOnce(context.Background())
	if st := tr.Stats(); st.Attempts != 2 || st.Failed != 2 || st.SuccessRate != 0 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestRunOncePropagatesSourceFailure(t *testing.T) {
	tr := &Trader{Market: &recentSource{err: marketdata.ErrUnavailable}}
	if err := tr.RunOnce(context.Background()); !errors.Is(err, marketdata.ErrUnavailable) {
		t.Fatalf("err=%v", err)
	}
}

func TestDisabledStrategySkipped(t *testing.T) {
	s := spikeStrategy()
	s.Enabled = false
	ex := &countingExec{}
	tr := &Trader{
		Market:     &recentSource{recs: []marketdata.Record{{SubjectID: "HOT", Volume1h: 40_000, Volume24h: 240_000, Liquidity: 1e5}}},
		Executor:   ex,
		Strategies: func() []strategy.VolumeStrategy { return []strategy.VolumeStrategy{s} },
	}
	_ = tr.RunOnce(context.Background())
	if len(ex.sides) != 0 {
		t.Fatalf("sides=%v want none", ex.sides)
	}
}
