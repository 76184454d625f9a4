package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"solsniper/internal/admission"
	"solsniper/internal/config"
	cronrunner "solsniper/internal/cron"
	"solsniper/internal/execution"
	"solsniper/internal/fees"
	"solsniper/internal/marketdata"
	"solsniper/internal/position"
	memoryrepository "solsniper/internal/repository/memory"
	"solsniper/internal/signal"
	"solsniper/internal/strategy"
	"solsniper/internal/target"
)

type stubSource struct {
	recs []marketdata.Record
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) FetchSubject(_ context.Context, id string) (marketdata.SubjectMetrics, error) {
	for _, r := range s.recs {
		if r.SubjectID == id {
			return r.Metrics(), nil
		}
	}
	return marketdata.SubjectMetrics{}, marketdata.ErrNotFound
}

func (s *stubSource) FetchRecent(context.Context, marketdata.Filter) ([]marketdata.Record, error) {
	return s.recs, nil
}

type fixture struct {
	engine *Engine
	paper  *execution.Paper
	repo   *memoryrepository.Store
}

func newFixture(t *testing.T, recs []marketdata.Record) *fixture {
	t.Helper()
	repo := memoryrepository.New()
	store, err := strategy.NewStore(strategy.FromSettings(config.SniperConfig{
		BuyAmount:      0.1,
		TakeProfitPct:  50,
		StopLossPct:    20,
		MaxPositions:   5,
		Cooldown:       5 * time.Second,
		DiscoveryFloor: 30,
		ExecutionFloor: 70,
		MaxSlippage:    3,
		MinLiquidity:   10_000,
	}), repo, nil)
	if err != nil {
		t.Fatalf("store err=%v", err)
	}
	src := &stubSource{recs: recs}
	book := position.NewBook()
	paper := &execution.Paper{}
	positions := &position.Manager{
		Book:       book,
		Executor:   paper,
		Market:     src,
		Repo:       repo,
		Thresholds: func() position.Thresholds { return store.Current().Thresholds() },
	}
	e := &Engine{
		Market:     src,
		Normalizer: signal.NewNormalizer(),
		Hub:        signal.NewHub(repo, nil, nil),
		Fees:       &fees.Service{},
		Ranker:     target.NewRanker(10),
		Admission:  &admission.Controller{Book: book, Limits: func() admission.Limits { return store.Current().Limits() }},
		Positions:  positions,
		Strategy:   store,
		Settings:   &Settings{Repo: repo},
		Repo:       repo,
		Intervals:  Intervals{Scan: 10 * time.Millisecond, Monitor: 10 * time.Millisecond, Volume: time.Hour},
	}
	return &fixture{engine: e, paper: paper, repo: repo}
}

func launchRecords() []marketdata.Record {
	now := time.Now().UTC()
	return []marketdata.Record{
		{
			Source: "stub", SubjectID: "FRESH", Symbol: "FRSH", Fresh: true,
			PriceUSD: 0.001, Liquidity: 60_000, MarketCap: 200_000, Volume24h: 80_000,
			LaunchedAt: now.Add(-time.Minute),
		},
		{
			Source: "stub", SubjectID: "SPIKE", Symbol: "SPK",
			PriceUSD: 2, Liquidity: 200_000, MarketCap: 5_000_000, Volume1h: 9_000, Volume24h: 48_000,
		},
		{Source: "stub", SubjectID: "QUIET", Symbol: "QT", PriceUSD: 1, Liquidity: 5_000},
	}
}

func TestScanOnceAdmitsBestTargetAndOpensPosition(t *testing.T) {
	f := newFixture(t, launchRecords())
	ctx := context.Background()
	if err := f.engine.ScanOnce(ctx); err != nil {
		t.Fatalf("scan err=%v", err)
	}
	open := f.engine.Positions.Book.List(position.StateOpen)
	if len(open) != 1 || open[0].SubjectID != "FRESH" {
		t.Fatalf("open=%+v want one FRESH position", open)
	}
	if !open[0].Size.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("size=%s want=0.1", open[0].Size)
	}
	if fills := f.paper.Fills(); len(fills) != 1 || fills[0].Side != "buy" {
		t.Fatalf("fills=%+v", fills)
	}
	targets := f.engine.Targets()
	if len(targets) != 1 || targets[0].SubjectID != "SPIKE" {
		t.Fatalf("targets=%+v want SPIKE left below execution floor", targets)
	}
	if targets[0].Priority >= 70 || targets[0].Priority < 30 {
		t.Fatalf("SPIKE priority=%v", targets[0].Priority)
	}

	if err := f.engine.ScanOnce(ctx); err != nil {
		t.Fatalf("second scan err=%v", err)
	}
	if n := len(f.paper.Fills()); n != 1 {
		t.Fatalf("fills after rescan=%d want=1", n)
	}
}

func TestScanOnceRespectsDuplicateSubject(t *testing.T) {
	f := newFixture(t, launchRecords())
	ctx := context.Background()
	if err := f.engine.ScanOnce(ctx); err != nil {
		t.Fatalf("scan err=%v", err)
	}
	// A new target for an open subject is skipped, not bought twice.
	tg, _ := f.engine.Ranker.Get("SPIKE")
	tg.SubjectID = "FRESH"
	tg.Priority = 95
	f.engine.Ranker.Upsert(tg)
	f.engine.admit(ctx, f.engine.Strategy.Current().Limits())
	if n := len(f.paper.Fills()); n != 1 {
		t.Fatalf("fills=%d want=1", n)
	}
}

func TestLoopStartStopPersistsSwitch(t *testing.T) {
	f := newFixture(t, launchRecords())
	ctx := context.Background()

	started, err := f.engine.Start(ctx, LoopScan)
	if err != nil || !started {
		t.Fatalf("start=%v err=%v", started, err)
	}
	if again, _ := f.engine.Start(ctx, LoopScan); again {
		t.Fatalf("second start should be a no-op")
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.engine.Status()[0].Ticks > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	st := f.engine.Status()[0]
	if st.Name != LoopScan || !st.Running || st.Ticks == 0 {
		t.Fatalf("status=%+v", st)
	}
	if !f.engine.Settings.IsEnabled(ctx, FeatureScanLoop, false) {
		t.Fatalf("scan switch not persisted")
	}

	stopped, err := f.engine.Stop(ctx, LoopScan)
	if err != nil || !stopped {
		t.Fatalf("stop=%v err=%v", stopped, err)
	}
	if f.engine.Status()[0].Running {
		t.Fatalf("scan still running")
	}
	if f.engine.Settings.IsEnabled(ctx, FeatureScanLoop, true) {
		t.Fatalf("scan switch still on")
	}
	if _, err := f.engine.Start(ctx, "bogus"); !errors.Is(err, ErrUnknownLoop) {
		t.Fatalf("err=%v want ErrUnknownLoop", err)
	}
}

func TestBootHonoursPersistedSwitches(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := f.engine.Settings.SetEnabled(ctx, FeatureMonitorLoop, false); err != nil {
		t.Fatalf("set err=%v", err)
	}
	f.engine.Autostart = Autostart{Scan: true, Monitor: true}
	if err := f.engine.Boot(ctx); err != nil {
		t.Fatalf("boot err=%v", err)
	}
	defer f.engine.Shutdown()

	running := map[string]bool{}
	for _, st := range f.engine.Status() {
		running[st.Name] = st.Running
	}
	if !running[LoopScan] || running[LoopMonitor] || running[LoopVolume] {
		t.Fatalf("running=%v want only scan", running)
	}
	if v := f.engine.Strategy.Current().Version; v != 1 {
		t.Fatalf("strategy version=%d want=1 after boot", v)
	}
}

func TestHousekeeping(t *testing.T) {
	f := newFixture(t, launchRecords())
	ctx := context.Background()
	f.engine.Now = func() time.Time { return time.Now().UTC().Add(-2 * time.Hour) }
	if err := f.engine.ScanOnce(ctx); err != nil {
		t.Fatalf("scan err=%v", err)
	}
	if f.engine.Ranker.Len() == 0 {
		t.Fatalf("expected a ranked target")
	}
	f.engine.EvictTargets(ctx)
	if n := f.engine.Ranker.Len(); n != 0 {
		t.Fatalf("targets after eviction=%d want=0", n)
	}

	r := cronrunner.New(nil, ctx)
	if err := f.engine.RegisterHousekeeping(r, Schedules{TargetEviction: "@every 1m", PerformanceLog: "@every 5m"}); err != nil {
		t.Fatalf("register err=%v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("jobs=%d want=2", r.Len())
	}
	if err := f.engine.RegisterHousekeeping(r, Schedules{SignalRetention: "nope"}); err == nil {
		t.Fatalf("expected bad spec error")
	}
}

func TestLoopSurvivesPanickingTick(t *testing.T) {
	calls := 0
	l := &loop{name: "boom", interval: time.Hour, tick: func(context.Context) error {
		calls++
		if calls == 1 {
			panic("bad record")
		}
		return nil
	}}
	l.runOnce(context.Background())
	st := l.status()
	if st.Ticks != 1 || !strings.Contains(st.LastErr, "panic: bad record") {
		t.Fatalf("status=%+v", st)
	}
	l.runOnce(context.Background())
	if st := l.status(); st.Ticks != 2 || st.LastErr != "" {
		t.Fatalf("status after recovery=%+v", st)
	}
}
