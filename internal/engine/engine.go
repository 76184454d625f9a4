package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"solsniper/internal/admission"
	"solsniper/internal/fees"
	"solsniper/internal/marketdata"
	"solsniper/internal/metrics"
	"solsniper/internal/position"
	"solsniper/internal/repository"
	"solsniper/internal/scoring"
	"solsniper/internal/signal"
	"solsniper/internal/strategy"
	"solsniper/internal/target"
	"solsniper/internal/volume"
)

const (
	LoopScan    = "scan"
	LoopMonitor = "monitor"
	LoopVolume  = "volume"
)

var ErrUnknownLoop = errors.New("unknown loop")

type Intervals struct {
	Scan    time.Duration
	Monitor time.Duration
	Volume  time.Duration
}

type Autostart struct {
	Scan    bool
	Monitor bool
	Volume  bool
}

// Engine wires discovery, admission and position management together and
// owns the three engine loops.
type Engine struct {
	Market     marketdata.Source
	Normalizer *signal.Normalizer
	Hub        *signal.Hub
	Fees       *fees.Service
	Ranker     *target.Ranker
	Admission  *admission.Controller
	Positions  *position.Manager
	Volume     *volume.Trader
	Strategy   *strategy.Store
	Settings   *Settings
	Repo       repository.Repository
	Logger     *zap.Logger
	Metrics    *metrics.Registry

	Intervals   Intervals
	Autostart   Autostart
	CallTimeout time.Duration
	TargetTTL   time.Duration
	Query       string
	RecentLimit int
	Now         func() time.Time

	initOnce sync.Once
	base     context.Context
	loops    map[string]*loop
}

func (e *Engine) init() {
	e.initOnce.Do(func() {
		e.base = context.Background()
		e.loops = map[string]*loop{
			LoopScan:    {name: LoopScan, interval: e.Intervals.Scan, tick: e.ScanOnce},
			LoopMonitor: {name: LoopMonitor, interval: e.Intervals.Monitor, tick: e.Positions.MonitorOnce},
			LoopVolume:  {name: LoopVolume, interval: e.Intervals.Volume, tick: e.Volume.RunOnce},
		}
		for _, l := range e.loops {
			l.logger = e.Logger
			l.metrics = e.Metrics
		}
	})
}

// Boot restores state and starts every loop whose persisted switch (or the
// configured default) is on. Loops run until Stop or until ctx ends.
func (e *Engine) Boot(ctx context.Context) error {
	e.init()
	e.base = ctx
	if n, err := e.Positions.Restore(ctx); err != nil {
		return fmt.Errorf("restore positions: %w", err)
	} else if n > 0 && e.Logger != nil {
		e.Logger.Info("positions restored", zap.Int("count", n))
	}
	if e.Strategy != nil {
		if err := e.Strategy.Load(ctx); err != nil && e.Logger != nil {
			e.Logger.Warn("load strategy failed, using boot config", zap.Error(err))
		}
	}
	defaults := map[string]bool{
		LoopScan:    e.Autostart.Scan,
		LoopMonitor: e.Autostart.Monitor,
		LoopVolume:  e.Autostart.Volume,
	}
	for _, name := range LoopNames() {
		if e.Settings.IsEnabled(ctx, featureKey(name), defaults[name]) {
			if _, err := e.Start(ctx, name); err != nil {
				return err
			}
		}
	}
	return nil
}

func LoopNames() []string {
	return []string{LoopScan, LoopMonitor, LoopVolume}
}

// Start runs the named loop and records the switch. Starting a running loop
// is a no-op and reports false.
func (e *Engine) Start(ctx context.Context, name string) (bool, error) {
	e.init()
	l, ok := e.loops[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownLoop, name)
	}
	started := l.start(e.base)
	if err := e.Settings.SetEnabled(ctx, featureKey(name), true); err != nil && e.Logger != nil {
		e.Logger.Warn("persist loop switch failed", zap.String("loop", name), zap.Error(err))
	}
	return started, nil
}

// Stop halts the named loop, waits for its tick to finish and records the switch.
func (e *Engine) Stop(ctx context.Context, name string) (bool, error) {
	e.init()
	l, ok := e.loops[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownLoop, name)
	}
	stopped := l.stop()
	if err := e.Settings.SetEnabled(ctx, featureKey(name), false); err != nil && e.Logger != nil {
		e.Logger.Warn("persist loop switch failed", zap.String("loop", name), zap.Error(err))
	}
	return stopped, nil
}

// Shutdown stops every loop without touching the persisted switches.
func (e *Engine) Shutdown() {
	e.init()
	var wg sync.WaitGroup
	for _, l := range e.loops {
		wg.Add(1)
		go func(l *loop) {
			defer wg.Done()
			l.stop()
		}(l)
	}
	wg.Wait()
}

func (e *Engine) Status() []LoopStatus {
	e.init()
	out := make([]LoopStatus, 0, len(e.loops))
	for _, name := range LoopNames() {
		out = append(out, e.loops[name].status())
	}
	return out
}

// ScanOnce runs one discovery pass: fetch recent records, normalize and
// dedup them into signals, score each against live metrics, rank the
// survivors and try to admit the best of them.
func (e *Engine) ScanOnce(ctx context.Context) error {
	cctx, cancel := e.callCtx(ctx)
	recs, err := e.Market.FetchRecent(cctx, marketdata.Filter{Query: e.Query, Limit: e.RecentLimit})
	cancel()
	if err != nil && len(recs) == 0 {
		return err
	}
	sigs := e.Hub.Accept(ctx, e.Normalizer.Normalize(recs))
	cfg := e.Strategy.Current()
	if len(sigs) > 0 {
		params := cfg.ScoringParams()
		fee := e.Fees.Current(ctx)
		now := e.now()
		cache := map[string]marketdata.SubjectMetrics{}
		for _, sig := range sigs {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sm, ok := e.metricsFor(ctx, sig, cache)
			if !ok {
				continue
			}
			t, ok := scoring.Evaluate(scoring.Input{Signal: sig, Metrics: sm, Fee: &fee, Now: now}, params, cfg.DiscoveryFloor)
			if !ok {
				continue
			}
			for _, ev := range e.Ranker.Upsert(t) {
				if e.Logger != nil {
					e.Logger.Debug("target evicted", zap.String("subject", ev.SubjectID), zap.Float64("priority", ev.Priority))
				}
			}
		}
		e.Metrics.SetTargets(e.Ranker.Len())
	}
	e.admit(ctx, cfg.Limits())
	return nil
}

// admit walks ranked targets best first against one limits snapshot. It
// stops at the first rejection that would reject every lower target too.
func (e *Engine) admit(ctx context.Context, limits admission.Limits) {
	for _, t := range e.Ranker.List() {
		if ctx.Err() != nil {
			return
		}
		p, d := e.Admission.AdmitWith(t, limits)
		if !d.Allowed {
			if d.Reason == admission.ReasonDuplicate {
				continue
			}
			return
		}
		e.Ranker.Remove(t.SubjectID)
		e.Metrics.SetTargets(e.Ranker.Len())
		if _, err := e.Positions.Execute(ctx, p.ID); err != nil && e.Logger != nil {
			e.Logger.Warn("entry failed", zap.String("subject", t.SubjectID), zap.String("position", p.ID), zap.Error(err))
		}
	}
}

// metricsFor fetches live metrics once per subject per scan. When the
// providers fail, a priced raw record stands in; otherwise the signal is skipped.
func (e *Engine) metricsFor(ctx context.Context, sig signal.Signal, cache map[string]marketdata.SubjectMetrics) (marketdata.SubjectMetrics, bool) {
	if sm, ok := cache[sig.SubjectID]; ok {
		return sm, true
	}
	cctx, cancel := e.callCtx(ctx)
	sm, err := e.Market.FetchSubject(cctx, sig.SubjectID)
	cancel()
	if err != nil {
		if sig.Raw.PriceUSD <= 0 {
			if e.Logger != nil {
				e.Logger.Debug("skip signal without metrics", zap.String("subject", sig.SubjectID), zap.Error(err))
			}
			return marketdata.SubjectMetrics{}, false
		}
		sm = sig.Raw.Metrics()
	}
	cache[sig.SubjectID] = sm
	return sm, true
}

// Targets returns the ranked list, best first.
func (e *Engine) Targets() []target.Target {
	return e.Ranker.List()
}

func (e *Engine) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	d := e.CallTimeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}
