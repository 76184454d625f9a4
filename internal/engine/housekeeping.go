package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	cronrunner "solsniper/internal/cron"
)

const (
	signalRetention      = 24 * time.Hour
	observationRetention = time.Hour
	positionRetention    = 7 * 24 * time.Hour
)

// Schedules holds cron specs for the periodic jobs. An empty spec skips the job.
type Schedules struct {
	TargetEviction  string
	SignalRetention string
	PerformanceLog  string
}

// RegisterHousekeeping adds the engine's periodic jobs to r.
func (e *Engine) RegisterHousekeeping(r *cronrunner.Runner, s Schedules) error {
	jobs := []struct {
		name string
		spec string
		fn   func(context.Context)
	}{
		{"target_eviction", s.TargetEviction, e.EvictTargets},
		{"signal_retention", s.SignalRetention, e.PruneHistory},
		{"performance_log", s.PerformanceLog, e.LogPerformance},
	}
	for _, j := range jobs {
		if j.spec == "" {
			continue
		}
		if _, err := r.Add(j.name, j.spec, j.fn); err != nil {
			return err
		}
	}
	return nil
}

// EvictTargets drops ranked targets older than TargetTTL.
func (e *Engine) EvictTargets(context.Context) {
	ttl := e.TargetTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	n := e.Ranker.Evict(ttl)
	e.Metrics.SetTargets(e.Ranker.Len())
	if n > 0 && e.Logger != nil {
		e.Logger.Info("targets evicted", zap.Int("count", n), zap.Duration("ttl", ttl))
	}
}

// PruneHistory trims persisted signals and the in-memory dedup, liquidity
// baselines, observations and closed positions.
func (e *Engine) PruneHistory(ctx context.Context) {
	now := e.now()
	var deleted int64
	if e.Repo != nil {
		n, err := e.Repo.DeleteSignalsBefore(ctx, now.Add(-signalRetention))
		if err != nil && e.Logger != nil {
			e.Logger.Warn("delete old signals failed", zap.Error(err))
		}
		deleted = n
	}
	keys := e.Hub.Prune(now)
	subjects := 0
	if e.Normalizer != nil {
		subjects = e.Normalizer.Prune(now.Add(-signalRetention))
	}
	if e.Volume != nil {
		e.Volume.Prune(now.Add(-observationRetention))
	}
	positions := 0
	if e.Positions != nil && e.Positions.Book != nil {
		positions = e.Positions.Book.Prune(now.Add(-positionRetention))
	}
	if e.Logger != nil {
		e.Logger.Debug("history pruned",
			zap.Int64("signals", deleted),
			zap.Int("dedup_keys", keys),
			zap.Int("liquidity_subjects", subjects),
			zap.Int("positions", positions),
		)
	}
}

// LogPerformance refreshes the fee estimate and logs the realized performance summary.
func (e *Engine) LogPerformance(ctx context.Context) {
	if e.Fees != nil {
		e.Fees.Refresh(ctx)
	}
	if e.Logger == nil || e.Positions == nil {
		return
	}
	p := e.Positions.Performance()
	e.Logger.Info("performance",
		zap.Int("trades", p.TotalTrades),
		zap.Float64("win_rate", p.WinRate),
		zap.String("pnl_sol", p.TotalPnL.String()),
		zap.Int("open", e.Positions.Book.ActiveCount()),
		zap.Int("targets", e.Ranker.Len()),
	)
}
