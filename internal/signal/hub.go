package signal

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"solsniper/internal/metrics"
	"solsniper/internal/models"
	"solsniper/internal/repository"
)

const defaultDedupWindow = 30 * time.Second

// Hub drops repeated (kind, subject) signals inside a short window, persists
// the rest for review and counts them.
type Hub struct {
	Repo    repository.Repository
	Logger  *zap.Logger
	Metrics *metrics.Registry
	// Window is the dedup window per (kind, subject). Zero means 30s.
	Window time.Duration

	dedupMu      sync.Mutex
	lastSeen     map[string]time.Time
	droppedDedup uint64
}

func NewHub(repo repository.Repository, logger *zap.Logger, m *metrics.Registry) *Hub {
	return &Hub{
		Repo:     repo,
		Logger:   logger,
		Metrics:  m,
		lastSeen: map[string]time.Time{},
	}
}

// Accept filters duplicates and persists what remains. Persistence failures
// are logged; the accepted signals are still returned.
func (h *Hub) Accept(ctx context.Context, sigs []Signal) []Signal {
	if h == nil {
		return sigs
	}
	out := make([]Signal, 0, len(sigs))
	for _, sig := range sigs {
		if h.shouldDrop(sig) {
			atomic.AddUint64(&h.droppedDedup, 1)
			h.Metrics.SignalDropped("dedup")
			continue
		}
		h.Metrics.Signal(string(sig.Kind), sig.Source)
		out = append(out, sig)
	}
	if h.Repo != nil && len(out) > 0 {
		if err := h.Repo.InsertSignals(ctx, toModels(out)); err != nil && h.Logger != nil {
			h.Logger.Warn("persist signals failed", zap.Int("count", len(out)), zap.Error(err))
		}
	}
	return out
}

func (h *Hub) Dropped() uint64 {
	if h == nil {
		return 0
	}
	return atomic.LoadUint64(&h.droppedDedup)
}

// Prune forgets dedup keys that are older than ten minutes.
func (h *Hub) Prune(now time.Time) int {
	if h == nil {
		return 0
	}
	h.dedupMu.Lock()
	defer h.dedupMu.Unlock()
	removed := 0
	for k, t := range h.lastSeen {
		if now.Sub(t) > 10*time.Minute {
			delete(h.lastSeen, k)
			removed++
		}
	}
	return removed
}

func (h *Hub) shouldDrop(sig Signal) bool {
	window := h.Window
	if window <= 0 {
		window = defaultDedupWindow
	}
	key := string(sig.Kind) + "|" + sig.SubjectID
	h.dedupMu.Lock()
	defer h.dedupMu.Unlock()
	if h.lastSeen == nil {
		h.lastSeen = map[string]time.Time{}
	}
	if last, ok := h.lastSeen[key]; ok && sig.ObservedAt.Sub(last) < window {
		return true
	}
	h.lastSeen[key] = sig.ObservedAt
	return false
}

func toModels(sigs []Signal) []models.Signal {
	out := make([]models.Signal, 0, len(sigs))
	for _, s := range sigs {
		raw, _ := json.Marshal(s.Raw)
		out = append(out, models.Signal{
			Kind:       string(s.Kind),
			Source:     s.Source,
			SubjectID:  s.SubjectID,
			Symbol:     s.Symbol,
			Strength:   s.Strength,
			Confidence: s.Confidence,
			RawMetrics: raw,
			ObservedAt: s.ObservedAt,
		})
	}
	return out
}
