package fees

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"solsniper/internal/metrics"
)

// SampleSource returns recently observed priority fees in micro-lamports.
type SampleSource interface {
	RecentSamples(ctx context.Context) ([]uint64, error)
}

// RPCSampleSource reads getRecentPrioritizationFees from a Solana RPC node.
// Accounts narrows the sample to fees paid by transactions touching them.
type RPCSampleSource struct {
	Client   *rpc.Client
	Accounts []solana.PublicKey
}

func (s *RPCSampleSource) RecentSamples(ctx context.Context) ([]uint64, error) {
	fees, err := s.Client.GetRecentPrioritizationFees(ctx, s.Accounts)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, len(fees))
	for _, f := range fees {
		out = append(out, f.PrioritizationFee)
	}
	return out, nil
}

// Service keeps the most recent estimate. Sample failures degrade to the
// default estimate instead of reaching callers.
type Service struct {
	Source  SampleSource
	Logger  *zap.Logger
	Metrics *metrics.Registry
	// MaxAge bounds how long a cached estimate is served before Current refreshes it.
	MaxAge time.Duration
	Now    func() time.Time

	mu        sync.Mutex
	last      Estimate
	fetchedAt time.Time
}

// Refresh samples the network and stores the resulting estimate.
func (s *Service) Refresh(ctx context.Context) Estimate {
	var samples []uint64
	var sampleErr error
	if s.Source != nil {
		samples, sampleErr = s.Source.RecentSamples(ctx)
		if sampleErr != nil && s.Logger != nil {
			s.Logger.Debug("fee samples unavailable", zap.Error(sampleErr))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	est := EstimateFromSamples(samples)
	if sampleErr != nil && s.last.DataAvailable {
		est = s.last
		est.Notes = append(withoutNote(est.Notes, NoteStale), NoteStale)
	}
	s.Metrics.SetFeeUnitPrice(est.UnitPrice)
	s.last = est
	s.fetchedAt = s.now()
	return est
}

func withoutNote(notes []string, drop string) []string {
	out := make([]string, 0, len(notes)+1)
	for _, n := range notes {
		if n != drop {
			out = append(out, n)
		}
	}
	return out
}

// Current returns the cached estimate, refreshing it when older than MaxAge.
func (s *Service) Current(ctx context.Context) Estimate {
	if s == nil {
		return EstimateFromSamples(nil)
	}
	s.mu.Lock()
	est, at := s.last, s.fetchedAt
	s.mu.Unlock()
	maxAge := s.MaxAge
	if maxAge <= 0 {
		maxAge = 30 * time.Second
	}
	if at.IsZero() || s.now().Sub(at) > maxAge {
		return s.Refresh(ctx)
	}
	return est
}

func (s *Service) Tiers(ctx context.Context) []Tier {
	return Tiers(s.Current(ctx))
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
