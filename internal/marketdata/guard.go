package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"solsniper/internal/metrics"
)

// Guard wraps a Source with a local token bucket and a circuit breaker. A
// throttled call fails fast with ErrRateLimited; an open breaker fails fast
// with ErrUnavailable. Neither waits, so a slow provider never holds a loop.
type Guard struct {
	source  Source
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Registry
}

type GuardOptions struct {
	RatePerSec float64
	Burst      int
	Metrics    *metrics.Registry
}

func NewGuard(source Source, opts GuardOptions) *Guard {
	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	st := gobreaker.Settings{Name: source.Name()}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	// A missing subject is an answer, not a provider fault.
	st.IsSuccessful = func(err error) bool {
		return err == nil || errors.Is(err, ErrNotFound)
	}
	return &Guard{
		source:  source,
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker(st),
		metrics: opts.Metrics,
	}
}

func (g *Guard) Name() string { return g.source.Name() }

// State reports the breaker state for health output.
func (g *Guard) State() string { return g.breaker.State().String() }

func (g *Guard) FetchSubject(ctx context.Context, subjectID string) (SubjectMetrics, error) {
	out, err := g.call(func() (any, error) {
		return g.source.FetchSubject(ctx, subjectID)
	})
	if err != nil {
		return SubjectMetrics{}, err
	}
	return out.(SubjectMetrics), nil
}

func (g *Guard) FetchRecent(ctx context.Context, f Filter) ([]Record, error) {
	out, err := g.call(func() (any, error) {
		return g.source.FetchRecent(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	return out.([]Record), nil
}

func (g *Guard) call(fn func() (any, error)) (any, error) {
	if !g.limiter.Allow() {
		err := fmt.Errorf("%w: local limit for %s", ErrRateLimited, g.Name())
		g.metrics.Provider(g.Name(), err)
		return nil, err
	}
	out, err := g.breaker.Execute(fn)
	g.metrics.Provider(g.Name(), err)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s circuit open", ErrUnavailable, g.Name())
	}
	return out, err
}
