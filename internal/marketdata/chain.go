package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solsniper/internal/cache"
)

// Chain asks each source in order and falls back to the last good metrics
// for a subject when every source fails. Raw provider errors never leave the
// chain: callers see ErrUnavailable or ErrNotFound.
type Chain struct {
	Sources []Source
	Cache   cache.Store
	TTL     time.Duration
	Logger  *zap.Logger
	Now     func() time.Time
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) FetchSubject(ctx context.Context, subjectID string) (SubjectMetrics, error) {
	var errs []error
	notFound := 0
	for _, src := range c.Sources {
		m, err := src.FetchSubject(ctx, subjectID)
		if err == nil {
			c.remember(ctx, m)
			return m, nil
		}
		if errors.Is(err, ErrNotFound) {
			notFound++
		}
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if m, ok := c.lastGood(ctx, subjectID); ok {
		c.logger().Debug("serving cached subject metrics",
			zap.String("subject", subjectID),
			zap.Error(errors.Join(errs...)),
		)
		return m, nil
	}
	if len(c.Sources) > 0 && notFound == len(c.Sources) {
		return SubjectMetrics{}, fmt.Errorf("%w: %s", ErrNotFound, subjectID)
	}
	c.logger().Debug("subject metrics unavailable", zap.String("subject", subjectID), zap.Error(errors.Join(errs...)))
	return SubjectMetrics{}, fmt.Errorf("%w: %s", ErrUnavailable, subjectID)
}

// FetchRecent merges every source's recent records. Failing sources are skipped.
func (c *Chain) FetchRecent(ctx context.Context, f Filter) ([]Record, error) {
	var out []Record
	failed := 0
	for _, src := range c.Sources {
		items, err := src.FetchRecent(ctx, f)
		if err != nil {
			failed++
			c.logger().Debug("recent records failed", zap.String("source", src.Name()), zap.Error(err))
			continue
		}
		out = append(out, items...)
	}
	if len(c.Sources) > 0 && failed == len(c.Sources) {
		return nil, fmt.Errorf("%w: every source failed", ErrUnavailable)
	}
	return out, nil
}

func (c *Chain) remember(ctx context.Context, m SubjectMetrics) {
	if c.Cache == nil {
		return
	}
	if err := cache.SetJSON(ctx, c.Cache, lastGoodKey(m.SubjectID), m, c.ttl()); err != nil {
		c.logger().Debug("cache last good metrics", zap.String("subject", m.SubjectID), zap.Error(err))
	}
}

func (c *Chain) lastGood(ctx context.Context, subjectID string) (SubjectMetrics, bool) {
	if c.Cache == nil {
		return SubjectMetrics{}, false
	}
	var m SubjectMetrics
	found, err := cache.GetJSON(ctx, c.Cache, lastGoodKey(subjectID), &m)
	if err != nil || !found {
		return SubjectMetrics{}, false
	}
	m.Stale = true
	return m, true
}

func (c *Chain) ttl() time.Duration {
	if c.TTL <= 0 {
		return 10 * time.Minute
	}
	return c.TTL
}

func (c *Chain) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func lastGoodKey(subjectID string) string {
	return "marketdata:lastgood:" + subjectID
}
