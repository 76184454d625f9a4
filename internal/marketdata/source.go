package marketdata

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable means no provider could answer. Callers skip the subject for this cycle.
	ErrUnavailable = errors.New("market data unavailable")
	// ErrRateLimited means a provider or the local limiter throttled the call.
	// The next scheduled tick retries.
	ErrRateLimited = errors.New("market data rate limited")
	ErrNotFound    = errors.New("subject not found")
)

// Record is a raw token/pair observation as reported by a provider.
type Record struct {
	Source    string `json:"source"`
	SubjectID string `json:"subject_id"`
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	Creator   string `json:"creator"`
	// Fresh marks a record produced by a new-token feed rather than a pair listing.
	Fresh bool `json:"fresh"`

	PriceUSD        float64           `json:"price_usd"`
	Liquidity       float64           `json:"liquidity"`
	MarketCap       float64           `json:"market_cap"`
	Volume1h        float64           `json:"volume_1h"`
	Volume24h       float64           `json:"volume_24h"`
	PriceChange1h   float64           `json:"price_change_1h"`
	Trades24h       int               `json:"trades_24h"`
	BondingProgress float64           `json:"bonding_progress"`
	Socials         map[string]string `json:"socials,omitempty"`

	LaunchedAt time.Time `json:"launched_at"`
	ObservedAt time.Time `json:"observed_at"`
}

// SubjectMetrics are the descriptive metrics the scorer and the position
// monitor need for one subject.
type SubjectMetrics struct {
	SubjectID       string            `json:"subject_id"`
	Symbol          string            `json:"symbol"`
	Creator         string            `json:"creator"`
	Price           float64           `json:"price"`
	Liquidity       float64           `json:"liquidity"`
	MarketCap       float64           `json:"market_cap"`
	Volume1h        float64           `json:"volume_1h"`
	Volume24h       float64           `json:"volume_24h"`
	PriceChange1h   float64           `json:"price_change_1h"`
	Trades24h       int               `json:"trades_24h"`
	BondingProgress float64           `json:"bonding_progress"`
	Socials         map[string]string `json:"socials,omitempty"`
	LaunchedAt      time.Time         `json:"launched_at"`

	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
	// Stale is set when the metrics come from the last-good cache.
	Stale bool `json:"stale"`
}

type Filter struct {
	Query string
	Limit int
}

// Source is a market data provider.
type Source interface {
	Name() string
	FetchSubject(ctx context.Context, subjectID string) (SubjectMetrics, error)
	FetchRecent(ctx context.Context, f Filter) ([]Record, error)
}

func (r Record) Metrics() SubjectMetrics {
	return SubjectMetrics{
		SubjectID:       r.SubjectID,
		Symbol:          r.Symbol,
		Creator:         r.Creator,
		Price:           r.PriceUSD,
		Liquidity:       r.Liquidity,
		MarketCap:       r.MarketCap,
		Volume1h:        r.Volume1h,
		Volume24h:       r.Volume24h,
		PriceChange1h:   r.PriceChange1h,
		Trades24h:       r.Trades24h,
		BondingProgress: r.BondingProgress,
		Socials:         r.Socials,
		LaunchedAt:      r.LaunchedAt,
		Source:          r.Source,
		FetchedAt:       r.ObservedAt,
	}
}
