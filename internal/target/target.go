package target

import (
	"time"

	"github.com/shopspring/decimal"
)

// Target is a scored candidate awaiting an admission decision. Sizes and the
// fee are in SOL.
type Target struct {
	SubjectID    string          `json:"subject_id"`
	Symbol       string          `json:"symbol"`
	CreatorID    string          `json:"creator_id"`
	Kind         string          `json:"kind"`
	Source       string          `json:"source"`
	Price        float64         `json:"price"`
	Liquidity    float64         `json:"liquidity"`
	MarketCap    float64         `json:"market_cap"`
	Priority     float64         `json:"priority"`
	Rationale    string          `json:"rationale"`
	EstimatedFee decimal.Decimal `json:"estimated_fee"`
	MinSize      decimal.Decimal `json:"min_size"`
	MaxSize      decimal.Decimal `json:"max_size"`
	MaxSlippage  float64         `json:"max_slippage"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ranksBefore orders by priority descending, newest first on ties.
func ranksBefore(a, b Target) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.CreatedAt.After(b.CreatedAt)
}
