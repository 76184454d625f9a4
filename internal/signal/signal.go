package signal

import (
	"time"

	"solsniper/internal/marketdata"
)

type Kind string

const (
	KindNewListing    Kind = "new_listing"
	KindLiquidityAdd  Kind = "liquidity_add"
	KindVolumeSpike   Kind = "volume_spike"
	KindPriceBreakout Kind = "price_breakout"
)

// Signal is a uniform, immutable observation about one subject. Pass it by
// value; nothing downstream mutates it.
type Signal struct {
	Kind       Kind              `json:"kind"`
	Source     string            `json:"source"`
	SubjectID  string            `json:"subject_id"`
	Symbol     string            `json:"symbol"`
	Strength   float64           `json:"strength"`
	Confidence float64           `json:"confidence"`
	ObservedAt time.Time         `json:"observed_at"`
	Raw        marketdata.Record `json:"raw"`
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
