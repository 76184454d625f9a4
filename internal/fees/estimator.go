package fees

import (
	"sort"
)

const (
	DefaultComputeUnits uint64 = 200_000
	// FloorUnitPrice is the minimum compute unit price in micro-lamports.
	FloorUnitPrice uint64 = 1_000
	// BaseFeeLamports is the per-signature network fee.
	BaseFeeLamports uint64 = 5_000

	LamportsPerSOL = 1e9

	highCongestionMean = 10_000
	lowCongestionMean  = 1_000
	spikeFactor        = 5

	NoteHighCongestion = "High network congestion detected - consider increasing priority fee"
	NoteLowCongestion  = "Low network congestion - minimum priority fee should be sufficient"
	NoteModerate       = "Moderate network activity - current priority fee is optimal"
	NoteSpike          = "Fee spike detected - consider waiting for lower fees"
	NoteUnavailable    = "Using default gas settings - network data unavailable"
	NoteStale          = "Network data unavailable - reusing the last estimate"
)

// Estimate is a recommended execution cost. UnitPrice is in micro-lamports
// per compute unit.
type Estimate struct {
	ComputeUnits  uint64   `json:"compute_units"`
	UnitPrice     uint64   `json:"unit_price"`
	PriorityFee   uint64   `json:"priority_fee_lamports"`
	TotalLamports uint64   `json:"total_lamports"`
	TotalFee      float64  `json:"total_fee_sol"`
	Notes         []string `json:"notes"`
	SampleSize    int      `json:"sample_size"`
	DataAvailable bool     `json:"data_available"`
}

type Tier struct {
	Level      string  `json:"level"`
	Multiplier uint64  `json:"multiplier"`
	UnitPrice  uint64  `json:"unit_price"`
	Cost       float64 `json:"cost_sol"`
	Speed      string  `json:"speed"`
}

var tierLevels = []struct {
	level      string
	multiplier uint64
	speed      string
}{
	{"Slow", 1, "~30 seconds"},
	{"Average", 2, "~15 seconds"},
	{"Fast", 5, "~5 seconds"},
	{"Instant", 10, "~2 seconds"},
}

// EstimateFromSamples converts observed priority fees into a recommendation.
// An empty sample yields the defaults and never fails.
func EstimateFromSamples(samples []uint64) Estimate {
	if len(samples) == 0 {
		return newEstimate(FloorUnitPrice, []string{NoteUnavailable}, 0, false)
	}
	sorted := append([]uint64(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	median := sorted[len(sorted)/2]
	price := median
	if price < FloorUnitPrice {
		price = FloorUnitPrice
	}

	var sum float64
	for _, s := range sorted {
		sum += float64(s)
	}
	mean := sum / float64(len(sorted))
	max := float64(sorted[len(sorted)-1])

	var notes []string
	switch {
	case mean > highCongestionMean:
		notes = append(notes, NoteHighCongestion)
	case mean < lowCongestionMean:
		notes = append(notes, NoteLowCongestion)
	default:
		notes = append(notes, NoteModerate)
	}
	if max > mean*spikeFactor {
		notes = append(notes, NoteSpike)
	}
	return newEstimate(price, notes, len(samples), true)
}

// Tiers projects the cost of the estimate at increasing price multipliers.
func Tiers(base Estimate) []Tier {
	price := base.UnitPrice
	if price == 0 {
		price = FloorUnitPrice
	}
	cu := base.ComputeUnits
	if cu == 0 {
		cu = DefaultComputeUnits
	}
	out := make([]Tier, 0, len(tierLevels))
	for _, lv := range tierLevels {
		p := price * lv.multiplier
		lamports := BaseFeeLamports + priorityLamports(cu, p)
		out = append(out, Tier{
			Level:      lv.level,
			Multiplier: lv.multiplier,
			UnitPrice:  p,
			Cost:       float64(lamports) / LamportsPerSOL,
			Speed:      lv.speed,
		})
	}
	return out
}

func newEstimate(price uint64, notes []string, n int, available bool) Estimate {
	priority := priorityLamports(DefaultComputeUnits, price)
	total := BaseFeeLamports + priority
	return Estimate{
		ComputeUnits:  DefaultComputeUnits,
		UnitPrice:     price,
		PriorityFee:   priority,
		TotalLamports: total,
		TotalFee:      float64(total) / LamportsPerSOL,
		Notes:         notes,
		SampleSize:    n,
		DataAvailable: available,
	}
}

// priorityLamports rounds up so that a non-zero price never costs zero.
func priorityLamports(cu, microLamports uint64) uint64 {
	return (cu*microLamports + 999_999) / 1_000_000
}
