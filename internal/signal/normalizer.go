package signal

import (
	"math"
	"strings"
	"sync"
	"time"

	"solsniper/internal/marketdata"
)

const (
	spikeRatio       = 3.0
	breakoutPct      = 10.0
	liquidityAddPct  = 25.0
	defaultFreshness = time.Hour
)

// Normalizer turns provider records into Signals. It remembers the last
// liquidity seen per subject so that liquidity additions can be detected
// across scans until Prune drops it.
type Normalizer struct {
	// NewListingAge is how young a non-feed record must be to count as a new listing.
	NewListingAge time.Duration
	Now           func() time.Time

	mu            sync.Mutex
	lastLiquidity map[string]liquidityMark
}

type liquidityMark struct {
	liquidity float64
	seen      time.Time
}

func NewNormalizer() *Normalizer {
	return &Normalizer{lastLiquidity: map[string]liquidityMark{}}
}

// Normalize maps each record to zero or more signals. Records without a
// subject are skipped.
func (n *Normalizer) Normalize(records []marketdata.Record) []Signal {
	out := make([]Signal, 0, len(records))
	for _, r := range records {
		out = append(out, n.normalizeOne(r)...)
	}
	return out
}

func (n *Normalizer) normalizeOne(r marketdata.Record) []Signal {
	r.SubjectID = strings.TrimSpace(r.SubjectID)
	if r.SubjectID == "" {
		return nil
	}
	observed := r.ObservedAt
	if observed.IsZero() {
		observed = n.now()
	}
	base := Signal{
		Source:     r.Source,
		SubjectID:  r.SubjectID,
		Symbol:     r.Symbol,
		ObservedAt: observed,
		Raw:        r,
	}

	var out []Signal
	prevLiq, seen := n.swapLiquidity(r.SubjectID, r.Liquidity)

	if n.isNewListing(r, observed) && !seen {
		s := base
		s.Kind = KindNewListing
		s.Strength = listingStrength(r)
		s.Confidence = listingConfidence(r)
		out = append(out, s)
	}

	if avg := r.Volume24h / 24; avg > 0 && r.Volume1h > spikeRatio*avg {
		s := base
		s.Kind = KindVolumeSpike
		s.Strength = math.Min(100, r.Volume1h/avg*20)
		s.Confidence = 0.8
		out = append(out, s)
	}

	if math.Abs(r.PriceChange1h) >= breakoutPct {
		s := base
		s.Kind = KindPriceBreakout
		s.Strength = math.Min(100, math.Abs(r.PriceChange1h)*5)
		s.Confidence = 0.6
		out = append(out, s)
	}

	if seen && prevLiq > 0 && r.Liquidity > 0 {
		if delta := r.Liquidity - prevLiq; delta/prevLiq*100 >= liquidityAddPct {
			s := base
			s.Kind = KindLiquidityAdd
			s.Strength = math.Min(100, delta/prevLiq*200)
			s.Confidence = 0.7
			out = append(out, s)
		}
	}
	return out
}

// Prune drops subjects not seen since cutoff and reports how many went.
func (n *Normalizer) Prune(cutoff time.Time) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	dropped := 0
	for id, m := range n.lastLiquidity {
		if m.seen.Before(cutoff) {
			delete(n.lastLiquidity, id)
			dropped++
		}
	}
	return dropped
}

// Tracked reports how many subjects have a remembered liquidity.
func (n *Normalizer) Tracked() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.lastLiquidity)
}

func (n *Normalizer) swapLiquidity(subjectID string, liq float64) (float64, bool) {
	now := n.now()
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.lastLiquidity == nil {
		n.lastLiquidity = map[string]liquidityMark{}
	}
	prev, ok := n.lastLiquidity[subjectID]
	next := prev
	next.seen = now
	if liq > 0 || !ok {
		next.liquidity = liq
	}
	n.lastLiquidity[subjectID] = next
	return prev.liquidity, ok
}

func (n *Normalizer) isNewListing(r marketdata.Record, observed time.Time) bool {
	if r.Fresh {
		return true
	}
	if r.LaunchedAt.IsZero() {
		return false
	}
	age := n.NewListingAge
	if age <= 0 {
		age = defaultFreshness
	}
	return observed.Sub(r.LaunchedAt) <= age
}

func (n *Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now().UTC()
}

func listingStrength(r marketdata.Record) float64 {
	s := 50.0
	if r.Liquidity > 10_000 {
		s += 20
	}
	if r.Liquidity > 50_000 {
		s += 10
	}
	if r.Liquidity > 0 && r.Volume24h > r.Liquidity {
		s += 15
	}
	if r.Socials["twitter"] != "" && r.Socials["telegram"] != "" {
		s += 10
	}
	return clamp(s, 0, 100)
}

func listingConfidence(r marketdata.Record) float64 {
	c := 0.5
	if r.Liquidity > 0 && r.Volume24h > 0 && r.MarketCap > 0 {
		c += 0.2
	}
	if len(r.Socials) > 0 {
		c += 0.1
	}
	if r.MarketCap > 1_000 && r.MarketCap < 10_000_000 {
		c += 0.1
	}
	return clamp(c, 0, 1)
}
