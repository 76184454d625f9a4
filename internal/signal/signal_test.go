package signal

import (
	"context"
	"testing"
	"time"

	"solsniper/internal/marketdata"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func kinds(sigs []Signal) map[Kind]Signal {
	out := map[Kind]Signal{}
	for _, s := range sigs {
		out[s.Kind] = s
	}
	return out
}

func TestNormalizeNewListingStrengthAndConfidence(t *testing.T) {
	cases := []struct {
		name     string
		rec      marketdata.Record
		strength float64
		conf     float64
	}{
		{
			name:     "bare feed record",
			rec:      marketdata.Record{SubjectID: "A", Fresh: true},
			strength: 50,
			conf:     0.5,
		},
		{
			name: "deep liquidity and socials",
			rec: marketdata.Record{
				SubjectID: "B", Fresh: true,
				Liquidity: 60_000, Volume24h: 90_000, MarketCap: 500_000,
				Socials: map[string]string{"twitter": "x", "telegram": "t"},
			},
			strength: 100,
			conf:     0.9,
		},
		{
			name:     "mid liquidity no socials",
			rec:      marketdata.Record{SubjectID: "C", Fresh: true, Liquidity: 20_000, Volume24h: 1_000, MarketCap: 20_000_000},
			strength: 70,
			conf:     0.7,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := NewNormalizer()
			sigs := kinds(n.Normalize([]marketdata.Record{tc.rec}))
			s, ok := sigs[KindNewListing]
			if !ok {
				t.Fatalf("expected new_listing, got %+v", sigs)
			}
			if s.Strength != tc.strength {
				t.Fatalf("strength=%v want=%v", s.Strength, tc.strength)
			}
			if diff := s.Confidence - tc.conf; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("confidence=%v want=%v", s.Confidence, tc.conf)
			}
		})
	}
}

func TestNormalizeActivitySignals(t *testing.T) {
	n := NewNormalizer()
	n.Now = func() time.Time { return t0 }
	rec := marketdata.Record{
		SubjectID:     "A",
		Source:        "dexscreener",
		Volume1h:      5_000,
		Volume24h:     24_000,
		PriceChange1h: -12,
		LaunchedAt:    t0.Add(-48 * time.Hour),
	}
	sigs := kinds(n.Normalize([]marketdata.Record{rec}))
	if _, ok := sigs[KindNewListing]; ok {
		t.Fatalf("old pair must not be a new listing")
	}
	spike, ok := sigs[KindVolumeSpike]
	if !ok || spike.Strength != 100 || spike.Confidence != 0.8 {
		t.Fatalf("spike=%+v ok=%v", spike, ok)
	}
	bo, ok := sigs[KindPriceBreakout]
	if !ok || bo.Strength != 60 || bo.Confidence != 0.6 {
		t.Fatalf("breakout=%+v ok=%v", bo, ok)
	}
	if !spike.ObservedAt.Equal(t0) {
		t.Fatalf("observedAt=%s want=%s", spike.ObservedAt, t0)
	}
}

func TestNormalizeLiquidityAddAcrossScans(t *testing.T) {
	n := NewNormalizer()
	first := n.Normalize([]marketdata.Record{{SubjectID: "A", Liquidity: 10_000}})
	if len(first) != 0 {
		t.Fatalf("first observation signals=%+v", first)
	}
	small := n.Normalize([]marketdata.Record{{SubjectID: "A", Liquidity: 11_000}})
	if len(small) != 0 {
		t.Fatalf("10%% growth should not signal: %+v", small)
	}
	sigs := kinds(n.Normalize([]marketdata.Record{{SubjectID: "A", Liquidity: 16_500}}))
	add, ok := sigs[KindLiquidityAdd]
	if !ok {
		t.Fatalf("expected liquidity_add")
	}
	if add.Strength != 100 || add.Confidence != 0.7 {
		t.Fatalf("add=%+v", add)
	}
}

func TestNormalizeSkipsEmptySubjectAndRepeatsListingOnce(t *testing.T) {
	n := NewNormalizer()
	if got := n.Normalize([]marketdata.Record{{SubjectID: "  ", Fresh: true}}); len(got) != 0 {
		t.Fatalf("got=%+v", got)
	}
	rec := marketdata.Record{SubjectID: "A", Fresh: true}
	if got := n.Normalize([]marketdata.Record{rec}); len(got) != 1 {
		t.Fatalf("first len=%d", len(got))
	}
	if got := n.Normalize([]marketdata.Record{rec}); len(got) != 0 {
		t.Fatalf("repeat listing len=%d want=0", len(got))
	}
}

func TestNormalizerPruneDropsStaleSubjects(t *testing.T) {
	now := t0
	n := NewNormalizer()
	n.Now = func() time.Time { return now }
	n.Normalize([]marketdata.Record{{SubjectID: "OLD", Liquidity: 10_000}})
	now = t0.Add(time.Hour)
	n.Normalize([]marketdata.Record{{SubjectID: "NEW", Liquidity: 10_000}})
	if got := n.Tracked(); got != 2 {
		t.Fatalf("tracked=%d want=2", got)
	}
	if dropped := n.Prune(t0.Add(30 * time.Minute)); dropped != 1 {
		t.Fatalf("dropped=%d want=1", dropped)
	}
	if got := n.Tracked(); got != 1 {
		t.Fatalf("tracked=%d want=1", got)
	}
	// OLD starts over: a jump against the forgotten baseline is not an add.
	if sigs := kinds(n.Normalize([]marketdata.Record{{SubjectID: "OLD", Liquidity: 50_000}})); len(sigs) != 0 {
		t.Fatalf("pruned subject signalled %+v", sigs)
	}
	if sigs := kinds(n.Normalize([]marketdata.Record{{SubjectID: "NEW", Liquidity: 50_000}})); len(sigs) != 1 {
		t.Fatalf("kept subject signals=%+v want liquidity_add", sigs)
	}
}

func TestNormalizerRepeatedSightingRefreshesSeen(t *testing.T) {
	now := t0
	n := NewNormalizer()
	n.Now = func() time.Time { return now }
	n.Normalize([]marketdata.Record{{SubjectID: "A", Liquidity: 10_000}})
	now = t0.Add(time.Hour)
	n.Normalize([]marketdata.Record{{SubjectID: "A"}})
	if dropped := n.Prune(t0.Add(30 * time.Minute)); dropped != 0 {
		t.Fatalf("dropped=%d want=0", dropped)
	}
}

func TestHubDedupWindow(t *testing.T) {
	h := NewHub(nil, nil, nil)
	sig := Signal{Kind: KindVolumeSpike, SubjectID: "A", ObservedAt: t0}
	other := Signal{Kind: KindPriceBreakout, SubjectID: "A", ObservedAt: t0}

	got := h.Accept(context.Background(), []Signal{sig, other})
	if len(got) != 2 {
		t.Fatalf("len=%d want=2", len(got))
	}
	sig.ObservedAt = t0.Add(10 * time.Second)
	if got := h.Accept(context.Background(), []Signal{sig}); len(got) != 0 {
		t.Fatalf("duplicate inside window accepted")
	}
	sig.ObservedAt = t0.Add(31 * time.Second)
	if got := h.Accept(context.Background(), []Signal{sig}); len(got) != 1 {
		t.Fatalf("signal after window dropped")
	}
	if h.Dropped() != 1 {
		t.Fatalf("dropped=%d want=1", h.Dropped())
	}
	if n := h.Prune(t0.Add(time.Hour)); n != 2 {
		t.Fatalf("pruned=%d want=2", n)
	}
}
