package fees

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateEmptySampleUsesDefaults(t *testing.T) {
	est := EstimateFromSamples(nil)
	assert.Equal(t, DefaultComputeUnits, est.ComputeUnits)
	assert.Equal(t, FloorUnitPrice, est.UnitPrice)
	assert.Equal(t, uint64(200), est.PriorityFee)
	assert.Equal(t, uint64(5200), est.TotalLamports)
	assert.InDelta(t, 0.0000052, est.TotalFee, 1e-12)
	assert.Equal(t, []string{NoteUnavailable}, est.Notes)
	assert.False(t, est.DataAvailable)
}

func TestEstimateMedianAndNotes(t *testing.T) {
	cases := []struct {
		name    string
		samples []uint64
		price   uint64
		notes   []string
	}{
		{
			name:    "quiet network floors the price",
			samples: []uint64{0, 0, 0, 0, 0, 0, 0, 0, 0, 900},
			price:   FloorUnitPrice,
			notes:   []string{NoteLowCongestion, NoteSpike},
		},
		{
			name:    "moderate",
			samples: []uint64{2000, 3000, 4000},
			price:   3000,
			notes:   []string{NoteModerate},
		},
		{
			name:    "congested",
			samples: []uint64{20_000, 30_000, 50_000, 60_000},
			price:   50_000,
			notes:   []string{NoteHighCongestion},
		},
		{
			name:    "spike over moderate mean",
			samples: []uint64{1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000, 40_000},
			price:   1000,
			notes:   []string{NoteModerate, NoteSpike},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			est := EstimateFromSamples(tc.samples)
			assert.Equal(t, tc.price, est.UnitPrice)
			assert.Equal(t, tc.notes, est.Notes)
			assert.True(t, est.DataAvailable)
			assert.Equal(t, len(tc.samples), est.SampleSize)
		})
	}
}

func TestTiersScaleWithMultiplier(t *testing.T) {
	tiers := Tiers(EstimateFromSamples([]uint64{5000}))
	require.Len(t, tiers, 4)
	assert.Equal(t, "Slow", tiers[0].Level)
	assert.Equal(t, "~2 seconds", tiers[3].Speed)
	assert.Equal(t, uint64(50_000), tiers[3].UnitPrice)
	// 5000 base + 200k CU * 5000 micro-lamports = 6000 lamports
	assert.InDelta(t, 0.000006, tiers[0].Cost, 1e-12)
	for i := 1; i < len(tiers); i++ {
		assert.Greater(t, tiers[i].Cost, tiers[i-1].Cost)
	}
}

type stubSamples struct {
	samples []uint64
	err     error
	calls   int
}

func (s *stubSamples) RecentSamples(context.Context) ([]uint64, error) {
	s.calls++
	return s.samples, s.err
}

func TestServiceCachesAndDegrades(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &stubSamples{samples: []uint64{3000}}
	svc := &Service{Source: src, MaxAge: time.Minute, Now: func() time.Time { return now }}

	assert.Equal(t, uint64(3000), svc.Current(context.Background()).UnitPrice)
	assert.Equal(t, uint64(3000), svc.Current(context.Background()).UnitPrice)
	assert.Equal(t, 1, src.calls)

	src.err = errors.New("rpc down")
	now = now.Add(2 * time.Minute)
	est := svc.Current(context.Background())
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, uint64(3000), est.UnitPrice, "last estimate kept")
	assert.True(t, est.DataAvailable)
	assert.Contains(t, est.Notes, NoteStale)

	now = now.Add(2 * time.Minute)
	again := svc.Current(context.Background())
	assert.Equal(t, uint64(3000), again.UnitPrice)
	assert.Len(t, again.Notes, len(est.Notes), "stale note not repeated")

	src.err = nil
	src.samples = []uint64{4000}
	now = now.Add(2 * time.Minute)
	fresh := svc.Current(context.Background())
	assert.Equal(t, uint64(4000), fresh.UnitPrice)
	assert.NotContains(t, fresh.Notes, NoteStale)
}

func TestServiceFailureWithoutHistoryUsesDefaults(t *testing.T) {
	src := &stubSamples{err: errors.New("rpc down")}
	svc := &Service{Source: src}
	est := svc.Refresh(context.Background())
	require.Equal(t, 1, src.calls)
	assert.Equal(t, FloorUnitPrice, est.UnitPrice)
	assert.False(t, est.DataAvailable)
	assert.Equal(t, []string{NoteUnavailable}, est.Notes)
}

func TestNilServiceReturnsDefaults(t *testing.T) {
	var svc *Service
	est := svc.Current(context.Background())
	assert.Equal(t, FloorUnitPrice, est.UnitPrice)
}
