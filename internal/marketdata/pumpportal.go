package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	defaultPumpPortalURL = "wss://pumpportal.fun/api/data"
	initialVirtualSOL    = 30.0
)

// PumpPortalStream subscribes to the launchpad's new-token feed and buffers
// creation events until the scan loop drains them through FetchRecent.
type PumpPortalStream struct {
	URL        string
	Logger     *zap.Logger
	Buffer     int
	BackoffMin time.Duration
	BackoffMax time.Duration
	Now        func() time.Time

	mu      sync.Mutex
	pending []Record
	dropped int
}

type ppCreateEvent struct {
	Signature         string  `json:"signature"`
	Mint              string  `json:"mint"`
	TraderPublicKey   string  `json:"traderPublicKey"`
	TxType            string  `json:"txType"`
	Name              string  `json:"name"`
	Symbol            string  `json:"symbol"`
	MarketCapSol      float64 `json:"marketCapSol"`
	VSolInBondingCurv float64 `json:"vSolInBondingCurve"`
	Pool              string  `json:"pool"`
}

func (s *PumpPortalStream) Name() string { return "pumpportal" }

// FetchSubject is not served by the stream; the fallback chain moves on.
func (s *PumpPortalStream) FetchSubject(_ context.Context, subjectID string) (SubjectMetrics, error) {
	return SubjectMetrics{}, fmt.Errorf("%w: stream has no lookup for %s", ErrNotFound, subjectID)
}

// FetchRecent drains buffered creation events, oldest first.
func (s *PumpPortalStream) FetchRecent(_ context.Context, f Filter) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.pending)
	if f.Limit > 0 && n > f.Limit {
		n = f.Limit
	}
	out := make([]Record, n)
	copy(out, s.pending[:n])
	s.pending = append(s.pending[:0], s.pending[n:]...)
	return out, nil
}

// Run keeps a subscription open until ctx is done, reconnecting with jittered
// exponential backoff.
func (s *PumpPortalStream) Run(ctx context.Context) error {
	if s == nil {
		return errors.New("pumpportal stream is nil")
	}
	logger := s.logger()
	backoff := s.backoffMin()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := s.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			logger.Warn("pumpportal stream disconnected", zap.Error(err), zap.Duration("backoff", backoff))
		}
		if err := sleepWithJitter(ctx, backoff); err != nil {
			return err
		}
		backoff = nextBackoff(backoff, s.backoffMax())
	}
}

func (s *PumpPortalStream) session(ctx context.Context) error {
	u := strings.TrimSpace(s.URL)
	if u == "" {
		u = defaultPumpPortalURL
	}
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	conn, _, err := websocket.Dial(dialCtx, u, nil)
	cancel()
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "reconnect") }()
	conn.SetReadLimit(1 << 20)

	sub, _ := json.Marshal(map[string]string{"method": "subscribeNewToken"})
	if err := conn.Write(ctx, websocket.MessageText, sub); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.logger().Info("pumpportal stream subscribed", zap.String("url", u))

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		s.handle(data)
	}
}

func (s *PumpPortalStream) handle(data []byte) {
	var ev ppCreateEvent
	if err := json.Unmarshal(data, &ev); err != nil || ev.Mint == "" {
		return
	}
	if ev.TxType != "" && ev.TxType != "create" {
		return
	}
	now := s.now()
	r := Record{
		Source:     s.Name(),
		SubjectID:  ev.Mint,
		Symbol:     ev.Symbol,
		Name:       ev.Name,
		Creator:    ev.TraderPublicKey,
		Fresh:      true,
		LaunchedAt: now,
		ObservedAt: now,
	}
	// The feed quotes SOL amounts only. USD metrics arrive when the subject is fetched.
	if ev.VSolInBondingCurv > initialVirtualSOL {
		r.BondingProgress = clampPct((ev.VSolInBondingCurv - initialVirtualSOL) / graduationSOL * 100)
	}
	s.push(r)
}

func (s *PumpPortalStream) push(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	limit := s.Buffer
	if limit <= 0 {
		limit = 256
	}
	if len(s.pending) >= limit {
		s.pending = s.pending[1:]
		s.dropped++
	}
	s.pending = append(s.pending, r)
}

// Dropped reports how many buffered events were discarded because the buffer was full.
func (s *PumpPortalStream) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

func (s *PumpPortalStream) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *PumpPortalStream) backoffMin() time.Duration {
	if s.BackoffMin <= 0 {
		return time.Second
	}
	return s.BackoffMin
}

func (s *PumpPortalStream) backoffMax() time.Duration {
	if s.BackoffMax <= 0 {
		return 30 * time.Second
	}
	return s.BackoffMax
}

func (s *PumpPortalStream) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func sleepWithJitter(ctx context.Context, base time.Duration) error {
	if base <= 0 {
		return nil
	}
	jitter := time.Duration(0)
	if half := int64(base / 2); half > 0 {
		jitter = time.Duration(rand.Int63n(half))
	}
	timer := time.NewTimer(base + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
