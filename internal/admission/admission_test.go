package admission

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"solsniper/internal/notify"
	"solsniper/internal/position"
	"solsniper/internal/target"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Notify(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newController(maxPositions int, cooldown time.Duration) (*Controller, *clock, *recordingNotifier) {
	clk := &clock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)}
	book := position.NewBook()
	book.SetClock(clk.Now)
	n := &recordingNotifier{}
	return &Controller{
		Book:     book,
		Notifier: n,
		Limits: func() Limits {
			return Limits{
				MaxPositions:   maxPositions,
				ExecutionFloor: 70,
				Cooldown:       cooldown,
				BuyAmount:      decimal.RequireFromString("0.1"),
				MaxSlippage:    3,
			}
		},
	}, clk, n
}

func tgt(subject string, priority float64) target.Target {
	return target.Target{SubjectID: subject, Symbol: subject, Priority: priority, Price: 0.001}
}

func TestDuplicateSubjectDenied(t *testing.T) {
	c, clk, _ := newController(5, 0)
	if _, d := c.Admit(tgt("MINT", 85)); !d.Allowed {
		t.Fatalf("first admit denied: %s", d.Reason)
	}
	clk.Advance(time.Minute)
	_, d := c.Admit(tgt("MINT", 95))
	if d.Allowed || d.Reason != ReasonDuplicate {
		t.Fatalf("decision=%+v want %q", d, ReasonDuplicate)
	}
}

func TestMaxPositionsDenied(t *testing.T) {
	c, clk, _ := newController(2, 0)
	for _, s := range []string{"A", "B"} {
		if _, d := c.Admit(tgt(s, 80)); !d.Allowed {
			t.Fatalf("admit %s denied: %s", s, d.Reason)
		}
		clk.Advance(time.Second)
	}
	_, d := c.Admit(tgt("C", 99))
	if d.Allowed || d.Reason != ReasonMaxPositions {
		t.Fatalf("decision=%+v want %q", d, ReasonMaxPositions)
	}
	if got := c.Book.ActiveCount(); got != 2 {
		t.Fatalf("active=%d want=2", got)
	}
}

func TestBelowExecutionThresholdDenied(t *testing.T) {
	c, _, n := newController(5, 0)
	_, d := c.Admit(tgt("A", 69.9))
	if d.Allowed || d.Reason != ReasonBelowThreshold {
		t.Fatalf("decision=%+v want %q", d, ReasonBelowThreshold)
	}
	if len(n.events) != 0 {
		t.Fatalf("events=%d want=0", len(n.events))
	}
}

func TestCooldownAppliesAcrossSubjects(t *testing.T) {
	c, clk, _ := newController(5, 5*time.Second)
	if _, d := c.Admit(tgt("A", 80)); !d.Allowed {
		t.Fatalf("first admit denied: %s", d.Reason)
	}
	clk.Advance(2 * time.Second)
	_, d := c.Admit(tgt("B", 90))
	if d.Allowed || d.Reason != ReasonCooldown {
		t.Fatalf("decision=%+v want %q", d, ReasonCooldown)
	}
	clk.Advance(3 * time.Second)
	if _, d := c.Admit(tgt("B", 90)); !d.Allowed {
		t.Fatalf("after cooldown denied: %s", d.Reason)
	}
}

func TestAdmitWithUsesGivenLimits(t *testing.T) {
	c, _, _ := newController(5, 0)
	calls := 0
	c.Limits = func() Limits {
		calls++
		return Limits{MaxPositions: 5, ExecutionFloor: 99}
	}
	snap := Limits{MaxPositions: 1, ExecutionFloor: 70, BuyAmount: decimal.RequireFromString("0.2"), MaxSlippage: 4}
	p, d := c.AdmitWith(tgt("A", 80), snap)
	if !d.Allowed {
		t.Fatalf("denied: %s", d.Reason)
	}
	if !p.Size.Equal(decimal.RequireFromString("0.2")) || p.MaxSlippage != 4 {
		t.Fatalf("position=%+v", p)
	}
	if _, d := c.AdmitWith(tgt("B", 95), snap); d.Allowed || d.Reason != ReasonMaxPositions {
		t.Fatalf("decision=%+v want %q", d, ReasonMaxPositions)
	}
	if calls != 0 {
		t.Fatalf("Limits called %d times", calls)
	}
}

func TestRulesShortCircuitInOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	l := Limits{MaxPositions: 1, ExecutionFloor: 70, Cooldown: time.Minute}
	occ := position.Occupancy{Active: 1, SubjectActive: true, LastOpened: now, Now: now}
	if d := Decide(occ, 10, l); d.Reason != ReasonDuplicate {
		t.Fatalf("reason=%q want duplicate first", d.Reason)
	}
	occ.SubjectActive = false
	if d := Decide(occ, 10, l); d.Reason != ReasonMaxPositions {
		t.Fatalf("reason=%q want max positions", d.Reason)
	}
	occ.Active = 0
	if d := Decide(occ, 10, l); d.Reason != ReasonBelowThreshold {
		t.Fatalf("reason=%q want threshold", d.Reason)
	}
	if d := Decide(occ, 70, l); d.Reason != ReasonCooldown {
		t.Fatalf("reason=%q want cooldown", d.Reason)
	}
	occ.LastOpened = time.Time{}
	if d := Decide(occ, 70, l); !d.Allowed {
		t.Fatalf("decision=%+v want allowed", d)
	}
}

func TestAdmitReservesPendingAndNotifies(t *testing.T) {
	c, _, n := newController(5, 0)
	p, d := c.Admit(tgt("A", 88))
	if !d.Allowed {
		t.Fatalf("denied: %s", d.Reason)
	}
	if p.State != position.StatePending || p.ID == "" || !p.Size.Equal(decimal.RequireFromString("0.1")) {
		t.Fatalf("position=%+v", p)
	}
	if len(n.events) != 1 || n.events[0].Kind != notify.KindTargetAdmitted {
		t.Fatalf("events=%+v", n.events)
	}
	if d := c.Check(90, "A"); d.Reason != ReasonDuplicate {
		t.Fatalf("check=%+v", d)
	}
	if c.Book.ActiveCount() != 1 {
		t.Fatalf("check must not reserve")
	}
}

func TestConcurrentAdmissionsRespectLimit(t *testing.T) {
	c, _, _ := newController(3, 0)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, d := c.Admit(tgt(string(rune('A'+i)), 90))
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if allowed != 3 {
		t.Fatalf("allowed=%d want=3", allowed)
	}
}
