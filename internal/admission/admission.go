package admission

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solsniper/internal/metrics"
	"solsniper/internal/notify"
	"solsniper/internal/position"
	"solsniper/internal/target"
)

const (
	ReasonDuplicate      = "duplicate subject"
	ReasonMaxPositions   = "max positions"
	ReasonBelowThreshold = "below execution threshold"
	ReasonCooldown       = "cooldown"
)

type Limits struct {
	MaxPositions   int
	ExecutionFloor float64
	Cooldown       time.Duration
	BuyAmount      decimal.Decimal
	MaxSlippage    float64
}

type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Decide applies the admission rules in order and stops at the first that fails.
func Decide(occ position.Occupancy, priority float64, l Limits) Decision {
	switch {
	case occ.SubjectActive:
		return Decision{Reason: ReasonDuplicate}
	case occ.Active >= l.MaxPositions:
		return Decision{Reason: ReasonMaxPositions}
	case priority < l.ExecutionFloor:
		return Decision{Reason: ReasonBelowThreshold}
	case !occ.LastOpened.IsZero() && occ.Now.Sub(occ.LastOpened) < l.Cooldown:
		return Decision{Reason: ReasonCooldown}
	}
	return Decision{Allowed: true}
}

// Controller gates targets into the position book. The decision and the
// pending reservation happen under the book lock, so concurrent admissions
// cannot overshoot the limits.
type Controller struct {
	Book     *position.Book
	Limits   func() Limits
	Notifier notify.Notifier
	Logger   *zap.Logger
	Metrics  *metrics.Registry
}

// Admit decides on t against the current limits and, when allowed,
// reserves a pending position for it.
func (c *Controller) Admit(t target.Target) (position.Position, Decision) {
	return c.AdmitWith(t, c.limits())
}

// AdmitWith is Admit against a caller-held limits snapshot, so a batch of
// targets is judged under one configuration.
func (c *Controller) AdmitWith(t target.Target, l Limits) (position.Position, Decision) {
	size := l.BuyAmount
	if !size.IsPositive() {
		size = t.MaxSize.Div(decimal.NewFromInt(2))
	}
	slippage := t.MaxSlippage
	if l.MaxSlippage > 0 {
		slippage = l.MaxSlippage
	}
	var d Decision
	p, ok, _ := c.Book.Reserve(position.Position{
		ID:          uuid.NewString(),
		SubjectID:   t.SubjectID,
		Symbol:      t.Symbol,
		Size:        size,
		EntryPrice:  decimal.NewFromFloat(t.Price),
		Priority:    t.Priority,
		Rationale:   t.Rationale,
		MaxSlippage: slippage,
	}, func(occ position.Occupancy) (bool, string) {
		d = Decide(occ, t.Priority, l)
		return d.Allowed, d.Reason
	})
	c.Metrics.Admission(ok, d.Reason)
	if !ok {
		if c.Logger != nil {
			c.Logger.Debug("target rejected",
				zap.String("subject", t.SubjectID),
				zap.Float64("priority", t.Priority),
				zap.String("reason", d.Reason),
			)
		}
		return position.Position{}, d
	}
	if c.Logger != nil {
		c.Logger.Info("target admitted",
			zap.String("subject", t.SubjectID),
			zap.String("position", p.ID),
			zap.Float64("priority", t.Priority),
		)
	}
	notify.Send(c.Notifier, c.Logger, notify.Event{
		Kind:    notify.KindTargetAdmitted,
		Subject: t.SubjectID,
		Symbol:  t.Symbol,
		Message: t.Rationale,
		Fields: map[string]string{
			"priority": fmt.Sprintf("%.0f", t.Priority),
			"size":     size.String(),
		},
	})
	return p, d
}

// Check reports what Admit would decide right now without reserving.
func (c *Controller) Check(priority float64, subjectID string) Decision {
	var d Decision
	c.Book.Reserve(position.Position{SubjectID: subjectID}, func(occ position.Occupancy) (bool, string) {
		d = Decide(occ, priority, c.limits())
		return false, d.Reason
	})
	return d
}

func (c *Controller) limits() Limits {
	if c.Limits != nil {
		return c.Limits()
	}
	return Limits{MaxPositions: 5, ExecutionFloor: 70, Cooldown: 5 * time.Second}
}
