package position

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"solsniper/internal/models"
)

type State string

const (
	StatePending State = "pending"
	StateOpen    State = "open"
	StateClosing State = "closing"
	StateClosed  State = "closed"
	StateFailed  State = "failed"
)

type ExitReason string

const (
	ExitProfit   ExitReason = "profit"
	ExitStopLoss ExitReason = "stop_loss"
	ExitManual   ExitReason = "manual"
)

var (
	ErrNotFound          = errors.New("position not found")
	ErrInvalidTransition = errors.New("invalid position transition")
)

var transitions = map[State][]State{
	StatePending: {StateOpen, StateFailed},
	StateOpen:    {StateClosing},
	StateClosing: {StateClosed, StateOpen, StateFailed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Active reports whether the state occupies a position slot.
func (s State) Active() bool {
	return s == StatePending || s == StateOpen || s == StateClosing
}

// Position is a snapshot of one trade. Size is the committed SOL amount.
type Position struct {
	ID             string          `json:"id"`
	SubjectID      string          `json:"subject_id"`
	Symbol         string          `json:"symbol"`
	Size           decimal.Decimal `json:"size"`
	EntryPrice     decimal.Decimal `json:"entry_price"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	EntrySignature string          `json:"entry_signature,omitempty"`
	ExitSignature  string          `json:"exit_signature,omitempty"`
	State          State           `json:"state"`
	ExitReason     ExitReason      `json:"exit_reason,omitempty"`
	PnLAbsolute    decimal.Decimal `json:"pnl_absolute"`
	PnLPercent     decimal.Decimal `json:"pnl_percent"`
	Priority       float64         `json:"priority"`
	Rationale      string          `json:"rationale,omitempty"`
	MaxSlippage    float64         `json:"max_slippage"`
	FailReason     string          `json:"fail_reason,omitempty"`
	OpenedAt       time.Time       `json:"opened_at"`
	ClosedAt       *time.Time      `json:"closed_at,omitempty"`
}

// Reprice sets the current price and recomputes PnL. A zero entry price
// leaves PnL at zero.
func (p *Position) Reprice(current decimal.Decimal) {
	p.CurrentPrice = current
	if !p.EntryPrice.IsPositive() {
		p.PnLAbsolute = decimal.Zero
		p.PnLPercent = decimal.Zero
		return
	}
	diff := current.Sub(p.EntryPrice)
	p.PnLAbsolute = diff.Mul(p.Size)
	p.PnLPercent = diff.Div(p.EntryPrice).Mul(decimal.NewFromInt(100))
}

// ExitTrigger reports whether PnL crossed take-profit or stop-loss.
func (p Position) ExitTrigger(takeProfitPct, stopLossPct float64) (ExitReason, bool) {
	pct := p.PnLPercent
	if takeProfitPct > 0 && pct.GreaterThanOrEqual(decimal.NewFromFloat(takeProfitPct)) {
		return ExitProfit, true
	}
	if stopLossPct > 0 && pct.LessThanOrEqual(decimal.NewFromFloat(-stopLossPct)) {
		return ExitStopLoss, true
	}
	return "", false
}

// ExitValue is the SOL value of the position at the current price.
func (p Position) ExitValue() decimal.Decimal {
	if !p.EntryPrice.IsPositive() || !p.CurrentPrice.IsPositive() {
		return p.Size
	}
	return p.Size.Mul(p.CurrentPrice).Div(p.EntryPrice)
}

func (p Position) toModel() *models.Position {
	return &models.Position{
		ID:             p.ID,
		SubjectID:      p.SubjectID,
		Symbol:         p.Symbol,
		Size:           p.Size,
		EntryPrice:     p.EntryPrice,
		CurrentPrice:   p.CurrentPrice,
		PnLAbsolute:    p.PnLAbsolute,
		PnLPercent:     p.PnLPercent,
		EntrySignature: p.EntrySignature,
		ExitSignature:  p.ExitSignature,
		State:          string(p.State),
		ExitReason:     string(p.ExitReason),
		Priority:       p.Priority,
		Rationale:      p.Rationale,
		MaxSlippage:    p.MaxSlippage,
		FailReason:     p.FailReason,
		OpenedAt:       p.OpenedAt,
		ClosedAt:       p.ClosedAt,
	}
}

// FromModel converts a persisted row back into a Position.
func FromModel(m models.Position) Position {
	return Position{
		ID:             m.ID,
		SubjectID:      m.SubjectID,
		Symbol:         m.Symbol,
		Size:           m.Size,
		EntryPrice:     m.EntryPrice,
		CurrentPrice:   m.CurrentPrice,
		PnLAbsolute:    m.PnLAbsolute,
		PnLPercent:     m.PnLPercent,
		EntrySignature: m.EntrySignature,
		ExitSignature:  m.ExitSignature,
		State:          State(m.State),
		ExitReason:     ExitReason(m.ExitReason),
		Priority:       m.Priority,
		Rationale:      m.Rationale,
		MaxSlippage:    m.MaxSlippage,
		FailReason:     m.FailReason,
		OpenedAt:       m.OpenedAt,
		ClosedAt:       m.ClosedAt,
	}
}
