package execution

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Fill is one simulated trade.
type Fill struct {
	Signature string          `json:"signature"`
	Side      string          `json:"side"`
	Account   string          `json:"account"`
	SubjectID string          `json:"subject_id"`
	Amount    decimal.Decimal `json:"amount"`
	At        time.Time       `json:"at"`
}

// Paper fills every order without touching the chain. It is the dry-run
// executor and keeps a log of what it would have sent.
type Paper struct {
	Now func() time.Time

	mu    sync.Mutex
	fills []Fill
}

func (p *Paper) Buy(ctx context.Context, acct Account, subjectID string, amount decimal.Decimal, _ float64) (string, error) {
	return p.fill(ctx, "buy", acct, subjectID, amount)
}

func (p *Paper) Sell(ctx context.Context, acct Account, subjectID string, amount decimal.Decimal, _ float64) (string, error) {
	return p.fill(ctx, "sell", acct, subjectID, amount)
}

func (p *Paper) fill(ctx context.Context, side string, acct Account, subjectID string, amount decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}
	if strings.TrimSpace(subjectID) == "" {
		return "", fmt.Errorf("%w: empty subject", ErrExecutionFailed)
	}
	if !amount.IsPositive() {
		return "", fmt.Errorf("%w: non-positive amount %s", ErrExecutionFailed, amount)
	}
	f := Fill{
		Signature: "paper-" + uuid.NewString(),
		Side:      side,
		Account:   acct.Address,
		SubjectID: subjectID,
		Amount:    amount,
		At:        p.now(),
	}
	p.mu.Lock()
	p.fills = append(p.fills, f)
	p.mu.Unlock()
	return f.Signature, nil
}

func (p *Paper) Fills() []Fill {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Fill(nil), p.fills...)
}

func (p *Paper) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}
