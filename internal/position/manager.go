package position

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solsniper/internal/execution"
	"solsniper/internal/marketdata"
	"solsniper/internal/metrics"
	"solsniper/internal/notify"
	"solsniper/internal/repository"
)

// Thresholds are the exit bounds in percent.
type Thresholds struct {
	TakeProfitPct float64
	StopLossPct   float64
}

// Manager drives positions through their lifecycle. The Book holds state;
// the repository is written through on every change.
type Manager struct {
	Book     *Book
	Executor execution.Executor
	Market   marketdata.Source
	Account  execution.Account
	Notifier notify.Notifier
	Repo     repository.Repository
	Logger   *zap.Logger
	Metrics  *metrics.Registry

	// Thresholds is read on every evaluation so config swaps apply to open positions.
	Thresholds  func() Thresholds
	CallTimeout time.Duration
	Concurrency int
}

// Execute buys for a pending position. Success moves it to open; any
// failure moves it to failed and releases the cooldown it reserved.
func (m *Manager) Execute(ctx context.Context, id string) (Position, error) {
	if m == nil || m.Book == nil {
		return Position{}, errors.New("position manager not configured")
	}
	p, ok := m.Book.Get(id)
	if !ok {
		return Position{}, ErrNotFound
	}
	if p.State != StatePending {
		return p, fmt.Errorf("%w: %s is %s", ErrInvalidTransition, id, p.State)
	}

	entry := p.EntryPrice
	if !entry.IsPositive() && m.Market != nil {
		cctx, cancel := m.callCtx(ctx)
		sm, err := m.Market.FetchSubject(cctx, p.SubjectID)
		cancel()
		if err == nil && sm.Price > 0 {
			entry = decimal.NewFromFloat(sm.Price)
		}
	}
	if !entry.IsPositive() {
		return m.fail(ctx, StatePending, id, errors.New("no entry price"))
	}

	cctx, cancel := m.callCtx(ctx)
	sig, err := m.Executor.Buy(cctx, m.Account, p.SubjectID, p.Size, p.MaxSlippage)
	cancel()
	m.Metrics.Trade("buy", err)
	if err != nil {
		return m.fail(ctx, StatePending, id, err)
	}

	p, err = m.Book.transition(id, StatePending, StateOpen, func(p *Position) {
		p.EntryPrice = entry
		p.EntrySignature = sig
		p.Reprice(entry)
	})
	if err != nil {
		return p, err
	}
	m.record(ctx, StatePending, p)
	m.notify(notify.KindPositionOpened, p, fmt.Sprintf("bought %s SOL at %s", p.Size, p.EntryPrice), map[string]string{
		"signature": sig,
		"priority":  fmt.Sprintf("%.0f", p.Priority),
	})
	return p, nil
}

// Evaluate reprices one open position and closes it when an exit bound is hit.
func (m *Manager) Evaluate(ctx context.Context, id string) (Position, error) {
	p, ok := m.Book.Get(id)
	if !ok {
		return Position{}, ErrNotFound
	}
	if p.State != StateOpen {
		return p, nil
	}
	cctx, cancel := m.callCtx(ctx)
	sm, err := m.Market.FetchSubject(cctx, p.SubjectID)
	cancel()
	if err != nil {
		return p, fmt.Errorf("price %s: %w", p.SubjectID, err)
	}
	if sm.Price <= 0 {
		return p, fmt.Errorf("price %s: %w", p.SubjectID, marketdata.ErrUnavailable)
	}
	p, err = m.Book.update(id, StateOpen, func(p *Position) {
		p.Reprice(decimal.NewFromFloat(sm.Price))
	})
	if err != nil {
		// closed or closing concurrently
		return p, nil
	}
	m.save(ctx, p)

	th := m.thresholds()
	reason, hit := p.ExitTrigger(th.TakeProfitPct, th.StopLossPct)
	if !hit {
		return p, nil
	}
	return m.close(ctx, id, reason)
}

// MonitorOnce evaluates every open position concurrently. Per-position
// failures are logged and never stop the others.
func (m *Manager) MonitorOnce(ctx context.Context) error {
	if m == nil || m.Book == nil {
		return nil
	}
	open := m.Book.List(StateOpen)
	var g errgroup.Group
	g.SetLimit(m.concurrency())
	var failed atomic.Int64
	for _, p := range open {
		id, subject := p.ID, p.SubjectID
		g.Go(func() error {
			if _, err := m.Evaluate(ctx, id); err != nil {
				failed.Add(1)
				if m.Logger != nil {
					m.Logger.Debug("position evaluation failed",
						zap.String("position", id),
						zap.String("subject", subject),
						zap.Error(err),
					)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	m.Metrics.SetOpenPositions(m.Book.ActiveCount())
	if n := failed.Load(); n > 0 && m.Logger != nil {
		m.Logger.Info("monitor tick finished with failures", zap.Int("open", len(open)), zap.Int64("failed", n))
	}
	return ctx.Err()
}

// Close exits a position on operator request. Closing an already closed
// position returns it unchanged.
func (m *Manager) Close(ctx context.Context, id string) (Position, error) {
	p, ok := m.Book.Get(id)
	if !ok {
		return Position{}, ErrNotFound
	}
	if p.State == StateClosed {
		return p, nil
	}
	return m.close(ctx, id, ExitManual)
}

func (m *Manager) close(ctx context.Context, id string, reason ExitReason) (Position, error) {
	p, err := m.Book.transition(id, StateOpen, StateClosing, func(p *Position) {
		p.ExitReason = reason
	})
	if err != nil {
		return p, err
	}
	m.record(ctx, StateOpen, p)

	cctx, cancel := m.callCtx(ctx)
	sig, err := m.Executor.Sell(cctx, m.Account, p.SubjectID, p.ExitValue(), p.MaxSlippage)
	cancel()
	m.Metrics.Trade("sell", err)
	if err != nil {
		if errors.Is(err, execution.ErrSubjectGone) {
			return m.fail(ctx, StateClosing, id, err)
		}
		p, terr := m.Book.transition(id, StateClosing, StateOpen, func(p *Position) {
			p.ExitReason = ""
			p.FailReason = err.Error()
		})
		if terr != nil {
			return p, terr
		}
		m.record(ctx, StateClosing, p)
		m.notify(notify.KindSellFailed, p, "sell failed, retrying next tick", map[string]string{
			"reason": string(reason),
			"error":  err.Error(),
		})
		return p, err
	}

	now := m.Book.Now()
	p, err = m.Book.transition(id, StateClosing, StateClosed, func(p *Position) {
		p.ExitSignature = sig
		p.FailReason = ""
		p.ClosedAt = &now
	})
	if err != nil {
		return p, err
	}
	m.record(ctx, StateClosing, p)
	m.notify(notify.KindPositionClosed, p, fmt.Sprintf("closed (%s) pnl %s%%", reason, p.PnLPercent.StringFixed(2)), map[string]string{
		"signature": sig,
		"pnl":       p.PnLAbsolute.StringFixed(6),
	})
	return p, nil
}

func (m *Manager) fail(ctx context.Context, from State, id string, cause error) (Position, error) {
	now := m.Book.Now()
	p, err := m.Book.transition(id, from, StateFailed, func(p *Position) {
		p.FailReason = cause.Error()
		p.ClosedAt = &now
		if from == StatePending {
			p.PnLAbsolute = decimal.Zero
			p.PnLPercent = decimal.Zero
		}
	})
	if err != nil {
		return p, err
	}
	m.record(ctx, from, p)
	m.notify(notify.KindPositionFailed, p, cause.Error(), map[string]string{"from": string(from)})
	return p, cause
}

// Restore loads active positions from the repository after a restart. A
// pending buy whose outcome is unknown is marked failed; a half-finished
// sell goes back to open so the monitor retries it.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m == nil || m.Book == nil || m.Repo == nil {
		return 0, nil
	}
	n := 0
	for _, st := range []State{StatePending, StateOpen, StateClosing, StateClosed} {
		s := string(st)
		rows, err := m.Repo.ListPositions(ctx, repository.ListPositionsParams{Limit: 500, State: &s})
		if err != nil {
			return n, err
		}
		for _, row := range rows {
			p := FromModel(row)
			switch p.State {
			case StatePending:
				now := m.Book.Now()
				p.State = StateFailed
				p.FailReason = "interrupted before buy confirmed"
				p.ClosedAt = &now
				m.save(ctx, p)
			case StateClosing:
				p.State = StateOpen
				p.ExitReason = ""
				m.save(ctx, p)
			}
			m.Book.restore(p)
			n++
		}
	}
	m.Metrics.SetOpenPositions(m.Book.ActiveCount())
	return n, nil
}

// Performance summarizes closed positions held in the book.
func (m *Manager) Performance() Performance {
	if m == nil || m.Book == nil {
		return Performance{}
	}
	return Summarize(m.Book.List(StateClosed))
}

func (m *Manager) record(ctx context.Context, from State, p Position) {
	m.Metrics.Transition(string(from), string(p.State))
	if m.Logger != nil {
		m.Logger.Info("position transition",
			zap.String("position", p.ID),
			zap.String("subject", p.SubjectID),
			zap.String("from", string(from)),
			zap.String("to", string(p.State)),
			zap.String("pnl_percent", p.PnLPercent.StringFixed(2)),
		)
	}
	m.save(ctx, p)
	m.Metrics.SetOpenPositions(m.Book.ActiveCount())
}

func (m *Manager) save(ctx context.Context, p Position) {
	if m.Repo == nil {
		return
	}
	if err := m.Repo.SavePosition(ctx, p.toModel()); err != nil && m.Logger != nil {
		m.Logger.Warn("save position failed", zap.String("position", p.ID), zap.Error(err))
	}
}

func (m *Manager) notify(kind notify.Kind, p Position, msg string, fields map[string]string) {
	notify.Send(m.Notifier, m.Logger, notify.Event{
		Kind:    kind,
		Subject: p.SubjectID,
		Symbol:  p.Symbol,
		Message: msg,
		Fields:  fields,
	})
}

func (m *Manager) thresholds() Thresholds {
	if m.Thresholds != nil {
		return m.Thresholds()
	}
	return Thresholds{TakeProfitPct: 50, StopLossPct: 20}
}

func (m *Manager) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	d := m.CallTimeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (m *Manager) concurrency() int {
	if m.Concurrency > 0 {
		return m.Concurrency
	}
	return 8
}
