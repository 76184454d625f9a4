package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solsniper/internal/execution"
	"solsniper/internal/metrics"
	"solsniper/internal/models"
	"solsniper/internal/notify"
	"solsniper/internal/repository"
)

var (
	ErrBatchNotFound = errors.New("wallet batch not found")
	ErrBatchExists   = errors.New("wallet batch already exists")
	ErrInvalidInput  = errors.New("invalid wallet batch request")
	// ErrAllFailed is returned only when every per-account operation failed.
	ErrAllFailed = errors.New("every batch operation failed")
)

const maxBatchSize = 100

type Batch struct {
	Name      string              `json:"name"`
	Accounts  []execution.Account `json:"accounts"`
	CreatedAt time.Time           `json:"created_at"`
}

// Result lists the signatures of the operations that succeeded. Failures are
// counted and described but never abort the batch.
type Result struct {
	Op         string   `json:"op"`
	Batch      string   `json:"batch"`
	Signatures []string `json:"signatures"`
	Skipped    int      `json:"skipped"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

type Balance struct {
	Label   string          `json:"label"`
	Address string          `json:"address"`
	SOL     decimal.Decimal `json:"sol"`
	Error   string          `json:"error,omitempty"`
}

// Coordinator manages named batches of accounts and runs fan-out operations
// across them.
type Coordinator struct {
	Repo     repository.Repository
	Ledger   Ledger
	Executor execution.Executor
	Notifier notify.Notifier
	Logger   *zap.Logger
	Metrics  *metrics.Registry

	FundPacing   time.Duration
	MinJitter    time.Duration
	MaxJitter    time.Duration
	MinRemaining decimal.Decimal

	// Sleep waits between paced operations; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Create generates count fresh keypairs and stores them as a batch. Labels are
// prefix_i, or wallet_i without a prefix, counting from zero.
func (c *Coordinator) Create(ctx context.Context, name string, count int, prefix string) (Batch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Batch{}, fmt.Errorf("%w: batch name is required", ErrInvalidInput)
	}
	if count <= 0 || count > maxBatchSize {
		return Batch{}, fmt.Errorf("%w: batch size must be between 1 and %d", ErrInvalidInput, maxBatchSize)
	}
	existing, err := c.Repo.GetWalletBatch(ctx, name)
	if err != nil {
		return Batch{}, err
	}
	if existing != nil {
		return Batch{}, fmt.Errorf("%w: %s", ErrBatchExists, name)
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "wallet"
	}
	now := c.now()
	row := &models.WalletBatch{Name: name, CreatedAt: now}
	for i := 0; i < count; i++ {
		key, err := solana.NewRandomPrivateKey()
		if err != nil {
			return Batch{}, fmt.Errorf("generate key %d: %w", i, err)
		}
		row.Accounts = append(row.Accounts, models.WalletAccount{
			Seq:        i,
			Label:      fmt.Sprintf("%s_%d", prefix, i),
			PublicAddr: key.PublicKey().String(),
			Secret:     key.String(),
		})
	}
	if err := c.Repo.CreateWalletBatch(ctx, row); err != nil {
		return Batch{}, err
	}
	c.Metrics.BatchOp("create", nil)
	if c.Logger != nil {
		c.Logger.Info("wallet batch created", zap.String("batch", name), zap.Int("accounts", count))
	}
	return fromModel(*row), nil
}

func (c *Coordinator) Get(ctx context.Context, name string) (Batch, error) {
	row, err := c.Repo.GetWalletBatch(ctx, name)
	if err != nil {
		return Batch{}, err
	}
	if row == nil {
		return Batch{}, fmt.Errorf("%w: %s", ErrBatchNotFound, name)
	}
	return fromModel(*row), nil
}

func (c *Coordinator) List(ctx context.Context) ([]Batch, error) {
	rows, err := c.Repo.ListWalletBatches(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Batch, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromModel(r))
	}
	return out, nil
}

func (c *Coordinator) Delete(ctx context.Context, name string) error {
	if _, err := c.Get(ctx, name); err != nil {
		return err
	}
	return c.Repo.DeleteWalletBatch(ctx, name)
}

// Fund sends amount SOL from source to every account in the batch, one at a
// time with FundPacing between transfers.
func (c *Coordinator) Fund(ctx context.Context, name string, source execution.Account, amount decimal.Decimal) (Result, error) {
	if !amount.IsPositive() {
		return Result{}, fmt.Errorf("%w: fund amount must be positive", ErrInvalidInput)
	}
	b, err := c.Get(ctx, name)
	if err != nil {
		return Result{}, err
	}
	res := Result{Op: "fund", Batch: b.Name}
	for i, acct := range b.Accounts {
		if i > 0 {
			if err := c.sleep(ctx, c.pacing()); err != nil {
				return c.finish(res, err)
			}
		}
		sig, err := c.Ledger.Transfer(ctx, source, acct.Address, amount)
		c.collect(&res, acct, sig, err)
	}
	return c.finish(res, nil)
}

// CoordinatedBuy buys subjectID from every account in order, waiting a
// random delay in [MinJitter, MaxJitter) between buys. amounts holds one
// entry per account, or a single entry used for all of them.
func (c *Coordinator) CoordinatedBuy(ctx context.Context, name, subjectID string, amounts []decimal.Decimal, maxSlippage float64) (Result, error) {
	return c.trade(ctx, "buy", name, subjectID, amounts, maxSlippage)
}

// CoordinatedSell is the sell-side mirror of CoordinatedBuy.
func (c *Coordinator) CoordinatedSell(ctx context.Context, name, subjectID string, amounts []decimal.Decimal, maxSlippage float64) (Result, error) {
	return c.trade(ctx, "sell", name, subjectID, amounts, maxSlippage)
}

func (c *Coordinator) trade(ctx context.Context, side, name, subjectID string, amounts []decimal.Decimal, maxSlippage float64) (Result, error) {
	if strings.TrimSpace(subjectID) == "" {
		return Result{}, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}
	b, err := c.Get(ctx, name)
	if err != nil {
		return Result{}, err
	}
	if len(amounts) != 1 && len(amounts) != len(b.Accounts) {
		return Result{}, fmt.Errorf("%w: got %d amounts for %d accounts", ErrInvalidInput, len(amounts), len(b.Accounts))
	}
	res := Result{Op: side, Batch: b.Name}
	for i, acct := range b.Accounts {
		if i > 0 {
			if err := c.sleep(ctx, c.jitter()); err != nil {
				return c.finish(res, err)
			}
		}
		amount := amounts[0]
		if len(amounts) > 1 {
			amount = amounts[i]
		}
		var sig string
		var err error
		if side == "sell" {
			sig, err = c.Executor.Sell(ctx, acct, subjectID, amount, maxSlippage)
		} else {
			sig, err = c.Executor.Buy(ctx, acct, subjectID, amount, maxSlippage)
		}
		c.collect(&res, acct, sig, err)
	}
	return c.finish(res, nil)
}

// Sweep moves each account's balance above MinRemaining to dest. Accounts
// at or below MinRemaining are skipped.
func (c *Coordinator) Sweep(ctx context.Context, name, dest string) (Result, error) {
	if _, err := solana.PublicKeyFromBase58(dest); err != nil {
		return Result{}, fmt.Errorf("%w: destination %q: %w", ErrInvalidInput, dest, err)
	}
	b, err := c.Get(ctx, name)
	if err != nil {
		return Result{}, err
	}
	keep := c.minRemaining()
	res := Result{Op: "sweep", Batch: b.Name}
	for _, acct := range b.Accounts {
		bal, err := c.Ledger.Balance(ctx, acct.Address)
		if err != nil {
			c.collect(&res, acct, "", fmt.Errorf("balance: %w", err))
			continue
		}
		if bal.LessThanOrEqual(keep) {
			res.Skipped++
			continue
		}
		sig, err := c.Ledger.Transfer(ctx, acct, dest, bal.Sub(keep))
		c.collect(&res, acct, sig, err)
	}
	return c.finish(res, nil)
}

// Balances reads every account balance. A failed read is reported on that
// account and leaves its balance at zero.
func (c *Coordinator) Balances(ctx context.Context, name string) ([]Balance, error) {
	b, err := c.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	out := make([]Balance, 0, len(b.Accounts))
	failed := 0
	for _, acct := range b.Accounts {
		row := Balance{Label: acct.Label, Address: acct.Address, SOL: decimal.Zero}
		bal, err := c.Ledger.Balance(ctx, acct.Address)
		if err != nil {
			failed++
			row.Error = err.Error()
		} else {
			row.SOL = bal
		}
		out = append(out, row)
	}
	if len(out) > 0 && failed == len(out) {
		return out, fmt.Errorf("%w: balances for %s", ErrAllFailed, name)
	}
	return out, nil
}

func (c *Coordinator) collect(res *Result, acct execution.Account, sig string, err error) {
	c.Metrics.BatchOp(res.Op, err)
	if err != nil {
		res.Failed++
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", acct.Label, err))
		if c.Logger != nil {
			c.Logger.Warn("batch operation failed",
				zap.String("op", res.Op),
				zap.String("batch", res.Batch),
				zap.String("account", acct.Address),
				zap.Error(err),
			)
		}
		return
	}
	res.Signatures = append(res.Signatures, sig)
}

func (c *Coordinator) finish(res Result, cause error) (Result, error) {
	notify.Send(c.Notifier, c.Logger, notify.Event{
		Kind:    notify.KindBatchSummary,
		Message: fmt.Sprintf("%s on %s: %d ok, %d failed, %d skipped", res.Op, res.Batch, len(res.Signatures), res.Failed, res.Skipped),
	})
	if cause != nil {
		return res, cause
	}
	if len(res.Signatures) == 0 && res.Failed > 0 {
		return res, fmt.Errorf("%w: %s on %s", ErrAllFailed, res.Op, res.Batch)
	}
	return res, nil
}

func (c *Coordinator) sleep(ctx context.Context, d time.Duration) error {
	if c.Sleep != nil {
		return c.Sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Coordinator) pacing() time.Duration {
	if c.FundPacing > 0 {
		return c.FundPacing
	}
	return time.Second
}

func (c *Coordinator) jitter() time.Duration {
	lo, hi := c.MinJitter, c.MaxJitter
	if lo <= 0 && hi <= 0 {
		lo, hi = time.Second, 3*time.Second
	}
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)))
}

func (c *Coordinator) minRemaining() decimal.Decimal {
	if c.MinRemaining.IsPositive() {
		return c.MinRemaining
	}
	return decimal.RequireFromString("0.001")
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

func fromModel(row models.WalletBatch) Batch {
	b := Batch{Name: row.Name, CreatedAt: row.CreatedAt}
	for _, a := range row.Accounts {
		b.Accounts = append(b.Accounts, execution.Account{
			Label:   a.Label,
			Address: a.PublicAddr,
			Secret:  a.Secret,
		})
	}
	return b
}
