package execution

import (
	"context"
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

var (
	// ErrExecutionFailed wraps every rejected or timed-out trade.
	ErrExecutionFailed = errors.New("execution failed")
	// ErrSubjectGone marks a subject that can no longer be traded at all, so
	// retrying a sell is pointless.
	ErrSubjectGone = errors.New("subject no longer tradable")
)

// Account is a signing identity. Secret is a base58 private key and may be
// empty for executors that do not sign (paper).
type Account struct {
	Label   string `json:"label"`
	Address string `json:"address"`
	Secret  string `json:"-"`
}

// PrivateKey decodes the account secret.
func (a Account) PrivateKey() (solana.PrivateKey, error) {
	s := strings.TrimSpace(a.Secret)
	if s == "" {
		return nil, errors.New("account has no secret")
	}
	return solana.PrivateKeyFromBase58(s)
}

// AccountFromKey builds an Account from a base58 private key.
func AccountFromKey(label, secret string) (Account, error) {
	a := Account{Label: label, Secret: strings.TrimSpace(secret)}
	pk, err := a.PrivateKey()
	if err != nil {
		return Account{}, err
	}
	a.Address = pk.PublicKey().String()
	return a, nil
}

// Executor places trades. Amounts are SOL: Buy spends amount, Sell returns
// amount worth of SOL. Both return the transaction signature.
type Executor interface {
	Buy(ctx context.Context, acct Account, subjectID string, amount decimal.Decimal, maxSlippage float64) (string, error)
	Sell(ctx context.Context, acct Account, subjectID string, amount decimal.Decimal, maxSlippage float64) (string, error)
}

func slippageBps(pct float64) int {
	if pct <= 0 {
		pct = 3
	}
	return int(pct*100 + 0.5)
}

// Lamports converts SOL to lamports, flooring and clamping at zero.
func Lamports(sol decimal.Decimal) uint64 {
	v := sol.Shift(9).Floor()
	if v.IsNegative() {
		return 0
	}
	return uint64(v.IntPart())
}

// Commitment maps a config string to an RPC commitment, defaulting to confirmed.
func Commitment(s string) rpc.CommitmentType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "processed":
		return rpc.CommitmentProcessed
	case "finalized":
		return rpc.CommitmentFinalized
	}
	return rpc.CommitmentConfirmed
}
