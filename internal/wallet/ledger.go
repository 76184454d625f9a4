package wallet

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	"solsniper/internal/execution"
)

// Ledger moves and reads native SOL.
type Ledger interface {
	Transfer(ctx context.Context, from execution.Account, to string, amount decimal.Decimal) (string, error)
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
}

// SolanaLedger is a Ledger over a JSON-RPC node using system transfers.
type SolanaLedger struct {
	RPC    *rpc.Client
	Commit rpc.CommitmentType
}

func NewSolanaLedger(rpcURL, commitment string) *SolanaLedger {
	return &SolanaLedger{RPC: rpc.New(rpcURL), Commit: execution.Commitment(commitment)}
}

func (l *SolanaLedger) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return decimal.Zero, fmt.Errorf("address %q: %w", address, err)
	}
	out, err := l.RPC.GetBalance(ctx, pk, l.Commit)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromInt(int64(out.Value)).Shift(-9), nil
}

func (l *SolanaLedger) Transfer(ctx context.Context, from execution.Account, to string, amount decimal.Decimal) (string, error) {
	key, err := from.PrivateKey()
	if err != nil {
		return "", err
	}
	dest, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return "", fmt.Errorf("destination %q: %w", to, err)
	}
	lamports := execution.Lamports(amount)
	if lamports == 0 {
		return "", fmt.Errorf("transfer amount %s rounds to zero", amount)
	}
	bh, err := l.RPC.GetLatestBlockhash(ctx, l.Commit)
	if err != nil {
		return "", fmt.Errorf("blockhash: %w", err)
	}
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, key.PublicKey(), dest).Build(),
		},
		bh.Value.Blockhash,
		solana.TransactionPayer(key.PublicKey()),
	)
	if err != nil {
		return "", err
	}
	if _, err := tx.Sign(func(pk solana.PublicKey) *solana.PrivateKey {
		if pk.Equals(key.PublicKey()) {
			return &key
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	sig, err := l.RPC.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{PreflightCommitment: l.Commit})
	if err != nil {
		return "", fmt.Errorf("send: %w", err)
	}
	return sig.String(), nil
}
