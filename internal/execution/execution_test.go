package execution

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

func TestPaperFillsAndRejects(t *testing.T) {
	p := &Paper{}
	ctx := context.Background()
	sig, err := p.Buy(ctx, Account{Address: "A"}, "MINT", decimal.RequireFromString("0.1"), 3)
	if err != nil || !strings.HasPrefix(sig, "paper-") {
		t.Fatalf("sig=%q err=%v", sig, err)
	}
	if _, err := p.Sell(ctx, Account{}, "MINT", decimal.Zero, 3); !errors.Is(err, ErrExecutionFailed) {
		t.Fatalf("err=%v want ErrExecutionFailed", err)
	}
	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := p.Buy(cctx, Account{}, "MINT", decimal.NewFromInt(1), 3); !errors.Is(err, ErrExecutionFailed) {
		t.Fatalf("err=%v want ErrExecutionFailed", err)
	}
	fills := p.Fills()
	if len(fills) != 1 || fills[0].Side != "buy" || fills[0].Account != "A" {
		t.Fatalf("fills=%+v", fills)
	}
}

func TestAccountFromKey(t *testing.T) {
	w := solana.NewWallet()
	a, err := AccountFromKey("main", w.PrivateKey.String())
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if a.Address != w.PublicKey().String() {
		t.Fatalf("address=%s want=%s", a.Address, w.PublicKey())
	}
	if _, err := AccountFromKey("x", ""); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestLamportsAndSlippage(t *testing.T) {
	if got := Lamports(decimal.RequireFromString("0.1")); got != 100_000_000 {
		t.Fatalf("lamports=%d", got)
	}
	if got := Lamports(decimal.RequireFromString("-1")); got != 0 {
		t.Fatalf("negative lamports=%d", got)
	}
	if got := slippageBps(2.5); got != 250 {
		t.Fatalf("bps=%d", got)
	}
	if got := slippageBps(0); got != 300 {
		t.Fatalf("default bps=%d", got)
	}
}

func TestJupiterQuoteParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v6/quote" {
			t.Errorf("path=%s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("inputMint") != wrappedSOLMint || q.Get("amount") != "100000000" || q.Get("slippageBps") != "300" {
			t.Errorf("query=%s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(Quote{InputMint: wrappedSOLMint, OutputMint: "MINT", OutAmount: "42", SwapMode: q.Get("swapMode")})
	}))
	defer srv.Close()

	j := NewJupiter("http://127.0.0.1:1", srv.URL, "finalized", 0)
	if j.Commit != rpc.CommitmentFinalized {
		t.Fatalf("commit=%v", j.Commit)
	}
	q, err := j.GetQuote(context.Background(), wrappedSOLMint, "MINT", 100_000_000, 300, "ExactIn")
	if err != nil {
		t.Fatalf("GetQuote err=%v", err)
	}
	if q.OutAmount != "42" || q.SwapMode != "ExactIn" {
		t.Fatalf("quote=%+v", q)
	}
}

func TestJupiterUntradableMapsToSubjectGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"not tradable","errorCode":"TOKEN_NOT_TRADABLE"}`))
	}))
	defer srv.Close()

	j := NewJupiter("http://127.0.0.1:1", srv.URL, "confirmed", 0)
	acct, _ := AccountFromKey("main", solana.NewWallet().PrivateKey.String())
	_, err := j.Sell(context.Background(), acct, "MINT", decimal.RequireFromString("0.2"), 3)
	if !errors.Is(err, ErrExecutionFailed) || !errors.Is(err, ErrSubjectGone) {
		t.Fatalf("err=%v want ErrExecutionFailed and ErrSubjectGone", err)
	}
}

func TestJupiterSwapFailureIsExecutionFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v6/quote" {
			_ = json.NewEncoder(w).Encode(Quote{OutAmount: "1"})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	j := NewJupiter("http://127.0.0.1:1", srv.URL, "confirmed", 0)
	acct, _ := AccountFromKey("main", solana.NewWallet().PrivateKey.String())
	_, err := j.Buy(context.Background(), acct, "MINT", decimal.RequireFromString("0.1"), 3)
	if !errors.Is(err, ErrExecutionFailed) || errors.Is(err, ErrSubjectGone) {
		t.Fatalf("err=%v", err)
	}
}
