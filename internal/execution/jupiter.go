package execution

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

const (
	defaultJupiterURL = "https://quote-api.jup.ag"
	wrappedSOLMint    = "So11111111111111111111111111111111111111112"
)

// PriceFunc returns the compute unit price in micro-lamports to attach to swaps.
type PriceFunc func(ctx context.Context) uint64

// Jupiter routes swaps through the Jupiter aggregator, signs them locally and
// submits them over RPC.
type Jupiter struct {
	Base     string
	RPC      *rpc.Client
	Commit   rpc.CommitmentType
	HTTP     *http.Client
	UnitCost PriceFunc
}

type Quote struct {
	InputMint      string `json:"inputMint"`
	OutputMint     string `json:"outputMint"`
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	OtherAmount    string `json:"otherAmountThreshold"`
	SwapMode       string `json:"swapMode"`
	SlippageBps    int    `json:"slippageBps"`
	RoutePlan      any    `json:"routePlan"`
	PriceImpactPct string `json:"priceImpactPct"`
}

type jupiterError struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

func NewJupiter(rpcURL, base, commit string, timeout time.Duration) *Jupiter {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Jupiter{
		Base:   base,
		RPC:    rpc.New(rpcURL),
		Commit: Commitment(commit),
		HTTP:   &http.Client{Timeout: timeout},
	}
}

func (j *Jupiter) Buy(ctx context.Context, acct Account, subjectID string, amount decimal.Decimal, maxSlippage float64) (string, error) {
	q, err := j.GetQuote(ctx, wrappedSOLMint, subjectID, Lamports(amount), slippageBps(maxSlippage), "ExactIn")
	if err != nil {
		return "", fmt.Errorf("%w: buy quote: %w", ErrExecutionFailed, err)
	}
	return j.swap(ctx, acct, q)
}

// Sell swaps enough of the subject to receive amount SOL.
func (j *Jupiter) Sell(ctx context.Context, acct Account, subjectID string, amount decimal.Decimal, maxSlippage float64) (string, error) {
	q, err := j.GetQuote(ctx, subjectID, wrappedSOLMint, Lamports(amount), slippageBps(maxSlippage), "ExactOut")
	if err != nil {
		return "", fmt.Errorf("%w: sell quote: %w", ErrExecutionFailed, err)
	}
	return j.swap(ctx, acct, q)
}

// GetQuote asks for a route. amount is in smallest units of the side fixed by swapMode.
func (j *Jupiter) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int, swapMode string) (*Quote, error) {
	if amount == 0 {
		return nil, fmt.Errorf("zero amount")
	}
	q := url.Values{}
	q.Set("inputMint", inputMint)
	q.Set("outputMint", outputMint)
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(slippageBps))
	q.Set("swapMode", swapMode)
	q.Set("onlyDirectRoutes", "false")
	u := j.base() + "/v6/quote?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := j.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		var je jupiterError
		_ = json.Unmarshal(b, &je)
		if isUntradable(je.ErrorCode) {
			return nil, fmt.Errorf("%w: %s", ErrSubjectGone, je.ErrorCode)
		}
		return nil, fmt.Errorf("jupiter quote status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out Quote
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (j *Jupiter) swap(ctx context.Context, acct Account, quote *Quote) (string, error) {
	owner, err := acct.PrivateKey()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}
	payload := map[string]any{
		"userPublicKey":       owner.PublicKey().String(),
		"wrapAndUnwrapSol":    true,
		"asLegacyTransaction": false,
		"useTokenLedger":      false,
		"quoteResponse":       quote,
	}
	if j.UnitCost != nil {
		if price := j.UnitCost(ctx); price > 0 {
			payload["computeUnitPriceMicroLamports"] = price
		}
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.base()+"/v6/swap", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := j.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: swap: %w", ErrExecutionFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: jupiter swap status %d", ErrExecutionFailed, resp.StatusCode)
	}
	var sr struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("%w: %w", ErrExecutionFailed, err)
	}
	raw, err := base64.StdEncoding.DecodeString(sr.SwapTransaction)
	if err != nil {
		return "", fmt.Errorf("%w: decode tx: %w", ErrExecutionFailed, err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", fmt.Errorf("%w: unmarshal tx: %w", ErrExecutionFailed, err)
	}
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(owner.PublicKey()) {
			return &owner
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("%w: sign: %w", ErrExecutionFailed, err)
	}
	sig, err := j.RPC.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: j.Commit,
	})
	if err != nil {
		return "", fmt.Errorf("%w: send: %w", ErrExecutionFailed, err)
	}
	return sig.String(), nil
}

func isUntradable(code string) bool {
	switch code {
	case "TOKEN_NOT_TRADABLE", "COULD_NOT_FIND_ANY_ROUTE", "NO_ROUTES_FOUND":
		return true
	}
	return false
}

func (j *Jupiter) base() string {
	b := strings.TrimRight(strings.TrimSpace(j.Base), "/")
	if b == "" {
		return defaultJupiterURL
	}
	return b
}

func (j *Jupiter) httpClient() *http.Client {
	if j.HTTP != nil {
		return j.HTTP
	}
	return &http.Client{Timeout: 15 * time.Second}
}
