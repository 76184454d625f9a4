package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultPumpFunURL = "https://frontend-api-v3.pump.fun"

	// Launchpad curves graduate at roughly this much real SOL in the curve.
	graduationSOL   = 85.0
	lamportsPerSOL  = 1e9
	tokenDecimalsPF = 1e6
)

// PumpFun reads freshly launched coins from the launchpad frontend API.
type PumpFun struct {
	BaseURL string
	HTTP    *http.Client
	Now     func() time.Time
}

type pfCoin struct {
	Mint              string  `json:"mint"`
	Name              string  `json:"name"`
	Symbol            string  `json:"symbol"`
	Creator           string  `json:"creator"`
	CreatedTimestamp  int64   `json:"created_timestamp"`
	MarketCap         float64 `json:"market_cap"`
	USDMarketCap      float64 `json:"usd_market_cap"`
	TotalSupply       float64 `json:"total_supply"`
	RealSOLReserves   float64 `json:"real_sol_reserves"`
	VirtualSOLReserve float64 `json:"virtual_sol_reserves"`
	Complete          bool    `json:"complete"`
	Twitter           string  `json:"twitter"`
	Telegram          string  `json:"telegram"`
	Website           string  `json:"website"`
	ReplyCount        int     `json:"reply_count"`
}

func (p *PumpFun) Name() string { return "pumpfun" }

func (p *PumpFun) FetchSubject(ctx context.Context, subjectID string) (SubjectMetrics, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return SubjectMetrics{}, fmt.Errorf("%w: empty subject", ErrNotFound)
	}
	u, err := buildURL(p.BaseURL, defaultPumpFunURL, "/coins/"+url.PathEscape(subjectID), nil)
	if err != nil {
		return SubjectMetrics{}, err
	}
	var coin pfCoin
	if err := getJSON(ctx, p.HTTP, u, &coin); err != nil {
		return SubjectMetrics{}, err
	}
	if coin.Mint == "" {
		return SubjectMetrics{}, fmt.Errorf("%w: %s", ErrNotFound, subjectID)
	}
	return p.record(coin).Metrics(), nil
}

func (p *PumpFun) FetchRecent(ctx context.Context, f Filter) ([]Record, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{
		"offset":      {"0"},
		"limit":       {strconv.Itoa(limit)},
		"sort":        {"created_timestamp"},
		"order":       {"DESC"},
		"includeNsfw": {"false"},
	}
	u, err := buildURL(p.BaseURL, defaultPumpFunURL, "/coins", q)
	if err != nil {
		return nil, err
	}
	var coins []pfCoin
	if err := getJSON(ctx, p.HTTP, u, &coins); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(coins))
	for _, c := range coins {
		if c.Mint == "" {
			continue
		}
		out = append(out, p.record(c))
	}
	return out, nil
}

func (p *PumpFun) record(c pfCoin) Record {
	r := Record{
		Source:     p.Name(),
		SubjectID:  c.Mint,
		Symbol:     c.Symbol,
		Name:       c.Name,
		Creator:    c.Creator,
		Fresh:      true,
		MarketCap:  c.USDMarketCap,
		ObservedAt: p.now(),
	}
	if c.CreatedTimestamp > 0 {
		r.LaunchedAt = time.UnixMilli(c.CreatedTimestamp).UTC()
	}
	if c.TotalSupply > 0 {
		r.PriceUSD = c.USDMarketCap / (c.TotalSupply / tokenDecimalsPF)
	}
	// market_cap is quoted in SOL, which gives the SOL/USD rate of the snapshot.
	if c.MarketCap > 0 {
		solUSD := c.USDMarketCap / c.MarketCap
		r.Liquidity = 2 * (c.VirtualSOLReserve / lamportsPerSOL) * solUSD
	}
	r.BondingProgress = bondingProgress(c)
	socials := map[string]string{}
	if c.Twitter != "" {
		socials["twitter"] = c.Twitter
	}
	if c.Telegram != "" {
		socials["telegram"] = c.Telegram
	}
	if c.Website != "" {
		socials["website"] = c.Website
	}
	if len(socials) > 0 {
		r.Socials = socials
	}
	return r
}

// bondingProgress approximates curve completion from real SOL reserves.
func bondingProgress(c pfCoin) float64 {
	if c.Complete {
		return 100
	}
	return clampPct((c.RealSOLReserves / lamportsPerSOL) / graduationSOL * 100)
}

func clampPct(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func (p *PumpFun) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now().UTC()
}
