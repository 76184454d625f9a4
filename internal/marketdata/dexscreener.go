package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"solsniper/internal/cache"
)

const defaultDexScreenerURL = "https://api.dexscreener.com"

// DexScreener reads pair data for Solana tokens. Raw responses are cached for
// TTL so that the scan and monitor loops share one upstream call per subject.
type DexScreener struct {
	BaseURL string
	Chain   string
	HTTP    *http.Client
	Cache   cache.Store
	TTL     time.Duration
	Now     func() time.Time
}

type dsResponse struct {
	Pairs []dsPair `json:"pairs"`
}

type dsPair struct {
	ChainID     string `json:"chainId"`
	DexID       string `json:"dexId"`
	PairAddress string `json:"pairAddress"`
	BaseToken   struct {
		Address string `json:"address"`
		Name    string `json:"name"`
		Symbol  string `json:"symbol"`
	} `json:"baseToken"`
	PriceUSD string `json:"priceUsd"`
	Txns     struct {
		H24 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
	Volume struct {
		H1  float64 `json:"h1"`
		H24 float64 `json:"h24"`
	} `json:"volume"`
	PriceChange struct {
		H1 float64 `json:"h1"`
	} `json:"priceChange"`
	Liquidity *struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	FDV           float64 `json:"fdv"`
	MarketCap     float64 `json:"marketCap"`
	PairCreatedAt int64   `json:"pairCreatedAt"`
	Info          *struct {
		Websites []struct {
			URL string `json:"url"`
		} `json:"websites"`
		Socials []struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"socials"`
	} `json:"info"`
}

func (d *DexScreener) Name() string { return "dexscreener" }

func (d *DexScreener) FetchSubject(ctx context.Context, subjectID string) (SubjectMetrics, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" {
		return SubjectMetrics{}, fmt.Errorf("%w: empty subject", ErrNotFound)
	}
	u, err := buildURL(d.BaseURL, defaultDexScreenerURL, "/latest/dex/tokens/"+url.PathEscape(subjectID), nil)
	if err != nil {
		return SubjectMetrics{}, err
	}
	var resp dsResponse
	if err := d.get(ctx, "dexscreener:token:"+subjectID, u, &resp); err != nil {
		return SubjectMetrics{}, err
	}
	best, ok := d.deepestPair(resp.Pairs, subjectID)
	if !ok {
		return SubjectMetrics{}, fmt.Errorf("%w: no %s pair for %s", ErrNotFound, d.chain(), subjectID)
	}
	return d.record(best).Metrics(), nil
}

func (d *DexScreener) FetchRecent(ctx context.Context, f Filter) ([]Record, error) {
	q := strings.TrimSpace(f.Query)
	if q == "" {
		q = "SOL"
	}
	u, err := buildURL(d.BaseURL, defaultDexScreenerURL, "/latest/dex/search", url.Values{"q": {q}})
	if err != nil {
		return nil, err
	}
	var resp dsResponse
	if err := d.get(ctx, "dexscreener:search:"+q, u, &resp); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(resp.Pairs))
	seen := map[string]struct{}{}
	for _, p := range resp.Pairs {
		if !strings.EqualFold(p.ChainID, d.chain()) || p.BaseToken.Address == "" {
			continue
		}
		if _, ok := seen[p.BaseToken.Address]; ok {
			continue
		}
		seen[p.BaseToken.Address] = struct{}{}
		out = append(out, d.record(p))
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (d *DexScreener) get(ctx context.Context, key, u string, out any) error {
	if d.Cache != nil && d.TTL > 0 {
		if found, err := cache.GetJSON(ctx, d.Cache, key, out); err == nil && found {
			return nil
		}
	}
	if err := getJSON(ctx, d.HTTP, u, out); err != nil {
		return err
	}
	if d.Cache != nil && d.TTL > 0 {
		_ = cache.SetJSON(ctx, d.Cache, key, out, d.TTL)
	}
	return nil
}

func (d *DexScreener) deepestPair(pairs []dsPair, subjectID string) (dsPair, bool) {
	var best dsPair
	found := false
	for _, p := range pairs {
		if !strings.EqualFold(p.ChainID, d.chain()) || p.BaseToken.Address != subjectID {
			continue
		}
		if !found || liquidityOf(p) > liquidityOf(best) {
			best = p
			found = true
		}
	}
	return best, found
}

func (d *DexScreener) record(p dsPair) Record {
	price, _ := strconv.ParseFloat(p.PriceUSD, 64)
	mcap := p.MarketCap
	if mcap <= 0 {
		mcap = p.FDV
	}
	r := Record{
		Source:        d.Name(),
		SubjectID:     p.BaseToken.Address,
		Symbol:        p.BaseToken.Symbol,
		Name:          p.BaseToken.Name,
		PriceUSD:      price,
		Liquidity:     liquidityOf(p),
		MarketCap:     mcap,
		Volume1h:      p.Volume.H1,
		Volume24h:     p.Volume.H24,
		PriceChange1h: p.PriceChange.H1,
		Trades24h:     p.Txns.H24.Buys + p.Txns.H24.Sells,
		ObservedAt:    d.now(),
	}
	if p.PairCreatedAt > 0 {
		r.LaunchedAt = time.UnixMilli(p.PairCreatedAt).UTC()
	}
	if p.Info != nil {
		socials := map[string]string{}
		for _, s := range p.Info.Socials {
			if t := strings.ToLower(strings.TrimSpace(s.Type)); t != "" && s.URL != "" {
				socials[t] = s.URL
			}
		}
		if len(p.Info.Websites) > 0 && p.Info.Websites[0].URL != "" {
			socials["website"] = p.Info.Websites[0].URL
		}
		if len(socials) > 0 {
			r.Socials = socials
		}
	}
	return r
}

func (d *DexScreener) chain() string {
	if d.Chain == "" {
		return "solana"
	}
	return d.Chain
}

func (d *DexScreener) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func liquidityOf(p dsPair) float64 {
	if p.Liquidity == nil {
		return 0
	}
	return p.Liquidity.USD
}
