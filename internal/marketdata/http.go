package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "solsniper/1.0"

func getJSON(ctx context.Context, client *http.Client, u string, out any) error {
	if client == nil {
		client = &http.Client{Timeout: 8 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: http 429 from %s", ErrRateLimited, hostOf(u))
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: http 404 from %s", ErrNotFound, hostOf(u))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("http %d from %s: %s", resp.StatusCode, hostOf(u), strings.TrimSpace(string(b)))
	}
	return json.Unmarshal(b, out)
}

func buildURL(base, fallback, path string, query url.Values) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = fallback
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Host
}
