package finance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// errSymbolNotFound is permanent: retrying another host will not help.
var errSymbolNotFound = errors.New("symbol not found")

// getChart fetches a v8 chart document for symbol, rotating hosts within a round and
// backing off between rounds.
func (y *YahooProvider) getChart(ctx context.Context, symbol string, q url.Values) (*yahooChartResult, error) {
	var lastErr error
	for attempt := 0; attempt < len(y.backoffs)+1; attempt++ {
		for _, host := range y.hosts {
			res, err := y.getChartOnce(ctx, host, symbol, q)
			if err == nil {
				return res, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, errSymbolNotFound) {
				return nil, err
			}
			lastErr = err
		}
		if attempt < len(y.backoffs) {
			y.log.WithError(lastErr).WithField("symbol", symbol).Debugf("yahoo: retrying in %s", y.backoffs[attempt])
			if err := sleepCtx(ctx, y.backoffs[attempt]); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func (y *YahooProvider) getChartOnce(ctx context.Context, host, symbol string, q url.Values) (*yahooChartResult, error) {
	u := fmt.Sprintf("%s://%s/v8/finance/chart/%s?%s", y.scheme, host, url.PathEscape(symbol), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", fmt.Sprintf("https://finance.yahoo.com/quote/%s/chart", strings.ToUpper(symbol)))
	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	body, readErr := io.ReadAll(resp.Body)
	resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("failed to read yahoo response: %w", readErr)
	}
	if resp.StatusCode == http.StatusTooManyRequests || strings.HasPrefix(string(body), "Edge: Too Many Requests") {
		return nil, fmt.Errorf("yahoo %s returned 429: Edge: Too Many Requests", host)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("yahoo %s: %w: %s", host, errSymbolNotFound, strings.ToUpper(symbol))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo %s returned %d: %s", host, resp.StatusCode, preview(body))
	}
	if strings.HasPrefix(string(body), "<") || strings.HasPrefix(string(body), "Edge:") {
		return nil, fmt.Errorf("yahoo returned non-json body: %s", preview(body))
	}
	var yc yahooChartResp
	if err := json.Unmarshal(body, &yc); err != nil {
		return nil, fmt.Errorf("failed to parse yahoo json: %v; body: %s", err, preview(body))
	}
	if yc.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart error %s: %s", yc.Chart.Error.Code, yc.Chart.Error.Description)
	}
	if len(yc.Chart.Result) == 0 {
		return nil, errors.New("no data")
	}
	return &yc.Chart.Result[0], nil
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 120 {
		s = s[:120]
	}
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
