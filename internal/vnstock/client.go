// Package vnstock implements the market-data provider clients for the
// Vietnamese market: VCI for quotes, financials and company data, TCBS for
// dividends, MSN for forex/crypto/world indices, fmarket for mutual funds and
// the SJC/BTMC/VCB endpoints for gold and exchange rates.
package vnstock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultVCIBase     = "https://trading.vietcap.com.vn/api"
	defaultTCBSBase    = "https://apipubaws.tcbs.com.vn"
	defaultMSNBase     = "https://assets.msn.com/service/Finance"
	defaultFmarketBase = "https://api.fmarket.vn/res/products"
	defaultSJCBase     = "https://sjc.com.vn/GoldPrice/Services/PriceService.ashx"
	defaultBTMCBase    = "http://api.btmc.vn/api/BTMCAPI/getpricebtmc"
	defaultVCBBase     = "https://www.vietcombank.com.vn/api/exchangerates"

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

var retryBackoffs = []time.Duration{200 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}

// Client bundles the upstream data-source endpoints behind one HTTP client.
// Base URLs are swappable so tests can point at a local server.
type Client struct {
	http *http.Client
	log  zerolog.Logger

	VCIBase     string
	TCBSBase    string
	MSNBase     string
	FmarketBase string
	SJCBase     string
	BTMCBase    string
	VCBBase     string
}

// NewClient builds a provider client with the production endpoints.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		http:        &http.Client{Timeout: 30 * time.Second},
		log:         log,
		VCIBase:     defaultVCIBase,
		TCBSBase:    defaultTCBSBase,
		MSNBase:     defaultMSNBase,
		FmarketBase: defaultFmarketBase,
		SJCBase:     defaultSJCBase,
		BTMCBase:    defaultBTMCBase,
		VCBBase:     defaultVCBBase,
	}
}

// getJSON fetches url and decodes the JSON body into out, retrying transient
// failures with bounded backoff.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	return c.doJSON(ctx, http.MethodGet, url, nil, out)
}

// postJSON sends payload as JSON to url and decodes the response into out.
func (c *Client) postJSON(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.doJSON(ctx, http.MethodPost, url, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, url string, body []byte, out any) error {
	var lastErr error
	for attempt := 0; attempt < len(retryBackoffs)+1; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBackoffs[attempt-1]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, preview(data))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, preview(data))
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse response from %s: %v; body: %s", url, err, preview(data))
		}
		return nil
	}
	c.log.Warn().Err(lastErr).Str("url", url).Msg("request failed after retries")
	return lastErr
}

// preview trims a response body for error messages.
func preview(body []byte) string {
	const limit = 120
	if len(body) > limit {
		return string(body[:limit])
	}
	return string(body)
}
