package vnstock

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Candle is one OHLCV bar.
type Candle struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// vnIndices are the local index symbols VCI serves directly.
var vnIndices = map[string]bool{
	"VNINDEX":    true,
	"HNXINDEX":   true,
	"UPCOMINDEX": true,
}

var validIntervals = map[string]string{
	"1D": "ONE_DAY",
	"1W": "ONE_WEEK",
	"1M": "ONE_MONTH",
}

// vciChartResponse mirrors the column-oriented payload of the VCI gap-chart
// endpoint: parallel arrays per symbol.
type vciChartResponse []struct {
	Symbol string    `json:"symbol"`
	T      []int64   `json:"t"`
	O      []float64 `json:"o"`
	H      []float64 `json:"h"`
	L      []float64 `json:"l"`
	C      []float64 `json:"c"`
	V      []float64 `json:"v"`
}

// StockHistory fetches OHLCV bars for a VCI-listed symbol or a local index
// between start and end (inclusive, YYYY-MM-DD).
func (c *Client) StockHistory(ctx context.Context, symbol, start, end, interval string) ([]Candle, error) {
	tf, ok := validIntervals[interval]
	if !ok {
		return nil, fmt.Errorf("unsupported interval %q (want 1D, 1W or 1M)", interval)
	}
	from, to, err := parseRange(start, end)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"timeFrame": tf,
		"symbols":   []string{strings.ToUpper(symbol)},
		"from":      from.Unix(),
		"to":        to.Unix(),
	}
	var resp vciChartResponse
	url := c.VCIBase + "/chart/OHLCChart/gap-chart"
	if err := c.postJSON(ctx, url, payload, &resp); err != nil {
		return nil, err
	}
	if len(resp) == 0 {
		return nil, fmt.Errorf("no price data for %s", symbol)
	}

	series := resp[0]
	n := len(series.T)
	if len(series.C) != n || len(series.O) != n || len(series.H) != n || len(series.L) != n {
		return nil, fmt.Errorf("ragged chart payload for %s", symbol)
	}
	candles := make([]Candle, 0, n)
	for i := 0; i < n; i++ {
		var vol float64
		if i < len(series.V) {
			vol = series.V[i]
		}
		candles = append(candles, Candle{
			Time:   time.Unix(series.T[i], 0).UTC().Format("2006-01-02"),
			Open:   series.O[i],
			High:   series.H[i],
			Low:    series.L[i],
			Close:  series.C[i],
			Volume: vol,
		})
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles, nil
}

// IndexHistory routes local indices to VCI and everything else to MSN.
func (c *Client) IndexHistory(ctx context.Context, symbol, start, end, interval string) ([]Candle, error) {
	if vnIndices[strings.ToUpper(symbol)] {
		return c.StockHistory(ctx, symbol, start, end, interval)
	}
	return c.msnHistory(ctx, symbol, start, end)
}

// ForexHistory fetches a currency-pair series from MSN, e.g. "USDVND".
func (c *Client) ForexHistory(ctx context.Context, pair, start, end string) ([]Candle, error) {
	return c.msnHistory(ctx, pair, start, end)
}

// CryptoHistory fetches a cryptocurrency series from MSN, e.g. "BTC".
func (c *Client) CryptoHistory(ctx context.Context, symbol, start, end string) ([]Candle, error) {
	return c.msnHistory(ctx, symbol, start, end)
}

type msnChartResponse struct {
	Charts []struct {
		Series []struct {
			TimeStamps []string  `json:"timeStamps"`
			OpenPrices []float64 `json:"openPrices"`
			HighPrices []float64 `json:"pricesHigh"`
			LowPrices  []float64 `json:"pricesLow"`
			Prices     []float64 `json:"prices"`
			Volumes    []float64 `json:"volumes"`
		} `json:"series"`
	} `json:"charts"`
}

func (c *Client) msnHistory(ctx context.Context, symbol, start, end string) ([]Candle, error) {
	from, to, err := parseRange(start, end)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/Charts/TimeRange?ids=%s&type=All&timeframe=1&startTime=%s&endTime=%s",
		c.MSNBase, strings.ToUpper(symbol), from.Format("2006-01-02"), to.Format("2006-01-02"))
	var resp msnChartResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if len(resp.Charts) == 0 || len(resp.Charts[0].Series) == 0 {
		return nil, fmt.Errorf("no price data for %s", symbol)
	}

	series := resp.Charts[0].Series[0]
	candles := make([]Candle, 0, len(series.TimeStamps))
	for i, ts := range series.TimeStamps {
		if i >= len(series.Prices) {
			break
		}
		day := ts
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			day = t.UTC().Format("2006-01-02")
		} else if len(ts) >= 10 {
			day = ts[:10]
		}
		cd := Candle{Time: day, Close: series.Prices[i]}
		if i < len(series.OpenPrices) {
			cd.Open = series.OpenPrices[i]
		}
		if i < len(series.HighPrices) {
			cd.High = series.HighPrices[i]
		}
		if i < len(series.LowPrices) {
			cd.Low = series.LowPrices[i]
		}
		if i < len(series.Volumes) {
			cd.Volume = series.Volumes[i]
		}
		candles = append(candles, cd)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Time < candles[j].Time })
	return candles, nil
}

// ClosingPrices fetches daily closes for each symbol keyed by date, the shape
// the optimization pipeline aligns on.
func (c *Client) ClosingPrices(ctx context.Context, symbols []string, start, end string) (map[string]map[string]float64, error) {
	out := make(map[string]map[string]float64, len(symbols))
	for _, symbol := range symbols {
		candles, err := c.StockHistory(ctx, symbol, start, end, "1D")
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", symbol, err)
		}
		closes := make(map[string]float64, len(candles))
		for _, cd := range candles {
			closes[cd.Time] = cd.Close
		}
		out[symbol] = closes
	}
	return out, nil
}

func parseRange(start, end string) (time.Time, time.Time, error) {
	from, err := time.Parse("2006-01-02", start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q (want YYYY-MM-DD)", start)
	}
	to, err := time.Parse("2006-01-02", end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q (want YYYY-MM-DD)", end)
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("end date %s precedes start date %s", end, start)
	}
	// Include the whole end day.
	return from, to.Add(24*time.Hour - time.Second), nil
}
