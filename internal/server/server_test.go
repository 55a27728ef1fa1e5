package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gahoccode/vnstock-mcp/internal/openai"
	"github.com/gahoccode/vnstock-mcp/internal/storage"
	"github.com/gahoccode/vnstock-mcp/internal/vnstock"
)

// fakeQuoteServer serves deterministic daily closes for any requested symbol,
// drifting at a per-symbol rate so baskets are never degenerate.
func fakeQuoteServer(t *testing.T, days int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Symbols []string `json:"symbols"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Symbols, 1)
		symbol := payload.Symbols[0]

		drift := 1.0005 + 0.0002*float64(len(symbol)%3)
		wiggle := 0.004 * float64(symbol[0]%5)

		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		ts := make([]int64, 0, days)
		closes := make([]float64, 0, days)
		price := 50.0 + float64(symbol[0])
		for i := 0; i < days; i++ {
			price *= drift
			if i%2 == 0 {
				price *= 1 + wiggle
			} else {
				price *= 1 - wiggle
			}
			ts = append(ts, base.AddDate(0, 0, i).Unix())
			closes = append(closes, price)
		}
		json.NewEncoder(w).Encode([]map[string]any{{
			"symbol": symbol,
			"t":      ts,
			"o":      closes,
			"h":      closes,
			"l":      closes,
			"c":      closes,
			"v":      make([]float64, days),
		}})
	}))
}

func testServer(t *testing.T, quotes *httptest.Server) *Server {
	t.Helper()
	data := vnstock.NewClient(zerolog.Nop())
	if quotes != nil {
		data.VCIBase = quotes.URL
		data.MSNBase = quotes.URL
	}
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "usage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.InitSchema(db))
	return New(data, storage.NewStore(db), openai.NewCommentator(""), zerolog.Nop())
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestGetVersion(t *testing.T) {
	s := testServer(t, nil)
	result, err := s.handleGetVersion()(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), Version)
}

func TestStockHistoryHandlerValidation(t *testing.T) {
	s := testServer(t, nil)
	h := s.handleStockHistory()

	result, err := h(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "symbol parameter is required")

	result, err = h(context.Background(), callRequest(map[string]any{"symbol": "VNM"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "start_date parameter is required")
}

func TestFullOptimizationHandler(t *testing.T) {
	quotes := fakeQuoteServer(t, 120)
	defer quotes.Close()
	s := testServer(t, quotes)

	result, err := s.handleFullOptimization()(context.Background(), callRequest(map[string]any{
		"symbols":    []any{"VCI", "VNM", "HPG"},
		"start_date": "2024-01-01",
		"end_date":   "2024-06-30",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out struct {
		Symbols    []string `json:"symbols"`
		Strategies []struct {
			Strategy string             `json:"strategy"`
			Weights  map[string]float64 `json:"weights"`
			Metrics  struct {
				ExpectedAnnualReturn float64 `json:"expected_annual_return"`
				AnnualVolatility     float64 `json:"annual_volatility"`
				SharpeRatio          float64 `json:"sharpe_ratio"`
			} `json:"metrics"`
			Error string `json:"error"`
		} `json:"strategies"`
		Succeeded []string `json:"succeeded"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, []string{"VCI", "VNM", "HPG"}, out.Symbols)
	require.Len(t, out.Strategies, 3)
	assert.Equal(t, "max_sharpe", out.Strategies[0].Strategy)
	assert.Equal(t, "min_volatility", out.Strategies[1].Strategy)
	assert.Equal(t, "max_utility", out.Strategies[2].Strategy)
	assert.Len(t, out.Succeeded, 3)

	for _, st := range out.Strategies {
		require.Empty(t, st.Error)
		sum := 0.0
		for _, w := range st.Weights {
			assert.GreaterOrEqual(t, w, 0.0)
			sum += w
		}
		assert.InDelta(t, 1.0, sum, 1e-3)
		assert.Greater(t, st.Metrics.AnnualVolatility, 0.0)
		assert.NotZero(t, st.Metrics.ExpectedAnnualReturn)
	}
}

func TestFullOptimizationIsolatesStrategyFailure(t *testing.T) {
	quotes := fakeQuoteServer(t, 120)
	defer quotes.Close()
	s := testServer(t, quotes)

	result, err := s.handleFullOptimization()(context.Background(), callRequest(map[string]any{
		"symbols":       []any{"VCI", "VNM"},
		"start_date":    "2024-01-01",
		"end_date":      "2024-06-30",
		"risk_aversion": -1.0,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out struct {
		Strategies []struct {
			Strategy string `json:"strategy"`
			Error    string `json:"error"`
		} `json:"strategies"`
		Succeeded []string `json:"succeeded"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	require.Len(t, out.Strategies, 3)
	assert.Empty(t, out.Strategies[0].Error)
	assert.Empty(t, out.Strategies[1].Error)
	assert.Contains(t, out.Strategies[2].Error, "risk_aversion")
	assert.Len(t, out.Succeeded, 2)
}

func TestOptimizePortfolioRejectsBadObjective(t *testing.T) {
	quotes := fakeQuoteServer(t, 120)
	defer quotes.Close()
	s := testServer(t, quotes)

	result, err := s.handleOptimizePortfolio()(context.Background(), callRequest(map[string]any{
		"symbols":    []any{"VCI", "VNM"},
		"start_date": "2024-01-01",
		"end_date":   "2024-06-30",
		"objective":  "max_drawdown",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "max_drawdown")
}

func TestCalculateReturnsHandler(t *testing.T) {
	quotes := fakeQuoteServer(t, 60)
	defer quotes.Close()
	s := testServer(t, quotes)

	result, err := s.handleCalculateReturns()(context.Background(), callRequest(map[string]any{
		"symbols":        []any{"VCI", "VNM"},
		"start_date":     "2024-01-01",
		"end_date":       "2024-03-31",
		"returns_method": "ema_historical",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))

	var out struct {
		Method          string             `json:"method"`
		Observations    int                `json:"observations"`
		ExpectedReturns map[string]float64 `json:"expected_returns"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &out))
	assert.Equal(t, "ema_historical", out.Method)
	assert.Equal(t, 60, out.Observations)
	assert.Len(t, out.ExpectedReturns, 2)
}

func TestAllocationChartReturnsImage(t *testing.T) {
	quotes := fakeQuoteServer(t, 120)
	defer quotes.Close()
	s := testServer(t, quotes)

	result, err := s.handleAllocationChart()(context.Background(), callRequest(map[string]any{
		"symbols":    []any{"VCI", "VNM", "HPG"},
		"start_date": "2024-01-01",
		"end_date":   "2024-06-30",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	require.Len(t, result.Content, 2)

	img, ok := result.Content[1].(mcp.ImageContent)
	require.True(t, ok, "expected image content")
	assert.Equal(t, "image/png", img.MIMEType)
	assert.NotEmpty(t, img.Data)
}

func TestExplainOptimizationDisabledWithoutKey(t *testing.T) {
	s := testServer(t, nil)
	result, err := s.handleExplainOptimization()(context.Background(), callRequest(map[string]any{
		"symbols":    []any{"VCI", "VNM"},
		"start_date": "2024-01-01",
		"end_date":   "2024-06-30",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "no OpenAI API key")
}

func TestInstrumentRecordsUsage(t *testing.T) {
	s := testServer(t, nil)

	h := s.instrument("get_version", "meta", s.handleGetVersion())
	_, err := h(context.Background(), callRequest(nil))
	require.NoError(t, err)

	stats, err := s.store.UsageByCategory(time.Now().Add(-time.Minute).Unix())
	require.NoError(t, err)
	require.Contains(t, stats, "meta")
	assert.Equal(t, 1, stats["meta"].Tools["get_version"])
}

func TestUsageStatsHandler(t *testing.T) {
	s := testServer(t, nil)
	require.NoError(t, s.store.RecordUsage("get_stock_history", "quotes", true, 0, time.Now().Unix()))

	result, err := s.handleUsageStats()(context.Background(), callRequest(map[string]any{"days": 7}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "quotes")
	assert.Contains(t, text, "get_stock_history: 1")
	assert.NotContains(t, text, "Error rates")
}

func TestUsageStatsReportsErrorRates(t *testing.T) {
	s := testServer(t, nil)
	now := time.Now().Unix()
	require.NoError(t, s.store.RecordUsage("get_stock_history", "quotes", true, 0, now))
	require.NoError(t, s.store.RecordUsage("get_stock_history", "quotes", false, 0, now))

	result, err := s.handleUsageStats()(context.Background(), callRequest(map[string]any{"days": 7}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "Error rates")
	assert.Contains(t, text, "get_stock_history: 50.0% of 2 calls failed")
}

func TestUsageStatsChartIncludesTimeSeries(t *testing.T) {
	s := testServer(t, nil)
	now := time.Now().Unix()
	require.NoError(t, s.store.RecordUsage("get_stock_history", "quotes", true, 0, now-3600))
	require.NoError(t, s.store.RecordUsage("optimize_portfolio", "portfolio", true, 0, now))

	result, err := s.handleUsageStats()(context.Background(), callRequest(map[string]any{
		"days":  7,
		"chart": true,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 3)

	pie, ok := result.Content[1].(mcp.ImageContent)
	require.True(t, ok, "expected pie image content")
	assert.Equal(t, "image/png", pie.MIMEType)

	line, ok := result.Content[2].(mcp.ImageContent)
	require.True(t, ok, "expected time series image content")
	assert.Equal(t, "image/png", line.MIMEType)
	assert.NotEmpty(t, line.Data)
}

func TestFullOptimizationChartFlag(t *testing.T) {
	quotes := fakeQuoteServer(t, 120)
	defer quotes.Close()
	s := testServer(t, quotes)

	result, err := s.handleFullOptimization()(context.Background(), callRequest(map[string]any{
		"symbols":    []any{"VCI", "VNM", "HPG"},
		"start_date": "2024-01-01",
		"end_date":   "2024-06-30",
		"chart":      true,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	require.Len(t, result.Content, 2)

	img, ok := result.Content[1].(mcp.ImageContent)
	require.True(t, ok, "expected comparison image content")
	assert.Equal(t, "image/png", img.MIMEType)
	assert.NotEmpty(t, img.Data)
}

func TestMCPServerRegistersAllTools(t *testing.T) {
	s := testServer(t, nil)
	m := s.MCPServer()
	require.NotNil(t, m)

	// The server is built fresh per call, so building twice must not panic.
	assert.NotPanics(t, func() { s.MCPServer() })
}
