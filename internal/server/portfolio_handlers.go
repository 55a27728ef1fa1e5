package server

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/gahoccode/vnstock-mcp/internal/charts"
	"github.com/gahoccode/vnstock-mcp/internal/portfolio"
	"github.com/gahoccode/vnstock-mcp/internal/storage"
)

func (s *Server) registerPortfolioTools(m *mcpserver.MCPServer) {
	m.AddTool(mcp.NewTool("calculate_returns",
		mcp.WithDescription("Estimate annualized expected returns for a basket of Vietnamese stocks from daily price history."),
		mcp.WithArray("symbols", mcp.Required(), mcp.Description("Ticker symbols, at least two"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("start_date", mcp.Required(), mcp.Description("Start date, YYYY-MM-DD")),
		mcp.WithString("end_date", mcp.Required(), mcp.Description("End date, YYYY-MM-DD")),
		mcp.WithString("returns_method", mcp.Description("mean_historical or ema_historical (default mean_historical)")),
		mcp.WithBoolean("log_returns", mcp.Description("Use log returns instead of simple returns (default false)")),
		mcp.WithNumber("frequency", mcp.Description("Trading periods per year (default 252)")),
	), s.instrument("calculate_returns", "portfolio", s.handleCalculateReturns()))

	m.AddTool(mcp.NewTool("optimize_portfolio",
		mcp.WithDescription("Optimize long-only portfolio weights for one objective: max_sharpe, min_volatility or max_utility."),
		mcp.WithArray("symbols", mcp.Required(), mcp.Description("Ticker symbols, at least two"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("start_date", mcp.Required(), mcp.Description("Start date, YYYY-MM-DD")),
		mcp.WithString("end_date", mcp.Required(), mcp.Description("End date, YYYY-MM-DD")),
		mcp.WithString("objective", mcp.Description("max_sharpe, min_volatility or max_utility (default max_sharpe)")),
		mcp.WithString("returns_method", mcp.Description("mean_historical or ema_historical (default mean_historical)")),
		mcp.WithString("covariance_method", mcp.Description("sample_cov, ledoit_wolf, exp_cov or semicovariance (default ledoit_wolf)")),
		mcp.WithBoolean("log_returns", mcp.Description("Use log returns (default false)")),
		mcp.WithNumber("frequency", mcp.Description("Trading periods per year (default 252)")),
		mcp.WithNumber("risk_free_rate", mcp.Description("Annual risk-free rate (default 0.02)")),
		mcp.WithNumber("risk_aversion", mcp.Description("Risk-aversion delta for max_utility (default 1.0)")),
	), s.instrument("optimize_portfolio", "portfolio", s.handleOptimizePortfolio()))

	m.AddTool(mcp.NewTool("full_portfolio_optimization",
		mcp.WithDescription("Run every optimization strategy over the same inputs and compare the results. Strategies that fail are reported alongside the ones that succeed."),
		mcp.WithArray("symbols", mcp.Required(), mcp.Description("Ticker symbols, at least two"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("start_date", mcp.Required(), mcp.Description("Start date, YYYY-MM-DD")),
		mcp.WithString("end_date", mcp.Required(), mcp.Description("End date, YYYY-MM-DD")),
		mcp.WithString("strategy_selection", mcp.Description("all or one of max_sharpe, min_volatility, max_utility (default all)")),
		mcp.WithString("returns_method", mcp.Description("mean_historical or ema_historical (default mean_historical)")),
		mcp.WithString("covariance_method", mcp.Description("sample_cov, ledoit_wolf, exp_cov or semicovariance (default ledoit_wolf)")),
		mcp.WithBoolean("log_returns", mcp.Description("Use log returns (default false)")),
		mcp.WithNumber("frequency", mcp.Description("Trading periods per year (default 252)")),
		mcp.WithNumber("risk_free_rate", mcp.Description("Annual risk-free rate (default 0.02)")),
		mcp.WithNumber("risk_aversion", mcp.Description("Risk-aversion delta for max_utility (default 1.0)")),
		mcp.WithBoolean("chart", mcp.Description("Include a strategy comparison chart (default false)")),
	), s.instrument("full_portfolio_optimization", "portfolio", s.handleFullOptimization()))

	m.AddTool(mcp.NewTool("render_allocation_chart",
		mcp.WithDescription("Optimize a portfolio for one objective and render the allocation as a pie chart."),
		mcp.WithArray("symbols", mcp.Required(), mcp.Description("Ticker symbols, at least two"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("start_date", mcp.Required(), mcp.Description("Start date, YYYY-MM-DD")),
		mcp.WithString("end_date", mcp.Required(), mcp.Description("End date, YYYY-MM-DD")),
		mcp.WithString("objective", mcp.Description("max_sharpe, min_volatility or max_utility (default max_sharpe)")),
		mcp.WithString("covariance_method", mcp.Description("sample_cov, ledoit_wolf, exp_cov or semicovariance (default ledoit_wolf)")),
	), s.instrument("render_allocation_chart", "portfolio", s.handleAllocationChart()))

	m.AddTool(mcp.NewTool("explain_optimization",
		mcp.WithDescription("Run the full strategy comparison and produce a plain-language narrative of the results. Requires an OpenAI API key on the server."),
		mcp.WithArray("symbols", mcp.Required(), mcp.Description("Ticker symbols, at least two"), mcp.Items(map[string]any{"type": "string"})),
		mcp.WithString("start_date", mcp.Required(), mcp.Description("Start date, YYYY-MM-DD")),
		mcp.WithString("end_date", mcp.Required(), mcp.Description("End date, YYYY-MM-DD")),
		mcp.WithString("covariance_method", mcp.Description("sample_cov, ledoit_wolf, exp_cov or semicovariance (default ledoit_wolf)")),
	), s.instrument("explain_optimization", "portfolio", s.handleExplainOptimization()))
}

// requireSymbols extracts the basket; NewPriceSeries revalidates size and
// duplicates.
func requireSymbols(request mcp.CallToolRequest) ([]string, *mcp.CallToolResult) {
	symbols := request.GetStringSlice("symbols", nil)
	if len(symbols) == 0 {
		return nil, errorResult("Error: symbols parameter is required")
	}
	return symbols, nil
}

// configFromRequest builds the estimator configuration from tool arguments.
func configFromRequest(request mcp.CallToolRequest) portfolio.Config {
	cfg := portfolio.DefaultConfig()
	cfg.ReturnsMethod = portfolio.ReturnsMethod(request.GetString("returns_method", string(cfg.ReturnsMethod)))
	cfg.CovarianceMethod = portfolio.CovarianceMethod(request.GetString("covariance_method", string(cfg.CovarianceMethod)))
	cfg.UseLogReturns = request.GetBool("log_returns", false)
	cfg.Frequency = request.GetInt("frequency", cfg.Frequency)
	cfg.RiskFreeRate = request.GetFloat("risk_free_rate", cfg.RiskFreeRate)
	cfg.RiskAversion = request.GetFloat("risk_aversion", cfg.RiskAversion)
	return cfg
}

// loadSeries fetches daily closes for the basket and aligns them on common
// dates.
func (s *Server) loadSeries(ctx context.Context, symbols []string, start, end string) (*portfolio.PriceSeries, error) {
	closes, err := s.data.ClosingPrices(ctx, symbols, start, end)
	if err != nil {
		return nil, err
	}
	return portfolio.NewPriceSeries(symbols, closes)
}

func round6(x float64) float64 {
	return math.Round(x*1e6) / 1e6
}

func roundedMetrics(m portfolio.PerformanceMetrics) portfolio.PerformanceMetrics {
	return portfolio.PerformanceMetrics{
		ExpectedAnnualReturn: round6(m.ExpectedAnnualReturn),
		AnnualVolatility:     round6(m.AnnualVolatility),
		SharpeRatio:          round6(m.SharpeRatio),
	}
}

func (s *Server) handleCalculateReturns() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		symbols, bad := requireSymbols(request)
		if bad != nil {
			return bad, nil
		}
		start, end, bad := requireRange(request)
		if bad != nil {
			return bad, nil
		}
		cfg := configFromRequest(request)
		if err := cfg.Validate(); err != nil {
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}

		prices, err := s.loadSeries(ctx, symbols, start, end)
		if err != nil {
			s.log.Error().Err(err).Strs("symbols", symbols).Msg("price load failed")
			return errorResult(fmt.Sprintf("Error loading prices: %v", err)), nil
		}
		mu, err := portfolio.EstimateReturns(prices, cfg.ReturnsMethod, cfg.UseLogReturns, cfg.Frequency)
		if err != nil {
			return errorResult(fmt.Sprintf("Error estimating returns: %v", err)), nil
		}

		rounded := make(map[string]float64, len(mu.Symbols))
		for i, symbol := range mu.Symbols {
			rounded[symbol] = round6(mu.Values[i])
		}
		return jsonResult(map[string]any{
			"method":           cfg.ReturnsMethod,
			"log_returns":      cfg.UseLogReturns,
			"frequency":        cfg.Frequency,
			"observations":     len(prices.Dates()),
			"expected_returns": rounded,
		}), nil
	}
}

func (s *Server) handleOptimizePortfolio() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		symbols, bad := requireSymbols(request)
		if bad != nil {
			return bad, nil
		}
		start, end, bad := requireRange(request)
		if bad != nil {
			return bad, nil
		}
		cfg := configFromRequest(request)
		objective := portfolio.Objective(request.GetString("objective", string(portfolio.MaxSharpe)))

		weights, metrics, err := s.runOptimization(ctx, symbols, start, end, objective, cfg)
		if err != nil {
			s.log.Error().Err(err).Str("objective", string(objective)).Msg("optimization failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		return jsonResult(map[string]any{
			"objective":         objective,
			"returns_method":    cfg.ReturnsMethod,
			"covariance_method": cfg.CovarianceMethod,
			"weights":           weights.Map(),
			"metrics":           roundedMetrics(metrics),
		}), nil
	}
}

func (s *Server) runOptimization(ctx context.Context, symbols []string, start, end string, objective portfolio.Objective, cfg portfolio.Config) (portfolio.WeightVector, portfolio.PerformanceMetrics, error) {
	var zeroW portfolio.WeightVector
	var zeroM portfolio.PerformanceMetrics
	if err := cfg.Validate(); err != nil {
		return zeroW, zeroM, err
	}
	prices, err := s.loadSeries(ctx, symbols, start, end)
	if err != nil {
		return zeroW, zeroM, fmt.Errorf("loading prices: %w", err)
	}
	mu, err := portfolio.EstimateReturns(prices, cfg.ReturnsMethod, cfg.UseLogReturns, cfg.Frequency)
	if err != nil {
		return zeroW, zeroM, err
	}
	sigma, err := portfolio.EstimateCovariance(prices, cfg.CovarianceMethod, cfg.Frequency)
	if err != nil {
		return zeroW, zeroM, err
	}
	weights, err := portfolio.Optimize(mu, sigma, objective, cfg)
	if err != nil {
		return zeroW, zeroM, err
	}
	metrics := portfolio.Performance(weights, mu, sigma, cfg.RiskFreeRate)
	return weights, metrics, nil
}

func (s *Server) runComparison(ctx context.Context, symbols []string, start, end, selection string, cfg portfolio.Config) (portfolio.StrategyReport, portfolio.ReturnsVector, int, error) {
	var zeroR portfolio.StrategyReport
	var zeroV portfolio.ReturnsVector
	if err := cfg.Validate(); err != nil {
		return zeroR, zeroV, 0, err
	}
	objectives, err := portfolio.SelectStrategies(selection)
	if err != nil {
		return zeroR, zeroV, 0, err
	}
	prices, err := s.loadSeries(ctx, symbols, start, end)
	if err != nil {
		return zeroR, zeroV, 0, fmt.Errorf("loading prices: %w", err)
	}
	mu, err := portfolio.EstimateReturns(prices, cfg.ReturnsMethod, cfg.UseLogReturns, cfg.Frequency)
	if err != nil {
		return zeroR, zeroV, 0, err
	}
	sigma, err := portfolio.EstimateCovariance(prices, cfg.CovarianceMethod, cfg.Frequency)
	if err != nil {
		return zeroR, zeroV, 0, err
	}
	report := portfolio.CompareStrategies(mu, sigma, objectives, cfg)
	return report, mu, len(prices.Dates()), nil
}

func (s *Server) handleFullOptimization() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		symbols, bad := requireSymbols(request)
		if bad != nil {
			return bad, nil
		}
		start, end, bad := requireRange(request)
		if bad != nil {
			return bad, nil
		}
		cfg := configFromRequest(request)
		selection := request.GetString("strategy_selection", "all")

		report, mu, observations, err := s.runComparison(ctx, symbols, start, end, selection, cfg)
		if err != nil {
			s.log.Error().Err(err).Strs("symbols", symbols).Msg("strategy comparison failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}

		returns := make(map[string]float64, len(mu.Symbols))
		for i, symbol := range mu.Symbols {
			returns[symbol] = round6(mu.Values[i])
		}
		strategies := make([]map[string]any, 0, len(report.Results))
		for _, res := range report.Results {
			entry := map[string]any{"strategy": res.Strategy}
			if res.Err != nil {
				entry["error"] = res.Err.Error()
			} else {
				entry["weights"] = res.Weights.Map()
				entry["metrics"] = roundedMetrics(res.Metrics)
			}
			strategies = append(strategies, entry)
		}
		result := jsonResult(map[string]any{
			"symbols":           symbols,
			"period":            map[string]any{"start": start, "end": end, "observations": observations},
			"returns_method":    cfg.ReturnsMethod,
			"covariance_method": cfg.CovarianceMethod,
			"expected_returns":  returns,
			"strategies":        strategies,
			"succeeded":         report.Succeeded(),
		})
		if request.GetBool("chart", false) && len(report.Succeeded()) > 0 {
			png, err := charts.StrategyComparison(report)
			if err != nil {
				return errorResult(fmt.Sprintf("Error rendering comparison chart: %v", err)), nil
			}
			result.Content = append(result.Content, mcp.NewImageContent(encodeBase64(png), "image/png"))
		}
		return result, nil
	}
}

func (s *Server) handleAllocationChart() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		symbols, bad := requireSymbols(request)
		if bad != nil {
			return bad, nil
		}
		start, end, bad := requireRange(request)
		if bad != nil {
			return bad, nil
		}
		cfg := configFromRequest(request)
		objective := portfolio.Objective(request.GetString("objective", string(portfolio.MaxSharpe)))

		weights, metrics, err := s.runOptimization(ctx, symbols, start, end, objective, cfg)
		if err != nil {
			s.log.Error().Err(err).Str("objective", string(objective)).Msg("allocation chart failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}

		title := fmt.Sprintf("%s allocation (%s to %s)", objective, start, end)
		png, err := charts.AllocationPie(weights, title)
		if err != nil {
			return errorResult(fmt.Sprintf("Error rendering chart: %v", err)), nil
		}
		caption := fmt.Sprintf("%s: expected return %.2f%%, volatility %.2f%%, Sharpe %.2f",
			objective, metrics.ExpectedAnnualReturn*100, metrics.AnnualVolatility*100, metrics.SharpeRatio)
		return imageResult(png, caption), nil
	}
}

func (s *Server) handleExplainOptimization() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if s.commentator == nil || !s.commentator.Enabled() {
			return errorResult("Error: optimization commentary is disabled, no OpenAI API key configured"), nil
		}
		symbols, bad := requireSymbols(request)
		if bad != nil {
			return bad, nil
		}
		start, end, bad := requireRange(request)
		if bad != nil {
			return bad, nil
		}
		cfg := configFromRequest(request)

		report, _, _, err := s.runComparison(ctx, symbols, start, end, "all", cfg)
		if err != nil {
			s.log.Error().Err(err).Strs("symbols", symbols).Msg("comparison for commentary failed")
			return errorResult(fmt.Sprintf("Error: %v", err)), nil
		}
		narrative, err := s.commentator.Explain(ctx, report)
		if err != nil {
			s.log.Error().Err(err).Msg("commentary generation failed")
			return errorResult(fmt.Sprintf("Error generating commentary: %v", err)), nil
		}
		return textResult(narrative), nil
	}
}

func (s *Server) registerMetaTools(m *mcpserver.MCPServer) {
	m.AddTool(mcp.NewTool("get_version",
		mcp.WithDescription("Report the server name, version and status."),
	), s.instrument("get_version", "meta", s.handleGetVersion()))

	m.AddTool(mcp.NewTool("get_usage_stats",
		mcp.WithDescription("Summarize tool usage over the last N days, optionally with a distribution chart."),
		mcp.WithNumber("days", mcp.Description("Lookback window in days (default 7)")),
		mcp.WithBoolean("chart", mcp.Description("Include a usage distribution chart (default false)")),
	), s.instrument("get_usage_stats", "meta", s.handleUsageStats()))
}

func (s *Server) handleGetVersion() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return textResult(fmt.Sprintf("vnstock-mcp\nVersion: %s\nStatus: OK", Version)), nil
	}
}

func (s *Server) handleUsageStats() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if s.store == nil {
			return errorResult("Error: usage analytics storage is not configured"), nil
		}
		days := request.GetInt("days", 7)
		if days < 1 {
			days = 1
		}
		since := time.Now().Add(-time.Duration(days) * 24 * time.Hour).Unix()

		stats, err := s.store.UsageByCategory(since)
		if err != nil {
			s.log.Error().Err(err).Msg("usage query failed")
			return errorResult(fmt.Sprintf("Error reading usage stats: %v", err)), nil
		}
		text := charts.FormatUsageStats(stats, days) + s.formatErrorRates(stats, since)

		if request.GetBool("chart", false) && len(stats) > 0 {
			pie, err := charts.UsagePie(stats, days)
			if err != nil {
				return errorResult(fmt.Sprintf("Error rendering usage chart: %v", err)), nil
			}
			content := []mcp.Content{
				mcp.NewTextContent(text),
				mcp.NewImageContent(encodeBase64(pie), "image/png"),
			}
			series, err := s.store.UsageTimeSeries(since)
			if err != nil {
				s.log.Error().Err(err).Msg("usage time series query failed")
				return errorResult(fmt.Sprintf("Error reading usage time series: %v", err)), nil
			}
			if len(series) > 0 {
				line, err := charts.UsageTimeSeries(series, days)
				if err != nil {
					return errorResult(fmt.Sprintf("Error rendering usage time series: %v", err)), nil
				}
				content = append(content, mcp.NewImageContent(encodeBase64(line), "image/png"))
			}
			return &mcp.CallToolResult{Content: content}, nil
		}
		return textResult(text), nil
	}
}

// formatErrorRates lists tools that failed at least once in the window.
func (s *Server) formatErrorRates(stats map[string]*storage.UsageStats, since int64) string {
	var tools []string
	for _, st := range stats {
		for tool := range st.Tools {
			tools = append(tools, tool)
		}
	}
	sort.Strings(tools)

	var b strings.Builder
	for _, tool := range tools {
		rate, total, err := s.store.ErrorRate(tool, since)
		if err != nil {
			s.log.Warn().Err(err).Str("tool", tool).Msg("error rate query failed")
			continue
		}
		if total == 0 || rate == 0 {
			continue
		}
		fmt.Fprintf(&b, "  - %s: %.1f%% of %d calls failed\n", tool, rate*100, total)
	}
	if b.Len() == 0 {
		return ""
	}
	return "Error rates\n" + b.String()
}
