package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/gahoccode/vnstock-mcp/internal/vnstock"
)

func (s *Server) registerQuoteTools(m *mcpserver.MCPServer) {
	m.AddTool(mcp.NewTool("get_stock_history",
		mcp.WithDescription("Fetch OHLCV price history for a Vietnamese stock listed on HOSE, HNX or UPCOM."),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Ticker symbol, e.g. VNM, FPT, HPG")),
		mcp.WithString("start_date", mcp.Required(), mcp.Description("Start date, YYYY-MM-DD")),
		mcp.WithString("end_date", mcp.Required(), mcp.Description("End date, YYYY-MM-DD")),
		mcp.WithString("interval", mcp.Description("Bar interval: 1D, 1W or 1M (default 1D)")),
	), s.instrument("get_stock_history", "quotes", s.handleStockHistory()))

	m.AddTool(mcp.NewTool("get_index_history",
		mcp.WithDescription("Fetch history for a market index. VNINDEX, HNXINDEX and UPCOMINDEX are served locally; world indices come from MSN."),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Index symbol, e.g. VNINDEX or SPX")),
		mcp.WithString("start_date", mcp.Required(), mcp.Description("Start date, YYYY-MM-DD")),
		mcp.WithString("end_date", mcp.Required(), mcp.Description("End date, YYYY-MM-DD")),
		mcp.WithString("interval", mcp.Description("Bar interval: 1D, 1W or 1M (default 1D)")),
	), s.instrument("get_index_history", "quotes", s.handleIndexHistory()))

	m.AddTool(mcp.NewTool("get_forex_history",
		mcp.WithDescription("Fetch currency-pair price history, e.g. USDVND or EURUSD."),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Currency pair, e.g. USDVND")),
		mcp.WithString("start_date", mcp.Required(), mcp.Description("Start date, YYYY-MM-DD")),
		mcp.WithString("end_date", mcp.Required(), mcp.Description("End date, YYYY-MM-DD")),
	), s.instrument("get_forex_history", "quotes", s.handleForexHistory()))

	m.AddTool(mcp.NewTool("get_crypto_history",
		mcp.WithDescription("Fetch cryptocurrency price history, e.g. BTC or ETH."),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Crypto symbol, e.g. BTC")),
		mcp.WithString("start_date", mcp.Required(), mcp.Description("Start date, YYYY-MM-DD")),
		mcp.WithString("end_date", mcp.Required(), mcp.Description("End date, YYYY-MM-DD")),
	), s.instrument("get_crypto_history", "quotes", s.handleCryptoHistory()))
}

func (s *Server) handleStockHistory() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		symbol, err := request.RequireString("symbol")
		if err != nil || symbol == "" {
			return errorResult("Error: symbol parameter is required"), nil
		}
		start, end, bad := requireRange(request)
		if bad != nil {
			return bad, nil
		}
		interval := request.GetString("interval", "1D")

		candles, err := s.data.StockHistory(ctx, symbol, start, end, interval)
		if err != nil {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("stock history failed")
			return errorResult(fmt.Sprintf("Error fetching history for %s: %v", symbol, err)), nil
		}
		return jsonResult(candles), nil
	}
}

func (s *Server) handleIndexHistory() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		symbol, err := request.RequireString("symbol")
		if err != nil || symbol == "" {
			return errorResult("Error: symbol parameter is required"), nil
		}
		start, end, bad := requireRange(request)
		if bad != nil {
			return bad, nil
		}
		interval := request.GetString("interval", "1D")

		candles, err := s.data.IndexHistory(ctx, symbol, start, end, interval)
		if err != nil {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("index history failed")
			return errorResult(fmt.Sprintf("Error fetching index %s: %v", symbol, err)), nil
		}
		return jsonResult(candles), nil
	}
}

func (s *Server) handleForexHistory() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		symbol, err := request.RequireString("symbol")
		if err != nil || symbol == "" {
			return errorResult("Error: symbol parameter is required"), nil
		}
		start, end, bad := requireRange(request)
		if bad != nil {
			return bad, nil
		}
		candles, err := s.data.ForexHistory(ctx, symbol, start, end)
		if err != nil {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("forex history failed")
			return errorResult(fmt.Sprintf("Error fetching pair %s: %v", symbol, err)), nil
		}
		return jsonResult(candles), nil
	}
}

func (s *Server) handleCryptoHistory() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		symbol, err := request.RequireString("symbol")
		if err != nil || symbol == "" {
			return errorResult("Error: symbol parameter is required"), nil
		}
		start, end, bad := requireRange(request)
		if bad != nil {
			return bad, nil
		}
		candles, err := s.data.CryptoHistory(ctx, symbol, start, end)
		if err != nil {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("crypto history failed")
			return errorResult(fmt.Sprintf("Error fetching %s: %v", symbol, err)), nil
		}
		return jsonResult(candles), nil
	}
}

func (s *Server) registerFinanceTools(m *mcpserver.MCPServer) {
	statements := []struct {
		tool, desc string
		fetch      func(context.Context, string, vnstock.StatementPeriod, string) (vnstock.Statement, error)
	}{
		{"get_income_statement", "Fetch income statements for a Vietnamese listed company.", s.data.IncomeStatement},
		{"get_balance_sheet", "Fetch balance sheets for a Vietnamese listed company.", s.data.BalanceSheet},
		{"get_cash_flow", "Fetch cash-flow statements for a Vietnamese listed company.", s.data.CashFlow},
		{"get_financial_ratios", "Fetch derived financial ratios for a Vietnamese listed company.", s.data.FinancialRatios},
	}
	for _, st := range statements {
		fetch := st.fetch
		m.AddTool(mcp.NewTool(st.tool,
			mcp.WithDescription(st.desc),
			mcp.WithString("symbol", mcp.Required(), mcp.Description("Ticker symbol")),
			mcp.WithString("period", mcp.Description("Report period: year or quarter (default year)")),
			mcp.WithString("lang", mcp.Description("Field language: en or vi (default en)")),
		), s.instrument(st.tool, "financials", s.handleStatement(fetch)))
	}

	m.AddTool(mcp.NewTool("get_company_info",
		mcp.WithDescription("Fetch company data: overview, profile, shareholders, officers, events or news."),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Ticker symbol")),
		mcp.WithString("info_type", mcp.Description("Facet: overview, profile, shareholders, officers, events or news (default overview)")),
	), s.instrument("get_company_info", "financials", s.handleCompanyInfo()))

	m.AddTool(mcp.NewTool("get_dividend_history",
		mcp.WithDescription("Fetch the dividend payment history for a Vietnamese listed company."),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Ticker symbol")),
	), s.instrument("get_dividend_history", "financials", s.handleDividendHistory()))
}

func (s *Server) handleStatement(fetch func(context.Context, string, vnstock.StatementPeriod, string) (vnstock.Statement, error)) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		symbol, err := request.RequireString("symbol")
		if err != nil || symbol == "" {
			return errorResult("Error: symbol parameter is required"), nil
		}
		period := vnstock.StatementPeriod(request.GetString("period", "year"))
		lang := request.GetString("lang", "en")

		rows, err := fetch(ctx, symbol, period, lang)
		if err != nil {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("statement fetch failed")
			return errorResult(fmt.Sprintf("Error fetching statement for %s: %v", symbol, err)), nil
		}
		return jsonResult(rows), nil
	}
}

func (s *Server) handleCompanyInfo() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		symbol, err := request.RequireString("symbol")
		if err != nil || symbol == "" {
			return errorResult("Error: symbol parameter is required"), nil
		}
		infoType := vnstock.CompanyInfoType(request.GetString("info_type", "overview"))

		info, err := s.data.CompanyInfo(ctx, symbol, infoType)
		if err != nil {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("company info failed")
			return errorResult(fmt.Sprintf("Error fetching company info for %s: %v", symbol, err)), nil
		}
		return jsonResult(info), nil
	}
}

func (s *Server) handleDividendHistory() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		symbol, err := request.RequireString("symbol")
		if err != nil || symbol == "" {
			return errorResult("Error: symbol parameter is required"), nil
		}
		divs, err := s.data.DividendHistory(ctx, symbol)
		if err != nil {
			s.log.Error().Err(err).Str("symbol", symbol).Msg("dividend history failed")
			return errorResult(fmt.Sprintf("Error fetching dividends for %s: %v", symbol, err)), nil
		}
		return jsonResult(divs), nil
	}
}

func (s *Server) registerMarketTools(m *mcpserver.MCPServer) {
	m.AddTool(mcp.NewTool("get_sjc_gold_price",
		mcp.WithDescription("Fetch SJC gold bullion buy/sell prices, optionally for a past date."),
		mcp.WithString("date", mcp.Description("Date, YYYY-MM-DD (default latest)")),
	), s.instrument("get_sjc_gold_price", "market", s.handleSJCGold()))

	m.AddTool(mcp.NewTool("get_btmc_gold_price",
		mcp.WithDescription("Fetch the current Bao Tin Minh Chau gold price board."),
	), s.instrument("get_btmc_gold_price", "market", s.handleBTMCGold()))

	m.AddTool(mcp.NewTool("get_vcb_exchange_rate",
		mcp.WithDescription("Fetch the Vietcombank exchange-rate board for a date."),
		mcp.WithString("date", mcp.Description("Date, YYYY-MM-DD (default today)")),
	), s.instrument("get_vcb_exchange_rate", "market", s.handleVCBRates()))
}

func (s *Server) handleSJCGold() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		date := request.GetString("date", "")
		prices, err := s.data.SJCGoldPrice(ctx, date)
		if err != nil {
			s.log.Error().Err(err).Msg("SJC gold fetch failed")
			return errorResult(fmt.Sprintf("Error fetching SJC gold prices: %v", err)), nil
		}
		return jsonResult(prices), nil
	}
}

func (s *Server) handleBTMCGold() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prices, err := s.data.BTMCGoldPrice(ctx)
		if err != nil {
			s.log.Error().Err(err).Msg("BTMC gold fetch failed")
			return errorResult(fmt.Sprintf("Error fetching BTMC gold prices: %v", err)), nil
		}
		return jsonResult(prices), nil
	}
}

func (s *Server) handleVCBRates() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		date := request.GetString("date", "")
		rates, err := s.data.VCBExchangeRate(ctx, date)
		if err != nil {
			s.log.Error().Err(err).Msg("VCB rate fetch failed")
			return errorResult(fmt.Sprintf("Error fetching exchange rates: %v", err)), nil
		}
		return jsonResult(rates), nil
	}
}

func (s *Server) registerFundTools(m *mcpserver.MCPServer) {
	m.AddTool(mcp.NewTool("get_fund_listing",
		mcp.WithDescription("List open-end mutual funds, optionally filtered by type."),
		mcp.WithString("fund_type", mcp.Description("Filter: stock, bond, balance or all (default all)")),
	), s.instrument("get_fund_listing", "funds", s.handleFundListing()))

	m.AddTool(mcp.NewTool("search_funds",
		mcp.WithDescription("Search listed funds by name."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Name fragment, e.g. DCDS or bond")),
	), s.instrument("search_funds", "funds", s.handleSearchFunds()))

	holdings := []struct {
		tool, desc string
		fetch      func(context.Context, string) ([]vnstock.FundHolding, error)
	}{
		{"get_fund_top_holdings", "Fetch the largest positions of a mutual fund.", s.data.FundTopHoldings},
		{"get_fund_industry_allocation", "Fetch the sector weighting of a mutual fund.", s.data.FundIndustryAllocation},
		{"get_fund_asset_allocation", "Fetch the asset-class weighting of a mutual fund.", s.data.FundAssetAllocation},
	}
	for _, h := range holdings {
		fetch := h.fetch
		m.AddTool(mcp.NewTool(h.tool,
			mcp.WithDescription(h.desc),
			mcp.WithString("symbol", mcp.Required(), mcp.Description("Fund short name, e.g. DCDS")),
		), s.instrument(h.tool, "funds", s.handleFundHoldings(fetch)))
	}

	m.AddTool(mcp.NewTool("get_fund_nav_report",
		mcp.WithDescription("Fetch the NAV history of a mutual fund."),
		mcp.WithString("symbol", mcp.Required(), mcp.Description("Fund short name, e.g. DCDS")),
	), s.instrument("get_fund_nav_report", "funds", s.handleFundNAV()))
}

func (s *Server) handleFundListing() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		fundType := request.GetString("fund_type", "all")
		funds, err := s.data.FundListing(ctx, fundType)
		if err != nil {
			s.log.Error().Err(err).Msg("fund listing failed")
			return errorResult(fmt.Sprintf("Error listing funds: %v", err)), nil
		}
		return jsonResult(funds), nil
	}
}

func (s *Server) handleSearchFunds() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil || query == "" {
			return errorResult("Error: query parameter is required"), nil
		}
		funds, err := s.data.SearchFunds(ctx, query)
		if err != nil {
			s.log.Error().Err(err).Str("query", query).Msg("fund search failed")
			return errorResult(fmt.Sprintf("Error searching funds: %v", err)), nil
		}
		return jsonResult(funds), nil
	}
}

func (s *Server) handleFundHoldings(fetch func(context.Context, string) ([]vnstock.FundHolding, error)) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		symbol, err := request.RequireString("symbol")
		if err != nil || symbol == "" {
			return errorResult("Error: symbol parameter is required"), nil
		}
		holdings, err := fetch(ctx, symbol)
		if err != nil {
			s.log.Error().Err(err).Str("fund", symbol).Msg("fund holdings failed")
			return errorResult(fmt.Sprintf("Error fetching holdings for %s: %v", symbol, err)), nil
		}
		return jsonResult(holdings), nil
	}
}

func (s *Server) handleFundNAV() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		symbol, err := request.RequireString("symbol")
		if err != nil || symbol == "" {
			return errorResult("Error: symbol parameter is required"), nil
		}
		navs, err := s.data.FundNAVReport(ctx, symbol)
		if err != nil {
			s.log.Error().Err(err).Str("fund", symbol).Msg("fund NAV failed")
			return errorResult(fmt.Sprintf("Error fetching NAV for %s: %v", symbol, err)), nil
		}
		return jsonResult(navs), nil
	}
}

// requireRange extracts and validates the start_date/end_date pair shared by
// the history tools.
func requireRange(request mcp.CallToolRequest) (string, string, *mcp.CallToolResult) {
	start, err := request.RequireString("start_date")
	if err != nil || start == "" {
		return "", "", errorResult("Error: start_date parameter is required")
	}
	end, err := request.RequireString("end_date")
	if err != nil || end == "" {
		return "", "", errorResult("Error: end_date parameter is required")
	}
	return start, end, nil
}
