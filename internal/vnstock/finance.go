package vnstock

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// StatementPeriod selects annual or quarterly financial reports.
type StatementPeriod string

const (
	PeriodYear    StatementPeriod = "year"
	PeriodQuarter StatementPeriod = "quarter"
)

// Statement rows come back as loosely-typed records because the upstream
// schema varies by sector and report version.
type Statement []map[string]any

var statementPaths = map[string]string{
	"income":  "incomestatement",
	"balance": "balancesheet",
	"cash":    "cashflow",
	"ratios":  "financialratio",
}

// IncomeStatement fetches income statements for a ticker.
func (c *Client) IncomeStatement(ctx context.Context, symbol string, period StatementPeriod, lang string) (Statement, error) {
	return c.statement(ctx, symbol, "income", period, lang)
}

// BalanceSheet fetches balance sheets for a ticker.
func (c *Client) BalanceSheet(ctx context.Context, symbol string, period StatementPeriod, lang string) (Statement, error) {
	return c.statement(ctx, symbol, "balance", period, lang)
}

// CashFlow fetches cash-flow statements for a ticker.
func (c *Client) CashFlow(ctx context.Context, symbol string, period StatementPeriod, lang string) (Statement, error) {
	return c.statement(ctx, symbol, "cash", period, lang)
}

// FinancialRatios fetches the derived ratio report for a ticker.
func (c *Client) FinancialRatios(ctx context.Context, symbol string, period StatementPeriod, lang string) (Statement, error) {
	return c.statement(ctx, symbol, "ratios", period, lang)
}

func (c *Client) statement(ctx context.Context, symbol, kind string, period StatementPeriod, lang string) (Statement, error) {
	path, ok := statementPaths[kind]
	if !ok {
		return nil, fmt.Errorf("unknown statement kind %q", kind)
	}
	if period != PeriodYear && period != PeriodQuarter {
		return nil, fmt.Errorf("unsupported period %q (want year or quarter)", period)
	}
	lang = strings.ToLower(lang)
	if lang == "" {
		lang = "en"
	}
	if lang != "en" && lang != "vi" {
		return nil, fmt.Errorf("unsupported language %q (want en or vi)", lang)
	}

	url := fmt.Sprintf("%s/company/%s/%s?period=%s&lang=%s",
		c.VCIBase, strings.ToUpper(symbol), path, period, lang)
	var rows Statement
	if err := c.getJSON(ctx, url, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no %s data for %s", kind, symbol)
	}
	sortByReportYear(rows)
	return rows, nil
}

// sortByReportYear orders rows newest first, with quarter as tiebreak.
func sortByReportYear(rows Statement) {
	key := func(row map[string]any, name string) float64 {
		if v, ok := row[name]; ok {
			if f, ok := v.(float64); ok {
				return f
			}
		}
		return 0
	}
	sort.SliceStable(rows, func(i, j int) bool {
		yi, yj := key(rows[i], "yearReport"), key(rows[j], "yearReport")
		if yi != yj {
			return yi > yj
		}
		return key(rows[i], "lengthReport") > key(rows[j], "lengthReport")
	})
}
