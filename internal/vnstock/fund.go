package vnstock

import (
	"context"
	"fmt"
	"strings"
)

// Fund is one open-end mutual fund listed on fmarket.
type Fund struct {
	ID          int     `json:"id"`
	ShortName   string  `json:"shortName"`
	Name        string  `json:"name"`
	FundType    string  `json:"fundType"`
	Owner       string  `json:"owner"`
	NAV         float64 `json:"nav"`
	NAVChange1Y float64 `json:"navChange1Y"`
	NAVChange3Y float64 `json:"navChange3Y"`
}

// FundNAV is one net-asset-value observation.
type FundNAV struct {
	Date string  `json:"date"`
	NAV  float64 `json:"nav"`
}

// FundHolding is one portfolio position or allocation bucket of a fund.
type FundHolding struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

var fundTypeFilters = map[string]string{
	"":        "",
	"all":     "",
	"stock":   "STOCK",
	"bond":    "BOND",
	"balance": "BALANCED",
}

type fmarketListResponse struct {
	Data struct {
		Rows []struct {
			ID        int    `json:"id"`
			ShortName string `json:"shortName"`
			Name      string `json:"name"`
			Owner     struct {
				Name string `json:"name"`
			} `json:"owner"`
			DataFundAssetType struct {
				Name string `json:"name"`
			} `json:"dataFundAssetType"`
			NAV              float64 `json:"nav"`
			ProductNavChange struct {
				NavTo1Years   float64 `json:"navTo1Years"`
				NavTo36Months float64 `json:"navTo36Months"`
			} `json:"productNavChange"`
		} `json:"rows"`
	} `json:"data"`
}

// FundListing fetches open-end funds, optionally filtered by fund type
// (stock, bond, balance; empty or "all" for everything).
func (c *Client) FundListing(ctx context.Context, fundType string) ([]Fund, error) {
	filter, ok := fundTypeFilters[strings.ToLower(fundType)]
	if !ok {
		return nil, fmt.Errorf("unsupported fund type %q (want stock, bond, balance or all)", fundType)
	}
	payload := map[string]any{
		"types":          []string{"NEW_FUND", "TRADING_FUND"},
		"pageSize":       100,
		"page":           1,
		"fundAssetTypes": []string{},
		"sortField":      "navTo6Months",
		"sortOrder":      "DESC",
	}
	if filter != "" {
		payload["fundAssetTypes"] = []string{filter}
	}
	var resp fmarketListResponse
	if err := c.postJSON(ctx, c.FmarketBase+"/filter", payload, &resp); err != nil {
		return nil, err
	}
	funds := make([]Fund, 0, len(resp.Data.Rows))
	for _, row := range resp.Data.Rows {
		funds = append(funds, Fund{
			ID:          row.ID,
			ShortName:   row.ShortName,
			Name:        row.Name,
			FundType:    row.DataFundAssetType.Name,
			Owner:       row.Owner.Name,
			NAV:         row.NAV,
			NAVChange1Y: row.ProductNavChange.NavTo1Years,
			NAVChange3Y: row.ProductNavChange.NavTo36Months,
		})
	}
	if len(funds) == 0 {
		return nil, fmt.Errorf("no funds matched type %q", fundType)
	}
	return funds, nil
}

// SearchFunds matches listed funds whose short name contains the query.
func (c *Client) SearchFunds(ctx context.Context, query string) ([]Fund, error) {
	funds, err := c.FundListing(ctx, "all")
	if err != nil {
		return nil, err
	}
	needle := strings.ToUpper(strings.TrimSpace(query))
	if needle == "" {
		return funds, nil
	}
	var matched []Fund
	for _, f := range funds {
		if strings.Contains(strings.ToUpper(f.ShortName), needle) ||
			strings.Contains(strings.ToUpper(f.Name), needle) {
			matched = append(matched, f)
		}
	}
	if len(matched) == 0 {
		return nil, fmt.Errorf("no fund matched %q", query)
	}
	return matched, nil
}

// fundID resolves a fund short name to its fmarket id.
func (c *Client) fundID(ctx context.Context, shortName string) (int, error) {
	funds, err := c.FundListing(ctx, "all")
	if err != nil {
		return 0, err
	}
	want := strings.ToUpper(strings.TrimSpace(shortName))
	for _, f := range funds {
		if strings.ToUpper(f.ShortName) == want {
			return f.ID, nil
		}
	}
	return 0, fmt.Errorf("fund %q not found", shortName)
}

type fmarketNAVResponse struct {
	Data []struct {
		NavDate string  `json:"navDate"`
		Nav     float64 `json:"nav"`
	} `json:"data"`
}

// FundNAVReport fetches the NAV history of a fund by short name.
func (c *Client) FundNAVReport(ctx context.Context, shortName string) ([]FundNAV, error) {
	id, err := c.fundID(ctx, shortName)
	if err != nil {
		return nil, err
	}
	payload := map[string]any{
		"isAllData": 1,
		"productId": id,
		"fromDate":  nil,
		"toDate":    nil,
	}
	var resp fmarketNAVResponse
	if err := c.postJSON(ctx, c.FmarketBase+"/get-nav-history", payload, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no NAV history for %s", shortName)
	}
	navs := make([]FundNAV, 0, len(resp.Data))
	for _, row := range resp.Data {
		navs = append(navs, FundNAV{Date: row.NavDate, NAV: row.Nav})
	}
	return navs, nil
}

type fmarketDetailResponse struct {
	Data struct {
		ProductTopHoldingList []struct {
			StockCode       string  `json:"stockCode"`
			Industry        string  `json:"industry"`
			NetAssetPercent float64 `json:"netAssetPercent"`
		} `json:"productTopHoldingList"`
		ProductIndustriesHoldingList []struct {
			Industry     string  `json:"industry"`
			AssetPercent float64 `json:"assetPercent"`
		} `json:"productIndustriesHoldingList"`
		ProductAssetHoldingList []struct {
			AssetType    string  `json:"assetType"`
			AssetPercent float64 `json:"assetPercent"`
		} `json:"productAssetHoldingList"`
	} `json:"data"`
}

func (c *Client) fundDetail(ctx context.Context, shortName string) (*fmarketDetailResponse, error) {
	id, err := c.fundID(ctx, shortName)
	if err != nil {
		return nil, err
	}
	var resp fmarketDetailResponse
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%d", c.FmarketBase, id), &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FundTopHoldings fetches the largest positions of a fund.
func (c *Client) FundTopHoldings(ctx context.Context, shortName string) ([]FundHolding, error) {
	detail, err := c.fundDetail(ctx, shortName)
	if err != nil {
		return nil, err
	}
	rows := detail.Data.ProductTopHoldingList
	if len(rows) == 0 {
		return nil, fmt.Errorf("no holdings data for %s", shortName)
	}
	holdings := make([]FundHolding, 0, len(rows))
	for _, row := range rows {
		holdings = append(holdings, FundHolding{Name: row.StockCode, Percent: row.NetAssetPercent})
	}
	return holdings, nil
}

// FundIndustryAllocation fetches a fund's sector weighting.
func (c *Client) FundIndustryAllocation(ctx context.Context, shortName string) ([]FundHolding, error) {
	detail, err := c.fundDetail(ctx, shortName)
	if err != nil {
		return nil, err
	}
	rows := detail.Data.ProductIndustriesHoldingList
	if len(rows) == 0 {
		return nil, fmt.Errorf("no industry allocation for %s", shortName)
	}
	holdings := make([]FundHolding, 0, len(rows))
	for _, row := range rows {
		holdings = append(holdings, FundHolding{Name: row.Industry, Percent: row.AssetPercent})
	}
	return holdings, nil
}

// FundAssetAllocation fetches a fund's asset-class weighting.
func (c *Client) FundAssetAllocation(ctx context.Context, shortName string) ([]FundHolding, error) {
	detail, err := c.fundDetail(ctx, shortName)
	if err != nil {
		return nil, err
	}
	rows := detail.Data.ProductAssetHoldingList
	if len(rows) == 0 {
		return nil, fmt.Errorf("no asset allocation for %s", shortName)
	}
	holdings := make([]FundHolding, 0, len(rows))
	for _, row := range rows {
		holdings = append(holdings, FundHolding{Name: row.AssetType, Percent: row.AssetPercent})
	}
	return holdings, nil
}
