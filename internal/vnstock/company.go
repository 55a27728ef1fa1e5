package vnstock

import (
	"context"
	"fmt"
	"strings"
)

// CompanyInfoType selects which company facet to fetch from VCI.
type CompanyInfoType string

const (
	InfoOverview     CompanyInfoType = "overview"
	InfoProfile      CompanyInfoType = "profile"
	InfoShareholders CompanyInfoType = "shareholders"
	InfoOfficers     CompanyInfoType = "officers"
	InfoEvents       CompanyInfoType = "events"
	InfoNews         CompanyInfoType = "news"
)

var companyPaths = map[CompanyInfoType]string{
	InfoOverview:     "overview",
	InfoProfile:      "profile",
	InfoShareholders: "large-share-holders",
	InfoOfficers:     "officers",
	InfoEvents:       "events",
	InfoNews:         "news",
}

// CompanyInfo fetches one facet of company data as loosely-typed records.
func (c *Client) CompanyInfo(ctx context.Context, symbol string, infoType CompanyInfoType) (any, error) {
	path, ok := companyPaths[infoType]
	if !ok {
		return nil, fmt.Errorf("unsupported info type %q", infoType)
	}
	url := fmt.Sprintf("%s/company/%s/%s", c.VCIBase, strings.ToUpper(symbol), path)
	var out any
	if err := c.getJSON(ctx, url, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Dividend is one cash or stock dividend event from TCBS.
type Dividend struct {
	ExerciseDate       string  `json:"exerciseDate"`
	CashYear           int     `json:"cashYear"`
	CashDividendPct    float64 `json:"cashDividendPercentage"`
	IssueMethod        string  `json:"issueMethod"`
	NoSharesPerReceive float64 `json:"noSharesPerReceive,omitempty"`
}

type tcbsDividendResponse struct {
	ListDividendPaymentHis []Dividend `json:"listDividendPaymentHis"`
}

// DividendHistory fetches the dividend payment history for a ticker.
func (c *Client) DividendHistory(ctx context.Context, symbol string) ([]Dividend, error) {
	url := fmt.Sprintf("%s/tcanalysis/v1/company/%s/dividend-payment-histories?page=0&size=50",
		c.TCBSBase, strings.ToUpper(symbol))
	var resp tcbsDividendResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if len(resp.ListDividendPaymentHis) == 0 {
		return nil, fmt.Errorf("no dividend history for %s", symbol)
	}
	return resp.ListDividendPaymentHis, nil
}
