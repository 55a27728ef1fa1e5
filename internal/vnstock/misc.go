package vnstock

import (
	"context"
	"fmt"
	"time"
)

// GoldPrice is one buy/sell quotation from a bullion vendor.
type GoldPrice struct {
	Vendor    string  `json:"vendor"`
	Name      string  `json:"name"`
	Karat     string  `json:"karat,omitempty"`
	BuyPrice  float64 `json:"buy_price"`
	SellPrice float64 `json:"sell_price"`
	Updated   string  `json:"updated"`
}

type sjcResponse struct {
	Success bool `json:"success"`
	Data    []struct {
		TypeName  string  `json:"TypeName"`
		BuyValue  float64 `json:"BuyValue"`
		SellValue float64 `json:"SellValue"`
	} `json:"data"`
	LatestDate string `json:"latestDate"`
}

// SJCGoldPrice fetches SJC bullion quotations, optionally for a past date
// (YYYY-MM-DD, empty means latest).
func (c *Client) SJCGoldPrice(ctx context.Context, date string) ([]GoldPrice, error) {
	url := c.SJCBase
	if date != "" {
		d, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
		}
		url = fmt.Sprintf("%s?method=GetSJCGoldPriceByDate&toDate=%s", c.SJCBase, d.Format("02/01/2006"))
	}
	var resp sjcResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || len(resp.Data) == 0 {
		return nil, fmt.Errorf("no SJC gold prices available")
	}
	prices := make([]GoldPrice, 0, len(resp.Data))
	for _, row := range resp.Data {
		prices = append(prices, GoldPrice{
			Vendor:    "SJC",
			Name:      row.TypeName,
			BuyPrice:  row.BuyValue,
			SellPrice: row.SellValue,
			Updated:   resp.LatestDate,
		})
	}
	return prices, nil
}

type btmcResponse struct {
	DataList struct {
		Data []map[string]string `json:"Data"`
	} `json:"DataList"`
}

// BTMCGoldPrice fetches the current Bao Tin Minh Chau gold price board. The
// upstream keys are row-numbered (@n_1, @pb_1, ...) so rows are re-keyed by
// their own index before decoding.
func (c *Client) BTMCGoldPrice(ctx context.Context) ([]GoldPrice, error) {
	var resp btmcResponse
	if err := c.getJSON(ctx, c.BTMCBase, &resp); err != nil {
		return nil, err
	}
	rows := resp.DataList.Data
	if len(rows) == 0 {
		return nil, fmt.Errorf("no BTMC gold prices available")
	}
	prices := make([]GoldPrice, 0, len(rows))
	for _, row := range rows {
		idx := row["@row"]
		p := GoldPrice{
			Vendor:  "BTMC",
			Name:    row["@n_"+idx],
			Karat:   row["@k_"+idx],
			Updated: row["@d_"+idx],
		}
		fmt.Sscanf(row["@pb_"+idx], "%f", &p.BuyPrice)
		fmt.Sscanf(row["@ps_"+idx], "%f", &p.SellPrice)
		prices = append(prices, p)
	}
	return prices, nil
}

// ExchangeRate is one currency row from the Vietcombank rate board.
type ExchangeRate struct {
	CurrencyCode string  `json:"currencyCode"`
	CurrencyName string  `json:"currencyName"`
	CashBuy      float64 `json:"cash_buy"`
	TransferBuy  float64 `json:"transfer_buy"`
	Sell         float64 `json:"sell"`
}

type vcbResponse struct {
	Count int `json:"count"`
	Data  []struct {
		CurrencyCode string  `json:"currencyCode"`
		CurrencyName string  `json:"currencyName"`
		Cash         float64 `json:"cash"`
		Transfer     float64 `json:"transfer"`
		Sell         float64 `json:"sell"`
	} `json:"data"`
}

// VCBExchangeRate fetches the Vietcombank exchange-rate board for a date
// (YYYY-MM-DD, empty means today).
func (c *Client) VCBExchangeRate(ctx context.Context, date string) ([]ExchangeRate, error) {
	if date == "" {
		date = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", date)
	}
	url := fmt.Sprintf("%s/exportexcel?date=%s", c.VCBBase, date)
	var resp vcbResponse
	if err := c.getJSON(ctx, url, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no exchange rates for %s", date)
	}
	rates := make([]ExchangeRate, 0, len(resp.Data))
	for _, row := range resp.Data {
		rates = append(rates, ExchangeRate{
			CurrencyCode: row.CurrencyCode,
			CurrencyName: row.CurrencyName,
			CashBuy:      row.Cash,
			TransferBuy:  row.Transfer,
			Sell:         row.Sell,
		})
	}
	return rates, nil
}
