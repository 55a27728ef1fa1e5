package vnstock

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncomeStatementSortsNewestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/company/FPT/incomestatement", r.URL.Path)
		assert.Equal(t, "year", r.URL.Query().Get("period"))
		assert.Equal(t, "en", r.URL.Query().Get("lang"))
		json.NewEncoder(w).Encode([]map[string]any{
			{"yearReport": 2022, "revenue": 44010.0},
			{"yearReport": 2024, "revenue": 62849.0},
			{"yearReport": 2023, "revenue": 52618.0},
		})
	}))
	defer srv.Close()

	rows, err := testClient(srv).IncomeStatement(context.Background(), "fpt", PeriodYear, "")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, float64(2024), rows[0]["yearReport"])
	assert.Equal(t, float64(2023), rows[1]["yearReport"])
	assert.Equal(t, float64(2022), rows[2]["yearReport"])
}

func TestStatementQuarterTiebreak(t *testing.T) {
	rows := Statement{
		{"yearReport": 2024.0, "lengthReport": 1.0},
		{"yearReport": 2024.0, "lengthReport": 3.0},
		{"yearReport": 2024.0, "lengthReport": 2.0},
	}
	sortByReportYear(rows)
	assert.Equal(t, 3.0, rows[0]["lengthReport"])
	assert.Equal(t, 2.0, rows[1]["lengthReport"])
	assert.Equal(t, 1.0, rows[2]["lengthReport"])
}

func TestStatementRejectsBadParams(t *testing.T) {
	c := NewClient(zerolog.Nop())

	_, err := c.BalanceSheet(context.Background(), "FPT", "monthly", "en")
	assert.ErrorContains(t, err, "unsupported period")

	_, err = c.CashFlow(context.Background(), "FPT", PeriodYear, "fr")
	assert.ErrorContains(t, err, "unsupported language")
}

func TestDividendHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tcanalysis/v1/company/VNM/dividend-payment-histories", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"listDividendPaymentHis": []map[string]any{
				{"exerciseDate": "2024-09-25", "cashYear": 2024, "cashDividendPercentage": 0.15, "issueMethod": "cash"},
			},
		})
	}))
	defer srv.Close()

	divs, err := testClient(srv).DividendHistory(context.Background(), "vnm")
	require.NoError(t, err)
	require.Len(t, divs, 1)
	assert.Equal(t, "2024-09-25", divs[0].ExerciseDate)
	assert.InDelta(t, 0.15, divs[0].CashDividendPct, 1e-9)
}
