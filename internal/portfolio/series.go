package portfolio

import (
	"fmt"
	"math"
	"sort"
)

// PriceSeries is an aligned close-price history for a basket of instruments.
// All symbols share the same sorted date index; dates where any symbol has no
// (finite, positive) observation are dropped during construction, so the
// series is the common date range of its inputs. Immutable once built.
type PriceSeries struct {
	symbols []string
	dates   []string
	closes  map[string][]float64
}

// NewPriceSeries aligns per-symbol observations (symbol -> date -> close) to
// their common date range. Symbols keeps the caller's order. Duplicate or
// too-few symbols are parameter errors; fewer than two surviving observations
// is a data error.
func NewPriceSeries(symbols []string, observations map[string]map[string]float64) (*PriceSeries, error) {
	if len(symbols) < 2 {
		return nil, &InvalidParameterError{Param: "symbols", Reason: "need at least 2 instruments"}
	}
	seen := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		if _, dup := seen[s]; dup {
			return nil, &InvalidParameterError{Param: "symbols", Reason: "duplicate symbol " + s}
		}
		seen[s] = struct{}{}
		if len(observations[s]) == 0 {
			return nil, &DataInsufficientError{Reason: "no observations for " + s}
		}
	}

	// Intersect date sets across all symbols, keeping only dates where every
	// symbol has a usable close.
	var dates []string
	for d := range observations[symbols[0]] {
		ok := true
		for _, s := range symbols {
			v, present := observations[s][d]
			if !present || !usablePrice(v) {
				ok = false
				break
			}
		}
		if ok {
			dates = append(dates, d)
		}
	}
	if len(dates) < 2 {
		return nil, &DataInsufficientError{
			Reason: fmt.Sprintf("only %d aligned observations across %d symbols", len(dates), len(symbols)),
		}
	}
	sort.Strings(dates)

	closes := make(map[string][]float64, len(symbols))
	for _, s := range symbols {
		row := make([]float64, len(dates))
		for i, d := range dates {
			row[i] = observations[s][d]
		}
		closes[s] = row
	}

	return &PriceSeries{
		symbols: append([]string(nil), symbols...),
		dates:   dates,
		closes:  closes,
	}, nil
}

func usablePrice(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Symbols returns the instrument identifiers in construction order.
func (p *PriceSeries) Symbols() []string {
	return append([]string(nil), p.symbols...)
}

// Dates returns the aligned date index.
func (p *PriceSeries) Dates() []string {
	return append([]string(nil), p.dates...)
}

// Observations returns the number of aligned rows.
func (p *PriceSeries) Observations() int {
	return len(p.dates)
}

// Closes returns the aligned close prices for one symbol.
func (p *PriceSeries) Closes(symbol string) []float64 {
	return append([]float64(nil), p.closes[symbol]...)
}

// periodReturns computes period-over-period returns per symbol, arithmetic by
// default or log when requested. The result has one fewer row than the series.
func (p *PriceSeries) periodReturns(logReturns bool) map[string][]float64 {
	out := make(map[string][]float64, len(p.symbols))
	for _, s := range p.symbols {
		prices := p.closes[s]
		rets := make([]float64, len(prices)-1)
		for i := 1; i < len(prices); i++ {
			if logReturns {
				rets[i-1] = math.Log(prices[i] / prices[i-1])
			} else {
				rets[i-1] = prices[i]/prices[i-1] - 1
			}
		}
		out[s] = rets
	}
	return out
}
