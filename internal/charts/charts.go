// Package charts renders PNG visualizations for optimization results and
// server usage analytics.
package charts

import (
	"fmt"
	"sort"
	"time"

	"github.com/vicanso/go-charts/v2"

	"github.com/gahoccode/vnstock-mcp/internal/portfolio"
	"github.com/gahoccode/vnstock-mcp/internal/storage"
)

// AllocationPie renders portfolio weights as a pie chart. Weights below the
// cleaning floor were already dropped, so every slice is visible.
func AllocationPie(weights portfolio.WeightVector, title string) ([]byte, error) {
	if len(weights.Symbols) == 0 {
		return nil, fmt.Errorf("no weights to render")
	}

	var labels []string
	var values []float64
	for i, symbol := range weights.Symbols {
		w := weights.Values[i]
		labels = append(labels, fmt.Sprintf("%s (%.1f%%)", symbol, w*100))
		values = append(values, w)
	}

	p, err := charts.PieRender(
		values,
		charts.TitleTextOptionFunc(title),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: labels,
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, err
	}
	return p.Bytes()
}

// StrategyComparison renders expected return, volatility and Sharpe ratio of
// each successful strategy side by side.
func StrategyComparison(report portfolio.StrategyReport) ([]byte, error) {
	var names []string
	var returns, vols, sharpes []float64
	for _, res := range report.Results {
		if res.Err != nil {
			continue
		}
		names = append(names, string(res.Strategy))
		returns = append(returns, res.Metrics.ExpectedAnnualReturn)
		vols = append(vols, res.Metrics.AnnualVolatility)
		sharpes = append(sharpes, res.Metrics.SharpeRatio)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no successful strategies to render")
	}

	p, err := charts.BarRender(
		[][]float64{returns, vols, sharpes},
		charts.XAxisDataOptionFunc(names),
		charts.TitleTextOptionFunc("Strategy Comparison"),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: []string{"Expected Return", "Volatility", "Sharpe Ratio"},
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(900),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, err
	}
	return p.Bytes()
}

// UsagePie renders the tool-usage distribution across categories.
func UsagePie(stats map[string]*storage.UsageStats, days int) ([]byte, error) {
	if len(stats) == 0 {
		return nil, fmt.Errorf("no usage data available")
	}

	var categories []string
	for category := range stats {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	total := 0
	var values []float64
	for _, category := range categories {
		values = append(values, float64(stats[category].Count))
		total += stats[category].Count
	}

	var labels []string
	for i, category := range categories {
		labels = append(labels, fmt.Sprintf("%s (%.1f%%)", category, values[i]/float64(total)*100))
	}

	p, err := charts.PieRender(
		values,
		charts.TitleTextOptionFunc(fmt.Sprintf("Tool Usage Distribution (%d days)", days)),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: labels,
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(800),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, err
	}
	return p.Bytes()
}

// UsageTimeSeries renders hourly tool-call counts per category as a line
// chart. Categories share one time axis; hours a category saw no calls plot
// as zero.
func UsageTimeSeries(series map[string][]storage.TimeSeriesPoint, days int) ([]byte, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("no time series data available")
	}

	var timestamps []int64
	seen := make(map[int64]bool)
	for _, points := range series {
		for _, point := range points {
			if !seen[point.Timestamp] {
				timestamps = append(timestamps, point.Timestamp)
				seen[point.Timestamp] = true
			}
		}
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	var xAxisData []string
	for _, ts := range timestamps {
		t := time.Unix(ts, 0)
		switch {
		case days <= 1:
			xAxisData = append(xAxisData, t.Format("15:04"))
		case days <= 7:
			xAxisData = append(xAxisData, t.Format("Mon 15:04"))
		default:
			xAxisData = append(xAxisData, t.Format("01/02"))
		}
	}

	var categories []string
	for category := range series {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	var allSeries [][]float64
	for _, category := range categories {
		counts := make(map[int64]int, len(series[category]))
		for _, point := range series[category] {
			counts[point.Timestamp] = point.Count
		}
		data := make([]float64, 0, len(timestamps))
		for _, ts := range timestamps {
			data = append(data, float64(counts[ts]))
		}
		allSeries = append(allSeries, data)
	}

	p, err := charts.LineRender(
		allSeries,
		charts.XAxisOptionFunc(charts.XAxisOption{Data: xAxisData}),
		charts.TitleTextOptionFunc(fmt.Sprintf("Tool Usage Over Time (%d days)", days)),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: categories,
			Top:  charts.PositionTop,
		}),
		charts.YAxisOptionFunc(charts.YAxisOption{}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(1000),
		charts.HeightOptionFunc(600),
	)
	if err != nil {
		return nil, err
	}
	return p.Bytes()
}

// FormatUsageStats renders a plain-text usage summary with top tools per
// category.
func FormatUsageStats(stats map[string]*storage.UsageStats, days int) string {
	if len(stats) == 0 {
		return "No usage data available for the specified period."
	}

	var categories []string
	total := 0
	for category := range stats {
		categories = append(categories, category)
		total += stats[category].Count
	}
	sort.Strings(categories)

	text := fmt.Sprintf("Usage analytics (%d days)\nTotal tool calls: %d\n\n", days, total)
	for _, category := range categories {
		st := stats[category]
		text += fmt.Sprintf("%s (%d calls, %.1f%%)\n",
			category, st.Count, float64(st.Count)/float64(total)*100)

		type toolCount struct {
			tool  string
			count int
		}
		var tools []toolCount
		for tool, count := range st.Tools {
			tools = append(tools, toolCount{tool, count})
		}
		sort.Slice(tools, func(i, j int) bool {
			if tools[i].count != tools[j].count {
				return tools[i].count > tools[j].count
			}
			return tools[i].tool < tools[j].tool
		})
		for i, tc := range tools {
			if i >= 5 {
				break
			}
			text += fmt.Sprintf("  - %s: %d\n", tc.tool, tc.count)
		}
		text += "\n"
	}
	return text
}
