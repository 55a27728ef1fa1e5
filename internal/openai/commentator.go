// Package openai turns optimization reports into plain-language commentary.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/gahoccode/vnstock-mcp/internal/portfolio"
)

// ErrDisabled is returned when no API key was configured.
var ErrDisabled = errors.New("commentary is disabled: no OpenAI API key configured")

type Commentator struct {
	cli     oa.Client
	enabled bool
}

func NewCommentator(apiKey string, opts ...option.RequestOption) *Commentator {
	if apiKey == "" {
		return &Commentator{}
	}
	client := oa.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Commentator{cli: client, enabled: true}
}

func (c *Commentator) Enabled() bool { return c.enabled }

// Explain produces a short investor-facing narrative for a strategy report.
func (c *Commentator) Explain(ctx context.Context, report portfolio.StrategyReport) (string, error) {
	if !c.enabled {
		return "", ErrDisabled
	}
	if len(report.Succeeded()) == 0 {
		return "", errors.New("nothing to explain: every strategy failed")
	}

	resp, err := c.cli.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
		Model: "gpt-4",
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage("You are a portfolio analyst writing for a retail investor in the Vietnamese stock market. Explain the optimization results in plain language: what each strategy optimizes for, how the allocations differ, and which trade-off each one makes. Keep it under 250 words, no financial advice disclaimers, no links."),
			oa.UserMessage(formatReport(report)),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// formatReport renders a report as the compact text the model is prompted on.
func formatReport(report portfolio.StrategyReport) string {
	var b strings.Builder
	for _, res := range report.Results {
		fmt.Fprintf(&b, "Strategy: %s\n", res.Strategy)
		if res.Err != nil {
			fmt.Fprintf(&b, "  failed: %v\n", res.Err)
			continue
		}
		fmt.Fprintf(&b, "  expected annual return: %.2f%%\n", res.Metrics.ExpectedAnnualReturn*100)
		fmt.Fprintf(&b, "  annual volatility: %.2f%%\n", res.Metrics.AnnualVolatility*100)
		fmt.Fprintf(&b, "  sharpe ratio: %.2f\n", res.Metrics.SharpeRatio)
		fmt.Fprintf(&b, "  weights:")
		for i, symbol := range res.Weights.Symbols {
			fmt.Fprintf(&b, " %s=%.1f%%", symbol, res.Weights.Values[i]*100)
		}
		b.WriteString("\n")
	}
	return b.String()
}
