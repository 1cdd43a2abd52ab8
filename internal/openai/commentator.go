package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Commentator explains backtest summaries in plain language.
type Commentator struct {
	cli   oa.Client
	model string
}

func NewCommentator(apiKey, model string, opts ...option.RequestOption) *Commentator {
	if model == "" {
		model = "gpt-4"
	}
	client := oa.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &Commentator{cli: client, model: model}
}

const commentPrompt = `You review backtests of an overnight-gap switching rule between two securities. Each morning the rule compares both securities' overnight return (previous close to today's open) and switches the whole position to the other security when its return beats the held one by more than the hysteresis threshold, subject to a cooldown.

You receive a plain-text report with the parameters, performance of the switching (Active) and buy-and-hold (Passive) portfolios, and trading stats.

Respond with:
**Verdict:** one sentence on whether switching beat holding.
**Why:** up to three bullets tying the numbers (CAGR, volatility, Sharpe, drawdown, switches, hit rate, turnover) to that verdict.
**Caveats:** up to two bullets on what the backtest does not capture.

Do not give investment advice. Do not invent numbers that are not in the report.`

// Comment returns a short commentary on a backtest summary.
func (c *Commentator) Comment(ctx context.Context, summary string) (string, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", errors.New("empty summary")
	}
	resp, err := c.cli.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
		Model: oa.ChatModel(c.model),
		Messages: []oa.ChatCompletionMessageParamUnion{
			oa.SystemMessage(commentPrompt),
			oa.UserMessage(summary),
		},
		MaxTokens: oa.Int(600), // Limit response length for telegram
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
