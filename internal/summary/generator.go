// Package summary generates an optional natural-language briefing for an
// approval detail. The feature is additive: any failure degrades to no
// summary, never to a failed detail view.
package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/paysign/signoff/internal/join"
	"github.com/paysign/signoff/internal/schema"
)

const systemPrompt = `You are an assistant for a payment sign-off system.
Summarize the payment request briefly for the approver: what is being paid,
to whom, against which contract, and anything unusual (missing milestone,
rejected siblings, high remaining balance). Answer in Hebrew, at most four
sentences.`

// Config holds generation settings
type Config struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Generator produces detail summaries through a chat-completion model
type Generator struct {
	client     *openai.Client
	cfg        Config
	normalizer *schema.Normalizer
	logger     *zap.Logger
}

// NewGenerator creates a generator
func NewGenerator(apiKey string, cfg Config, normalizer *schema.Normalizer, logger *zap.Logger) *Generator {
	return &Generator{
		client:     openai.NewClient(apiKey),
		cfg:        cfg,
		normalizer: normalizer,
		logger:     logger,
	}
}

// Summarize generates a briefing for a resolved detail
func (g *Generator) Summarize(ctx context.Context, detail *join.Detail) (string, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Temperature: g.cfg.Temperature,
		MaxTokens:   g.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: g.buildPrompt(detail)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate summary: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}

	summary := strings.TrimSpace(resp.Choices[0].Message.Content)
	g.logger.Debug("Summary generated",
		zap.String("approval_id", detail.Approval.ID),
		zap.Int("length", len(summary)))
	return summary, nil
}

// buildPrompt flattens the detail into a compact plain-text block. Only
// fields that are present make it in.
func (g *Generator) buildPrompt(detail *join.Detail) string {
	var b strings.Builder

	a := detail.Approval
	fmt.Fprintf(&b, "Approval serial: %s, status: %s\n", a.Serial, a.RawStatus)

	if p := detail.Payment; p != nil {
		fmt.Fprintf(&b, "Payment: %s to %s, amount %s, project %s\n",
			p.Description, p.Supplier, g.normalizer.Currency(p.Amount), p.Project)
		if remaining := g.normalizer.Currency(p.Budget.Remaining); remaining != "" {
			fmt.Fprintf(&b, "Budget remaining: %s\n", remaining)
		}
	}

	if c := detail.Contract; c != nil {
		fmt.Fprintf(&b, "Contract: %s, balance %s\n",
			c.Description, g.normalizer.Currency(c.Balance))
	}

	if a.MilestoneNumber == "" && a.MilestoneText == "" {
		b.WriteString("No milestone assigned yet\n")
	} else {
		fmt.Fprintf(&b, "Milestone: %s %s\n", a.MilestoneNumber, a.MilestoneText)
	}

	for _, sibling := range detail.Siblings {
		if sibling.ID == a.ID {
			continue
		}
		fmt.Fprintf(&b, "Co-approver %s: %s\n", sibling.AssigneeName(), sibling.RawStatus)
	}

	return b.String()
}
