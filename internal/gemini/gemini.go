// Package gemini condenses long article bodies with Google's Gemini model.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/deusflow/animenews/internal/ratelimit"
)

const (
	Model = "gemini-1.5-flash"

	// MinChars is the body length below which summarizing is skipped.
	MinChars = 1200

	maxPromptChars = 6000
	maxSummary     = 700
)

// ErrSkipped means the body was short enough to use as is.
var ErrSkipped = errors.New("summary not needed")

// generator is the model call, swapped out in tests.
type generator interface {
	generate(ctx context.Context, prompt string) (string, error)
}

type genaiGenerator struct {
	model *genai.GenerativeModel
}

func (g genaiGenerator) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from Gemini")
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

type Client struct {
	client *genai.Client
	gen    generator
	budget *ratelimit.BudgetLimiter
	log    *slog.Logger
}

func NewClient(ctx context.Context, apiKey string, budget *ratelimit.BudgetLimiter, log *slog.Logger) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	model := client.GenerativeModel(Model)
	model.SetTemperature(0.3)

	if log == nil {
		log = slog.Default()
	}
	return &Client{client: client, gen: genaiGenerator{model: model}, budget: budget, log: log}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Summarize returns a short plain-text summary of body. Bodies shorter than
// MinChars return ErrSkipped.
func (c *Client) Summarize(ctx context.Context, title, body string) (string, error) {
	content := cleanContent(body)
	if utf8.RuneCountInString(content) < MinChars {
		return "", ErrSkipped
	}
	if c.budget != nil {
		if err := c.budget.Use(ratelimit.Gemini); err != nil {
			return "", err
		}
	}

	resp, err := c.gen.generate(ctx, buildPrompt(title, content))
	if err != nil {
		return "", err
	}
	summary, err := parseSummary(resp)
	if err != nil {
		c.log.Warn("unparseable Gemini response", "title", title, "response", resp)
		return "", err
	}
	return summary, nil
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// cleanContent strips markup, collapses whitespace and cuts long text at a
// sentence end.
func cleanContent(content string) string {
	content = tagRe.ReplaceAllString(content, " ")
	content = strings.ReplaceAll(content, "\r", "")
	content = strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(content) > maxPromptChars {
		runes := []rune(content)
		trimmed := string(runes[:maxPromptChars])
		if idx := strings.LastIndex(trimmed, ". "); idx > MinChars {
			trimmed = trimmed[:idx+1]
		}
		content = trimmed + "\n[TRUNCATED]"
	}
	return content
}

func buildPrompt(title, content string) string {
	return fmt.Sprintf(`Summarize this anime news article for a Telegram channel.

ARTICLE:
Title: %s
Content: %s

RULES:
Write at most %d characters of plain text in English.
Keep names of shows, studios and people unchanged.
Do not start with phrases like "This article".
Do not repeat the title.

Answer strictly in this format:

SUMMARY: <summary>
`, title, content, maxSummary)
}

var summaryLabel = regexp.MustCompile(`(?i)^\**\s*summary\s*\**\s*:\s*\**\s*`)

func parseSummary(response string) (string, error) {
	var b strings.Builder
	found := false
	for _, raw := range strings.Split(response, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if summaryLabel.MatchString(line) {
			found = true
			line = strings.TrimSpace(summaryLabel.ReplaceAllString(line, ""))
		} else if !found {
			continue
		}
		if line == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(line)
	}

	summary := b.String()
	// The model sometimes drops the label.
	if !found {
		summary = strings.Join(strings.Fields(response), " ")
	}
	if summary == "" {
		return "", fmt.Errorf("could not parse Gemini response: empty summary")
	}
	return summary, nil
}
