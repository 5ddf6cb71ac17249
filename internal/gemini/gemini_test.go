package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deusflow/animenews/internal/logger"
	"github.com/deusflow/animenews/internal/ratelimit"
)

type fakeGen struct {
	resp    string
	err     error
	prompts []string
}

func (f *fakeGen) generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.resp, f.err
}

func newTestClient(gen generator, budget *ratelimit.BudgetLimiter) *Client {
	return &Client{gen: gen, budget: budget, log: logger.Discard()}
}

func longBody() string {
	return "<p>" + strings.Repeat("Studio Trigger announced a new season. ", 60) + "</p>"
}

func TestSummarize(t *testing.T) {
	gen := &fakeGen{resp: "SUMMARY: Trigger confirms a second season.\nIt airs in spring."}
	c := newTestClient(gen, nil)

	got, err := c.Summarize(context.Background(), "Kill la Kill", longBody())
	require.NoError(t, err)
	require.Equal(t, "Trigger confirms a second season. It airs in spring.", got)
	require.Len(t, gen.prompts, 1)
	require.Contains(t, gen.prompts[0], "Title: Kill la Kill")
	require.NotContains(t, gen.prompts[0], "<p>")
}

func TestSummarize_ShortBodySkipped(t *testing.T) {
	gen := &fakeGen{}
	_, err := newTestClient(gen, nil).Summarize(context.Background(), "t", "short body")
	require.ErrorIs(t, err, ErrSkipped)
	require.Empty(t, gen.prompts)
}

func TestSummarize_Budget(t *testing.T) {
	gen := &fakeGen{resp: "SUMMARY: ok"}
	c := newTestClient(gen, ratelimit.NewBudgetLimiter(map[string]int{ratelimit.Gemini: 1}, logger.Discard()))

	_, err := c.Summarize(context.Background(), "t", longBody())
	require.NoError(t, err)
	_, err = c.Summarize(context.Background(), "t", longBody())
	require.ErrorContains(t, err, "rate limit exceeded")
	require.Len(t, gen.prompts, 1)
}

func TestSummarize_ModelError(t *testing.T) {
	_, err := newTestClient(&fakeGen{err: errors.New("quota")}, nil).Summarize(context.Background(), "t", longBody())
	require.ErrorContains(t, err, "quota")
}

func TestParseSummary(t *testing.T) {
	got, err := parseSummary("Here you go:\n**Summary:** A film was announced.")
	require.NoError(t, err)
	require.Equal(t, "A film was announced.", got)

	got, err = parseSummary("  A film was   announced. ")
	require.NoError(t, err)
	require.Equal(t, "A film was announced.", got)

	_, err = parseSummary("SUMMARY:")
	require.Error(t, err)
}

func TestCleanContent_Truncates(t *testing.T) {
	body := strings.Repeat("Sentence number one goes here. ", 400)
	got := cleanContent(body)
	require.True(t, strings.HasSuffix(got, ".\n[TRUNCATED]"))
	require.LessOrEqual(t, len([]rune(got)), maxPromptChars+len("\n[TRUNCATED]"))
}
