package news

import (
	"fmt"
	"strings"
)

// Default keyword sets used when the sources file does not define its own.
var (
	DefaultAllowKeywords = []string{
		"anime", "manga", "light novel", "trailer", "teaser", "key visual",
		"promo video", "season", "episode", "premiere", "adaptation",
		"studio", "film", "movie", "cast", "opening", "ending theme",
	}
	DefaultDenyKeywords = []string{
		"live-action", "live action", "sponsored", "giveaway", "quiz",
		"merchandise", "figure preorder",
	}
)

// Override always accepts items whose link or source contains URLContains.
type Override struct {
	Name        string
	URLContains string
}

// Decision explains why an item was kept or dropped.
type Decision struct {
	Relevant bool
	Keyword  string
	Reason   string
}

// Filter decides relevance from two static keyword sets.
type Filter struct {
	allow     []string
	deny      []string
	overrides []Override
}

// NewFilter lowercases and trims the keyword lists once.
func NewFilter(allow, deny []string, overrides []Override) *Filter {
	return &Filter{
		allow:     prepareKeywords(allow),
		deny:      prepareKeywords(deny),
		overrides: overrides,
	}
}

func prepareKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// Decide runs overrides, then deny, then allow.
func (f *Filter) Decide(item RawItem) Decision {
	for _, o := range f.overrides {
		if o.URLContains == "" {
			continue
		}
		if strings.Contains(item.Link, o.URLContains) || strings.Contains(item.SourceKey, o.URLContains) {
			return Decision{Relevant: true, Reason: fmt.Sprintf("override %q", o.Name)}
		}
	}

	text := strings.ToLower(item.Text())

	if k, ok := matchAny(text, f.deny); ok {
		return Decision{Relevant: false, Keyword: k, Reason: "deny keyword"}
	}
	if k, ok := matchAny(text, f.allow); ok {
		return Decision{Relevant: true, Keyword: k, Reason: "allow keyword"}
	}
	return Decision{Relevant: false, Reason: "no allow keyword"}
}

// IsRelevant is Decide without the explanation.
func (f *Filter) IsRelevant(item RawItem) bool {
	return f.Decide(item).Relevant
}

// matchAny returns the first keyword found in the already-lowercased text.
func matchAny(text string, keywords []string) (string, bool) {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return k, true
		}
	}
	return "", false
}
