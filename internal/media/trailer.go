package media

import (
	"context"
	"regexp"
	"strings"

	"github.com/deusflow/animenews/internal/cache"
	"github.com/deusflow/animenews/internal/news"
	"github.com/deusflow/animenews/internal/ratelimit"
)

// TrailerKeywords mark an item as trailer related.
var TrailerKeywords = []string{
	"trailer", "teaser", "key visual", "promo video", "pv", "cm",
	"commercial", "opening movie",
}

var shortKeywordRes = map[string]*regexp.Regexp{}

func init() {
	for _, k := range TrailerKeywords {
		if !strings.Contains(k, " ") && len(k) <= 3 {
			shortKeywordRes[k] = regexp.MustCompile(`\b` + regexp.QuoteMeta(k) + `\b`)
		}
	}
}

// IsTrailerRelated checks title and summary for trailer keywords.
func IsTrailerRelated(item news.RawItem) bool {
	return containsAny(item.Text(), TrailerKeywords)
}

func containsAny(text string, keywords []string) bool {
	text = strings.ToLower(text)

	for _, k := range keywords {
		// Short tokens (<=3) -> whole word match
		if re, ok := shortKeywordRes[k]; ok {
			if re.MatchString(text) {
				return true
			}
			continue
		}
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

var (
	punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	yearRe  = regexp.MustCompile(`\b\d{4}\b`)
)

var genericLeadWords = map[string]bool{
	"new": true, "the": true, "a": true, "anime": true, "tv": true,
}

// CleanTitle prepares a headline for a metadata search: punctuation and
// four-digit years are removed and generic leading words dropped.
func CleanTitle(title string) string {
	t := punctRe.ReplaceAllString(title, " ")
	t = yearRe.ReplaceAllString(t, " ")
	words := strings.Fields(t)
	for len(words) > 0 && genericLeadWords[strings.ToLower(words[0])] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

// ResolveTrailer asks the metadata service about a trailer item. Misses,
// errors and an exhausted budget all yield nil.
func (r *Resolver) ResolveTrailer(ctx context.Context, item news.RawItem) *news.TrailerInfo {
	if r.trailers == nil || !IsTrailerRelated(item) {
		return nil
	}
	query := CleanTitle(item.Title)
	if query == "" {
		return nil
	}

	key := cache.GenerateKey("trailer", query)
	if r.cache != nil {
		if v, ok := r.cache.Get(key); ok {
			if r.metrics != nil {
				r.metrics.IncrementTrailerCacheHits()
			}
			info, _ := v.(*news.TrailerInfo)
			return info
		}
	}

	if r.budget != nil {
		if err := r.budget.Use(ratelimit.AniList); err != nil {
			r.log.Warn("trailer lookup skipped", "source", item.SourceName, "item", item.ID, "error", err)
			return nil
		}
	}
	if r.metrics != nil {
		r.metrics.IncrementTrailerLookups()
	}

	info, err := r.trailers.Lookup(ctx, query)
	if err != nil {
		// Errors are not cached so the next cycle may retry.
		r.log.Warn("trailer lookup failed", "source", item.SourceName, "item", item.ID, "query", query, "error", err)
		return nil
	}
	if info != nil && info.TrailerURL == "" {
		r.log.Debug("trailer metadata without video", "source", item.SourceName, "item", item.ID, "title", info.Title)
	}
	if r.cache != nil {
		r.cache.Set(key, info, r.cacheTTL)
	}
	return info
}
