// Package rss reads RSS and Atom feeds into raw news items.
package rss

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/deusflow/animenews/internal/news"
)

// PageGetter downloads the raw feed document.
type PageGetter interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// Fetcher downloads and parses feeds.
type Fetcher struct {
	pages  PageGetter
	parser *gofeed.Parser
	log    *slog.Logger
}

func NewFetcher(pages PageGetter, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{
		pages:  pages,
		parser: gofeed.NewParser(),
		log:    log,
	}
}

// Fetch returns the feed's items in document order.
func (f *Fetcher) Fetch(ctx context.Context, src news.Source) ([]news.RawItem, error) {
	data, err := f.pages.FetchPage(ctx, src.URL)
	if err != nil {
		return nil, &news.FetchError{SourceKey: src.Key(), URL: src.URL, Err: err}
	}

	items, err := f.Parse(data, src)
	if err != nil {
		return nil, &news.FetchError{SourceKey: src.Key(), URL: src.URL, Err: err}
	}

	f.log.Debug("feed loaded", "source", src.Name, "items", len(items))
	return items, nil
}

// Parse converts a feed document into raw items for src.
func (f *Fetcher) Parse(data []byte, src news.Source) ([]news.RawItem, error) {
	feed, err := f.parser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]news.RawItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		raw := normalizeItem(item, src)
		if raw.ID == "" {
			continue
		}
		items = append(items, raw)
	}
	return items, nil
}

func normalizeItem(item *gofeed.Item, src news.Source) news.RawItem {
	body := item.Content
	if strings.TrimSpace(body) == "" {
		body = item.Description
	}

	raw := news.RawItem{
		ID:            coalesce(item.GUID, item.Link),
		Title:         strings.TrimSpace(item.Title),
		SummaryOrBody: body,
		Link:          strings.TrimSpace(item.Link),
		SourceKey:     src.Key(),
		SourceName:    src.Name,
		Media:         extractMedia(item),
	}
	if item.PublishedParsed != nil {
		raw.PublishedAt = item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		raw.PublishedAt = item.UpdatedParsed
	}
	return raw
}

// extractMedia reads Media RSS (media:content, media:thumbnail, also inside
// media:group), the item image and enclosures.
func extractMedia(item *gofeed.Item) news.Media {
	var m news.Media

	if media, ok := item.Extensions["media"]; ok {
		collectMedia(media, &m)
		for _, group := range media["group"] {
			collectMedia(group.Children, &m)
		}
	}

	if item.Image != nil && item.Image.URL != "" {
		m.Thumbnails = append(m.Thumbnails, item.Image.URL)
	}

	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		m.Enclosures = append(m.Enclosures, news.Enclosure{URL: enc.URL, Type: enc.Type})
	}

	m.Thumbnails = dedupe(m.Thumbnails)
	return m
}

func dedupe(in []string) []string {
	if len(in) < 2 {
		return in
	}
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func collectMedia(media map[string][]ext.Extension, m *news.Media) {
	for _, c := range media["content"] {
		if u := c.Attrs["url"]; u != "" {
			m.Contents = append(m.Contents, news.MediaContent{
				URL:    u,
				Medium: c.Attrs["medium"],
				Type:   c.Attrs["type"],
			})
		}
		for _, t := range c.Children["thumbnail"] {
			if u := t.Attrs["url"]; u != "" {
				m.Thumbnails = append(m.Thumbnails, u)
			}
		}
	}
	for _, t := range media["thumbnail"] {
		if u := t.Attrs["url"]; u != "" {
			m.Thumbnails = append(m.Thumbnails, u)
		}
	}
}

// coalesce returns the first non-empty string from the provided values
func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
