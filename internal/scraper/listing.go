package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	nurl "net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/animenews/internal/news"
)

// PageGetter downloads a page body.
type PageGetter interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// listingLayout lists alternative selectors for one site layout. The first
// selector that matches wins.
type listingLayout struct {
	items   []string
	title   []string
	link    []string // empty match falls back to the item itself when it is an <a>
	summary []string
	image   []string
}

var listingLayouts = map[news.Strategy]listingLayout{
	news.StrategyMyAnimeList: {
		items:   []string{"div.news-unit", ".news-unit.clearfix"},
		title:   []string{"p.title a", "a.title", ".title"},
		link:    []string{"p.title a", "a.title", "a"},
		summary: []string{"div.text", "div.news-content"},
		image:   []string{"img.image", "img.news-unit-image", "img"},
	},
	news.StrategyCrunchyroll: {
		items:   []string{"div.article-card", "a.news-card__link"},
		title:   []string{"h3.title", ".news-card__title", "h3"},
		link:    []string{"a"},
		summary: []string{"div.content", ".news-card__description", "p"},
		image:   []string{"img.article-hero__image", "img"},
	},
	news.StrategyHTML: {
		items:   []string{"article", ".post", ".news-item", "li.news"},
		title:   []string{"h2", "h3", "h1", "a"},
		link:    []string{"h2 a", "h3 a", "a"},
		summary: []string{"p", ".summary", ".excerpt"},
		image:   []string{"img"},
	},
}

// ListingScraper reads news items from HTML listing pages.
type ListingScraper struct {
	pages PageGetter
	log   *slog.Logger
}

func NewListingScraper(pages PageGetter, log *slog.Logger) *ListingScraper {
	if log == nil {
		log = slog.Default()
	}
	return &ListingScraper{pages: pages, log: log}
}

// Fetch returns the listing's items newest first, as the page shows them.
func (s *ListingScraper) Fetch(ctx context.Context, src news.Source) ([]news.RawItem, error) {
	layout, ok := listingLayouts[src.Strategy]
	if !ok {
		return nil, &news.FetchError{SourceKey: src.Key(), URL: src.URL,
			Err: fmt.Errorf("no listing layout for strategy %q", src.Strategy)}
	}

	data, err := s.pages.FetchPage(ctx, src.URL)
	if err != nil {
		return nil, &news.FetchError{SourceKey: src.Key(), URL: src.URL, Err: err}
	}

	items, err := parseListing(data, src, layout)
	if err != nil {
		return nil, &news.FetchError{SourceKey: src.Key(), URL: src.URL, Err: err}
	}

	s.log.Debug("listing scraped", "source", src.Name, "items", len(items))
	return items, nil
}

// parseListing extracts items from listing markup using the layout selectors.
func parseListing(data []byte, src news.Source, layout listingLayout) ([]news.RawItem, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing HTML: %w", err)
	}
	base, err := nurl.Parse(src.URL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}

	var sel *goquery.Selection
	for _, q := range layout.items {
		if found := doc.Find(q); found.Length() > 0 {
			sel = found
			break
		}
	}
	if sel == nil {
		return nil, fmt.Errorf("no items matched %v", layout.items)
	}

	var items []news.RawItem
	seen := make(map[string]bool)
	sel.Each(func(_ int, item *goquery.Selection) {
		title := strings.TrimSpace(firstText(item, layout.title))
		href := firstAttr(item, layout.link, "href")
		if href == "" && goquery.NodeName(item) == "a" {
			href, _ = item.Attr("href")
		}
		link := resolve(base, href)
		if title == "" || link == "" || seen[link] {
			return
		}
		seen[link] = true

		raw := news.RawItem{
			ID:            link,
			Title:         title,
			SummaryOrBody: strings.TrimSpace(firstText(item, layout.summary)),
			Link:          link,
			SourceKey:     src.Key(),
			SourceName:    src.Name,
		}
		if img := firstImage(item, layout.image); img != "" {
			raw.Media.Thumbnails = []string{resolve(base, img)}
		}
		items = append(items, raw)
	})

	return items, nil
}

func firstText(s *goquery.Selection, selectors []string) string {
	for _, q := range selectors {
		if t := strings.TrimSpace(s.Find(q).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func firstAttr(s *goquery.Selection, selectors []string, attr string) string {
	for _, q := range selectors {
		if v, ok := s.Find(q).First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// firstImage prefers lazy-load data-src over src and skips data: URIs.
func firstImage(s *goquery.Selection, selectors []string) string {
	for _, q := range selectors {
		img := s.Find(q).First()
		if img.Length() == 0 {
			continue
		}
		for _, attr := range []string{"data-src", "src"} {
			if v, ok := img.Attr(attr); ok {
				v = strings.TrimSpace(v)
				if v != "" && !strings.HasPrefix(v, "data:") {
					return v
				}
			}
		}
	}
	return ""
}

func resolve(base *nurl.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "javascript:") || strings.HasPrefix(ref, "#") {
		return ""
	}
	u, err := nurl.Parse(ref)
	if err != nil {
		return ""
	}
	return base.ResolveReference(u).String()
}
