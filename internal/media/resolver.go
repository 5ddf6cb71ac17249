// Package media finds the image, gallery and trailer video for a news item.
package media

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/deusflow/animenews/internal/cache"
	"github.com/deusflow/animenews/internal/metrics"
	"github.com/deusflow/animenews/internal/news"
	"github.com/deusflow/animenews/internal/ratelimit"
)

// MaxGallery is Telegram's media group limit.
const MaxGallery = 10

// PageFetcher downloads an item's target page.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// TrailerService looks up trailer metadata by title. A nil result without an
// error means no match.
type TrailerService interface {
	Lookup(ctx context.Context, title string) (*news.TrailerInfo, error)
}

// Options wires a Resolver. Only Pages is required.
type Options struct {
	Pages    PageFetcher
	Trailers TrailerService
	Cache    *cache.Cache
	CacheTTL time.Duration
	Budget   *ratelimit.BudgetLimiter
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Resolver runs the image strategy chain and the trailer lookup.
type Resolver struct {
	pages    PageFetcher
	trailers TrailerService
	cache    *cache.Cache
	cacheTTL time.Duration
	budget   *ratelimit.BudgetLimiter
	metrics  *metrics.Metrics
	log      *slog.Logger
}

func NewResolver(opts Options) *Resolver {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Resolver{
		pages:    opts.Pages,
		trailers: opts.Trailers,
		cache:    opts.Cache,
		cacheTTL: ttl,
		budget:   opts.Budget,
		metrics:  opts.Metrics,
		log:      log,
	}
}

// lazyPage fetches the item page at most once per resolution.
type lazyPage struct {
	r       *Resolver
	item    news.RawItem
	doc     *goquery.Document
	fetched bool
}

func (p *lazyPage) get(ctx context.Context) *goquery.Document {
	if p.fetched {
		return p.doc
	}
	p.fetched = true
	p.doc = p.r.loadPage(ctx, p.item, nil)
	return p.doc
}

// Resolve builds the media part of an EnrichedItem. page is the item's
// target page when the caller already has it; otherwise it is fetched only if
// the cheaper strategies find nothing.
func (r *Resolver) Resolve(ctx context.Context, item news.RawItem, page []byte) news.EnrichedItem {
	lp := &lazyPage{r: r, item: item}
	if len(page) > 0 {
		lp.doc = r.loadPage(ctx, item, page)
		lp.fetched = true
	}

	out := news.EnrichedItem{RawItem: item}
	out.ImageURL = r.resolveImage(ctx, item, lp)

	var pageImgs []string
	if lp.doc != nil {
		pageImgs = contentImages(lp.doc, item.Link)
	}
	out.Gallery = buildGallery(out.ImageURL, bodyImages(item), pageImgs)

	if IsTrailerRelated(item) {
		out.Trailer = r.ResolveTrailer(ctx, item)
		if out.Trailer != nil && out.Trailer.TrailerURL != "" {
			out.VideoURL = out.Trailer.TrailerURL
		} else if doc := lp.get(ctx); doc != nil {
			out.VideoURL = embeddedVideo(doc)
		}
	}

	r.log.Debug("media resolved", "source", item.SourceName, "item", item.ID,
		"image", out.ImageURL, "gallery", len(out.Gallery), "video", out.VideoURL)
	return out
}

// ResolveImage runs the image chain and returns the first hit, or "".
func (r *Resolver) ResolveImage(ctx context.Context, item news.RawItem, page []byte) string {
	lp := &lazyPage{r: r, item: item}
	if len(page) > 0 {
		lp.doc = r.loadPage(ctx, item, page)
		lp.fetched = true
	}
	return r.resolveImage(ctx, item, lp)
}

// Gallery returns the distinct images of the body and the page content,
// capped at MaxGallery.
func (r *Resolver) Gallery(ctx context.Context, item news.RawItem, page []byte) []string {
	var pageImgs []string
	if len(page) > 0 {
		if doc := r.loadPage(ctx, item, page); doc != nil {
			pageImgs = contentImages(doc, item.Link)
		}
	}
	return buildGallery("", bodyImages(item), pageImgs)
}

func (r *Resolver) resolveImage(ctx context.Context, item news.RawItem, lp *lazyPage) string {
	if u := feedMediaImage(item); u != "" {
		return u
	}
	if u := enclosureImage(item); u != "" {
		return u
	}
	if imgs := bodyImages(item); len(imgs) > 0 {
		return imgs[0]
	}
	if doc := lp.get(ctx); doc != nil {
		return pageImage(doc, item.Link)
	}
	return ""
}

// loadPage parses the given markup, or fetches it when data is nil. Failures
// are logged as MediaResolutionError and yield nil.
func (r *Resolver) loadPage(ctx context.Context, item news.RawItem, data []byte) *goquery.Document {
	if data == nil {
		if r.pages == nil || item.Link == "" {
			return nil
		}
		b, err := r.pages.FetchPage(ctx, item.Link)
		if err != nil {
			r.log.Warn("page fetch failed", "source", item.SourceName, "item", item.ID,
				"error", &news.MediaResolutionError{Strategy: "page", URL: item.Link, Err: err})
			return nil
		}
		data = b
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		r.log.Warn("page parse failed", "source", item.SourceName, "item", item.ID,
			"error", &news.MediaResolutionError{Strategy: "page", URL: item.Link, Err: err})
		return nil
	}
	return doc
}

// feedMediaImage: media:content images, then thumbnails (which include the
// feed item image).
func feedMediaImage(item news.RawItem) string {
	for _, c := range item.Media.Contents {
		if c.Medium == "image" || strings.HasPrefix(c.Type, "image/") ||
			(c.Medium == "" && c.Type == "" && hasImageExt(c.URL)) {
			if u := NormalizeURL(c.URL, item.Link); u != "" {
				return u
			}
		}
	}
	for _, t := range item.Media.Thumbnails {
		if u := NormalizeURL(t, item.Link); u != "" {
			return u
		}
	}
	return ""
}

func enclosureImage(item news.RawItem) string {
	for _, e := range item.Media.Enclosures {
		if strings.HasPrefix(e.Type, "image/") || hasImageExt(e.URL) {
			if u := NormalizeURL(e.URL, item.Link); u != "" {
				return u
			}
		}
	}
	return ""
}

// bodyImages lists <img> sources in the item body, src before data-src.
func bodyImages(item news.RawItem) []string {
	if !strings.Contains(strings.ToLower(item.SummaryOrBody), "<img") {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(item.SummaryOrBody))
	if err != nil {
		return nil
	}
	var out []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if u := imgSource(s, item.Link); u != "" {
			out = append(out, u)
		}
	})
	return out
}

func imgSource(s *goquery.Selection, link string) string {
	for _, attr := range []string{"src", "data-src"} {
		if v, ok := s.Attr(attr); ok {
			if u := NormalizeURL(v, link); u != "" {
				return u
			}
		}
	}
	return ""
}

// pageImage: og:image, twitter:image, then the first real content image.
func pageImage(doc *goquery.Document, link string) string {
	for _, q := range []string{
		`meta[property="og:image"]`,
		`meta[name="og:image"]`,
		`meta[name="twitter:image"]`,
		`meta[property="twitter:image"]`,
	} {
		if v, ok := doc.Find(q).First().Attr("content"); ok {
			if u := NormalizeURL(v, link); u != "" {
				return u
			}
		}
	}
	if imgs := contentImages(doc, link); len(imgs) > 0 {
		return imgs[0]
	}
	return ""
}

func contentImages(doc *goquery.Document, link string) []string {
	var out []string
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if u := imgSource(s, link); u != "" && isRealMedia(u) {
			out = append(out, u)
		}
	})
	return out
}

// embeddedVideo returns the watch URL of the first YouTube iframe.
func embeddedVideo(doc *goquery.Document) string {
	var video string
	doc.Find("iframe").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, _ := s.Attr("src")
		if src == "" {
			src, _ = s.Attr("data-src")
		}
		video = YouTubeWatchURL(src)
		return video == ""
	})
	return video
}

func buildGallery(first string, lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(u string) {
		if u == "" || seen[u] || len(out) >= MaxGallery {
			return
		}
		seen[u] = true
		out = append(out, u)
	}
	add(first)
	for _, l := range lists {
		for _, u := range l {
			add(u)
		}
	}
	return out
}
