package app

import (
	"context"

	"github.com/deusflow/animenews/internal/news"
)

// Fetcher reads the current items of one source.
type Fetcher interface {
	Fetch(ctx context.Context, src news.Source) ([]news.RawItem, error)
}

// MarkerStore remembers the last processed item per source. Marker reports
// ok=false when none is recorded or the backend cannot be read.
type MarkerStore interface {
	Marker(ctx context.Context, sourceKey string) (id string, ok bool)
	SetMarker(ctx context.Context, sourceKey, id string) error
}

// PageFetcher downloads an item's article page.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// Resolver attaches image, gallery and trailer video to an item.
type Resolver interface {
	Resolve(ctx context.Context, item news.RawItem, page []byte) news.EnrichedItem
}

// Publisher runs the publish ladder for one item.
type Publisher interface {
	Publish(ctx context.Context, item news.EnrichedItem) news.PublishResult
}

// Summarizer shortens long bodies. Optional.
type Summarizer interface {
	Summarize(ctx context.Context, title, body string) (string, error)
}
