package news

import (
	"fmt"
	"strings"
	"time"
)

// Strategy tells the app which fetcher reads a source.
type Strategy string

const (
	StrategyFeed        Strategy = "feed"
	StrategyMyAnimeList Strategy = "myanimelist"
	StrategyCrunchyroll Strategy = "crunchyroll"
	StrategyHTML        Strategy = "html"
)

// ParseStrategy maps a config tag to a Strategy. Empty means feed.
func ParseStrategy(tag string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(tag))); s {
	case "", "rss", "atom":
		return StrategyFeed, nil
	case StrategyFeed, StrategyMyAnimeList, StrategyCrunchyroll, StrategyHTML:
		return s, nil
	default:
		return "", fmt.Errorf("unknown source strategy %q", tag)
	}
}

// Source is one configured feed or news page. URL is its unique key.
type Source struct {
	Name     string
	URL      string
	Strategy Strategy
}

// Key returns the identity used for markers and logs.
func (s Source) Key() string {
	return s.URL
}

// MediaContent is a media:content entry attached to a feed item.
type MediaContent struct {
	URL    string
	Medium string
	Type   string
}

// Enclosure is an RSS enclosure link.
type Enclosure struct {
	URL  string
	Type string
}

// Media holds structured media metadata found by the fetcher.
type Media struct {
	Thumbnails []string
	Contents   []MediaContent
	Enclosures []Enclosure
}

// RawItem is one candidate entry produced by a fetcher.
type RawItem struct {
	ID            string
	Title         string
	SummaryOrBody string
	PublishedAt   *time.Time
	Link          string
	SourceKey     string
	SourceName    string
	Media         Media
}

// Text is what the relevance filter looks at.
func (r RawItem) Text() string {
	return r.Title + " " + r.SummaryOrBody
}

// TrailerInfo is what the trailer metadata service knows about a title.
type TrailerInfo struct {
	Title       string
	TrailerURL  string
	ReleaseDate string
	Studio      string
}

// EnrichedItem is a RawItem ready for publishing.
type EnrichedItem struct {
	RawItem
	ImageURL string
	Gallery  []string
	VideoURL string
	Trailer  *TrailerInfo
	Caption  string
}

// Kind is the representation an item was published as.
type Kind string

const (
	KindVideo   Kind = "video"
	KindGallery Kind = "gallery"
	KindImage   Kind = "image"
	KindText    Kind = "text"
)

// PublishResult is the outcome of one publish attempt.
type PublishResult struct {
	Kind   Kind
	Reason error
}

// Published reports a successful send of the given kind.
func Published(kind Kind) PublishResult {
	return PublishResult{Kind: kind}
}

// Failed reports an exhausted ladder.
func Failed(reason error) PublishResult {
	return PublishResult{Reason: reason}
}

// OK is true when something reached the channel.
func (r PublishResult) OK() bool {
	return r.Reason == nil && r.Kind != ""
}

func (r PublishResult) String() string {
	if r.OK() {
		return "published(" + string(r.Kind) + ")"
	}
	return fmt.Sprintf("failed(%v)", r.Reason)
}
