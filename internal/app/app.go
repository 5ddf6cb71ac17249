// Package app runs the poll loop: fetch every source, skip what was already
// handled, then filter, enrich, caption and publish the rest in order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/animenews/internal/gemini"
	"github.com/deusflow/animenews/internal/logger"
	"github.com/deusflow/animenews/internal/metrics"
	"github.com/deusflow/animenews/internal/news"
	"github.com/deusflow/animenews/internal/normalize"
	"github.com/deusflow/animenews/internal/scraper"
)

// Options wires an App. Summarizer, Pages and Metrics are optional.
type Options struct {
	Sources    []news.Source
	Fetchers   map[news.Strategy]Fetcher
	Filter     *news.Filter
	Store      MarkerStore
	Pages      PageFetcher
	Resolver   Resolver
	Summarizer Summarizer
	Publisher  Publisher
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	PollInterval     time.Duration
	PostDelay        time.Duration
	BootstrapItems   int
	MaxItemsPerCycle int
	CaptionMaxRunes  int
}

type App struct {
	opts    Options
	metrics *metrics.Metrics
	log     *slog.Logger

	// sleep waits between posts; replaced in tests.
	sleep func(time.Duration)

	mu sync.Mutex

	// dated holds the publish time of each source's marker item, by source
	// key, while it is known.
	dated map[string]datedMarker
}

type datedMarker struct {
	id string
	at time.Time
}

func New(opts Options) *App {
	log := logger.OrDefault(opts.Logger)
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	if opts.Filter == nil {
		opts.Filter = news.NewFilter(news.DefaultAllowKeywords, news.DefaultDenyKeywords, nil)
	}
	return &App{opts: opts, metrics: m, log: log, sleep: time.Sleep, dated: make(map[string]datedMarker)}
}

// Run polls until ctx is cancelled. A cycle that has started always runs to
// completion; cancellation only prevents the next one.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("poll loop started", "sources", len(a.opts.Sources), "interval", a.opts.PollInterval)
	for {
		if err := a.RunOnce(context.WithoutCancel(ctx)); err != nil {
			a.log.Warn("cycle finished with errors", "error", err)
		}

		timer := time.NewTimer(a.opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.log.Info("poll loop stopped")
			return nil
		case <-timer.C:
		}
	}
}

// RunOnce processes every source once, sequentially. Failures are contained
// per source and returned joined.
func (a *App) RunOnce(ctx context.Context) error {
	start := time.Now()
	log := a.log.With("cycle", uuid.NewString()[:8])
	log.Info("cycle started")

	var errs []error
	for _, src := range a.opts.Sources {
		if err := a.processSource(ctx, log.With("source", src.Name), src); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
		}
	}

	elapsed := time.Since(start)
	a.metrics.RecordCycleTime(elapsed)
	err := errors.Join(errs...)
	if err != nil {
		a.metrics.SetError(err.Error())
	} else {
		a.metrics.SetLastRun()
	}
	log.Info("cycle finished", "duration", elapsed, "failed_sources", len(errs))
	return err
}

func (a *App) processSource(ctx context.Context, log *slog.Logger, src news.Source) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("source panicked", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	fetcher, ok := a.opts.Fetchers[src.Strategy]
	if !ok {
		return fmt.Errorf("no fetcher for strategy %q", src.Strategy)
	}

	items, err := fetcher.Fetch(ctx, src)
	if err != nil {
		a.metrics.IncrementFetchErrors()
		log.Error("fetch failed", "error", err)
		return err
	}
	a.metrics.AddFetched(len(items))

	items = OldestFirst(items)
	marker, hasMarker := a.opts.Store.Marker(ctx, src.Key())
	markerAt := a.markerTime(src, marker, items)
	unseen := SelectUnseen(items, marker, hasMarker, markerAt, a.opts.BootstrapItems, a.opts.MaxItemsPerCycle)
	a.metrics.AddDuplicatesSkipped(len(items) - len(unseen))
	log.Info("source fetched", "items", len(items), "unseen", len(unseen), "marker", marker)

	// First run with nothing selected: remember the newest item so the
	// backlog stays skipped.
	if !hasMarker && len(unseen) == 0 && len(items) > 0 {
		return a.advance(ctx, log, src, items[len(items)-1])
	}

	var storeErrs []error
	for i, item := range unseen {
		published, err := a.processItem(ctx, log.With("item", item.ID), src, item)
		if err != nil {
			storeErrs = append(storeErrs, err)
		}
		if published && i < len(unseen)-1 && a.opts.PostDelay > 0 {
			a.sleep(a.opts.PostDelay)
		}
	}
	return errors.Join(storeErrs...)
}

// processItem handles one unseen item and advances the marker past it. The
// returned error is a marker write failure; it is logged and the caller
// moves on to the next item.
func (a *App) processItem(ctx context.Context, log *slog.Logger, src news.Source, item news.RawItem) (bool, error) {
	if d := a.opts.Filter.Decide(item); !d.Relevant {
		a.metrics.IncrementFiltered()
		log.Debug("item filtered", "title", item.Title, "reason", d.Reason, "keyword", d.Keyword)
		return false, a.advance(ctx, log, src, item)
	}

	page := a.fillBody(ctx, log, &item)
	enriched := a.opts.Resolver.Resolve(ctx, item, page)
	enriched.Caption = normalize.Caption(item.Title, a.body(ctx, log, item), item.SourceName, a.opts.CaptionMaxRunes)

	res := a.opts.Publisher.Publish(ctx, enriched)
	if res.OK() {
		log.Info("item published", "title", item.Title, "kind", res.Kind)
	} else {
		log.Error("item not published", "title", item.Title, "error", res.Reason)
	}
	return res.OK(), a.advance(ctx, log, src, item)
}

// fillBody fetches the article page for items that came without a body and
// extracts the readable text. The fetched page is returned for media
// resolution.
func (a *App) fillBody(ctx context.Context, log *slog.Logger, item *news.RawItem) []byte {
	if strings.TrimSpace(item.SummaryOrBody) != "" || item.Link == "" || a.opts.Pages == nil {
		return nil
	}
	page, err := a.opts.Pages.FetchPage(ctx, item.Link)
	if err != nil {
		log.Warn("article fetch failed", "url", item.Link, "error", err)
		return nil
	}
	article, err := scraper.ExtractArticle(page, item.Link)
	if err != nil {
		log.Warn("article extraction failed", "url", item.Link, "error", err)
		return page
	}
	item.SummaryOrBody = article.Content
	return page
}

func (a *App) body(ctx context.Context, log *slog.Logger, item news.RawItem) string {
	if a.opts.Summarizer == nil {
		return item.SummaryOrBody
	}
	summary, err := a.opts.Summarizer.Summarize(ctx, item.Title, item.SummaryOrBody)
	switch {
	case errors.Is(err, gemini.ErrSkipped):
		return item.SummaryOrBody
	case err != nil:
		log.Warn("summary failed", "error", err)
		return item.SummaryOrBody
	}
	return normalize.Escape(summary)
}

func (a *App) advance(ctx context.Context, log *slog.Logger, src news.Source, item news.RawItem) error {
	if err := a.opts.Store.SetMarker(ctx, src.Key(), item.ID); err != nil {
		a.metrics.IncrementStorageErrors()
		log.Error("marker not saved", "id", item.ID, "error", err)
		return err
	}
	a.remember(src, item)
	return nil
}

// remember records the publish time of the new marker item, or forgets the
// old one when the item is undated.
func (a *App) remember(src news.Source, item news.RawItem) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if item.PublishedAt == nil {
		delete(a.dated, src.Key())
		return
	}
	a.dated[src.Key()] = datedMarker{id: item.ID, at: *item.PublishedAt}
}

// markerTime returns the publish time of the marker item: from the listing
// when it is still there, otherwise from the last time it was seen. Zero
// means unknown.
func (a *App) markerTime(src news.Source, marker string, items []news.RawItem) time.Time {
	for _, it := range items {
		if it.ID == marker && it.PublishedAt != nil {
			a.remember(src, it)
			return *it.PublishedAt
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if d, ok := a.dated[src.Key()]; ok && d.id == marker {
		return d.at
	}
	return time.Time{}
}

// OldestFirst reverses the fetch order (feeds list newest first), then
// orders by publish time when every item has one.
func OldestFirst(items []news.RawItem) []news.RawItem {
	out := make([]news.RawItem, len(items))
	for i, it := range items {
		out[len(items)-1-i] = it
	}
	for _, it := range out {
		if it.PublishedAt == nil {
			return out
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.Before(*out[j].PublishedAt)
	})
	return out
}

// SelectUnseen picks the items to process from an oldest-first list.
// With a marker in the list: everything after it. With a marker that is no
// longer listed: everything, minus items dated at or before markerAt when
// that is known. Without a marker: the newest bootstrap items. The result is
// capped at max (<= 0 means no cap), keeping the oldest.
func SelectUnseen(items []news.RawItem, marker string, hasMarker bool, markerAt time.Time, bootstrap, max int) []news.RawItem {
	var out []news.RawItem
	switch {
	case hasMarker:
		out = afterMarker(items, marker, markerAt)
	case bootstrap > 0:
		out = items[len(items)-min(bootstrap, len(items)):]
	}
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}

func afterMarker(items []news.RawItem, marker string, markerAt time.Time) []news.RawItem {
	for i, it := range items {
		if it.ID == marker {
			return items[i+1:]
		}
	}
	if markerAt.IsZero() {
		return items
	}
	var out []news.RawItem
	for _, it := range items {
		if it.PublishedAt == nil || it.PublishedAt.After(markerAt) {
			out = append(out, it)
		}
	}
	return out
}
