// Package publish walks the fallback ladder that gets an item into the
// channel: video, gallery, image, then plain text.
package publish

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"

	"github.com/deusflow/animenews/internal/download"
	"github.com/deusflow/animenews/internal/logger"
	"github.com/deusflow/animenews/internal/metrics"
	"github.com/deusflow/animenews/internal/news"
	"github.com/deusflow/animenews/internal/normalize"
	"github.com/deusflow/animenews/internal/telegram"
)

// Publisher is the channel transport.
type Publisher interface {
	SendText(ctx context.Context, text string) error
	SendImage(ctx context.Context, photo telegram.InputFile, caption string) error
	SendVideo(ctx context.Context, video telegram.InputFile, caption string) error
	SendGallery(ctx context.Context, urls []string, caption string) error
}

// Downloader stores remote media as local files.
type Downloader interface {
	Image(ctx context.Context, url string) (*download.File, error)
	Video(ctx context.Context, url string) (*download.File, error)
}

type Orchestrator struct {
	pub     Publisher
	dl      Downloader
	metrics *metrics.Metrics
	log     *slog.Logger
}

func New(pub Publisher, dl Downloader, m *metrics.Metrics, log *slog.Logger) *Orchestrator {
	return &Orchestrator{pub: pub, dl: dl, metrics: m, log: logger.OrDefault(log)}
}

// Publish sends item using the richest representation that works. Every
// temporary file is removed before it returns.
func (o *Orchestrator) Publish(ctx context.Context, item news.EnrichedItem) news.PublishResult {
	log := o.log.With("source", item.SourceName, "item", item.ID)

	var temps []*download.File
	defer func() {
		for _, f := range temps {
			if err := f.Remove(); err != nil {
				log.Warn("failed to remove temp file", "path", f.Path, "error", err)
			}
		}
	}()

	var errs []error
	fail := func(step string, err error) {
		perr := &news.PublishError{Step: step, Err: err}
		log.Warn("publish step failed", "step", step, "error", err)
		errs = append(errs, perr)
	}

	if item.VideoURL != "" {
		f, err := o.dl.Video(ctx, item.VideoURL)
		if f != nil {
			temps = append(temps, f)
		}
		if err != nil {
			fail("video download", err)
		} else if err := o.pub.SendVideo(ctx, telegram.InputFile{Path: f.Path}, TrailerCaption(item)); err != nil {
			fail("video", err)
		} else {
			if err := o.pub.SendText(ctx, item.Caption); err != nil {
				log.Warn("follow-up text failed", "error", err)
			}
			return o.done(log, news.KindVideo)
		}
	}

	if len(item.Gallery) >= 2 {
		if err := o.pub.SendGallery(ctx, item.Gallery, item.Caption); err != nil {
			fail("gallery", err)
		} else {
			return o.done(log, news.KindGallery)
		}
	}

	if item.ImageURL != "" {
		if err := o.pub.SendImage(ctx, telegram.InputFile{URL: item.ImageURL}, item.Caption); err != nil {
			fail("image url", err)

			f, err := o.dl.Image(ctx, item.ImageURL)
			if f != nil {
				temps = append(temps, f)
			}
			if err != nil {
				fail("image download", err)
			} else if err := o.pub.SendImage(ctx, telegram.InputFile{Path: f.Path}, item.Caption); err != nil {
				fail("image upload", err)
			} else {
				return o.done(log, news.KindImage)
			}
		} else {
			return o.done(log, news.KindImage)
		}
	}

	if err := o.pub.SendText(ctx, TextMessage(item)); err != nil {
		fail("text", err)
	} else {
		return o.done(log, news.KindText)
	}

	if o.metrics != nil {
		o.metrics.IncrementPublishFailures()
	}
	reason := errors.Join(errs...)
	log.Error("all publish steps failed", "error", reason)
	return news.Failed(reason)
}

func (o *Orchestrator) done(log *slog.Logger, kind news.Kind) news.PublishResult {
	if o.metrics != nil {
		o.metrics.IncrementPublished(string(kind))
	}
	log.Info("published", "kind", kind)
	return news.Published(kind)
}

// TextMessage is the caption followed by the item link.
func TextMessage(item news.EnrichedItem) string {
	if item.Link == "" {
		return item.Caption
	}
	return item.Caption + "\n" + normalize.Escape(item.Link)
}

// TrailerCaption describes the anime a trailer belongs to.
func TrailerCaption(item news.EnrichedItem) string {
	t := item.Trailer
	if t == nil {
		return "<b>🎬 " + normalize.Escape(html.UnescapeString(item.Title)) + "</b>"
	}
	title := t.Title
	if title == "" {
		title = item.Title
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<b>🎬 %s</b>\n", normalize.Escape(html.UnescapeString(title)))
	fmt.Fprintf(&b, "📅 Release: %s\n", normalize.Escape(orUnknown(t.ReleaseDate)))
	fmt.Fprintf(&b, "🏢 Studio: %s", normalize.Escape(orUnknown(t.Studio)))
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
