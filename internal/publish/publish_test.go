package publish

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deusflow/animenews/internal/download"
	"github.com/deusflow/animenews/internal/logger"
	"github.com/deusflow/animenews/internal/metrics"
	"github.com/deusflow/animenews/internal/news"
	"github.com/deusflow/animenews/internal/telegram"
)

type call struct {
	method  string
	file    telegram.InputFile
	urls    []string
	caption string
}

type fakePublisher struct {
	calls []call
	fail  map[string]error
}

func (f *fakePublisher) record(c call) error {
	f.calls = append(f.calls, c)
	if err, ok := f.fail[c.method]; ok {
		return err
	}
	// "image:url" / "image:path" let tests fail one flavour only.
	if c.method == "image" {
		key := "image:url"
		if c.file.Path != "" {
			key = "image:path"
		}
		return f.fail[key]
	}
	return nil
}

func (f *fakePublisher) SendText(_ context.Context, text string) error {
	return f.record(call{method: "text", caption: text})
}

func (f *fakePublisher) SendImage(_ context.Context, photo telegram.InputFile, caption string) error {
	return f.record(call{method: "image", file: photo, caption: caption})
}

func (f *fakePublisher) SendVideo(_ context.Context, video telegram.InputFile, caption string) error {
	return f.record(call{method: "video", file: video, caption: caption})
}

func (f *fakePublisher) SendGallery(_ context.Context, urls []string, caption string) error {
	return f.record(call{method: "gallery", urls: urls, caption: caption})
}

func (f *fakePublisher) methods() []string {
	var out []string
	for _, c := range f.calls {
		out = append(out, c.method)
	}
	return out
}

type fakeDownloader struct {
	dir      string
	videoErr error
	imageErr error
	files    []string
}

func (d *fakeDownloader) create(t string) (*download.File, error) {
	path := filepath.Join(d.dir, t+"-"+string(rune('a'+len(d.files))))
	if err := os.WriteFile(path, []byte(t), 0o600); err != nil {
		return nil, err
	}
	d.files = append(d.files, path)
	return &download.File{Path: path}, nil
}

func (d *fakeDownloader) Video(context.Context, string) (*download.File, error) {
	if d.videoErr != nil {
		return nil, d.videoErr
	}
	return d.create("video")
}

func (d *fakeDownloader) Image(context.Context, string) (*download.File, error) {
	if d.imageErr != nil {
		return nil, d.imageErr
	}
	return d.create("image")
}

func (d *fakeDownloader) requireCleaned(t *testing.T) {
	t.Helper()
	for _, p := range d.files {
		_, err := os.Stat(p)
		require.True(t, os.IsNotExist(err), "temp file left behind: %s", p)
	}
}

func setup(t *testing.T) (*fakePublisher, *fakeDownloader, *metrics.Metrics, *Orchestrator) {
	pub := &fakePublisher{fail: map[string]error{}}
	dl := &fakeDownloader{dir: t.TempDir()}
	m := metrics.New()
	return pub, dl, m, New(pub, dl, m, logger.Discard())
}

func baseItem() news.EnrichedItem {
	return news.EnrichedItem{
		RawItem: news.RawItem{ID: "1", Title: "Frieren Trailer", Link: "https://example.com/a?b=1&c=2", SourceName: "ANN"},
		Caption: "<b>Frieren Trailer</b>",
	}
}

func TestPublish_Trailer(t *testing.T) {
	pub, dl, m, o := setup(t)
	item := baseItem()
	item.VideoURL = "https://youtu.be/abc"
	item.ImageURL = "https://cdn/a.jpg"
	item.Trailer = &news.TrailerInfo{Title: "Frieren", ReleaseDate: "2026-01-10", Studio: "Madhouse"}

	res := o.Publish(context.Background(), item)
	require.Equal(t, news.Published(news.KindVideo), res)
	require.Equal(t, []string{"video", "text"}, pub.methods())
	require.NotEmpty(t, pub.calls[0].file.Path)
	require.Contains(t, pub.calls[0].caption, "Madhouse")
	require.Contains(t, pub.calls[0].caption, "2026-01-10")
	require.Equal(t, item.Caption, pub.calls[1].caption)
	require.Equal(t, int64(1), m.Published["video"])
	dl.requireCleaned(t)
}

func TestPublish_FollowUpFailureKeepsVideo(t *testing.T) {
	pub, dl, _, o := setup(t)
	pub.fail["text"] = errors.New("flood")
	item := baseItem()
	item.VideoURL = "https://youtu.be/abc"

	require.Equal(t, news.Published(news.KindVideo), o.Publish(context.Background(), item))
	dl.requireCleaned(t)
}

func TestPublish_VideoDownloadFailsFallsToImage(t *testing.T) {
	pub, dl, _, o := setup(t)
	dl.videoErr = errors.New("yt-dlp failed")
	item := baseItem()
	item.VideoURL = "https://youtu.be/abc"
	item.ImageURL = "https://cdn/a.jpg"

	require.Equal(t, news.Published(news.KindImage), o.Publish(context.Background(), item))
	require.Equal(t, []string{"image"}, pub.methods())
	require.Equal(t, "https://cdn/a.jpg", pub.calls[0].file.URL)
}

func TestPublish_VideoSendFailsFallsToText(t *testing.T) {
	pub, dl, _, o := setup(t)
	pub.fail["video"] = errors.New("too big")
	item := baseItem()
	item.VideoURL = "https://cdn/v.mp4"

	require.Equal(t, news.Published(news.KindText), o.Publish(context.Background(), item))
	require.Equal(t, []string{"video", "text"}, pub.methods())
	dl.requireCleaned(t)
}

func TestPublish_Gallery(t *testing.T) {
	pub, _, _, o := setup(t)
	item := baseItem()
	item.ImageURL = "https://cdn/1.jpg"
	item.Gallery = []string{"https://cdn/1.jpg", "https://cdn/2.jpg"}

	require.Equal(t, news.Published(news.KindGallery), o.Publish(context.Background(), item))
	require.Equal(t, item.Gallery, pub.calls[0].urls)
}

func TestPublish_GalleryFailsFallsToImage(t *testing.T) {
	pub, _, _, o := setup(t)
	pub.fail["gallery"] = errors.New("bad group")
	item := baseItem()
	item.ImageURL = "https://cdn/1.jpg"
	item.Gallery = []string{"https://cdn/1.jpg", "https://cdn/2.jpg"}

	require.Equal(t, news.Published(news.KindImage), o.Publish(context.Background(), item))
	require.Equal(t, []string{"gallery", "image"}, pub.methods())
}

func TestPublish_SingleImageIsNotAGallery(t *testing.T) {
	pub, _, _, o := setup(t)
	item := baseItem()
	item.ImageURL = "https://cdn/1.jpg"
	item.Gallery = []string{"https://cdn/1.jpg"}

	require.Equal(t, news.Published(news.KindImage), o.Publish(context.Background(), item))
	require.Equal(t, []string{"image"}, pub.methods())
}

func TestPublish_ImageRejectedThenUploaded(t *testing.T) {
	pub, dl, _, o := setup(t)
	pub.fail["image:url"] = errors.New("wrong file identifier")
	item := baseItem()
	item.ImageURL = "https://cdn/a.webp"

	require.Equal(t, news.Published(news.KindImage), o.Publish(context.Background(), item))
	require.Equal(t, []string{"image", "image"}, pub.methods())
	require.NotEmpty(t, pub.calls[1].file.Path)
	dl.requireCleaned(t)
}

func TestPublish_ImageFailureFallsToText(t *testing.T) {
	pub, dl, _, o := setup(t)
	pub.fail["image"] = errors.New("rejected")
	item := baseItem()
	item.ImageURL = "https://cdn/a.jpg"

	res := o.Publish(context.Background(), item)
	require.Equal(t, news.Published(news.KindText), res)
	require.Equal(t, []string{"image", "image", "text"}, pub.methods())
	require.Equal(t, "<b>Frieren Trailer</b>\nhttps://example.com/a?b=1&amp;c=2", pub.calls[2].caption)
	dl.requireCleaned(t)
}

func TestPublish_AllFail(t *testing.T) {
	pub, dl, m, o := setup(t)
	pub.fail["image"] = errors.New("image down")
	pub.fail["text"] = errors.New("text down")
	dl.imageErr = errors.New("404")
	item := baseItem()
	item.ImageURL = "https://cdn/a.jpg"

	res := o.Publish(context.Background(), item)
	require.False(t, res.OK())
	require.ErrorContains(t, res.Reason, "image down")
	require.ErrorContains(t, res.Reason, "text down")
	require.ErrorContains(t, res.Reason, "404")

	var perr *news.PublishError
	require.ErrorAs(t, res.Reason, &perr)
	require.Equal(t, int64(1), m.PublishFailures)
}

func TestTrailerCaption(t *testing.T) {
	item := baseItem()
	require.Equal(t, "<b>🎬 Frieren Trailer</b>", TrailerCaption(item))

	item.Trailer = &news.TrailerInfo{Title: "Tom & Jerry"}
	require.Equal(t, "<b>🎬 Tom &amp; Jerry</b>\n📅 Release: Unknown\n🏢 Studio: Unknown", TrailerCaption(item))
}
