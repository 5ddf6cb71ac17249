package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deusflow/animenews/internal/logger"
	"github.com/deusflow/animenews/internal/news"
)

func TestPageFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "animenews-test", r.Header.Get("User-Agent"))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	f := NewPageFetcher(time.Second, "animenews-test", 3, time.Millisecond)
	body, err := f.FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "<html>ok</html>", string(body))
	require.Equal(t, int32(3), calls.Load())
}

func TestPageFetcher_NoRetryOnNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewPageFetcher(time.Second, "", 5, time.Millisecond)
	_, err := f.FetchPage(context.Background(), srv.URL)
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
	require.Equal(t, int32(1), calls.Load())
}

func TestPageFetcher_RetryAfterBeyondTimeout(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "86400")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	f := NewPageFetcher(time.Second, "ua", 2, 10*time.Millisecond)
	done := make(chan error, 1)
	go func() {
		_, err := f.FetchPage(context.Background(), srv.URL)
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		require.Contains(t, err.Error(), "429")
	case <-time.After(3 * time.Second):
		t.Fatal("FetchPage waited for a day-long Retry-After")
	}
	require.Equal(t, int32(1), calls.Load())
}

func TestPageFetcher_ShortRetryAfterHonoured(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewPageFetcher(time.Second, "ua", 2, time.Millisecond)
	body, err := f.FetchPage(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
	require.Equal(t, int32(2), calls.Load())
}

const malListing = `<html><body>
<div class="news-unit clearfix">
  <a class="image-link" href="/news/100"><img class="image" data-src="https://cdn.myanimelist.net/s/common/uploaded_files/100.jpg" src="data:image/gif;base64,AAAA"></a>
  <div class="news-unit-right">
    <p class="title"><a href="https://myanimelist.net/news/100">Frieren Season 2 Announced</a></p>
    <div class="text">The anime returns in January.</div>
  </div>
</div>
<div class="news-unit clearfix">
  <p class="title"><a href="/news/99">Dandadan Trailer</a></p>
  <div class="text">New PV streamed.</div>
</div>
<div class="news-unit clearfix">
  <p class="title"><a href="/news/99">Dandadan Trailer (dup)</a></p>
</div>
<div class="news-unit clearfix"><div class="text">no title</div></div>
</body></html>`

func TestParseListing_MyAnimeList(t *testing.T) {
	src := news.Source{Name: "MAL", URL: "https://myanimelist.net/news", Strategy: news.StrategyMyAnimeList}
	items, err := parseListing([]byte(malListing), src, listingLayouts[news.StrategyMyAnimeList])
	require.NoError(t, err)
	require.Len(t, items, 2)

	require.Equal(t, "https://myanimelist.net/news/100", items[0].ID)
	require.Equal(t, "Frieren Season 2 Announced", items[0].Title)
	require.Equal(t, "The anime returns in January.", items[0].SummaryOrBody)
	require.Equal(t, []string{"https://cdn.myanimelist.net/s/common/uploaded_files/100.jpg"}, items[0].Media.Thumbnails)
	require.Equal(t, src.Key(), items[0].SourceKey)

	require.Equal(t, "https://myanimelist.net/news/99", items[1].Link)
	require.Empty(t, items[1].Media.Thumbnails)
}

func TestParseListing_CrunchyrollCards(t *testing.T) {
	page := `<div>
<a class="news-card__link" href="/news/announcements/2024/1/1/show">
  <img src="//img1.ak.crunchyroll.com/show.jpg">
  <span class="news-card__title">Show Gets Anime</span>
</a></div>`
	src := news.Source{Name: "CR", URL: "https://www.crunchyroll.com/news", Strategy: news.StrategyCrunchyroll}
	items, err := parseListing([]byte(page), src, listingLayouts[news.StrategyCrunchyroll])
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "https://www.crunchyroll.com/news/announcements/2024/1/1/show", items[0].Link)
	require.Equal(t, "Show Gets Anime", items[0].Title)
	require.Equal(t, []string{"https://img1.ak.crunchyroll.com/show.jpg"}, items[0].Media.Thumbnails)
}

func TestParseListing_NoItems(t *testing.T) {
	src := news.Source{URL: "https://example.com", Strategy: news.StrategyHTML}
	_, err := parseListing([]byte("<html><body><p>empty</p></body></html>"), src, listingLayouts[news.StrategyHTML])
	require.Error(t, err)
}

type pageFunc func(ctx context.Context, url string) ([]byte, error)

func (f pageFunc) FetchPage(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

func TestListingScraper_FetchErrors(t *testing.T) {
	s := NewListingScraper(pageFunc(func(context.Context, string) ([]byte, error) {
		return nil, errors.New("connection reset")
	}), logger.Discard())

	_, err := s.Fetch(context.Background(), news.Source{URL: "https://myanimelist.net/news", Strategy: news.StrategyMyAnimeList})
	var fe *news.FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "https://myanimelist.net/news", fe.SourceKey)

	_, err = s.Fetch(context.Background(), news.Source{URL: "https://x", Strategy: news.StrategyFeed})
	require.ErrorAs(t, err, &fe)
}

func TestExtractArticle(t *testing.T) {
	page := `<html><head><title>Site</title></head><body>
<nav>Home | News</nav>
<article><h1>Frieren Season 2</h1>
<p>` + strings.Repeat("The second season of the anime will premiere in January 2026. ", 5) + `</p>
<p>` + strings.Repeat("Madhouse returns to animate the series with the same staff. ", 5) + `</p>
<p>` + strings.Repeat("A new key visual and trailer were revealed at the event. ", 5) + `</p>
</article></body></html>`

	a, err := ExtractArticle([]byte(page), "https://example.com/news/frieren")
	require.NoError(t, err)
	require.Contains(t, a.Content, "Madhouse returns")
	require.NotContains(t, a.Content, "Home | News")
	require.Equal(t, "https://example.com/news/frieren", a.URL)

	_, err = ExtractArticle(nil, "https://example.com")
	require.Error(t, err)
}
