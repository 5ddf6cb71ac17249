package main

import (
	"context"
	"log/slog"

	"github.com/deusflow/animenews/internal/anilist"
	"github.com/deusflow/animenews/internal/app"
	"github.com/deusflow/animenews/internal/cache"
	"github.com/deusflow/animenews/internal/config"
	"github.com/deusflow/animenews/internal/download"
	"github.com/deusflow/animenews/internal/gemini"
	"github.com/deusflow/animenews/internal/logger"
	"github.com/deusflow/animenews/internal/media"
	"github.com/deusflow/animenews/internal/metrics"
	"github.com/deusflow/animenews/internal/news"
	"github.com/deusflow/animenews/internal/publish"
	"github.com/deusflow/animenews/internal/ratelimit"
	"github.com/deusflow/animenews/internal/retry"
	"github.com/deusflow/animenews/internal/rss"
	"github.com/deusflow/animenews/internal/scraper"
	"github.com/deusflow/animenews/internal/storage"
	"github.com/deusflow/animenews/internal/telegram"
)

// service holds the wired components of one process.
type service struct {
	cfg      *config.Config
	log      *slog.Logger
	metrics  *metrics.Metrics
	filter   *news.Filter
	fetchers map[news.Strategy]app.Fetcher
	app      *app.App

	closers []func()
}

func (s *service) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// build loads the configuration and wires the pipeline. Without publishing
// only fetchers and the filter are built.
func build(ctx context.Context, publishing bool) (*service, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.Init(cfg.Debug)

	s := &service{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
		filter:  news.NewFilter(cfg.AllowKeywords, cfg.DenyKeywords, cfg.Overrides),
	}

	pages := scraper.NewPageFetcher(cfg.RequestTimeout, cfg.UserAgent, cfg.RetryAttempts, cfg.RetryDelay)
	feeds := rss.NewFetcher(pages, log)
	listings := scraper.NewListingScraper(pages, log)
	s.fetchers = map[news.Strategy]app.Fetcher{
		news.StrategyFeed:        feeds,
		news.StrategyMyAnimeList: listings,
		news.StrategyCrunchyroll: listings,
		news.StrategyHTML:        listings,
	}
	if !publishing {
		return s, nil
	}

	if err := cfg.ValidatePublishing(); err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() {
		if err := store.Close(); err != nil {
			log.Warn("closing marker store", "error", err)
		}
	})

	ttlCache := cache.New(cfg.TrailerCacheTTL / 4)
	s.closers = append(s.closers, ttlCache.Stop)

	budget := ratelimit.NewBudgetLimiter(map[string]int{
		ratelimit.AniList: cfg.MaxTrailerLookups,
		ratelimit.Gemini:  cfg.MaxGeminiRequests,
	}, log)

	resolver := media.NewResolver(media.Options{
		Pages:    pages,
		Trailers: anilist.NewClient(cfg.AniListURL, cfg.RequestTimeout),
		Cache:    ttlCache,
		CacheTTL: cfg.TrailerCacheTTL,
		Budget:   budget,
		Metrics:  s.metrics,
		Logger:   log,
	})

	tg := telegram.NewClient(cfg.TelegramToken, cfg.TelegramChatID,
		telegram.WithRetry(retry.RetryConfig{MaxAttempts: cfg.RetryAttempts, Delay: cfg.RetryDelay, Backoff: true}),
		telegram.WithLogger(log),
	)
	downloader := download.New(cfg.MediaDir, cfg.YtDlpPath, cfg.UserAgent, cfg.RequestTimeout*4, log)

	opts := app.Options{
		Sources:          cfg.Sources,
		Fetchers:         s.fetchers,
		Filter:           s.filter,
		Store:            store,
		Pages:            pages,
		Resolver:         resolver,
		Publisher:        publish.New(tg, downloader, s.metrics, log),
		Metrics:          s.metrics,
		Logger:           log,
		PollInterval:     cfg.PollInterval,
		PostDelay:        cfg.PostDelay,
		BootstrapItems:   cfg.BootstrapItems,
		MaxItemsPerCycle: cfg.MaxItemsPerCycle,
		CaptionMaxRunes:  cfg.CaptionMaxRunes,
	}

	if cfg.GeminiAPIKey != "" {
		g, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, budget, log)
		if err != nil {
			log.Warn("Gemini disabled", "error", err)
		} else {
			opts.Summarizer = g
			s.closers = append(s.closers, g.Close)
		}
	}

	s.app = app.New(opts)
	return s, nil
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*storage.Store, error) {
	return storage.Open(ctx, storage.Options{
		Backend:       cfg.StoreBackend,
		Path:          cfg.StorePath,
		DatabaseURL:   cfg.DatabaseURL,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
	}, log)
}
