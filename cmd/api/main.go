package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"ritasuite/internal/adapter/repo"
	"ritasuite/internal/http/handlers"
	httpapi "ritasuite/internal/http/httpapi"
	"ritasuite/internal/infra"
	"ritasuite/internal/infra/geoip"
	"ritasuite/internal/middleware"
	"ritasuite/internal/providers/gemini"
	"ritasuite/internal/providers/pagefetch"
	"ritasuite/internal/providers/tiktok"
	"ritasuite/internal/scrape"
	"ritasuite/internal/storage"
	"ritasuite/internal/tasks"
)

func main() {
	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	store, err := storage.New(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize artifact storage")
	}

	geoResolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open geoip database")
	}
	if geoResolver != nil {
		defer geoResolver.Close()
	}
	var countryLookup middleware.CountryLookup
	if geoResolver != nil {
		countryLookup = geoResolver.CountryCode
	}

	geminiClient, err := gemini.NewClient(gemini.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build gemini client")
	}
	tiktokClient := tiktok.NewClient(cfg.TikTokBaseURL, cfg.TikTokAPIKey)
	fetcher := pagefetch.NewChromeFetcher(cfg.PageFetchTimeout, cfg.PageSettleDelay)

	videos := repo.NewVideoTaskRepository(dbpool)
	scrapes := repo.NewScrapeTaskRepository(dbpool)
	chats := repo.NewChatRepository(dbpool)
	trackers := repo.NewTrackerRepository(dbpool)

	metrics := tasks.NewMetrics(prometheus.DefaultRegisterer)
	runner := tasks.NewRunner(cfg.WorkerCount, cfg.TaskQueueSize, logger, metrics)
	runner.Register(tasks.NewVideoPipeline(videos, geminiClient, logger))
	runner.Register(tasks.NewScrapePipeline(scrapes, fetcher, geminiClient, store, scrape.DefaultPricing, logger))
	runner.Start(ctx)

	scheduler := cron.New()
	retention := tasks.NewRetention(videos, scrapes, store, cfg.RetentionDays, logger)
	if err := retention.Schedule(scheduler); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule retention sweep")
	}
	scheduler.Start()

	app := &handlers.App{
		Cfg:         cfg,
		Logger:      logger,
		Videos:      videos,
		Scrapes:     scrapes,
		Chats:       chats,
		Trackers:    trackers,
		TikTok:      tiktokClient,
		Assistant:   geminiClient,
		Transcriber: geminiClient,
		Runner:      runner,
		Store:       store,
		Pricing:     scrape.DefaultPricing,
		Country:     countryLookup,
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app))

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	// Stop intake first, then let queued units drain before the process exits.
	<-scheduler.Stop().Done()
	runner.Stop()
	logger.Info().Msg("server stopped")
}
