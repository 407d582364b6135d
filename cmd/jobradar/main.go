// Package main wires together the job posting crawl service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"jobradar/internal/api"
	"jobradar/internal/archive"
	archgcs "jobradar/internal/archive/gcs"
	archlocal "jobradar/internal/archive/local"
	"jobradar/internal/config"
	"jobradar/internal/crawl"
	"jobradar/internal/fetch"
	"jobradar/internal/geo"
	"jobradar/internal/ingest"
	"jobradar/internal/lexicon"
	"jobradar/internal/logging"
	"jobradar/internal/metrics"
	"jobradar/internal/notify"
	pubsubnotify "jobradar/internal/notify/pubsub"
	"jobradar/internal/scheduler"
	"jobradar/internal/source"
	"jobradar/internal/store"
	memstore "jobradar/internal/store/memory"
	pgstore "jobradar/internal/store/postgres"
	"jobradar/internal/store/rediscache"
)

const defaultRequestsPerMinute = 30

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	st, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		logger.Fatal("store init failed", zap.Error(err))
	}
	defer closeStore()

	var publisher notify.Publisher
	if cfg.PubSub.Enabled {
		pub, err := pubsubnotify.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicID)
		if err != nil {
			logger.Fatal("pubsub init failed", zap.Error(err))
		}
		defer pub.Stop()
		publisher = pub
	}

	arch, err := buildArchive(ctx, cfg)
	if err != nil {
		logger.Fatal("archive init failed", zap.Error(err))
	}

	gate := ingest.New(
		st,
		geo.NewCanonicalizer(geo.DefaultGazetteer(), ""),
		lexicon.NewExtractor(lexicon.DefaultLexicon()),
		publisher,
		logger.Named("ingest"),
	)
	controller := crawl.NewController(gate, logger.Named("crawl"))
	runner := crawl.NewRunner(controller, st, logger.Named("crawl"), cfg.SourceBudget())

	sources, closeSources, err := buildSources(cfg, arch, logger)
	if err != nil {
		logger.Fatal("source init failed", zap.Error(err))
	}
	defer closeSources()
	logger.Info("sources configured", zap.Int("count", len(sources)))

	if cfg.Scheduler.Enabled {
		sched, err := scheduler.New(cfg.Scheduler.Spec, runner, sources, logger.Named("scheduler"))
		if err != nil {
			logger.Fatal("scheduler init failed", zap.Error(err))
		}
		sched.Start()
		defer sched.Stop()
	}

	apiServer := api.NewServer(st, runner, sources, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	var (
		st      store.Store
		cleanup = func() {}
	)
	switch cfg.DB.Backend {
	case "postgres":
		pg, err := pgstore.New(ctx, pgstore.Config{
			DSN:             cfg.DB.DSN,
			MaxConns:        int32(cfg.DB.MaxConns),
			MinConns:        int32(cfg.DB.MinConns),
			MaxConnLifetime: cfg.DB.ConnLifetime(),
			UnknownRegion:   geo.UnknownRegion,
		})
		if err != nil {
			return nil, nil, err
		}
		st, cleanup = pg, pg.Close
	default:
		st = memstore.New(geo.UnknownRegion)
	}

	if cfg.Redis.Enabled {
		rdb, err := rediscache.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		inner := cleanup
		cleanup = func() {
			_ = rdb.Close()
			inner()
		}
		st = rediscache.New(st, rdb, 0)
	}
	return st, cleanup, nil
}

func buildArchive(ctx context.Context, cfg config.Config) (archive.Store, error) {
	switch cfg.Archive.Backend {
	case "", "none":
		return nil, nil
	case "local":
		return archlocal.New(cfg.Archive.LocalDir)
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		return archgcs.New(client, cfg.Archive.GCSBucket)
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}
}

// buildSources assembles the crawl plan: per source a fetcher, a politeness
// limiter, the retry coordinator and the extraction adapter.
func buildSources(cfg config.Config, arch archive.Store, logger *zap.Logger) ([]crawl.SourceRun, func(), error) {
	ids := make([]string, 0, len(cfg.Sources))
	for id := range cfg.Sources {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var closers []func()
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	runs := make([]crawl.SourceRun, 0, len(ids))
	for _, id := range ids {
		sc := cfg.Sources[id]

		var inner fetch.PageFetcher
		if sc.Render {
			rf := fetch.NewRenderedFetcher(fetch.RenderedConfig{
				UserAgent:   cfg.Crawl.UserAgent,
				WaitVisible: sc.WaitSelector,
			})
			closers = append(closers, rf.Close)
			inner = rf
		} else {
			inner = fetch.NewCollyFetcher(fetch.CollyConfig{UserAgent: cfg.Crawl.UserAgent})
		}

		rpm := sc.RequestsPerMinute
		if rpm <= 0 {
			rpm = defaultRequestsPerMinute
		}
		limiter := rate.NewLimiter(rate.Limit(rpm/60.0), 1)
		fetcher := fetch.NewCoordinator(inner, limiter, logger.Named("fetch").With(zap.String("source", id)))

		adapterName := sc.Adapter
		if adapterName == "" {
			adapterName = "selector"
		}
		adapter, err := source.New(adapterName, source.Config{
			ID:        id,
			PageURL:   sc.PageURL,
			Selectors: sc.Selectors,
		}, fetcher)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("source %s: %w", id, err)
		}

		runs = append(runs, crawl.SourceRun{
			Adapter:             adapter,
			RecencyWindow:       time.Duration(sc.RecencyDays) * 24 * time.Hour,
			StaleThreshold:      sc.StaleThreshold,
			StaleTolerance:      sc.StaleTolerance(),
			MaxPages:            sc.MaxPages,
			EstimateDaysPerPage: sc.EstimateDaysPage,
			FailureLimit:        sc.FailureLimit,
			Archive:             arch,
		})
	}
	return runs, closeAll, nil
}
