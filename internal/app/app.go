// Package app wires configuration to adapters, use cases, and the process lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"CivicScanner/internal/config"
	"CivicScanner/internal/domain"
	"CivicScanner/internal/infrastructure/extract"
	"CivicScanner/internal/infrastructure/fetch"
	"CivicScanner/internal/infrastructure/httpapi"
	"CivicScanner/internal/infrastructure/llm"
	"CivicScanner/internal/infrastructure/locations"
	"CivicScanner/internal/infrastructure/parser"
	"CivicScanner/internal/infrastructure/scheduler"
	"CivicScanner/internal/infrastructure/storage"
	"CivicScanner/internal/infrastructure/tagging"
	"CivicScanner/internal/infrastructure/telegram"
	"CivicScanner/internal/logging"
	"CivicScanner/internal/metrics"
	"CivicScanner/internal/ports"
	"CivicScanner/internal/scanner"
	"CivicScanner/internal/usecase"
)

const robotsCacheSize = 256

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg        config.Config
	logger     *slog.Logger
	db         *sqlx.DB
	metrics    *metrics.Metrics
	discoverer *parser.Discoverer
	resolver   *locations.Resolver
	feed       ports.FeedRepository
	users      ports.UserRepository
	pipeline   *usecase.Pipeline
	scheduler  *usecase.Scheduler
	server     *httpapi.Server
}

// New builds every component. A missing LLM key leaves summarization
// unavailable but keeps discovery, feed, and user commands usable.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(reg)

	if err := a.openStorage(ctx); err != nil {
		return nil, err
	}

	fetcher, err := newFetcher(cfg.Fetch, baseLogger.With("component", "fetch"))
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewLinkScanner(fetcher, baseLogger.With("component", "scanner.links")))
	registry.Register(parser.DirectScanner{})
	baseLogger.Debug("discovery strategies registered", "scanners", registry.Names())
	a.discoverer = parser.NewDiscoverer(registry, cfg.Sites, baseLogger.With("component", "discovery"))
	a.resolver = locations.NewResolver(cfg.Sites, cfg.Discovery.SourceURLs)

	deps := usecase.PipelineDeps{
		Discoverer: a.discoverer,
		Fetcher:    fetcher,
		Extractor:  extract.NewExtractor(baseLogger.With("component", "extract")),
		Tagger:     tagging.NewTagger(),
		Repository: a.feed,
		Metrics:    a.metrics,
		Logger:     baseLogger.With("component", "pipeline"),
	}
	if summarizer, err := a.buildSummarizer(); err != nil {
		baseLogger.Warn("summarization disabled", "error", err)
	} else {
		deps.Summarizer = summarizer
	}

	a.pipeline = usecase.NewPipeline(deps, usecase.PipelineOptions{
		Concurrency:   cfg.Pipeline.Concurrency,
		LimitPerSite:  cfg.Discovery.LimitPerSite,
		MaxSites:      cfg.Discovery.MaxSites,
		DefaultUserID: cfg.Pipeline.DefaultUserID,
	})

	if cfg.Scheduler.Enabled {
		driver := scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, cfg.Scheduler.Location(), baseLogger.With("component", "cron"))
		if err := driver.Validate(); err != nil {
			_ = a.Close()
			return nil, err
		}
		var notifier ports.Notifier
		if cfg.Notifications.Telegram.Enabled() {
			notifier = telegram.NewNotifier(cfg.Notifications.Telegram)
		}
		a.scheduler = usecase.NewScheduler(driver, a.pipeline, notifier, a.resolver.AllSeeds, baseLogger.With("component", "scheduler"))
	}

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	a.server = httpapi.NewServer(cfg.HTTP.Addr, cfg.HTTP.ShutdownTimeout, httpapi.Deps{
		Pipeline:       a.pipeline,
		Feed:           a.feed,
		Users:          a.users,
		Seeds:          a.resolver,
		Metrics:        a.metrics,
		Logger:         baseLogger.With("component", "http"),
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
	})

	return a, nil
}

// newFetcher builds the fetcher and, when enabled, a robots.txt checker that
// matches rules against the agent the fetcher actually sends.
func newFetcher(cfg config.FetchConfig, logger *slog.Logger) (*fetch.Fetcher, error) {
	fetcher := fetch.NewFetcher(cfg, fetch.WithLogger(logger))
	if !cfg.RespectRobots {
		return fetcher, nil
	}

	robots, err := fetch.NewRobotsChecker(&http.Client{Timeout: cfg.Timeout}, fetcher.UserAgent(), robotsCacheSize)
	if err != nil {
		return nil, fmt.Errorf("robots checker: %w", err)
	}
	logger.Info("robots.txt checks enabled", "user_agent", fetcher.UserAgent())
	return fetch.NewFetcher(cfg, fetch.WithLogger(logger), fetch.WithRobots(robots)), nil
}

func (a *Application) openStorage(ctx context.Context) error {
	switch a.cfg.Database.Backend {
	case config.BackendMemory:
		a.feed = storage.NewMemoryFeed(storage.DefaultMemoryCapacity)
		a.users = storage.NewMemoryUsers()
	default:
		db, err := storage.Open(ctx, a.cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("open feed store: %w", err)
		}
		a.db = db
		a.feed = storage.NewFeedRepository(db)
		a.users = storage.NewUserRepository(db)
	}
	a.logger.Info("feed store ready", "backend", a.cfg.Database.Backend)
	return nil
}

func (a *Application) buildSummarizer() (ports.Summarizer, error) {
	if a.cfg.LLM.APIKey == "" {
		return nil, errors.New("llm api key is not set")
	}
	completer, err := llm.NewCompleter(a.cfg.LLM, nil)
	if err != nil {
		return nil, err
	}
	return usecase.NewSummarizer(completer, usecase.SummarizerConfig{
		PrimaryModel:  a.cfg.LLM.Model,
		FallbackModel: a.cfg.LLM.FallbackModel,
		SystemPrompt:  a.cfg.LLM.SystemPrompt,
		MaxInputChars: a.cfg.LLM.MaxInputChars,
		ExcerptChars:  a.cfg.LLM.ExcerptChars,
	}, a.metrics, a.logger.With("component", "summarizer")), nil
}

// Serve runs the HTTP API and, when enabled, the cron scheduler until ctx is done.
func (a *Application) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.scheduler != nil {
		if err := a.scheduler.Start(gctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression, "timezone", a.cfg.Scheduler.Location().String())
	}

	g.Go(a.server.Start)
	g.Go(func() error {
		<-gctx.Done()
		var errs []error
		if a.scheduler != nil {
			errs = append(errs, a.scheduler.Stop(context.WithoutCancel(ctx)))
		}
		errs = append(errs, a.server.Shutdown(context.WithoutCancel(ctx)))
		return errors.Join(errs...)
	})

	return g.Wait()
}

// RunOnce executes a single pipeline run. Without URLs or seeds the
// configured sites are crawled.
func (a *Application) RunOnce(ctx context.Context, req usecase.RunRequest) usecase.RunReport {
	req.Seeds = locations.ExpandSeeds(req.Seeds)
	if len(req.URLs) == 0 && len(req.Seeds) == 0 {
		req.Seeds = a.resolver.AllSeeds()
	}
	return usecase.BuildReport(a.pipeline.Run(ctx, req))
}

// Discover lists candidate document URLs without processing them.
func (a *Application) Discover(ctx context.Context, seeds []string) []string {
	seeds = locations.ExpandSeeds(seeds)
	if len(seeds) == 0 {
		seeds = a.resolver.AllSeeds()
	}
	links := a.discoverer.Discover(ctx, seeds, a.cfg.Discovery.LimitPerSite, a.cfg.Discovery.MaxSites)
	a.metrics.LinksDiscovered(len(links))
	return links
}

// Feed reads the most recent documents.
func (a *Application) Feed(ctx context.Context, q ports.FeedQuery) ([]domain.CivicDocument, error) {
	return a.feed.Feed(ctx, q)
}

// Users exposes the user store.
func (a *Application) Users() ports.UserRepository {
	return a.users
}

// Close releases the database handle.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
