package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	pageshandler "github.com/foliage-cms/foliage/domains/pages/be/handler"
	pagesrepo "github.com/foliage-cms/foliage/domains/pages/be/repo"
	pagesservice "github.com/foliage-cms/foliage/domains/pages/be/service"
	siteshandler "github.com/foliage-cms/foliage/domains/sites/be/handler"
	sitesrepo "github.com/foliage-cms/foliage/domains/sites/be/repo"
	sitesservice "github.com/foliage-cms/foliage/domains/sites/be/service"
	platformlogging "github.com/foliage-cms/foliage/platform/go/logging"
	platformmiddleware "github.com/foliage-cms/foliage/platform/go/middleware"
	"github.com/foliage-cms/foliage/platform/go/persistence"
	"github.com/foliage-cms/foliage/platform/go/requesttrace"
	"github.com/foliage-cms/foliage/platform/go/templates"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	DatabaseURL     string        `env:"DATABASE_URL,required"`
	Bootstrap       bool          `env:"DB_BOOTSTRAP" envDefault:"true"`

	DefaultLanguage    string   `env:"CMS_DEFAULT_LANGUAGE" envDefault:"en"`
	Languages          []string `env:"CMS_LANGUAGES" envSeparator:"," envDefault:"en"`
	UniqueSlugRequired bool     `env:"CMS_UNIQUE_SLUG_REQUIRED" envDefault:"false"`
	UseSiteScoping     bool     `env:"CMS_USE_SITE_SCOPING" envDefault:"false"`
	HideSites          bool     `env:"CMS_HIDE_SITES" envDefault:"false"`
	DefaultSiteID      string   `env:"CMS_DEFAULT_SITE_ID"`
	TemplatesPath      string   `env:"CMS_TEMPLATES_PATH"` // falls back to the embedded registry
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "api-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.DatabaseURL})
	if err != nil {
		logger.Fatal("init postgres pool", zap.Error(err))
	}
	defer persistence.ClosePool(pool)

	if cfg.Bootstrap {
		if err := persistence.Bootstrap(ctx, pool); err != nil {
			logger.Fatal("bootstrap database schema", zap.Error(err))
		}
	}

	registry, err := loadRegistry(cfg.TemplatesPath)
	if err != nil {
		logger.Fatal("load template registry", zap.Error(err))
	}

	pageStore, err := persistence.NewPageStore(ctx, pool)
	if err != nil {
		logger.Fatal("init page store", zap.Error(err))
	}
	contentStore, err := persistence.NewContentStore(ctx, pool)
	if err != nil {
		logger.Fatal("init content store", zap.Error(err))
	}
	siteStore, err := persistence.NewSiteStore(ctx, pool)
	if err != nil {
		logger.Fatal("init site store", zap.Error(err))
	}

	serviceCfg := pagesservice.Config{
		DefaultLanguage:    cfg.DefaultLanguage,
		Languages:          cfg.Languages,
		UniqueSlugRequired: cfg.UniqueSlugRequired,
		UseSiteScoping:     cfg.UseSiteScoping,
		HideSites:          cfg.HideSites,
	}
	if cfg.DefaultSiteID != "" {
		siteID, err := uuid.Parse(cfg.DefaultSiteID)
		if err != nil {
			logger.Fatal("parse CMS_DEFAULT_SITE_ID", zap.Error(err))
		}
		serviceCfg.DefaultSiteID = siteID
	}

	pageRepo := pagesrepo.NewPostgresRepository(pageStore, contentStore, siteStore)
	pageService, err := pagesservice.New(pageRepo, registry, serviceCfg)
	if err != nil {
		logger.Fatal("init pages service", zap.Error(err))
	}
	pageHTTPHandler := pageshandler.New(pageService, logger)

	siteRepo := sitesrepo.NewPostgresRepository(siteStore)
	siteService := sitesservice.New(siteRepo)
	siteHTTPHandler := siteshandler.New(siteService, logger)

	rootRouter := chi.NewRouter()

	rootRouter.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)

	rootRouter.Use(platformlogging.RequestLogger(logger))

	rootRouter.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rootRouter.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	apiRouter := chi.NewRouter()
	apiRouter.Use(requesttrace.Middleware)
	pageHTTPHandler.Register(apiRouter)
	siteHTTPHandler.Register(apiRouter)

	rootRouter.Mount("/api/v1", apiRouter)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      rootRouter,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	logger.Info("shutting down api server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func loadRegistry(path string) (*templates.Registry, error) {
	if path == "" {
		return templates.Default()
	}
	return templates.LoadFile(path)
}
