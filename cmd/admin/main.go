package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mechanicbano/admin/internal/apiclient"
	"github.com/mechanicbano/admin/internal/audit"
	"github.com/mechanicbano/admin/internal/auth"
	"github.com/mechanicbano/admin/internal/cache"
	"github.com/mechanicbano/admin/internal/config"
	"github.com/mechanicbano/admin/internal/database"
	"github.com/mechanicbano/admin/internal/logging"
	"github.com/mechanicbano/admin/internal/metrics"
	"github.com/mechanicbano/admin/internal/middleware"
	"github.com/mechanicbano/admin/internal/nav"
	"github.com/mechanicbano/admin/internal/notify"
	"github.com/mechanicbano/admin/internal/pdfview"
	"github.com/mechanicbano/admin/internal/screens"
	"github.com/mechanicbano/admin/internal/storage"
	"github.com/mechanicbano/admin/internal/tracing"
)

// apiDeps are the collaborators the screens are built from
type apiDeps struct {
	Backend    *apiclient.Client
	Uploader   storage.Uploader
	Validator  *storage.Validator
	Guard      screens.Guard
	Recorder   audit.Recorder
	Cache      *cache.Cache
	CacheTTL   time.Duration
	Loader     pdfview.Loader
	Sources    *pdfview.SourcePolicy
	ViewerIdle time.Duration
	Notify     notify.Options
	Logger     *logging.Logger
}

func newAPI(d apiDeps) *API {
	shell := nav.NewShell(d.Backend, nav.DefaultLinks, d.Cache, d.CacheTTL, d.Logger)
	deps := screens.Deps{
		Backend:  d.Backend,
		Guard:    d.Guard,
		Recorder: d.Recorder,
		Logger:   d.Logger,
	}

	return &API{
		shell:    shell,
		videos:   screens.NewVideoScreen(deps),
		pdfs:     screens.NewPDFScreen(deps, d.Uploader, d.Validator),
		plans:    screens.NewPlanScreen(deps),
		users:    screens.NewUserScreen(deps),
		pending:  screens.NewPendingScreen(deps),
		upi:      screens.NewUPIScreen(deps, d.Uploader, d.Validator),
		site:     screens.NewSiteScreen(deps, d.Uploader, d.Validator),
		welcome:  screens.NewWelcomeScreen(deps),
		pages:    screens.NewPageControlScreen(deps, shell.Refresh),
		viewers:  pdfview.NewRegistry(d.Loader, d.Sources, d.ViewerIdle, d.Logger),
		recorder: d.Recorder,
		notify:   d.Notify,
		logger:   d.Logger,
	}
}

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		configPath = ""
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.Endpoint)
		if err != nil {
			logger.WithError(err).Warn("Tracing disabled")
		} else {
			defer closer.Close()
			logger.Info("Tracing initialized")
		}
	}

	// Initialize JWT secret from config
	middleware.SetJWTSecret(cfg.Auth.JWTSecret)

	backend := apiclient.New(cfg.Backend, logger)

	// Optional shared state
	var (
		redisCache *cache.Cache
		guard      screens.Guard = screens.NewMemoryGuard()
		health     []healthCheck
		closers    []io.Closer
	)
	if cfg.Redis.Enabled {
		redisCache, err = cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		closers = append(closers, redisCache)
		guard = screens.NewRedisGuard(redisCache, cfg.Cache.ProcessingLockTTL, logger)
		health = append(health, healthCheck{name: "redis", check: redisCache.Ping})
		logger.Info("Redis cache connected")
	}

	var recorder audit.Recorder = audit.NopRecorder{}
	if cfg.Audit.Enabled {
		db, err := database.New(cfg.Audit)
		if err != nil {
			logger.Fatalf("Failed to connect to audit database: %v", err)
		}
		defer db.Close()

		repo := database.NewAuditRepository(db)
		if err := repo.Migrate(context.Background()); err != nil {
			logger.Fatalf("Failed to migrate audit database: %v", err)
		}
		recorder = repo
		health = append(health, healthCheck{name: "audit", check: db.Health})
		logger.Info("Audit trail enabled")
	}

	var uploader storage.Uploader = apiclient.NewBackendUploader(backend)
	if cfg.Storage.Enabled {
		stor, err := storage.New(cfg.Storage, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize storage: %v", err)
		}
		uploader = stor
		logger.Info("Uploading to object storage")
	}

	// PDFs open only from the backend, the bucket and configured CDNs
	sources := pdfview.NewSourcePolicy(append([]string{cfg.Backend.BaseURL, cfg.Storage.PublicBaseURL}, cfg.Viewer.AllowedHosts...)...)

	api := newAPI(apiDeps{
		Backend:    backend,
		Uploader:   uploader,
		Validator:  storage.NewValidator(cfg.Upload),
		Guard:      guard,
		Recorder:   recorder,
		Cache:      redisCache,
		CacheTTL:   cfg.Cache.PageVisibilityTTL,
		Loader:     pdfview.NewFitzLoader(cfg.Backend.Timeout, cfg.Viewer.MaxBytes, sources),
		Sources:    sources,
		ViewerIdle: cfg.Viewer.IdleTimeout,
		Notify: notify.Options{
			AutoClose: cfg.Notify.AutoClose,
			Position:  cfg.Notify.Position,
		},
		Logger: logger,
	})
	api.health = health

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// The navigation starts with every page visible if the backend is unreachable
	if err := api.shell.Load(ctx); err != nil {
		logger.WithError(err).Warn("Failed to load page visibility")
	}

	go api.viewers.Run(ctx)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go limiter.Cleanup(ctx, 10*time.Minute)

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.WithError(err).Error("Metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metricsServer.Shutdown(shutdownCtx)
		}()
	}

	gin.SetMode(gin.ReleaseMode)
	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		logger.Fatalf("Failed to initialize sign-in: %v", err)
	}
	authHandler := auth.NewHandler(verifier, cfg.Auth.TokenTTL, recorder, logger)
	router := setupRouter(api, authHandler, cfg.Auth, limiter, logger)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting admin console on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stop()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	for _, c := range closers {
		c.Close()
	}

	logger.Info("Server stopped")
}
