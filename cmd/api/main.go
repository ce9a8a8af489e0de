package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Git-Robbed/smells-phishy/internal/ai"
	"github.com/Git-Robbed/smells-phishy/internal/api"
	"github.com/Git-Robbed/smells-phishy/internal/api/handlers"
	"github.com/Git-Robbed/smells-phishy/internal/config"
	"github.com/Git-Robbed/smells-phishy/internal/domain/services"
	"github.com/Git-Robbed/smells-phishy/internal/infrastructure/cache"
	"github.com/Git-Robbed/smells-phishy/internal/intel"
	"github.com/Git-Robbed/smells-phishy/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	var log *logger.Logger
	if cfg.App.Environment == "production" {
		log = logger.NewProduction()
	} else {
		log = logger.NewDevelopment()
	}
	logger.SetGlobal(log)

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Environment).
		Str("version", cfg.App.Version).
		Msg("starting smells-phishy")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis. The service degrades without it: no intel cache,
	// no rate limiting, AI quota fails open.
	redisCache, err := cache.NewRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn().Err(err).Msg("failed to connect to Redis, continuing without cache")
		redisCache = nil
	}
	defer func() {
		if redisCache != nil {
			redisCache.Close()
		}
	}()

	// Register threat intelligence checkers in escalation order:
	// cheap local heuristics run in the extractor, then the allowlist-style
	// vendors, then WHOIS last since it is the slowest
	registry := intel.NewRegistry(log)
	registerCheckers(registry, cfg, log)
	log.Info().
		Int("enabled", registry.CountEnabled()).
		Int("total", registry.Count()).
		Msg("intel checkers registered")

	// Initialize AI classifier and quota gate
	var classifier services.AIClassifier
	var quota services.QuotaGate
	if cfg.AI.Enabled {
		classifier = ai.NewClassifier(cfg.AI, log)
		quota = ai.NewQuotaGate(redisCache, cfg.AI.DailyQuota, log)
		log.Info().
			Str("provider", cfg.AI.Provider).
			Str("model", cfg.AI.Model).
			Int64("daily_quota", cfg.AI.DailyQuota).
			Msg("AI classifier initialized")
	} else {
		log.Warn().Msg("AI classifier disabled, serving intel-only verdicts")
	}

	// Initialize scan pipeline
	sanitizer := services.NewSanitizer(cfg.Scan.MaxContentBytes, log)
	extractor := services.NewExtractor(cfg.Scan.MaxURLs, log)
	var findingCache services.FindingCache
	if redisCache != nil {
		findingCache = redisCache
	}
	scanner := services.NewScanner(sanitizer, extractor, registry, classifier, quota, findingCache, cfg.Scan, cfg.AI.Enabled, log)

	// Initialize handlers
	h := handlers.NewHandlers(handlers.Dependencies{
		Scanner:      scanner,
		Cache:        redisCache,
		Logger:       log,
		Version:      cfg.App.Version,
		MaxBatchSize: cfg.Scan.MaxBatchSize,
	})

	// Create router
	router := api.NewRouter(*cfg, h, redisCache, log)

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Msg("starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("shutdown complete")
}

// registerCheckers wires the configured intel checkers in query order
func registerCheckers(registry *intel.Registry, cfg *config.Config, log *logger.Logger) {
	checkers := []intel.Checker{
		intel.NewSafeBrowsingChecker(intel.CheckerConfig{
			Enabled: cfg.Intel.SafeBrowsing.Enabled,
			APIURL:  cfg.Intel.SafeBrowsing.APIURL,
			APIKey:  cfg.Intel.SafeBrowsing.APIKey,
			Timeout: cfg.Intel.SafeBrowsing.Timeout,
		}, log),
		intel.NewURLhausChecker(intel.CheckerConfig{
			Enabled: cfg.Intel.URLhaus.Enabled,
			APIURL:  cfg.Intel.URLhaus.APIURL,
			Timeout: cfg.Intel.URLhaus.Timeout,
		}, log),
		intel.NewVirusTotalChecker(intel.CheckerConfig{
			Enabled: cfg.Intel.VirusTotal.Enabled,
			APIURL:  cfg.Intel.VirusTotal.APIURL,
			APIKey:  cfg.Intel.VirusTotal.APIKey,
			Timeout: cfg.Intel.VirusTotal.Timeout,
		}, log),
		intel.NewDomainAgeChecker(intel.CheckerConfig{
			Enabled: cfg.Intel.DomainAge.Enabled,
			Timeout: cfg.Intel.DomainAge.Timeout,
		}, cfg.Intel.DomainAge.MinAgeDays, log),
	}

	for _, c := range checkers {
		if err := registry.Register(c); err != nil {
			log.Error().Err(err).Str("checker", c.Slug()).Msg("failed to register checker")
		}
	}
}
