package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"

	httpapi "github.com/i474232898/balloon-tracker/internal/api/http"
	"github.com/i474232898/balloon-tracker/internal/config"
	"github.com/i474232898/balloon-tracker/internal/log"
	"github.com/i474232898/balloon-tracker/internal/metrics"
	"github.com/i474232898/balloon-tracker/internal/scheduler"
	"github.com/i474232898/balloon-tracker/internal/store"
	"github.com/i474232898/balloon-tracker/internal/tracker"
	"github.com/i474232898/balloon-tracker/internal/weather/providers"
	"github.com/i474232898/balloon-tracker/internal/windborne"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(cfg.Debug); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Shared HTTP client for outbound gateway and forecast calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	gateway := windborne.NewClient(httpClient, cfg.WindborneBaseURL)
	forecast := providers.NewOpenMeteoProvider(httpClient, cfg.ForecastBaseURL, cfg.ForecastMode)

	var resolver tracker.IdentityResolver = tracker.PositionalResolver{}
	if cfg.IdentityMode == config.IdentityNearest {
		resolver = tracker.NearestResolver{MaxJumpKm: cfg.IdentityMaxJumpKm}
	}

	collector, err := metrics.NewCollector(prometheus.DefaultRegisterer)
	if err != nil {
		log.Errorf("failed to register metrics: %v", err)
		os.Exit(1)
	}

	service := tracker.NewService(
		store.NewMemoryStore(),
		tracker.NewAggregator(gateway, resolver, cfg.FetchConcurrency),
		forecast,
	)
	service.SetObserver(collector)
	service.SetRefreshTimeout(cfg.RefreshTimeout)

	// Scheduler that rebuilds state every RefreshInterval, starting now.
	sched := scheduler.New(service)
	if err := sched.Start(); err != nil {
		log.Errorf("failed to start scheduler: %v", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := fiber.New(fiber.Config{
		AppName:               "balloon-tracker",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		// Manual refreshes run a full cycle before responding.
		WriteTimeout: cfg.RefreshTimeout + 10*time.Second,
		ErrorHandler: httpapi.ErrorHandler,
	})

	// Global middleware
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":          "ok",
			"service":         "balloon-tracker",
			"gatewayBreaker":  gateway.BreakerState(),
			"lastRefreshedAt": service.State().RefreshedAt,
		})
	})

	httpapi.RegisterRoutes(app, gateway, service, collector)

	go func() {
		log.Infof("listening on :%s", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Errorf("fiber server stopped: %v", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Errorf("error during shutdown: %v", err)
	}
}
