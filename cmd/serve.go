package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"invoicing-backend/cache"
	"invoicing-backend/config"
	"invoicing-backend/controllers"
	"invoicing-backend/database"
	"invoicing-backend/logger"
	"invoicing-backend/middlewares"
	"invoicing-backend/routes"
	"invoicing-backend/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", true, "apply schema migrations before serving")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}
	log := logger.WithComponent("serve")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrateOnStart {
		if err := database.Migrate(database.DB); err != nil {
			return err
		}
	}

	if err := cache.Init(cfg); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, dashboard cache disabled")
	}
	defer cache.Close()

	store, err := storage.New(ctx, cfg)
	switch {
	case errors.Is(err, storage.ErrNotConfigured):
		log.Warn().Msg("object storage not configured, logo uploads disabled")
	case err != nil:
		return err
	}

	svc, err := newServices(cfg)
	if err != nil {
		return err
	}
	controllers.Configure(controllers.Deps{
		Invoices:  svc.invoices,
		Payments:  svc.payments,
		Recurring: svc.recurring,
		Provider:  svc.provider,
		Storage:   store,
	})

	app := newApp(cfg)

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Info().Str("addr", addr).Str("version", version).Msg("API server starting")
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return app.ShutdownWithContext(shutdownCtx)
}

func newApp(cfg *config.Config) *fiber.App {
	// ---- Fiber app with global error handler + body limit
	app := fiber.New(fiber.Config{
		ErrorHandler: middlewares.ErrorHandler,
		BodyLimit:    cfg.Server.BodyLimitMB * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(middlewares.Observe())

	// ---- CORS
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowCredentials: false, // using Bearer tokens, not cookies
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
	}))

	// ---- Global rate limiter (tune via SERVER_RATE_LIMIT_*)
	window := time.Duration(cfg.Server.RateLimitWindow) * time.Second
	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Server.RateLimitMax,
		Expiration: window,
		Next: func(c *fiber.Ctx) bool {
			// processors and the scheduler retry on 429; they authenticate instead
			p := c.Path()
			return strings.HasPrefix(p, "/api/webhooks/") || strings.HasPrefix(p, "/api/cron/")
		},
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	routes.Register(app, routes.Options{
		JWTSecret:        cfg.Auth.JWTSecret,
		JWTIssuer:        cfg.Auth.Issuer,
		CronSecret:       cfg.Cron.Secret,
		CronSecretHash:   cfg.Cron.SecretHash,
		PublicRateMax:    cfg.Server.RateLimitMax,
		PublicRateWindow: window,
	})
	return app
}
