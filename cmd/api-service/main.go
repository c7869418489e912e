package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"

	"github.com/emranffl/minifyurl/internal/alias"
	"github.com/emranffl/minifyurl/internal/clicks"
	"github.com/emranffl/minifyurl/internal/config"
	"github.com/emranffl/minifyurl/internal/coord"
	applog "github.com/emranffl/minifyurl/internal/logger"
	"github.com/emranffl/minifyurl/internal/metrics"
	"github.com/emranffl/minifyurl/internal/ratelimit"
	"github.com/emranffl/minifyurl/internal/safety"
	"github.com/emranffl/minifyurl/internal/shortener"
	"github.com/emranffl/minifyurl/internal/token"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		slog.Warn(".env file not found, relying on env vars", "err", err)
	}

	applog.InitFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	clients, err := config.Dial(ctx, cfg)
	if err != nil {
		slog.Error("failed to dial backing services", "err", err)
		os.Exit(1)
	}
	defer clients.Close()

	slog.Info("running gorm auto-migration")
	if err := clients.DB.AutoMigrate(&shortener.ShortLink{}); err != nil {
		slog.Error("failed to auto-migrate database", "err", err)
		os.Exit(1)
	}

	sink := metrics.NewRedisSink(clients.Redis)
	defer sink.Close()
	clients.StartGaugeLoop(ctx, sink, 15*time.Second)

	store := coord.NewRedisStore(clients.Redis)
	links := shortener.NewGormLinkStore(clients.DB)

	var publisher clicks.Publisher
	if clients.RabbitCh != nil {
		publisher, err = clicks.NewAMQPPublisher(clients.RabbitCh, cfg.ClickQueue)
		if err != nil {
			slog.Error("failed to set up click publisher", "err", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("no RABBITMQ_URL, click events will hit the record store directly")
	}

	srv := &server{
		cfg:        cfg,
		allocator:  shortener.NewAllocator(store, sink),
		resolver:   shortener.NewResolver(store, links, publisher, sink),
		validator:  alias.NewValidator(store, links),
		tokens:     token.NewStore(store),
		classifier: safety.PatternClassifier{},
		coordStore: store,
	}

	gate := &ratelimit.Gate{
		Limiter:  ratelimit.NewLimiter(store, sink),
		Tokens:   srv.tokens,
		Fallback: ratelimit.NewLocalFallback(),
	}
	gate.Fallback.StartJanitor(ctx, 2*time.Minute)

	app := fiber.New()
	app.Use(applog.RequestID())
	app.Use(applog.FiberMiddleware())
	app.Use(cors.New())

	api := gate.Middleware(ratelimit.ClassAPI)
	redirect := gate.Middleware(ratelimit.ClassRedirect)

	app.Get("/healthz", srv.handleHealth)
	app.Post("/shorten", api, srv.handleShorten)
	app.Post("/api/validate", api, srv.handleValidate)
	app.Post("/api/keys", api, srv.handleCreateKey)
	app.Delete("/api/keys", api, srv.handleRevokeKey)
	app.Get("/stats/:short_code", api, srv.handleStats)
	app.Get("/:short_code", redirect, srv.handleRedirect)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("starting api service", "port", cfg.Port)
	if err := app.Listen(cfg.Port); err != nil {
		slog.Error("api service failed", "err", err)
		os.Exit(1)
	}
}
