package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/consumers"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/events"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/handler"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/repository"
	"github.com/pantrymind/pantrymind-backend/internal/inventory/service"
	"github.com/pantrymind/pantrymind-backend/pkg/auth"
	"github.com/pantrymind/pantrymind-backend/pkg/config"
	"github.com/pantrymind/pantrymind-backend/pkg/database"
	"github.com/pantrymind/pantrymind-backend/pkg/httputil"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
	"github.com/pantrymind/pantrymind-backend/pkg/messaging"
	"github.com/pantrymind/pantrymind-backend/pkg/metrics"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(ctx, repository.Migrations); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewInventoryEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	opts, err := service.OptionsFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid inventory options")
	}
	inventoryService := service.NewInventoryService(service.NewPostgresStores(db), publisher, opts, log)

	// Jobs stay registered for manual runs even when their schedule is off.
	scheduler := service.NewScheduler(opts.Location, log)
	expiryJob, alertJob := inventoryService.Jobs(log)
	if cfg.Jobs.ExpiryEnabled {
		scheduler.Schedule(expiryJob, cfg.Jobs.ExpiryInterval, true)
	} else {
		scheduler.Register(expiryJob)
	}
	if cfg.Jobs.AlertsEnabled {
		scheduler.Schedule(alertJob, cfg.Jobs.AlertInterval, false)
	} else {
		scheduler.Register(alertJob)
	}
	scheduler.Start(ctx)

	userConsumer, err := consumers.NewUserEventConsumer(rmq, repository.NewUserCacheRepository(db), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create user event consumer")
	}
	if err := userConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start user event consumer")
	}
	go func() {
		<-userConsumer.Done()
		if ctx.Err() == nil {
			log.Error().Msg("user event consumer exited, display names will go stale until restart")
		}
	}()

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		// Gateway identity headers are only trusted outside production.
		r.Use(auth.Middleware(auth.NewManager(&cfg.JWT), cfg.Server.Environment == config.EnvDevelopment))
		handler.Mount(r, inventoryService, scheduler, log)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stops consumers and job loops
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	scheduler.Stop()

	log.Info().Msg("server stopped")
}
