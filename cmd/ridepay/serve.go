package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"ridepay/internal/common/database"
	"ridepay/internal/common/events"
	"ridepay/internal/common/middleware"
	"ridepay/internal/common/nats"
	"ridepay/internal/payment/api"
	"ridepay/internal/payment/authorization"
	"ridepay/internal/payment/session"
	"ridepay/internal/payment/status"
	"ridepay/internal/payment/vault"
	"ridepay/internal/timer"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the payment session HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, setupLogger(cfg.LogLevel, cfg.LogFormat))
		},
	}
}

func serve(ctx context.Context, cfg Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var health []func(context.Context) error

	// Card vault
	var cardVault vault.Vault = vault.NewMemory()
	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer db.Close()
		cardVault = vault.NewPostgres(db, logger)
		health = append(health, db.HealthCheck)
	} else {
		logger.Warn("DATABASE_URL not set, saved cards are kept in memory")
	}

	// Event publishing
	var publisher events.EventPublisher = events.Discard{}
	if cfg.NATS.URL != "" {
		nc, err := nats.New(ctx, cfg.NATS, logger)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer nc.Close()
		if _, err := nc.EnsureStream(ctx, nats.PaymentsStream()); err != nil {
			return err
		}
		publisher = nats.NewPublisher(nc, logger)
		health = append(health, func(context.Context) error { return nc.HealthCheck() })
	} else {
		logger.Warn("NATS_URL not set, payment events are not published")
	}

	// Engine
	sched := timer.System{}
	sessions := session.NewManager(session.Deps{
		Authorizer: authorization.NewClient(cfg.Gateway, logger),
		Poller:     status.NewPoller(status.NewClient(cfg.Status, logger), sched, cfg.Status, logger),
		Vault:      cardVault,
		Scheduler:  sched,
		Publisher:  publisher,
		Config:     cfg.Session,
		Logger:     logger,
		Notify: func(s session.Snapshot) {
			logger.Info("rider notified",
				"booking_id", s.BookingID,
				"session_id", s.ID,
				"state", s.State,
				"message", s.Result.Message,
			)
		},
	})
	defer sessions.Close()

	paymentHandler := api.NewHandler(sessions, cardVault, logger)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Compress(5))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		for _, check := range health {
			if err := check(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unhealthy"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Ready check
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RiderAuth(cfg.Auth))
		r.Mount("/", paymentHandler.Routes())
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Gateway.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting ridepay service",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"version", Version,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown
	<-ctx.Done()

	// Graceful shutdown
	logger.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}
