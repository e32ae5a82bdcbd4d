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
	"github.com/medflow/pharmacy-backend/internal/auth/jwt"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/consumers"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/events"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/handler"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/ledger"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/repository"
	"github.com/medflow/pharmacy-backend/internal/pharmacy/service"
	"github.com/medflow/pharmacy-backend/pkg/config"
	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
	"github.com/medflow/pharmacy-backend/pkg/logger"
	"github.com/medflow/pharmacy-backend/pkg/messaging"
	"github.com/medflow/pharmacy-backend/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const serviceName = "pharmacy-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	if cfg.Server.LogLevel != "" {
		if log, err = log.WithLevel(cfg.Server.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
			os.Exit(1)
		}
	}
	log.Info().Msg("starting Pharmacy Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// RabbitMQ is optional; without it no events are published and the user
	// directory is maintained externally
	var (
		rmq            *messaging.RabbitMQ
		pharmacyEvents *events.PharmacyEventPublisher
		ledgerEvents   ledger.EventPublisher
	)
	if cfg.RabbitMQ.Enabled {
		rmq, err = messaging.New(&cfg.RabbitMQ, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
		}
		defer rmq.Close()

		var raw *messaging.Publisher
		pharmacyEvents, raw, err = events.NewPharmacyEventPublisher(rmq, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create event publisher")
		}
		ledgerEvents = raw
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.DefaultRegisterer)
	}

	// Repositories
	medicineRepo := repository.NewMedicineRepository(db)
	prescriptionRepo := repository.NewPrescriptionRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	userRepo := repository.NewUserDirectoryRepository(db)
	missingRepo := repository.NewMissingMedicineRepository(db)

	sink, err := ledger.FromConfig(&cfg.Ledger, ledger.Dependencies{
		Store:     missingRepo,
		Publisher: ledgerEvents,
		Logger:    log,
		Metrics:   m,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up missing medicine ledger")
	}
	log.Info().Strs("sinks", cfg.Ledger.Sinks).Int("active", sink.Len()).Msg("missing medicine ledger ready")

	// Services
	reconciliation := service.NewReconciliationService(db, medicineRepo, prescriptionRepo, sink, pharmacyEvents, m, log)
	settlement := service.NewSettlementService(db, userRepo, medicineRepo, prescriptionRepo, invoiceRepo, pharmacyEvents, m, log)
	queries := service.NewQueryService(prescriptionRepo, invoiceRepo, missingRepo)

	// Handlers
	prescriptionHandler := handler.NewPrescriptionHandler(reconciliation, queries, log)
	invoiceHandler := handler.NewInvoiceHandler(settlement, queries, log)
	missingHandler := handler.NewMissingMedicineHandler(queries)

	if rmq != nil {
		if err := rmq.DeclareDeadLetterQueue(serviceName); err != nil {
			log.Fatal().Err(err).Msg("failed to declare dead letter queue")
		}
		userConsumer, err := consumers.NewUserEventConsumer(rmq, userRepo, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create user event consumer")
		}
		if err := userConsumer.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start user event consumer")
		}
	}

	verifier := jwt.NewVerifier(&cfg.JWT)
	authOpts := jwt.MiddlewareOptions{AllowUserIDHeader: cfg.Server.IsDevelopment()}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(correlateEvents)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-User-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
		}
		if rmq != nil {
			health["rabbitmq"] = rmq.Health()
		}
		httputil.JSON(w, http.StatusOK, health)
	})

	if m != nil {
		r.Handle(cfg.Metrics.Path, m.Handler())
	}

	r.Route("/api/v1/pharmacy", func(r chi.Router) {
		r.Use(verifier.Middleware(log, authOpts))
		handler.Mount(r, prescriptionHandler, invoiceHandler, missingHandler)
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

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop consumers before draining HTTP
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// correlateEvents tags events published while serving a request with its request ID
func correlateEvents(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := messaging.WithCorrelationID(r.Context(), httputil.GetRequestID(r.Context()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
