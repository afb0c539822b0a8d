package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"

	"github.com/Simplici0/parcelrate/internal/buy4me"
	"github.com/Simplici0/parcelrate/internal/config"
	"github.com/Simplici0/parcelrate/internal/db"
	"github.com/Simplici0/parcelrate/internal/events"
	"github.com/Simplici0/parcelrate/internal/logging"
	"github.com/Simplici0/parcelrate/internal/metrics"
	"github.com/Simplici0/parcelrate/internal/migrations"
	"github.com/Simplici0/parcelrate/internal/refdata"
	"github.com/Simplici0/parcelrate/internal/seed"
	"github.com/Simplici0/parcelrate/internal/shipments"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

// breakerState reports the event publisher's circuit breaker.
type breakerState interface {
	State() gobreaker.State
}

type server struct {
	auth      *authService
	db        *sql.DB
	refs      *refdata.Store
	shipments *shipments.Service
	buy4me    *buy4me.Service
	receipts  shipments.ReceiptGenerator
	metrics   *metrics.Metrics
	validate  *validator.Validate
	log       *slog.Logger
	breaker   breakerState
}

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		ServiceName: "parcelrate",
		Environment: cfg.AppEnv,
		Version:     version,
	})
	slog.SetDefault(logger)

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	if err := migrations.Up(database); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	stats, err := seed.Run(database, seed.Config{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
		ReferenceData: cfg.SeedReferenceData,
	})
	if err != nil {
		return fmt.Errorf("seed database: %w", err)
	}
	logger.Info("seed complete", "inserts", stats.Inserts, "reference_data", cfg.SeedReferenceData)

	m := metrics.New()

	var (
		notifier events.Notifier
		breaker  breakerState
	)
	if cfg.KafkaEnabled() {
		kn := events.NewKafkaNotifier(
			events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic),
			events.DefaultBreakerConfig(),
			m,
			logger,
		)
		defer kn.Close()
		notifier, breaker = kn, kn
		logger.Info("publishing shipment events to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		notifier = events.NewLogNotifier(logger, m)
	}

	srv, err := newServer(database, cfg.SessionSecret, notifier, m, logger)
	if err != nil {
		return err
	}
	srv.breaker = breaker

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newServer(database *sql.DB, sessionSecret string, notifier events.Notifier, m *metrics.Metrics, logger *slog.Logger) (*server, error) {
	receipts, err := shipments.NewTextReceipt()
	if err != nil {
		return nil, fmt.Errorf("build receipt template: %w", err)
	}

	refs := refdata.NewStore(database, logger)
	return &server{
		auth:      newAuthService(database, sessionSecret),
		db:        database,
		refs:      refs,
		shipments: shipments.NewService(database, refs, notifier, m, logger),
		buy4me:    buy4me.NewService(database, refs, logger),
		receipts:  receipts,
		metrics:   m,
		validate:  newValidator(),
		log:       logging.Component(logger, "http"),
	}, nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.metrics.Middleware)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/rates/quote", s.handleQuote)
		r.Post("/currency/convert", s.handleConvert)

		r.Get("/countries", s.handleListCountries)
		r.Get("/service-types", s.handleListServiceTypes)
		r.Get("/extras", s.handleListExtras)
		r.Get("/cities", s.handleListCities)
		r.Get("/currencies", s.handleListCurrencies)

		r.Route("/shipments", func(r chi.Router) {
			r.Post("/", s.handleCreateShipment)
			r.Get("/", s.handleListShipments)
			r.Get("/track", s.handleTrackShipment)
			r.Get("/{id}", s.handleGetShipment)
			r.Patch("/{id}", s.handleUpdateShipment)
			r.Post("/{id}/status", s.handleShipmentStatus)
			r.Get("/{id}/receipt", s.handleShipmentReceipt)
		})

		r.Route("/buy4me", func(r chi.Router) {
			r.Post("/", s.handleCreateBuy4me)
			r.Get("/{id}", s.handleGetBuy4me)
			r.Post("/{id}/items", s.handleAddBuy4meItem)
			r.Patch("/{id}/items/{itemID}", s.handleUpdateBuy4meItem)
			r.Delete("/{id}/items/{itemID}", s.handleRemoveBuy4meItem)
			r.Put("/{id}/city", s.handleSetBuy4meCity)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/logout", s.handleLogout)

			r.Group(func(r chi.Router) {
				r.Use(s.requireAdmin)
				r.Post("/countries", s.handleCreateCountry)
				r.Post("/zones", s.handleCreateZone)
				r.Post("/service-types", s.handleCreateServiceType)
				r.Post("/rates", s.handleCreateWeightRate)
				r.Post("/dimensional-factors", s.handleCreateDimensionalFactor)
				r.Post("/additional-charges", s.handleCreateAdditionalCharge)
				r.Post("/extras", s.handleCreateExtra)
				r.Post("/cities", s.handleCreateCity)
				r.Post("/currencies", s.handleUpsertCurrency)
				r.Put("/cod-fee", s.handleSetCODFee)
				r.Post("/{resource}/{id}/active", s.handleSetActive)
				r.Post("/shipments/{id}/recalculate", s.handleRecalculateShipment)
				r.Post("/buy4me/{id}/status", s.handleBuy4meStatus)
			})
		})
	})

	return r
}

// requestLogger tags each request with an id and logs it once it completes.
func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		level := slog.LevelInfo
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.log.Log(r.Context(), level, "request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// handleHealth fails only when the database is unreachable. An open event
// breaker marks the service degraded.
func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.log.ErrorContext(r.Context(), "health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	body := map[string]string{"status": "ok"}
	if s.breaker != nil {
		state := s.breaker.State()
		body["event_breaker"] = state.String()
		if state == gobreaker.StateOpen {
			body["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, body)
}
