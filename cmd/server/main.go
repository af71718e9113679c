package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/text/language"

	"logiflow-service/internal/adapters/cache"
	"logiflow-service/internal/adapters/events"
	"logiflow-service/internal/adapters/extraction"
	"logiflow-service/internal/adapters/repositories"
	"logiflow-service/internal/api"
	"logiflow-service/internal/capture"
	"logiflow-service/internal/config"
	"logiflow-service/internal/domain"
	"logiflow-service/internal/platform/db"
	"logiflow-service/internal/ports"
	"logiflow-service/internal/services"
)

// demoLabel is what EXTRACTOR=mock answers for every frame.
const demoLabel = `{"nome":"Cliente Demo","endereco":"Av. Paulista, 1000","bairro":"Bela Vista","cidade":"São Paulo","pais":"Brasil","cep":"01310-100","telefone":"(11) 90000-0000","passo_a_passo":"Address validated"}`

// main is the application composition root.
// It wires concrete adapters (SQL, Redis, Gemini, brokers) behind ports and starts the HTTP server.
func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	conn, dialect, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx := context.Background()
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return err
	}

	routeStore := repositories.NewSQLRouteListRepository(conn, dialect)
	if dialect == repositories.SQLite {
		// Local runs get the fleet master list without a separate dbtool step.
		if err := seedIfEmpty(ctx, routeStore, cfg); err != nil {
			return err
		}
	}

	var routes ports.RouteListRepository = routeStore
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		routes = cache.NewRedisRouteListCache(rdb, routeStore)
		slog.Info("route list cache enabled", "addr", opts.Addr)
	}

	extractor, err := newExtractor(cfg, conn, dialect)
	if err != nil {
		return err
	}

	publisher, pubCloser, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer pubCloser.Close()

	locale, err := language.Parse(cfg.Locale)
	if err != nil {
		return fmt.Errorf("parse LOCALE %q: %w", cfg.Locale, err)
	}

	opts := []services.RouteOption{
		services.WithLocale(locale),
		services.WithDefaultCountry(cfg.DefaultCountry),
	}
	if publisher != nil {
		opts = append(opts, services.WithEvents(publisher))
	}
	routeSvc := services.NewRouteService(routes, opts...)
	accounts := services.NewAccountService(repositories.NewSQLProfileRepository(conn, dialect), cfg.AdminEmail, cfg.TrialDays)
	captures := services.NewCaptureManager(extractor, capture.NewPreprocessor(), routeSvc)
	defer captures.CloseAll()

	// Clients that vanish without closing their capture view are expired here.
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go captures.SweepIdle(sweepCtx, cfg.CaptureIdleTTL)

	router := api.NewRouter(api.Deps{
		Accounts:    accounts,
		Routes:      routeSvc,
		Captures:    captures,
		CORSOrigins: cfg.CORSOrigins,
		Ping:        conn.PingContext,
	})

	// WriteTimeout leaves room for a slow vision call on a cold cache.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.ExtractionTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr, "store", cfg.StoreDriver, "extractor", cfg.Extractor, "events", cfg.EventsBackend)
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
	}

	stopSweep()
	captures.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config) (*sql.DB, repositories.Dialect, error) {
	dialect, err := repositories.ParseDialect(cfg.StoreDriver)
	if err != nil {
		return nil, 0, err
	}

	if dialect == repositories.Postgres {
		conn, err := db.Open(cfg.DatabaseURL)
		return conn, dialect, err
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, 0, fmt.Errorf("create db dir %q: %w", dir, err)
		}
	}
	conn, err := db.OpenSQLite(cfg.DBPath)
	return conn, dialect, err
}

func seedIfEmpty(ctx context.Context, store *repositories.SQLRouteListRepository, cfg *config.Config) error {
	key := domain.RouteKeyFor(cfg.AdminEmail)
	if _, ok, err := store.Load(ctx, key); err != nil || ok {
		return err
	}
	if _, err := os.Stat(cfg.SeedPath); errors.Is(err, os.ErrNotExist) {
		slog.Warn("seed file not found, master list starts empty", "path", cfg.SeedPath)
		return nil
	}

	n, err := repositories.SeedFromJSON(ctx, store, key, cfg.SeedPath)
	if err != nil {
		return err
	}
	slog.Info("seeded master list", "route_key", key, "records", n)
	return nil
}

func newExtractor(cfg *config.Config, conn *sql.DB, dialect repositories.Dialect) (ports.LabelExtractor, error) {
	if cfg.Extractor == "mock" {
		slog.Warn("using mock label extractor")
		return extraction.NewMockExtractor(demoLabel), nil
	}

	return extraction.NewGeminiExtractor(cfg.GeminiAPIKey,
		extraction.WithBaseURL(cfg.GeminiBaseURL),
		extraction.WithModel(cfg.GeminiModel),
		extraction.WithTimeout(cfg.ExtractionTimeout),
		extraction.WithMaxAttempts(cfg.ExtractionMaxAttempts),
		extraction.WithCache(cache.NewSQLExtractionCache(conn, dialect == repositories.Postgres)),
	)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// newPublisher returns nil when events are disabled.
func newPublisher(cfg *config.Config) (ports.EventPublisher, io.Closer, error) {
	switch cfg.EventsBackend {
	case "amqp":
		p, err := events.DialAMQP(cfg.AMQPURL)
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	case "mqtt":
		p, err := events.ConnectMQTT(cfg.MQTTBroker, "logiflow-"+uuid.NewString()[:8])
		if err != nil {
			return nil, nil, err
		}
		return p, p, nil
	}
	return nil, nopCloser{}, nil
}
