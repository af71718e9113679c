package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"logiflow-service/internal/adapters/repositories"
	"logiflow-service/internal/config"
	"logiflow-service/internal/domain"
	"logiflow-service/internal/platform/db"
)

// dbtool initializes the schema and loads the fleet master list into the
// admin's route key, replacing whatever was stored there. The server seeds
// an empty SQLite database on its own; this is for Postgres deployments and resets.
func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	// Only the store settings matter here, so the extractor and broker keys are not required.
	cfg, err := config.Resolve()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	dialect, err := repositories.ParseDialect(cfg.StoreDriver)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	if dialect == repositories.Postgres && cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required for STORE_DRIVER=postgres")
		os.Exit(1)
	}

	var conn *sql.DB
	if dialect == repositories.Postgres {
		conn, err = db.Open(cfg.DatabaseURL)
	} else {
		conn, err = db.OpenSQLite(cfg.DBPath)
	}
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := initAndSeed(context.Background(), conn, dialect, cfg); err != nil {
		slog.Error("seeding failed", "err", err)
		conn.Close()
		os.Exit(1)
	}
}

func initAndSeed(ctx context.Context, conn *sql.DB, dialect repositories.Dialect, cfg *config.Config) error {
	slog.Info("initializing database schema", "driver", cfg.StoreDriver)
	if err := repositories.InitSchema(ctx, conn); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}
	slog.Info("schema ready")

	key := domain.RouteKeyFor(cfg.AdminEmail)
	repo := repositories.NewSQLRouteListRepository(conn, dialect)
	n, err := repositories.SeedFromJSON(ctx, repo, key, cfg.SeedPath)
	if err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}
	slog.Info("seeding complete", "route_key", key, "records", n, "path", cfg.SeedPath)

	return nil
}
