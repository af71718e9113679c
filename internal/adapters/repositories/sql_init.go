package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"logiflow-service/internal/domain"
)

// Dialect selects placeholder syntax. Queries are written with "?" and
// rebound for Postgres.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// ParseDialect maps a STORE_DRIVER value to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "":
		return SQLite, nil
	case "postgres", "pgx":
		return Postgres, nil
	}
	return SQLite, fmt.Errorf("unknown store driver %q", driver)
}

func (d Dialect) rebind(q string) string {
	if d != Postgres {
		return q
	}
	var sb strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// Initialize the database schema. The statements are valid for both SQLite and Postgres.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createRouteListsQuery := `
	CREATE TABLE IF NOT EXISTS route_lists (
		route_key TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	);
	`

	createProfilesQuery := `
	CREATE TABLE IF NOT EXISTS profiles (
		email TEXT PRIMARY KEY,
		payload TEXT NOT NULL
	);
	`

	createExtractionCacheQuery := `
	CREATE TABLE IF NOT EXISTS extraction_cache (
		digest TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		created_at BIGINT NOT NULL
	);
	`

	statements := []string{
		createRouteListsQuery,
		createProfilesQuery,
		createExtractionCacheQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// SeedFromJSON loads the admin master delivery list from a JSON file and
// stores it under routeKey, replacing any previous list.
func SeedFromJSON(ctx context.Context, repo *SQLRouteListRepository, routeKey, jsonPath string) (int, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return 0, fmt.Errorf("seed deliveries: read %q: %w", jsonPath, err)
	}

	var data []domain.DeliveryRecord
	if err := json.Unmarshal(bytes, &data); err != nil {
		return 0, fmt.Errorf("seed deliveries: parse json: %w", err)
	}

	seen := make(map[string]struct{}, len(data))
	for i := range data {
		item := &data[i]

		item.ID = strings.TrimSpace(item.ID)
		if item.ID == "" {
			return 0, fmt.Errorf("seed deliveries: item at index %d: id cannot be empty", i+1)
		}
		if _, dup := seen[item.ID]; dup {
			return 0, fmt.Errorf("seed deliveries: item at index %d: duplicate id %q", i+1, item.ID)
		}
		seen[item.ID] = struct{}{}

		if item.Status == "" {
			item.Status = domain.StatusPending
		}
		if !item.Status.Valid() {
			return 0, fmt.Errorf("seed deliveries: item %q: invalid status %q", item.ID, item.Status)
		}
	}

	if err := repo.Save(ctx, routeKey, data); err != nil {
		return 0, fmt.Errorf("seed deliveries: %w", err)
	}

	return len(data), nil
}
