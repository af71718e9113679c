package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"logiflow-service/internal/domain"
	"logiflow-service/internal/platform/obs"
)

// SQL-backed implementation of the RouteListRepository port.
// Each route list is stored whole as one JSON document per route key.
type SQLRouteListRepository struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewSQLRouteListRepository(db *sql.DB, dialect Dialect) *SQLRouteListRepository {
	return &SQLRouteListRepository{DB: db, Dialect: dialect}
}

// Return the stored list for routeKey, or ok=false when nothing was ever saved.
func (s *SQLRouteListRepository) Load(
	ctx context.Context,
	routeKey string,
) (_ []domain.DeliveryRecord, _ bool, err error) {
	defer obs.Time(ctx, "routes.repo.Load")(&err)

	if s.DB == nil {
		return nil, false, errors.New("route list repository: DB is nil")
	}

	var payload string
	q := s.Dialect.rebind(`SELECT payload FROM route_lists WHERE route_key = ?;`)
	err = s.DB.QueryRowContext(ctx, q, routeKey).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load route list: query route_lists table: %w", err)
	}

	list := []domain.DeliveryRecord{}
	if err := json.Unmarshal([]byte(payload), &list); err != nil {
		return nil, false, fmt.Errorf("load route list %q: decode payload: %w", routeKey, err)
	}

	return list, true, nil
}

// Replace the stored list for routeKey.
func (s *SQLRouteListRepository) Save(
	ctx context.Context,
	routeKey string,
	list []domain.DeliveryRecord,
) (err error) {
	defer obs.Time(ctx, "routes.repo.Save")(&err)

	if s.DB == nil {
		return errors.New("route list repository: DB is nil")
	}

	if list == nil {
		list = []domain.DeliveryRecord{}
	}
	payload, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("save route list %q: encode payload: %w", routeKey, err)
	}

	q := s.Dialect.rebind(`
	INSERT INTO route_lists (route_key, payload, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT (route_key) DO UPDATE
	SET payload = EXCLUDED.payload,
		updated_at = EXCLUDED.updated_at;
	`)
	if _, err := s.DB.ExecContext(ctx, q, routeKey, string(payload), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("save route list %q: upsert: %w", routeKey, err)
	}

	return nil
}
