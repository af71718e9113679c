package ports

import (
	"context"

	"logiflow-service/internal/domain"
)

// Port: whole-list persistence of a driver's route, keyed by user identity.
type RouteListRepository interface {
	// Load returns the stored list. found is false on first run.
	Load(ctx context.Context, routeKey string) (list []domain.DeliveryRecord, found bool, err error)
	// Save replaces the stored list with list.
	Save(ctx context.Context, routeKey string, list []domain.DeliveryRecord) error
}
