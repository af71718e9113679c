package ports

import (
	"context"

	"logiflow-service/internal/domain"
)

// Sink for delivery lifecycle events consumed by fleet views.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.DeliveryEvent) error
}
