package ports

import (
	"context"

	"logiflow-service/internal/domain"
)

// Contract for reading structured recipient data off a label image.
type LabelExtractor interface {
	// Extract reads one base64 JPEG label image. Implementations must not touch
	// any route list.
	Extract(ctx context.Context, imageBase64 string) (*domain.LabelExtraction, error)
}
