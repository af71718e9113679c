package ports

import (
	"context"

	"logiflow-service/internal/domain"
)

// Optional store of extraction results keyed by the digest of the encoded image.
// Preprocessing is deterministic, so an identical frame maps to the same key.
type ExtractionCache interface {
	Get(ctx context.Context, digest string) (*domain.LabelExtraction, bool, error)
	Put(ctx context.Context, digest string, e *domain.LabelExtraction) error
}
