package extraction

import (
	"context"
	"sync"

	"logiflow-service/internal/domain"
)

// MockExtractor answers with canned model output. It is used by tests and by
// EXTRACTOR=mock for running the service without a vision API key.
type MockExtractor struct {
	mu       sync.Mutex
	byDigest map[string]string
	fallback string
	err      error
	calls    int
}

func NewMockExtractor(fallbackJSON string) *MockExtractor {
	return &MockExtractor{byDigest: make(map[string]string), fallback: fallbackJSON}
}

// On registers the raw JSON returned for a specific image.
func (m *MockExtractor) On(imageBase64, rawJSON string) *MockExtractor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byDigest[Digest(imageBase64)] = rawJSON
	return m
}

// Fail makes every call fail with err until reset with nil.
func (m *MockExtractor) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockExtractor) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockExtractor) Extract(ctx context.Context, imageBase64 string) (*domain.LabelExtraction, error) {
	m.mu.Lock()
	m.calls++
	raw, ok := m.byDigest[Digest(imageBase64)]
	if !ok {
		raw = m.fallback
	}
	failErr := m.err
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &domain.ExtractionError{Op: "call service", Err: err}
	}
	if failErr != nil {
		return nil, &domain.ExtractionError{Op: "call service", Err: failErr}
	}

	out, err := ParseLabel(raw)
	if err != nil {
		return nil, &domain.ExtractionError{Op: "parse response", Err: err}
	}
	return out, nil
}
