package extraction

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"logiflow-service/internal/domain"
	"logiflow-service/internal/platform/obs"
	"logiflow-service/internal/ports"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-3-flash-preview"
)

// GeminiExtractor implements LabelExtractor with the Gemini generateContent API.
//
// It sends the label image with a fixed instruction set and response schema,
// then decodes the answer strictly into a LabelExtraction. Results may be
// memoized by image digest through an optional ExtractionCache.
//
// The extractor is safe for concurrent use.
type GeminiExtractor struct {
	session     *http.Client
	apiKey      string
	baseURL     string
	model       string
	maxAttempts int
	cache       ports.ExtractionCache
}

type Option func(*GeminiExtractor)

func WithBaseURL(u string) Option {
	return func(g *GeminiExtractor) { g.baseURL = strings.TrimRight(u, "/") }
}

func WithModel(m string) Option {
	return func(g *GeminiExtractor) { g.model = m }
}

func WithTimeout(d time.Duration) Option {
	return func(g *GeminiExtractor) { g.session.Timeout = d }
}

// WithMaxAttempts enables transport-level retries of transient failures.
func WithMaxAttempts(n int) Option {
	return func(g *GeminiExtractor) { g.maxAttempts = n }
}

func WithCache(c ports.ExtractionCache) Option {
	return func(g *GeminiExtractor) { g.cache = c }
}

func NewGeminiExtractor(apiKey string, opts ...Option) (*GeminiExtractor, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini api key is empty")
	}

	g := &GeminiExtractor{
		session:     &http.Client{Timeout: 30 * time.Second},
		apiKey:      apiKey,
		baseURL:     DefaultBaseURL,
		model:       DefaultModel,
		maxAttempts: 1,
	}
	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// Extract reads one label. Every failure is returned as *domain.ExtractionError.
// Fields the model reports as "unknown" are a successful, unresolved result.
func (g *GeminiExtractor) Extract(
	ctx context.Context,
	imageBase64 string,
) (_ *domain.LabelExtraction, err error) {
	defer obs.Time(ctx, "gemini.Extract")(&err)

	if strings.TrimSpace(imageBase64) == "" {
		return nil, &domain.ExtractionError{Op: "validate image", Err: errors.New("image payload is empty")}
	}

	digest := Digest(imageBase64)
	if g.cache != nil {
		hit, ok, err := g.cache.Get(ctx, digest)
		if err != nil {
			slog.Warn("extraction cache read failed", "digest", digest, "err", err)
		} else if ok {
			return hit, nil
		}
	}

	text, err := g.generate(ctx, imageBase64)
	if err != nil {
		return nil, &domain.ExtractionError{Op: "call service", Err: err}
	}

	out, err := ParseLabel(text)
	if err != nil {
		return nil, &domain.ExtractionError{Op: "parse response", Err: err}
	}

	if g.cache != nil {
		if err := g.cache.Put(ctx, digest, out); err != nil {
			slog.Warn("extraction cache write failed", "digest", digest, "err", err)
		}
	}

	return out, nil
}

// generate posts the request and returns the model's JSON text.
func (g *GeminiExtractor) generate(ctx context.Context, imageBase64 string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)

	payload, err := json.Marshal(newGenerateRequest(imageBase64))
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	resp, err := g.doWithRetry(ctx, func() (*http.Request, error) {
		return g.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	})
	if err != nil {
		return "", fmt.Errorf("generate request failed: %w", err)
	}
	defer resp.Body.Close()

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}

	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("request blocked: %s", gr.PromptFeedback.BlockReason)
	}
	if len(gr.Candidates) == 0 {
		return "", errors.New("no candidates in response")
	}

	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("empty candidate (finish reason %q)", gr.Candidates[0].FinishReason)
	}

	return sb.String(), nil
}

// ParseLabel decodes the model's JSON answer against the label schema.
// Unknown keys, non-string values and missing required fields are rejected.
func ParseLabel(text string) (*domain.LabelExtraction, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(text)))
	dec.DisallowUnknownFields()

	var f labelFields
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode label json: %w", err)
	}
	if dec.More() {
		return nil, errors.New("label json must contain only one object")
	}

	out := &domain.LabelExtraction{
		Name:         domain.NewLabelField(f.Name),
		Address:      domain.NewLabelField(f.Address),
		Neighborhood: domain.NewLabelField(f.Neighborhood),
		City:         domain.NewLabelField(f.City),
		Country:      domain.NewLabelField(f.Country),
		PostalCode:   domain.NewLabelField(f.PostalCode),
		Phone:        domain.NewLabelField(f.Phone),
		GuidanceNote: domain.NewLabelField(f.GuidanceNote),
	}

	missing := make(map[string]struct{})
	for _, m := range out.Missing() {
		missing[m] = struct{}{}
	}
	var absent []string
	for _, r := range requiredFields {
		if _, ok := missing[r]; ok {
			absent = append(absent, r)
		}
	}
	if len(absent) > 0 {
		return nil, fmt.Errorf("missing required fields: %s", strings.Join(absent, ", "))
	}

	return out, nil
}

// Digest keys an encoded image for the extraction cache.
func Digest(imageBase64 string) string {
	sum := sha256.Sum256([]byte(imageBase64))
	return hex.EncodeToString(sum[:])
}
