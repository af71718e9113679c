package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"logiflow-service/internal/domain"
	"logiflow-service/internal/platform/obs"
)

// SQLExtractionCache is a SQL-backed cache mapping image digests to extraction results.
type SQLExtractionCache struct {
	DB       *sql.DB
	Postgres bool
}

func NewSQLExtractionCache(db *sql.DB, postgres bool) *SQLExtractionCache {
	return &SQLExtractionCache{DB: db, Postgres: postgres}
}

type cachedField struct {
	Value string `json:"v"`
	State string `json:"s"`
}

func toCached(f domain.LabelField) cachedField {
	return cachedField{Value: f.Value, State: f.State.String()}
}

func fromCached(c cachedField) domain.LabelField {
	switch c.State {
	case domain.FieldResolved.String():
		return domain.LabelField{Value: c.Value, State: domain.FieldResolved}
	case domain.FieldUnresolved.String():
		return domain.LabelField{Value: c.Value, State: domain.FieldUnresolved}
	}
	return domain.LabelField{State: domain.FieldMissing}
}

// Cached rows are keyed by wire field name.
func encodeExtraction(e *domain.LabelExtraction) ([]byte, error) {
	return json.Marshal(map[string]cachedField{
		"nome":          toCached(e.Name),
		"endereco":      toCached(e.Address),
		"bairro":        toCached(e.Neighborhood),
		"cidade":        toCached(e.City),
		"pais":          toCached(e.Country),
		"cep":           toCached(e.PostalCode),
		"telefone":      toCached(e.Phone),
		"passo_a_passo": toCached(e.GuidanceNote),
	})
}

func decodeExtraction(raw []byte) (*domain.LabelExtraction, error) {
	var m map[string]cachedField
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &domain.LabelExtraction{
		Name:         fromCached(m["nome"]),
		Address:      fromCached(m["endereco"]),
		Neighborhood: fromCached(m["bairro"]),
		City:         fromCached(m["cidade"]),
		Country:      fromCached(m["pais"]),
		PostalCode:   fromCached(m["cep"]),
		Phone:        fromCached(m["telefone"]),
		GuidanceNote: fromCached(m["passo_a_passo"]),
	}, nil
}

func (s *SQLExtractionCache) ph(n int) string {
	if s.Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// Fetch a cached extraction for the digest.
func (s *SQLExtractionCache) Get(
	ctx context.Context,
	digest string,
) (_ *domain.LabelExtraction, _ bool, err error) {
	defer obs.Time(ctx, "extraction.cache.Get")(&err)

	if s.DB == nil {
		return nil, false, errors.New("extraction cache: db is nil")
	}

	digest = strings.TrimSpace(digest)
	if digest == "" {
		return nil, false, nil
	}

	q := `SELECT payload FROM extraction_cache WHERE digest = ` + s.ph(1) + `;`

	var payload string
	err = s.DB.QueryRowContext(ctx, q, digest).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get extraction cache: query extraction_cache table: %w", err)
	}

	out, err := decodeExtraction([]byte(payload))
	if err != nil {
		return nil, false, fmt.Errorf("get extraction cache: decode payload: %w", err)
	}
	return out, true, nil
}

// Store digest -> extraction in the cache.
func (s *SQLExtractionCache) Put(ctx context.Context, digest string, e *domain.LabelExtraction) error {
	if s.DB == nil {
		return errors.New("extraction cache: db is nil")
	}
	if strings.TrimSpace(digest) == "" {
		return fmt.Errorf("insert extraction cache: empty digest key")
	}
	if e == nil {
		return fmt.Errorf("insert extraction cache: nil extraction")
	}

	payload, err := encodeExtraction(e)
	if err != nil {
		return fmt.Errorf("insert extraction cache: encode payload: %w", err)
	}

	q := fmt.Sprintf(`
	INSERT INTO extraction_cache (digest, payload, created_at)
	VALUES (%s, %s, %s)
	ON CONFLICT (digest) DO UPDATE
	SET payload = EXCLUDED.payload,
		created_at = EXCLUDED.created_at;
	`, s.ph(1), s.ph(2), s.ph(3))

	if _, err := s.DB.ExecContext(ctx, q, digest, string(payload), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("insert extraction cache digest=%q: %w", digest, err)
	}

	return nil
}
