package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"logiflow-service/internal/domain"
)

// SQL-backed implementation of the ProfileRepository port.
type SQLProfileRepository struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewSQLProfileRepository(db *sql.DB, dialect Dialect) *SQLProfileRepository {
	return &SQLProfileRepository{DB: db, Dialect: dialect}
}

func (s *SQLProfileRepository) GetProfile(ctx context.Context, email string) (*domain.UserProfile, bool, error) {
	if s.DB == nil {
		return nil, false, errors.New("profile repository: DB is nil")
	}

	var payload string
	q := s.Dialect.rebind(`SELECT payload FROM profiles WHERE email = ?;`)
	err := s.DB.QueryRowContext(ctx, q, normalizeEmail(email)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get profile: query profiles table: %w", err)
	}

	var p domain.UserProfile
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return nil, false, fmt.Errorf("get profile: decode payload: %w", err)
	}
	return &p, true, nil
}

func (s *SQLProfileRepository) SaveProfile(ctx context.Context, p *domain.UserProfile) error {
	if s.DB == nil {
		return errors.New("profile repository: DB is nil")
	}
	if p == nil || strings.TrimSpace(p.Email) == "" {
		return errors.New("save profile: email cannot be empty")
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("save profile: encode payload: %w", err)
	}

	q := s.Dialect.rebind(`
	INSERT INTO profiles (email, payload)
	VALUES (?, ?)
	ON CONFLICT (email) DO UPDATE
	SET payload = EXCLUDED.payload;
	`)
	if _, err := s.DB.ExecContext(ctx, q, normalizeEmail(p.Email), string(payload)); err != nil {
		return fmt.Errorf("save profile: upsert: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
