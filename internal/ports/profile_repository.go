package ports

import (
	"context"

	"logiflow-service/internal/domain"
)

// Port: the authenticated session's profile, keyed by e-mail.
type ProfileRepository interface {
	GetProfile(ctx context.Context, email string) (*domain.UserProfile, bool, error)
	SaveProfile(ctx context.Context, p *domain.UserProfile) error
}
