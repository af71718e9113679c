package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"logiflow-service/internal/domain"
	"logiflow-service/internal/ports"
)

// AccountService is the minimal stand-in for the account system: it creates
// profiles on first sign-in and answers access checks.
type AccountService struct {
	profiles   ports.ProfileRepository
	adminEmail string
	trial      time.Duration
	now        func() time.Time
}

func NewAccountService(profiles ports.ProfileRepository, adminEmail string, trialDays int) *AccountService {
	return &AccountService{
		profiles:   profiles,
		adminEmail: normalizeEmail(adminEmail),
		trial:      time.Duration(trialDays) * 24 * time.Hour,
		now:        time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Login returns the stored profile for email, creating it on first sign-in.
// New drivers start a trial; the configured admin address gets the admin role.
func (a *AccountService) Login(ctx context.Context, email string) (*domain.UserProfile, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, ErrInvalidEmail
	}

	p, ok, err := a.profiles.GetProfile(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if ok {
		return p, nil
	}

	now := a.now()
	p = &domain.UserProfile{
		UID:         uuid.NewString(),
		Email:       email,
		SignupDate:  now.UnixMilli(),
		TrialEndsAt: now.Add(a.trial).UnixMilli(),
		Role:        domain.RoleDriver,
		Status:      domain.SubscriptionTrialing,
	}
	if email == a.adminEmail {
		p.Role = domain.RoleAdmin
		p.Status = domain.SubscriptionActive
	}

	if err := a.profiles.SaveProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return p, nil
}

// Profile returns the signed-in profile.
func (a *AccountService) Profile(ctx context.Context, email string) (*domain.UserProfile, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrUnauthenticated
	}
	p, ok, err := a.profiles.GetProfile(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if !ok {
		return nil, ErrUnauthenticated
	}
	return p, nil
}

// Authorize returns the profile when it may use driver operations.
func (a *AccountService) Authorize(ctx context.Context, email string) (*domain.UserProfile, error) {
	p, err := a.Profile(ctx, email)
	if err != nil {
		return nil, err
	}
	if !p.HasAccess(a.now()) {
		return p, ErrSubscriptionRequired
	}
	return p, nil
}
