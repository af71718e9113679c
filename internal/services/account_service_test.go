package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logiflow-service/internal/adapters/repositories"
	"logiflow-service/internal/domain"
)

func newAccounts(now *time.Time) *AccountService {
	a := NewAccountService(repositories.NewMemoryStore(), "Admin@LogiFlow.com", 7)
	a.now = func() time.Time { return *now }
	return a
}

func TestLoginCreatesTrialDriver(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := newAccounts(&now)
	ctx := context.Background()

	p, err := a.Login(ctx, " Ana@X.com ")
	require.NoError(t, err)
	assert.Equal(t, "ana@x.com", p.Email)
	assert.Equal(t, domain.RoleDriver, p.Role)
	assert.Equal(t, domain.SubscriptionTrialing, p.Status)
	assert.Equal(t, now.Add(7*24*time.Hour).UnixMilli(), p.TrialEndsAt)
	assert.Equal(t, domain.RouteKeyFor("ana@x.com"), p.RouteKey())

	again, err := a.Login(ctx, "ana@x.com")
	require.NoError(t, err)
	assert.Equal(t, p.UID, again.UID)
}

func TestLoginAdmin(t *testing.T) {
	now := time.Now()
	a := newAccounts(&now)

	p, err := a.Login(context.Background(), "admin@logiflow.com")
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())
}

func TestLoginRejectsBadEmail(t *testing.T) {
	now := time.Now()
	a := newAccounts(&now)

	for _, email := range []string{"", "   ", "not-an-email"} {
		_, err := a.Login(context.Background(), email)
		assert.ErrorIs(t, err, ErrInvalidEmail, email)
	}
}

func TestAuthorizeSubscriptionGate(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := newAccounts(&now)
	ctx := context.Background()

	_, err := a.Authorize(ctx, "ana@x.com")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = a.Login(ctx, "ana@x.com")
	require.NoError(t, err)
	_, err = a.Login(ctx, "admin@logiflow.com")
	require.NoError(t, err)

	_, err = a.Authorize(ctx, "ana@x.com")
	require.NoError(t, err)

	now = now.Add(8 * 24 * time.Hour)
	_, err = a.Authorize(ctx, "ana@x.com")
	require.NoError(t, err, "status trialing still grants access")

	p, err := a.Profile(ctx, "ana@x.com")
	require.NoError(t, err)
	p.Status = domain.SubscriptionExpired
	require.NoError(t, a.profiles.SaveProfile(ctx, p))

	_, err = a.Authorize(ctx, "ana@x.com")
	assert.ErrorIs(t, err, ErrSubscriptionRequired)

	_, err = a.Authorize(ctx, "admin@logiflow.com")
	require.NoError(t, err)
}
