package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

// SubscriptionStatus mirrors the billing provider's subscription states.
type SubscriptionStatus string

const (
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionUnpaid   SubscriptionStatus = "unpaid"
	SubscriptionExpired  SubscriptionStatus = "expired"
)

// UserProfile is owned by the account system; the core only reads it.
// Timestamps are milliseconds since the Unix epoch.
type UserProfile struct {
	UID              string             `json:"uid"`
	Email            string             `json:"email"`
	SignupDate       int64              `json:"signupDate"`
	IsSubscribed     bool               `json:"isSubscribed"`
	TrialEndsAt      int64              `json:"trialEndsAt"`
	Role             Role               `json:"role"`
	StripeCustomerID string             `json:"stripeCustomerId,omitempty"`
	SubscriptionID   string             `json:"subscriptionId,omitempty"`
	Status           SubscriptionStatus `json:"status"`
}

// RouteKey scopes the persisted route list to this user.
func (u *UserProfile) RouteKey() string {
	return RouteKeyFor(u.Email)
}

// RouteKeyFor derives the per-user route list key from an e-mail address.
func RouteKeyFor(email string) string {
	return "logiflow_list_" + strings.ToLower(strings.TrimSpace(email))
}

func (u *UserProfile) IsAdmin() bool { return u.Role == RoleAdmin }

// HasAccess reports whether a driver may keep using the capture pipeline at now.
// Admins are never gated.
func (u *UserProfile) HasAccess(now time.Time) bool {
	if u.IsAdmin() {
		return true
	}
	trialExpired := now.UnixMilli() > u.TrialEndsAt
	subscriptionActive := u.IsSubscribed ||
		u.Status == SubscriptionActive ||
		u.Status == SubscriptionTrialing
	return !trialExpired || subscriptionActive
}
