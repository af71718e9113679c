package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"logiflow-service/internal/api/dto"
	"logiflow-service/internal/capture"
	"logiflow-service/internal/domain"
	"logiflow-service/internal/platform/obs"
	"logiflow-service/internal/services"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode failed", "method", r.Method, "path", r.URL.Path, "err", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, dto.ErrorResponse{Error: msg})
}

// decodeJSON reads exactly one JSON object into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return errors.New("invalid json body")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("body must contain only one JSON object")
	}
	return nil
}

// WriteServiceError maps core errors to HTTP responses. Anything unexpected
// is logged and reported as a 500 without details.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ee *domain.ExtractionError

	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrSubscriptionRequired):
		writeError(w, r, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, services.ErrForbidden), errors.Is(err, services.ErrPermissionDenied):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInvalidEmail), errors.Is(err, capture.ErrEmptyFrame):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, capture.ErrFrameTooLarge):
		writeError(w, r, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, services.ErrNoPreview):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrCaptureInProgress):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrSessionClosed):
		writeError(w, r, http.StatusGone, err.Error())
	case errors.As(err, &ee):
		slog.Warn("label extraction failed", "req_id", obs.RequestID(r.Context()), "err", err)
		writeError(w, r, http.StatusBadGateway, ee.UserMessage())
	case errors.Is(err, context.Canceled):
		// Client went away; nothing useful can be written.
	default:
		slog.Error("request failed", "req_id", obs.RequestID(r.Context()), "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

type profileKey struct{}

// WithProfile attaches the signed-in profile to ctx.
func WithProfile(ctx context.Context, p *domain.UserProfile) context.Context {
	return context.WithValue(ctx, profileKey{}, p)
}

// ProfileFrom returns the profile set by the identity middleware.
func ProfileFrom(ctx context.Context) (*domain.UserProfile, bool) {
	p, ok := ctx.Value(profileKey{}).(*domain.UserProfile)
	return p, ok && p != nil
}

// routeKey resolves the caller's route list key, writing 401 when absent.
func routeKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	p, ok := ProfileFrom(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, services.ErrUnauthenticated.Error())
		return "", false
	}
	return p.RouteKey(), true
}
