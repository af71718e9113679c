package services

import "errors"

var (
	ErrCaptureInProgress    = errors.New("a capture is already being processed")
	ErrSessionClosed        = errors.New("capture session is closed")
	ErrSessionNotFound      = errors.New("capture session not found")
	ErrNoPreview            = errors.New("no preview record staged")
	ErrPermissionDenied     = errors.New("camera permission denied")
	ErrSubscriptionRequired = errors.New("trial ended: subscription required")
	ErrUnauthenticated      = errors.New("not signed in")
	ErrForbidden            = errors.New("admin role required")
	ErrInvalidEmail         = errors.New("invalid e-mail address")
)
