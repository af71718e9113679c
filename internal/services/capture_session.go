package services

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"logiflow-service/internal/capture"
	"logiflow-service/internal/domain"
	"logiflow-service/internal/platform/metrics"
	"logiflow-service/internal/platform/obs"
	"logiflow-service/internal/ports"
)

// Permissions reports what the device granted when the capture view opened.
type Permissions struct {
	Camera bool `json:"camera"`
	Motion bool `json:"motion"`
}

// CaptureResult is a staged preview plus the fields the driver should review.
type CaptureResult struct {
	Preview    domain.DeliveryRecord `json:"preview"`
	Unresolved []string              `json:"unresolved"`
}

// CaptureManager tracks open capture sessions.
type CaptureManager struct {
	extractor ports.LabelExtractor
	pre       *capture.Preprocessor
	routes    *RouteService
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*CaptureSession
}

func NewCaptureManager(extractor ports.LabelExtractor, pre *capture.Preprocessor, routes *RouteService) *CaptureManager {
	if pre == nil {
		pre = capture.NewPreprocessor()
	}
	return &CaptureManager{
		extractor: extractor,
		pre:       pre,
		routes:    routes,
		now:       time.Now,
		sessions:  make(map[string]*CaptureSession),
	}
}

// Open starts a capture session for routeKey. Without camera access nothing
// can be captured, so the session is refused. Without motion access the
// session works but never reports ready.
func (m *CaptureManager) Open(routeKey string, perms Permissions, loc *domain.Geolocation) (*CaptureSession, error) {
	if !perms.Camera {
		return nil, ErrPermissionDenied
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &CaptureSession{
		ID:       uuid.NewString(),
		RouteKey: routeKey,
		perms:    perms,
		location: loc,
		manager:  m,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.touch()

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	slog.Info("capture session opened", "session_id", s.ID, "route_key", routeKey, "motion", perms.Motion)
	return s, nil
}

// Get returns an open session owned by routeKey.
func (m *CaptureManager) Get(routeKey, id string) (*CaptureSession, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok || s.RouteKey != routeKey {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close ends a session and cancels any extraction still running for it.
func (m *CaptureManager) Close(routeKey, id string) error {
	s, err := m.Get(routeKey, id)
	if err != nil {
		return err
	}
	s.Close()
	return nil
}

// CloseAll ends every open session.
func (m *CaptureManager) CloseAll() {
	m.mu.Lock()
	open := make([]*CaptureSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	for _, s := range open {
		s.Close()
	}
}

// CloseIdle ends sessions that saw no activity for ttl and returns how many
// it closed. A session with an extraction in flight is never idle.
func (m *CaptureManager) CloseIdle(ttl time.Duration) int {
	cutoff := m.now().Add(-ttl).UnixNano()

	m.mu.Lock()
	var idle []*CaptureSession
	for _, s := range m.sessions {
		if !s.busy.Load() && s.lastActive.Load() < cutoff {
			idle = append(idle, s)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		slog.Info("capture session expired", "session_id", s.ID, "route_key", s.RouteKey)
		s.Close()
	}
	return len(idle)
}

// SweepIdle calls CloseIdle every ttl/2 until ctx is done. A zero ttl
// disables expiry.
func (m *CaptureManager) SweepIdle(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ticker := time.NewTicker(max(ttl/2, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CloseIdle(ttl)
		}
	}
}

func (m *CaptureManager) forget(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// CaptureSession is one activation of the capture view. It owns the
// steadiness estimator, which starts from zero, and allows a single
// extraction in flight.
type CaptureSession struct {
	ID       string
	RouteKey string

	perms    Permissions
	location *domain.Geolocation
	manager  *CaptureManager

	mu  sync.Mutex
	est capture.Estimator

	busy       atomic.Bool
	closed     atomic.Bool
	lastActive atomic.Int64 // unix nanos
	ctx        context.Context
	cancel     context.CancelFunc
}

func (s *CaptureSession) Permissions() Permissions { return s.perms }

func (s *CaptureSession) touch() {
	s.lastActive.Store(s.manager.now().UnixNano())
}

// Observe feeds motion samples and returns the latest reading. Samples are
// ignored when motion access was refused.
func (s *CaptureSession) Observe(samples ...capture.MotionSample) (capture.Reading, error) {
	if s.closed.Load() {
		return capture.Reading{}, ErrSessionClosed
	}
	s.touch()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.perms.Motion {
		return s.est.Reading(), nil
	}
	for _, sample := range samples {
		s.est.Observe(sample)
	}
	return s.est.Reading(), nil
}

func (s *CaptureSession) Reading() capture.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.est.Reading()
}

func (s *CaptureSession) Busy() bool { return s.busy.Load() }

// Capture runs one frame through preprocessing and extraction and stages the
// result as the route's preview. Readiness is advisory and never blocks a
// capture. A result that arrives after the session closed is dropped.
func (s *CaptureSession) Capture(ctx context.Context, frame image.Image) (_ CaptureResult, err error) {
	defer obs.Time(ctx, "capture.Capture")(&err)

	if s.closed.Load() {
		return CaptureResult{}, ErrSessionClosed
	}
	if !s.busy.CompareAndSwap(false, true) {
		metrics.RecordCapture("rejected")
		return CaptureResult{}, ErrCaptureInProgress
	}
	defer s.busy.Store(false)
	s.touch()
	defer s.touch()

	payload, err := s.manager.pre.Process(frame)
	if err != nil {
		metrics.RecordCapture("failed")
		return CaptureResult{}, fmt.Errorf("capture: %w", err)
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	start := time.Now()
	ext, err := s.manager.extractor.Extract(callCtx, payload.Base64())
	metrics.ObserveExtraction(time.Since(start))

	if s.closed.Load() {
		metrics.RecordCapture("discarded")
		slog.Info("capture result discarded", "session_id", s.ID, "reason", "session closed")
		return CaptureResult{}, ErrSessionClosed
	}
	if err != nil {
		metrics.RecordCapture("failed")
		if !domain.IsExtractionError(err) {
			err = &domain.ExtractionError{Op: "call service", Err: err}
		}
		return CaptureResult{}, err
	}

	rec := s.manager.routes.StagePreview(s.RouteKey, ext, s.location)
	metrics.RecordCapture("staged")
	return CaptureResult{Preview: rec, Unresolved: nonNil(ext.Unresolved())}, nil
}

// Close releases the session. It is safe to call more than once.
func (s *CaptureSession) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.cancel()
	s.manager.forget(s.ID)
	slog.Info("capture session closed", "session_id", s.ID)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
