package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"logiflow-service/internal/adapters/handoff"
	"logiflow-service/internal/domain"
	"logiflow-service/internal/platform/metrics"
	"logiflow-service/internal/platform/obs"
	"logiflow-service/internal/ports"
)

// RouteService owns each driver's route list and the staged preview record.
//
// Every mutation loads the whole list, applies the change and saves the whole
// list before returning. Operations on the same route key are serialized;
// operations referencing an unknown record id are no-ops.
type RouteService struct {
	repo    ports.RouteListRepository
	events  ports.EventPublisher
	locale  language.Tag
	country string
	now     func() time.Time
	newID   func(prefix string) string

	locks keyedMutex

	mu       sync.Mutex
	previews map[string]domain.DeliveryRecord
}

type RouteOption func(*RouteService)

func WithEvents(p ports.EventPublisher) RouteOption {
	return func(s *RouteService) { s.events = p }
}

func WithLocale(tag language.Tag) RouteOption {
	return func(s *RouteService) { s.locale = tag }
}

// WithDefaultCountry sets the country stamped on imported records.
func WithDefaultCountry(c string) RouteOption {
	return func(s *RouteService) { s.country = c }
}

func WithClock(now func() time.Time) RouteOption {
	return func(s *RouteService) { s.now = now }
}

func WithIDGenerator(f func(prefix string) string) RouteOption {
	return func(s *RouteService) { s.newID = f }
}

func NewRouteService(repo ports.RouteListRepository, opts ...RouteOption) *RouteService {
	s := &RouteService{
		repo:     repo,
		locale:   language.BrazilianPortuguese,
		country:  "Brasil",
		now:      time.Now,
		newID:    func(prefix string) string { return prefix + uuid.NewString() },
		previews: make(map[string]domain.DeliveryRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

const (
	capturePrefix = "LF-"
	importPrefix  = "LF-IMP-"
)

// List returns the stored list, or an empty list on first use.
func (s *RouteService) List(ctx context.Context, routeKey string) ([]domain.DeliveryRecord, error) {
	list, _, err := s.repo.Load(ctx, routeKey)
	if err != nil {
		return nil, fmt.Errorf("list route: %w", err)
	}
	if list == nil {
		list = []domain.DeliveryRecord{}
	}
	return list, nil
}

// Get returns one record from the list.
func (s *RouteService) Get(ctx context.Context, routeKey, id string) (domain.DeliveryRecord, bool, error) {
	list, err := s.List(ctx, routeKey)
	if err != nil {
		return domain.DeliveryRecord{}, false, err
	}
	if i := indexOf(list, id); i >= 0 {
		return list[i], true, nil
	}
	return domain.DeliveryRecord{}, false, nil
}

// PrioritizedView returns the list in fleet priority order, filtered by
// status and search query.
func (s *RouteService) PrioritizedView(ctx context.Context, routeKey, status, query string) ([]domain.DeliveryRecord, error) {
	list, err := s.List(ctx, routeKey)
	if err != nil {
		return nil, err
	}
	return Filter(PriorityOrder(list, s.locale), status, query), nil
}

// StagePreview turns an extraction into the single pending preview for
// routeKey, replacing any earlier one. The route list is not touched.
func (s *RouteService) StagePreview(routeKey string, ext *domain.LabelExtraction, loc *domain.Geolocation) domain.DeliveryRecord {
	rec := ext.Record(s.newID(capturePrefix), s.now().UnixMilli())
	rec.SetLocation(loc)

	s.mu.Lock()
	s.previews[routeKey] = rec
	s.mu.Unlock()
	return rec
}

func (s *RouteService) Preview(routeKey string) (domain.DeliveryRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.previews[routeKey]
	return rec, ok
}

// EditPreview applies a manual correction to the staged record.
// It waits for an in-flight commit on the same route key.
func (s *RouteService) EditPreview(routeKey string, patch domain.FieldPatch) (domain.DeliveryRecord, error) {
	unlock := s.locks.Lock(routeKey)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.previews[routeKey]
	if !ok {
		return domain.DeliveryRecord{}, ErrNoPreview
	}
	patch.Apply(&rec)
	s.previews[routeKey] = rec
	return rec, nil
}

// DiscardPreview drops the staged record. It reports whether one existed.
func (s *RouteService) DiscardPreview(routeKey string) bool {
	unlock := s.locks.Lock(routeKey)
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.previews[routeKey]
	delete(s.previews, routeKey)
	return ok
}

// CommitPreview inserts the staged record at the head of the list and saves it.
// The preview stays staged if saving fails.
func (s *RouteService) CommitPreview(ctx context.Context, routeKey string) (_ domain.DeliveryRecord, err error) {
	defer obs.Time(ctx, "routes.CommitPreview")(&err)

	unlock := s.locks.Lock(routeKey)
	defer unlock()

	rec, ok := s.Preview(routeKey)
	if !ok {
		return domain.DeliveryRecord{}, ErrNoPreview
	}

	err = s.mutateLocked(ctx, routeKey, func(list []domain.DeliveryRecord) ([]domain.DeliveryRecord, bool) {
		return append([]domain.DeliveryRecord{rec}, list...), true
	})
	if err != nil {
		return domain.DeliveryRecord{}, fmt.Errorf("commit preview: %w", err)
	}

	s.mu.Lock()
	if cur, ok := s.previews[routeKey]; ok && cur.ID == rec.ID {
		delete(s.previews, routeKey)
	}
	s.mu.Unlock()

	s.publish(ctx, domain.EventCommitted, routeKey, rec.ID, rec.Status)
	return rec, nil
}

// Import prepends one pending record per non-blank line of text.
func (s *RouteService) Import(ctx context.Context, routeKey, text string) (_ []domain.DeliveryRecord, err error) {
	defer obs.Time(ctx, "routes.Import")(&err)

	added := ParseImport(text, s.country, s.now().UnixMilli(), func() string {
		return s.newID(importPrefix)
	})
	if len(added) == 0 {
		return []domain.DeliveryRecord{}, nil
	}

	err = s.mutate(ctx, routeKey, func(list []domain.DeliveryRecord) ([]domain.DeliveryRecord, bool) {
		return append(slices.Clone(added), list...), true
	})
	if err != nil {
		return nil, fmt.Errorf("import deliveries: %w", err)
	}

	metrics.RecordImported(len(added))
	for _, d := range added {
		s.publish(ctx, domain.EventImported, routeKey, d.ID, d.Status)
	}
	return added, nil
}

// Navigation is the outcome of InitiateNavigation.
type Navigation struct {
	Record domain.DeliveryRecord `json:"record"`
	URL    string                `json:"url"`
}

// InitiateNavigation marks the record on_way and returns the deep link that
// opens the chosen map app on its address. Navigating always moves the record
// to on_way, whatever its current status.
func (s *RouteService) InitiateNavigation(
	ctx context.Context,
	routeKey, id string,
	provider handoff.Provider,
) (Navigation, bool, error) {
	rec, found, err := s.transition(ctx, routeKey, id, domain.StatusOnWay)
	if err != nil || !found {
		return Navigation{}, found, err
	}
	return Navigation{Record: rec, URL: handoff.NavigationURL(provider, rec.FullAddress())}, true, nil
}

// Complete marks the record delivered. CompletedAt is stamped on the first
// transition only; completing a delivered record changes nothing.
func (s *RouteService) Complete(ctx context.Context, routeKey, id string) (domain.DeliveryRecord, bool, error) {
	return s.transition(ctx, routeKey, id, domain.StatusDelivered)
}

func (s *RouteService) transition(
	ctx context.Context,
	routeKey, id string,
	to domain.Status,
) (_ domain.DeliveryRecord, _ bool, err error) {
	defer obs.Time(ctx, "routes.transition."+string(to))(&err)

	var (
		out     domain.DeliveryRecord
		found   bool
		changed bool
	)
	err = s.mutate(ctx, routeKey, func(list []domain.DeliveryRecord) ([]domain.DeliveryRecord, bool) {
		i := indexOf(list, id)
		if i < 0 {
			return list, false
		}
		found = true

		rec := &list[i]
		if rec.Status != to {
			rec.Status = to
			changed = true
		}
		if to == domain.StatusDelivered && rec.CompletedAt == nil {
			at := s.now().UnixMilli()
			rec.CompletedAt = &at
			changed = true
		}
		out = *rec
		return list, changed
	})
	if err != nil {
		return domain.DeliveryRecord{}, found, fmt.Errorf("set status %s on %q: %w", to, id, err)
	}

	if changed {
		metrics.RecordTransition(string(to))
		ev := domain.EventOnWay
		if to == domain.StatusDelivered {
			ev = domain.EventDelivered
		}
		s.publish(ctx, ev, routeKey, id, to)
	}
	return out, found, nil
}

// Remove deletes a record from the list.
func (s *RouteService) Remove(ctx context.Context, routeKey, id string) (_ bool, err error) {
	defer obs.Time(ctx, "routes.Remove")(&err)

	found := false
	err = s.mutate(ctx, routeKey, func(list []domain.DeliveryRecord) ([]domain.DeliveryRecord, bool) {
		i := indexOf(list, id)
		if i < 0 {
			return list, false
		}
		found = true
		return slices.Delete(list, i, i+1), true
	})
	if err != nil {
		return false, fmt.Errorf("remove %q: %w", id, err)
	}

	if found {
		s.publish(ctx, domain.EventRemoved, routeKey, id, "")
	}
	return found, nil
}

// EditFields overwrites free-text fields of a stored record.
func (s *RouteService) EditFields(
	ctx context.Context,
	routeKey, id string,
	patch domain.FieldPatch,
) (_ domain.DeliveryRecord, _ bool, err error) {
	defer obs.Time(ctx, "routes.EditFields")(&err)

	var out domain.DeliveryRecord
	found := false
	err = s.mutate(ctx, routeKey, func(list []domain.DeliveryRecord) ([]domain.DeliveryRecord, bool) {
		i := indexOf(list, id)
		if i < 0 {
			return list, false
		}
		found = true
		before := list[i]
		patch.Apply(&list[i])
		out = list[i]
		return list, out != before
	})
	if err != nil {
		return domain.DeliveryRecord{}, false, fmt.Errorf("edit %q: %w", id, err)
	}
	return out, found, nil
}

// ActivateRoute moves delivered records to the back of the list and saves
// the new order.
func (s *RouteService) ActivateRoute(ctx context.Context, routeKey string) (_ []domain.DeliveryRecord, err error) {
	defer obs.Time(ctx, "routes.ActivateRoute")(&err)

	var out []domain.DeliveryRecord
	err = s.mutate(ctx, routeKey, func(list []domain.DeliveryRecord) ([]domain.DeliveryRecord, bool) {
		out = ActivationOrder(list)
		return out, true
	})
	if err != nil {
		return nil, fmt.Errorf("activate route: %w", err)
	}

	s.publish(ctx, domain.EventReordered, routeKey, "", "")
	return out, nil
}

// mutate runs fn on the loaded list under the route key lock and saves the
// result when fn reports a change.
func (s *RouteService) mutate(
	ctx context.Context,
	routeKey string,
	fn func([]domain.DeliveryRecord) ([]domain.DeliveryRecord, bool),
) error {
	unlock := s.locks.Lock(routeKey)
	defer unlock()
	return s.mutateLocked(ctx, routeKey, fn)
}

func (s *RouteService) mutateLocked(
	ctx context.Context,
	routeKey string,
	fn func([]domain.DeliveryRecord) ([]domain.DeliveryRecord, bool),
) error {
	list, _, err := s.repo.Load(ctx, routeKey)
	if err != nil {
		return fmt.Errorf("load list: %w", err)
	}
	if list == nil {
		list = []domain.DeliveryRecord{}
	}

	next, changed := fn(list)
	if !changed {
		return nil
	}

	if err := s.repo.Save(ctx, routeKey, next); err != nil {
		return fmt.Errorf("save list: %w", err)
	}
	return nil
}

func (s *RouteService) publish(ctx context.Context, t domain.EventType, routeKey, id string, status domain.Status) {
	if s.events == nil {
		return
	}
	ev := domain.DeliveryEvent{
		Type:     t,
		RouteKey: routeKey,
		RecordID: id,
		Status:   status,
		At:       s.now().UnixMilli(),
	}
	if err := s.events.Publish(ctx, ev); err != nil {
		slog.Warn("publish delivery event failed", "req_id", obs.RequestID(ctx), "type", t, "record_id", id, "err", err)
	}
}

func indexOf(list []domain.DeliveryRecord, id string) int {
	return slices.IndexFunc(list, func(d domain.DeliveryRecord) bool { return d.ID == id })
}

// keyedMutex serializes work per route key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedEntry)
	}
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
