package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"logiflow-service/internal/domain"
)

// MemoryStore keeps route lists and profiles as serialized snapshots in
// process memory. Callers never share slices with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	lists    map[string][]byte
	profiles map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lists:    make(map[string][]byte),
		profiles: make(map[string][]byte),
	}
}

func (m *MemoryStore) Load(_ context.Context, routeKey string) ([]domain.DeliveryRecord, bool, error) {
	m.mu.RLock()
	raw, ok := m.lists[routeKey]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	list := []domain.DeliveryRecord{}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, false, fmt.Errorf("load route list %q: decode: %w", routeKey, err)
	}
	return list, true, nil
}

func (m *MemoryStore) Save(_ context.Context, routeKey string, list []domain.DeliveryRecord) error {
	if list == nil {
		list = []domain.DeliveryRecord{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("save route list %q: encode: %w", routeKey, err)
	}

	m.mu.Lock()
	m.lists[routeKey] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) GetProfile(_ context.Context, email string) (*domain.UserProfile, bool, error) {
	m.mu.RLock()
	raw, ok := m.profiles[normalizeEmail(email)]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	var p domain.UserProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false, fmt.Errorf("get profile: decode: %w", err)
	}
	return &p, true, nil
}

func (m *MemoryStore) SaveProfile(_ context.Context, p *domain.UserProfile) error {
	if p == nil || strings.TrimSpace(p.Email) == "" {
		return errors.New("save profile: email cannot be empty")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("save profile: encode: %w", err)
	}

	m.mu.Lock()
	m.profiles[normalizeEmail(p.Email)] = raw
	m.mu.Unlock()
	return nil
}
