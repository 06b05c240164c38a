// Package tokens meters public API keys.
package tokens

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

// ErrUnknownKey is returned when an api key is not registered.
var ErrUnknownKey = errors.New("tokens: unknown api key")

// Usage is the accounting state of one api key after a request.
type Usage struct {
	APIKey       string
	RequestCount int64
	UpdatedAt    time.Time
}

// Store records api key usage.
type Store interface {
	// Touch increments the request counter of a known key. It returns
	// nil usage when the key does not exist.
	Touch(ctx context.Context, apiKey string) (*Usage, error)
}

// Service validates and meters api keys.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("tokens service: nil store")
	}
	return &Service{store: store}, nil
}

// Authorize accepts a known key and counts the request against it.
func (s *Service) Authorize(ctx context.Context, apiKey string) (*Usage, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, ErrUnknownKey
	}
	usage, err := s.store.Touch(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if usage == nil {
		return nil, ErrUnknownKey
	}
	return usage, nil
}

// MemoryStore keeps api keys in process. Used by tests and local runs.
type MemoryStore struct {
	mu    sync.Mutex
	usage map[string]*Usage
	now   func() time.Time
}

// NewMemoryStore registers the given keys with zero usage.
func NewMemoryStore(keys ...string) *MemoryStore {
	store := &MemoryStore{usage: make(map[string]*Usage), now: func() time.Time { return time.Now().UTC() }}
	for _, key := range keys {
		store.usage[key] = &Usage{APIKey: key}
	}
	return store
}

// Touch increments the counter of a known key.
func (s *MemoryStore) Touch(ctx context.Context, apiKey string) (*Usage, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	usage, ok := s.usage[apiKey]
	if !ok {
		return nil, nil
	}
	usage.RequestCount++
	usage.UpdatedAt = s.now()
	out := *usage
	return &out, nil
}
