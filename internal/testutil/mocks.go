package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/cassiomorais/payauth/internal/configuration"
	"github.com/cassiomorais/payauth/internal/domain/authorization"
	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/handoff"
)

// --- Gateway Transport Mock ---

// TransportCall records one request made through MockTransport.
type TransportCall struct {
	GraphQL   bool
	Path      string
	Body      any
	Query     string
	Variables map[string]any
}

// MockTransport is a mock implementation of gateway.Transport.
type MockTransport struct {
	mu    sync.Mutex
	calls []TransportCall

	PostFunc    func(ctx context.Context, path string, body any) ([]byte, error)
	GraphQLFunc func(ctx context.Context, query string, variables map[string]any) ([]byte, error)
}

func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

func (m *MockTransport) Post(ctx context.Context, path string, body any) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, TransportCall{Path: path, Body: body})
	m.mu.Unlock()
	if m.PostFunc != nil {
		return m.PostFunc(ctx, path, body)
	}
	return []byte(`{}`), nil
}

func (m *MockTransport) GraphQL(ctx context.Context, query string, variables map[string]any) ([]byte, error) {
	m.mu.Lock()
	m.calls = append(m.calls, TransportCall{GraphQL: true, Query: query, Variables: variables})
	m.mu.Unlock()
	if m.GraphQLFunc != nil {
		return m.GraphQLFunc(ctx, query, variables)
	}
	return []byte(`{}`), nil
}

func (m *MockTransport) Calls() []TransportCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TransportCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// --- Configuration Provider Mock ---

// MockConfigProvider is a mock implementation of service.ConfigProvider.
type MockConfigProvider struct {
	Config *configuration.Configuration
	Err    error

	mu    sync.Mutex
	calls int
}

func (m *MockConfigProvider) Fetch(_ context.Context, _ authorization.Authorization) (*configuration.Configuration, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Config, nil
}

func (m *MockConfigProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Pending Store Mock ---

// MockPendingStore is an in-memory pending.Store that ignores ttl.
type MockPendingStore struct {
	mu    sync.Mutex
	items map[string]*paymentauth.PendingRequest

	SaveFunc func(ctx context.Context, key string, p *paymentauth.PendingRequest, ttl time.Duration) error
	TakeFunc func(ctx context.Context, key string) (*paymentauth.PendingRequest, error)
}

func NewMockPendingStore() *MockPendingStore {
	return &MockPendingStore{items: make(map[string]*paymentauth.PendingRequest)}
}

func (m *MockPendingStore) Save(ctx context.Context, key string, p *paymentauth.PendingRequest, ttl time.Duration) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, key, p, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = p
	return nil
}

func (m *MockPendingStore) Take(ctx context.Context, key string) (*paymentauth.PendingRequest, error) {
	if m.TakeFunc != nil {
		return m.TakeFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[key]
	if !ok {
		return nil, domainErrors.ErrPendingNotFound
	}
	delete(m.items, key)
	return p, nil
}

func (m *MockPendingStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// --- Hand-off Platform Mock ---

// MockPlatform is a mock implementation of handoff.Platform.
type MockPlatform struct {
	mu      sync.Mutex
	started []handoff.Descriptor

	AssertAvailableFunc func(ctx context.Context, d handoff.Descriptor) error
	StartFunc           func(ctx context.Context, d handoff.Descriptor) (handoff.Handle, error)
}

func (m *MockPlatform) AssertAvailable(ctx context.Context, d handoff.Descriptor) error {
	if m.AssertAvailableFunc != nil {
		return m.AssertAvailableFunc(ctx, d)
	}
	return nil
}

func (m *MockPlatform) Start(ctx context.Context, d handoff.Descriptor) (handoff.Handle, error) {
	if m.StartFunc != nil {
		return m.StartFunc(ctx, d)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, d)
	return handoff.Handle{URL: d.URL}, nil
}

func (m *MockPlatform) Started() []handoff.Descriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]handoff.Descriptor, len(m.started))
	copy(out, m.started)
	return out
}

// --- Telemetry Sink ---

// Event is one emitted telemetry event.
type Event struct {
	Name          string
	CorrelationID string
}

// RecordingSink keeps every emitted event in order.
type RecordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *RecordingSink) Emit(_ context.Context, name, correlationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{Name: name, CorrelationID: correlationID})
}

func (s *RecordingSink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *RecordingSink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.events))
	for _, e := range s.events {
		names = append(names, e.Name)
	}
	return names
}
