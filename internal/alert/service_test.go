package alert

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// mockRepository is an in-memory Repository for service tests.
type mockRepository struct {
	mu     sync.Mutex
	alerts map[string]*Alert
	fail   error
}

func newMockRepository() *mockRepository {
	return &mockRepository{alerts: make(map[string]*Alert)}
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return nil, ErrAlertNotFound
	}
	cpy := *a
	return &cpy, nil
}

func (m *mockRepository) List(_ context.Context, homeID string, _ int) ([]Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var alerts []Alert
	for _, a := range m.alerts {
		if a.HomeID == homeID {
			alerts = append(alerts, *a)
		}
	}
	return alerts, nil
}

func (m *mockRepository) Create(_ context.Context, a *Alert) error {
	if m.fail != nil {
		return m.fail
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cpy := *a
	m.alerts[a.ID] = &cpy
	return nil
}

func (m *mockRepository) Acknowledge(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[id]
	if !ok {
		return ErrAlertNotFound
	}
	a.Acknowledged = true
	return nil
}

// mockPublisher records realtime events.
type mockPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	HomeID  string
	Event   string
	Payload any
}

func (m *mockPublisher) PublishHome(homeID, event string, payload any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, publishedEvent{HomeID: homeID, Event: event, Payload: payload})
}

func TestRaise(t *testing.T) {
	repo := newMockRepository()
	hub := &mockPublisher{}
	service := NewService(repo, hub, nil)

	a := &Alert{HomeID: "home-1", Severity: SeverityWarning, Title: "Leak", Message: "Water detected"}
	if err := service.Raise(context.Background(), a); err != nil {
		t.Fatalf("Raise: %v", err)
	}

	if a.ID == "" {
		t.Error("ID was not generated")
	}
	if _, ok := repo.alerts[a.ID]; !ok {
		t.Error("alert was not persisted")
	}

	if len(hub.events) != 1 {
		t.Fatalf("events = %d, want 1", len(hub.events))
	}
	ev := hub.events[0]
	if ev.HomeID != "home-1" || ev.Event != "alert:new" {
		t.Errorf("event = %+v", ev)
	}
}

func TestRaise_Validation(t *testing.T) {
	service := NewService(newMockRepository(), nil, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		alert   *Alert
		wantErr error
	}{
		{"nil alert", nil, ErrInvalidAlert},
		{"missing home", &Alert{Message: "m"}, ErrInvalidAlert},
		{"empty message", &Alert{HomeID: "home-1", Message: "  "}, ErrInvalidAlert},
		{"message too long", &Alert{HomeID: "home-1", Message: strings.Repeat("x", maxMessageLength+1)}, ErrInvalidAlert},
		{"unknown severity", &Alert{HomeID: "home-1", Message: "m", Severity: "shrug"}, ErrInvalidSeverity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := service.Raise(ctx, tt.alert); !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRaise_DefaultsApplied(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo, nil, nil)

	a := &Alert{HomeID: "home-1", Message: "hello"}
	if err := service.Raise(context.Background(), a); err != nil {
		t.Fatalf("Raise: %v", err)
	}

	if a.Severity != SeverityInfo {
		t.Errorf("Severity = %s, want info", a.Severity)
	}
	if a.Title != automationTitle {
		t.Errorf("Title = %q", a.Title)
	}
}

func TestRaise_PersistFailureSkipsPush(t *testing.T) {
	repo := newMockRepository()
	repo.fail = errors.New("disk full")
	hub := &mockPublisher{}
	service := NewService(repo, hub, nil)

	err := service.Raise(context.Background(), &Alert{HomeID: "home-1", Message: "m"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(hub.events) != 0 {
		t.Errorf("events = %d, want 0 when persistence fails", len(hub.events))
	}
}

func TestNotify(t *testing.T) {
	repo := newMockRepository()
	hub := &mockPublisher{}
	service := NewService(repo, hub, nil)

	detail, err := service.Notify(context.Background(), "home-1", "warning", "Garage door open")
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if !strings.Contains(detail, "warning") {
		t.Errorf("detail = %q", detail)
	}

	if len(repo.alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(repo.alerts))
	}
	for _, a := range repo.alerts {
		if a.Source == nil || *a.Source != automationSource {
			t.Errorf("Source = %v, want automation", a.Source)
		}
		if a.Message != "Garage door open" {
			t.Errorf("Message = %q", a.Message)
		}
	}
}

func TestAcknowledge(t *testing.T) {
	repo := newMockRepository()
	service := NewService(repo, nil, nil)
	ctx := context.Background()

	a := &Alert{HomeID: "home-1", Message: "m"}
	if err := service.Raise(ctx, a); err != nil {
		t.Fatalf("Raise: %v", err)
	}

	if err := service.Acknowledge(ctx, a.ID); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	got, err := service.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Acknowledged {
		t.Error("Acknowledged = false, want true")
	}

	if err := service.Acknowledge(ctx, "ghost"); !errors.Is(err, ErrAlertNotFound) {
		t.Errorf("error = %v, want ErrAlertNotFound", err)
	}
}
