package alert

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// automationSource marks alerts raised by automation rule actions.
const automationSource = "automation"

// automationTitle is the default title for automation notifications.
const automationTitle = "Automation notification"

// maxMessageLength bounds alert messages.
const maxMessageLength = 500

// EventPublisher is the interface for pushing alerts to connected apps.
// It is implemented by the realtime hub.
type EventPublisher interface {
	PublishHome(homeID, event string, payload any)
}

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// eventAlertNew is the realtime event name for freshly raised alerts.
// Kept in sync with the realtime package's event constants.
const eventAlertNew = "alert:new"

// Service raises, lists, and acknowledges alerts. Raising an alert
// persists it first, then pushes it to connected apps; the push is
// fire-and-forget, so delivery failures never lose the alert.
//
// Service implements the automation engine's notification dispatch.
type Service struct {
	repo   Repository
	events EventPublisher
	logger Logger
}

// NewService creates an alert service.
//
// Parameters:
//   - repo: alert persistence
//   - events: realtime hub; nil disables push delivery
//   - logger: structured logger; nil disables logging
func NewService(repo Repository, events EventPublisher, logger Logger) *Service {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{
		repo:   repo,
		events: events,
		logger: logger,
	}
}

// Raise validates and persists an alert, then pushes it to connected
// apps on the home channel.
func (s *Service) Raise(ctx context.Context, a *Alert) error {
	if a == nil {
		return fmt.Errorf("%w: alert is nil", ErrInvalidAlert)
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.Severity == "" {
		a.Severity = SeverityInfo
	}
	if !a.Severity.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSeverity, a.Severity)
	}
	if strings.TrimSpace(a.HomeID) == "" {
		return fmt.Errorf("%w: home_id is required", ErrInvalidAlert)
	}
	msg := strings.TrimSpace(a.Message)
	if msg == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidAlert)
	}
	if len(msg) > maxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters", ErrInvalidAlert, maxMessageLength)
	}
	if strings.TrimSpace(a.Title) == "" {
		a.Title = automationTitle
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return fmt.Errorf("persisting alert: %w", err)
	}

	if s.events != nil {
		s.events.PublishHome(a.HomeID, eventAlertNew, a)
	}

	s.logger.Info("alert raised", "id", a.ID, "home_id", a.HomeID, "severity", a.Severity)
	return nil
}

// Notify raises an automation-sourced alert. This is the entry point
// used by rule actions of type "notification".
//
// Returns a human-readable detail for the action outcome.
func (s *Service) Notify(ctx context.Context, homeID, severity, message string) (string, error) {
	source := automationSource
	a := &Alert{
		HomeID:   homeID,
		Severity: Severity(severity),
		Message:  message,
		Source:   &source,
	}

	if err := s.Raise(ctx, a); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s alert raised", a.Severity), nil
}

// Get retrieves an alert by ID.
func (s *Service) Get(ctx context.Context, id string) (*Alert, error) {
	return s.repo.GetByID(ctx, id)
}

// List retrieves the most recent alerts for a home, newest first.
func (s *Service) List(ctx context.Context, homeID string, limit int) ([]Alert, error) {
	return s.repo.List(ctx, homeID, limit)
}

// Acknowledge marks an alert as seen.
func (s *Service) Acknowledge(ctx context.Context, id string) error {
	if err := s.repo.Acknowledge(ctx, id); err != nil {
		return err
	}
	s.logger.Debug("alert acknowledged", "id", id)
	return nil
}
