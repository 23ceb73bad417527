// Package sos records emergency alerts raised from a session and publishes
// their lifecycle as events.
package sos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tourist-safety/internal/events"
	"tourist-safety/internal/models"
)

// Type is the kind of emergency
type Type string

const (
	TypeFuel   Type = "fuel"
	TypePanic  Type = "panic"
	TypeHealth Type = "health"
	TypePolice Type = "police"
)

// Status of an alert
type Status string

const (
	StatusActive    Status = "active"
	StatusResponded Status = "responded"
)

const (
	EventRaised    = "sos.raised"
	EventResponded = "sos.responded"

	// DefaultResponseDelay is how long until an alert is marked responded
	DefaultResponseDelay = 3 * time.Second
)

// ErrUnknownType is returned for an unrecognised emergency type
var ErrUnknownType = errors.New("unknown SOS type")

// ParseType accepts a type name in any case
func ParseType(s string) (Type, error) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeFuel, TypePanic, TypeHealth, TypePolice:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
}

// Alert is one raised emergency
type Alert struct {
	ID          string              `json:"id"`
	SessionID   string              `json:"session_id"`
	Type        Type                `json:"type"`
	Location    *models.Coordinates `json:"location,omitempty"`
	Status      Status              `json:"status"`
	RaisedAt    time.Time           `json:"raised_at"`
	RespondedAt *time.Time          `json:"responded_at,omitempty"`
}

// Service keeps alerts in memory per session
type Service struct {
	publisher events.Publisher
	delay     time.Duration
	logger    *zap.Logger

	mu     sync.RWMutex
	alerts map[string][]*Alert
	timers map[string]*time.Timer
	wg     sync.WaitGroup
	closed bool
}

// NewService creates an SOS service. A non-positive delay uses DefaultResponseDelay.
func NewService(publisher events.Publisher, delay time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	if delay <= 0 {
		delay = DefaultResponseDelay
	}
	return &Service{
		publisher: publisher,
		delay:     delay,
		logger:    logger.Named("sos"),
		alerts:    make(map[string][]*Alert),
		timers:    make(map[string]*time.Timer),
	}
}

// Raise records an active alert, publishes it, and schedules the response
func (s *Service) Raise(ctx context.Context, sessionID string, alertType Type, location *models.Coordinates) (Alert, error) {
	if _, err := ParseType(string(alertType)); err != nil {
		return Alert{}, err
	}

	alert := &Alert{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Type:      alertType,
		Status:    StatusActive,
		RaisedAt:  time.Now().UTC(),
	}
	if location != nil {
		loc := *location
		alert.Location = &loc
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Alert{}, errors.New("sos service closed")
	}
	s.alerts[sessionID] = append(s.alerts[sessionID], alert)
	snapshot := *alert
	s.wg.Add(1)
	s.timers[alert.ID] = time.AfterFunc(s.delay, func() {
		defer s.wg.Done()
		s.respond(alert.ID, sessionID)
	})
	s.mu.Unlock()

	s.logger.Warn("SOS raised",
		zap.String("session", sessionID),
		zap.String("alert", alert.ID),
		zap.String("type", string(alertType)))
	s.publish(ctx, EventRaised, snapshot)

	return snapshot, nil
}

func (s *Service) respond(alertID, sessionID string) {
	s.mu.Lock()
	delete(s.timers, alertID)
	var responded *Alert
	for _, a := range s.alerts[sessionID] {
		if a.ID == alertID {
			now := time.Now().UTC()
			a.Status = StatusResponded
			a.RespondedAt = &now
			responded = a
			break
		}
	}
	var snapshot Alert
	if responded != nil {
		snapshot = copyAlert(responded)
	}
	s.mu.Unlock()

	if responded == nil {
		return
	}
	s.logger.Info("SOS responded", zap.String("session", sessionID), zap.String("alert", alertID))
	s.publish(context.Background(), EventResponded, snapshot)
}

func (s *Service) publish(ctx context.Context, eventType string, alert Alert) {
	event, err := events.NewEvent(eventType, alert.SessionID, alert)
	if err == nil {
		err = s.publisher.Publish(ctx, event)
	}
	if err != nil {
		s.logger.Error("failed to publish SOS event",
			zap.String("type", eventType),
			zap.String("alert", alert.ID),
			zap.Error(err))
	}
}

// History returns a session's alerts newest first. A non-positive limit returns all.
func (s *Service) History(sessionID string, limit int) []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.alerts[sessionID]
	out := make([]Alert, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		out = append(out, copyAlert(stored[i]))
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Forget drops a session's alerts and cancels their pending responses
func (s *Service) Forget(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts[sessionID] {
		if t, ok := s.timers[a.ID]; ok && t.Stop() {
			delete(s.timers, a.ID)
			s.wg.Done()
		}
	}
	delete(s.alerts, sessionID)
}

// Close stops pending responses and closes the publisher
func (s *Service) Close() error {
	s.mu.Lock()
	s.closed = true
	for id, t := range s.timers {
		if t.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()

	s.wg.Wait()
	return s.publisher.Close()
}

func copyAlert(a *Alert) Alert {
	out := *a
	if a.Location != nil {
		loc := *a.Location
		out.Location = &loc
	}
	if a.RespondedAt != nil {
		t := *a.RespondedAt
		out.RespondedAt = &t
	}
	return out
}
