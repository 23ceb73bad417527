package sos

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tourist-safety/internal/events"
	"tourist-safety/internal/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func TestParseType(t *testing.T) {
	for _, in := range []string{"fuel", "PANIC", " Health ", "police"} {
		_, err := ParseType(in)
		assert.NoError(t, err, in)
	}

	_, err := ParseType("fire")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRaiseThenResponded(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(pub, 50*time.Millisecond, zap.NewNop())
	defer svc.Close()

	loc := models.Coordinates{Lat: 28.6139, Lng: 77.2090}
	alert, err := svc.Raise(context.Background(), "s1", TypePanic, &loc)
	require.NoError(t, err)

	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, StatusActive, alert.Status)
	assert.Equal(t, loc, *alert.Location)
	assert.Nil(t, alert.RespondedAt)

	require.Eventually(t, func() bool {
		history := svc.History("s1", 0)
		return len(history) == 1 && history[0].Status == StatusResponded && len(pub.types()) == 2
	}, time.Second, 10*time.Millisecond)

	history := svc.History("s1", 0)
	require.NotNil(t, history[0].RespondedAt)
	assert.Equal(t, []string{EventRaised, EventResponded}, pub.types())

	var payload Alert
	require.NoError(t, json.Unmarshal(pub.events[1].Data, &payload))
	assert.Equal(t, alert.ID, payload.ID)
	assert.Equal(t, StatusResponded, payload.Status)
	assert.Equal(t, "s1", pub.events[1].Subject)
}

func TestRaiseRejectsUnknownType(t *testing.T) {
	svc := NewService(&recordingPublisher{}, time.Hour, zap.NewNop())
	defer svc.Close()

	_, err := svc.Raise(context.Background(), "s1", Type("fire"), nil)
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.Empty(t, svc.History("s1", 0))
}

func TestRaiseRecordsAlertWhenPublishFails(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := NewService(pub, time.Hour, zap.NewNop())
	defer svc.Close()

	_, err := svc.Raise(context.Background(), "s1", TypeFuel, nil)
	require.NoError(t, err)
	assert.Len(t, svc.History("s1", 0), 1)
}

func TestHistoryNewestFirstWithLimit(t *testing.T) {
	svc := NewService(&recordingPublisher{}, time.Hour, zap.NewNop())
	defer svc.Close()

	first, _ := svc.Raise(context.Background(), "s1", TypeFuel, nil)
	second, _ := svc.Raise(context.Background(), "s1", TypeHealth, nil)
	third, _ := svc.Raise(context.Background(), "s1", TypePolice, nil)
	_, _ = svc.Raise(context.Background(), "other", TypePanic, nil)

	all := svc.History("s1", 0)
	require.Len(t, all, 3)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	limited := svc.History("s1", 2)
	require.Len(t, limited, 2)
	assert.Equal(t, third.ID, limited[0].ID)

	assert.Empty(t, svc.History("missing", 5))
}

func TestForgetCancelsPendingResponse(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(pub, 30*time.Millisecond, zap.NewNop())
	defer svc.Close()

	_, err := svc.Raise(context.Background(), "s1", TypePanic, nil)
	require.NoError(t, err)
	svc.Forget("s1")

	time.Sleep(80 * time.Millisecond)
	assert.Empty(t, svc.History("s1", 0))
	assert.Equal(t, []string{EventRaised}, pub.types())
}

func TestCloseStopsTimersAndClosesPublisher(t *testing.T) {
	pub := &recordingPublisher{}
	svc := NewService(pub, time.Hour, zap.NewNop())

	_, err := svc.Raise(context.Background(), "s1", TypePanic, nil)
	require.NoError(t, err)

	require.NoError(t, svc.Close())
	assert.True(t, pub.closed)

	_, err = svc.Raise(context.Background(), "s1", TypePanic, nil)
	assert.Error(t, err)
}
