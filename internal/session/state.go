package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"tourist-safety/internal/models"
	"tourist-safety/internal/routing"
)

var (
	// ErrSuperseded is returned when a newer request replaced the routes this call computed
	ErrSuperseded = errors.New("route aggregation superseded by a newer request")
	// ErrUnknownMode is returned for a travel mode outside the fixed set
	ErrUnknownMode = errors.New("unknown travel mode")
	// ErrIncomplete is returned when a refresh is requested without both endpoints
	ErrIncomplete = errors.New("origin and destination are both required")
	// ErrInsufficientFunds is returned when the wallet cannot cover a payment
	ErrInsufficientFunds = errors.New("insufficient wallet balance")
)

const (
	InitialBalance = 1000
	ParkingFee     = 50
)

// Status describes whether a RouteTable is held
type Status string

const (
	StatusEmpty     Status = "empty"
	StatusPopulated Status = "populated"
)

// Snapshot is an immutable copy of a session's selection state
type Snapshot struct {
	ID          string              `json:"id"`
	Mode        models.TravelMode   `json:"mode"`
	Status      Status              `json:"status"`
	Pending     bool                `json:"pending"`
	Routes      *models.RouteTable  `json:"routes"`
	Active      models.ActiveTravel `json:"active"`
	Origin      *models.Place       `json:"origin,omitempty"`
	Destination *models.Place       `json:"destination,omitempty"`
	Balance     int                 `json:"wallet_balance"`
	Sequence    uint64              `json:"sequence"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// State owns the travel mode, the RouteTable for the current origin/destination
// pair and the wallet of one dashboard session. All methods are safe for
// concurrent use. The provider is never called while the lock is held.
type State struct {
	id       string
	computer routing.RouteComputer
	logger   *zap.Logger

	mu          sync.Mutex
	mode        models.TravelMode
	table       *models.RouteTable
	origin      *models.Place
	destination *models.Place
	seq         uint64
	inFlight    int
	balance     int
	updatedAt   time.Time
}

// NewState creates a session in the Empty state with driving selected
func NewState(id string, computer routing.RouteComputer, logger *zap.Logger) *State {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &State{
		id:        id,
		computer:  computer,
		logger:    logger.With(zap.String("session", id)),
		mode:      models.TravelModeDriving,
		balance:   InitialBalance,
		updatedAt: time.Now(),
	}
}

// ID returns the session identifier
func (s *State) ID() string {
	return s.id
}

// SetOrigin records the traveller's location. The RouteTable belonged to the
// previous origin, so it is cleared and in-flight aggregations are dropped.
func (s *State) SetOrigin(origin models.Coordinates, name string) (Snapshot, error) {
	if err := origin.Validate(); err != nil {
		return s.Snapshot(), &routing.ErrInvalidCoordinates{Field: "origin", Reason: err.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.origin = &models.Place{Coords: origin, Name: name}
	s.table = nil
	s.seq++
	s.touch()

	s.logger.Debug("origin set", zap.String("origin", origin.String()), zap.Uint64("seq", s.seq))
	return s.snapshotLocked(), nil
}

// SetDestination records the destination and, when an origin is known,
// recomputes the RouteTable for every mode. Only the most recently requested
// aggregation may commit; an older one returns ErrSuperseded along with the
// current snapshot. The selected mode is preserved.
func (s *State) SetDestination(ctx context.Context, dest models.Coordinates, name string) (Snapshot, error) {
	if err := dest.Validate(); err != nil {
		return s.Snapshot(), &routing.ErrInvalidCoordinates{Field: "destination", Reason: err.Error()}
	}

	s.mu.Lock()
	s.destination = &models.Place{Coords: dest, Name: name}
	if s.origin == nil {
		s.table = nil
		s.seq++
		s.touch()
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.logger.Debug("destination set without origin, routes not computed")
		return snap, nil
	}
	origin := s.origin.Coords
	seq := s.beginLocked()
	s.mu.Unlock()

	return s.aggregate(ctx, seq, origin, dest)
}

// Refresh recomputes the RouteTable for the current origin and destination
func (s *State) Refresh(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if s.origin == nil || s.destination == nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, ErrIncomplete
	}
	origin, dest := s.origin.Coords, s.destination.Coords
	seq := s.beginLocked()
	s.mu.Unlock()

	return s.aggregate(ctx, seq, origin, dest)
}

// beginLocked claims the next sequence number for an aggregation. It must be
// called in the same critical section that reads the endpoints, so a later
// endpoint change always supersedes it.
func (s *State) beginLocked() uint64 {
	s.seq++
	s.inFlight++
	return s.seq
}

func (s *State) aggregate(ctx context.Context, mySeq uint64, origin, dest models.Coordinates) (Snapshot, error) {
	table, err := s.computer.ComputeRoutes(ctx, origin, dest)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--

	if mySeq != s.seq {
		s.logger.Info("discarding superseded routes", zap.Uint64("seq", mySeq), zap.Uint64("latest", s.seq))
		return s.snapshotLocked(), ErrSuperseded
	}
	if err != nil {
		return s.snapshotLocked(), fmt.Errorf("compute routes: %w", err)
	}
	// a cancelled request produces an all-unavailable table that must not replace real data
	if ctxErr := ctx.Err(); ctxErr != nil {
		return s.snapshotLocked(), ctxErr
	}

	s.table = &table
	s.touch()

	s.logger.Info("routes committed",
		zap.Uint64("seq", mySeq),
		zap.Int("available", table.AvailableCount()),
		zap.String("mode", string(s.mode)))
	return s.snapshotLocked(), nil
}

// SetMode changes the selected travel mode. It never calls the route provider.
func (s *State) SetMode(mode models.TravelMode) (Snapshot, error) {
	if !mode.Valid() {
		return s.Snapshot(), fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.mode = mode
	s.touch()
	return s.snapshotLocked(), nil
}

// Mode returns the selected travel mode
func (s *State) Mode() models.TravelMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Active projects the RouteTable entry for the selected mode. In the Empty
// state distance and duration are empty placeholders.
func (s *State) Active() models.ActiveTravel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked()
}

func (s *State) activeLocked() models.ActiveTravel {
	if s.table == nil {
		return models.ActiveTravel{Mode: s.mode}
	}
	return s.table.Project(s.mode)
}

// PayParking debits the parking fee from the wallet
func (s *State) PayParking() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.balance < ParkingFee {
		return s.snapshotLocked(), ErrInsufficientFunds
	}
	s.balance -= ParkingFee
	s.touch()

	s.logger.Info("parking paid", zap.Int("fee", ParkingFee), zap.Int("balance", s.balance))
	return s.snapshotLocked(), nil
}

// Snapshot returns a copy of the current state
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// IdleSince returns the time of the last state change
func (s *State) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

func (s *State) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:        s.id,
		Mode:      s.mode,
		Status:    StatusEmpty,
		Pending:   s.inFlight > 0,
		Active:    s.activeLocked(),
		Balance:   s.balance,
		Sequence:  s.seq,
		UpdatedAt: s.updatedAt,
	}
	if s.table != nil {
		table := *s.table
		snap.Routes = &table
		snap.Status = StatusPopulated
	}
	if s.origin != nil {
		origin := *s.origin
		snap.Origin = &origin
	}
	if s.destination != nil {
		dest := *s.destination
		snap.Destination = &dest
	}
	return snap
}

func (s *State) touch() {
	s.updatedAt = time.Now()
}
