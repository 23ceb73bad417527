package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tourist-safety/internal/models"
	"tourist-safety/internal/routing"
	"tourist-safety/internal/testutil"
)

var (
	origin    = models.Coordinates{Lat: 28.6139, Lng: 77.2090}
	redFort   = models.Coordinates{Lat: 28.6562, Lng: 77.2410}
	qutubHill = models.Coordinates{Lat: 28.5245, Lng: 77.1855}
)

func newTestState(computer routing.RouteComputer) *State {
	return NewState("test", computer, zap.NewNop())
}

func TestNewStateIsEmptyDriving(t *testing.T) {
	s := newTestState(testutil.NewMockRouteComputer())

	snap := s.Snapshot()
	assert.Equal(t, StatusEmpty, snap.Status)
	assert.Equal(t, models.TravelModeDriving, snap.Mode)
	assert.Nil(t, snap.Routes)
	assert.Equal(t, InitialBalance, snap.Balance)

	active := s.Active()
	assert.Equal(t, models.TravelModeDriving, active.Mode)
	assert.Empty(t, active.Distance)
	assert.Empty(t, active.Duration)
	assert.False(t, active.HasGeometry())
}

func TestSetDestinationPopulatesTable(t *testing.T) {
	computer := testutil.NewMockRouteComputer()
	s := newTestState(computer)

	_, err := s.SetOrigin(origin, "New Delhi")
	require.NoError(t, err)

	snap, err := s.SetDestination(context.Background(), redFort, "Red Fort")
	require.NoError(t, err)

	assert.Equal(t, 1, computer.Count())
	assert.Equal(t, StatusPopulated, snap.Status)
	require.NotNil(t, snap.Routes)
	assert.Equal(t, 4, snap.Routes.AvailableCount())
	assert.Equal(t, "Red Fort", snap.Destination.Name)
	assert.False(t, snap.Pending)

	want := testutil.FullRouteTable(origin, redFort).Project(models.TravelModeDriving)
	assert.Equal(t, want, snap.Active)
}

func TestSetDestinationWithoutOriginSkipsAggregation(t *testing.T) {
	computer := testutil.NewMockRouteComputer()
	s := newTestState(computer)

	snap, err := s.SetDestination(context.Background(), redFort, "Red Fort")
	require.NoError(t, err)

	assert.Equal(t, 0, computer.Count())
	assert.Equal(t, StatusEmpty, snap.Status)
	require.NotNil(t, snap.Destination)
	assert.Equal(t, redFort, snap.Destination.Coords)
}

func TestSetDestinationInvalidLeavesStateUntouched(t *testing.T) {
	computer := testutil.NewMockRouteComputer()
	s := newTestState(computer)
	_, err := s.SetOrigin(origin, "")
	require.NoError(t, err)
	before := s.Snapshot()

	_, err = s.SetDestination(context.Background(), models.Coordinates{Lat: 100, Lng: 0}, "")
	var coordErr *routing.ErrInvalidCoordinates
	require.True(t, errors.As(err, &coordErr))
	assert.Equal(t, "destination", coordErr.Field)

	assert.Equal(t, before, s.Snapshot())
	assert.Equal(t, 0, computer.Count())
}

func TestSetModeNeverCallsProvider(t *testing.T) {
	computer := testutil.NewMockRouteComputer()
	s := newTestState(computer)
	_, err := s.SetOrigin(origin, "")
	require.NoError(t, err)
	_, err = s.SetDestination(context.Background(), redFort, "")
	require.NoError(t, err)
	require.Equal(t, 1, computer.Count())

	for _, mode := range models.AllTravelModes() {
		snap, err := s.SetMode(mode)
		require.NoError(t, err)
		assert.Equal(t, mode, snap.Mode)
		assert.Equal(t, snap.Routes.Project(mode), snap.Active)
	}

	assert.Equal(t, 1, computer.Count())
}

func TestSetModeInEmptyStateOnlyChangesMode(t *testing.T) {
	s := newTestState(testutil.NewMockRouteComputer())

	snap, err := s.SetMode(models.TravelModeTransit)
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, snap.Status)
	assert.Equal(t, models.TravelModeTransit, snap.Active.Mode)
	assert.Empty(t, snap.Active.Distance)
}

func TestSetModeUnknown(t *testing.T) {
	s := newTestState(testutil.NewMockRouteComputer())

	_, err := s.SetMode("hovercraft")
	assert.ErrorIs(t, err, ErrUnknownMode)
	assert.Equal(t, models.TravelModeDriving, s.Mode())
}

func TestModePreservedAcrossDestinationChange(t *testing.T) {
	s := newTestState(testutil.NewMockRouteComputer())
	_, err := s.SetOrigin(origin, "")
	require.NoError(t, err)
	_, err = s.SetMode(models.TravelModeWalking)
	require.NoError(t, err)

	snap, err := s.SetDestination(context.Background(), qutubHill, "")
	require.NoError(t, err)
	assert.Equal(t, models.TravelModeWalking, snap.Mode)
	assert.Equal(t, models.TravelModeWalking, snap.Active.Mode)
}

func TestActiveUnavailableMode(t *testing.T) {
	computer := testutil.NewMockRouteComputer()
	computer.ComputeFunc = func(ctx context.Context, o, d models.Coordinates) (models.RouteTable, error) {
		return models.NewRouteTable(map[models.TravelMode]models.RouteResult{
			models.TravelModeDriving: models.NewRouteResult(12300, 1500, "geom"),
		}), nil
	}
	s := newTestState(computer)
	_, err := s.SetOrigin(origin, "")
	require.NoError(t, err)
	_, err = s.SetDestination(context.Background(), redFort, "")
	require.NoError(t, err)

	_, err = s.SetMode(models.TravelModeBicycling)
	require.NoError(t, err)

	active := s.Active()
	assert.Equal(t, models.NotAvailable, active.Distance)
	assert.Equal(t, models.NotAvailable, active.Duration)
	assert.False(t, active.HasGeometry())
}

func TestSequenceGuardDiscardsSlowerEarlierRequest(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	computer := testutil.NewMockRouteComputer()
	computer.ComputeFunc = func(ctx context.Context, o, d models.Coordinates) (models.RouteTable, error) {
		if d == redFort {
			close(started)
			<-release
		}
		return testutil.FullRouteTable(o, d), nil
	}

	s := newTestState(computer)
	_, err := s.SetOrigin(origin, "")
	require.NoError(t, err)

	type result struct {
		snap Snapshot
		err  error
	}
	slow := make(chan result, 1)
	go func() {
		snap, err := s.SetDestination(context.Background(), redFort, "Red Fort")
		slow <- result{snap, err}
	}()

	<-started
	assert.True(t, s.Snapshot().Pending)

	fast, err := s.SetDestination(context.Background(), qutubHill, "Qutub Minar")
	require.NoError(t, err)
	close(release)

	first := <-slow
	assert.ErrorIs(t, first.err, ErrSuperseded)

	latest := testutil.FullRouteTable(origin, qutubHill)
	final := s.Snapshot()
	require.NotNil(t, final.Routes)
	assert.Equal(t, latest, *final.Routes)
	assert.Equal(t, fast.Routes, final.Routes)
	assert.Equal(t, "Qutub Minar", final.Destination.Name)
	assert.Equal(t, latest, *first.snap.Routes)
	assert.False(t, final.Pending)
}

func TestSetOriginResetsTableAndDropsInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	computer := testutil.NewMockRouteComputer()
	computer.ComputeFunc = func(ctx context.Context, o, d models.Coordinates) (models.RouteTable, error) {
		close(started)
		<-release
		return testutil.FullRouteTable(o, d), nil
	}

	s := newTestState(computer)
	_, err := s.SetOrigin(origin, "")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.SetDestination(context.Background(), redFort, "")
		done <- err
	}()
	<-started

	snap, err := s.SetOrigin(qutubHill, "Mehrauli")
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, snap.Status)

	close(release)
	assert.ErrorIs(t, <-done, ErrSuperseded)
	assert.Equal(t, StatusEmpty, s.Snapshot().Status)
}

func TestRefreshSupersededByDestinationChange(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	computer := testutil.NewMockRouteComputer()
	computer.ComputeFunc = func(ctx context.Context, o, d models.Coordinates) (models.RouteTable, error) {
		if d == redFort {
			close(started)
			<-release
		}
		return testutil.FullRouteTable(o, d), nil
	}

	s := newTestState(computer)
	_, err := s.SetDestination(context.Background(), redFort, "")
	require.NoError(t, err)
	_, err = s.SetOrigin(origin, "")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Refresh(context.Background())
		done <- err
	}()
	<-started

	_, err = s.SetDestination(context.Background(), qutubHill, "")
	require.NoError(t, err)
	close(release)
	assert.ErrorIs(t, <-done, ErrSuperseded)

	final := s.Snapshot()
	require.NotNil(t, final.Routes)
	assert.Equal(t, qutubHill, final.Destination.Coords)
	assert.Equal(t, testutil.FullRouteTable(origin, qutubHill), *final.Routes)
}

func TestCommittedTableAlwaysMatchesEndpoints(t *testing.T) {
	computer := testutil.NewMockRouteComputer()
	computer.ComputeFunc = func(ctx context.Context, o, d models.Coordinates) (models.RouteTable, error) {
		if d == redFort {
			time.Sleep(time.Millisecond)
		}
		return testutil.FullRouteTable(o, d), nil
	}
	s := newTestState(computer)
	_, err := s.SetOrigin(origin, "")
	require.NoError(t, err)

	consistent := func(snap Snapshot) bool {
		if snap.Routes == nil {
			return true
		}
		if snap.Origin == nil || snap.Destination == nil {
			return false
		}
		want := testutil.FullRouteTable(snap.Origin.Coords, snap.Destination.Coords)
		return assert.ObjectsAreEqual(want, *snap.Routes)
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var (
				snap Snapshot
				err  error
			)
			switch i % 4 {
			case 0:
				snap, err = s.SetDestination(ctx, redFort, "")
			case 1:
				snap, err = s.SetDestination(ctx, qutubHill, "")
			case 2:
				snap, err = s.Refresh(ctx)
			default:
				snap, err = s.SetOrigin(origin, "")
			}
			if err != nil && !errors.Is(err, ErrSuperseded) && !errors.Is(err, ErrIncomplete) {
				t.Errorf("call %d: unexpected error: %v", i, err)
			}
			assert.True(t, consistent(snap), "call %d returned a table for other endpoints", i)
		}(i)
	}
	wg.Wait()

	final := s.Snapshot()
	assert.True(t, consistent(final), "committed table does not match endpoints")
	assert.False(t, final.Pending)
}

func TestSetOriginClearsPopulatedTable(t *testing.T) {
	s := newTestState(testutil.NewMockRouteComputer())
	_, err := s.SetOrigin(origin, "")
	require.NoError(t, err)
	_, err = s.SetDestination(context.Background(), redFort, "")
	require.NoError(t, err)
	require.Equal(t, StatusPopulated, s.Snapshot().Status)

	snap, err := s.SetOrigin(qutubHill, "")
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, snap.Status)
	assert.NotNil(t, snap.Destination)
}

func TestCancelledAggregationDoesNotCommit(t *testing.T) {
	computer := testutil.NewMockRouteComputer()
	computer.ComputeFunc = func(ctx context.Context, o, d models.Coordinates) (models.RouteTable, error) {
		<-ctx.Done()
		return models.NewRouteTable(nil), nil
	}
	s := newTestState(computer)
	_, err := s.SetOrigin(origin, "")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	snap, err := s.SetDestination(ctx, redFort, "")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StatusEmpty, snap.Status)
	assert.False(t, snap.Pending)
}

func TestRefresh(t *testing.T) {
	computer := testutil.NewMockRouteComputer()
	s := newTestState(computer)

	_, err := s.Refresh(context.Background())
	assert.ErrorIs(t, err, ErrIncomplete)

	_, err = s.SetDestination(context.Background(), redFort, "")
	require.NoError(t, err)
	_, err = s.SetOrigin(origin, "")
	require.NoError(t, err)

	snap, err := s.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusPopulated, snap.Status)
	assert.Equal(t, []testutil.ComputeCall{{Origin: origin, Dest: redFort}}, computer.Calls())
}

func TestPayParking(t *testing.T) {
	s := newTestState(testutil.NewMockRouteComputer())

	for i := 0; i < InitialBalance/ParkingFee; i++ {
		_, err := s.PayParking()
		require.NoError(t, err)
	}

	snap, err := s.PayParking()
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 0, snap.Balance)
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	s := newTestState(testutil.NewMockRouteComputer())
	_, err := s.SetOrigin(origin, "Delhi")
	require.NoError(t, err)
	_, err = s.SetDestination(context.Background(), redFort, "Red Fort")
	require.NoError(t, err)

	snap := s.Snapshot()
	snap.Origin.Name = "changed"
	snap.Destination.Name = "changed"

	again := s.Snapshot()
	assert.Equal(t, "Delhi", again.Origin.Name)
	assert.Equal(t, "Red Fort", again.Destination.Name)
}
