package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/geo-location/app"
	"github.com/illmade-knight/geo-location/internal/sources"
	"github.com/illmade-knight/geo-location/pkg/locations"
	"github.com/illmade-knight/geo-location/pkg/tracking"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock Dependencies ---

type mockPublisher struct {
	mu          sync.Mutex
	published   []locations.Record
	PublishFunc func(ctx context.Context, rec locations.Record) error
}

func (m *mockPublisher) Publish(ctx context.Context, rec locations.Record) error {
	m.mu.Lock()
	m.published = append(m.published, rec)
	m.mu.Unlock()
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, rec)
	}
	return nil
}

func (m *mockPublisher) records() []locations.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]locations.Record(nil), m.published...)
}

// --- Test Suite ---

func newApp(t *testing.T, source tracking.PositionSource, publisher app.UpdatePublisher) *app.App {
	t.Helper()
	logger := zerolog.New(zerolog.NewTestWriter(t))
	svc := locations.NewService(locations.NewInMemoryStore(), logger)
	application := app.New(svc, source, publisher, logger, tracking.WithPollInterval(10*time.Millisecond))
	t.Cleanup(application.Shutdown)
	return application
}

func TestApp_TrackCurrentLocation(t *testing.T) {
	ctx := context.Background()
	publisher := &mockPublisher{}
	application := newApp(t, sources.NewStaticSource(40.4168, -3.7038, 3), publisher)

	// Act
	rec, err := application.TrackCurrentLocation(ctx, "Phone")
	require.NoError(t, err)

	// Assert
	require.Eventually(t, func() bool {
		stored, err := application.GetLocation(ctx, rec.ID)
		return err == nil && stored.Position == locations.Position{Latitude: 40.4168, Longitude: -3.7038}
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		status, err := application.Status(ctx, rec.ID)
		return err == nil && !status.Tracking
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return len(publisher.records()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, rec.ID, publisher.records()[0].ID)
}

func TestApp_TrackCurrentLocationUnavailable(t *testing.T) {
	application := newApp(t, nil, nil)

	_, err := application.TrackCurrentLocation(context.Background(), "Phone")
	assert.ErrorIs(t, err, tracking.ErrUnavailable)

	all, err := application.ListLocations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestApp_StartAndStopTracking(t *testing.T) {
	ctx := context.Background()
	application := newApp(t, sources.NewStaticSource(10, 20, 500), nil)

	rec, err := application.AddLocation(ctx, "Van", locations.Position{Latitude: 1, Longitude: 1})
	require.NoError(t, err)

	status, err := application.Status(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "idle", status.State)

	// Active mode ignores the poor accuracy of the static fix.
	require.NoError(t, application.StartTracking(ctx, rec.ID, tracking.Options{Continuous: true, Mode: tracking.ModeActive}))
	require.Eventually(t, func() bool {
		stored, err := application.GetLocation(ctx, rec.ID)
		return err == nil && stored.Position.Latitude == 10
	}, 2*time.Second, 5*time.Millisecond)

	status, err = application.Status(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, status.Tracking)
	assert.Equal(t, "polling_active", status.State)
	assert.Equal(t, tracking.ModeActive, status.Mode)

	require.NoError(t, application.StopTracking(ctx, rec.ID))
	status, err = application.Status(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, status.Tracking)
}

func TestApp_UnknownLocation(t *testing.T) {
	ctx := context.Background()
	application := newApp(t, sources.NewStaticSource(0, 0, 1), nil)
	id := uuid.New()

	assert.True(t, errors.Is(application.StartTracking(ctx, id, tracking.DefaultOptions()), locations.ErrNotFound))
	assert.True(t, errors.Is(application.StopTracking(ctx, id), locations.ErrNotFound))
	_, err := application.Status(ctx, id)
	assert.True(t, errors.Is(err, locations.ErrNotFound))
}

func TestApp_StopUntrackedIsNoop(t *testing.T) {
	ctx := context.Background()
	application := newApp(t, sources.NewStaticSource(0, 0, 1), nil)

	rec, err := application.AddLocation(ctx, "Depot", locations.Position{Latitude: 5, Longitude: 5})
	require.NoError(t, err)
	require.NoError(t, application.StopTracking(ctx, rec.ID))
}

func TestApp_SourceErrorsReportedInStatus(t *testing.T) {
	ctx := context.Background()
	source := sources.NewReplaySource([]sources.ReplayEntry{{Error: tracking.PermissionDenied}}, 5*time.Millisecond, zerolog.Nop())
	application := newApp(t, source, nil)

	rec, err := application.AddLocation(ctx, "Tablet", locations.Position{})
	require.NoError(t, err)
	require.NoError(t, application.StartTracking(ctx, rec.ID, tracking.DefaultOptions()))

	require.Eventually(t, func() bool {
		status, err := application.Status(ctx, rec.ID)
		return err == nil && status.LastError != "" && !status.Tracking
	}, 2*time.Second, 5*time.Millisecond)

	status, err := application.Status(ctx, rec.ID)
	require.NoError(t, err)
	assert.Contains(t, status.LastError, "Permission denied")
}

func TestApp_PublishFailureDoesNotBlockUpdates(t *testing.T) {
	ctx := context.Background()
	publisher := &mockPublisher{
		PublishFunc: func(ctx context.Context, rec locations.Record) error {
			return errors.New("topic unavailable")
		},
	}
	application := newApp(t, sources.NewStaticSource(0, 0, 1), publisher)

	rec, err := application.AddLocation(ctx, "Kiosk", locations.Position{Latitude: 2, Longitude: 2})
	require.NoError(t, err)

	coord, err := application.LocationSvc.Coordinate(rec.ID)
	require.NoError(t, err)
	require.NoError(t, coord.SetLatitude(3))

	stored, err := application.GetLocation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, stored.Position.Latitude)
	require.Eventually(t, func() bool { return len(publisher.records()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestApp_SlowPublisherDoesNotBlockSource(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})
	publisher := &mockPublisher{
		PublishFunc: func(ctx context.Context, rec locations.Record) error {
			<-release
			return nil
		},
	}
	logger := zerolog.New(zerolog.NewTestWriter(t))
	svc := locations.NewService(locations.NewInMemoryStore(), logger)
	application := app.New(svc, nil, publisher, logger)

	rec, err := application.AddLocation(ctx, "Truck", locations.Position{Latitude: 1, Longitude: 1})
	require.NoError(t, err)
	coord, err := application.LocationSvc.Coordinate(rec.ID)
	require.NoError(t, err)

	// Act: every update returns while the first publish is still blocked.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 2; i <= 4; i++ {
			_ = coord.SetLatitude(float64(i))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("coordinate updates blocked on the publisher")
	}

	stored, err := application.GetLocation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, stored.Position.Latitude)

	// Assert: Shutdown drains the queue in order.
	close(release)
	application.Shutdown()
	application.Shutdown()

	published := publisher.records()
	require.Len(t, published, 3)
	for i, r := range published {
		assert.Equal(t, float64(i+2), r.Position.Latitude)
	}
}

func TestApp_Distance(t *testing.T) {
	ctx := context.Background()
	application := newApp(t, nil, nil)

	london, err := application.AddLocation(ctx, "London", locations.Position{Latitude: 51.5074, Longitude: -0.1278})
	require.NoError(t, err)
	paris, err := application.AddLocation(ctx, "Paris", locations.Position{Latitude: 48.8566, Longitude: 2.3522})
	require.NoError(t, err)

	d, err := application.Distance(ctx, london.ID, paris.ID)
	require.NoError(t, err)
	assert.InDelta(t, 343.5, d, 1.0)
}
