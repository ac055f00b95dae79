package sources_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/illmade-knight/geo-location/internal/sources"
	"github.com/illmade-knight/geo-location/pkg/locations"
	"github.com/illmade-knight/geo-location/pkg/tracking"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticSource_SetToCurrentOnce(t *testing.T) {
	source := sources.NewStaticSource(40.4168, -3.7038, 5)

	coord, ctrl, err := tracking.NewTrackingAtCurrentLocation(source, zerolog.New(zerolog.NewTestWriter(t)))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return coord.Position() == locations.Position{Latitude: 40.4168, Longitude: -3.7038}
	}, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !ctrl.IsTracking() }, time.Second, 5*time.Millisecond)
}

func TestStaticSource_InaccurateFixIsFiltered(t *testing.T) {
	source := sources.NewStaticSource(1, 1, 100)
	coord, err := locations.New(0, 0)
	require.NoError(t, err)
	ctrl := tracking.NewController(coord, source, zerolog.Nop())

	require.NoError(t, ctrl.SetToCurrentOnce())
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0.0, coord.Latitude())
	assert.True(t, ctrl.IsTracking())
	ctrl.Stop()
}

func TestStaticSource_ZeroValueClearWatch(t *testing.T) {
	source := &sources.StaticSource{Lat: 1, Lng: 2}

	assert.NotPanics(t, func() {
		source.ClearWatch(99)
		source.ClearWatch(99)
	})
}

func TestReplaySource_WatchAppliesAccurateEntries(t *testing.T) {
	entries := []sources.ReplayEntry{
		{Coords: &tracking.Coords{Latitude: 1, Longitude: 1, Accuracy: 80}},
		{Error: tracking.Timeout},
		{Coords: &tracking.Coords{Latitude: 2, Longitude: 2, Accuracy: 3}},
	}
	source := sources.NewReplaySource(entries, 5*time.Millisecond, zerolog.Nop())

	errs := make(chan error, 4)
	coord, err := locations.New(0, 0)
	require.NoError(t, err)
	ctrl := tracking.NewController(coord, source, zerolog.Nop(), tracking.WithErrorHandler(func(err error) { errs <- err }))

	require.NoError(t, ctrl.StartTracking(tracking.DefaultOptions()))
	defer ctrl.Stop()

	require.Eventually(t, func() bool {
		return coord.Latitude() == 2
	}, 2*time.Second, 5*time.Millisecond)

	select {
	case err := <-errs:
		var srcErr *tracking.SourceError
		require.ErrorAs(t, err, &srcErr)
		assert.Equal(t, tracking.Timeout, srcErr.Code)
	case <-time.After(time.Second):
		t.Fatal("expected the recorded timeout to be surfaced")
	}
}

func TestReplaySource_ExhaustedReportsUnavailable(t *testing.T) {
	source := sources.NewReplaySource(nil, time.Millisecond, zerolog.Nop())
	errs := make(chan error, 1)

	source.GetCurrentPosition(func(tracking.Sample) {}, func(err error) { errs <- err })

	select {
	case err := <-errs:
		var pe *tracking.PositionError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, tracking.PositionUnavailable, pe.Code)
	case <-time.After(time.Second):
		t.Fatal("expected an error")
	}
}

func TestReplaySource_Loop(t *testing.T) {
	entries := []sources.ReplayEntry{
		{Coords: &tracking.Coords{Latitude: 5, Longitude: 5}},
	}
	source := sources.NewReplaySource(entries, time.Millisecond, zerolog.Nop())
	source.Loop = true

	got := make(chan tracking.Sample, 2)
	for i := 0; i < 2; i++ {
		source.GetCurrentPosition(func(s tracking.Sample) { got <- s }, func(err error) { t.Error(err) })
	}
	for i := 0; i < 2; i++ {
		select {
		case s := <-got:
			assert.Equal(t, 5.0, s.Coords.Latitude)
		case <-time.After(time.Second):
			t.Fatal("expected a looped sample")
		}
	}
}

func TestLoadReplayFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "walk.json")
	content := `[
		{"coords": {"latitude": 53.35, "longitude": -6.26, "accuracy": 4}},
		{"error": 1}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	source, err := sources.LoadReplayFile(path, time.Second, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, source)

	t.Run("missing file", func(t *testing.T) {
		_, err := sources.LoadReplayFile(filepath.Join(dir, "absent.json"), time.Second, zerolog.Nop())
		require.Error(t, err)
	})

	t.Run("empty recording", func(t *testing.T) {
		empty := filepath.Join(dir, "empty.json")
		require.NoError(t, os.WriteFile(empty, []byte(`[]`), 0o600))
		_, err := sources.LoadReplayFile(empty, time.Second, zerolog.Nop())
		require.Error(t, err)
	})
}

func TestReplaySource_NonPositiveIntervalFallsBack(t *testing.T) {
	entries := []sources.ReplayEntry{
		{Coords: &tracking.Coords{Latitude: 7, Longitude: 8, Accuracy: 1}},
	}

	for _, interval := range []time.Duration{0, -time.Second} {
		source := sources.NewReplaySource(entries, interval, zerolog.Nop())
		samples := make(chan tracking.Sample, 1)

		var id tracking.WatchID
		require.NotPanics(t, func() {
			id = source.WatchPosition(
				func(s tracking.Sample) { samples <- s },
				func(error) {},
				tracking.WatchOptions{},
			)
		})

		select {
		case s := <-samples:
			assert.Equal(t, 7.0, s.Coords.Latitude)
		case <-time.After(3 * sources.DefaultReplayInterval):
			t.Fatalf("no sample delivered with interval %s", interval)
		}
		source.ClearWatch(id)
	}
}
