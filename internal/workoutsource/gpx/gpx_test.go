package gpx

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const morningRun = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="tierrun-test" xmlns="http://www.topografix.com/GPX/1/1" xmlns:gpxtpx="http://www.garmin.com/xmlschemas/TrackPointExtension/v1">
  <trk>
    <name>Morning Run</name>
    <trkseg>
      <trkpt lat="0.0" lon="0.0"><ele>10</ele><time>2025-11-02T07:00:00Z</time>
        <extensions><gpxtpx:TrackPointExtension><gpxtpx:hr>140</gpxtpx:hr></gpxtpx:TrackPointExtension></extensions></trkpt>
      <trkpt lat="0.0225" lon="0.0"><ele>20</ele><time>2025-11-02T07:15:00Z</time>
        <extensions><gpxtpx:TrackPointExtension><gpxtpx:hr>150</gpxtpx:hr></gpxtpx:TrackPointExtension></extensions></trkpt>
      <trkpt lat="0.045" lon="0.0"><ele>30</ele><time>2025-11-02T07:30:00Z</time>
        <extensions><gpxtpx:TrackPointExtension><gpxtpx:hr>160</gpxtpx:hr></gpxtpx:TrackPointExtension></extensions></trkpt>
    </trkseg>
  </trk>
</gpx>`

func TestParseTrack(t *testing.T) {
	workout, err := Parse([]byte(morningRun))
	require.NoError(t, err)

	require.Equal(t, SourceApp, workout.SourceApp)
	require.Equal(t, time.Date(2025, time.November, 2, 7, 0, 0, 0, time.UTC), workout.StartedAt)
	require.InDelta(t, 1800, workout.DurationSec, 1e-9)
	require.InDelta(t, 5.0, workout.DistanceKm, 0.05)
	require.GreaterOrEqual(t, workout.ElevationGainM, 0.0)
	require.LessOrEqual(t, workout.ElevationGainM, 20.0+1e-6)
	require.Equal(t, 150, workout.AvgHeartRate)
	require.Equal(t, 160, workout.MaxHeartRate)

	again, err := Parse([]byte(morningRun))
	require.NoError(t, err)
	require.Equal(t, workout.SourceID, again.SourceID)
}

func TestParseRejectsUntimedTrack(t *testing.T) {
	untimed := `<?xml version="1.0"?>
<gpx version="1.1" creator="t" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><trkseg>
    <trkpt lat="0" lon="0"></trkpt>
    <trkpt lat="0.01" lon="0"></trkpt>
  </trkseg></trk>
</gpx>`
	_, err := Parse([]byte(untimed))
	require.ErrorIs(t, err, ErrNoTrack)

	_, err = Parse([]byte("not xml"))
	require.Error(t, err)
}

func TestDirectoryFetchWorkouts(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "runner-1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "morning.gpx"), []byte(morningRun), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.gpx"), []byte("<gpx"), 0o644))

	source := Directory{Root: root}
	workouts, err := source.FetchWorkouts(context.Background(), "runner-1", time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, workouts, 1)

	workouts, err = source.FetchWorkouts(context.Background(), "runner-1", time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Empty(t, workouts)

	workouts, err = source.FetchWorkouts(context.Background(), "nobody", time.Time{})
	require.NoError(t, err)
	require.Empty(t, workouts)
}
