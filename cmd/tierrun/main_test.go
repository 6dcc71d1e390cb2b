package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/tierrun/internal/ranking"
)

const trackGPX = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="tierrun-test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><trkseg>
    <trkpt lat="0.0" lon="0.0"><time>2025-11-02T07:00:00Z</time></trkpt>
    <trkpt lat="0.0225" lon="0.0"><time>2025-11-02T07:15:00Z</time></trkpt>
    <trkpt lat="0.045" lon="0.0"><time>2025-11-02T07:30:00Z</time></trkpt>
  </trkseg></trk>
</gpx>`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestScoreCommand(t *testing.T) {
	out, err := execute(t, "score",
		"--age", "30", "--sex", "male", "--experience", "advanced",
		"--distance", "10", "--duration", "1h", "--avg-hr", "140", "--max-hr", "170",
	)
	require.NoError(t, err)
	require.Contains(t, out, "role: marathoner")
	require.Contains(t, out, "pace: 6:00 /km")
	require.Contains(t, out, "lp:   38")

	_, err = execute(t, "score", "--distance", "0.3", "--duration", "10m")
	require.ErrorIs(t, err, ranking.ErrRunTooShort)

	_, err = execute(t, "score", "--distance", "5", "--duration", "30m", "--sex", "robot")
	require.ErrorIs(t, err, ranking.ErrInvalidProfile)
}

func TestClassifyCommand(t *testing.T) {
	out, err := execute(t, "classify", "--distance", "2", "--duration", "8m")
	require.NoError(t, err)
	require.Contains(t, out, "sprinter")

	out, err = execute(t, "classify", "--distance", "4", "--duration", "24m")
	require.NoError(t, err)
	require.Contains(t, out, "marathoner")
}

func TestLoadProfilePrecedence(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "profile.yaml", "age: 45\nsex: female\nexperience: elite\nweight_kg: 58.5\n")

	opts := &rootOptions{profilePath: path}
	root := newRootCmd()

	profile, err := opts.loadProfile(root)
	require.NoError(t, err)
	require.Equal(t, ranking.Profile{Age: 45, Sex: ranking.SexFemale, WeightKg: 58.5, Experience: ranking.Elite}, profile)

	t.Setenv("TIERRUN_AGE", "50")
	require.NoError(t, root.PersistentFlags().Set("experience", "beginner"))
	profile, err = opts.loadProfile(root)
	require.NoError(t, err)
	require.Equal(t, 50, profile.Age)
	require.Equal(t, ranking.Beginner, profile.Experience)
	require.Equal(t, ranking.SexFemale, profile.Sex)

	opts.profilePath = filepath.Join(dir, "missing.yaml")
	_, err = opts.loadProfile(root)
	require.Error(t, err)
}

func TestLoadWorkoutsFormats(t *testing.T) {
	dir := t.TempDir()

	list := writeFile(t, dir, "list.yaml", `
- source_id: a
  started_at: "2025-11-01T07:00:00Z"
  distance_km: 10
  duration_sec: 3600
- source_id: b
  role: Sprinter
  distance_km: 2
  duration_sec: 480
`)
	workouts, err := loadWorkouts(list)
	require.NoError(t, err)
	require.Len(t, workouts, 2)
	require.Equal(t, time.Date(2025, time.November, 1, 7, 0, 0, 0, time.UTC), workouts[0].StartedAt)
	require.Equal(t, ranking.RoleSprinter, workouts[1].Role)
	require.Equal(t, "file", workouts[1].SourceApp)

	doc := writeFile(t, dir, "batch.json", `{"workouts": [{"source_id": "c", "started_at": "2025-11-03T07:00:00Z", "distance_km": 5, "duration_sec": 1500}]}`)
	workouts, err = loadWorkouts(doc)
	require.NoError(t, err)
	require.Len(t, workouts, 1)
	require.Equal(t, "c", workouts[0].SourceID)

	track := writeFile(t, dir, "run.GPX", trackGPX)
	workouts, err = loadWorkouts(track)
	require.NoError(t, err)
	require.Len(t, workouts, 1)
	require.Equal(t, "gpx", workouts[0].SourceApp)

	bad := writeFile(t, dir, "bad.yaml", "- started_at: yesterday\n  distance_km: 5\n")
	_, err = loadWorkouts(bad)
	require.Error(t, err)
}

func TestPlaceCommand(t *testing.T) {
	dir := t.TempDir()
	history := writeFile(t, dir, "history.yaml", `
workouts:
  - {source_id: a, distance_km: 10, duration_sec: 3600}
  - {source_id: b, distance_km: 12, duration_sec: 4200}
  - {source_id: c, distance_km: 2, duration_sec: 480}
`)
	out, err := execute(t, "place", "--file", history)
	require.NoError(t, err)
	require.Contains(t, out, "Based on 2 runs")
	require.Contains(t, out, "recommended role: marathoner")
}

func TestSyncCommandIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	tracks := filepath.Join(dir, "tracks")
	writeFile(t, tracks, filepath.Join("ada", "morning.gpx"), trackGPX)
	writeFile(t, tracks, filepath.Join("grace", "broken.gpx"), "<gpx")
	db := filepath.Join(dir, "tierrun.db")

	out, err := execute(t, "sync", "--dir", tracks, "--db", db)
	require.NoError(t, err)
	require.Contains(t, out, "ada: 1 ingested, 0 duplicates, 0 rejected")
	require.Contains(t, out, "grace: 0 ingested, 0 duplicates, 0 rejected")

	out, err = execute(t, "sync", "--dir", tracks, "--db", db, "--runner", "ada")
	require.NoError(t, err)
	require.Contains(t, out, "ada: 0 ingested, 1 duplicates, 0 rejected")
}
