// Package gpx turns GPX tracks into workouts.
package gpx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tkrajina/gpxgo/gpx"

	"example.com/tierrun/internal/domain"
)

// SourceApp tags workouts parsed from GPX.
const SourceApp = "gpx"

// ErrNoTrack is returned when the document has fewer than two timed points.
var ErrNoTrack = errors.New("gpx document has no timed track")

// Parse converts a GPX document into a workout. Distance follows the 3D track
// length, duration the first and last timestamps. Heart rate is read from
// Garmin TrackPointExtension hr nodes when present. The source id is derived
// from the document bytes so re-uploading a file is deduplicated.
func Parse(data []byte) (domain.WorkoutInput, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return domain.WorkoutInput{}, fmt.Errorf("parse gpx: %w", err)
	}
	if doc.GetTrackPointsNo() < 2 {
		return domain.WorkoutInput{}, ErrNoTrack
	}
	bounds := doc.TimeBounds()
	if bounds.StartTime.IsZero() || !bounds.EndTime.After(bounds.StartTime) {
		return domain.WorkoutInput{}, ErrNoTrack
	}

	sum := sha256.Sum256(data)
	avgHR, maxHR := heartRate(doc)
	return domain.WorkoutInput{
		SourceID:       "gpx-" + hex.EncodeToString(sum[:12]),
		SourceApp:      SourceApp,
		StartedAt:      bounds.StartTime.UTC(),
		DistanceKm:     doc.Length3D() / 1000,
		DurationSec:    bounds.EndTime.Sub(bounds.StartTime).Seconds(),
		AvgHeartRate:   avgHR,
		MaxHeartRate:   maxHR,
		ElevationGainM: doc.UphillDownhill().Uphill,
	}, nil
}

// ParseFile reads and parses a GPX file.
func ParseFile(path string) (domain.WorkoutInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.WorkoutInput{}, err
	}
	return Parse(data)
}

func heartRate(doc *gpx.GPX) (avg, peak int) {
	var total, count int
	for _, track := range doc.Tracks {
		for _, segment := range track.Segments {
			for _, point := range segment.Points {
				hr, ok := findHR(point.Extensions.Nodes)
				if !ok {
					continue
				}
				total += hr
				count++
				peak = max(peak, hr)
			}
		}
	}
	if count == 0 {
		return 0, 0
	}
	return total / count, peak
}

func findHR(nodes []gpx.ExtensionNode) (int, bool) {
	for _, node := range nodes {
		if node.XMLName.Local == "hr" {
			if hr, err := strconv.Atoi(strings.TrimSpace(node.Data)); err == nil {
				return hr, true
			}
		}
		if hr, ok := findHR(node.Nodes); ok {
			return hr, true
		}
	}
	return 0, false
}

// Directory serves GPX files laid out as <root>/<runnerID>/*.gpx.
type Directory struct {
	Root string
}

var _ domain.WorkoutSource = Directory{}

// FetchWorkouts implements domain.WorkoutSource. Files that fail to parse are
// skipped; a missing runner directory yields no workouts.
func (d Directory) FetchWorkouts(ctx context.Context, runnerID string, since time.Time) ([]domain.WorkoutInput, error) {
	paths, err := filepath.Glob(filepath.Join(d.Root, filepath.Base(runnerID), "*.gpx"))
	if err != nil {
		return nil, err
	}
	slices.Sort(paths)

	var workouts []domain.WorkoutInput
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		workout, err := ParseFile(path)
		if err != nil {
			continue
		}
		if workout.StartedAt.Before(since) {
			continue
		}
		workouts = append(workouts, workout)
	}
	return workouts, nil
}
