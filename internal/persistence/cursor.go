// Package persistence contains helpers shared by repository implementations.
package persistence

import (
	"cmp"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"example.com/tierrun/internal/domain"
)

// EncodeCursor serialises the cursor to a string token.
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := fmt.Sprintf("%s|%s|%s",
		c.StartedAt.UTC().Format(time.RFC3339Nano),
		strconv.FormatFloat(c.DistanceKm, 'g', -1, 64),
		c.ID,
	)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses the encoded cursor token.
func DecodeCursor(token string) (*domain.Cursor, error) {
	if strings.TrimSpace(token) == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	parts := strings.SplitN(string(decoded), "|", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid cursor format")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, err
	}
	distance, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return nil, err
	}
	return &domain.Cursor{StartedAt: ts, DistanceKm: distance, ID: parts[2]}, nil
}

// CursorAt returns the cursor positioned on run.
func CursorAt(run domain.Run) *domain.Cursor {
	return &domain.Cursor{StartedAt: run.StartedAt, DistanceKm: run.DistanceKm, ID: run.ID}
}

// CompareRuns orders runs for the given sort. Ties on the sort key fall back to
// the run ID in the same direction so pagination is stable.
func CompareRuns(sort domain.RunSort, a, b domain.Run) int {
	switch sort {
	case domain.SortDateAsc:
		return cmp.Or(a.StartedAt.Compare(b.StartedAt), strings.Compare(a.ID, b.ID))
	case domain.SortDistanceDesc:
		return cmp.Or(cmp.Compare(b.DistanceKm, a.DistanceKm), strings.Compare(b.ID, a.ID))
	case domain.SortDistanceAsc:
		return cmp.Or(cmp.Compare(a.DistanceKm, b.DistanceKm), strings.Compare(a.ID, b.ID))
	default:
		return cmp.Or(b.StartedAt.Compare(a.StartedAt), strings.Compare(b.ID, a.ID))
	}
}

// AfterCursor reports whether run sorts strictly after the cursor position.
func AfterCursor(sort domain.RunSort, run domain.Run, c *domain.Cursor) bool {
	if c == nil {
		return true
	}
	anchor := domain.Run{ID: c.ID, StartedAt: c.StartedAt, DistanceKm: c.DistanceKm}
	return CompareRuns(sort, run, anchor) > 0
}

// RunOrdering maps a RunSort onto SQL. Column is the sort key column; rows after
// a cursor satisfy (Column, id) Operator (key, id).
type RunOrdering struct {
	Column    string
	Direction string
	Operator  string
	ByDate    bool
}

// OrderingFor returns the SQL ordering of sort, defaulting to newest first.
func OrderingFor(sort domain.RunSort) RunOrdering {
	switch sort {
	case domain.SortDateAsc:
		return RunOrdering{Column: "started_at", Direction: "ASC", Operator: ">", ByDate: true}
	case domain.SortDistanceDesc:
		return RunOrdering{Column: "distance_km", Direction: "DESC", Operator: "<"}
	case domain.SortDistanceAsc:
		return RunOrdering{Column: "distance_km", Direction: "ASC", Operator: ">"}
	default:
		return RunOrdering{Column: "started_at", Direction: "DESC", Operator: "<", ByDate: true}
	}
}

// OrderBy renders the ORDER BY expression.
func (o RunOrdering) OrderBy() string {
	return fmt.Sprintf("%s %s, id %s", o.Column, o.Direction, o.Direction)
}
