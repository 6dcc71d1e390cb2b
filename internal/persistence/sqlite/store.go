// Package sqlite provides a SQLite-backed runner store for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"example.com/tierrun/internal/domain"
	"example.com/tierrun/internal/persistence"
	"example.com/tierrun/internal/persistence/sqlite/migrations"
	"example.com/tierrun/internal/ranking"
)

// Store persists runners, tiers and runs in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ domain.Repository = (*Store)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateRunner implements domain.Repository.
func (s *Store) CreateRunner(ctx context.Context, runner domain.Runner, tiers []domain.TierRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		p := runner.Profile
		_, err := tx.ExecContext(ctx,
			`INSERT INTO runners (id, name, age, sex, weight_kg, experience, main_role, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runner.ID, runner.Name, p.Age, string(p.Sex), p.WeightKg, string(p.Experience), string(p.MainRole),
			toMillis(runner.CreatedAt), toMillis(runner.UpdatedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrRunnerExists
			}
			return fmt.Errorf("insert runner: %w", err)
		}
		for _, t := range tiers {
			history, err := json.Marshal(historyOrEmpty(t.State.History))
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tiers (runner_id, role, tier, grade, lp, season_start, history_json, version, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				t.RunnerID, string(t.State.Role), t.State.Tier.String(), t.State.Grade, t.State.LP,
				toMillis(t.State.SeasonStart), string(history), t.Version, toMillis(t.UpdatedAt),
			); err != nil {
				return fmt.Errorf("insert tier: %w", err)
			}
		}
		return nil
	})
}

// GetRunner implements domain.Repository.
func (s *Store) GetRunner(ctx context.Context, runnerID string) (*domain.Runner, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, name, age, sex, weight_kg, experience, main_role, created_at, updated_at
		   FROM runners WHERE id = ?`, runnerID)

	var (
		runner                    domain.Runner
		sex, experience, mainRole string
		createdAt, updatedAt      int64
	)
	err := row.Scan(&runner.ID, &runner.Name, &runner.Profile.Age, &sex, &runner.Profile.WeightKg,
		&experience, &mainRole, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get runner: %w", err)
	}
	runner.Profile.Sex = ranking.Sex(sex)
	runner.Profile.Experience = ranking.Experience(experience)
	runner.Profile.MainRole = ranking.Role(mainRole)
	runner.CreatedAt = fromMillis(createdAt)
	runner.UpdatedAt = fromMillis(updatedAt)
	return &runner, nil
}

// UpdateRunner implements domain.Repository.
func (s *Store) UpdateRunner(ctx context.Context, runner domain.Runner) error {
	p := runner.Profile
	res, err := s.sqlDB.ExecContext(ctx,
		`UPDATE runners SET name = ?, age = ?, sex = ?, weight_kg = ?, experience = ?, main_role = ?, updated_at = ?
		  WHERE id = ?`,
		runner.Name, p.Age, string(p.Sex), p.WeightKg, string(p.Experience), string(p.MainRole),
		toMillis(runner.UpdatedAt), runner.ID,
	)
	if err != nil {
		return fmt.Errorf("update runner: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRunnerNotFound
	}
	return nil
}

// GetTier implements domain.Repository.
func (s *Store) GetTier(ctx context.Context, runnerID string, role ranking.Role) (*domain.TierRecord, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT runner_id, role, tier, grade, lp, season_start, history_json, version, updated_at
		   FROM tiers WHERE runner_id = ? AND role = ?`, runnerID, string(role))

	var (
		t                           domain.TierRecord
		roleName, tierName, history string
		seasonStart, updatedAt      int64
	)
	err := row.Scan(&t.RunnerID, &roleName, &tierName, &t.State.Grade, &t.State.LP,
		&seasonStart, &history, &t.Version, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get tier: %w", err)
	}
	if t.State.Tier, err = ranking.ParseTier(tierName); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(history), &t.State.History); err != nil {
		return nil, fmt.Errorf("decode tier history: %w", err)
	}
	t.State.Role = ranking.Role(roleName)
	t.State.SeasonStart = fromMillis(seasonStart)
	t.UpdatedAt = fromMillis(updatedAt)
	return &t, nil
}

// SaveTiers implements domain.Repository.
func (s *Store) SaveTiers(ctx context.Context, tiers []domain.TierRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, t := range tiers {
			if err := updateTier(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindRunBySource implements domain.Repository.
func (s *Store) FindRunBySource(ctx context.Context, runnerID, sourceID string) (*domain.Run, error) {
	if sourceID == "" {
		return nil, nil
	}
	return s.queryRun(ctx, `SELECT `+runColumns+` FROM runs WHERE runner_id = ? AND source_id = ?`, runnerID, sourceID)
}

// GetRun implements domain.Repository.
func (s *Store) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	return s.queryRun(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
}

// RecordRun implements domain.Repository.
func (s *Store) RecordRun(ctx context.Context, run domain.Run, tier domain.TierRecord, _ []domain.TierTransition) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO runs (id, runner_id, source_id, source_app, role, started_at, distance_km, duration_sec,
			                   avg_pace, avg_heart_rate, max_heart_rate, calories, elevation_gain_m, cadence,
			                   lp_earned, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.RunnerID, nullIfEmpty(run.SourceID), run.SourceApp, string(run.Role), toMillis(run.StartedAt),
			run.DistanceKm, run.DurationSec, run.AvgPace, run.AvgHeartRate, run.MaxHeartRate, run.Calories,
			run.ElevationGainM, run.Cadence, run.LPEarned, toMillis(run.CreatedAt), toMillis(run.UpdatedAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateRun
			}
			return fmt.Errorf("insert run: %w", err)
		}
		return updateTier(ctx, tx, tier)
	})
}

// ReclassifyRun implements domain.Repository.
func (s *Store) ReclassifyRun(ctx context.Context, run domain.Run, from, to domain.TierRecord, _ []domain.TierTransition) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE runs SET role = ?, lp_earned = ?, updated_at = ? WHERE id = ?`,
			string(run.Role), run.LPEarned, toMillis(run.UpdatedAt), run.ID,
		)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrRunNotFound
		}
		if err := updateTier(ctx, tx, from); err != nil {
			return err
		}
		return updateTier(ctx, tx, to)
	})
}

// DeleteRun implements domain.Repository.
func (s *Store) DeleteRun(ctx context.Context, run domain.Run, tier domain.TierRecord) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run.ID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrRunNotFound
		}
		return updateTier(ctx, tx, tier)
	})
}

// ListRuns implements domain.Repository.
func (s *Store) ListRuns(ctx context.Context, filter domain.RunFilter, cursor *domain.Cursor, limit int) ([]domain.Run, *domain.Cursor, error) {
	order := persistence.OrderingFor(filter.Sort)
	query := `SELECT ` + runColumns + ` FROM runs WHERE runner_id = ?`
	args := []any{filter.RunnerID}

	if filter.Role != "" {
		query += ` AND role = ?`
		args = append(args, string(filter.Role))
	}
	if !filter.Since.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, toMillis(filter.Since))
	}
	if cursor != nil {
		query += fmt.Sprintf(` AND (%s, id) %s (?, ?)`, order.Column, order.Operator)
		if order.ByDate {
			args = append(args, toMillis(cursor.StartedAt), cursor.ID)
		} else {
			args = append(args, cursor.DistanceKm, cursor.ID)
		}
	}
	query += ` ORDER BY ` + order.OrderBy()
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit+1)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	results := make([]domain.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
		return results, persistence.CursorAt(results[len(results)-1]), nil
	}
	return results, nil, nil
}

const runColumns = `id, runner_id, COALESCE(source_id, ''), source_app, role, started_at, distance_km, duration_sec,
	avg_pace, avg_heart_rate, max_heart_rate, calories, elevation_gain_m, cadence, lp_earned, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var (
		run                             domain.Run
		role                            string
		startedAt, createdAt, updatedAt int64
	)
	if err := row.Scan(&run.ID, &run.RunnerID, &run.SourceID, &run.SourceApp, &role, &startedAt,
		&run.DistanceKm, &run.DurationSec, &run.AvgPace, &run.AvgHeartRate, &run.MaxHeartRate,
		&run.Calories, &run.ElevationGainM, &run.Cadence, &run.LPEarned, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	run.Role = ranking.Role(role)
	run.StartedAt = fromMillis(startedAt)
	run.CreatedAt = fromMillis(createdAt)
	run.UpdatedAt = fromMillis(updatedAt)
	return &run, nil
}

func (s *Store) queryRun(ctx context.Context, query string, args ...any) (*domain.Run, error) {
	run, err := scanRun(s.sqlDB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// updateTier writes t if the stored version still matches t.Version.
func updateTier(ctx context.Context, tx *sql.Tx, t domain.TierRecord) error {
	history, err := json.Marshal(historyOrEmpty(t.State.History))
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE tiers SET tier = ?, grade = ?, lp = ?, season_start = ?, history_json = ?,
		        version = version + 1, updated_at = ?
		  WHERE runner_id = ? AND role = ? AND version = ?`,
		t.State.Tier.String(), t.State.Grade, t.State.LP, toMillis(t.State.SeasonStart), string(history),
		toMillis(t.UpdatedAt), t.RunnerID, string(t.State.Role), t.Version,
	)
	if err != nil {
		return fmt.Errorf("update tier: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrTierConflict
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func historyOrEmpty(h []ranking.HistoryEntry) []ranking.HistoryEntry {
	if h == nil {
		return []ranking.HistoryEntry{}
	}
	return h
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
