// Package postgres provides Postgres-backed persistence for runners, tiers, runs
// and the transactional outbox.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/tierrun/internal/domain"
	"example.com/tierrun/internal/events"
	"example.com/tierrun/internal/persistence"
	"example.com/tierrun/internal/ranking"
)

const uniqueViolation = "23505"

// Repository implements domain.Repository. Every write that changes a tier also
// records outbox events in the same transaction.
type Repository struct {
	pool *pgxpool.Pool
}

var _ domain.Repository = (*Repository)(nil)

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateRunner persists the runner and its initial tiers.
func (r *Repository) CreateRunner(ctx context.Context, runner domain.Runner, tiers []domain.TierRecord) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		p := runner.Profile
		_, err := tx.Exec(ctx,
			`INSERT INTO runners (id, name, age, sex, weight_kg, experience, main_role, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			runner.ID, runner.Name, p.Age, string(p.Sex), p.WeightKg, string(p.Experience), string(p.MainRole),
			runner.CreatedAt, runner.UpdatedAt,
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
			if _, err := tx.Exec(ctx,
				`INSERT INTO tiers (runner_id, role, tier, grade, lp, season_start, history, version, updated_at)
                VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
				t.RunnerID, string(t.State.Role), t.State.Tier.String(), t.State.Grade, t.State.LP,
				t.State.SeasonStart, history, t.Version, t.UpdatedAt,
			); err != nil {
				return fmt.Errorf("insert tier: %w", err)
			}
		}
		return nil
	})
}

// GetRunner retrieves a runner by ID.
func (r *Repository) GetRunner(ctx context.Context, runnerID string) (*domain.Runner, error) {
	const query = `SELECT id, name, age, sex, weight_kg, experience, main_role, created_at, updated_at
        FROM runners WHERE id=$1`

	var (
		runner                    domain.Runner
		sex, experience, mainRole string
	)
	err := r.pool.QueryRow(ctx, query, runnerID).Scan(&runner.ID, &runner.Name, &runner.Profile.Age, &sex,
		&runner.Profile.WeightKg, &experience, &mainRole, &runner.CreatedAt, &runner.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	runner.Profile.Sex = ranking.Sex(sex)
	runner.Profile.Experience = ranking.Experience(experience)
	runner.Profile.MainRole = ranking.Role(mainRole)
	runner.CreatedAt = runner.CreatedAt.UTC()
	runner.UpdatedAt = runner.UpdatedAt.UTC()
	return &runner, nil
}

// UpdateRunner overwrites the runner's name and profile.
func (r *Repository) UpdateRunner(ctx context.Context, runner domain.Runner) error {
	p := runner.Profile
	tag, err := r.pool.Exec(ctx,
		`UPDATE runners SET name=$1, age=$2, sex=$3, weight_kg=$4, experience=$5, main_role=$6, updated_at=$7
        WHERE id=$8`,
		runner.Name, p.Age, string(p.Sex), p.WeightKg, string(p.Experience), string(p.MainRole),
		runner.UpdatedAt, runner.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRunnerNotFound
	}
	return nil
}

// GetTier retrieves the ladder state of one role.
func (r *Repository) GetTier(ctx context.Context, runnerID string, role ranking.Role) (*domain.TierRecord, error) {
	const query = `SELECT runner_id, role, tier, grade, lp, season_start, history, version, updated_at
        FROM tiers WHERE runner_id=$1 AND role=$2`

	var (
		t                  domain.TierRecord
		roleName, tierName string
		history            []byte
	)
	err := r.pool.QueryRow(ctx, query, runnerID, string(role)).Scan(&t.RunnerID, &roleName, &tierName,
		&t.State.Grade, &t.State.LP, &t.State.SeasonStart, &history, &t.Version, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if t.State.Tier, err = ranking.ParseTier(tierName); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(history, &t.State.History); err != nil {
		return nil, fmt.Errorf("decode tier history: %w", err)
	}
	t.State.Role = ranking.Role(roleName)
	t.State.SeasonStart = t.State.SeasonStart.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return &t, nil
}

// SaveTiers writes tiers whose versions still match the stored ones.
func (r *Repository) SaveTiers(ctx context.Context, tiers []domain.TierRecord) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		for _, t := range tiers {
			if err := updateTier(ctx, tx, t); err != nil {
				return err
			}
		}
		return nil
	})
}

// FindRunBySource returns the run recorded for a source workout, if any.
func (r *Repository) FindRunBySource(ctx context.Context, runnerID, sourceID string) (*domain.Run, error) {
	if sourceID == "" {
		return nil, nil
	}
	return r.queryRun(ctx, `SELECT `+runColumns+` FROM runs WHERE runner_id=$1 AND source_id=$2`, runnerID, sourceID)
}

// GetRun retrieves a run by ID.
func (r *Repository) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	return r.queryRun(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, runID)
}

// RecordRun inserts the run, writes the tier and enqueues run.scored plus one
// tier.transitioned event per transition.
func (r *Repository) RecordRun(ctx context.Context, run domain.Run, tier domain.TierRecord, transitions []domain.TierTransition) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO runs (id, runner_id, source_id, source_app, role, started_at, distance_km, duration_sec,
                avg_pace, avg_heart_rate, max_heart_rate, calories, elevation_gain_m, cadence, lp_earned, created_at, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
			run.ID, run.RunnerID, nullIfEmpty(run.SourceID), run.SourceApp, string(run.Role), run.StartedAt,
			run.DistanceKm, run.DurationSec, run.AvgPace, run.AvgHeartRate, run.MaxHeartRate, run.Calories,
			run.ElevationGainM, run.Cadence, run.LPEarned, run.CreatedAt, run.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicateRun
			}
			return fmt.Errorf("insert run: %w", err)
		}
		if err := updateTier(ctx, tx, tier); err != nil {
			return err
		}
		return r.enqueueScoring(ctx, tx, run, tier, transitions)
	})
}

// ReclassifyRun moves a run between roles and writes both tiers.
func (r *Repository) ReclassifyRun(ctx context.Context, run domain.Run, from, to domain.TierRecord, transitions []domain.TierTransition) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE runs SET role=$1, lp_earned=$2, updated_at=$3 WHERE id=$4`,
			string(run.Role), run.LPEarned, run.UpdatedAt, run.ID)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrRunNotFound
		}
		if err := updateTier(ctx, tx, from); err != nil {
			return err
		}
		if err := updateTier(ctx, tx, to); err != nil {
			return err
		}
		return r.enqueueScoring(ctx, tx, run, to, transitions)
	})
}

// DeleteRun removes a run and writes the refunded tier.
func (r *Repository) DeleteRun(ctx context.Context, run domain.Run, tier domain.TierRecord) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM runs WHERE id=$1`, run.ID)
		if err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrRunNotFound
		}
		return updateTier(ctx, tx, tier)
	})
}

// ListRuns returns runs matching filter ordered by filter.Sort.
func (r *Repository) ListRuns(ctx context.Context, filter domain.RunFilter, cursor *domain.Cursor, limit int) ([]domain.Run, *domain.Cursor, error) {
	order := persistence.OrderingFor(filter.Sort)
	args := []any{filter.RunnerID}
	query := `SELECT ` + runColumns + ` FROM runs WHERE runner_id=$1`

	if filter.Role != "" {
		args = append(args, string(filter.Role))
		query += fmt.Sprintf(` AND role=$%d`, len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		query += fmt.Sprintf(` AND started_at >= $%d`, len(args))
	}
	if cursor != nil {
		if order.ByDate {
			args = append(args, cursor.StartedAt)
		} else {
			args = append(args, cursor.DistanceKm)
		}
		args = append(args, cursor.ID)
		query += fmt.Sprintf(` AND (%s, id) %s ($%d, $%d)`, order.Column, order.Operator, len(args)-1, len(args))
	}
	query += ` ORDER BY ` + order.OrderBy()
	if limit > 0 {
		args = append(args, limit+1)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
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

func (r *Repository) enqueueScoring(ctx context.Context, tx pgx.Tx, run domain.Run, tier domain.TierRecord, transitions []domain.TierTransition) error {
	scored := events.RunScored{
		RunID:      run.ID,
		RunnerID:   run.RunnerID,
		Role:       string(run.Role),
		DistanceKm: run.DistanceKm,
		LPEarned:   run.LPEarned,
		TierLP:     tier.State.LP,
		StartedAt:  run.StartedAt,
		ScoredAt:   run.UpdatedAt,
	}
	dedupe := fmt.Sprintf("%s:%s:%d", run.ID, events.TypeRunScored, run.UpdatedAt.UnixNano())
	if err := insertOutbox(ctx, tx, "run", run.ID, events.TypeRunScored, run.RunnerID, dedupe, scored); err != nil {
		return err
	}

	for i, t := range transitions {
		payload := events.TierTransitioned{
			RunnerID:   t.RunnerID,
			Role:       string(t.Role),
			Kind:       t.Kind.String(),
			FromTier:   t.From.Tier.String(),
			FromGrade:  t.From.Grade,
			Tier:       t.To.Tier.String(),
			Grade:      t.To.Grade,
			LP:         t.LP,
			OccurredAt: t.OccurredAt,
		}
		key := fmt.Sprintf("%s:%s", t.RunnerID, t.Role)
		dedupe := fmt.Sprintf("%s:%s:%d:%d", key, events.TypeTierTransitioned, t.OccurredAt.UnixNano(), i)
		if err := insertOutbox(ctx, tx, "tier", key, events.TypeTierTransitioned, key, dedupe, payload); err != nil {
			return err
		}
	}
	return nil
}

func insertOutbox(ctx context.Context, tx pgx.Tx, aggregateType, aggregateID, eventType, partitionKey, dedupeKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (dedupe_key) WHERE dedupe_key IS NOT NULL DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		aggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		partitionKey,
		body,
		dedupeKey,
	)
	return err
}

const runColumns = `id, runner_id, COALESCE(source_id, ''), source_app, role, started_at, distance_km, duration_sec,
    avg_pace, avg_heart_rate, max_heart_rate, calories, elevation_gain_m, cadence, lp_earned, created_at, updated_at`

func scanRun(row pgx.Row) (*domain.Run, error) {
	var (
		run  domain.Run
		role string
	)
	if err := row.Scan(&run.ID, &run.RunnerID, &run.SourceID, &run.SourceApp, &role, &run.StartedAt,
		&run.DistanceKm, &run.DurationSec, &run.AvgPace, &run.AvgHeartRate, &run.MaxHeartRate,
		&run.Calories, &run.ElevationGainM, &run.Cadence, &run.LPEarned, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	run.Role = ranking.Role(role)
	run.StartedAt = run.StartedAt.UTC()
	run.CreatedAt = run.CreatedAt.UTC()
	run.UpdatedAt = run.UpdatedAt.UTC()
	return &run, nil
}

func (r *Repository) queryRun(ctx context.Context, query string, args ...any) (*domain.Run, error) {
	run, err := scanRun(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return run, nil
}

func updateTier(ctx context.Context, tx pgx.Tx, t domain.TierRecord) error {
	history, err := json.Marshal(historyOrEmpty(t.State.History))
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx,
		`UPDATE tiers SET tier=$1, grade=$2, lp=$3, season_start=$4, history=$5, version=version+1, updated_at=$6
        WHERE runner_id=$7 AND role=$8 AND version=$9`,
		t.State.Tier.String(), t.State.Grade, t.State.LP, t.State.SeasonStart, history,
		t.UpdatedAt, t.RunnerID, string(t.State.Role), t.Version,
	)
	if err != nil {
		return fmt.Errorf("update tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTierConflict
	}
	return nil
}

func (r *Repository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
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
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic         string
	SchemaSubject string
}

var eventCatalog = map[string]EventMetadata{
	events.TypeRunScored: {
		Topic:         "run_events",
		SchemaSubject: "run_events-value",
	},
	events.TypeTierTransitioned: {
		Topic:         "tier_events",
		SchemaSubject: "tier_events-value",
	},
}
