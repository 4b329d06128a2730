package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/skyguard/skyguard/internal/models"
	"github.com/skyguard/skyguard/internal/store"
)

// PostgresTargetRepository implements store.TargetRepository using PostgreSQL.
// A target row owns its report rows; reports are append-only.
type PostgresTargetRepository struct {
	db *sql.DB
}

// NewPostgresTargetRepository creates a new PostgreSQL target repository.
func NewPostgresTargetRepository(db *sql.DB) *PostgresTargetRepository {
	return &PostgresTargetRepository{db: db}
}

const targetColumns = `
	id, target_type, latitude, longitude, status,
	weighted_score, probability, report_count, danger_radius_km,
	created_at, resolved_at, feedback_sent
`

// Create inserts a new target together with its initial reports.
func (r *PostgresTargetRepository) Create(ctx context.Context, target models.Target) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO targets (` + targetColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	score, probability, count, radius := scoringColumns(target.Scoring)
	_, err = tx.ExecContext(ctx, query,
		target.ID,
		target.Type,
		target.Latitude,
		target.Longitude,
		target.Status,
		score,
		probability,
		count,
		radius,
		target.CreatedAt,
		target.ResolvedAt,
		target.FeedbackSent,
	)
	if err != nil {
		return fmt.Errorf("failed to insert target: %w", err)
	}

	if err := insertReports(ctx, tx, target.Reports); err != nil {
		return err
	}

	return tx.Commit()
}

// Update replaces the target row and appends any reports not yet stored.
// The engine serializes updates per target, so no row lock is taken here.
func (r *PostgresTargetRepository) Update(ctx context.Context, target models.Target) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE targets
		SET target_type = $2, latitude = $3, longitude = $4, status = $5,
		    weighted_score = $6, probability = $7, report_count = $8,
		    danger_radius_km = $9, resolved_at = $10, feedback_sent = $11
		WHERE id = $1
	`

	score, probability, count, radius := scoringColumns(target.Scoring)
	result, err := tx.ExecContext(ctx, query,
		target.ID,
		target.Type,
		target.Latitude,
		target.Longitude,
		target.Status,
		score,
		probability,
		count,
		radius,
		target.ResolvedAt,
		target.FeedbackSent,
	)
	if err != nil {
		return fmt.Errorf("failed to update target: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	if err := insertReports(ctx, tx, target.Reports); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID retrieves a target with its reports, or store.ErrNotFound.
func (r *PostgresTargetRepository) GetByID(ctx context.Context, id string) (*models.Target, error) {
	query := `SELECT ` + targetColumns + ` FROM targets WHERE id = $1`

	target, err := scanTarget(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get target: %w", err)
	}

	reports, err := r.loadReports(ctx, []string{target.ID})
	if err != nil {
		return nil, err
	}
	target.Reports = reports[target.ID]
	return target, nil
}

// ListActive retrieves all non-terminal targets with their reports.
func (r *PostgresTargetRepository) ListActive(ctx context.Context) ([]models.Target, error) {
	query := `
		SELECT ` + targetColumns + `
		FROM targets
		WHERE status IN ($1, $2)
		ORDER BY created_at DESC
	`
	return r.queryTargets(ctx, query, models.StatusPending, models.StatusUnconfirmed)
}

// Query retrieves targets matching the filter, newest first. Rejected targets
// are excluded unless the query names them explicitly.
func (r *PostgresTargetRepository) Query(ctx context.Context, q models.TargetQuery) ([]models.Target, error) {
	var conditions []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Status != nil {
		conditions = append(conditions, "status = "+arg(*q.Status))
	} else if !q.IncludeRejected {
		conditions = append(conditions, "status != "+arg(models.StatusRejected))
	}
	if q.Type != nil {
		conditions = append(conditions, "target_type = "+arg(*q.Type))
	}
	if q.Probability != nil {
		conditions = append(conditions, "probability = "+arg(*q.Probability))
	}

	query := `SELECT ` + targetColumns + ` FROM targets`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	return r.queryTargets(ctx, query, args...)
}

func (r *PostgresTargetRepository) queryTargets(ctx context.Context, query string, args ...interface{}) ([]models.Target, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	var targets []models.Target
	var ids []string
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, *target)
		ids = append(ids, target.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate targets: %w", err)
	}

	if len(ids) == 0 {
		return targets, nil
	}

	reports, err := r.loadReports(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range targets {
		targets[i].Reports = reports[targets[i].ID]
	}
	return targets, nil
}

// loadReports fetches the reports for a set of targets, oldest first within
// each target so arrival order is preserved.
func (r *PostgresTargetRepository) loadReports(ctx context.Context, targetIDs []string) (map[string][]models.Report, error) {
	query := `
		SELECT id, target_id, reporter_id, trust_at_submission, target_type,
		       latitude, longitude, description, submitted_at
		FROM reports
		WHERE target_id = ANY($1)
		ORDER BY submitted_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(targetIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	byTarget := make(map[string][]models.Report, len(targetIDs))
	for rows.Next() {
		var rep models.Report
		var description sql.NullString
		if err := rows.Scan(
			&rep.ID,
			&rep.TargetID,
			&rep.ReporterID,
			&rep.TrustAtSubmission,
			&rep.Type,
			&rep.Latitude,
			&rep.Longitude,
			&description,
			&rep.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		rep.Description = description.String
		byTarget[rep.TargetID] = append(byTarget[rep.TargetID], rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return byTarget, nil
}

func insertReports(ctx context.Context, tx *sql.Tx, reports []models.Report) error {
	query := `
		INSERT INTO reports (
			id, target_id, reporter_id, trust_at_submission, target_type,
			latitude, longitude, description, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	for _, rep := range reports {
		var description *string
		if rep.Description != "" {
			description = &rep.Description
		}
		_, err := tx.ExecContext(ctx, query,
			rep.ID,
			rep.TargetID,
			rep.ReporterID,
			rep.TrustAtSubmission,
			rep.Type,
			rep.Latitude,
			rep.Longitude,
			description,
			rep.SubmittedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert report %s: %w", rep.ID, err)
		}
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanTarget.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTarget(row scanner) (*models.Target, error) {
	var target models.Target
	var score, radius sql.NullFloat64
	var probability sql.NullString
	var count sql.NullInt64
	var resolvedAt sql.NullTime

	err := row.Scan(
		&target.ID,
		&target.Type,
		&target.Latitude,
		&target.Longitude,
		&target.Status,
		&score,
		&probability,
		&count,
		&radius,
		&target.CreatedAt,
		&resolvedAt,
		&target.FeedbackSent,
	)
	if err != nil {
		return nil, err
	}

	if score.Valid {
		target.Scoring = &models.Scoring{
			WeightedScore:  score.Float64,
			Probability:    models.Probability(probability.String),
			ReportCount:    int(count.Int64),
			DangerRadiusKM: radius.Float64,
		}
	}
	if resolvedAt.Valid {
		target.ResolvedAt = &resolvedAt.Time
	}
	return &target, nil
}

// scoringColumns splits an optional Scoring into nullable column values.
func scoringColumns(s *models.Scoring) (score, probability, count, radius interface{}) {
	if s == nil {
		return nil, nil, nil, nil
	}
	return s.WeightedScore, string(s.Probability), s.ReportCount, s.DangerRadiusKM
}
