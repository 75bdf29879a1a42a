package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fieldops_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schedule record lifecycle. Records are append-mostly: a reschedule
// supersedes the prior active record instead of mutating it, so the
// table doubles as an audit trail.
const (
	StatusActive     = "active"
	StatusCancelled  = "cancelled"
	StatusSuperseded = "superseded"
)

// Actions recorded against the field-service system.
const (
	ActionCreated     = "created"
	ActionRescheduled = "rescheduled"
)

// ScheduleRecord is the database model for one scheduling action.
type ScheduleRecord struct {
	ID                uuid.UUID `db:"id"`
	ProjectID         string    `db:"project_id"`
	ScheduleType      string    `db:"schedule_type"`
	Action            string    `db:"action"`
	Status            string    `db:"status"`
	ScheduledDate     string    `db:"scheduled_date"`
	ScheduledStart    string    `db:"scheduled_start"`
	ScheduledEnd      string    `db:"scheduled_end"`
	Timezone          string    `db:"timezone"`
	StartUTC          time.Time `db:"start_utc"`
	EndUTC            time.Time `db:"end_utc"`
	ZuperJobUID       string    `db:"zuper_job_uid"`
	AssignedUser      string    `db:"assigned_user"`
	AssignedUserEmail string    `db:"assigned_user_email"`
	CustomerFirstName string    `db:"customer_first_name"`
	CustomerLastName  string    `db:"customer_last_name"`
	CustomerPhone     string    `db:"customer_phone"`
	Address           string    `db:"address"`
	ProjectNumber     string    `db:"project_number"`
	Notes             string    `db:"notes"`
	TestMode          bool      `db:"test_mode"`
	CreatedBy         string    `db:"created_by"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

// JobCacheEntry remembers which field-service job a project's category
// resolved to, so later calls skip the search ladder. Title and window
// are the last-known values at sync time, kept for display.
type JobCacheEntry struct {
	ProjectID      string    `db:"project_id"`
	CategoryName   string    `db:"category_name"`
	JobUID         string    `db:"job_uid"`
	JobTitle       string    `db:"job_title"`
	ScheduledStart string    `db:"scheduled_start"`
	ScheduledEnd   string    `db:"scheduled_end"`
	MatchedBy      string    `db:"matched_by"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Repository provides database operations for schedule records.
type Repository struct {
	pool *pgxpool.Pool
}

const recordNotFoundMsg = "schedule record not found"

const recordColumns = `id, project_id, schedule_type, action, status,
	scheduled_date, scheduled_start, scheduled_end, timezone, start_utc, end_utc,
	zuper_job_uid, assigned_user, assigned_user_email,
	customer_first_name, customer_last_name, customer_phone, address,
	project_number, notes, test_mode, created_by, created_at, updated_at`

// New creates a new scheduling repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new schedule record. A zero ID is assigned here.
func (r *Repository) Create(ctx context.Context, rec *ScheduleRecord) error {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = StatusActive
	}

	query := `
		INSERT INTO schedule_records (
			id, project_id, schedule_type, action, status,
			scheduled_date, scheduled_start, scheduled_end, timezone, start_utc, end_utc,
			zuper_job_uid, assigned_user, assigned_user_email,
			customer_first_name, customer_last_name, customer_phone, address,
			project_number, notes, test_mode, created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24
		)`

	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.ProjectID, rec.ScheduleType, rec.Action, rec.Status,
		rec.ScheduledDate, rec.ScheduledStart, rec.ScheduledEnd, rec.Timezone, rec.StartUTC, rec.EndUTC,
		rec.ZuperJobUID, rec.AssignedUser, rec.AssignedUserEmail,
		rec.CustomerFirstName, rec.CustomerLastName, rec.CustomerPhone, rec.Address,
		rec.ProjectNumber, rec.Notes, rec.TestMode, rec.CreatedBy, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule record: %w", err)
	}

	return nil
}

// GetByID retrieves a schedule record by its ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*ScheduleRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM schedule_records WHERE id = $1`

	rec, err := r.scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(recordNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get schedule record: %w", err)
	}

	return rec, nil
}

// LatestActive returns the newest active record for a project and
// schedule type, or nil when the project has none.
func (r *Repository) LatestActive(ctx context.Context, projectID, scheduleType string) (*ScheduleRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM schedule_records
		WHERE project_id = $1 AND schedule_type = $2 AND status = $3
		ORDER BY created_at DESC LIMIT 1`

	rec, err := r.scanRecord(r.pool.QueryRow(ctx, query, projectID, scheduleType, StatusActive))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get active schedule record: %w", err)
	}

	return rec, nil
}

// SupersedeActive marks every active record for the project and type
// as superseded. Called before inserting the replacement record.
func (r *Repository) SupersedeActive(ctx context.Context, projectID, scheduleType string) error {
	query := `UPDATE schedule_records SET status = $4, updated_at = $5
		WHERE project_id = $1 AND schedule_type = $2 AND status = $3`

	_, err := r.pool.Exec(ctx, query, projectID, scheduleType, StatusActive, StatusSuperseded, time.Now())
	if err != nil {
		return fmt.Errorf("failed to supersede schedule records: %w", err)
	}

	return nil
}

// Cancel marks a record cancelled and appends the note to its notes.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID, note string) error {
	query := `UPDATE schedule_records SET
			status = $2,
			notes = CASE
				WHEN $3 = '' THEN notes
				WHEN notes = '' THEN $3
				ELSE notes || E'\n' || $3
			END,
			updated_at = $4
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, StatusCancelled, note, time.Now())
	if err != nil {
		return fmt.Errorf("failed to cancel schedule record: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperr.NotFound(recordNotFoundMsg)
	}

	return nil
}

// ListByProject returns every record for a project, newest first.
// Pass an empty scheduleType to include all categories.
func (r *Repository) ListByProject(ctx context.Context, projectID, scheduleType string) ([]ScheduleRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM schedule_records WHERE project_id = $1`
	args := []interface{}{projectID}
	if scheduleType != "" {
		query += ` AND schedule_type = $2`
		args = append(args, scheduleType)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule records: %w", err)
	}
	defer rows.Close()

	var items []ScheduleRecord
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule record: %w", err)
		}
		items = append(items, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate schedule records: %w", err)
	}

	return items, nil
}

// GetJobCache returns the cached job correlation for a project and
// category, or nil when none is cached.
func (r *Repository) GetJobCache(ctx context.Context, projectID, categoryName string) (*JobCacheEntry, error) {
	var entry JobCacheEntry
	query := `SELECT project_id, category_name, job_uid, job_title, scheduled_start, scheduled_end, matched_by, updated_at
		FROM zuper_job_cache WHERE project_id = $1 AND category_name = $2`

	err := r.pool.QueryRow(ctx, query, projectID, categoryName).Scan(
		&entry.ProjectID, &entry.CategoryName, &entry.JobUID,
		&entry.JobTitle, &entry.ScheduledStart, &entry.ScheduledEnd,
		&entry.MatchedBy, &entry.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job cache entry: %w", err)
	}

	return &entry, nil
}

// UpsertJobCache stores or refreshes the job correlation for a project
// and category.
func (r *Repository) UpsertJobCache(ctx context.Context, entry *JobCacheEntry) error {
	query := `
		INSERT INTO zuper_job_cache (project_id, category_name, job_uid, job_title, scheduled_start, scheduled_end, matched_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (project_id, category_name) DO UPDATE SET
			job_uid = EXCLUDED.job_uid,
			job_title = EXCLUDED.job_title,
			scheduled_start = EXCLUDED.scheduled_start,
			scheduled_end = EXCLUDED.scheduled_end,
			matched_by = EXCLUDED.matched_by,
			updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, query,
		entry.ProjectID, entry.CategoryName, entry.JobUID,
		entry.JobTitle, entry.ScheduledStart, entry.ScheduledEnd,
		entry.MatchedBy, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert job cache entry: %w", err)
	}

	return nil
}

// DeleteJobCache removes a cached correlation, typically after the job
// turned out to be stale or was unscheduled.
func (r *Repository) DeleteJobCache(ctx context.Context, projectID, categoryName string) error {
	query := `DELETE FROM zuper_job_cache WHERE project_id = $1 AND category_name = $2`

	if _, err := r.pool.Exec(ctx, query, projectID, categoryName); err != nil {
		return fmt.Errorf("failed to delete job cache entry: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *Repository) scanRecord(row rowScanner) (*ScheduleRecord, error) {
	var rec ScheduleRecord
	err := row.Scan(
		&rec.ID, &rec.ProjectID, &rec.ScheduleType, &rec.Action, &rec.Status,
		&rec.ScheduledDate, &rec.ScheduledStart, &rec.ScheduledEnd, &rec.Timezone, &rec.StartUTC, &rec.EndUTC,
		&rec.ZuperJobUID, &rec.AssignedUser, &rec.AssignedUserEmail,
		&rec.CustomerFirstName, &rec.CustomerLastName, &rec.CustomerPhone, &rec.Address,
		&rec.ProjectNumber, &rec.Notes, &rec.TestMode, &rec.CreatedBy, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
