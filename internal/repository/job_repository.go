package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mediavault/tubefetch/internal/models"
)

type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	const query = `
INSERT INTO jobs (user_id, source_url, kind, format, requested_delivery, status, title)
VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''))`
	res, err := r.db.ExecContext(ctx, query, job.UserID, job.SourceURL, job.Kind, job.Format, job.RequestedDelivery, job.Status, job.Title)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	job.ID = id
	return nil
}

func (r *JobRepository) SetStatus(ctx context.Context, jobID int64, status models.JobStatus) error {
	const query = `UPDATE jobs SET status = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, status, jobID); err != nil {
		return fmt.Errorf("set job status: %w", err)
	}
	return nil
}

func (r *JobRepository) SetMetadata(ctx context.Context, jobID int64, title, duration string, size int64) error {
	const query = `UPDATE jobs SET title = NULLIF(?, ''), duration = NULLIF(?, ''), artifact_size = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, title, duration, size, jobID); err != nil {
		return fmt.Errorf("set job metadata: %w", err)
	}
	return nil
}

// Complete records the channel the artifact was actually delivered over,
// which may differ from the requested one after a storage fallback.
func (r *JobRepository) Complete(ctx context.Context, jobID int64, via models.DeliveryChannel, link string) error {
	const query = `
UPDATE jobs SET status = ?, delivered_via = ?, storage_link = NULLIF(?, ''), completed_at = NOW()
WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, models.JobCompleted, via, link, jobID); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

func (r *JobRepository) Fail(ctx context.Context, jobID int64, kind models.FailureKind) error {
	const query = `UPDATE jobs SET status = ?, failure_kind = ?, completed_at = NOW() WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, models.JobFailed, kind, jobID); err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, jobID int64) (*models.Job, error) {
	const query = `
SELECT id, user_id, source_url, kind, format, requested_delivery, COALESCE(delivered_via, ''), status,
       COALESCE(failure_kind, ''), COALESCE(title, ''), COALESCE(artifact_size, 0), COALESCE(duration, ''),
       COALESCE(storage_link, ''), created_at, completed_at
FROM jobs WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, jobID)
	job, err := scanJob(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return job, nil
}

func (r *JobRepository) ListForUser(ctx context.Context, userID int64, limit int) ([]models.Job, error) {
	const query = `
SELECT id, user_id, source_url, kind, format, requested_delivery, COALESCE(delivered_via, ''), status,
       COALESCE(failure_kind, ''), COALESCE(title, ''), COALESCE(artifact_size, 0), COALESCE(duration, ''),
       COALESCE(storage_link, ''), created_at, completed_at
FROM jobs
WHERE user_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		job, err := scanJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func scanJob(scan func(dest ...any) error) (*models.Job, error) {
	var j models.Job
	var completed sql.NullTime
	if err := scan(&j.ID, &j.UserID, &j.SourceURL, &j.Kind, &j.Format, &j.RequestedDelivery, &j.DeliveredVia,
		&j.Status, &j.FailureKind, &j.Title, &j.ArtifactSize, &j.Duration, &j.StorageLink, &j.CreatedAt, &completed); err != nil {
		return nil, err
	}
	if completed.Valid {
		j.CompletedAt = &completed.Time
	}
	return &j, nil
}
