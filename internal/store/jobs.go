package store

import (
	"context"
	"database/sql"
	"time"

	"commerce-core/internal/apperr"
	"commerce-core/internal/models"

	"github.com/lib/pq"
)

// CreateJob inserts a new PENDING job and returns it
func (s *Store) CreateJob(ctx context.Context, jobType models.JobType, params models.JobParams) (*models.Job, error) {
	var job models.Job
	query := `
		INSERT INTO jobs (type, status, params)
		VALUES ($1, $2, $3)
		RETURNING *`

	if err := s.db.GetContext(ctx, &job, query, jobType, models.JobStatusPending, params); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJobByID retrieves a job record
func (s *Store) GetJobByID(ctx context.Context, id int64) (*models.Job, error) {
	var job models.Job
	err := s.db.GetContext(ctx, &job, "SELECT * FROM jobs WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("job does not exist").WithJob(id)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimJob atomically claims the oldest PENDING job of one of the given
// types and transitions it to RUNNING. Returns nil when nothing is
// pending. SKIP LOCKED keeps two workers from claiming the same row.
func (s *Store) ClaimJob(ctx context.Context, types []models.JobType) (*models.Job, error) {
	typeNames := make([]string, len(types))
	for i, t := range types {
		typeNames[i] = string(t)
	}

	query := `
		UPDATE jobs SET status = $1, started_at = NOW(), attempts = attempts + 1
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = $2 AND type = ANY($3)
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING *`

	var job models.Job
	err := s.db.GetContext(ctx, &job, query,
		models.JobStatusRunning, models.JobStatusPending, pq.Array(typeNames))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// RequeueStaleJobs returns RUNNING jobs whose started_at is older than
// the cutoff to PENDING, making them claimable again. Processed and
// checkpoint are left untouched, so the next claim resumes near where
// the dead worker stopped.
func (s *Store) RequeueStaleJobs(ctx context.Context, staleAfter time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = $1, started_at = NULL
		WHERE status = $2 AND started_at < $3`,
		models.JobStatusPending, models.JobStatusRunning, time.Now().Add(-staleAfter))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateJobProgress persists batch progress and the resume checkpoint
func (s *Store) UpdateJobProgress(ctx context.Context, jobID int64, processed, total, checkpoint int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET processed = $1, total = $2, checkpoint = $3 WHERE id = $4",
		processed, total, checkpoint, jobID)
	return err
}

// GetJobStatus reads only the current status, used at batch boundaries
// to observe cooperative cancellation.
func (s *Store) GetJobStatus(ctx context.Context, jobID int64) (models.JobStatus, error) {
	var status models.JobStatus
	err := s.db.GetContext(ctx, &status, "SELECT status FROM jobs WHERE id = $1", jobID)
	if err == sql.ErrNoRows {
		return "", apperr.NotFound("job does not exist").WithJob(jobID)
	}
	return status, err
}

// CompleteJob transitions a RUNNING job to COMPLETED. The status guard
// makes finished_at a set-once field: a job cancelled mid-run stays
// CANCELLED.
func (s *Store) CompleteJob(ctx context.Context, jobID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET status = $1, finished_at = NOW() WHERE id = $2 AND status = $3",
		models.JobStatusCompleted, jobID, models.JobStatusRunning)
	return err
}

// FailJob transitions a RUNNING job to FAILED with the error recorded
func (s *Store) FailJob(ctx context.Context, jobID int64, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET status = $1, last_error = $2, finished_at = NOW() WHERE id = $3 AND status = $4",
		models.JobStatusFailed, errMsg, jobID, models.JobStatusRunning)
	return err
}

// CancelJob transitions a PENDING or RUNNING job to CANCELLED. Cancelling
// a terminal job is an invalid-state error, a missing job is not found.
func (s *Store) CancelJob(ctx context.Context, jobID int64) (*models.Job, error) {
	query := `
		UPDATE jobs SET status = $1, finished_at = NOW()
		WHERE id = $2 AND status IN ($3, $4)
		RETURNING *`

	var job models.Job
	err := s.db.GetContext(ctx, &job, query,
		models.JobStatusCancelled, jobID, models.JobStatusPending, models.JobStatusRunning)
	if err == nil {
		return &job, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	existing, err := s.GetJobByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return nil, apperr.InvalidState("job already " + string(existing.Status)).WithJob(jobID)
}
