package service

import (
	"context"
	"fmt"

	"commerce-core/internal/apperr"
	"commerce-core/internal/models"
	"commerce-core/internal/util"

	"go.uber.org/zap"
)

// JobQueue creates pipeline jobs and exposes their status. Creation
// only inserts a PENDING record; execution happens out-of-band in the
// worker pool so callers always get a fast acknowledgement.
type JobQueue struct {
	jobs   JobStore
	logger *zap.Logger
}

// NewJobQueue creates a new job queue
func NewJobQueue(jobs JobStore) *JobQueue {
	return &JobQueue{
		jobs:   jobs,
		logger: util.GetLogger(),
	}
}

// CreateJob enqueues a new pipeline job of the given type
func (q *JobQueue) CreateJob(ctx context.Context, jobType string, params models.JobParams) (*models.Job, error) {
	ctx, span := util.StartSpan(ctx, "JobQueue.CreateJob")
	defer span.End()

	if !models.ValidJobType(jobType) {
		return nil, apperr.Validation(fmt.Sprintf("unknown job type %q", jobType))
	}

	job, err := q.jobs.CreateJob(ctx, models.JobType(jobType), params)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	util.JobsCreatedTotal.WithLabelValues(jobType).Inc()
	q.logger.Info("Job queued",
		zap.Int64("job_id", job.ID),
		zap.String("type", jobType))
	return job, nil
}

// GetJob returns the job record
func (q *JobQueue) GetJob(ctx context.Context, id int64) (*models.Job, error) {
	return q.jobs.GetJobByID(ctx, id)
}

// CancelJob requests cancellation of a PENDING or RUNNING job. A
// RUNNING job's worker observes the cancellation at the next batch
// boundary; there is no forced interruption mid-batch.
func (q *JobQueue) CancelJob(ctx context.Context, id int64) (*models.Job, error) {
	ctx, span := util.StartSpan(ctx, "JobQueue.CancelJob")
	defer span.End()

	job, err := q.jobs.CancelJob(ctx, id)
	if err != nil {
		return nil, err
	}

	util.JobsCancelledTotal.WithLabelValues(string(job.Type)).Inc()
	q.logger.Info("Job cancelled",
		zap.Int64("job_id", job.ID),
		zap.String("type", string(job.Type)))
	return job, nil
}
