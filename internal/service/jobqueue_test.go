package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commerce-core/internal/apperr"
	"commerce-core/internal/models"
)

// fakeJobStore mirrors the guarded transitions of the real job table
type fakeJobStore struct {
	mu     sync.Mutex
	jobs   map[int64]*models.Job
	nextID int64
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[int64]*models.Job)}
}

func (s *fakeJobStore) CreateJob(ctx context.Context, jobType models.JobType, params models.JobParams) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	job := &models.Job{
		ID:        s.nextID,
		Type:      jobType,
		Status:    models.JobStatusPending,
		Params:    params,
		CreatedAt: time.Now(),
	}
	s.jobs[job.ID] = job
	cp := *job
	return &cp, nil
}

func (s *fakeJobStore) GetJobByID(ctx context.Context, id int64) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, apperr.NotFound("job does not exist").WithJob(id)
	}
	cp := *job
	return &cp, nil
}

func (s *fakeJobStore) CancelJob(ctx context.Context, id int64) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, apperr.NotFound("job does not exist").WithJob(id)
	}
	if job.Status != models.JobStatusPending && job.Status != models.JobStatusRunning {
		return nil, apperr.InvalidState(fmt.Sprintf("job already %s", job.Status)).WithJob(id)
	}
	job.Status = models.JobStatusCancelled
	now := time.Now()
	job.FinishedAt = &now
	cp := *job
	return &cp, nil
}

func (s *fakeJobStore) setStatus(id int64, status models.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[id].Status = status
}

func TestCreateJobQueuesPending(t *testing.T) {
	queue := NewJobQueue(newFakeJobStore())

	for _, jt := range models.AllJobTypes {
		job, err := queue.CreateJob(context.Background(), string(jt), models.JobParams{})
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusPending, job.Status)
		assert.Equal(t, jt, job.Type)
		assert.NotZero(t, job.ID)
	}
}

func TestCreateJobRejectsUnknownType(t *testing.T) {
	store := newFakeJobStore()
	queue := NewJobQueue(store)

	_, err := queue.CreateJob(context.Background(), "REBUILD_EVERYTHING", models.JobParams{})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Empty(t, store.jobs)
}

func TestCreateJobKeepsParams(t *testing.T) {
	queue := NewJobQueue(newFakeJobStore())

	job, err := queue.CreateJob(context.Background(), string(models.JobTypeSyncProduct), models.JobParams{SkipExisting: true, ActiveOnly: true})
	require.NoError(t, err)
	assert.True(t, job.Params.SkipExisting)
	assert.True(t, job.Params.ActiveOnly)
	assert.False(t, job.Params.Force)
}

func TestCancelJobTransitions(t *testing.T) {
	t.Run("pending", func(t *testing.T) {
		store := newFakeJobStore()
		queue := NewJobQueue(store)
		job, _ := queue.CreateJob(context.Background(), string(models.JobTypeRaw), models.JobParams{})

		cancelled, err := queue.CancelJob(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCancelled, cancelled.Status)
		assert.NotNil(t, cancelled.FinishedAt)
	})

	t.Run("running", func(t *testing.T) {
		store := newFakeJobStore()
		queue := NewJobQueue(store)
		job, _ := queue.CreateJob(context.Background(), string(models.JobTypeRaw), models.JobParams{})
		store.setStatus(job.ID, models.JobStatusRunning)

		cancelled, err := queue.CancelJob(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusCancelled, cancelled.Status)
	})

	for _, terminal := range []models.JobStatus{models.JobStatusCompleted, models.JobStatusFailed, models.JobStatusCancelled} {
		t.Run(string(terminal), func(t *testing.T) {
			store := newFakeJobStore()
			queue := NewJobQueue(store)
			job, _ := queue.CreateJob(context.Background(), string(models.JobTypeRaw), models.JobParams{})
			store.setStatus(job.ID, terminal)

			_, err := queue.CancelJob(context.Background(), job.ID)
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindInvalidState))

			stored, _ := queue.GetJob(context.Background(), job.ID)
			assert.Equal(t, terminal, stored.Status, "terminal status must not change")
		})
	}

	t.Run("missing", func(t *testing.T) {
		queue := NewJobQueue(newFakeJobStore())
		_, err := queue.CancelJob(context.Background(), 404)
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, models.JobStatusPending.Terminal())
	assert.False(t, models.JobStatusRunning.Terminal())
	assert.True(t, models.JobStatusCompleted.Terminal())
	assert.True(t, models.JobStatusFailed.Terminal())
	assert.True(t, models.JobStatusCancelled.Terminal())
}
