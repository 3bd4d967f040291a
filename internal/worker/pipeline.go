// Package worker runs the catalog synchronization pipeline: a pool of
// workers that claim pending jobs and execute the corresponding ETL
// stage against the supplier feed.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"commerce-core/config"
	"commerce-core/internal/models"
	"commerce-core/internal/supplier"
	"commerce-core/internal/util"

	"go.uber.org/zap"
)

// PipelineStore is the persistence surface the pipeline needs
type PipelineStore interface {
	ClaimJob(ctx context.Context, types []models.JobType) (*models.Job, error)
	RequeueStaleJobs(ctx context.Context, staleAfter time.Duration) (int64, error)
	GetJobStatus(ctx context.Context, jobID int64) (models.JobStatus, error)
	UpdateJobProgress(ctx context.Context, jobID int64, processed, total, checkpoint int) error
	CompleteJob(ctx context.Context, jobID int64) error
	FailJob(ctx context.Context, jobID int64, errMsg string) error

	UpsertRawProducts(ctx context.Context, records []models.RawProduct) error
	CountRawProducts(ctx context.Context) (int, error)
	ListRawProducts(ctx context.Context, offset, limit int) ([]models.RawProduct, error)
	UpsertCatalogItem(ctx context.Context, item *models.CatalogItem) (int64, error)
	UpsertCatalogVariant(ctx context.Context, v *models.CatalogVariant) error
	ListItemsForEnrichment(ctx context.Context, force bool, afterID int64, limit int) ([]models.CatalogItem, error)
	SetItemEnrichment(ctx context.Context, itemID int64, description, imageURL string) error
	ListItemsForPublish(ctx context.Context, afterID int64, limit int, activeOnly, skipExisting bool) ([]models.CatalogItem, error)
	PublishItem(ctx context.Context, itemID int64) error
	ListVariantsByItem(ctx context.Context, itemID int64) ([]models.CatalogVariant, error)
	UpsertVariantMapping(ctx context.Context, m *models.VariantMapping) error
	UpsertVariantStock(ctx context.Context, supplierVariantID, warehouse string, quantity int) error
}

// SupplierFeed is the external product feed the pipeline reads from
type SupplierFeed interface {
	ListProducts(ctx context.Context, page, limit int) (int, []supplier.RawFeedItem, error)
	GetProductDetail(ctx context.Context, supplierID string) (*supplier.ProductDetail, error)
	ListStocks(ctx context.Context, page, limit int) (int, []supplier.StockRecord, error)
}

// errCancelled signals that the job was cancelled at a batch boundary.
// Not an error condition: the CANCELLED status is already recorded.
var errCancelled = errors.New("job cancelled")

// Pipeline is the worker pool driving the catalog ETL
type Pipeline struct {
	store  PipelineStore
	feed   SupplierFeed
	cfg    config.PipelineConfig
	logger *zap.Logger

	wg sync.WaitGroup
}

// NewPipeline creates a new pipeline worker pool
func NewPipeline(store PipelineStore, feed SupplierFeed, cfg config.PipelineConfig) *Pipeline {
	return &Pipeline{
		store:  store,
		feed:   feed,
		cfg:    cfg,
		logger: util.GetLogger(),
	}
}

// Start launches the worker pool. Workers poll for pending jobs until
// the context is cancelled. Jobs left RUNNING by a crashed process are
// requeued at startup and then periodically, keeping their checkpoint.
func (p *Pipeline) Start(ctx context.Context) {
	if p.cfg.StaleJobTimeout > 0 {
		p.requeueStale(ctx)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.reapLoop(ctx)
		}()
	}

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			p.runLoop(ctx, worker)
		}(i)
	}
	p.logger.Info("Pipeline workers started", zap.Int("workers", p.cfg.Workers))
}

// Wait blocks until all workers have stopped
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) runLoop(ctx context.Context, worker int) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job, err := p.store.ClaimJob(ctx, models.AllJobTypes)
			if err != nil {
				p.logger.Error("Failed to claim job", zap.Error(err))
				continue
			}
			if job == nil {
				continue
			}
			p.execute(ctx, worker, job)
		}
	}
}

func (p *Pipeline) reapLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.StaleJobTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.requeueStale(ctx)
		}
	}
}

// requeueStale makes jobs orphaned by a dead worker claimable again.
// Their checkpoint and processed counts survive, so the next run
// resumes instead of starting over.
func (p *Pipeline) requeueStale(ctx context.Context) {
	n, err := p.store.RequeueStaleJobs(ctx, p.cfg.StaleJobTimeout)
	if err != nil {
		p.logger.Error("Failed to requeue stale jobs", zap.Error(err))
		return
	}
	if n > 0 {
		p.logger.Warn("Requeued stale running jobs", zap.Int64("count", n))
	}
}

func (p *Pipeline) execute(ctx context.Context, worker int, job *models.Job) {
	p.logger.Info("Job claimed",
		zap.Int("worker", worker),
		zap.Int64("job_id", job.ID),
		zap.String("type", string(job.Type)))

	err := p.runStage(ctx, job)
	switch {
	case err == nil:
		if err := p.store.CompleteJob(ctx, job.ID); err != nil {
			p.logger.Error("Failed to mark job completed",
				zap.Int64("job_id", job.ID), zap.Error(err))
			return
		}
		util.JobsCompletedTotal.WithLabelValues(string(job.Type)).Inc()
		p.logger.Info("Job completed", zap.Int64("job_id", job.ID))

	case errors.Is(err, errCancelled):
		p.logger.Info("Job stopped on cancellation", zap.Int64("job_id", job.ID))

	default:
		// Partial progress already committed stays; catalog writes are
		// idempotent upserts so re-running a fresh job is safe.
		if failErr := p.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			p.logger.Error("Failed to mark job failed",
				zap.Int64("job_id", job.ID), zap.Error(failErr))
		}
		util.JobsFailedTotal.WithLabelValues(string(job.Type)).Inc()
		p.logger.Error("Job failed",
			zap.Int64("job_id", job.ID),
			zap.String("type", string(job.Type)),
			zap.Error(err))
	}
}

func (p *Pipeline) runStage(ctx context.Context, job *models.Job) error {
	switch job.Type {
	case models.JobTypeRaw:
		return p.runRaw(ctx, job)
	case models.JobTypeNormalize:
		return p.runNormalize(ctx, job)
	case models.JobTypeEnrich:
		return p.runEnrich(ctx, job)
	case models.JobTypeSyncProduct:
		return p.runSyncProduct(ctx, job)
	case models.JobTypeSyncStock:
		return p.runSyncStock(ctx, job)
	default:
		return errors.New("unknown job type " + string(job.Type))
	}
}

// cancelled reports whether the job was cancelled. Checked at every
// batch boundary; cancellation is cooperative, never preemptive.
func (p *Pipeline) cancelled(ctx context.Context, jobID int64) (bool, error) {
	status, err := p.store.GetJobStatus(ctx, jobID)
	if err != nil {
		return false, err
	}
	return status == models.JobStatusCancelled, nil
}

func (p *Pipeline) observeBatch(jobType models.JobType, start time.Time, items int) {
	util.PipelineBatchDuration.WithLabelValues(string(jobType)).Observe(time.Since(start).Seconds())
	util.PipelineItemsProcessed.WithLabelValues(string(jobType)).Add(float64(items))
}
