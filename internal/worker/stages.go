package worker

import (
	"context"
	"time"

	"commerce-core/internal/models"
	"commerce-core/internal/supplier"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// runRaw paginates the supplier feed and stores unmodified records
// keyed by supplier id. The checkpoint holds the next page, so a
// re-claimed job resumes near where the last run stopped.
func (p *Pipeline) runRaw(ctx context.Context, job *models.Job) error {
	page := job.Checkpoint
	if page < 1 {
		page = 1
	}
	processed := job.Processed

	for {
		if cancelled, err := p.cancelled(ctx, job.ID); err != nil || cancelled {
			if err != nil {
				return err
			}
			return errCancelled
		}

		start := time.Now()
		total, items, err := p.feed.ListProducts(ctx, page, p.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		records := make([]models.RawProduct, 0, len(items))
		for _, item := range items {
			// Records without an id cannot be keyed. Skipping them must
			// not end the page walk: later pages may still be valid.
			if item.SupplierID == "" {
				p.logger.Warn("Skipping feed record without id",
					zap.Int64("job_id", job.ID),
					zap.Int("page", page))
				continue
			}
			records = append(records, models.RawProduct{
				SupplierID: item.SupplierID,
				Payload:    item.Payload,
			})
		}
		if len(records) > 0 {
			if err := p.store.UpsertRawProducts(ctx, records); err != nil {
				return err
			}
		}

		processed += len(items)
		page++
		if err := p.store.UpdateJobProgress(ctx, job.ID, processed, total, page); err != nil {
			return err
		}
		p.observeBatch(job.Type, start, len(items))

		if processed >= total {
			return nil
		}
	}
}

// runNormalize maps raw feed records into the canonical item/variant
// shape. Upserts by supplier id make re-runs produce the same catalog.
func (p *Pipeline) runNormalize(ctx context.Context, job *models.Job) error {
	total, err := p.store.CountRawProducts(ctx)
	if err != nil {
		return err
	}

	offset := job.Checkpoint
	processed := job.Processed

	for {
		if cancelled, err := p.cancelled(ctx, job.ID); err != nil || cancelled {
			if err != nil {
				return err
			}
			return errCancelled
		}

		start := time.Now()
		records, err := p.store.ListRawProducts(ctx, offset, p.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		for _, rec := range records {
			if err := p.normalizeRecord(ctx, rec); err != nil {
				return err
			}
		}

		processed += len(records)
		offset += len(records)
		if err := p.store.UpdateJobProgress(ctx, job.ID, processed, total, offset); err != nil {
			return err
		}
		p.observeBatch(job.Type, start, len(records))
	}
}

func (p *Pipeline) normalizeRecord(ctx context.Context, rec models.RawProduct) error {
	product, err := supplier.ParseFeedProduct(rec.Payload)
	if err != nil {
		// A malformed record is a feed defect, not a pipeline failure;
		// skip it and keep the batch moving.
		p.logger.Warn("Skipping malformed feed record",
			zap.String("supplier_id", rec.SupplierID),
			zap.Error(err))
		return nil
	}

	itemID, err := p.store.UpsertCatalogItem(ctx, &models.CatalogItem{
		SupplierID: product.ID,
		Name:       product.Name,
		ImageURL:   product.Image,
		Active:     product.Active,
	})
	if err != nil {
		return err
	}

	for _, v := range product.Variants {
		if err := p.store.UpsertCatalogVariant(ctx, &models.CatalogVariant{
			ItemID:            itemID,
			SupplierVariantID: v.ID,
			SKU:               v.SKU,
			BasePrice:         v.Price,
		}); err != nil {
			return err
		}
	}
	return nil
}

// runEnrich fetches per-item supplier detail for items missing
// enrichment (all items when force is set). Detail fetches within a
// batch run with bounded concurrency to respect supplier rate limits.
func (p *Pipeline) runEnrich(ctx context.Context, job *models.Job) error {
	afterID := int64(job.Checkpoint)
	processed := job.Processed

	for {
		if cancelled, err := p.cancelled(ctx, job.ID); err != nil || cancelled {
			if err != nil {
				return err
			}
			return errCancelled
		}

		start := time.Now()
		items, err := p.store.ListItemsForEnrichment(ctx, job.Params.Force, afterID, p.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.cfg.EnrichConcurrency)
		for i := range items {
			item := items[i]
			g.Go(func() error {
				detail, err := p.feed.GetProductDetail(gctx, item.SupplierID)
				if err != nil {
					return err
				}
				image := detail.Image
				if image == "" {
					image = item.ImageURL
				}
				return p.store.SetItemEnrichment(gctx, item.ID, detail.Description, image)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		processed += len(items)
		afterID = items[len(items)-1].ID
		if err := p.store.UpdateJobProgress(ctx, job.ID, processed, 0, int(afterID)); err != nil {
			return err
		}
		p.observeBatch(job.Type, start, len(items))
	}
}

// runSyncProduct publishes normalized+enriched items into the live
// catalog and writes the variant mapping rows checkout resolution
// depends on.
func (p *Pipeline) runSyncProduct(ctx context.Context, job *models.Job) error {
	afterID := int64(job.Checkpoint)
	processed := job.Processed

	for {
		if cancelled, err := p.cancelled(ctx, job.ID); err != nil || cancelled {
			if err != nil {
				return err
			}
			return errCancelled
		}

		start := time.Now()
		items, err := p.store.ListItemsForPublish(ctx, afterID, p.cfg.BatchSize,
			job.Params.ActiveOnly, job.Params.SkipExisting)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}

		for _, item := range items {
			if err := p.store.PublishItem(ctx, item.ID); err != nil {
				return err
			}

			variants, err := p.store.ListVariantsByItem(ctx, item.ID)
			if err != nil {
				return err
			}
			for _, v := range variants {
				if err := p.store.UpsertVariantMapping(ctx, &models.VariantMapping{
					VariantID:           v.ID,
					ExternalProductID:   item.SupplierID,
					ExternalVariationID: v.SupplierVariantID,
				}); err != nil {
					return err
				}
			}
		}

		processed += len(items)
		afterID = items[len(items)-1].ID
		if err := p.store.UpdateJobProgress(ctx, job.ID, processed, 0, int(afterID)); err != nil {
			return err
		}
		p.observeBatch(job.Type, start, len(items))
	}
}

// runSyncStock refreshes per-warehouse stock counts only. The cheapest
// and most frequent stage, intended for scheduled execution.
func (p *Pipeline) runSyncStock(ctx context.Context, job *models.Job) error {
	page := job.Checkpoint
	if page < 1 {
		page = 1
	}
	processed := job.Processed

	for {
		if cancelled, err := p.cancelled(ctx, job.ID); err != nil || cancelled {
			if err != nil {
				return err
			}
			return errCancelled
		}

		start := time.Now()
		total, records, err := p.feed.ListStocks(ctx, page, p.cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		for _, rec := range records {
			if err := p.store.UpsertVariantStock(ctx, rec.VariantID, rec.Warehouse, rec.Quantity); err != nil {
				return err
			}
		}

		processed += len(records)
		page++
		if err := p.store.UpdateJobProgress(ctx, job.ID, processed, total, page); err != nil {
			return err
		}
		p.observeBatch(job.Type, start, len(records))

		if processed >= total {
			return nil
		}
	}
}
