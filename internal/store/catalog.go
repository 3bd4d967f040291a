package store

import (
	"context"
	"database/sql"

	"commerce-core/internal/apperr"
	"commerce-core/internal/models"
)

// UpsertRawProducts stores one page of unmodified feed records, keyed by
// supplier id. Re-running the same page is a no-op apart from updated_at.
func (s *Store) UpsertRawProducts(ctx context.Context, records []models.RawProduct) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO raw_products (supplier_id, payload)
		VALUES ($1, $2)
		ON CONFLICT (supplier_id) DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`

	for _, rec := range records {
		if _, err := tx.ExecContext(ctx, query, rec.SupplierID, []byte(rec.Payload)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// CountRawProducts returns the number of stored raw feed records
func (s *Store) CountRawProducts(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM raw_products")
	return count, err
}

// ListRawProducts pages through raw records in stable supplier id order
func (s *Store) ListRawProducts(ctx context.Context, offset, limit int) ([]models.RawProduct, error) {
	var records []models.RawProduct
	err := s.db.SelectContext(ctx, &records,
		"SELECT * FROM raw_products ORDER BY supplier_id OFFSET $1 LIMIT $2", offset, limit)
	return records, err
}

// UpsertCatalogItem inserts or refreshes a normalized item by supplier
// id, returning the local id. Enrichment fields are left alone so a
// NORMALIZE re-run does not undo an earlier ENRICH.
func (s *Store) UpsertCatalogItem(ctx context.Context, item *models.CatalogItem) (int64, error) {
	query := `
		INSERT INTO catalog_items (supplier_id, name, image_url, active)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (supplier_id) DO UPDATE
			SET name = EXCLUDED.name, image_url = EXCLUDED.image_url,
			    active = EXCLUDED.active, updated_at = NOW()
		RETURNING id`

	var id int64
	err := s.db.GetContext(ctx, &id, query, item.SupplierID, item.Name, item.ImageURL, item.Active)
	return id, err
}

// UpsertCatalogVariant inserts or refreshes a variant by supplier
// variant id
func (s *Store) UpsertCatalogVariant(ctx context.Context, v *models.CatalogVariant) error {
	query := `
		INSERT INTO catalog_variants (item_id, supplier_variant_id, sku, base_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (supplier_variant_id) DO UPDATE
			SET item_id = EXCLUDED.item_id, sku = EXCLUDED.sku,
			    base_price = EXCLUDED.base_price, updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query, v.ItemID, v.SupplierVariantID, v.SKU, v.BasePrice)
	return err
}

// GetItemByID retrieves a catalog item
func (s *Store) GetItemByID(ctx context.Context, id int64) (*models.CatalogItem, error) {
	var item models.CatalogItem
	err := s.db.GetContext(ctx, &item, "SELECT * FROM catalog_items WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("catalog item does not exist").WithItem(id)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// GetVariantByID retrieves a catalog variant
func (s *Store) GetVariantByID(ctx context.Context, id int64) (*models.CatalogVariant, error) {
	var v models.CatalogVariant
	err := s.db.GetContext(ctx, &v, "SELECT * FROM catalog_variants WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("variant does not exist")
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVariantsByItem retrieves all variants of an item
func (s *Store) ListVariantsByItem(ctx context.Context, itemID int64) ([]models.CatalogVariant, error) {
	var variants []models.CatalogVariant
	err := s.db.SelectContext(ctx, &variants,
		"SELECT * FROM catalog_variants WHERE item_id = $1 ORDER BY id", itemID)
	return variants, err
}

// ListItemsForEnrichment pages through items missing enrichment, or all
// items when force is set. afterID keeps the scan resumable.
func (s *Store) ListItemsForEnrichment(ctx context.Context, force bool, afterID int64, limit int) ([]models.CatalogItem, error) {
	query := "SELECT * FROM catalog_items WHERE id > $1"
	if !force {
		query += " AND enriched = FALSE"
	}
	query += " ORDER BY id LIMIT $2"

	var items []models.CatalogItem
	err := s.db.SelectContext(ctx, &items, query, afterID, limit)
	return items, err
}

// SetItemEnrichment stores fetched detail and marks the item enriched
func (s *Store) SetItemEnrichment(ctx context.Context, itemID int64, description, imageURL string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE catalog_items SET description = $1, image_url = $2, enriched = TRUE, updated_at = NOW()
		 WHERE id = $3`,
		description, imageURL, itemID)
	return err
}

// ListItemsForPublish pages through enriched items awaiting publication
func (s *Store) ListItemsForPublish(ctx context.Context, afterID int64, limit int, activeOnly, skipExisting bool) ([]models.CatalogItem, error) {
	query := "SELECT * FROM catalog_items WHERE id > $1 AND enriched = TRUE"
	if activeOnly {
		query += " AND active = TRUE"
	}
	if skipExisting {
		query += " AND published = FALSE"
	}
	query += " ORDER BY id LIMIT $2"

	var items []models.CatalogItem
	err := s.db.SelectContext(ctx, &items, query, afterID, limit)
	return items, err
}

// PublishItem makes an item visible to storefront reads
func (s *Store) PublishItem(ctx context.Context, itemID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE catalog_items SET published = TRUE, updated_at = NOW() WHERE id = $1", itemID)
	return err
}

// UpsertVariantMapping records the external provider identifiers for a
// variant. Written at SYNC_PRODUCT time.
func (s *Store) UpsertVariantMapping(ctx context.Context, m *models.VariantMapping) error {
	query := `
		INSERT INTO variant_mappings (variant_id, external_product_id, external_variation_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (variant_id) DO UPDATE
			SET external_product_id = EXCLUDED.external_product_id,
			    external_variation_id = EXCLUDED.external_variation_id`

	_, err := s.db.ExecContext(ctx, query, m.VariantID, m.ExternalProductID, m.ExternalVariationID)
	return err
}

// GetVariantMapping returns the mapping for a variant, or nil if none exists
func (s *Store) GetVariantMapping(ctx context.Context, variantID int64) (*models.VariantMapping, error) {
	var m models.VariantMapping
	err := s.db.GetContext(ctx, &m, "SELECT * FROM variant_mappings WHERE variant_id = $1", variantID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertVariantStock refreshes the per-warehouse stock count for a
// variant identified by its supplier variant id. Unknown variants are
// skipped silently; the stock feed can reference products the catalog
// has not normalized yet.
func (s *Store) UpsertVariantStock(ctx context.Context, supplierVariantID, warehouse string, quantity int) error {
	query := `
		INSERT INTO variant_stocks (variant_id, warehouse, quantity)
		SELECT id, $2, $3 FROM catalog_variants WHERE supplier_variant_id = $1
		ON CONFLICT (variant_id, warehouse) DO UPDATE
			SET quantity = EXCLUDED.quantity, updated_at = NOW()`

	_, err := s.db.ExecContext(ctx, query, supplierVariantID, warehouse, quantity)
	return err
}

// IncrementItemOrderCount bumps the popularity counter for an item
func (s *Store) IncrementItemOrderCount(ctx context.Context, itemID int64, delta int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE catalog_items SET order_count = order_count + $1, updated_at = NOW() WHERE id = $2",
		delta, itemID)
	return err
}
