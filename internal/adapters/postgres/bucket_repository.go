package postgres

import (
	"context"
	"errors"
	"fmt"

	"cian-pipeline/internal/core/baseline"
	"cian-pipeline/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BucketRepository реализует BucketRepositoryPort для PostgreSQL.
type BucketRepository struct {
	pool *pgxpool.Pool
}

// NewBucketRepository создает новый экземпляр репозитория.
func NewBucketRepository(pool *pgxpool.Pool) (*BucketRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("bucket repository: pgxpool.Pool cannot be nil")
	}
	return &BucketRepository{pool: pool}, nil
}

// ApprovedPriceSamples возвращает по одному наблюдению цены за метр
// (последняя ценовая точка) на каждое одобренное объявление с деталями.
// Точки без price_per_m2 пропускаются.
func (r *BucketRepository) ApprovedPriceSamples(ctx context.Context) ([]domain.PriceSample, error) {
	query := `
		SELECT d.metro_name, d.rooms_count, d.property_type, p.price_per_m2
		FROM listings l
		JOIN listing_details d ON d.listing_id = l.id
		JOIN LATERAL (
			SELECT price_per_m2 FROM price_points
			WHERE listing_id = l.id
			ORDER BY observed_at DESC, id DESC
			LIMIT 1
		) p ON TRUE
		WHERE l.staging_status = $1
		  AND p.price_per_m2 IS NOT NULL
		  AND p.price_per_m2 > 0`

	rows, err := r.pool.Query(ctx, query, domain.StagingStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to query approved price samples: %w", err)
	}
	defer rows.Close()

	var samples []domain.PriceSample
	for rows.Next() {
		var s domain.PriceSample
		if err := rows.Scan(&s.MetroName, &s.RoomsCount, &s.PropertyType, &s.PricePerM2); err != nil {
			return nil, fmt.Errorf("failed to scan price sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read price samples: %w", err)
	}
	return samples, nil
}

// UpsertBuckets перезаписывает значения перечисленных корзин. Корзины,
// не попавшие в пересчет, сохраняют прежние значения.
func (r *BucketRepository) UpsertBuckets(ctx context.Context, buckets []domain.MarketBucket) error {
	if len(buckets) == 0 {
		return nil
	}

	// Уникальность ключа (metro_name, rooms_count, property_type) с NULL
	// обеспечена COALESCE-индексом, поэтому upsert идет через него же.
	query := `
		INSERT INTO market_buckets (metro_name, rooms_count, property_type, median_price_m2, sample_count, calculated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ((COALESCE(metro_name, '')), (COALESCE(rooms_count, -1)), property_type) DO UPDATE SET
			median_price_m2 = EXCLUDED.median_price_m2,
			sample_count    = EXCLUDED.sample_count,
			calculated_at   = EXCLUDED.calculated_at`

	batch := &pgx.Batch{}
	for _, b := range buckets {
		batch.Queue(query, b.MetroName, b.RoomsCount, b.PropertyType, b.MedianPerM2, b.SampleCount, b.CalculatedAt)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range buckets {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert market buckets: %w", err)
		}
	}
	return nil
}

// ClearBuckets удаляет все корзины. Вызывается только при выключенной
// политике retain-on-empty.
func (r *BucketRepository) ClearBuckets(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, `DELETE FROM market_buckets`); err != nil {
		return fmt.Errorf("failed to clear market buckets: %w", err)
	}
	return nil
}

// GetBucket возвращает корзину по точному ключу или nil. NULL-компоненты
// ключа сравниваются через IS NOT DISTINCT FROM.
func (r *BucketRepository) GetBucket(ctx context.Context, key baseline.Key) (*domain.MarketBucket, error) {
	query := `
		SELECT metro_name, rooms_count, property_type, median_price_m2, sample_count, calculated_at
		FROM market_buckets
		WHERE metro_name  IS NOT DISTINCT FROM $1
		  AND rooms_count IS NOT DISTINCT FROM $2
		  AND property_type = $3`

	var b domain.MarketBucket
	err := r.pool.QueryRow(ctx, query, key.MetroName, key.RoomsCount, key.PropertyType).Scan(
		&b.MetroName, &b.RoomsCount, &b.PropertyType, &b.MedianPerM2, &b.SampleCount, &b.CalculatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market bucket: %w", err)
	}
	return &b, nil
}
