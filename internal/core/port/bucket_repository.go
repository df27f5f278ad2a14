package port

import (
	"context"

	"cian-pipeline/internal/core/baseline"
	"cian-pipeline/internal/core/domain"
)

// BucketRepositoryPort — хранилище рыночных корзин. Корзины — производный
// кэш: пересчёт пишет только upsert; стирает их лишь явный ClearBuckets,
// когда политика retain-on-empty выключена.
type BucketRepositoryPort interface {
	// ApprovedPriceSamples возвращает по одному наблюдению цены за метр
	// (последняя ценовая точка) на каждое одобренное объявление с деталями.
	ApprovedPriceSamples(ctx context.Context) ([]domain.PriceSample, error)

	// UpsertBuckets перезаписывает значения перечисленных корзин.
	UpsertBuckets(ctx context.Context, buckets []domain.MarketBucket) error

	// ClearBuckets удаляет все корзины.
	ClearBuckets(ctx context.Context) error

	// GetBucket возвращает корзину по точному ключу или nil.
	GetBucket(ctx context.Context, key baseline.Key) (*domain.MarketBucket, error)
}
