package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cian-pipeline/internal/core/baseline"
	"cian-pipeline/internal/core/domain"
	"cian-pipeline/internal/core/port"
	"cian-pipeline/internal/core/scoring"
)

// RecomputeScoresUseCase полностью пересчитывает оценки одобренных
// объявлений из текущих данных. Функция скоринга чистая и дешёвая,
// поэтому инкрементальных обновлений нет.
type RecomputeScoresUseCase struct {
	storage    port.ListingStoragePort
	buckets    port.BucketRepositoryPort
	minSamples int
}

// NewRecomputeScoresUseCase создает новый экземпляр use case.
func NewRecomputeScoresUseCase(storage port.ListingStoragePort, buckets port.BucketRepositoryPort, minSamples int) *RecomputeScoresUseCase {
	return &RecomputeScoresUseCase{
		storage:    storage,
		buckets:    buckets,
		minSamples: minSamples,
	}
}

// Execute пересчитывает оценку каждого одобренного объявления.
// Ошибка на одном объявлении не прерывает остальные.
func (uc *RecomputeScoresUseCase) Execute(ctx context.Context) (int, error) {
	approved, err := uc.storage.ApprovedListings(ctx)
	if err != nil {
		return 0, fmt.Errorf("use case: failed to load approved listings: %w", err)
	}

	scored := 0
	for _, listing := range approved {
		if ctx.Err() != nil {
			return scored, ctx.Err()
		}
		if err := uc.scoreOne(ctx, listing); err != nil {
			log.Printf("ScoresUseCase: Failed to score listing %d: %v. Continuing.\n", listing.CianID, err)
			continue
		}
		scored++
	}

	if scored > 0 {
		log.Printf("ScoresUseCase: Recomputed scores for %d listing(s)\n", scored)
	}
	return scored, nil
}

func (uc *RecomputeScoresUseCase) scoreOne(ctx context.Context, listing domain.Listing) error {
	details, err := uc.storage.GetDetails(ctx, listing.ID)
	if err != nil {
		return err
	}
	if details == nil {
		return nil
	}

	latestPrice, err := uc.storage.LatestPricePoint(ctx, listing.ID)
	if err != nil {
		return err
	}
	latestViews, err := uc.storage.LatestViewStat(ctx, listing.ID)
	if err != nil {
		return err
	}

	bucket, err := baseline.Resolve(ctx, uc.buckets.GetBucket, *details, uc.minSamples)
	if err != nil && !errors.Is(err, domain.ErrBaselineUnavailable) {
		return err
	}

	score := scoring.Compute(listing.ID, *details, latestPrice, latestViews, bucket, time.Now().UTC())
	return uc.storage.SaveScore(ctx, score)
}
