package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cian-pipeline/internal/core/domain"
	"cian-pipeline/internal/core/port"
)

// CollectStats — статистика одного цикла сбора.
type CollectStats struct {
	Sources   int
	Pages     int
	Created   int
	Refreshed int
	Skipped   int
	Enqueued  int
	Failed    int
}

// CollectListingsUseCase обходит активные источники, собирает сводки
// кандидатов постранично и ставит задачи на извлечение деталей.
type CollectListingsUseCase struct {
	fetcher    port.CianFetcherPort
	storage    port.ListingStoragePort
	sources    port.SourceRepositoryPort
	queue      port.DetailQueuePort
	maxPages   int
	staleAfter time.Duration
}

// NewCollectListingsUseCase создает новый экземпляр use case.
func NewCollectListingsUseCase(
	fetcher port.CianFetcherPort,
	storage port.ListingStoragePort,
	sources port.SourceRepositoryPort,
	queue port.DetailQueuePort,
	maxPages int,
	staleAfter time.Duration,
) *CollectListingsUseCase {
	return &CollectListingsUseCase{
		fetcher:    fetcher,
		storage:    storage,
		sources:    sources,
		queue:      queue,
		maxPages:   maxPages,
		staleAfter: staleAfter,
	}
}

// Execute запускает сбор по всем активным источникам. Недоступность одного
// источника не прерывает обработку остальных.
func (uc *CollectListingsUseCase) Execute(ctx context.Context) (CollectStats, error) {
	stats := CollectStats{}

	activeSources, err := uc.sources.ListActive(ctx)
	if err != nil {
		return stats, fmt.Errorf("use case: failed to list active sources: %w", err)
	}
	log.Printf("CollectUseCase: Starting collection cycle for %d active source(s)\n", len(activeSources))

	for _, source := range activeSources {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if err := uc.collectSource(ctx, source, &stats); err != nil {
			if errors.Is(err, domain.ErrSourceUnavailable) {
				log.Printf("CollectUseCase: Source '%s' unavailable this cycle: %v. Skipping.\n", source.Name, err)
				stats.Failed++
				continue
			}
			return stats, err
		}
		stats.Sources++

		if err := uc.sources.MarkCollected(ctx, source.ID, time.Now().UTC()); err != nil {
			log.Printf("CollectUseCase: Failed to mark source '%s' as collected: %v\n", source.Name, err)
		}
	}

	log.Printf("CollectUseCase: Cycle finished. Sources: %d, pages: %d, created: %d, refreshed: %d, skipped: %d, enqueued: %d\n",
		stats.Sources, stats.Pages, stats.Created, stats.Refreshed, stats.Skipped, stats.Enqueued)
	return stats, nil
}

func (uc *CollectListingsUseCase) collectSource(ctx context.Context, source domain.Source, stats *CollectStats) error {
	for page := 1; page <= uc.maxPages; page++ {
		links, hasMore, err := uc.fetcher.FetchListings(ctx, source, page)
		if err != nil {
			return fmt.Errorf("use case: fetching page %d of source '%s': %w", page, source.Name, err)
		}
		stats.Pages++

		for _, link := range links {
			link.SourceID = source.ID
			if !link.Valid() {
				// Недостаточно полей для строки Listing — пропускаем, считаем.
				stats.Skipped++
				continue
			}
			if err := uc.ingestCandidate(ctx, link, stats); err != nil {
				log.Printf("CollectUseCase: Failed to ingest candidate %d: %v. Skipping this candidate.\n", link.CianID, err)
				stats.Skipped++
				continue
			}
		}

		if !hasMore {
			break
		}
	}
	return nil
}

// ingestCandidate выполняет идемпотентный upsert кандидата, дописывает
// ценовую точку из сводки и при необходимости ставит задачу на обогащение.
func (uc *CollectListingsUseCase) ingestCandidate(ctx context.Context, link domain.ListingLink, stats *CollectStats) error {
	previousPrice, err := uc.previousPrice(ctx, link.CianID)
	if err != nil {
		return err
	}

	listing, created, err := uc.storage.UpsertCandidate(ctx, link)
	if err != nil {
		return err
	}
	if created {
		stats.Created++
	} else {
		stats.Refreshed++
	}

	if link.Price != nil {
		point := domain.PricePoint{
			ListingID:  listing.ID,
			Price:      *link.Price,
			Currency:   "RUB",
			ObservedAt: time.Now().UTC(),
		}
		if err := uc.storage.AppendPricePoint(ctx, point); err != nil {
			return err
		}

		// Существенное изменение атрибутов отклонённого объявления
		// возвращает его на новую оценку.
		if listing.Status == domain.StagingStatusRejected && previousPrice != nil && previousPrice.Price != *link.Price {
			if err := uc.storage.SetStatus(ctx, listing.ID, domain.StagingStatusPending, "re-evaluation: price changed"); err != nil {
				return err
			}
			log.Printf("CollectUseCase: Listing %d price changed (%d -> %d), reset to pending for re-evaluation\n",
				link.CianID, previousPrice.Price, *link.Price)
		}
	}

	enqueue, err := uc.needsEnrichment(ctx, listing)
	if err != nil {
		return err
	}
	if enqueue {
		if err := uc.queue.Enqueue(ctx, link); err != nil {
			return fmt.Errorf("failed to enqueue detail task for cian_id %d: %w", link.CianID, err)
		}
		stats.Enqueued++
	}
	return nil
}

func (uc *CollectListingsUseCase) previousPrice(ctx context.Context, cianID int64) (*domain.PricePoint, error) {
	existing, err := uc.storage.GetListing(ctx, cianID)
	if err != nil || existing == nil {
		return nil, err
	}
	return uc.storage.LatestPricePoint(ctx, existing.ID)
}

func (uc *CollectListingsUseCase) needsEnrichment(ctx context.Context, listing domain.Listing) (bool, error) {
	details, err := uc.storage.GetDetails(ctx, listing.ID)
	if err != nil {
		return false, err
	}
	if details == nil {
		return true, nil
	}
	return time.Since(details.UpdatedAt) > uc.staleAfter, nil
}
