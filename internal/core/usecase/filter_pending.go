package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"cian-pipeline/internal/core/baseline"
	"cian-pipeline/internal/core/domain"
	"cian-pipeline/internal/core/filter"
	"cian-pipeline/internal/core/port"
)

// FilterStats — статистика одного прогона фильтрации.
type FilterStats struct {
	Processed int
	Approved  int
	Rejected  int
	Errors    int
}

// FilterPendingUseCase прогоняет обогащённые pending-объявления через
// цепочку фильтров и переводит их в approved/rejected.
type FilterPendingUseCase struct {
	storage    port.ListingStoragePort
	banned     port.BannedMetroPort
	buckets    port.BucketRepositoryPort
	chain      *filter.Chain
	minSamples int
}

// NewFilterPendingUseCase создает новый экземпляр use case.
func NewFilterPendingUseCase(
	storage port.ListingStoragePort,
	banned port.BannedMetroPort,
	buckets port.BucketRepositoryPort,
	chain *filter.Chain,
	minSamples int,
) *FilterPendingUseCase {
	return &FilterPendingUseCase{
		storage:    storage,
		banned:     banned,
		buckets:    buckets,
		chain:      chain,
		minSamples: minSamples,
	}
}

// SwitchProfile заменяет цепочку фильтров. Уже решённые объявления
// не трогаются: новый профиль влияет только на будущие прогоны.
func (uc *FilterPendingUseCase) SwitchProfile(chain *filter.Chain) {
	uc.chain = chain
	log.Printf("FilterUseCase: Switched to filter profile '%s'\n", chain.ProfileName())
}

// Execute обрабатывает до limit объявлений. Ошибка на одном объявлении
// не прерывает обработку остальных.
func (uc *FilterPendingUseCase) Execute(ctx context.Context, limit int) (FilterStats, error) {
	stats := FilterStats{}

	pending, err := uc.storage.PendingEnriched(ctx, limit)
	if err != nil {
		return stats, fmt.Errorf("use case: failed to load pending listings: %w", err)
	}
	if len(pending) == 0 {
		return stats, nil
	}

	bannedNames, err := uc.banned.ListNames(ctx)
	if err != nil {
		return stats, fmt.Errorf("use case: failed to load banned metro list: %w", err)
	}
	bannedSet := make(map[string]struct{}, len(bannedNames))
	for _, name := range bannedNames {
		bannedSet[strings.ToLower(strings.TrimSpace(name))] = struct{}{}
	}

	log.Printf("FilterUseCase: Processing %d pending listing(s) with profile '%s'\n", len(pending), uc.chain.ProfileName())

	for _, listing := range pending {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		if err := uc.processOne(ctx, listing, bannedSet, &stats); err != nil {
			log.Printf("FilterUseCase: Error processing listing %d: %v. Continuing with others.\n", listing.CianID, err)
			stats.Errors++
			continue
		}
		stats.Processed++
	}

	log.Printf("FilterUseCase: Done. Processed: %d, approved: %d, rejected: %d, errors: %d\n",
		stats.Processed, stats.Approved, stats.Rejected, stats.Errors)
	return stats, nil
}

func (uc *FilterPendingUseCase) processOne(ctx context.Context, listing domain.Listing, banned map[string]struct{}, stats *FilterStats) error {
	details, err := uc.storage.GetDetails(ctx, listing.ID)
	if err != nil {
		return err
	}
	if details == nil {
		// Ещё не обогащено — не трогаем.
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

	in := filter.Input{
		Listing:      listing,
		Details:      *details,
		LatestPrice:  latestPrice,
		LatestViews:  latestViews,
		Bucket:       bucket,
		BannedMetros: banned,
		HasDuplicate: uc.duplicateProbe,
	}

	outcome, err := uc.chain.Run(ctx, in)
	if err != nil {
		return err
	}

	verdicts := make([]domain.FilterVerdict, 0, len(outcome.Executed))
	for _, executed := range outcome.Executed {
		verdicts = append(verdicts, domain.FilterVerdict{
			ListingID:  listing.ID,
			FilterName: executed.FilterName,
			Passed:     executed.Verdict.Passed,
			Reason:     executed.Verdict.Reason(),
			CheckedAt:  executed.CheckedAt,
		})
	}
	if err := uc.storage.AppendVerdicts(ctx, verdicts); err != nil {
		return err
	}

	if outcome.Approved {
		note := "passed all filters"
		if outcome.FastTracked {
			note = "fast-track: high daily views"
		}
		if err := uc.storage.SetStatus(ctx, listing.ID, domain.StagingStatusApproved, note); err != nil {
			return err
		}
		stats.Approved++
	} else {
		if err := uc.storage.SetStatus(ctx, listing.ID, domain.StagingStatusRejected, outcome.PrimaryReason); err != nil {
			return err
		}
		stats.Rejected++
	}
	return nil
}

func (uc *FilterPendingUseCase) duplicateProbe(ctx context.Context, in filter.Input, window time.Duration) (bool, error) {
	if in.LatestPrice == nil {
		return false, nil
	}
	return uc.storage.HasApprovedDuplicate(ctx,
		in.Listing.ID,
		in.LatestPrice.Price,
		in.Details.TotalArea,
		in.Details.Floor,
		in.Details.MetroName,
		window,
	)
}
