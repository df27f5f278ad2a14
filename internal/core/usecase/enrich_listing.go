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

// ErrRecordLocked — запись уже обогащается другим воркером.
// Обработчик очереди возвращает задачу на повтор.
var ErrRecordLocked = errors.New("record is locked by another worker")

// RetryPolicy — ограниченные повторы с экспоненциальной задержкой
// для временных сбоев извлечения деталей.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// EnrichListingUseCase извлекает детали одного объявления, пишет их
// в хранилище и пополняет историю цен и просмотров.
type EnrichListingUseCase struct {
	fetcher port.CianFetcherPort
	storage port.ListingStoragePort
	lock    port.RecordLockPort
	retry   RetryPolicy
}

// NewEnrichListingUseCase создает новый экземпляр use case.
func NewEnrichListingUseCase(
	fetcher port.CianFetcherPort,
	storage port.ListingStoragePort,
	lock port.RecordLockPort,
	retry RetryPolicy,
) *EnrichListingUseCase {
	return &EnrichListingUseCase{
		fetcher: fetcher,
		storage: storage,
		lock:    lock,
		retry:   retry,
	}
}

// Execute обрабатывает одну задачу обогащения. Повторное выполнение на уже
// обогащённом объявлении безопасно: детали перезаписываются, история только
// пополняется.
func (uc *EnrichListingUseCase) Execute(ctx context.Context, link domain.ListingLink) error {
	acquired, err := uc.lock.Acquire(ctx, link.CianID)
	if err != nil {
		return fmt.Errorf("failed to acquire record lock for cian_id %d: %w", link.CianID, err)
	}
	if !acquired {
		return fmt.Errorf("cian_id %d: %w", link.CianID, ErrRecordLocked)
	}
	defer func() {
		if err := uc.lock.Release(context.Background(), link.CianID); err != nil {
			log.Printf("EnrichUseCase: Failed to release lock for cian_id %d: %v\n", link.CianID, err)
		}
	}()

	// Задача могла прийти раньше, чем запись создал сборщик.
	listing, _, err := uc.storage.UpsertCandidate(ctx, link)
	if err != nil {
		return fmt.Errorf("failed to upsert listing for cian_id %d: %w", link.CianID, err)
	}

	result, err := uc.fetchWithRetry(ctx, link.URL)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDetailMalformed):
			return uc.rejectIfPending(ctx, listing, domain.RejectReasonMalformedDetail, err)
		case errors.Is(err, domain.ErrDetailUnavailable):
			log.Printf("EnrichUseCase: Detail fetch exhausted for cian_id %d after %d attempt(s).\n",
				link.CianID, uc.retry.MaxAttempts)
			return uc.rejectIfPending(ctx, listing, domain.RejectReasonFetchExhausted, err)
		default:
			return fmt.Errorf("failed to fetch details for cian_id %d: %w", link.CianID, err)
		}
	}

	details := result.Details
	details.ListingID = listing.ID
	details.UpdatedAt = time.Now().UTC()
	if err := uc.storage.SaveDetails(ctx, details); err != nil {
		return fmt.Errorf("failed to save details for cian_id %d: %w", link.CianID, err)
	}

	if result.Price != nil {
		point := *result.Price
		point.ListingID = listing.ID
		if point.ObservedAt.IsZero() {
			point.ObservedAt = time.Now().UTC()
		}
		if err := uc.storage.AppendPricePoint(ctx, point); err != nil {
			return fmt.Errorf("failed to append price point for cian_id %d: %w", link.CianID, err)
		}
	}
	if result.Views != nil {
		stat := *result.Views
		stat.ListingID = listing.ID
		if stat.ObservedAt.IsZero() {
			stat.ObservedAt = time.Now().UTC()
		}
		if err := uc.storage.AppendViewStat(ctx, stat); err != nil {
			return fmt.Errorf("failed to append view stat for cian_id %d: %w", link.CianID, err)
		}
	}

	log.Printf("EnrichUseCase: Successfully enriched cian_id %d\n", link.CianID)
	return nil
}

// rejectIfPending отклоняет объявление по результату обогащения. Отклонять
// можно только pending: повторное обогащение устаревших деталей не должно
// снимать уже одобренное объявление из-за сбоя или анти-бот заглушки.
func (uc *EnrichListingUseCase) rejectIfPending(ctx context.Context, listing domain.Listing, reason string, cause error) error {
	if listing.Status != domain.StagingStatusPending {
		log.Printf("EnrichUseCase: Re-enrichment of cian_id %d (status '%s') failed: %v. Keeping status.\n",
			listing.CianID, listing.Status, cause)
		return nil
	}
	log.Printf("EnrichUseCase: Rejecting cian_id %d (%s): %v\n", listing.CianID, reason, cause)
	return uc.storage.SetStatus(ctx, listing.ID, domain.StagingStatusRejected, reason)
}

// fetchWithRetry повторяет только временные сбои (ErrDetailUnavailable),
// удваивая задержку между попытками. Противоречивые данные не ретраятся.
func (uc *EnrichListingUseCase) fetchWithRetry(ctx context.Context, adURL string) (*domain.DetailResult, error) {
	attempts := uc.retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := uc.retry.BaseDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := uc.fetcher.FetchAdDetails(ctx, adURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !errors.Is(err, domain.ErrDetailUnavailable) {
			return nil, err
		}
		if attempt == attempts {
			break
		}

		log.Printf("EnrichUseCase: Detail fetch failed (attempt %d/%d) for %s: %v. Retrying in %v.\n",
			attempt, attempts, adURL, err, delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, lastErr
}
