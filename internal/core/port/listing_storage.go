package port

import (
	"context"
	"time"

	"cian-pipeline/internal/core/domain"
)

// ListingStoragePort — контракт staging/production-хранилища объявлений.
type ListingStoragePort interface {
	// UpsertCandidate идемпотентно сохраняет кандидата по cian_id:
	// новая строка создаётся в статусе pending, существующая получает
	// свежий last_seen. Вторая строка для того же cian_id невозможна.
	UpsertCandidate(ctx context.Context, link domain.ListingLink) (listing domain.Listing, created bool, err error)

	// GetListing возвращает объявление по cian_id или nil, если его нет.
	GetListing(ctx context.Context, cianID int64) (*domain.Listing, error)

	// GetDetails возвращает детали или nil, если обогащение ещё не выполнялось.
	GetDetails(ctx context.Context, listingID int64) (*domain.ListingDetails, error)

	// SaveDetails перезаписывает детали (one-to-one с объявлением).
	SaveDetails(ctx context.Context, details domain.ListingDetails) error

	// AppendPricePoint и AppendViewStat добавляют строки истории.
	// Исторические строки никогда не изменяются.
	AppendPricePoint(ctx context.Context, point domain.PricePoint) error
	AppendViewStat(ctx context.Context, stat domain.ViewStat) error

	LatestPricePoint(ctx context.Context, listingID int64) (*domain.PricePoint, error)
	LatestViewStat(ctx context.Context, listingID int64) (*domain.ViewStat, error)

	// SetStatus переводит объявление в новый staging-статус с заметкой-причиной.
	SetStatus(ctx context.Context, listingID int64, status domain.StagingStatus, note string) error

	// AppendVerdicts дописывает вердикты фильтров в журнал.
	AppendVerdicts(ctx context.Context, verdicts []domain.FilterVerdict) error

	// PendingEnriched возвращает pending-объявления, уже прошедшие
	// обогащение, для прогона через фильтры.
	PendingEnriched(ctx context.Context, limit int) ([]domain.Listing, error)

	// ApprovedListings возвращает одобренные объявления для пересчёта оценок.
	ApprovedListings(ctx context.Context) ([]domain.Listing, error)

	// HasApprovedDuplicate отвечает, есть ли другое approved-объявление
	// с тем же кортежем (цена, общая площадь, этаж, метро) не старше окна.
	HasApprovedDuplicate(ctx context.Context, excludeListingID int64, price int64, totalArea *float64, floor *int, metroName *string, window time.Duration) (bool, error)

	// SaveScore сохраняет пересчитанную оценку (upsert по listing_id).
	SaveScore(ctx context.Context, score domain.Score) error

	// ProductionListings — витрина для потребителей и экспорта.
	ProductionListings(ctx context.Context, limit int) ([]domain.ProductionListing, error)
}
