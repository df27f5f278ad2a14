package port

import (
	"context"

	"cian-pipeline/internal/core/domain"
)

// CianFetcherPort объединяет все операции с источником данных Циан.
type CianFetcherPort interface {
	// FetchListings возвращает сводки кандидатов с одной страницы выдачи
	// источника и признак наличия следующей страницы. Сетевые и парсинговые
	// сбои оборачиваются в domain.ErrSourceUnavailable.
	FetchListings(ctx context.Context, source domain.Source, page int) (links []domain.ListingLink, hasMore bool, err error)

	// FetchAdDetails извлекает полный набор атрибутов со страницы объявления.
	// Временные сбои — domain.ErrDetailUnavailable, внутренне противоречивые
	// данные — domain.ErrDetailMalformed.
	FetchAdDetails(ctx context.Context, adURL string) (*domain.DetailResult, error)
}
