package baseline

import (
	"context"

	"cian-pipeline/internal/core/domain"
)

// Key — ключ рыночной корзины. Nil-поля означают, что группировка
// по этому измерению опущена.
type Key struct {
	MetroName    *string
	RoomsCount   *int
	PropertyType domain.PropertyType
}

// BucketLookup возвращает корзину по точному ключу или nil, если корзины нет.
type BucketLookup func(ctx context.Context, key Key) (*domain.MarketBucket, error)

// FallbackKeys строит явный упорядоченный список ключей от самого точного
// к самому грубому: (метро, комнаты, тип) -> (комнаты, тип) -> (тип).
// Порядок зафиксирован здесь, а не размазан по коду скоринга.
func FallbackKeys(details domain.ListingDetails) []Key {
	keys := make([]Key, 0, 3)
	if details.MetroName != nil && details.RoomsCount != nil {
		keys = append(keys, Key{
			MetroName:    details.MetroName,
			RoomsCount:   details.RoomsCount,
			PropertyType: details.PropertyType,
		})
	}
	if details.RoomsCount != nil {
		keys = append(keys, Key{
			RoomsCount:   details.RoomsCount,
			PropertyType: details.PropertyType,
		})
	}
	keys = append(keys, Key{PropertyType: details.PropertyType})
	return keys
}

// Resolve пробует ключи по порядку и возвращает первую найденную корзину
// с достаточной выборкой. Гарантирует, что любой поиск разрешается хоть
// в какую-то корзину, если данные вообще есть; иначе ErrBaselineUnavailable.
func Resolve(ctx context.Context, lookup BucketLookup, details domain.ListingDetails, minSamples int) (*domain.MarketBucket, error) {
	var coarsest *domain.MarketBucket
	for _, key := range FallbackKeys(details) {
		bucket, err := lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		if bucket == nil {
			continue
		}
		if bucket.SampleCount >= minSamples {
			return bucket, nil
		}
		coarsest = bucket
	}
	// Выборка мала на всех уровнях — лучше грубая корзина, чем никакой.
	if coarsest != nil {
		return coarsest, nil
	}
	return nil, domain.ErrBaselineUnavailable
}

// Median возвращает медиану значений (перцентиль 0.5 с линейной
// интерполяцией, как PERCENTILE_CONT в PostgreSQL). Вход должен быть
// отсортирован по возрастанию.
func Median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
