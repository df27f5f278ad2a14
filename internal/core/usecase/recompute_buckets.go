package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"cian-pipeline/internal/core/baseline"
	"cian-pipeline/internal/core/domain"
	"cian-pipeline/internal/core/port"
)

// RecomputeBucketsUseCase пересчитывает рыночные корзины из одобренных
// данных. Пересчёт идемпотентен. Пустая выборка по умолчанию сохраняет
// прежние значения; при выключенной политике retain-on-empty кэш очищается.
type RecomputeBucketsUseCase struct {
	buckets       port.BucketRepositoryPort
	retainOnEmpty bool
}

// NewRecomputeBucketsUseCase создает новый экземпляр use case.
func NewRecomputeBucketsUseCase(buckets port.BucketRepositoryPort, retainOnEmpty bool) *RecomputeBucketsUseCase {
	return &RecomputeBucketsUseCase{
		buckets:       buckets,
		retainOnEmpty: retainOnEmpty,
	}
}

// Execute собирает наблюдения цены за метр и пересчитывает медианы на трёх
// уровнях группировки: (метро, комнаты, тип), (комнаты, тип), (тип).
// Возвращает число обновлённых корзин.
func (uc *RecomputeBucketsUseCase) Execute(ctx context.Context) (int, error) {
	samples, err := uc.buckets.ApprovedPriceSamples(ctx)
	if err != nil {
		return 0, fmt.Errorf("use case: failed to load price samples: %w", err)
	}
	if len(samples) == 0 {
		if uc.retainOnEmpty {
			log.Println("BucketsUseCase: No approved price samples; prior bucket values retained.")
			return 0, domain.ErrBaselineUnavailable
		}
		if err := uc.buckets.ClearBuckets(ctx); err != nil {
			return 0, fmt.Errorf("use case: failed to clear market buckets: %w", err)
		}
		log.Println("BucketsUseCase: No approved price samples; bucket cache cleared (retain-on-empty disabled).")
		return 0, domain.ErrBaselineUnavailable
	}

	now := time.Now().UTC()
	updated := BucketsFromSamples(samples, now)

	if err := uc.buckets.UpsertBuckets(ctx, updated); err != nil {
		return 0, fmt.Errorf("use case: failed to upsert market buckets: %w", err)
	}

	log.Printf("BucketsUseCase: Recomputed %d market bucket(s) from %d sample(s)\n", len(updated), len(samples))
	return len(updated), nil
}

// BucketsFromSamples группирует наблюдения по трём уровням ключей и считает
// медиану каждой группы. Чистая функция, вынесена для тестируемости.
func BucketsFromSamples(samples []domain.PriceSample, now time.Time) []domain.MarketBucket {
	type group struct {
		key    baseline.Key
		values []float64
	}
	groups := make(map[string]*group)

	add := func(key baseline.Key, value float64) {
		id := bucketGroupID(key)
		g, ok := groups[id]
		if !ok {
			g = &group{key: key}
			groups[id] = g
		}
		g.values = append(g.values, value)
	}

	for _, s := range samples {
		if s.PricePerM2 <= 0 {
			continue
		}
		if s.MetroName != nil && s.RoomsCount != nil {
			add(baseline.Key{MetroName: s.MetroName, RoomsCount: s.RoomsCount, PropertyType: s.PropertyType}, s.PricePerM2)
		}
		if s.RoomsCount != nil {
			add(baseline.Key{RoomsCount: s.RoomsCount, PropertyType: s.PropertyType}, s.PricePerM2)
		}
		add(baseline.Key{PropertyType: s.PropertyType}, s.PricePerM2)
	}

	buckets := make([]domain.MarketBucket, 0, len(groups))
	for _, g := range groups {
		sort.Float64s(g.values)
		buckets = append(buckets, domain.MarketBucket{
			MetroName:    g.key.MetroName,
			RoomsCount:   g.key.RoomsCount,
			PropertyType: g.key.PropertyType,
			MedianPerM2:  baseline.Median(g.values),
			SampleCount:  len(g.values),
			CalculatedAt: now,
		})
	}

	// Детерминированный порядок записи.
	sort.Slice(buckets, func(i, j int) bool {
		return bucketGroupID(baseline.Key{MetroName: buckets[i].MetroName, RoomsCount: buckets[i].RoomsCount, PropertyType: buckets[i].PropertyType}) <
			bucketGroupID(baseline.Key{MetroName: buckets[j].MetroName, RoomsCount: buckets[j].RoomsCount, PropertyType: buckets[j].PropertyType})
	})
	return buckets
}

func bucketGroupID(key baseline.Key) string {
	metro := ""
	if key.MetroName != nil {
		metro = *key.MetroName
	}
	rooms := "-"
	if key.RoomsCount != nil {
		rooms = fmt.Sprintf("%d", *key.RoomsCount)
	}
	return metro + "|" + rooms + "|" + string(key.PropertyType)
}
