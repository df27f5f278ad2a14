package usecase

import (
	"context"
	"testing"
	"time"

	"cian-pipeline/internal/core/domain"
)

func TestRecomputeScoresForApprovedListings(t *testing.T) {
	storage := newFakeStorage()
	buckets := &fakeBuckets{
		byKey: map[string]domain.MarketBucket{
			"|-|flat": {PropertyType: domain.PropertyTypeFlat, MedianPerM2: 250_000, SampleCount: 20},
		},
	}

	approvedID := seedEnriched(t, storage, 100, nil)
	if err := storage.SetStatus(context.Background(), approvedID, domain.StagingStatusApproved, "passed all filters"); err != nil {
		t.Fatal(err)
	}
	if err := storage.AppendViewStat(context.Background(), domain.ViewStat{ListingID: approvedID, ViewsTotal: 300, ViewsToday: 40, ObservedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	// Pending-объявление в пересчёт не попадает.
	seedEnriched(t, storage, 200, nil)

	uc := NewRecomputeScoresUseCase(storage, buckets, 5)
	scored, err := uc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if scored != 1 {
		t.Fatalf("scored %d listings, want 1", scored)
	}

	score, ok := storage.scores[approvedID]
	if !ok {
		t.Fatal("score was not saved")
	}
	// 222222 за метр против медианы 250000: скидка 11.1% -> 32 очка.
	if score.PriceScore != 32 {
		t.Errorf("PriceScore = %d, want 32", score.PriceScore)
	}
	// 40 просмотров за день -> 20 очков интереса.
	if score.InterestScore != 20 {
		t.Errorf("InterestScore = %d, want 20", score.InterestScore)
	}
	if score.TotalScore != score.QualityScore+score.InterestScore {
		t.Error("TotalScore is not the sum of quality and interest")
	}
}

func TestRecomputeScoresPriceDropRaisesPriceScore(t *testing.T) {
	storage := newFakeStorage()
	buckets := &fakeBuckets{
		byKey: map[string]domain.MarketBucket{
			"|-|flat": {PropertyType: domain.PropertyTypeFlat, MedianPerM2: 250_000, SampleCount: 20},
		},
	}

	id := seedEnriched(t, storage, 100, nil)
	if err := storage.SetStatus(context.Background(), id, domain.StagingStatusApproved, "passed all filters"); err != nil {
		t.Fatal(err)
	}

	uc := NewRecomputeScoresUseCase(storage, buckets, 5)
	if _, err := uc.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	before := storage.scores[id].PriceScore

	// Цена упала: новая последняя точка с большей скидкой к медиане.
	if err := storage.AppendPricePoint(context.Background(), domain.PricePoint{
		ListingID: id, Price: 9_000_000, PricePerM2: fptr(166_666), Currency: "RUB", ObservedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := uc.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	after := storage.scores[id].PriceScore

	if after <= before {
		t.Errorf("PriceScore after drop = %d, want greater than %d", after, before)
	}
}

func TestRecomputeScoresWithoutBaseline(t *testing.T) {
	storage := newFakeStorage()
	id := seedEnriched(t, storage, 100, nil)
	if err := storage.SetStatus(context.Background(), id, domain.StagingStatusApproved, "passed all filters"); err != nil {
		t.Fatal(err)
	}

	uc := NewRecomputeScoresUseCase(storage, &fakeBuckets{}, 5)
	scored, err := uc.Execute(context.Background())
	if err != nil {
		t.Fatalf("missing baseline must be non-fatal: %v", err)
	}
	if scored != 1 {
		t.Fatalf("scored %d, want 1", scored)
	}

	score := storage.scores[id]
	if score.PriceScore != 0 || score.DiscountPct != nil {
		t.Error("price score must be zero without a market baseline")
	}
	if score.MetroScore == 0 {
		t.Error("other sub-scores must still be computed without a baseline")
	}
}

func TestExportProduction(t *testing.T) {
	storage := newFakeStorage()
	export := &fakeExport{}

	id := seedEnriched(t, storage, 100, nil)
	if err := storage.SetStatus(context.Background(), id, domain.StagingStatusApproved, "passed all filters"); err != nil {
		t.Fatal(err)
	}
	seedEnriched(t, storage, 200, nil) // pending, в витрину не попадает

	uc := NewExportProductionUseCase(storage, export, 100)
	exported, err := uc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if exported != 1 || len(export.exports) != 1 || len(export.exports[0]) != 1 {
		t.Fatalf("exported %d listing(s), want exactly the approved one", exported)
	}
	if export.exports[0][0].Listing.CianID != 100 {
		t.Error("wrong listing exported")
	}

	// Пустая витрина не дёргает экспортёр.
	empty := NewExportProductionUseCase(newFakeStorage(), export, 100)
	if n, err := empty.Execute(context.Background()); err != nil || n != 0 {
		t.Errorf("empty export = (%d, %v), want (0, nil)", n, err)
	}
	if len(export.exports) != 1 {
		t.Error("empty production set must not trigger an export")
	}
}
