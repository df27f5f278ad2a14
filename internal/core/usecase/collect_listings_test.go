package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"cian-pipeline/internal/core/domain"
)

func TestCollectCreatesCandidateAndEnqueues(t *testing.T) {
	storage := newFakeStorage()
	queue := &fakeQueue{}
	fetcher := &fakeFetcher{
		pages: map[int][]domain.ListingLink{
			1: {
				{CianID: 100, URL: "https://www.cian.ru/sale/flat/100/", Price: i64ptr(10_000_000)},
				{CianID: 0, URL: "https://www.cian.ru/sale/flat/0/"}, // невалидный кандидат
			},
		},
	}
	sources := &fakeSources{sources: []domain.Source{{ID: 1, Name: "test", URL: "https://www.cian.ru/cat.php", IsActive: true}}}

	uc := NewCollectListingsUseCase(fetcher, storage, sources, queue, 5, 24*time.Hour)
	stats, err := uc.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if stats.Created != 1 || stats.Skipped != 1 || stats.Enqueued != 1 {
		t.Errorf("stats = %+v, want 1 created, 1 skipped, 1 enqueued", stats)
	}

	listing, _ := storage.GetListing(context.Background(), 100)
	if listing == nil {
		t.Fatal("candidate row was not created")
	}
	if listing.Status != domain.StagingStatusPending {
		t.Errorf("new candidate status = %s, want pending", listing.Status)
	}
	if len(storage.prices[listing.ID]) != 1 || storage.prices[listing.ID][0].Price != 10_000_000 {
		t.Error("summary price was not appended to history")
	}
	if len(queue.tasks) != 1 || queue.tasks[0].CianID != 100 {
		t.Error("enrichment task was not enqueued")
	}
	if _, ok := sources.collected[1]; !ok {
		t.Error("source was not marked as collected")
	}
}

func TestCollectRecollectIsUpsertNotDuplicate(t *testing.T) {
	storage := newFakeStorage()
	queue := &fakeQueue{}
	link := domain.ListingLink{CianID: 100, URL: "https://www.cian.ru/sale/flat/100/", Price: i64ptr(10_000_000)}
	fetcher := &fakeFetcher{pages: map[int][]domain.ListingLink{1: {link}}}
	sources := &fakeSources{sources: []domain.Source{{ID: 1, Name: "test", IsActive: true}}}

	uc := NewCollectListingsUseCase(fetcher, storage, sources, queue, 5, 24*time.Hour)
	if _, err := uc.Execute(context.Background()); err != nil {
		t.Fatalf("first Execute() error = %v", err)
	}
	stats, err := uc.Execute(context.Background())
	if err != nil {
		t.Fatalf("second Execute() error = %v", err)
	}

	if stats.Created != 0 || stats.Refreshed != 1 {
		t.Errorf("stats = %+v, want 0 created, 1 refreshed on re-collection", stats)
	}
	if len(storage.listings) != 1 {
		t.Errorf("got %d listing rows, want 1 (upsert, not a second row)", len(storage.listings))
	}
	listingID := storage.byCianID[100]
	if len(storage.prices[listingID]) != 2 {
		t.Errorf("got %d price points after two cycles, want 2", len(storage.prices[listingID]))
	}
}

func TestCollectPriceChangeResetsRejectedToPending(t *testing.T) {
	storage := newFakeStorage()
	queue := &fakeQueue{}
	sources := &fakeSources{sources: []domain.Source{{ID: 1, Name: "test", IsActive: true}}}

	firstPrice := domain.ListingLink{CianID: 100, URL: "https://www.cian.ru/sale/flat/100/", Price: i64ptr(10_000_000)}
	fetcher := &fakeFetcher{pages: map[int][]domain.ListingLink{1: {firstPrice}}}
	uc := NewCollectListingsUseCase(fetcher, storage, sources, queue, 5, 24*time.Hour)
	if _, err := uc.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	listingID := storage.byCianID[100]
	if err := storage.SetStatus(context.Background(), listingID, domain.StagingStatusRejected, "price_above_max"); err != nil {
		t.Fatal(err)
	}

	// Повторный сбор с той же ценой статус не трогает.
	if _, err := uc.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if storage.listings[listingID].Status != domain.StagingStatusRejected {
		t.Fatal("unchanged price must not reset a rejected listing")
	}

	// Смена цены возвращает на переоценку.
	fetcher.pages[1] = []domain.ListingLink{{CianID: 100, URL: firstPrice.URL, Price: i64ptr(9_000_000)}}
	if _, err := uc.Execute(context.Background()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	l := storage.listings[listingID]
	if l.Status != domain.StagingStatusPending {
		t.Errorf("status after price change = %s, want pending", l.Status)
	}
	if l.StatusNote == nil || *l.StatusNote != "re-evaluation: price changed" {
		t.Errorf("status note = %v", l.StatusNote)
	}
}

func TestCollectSkipsFreshlyEnrichedListings(t *testing.T) {
	storage := newFakeStorage()
	queue := &fakeQueue{}
	link := domain.ListingLink{CianID: 100, URL: "https://www.cian.ru/sale/flat/100/"}
	fetcher := &fakeFetcher{pages: map[int][]domain.ListingLink{1: {link}}}
	sources := &fakeSources{sources: []domain.Source{{ID: 1, Name: "test", IsActive: true}}}

	uc := NewCollectListingsUseCase(fetcher, storage, sources, queue, 5, 24*time.Hour)
	if _, err := uc.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Обогащаем — детали свежие, второй цикл задачу не ставит.
	listingID := storage.byCianID[100]
	_ = storage.SaveDetails(context.Background(), domain.ListingDetails{ListingID: listingID, UpdatedAt: time.Now()})

	if _, err := uc.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(queue.tasks) != 1 {
		t.Errorf("got %d tasks, want 1 (fresh details must not be re-enqueued)", len(queue.tasks))
	}

	// Устаревшие детали ставятся в очередь снова.
	_ = storage.SaveDetails(context.Background(), domain.ListingDetails{ListingID: listingID, UpdatedAt: time.Now().Add(-48 * time.Hour)})
	if _, err := uc.Execute(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(queue.tasks) != 2 {
		t.Errorf("got %d tasks, want 2 (stale details must be re-enqueued)", len(queue.tasks))
	}
}

func TestCollectUnavailableSourceIsSkipped(t *testing.T) {
	storage := newFakeStorage()
	queue := &fakeQueue{}
	fetcher := &fakeFetcher{listingsErr: fmt.Errorf("cian answered 403: %w", domain.ErrSourceUnavailable)}
	sources := &fakeSources{sources: []domain.Source{{ID: 1, Name: "broken", IsActive: true}}}

	uc := NewCollectListingsUseCase(fetcher, storage, sources, queue, 5, 24*time.Hour)
	stats, err := uc.Execute(context.Background())
	if err != nil {
		t.Fatalf("unavailable source must not fail the cycle: %v", err)
	}
	if stats.Failed != 1 || stats.Sources != 0 {
		t.Errorf("stats = %+v, want 1 failed, 0 completed sources", stats)
	}
	if _, ok := sources.collected[1]; ok {
		t.Error("failed source must not be marked as collected")
	}
}
