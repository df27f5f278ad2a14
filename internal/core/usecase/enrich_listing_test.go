package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"cian-pipeline/internal/core/domain"
)

func enrichLink() domain.ListingLink {
	return domain.ListingLink{CianID: 100, URL: "https://www.cian.ru/sale/flat/100/"}
}

func detailResult() *domain.DetailResult {
	return &domain.DetailResult{
		Details: domain.ListingDetails{
			Description:    sptr("Просторная двушка у метро, свежий ремонт, закрытый двор."),
			TotalArea:      fptr(54),
			LivingArea:     fptr(36),
			Floor:          iptr(5),
			FloorsCount:    iptr(12),
			RoomsCount:     iptr(2),
			MetroName:      sptr("Таганская"),
			MetroTime:      iptr(7),
			MetroTransport: domain.MetroTransportWalk,
			PropertyType:   domain.PropertyTypeFlat,
		},
		Price: &domain.PricePoint{Price: 12_000_000, PricePerM2: fptr(222_222), Currency: "RUB"},
		Views: &domain.ViewStat{ViewsTotal: 340, ViewsToday: 25},
	}
}

func retryFast() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
}

func TestEnrichSavesDetailsAndHistory(t *testing.T) {
	storage := newFakeStorage()
	lock := &fakeLock{}
	fetcher := &fakeFetcher{detailResult: detailResult()}

	uc := NewEnrichListingUseCase(fetcher, storage, lock, retryFast())
	if err := uc.Execute(context.Background(), enrichLink()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	listingID := storage.byCianID[100]
	details, _ := storage.GetDetails(context.Background(), listingID)
	if details == nil {
		t.Fatal("details were not saved")
	}
	if details.UpdatedAt.IsZero() {
		t.Error("details UpdatedAt was not set")
	}
	if len(storage.prices[listingID]) != 1 || len(storage.views[listingID]) != 1 {
		t.Error("price and view history were not appended")
	}
	if lock.acquired != 1 || lock.released != 1 {
		t.Errorf("lock acquired=%d released=%d, want 1/1", lock.acquired, lock.released)
	}
}

func TestEnrichIsIdempotent(t *testing.T) {
	storage := newFakeStorage()
	fetcher := &fakeFetcher{detailResult: detailResult()}

	uc := NewEnrichListingUseCase(fetcher, storage, &fakeLock{}, retryFast())
	if err := uc.Execute(context.Background(), enrichLink()); err != nil {
		t.Fatal(err)
	}
	if err := uc.Execute(context.Background(), enrichLink()); err != nil {
		t.Fatal(err)
	}

	if len(storage.listings) != 1 {
		t.Errorf("got %d listing rows after repeated enrichment, want 1", len(storage.listings))
	}
	listingID := storage.byCianID[100]
	// Детали перезаписаны, история дописана.
	if len(storage.prices[listingID]) != 2 || len(storage.views[listingID]) != 2 {
		t.Error("history must grow on repeated enrichment")
	}
}

func TestEnrichRetriesTransientFailures(t *testing.T) {
	storage := newFakeStorage()
	fetcher := &fakeFetcher{
		detailErrs: []error{
			fmt.Errorf("timeout: %w", domain.ErrDetailUnavailable),
			fmt.Errorf("503: %w", domain.ErrDetailUnavailable),
		},
		detailResult: detailResult(),
	}

	uc := NewEnrichListingUseCase(fetcher, storage, &fakeLock{}, retryFast())
	if err := uc.Execute(context.Background(), enrichLink()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if fetcher.detailCalls != 3 {
		t.Errorf("fetch calls = %d, want 3 (two failures then success)", fetcher.detailCalls)
	}
	listingID := storage.byCianID[100]
	if _, ok := storage.details[listingID]; !ok {
		t.Error("details were not saved after successful retry")
	}
}

func TestEnrichExhaustedRetriesRejects(t *testing.T) {
	storage := newFakeStorage()
	fetcher := &fakeFetcher{
		detailErrs: []error{
			fmt.Errorf("timeout: %w", domain.ErrDetailUnavailable),
			fmt.Errorf("timeout: %w", domain.ErrDetailUnavailable),
			fmt.Errorf("timeout: %w", domain.ErrDetailUnavailable),
		},
	}

	uc := NewEnrichListingUseCase(fetcher, storage, &fakeLock{}, retryFast())
	if err := uc.Execute(context.Background(), enrichLink()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	listingID := storage.byCianID[100]
	l := storage.listings[listingID]
	if l.Status != domain.StagingStatusRejected {
		t.Fatalf("status = %s, want rejected", l.Status)
	}
	if l.StatusNote == nil || *l.StatusNote != domain.RejectReasonFetchExhausted {
		t.Errorf("status note = %v, want %s", l.StatusNote, domain.RejectReasonFetchExhausted)
	}
}

func TestEnrichMalformedRejectsImmediately(t *testing.T) {
	storage := newFakeStorage()
	fetcher := &fakeFetcher{
		detailErrs: []error{fmt.Errorf("total area is zero: %w", domain.ErrDetailMalformed)},
	}

	uc := NewEnrichListingUseCase(fetcher, storage, &fakeLock{}, retryFast())
	if err := uc.Execute(context.Background(), enrichLink()); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if fetcher.detailCalls != 1 {
		t.Errorf("fetch calls = %d, want 1 (malformed data must not be retried)", fetcher.detailCalls)
	}
	listingID := storage.byCianID[100]
	l := storage.listings[listingID]
	if l.Status != domain.StagingStatusRejected || l.StatusNote == nil || *l.StatusNote != domain.RejectReasonMalformedDetail {
		t.Errorf("listing = (%s, %v), want rejected with %s", l.Status, l.StatusNote, domain.RejectReasonMalformedDetail)
	}
}

func TestEnrichFailureKeepsApprovedStatus(t *testing.T) {
	tests := []struct {
		name       string
		detailErrs []error
	}{
		{
			"fetch exhaustion",
			[]error{
				fmt.Errorf("timeout: %w", domain.ErrDetailUnavailable),
				fmt.Errorf("timeout: %w", domain.ErrDetailUnavailable),
				fmt.Errorf("timeout: %w", domain.ErrDetailUnavailable),
			},
		},
		{
			"malformed details",
			[]error{fmt.Errorf("total area is zero: %w", domain.ErrDetailMalformed)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage := newFakeStorage()

			// Одобренное объявление с устаревшими деталями снова попадает
			// в очередь обогащения.
			listing, _, err := storage.UpsertCandidate(context.Background(), enrichLink())
			if err != nil {
				t.Fatal(err)
			}
			if err := storage.SetStatus(context.Background(), listing.ID, domain.StagingStatusApproved, "passed all filters"); err != nil {
				t.Fatal(err)
			}

			fetcher := &fakeFetcher{detailErrs: tt.detailErrs}
			uc := NewEnrichListingUseCase(fetcher, storage, &fakeLock{}, retryFast())
			if err := uc.Execute(context.Background(), enrichLink()); err != nil {
				t.Fatalf("Execute() error = %v", err)
			}

			l := storage.listings[listing.ID]
			if l.Status != domain.StagingStatusApproved {
				t.Fatalf("status = %s, want approved to survive re-enrichment failure", l.Status)
			}
			if l.StatusNote == nil || *l.StatusNote != "passed all filters" {
				t.Errorf("status note = %v, want untouched", l.StatusNote)
			}
		})
	}
}

func TestEnrichLockedRecordReturnsSentinel(t *testing.T) {
	storage := newFakeStorage()
	fetcher := &fakeFetcher{detailResult: detailResult()}
	lock := &fakeLock{denyAll: true}

	uc := NewEnrichListingUseCase(fetcher, storage, lock, retryFast())
	err := uc.Execute(context.Background(), enrichLink())
	if !errors.Is(err, ErrRecordLocked) {
		t.Errorf("Execute() error = %v, want ErrRecordLocked", err)
	}
	if fetcher.detailCalls != 0 {
		t.Error("locked record must not be fetched")
	}
}
