package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cian-pipeline/internal/core/baseline"
	"cian-pipeline/internal/core/domain"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }
func sptr(v string) *string   { return &v }
func i64ptr(v int64) *int64   { return &v }

// fakeStorage — хранилище в памяти для тестов use case.
type fakeStorage struct {
	mu       sync.Mutex
	nextID   int64
	listings map[int64]*domain.Listing // по внутреннему id
	byCianID map[int64]int64
	details  map[int64]*domain.ListingDetails
	prices   map[int64][]domain.PricePoint
	views    map[int64][]domain.ViewStat
	verdicts map[int64][]domain.FilterVerdict
	scores   map[int64]domain.Score

	duplicateAnswer bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		nextID:   1,
		listings: make(map[int64]*domain.Listing),
		byCianID: make(map[int64]int64),
		details:  make(map[int64]*domain.ListingDetails),
		prices:   make(map[int64][]domain.PricePoint),
		views:    make(map[int64][]domain.ViewStat),
		verdicts: make(map[int64][]domain.FilterVerdict),
		scores:   make(map[int64]domain.Score),
	}
}

func (s *fakeStorage) UpsertCandidate(_ context.Context, link domain.ListingLink) (domain.Listing, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byCianID[link.CianID]; ok {
		l := s.listings[id]
		l.LastSeenAt = time.Now()
		l.IsActive = true
		return *l, false, nil
	}
	id := s.nextID
	s.nextID++
	l := &domain.Listing{
		ID:          id,
		CianID:      link.CianID,
		URL:         link.URL,
		IsActive:    true,
		Status:      domain.StagingStatusPending,
		FirstSeenAt: time.Now(),
		LastSeenAt:  time.Now(),
	}
	if link.SourceID != 0 {
		l.SourceID = i64ptr(link.SourceID)
	}
	s.listings[id] = l
	s.byCianID[link.CianID] = id
	return *l, true, nil
}

func (s *fakeStorage) GetListing(_ context.Context, cianID int64) (*domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byCianID[cianID]
	if !ok {
		return nil, nil
	}
	l := *s.listings[id]
	return &l, nil
}

func (s *fakeStorage) GetDetails(_ context.Context, listingID int64) (*domain.ListingDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.details[listingID]
	if !ok {
		return nil, nil
	}
	copied := *d
	return &copied, nil
}

func (s *fakeStorage) SaveDetails(_ context.Context, d domain.ListingDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details[d.ListingID] = &d
	return nil
}

func (s *fakeStorage) AppendPricePoint(_ context.Context, p domain.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[p.ListingID] = append(s.prices[p.ListingID], p)
	return nil
}

func (s *fakeStorage) AppendViewStat(_ context.Context, v domain.ViewStat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[v.ListingID] = append(s.views[v.ListingID], v)
	return nil
}

func (s *fakeStorage) LatestPricePoint(_ context.Context, listingID int64) (*domain.PricePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	points := s.prices[listingID]
	if len(points) == 0 {
		return nil, nil
	}
	p := points[len(points)-1]
	return &p, nil
}

func (s *fakeStorage) LatestViewStat(_ context.Context, listingID int64) (*domain.ViewStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.views[listingID]
	if len(stats) == 0 {
		return nil, nil
	}
	v := stats[len(stats)-1]
	return &v, nil
}

func (s *fakeStorage) SetStatus(_ context.Context, listingID int64, status domain.StagingStatus, note string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.listings[listingID]
	if !ok {
		return fmt.Errorf("listing %d not found", listingID)
	}
	l.Status = status
	l.StatusNote = &note
	return nil
}

func (s *fakeStorage) AppendVerdicts(_ context.Context, verdicts []domain.FilterVerdict) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range verdicts {
		s.verdicts[v.ListingID] = append(s.verdicts[v.ListingID], v)
	}
	return nil
}

func (s *fakeStorage) PendingEnriched(_ context.Context, limit int) ([]domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Listing
	for id := int64(1); id < s.nextID && len(result) < limit; id++ {
		l, ok := s.listings[id]
		if !ok || l.Status != domain.StagingStatusPending || !l.IsActive {
			continue
		}
		if _, enriched := s.details[id]; !enriched {
			continue
		}
		result = append(result, *l)
	}
	return result, nil
}

func (s *fakeStorage) ApprovedListings(_ context.Context) ([]domain.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Listing
	for id := int64(1); id < s.nextID; id++ {
		if l, ok := s.listings[id]; ok && l.Status == domain.StagingStatusApproved {
			result = append(result, *l)
		}
	}
	return result, nil
}

func (s *fakeStorage) HasApprovedDuplicate(context.Context, int64, int64, *float64, *int, *string, time.Duration) (bool, error) {
	return s.duplicateAnswer, nil
}

func (s *fakeStorage) SaveScore(_ context.Context, score domain.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[score.ListingID] = score
	return nil
}

func (s *fakeStorage) ProductionListings(_ context.Context, limit int) ([]domain.ProductionListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.ProductionListing
	for id := int64(1); id < s.nextID && len(result) < limit; id++ {
		l, ok := s.listings[id]
		if !ok || l.Status != domain.StagingStatusApproved {
			continue
		}
		d, ok := s.details[id]
		if !ok {
			continue
		}
		points := s.prices[id]
		if len(points) == 0 {
			continue
		}
		pl := domain.ProductionListing{Listing: *l, Details: *d, Price: points[len(points)-1]}
		if sc, ok := s.scores[id]; ok {
			copied := sc
			pl.Score = &copied
		}
		result = append(result, pl)
	}
	return result, nil
}

// fakeFetcher отдаёт заранее подготовленные страницы и результаты деталей.
type fakeFetcher struct {
	pages       map[int][]domain.ListingLink
	listingsErr error

	detailResult *domain.DetailResult
	detailErrs   []error // по одному на вызов; после исчерпания — detailResult
	detailCalls  int
}

func (f *fakeFetcher) FetchListings(_ context.Context, _ domain.Source, page int) ([]domain.ListingLink, bool, error) {
	if f.listingsErr != nil {
		return nil, false, f.listingsErr
	}
	links := f.pages[page]
	_, hasMore := f.pages[page+1]
	return links, hasMore, nil
}

func (f *fakeFetcher) FetchAdDetails(context.Context, string) (*domain.DetailResult, error) {
	call := f.detailCalls
	f.detailCalls++
	if call < len(f.detailErrs) {
		return nil, f.detailErrs[call]
	}
	return f.detailResult, nil
}

// fakeSources — реестр источников и бан-лист в памяти.
type fakeSources struct {
	sources   []domain.Source
	banned    []string
	collected map[int64]time.Time
}

func (f *fakeSources) ListActive(context.Context) ([]domain.Source, error) {
	return f.sources, nil
}

func (f *fakeSources) MarkCollected(_ context.Context, sourceID int64, t time.Time) error {
	if f.collected == nil {
		f.collected = make(map[int64]time.Time)
	}
	f.collected[sourceID] = t
	return nil
}

func (f *fakeSources) ListNames(context.Context) ([]string, error) {
	return f.banned, nil
}

// fakeQueue копит задачи вместо публикации.
type fakeQueue struct {
	tasks []domain.ListingLink
}

func (f *fakeQueue) Enqueue(_ context.Context, link domain.ListingLink) error {
	f.tasks = append(f.tasks, link)
	return nil
}

// fakeLock — блокировка в памяти.
type fakeLock struct {
	held     map[int64]bool
	denyAll  bool
	acquired int
	released int
}

func (f *fakeLock) Acquire(_ context.Context, cianID int64) (bool, error) {
	if f.denyAll {
		return false, nil
	}
	if f.held == nil {
		f.held = make(map[int64]bool)
	}
	if f.held[cianID] {
		return false, nil
	}
	f.held[cianID] = true
	f.acquired++
	return true, nil
}

func (f *fakeLock) Release(_ context.Context, cianID int64) error {
	delete(f.held, cianID)
	f.released++
	return nil
}

// fakeBuckets — репозиторий корзин в памяти.
type fakeBuckets struct {
	samples  []domain.PriceSample
	upserted []domain.MarketBucket
	byKey    map[string]domain.MarketBucket
	cleared  int
}

func bucketKeyID(key baseline.Key) string {
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

func (f *fakeBuckets) ApprovedPriceSamples(context.Context) ([]domain.PriceSample, error) {
	return f.samples, nil
}

func (f *fakeBuckets) UpsertBuckets(_ context.Context, buckets []domain.MarketBucket) error {
	f.upserted = append(f.upserted, buckets...)
	if f.byKey == nil {
		f.byKey = make(map[string]domain.MarketBucket)
	}
	for _, b := range buckets {
		f.byKey[bucketKeyID(baseline.Key{MetroName: b.MetroName, RoomsCount: b.RoomsCount, PropertyType: b.PropertyType})] = b
	}
	return nil
}

func (f *fakeBuckets) ClearBuckets(context.Context) error {
	f.cleared++
	f.byKey = nil
	return nil
}

func (f *fakeBuckets) GetBucket(_ context.Context, key baseline.Key) (*domain.MarketBucket, error) {
	b, ok := f.byKey[bucketKeyID(key)]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

// fakeExport копит выгрузки.
type fakeExport struct {
	exports [][]domain.ProductionListing
}

func (f *fakeExport) Export(_ context.Context, listings []domain.ProductionListing) error {
	f.exports = append(f.exports, listings)
	return nil
}
