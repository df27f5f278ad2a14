package baseline

import (
	"context"
	"errors"
	"testing"

	"cian-pipeline/internal/core/domain"
)

func sptr(v string) *string { return &v }
func iptr(v int) *int       { return &v }

func TestFallbackKeysOrder(t *testing.T) {
	d := domain.ListingDetails{
		MetroName:    sptr("Таганская"),
		RoomsCount:   iptr(2),
		PropertyType: domain.PropertyTypeFlat,
	}

	keys := FallbackKeys(d)
	if len(keys) != 3 {
		t.Fatalf("got %d keys, want 3", len(keys))
	}
	if keys[0].MetroName == nil || keys[0].RoomsCount == nil {
		t.Error("first key should be the most specific (metro, rooms, type)")
	}
	if keys[1].MetroName != nil || keys[1].RoomsCount == nil {
		t.Error("second key should drop metro but keep rooms")
	}
	if keys[2].MetroName != nil || keys[2].RoomsCount != nil {
		t.Error("third key should keep only property type")
	}
}

func TestFallbackKeysWithoutMetro(t *testing.T) {
	d := domain.ListingDetails{
		RoomsCount:   iptr(1),
		PropertyType: domain.PropertyTypeFlat,
	}
	keys := FallbackKeys(d)
	if len(keys) != 2 {
		t.Fatalf("got %d keys, want 2", len(keys))
	}

	d = domain.ListingDetails{PropertyType: domain.PropertyTypeFlat}
	keys = FallbackKeys(d)
	if len(keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(keys))
	}
}

func TestResolvePrefersSpecificBucket(t *testing.T) {
	d := domain.ListingDetails{
		MetroName:    sptr("Таганская"),
		RoomsCount:   iptr(2),
		PropertyType: domain.PropertyTypeFlat,
	}

	lookup := func(_ context.Context, key Key) (*domain.MarketBucket, error) {
		if key.MetroName != nil {
			return &domain.MarketBucket{MedianPerM2: 250_000, SampleCount: 10}, nil
		}
		return &domain.MarketBucket{MedianPerM2: 200_000, SampleCount: 100}, nil
	}

	bucket, err := Resolve(context.Background(), lookup, d, 5)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if bucket.MedianPerM2 != 250_000 {
		t.Errorf("MedianPerM2 = %v, want the most specific bucket (250000)", bucket.MedianPerM2)
	}
}

func TestResolveFallsBackOnThinSamples(t *testing.T) {
	d := domain.ListingDetails{
		MetroName:    sptr("Таганская"),
		RoomsCount:   iptr(2),
		PropertyType: domain.PropertyTypeFlat,
	}

	lookup := func(_ context.Context, key Key) (*domain.MarketBucket, error) {
		if key.MetroName != nil {
			return &domain.MarketBucket{MedianPerM2: 250_000, SampleCount: 2}, nil
		}
		if key.RoomsCount != nil {
			return &domain.MarketBucket{MedianPerM2: 220_000, SampleCount: 30}, nil
		}
		return &domain.MarketBucket{MedianPerM2: 200_000, SampleCount: 100}, nil
	}

	bucket, err := Resolve(context.Background(), lookup, d, 5)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if bucket.MedianPerM2 != 220_000 {
		t.Errorf("MedianPerM2 = %v, want the (rooms, type) bucket (220000)", bucket.MedianPerM2)
	}
}

func TestResolveReturnsCoarseBucketWhenAllThin(t *testing.T) {
	d := domain.ListingDetails{PropertyType: domain.PropertyTypeFlat}

	lookup := func(_ context.Context, _ Key) (*domain.MarketBucket, error) {
		return &domain.MarketBucket{MedianPerM2: 180_000, SampleCount: 1}, nil
	}

	bucket, err := Resolve(context.Background(), lookup, d, 5)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if bucket == nil || bucket.MedianPerM2 != 180_000 {
		t.Error("expected the under-threshold bucket as a last resort")
	}
}

func TestResolveNoData(t *testing.T) {
	d := domain.ListingDetails{PropertyType: domain.PropertyTypeFlat}

	lookup := func(_ context.Context, _ Key) (*domain.MarketBucket, error) {
		return nil, nil
	}

	_, err := Resolve(context.Background(), lookup, d, 5)
	if !errors.Is(err, domain.ErrBaselineUnavailable) {
		t.Errorf("Resolve() error = %v, want ErrBaselineUnavailable", err)
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		sorted []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5}, 5},
		{"odd count", []float64{1, 2, 10}, 2},
		{"even count interpolates", []float64{1, 2, 3, 10}, 2.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Median(tt.sorted); got != tt.want {
				t.Errorf("Median(%v) = %v, want %v", tt.sorted, got, tt.want)
			}
		})
	}
}
