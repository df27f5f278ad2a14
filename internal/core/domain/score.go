package domain

import "time"

// Score — пересчитываемая оценка объявления, один-к-одному с Listing.
// Не историзируется: при изменении цены, просмотров или рыночной корзины
// полностью пересчитывается из текущих данных.
type Score struct {
	ListingID     int64     `json:"-" db:"listing_id"`
	PriceScore    int       `json:"price_score" db:"price_score"`
	MetroScore    int       `json:"metro_score" db:"metro_score"`
	FloorScore    int       `json:"floor_score" db:"floor_score"`
	AreaScore     int       `json:"area_score" db:"area_score"`
	ViewsScore    int       `json:"views_score" db:"views_score"`
	QualityScore  int       `json:"quality_score" db:"quality_score"`
	InterestScore int       `json:"market_interest_score" db:"market_interest_score"`
	TotalScore    int       `json:"total_score" db:"total_score"`
	DiscountPct   *float64  `json:"discount_pct,omitempty" db:"discount_pct"`
	CalculatedAt  time.Time `json:"calculated_at" db:"calculated_at"`
}

// MarketBucket — срез рыночных цен по группе сопоставимых объявлений.
// Производный кэш: пересчитывается из одобренных данных и может быть
// полностью перестроен в любой момент.
type MarketBucket struct {
	MetroName    *string      `json:"metro_name,omitempty" db:"metro_name"`
	RoomsCount   *int         `json:"rooms_count,omitempty" db:"rooms_count"`
	PropertyType PropertyType `json:"property_type" db:"property_type"`
	MedianPerM2  float64      `json:"median_price_m2" db:"median_price_m2"`
	SampleCount  int          `json:"sample_count" db:"sample_count"`
	CalculatedAt time.Time    `json:"calculated_at" db:"calculated_at"`
}

// FilterVerdict — запись журнала фильтрации: только добавление, используется
// для диагностики и никогда для управления потоком.
type FilterVerdict struct {
	ID         int64     `json:"-" db:"id"`
	ListingID  int64     `json:"-" db:"listing_id"`
	FilterName string    `json:"filter_name" db:"filter_name"`
	Passed     bool      `json:"passed" db:"passed"`
	Reason     string    `json:"reason" db:"reason"`
	CheckedAt  time.Time `json:"checked_at" db:"checked_at"`
}
