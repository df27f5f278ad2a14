package domain

import (
	"encoding/json"
	"time"
)

// PropertyType определяет тип недвижимости на Циан
type PropertyType string

const (
	PropertyTypeFlat        PropertyType = "flat"
	PropertyTypeApartments  PropertyType = "apartments"
	PropertyTypeUnspecified PropertyType = "unspecified"
)

// MetroTransport определяет способ добраться до метро
type MetroTransport string

const (
	MetroTransportWalk      MetroTransport = "walk"
	MetroTransportTransport MetroTransport = "transport"
)

// StagingStatus — статус объявления в staging-цикле.
// Допустимые переходы: pending -> approved, pending -> rejected.
// Из терминального статуса выхода нет, кроме явной переоценки,
// которая возвращает объявление в pending.
type StagingStatus string

const (
	StagingStatusPending  StagingStatus = "pending"
	StagingStatusApproved StagingStatus = "approved"
	StagingStatusRejected StagingStatus = "rejected"
)

// Коды причин отклонения вне фильтров (ошибки извлечения деталей).
const (
	RejectReasonMalformedDetail = "malformed_detail"
	RejectReasonFetchExhausted  = "fetch_exhausted"
)

// Listing — корень идентичности объявления. Уникальность глобальная по CianID:
// повторный сбор того же ID всегда upsert, никогда не вторая строка.
type Listing struct {
	ID          int64         `json:"-" db:"id"`
	CianID      int64         `json:"cian_id" db:"cian_id"`
	URL         string        `json:"url" db:"url"`
	SourceID    *int64        `json:"source_id,omitempty" db:"source_id"`
	IsActive    bool          `json:"is_active" db:"is_active"`
	Status      StagingStatus `json:"staging_status" db:"staging_status"`
	StatusNote  *string       `json:"status_note,omitempty" db:"status_note"`
	FirstSeenAt time.Time     `json:"first_seen_at" db:"first_seen_at"`
	LastSeenAt  time.Time     `json:"last_seen_at" db:"last_seen_at"`
}

// ListingLink — легковесная сводка кандидата со страницы выдачи.
// Этого достаточно, чтобы создать строку Listing и поставить задачу
// на извлечение деталей.
type ListingLink struct {
	CianID   int64     `json:"cian_id"`
	URL      string    `json:"url"`
	Price    *int64    `json:"price,omitempty"`
	ListedAt time.Time `json:"listed_at"`
	SourceID int64     `json:"source_id"`
}

// Valid сообщает, хватает ли полей, чтобы построить строку Listing.
// Кандидаты без ID или URL пропускаются и считаются, но не фатальны.
func (l ListingLink) Valid() bool {
	return l.CianID > 0 && l.URL != ""
}

// ListingDetails — полный набор атрибутов объявления, один-к-одному с Listing.
// Отсутствие строки означает "ожидает обогащения".
type ListingDetails struct {
	ListingID      int64           `json:"-" db:"listing_id"`
	Description    *string         `json:"description,omitempty" db:"description"`
	TotalArea      *float64        `json:"total_area,omitempty" db:"total_area"`
	LivingArea     *float64        `json:"living_area,omitempty" db:"living_area"`
	KitchenArea    *float64        `json:"kitchen_area,omitempty" db:"kitchen_area"`
	Floor          *int            `json:"floor,omitempty" db:"floor"`
	FloorsCount    *int            `json:"floors_count,omitempty" db:"floors_count"`
	BuildYear      *int            `json:"build_year,omitempty" db:"build_year"`
	MaterialType   *string         `json:"material_type,omitempty" db:"material_type"`
	RoomsCount     *int            `json:"rooms_count,omitempty" db:"rooms_count"`
	PropertyType   PropertyType    `json:"property_type" db:"property_type"`
	BalconyCount   *int            `json:"balcony_count,omitempty" db:"balcony_count"`
	LoggiaCount    *int            `json:"loggia_count,omitempty" db:"loggia_count"`
	MetroName      *string         `json:"metro_name,omitempty" db:"metro_name"`
	MetroTime      *int            `json:"metro_time,omitempty" db:"metro_time"`
	MetroTransport MetroTransport  `json:"metro_transport" db:"metro_transport"`
	ExtraAttrs     json.RawMessage `json:"extra_attributes,omitempty" db:"extra_attributes"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// PricePoint — строка истории цен, только добавление, никогда не правится.
// Текущая цена = последняя точка по ObservedAt.
type PricePoint struct {
	ID         int64     `json:"-" db:"id"`
	ListingID  int64     `json:"-" db:"listing_id"`
	Price      int64     `json:"price" db:"price"`
	PricePerM2 *float64  `json:"price_per_m2,omitempty" db:"price_per_m2"`
	Currency   string    `json:"currency" db:"currency"`
	ObservedAt time.Time `json:"observed_at" db:"observed_at"`
}

// ViewStat — строка истории просмотров, та же дисциплина только-добавление.
type ViewStat struct {
	ID         int64     `json:"-" db:"id"`
	ListingID  int64     `json:"-" db:"listing_id"`
	ViewsTotal int       `json:"views_total" db:"views_total"`
	ViewsToday int       `json:"views_today" db:"views_today"`
	ObservedAt time.Time `json:"observed_at" db:"observed_at"`
}

// DetailResult — результат извлечения деталей одной страницы объявления.
// Цена и просмотры опциональны: история пополняется только тем, что
// реально присутствовало на странице.
type DetailResult struct {
	Details ListingDetails
	Price   *PricePoint
	Views   *ViewStat
}
