package filter

import (
	"context"
	"time"

	"cian-pipeline/internal/core/domain"
)

// Verdict — результат одного фильтра: прошёл/нет, машинный код причины
// и человекочитаемая расшифровка.
type Verdict struct {
	Passed bool
	Code   string
	Detail string
}

func pass(code, detail string) Verdict { return Verdict{Passed: true, Code: code, Detail: detail} }
func fail(code, detail string) Verdict { return Verdict{Passed: false, Code: code, Detail: detail} }

// Reason собирает строку для журнала вердиктов.
func (v Verdict) Reason() string {
	if v.Detail == "" {
		return v.Code
	}
	return v.Code + ": " + v.Detail
}

// Input — всё, что нужно фильтрам для решения. Фильтры не ходят в хранилище
// сами: проверка дубликатов выполняется через заранее внедрённый probe.
type Input struct {
	Listing     domain.Listing
	Details     domain.ListingDetails
	LatestPrice *domain.PricePoint
	LatestViews *domain.ViewStat
	Bucket      *domain.MarketBucket

	// BannedMetros — имена станций из бан-листа, в нижнем регистре.
	BannedMetros map[string]struct{}

	// HasDuplicate отвечает, есть ли среди approved-объявлений другое
	// с тем же кортежем (цена, общая площадь, этаж, метро) не старше окна.
	HasDuplicate DuplicateProbe
}

// DuplicateProbe — запрос к хранилищу на совпадение кортежа признаков.
type DuplicateProbe func(ctx context.Context, in Input, window time.Duration) (bool, error)

// Filter — чистый предикат с именем. Ошибка возможна только
// инфраструктурная (probe дубликатов); отказ фильтра ошибкой не является.
type Filter interface {
	Name() string
	Check(ctx context.Context, in Input) (Verdict, error)
}

// Config — именованный профиль параметров фильтров ("default", "premium",
// "bargain"). Переключение профиля влияет только на будущие прогоны.
type Config struct {
	Name string

	// PriceFilter
	MinPrice      int64
	MaxPrice      int64
	MinPricePerM2 float64
	MaxPricePerM2 float64

	// MarketFilter
	EnableMarketFilter   bool
	MinMarketDiscountPct float64

	// MetroFilter
	AllowedMetro    []string
	MaxMetroMinutes int

	// CharacteristicsFilter
	MinArea          float64
	MaxArea          float64
	AllowedRooms     []int
	ExcludeStudios   bool
	MinFloor         int
	MaxFloor         int
	RejectFirstFloor bool
	RejectLastFloor  bool

	// QualityFilter
	MinDescriptionLength int
	BlockedKeywords      []string

	// DuplicateFilter
	CheckDuplicates bool
	DuplicateWindow time.Duration

	// FastTrackViewsPerDay — автоодобрение после прохождения ценового
	// фильтра при очень высоком дневном интересе. 0 отключает.
	FastTrackViewsPerDay int
}
