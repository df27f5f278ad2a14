package scoring

import (
	"math"
	"time"

	"cian-pipeline/internal/core/domain"
)

// Максимумы подоценок. Качество (цена+метро+этаж+площадь) даёт до 100 очков,
// рыночный интерес (просмотры) — ещё до 100, итого до 200.
const (
	PriceScoreMax = 45
	MetroScoreMax = 30
	FloorScoreMax = 15
	AreaScoreMax  = 10
	ViewsScoreMax = 100

	QualityScoreMax  = PriceScoreMax + MetroScoreMax + FloorScoreMax + AreaScoreMax
	InterestScoreMax = ViewsScoreMax
	TotalScoreMax    = QualityScoreMax + InterestScoreMax
)

// Пороги скидки к медиане корзины (в процентах) и очки за них.
// Нулевая или отрицательная скидка очков не даёт.
const (
	discountTier1Pct = 20.0
	discountTier2Pct = 15.0
	discountTier3Pct = 10.0
	discountTier4Pct = 5.0

	discountTier1Score = PriceScoreMax
	discountTier2Score = 38
	discountTier3Score = 32
	discountTier4Score = 22
	discountBaseScore  = 10
)

// Пороги времени до метро в минутах.
const (
	MetroWalkBestMinutes = 5  // на этом пороге и ниже — максимум очков
	metroWalkGoodMinutes = 10
	metroWalkOkMinutes   = 15
	MetroWalkCutoff      = 20 // строго дальше пешком — ноль
	metroRideGoodMinutes = 10
	MetroRideCutoff      = 15 // строго дальше транспортом — ноль
)

// Очки за этаж: штрафуются первый и последний, середина дома ценится выше.
const (
	floorMidBandScore  = FloorScoreMax
	floorMiddleScore   = 12
	floorUnknownScore  = 8
	floorLastScore     = 5
	floorFirstScore    = 3
	floorMidBandLowest = 3 // комфортная зона: от 3-го до (этажность-2)
)

// Пороги отношения жилой площади к общей.
const (
	areaRatioExcellent = 0.70
	areaRatioGood      = 0.60
	areaRatioFair      = 0.50
	areaRatioPoor      = 0.40
	areaUnknownScore   = 5
)

// viewsPerPoint — сколько дневных просмотров стоит одно очко интереса.
const viewsPerPoint = 2.0

// Compute — чистая функция скоринга: (детали, последняя цена, последние
// просмотры, разрешённая корзина) -> Score. Пересчёт всегда полный,
// инкрементальных обновлений нет.
func Compute(listingID int64, details domain.ListingDetails, latestPrice *domain.PricePoint, latestViews *domain.ViewStat, bucket *domain.MarketBucket, now time.Time) domain.Score {
	score := domain.Score{
		ListingID:    listingID,
		CalculatedAt: now,
	}

	discount, hasDiscount := discountPct(details, latestPrice, bucket)
	if hasDiscount {
		rounded := math.Round(discount*10) / 10
		score.DiscountPct = &rounded
	}

	score.PriceScore = priceScore(discount, hasDiscount)
	score.MetroScore = metroScore(details)
	score.FloorScore = floorScore(details)
	score.AreaScore = areaScore(details)
	score.ViewsScore = viewsScore(latestViews)

	score.QualityScore = score.PriceScore + score.MetroScore + score.FloorScore + score.AreaScore
	score.InterestScore = score.ViewsScore
	score.TotalScore = clamp(score.QualityScore+score.InterestScore, 0, TotalScoreMax)
	return score
}

// PricePerM2 возвращает цену за метр из последней ценовой точки,
// при необходимости выводя её из цены и общей площади.
func PricePerM2(details domain.ListingDetails, latest *domain.PricePoint) (float64, bool) {
	if latest == nil {
		return 0, false
	}
	if latest.PricePerM2 != nil && *latest.PricePerM2 > 0 {
		return *latest.PricePerM2, true
	}
	if details.TotalArea != nil && *details.TotalArea > 0 {
		return float64(latest.Price) / *details.TotalArea, true
	}
	return 0, false
}

func discountPct(details domain.ListingDetails, latest *domain.PricePoint, bucket *domain.MarketBucket) (float64, bool) {
	if bucket == nil || bucket.MedianPerM2 <= 0 {
		return 0, false
	}
	perM2, ok := PricePerM2(details, latest)
	if !ok {
		return 0, false
	}
	return (bucket.MedianPerM2 - perM2) / bucket.MedianPerM2 * 100, true
}

func priceScore(discount float64, hasDiscount bool) int {
	if !hasDiscount || discount <= 0 {
		return 0
	}
	switch {
	case discount >= discountTier1Pct:
		return discountTier1Score
	case discount >= discountTier2Pct:
		return discountTier2Score
	case discount >= discountTier3Pct:
		return discountTier3Score
	case discount >= discountTier4Pct:
		return discountTier4Score
	default:
		return discountBaseScore
	}
}

func metroScore(details domain.ListingDetails) int {
	if details.MetroTime == nil {
		return 0
	}
	minutes := *details.MetroTime
	switch details.MetroTransport {
	case domain.MetroTransportWalk:
		switch {
		case minutes <= MetroWalkBestMinutes:
			return MetroScoreMax
		case minutes <= metroWalkGoodMinutes:
			return 24
		case minutes <= metroWalkOkMinutes:
			return 18
		case minutes <= MetroWalkCutoff:
			return 12
		}
	case domain.MetroTransportTransport:
		switch {
		case minutes <= metroRideGoodMinutes:
			return 10
		case minutes <= MetroRideCutoff:
			return 6
		}
	}
	return 0
}

func floorScore(details domain.ListingDetails) int {
	if details.Floor == nil || details.FloorsCount == nil {
		return floorUnknownScore
	}
	floor, total := *details.Floor, *details.FloorsCount
	switch {
	case floor == 1:
		return floorFirstScore
	case floor == total:
		return floorLastScore
	case floor >= floorMidBandLowest && floor <= total-2:
		return floorMidBandScore
	case floor > 1 && floor < total:
		return floorMiddleScore
	default:
		return floorUnknownScore
	}
}

func areaScore(details domain.ListingDetails) int {
	if details.LivingArea == nil || details.TotalArea == nil || *details.TotalArea <= 0 {
		return areaUnknownScore
	}
	ratio := *details.LivingArea / *details.TotalArea
	switch {
	case ratio >= areaRatioExcellent:
		return AreaScoreMax
	case ratio >= areaRatioGood:
		return 8
	case ratio >= areaRatioFair:
		return 6
	case ratio >= areaRatioPoor:
		return 4
	case ratio > 0:
		return 2
	default:
		return 0
	}
}

func viewsScore(latest *domain.ViewStat) int {
	if latest == nil || latest.ViewsToday <= 0 {
		return 0
	}
	points := int(math.Round(float64(latest.ViewsToday) / viewsPerPoint))
	return clamp(points, 0, ViewsScoreMax)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
