package filter

import (
	"context"
	"fmt"
	"strings"
)

// Коды причин вердиктов. Машинная часть журнала фильтрации.
const (
	CodePriceMissing      = "price_missing"
	CodePriceBelowMin     = "price_below_min"
	CodePriceAboveMax     = "price_above_max"
	CodePricePerM2Low     = "price_per_m2_below_min"
	CodePricePerM2High    = "price_per_m2_above_max"
	CodePriceOK           = "price_ok"
	CodeNoBaseline        = "no_market_baseline"
	CodeDiscountTooSmall  = "discount_below_min"
	CodeOverMarket        = "price_over_market"
	CodeMarketOK          = "market_ok"
	CodeMetroMissing      = "metro_missing"
	CodeMetroBanned       = "metro_banned"
	CodeMetroNotAllowed   = "metro_not_in_allowlist"
	CodeMetroTooFar       = "metro_too_far"
	CodeMetroOK           = "metro_ok"
	CodeAreaTooSmall      = "area_below_min"
	CodeAreaTooLarge      = "area_above_max"
	CodeStudioExcluded    = "studio_excluded"
	CodeRoomsNotAllowed   = "rooms_not_allowed"
	CodeFloorTooLow       = "floor_below_min"
	CodeFloorTooHigh      = "floor_above_max"
	CodeFirstFloor        = "first_floor"
	CodeLastFloor         = "last_floor"
	CodeCharacteristicsOK = "characteristics_ok"
	CodeDescriptionEmpty  = "description_empty"
	CodeDescriptionShort  = "description_too_short"
	CodeBlockedKeyword    = "blocked_keyword"
	CodeQualityOK         = "quality_ok"
	CodeDuplicateFound    = "duplicate_found"
	CodeDuplicateOK       = "no_duplicate"
	CodeFastTrack         = "fast_track_views"
)

// PriceFilter проверяет цену и цену за метр на попадание в границы профиля.
type PriceFilter struct{ cfg Config }

func (f PriceFilter) Name() string { return "PriceFilter" }

func (f PriceFilter) Check(_ context.Context, in Input) (Verdict, error) {
	if in.LatestPrice == nil {
		return fail(CodePriceMissing, "no price observed"), nil
	}
	price := in.LatestPrice.Price
	if f.cfg.MinPrice > 0 && price < f.cfg.MinPrice {
		return fail(CodePriceBelowMin, fmt.Sprintf("%d < %d", price, f.cfg.MinPrice)), nil
	}
	if f.cfg.MaxPrice > 0 && price > f.cfg.MaxPrice {
		return fail(CodePriceAboveMax, fmt.Sprintf("%d > %d", price, f.cfg.MaxPrice)), nil
	}
	if in.LatestPrice.PricePerM2 != nil {
		perM2 := *in.LatestPrice.PricePerM2
		if f.cfg.MinPricePerM2 > 0 && perM2 < f.cfg.MinPricePerM2 {
			return fail(CodePricePerM2Low, fmt.Sprintf("%.0f < %.0f", perM2, f.cfg.MinPricePerM2)), nil
		}
		if f.cfg.MaxPricePerM2 > 0 && perM2 > f.cfg.MaxPricePerM2 {
			return fail(CodePricePerM2High, fmt.Sprintf("%.0f > %.0f", perM2, f.cfg.MaxPricePerM2)), nil
		}
	}
	return pass(CodePriceOK, ""), nil
}

// MarketFilter пропускает только объявления дешевле рынка не меньше, чем
// на минимальную скидку профиля. Без корзины сравнивать не с чем — отказ.
type MarketFilter struct{ cfg Config }

func (f MarketFilter) Name() string { return "MarketFilter" }

func (f MarketFilter) Check(_ context.Context, in Input) (Verdict, error) {
	if in.Bucket == nil || in.Bucket.MedianPerM2 <= 0 {
		return fail(CodeNoBaseline, "no comparable market data"), nil
	}
	if in.LatestPrice == nil {
		return fail(CodePriceMissing, "no price observed"), nil
	}
	perM2 := 0.0
	if in.LatestPrice.PricePerM2 != nil && *in.LatestPrice.PricePerM2 > 0 {
		perM2 = *in.LatestPrice.PricePerM2
	} else if in.Details.TotalArea != nil && *in.Details.TotalArea > 0 {
		perM2 = float64(in.LatestPrice.Price) / *in.Details.TotalArea
	}
	if perM2 <= 0 {
		return fail(CodePriceMissing, "cannot derive price per m2"), nil
	}
	discount := (in.Bucket.MedianPerM2 - perM2) / in.Bucket.MedianPerM2 * 100
	if discount >= f.cfg.MinMarketDiscountPct {
		return pass(CodeMarketOK, fmt.Sprintf("%.1f%% below market", discount)), nil
	}
	if discount < 0 {
		return fail(CodeOverMarket, fmt.Sprintf("%.1f%% above market median %.0f", -discount, in.Bucket.MedianPerM2)), nil
	}
	return fail(CodeDiscountTooSmall, fmt.Sprintf("%.1f%% < %.1f%%", discount, f.cfg.MinMarketDiscountPct)), nil
}

// MetroFilter: станция не в бан-листе, в allow-листе (если он задан)
// и время в пути не больше максимума профиля.
type MetroFilter struct{ cfg Config }

func (f MetroFilter) Name() string { return "MetroFilter" }

func (f MetroFilter) Check(_ context.Context, in Input) (Verdict, error) {
	if in.Details.MetroName == nil || *in.Details.MetroName == "" {
		return fail(CodeMetroMissing, "no metro information"), nil
	}
	station := strings.ToLower(strings.TrimSpace(*in.Details.MetroName))
	if _, banned := in.BannedMetros[station]; banned {
		return fail(CodeMetroBanned, *in.Details.MetroName), nil
	}
	if len(f.cfg.AllowedMetro) > 0 {
		allowed := false
		for _, name := range f.cfg.AllowedMetro {
			if strings.EqualFold(strings.TrimSpace(name), station) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fail(CodeMetroNotAllowed, *in.Details.MetroName), nil
		}
	}
	if f.cfg.MaxMetroMinutes > 0 {
		if in.Details.MetroTime == nil {
			return fail(CodeMetroMissing, "no travel time information"), nil
		}
		if *in.Details.MetroTime > f.cfg.MaxMetroMinutes {
			return fail(CodeMetroTooFar, fmt.Sprintf("%d min > %d min", *in.Details.MetroTime, f.cfg.MaxMetroMinutes)), nil
		}
	}
	return pass(CodeMetroOK, ""), nil
}

// CharacteristicsFilter проверяет площадь, комнатность и этаж.
type CharacteristicsFilter struct{ cfg Config }

func (f CharacteristicsFilter) Name() string { return "CharacteristicsFilter" }

func (f CharacteristicsFilter) Check(_ context.Context, in Input) (Verdict, error) {
	d := in.Details
	if d.TotalArea != nil {
		if f.cfg.MinArea > 0 && *d.TotalArea < f.cfg.MinArea {
			return fail(CodeAreaTooSmall, fmt.Sprintf("%.1f m2 < %.1f m2", *d.TotalArea, f.cfg.MinArea)), nil
		}
		if f.cfg.MaxArea > 0 && *d.TotalArea > f.cfg.MaxArea {
			return fail(CodeAreaTooLarge, fmt.Sprintf("%.1f m2 > %.1f m2", *d.TotalArea, f.cfg.MaxArea)), nil
		}
	}
	if d.RoomsCount != nil {
		if f.cfg.ExcludeStudios && *d.RoomsCount == 0 {
			return fail(CodeStudioExcluded, "studio layout"), nil
		}
		if len(f.cfg.AllowedRooms) > 0 {
			ok := false
			for _, rooms := range f.cfg.AllowedRooms {
				if rooms == *d.RoomsCount {
					ok = true
					break
				}
			}
			if !ok {
				return fail(CodeRoomsNotAllowed, fmt.Sprintf("%d rooms", *d.RoomsCount)), nil
			}
		}
	}
	if d.Floor != nil {
		floor := *d.Floor
		if f.cfg.MinFloor > 0 && floor < f.cfg.MinFloor {
			return fail(CodeFloorTooLow, fmt.Sprintf("floor %d < %d", floor, f.cfg.MinFloor)), nil
		}
		if f.cfg.MaxFloor > 0 && floor > f.cfg.MaxFloor {
			return fail(CodeFloorTooHigh, fmt.Sprintf("floor %d > %d", floor, f.cfg.MaxFloor)), nil
		}
		if f.cfg.RejectFirstFloor && floor == 1 {
			return fail(CodeFirstFloor, "first floor"), nil
		}
		if f.cfg.RejectLastFloor && d.FloorsCount != nil && floor == *d.FloorsCount {
			return fail(CodeLastFloor, fmt.Sprintf("%d/%d", floor, *d.FloorsCount)), nil
		}
	}
	return pass(CodeCharacteristicsOK, ""), nil
}

// QualityFilter проверяет описание: непустое, достаточно длинное,
// без заблокированных слов (регистронезависимое вхождение).
type QualityFilter struct{ cfg Config }

func (f QualityFilter) Name() string { return "QualityFilter" }

func (f QualityFilter) Check(_ context.Context, in Input) (Verdict, error) {
	if in.Details.Description == nil || strings.TrimSpace(*in.Details.Description) == "" {
		return fail(CodeDescriptionEmpty, "empty description"), nil
	}
	text := strings.TrimSpace(*in.Details.Description)
	if len([]rune(text)) < f.cfg.MinDescriptionLength {
		return fail(CodeDescriptionShort, fmt.Sprintf("%d chars < %d", len([]rune(text)), f.cfg.MinDescriptionLength)), nil
	}
	lowered := strings.ToLower(text)
	for _, keyword := range f.cfg.BlockedKeywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(keyword)) {
			return fail(CodeBlockedKeyword, keyword), nil
		}
	}
	return pass(CodeQualityOK, ""), nil
}

// DuplicateFilter ловит перевыставленные объявления: другое approved
// объявление с тем же кортежем (цена, площадь, этаж, метро) в пределах
// окна давности означает дубликат с новым cian_id.
type DuplicateFilter struct{ cfg Config }

func (f DuplicateFilter) Name() string { return "DuplicateFilter" }

func (f DuplicateFilter) Check(ctx context.Context, in Input) (Verdict, error) {
	if !f.cfg.CheckDuplicates || in.HasDuplicate == nil {
		return pass(CodeDuplicateOK, "duplicate check disabled"), nil
	}
	found, err := in.HasDuplicate(ctx, in, f.cfg.DuplicateWindow)
	if err != nil {
		return Verdict{}, fmt.Errorf("duplicate probe failed for cian_id %d: %w", in.Listing.CianID, err)
	}
	if found {
		return fail(CodeDuplicateFound, "matching approved listing within recency window"), nil
	}
	return pass(CodeDuplicateOK, ""), nil
}
