package cianfetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cian-pipeline/internal/core/domain"

	"github.com/gocolly/colly/v2"
)

// --- Структуры для разбора встроенного JSON страницы объявления ---

// Страница содержит window._cianConfig['frontend-offer-card'] = ...
// .concat([...]) с массивом пар {key, value}; данные объявления лежат
// под ключом defaultState.
const (
	configMarker = "window._cianConfig['frontend-offer-card']"
	concatMarker = ".concat("
)

type cianConfigEntry struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

type cianDefaultState struct {
	OfferData cianOfferData `json:"offerData"`
}

type cianOfferData struct {
	Offer *cianOffer `json:"offer"`
	Stats *cianStats `json:"stats"`
}

type cianOffer struct {
	CianID        int64            `json:"cianId"`
	Description   string           `json:"description"`
	TotalArea     flexFloat        `json:"totalArea"`
	LivingArea    flexFloat        `json:"livingArea"`
	KitchenArea   flexFloat        `json:"kitchenArea"`
	FloorNumber   *int             `json:"floorNumber"`
	RoomsCount    *int             `json:"roomsCount"`
	OfferType     string           `json:"offerType"`
	BalconiesCnt  *int             `json:"balconiesCount"`
	LoggiasCnt    *int             `json:"loggiasCount"`
	Building      cianBuilding     `json:"building"`
	Geo           cianGeo          `json:"geo"`
	BargainTerms  cianBargainTerms `json:"bargainTerms"`
}

type cianBuilding struct {
	FloorsCount  *int    `json:"floorsCount"`
	BuildYear    *int    `json:"buildYear"`
	MaterialType *string `json:"materialType"`
	Deadline     *struct {
		Year *int `json:"year"`
	} `json:"deadline"`
}

type cianGeo struct {
	UserInput    string            `json:"userInput"`
	Undergrounds []cianUnderground `json:"undergrounds"`
}

type cianUnderground struct {
	Name       string `json:"name"`
	TravelTime *int   `json:"travelTime"`
	TravelType string `json:"travelType"`
}

type cianBargainTerms struct {
	Price    flexFloat `json:"price"`
	Currency string    `json:"currency"`
}

type cianStats struct {
	TotalViewsFormattedString string `json:"totalViewsFormattedString"`
}

// flexFloat терпит и числа, и строки вида "44.5" — Циан отдаёт и то, и другое.
type flexFloat struct {
	Value float64
	Set   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `""` {
		return nil
	}
	trimmed = strings.Trim(trimmed, `"`)
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return nil // нечисловое значение трактуем как отсутствующее
	}
	f.Value = v
	f.Set = true
	return nil
}

var viewsPattern = regexp.MustCompile(`(\d+)\s+просмотр\S*(?:,\s+(\d+)\s+за\s+сегодня)?`)

// FetchAdDetails извлекает и преобразует детальную информацию об объявлении.
func (a *CianFetcherAdapter) FetchAdDetails(ctx context.Context, adURL string) (*domain.DetailResult, error) {
	collector := a.collector.Clone()

	var body []byte
	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	if visitErr := collector.Visit(adURL); visitErr != nil {
		return nil, fmt.Errorf("cian adapter (detail): failed to visit %s: %w: %v", adURL, domain.ErrDetailUnavailable, visitErr)
	}
	collector.Wait()

	if len(body) == 0 {
		return nil, fmt.Errorf("cian adapter (detail): empty response from %s: %w", adURL, domain.ErrDetailUnavailable)
	}

	offerData, err := extractOfferData(string(body))
	if err != nil {
		// Отсутствие маркера обычно означает анти-бот заглушку, не битые данные.
		return nil, fmt.Errorf("cian adapter (detail): %s: %w: %v", adURL, domain.ErrDetailUnavailable, err)
	}

	result, err := buildDetailResult(offerData)
	if err != nil {
		return nil, fmt.Errorf("cian adapter (detail): %s: %w", adURL, err)
	}
	return result, nil
}

// extractOfferData находит встроенный конфиг и вырезает JSON-массив
// со сбалансированными скобками.
func extractOfferData(html string) (*cianOfferData, error) {
	start := strings.Index(html, configMarker)
	if start == -1 {
		return nil, fmt.Errorf("config marker not found")
	}
	concatIdx := strings.Index(html[start:], concatMarker)
	if concatIdx == -1 {
		return nil, fmt.Errorf("concat marker not found")
	}
	arrayStart := strings.Index(html[start+concatIdx:], "[")
	if arrayStart == -1 {
		return nil, fmt.Errorf("array start not found")
	}
	arrayStart += start + concatIdx

	depth := 0
	arrayEnd := -1
	inString := false
	escaped := false
	for i := arrayStart; i < len(html); i++ {
		ch := html[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				arrayEnd = i + 1
			}
		}
		if arrayEnd != -1 {
			break
		}
	}
	if arrayEnd == -1 {
		return nil, fmt.Errorf("array end not found")
	}

	var entries []cianConfigEntry
	if err := json.Unmarshal([]byte(html[arrayStart:arrayEnd]), &entries); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config array: %w", err)
	}

	for _, entry := range entries {
		if entry.Key != "defaultState" {
			continue
		}
		var state cianDefaultState
		if err := json.Unmarshal(entry.Value, &state); err != nil {
			return nil, fmt.Errorf("failed to unmarshal defaultState: %w", err)
		}
		if state.OfferData.Offer == nil {
			return nil, fmt.Errorf("offer object not found in defaultState")
		}
		return &state.OfferData, nil
	}
	return nil, fmt.Errorf("defaultState not found in config array")
}

// buildDetailResult преобразует сырые данные Циан в доменные структуры
// и проверяет их внутреннюю согласованность.
func buildDetailResult(data *cianOfferData) (*domain.DetailResult, error) {
	offer := data.Offer
	now := time.Now().UTC()

	details := domain.ListingDetails{
		PropertyType:   domain.PropertyTypeUnspecified,
		MetroTransport: domain.MetroTransportWalk,
		UpdatedAt:      now,
	}

	if offer.Description != "" {
		details.Description = &offer.Description
	}
	if offer.TotalArea.Set {
		v := offer.TotalArea.Value
		details.TotalArea = &v
	}
	if offer.LivingArea.Set {
		v := offer.LivingArea.Value
		details.LivingArea = &v
	}
	if offer.KitchenArea.Set {
		v := offer.KitchenArea.Value
		details.KitchenArea = &v
	}
	details.Floor = offer.FloorNumber
	details.FloorsCount = offer.Building.FloorsCount
	details.BuildYear = offer.Building.BuildYear
	if details.BuildYear == nil && offer.Building.Deadline != nil {
		details.BuildYear = offer.Building.Deadline.Year
	}
	details.MaterialType = offer.Building.MaterialType
	details.RoomsCount = offer.RoomsCount
	details.BalconyCount = offer.BalconiesCnt
	details.LoggiaCount = offer.LoggiasCnt

	switch offer.OfferType {
	case "flat":
		details.PropertyType = domain.PropertyTypeFlat
	case "apartments":
		details.PropertyType = domain.PropertyTypeApartments
	}

	if len(offer.Geo.Undergrounds) > 0 {
		closest := offer.Geo.Undergrounds[0]
		if closest.Name != "" {
			name := closest.Name
			details.MetroName = &name
		}
		details.MetroTime = closest.TravelTime
		if closest.TravelType == "transport" {
			details.MetroTransport = domain.MetroTransportTransport
		}
	}

	if offer.Geo.UserInput != "" {
		extra, err := json.Marshal(map[string]string{"address": offer.Geo.UserInput})
		if err == nil {
			details.ExtraAttrs = extra
		}
	}

	// Внутренняя согласованность: такие данные не ретраятся.
	if details.TotalArea != nil && *details.TotalArea <= 0 {
		return nil, fmt.Errorf("%w: non-positive total area %.2f", domain.ErrDetailMalformed, *details.TotalArea)
	}
	if details.LivingArea != nil && *details.LivingArea < 0 {
		return nil, fmt.Errorf("%w: negative living area %.2f", domain.ErrDetailMalformed, *details.LivingArea)
	}
	if details.Floor != nil && details.FloorsCount != nil && *details.Floor > *details.FloorsCount {
		return nil, fmt.Errorf("%w: floor %d above floors count %d", domain.ErrDetailMalformed, *details.Floor, *details.FloorsCount)
	}

	result := &domain.DetailResult{Details: details}

	if offer.BargainTerms.Price.Set {
		price := offer.BargainTerms.Price.Value
		if price <= 0 {
			return nil, fmt.Errorf("%w: non-positive price %.0f", domain.ErrDetailMalformed, price)
		}
		currency := offer.BargainTerms.Currency
		if currency == "" {
			currency = "RUB"
		}
		point := domain.PricePoint{
			Price:      int64(price),
			Currency:   currency,
			ObservedAt: now,
		}
		if details.TotalArea != nil && *details.TotalArea > 0 {
			perM2 := price / *details.TotalArea
			point.PricePerM2 = &perM2
		}
		result.Price = &point
	}

	if data.Stats != nil && data.Stats.TotalViewsFormattedString != "" {
		if stat := parseViews(data.Stats.TotalViewsFormattedString, now); stat != nil {
			result.Views = stat
		}
	}

	return result, nil
}

// parseViews разбирает строки вида "1250 просмотров, 32 за сегодня".
func parseViews(s string, now time.Time) *domain.ViewStat {
	match := viewsPattern.FindStringSubmatch(s)
	if match == nil {
		return nil
	}
	total, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	stat := &domain.ViewStat{ViewsTotal: total, ObservedAt: now}
	if match[2] != "" {
		if today, err := strconv.Atoi(match[2]); err == nil {
			stat.ViewsToday = today
		}
	}
	return stat
}
