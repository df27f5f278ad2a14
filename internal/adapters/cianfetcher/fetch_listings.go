package cianfetcher

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cian-pipeline/internal/core/domain"

	"github.com/gocolly/colly/v2"
)

var flatIDPattern = regexp.MustCompile(`/flat/(\d+)`)

// FetchListings собирает сводки кандидатов с одной страницы выдачи.
// Наличие следующей страницы определяется по ссылке в блоке пагинации,
// чтобы не тратить запрос на заведомо пустую страницу.
func (a *CianFetcherAdapter) FetchListings(ctx context.Context, source domain.Source, page int) ([]domain.ListingLink, bool, error) {
	// Одноразовый клон: наследует лимиты, но имеет свои обработчики.
	collector := a.collector.Clone()

	var links []domain.ListingLink
	skippedCards := 0
	paginationSeen := false
	hasNext := false

	collector.OnHTML(`div[data-name="CardComponent"]`, func(e *colly.HTMLElement) {
		link, ok := parseCard(e)
		if !ok {
			skippedCards++
			return
		}
		links = append(links, link)
	})

	collector.OnHTML(`div[data-name="Pagination"] a[href]`, func(e *colly.HTMLElement) {
		paginationSeen = true
		if linksToPage(e.Attr("href"), page+1) {
			hasNext = true
		}
	})

	targetURL, err := buildPageURL(source.URL, page)
	if err != nil {
		return nil, false, fmt.Errorf("cian adapter: failed to build page URL for source '%s': %w", source.Name, err)
	}

	if visitErr := collector.Visit(targetURL); visitErr != nil {
		return nil, false, fmt.Errorf("cian adapter: failed to visit %s: %w: %v", targetURL, domain.ErrSourceUnavailable, visitErr)
	}
	collector.Wait()

	if skippedCards > 0 {
		log.Printf("CianAdapter: Skipped %d card(s) without id/url on page %d of '%s'\n", skippedCards, page, source.Name)
	}
	log.Printf("CianAdapter: Page %d of '%s' yielded %d candidate(s)\n", page, source.Name, len(links))

	// Ссылка на следующую страницу в блоке пагинации — точный признак.
	// Без блока (смена верстки) остается грубый: непустая страница.
	hasMore := hasNext
	if !paginationSeen {
		hasMore = len(links) > 0
	}
	return links, hasMore, nil
}

// linksToPage сообщает, ведет ли ссылка пагинации на указанную страницу.
func linksToPage(href string, page int) bool {
	parsed, err := url.Parse(href)
	if err != nil {
		return false
	}
	return parsed.Query().Get("p") == strconv.Itoa(page)
}

// parseCard извлекает ссылку, cian_id и цену из карточки выдачи.
func parseCard(e *colly.HTMLElement) (domain.ListingLink, bool) {
	href := e.ChildAttr(`a[href*="/sale/flat/"]`, "href")
	if href == "" {
		return domain.ListingLink{}, false
	}
	if strings.HasPrefix(href, "/") {
		href = "https://www.cian.ru" + href
	}

	match := flatIDPattern.FindStringSubmatch(href)
	if match == nil {
		return domain.ListingLink{}, false
	}
	cianID, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return domain.ListingLink{}, false
	}

	link := domain.ListingLink{
		CianID:   cianID,
		URL:      href,
		ListedAt: time.Now().UTC(),
	}

	if priceText := e.ChildText(`span[data-mark="MainPrice"]`); priceText != "" {
		if price, ok := parsePriceString(priceText); ok {
			link.Price = &price
		}
	}
	return link, true
}

// parsePriceString вытаскивает число из строк вида "10 500 000 ₽".
func parsePriceString(s string) (int64, bool) {
	var digits strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}
	price, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

func buildPageURL(sourceURL string, page int) (string, error) {
	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return "", err
	}
	query := parsed.Query()
	query.Set("p", strconv.Itoa(page))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
