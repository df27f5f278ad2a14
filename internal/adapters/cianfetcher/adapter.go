package cianfetcher

import (
	"log"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"
)

// CianFetcherAdapter отвечает за все взаимодействия с сайтом Циан.
// Инкапсулирует настроенный colly.Collector.
type CianFetcherAdapter struct {
	// Родительский коллектор, разделяющий лимиты между клонами.
	collector *colly.Collector
}

// NewCianFetcherAdapter — единый конструктор адаптера.
// randomDelay задаёт верхнюю границу случайной паузы между запросами.
func NewCianFetcherAdapter(allowedDomains []string, randomDelay time.Duration) *CianFetcherAdapter {
	c := colly.NewCollector(colly.AllowedDomains(allowedDomains...))

	// Параллелизм HTTP-запросов равен 1: реальный параллелизм достигается
	// воркерами очереди, а коллектор выстраивает их вызовы в одну
	// последовательную "вежливую" очередь к сайту.
	err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*cian.ru*",
		Parallelism: 1,
		RandomDelay: randomDelay,
	})
	if err != nil {
		// Ошибка в базовых настройках критична, работать дальше нельзя.
		log.Fatalf("CianFetcherAdapter: Failed to set limit rule: %v", err)
	}

	// Случайный User-Agent и Referer на каждый запрос.
	extensions.RandomUserAgent(c)
	extensions.Referer(c)

	c.OnError(func(r *colly.Response, err error) {
		log.Printf("CianFetcherAdapter: Error during request to %s: Status=%d, Error=%v", r.Request.URL, r.StatusCode, err)
	})
	c.OnRequest(func(r *colly.Request) {
		log.Printf("CianFetcherAdapter: Making request to %s", r.URL.String())
	})

	return &CianFetcherAdapter{collector: c}
}
