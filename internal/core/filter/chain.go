package filter

import (
	"context"
	"time"
)

// Executed — вердикт одного выполненного фильтра, в порядке выполнения.
type Executed struct {
	FilterName string
	Verdict    Verdict
	CheckedAt  time.Time
}

// Outcome — итог прогона цепочки по одному объявлению.
type Outcome struct {
	Approved bool
	// PrimaryReason — причина первого отказа ("FilterName: code"),
	// пустая строка при одобрении.
	PrimaryReason string
	// Executed — вердикты всех выполненных фильтров, включая прошедшие.
	Executed []Executed
	// FastTracked выставляется при автоодобрении по просмотрам.
	FastTracked bool
}

// Chain — фиксированная упорядоченная цепочка фильтров. Обрывается на
// первом отказе, но вердикты всех выполненных фильтров сохраняются.
type Chain struct {
	cfg     Config
	filters []Filter
}

// NewChain собирает цепочку в порядке: дубликаты -> цена -> рынок ->
// метро -> характеристики -> качество. Рыночный фильтр включается
// флагом профиля.
func NewChain(cfg Config) *Chain {
	filters := []Filter{
		DuplicateFilter{cfg: cfg},
		PriceFilter{cfg: cfg},
	}
	if cfg.EnableMarketFilter {
		filters = append(filters, MarketFilter{cfg: cfg})
	}
	filters = append(filters,
		MetroFilter{cfg: cfg},
		CharacteristicsFilter{cfg: cfg},
		QualityFilter{cfg: cfg},
	)
	return &Chain{cfg: cfg, filters: filters}
}

// ProfileName возвращает имя профиля, которым собрана цепочка.
func (c *Chain) ProfileName() string { return c.cfg.Name }

// Run прогоняет объявление через цепочку. Ошибка возможна только
// инфраструктурная; отказы фильтров возвращаются как часть Outcome.
func (c *Chain) Run(ctx context.Context, in Input) (Outcome, error) {
	outcome := Outcome{}
	now := time.Now().UTC()

	for _, f := range c.filters {
		verdict, err := f.Check(ctx, in)
		if err != nil {
			return Outcome{}, err
		}
		outcome.Executed = append(outcome.Executed, Executed{
			FilterName: f.Name(),
			Verdict:    verdict,
			CheckedAt:  now,
		})

		if !verdict.Passed {
			outcome.PrimaryReason = f.Name() + ": " + verdict.Code
			return outcome, nil
		}

		// Fast-track: после прохождения ценового фильтра очень высокий
		// дневной интерес одобряет объявление без остальных проверок.
		if f.Name() == "PriceFilter" && c.cfg.FastTrackViewsPerDay > 0 &&
			in.LatestViews != nil && in.LatestViews.ViewsToday > c.cfg.FastTrackViewsPerDay {
			outcome.Executed = append(outcome.Executed, Executed{
				FilterName: "FastTrackFilter",
				Verdict:    pass(CodeFastTrack, ""),
				CheckedAt:  now,
			})
			outcome.Approved = true
			outcome.FastTracked = true
			return outcome, nil
		}
	}

	outcome.Approved = true
	return outcome, nil
}
