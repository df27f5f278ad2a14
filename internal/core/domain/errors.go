package domain

import "errors"

// Таксономия ошибок конвейера. Отказы фильтров сюда не входят:
// это ожидаемые вердикты, а не ошибки.
var (
	// ErrSourceUnavailable — источник недоступен (сеть/парсинг выдачи).
	// Ретраится на уровне цикла: источник пропускается, остальные работают.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrDetailUnavailable — временная ошибка получения страницы деталей.
	// Ретраится ограниченное число раз с экспоненциальной задержкой.
	ErrDetailUnavailable = errors.New("detail unavailable")

	// ErrDetailMalformed — страница распарсилась во внутренне противоречивые
	// данные (отрицательная площадь и т.п.). Не ретраится, объявление
	// отклоняется с причиной malformed_detail.
	ErrDetailMalformed = errors.New("detail malformed")

	// ErrBaselineUnavailable — пересчёт рыночных корзин не дал данных.
	// Судьба прежних значений определяется политикой retain-on-empty;
	// поиск падает на более грубую группировку. Никогда не фатальна.
	ErrBaselineUnavailable = errors.New("baseline unavailable")
)
