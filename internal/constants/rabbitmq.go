package constants

// Имена очередей
const (
	QueueDetailTasks = "listing_detail_tasks"
)

// Ключи маршрутизации
const (
	RoutingKeyDetailTasks = "cian.details.tasks"
)

// Обменники
const (
	ExchangeCianTasks = "cian_tasks"
)
