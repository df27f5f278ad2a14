package constants

// Deal Types
const (
	DealTypeSale = "sale"
	DealTypeRent = "rent"
)

// Regions (параметр region в поисковом URL Циан)
const (
	RegionMoscow       = "1"
	RegionSaintP       = "2"
	RegionMoscowOblast = "4593"
)

// Sort Options
const (
	SortByCreationDateDesc = "creation_date_desc"
)

// Имена профилей фильтрации
const (
	ProfileDefault = "default"
	ProfilePremium = "premium"
	ProfileBargain = "bargain"
)

// PredefinedSource — предопределенный поисковый URL для первичного
// наполнения таблицы sources.
type PredefinedSource struct {
	Name string
	URL  string
}

// GetPredefinedSources возвращает стартовый набор источников.
func GetPredefinedSources() []PredefinedSource {
	return []PredefinedSource{
		{
			Name: "Москва_Продажа_Вторичка_1-2комнаты",
			URL:  "https://www.cian.ru/cat.php?deal_type=sale&engine_version=2&offer_type=flat&region=1&room1=1&room2=1&sort=" + SortByCreationDateDesc,
		},
		// {
		//     Name: "Москва_Продажа_Новостройки",
		//     URL:  "https://www.cian.ru/cat.php?deal_type=sale&engine_version=2&offer_type=flat&object_type%5B0%5D=2&region=1",
		// },
	}
}
