package domain

// PriceSample — одно наблюдение цены за метр для пересчёта рыночных корзин.
type PriceSample struct {
	MetroName    *string
	RoomsCount   *int
	PropertyType PropertyType
	PricePerM2   float64
}

// ProductionListing — витрина для потребителей: одобренное объявление
// с деталями, текущей ценой и оценкой. Единственная поверхность чтения
// для внешних слоёв.
type ProductionListing struct {
	Listing Listing        `json:"listing"`
	Details ListingDetails `json:"details"`
	Price   PricePoint     `json:"current_price"`
	Score   *Score         `json:"score,omitempty"`
}
