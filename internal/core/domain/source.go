package domain

import "time"

// Source — именованный поисковый URL, с которого начинается сбор.
// Источники создаются оператором и никогда не удаляются, только деактивируются.
type Source struct {
	ID           int64      `json:"-" db:"id"`
	URL          string     `json:"url" db:"url"`
	Name         string     `json:"name" db:"name"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastParsedAt *time.Time `json:"last_parsed_at,omitempty" db:"last_parsed_at"`
	CreatedAt    time.Time  `json:"-" db:"created_at"`
}

// BannedMetro — станция метро из бан-листа, глобального для всех профилей.
type BannedMetro struct {
	ID   int64  `json:"-" db:"id"`
	Name string `json:"name" db:"name"`
}
