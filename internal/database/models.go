package database

import (
	"time"

	"github.com/jon4hz/catalogsync/internal/catalog"
)

// CatalogItem is a movie or show. (external_id, media_type) is the natural key.
// Negative external ids are reserved for manually created records.
type CatalogItem struct {
	ID               uint              `gorm:"primaryKey"`
	ExternalID       int               `gorm:"not null;uniqueIndex:idx_catalog_items_natural_key,priority:1"`
	MediaType        catalog.MediaType `gorm:"type:text;not null;uniqueIndex:idx_catalog_items_natural_key,priority:2;index"`
	Title            string            `gorm:"not null"`
	Overview         *string
	PosterPath       *string
	BackdropPath     *string
	OriginalLanguage *string
	Popularity       float64 `gorm:"not null;default:0;index"`
	VoteAverage      float64 `gorm:"not null;default:0;index"`
	VoteCount        int     `gorm:"not null;default:0"`
	ReleaseDate      *string `gorm:"index"`
	ReleaseYear      *int
	LastAirDate      *string
	RuntimeMin       *int
	Genres           []Genre          `gorm:"many2many:item_genres;constraint:OnDelete:CASCADE"`
	Cast             []CastAssignment `gorm:"constraint:OnDelete:CASCADE"`
	Seasons          []Season         `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time
	UpdatedAt        time.Time `gorm:"index"`
}

// Genre is a shared genre. ExternalID is nil for locally created genres.
type Genre struct {
	ID         uint   `gorm:"primaryKey"`
	ExternalID *int   `gorm:"uniqueIndex"`
	Name       string `gorm:"not null;uniqueIndex"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Person is a cast member.
type Person struct {
	ID           uint   `gorm:"primaryKey"`
	ExternalID   int    `gorm:"not null;uniqueIndex"`
	Name         string `gorm:"not null"`
	ProfilePath  *string
	Birthday     *string
	Deathday     *string
	PlaceOfBirth *string
	Biography    *string
	ImdbID       *string
	InstagramID  *string
	TwitterID    *string
	FacebookID   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName keeps the plural people instead of persons.
func (Person) TableName() string { return "people" }

// CastAssignment links a person to an item, unique per (item, person).
type CastAssignment struct {
	ID            uint `gorm:"primaryKey"`
	CatalogItemID uint `gorm:"not null;uniqueIndex:idx_cast_item_person,priority:1"`
	PersonID      uint `gorm:"not null;uniqueIndex:idx_cast_item_person,priority:2;index"`
	Person        Person `gorm:"constraint:OnDelete:CASCADE"`
	Character     *string
	Order         int `gorm:"column:cast_order;not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Season is a show season, unique per (show, season_number).
type Season struct {
	ID            uint `gorm:"primaryKey"`
	CatalogItemID uint `gorm:"not null;uniqueIndex:idx_season_show_number,priority:1"`
	Number        int  `gorm:"column:season_number;not null;uniqueIndex:idx_season_show_number,priority:2"`
	Title         *string
	AirDate       *string
	Episodes      []Episode `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Episode is a season episode, unique per (season, episode_number).
type Episode struct {
	ID         uint `gorm:"primaryKey"`
	SeasonID   uint `gorm:"not null;uniqueIndex:idx_episode_season_number,priority:1"`
	Number     int  `gorm:"column:episode_number;not null;uniqueIndex:idx_episode_season_number,priority:2"`
	Title      *string
	AirDate    *string
	RuntimeMin *int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// KPI is a precomputed aggregate, unique per (category, name). Value holds JSON.
type KPI struct {
	ID         uint      `gorm:"primaryKey"`
	Category   string    `gorm:"not null;uniqueIndex:idx_kpi_category_name,priority:1;index"`
	Name       string    `gorm:"not null;uniqueIndex:idx_kpi_category_name,priority:2"`
	Value      string    `gorm:"type:text;not null"`
	ComputedAt time.Time `gorm:"not null"`
}

// TableName returns the KPI table read by the query API.
func (KPI) TableName() string { return "precomputed_kpis" }
