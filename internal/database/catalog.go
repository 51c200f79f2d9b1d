package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/catalogsync/internal/catalog"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertResult tells whether an upsert created or updated a row.
type UpsertResult int

const (
	Inserted UpsertResult = iota + 1
	Updated
)

func (r UpsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// personMergeColumns are filled from the new record only when it has a value.
var personMergeColumns = []string{
	"profile_path",
	"birthday",
	"deathday",
	"place_of_birth",
	"biography",
	"imdb_id",
	"instagram_id",
	"twitter_id",
	"facebook_id",
}

// UpsertGenres stores the shared genre vocabulary keyed on the upstream id.
// A locally created genre with the same name adopts the upstream id.
func (c *Client) UpsertGenres(ctx context.Context, genres []catalog.Genre) (int, error) {
	synced := 0
	err := c.InTx(ctx, func(tx *Client) error {
		for _, g := range genres {
			if _, err := tx.ensureGenre(ctx, g, true); err != nil {
				return err
			}
			synced++
		}
		return nil
	})
	if err != nil {
		log.Error("failed to upsert genres", "error", err)
		return 0, err
	}
	return synced, nil
}

// ensureGenre finds a genre by upstream id, then by name, and creates it
// when neither exists. rename overwrites the stored name with the upstream one.
func (c *Client) ensureGenre(ctx context.Context, g catalog.Genre, rename bool) (*Genre, error) {
	db := c.db.WithContext(ctx)

	var genre Genre
	err := db.Where("external_id = ?", g.ExternalID).First(&genre).Error
	if err == nil {
		if rename && genre.Name != g.Name {
			if err := db.Model(&genre).Update("name", g.Name).Error; err != nil {
				return nil, fmt.Errorf("failed to rename genre %d: %w", g.ExternalID, err)
			}
		}
		return &genre, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	err = db.Where("name = ?", g.Name).First(&genre).Error
	if err == nil {
		if genre.ExternalID == nil {
			if err := db.Model(&genre).Update("external_id", g.ExternalID).Error; err != nil {
				return nil, fmt.Errorf("failed to adopt genre %q: %w", g.Name, err)
			}
		}
		return &genre, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	genre = Genre{ExternalID: lo.ToPtr(g.ExternalID), Name: g.Name}
	if err := db.Create(&genre).Error; err != nil {
		return nil, fmt.Errorf("failed to create genre %q: %w", g.Name, err)
	}
	return &genre, nil
}

// UpsertItem inserts or updates an item matched on (external_id, media_type).
// Descriptive fields are overwritten; the natural key never changes.
func (c *Client) UpsertItem(ctx context.Context, item catalog.Item) (*CatalogItem, UpsertResult, error) {
	if item.ExternalID <= 0 {
		return nil, 0, fmt.Errorf("invalid upstream id %d", item.ExternalID)
	}
	if item.Title == "" {
		return nil, 0, fmt.Errorf("%s %d has no title", item.MediaType, item.ExternalID)
	}

	db := c.db.WithContext(ctx)

	var count int64
	if err := db.Model(&CatalogItem{}).
		Where("external_id = ? AND media_type = ?", item.ExternalID, item.MediaType).
		Count(&count).Error; err != nil {
		log.Error("failed to look up catalog item", "error", err)
		return nil, 0, err
	}

	row := CatalogItem{
		ExternalID:       item.ExternalID,
		MediaType:        item.MediaType,
		Title:            item.Title,
		Overview:         item.Overview,
		PosterPath:       item.PosterPath,
		BackdropPath:     item.BackdropPath,
		OriginalLanguage: item.OriginalLanguage,
		Popularity:       item.Popularity,
		VoteAverage:      item.VoteAverage,
		VoteCount:        item.VoteCount,
		ReleaseDate:      item.ReleaseDate,
		ReleaseYear:      item.ReleaseYear,
		LastAirDate:      item.LastAirDate,
		RuntimeMin:       item.RuntimeMin,
	}

	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}, {Name: "media_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title",
			"overview",
			"poster_path",
			"backdrop_path",
			"original_language",
			"popularity",
			"vote_average",
			"vote_count",
			"release_date",
			"release_year",
			"last_air_date",
			"runtime_min",
			"updated_at",
		}),
	}).Omit(clause.Associations).Create(&row).Error; err != nil {
		log.Error("failed to upsert catalog item", "error", err)
		return nil, 0, err
	}

	var stored CatalogItem
	if err := db.Where("external_id = ? AND media_type = ?", item.ExternalID, item.MediaType).
		First(&stored).Error; err != nil {
		return nil, 0, err
	}

	if count > 0 {
		return &stored, Updated, nil
	}
	return &stored, Inserted, nil
}

// LinkGenres replaces the genre links of an item. Unknown genres are created.
func (c *Client) LinkGenres(ctx context.Context, item *CatalogItem, genres []catalog.Genre) error {
	linked := make([]Genre, 0, len(genres))
	for _, g := range genres {
		genre, err := c.ensureGenre(ctx, g, false)
		if err != nil {
			return err
		}
		linked = append(linked, *genre)
	}
	linked = lo.UniqBy(linked, func(g Genre) uint { return g.ID })

	if err := c.db.WithContext(ctx).Model(item).Association("Genres").Replace(linked); err != nil {
		log.Error("failed to link genres", "error", err)
		return err
	}
	return nil
}

// UpsertPerson inserts a person or merges into the existing row. The name
// is always overwritten; every other field keeps its stored value when the
// new record has none.
func (c *Client) UpsertPerson(ctx context.Context, p catalog.Person) (*Person, error) {
	if p.ExternalID <= 0 {
		return nil, fmt.Errorf("invalid person id %d", p.ExternalID)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("person %d has no name", p.ExternalID)
	}

	db := c.db.WithContext(ctx)

	row := Person{
		ExternalID:   p.ExternalID,
		Name:         p.Name,
		ProfilePath:  p.ProfilePath,
		Birthday:     p.Birthday,
		Deathday:     p.Deathday,
		PlaceOfBirth: p.PlaceOfBirth,
		Biography:    p.Biography,
		ImdbID:       p.ImdbID,
		InstagramID:  p.InstagramID,
		TwitterID:    p.TwitterID,
		FacebookID:   p.FacebookID,
	}

	assignments := map[string]any{
		"name":       gorm.Expr("excluded.name"),
		"updated_at": gorm.Expr("excluded.updated_at"),
	}
	for _, col := range personMergeColumns {
		assignments[col] = gorm.Expr(fmt.Sprintf("COALESCE(excluded.%s, people.%s)", col, col))
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&row).Error; err != nil {
		log.Error("failed to upsert person", "error", err)
		return nil, err
	}

	var stored Person
	if err := db.Where("external_id = ?", p.ExternalID).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// AttachCast links a person to an item. A repeated pairing updates the
// character and order.
func (c *Client) AttachCast(ctx context.Context, item *CatalogItem, person *Person, character *string, order int) error {
	row := CastAssignment{
		CatalogItemID: item.ID,
		PersonID:      person.ID,
		Character:     character,
		Order:         order,
	}
	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "catalog_item_id"}, {Name: "person_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"character", "cast_order", "updated_at"}),
	}).Omit(clause.Associations).Create(&row).Error; err != nil {
		log.Error("failed to attach cast", "error", err)
		return err
	}
	return nil
}

// UpsertSeason stores a season of a show, unique per season number.
func (c *Client) UpsertSeason(ctx context.Context, show *CatalogItem, s catalog.Season) (*Season, error) {
	if show.MediaType != catalog.MediaTypeShow {
		return nil, fmt.Errorf("item %d is not a show", show.ExternalID)
	}

	db := c.db.WithContext(ctx)
	row := Season{
		CatalogItemID: show.ID,
		Number:        s.Number,
		Title:         s.Title,
		AirDate:       s.AirDate,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "catalog_item_id"}, {Name: "season_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "air_date", "updated_at"}),
	}).Omit(clause.Associations).Create(&row).Error; err != nil {
		log.Error("failed to upsert season", "error", err)
		return nil, err
	}

	var stored Season
	if err := db.Where("catalog_item_id = ? AND season_number = ?", show.ID, s.Number).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// UpsertEpisode stores an episode of a season, unique per episode number.
func (c *Client) UpsertEpisode(ctx context.Context, season *Season, e catalog.Episode) error {
	row := Episode{
		SeasonID:   season.ID,
		Number:     e.Number,
		Title:      e.Title,
		AirDate:    e.AirDate,
		RuntimeMin: e.RuntimeMin,
	}
	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "season_id"}, {Name: "episode_number"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "air_date", "runtime_min", "updated_at"}),
	}).Create(&row).Error; err != nil {
		log.Error("failed to upsert episode", "error", err)
		return err
	}
	return nil
}

// GetItem returns an item by its natural key.
func (c *Client) GetItem(ctx context.Context, mediaType catalog.MediaType, externalID int) (*CatalogItem, error) {
	var item CatalogItem
	if err := c.db.WithContext(ctx).
		Preload("Genres").
		Preload("Cast.Person").
		Preload("Seasons.Episodes").
		Where("external_id = ? AND media_type = ?", externalID, mediaType).
		First(&item).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("failed to get catalog item", "error", err)
		}
		return nil, err
	}
	return &item, nil
}

// GetPerson returns a person by upstream id.
func (c *Client) GetPerson(ctx context.Context, externalID int) (*Person, error) {
	var p Person
	if err := c.db.WithContext(ctx).Where("external_id = ?", externalID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}
