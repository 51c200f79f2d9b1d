package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/catalogsync/internal/catalog"
)

// CleanupResult holds the number of rows removed per table.
type CleanupResult struct {
	Items    int64 `json:"items"`
	Cast     int64 `json:"cast"`
	Seasons  int64 `json:"seasons"`
	Episodes int64 `json:"episodes"`
	Links    int64 `json:"genre_links"`
}

// Total returns the number of rows removed.
func (r CleanupResult) Total() int64 {
	return r.Items + r.Cast + r.Seasons + r.Episodes + r.Links
}

// CleanupStale removes items not updated since before, together with
// their cast, seasons, episodes and genre links. People and genres are kept.
func (c *Client) CleanupStale(ctx context.Context, before time.Time) (CleanupResult, error) {
	var res CleanupResult
	before = before.UTC()
	const staleItems = "SELECT id FROM catalog_items WHERE updated_at < ?"

	err := c.InTx(ctx, func(tx *Client) error {
		db := tx.db.WithContext(ctx)

		r := db.Exec("DELETE FROM episodes WHERE season_id IN (SELECT id FROM seasons WHERE catalog_item_id IN ("+staleItems+"))", before)
		if r.Error != nil {
			return r.Error
		}
		res.Episodes = r.RowsAffected

		r = db.Exec("DELETE FROM seasons WHERE catalog_item_id IN ("+staleItems+")", before)
		if r.Error != nil {
			return r.Error
		}
		res.Seasons = r.RowsAffected

		r = db.Exec("DELETE FROM cast_assignments WHERE catalog_item_id IN ("+staleItems+")", before)
		if r.Error != nil {
			return r.Error
		}
		res.Cast = r.RowsAffected

		r = db.Exec("DELETE FROM item_genres WHERE catalog_item_id IN ("+staleItems+")", before)
		if r.Error != nil {
			return r.Error
		}
		res.Links = r.RowsAffected

		r = db.Exec("DELETE FROM catalog_items WHERE updated_at < ?", before)
		if r.Error != nil {
			return r.Error
		}
		res.Items = r.RowsAffected
		return nil
	})
	if err != nil {
		log.Error("failed to clean up stale items", "error", err)
		return CleanupResult{}, err
	}
	return res, nil
}

// Vacuum compacts the store. It cannot run inside a transaction.
func (c *Client) Vacuum(ctx context.Context) error {
	if err := c.db.WithContext(ctx).Exec("VACUUM").Error; err != nil {
		log.Error("failed to vacuum database", "error", err)
		return err
	}
	return nil
}

// Counts summarizes the catalog store.
type Counts struct {
	Movies   int64 `json:"movies"`
	Shows    int64 `json:"shows"`
	People   int64 `json:"people"`
	Genres   int64 `json:"genres"`
	Seasons  int64 `json:"seasons"`
	Episodes int64 `json:"episodes"`
	KPIs     int64 `json:"kpis"`
}

// CountItems returns the number of stored items of a media type.
func (c *Client) CountItems(ctx context.Context, mediaType catalog.MediaType) (int64, error) {
	var n int64
	err := c.db.WithContext(ctx).Model(&CatalogItem{}).Where("media_type = ?", mediaType).Count(&n).Error
	return n, err
}

// GetCounts returns row counts for the main catalog tables.
func (c *Client) GetCounts(ctx context.Context) (*Counts, error) {
	var counts Counts
	var err error

	if counts.Movies, err = c.CountItems(ctx, catalog.MediaTypeMovie); err != nil {
		return nil, err
	}
	if counts.Shows, err = c.CountItems(ctx, catalog.MediaTypeShow); err != nil {
		return nil, err
	}

	db := c.db.WithContext(ctx)
	for model, dst := range map[any]*int64{
		&Person{}:  &counts.People,
		&Genre{}:   &counts.Genres,
		&Season{}:  &counts.Seasons,
		&Episode{}: &counts.Episodes,
		&KPI{}:     &counts.KPIs,
	} {
		if err := db.Model(model).Count(dst).Error; err != nil {
			log.Error("failed to count rows", "error", err)
			return nil, err
		}
	}
	return &counts, nil
}
