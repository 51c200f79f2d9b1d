package database

import (
	"context"
	"time"
)

// The tables below belong to the query API. They are declared here so the
// KPI aggregator can read them and so a fresh store has them; the sync
// pipeline never writes to them.

// User is an application account.
type User struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
}

// Review is a user rating of a catalog item.
type Review struct {
	ID            uint `gorm:"primaryKey"`
	UserID        uint `gorm:"not null;index"`
	CatalogItemID uint `gorm:"not null;index"`
	Rating        *float64
	Body          string
	CreatedAt     time.Time `gorm:"index"`
}

// Discussion is a thread about a catalog item.
type Discussion struct {
	ID            uint `gorm:"primaryKey"`
	UserID        uint `gorm:"not null;index"`
	CatalogItemID uint `gorm:"not null;index"`
	Title         string
	CreatedAt     time.Time `gorm:"index"`
}

// Comment is a reply in a discussion.
type Comment struct {
	ID           uint `gorm:"primaryKey"`
	DiscussionID uint `gorm:"not null;index"`
	UserID       uint `gorm:"not null;index"`
	Body         string
	CreatedAt    time.Time `gorm:"index"`
}

// Watchlist is a catalog item saved by a user.
type Watchlist struct {
	ID            uint      `gorm:"primaryKey"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_watchlist_user_item,priority:1"`
	CatalogItemID uint      `gorm:"not null;uniqueIndex:idx_watchlist_user_item,priority:2;index"`
	AddedAt       time.Time `gorm:"not null;index"`
}

// Create inserts activity rows written outside the sync pipeline.
func (c *Client) Create(ctx context.Context, value any) error {
	return c.db.WithContext(ctx).Create(value).Error
}
