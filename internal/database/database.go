package database

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jon4hz/catalogsync/internal/config"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Client wraps the gorm.DB instance of the catalog store.
type Client struct {
	db *gorm.DB
}

// New opens the catalog store and performs migrations.
func New(cfg *config.DatabaseConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(DSN(cfg)), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	if err := db.AutoMigrate(
		&Genre{},
		&CatalogItem{},
		&Person{},
		&CastAssignment{},
		&Season{},
		&Episode{},
		&KPI{},
		&User{},
		&Review{},
		&Discussion{},
		&Comment{},
		&Watchlist{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Client{db: db}, nil
}

// DSN builds the sqlite connection string with the lock wait timeout,
// journal mode and foreign keys applied to every pooled connection.
func DSN(cfg *config.DatabaseConfig) string {
	params := url.Values{}
	params.Add("_pragma", "foreign_keys(1)")
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	if cfg.EnableWAL {
		params.Add("_pragma", "journal_mode(WAL)")
		params.Add("_pragma", "synchronous(NORMAL)")
	}
	return cfg.Path + "?" + params.Encode()
}

// InTx runs fn inside one transaction. The Client passed to fn is bound to
// the transaction; fn returning an error rolls everything back.
func (c *Client) InTx(ctx context.Context, fn func(tx *Client) error) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Client{db: tx})
	})
}

// Ping checks that the store is reachable.
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Query runs a read-only SQL statement and scans the rows into dest.
func (c *Client) Query(ctx context.Context, dest any, query string, args ...any) error {
	return c.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error
}
