package database

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"gorm.io/gorm/clause"
)

// UpsertKPI stores value as JSON under (category, name), replacing any
// previous value and stamping the computation time.
func (c *Client) UpsertKPI(ctx context.Context, category, name string, value any, computedAt time.Time) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}

	row := KPI{
		Category:   category,
		Name:       name,
		Value:      string(raw),
		ComputedAt: computedAt,
	}
	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "category"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "computed_at"}),
	}).Create(&row).Error; err != nil {
		log.Error("failed to upsert kpi", "category", category, "name", name, "error", err)
		return err
	}
	return nil
}

// GetKPI returns a single KPI.
func (c *Client) GetKPI(ctx context.Context, category, name string) (*KPI, error) {
	var k KPI
	if err := c.db.WithContext(ctx).
		Where("category = ? AND name = ?", category, name).
		First(&k).Error; err != nil {
		return nil, err
	}
	return &k, nil
}

// GetKPIsByCategory returns all KPIs of a category ordered by name.
func (c *Client) GetKPIsByCategory(ctx context.Context, category string) ([]KPI, error) {
	var kpis []KPI
	if err := c.db.WithContext(ctx).
		Where("category = ?", category).
		Order("name").
		Find(&kpis).Error; err != nil {
		log.Error("failed to get kpis", "category", category, "error", err)
		return nil, err
	}
	return kpis, nil
}

// Decode unmarshals the stored JSON value into v.
func (k *KPI) Decode(v any) error {
	return json.Unmarshal([]byte(k.Value), v)
}
