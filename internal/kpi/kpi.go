// Package kpi materializes read-side aggregates over the catalog and the
// activity tables of the query API.
package kpi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/catalogsync/internal/database"
	"github.com/jon4hz/catalogsync/internal/metrics"
	"github.com/samber/lo"
)

// Store is the part of the catalog store the aggregator needs.
type Store interface {
	Query(ctx context.Context, dest any, query string, args ...any) error
	InTx(ctx context.Context, fn func(tx *database.Client) error) error
}

// Aggregator computes and stores every KPI category.
type Aggregator struct {
	db  Store
	now func() time.Time
}

// Result is the outcome of a KPI computation.
type Result struct {
	Computed int               `json:"kpis_computed"`
	Errors   map[string]string `json:"errors,omitempty"`
	Duration time.Duration     `json:"duration"`
}

// New creates an aggregator over the catalog store.
func New(db Store) *Aggregator {
	return &Aggregator{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Categories returns the category names in computation order.
func Categories() []string {
	return lo.Map(categories, func(c category, _ int) string { return c.name })
}

// Compute recomputes every category. A failing category is recorded in the
// result and does not stop the others; the returned error joins all
// category failures.
func (a *Aggregator) Compute(ctx context.Context) (*Result, error) {
	return a.compute(ctx, categories)
}

// ComputeCategory recomputes a single category.
func (a *Aggregator) ComputeCategory(ctx context.Context, name string) (*Result, error) {
	c, ok := lo.Find(categories, func(c category) bool { return c.name == name })
	if !ok {
		return nil, fmt.Errorf("unknown kpi category %q", name)
	}
	return a.compute(ctx, []category{c})
}

func (a *Aggregator) compute(ctx context.Context, cats []category) (*Result, error) {
	start := time.Now()
	res := &Result{}
	var errs []error

	for _, c := range cats {
		n, err := a.computeCategory(ctx, c)
		if err != nil {
			log.Error("failed to compute kpi category", "category", c.name, "error", err)
			metrics.KPIErrorsTotal.WithLabelValues(c.name).Inc()
			if res.Errors == nil {
				res.Errors = make(map[string]string)
			}
			res.Errors[c.name] = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			continue
		}
		log.Debug("computed kpi category", "category", c.name, "kpis", n)
		res.Computed += n
	}

	res.Duration = time.Since(start)
	metrics.KPIsComputed.Set(float64(res.Computed))
	log.Info("KPI computation finished", "computed", res.Computed, "failed_categories", len(errs), "duration", res.Duration)
	return res, errors.Join(errs...)
}

// computeCategory evaluates every query of a category first and writes the
// values in one transaction, so a category is stored completely or not at all.
func (a *Aggregator) computeCategory(ctx context.Context, c category) (int, error) {
	now := a.now()
	values := make(map[string]any, len(c.queries))

	for _, q := range c.queries {
		var args []any
		if q.args != nil {
			args = q.args(now)
		}

		rows := make([]map[string]any, 0)
		if err := a.db.Query(ctx, &rows, q.sql, args...); err != nil {
			return 0, fmt.Errorf("failed to compute %s: %w", q.name, err)
		}

		if q.single {
			if len(rows) == 0 {
				values[q.name] = map[string]any{}
			} else {
				values[q.name] = rows[0]
			}
			continue
		}
		values[q.name] = rows
	}

	err := a.db.InTx(ctx, func(tx *database.Client) error {
		for _, q := range c.queries {
			if err := tx.UpsertKPI(ctx, c.name, q.name, values[q.name], now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(c.queries), nil
}
