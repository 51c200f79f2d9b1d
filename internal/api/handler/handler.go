package handler

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/jon4hz/catalogsync/internal/database"
	"github.com/jon4hz/catalogsync/internal/engine"
	"github.com/jon4hz/catalogsync/internal/kpi"
	"github.com/jon4hz/catalogsync/internal/monitor"
	"gorm.io/gorm"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 100
	defaultDays     = 7
	maxDays         = 365
)

type Handler struct {
	engine  *engine.Engine
	monitor *monitor.Monitor
	db      *database.Client
}

func New(eng *engine.Engine, mon *monitor.Monitor, db *database.Client) *Handler {
	return &Handler{
		engine:  eng,
		monitor: mon,
		db:      db,
	}
}

// Health reports whether the catalog store is reachable.
func (h *Handler) Health(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		log.Error("Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Status(c *gin.Context) {
	status, err := h.engine.Status(c.Request.Context())
	if err != nil {
		log.Error("Failed to get scheduler status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to get status",
		})
		return
	}
	c.JSON(http.StatusOK, status)
}

// TriggerRun starts a sync run outside the schedule.
func (h *Handler) TriggerRun(c *gin.Context) {
	if err := h.engine.TriggerNow(); err != nil {
		if errors.Is(err, engine.ErrRunInProgress) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
		log.Error("Failed to trigger sync run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to trigger sync run",
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Sync run triggered",
	})
}

func (h *Handler) ListRuns(c *gin.Context) {
	limit, ok := intQuery(c, "limit", defaultRunLimit, maxRunLimit)
	if !ok {
		return
	}

	runs, err := h.monitor.RecentRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to get runs",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun returns a run together with its error events.
func (h *Handler) GetRun(c *gin.Context) {
	id, err := parseUintParam(c.Param("id"))
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Invalid run id",
		})
		return
	}

	ctx := c.Request.Context()
	run, err := h.monitor.GetRun(ctx, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error":   "Run not found",
			})
			return
		}
		log.Error("Failed to get run", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to get run",
		})
		return
	}

	errs, err := h.monitor.RunErrors(ctx, run.ID)
	if err != nil {
		log.Error("Failed to get run errors", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to get run errors",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run, "errors": errs})
}

func (h *Handler) Statistics(c *gin.Context) {
	days, ok := intQuery(c, "days", defaultDays, maxDays)
	if !ok {
		return
	}

	stats, err := h.monitor.Statistics(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to get statistics",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"statistics":   stats,
		"success_rate": stats.SuccessRate(),
	})
}

func (h *Handler) ErrorSummary(c *gin.Context) {
	days, ok := intQuery(c, "days", defaultDays, maxDays)
	if !ok {
		return
	}

	summary, err := h.monitor.ErrorSummary(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to get error summary",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "errors": summary})
}

type kpiResponse struct {
	Name       string          `json:"name"`
	Value      json.RawMessage `json:"value"`
	ComputedAt time.Time       `json:"computed_at"`
}

// KPIs returns every stored KPI of a category.
func (h *Handler) KPIs(c *gin.Context) {
	category := c.Param("category")
	if !slices.Contains(kpi.Categories(), category) {
		c.JSON(http.StatusNotFound, gin.H{
			"success":    false,
			"error":      "Unknown KPI category",
			"categories": kpi.Categories(),
		})
		return
	}

	rows, err := h.db.GetKPIsByCategory(c.Request.Context(), category)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "Failed to get KPIs",
		})
		return
	}

	kpis := make([]kpiResponse, 0, len(rows))
	for _, r := range rows {
		kpis = append(kpis, kpiResponse{
			Name:       r.Name,
			Value:      json.RawMessage(r.Value),
			ComputedAt: r.ComputedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"category": category, "kpis": kpis})
}

// intQuery reads a positive integer query parameter capped at maxValue.
// It writes a 400 response and returns false on invalid input.
func intQuery(c *gin.Context, name string, def, maxValue int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	p, err := parseUintParam(raw)
	if err == nil && p > 0 {
		var v int
		if v, err = safecast.ToInt(p); err == nil {
			return min(v, maxValue), true
		}
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "Invalid " + name + " parameter",
	})
	return 0, false
}

func parseUintParam(s string) (uint64, error) {
	return strconv.ParseUint(s, 10, 64)
}
