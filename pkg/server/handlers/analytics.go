package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/chronograph"
	"github.com/soundprediction/chronograph/pkg/analytics"
	"github.com/soundprediction/chronograph/pkg/server/dto"
)

// AnalyticsHandler serves diffs, timelines, growth, and pattern queries.
type AnalyticsHandler struct {
	engine *chronograph.Engine
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(engine *chronograph.Engine) *AnalyticsHandler {
	return &AnalyticsHandler{engine: engine}
}

// Diff handles GET /api/v1/tenants/:tenant_id/analytics/diff?before=&after=
func (h *AnalyticsHandler) Diff(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	before, err := time.Parse(time.RFC3339, c.Query("before"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", "before must be RFC3339")
		return
	}
	after, err := time.Parse(time.RFC3339, c.Query("after"))
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", "after must be RFC3339")
		return
	}

	diff, err := h.engine.DiffAt(c.Request.Context(), tenantID, before, after)
	if errors.Is(err, chronograph.ErrNoSnapshot) {
		errorJSON(c, http.StatusNotFound, "no_snapshot", "no snapshot covers the requested window")
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "diff_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, diff)
}

// Timeline handles GET /api/v1/tenants/:tenant_id/analytics/timeline?start=&end=
func (h *AnalyticsHandler) Timeline(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	window, err := dto.ParseTimeWindow(c.Query("start"), c.Query("end"), time.Now().UTC())
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	timeline, err := h.engine.Timeline(c.Request.Context(), tenantID, window.Start, window.End)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "timeline_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"timeline": timeline, "buckets": len(timeline)})
}

// Growth handles GET /api/v1/tenants/:tenant_id/analytics/growth?start=&end=
func (h *AnalyticsHandler) Growth(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	window, err := dto.ParseTimeWindow(c.Query("start"), c.Query("end"), time.Now().UTC())
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	metrics, err := h.engine.Growth(c.Request.Context(), tenantID, window.Start, window.End)
	if errors.Is(err, analytics.ErrInsufficientData) {
		errorJSON(c, http.StatusUnprocessableEntity, "insufficient_data", err.Error())
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "growth_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, metrics)
}

// Patterns handles GET /api/v1/tenants/:tenant_id/analytics/patterns?start=&end=
func (h *AnalyticsHandler) Patterns(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	window, err := dto.ParseTimeWindow(c.Query("start"), c.Query("end"), time.Now().UTC())
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	patterns, err := h.engine.EmergingPatterns(c.Request.Context(), tenantID, window.Start, window.End)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "patterns_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"patterns": patterns, "count": len(patterns)})
}
