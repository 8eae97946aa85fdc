package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/chronograph"
	"github.com/soundprediction/chronograph/pkg/server/dto"
	"github.com/soundprediction/chronograph/pkg/types"
)

// TemporalHandler serves snapshots, the change journal, and point-in-time
// reconstruction.
type TemporalHandler struct {
	engine *chronograph.Engine
}

// NewTemporalHandler creates a new temporal handler.
func NewTemporalHandler(engine *chronograph.Engine) *TemporalHandler {
	return &TemporalHandler{engine: engine}
}

// CreateSnapshot handles POST /api/v1/tenants/:tenant_id/snapshots
func (h *TemporalHandler) CreateSnapshot(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	// An empty body means a snapshot without metadata.
	var req dto.SnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		errorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	snapshot, err := h.engine.Snapshot(c.Request.Context(), tenantID, req.Metadata)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "snapshot_failed", err.Error())
		return
	}
	c.JSON(http.StatusCreated, snapshot)
}

// ListSnapshots handles GET /api/v1/tenants/:tenant_id/snapshots
func (h *TemporalHandler) ListSnapshots(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	c.JSON(http.StatusOK, gin.H{"snapshots": h.engine.Snapshots(tenantID)})
}

// GraphAt handles GET /api/v1/tenants/:tenant_id/graph/at?timestamp=RFC3339
func (h *TemporalHandler) GraphAt(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	raw := c.Query("timestamp")
	if raw == "" {
		errorJSON(c, http.StatusBadRequest, "invalid_request", "timestamp query parameter is required")
		return
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", "timestamp must be RFC3339")
		return
	}

	graph, err := h.engine.ReconstructAt(c.Request.Context(), tenantID, ts)
	if errors.Is(err, chronograph.ErrNoSnapshot) {
		errorJSON(c, http.StatusNotFound, "no_snapshot", "no snapshot covers the requested timestamp")
		return
	}
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "reconstruction_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, graph)
}

// ListChanges handles GET /api/v1/tenants/:tenant_id/changes
func (h *TemporalHandler) ListChanges(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	var filter chronograph.ChangeFilter
	if raw := c.Query("since"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "invalid_request", "since must be RFC3339")
			return
		}
		filter.Since = &ts
	}
	if raw := c.Query("until"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "invalid_request", "until must be RFC3339")
			return
		}
		filter.Until = &ts
	}
	if raw := c.Query("type"); raw != "" {
		changeType := types.ChangeType(raw)
		if !changeType.Valid() {
			errorJSON(c, http.StatusBadRequest, "invalid_request", "unknown change type")
			return
		}
		filter.Types = []types.ChangeType{changeType}
	}
	filter.EntityID = c.Query("entity_id")
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			errorJSON(c, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	changes := h.engine.Changes(tenantID, filter)
	c.JSON(http.StatusOK, gin.H{"changes": changes, "count": len(changes)})
}

// EntityHistory handles GET /api/v1/tenants/:tenant_id/entities/:entity_id/history
func (h *TemporalHandler) EntityHistory(c *gin.Context) {
	tenantID := c.Param("tenant_id")
	entityID := c.Param("entity_id")

	history := h.engine.EntityHistory(tenantID, entityID)
	c.JSON(http.StatusOK, gin.H{"entity_id": entityID, "changes": history, "count": len(history)})
}

// Cleanup handles POST /api/v1/tenants/:tenant_id/cleanup
func (h *TemporalHandler) Cleanup(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	removed, err := h.engine.CleanupSnapshots(c.Request.Context(), tenantID)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "cleanup_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots_removed": removed})
}
