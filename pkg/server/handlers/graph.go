// Package handlers implements the HTTP API endpoints.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/chronograph"
	"github.com/soundprediction/chronograph/pkg/server/dto"
)

// GraphHandler serves transformations and live graph reads.
type GraphHandler struct {
	engine *chronograph.Engine
}

// NewGraphHandler creates a new graph handler.
func NewGraphHandler(engine *chronograph.Engine) *GraphHandler {
	return &GraphHandler{engine: engine}
}

func errorJSON(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.ErrorResponse{Error: code, Message: message})
}

// Transform handles POST /api/v1/tenants/:tenant_id/transform
func (h *GraphHandler) Transform(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	var req dto.TransformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	action, err := req.ToAction()
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_action", err.Error())
		return
	}

	result, err := h.engine.Transform(c.Request.Context(), tenantID, action, req.Observation)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "transform_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetGraph handles GET /api/v1/tenants/:tenant_id/graph
func (h *GraphHandler) GetGraph(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	graph, err := h.engine.Graph(c.Request.Context(), tenantID)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	c.JSON(http.StatusOK, graph)
}

// Convergence handles GET /api/v1/tenants/:tenant_id/analytics/convergence
func (h *GraphHandler) Convergence(c *gin.Context) {
	tenantID := c.Param("tenant_id")

	report, err := h.engine.AnalyzeConvergence(c.Request.Context(), tenantID)
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, "analysis_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, report)
}
