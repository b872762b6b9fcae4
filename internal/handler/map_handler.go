package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tripmate/service-routemap/internal/application"
	"github.com/tripmate/service-routemap/internal/bridge"
	"github.com/tripmate/service-routemap/internal/common/response"
)

// MapHandler exposes mounted map sessions.
type MapHandler struct {
	service *application.MapService
}

// NewMapHandler creates a new MapHandler.
func NewMapHandler(service *application.MapService) *MapHandler {
	return &MapHandler{service: service}
}

// RegisterRoutes registers all map session routes.
func (h *MapHandler) RegisterRoutes(r *gin.RouterGroup) {
	sessions := r.Group("/api/v1/map/sessions")
	{
		sessions.POST("", h.OpenSession)
		sessions.GET("/:id", h.GetSession)
		sessions.PUT("/:id/selection", h.ChangeSelection)
		sessions.GET("/:id/geojson", h.GeoJSON)
		sessions.POST("/:id/click", h.Click)
		sessions.POST("/:id/events", h.IngestEvent)
		sessions.PUT("/:id/location", h.ReportLocation)
		sessions.DELETE("/:id", h.CloseSession)
	}
}

// OpenSession handles POST /api/v1/map/sessions.
func (h *MapHandler) OpenSession(c *gin.Context) {
	var req application.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.OpenSession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetSession handles GET /api/v1/map/sessions/:id.
func (h *MapHandler) GetSession(c *gin.Context) {
	result, err := h.service.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// ChangeSelection handles PUT /api/v1/map/sessions/:id/selection.
func (h *MapHandler) ChangeSelection(c *gin.Context) {
	var req application.SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.ChangeSelection(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GeoJSON handles GET /api/v1/map/sessions/:id/geojson. The body is the
// bare FeatureCollection so map clients can load it directly.
func (h *MapHandler) GeoJSON(c *gin.Context) {
	raw, err := h.service.GeoJSON(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Data(http.StatusOK, "application/geo+json", raw)
}

// Click handles POST /api/v1/map/sessions/:id/click.
func (h *MapHandler) Click(c *gin.Context) {
	var req application.ClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.service.Click(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, gin.H{"index": *req.Index})
}

// IngestEvent handles POST /api/v1/map/sessions/:id/events.
func (h *MapHandler) IngestEvent(c *gin.Context) {
	var ev bridge.Event
	if err := c.ShouldBindJSON(&ev); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.service.IngestEvent(c.Request.Context(), c.Param("id"), ev); err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, gin.H{"type": ev.Type})
}

// ReportLocation handles PUT /api/v1/map/sessions/:id/location.
func (h *MapHandler) ReportLocation(c *gin.Context) {
	var req application.LocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.service.ReportLocation(c.Request.Context(), c.Param("id"), req); err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, gin.H{"permission_granted": req.PermissionGranted})
}

// CloseSession handles DELETE /api/v1/map/sessions/:id.
func (h *MapHandler) CloseSession(c *gin.Context) {
	if err := h.service.CloseSession(c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
