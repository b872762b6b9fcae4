package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tripmate/service-routemap/internal/application"
	"github.com/tripmate/service-routemap/internal/common/response"
)

// ItineraryHandler handles HTTP requests for itinerary operations.
type ItineraryHandler struct {
	service *application.ItineraryService
}

// NewItineraryHandler creates a new ItineraryHandler.
func NewItineraryHandler(service *application.ItineraryService) *ItineraryHandler {
	return &ItineraryHandler{service: service}
}

// RegisterRoutes registers all itinerary routes on the given router group.
func (h *ItineraryHandler) RegisterRoutes(r *gin.RouterGroup) {
	itineraries := r.Group("/api/v1/itineraries")
	{
		itineraries.POST("", h.CreateItinerary)
		itineraries.GET("/:id", h.GetItinerary)
		itineraries.PUT("/:id/days", h.RegenerateDays)
		itineraries.DELETE("/:id/days/:date/places/:order", h.RemovePlace)
	}
}

// CreateItinerary handles POST /api/v1/itineraries.
func (h *ItineraryHandler) CreateItinerary(c *gin.Context) {
	var req application.CreateItineraryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.CreateItinerary(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetItinerary handles GET /api/v1/itineraries/:id.
func (h *ItineraryHandler) GetItinerary(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid itinerary ID")
		return
	}

	result, err := h.service.GetItinerary(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RegenerateDays handles PUT /api/v1/itineraries/:id/days.
func (h *ItineraryHandler) RegenerateDays(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid itinerary ID")
		return
	}

	var req application.RegenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.RegenerateDays(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// RemovePlace handles DELETE /api/v1/itineraries/:id/days/:date/places/:order.
func (h *ItineraryHandler) RemovePlace(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid itinerary ID")
		return
	}

	order, err := strconv.Atoi(c.Param("order"))
	if err != nil || order < 1 {
		response.BadRequest(c, "invalid place order")
		return
	}

	result, err := h.service.RemovePlace(c.Request.Context(), id, c.Param("date"), order)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
