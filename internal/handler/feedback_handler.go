package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tripmate/service-routemap/internal/application"
	"github.com/tripmate/service-routemap/internal/common/response"
)

// FeedbackHandler handles HTTP requests for itinerary feedback.
type FeedbackHandler struct {
	service *application.FeedbackService
}

// NewFeedbackHandler creates a new FeedbackHandler.
func NewFeedbackHandler(service *application.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

// RegisterRoutes registers all feedback routes.
func (h *FeedbackHandler) RegisterRoutes(r *gin.RouterGroup) {
	feedback := r.Group("/api/v1/itineraries")
	{
		feedback.POST("/:id/feedback", h.SubmitFeedback)
		feedback.GET("/:id/feedback", h.GetFeedback)
	}
}

// SubmitFeedback handles POST /api/v1/itineraries/:id/feedback.
func (h *FeedbackHandler) SubmitFeedback(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid itinerary ID")
		return
	}

	var req application.SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.service.SubmitFeedback(c.Request.Context(), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetFeedback handles GET /api/v1/itineraries/:id/feedback.
func (h *FeedbackHandler) GetFeedback(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid itinerary ID")
		return
	}

	result, err := h.service.GetFeedback(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
