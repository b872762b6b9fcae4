package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tripmate/service-routemap/internal/common/domain"
)

// Envelope is the JSON body written by every handler.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Success writes a 200 with data.
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data})
}

// Created writes a 201 with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Envelope{Success: true, Data: data})
}

// Accepted writes a 202 with data. Used for fire-and-forget bridge commands.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(http.StatusAccepted, Envelope{Success: true, Data: data})
}

// NoContent writes a bare 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest writes a 400 with the given message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Envelope{Error: message})
}

// Error maps a domain error to its HTTP status; unknown errors become 500
// without leaking their text.
func Error(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch domain.KindOf(err) {
	case domain.KindValidation:
		status, message = http.StatusBadRequest, err.Error()
	case domain.KindNotFound:
		status, message = http.StatusNotFound, err.Error()
	case domain.KindConflict:
		status, message = http.StatusConflict, err.Error()
	case domain.KindInvalidState:
		status, message = http.StatusUnprocessableEntity, err.Error()
	case domain.KindForbidden:
		status, message = http.StatusForbidden, err.Error()
	}

	_ = c.Error(err)
	c.JSON(status, Envelope{Error: message})
}
