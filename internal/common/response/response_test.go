package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripmate/service-routemap/internal/common/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestError_MapsDomainKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"validation", domain.NewValidationError("date is required"), http.StatusBadRequest, "date is required"},
		{"not found wrapped", fmt.Errorf("x: %w", domain.NewNotFoundError("Itinerary", "1")), http.StatusNotFound, "Itinerary with id 1 not found"},
		{"conflict", domain.NewConflictError("stale version"), http.StatusConflict, "stale version"},
		{"invalid state", domain.NewInvalidStateError("idle", "ready"), http.StatusUnprocessableEntity, "cannot transition from idle to ready"},
		{"internal", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)

			Error(c, tc.err)

			assert.Equal(t, tc.wantStatus, w.Code)
			var body Envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tc.wantBody, body.Error)
		})
	}
}

func TestSuccess_WrapsData(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Success(c, map[string]int{"markers": 3})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"markers":3}}`, w.Body.String())
}
