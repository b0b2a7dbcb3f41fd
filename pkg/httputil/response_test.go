package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/repair-desk/pkg/errors"
)

func TestRespondWithError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"capacity", apperrors.CapacityExceeded("technician is full"), http.StatusConflict, "technician is full"},
		{"out of range", apperrors.OutOfRange("progress must be between 0 and 100"), http.StatusBadRequest, "progress must be between 0 and 100"},
		{"forbidden", apperrors.Forbidden("nope"), http.StatusForbidden, "nope"},
		{"internal hides cause", apperrors.Internal(errors.New("db password wrong")), http.StatusInternalServerError, "Internal server error"},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			RespondWithError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.True(t, c.IsAborted())
			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.message, resp.Message)
			assert.Equal(t, tt.status, resp.Code)
		})
	}
}

func TestRespondWithWarnings(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondWithWarnings(c, http.StatusCreated, gin.H{"id": "r1"}, []string{"email failed"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"status":"success","data":{"id":"r1"},"warnings":["email failed"]}`, w.Body.String())
}
