package objects

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/repair-desk/internal/storage"
)

func TestGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := storage.NewMemoryStore(Prefix)
	require.NoError(t, store.Put(context.Background(), "repairs/r1/a.png", bytes.NewReader([]byte("png")), 3, "image/png"))

	engine := gin.New()
	NewHandler(store).RegisterRoutes(engine)

	tests := []struct {
		name     string
		path     string
		wantCode int
		wantBody string
	}{
		{"stored object", "/objects/repairs/r1/a.png?expires=900", http.StatusOK, "png"},
		{"missing object", "/objects/repairs/r1/b.png", http.StatusNotFound, ""},
		{"empty key", "/objects/", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, w.Body.String())
				assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
			}
		})
	}
}
