// Package objects serves images held by the in-process object store.
package objects

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/repair-desk/pkg/errors"
	"github.com/jwalitptl/repair-desk/pkg/httputil"
)

// Prefix is the path the in-process object store's URLs are rooted at.
const Prefix = "/objects"

// Source reads stored objects by key.
type Source interface {
	Get(key string) ([]byte, string, bool)
}

type Handler struct {
	source Source
}

func NewHandler(source Source) *Handler {
	return &Handler{source: source}
}

func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET(Prefix+"/*key", h.Get)
}

func (h *Handler) Get(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	data, contentType, ok := h.source.Get(key)
	if key == "" || !ok {
		httputil.RespondWithError(c, apperrors.NotFound("object", nil))
		return
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, contentType, data)
}
