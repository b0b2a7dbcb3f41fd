package notification

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/repair-desk/internal/handler"
	"github.com/jwalitptl/repair-desk/internal/middleware"
	"github.com/jwalitptl/repair-desk/internal/model"
	"github.com/jwalitptl/repair-desk/pkg/httputil"
)

const heartbeatInterval = 25 * time.Second

type NotificationServicer interface {
	List(ctx context.Context, customerID string, filter *model.NotificationFilter) ([]*model.RepairNotification, error)
	MarkRead(ctx context.Context, customerID, id string) error
	MarkAllRead(ctx context.Context, customerID string) (int64, error)
	Delete(ctx context.Context, customerID, id string) error
	ClearAll(ctx context.Context, customerID string) (int64, error)
	CountUnread(ctx context.Context, customerID string) (int64, error)
	Stream(ctx context.Context, customerID string) (<-chan *model.RepairNotification, error)
}

type Handler struct {
	service   NotificationServicer
	heartbeat time.Duration
}

func NewHandler(service NotificationServicer) *Handler {
	return &Handler{service: service, heartbeat: heartbeatInterval}
}

// Notifications belong to customers; every route is scoped to the caller.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	notifications := r.Group("/notifications", auth.RequireRole(model.RoleCustomer))
	{
		notifications.GET("", h.List)
		notifications.GET("/count", h.Count)
		notifications.GET("/stream", h.Stream)
		notifications.PUT("/read-all", h.MarkAllRead)
		notifications.PUT("/:id/read", h.MarkRead)
		notifications.DELETE("/:id", h.Delete)
		notifications.DELETE("", h.ClearAll)
	}
}

func (h *Handler) List(c *gin.Context) {
	var filter model.NotificationFilter
	if !handler.BindQuery(c, &filter) {
		return
	}
	filter.Limit, filter.Offset = handler.Page(c)
	list, err := h.service.List(c.Request.Context(), middleware.ActorFrom(c).UserID, &filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithPage(c, list, filter.Limit, filter.Offset, len(list))
}

func (h *Handler) Count(c *gin.Context) {
	n, err := h.service.CountUnread(c.Request.Context(), middleware.ActorFrom(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"unread": n})
}

func (h *Handler) MarkRead(c *gin.Context) {
	if err := h.service.MarkRead(c.Request.Context(), middleware.ActorFrom(c).UserID, c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"id": c.Param("id"), "is_read": true})
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.service.MarkAllRead(c.Request.Context(), middleware.ActorFrom(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"updated": n})
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.ActorFrom(c).UserID, c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) ClearAll(c *gin.Context) {
	n, err := h.service.ClearAll(c.Request.Context(), middleware.ActorFrom(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, gin.H{"deleted": n})
}

// Stream pushes new notifications as server-sent events until the client
// goes away.
func (h *Handler) Stream(c *gin.Context) {
	ctx := c.Request.Context()
	ch, err := h.service.Stream(ctx, middleware.ActorFrom(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case n, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("notification", n)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
}
