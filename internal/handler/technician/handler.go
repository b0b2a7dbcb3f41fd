package technician

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/repair-desk/internal/handler"
	"github.com/jwalitptl/repair-desk/internal/middleware"
	"github.com/jwalitptl/repair-desk/internal/model"
	apperrors "github.com/jwalitptl/repair-desk/pkg/errors"
	"github.com/jwalitptl/repair-desk/pkg/httputil"
)

type TechnicianServicer interface {
	Create(ctx context.Context, req *model.CreateTechnicianRequest) (*model.TechnicianDetail, error)
	Get(ctx context.Context, id string) (*model.TechnicianDetail, error)
	List(ctx context.Context, filter *model.TechnicianFilter) ([]*model.TechnicianDetail, error)
	UpdateProfile(ctx context.Context, id string, req *model.UpdateTechnicianRequest) (*model.Technician, error)
	Delete(ctx context.Context, id string) error
	Workload(ctx context.Context, id string) (*model.Workload, error)
}

type Handler struct {
	service TechnicianServicer
}

func NewHandler(service TechnicianServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	staff := auth.RequireRole(model.RoleServiceManager, model.RoleAdmin)

	technicians := r.Group("/technicians")
	{
		technicians.POST("", staff, h.Create)
		technicians.GET("", staff, h.List)
		technicians.GET("/:id", staff, h.Get)
		technicians.PUT("/:id", staff, h.Update)
		technicians.DELETE("/:id", staff, h.Delete)
		technicians.GET("/:id/workload", h.Workload)
	}
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateTechnicianRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	t, err := h.service.Create(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, t)
}

func (h *Handler) List(c *gin.Context) {
	var filter model.TechnicianFilter
	if !handler.BindQuery(c, &filter) {
		return
	}
	list, err := h.service.List(c.Request.Context(), &filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, list)
}

func (h *Handler) Get(c *gin.Context) {
	t, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, t)
}

func (h *Handler) Update(c *gin.Context) {
	var req model.UpdateTechnicianRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	t, err := h.service.UpdateProfile(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, t)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Workload is open to staff and to the technician it describes.
func (h *Handler) Workload(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	id := c.Param("id")
	if !actor.IsStaff() && !(actor.Role == model.RoleTechnician && actor.UserID == id) {
		_ = c.Error(apperrors.Forbidden("you can only view your own workload"))
		return
	}
	w, err := h.service.Workload(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, w)
}
