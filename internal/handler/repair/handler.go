package repair

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/repair-desk/internal/handler"
	"github.com/jwalitptl/repair-desk/internal/middleware"
	"github.com/jwalitptl/repair-desk/internal/model"
	repairService "github.com/jwalitptl/repair-desk/internal/service/repair"
	apperrors "github.com/jwalitptl/repair-desk/pkg/errors"
	"github.com/jwalitptl/repair-desk/pkg/httputil"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	imageField      = "image"
)

// RepairServicer is the lifecycle surface the handler drives.
type RepairServicer interface {
	Submit(ctx context.Context, customerID string, req *model.CreateRepairRequest) (*repairService.Result, error)
	Decide(ctx context.Context, id string, req *model.DecisionRequest) (*repairService.Result, error)
	CustomerRespond(ctx context.Context, id string, actor model.Actor, decision string) (*repairService.Result, error)
	AssignTechnician(ctx context.Context, id string, req *model.AssignTechnicianRequest) (*repairService.Result, error)
	UpdateProgress(ctx context.Context, id string, actor model.Actor, progress int, notes string) (*repairService.Result, error)
	Cancel(ctx context.Context, id string, actor model.Actor) (*repairService.Result, error)
	MarkCollected(ctx context.Context, id string) (*repairService.Result, error)
	Get(ctx context.Context, id string, actor model.Actor) (*model.RepairDetail, error)
	List(ctx context.Context, actor model.Actor, filter *model.RepairFilter) ([]*model.RepairDetail, error)
	Delete(ctx context.Context, id string) error
	AttachImage(ctx context.Context, id string, actor model.Actor, filename string, body io.Reader, size int64, contentType string) (*model.RepairDetail, error)
	Report(ctx context.Context, id string, actor model.Actor) ([]byte, string, error)
	Export(ctx context.Context, filter *model.RepairFilter) ([]byte, error)
}

type Handler struct {
	service RepairServicer
}

func NewHandler(service RepairServicer) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	staff := auth.RequireRole(model.RoleServiceManager, model.RoleAdmin)

	repairs := r.Group("/repairs")
	{
		repairs.POST("", auth.RequireRole(model.RoleCustomer), h.Submit)
		repairs.GET("", h.List)
		repairs.GET("/export", staff, h.Export)
		repairs.GET("/:id", h.Get)
		repairs.PUT("/:id/status", staff, h.Decide)
		repairs.PUT("/:id/customer-decision", auth.RequireRole(model.RoleCustomer), h.CustomerDecision)
		repairs.PUT("/:id/assign", staff, h.Assign)
		repairs.PUT("/:id/progress", auth.RequireRole(model.RoleTechnician, model.RoleServiceManager, model.RoleAdmin), h.Progress)
		repairs.POST("/:id/cancel", h.Cancel)
		repairs.POST("/:id/collect", staff, h.Collect)
		repairs.POST("/:id/images", h.UploadImage)
		repairs.GET("/:id/report", h.Report)
		repairs.DELETE("/:id", staff, h.Delete)
	}
}

func (h *Handler) Submit(c *gin.Context) {
	var req model.CreateRepairRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	res, err := h.service.Submit(c.Request.Context(), middleware.ActorFrom(c).UserID, &req)
	h.respond(c, http.StatusCreated, res, err)
}

func (h *Handler) List(c *gin.Context) {
	var filter model.RepairFilter
	if !handler.BindQuery(c, &filter) {
		return
	}
	if !normalizeStatus(c, &filter) {
		return
	}
	filter.Limit, filter.Offset = handler.Page(c)

	list, err := h.service.List(c.Request.Context(), middleware.ActorFrom(c), &filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithPage(c, list, filter.Limit, filter.Offset, len(list))
}

func (h *Handler) Get(c *gin.Context) {
	d, err := h.service.Get(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, d)
}

func (h *Handler) Decide(c *gin.Context) {
	var req model.DecisionRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	res, err := h.service.Decide(c.Request.Context(), c.Param("id"), &req)
	h.respond(c, http.StatusOK, res, err)
}

func (h *Handler) CustomerDecision(c *gin.Context) {
	var req model.CustomerDecisionRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	res, err := h.service.CustomerRespond(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c), req.Decision)
	h.respond(c, http.StatusOK, res, err)
}

func (h *Handler) Assign(c *gin.Context) {
	var req model.AssignTechnicianRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	res, err := h.service.AssignTechnician(c.Request.Context(), c.Param("id"), &req)
	h.respond(c, http.StatusOK, res, err)
}

func (h *Handler) Progress(c *gin.Context) {
	var req model.ProgressRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	res, err := h.service.UpdateProgress(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c), *req.RepairProgress, req.Notes)
	h.respond(c, http.StatusOK, res, err)
}

func (h *Handler) Cancel(c *gin.Context) {
	res, err := h.service.Cancel(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c))
	h.respond(c, http.StatusOK, res, err)
}

func (h *Handler) Collect(c *gin.Context) {
	res, err := h.service.MarkCollected(c.Request.Context(), c.Param("id"))
	h.respond(c, http.StatusOK, res, err)
}

func (h *Handler) UploadImage(c *gin.Context) {
	fh, err := c.FormFile(imageField)
	if err != nil {
		_ = c.Error(apperrors.BadRequest(fmt.Sprintf("multipart field %q is required", imageField), err))
		return
	}
	f, err := fh.Open()
	if err != nil {
		_ = c.Error(apperrors.BadRequest("unreadable upload", err))
		return
	}
	defer f.Close()

	d, err := h.service.AttachImage(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c),
		fh.Filename, f, fh.Size, fh.Header.Get("Content-Type"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, d)
}

func (h *Handler) Report(c *gin.Context) {
	data, name, err := h.service.Report(c.Request.Context(), c.Param("id"), middleware.ActorFrom(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	attachment(c, name)
	c.Data(http.StatusOK, "application/pdf", data)
}

func (h *Handler) Export(c *gin.Context) {
	var filter model.RepairFilter
	if !handler.BindQuery(c, &filter) {
		return
	}
	if !normalizeStatus(c, &filter) {
		return
	}
	data, err := h.service.Export(c.Request.Context(), &filter)
	if err != nil {
		_ = c.Error(err)
		return
	}
	attachment(c, fmt.Sprintf("repairs-%s.xlsx", time.Now().UTC().Format("20060102")))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) respond(c *gin.Context, status int, res *repairService.Result, err error) {
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithWarnings(c, status, res.Repair, res.Warnings)
}

func attachment(c *gin.Context, name string) {
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, strings.ReplaceAll(name, `"`, "")))
}

// normalizeStatus accepts the status filter in any case.
func normalizeStatus(c *gin.Context, filter *model.RepairFilter) bool {
	if filter.Status == "" {
		return true
	}
	status, ok := model.ParseRepairStatus(string(filter.Status))
	if !ok {
		_ = c.Error(apperrors.BadRequest(fmt.Sprintf("unknown status %q", filter.Status), nil))
		return false
	}
	filter.Status = status
	return true
}
