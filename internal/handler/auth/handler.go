package auth

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

type AuthServicer interface {
	Login(ctx context.Context, email, password string) (*model.TokenResponse, error)
	CreateUser(ctx context.Context, req *model.CreateUserRequest) (*model.User, error)
	Me(ctx context.Context, userID string) (*model.User, error)
}

type Handler struct {
	svc AuthServicer
}

func NewHandler(svc AuthServicer) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublicRoutes mounts the routes that run before authentication.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/auth/login", h.Login)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware) {
	r.GET("/auth/me", h.Me)
	r.POST("/users", auth.RequireRole(model.RoleAdmin, model.RoleServiceManager), h.CreateUser)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	tokens, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, tokens)
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.svc.Me(c.Request.Context(), middleware.ActorFrom(c).UserID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusOK, user)
}

// CreateUser registers staff, technician and walk-in customer accounts.
// Only admins may create admins.
func (h *Handler) CreateUser(c *gin.Context) {
	var req model.CreateUserRequest
	if !handler.BindJSON(c, &req) {
		return
	}
	if req.Role == model.RoleAdmin && middleware.ActorFrom(c).Role != model.RoleAdmin {
		_ = c.Error(apperrors.Forbidden("only admins can create admin accounts"))
		return
	}
	user, err := h.svc.CreateUser(c.Request.Context(), &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	httputil.RespondWithSuccess(c, http.StatusCreated, user)
}
