package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/repair-desk/internal/config"
	"github.com/jwalitptl/repair-desk/internal/handler/health"
	"github.com/jwalitptl/repair-desk/internal/handler/objects"
	promhandler "github.com/jwalitptl/repair-desk/internal/handler/prometheus"
	"github.com/jwalitptl/repair-desk/internal/middleware"
	"github.com/jwalitptl/repair-desk/pkg/logger"
	"github.com/jwalitptl/repair-desk/pkg/metrics"
)

// Handler is a group of authenticated routes.
type Handler interface {
	RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware)
}

// PublicHandler mounts routes that skip authentication.
type PublicHandler interface {
	RegisterPublicRoutes(r *gin.RouterGroup)
}

type RouterConfig struct {
	ServiceName  string
	Mode         string
	MaxBodyBytes int64
	RateLimit    config.RateLimitConfig
	CORS         config.CORSConfig
	MetricsPath  string
	// Gatherer is served on MetricsPath when set.
	Gatherer prometheus.Gatherer
	// Objects serves in-process object store URLs when set.
	Objects *objects.Handler
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	health   *health.Handler
	public   []PublicHandler
	handlers []Handler
	config   RouterConfig
}

func NewRouter(
	cfg RouterConfig,
	log *logger.Logger,
	m *metrics.Metrics,
	auth *middleware.AuthMiddleware,
	healthH *health.Handler,
	public []PublicHandler,
	handlers ...Handler,
) *Router {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	engine := gin.New()

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		otelgin.Middleware(cfg.ServiceName),
		middleware.Logger(log),
		middleware.Metrics(m),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(cfg.CORS),
	)
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			Burst: cfg.RateLimit.Burst,
		})
		engine.Use(limiter.RateLimit())
	}

	return &Router{
		engine:   engine,
		auth:     auth,
		health:   healthH,
		public:   public,
		handlers: handlers,
		config:   cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	r.health.RegisterRoutes(r.engine)
	if r.config.Gatherer != nil {
		path := r.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, promhandler.Handler(r.config.Gatherer))
	}
	if r.config.Objects != nil {
		r.config.Objects.RegisterRoutes(r.engine)
	}

	limits := middleware.DefaultSizeLimitConfig()
	if r.config.MaxBodyBytes > 0 {
		limits.MaxUploadSize = r.config.MaxBodyBytes
	}

	api := r.engine.Group("/api/v1")
	api.Use(
		middleware.SizeLimit(limits),
		middleware.ErrorHandler(),
		middleware.Validation(),
	)
	for _, h := range r.public {
		h.RegisterPublicRoutes(api)
	}

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	for _, h := range r.handlers {
		h.RegisterRoutes(protected, r.auth)
	}
	return r.engine
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
