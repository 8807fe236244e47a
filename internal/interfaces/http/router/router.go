// Package router assembles the gin engine: global middleware, the public
// health probe and the authenticated fiscal API.
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kwanza/fiscal/internal/infrastructure/config"
	"github.com/kwanza/fiscal/internal/infrastructure/logger"
	"github.com/kwanza/fiscal/internal/interfaces/http/dto"
	"github.com/kwanza/fiscal/internal/interfaces/http/handler"
	"github.com/kwanza/fiscal/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// RegistrarFunc adapts a function to RouteRegistrar
type RegistrarFunc func(rg *gin.RouterGroup)

// RegisterRoutes implements RouteRegistrar
func (f RegistrarFunc) RegisterRoutes(rg *gin.RouterGroup) { f(rg) }

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes under /api/<version>
func (r *Router) Setup() {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// DomainGroup is a prefix with its own middleware and registrars
type DomainGroup struct {
	name       string
	prefix     string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

// NewDomainGroup creates a new domain-specific route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// Mount adds a registrar whose routes live under this group
func (dg *DomainGroup) Mount(registrar RouteRegistrar) *DomainGroup {
	dg.registrars = append(dg.registrars, registrar)
	return dg
}

// RegisterRoutes implements RouteRegistrar interface
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, registrar := range dg.registrars {
		registrar.RegisterRoutes(group)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

// Handlers are the HTTP handlers served by the engine
type Handlers struct {
	Fiscal    *handler.FiscalHandler
	SAFT      *handler.SAFTHandler
	Reference *handler.ReferenceHandler
	System    *handler.SystemHandler
}

// Dependencies are what the engine needs besides its handlers
type Dependencies struct {
	Config   *config.Config
	Logger   *zap.Logger
	Verifier middleware.TokenVerifier
	Meter    metric.Meter // nil disables HTTP metrics
}

// NewEngine builds the gin engine with the global middleware chain and
// every route mounted.
func NewEngine(deps Dependencies, h Handlers) (*gin.Engine, error) {
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}
	middleware.SetupValidator()

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Tracing(cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled),
		middleware.Secure(cfg.IsProduction()),
		middleware.CORS(middleware.CORSConfigFrom(cfg.HTTP)),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.HTTPMetrics(deps.Meter),
	)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponse(dto.ErrCodeRouteNotFound,
			"Route "+c.Request.Method+" "+c.Request.URL.Path+" not found", middleware.GetRequestID(c)))
	})

	if h.System != nil {
		engine.GET("/health", h.System.Health)
	}

	exportLimiter := middleware.NewRateLimiter(cfg.HTTP.ExportRateLimit, time.Minute)

	fiscal := NewDomainGroup("fiscal", "/fiscal").
		Use(
			middleware.JWTAuth(deps.Verifier, log),
			middleware.SpanAttributes(),
			middleware.SpanErrorMarker(),
		)
	if h.Fiscal != nil {
		fiscal.Mount(h.Fiscal)
	}
	if h.SAFT != nil {
		fiscal.Mount(RegistrarFunc(func(rg *gin.RouterGroup) {
			rg.GET("/saft", middleware.RateLimitByTenant(exportLimiter), h.SAFT.Export)
		}))
	}
	if h.Reference != nil {
		fiscal.Mount(RegistrarFunc(func(rg *gin.RouterGroup) {
			rg.GET("/reference/currencies", h.Reference.ListCurrencies)
			rg.GET("/reference/tax-rates", h.Reference.ListTaxRates)
		}))
	}
	if h.System != nil {
		fiscal.Mount(RegistrarFunc(func(rg *gin.RouterGroup) {
			rg.GET("/system/info", h.System.GetSystemInfo)
		}))
	}

	NewRouter(engine).Register(fiscal).Setup()
	return engine, nil
}
