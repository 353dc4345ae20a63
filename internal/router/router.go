package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/therapysync/schedule-api/internal/handler/health"
	"github.com/therapysync/schedule-api/internal/handler/prometheus"
	"github.com/therapysync/schedule-api/internal/middleware"
)

// Handler registers its routes under the API group.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Router struct {
	engine      *gin.Engine
	visitH      Handler
	certPeriodH Handler
	staffH      Handler
	healthH     *health.Handler
	promH       *prometheus.Handler
}

type Config struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	Timeout          time.Duration
	CORSConfig       middleware.CORSConfig
	MetricsEnabled   bool
	MetricsPath      string
}

func NewRouter(
	visitH Handler,
	certPeriodH Handler,
	staffH Handler,
	healthH *health.Handler,
	promH *prometheus.Handler,
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	r := &Router{
		engine:      engine,
		visitH:      visitH,
		certPeriodH: certPeriodH,
		staffH:      staffH,
		healthH:     healthH,
		promH:       promH,
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.ErrorHandler(),
		promH.Middleware(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: timeout}),
		middleware.CORS(config.CORSConfig),
	)

	if config.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}

	if config.MetricsEnabled {
		path := config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		engine.GET(path, promH.Handler())
	}

	return r
}

func (r *Router) Setup() {
	root := r.engine.Group("")
	r.healthH.RegisterRoutes(root)

	api := r.engine.Group("/api/v1")
	r.visitH.RegisterRoutes(api)
	r.certPeriodH.RegisterRoutes(api)
	r.staffH.RegisterRoutes(api)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
