package router

import (
	"time"

	"shiftpos/internal/config"
	"shiftpos/internal/handler"
	"shiftpos/internal/middleware"
	"shiftpos/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are built at the composition root (cmd/server) and handed in here.
// DB and Redis may be nil when the in-memory store runs without them.
type Deps struct {
	Shifts      service.ShiftService
	DB          *gorm.DB
	Redis       *redis.Client
	Gatherer    prometheus.Gatherer
	RateLimiter *middleware.RateLimiter
}

// New returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	limiter := deps.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(1000, time.Minute) // 1000 req/min per IP
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(limiter.Middleware())

	shiftsH := handler.NewShiftHandler(deps.Shifts)

	// Public
	r.GET("/health", handler.Health(deps.DB, deps.Redis))
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		cashier := middleware.RequireRole(middleware.RoleCashier, middleware.RoleSupervisor)

		shifts := v1.Group("/shifts")
		{
			shifts.POST("/session", cashier, shiftsH.Session)
			shifts.GET("/current", cashier, shiftsH.Current)
			shifts.POST("", cashier, shiftsH.Start)
			shifts.GET("/history", cashier, shiftsH.History)
			shifts.POST("/:id/movements", cashier, shiftsH.AddMovement)
			shifts.POST("/:id/breaks", cashier, shiftsH.StartBreak)
			shifts.POST("/:id/breaks/end", cashier, shiftsH.EndBreak)
			shifts.POST("/:id/end", cashier, shiftsH.End)

			shifts.GET("/:id/report", middleware.RequireRole(middleware.RoleSupervisor), shiftsH.Report)
			// Point-of-sale integrations feed tender totals; no cashier owns the call.
			shifts.POST("/:id/payments", middleware.RequireRole(middleware.RoleSupervisor, middleware.RoleSystem), shiftsH.RecordPayment)
		}
	}

	// Swagger UI, only outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
