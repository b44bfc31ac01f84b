// README: HTTP router registration.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"dropfee/internal/http/handlers"
	"dropfee/internal/http/middleware"
	"dropfee/internal/infra"
	"dropfee/internal/logger"
	"dropfee/internal/metrics"
	"dropfee/internal/modules/cart"
	"dropfee/internal/modules/pricing"
	"dropfee/internal/modules/settings"
	"dropfee/internal/modules/zone"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type RouterDeps struct {
	Fees        *pricing.Service
	Zones       *zone.Registry
	Settings    *settings.Resolver
	Carts       *cart.Service
	Verifier    infra.TokenVerifier
	Logger      *logger.Logger
	HTTPMetrics *metrics.HTTPMetrics
	Metrics     http.Handler // served at /metrics when set
	CORSOrigins []string
	Health      map[string]HealthCheck
}

func NewRouter(deps RouterDeps) http.Handler {
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}

	r := gin.New()
	r.Use(middleware.RequestID(logg), middleware.Recovery(logg), middleware.Logging(logg, deps.HTTPMetrics))

	r.GET("/health", healthHandler(deps.Health))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	feeHandler := handlers.NewFeeHandler(deps.Fees, logg)
	r.POST("/delivery/fee", feeHandler.Quote)

	admin := r.Group("/admin", middleware.Auth(deps.Verifier), middleware.RequireRole(middleware.RoleAdmin))

	zoneHandler := handlers.NewZoneHandler(deps.Zones, logg)
	admin.GET("/zones", zoneHandler.List)
	admin.GET("/zones/:id", zoneHandler.Get)
	admin.POST("/zones", zoneHandler.Create)
	admin.PUT("/zones/:id", zoneHandler.Update)
	admin.DELETE("/zones/:id", zoneHandler.Delete)

	settingsHandler := handlers.NewSettingsHandler(deps.Settings, logg)
	admin.GET("/settings", settingsHandler.List)
	admin.PUT("/settings", settingsHandler.Upsert)
	admin.GET("/settings/effective", settingsHandler.Effective)

	carts := r.Group("/api/carts/:customerId",
		middleware.Auth(deps.Verifier),
		middleware.RequireSelfOrRole("customerId", middleware.RoleAdmin),
	)
	cartHandler := handlers.NewCartHandler(deps.Carts, logg)
	carts.GET("", cartHandler.Get)
	carts.DELETE("", cartHandler.Clear)
	carts.POST("/items", cartHandler.AddItem)
	carts.PUT("/items/:productId", cartHandler.SetQuantity)
	carts.DELETE("/items/:productId", cartHandler.RemoveItem)
	carts.PUT("/delivery", cartHandler.SetDelivery)

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.HeaderRequestID},
		ExposedHeaders:   []string{middleware.HeaderRequestID},
		AllowCredentials: false,
	}).Handler(r)
}

func healthHandler(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		c.JSON(status, gin.H{"status": overall, "checks": results})
	}
}
