package router

import (
	"github.com/labstack/echo/v4"

	"github.com/hewenyu/modularity/pkg/api/handler"
)

// RegisterRoutes 配置注册中心路由，limiter作用于所有会修改注册表的接口
func RegisterRoutes(e *echo.Echo, registryHandler *handler.RegistryHandler, healthHandler *handler.HealthHandler, metricsHandler *handler.MetricsHandler, limiter echo.MiddlewareFunc) {
	e.GET("/health", healthHandler.HealthCheck)

	api := e.Group("/api")

	// 写操作
	api.POST("/register", registryHandler.Register, limiter)
	api.DELETE("/unregister/:id", registryHandler.Unregister, limiter)
	api.POST("/heartbeat/:id", registryHandler.Heartbeat, limiter)

	// 查询
	api.GET("/services", registryHandler.ListServices)
	api.GET("/services/:id", registryHandler.GetService)
	api.GET("/capabilities", registryHandler.ListCapabilities)
	api.GET("/capabilities/:name", registryHandler.GetCapability)
	api.POST("/discover", registryHandler.Discover)
	api.GET("/stats", registryHandler.Stats)
	api.GET("/metrics", metricsHandler.GetMetrics)
}
