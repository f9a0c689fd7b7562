package handler

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
)

// ServiceName 注册中心自身的服务名
const ServiceName = "ecosystem-registry"

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Timestamp string `json:"timestamp"`
}

// HealthHandler 注册中心自身的健康检查
type HealthHandler struct{}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// HealthCheck 健康检查处理函数
func (h *HealthHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Service:   ServiceName,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// 应用启动时间
var startTime = time.Now()

// getResourceUsage 获取资源使用情况
func getResourceUsage() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"memory_alloc":   formatBytes(memStats.Alloc),
		"memory_sys":     formatBytes(memStats.Sys),
		"memory_heap":    formatBytes(memStats.HeapAlloc),
		"num_gc":         memStats.NumGC,
		"num_goroutines": runtime.NumGoroutine(),
	}
}

// formatBytes 将字节数格式化为可读形式
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
