package handler

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hewenyu/modularity/pkg/events"
	"github.com/hewenyu/modularity/pkg/model"
)

// StatsSource 提供服务统计
type StatsSource interface {
	Stats() model.Stats
}

// Metrics 运行指标
type Metrics struct {
	Registry          model.Stats            `json:"registry"`
	Events            map[string]int64       `json:"events"`
	APIRequestCount   int64                  `json:"api_request_count"`
	AvgResponseTime   float64                `json:"avg_response_time_ms"`
	Uptime            string                 `json:"uptime"`
	ResourceUsage     map[string]interface{} `json:"resource_usage"`
	LastCollectedTime time.Time              `json:"last_collected_time"`
}

// MetricsHandler 收集并返回运行指标
type MetricsHandler struct {
	source StatsSource

	mu              sync.Mutex
	events          map[events.Topic]int64
	apiRequestCount int64
	avgResponseTime float64
}

// NewMetricsHandler 创建指标处理器
func NewMetricsHandler(source StatsSource) *MetricsHandler {
	return &MetricsHandler{
		source: source,
		events: make(map[events.Topic]int64),
	}
}

// GetMetrics 获取运行指标
func (h *MetricsHandler) GetMetrics(c echo.Context) error {
	return success(c, http.StatusOK, "success", h.Snapshot())
}

// Snapshot 返回当前指标
func (h *MetricsHandler) Snapshot() Metrics {
	h.mu.Lock()
	counts := make(map[string]int64, len(h.events))
	for topic, n := range h.events {
		counts[string(topic)] = n
	}
	m := Metrics{
		Events:          counts,
		APIRequestCount: h.apiRequestCount,
		AvgResponseTime: h.avgResponseTime,
	}
	h.mu.Unlock()

	m.Registry = h.source.Stats()
	m.Uptime = time.Since(startTime).Round(time.Second).String()
	m.ResourceUsage = getResourceUsage()
	m.LastCollectedTime = time.Now()
	return m
}

// ObserveEvent 统计注册中心事件，订阅到事件总线上
func (h *MetricsHandler) ObserveEvent(e events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events[e.Topic]++
}

// CountRequests 统计API请求数量和平均耗时的中间件
func (h *MetricsHandler) CountRequests() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			h.observeRequest(float64(time.Since(start).Microseconds()) / 1000)
			return err
		}
	}
}

func (h *MetricsHandler) observeRequest(ms float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.apiRequestCount++
	// 简单的移动平均值计算
	if h.avgResponseTime == 0 {
		h.avgResponseTime = ms
	} else {
		h.avgResponseTime = (h.avgResponseTime*9 + ms) / 10
	}
}
