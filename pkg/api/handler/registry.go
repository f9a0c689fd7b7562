package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hewenyu/modularity/pkg/model"
)

// Registry 处理器依赖的注册中心操作
type Registry interface {
	Register(ctx context.Context, reg model.Registration) (string, error)
	Unregister(ctx context.Context, id string) error
	Heartbeat(ctx context.Context, id string) (*model.Service, error)
	Get(id string) (*model.Service, error)
	List(status model.Status) []*model.Service
	CapabilitiesSummary() []model.CapabilitySummary
	FindProvider(capability string) (*model.Service, error)
	Discover(required, optional []string) []model.Match
	Stats() model.Stats
}

// RegisterRequest 服务注册请求
type RegisterRequest struct {
	ID           string         `json:"id" validate:"required"`
	Name         string         `json:"name" validate:"required"`
	Version      string         `json:"version"`
	Capabilities []string       `json:"capabilities" validate:"required"`
	Location     string         `json:"location" validate:"required"`
	Mode         string         `json:"mode" validate:"required"`
	Metadata     map[string]any `json:"metadata"`
}

// DiscoverRequest 能力发现请求
type DiscoverRequest struct {
	Capabilities []string `json:"capabilities" validate:"required"`
	Optional     []string `json:"optional"`
}

// RegisterResult 注册成功返回的数据
type RegisterResult struct {
	ServiceID string `json:"service_id"`
}

// ServiceList 服务列表
type ServiceList struct {
	Services []*model.Service `json:"services"`
	Count    int              `json:"count"`
}

// CapabilityList 能力列表
type CapabilityList struct {
	Capabilities []model.CapabilitySummary `json:"capabilities"`
	Count        int                       `json:"count"`
}

// MatchList 能力发现结果
type MatchList struct {
	Matches []model.Match `json:"matches"`
	Count   int           `json:"count"`
}

// RegistryHandler 处理注册与发现相关API
type RegistryHandler struct {
	registry Registry
}

// NewRegistryHandler 创建注册中心处理器
func NewRegistryHandler(registry Registry) *RegistryHandler {
	return &RegistryHandler{registry: registry}
}

// Register 注册服务
func (h *RegistryHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return bindFailure(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return validationFailure(c, err)
	}

	id, err := h.registry.Register(c.Request().Context(), model.Registration{
		ID:           req.ID,
		Name:         req.Name,
		Version:      req.Version,
		Capabilities: req.Capabilities,
		Location:     req.Location,
		Mode:         model.Mode(req.Mode),
		Metadata:     req.Metadata,
	})
	if err != nil {
		return registryFailure(c, err)
	}

	return success(c, http.StatusCreated, "服务注册成功", RegisterResult{ServiceID: id})
}

// Unregister 注销服务
func (h *RegistryHandler) Unregister(c echo.Context) error {
	if err := h.registry.Unregister(c.Request().Context(), c.Param("id")); err != nil {
		return registryFailure(c, err)
	}
	return success(c, http.StatusOK, "服务注销成功", nil)
}

// Heartbeat 服务心跳
func (h *RegistryHandler) Heartbeat(c echo.Context) error {
	svc, err := h.registry.Heartbeat(c.Request().Context(), c.Param("id"))
	if err != nil {
		return registryFailure(c, err)
	}
	return success(c, http.StatusOK, "心跳已接收", svc)
}

// ListServices 列出服务，支持按status过滤
func (h *RegistryHandler) ListServices(c echo.Context) error {
	services := h.registry.List(model.Status(c.QueryParam("status")))
	return success(c, http.StatusOK, "success", ServiceList{Services: services, Count: len(services)})
}

// GetService 获取服务详情
func (h *RegistryHandler) GetService(c echo.Context) error {
	svc, err := h.registry.Get(c.Param("id"))
	if err != nil {
		return registryFailure(c, err)
	}
	return success(c, http.StatusOK, "success", svc)
}

// ListCapabilities 列出有活跃提供者的能力
func (h *RegistryHandler) ListCapabilities(c echo.Context) error {
	caps := h.registry.CapabilitiesSummary()
	return success(c, http.StatusOK, "success", CapabilityList{Capabilities: caps, Count: len(caps)})
}

// GetCapability 返回能力的第一个活跃提供者
func (h *RegistryHandler) GetCapability(c echo.Context) error {
	svc, err := h.registry.FindProvider(c.Param("name"))
	if err != nil {
		return registryFailure(c, err)
	}
	return success(c, http.StatusOK, "success", svc)
}

// Discover 按能力要求发现服务
func (h *RegistryHandler) Discover(c echo.Context) error {
	var req DiscoverRequest
	if err := c.Bind(&req); err != nil {
		return bindFailure(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return validationFailure(c, err)
	}

	matches := h.registry.Discover(req.Capabilities, req.Optional)
	return success(c, http.StatusOK, "success", MatchList{Matches: matches, Count: len(matches)})
}

// Stats 注册中心统计信息
func (h *RegistryHandler) Stats(c echo.Context) error {
	return success(c, http.StatusOK, "success", h.registry.Stats())
}
