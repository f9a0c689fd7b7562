package apihandler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/hewenyu/modularity/internal/config"
	"github.com/hewenyu/modularity/pkg/api/handler"
	"github.com/hewenyu/modularity/pkg/api/router"
)

// Handler 定义API服务接口
type Handler interface {
	// Start 启动API服务，不阻塞
	Start() error

	// Shutdown 优雅关闭API服务
	Shutdown(ctx context.Context) error
}

// EchoHandler 基于echo实现Handler接口
type EchoHandler struct {
	server   *echo.Echo
	listener net.Listener
	cfg      config.ServerConfig
	logger   config.Logger
	done     chan struct{}
}

// NewAPIHandler 创建API服务并注册所有路由
func NewAPIHandler(cfg config.ServerConfig, logger config.Logger, registry handler.Registry, metrics *handler.MetricsHandler) *EchoHandler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return uuid.New().String() },
	}))
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowCredentials: true,
	}))
	e.Use(metrics.CountRequests())

	router.RegisterRoutes(e,
		handler.NewRegistryHandler(registry),
		handler.NewHealthHandler(),
		metrics,
		handler.RateLimit(cfg.RateLimit, cfg.RateBurst))

	return &EchoHandler{
		server: e,
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Echo 返回内部的echo实例
func (h *EchoHandler) Echo() *echo.Echo {
	return h.server
}

// Start 监听配置的地址并在后台提供服务
func (h *EchoHandler) Start() error {
	addr := net.JoinHostPort(h.cfg.Host, fmt.Sprintf("%d", h.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("监听API地址失败: %w", err)
	}
	h.listener = ln
	h.server.Listener = ln

	h.logger.Info("启动API服务", zap.String("address", ln.Addr().String()))

	go func() {
		defer close(h.done)
		if err := h.server.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("API服务异常退出", zap.Error(err))
		}
	}()

	return nil
}

// Addr 返回实际监听地址
func (h *EchoHandler) Addr() string {
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Shutdown 优雅关闭API服务
func (h *EchoHandler) Shutdown(ctx context.Context) error {
	h.logger.Info("正在关闭API服务...")

	if err := h.server.Shutdown(ctx); err != nil {
		h.logger.Error("关闭API服务出错", zap.Error(err))
		return err
	}
	if h.listener != nil {
		<-h.done
	}
	return nil
}
