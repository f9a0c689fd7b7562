package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hewenyu/modularity/internal/config"
	"github.com/hewenyu/modularity/pkg/netguard"
	"github.com/hewenyu/modularity/pkg/registry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// 默认参数
const (
	DefaultInterval        = 30 * time.Second
	DefaultTimeout         = 5 * time.Second
	DefaultMaxFailedChecks = 3
	DefaultPath            = "/_module/health"
	DefaultConcurrency     = 8
)

// errRedirect 健康检查不跟随重定向，重定向视为失败
var errRedirect = errors.New("健康检查不跟随重定向")

// Target 健康检查需要访问的注册表接口
type Target interface {
	ProbeTargets() []registry.ProbeTarget
	ApplyProbeResult(target registry.ProbeTarget, healthy bool, maxFailedChecks int) registry.ProbeOutcome
}

// Monitor 周期性探测http模式的服务并更新存活状态
type Monitor struct {
	target          Target
	client          *http.Client
	interval        time.Duration
	maxFailedChecks int
	path            string
	concurrency     int
	allowed         func(string) bool
	logger          config.Logger
}

// Option 监控器配置项
type Option func(*Monitor)

// WithHTTPClient 替换探测使用的http客户端
func WithHTTPClient(c *http.Client) Option {
	return func(m *Monitor) { m.client = c }
}

// WithURLValidator 替换探测前的URL校验函数
func WithURLValidator(f func(string) bool) Option {
	return func(m *Monitor) { m.allowed = f }
}

// NewMonitor 创建健康检查监控器，零值参数使用默认值
func NewMonitor(target Target, cfg config.HealthConfig, logger config.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		target:          target,
		interval:        cfg.Interval,
		maxFailedChecks: cfg.MaxFailedChecks,
		path:            cfg.Path,
		concurrency:     cfg.Concurrency,
		allowed:         netguard.IsAllowed,
		logger:          logger,
	}
	if m.interval <= 0 {
		m.interval = DefaultInterval
	}
	if m.maxFailedChecks <= 0 {
		m.maxFailedChecks = DefaultMaxFailedChecks
	}
	if m.path == "" {
		m.path = DefaultPath
	}
	if m.concurrency <= 0 {
		m.concurrency = DefaultConcurrency
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	m.client = &http.Client{
		Timeout: timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return errRedirect
		},
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Run 按固定间隔执行健康检查，直到ctx被取消
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("健康检查已启动",
		zap.Duration("interval", m.interval),
		zap.Int("max_failed_checks", m.maxFailedChecks))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("健康检查已停止")
			return
		case <-ticker.C:
			m.safeCheck(ctx)
		}
	}
}

// safeCheck 执行一轮检查，单轮中的panic不会终止循环
func (m *Monitor) safeCheck(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("健康检查发生panic", zap.String("panic", fmt.Sprint(r)))
		}
	}()
	m.CheckOnce(ctx)
}

// CheckOnce 对当前所有http模式服务执行一轮探测
func (m *Monitor) CheckOnce(ctx context.Context) {
	targets := m.target.ProbeTargets()
	if len(targets) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)

	for _, t := range targets {
		g.Go(func() error {
			m.checkTarget(gctx, t)
			return nil
		})
	}
	g.Wait()

	m.logger.Debug("本轮健康检查完成", zap.Int("services", len(targets)))
}

func (m *Monitor) checkTarget(ctx context.Context, t registry.ProbeTarget) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("探测服务时发生panic",
				zap.String("service_id", t.ID),
				zap.String("panic", fmt.Sprint(r)))
		}
	}()

	probeURL := ProbeURL(t.Location, m.path)

	// location在注册时已经校验过，这里针对实际请求的URL再校验一次
	if !m.allowed(probeURL) {
		m.logger.Warn("探测地址不被允许，跳过本轮检查",
			zap.String("service_id", t.ID),
			zap.String("url", probeURL))
		return
	}

	healthy, err := m.probe(ctx, probeURL)
	if ctx.Err() != nil {
		// 进程正在退出，不把取消计为失败
		return
	}
	if err != nil {
		m.logger.Debug("健康检查失败",
			zap.String("service_id", t.ID),
			zap.String("url", probeURL),
			zap.Error(err))
	}

	m.target.ApplyProbeResult(t, healthy, m.maxFailedChecks)
}

// probe 发起一次探测，只有200视为成功
func (m *Monitor) probe(ctx context.Context, probeURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return false, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("健康检查返回状态码 %d", resp.StatusCode)
	}
	return true, nil
}

// ProbeURL 由服务location和健康检查路径拼出探测地址
func ProbeURL(location, path string) string {
	return strings.TrimRight(location, "/") + path
}
