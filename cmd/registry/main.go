package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hewenyu/modularity/internal/apihandler"
	"github.com/hewenyu/modularity/internal/config"
	"github.com/hewenyu/modularity/pkg/api/handler"
	"github.com/hewenyu/modularity/pkg/dns"
	"github.com/hewenyu/modularity/pkg/events"
	"github.com/hewenyu/modularity/pkg/health"
	"github.com/hewenyu/modularity/pkg/registry"
	"github.com/hewenyu/modularity/pkg/storage"
	etcdstore "github.com/hewenyu/modularity/pkg/storage/etcd"
	filestore "github.com/hewenyu/modularity/pkg/storage/file"
	memorystore "github.com/hewenyu/modularity/pkg/storage/memory"
	redisstore "github.com/hewenyu/modularity/pkg/storage/redis"
)

const version = "0.1.0"

var configFile string

func init() {
	// 解析命令行参数
	flag.StringVar(&configFile, "config", "", "配置文件路径")
}

func main() {
	flag.Parse()

	// 加载配置
	appConfig, err := config.LoadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger, err := config.NewLogger(appConfig.Log.Development, appConfig.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// 等待信号以优雅关闭
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, appConfig, logger); err != nil {
		logger.Error("注册中心异常退出", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

// run 启动所有组件并阻塞到ctx结束，返回前按顺序关闭各组件
func run(ctx context.Context, appConfig *config.Config, logger config.Logger) error {
	logger.Info("Modularity Registry Starting...",
		zap.String("version", version),
		zap.String("host", appConfig.Server.Host),
		zap.Int("port", appConfig.Server.Port),
		zap.String("storage", appConfig.Storage.Driver),
		zap.Bool("dns_enabled", appConfig.DNS.Enabled),
	)

	store, err := newSnapshotStore(appConfig, logger)
	if err != nil {
		return fmt.Errorf("初始化快照存储失败: %w", err)
	}
	defer store.Close()

	bus := events.NewBus(appConfig.Events.QueueSize, logger)
	defer bus.Close()

	reg := registry.New(registry.Options{
		Store:      store,
		SyncWrites: appConfig.Storage.SyncWrites,
		Logger:     logger,
		Publisher:  bus,
	})
	defer reg.Close()

	restored := reg.Restore(context.Background())
	logger.Info("注册表已加载", zap.Int("services", restored))

	metrics := handler.NewMetricsHandler(reg)
	bus.SubscribeAll(metrics.ObserveEvent)

	// 健康检查，返回时先停止监控再关闭注册表
	monitorCtx, cancel := context.WithCancel(ctx)
	monitor := health.NewMonitor(reg, appConfig.Health, logger)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.Run(monitorCtx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	// DNS服务
	var dnsServer *dns.Server
	if appConfig.DNS.Enabled {
		dnsServer = dns.NewServer(appConfig.DNS, reg, logger)
		bus.SubscribeAll(dnsServer.Invalidate)
		if err := dnsServer.Start(monitorCtx); err != nil {
			return fmt.Errorf("启动DNS服务失败: %w", err)
		}
		defer func() {
			if err := dnsServer.Stop(); err != nil {
				logger.Error("关闭DNS服务失败", zap.Error(err))
			}
		}()
	}

	// API服务
	api := apihandler.NewAPIHandler(appConfig.Server, logger, reg, metrics)
	if err := api.Start(); err != nil {
		return fmt.Errorf("启动API服务失败: %w", err)
	}

	<-ctx.Done()
	logger.Info("接收到关闭信号，正在优雅关闭...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Error("关闭API服务失败", zap.Error(err))
	}

	logger.Info("API服务已关闭，正在关闭其余组件")
	return nil
}

// newSnapshotStore 根据配置选择快照存储
func newSnapshotStore(cfg *config.Config, logger config.Logger) (storage.SnapshotStore, error) {
	switch cfg.Storage.Driver {
	case "etcd":
		return etcdstore.NewStore(cfg.Etcd, logger)
	case "redis":
		return redisstore.NewStore(cfg.Redis, logger)
	case "memory":
		return memorystore.NewStore(), nil
	default:
		return filestore.NewStore(cfg.Storage.Path)
	}
}
