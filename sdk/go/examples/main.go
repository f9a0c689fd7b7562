package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	sdk "github.com/hewenyu/modularity/sdk/go"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	// 本服务的健康检查端点，注册中心会定期探测
	mux := http.NewServeMux()
	mux.HandleFunc("/_module/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})
	srv := &http.Server{Addr: "127.0.0.1:8000", Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("启动HTTP服务失败: %v", err)
		}
	}()

	// 配置SDK客户端
	config := &sdk.Config{
		ServerAddr:        "127.0.0.1:5000",
		ServiceName:       "example-service",
		Version:           "1.0.0",
		Capabilities:      []string{"greet", "translate"},
		Location:          "http://127.0.0.1:8000",
		Metadata:          map[string]any{"runtime": "go"},
		HeartbeatInterval: 30 * time.Second,
		Timeout:           5 * time.Second,
		Logger:            logger,
	}

	// 创建SDK客户端
	client, err := sdk.NewClient(config)
	if err != nil {
		log.Fatalf("创建SDK客户端失败: %v", err)
	}

	// 注册服务
	ctx := context.Background()
	id, err := client.Register(ctx)
	if err != nil {
		log.Fatalf("服务注册失败: %v", err)
	}
	log.Printf("服务注册成功，服务ID: %s", id)

	// 查找翻译能力的提供者
	if provider, err := client.FindProvider(ctx, "translate"); err == nil {
		log.Printf("translate 能力提供者: %s (%s)", provider.ID, provider.Location)
	}

	matches, err := client.Discover(ctx, []string{"greet"}, []string{"translate", "speak"})
	if err != nil {
		log.Printf("服务发现失败: %v", err)
	}
	for _, m := range matches {
		log.Printf("匹配服务: %s 得分: %d", m.Service.ID, m.MatchScore)
	}

	// 启动心跳
	client.StartHeartbeat()
	log.Printf("心跳任务已启动，间隔: %s", config.HeartbeatInterval)

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	log.Println("服务已启动，按Ctrl+C终止...")
	<-quit

	// 优雅关闭
	log.Println("正在关闭服务...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Close(shutdownCtx); err != nil {
		log.Printf("关闭SDK客户端失败: %v", err)
	}
	srv.Shutdown(shutdownCtx)
	log.Println("服务已关闭")
}
