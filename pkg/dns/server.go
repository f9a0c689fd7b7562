package dns

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/hewenyu/modularity/internal/config"
	"github.com/hewenyu/modularity/pkg/events"
)

// Server 以DNS形式暴露能力查询
type Server struct {
	addr       string
	udpServer  *dns.Server
	tcpServer  *dns.Server
	handler    *Handler
	cache      *DNSCache
	logger     config.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewServer 创建DNS服务器
func NewServer(cfg config.DNSConfig, source Source, logger config.Logger) *Server {
	cache := NewDNSCache(cfg.CacheTTL)
	recordManager := NewRecordManager(source, cfg.Domain, cfg.TTL)
	upstream := NewUpstreamResolver(cfg.Upstream, cache)

	return &Server{
		addr:    cfg.Addr,
		handler: NewHandler(recordManager, upstream, cache, logger),
		cache:   cache,
		logger:  logger,
	}
}

// Invalidate 注册表事件到达时清空缓存
func (s *Server) Invalidate(e events.Event) {
	s.cache.Purge()
	s.logger.Debug("DNS缓存已清空",
		zap.String("topic", string(e.Topic)),
		zap.String("service_id", e.ServiceID))
}

// Start 监听UDP和TCP并开始服务
//
// 监听失败时直接返回错误。TCP使用与UDP相同的端口，TCP监听失败只记录警告。
func (s *Server) Start(ctx context.Context) error {
	pc, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("DNS UDP监听失败: %w", err)
	}
	s.udpServer = &dns.Server{PacketConn: pc, Handler: s.handler}

	tcpAddr := pc.LocalAddr().String()
	if ln, err := net.Listen("tcp", tcpAddr); err != nil {
		s.logger.Warn("DNS TCP监听失败，只提供UDP服务", zap.String("addr", tcpAddr), zap.Error(err))
	} else {
		s.tcpServer = &dns.Server{Listener: ln, Handler: s.handler}
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel
	s.cache.StartCleanupRoutine(ctx, time.Minute)

	if err := s.serve(s.udpServer, "udp"); err != nil {
		cancel()
		return err
	}
	if s.tcpServer != nil {
		if err := s.serve(s.tcpServer, "tcp"); err != nil {
			s.logger.Warn("DNS TCP服务启动失败", zap.Error(err))
			s.tcpServer = nil
		}
	}

	s.logger.Info("DNS服务器已启动", zap.String("addr", tcpAddr))
	return nil
}

// serve 启动服务协程并等待服务器就绪，保证之后的Shutdown一定生效
func (s *Server) serve(srv *dns.Server, network string) error {
	started := make(chan struct{})
	failed := make(chan error, 1)
	srv.NotifyStartedFunc = func() { close(started) }

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := srv.ActivateAndServe(); err != nil {
			failed <- err
			s.logger.Error("DNS服务器退出", zap.String("net", network), zap.Error(err))
		}
	}()

	select {
	case <-started:
		return nil
	case err := <-failed:
		return fmt.Errorf("DNS %s服务启动失败: %w", network, err)
	case <-time.After(5 * time.Second):
		return fmt.Errorf("DNS %s服务启动超时", network)
	}
}

// Addr 返回实际监听的UDP地址，未启动时返回配置地址
func (s *Server) Addr() string {
	if s.udpServer != nil && s.udpServer.PacketConn != nil {
		return s.udpServer.PacketConn.LocalAddr().String()
	}
	return s.addr
}

// Stop 停止DNS服务器
func (s *Server) Stop() error {
	if s.cancelFunc != nil {
		s.cancelFunc()
	}

	if s.udpServer != nil {
		if err := s.udpServer.Shutdown(); err != nil {
			s.logger.Warn("关闭DNS UDP服务器失败", zap.Error(err))
		}
	}
	if s.tcpServer != nil {
		if err := s.tcpServer.Shutdown(); err != nil {
			s.logger.Warn("关闭DNS TCP服务器失败", zap.Error(err))
		}
	}

	s.wg.Wait()
	s.logger.Info("DNS服务器已停止")
	return nil
}
