package sdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// SendHeartbeat 发送心跳
func (c *Client) SendHeartbeat(ctx context.Context) error {
	id, ok := c.registeredID()
	if !ok {
		return fmt.Errorf("服务尚未注册")
	}

	if _, err := c.doRequest(ctx, http.MethodPost, "/api/heartbeat/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("发送心跳失败: %w", err)
	}
	return nil
}

// StartHeartbeat 开始心跳任务
//
// 注册中心重启后丢失了记录时，心跳返回404，此时自动重新注册。
func (c *Client) StartHeartbeat() {
	c.StopHeartbeat()

	c.mu.Lock()
	stop := make(chan struct{})
	c.stopChan = stop
	c.mu.Unlock()

	c.heartbeatWG.Add(1)
	go func() {
		defer c.heartbeatWG.Done()
		ticker := time.NewTicker(c.config.HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.beat()
			case <-stop:
				return
			}
		}
	}()
}

func (c *Client) beat() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	err := c.SendHeartbeat(ctx)
	if err == nil {
		return
	}
	if IsNotFound(err) {
		c.logger.Warn("注册中心中没有本服务，重新注册")
		if _, err := c.Register(ctx); err != nil {
			c.logger.Warn("重新注册失败", zap.Error(err))
		}
		return
	}
	c.logger.Warn("心跳发送失败，将在下一个周期重试", zap.Error(err))
}

// StopHeartbeat 停止心跳任务，可重复调用
func (c *Client) StopHeartbeat() {
	c.mu.Lock()
	stop := c.stopChan
	c.stopChan = nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		c.heartbeatWG.Wait()
	}
}

// Close 停止心跳并注销服务
func (c *Client) Close(ctx context.Context) error {
	c.StopHeartbeat()

	if c.IsRegistered() {
		if err := c.Unregister(ctx); err != nil {
			return fmt.Errorf("注销服务失败: %w", err)
		}
	}
	return nil
}
