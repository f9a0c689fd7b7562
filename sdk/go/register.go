package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// RegisterRequest 服务注册请求
type RegisterRequest struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Version      string         `json:"version,omitempty"`
	Capabilities []string       `json:"capabilities"`
	Location     string         `json:"location"`
	Mode         string         `json:"mode"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// RegisterResponse 注册响应数据
type RegisterResponse struct {
	ServiceID string `json:"service_id"`
}

// Register 注册服务，重复调用会用当前配置替换注册表中的记录
func (c *Client) Register(ctx context.Context) (string, error) {
	caps := c.config.Capabilities
	if caps == nil {
		caps = []string{}
	}

	req := RegisterRequest{
		ID:           c.config.ServiceID,
		Name:         c.config.ServiceName,
		Version:      c.config.Version,
		Capabilities: caps,
		Location:     c.config.Location,
		Mode:         string(c.config.Mode),
		Metadata:     c.config.Metadata,
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/register", req)
	if err != nil {
		return "", fmt.Errorf("服务注册失败: %w", err)
	}

	var registerResp RegisterResponse
	if err := json.Unmarshal(resp.Data, &registerResp); err != nil {
		return "", fmt.Errorf("解析注册响应失败: %w", err)
	}

	c.mu.Lock()
	c.serviceID = registerResp.ServiceID
	c.isRegistered = true
	c.mu.Unlock()

	return registerResp.ServiceID, nil
}

// Unregister 注销服务
func (c *Client) Unregister(ctx context.Context) error {
	id, ok := c.registeredID()
	if !ok {
		return fmt.Errorf("服务尚未注册")
	}

	if _, err := c.doRequest(ctx, http.MethodDelete, "/api/unregister/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("服务注销失败: %w", err)
	}

	c.mu.Lock()
	c.isRegistered = false
	c.serviceID = ""
	c.mu.Unlock()

	return nil
}

// GetServiceID 获取服务ID
func (c *Client) GetServiceID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serviceID
}

// IsRegistered 检查服务是否已注册
func (c *Client) IsRegistered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isRegistered
}

func (c *Client) registeredID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serviceID, c.isRegistered
}
