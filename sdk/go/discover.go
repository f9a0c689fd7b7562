package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hewenyu/modularity/pkg/model"
)

// DiscoverRequest 能力发现请求
type DiscoverRequest struct {
	Capabilities []string `json:"capabilities"`
	Optional     []string `json:"optional,omitempty"`
}

type matchList struct {
	Matches []model.Match `json:"matches"`
	Count   int           `json:"count"`
}

type serviceList struct {
	Services []*model.Service `json:"services"`
	Count    int              `json:"count"`
}

// Discover 查找满足全部必需能力的服务，按匹配得分降序返回
func (c *Client) Discover(ctx context.Context, required, optional []string) ([]model.Match, error) {
	if required == nil {
		required = []string{}
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/discover", DiscoverRequest{
		Capabilities: required,
		Optional:     optional,
	})
	if err != nil {
		return nil, fmt.Errorf("服务发现失败: %w", err)
	}

	var list matchList
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		return nil, fmt.Errorf("解析发现结果失败: %w", err)
	}
	return list.Matches, nil
}

// FindProvider 返回提供该能力的一个活跃服务
func (c *Client) FindProvider(ctx context.Context, capability string) (*model.Service, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/capabilities/"+url.PathEscape(capability), nil)
	if err != nil {
		return nil, fmt.Errorf("查找能力提供者失败: %w", err)
	}

	var svc model.Service
	if err := json.Unmarshal(resp.Data, &svc); err != nil {
		return nil, fmt.Errorf("解析服务信息失败: %w", err)
	}
	return &svc, nil
}

// ListServices 列出服务，status为空时返回全部
func (c *Client) ListServices(ctx context.Context, status model.Status) ([]*model.Service, error) {
	path := "/api/services"
	if status != "" {
		path += "?status=" + url.QueryEscape(string(status))
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("获取服务列表失败: %w", err)
	}

	var list serviceList
	if err := json.Unmarshal(resp.Data, &list); err != nil {
		return nil, fmt.Errorf("解析服务列表失败: %w", err)
	}
	return list.Services, nil
}
