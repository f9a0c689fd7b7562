package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hewenyu/modularity/pkg/model"
)

// Config SDK客户端配置
type Config struct {
	// 注册中心地址，例如 127.0.0.1:5000
	ServerAddr string `json:"server_addr"`
	// 是否使用HTTPS
	Secure bool `json:"secure"`

	// 服务ID，为空时自动生成
	ServiceID    string   `json:"service_id"`
	ServiceName  string   `json:"service_name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
	// 服务对外地址，必须是本机或私有网络地址
	Location string         `json:"location"`
	Mode     model.Mode     `json:"mode"`
	Metadata map[string]any `json:"metadata"`

	// 心跳间隔
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	// 单次请求超时时间
	Timeout time.Duration `json:"timeout"`

	// Logger 为nil时不输出日志
	Logger *zap.Logger `json:"-"`
}

// Client SDK客户端
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger

	mu           sync.Mutex
	serviceID    string
	isRegistered bool
	stopChan     chan struct{}
	heartbeatWG  sync.WaitGroup
}

// Response API响应结构
type Response struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// APIError 注册中心返回的错误
type APIError struct {
	StatusCode int
	Message    string
}

// Error 实现error接口
func (e *APIError) Error() string {
	return fmt.Sprintf("API请求失败: %s (状态码: %d)", e.Message, e.StatusCode)
}

// IsNotFound 判断是否为服务或能力不存在
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsNoActiveProvider 判断是否为能力当前没有活跃提供者
func IsNoActiveProvider(err error) bool {
	return statusOf(err) == http.StatusServiceUnavailable
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// NewClient 创建SDK客户端
func NewClient(config *Config) (*Client, error) {
	if config.ServerAddr == "" {
		return nil, fmt.Errorf("服务器地址不能为空")
	}

	if config.ServiceID == "" {
		config.ServiceID = uuid.New().String()
	}
	if config.Mode == "" {
		config.Mode = model.ModeHTTP
	}
	if config.HeartbeatInterval == 0 {
		config.HeartbeatInterval = 30 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
	}, nil
}

// 构建API地址
func (c *Client) buildURL(path string) string {
	protocol := "http"
	if c.config.Secure {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s%s", protocol, c.config.ServerAddr, path)
}

// 发送HTTP请求，非2xx状态码返回*APIError
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("序列化请求体失败: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("发送HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	var apiResp Response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w, 响应内容: %s", err, string(respBody))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiResp, &APIError{StatusCode: resp.StatusCode, Message: apiResp.Message}
	}

	return &apiResp, nil
}
