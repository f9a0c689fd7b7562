package model

import "time"

// Mode 表示服务的运行模式
type Mode string

const (
	// ModeHTTP 通过HTTP对外提供能力，会被健康检查主动探测
	ModeHTTP Mode = "http"
	// ModeEmbedded 以嵌入模块方式运行
	ModeEmbedded Mode = "embedded"
	// ModeStandalone 独立进程运行
	ModeStandalone Mode = "standalone"
)

// Valid 判断运行模式是否合法
func (m Mode) Valid() bool {
	switch m {
	case ModeHTTP, ModeEmbedded, ModeStandalone:
		return true
	}
	return false
}

// Status 表示服务存活状态
type Status string

const (
	// StatusActive 服务可被发现
	StatusActive Status = "active"
	// StatusInactive 服务连续探测失败，不参与能力查询与发现
	StatusInactive Status = "inactive"
)

// DefaultVersion 注册时未指定版本使用的默认值
const DefaultVersion = "1.0.0"

// UnknownRuntime 元数据中没有runtime字段时的统计分组
const UnknownRuntime = "unknown"

// Service 表示一条服务注册记录
type Service struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Version      string         `json:"version"`
	Capabilities []string       `json:"capabilities"`
	Location     string         `json:"location"`
	Mode         Mode           `json:"mode"`
	Status       Status         `json:"status"`
	FailedChecks int            `json:"failed_checks"`
	RegisteredAt time.Time      `json:"registered_at"`
	LastSeen     time.Time      `json:"last_seen"`
	Metadata     map[string]any `json:"metadata"`
}

// Clone 返回记录的副本，调用方可以自由修改
func (s *Service) Clone() *Service {
	if s == nil {
		return nil
	}
	c := *s
	if s.Capabilities != nil {
		c.Capabilities = append([]string(nil), s.Capabilities...)
	}
	if s.Metadata != nil {
		c.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// HasCapability 判断服务是否声明了指定能力
func (s *Service) HasCapability(capability string) bool {
	for _, c := range s.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// IsActive 判断服务是否处于活跃状态
func (s *Service) IsActive() bool {
	return s.Status == StatusActive
}

// Runtime 返回元数据中的runtime字段，仅用于统计
func (s *Service) Runtime() string {
	if rt, ok := s.Metadata["runtime"].(string); ok && rt != "" {
		return rt
	}
	return UnknownRuntime
}

// Registration 表示一次服务注册请求的内容
type Registration struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Version      string         `json:"version,omitempty"`
	Capabilities []string       `json:"capabilities"`
	Location     string         `json:"location"`
	Mode         Mode           `json:"mode"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Snapshot 是服务表的完整副本，用于持久化
type Snapshot map[string]*Service
