package model

// Match 表示一次能力发现的匹配结果
type Match struct {
	Service          *Service `json:"service"`
	MatchScore       int      `json:"match_score"`
	ProvidesRequired []string `json:"provides_required"`
	ProvidesOptional []string `json:"provides_optional"`
}

// CapabilitySummary 某个能力当前的活跃提供者
type CapabilitySummary struct {
	Capability string   `json:"capability"`
	Providers  []string `json:"providers"`
	Count      int      `json:"count"`
}

// Stats 注册中心统计信息
type Stats struct {
	TotalServices     int            `json:"total_services"`
	ActiveServices    int            `json:"active_services"`
	InactiveServices  int            `json:"inactive_services"`
	TotalCapabilities int            `json:"total_capabilities"`
	ServicesByRuntime map[string]int `json:"services_by_runtime"`
}
