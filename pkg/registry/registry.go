package registry

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hewenyu/modularity/internal/config"
	"github.com/hewenyu/modularity/pkg/events"
	"github.com/hewenyu/modularity/pkg/model"
	"github.com/hewenyu/modularity/pkg/netguard"
	"github.com/hewenyu/modularity/pkg/storage"
	"go.uber.org/zap"
)

// Options 注册中心配置
type Options struct {
	// Store 快照存储，为nil时不做持久化
	Store storage.SnapshotStore
	// SyncWrites 为true时在锁内同步写快照，否则由后台协程合并写入
	SyncWrites bool
	Logger     config.Logger
	// Publisher 事件发布者，可以为nil
	Publisher events.Publisher
	// LocationAllowed 校验location的函数，默认使用netguard.IsAllowed
	LocationAllowed func(string) bool
	// Now 时间函数，测试时可替换
	Now func() time.Time
}

// Registry 服务表与能力索引
//
// 两个map由同一把锁保护，只能通过方法访问。
// 能力索引始终可以由服务表重新推导出来。
type Registry struct {
	mu       sync.RWMutex
	services map[string]*model.Service
	index    map[string][]string

	store           storage.SnapshotStore
	syncWrites      bool
	logger          config.Logger
	publisher       events.Publisher
	locationAllowed func(string) bool
	now             func() time.Time

	dirty      chan struct{}
	stop       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once
}

// New 创建注册中心，异步写模式下会启动后台写协程
func New(opts Options) *Registry {
	r := &Registry{
		services:        make(map[string]*model.Service),
		index:           make(map[string][]string),
		store:           opts.Store,
		syncWrites:      opts.SyncWrites,
		logger:          opts.Logger,
		publisher:       opts.Publisher,
		locationAllowed: opts.LocationAllowed,
		now:             opts.Now,
		dirty:           make(chan struct{}, 1),
		stop:            make(chan struct{}),
		writerDone:      make(chan struct{}),
	}
	if r.logger == nil {
		r.logger = config.NewNopLogger()
	}
	if r.locationAllowed == nil {
		r.locationAllowed = netguard.IsAllowed
	}
	if r.now == nil {
		r.now = func() time.Time { return time.Now().UTC() }
	}

	if r.store != nil && !r.syncWrites {
		go r.writeLoop()
	} else {
		close(r.writerDone)
	}

	return r
}

// Register 注册或替换服务，返回服务ID
func (r *Registry) Register(ctx context.Context, reg model.Registration) (string, error) {
	if err := validateRegistration(reg, r.locationAllowed); err != nil {
		return "", err
	}

	now := r.now()
	svc := &model.Service{
		ID:           reg.ID,
		Name:         reg.Name,
		Version:      reg.Version,
		Capabilities: dedupe(reg.Capabilities),
		Location:     reg.Location,
		Mode:         reg.Mode,
		Status:       model.StatusActive,
		FailedChecks: 0,
		RegisteredAt: now,
		LastSeen:     now,
		Metadata:     make(map[string]any, len(reg.Metadata)),
	}
	if svc.Version == "" {
		svc.Version = model.DefaultVersion
	}
	for k, v := range reg.Metadata {
		svc.Metadata[k] = v
	}

	r.mu.Lock()
	if old, ok := r.services[svc.ID]; ok {
		r.removeFromIndexLocked(old)
	}
	r.services[svc.ID] = svc
	r.addToIndexLocked(svc)
	r.persistLocked(ctx)
	r.mu.Unlock()

	r.logger.Info("服务已注册",
		zap.String("service_id", svc.ID),
		zap.String("name", svc.Name),
		zap.Strings("capabilities", svc.Capabilities),
		zap.String("location", svc.Location))
	r.publish(events.TopicServiceRegistered, svc.ID, svc.Status)

	return svc.ID, nil
}

// Unregister 注销服务
func (r *Registry) Unregister(ctx context.Context, id string) error {
	r.mu.Lock()
	svc, ok := r.services[id]
	if !ok {
		r.mu.Unlock()
		return NewNotFoundError("服务不存在: " + id)
	}
	r.removeFromIndexLocked(svc)
	delete(r.services, id)
	r.persistLocked(ctx)
	r.mu.Unlock()

	r.logger.Info("服务已注销", zap.String("service_id", id))
	r.publish(events.TopicServiceUnregistered, id, "")
	return nil
}

// Heartbeat 刷新服务的存活状态
func (r *Registry) Heartbeat(ctx context.Context, id string) (*model.Service, error) {
	r.mu.Lock()
	svc, ok := r.services[id]
	if !ok {
		r.mu.Unlock()
		return nil, NewNotFoundError("服务不存在: " + id)
	}
	revived := svc.Status != model.StatusActive
	svc.Status = model.StatusActive
	svc.FailedChecks = 0
	svc.LastSeen = r.now()
	out := svc.Clone()
	r.persistLocked(ctx)
	r.mu.Unlock()

	r.logger.Debug("收到心跳", zap.String("service_id", id))
	if revived {
		r.publish(events.TopicServiceStatusChanged, id, model.StatusActive)
	}
	return out, nil
}

// Get 返回服务记录的副本
func (r *Registry) Get(id string) (*model.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	svc, ok := r.services[id]
	if !ok {
		return nil, NewNotFoundError("服务不存在: " + id)
	}
	return svc.Clone(), nil
}

// List 返回所有服务的副本，status非空时按状态精确过滤，结果按ID排序
func (r *Registry) List(status model.Status) []*model.Service {
	r.mu.RLock()
	out := make([]*model.Service, 0, len(r.services))
	for _, svc := range r.services {
		if status != "" && svc.Status != status {
			continue
		}
		out = append(out, svc.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CapabilitiesSummary 返回每个能力当前的活跃提供者，没有活跃提供者的能力不出现
func (r *Registry) CapabilitiesSummary() []model.CapabilitySummary {
	r.mu.RLock()
	out := make([]model.CapabilitySummary, 0, len(r.index))
	for capability, ids := range r.index {
		var active []string
		for _, id := range ids {
			if svc, ok := r.services[id]; ok && svc.IsActive() {
				active = append(active, id)
			}
		}
		if len(active) == 0 {
			continue
		}
		out = append(out, model.CapabilitySummary{
			Capability: capability,
			Providers:  active,
			Count:      len(active),
		})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Capability < out[j].Capability })
	return out
}

// FindProvider 按注册顺序返回第一个提供该能力的活跃服务
func (r *Registry) FindProvider(capability string) (*model.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, ok := r.index[capability]
	if !ok {
		return nil, NewNotFoundError("能力不存在: " + capability)
	}
	for _, id := range ids {
		if svc, ok := r.services[id]; ok && svc.IsActive() {
			return svc.Clone(), nil
		}
	}
	return nil, NewNoActiveProviderError(capability)
}

// ActiveProviders 返回提供该能力的所有活跃服务，按注册顺序
func (r *Registry) ActiveProviders(capability string) []*model.Service {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*model.Service
	for _, id := range r.index[capability] {
		if svc, ok := r.services[id]; ok && svc.IsActive() {
			out = append(out, svc.Clone())
		}
	}
	return out
}

// Stats 返回注册中心统计信息
func (r *Registry) Stats() model.Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := model.Stats{
		TotalServices:     len(r.services),
		TotalCapabilities: len(r.index),
		ServicesByRuntime: make(map[string]int),
	}
	for _, svc := range r.services {
		if svc.IsActive() {
			stats.ActiveServices++
		}
		stats.ServicesByRuntime[svc.Runtime()]++
	}
	stats.InactiveServices = stats.TotalServices - stats.ActiveServices
	return stats
}

// addToIndexLocked 将服务加入它声明的每个能力桶，调用方必须持有写锁
func (r *Registry) addToIndexLocked(svc *model.Service) {
	for _, capability := range svc.Capabilities {
		ids := r.index[capability]
		if !containsString(ids, svc.ID) {
			r.index[capability] = append(ids, svc.ID)
		}
	}
}

// removeFromIndexLocked 将服务从它所在的能力桶中移除，空桶被删除
func (r *Registry) removeFromIndexLocked(svc *model.Service) {
	for _, capability := range svc.Capabilities {
		ids, ok := r.index[capability]
		if !ok {
			continue
		}
		kept := ids[:0]
		for _, id := range ids {
			if id != svc.ID {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(r.index, capability)
		} else {
			r.index[capability] = kept
		}
	}
}

// rebuildIndexLocked 从服务表重建能力索引，服务按ID排序加入
func (r *Registry) rebuildIndexLocked() {
	r.index = make(map[string][]string)
	ids := make([]string, 0, len(r.services))
	for id := range r.services {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r.addToIndexLocked(r.services[id])
	}
}

func (r *Registry) publish(topic events.Topic, id string, status model.Status) {
	if r.publisher == nil {
		return
	}
	r.publisher.Publish(events.Event{
		Topic:     topic,
		ServiceID: id,
		Status:    string(status),
		Timestamp: r.now(),
	})
}

// validateRegistration 按固定顺序校验注册字段：id、name、location、location策略、mode
//
// capabilities为nil等同于空列表，字段缺失由传输层判断。
func validateRegistration(reg model.Registration, locationAllowed func(string) bool) error {
	if strings.TrimSpace(reg.ID) == "" {
		return NewValidationError("id", "id不能为空")
	}
	if strings.TrimSpace(reg.Name) == "" {
		return NewValidationError("name", "name不能为空")
	}
	if strings.TrimSpace(reg.Location) == "" {
		return NewValidationError("location", "location不能为空")
	}
	if !locationAllowed(reg.Location) {
		return NewLocationRejectedError(reg.Location)
	}
	if !reg.Mode.Valid() {
		return NewValidationError("mode", "mode必须是http、embedded或standalone之一")
	}
	return nil
}

// dedupe 去掉重复的能力名，保持原有顺序
func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
