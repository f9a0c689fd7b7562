package dns

import (
	"context"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// DNSCache 缓存完整的DNS响应
//
// 注册表发生任何变化时整体清空，过期条目由后台协程定期清理。
type DNSCache struct {
	mu         sync.RWMutex
	cache      map[string]*cacheEntry
	defaultTTL time.Duration
	// generation 每次Purge加一，用来丢弃在清空之前生成的响应
	generation uint64
}

type cacheEntry struct {
	msg      *dns.Msg
	expireAt time.Time
}

// NewDNSCache 创建DNS缓存，defaultTTL单位为秒，小于等于0时不缓存
func NewDNSCache(defaultTTL int) *DNSCache {
	return &DNSCache{
		cache:      make(map[string]*cacheEntry),
		defaultTTL: time.Duration(defaultTTL) * time.Second,
	}
}

// Get 返回未过期的缓存响应副本
func (c *DNSCache) Get(key string) *dns.Msg {
	c.mu.RLock()
	entry, found := c.cache[key]
	c.mu.RUnlock()

	if !found || time.Now().After(entry.expireAt) {
		return nil
	}
	return entry.msg.Copy()
}

// Set 使用默认TTL缓存响应
func (c *DNSCache) Set(key string, msg *dns.Msg) {
	c.SetWithTTL(key, msg, c.defaultTTL)
}

// SetWithTTL 使用指定TTL缓存响应
func (c *DNSCache) SetWithTTL(key string, msg *dns.Msg, ttl time.Duration) {
	if msg == nil || ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[key] = &cacheEntry{
		msg:      msg.Copy(),
		expireAt: time.Now().Add(ttl),
	}
}

// SetIfGeneration 只有在gen之后没有发生过Purge时才缓存响应
func (c *DNSCache) SetIfGeneration(key string, msg *dns.Msg, gen uint64) bool {
	if msg == nil || c.defaultTTL <= 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	c.cache[key] = &cacheEntry{
		msg:      msg.Copy(),
		expireAt: time.Now().Add(c.defaultTTL),
	}
	return true
}

// Generation 返回当前的清空代数，在读取注册表之前获取
func (c *DNSCache) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generation
}

// Purge 清空所有缓存
func (c *DNSCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*cacheEntry)
	c.generation++
}

// Len 返回缓存条目数量，包括尚未清理的过期条目
func (c *DNSCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// CleanupExpired 清理所有过期缓存
func (c *DNSCache) CleanupExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.cache {
		if now.After(entry.expireAt) {
			delete(c.cache, key)
		}
	}
}

// StartCleanupRoutine 定期清理过期缓存，直到ctx被取消
func (c *DNSCache) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.CleanupExpired()
			}
		}
	}()
}

// GetCacheKey 生成缓存键，名称不区分大小写
func GetCacheKey(q dns.Question) string {
	return dns.CanonicalName(q.Name) + "-" + dns.TypeToString[q.Qtype]
}
