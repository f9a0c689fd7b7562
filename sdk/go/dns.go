package sdk

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
)

// DNSResolver 通过注册中心的DNS服务按能力解析服务地址
type DNSResolver struct {
	dnsServer string
	domain    string
	cacheTTL  time.Duration
	client    *dns.Client

	cacheLocker sync.RWMutex
	hostCache   map[string]hostCacheEntry
	srvCache    map[string]srvCacheEntry
}

type hostCacheEntry struct {
	addrs      []string
	expiration time.Time
}

type srvCacheEntry struct {
	targets    []*net.SRV
	expiration time.Time
}

// NewDNSResolver 创建DNS解析客户端
//
// dnsServer为空时使用127.0.0.1:5353，domain为空时使用modularity.local，
// cacheTTL小于等于0时不缓存。
func NewDNSResolver(dnsServer, domain string, cacheTTL time.Duration) *DNSResolver {
	if dnsServer == "" {
		dnsServer = "127.0.0.1:5353"
	}
	if domain == "" {
		domain = "modularity.local"
	}

	return &DNSResolver{
		dnsServer: dnsServer,
		domain:    strings.TrimSuffix(domain, "."),
		cacheTTL:  cacheTTL,
		client:    &dns.Client{Timeout: 5 * time.Second},
		hostCache: make(map[string]hostCacheEntry),
		srvCache:  make(map[string]srvCacheEntry),
	}
}

// LookupCapability 返回提供该能力的所有活跃服务的IP
func (d *DNSResolver) LookupCapability(ctx context.Context, capability string) ([]string, error) {
	return d.lookupHost(ctx, capability+"."+d.domain)
}

// ResolveCapability 通过SRV记录选出一个提供者，返回 主机:端口
func (d *DNSResolver) ResolveCapability(ctx context.Context, capability string) (string, error) {
	srvs, err := d.lookupSRV(ctx, fmt.Sprintf("_%s._tcp.%s", capability, d.domain))
	if err != nil {
		return "", err
	}

	srv := selectSRVByWeight(srvs)
	addrs, err := d.lookupHost(ctx, strings.TrimSuffix(srv.Target, "."))
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(addrs[rand.Intn(len(addrs))], strconv.Itoa(int(srv.Port))), nil
}

// lookupHost 查询A与AAAA记录
func (d *DNSResolver) lookupHost(ctx context.Context, name string) ([]string, error) {
	if addrs, ok := d.getHostFromCache(name); ok {
		return addrs, nil
	}

	var addrs []string
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		r, err := d.exchange(ctx, name, qtype)
		if err != nil {
			return nil, err
		}
		for _, rr := range r.Answer {
			switch rec := rr.(type) {
			case *dns.A:
				addrs = append(addrs, rec.A.String())
			case *dns.AAAA:
				addrs = append(addrs, rec.AAAA.String())
			}
		}
	}

	if len(addrs) == 0 {
		return nil, fmt.Errorf("未找到[%s]的地址", name)
	}

	d.updateHostCache(name, addrs)
	return addrs, nil
}

// lookupSRV 查询SRV记录
func (d *DNSResolver) lookupSRV(ctx context.Context, name string) ([]*net.SRV, error) {
	if srvs, ok := d.getSRVFromCache(name); ok {
		return srvs, nil
	}

	r, err := d.exchange(ctx, name, dns.TypeSRV)
	if err != nil {
		return nil, err
	}

	var srvs []*net.SRV
	for _, rr := range r.Answer {
		if rec, ok := rr.(*dns.SRV); ok {
			srvs = append(srvs, &net.SRV{
				Target:   rec.Target,
				Port:     rec.Port,
				Priority: rec.Priority,
				Weight:   rec.Weight,
			})
		}
	}

	if len(srvs) == 0 {
		return nil, fmt.Errorf("未找到[%s]的SRV记录", name)
	}

	d.updateSRVCache(name, srvs)
	return srvs, nil
}

func (d *DNSResolver) exchange(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = true

	r, _, err := d.client.ExchangeContext(ctx, m, d.dnsServer)
	if err != nil {
		return nil, fmt.Errorf("DNS查询[%s]失败: %w", name, err)
	}
	if r.Rcode == dns.RcodeNameError {
		return nil, fmt.Errorf("能力或服务[%s]不存在", name)
	}
	if r.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("DNS查询[%s]失败: %s", name, dns.RcodeToString[r.Rcode])
	}
	return r, nil
}

func (d *DNSResolver) getHostFromCache(name string) ([]string, bool) {
	d.cacheLocker.RLock()
	defer d.cacheLocker.RUnlock()

	entry, ok := d.hostCache[name]
	if !ok || time.Now().After(entry.expiration) {
		return nil, false
	}
	return entry.addrs, true
}

func (d *DNSResolver) updateHostCache(name string, addrs []string) {
	if d.cacheTTL <= 0 {
		return
	}
	d.cacheLocker.Lock()
	defer d.cacheLocker.Unlock()

	d.hostCache[name] = hostCacheEntry{
		addrs:      addrs,
		expiration: time.Now().Add(d.cacheTTL),
	}
}

func (d *DNSResolver) getSRVFromCache(name string) ([]*net.SRV, bool) {
	d.cacheLocker.RLock()
	defer d.cacheLocker.RUnlock()

	entry, ok := d.srvCache[name]
	if !ok || time.Now().After(entry.expiration) {
		return nil, false
	}
	return entry.targets, true
}

func (d *DNSResolver) updateSRVCache(name string, srvs []*net.SRV) {
	if d.cacheTTL <= 0 {
		return
	}
	d.cacheLocker.Lock()
	defer d.cacheLocker.Unlock()

	d.srvCache[name] = srvCacheEntry{
		targets:    srvs,
		expiration: time.Now().Add(d.cacheTTL),
	}
}

// selectSRVByWeight 按权重随机选择，srvs不能为空
func selectSRVByWeight(srvs []*net.SRV) *net.SRV {
	if len(srvs) == 1 {
		return srvs[0]
	}

	totalWeight := 0
	for _, srv := range srvs {
		totalWeight += int(srv.Weight)
	}
	if totalWeight == 0 {
		return srvs[rand.Intn(len(srvs))]
	}

	n := rand.Intn(totalWeight)
	for _, srv := range srvs {
		n -= int(srv.Weight)
		if n < 0 {
			return srv
		}
	}
	return srvs[0]
}
