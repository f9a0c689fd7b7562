package dns

import (
	"errors"
	"math/rand"
	"time"

	"github.com/miekg/dns"
)

// UpstreamResolver 把非本地域的查询转发到上游DNS
type UpstreamResolver struct {
	servers []string
	client  *dns.Client
	cache   *DNSCache
}

// NewUpstreamResolver 创建上游解析器，没有配置上游时返回nil
func NewUpstreamResolver(servers []string, cache *DNSCache) *UpstreamResolver {
	if len(servers) == 0 {
		return nil
	}

	return &UpstreamResolver{
		servers: servers,
		client: &dns.Client{
			Net:     "udp",
			Timeout: 5 * time.Second,
		},
		cache: cache,
	}
}

// Resolve 转发查询，失败时换一个上游重试一次
func (ur *UpstreamResolver) Resolve(req *dns.Msg) (*dns.Msg, error) {
	if len(req.Question) == 0 {
		return nil, errors.New("无效的DNS请求：没有问题部分")
	}

	cacheKey := GetCacheKey(req.Question[0])
	if cachedResp := ur.cache.Get(cacheKey); cachedResp != nil {
		cachedResp.Id = req.Id
		return cachedResp, nil
	}

	server := ur.randomServer()
	resp, _, err := ur.client.Exchange(req, server)
	if err != nil {
		if len(ur.servers) == 1 {
			return nil, err
		}
		resp, _, err = ur.client.Exchange(req, ur.randomServerExcept(server))
		if err != nil {
			return nil, err
		}
	}

	if resp != nil && resp.Rcode == dns.RcodeSuccess {
		// 使用回答中最小的TTL
		ttl := 60 * time.Second
		if len(resp.Answer) > 0 {
			minTTL := resp.Answer[0].Header().Ttl
			for _, rr := range resp.Answer {
				if rr.Header().Ttl < minTTL {
					minTTL = rr.Header().Ttl
				}
			}
			ttl = time.Duration(minTTL) * time.Second
		}
		ur.cache.SetWithTTL(cacheKey, resp, ttl)
	}

	return resp, nil
}

func (ur *UpstreamResolver) randomServer() string {
	return ur.servers[rand.Intn(len(ur.servers))]
}

func (ur *UpstreamResolver) randomServerExcept(except string) string {
	for _, s := range ur.servers {
		if s != except {
			return s
		}
	}
	return except
}
