package dns

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hewenyu/modularity/internal/config"
	"github.com/hewenyu/modularity/pkg/model"
)

// recordingWriter 只记录写出的响应
type recordingWriter struct {
	dns.ResponseWriter
	msg *dns.Msg
}

func (w *recordingWriter) WriteMsg(m *dns.Msg) error {
	w.msg = m
	return nil
}

// purgingSource 在读取注册表时触发一次缓存清空，模拟并发到达的注册表事件
type purgingSource struct {
	*fakeSource
	cache *DNSCache
}

func (p *purgingSource) ActiveProviders(capability string) []*model.Service {
	out := p.fakeSource.ActiveProviders(capability)
	p.cache.Purge()
	return out
}

func serve(h *Handler, name string, qtype uint16) *dns.Msg {
	req := new(dns.Msg)
	req.SetQuestion(dns.Fqdn(name), qtype)
	w := &recordingWriter{}
	h.ServeDNS(w, req)
	return w.msg
}

func TestHandlerCachesLocalAnswers(t *testing.T) {
	cache := NewDNSCache(60)
	rm := NewRecordManager(newFakeSource(), "modularity.local", 30)
	h := NewHandler(rm, nil, cache, config.NewNopLogger())

	resp := serve(h, "greet.modularity.local", dns.TypeA)
	require.NotNil(t, resp)
	assert.Len(t, resp.Answer, 2)
	assert.Equal(t, 1, cache.Len())

	resp = serve(h, "unknown.modularity.local", dns.TypeA)
	assert.Equal(t, dns.RcodeNameError, resp.Rcode)
	assert.Equal(t, 2, cache.Len())

	resp = serve(h, "example.com", dns.TypeA)
	assert.Equal(t, dns.RcodeNameError, resp.Rcode)
	assert.Equal(t, 2, cache.Len(), "没有上游时外部名称不缓存")
}

func TestHandlerSkipsCacheWhenPurgedDuringLookup(t *testing.T) {
	cache := NewDNSCache(60)
	src := &purgingSource{fakeSource: newFakeSource(), cache: cache}
	rm := NewRecordManager(src, "modularity.local", 30)
	h := NewHandler(rm, nil, cache, config.NewNopLogger())

	resp := serve(h, "greet.modularity.local", dns.TypeA)
	require.NotNil(t, resp)
	assert.Len(t, resp.Answer, 2, "本次查询仍然正常应答")
	assert.Equal(t, 0, cache.Len(), "查询期间缓存被清空时不应写回旧结果")
}

func TestCacheGeneration(t *testing.T) {
	c := NewDNSCache(60)
	msg := new(dns.Msg)
	msg.SetQuestion("a.modularity.local.", dns.TypeA)
	key := GetCacheKey(msg.Question[0])

	gen := c.Generation()
	c.Purge()
	assert.False(t, c.SetIfGeneration(key, msg, gen))
	assert.Nil(t, c.Get(key))

	assert.True(t, c.SetIfGeneration(key, msg, c.Generation()))
	assert.NotNil(t, c.Get(key))

	assert.False(t, NewDNSCache(0).SetIfGeneration(key, msg, 0))
}
