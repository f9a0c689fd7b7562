package dns

import (
	"github.com/miekg/dns"
	"go.uber.org/zap"

	"github.com/hewenyu/modularity/internal/config"
)

// Handler DNS请求处理器
type Handler struct {
	recordManager    *RecordManager
	upstreamResolver *UpstreamResolver
	cache            *DNSCache
	logger           config.Logger
}

// NewHandler 创建DNS请求处理器，upstreamResolver可以为nil
func NewHandler(recordManager *RecordManager, upstreamResolver *UpstreamResolver, cache *DNSCache, logger config.Logger) *Handler {
	return &Handler{
		recordManager:    recordManager,
		upstreamResolver: upstreamResolver,
		cache:            cache,
		logger:           logger,
	}
}

// ServeDNS 处理DNS请求
func (h *Handler) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)

	// 只处理标准查询
	if r.Opcode != dns.OpcodeQuery {
		m.Rcode = dns.RcodeNotImplemented
		w.WriteMsg(m)
		return
	}
	if len(r.Question) == 0 {
		m.Rcode = dns.RcodeFormatError
		w.WriteMsg(m)
		return
	}

	q := r.Question[0]
	if !h.recordManager.InDomain(q.Name) {
		h.handleUpstreamQuery(w, r, m)
		return
	}

	cacheKey := GetCacheKey(q)
	if cached := h.cache.Get(cacheKey); cached != nil {
		cached.Id = r.Id
		w.WriteMsg(cached)
		return
	}

	h.handleLocalDomain(w, m, q, cacheKey)
}

// handleLocalDomain 处理本地域名查询
func (h *Handler) handleLocalDomain(w dns.ResponseWriter, m *dns.Msg, q dns.Question, cacheKey string) {
	m.Authoritative = true

	gen := h.cache.Generation()
	records, exists := h.recordManager.GetRecords(q.Name, q.Qtype)
	if !exists {
		m.Rcode = dns.RcodeNameError
	} else {
		// 名称存在但没有该类型的记录时返回空应答
		m.Answer = append(m.Answer, records...)
	}

	// 查询期间注册表发生变化时不缓存，避免旧结果在清空后被写回
	h.cache.SetIfGeneration(cacheKey, m, gen)
	if err := w.WriteMsg(m); err != nil {
		h.logger.Debug("写入DNS响应失败", zap.Error(err))
	}
}

// handleUpstreamQuery 转发到上游，没有配置上游时返回NXDOMAIN
func (h *Handler) handleUpstreamQuery(w dns.ResponseWriter, r *dns.Msg, m *dns.Msg) {
	if h.upstreamResolver == nil {
		m.Rcode = dns.RcodeNameError
		w.WriteMsg(m)
		return
	}

	resp, err := h.upstreamResolver.Resolve(r)
	if err != nil {
		h.logger.Warn("上游DNS查询失败", zap.String("name", r.Question[0].Name), zap.Error(err))
		m.Rcode = dns.RcodeServerFailure
		w.WriteMsg(m)
		return
	}

	w.WriteMsg(resp)
}
