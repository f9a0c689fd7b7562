package dns

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/miekg/dns"

	"github.com/hewenyu/modularity/pkg/model"
)

// Source DNS记录的数据来源，由注册表实现
type Source interface {
	ActiveProviders(capability string) []*model.Service
	Get(id string) (*model.Service, error)
}

// 查询名称的类型
type queryKind int

const (
	kindUnknown queryKind = iota
	kindCapability
	kindSRV
	kindNode
)

// RecordManager 把注册表中的活跃服务转换为DNS记录
//
//	<capability>.<domain>        A/AAAA
//	_<capability>._tcp.<domain>  SRV，目标为 <id>.node.<domain>.
//	<id>.node.<domain>           A/AAAA
type RecordManager struct {
	source Source
	domain string
	ttl    uint32
}

// NewRecordManager 创建DNS记录管理器
func NewRecordManager(source Source, domain string, ttl uint32) *RecordManager {
	return &RecordManager{
		source: source,
		domain: strings.ToLower(strings.Trim(domain, ".")),
		ttl:    ttl,
	}
}

// InDomain 判断名称是否属于本地域
func (rm *RecordManager) InDomain(name string) bool {
	n := strings.ToLower(strings.TrimSuffix(name, "."))
	return n == rm.domain || strings.HasSuffix(n, "."+rm.domain)
}

// GetRecords 返回名称对应的记录，exists表示该名称在本地域中是否存在
func (rm *RecordManager) GetRecords(name string, qtype uint16) (records []dns.RR, exists bool) {
	kind, key := rm.parseName(name)

	var services []*model.Service
	switch kind {
	case kindCapability, kindSRV:
		services = rm.source.ActiveProviders(key)
	case kindNode:
		svc, err := rm.source.Get(key)
		if err == nil && svc.IsActive() {
			services = []*model.Service{svc}
		}
	default:
		return nil, false
	}
	if len(services) == 0 {
		return nil, false
	}

	fqdn := dns.Fqdn(strings.TrimSuffix(name, "."))
	for _, svc := range services {
		host, port, err := splitLocation(svc.Location)
		if err != nil {
			continue
		}

		switch {
		case kind == kindSRV && qtype == dns.TypeSRV:
			target := fmt.Sprintf("%s.node.%s.", svc.ID, rm.domain)
			if _, ok := dns.IsDomainName(target); !ok {
				continue
			}
			rr, err := createSRVRecord(fqdn, target, port, rm.ttl)
			if err != nil {
				continue
			}
			records = append(records, rr)
		case kind != kindSRV && (qtype == dns.TypeA || qtype == dns.TypeAAAA):
			ip := hostIP(host, qtype)
			if ip == nil {
				continue
			}
			rr, err := createAddressRecord(fqdn, ip, qtype, rm.ttl)
			if err != nil {
				continue
			}
			records = append(records, rr)
		}
	}

	return records, true
}

// parseName 解析查询名称，返回类型和能力名或服务ID
func (rm *RecordManager) parseName(name string) (queryKind, string) {
	name = strings.TrimSuffix(name, ".")
	lower := strings.ToLower(name)
	if !strings.HasSuffix(lower, "."+rm.domain) {
		return kindUnknown, ""
	}
	prefix := name[:len(name)-len(rm.domain)-1]
	if prefix == "" {
		return kindUnknown, ""
	}

	if strings.HasPrefix(prefix, "_") {
		lp := strings.ToLower(prefix)
		if strings.HasSuffix(lp, "._tcp") {
			capability := strings.TrimPrefix(prefix[:len(prefix)-len("._tcp")], "_")
			if capability != "" {
				return kindSRV, capability
			}
		}
		return kindUnknown, ""
	}

	if strings.HasSuffix(strings.ToLower(prefix), ".node") {
		id := prefix[:len(prefix)-len(".node")]
		if id != "" {
			return kindNode, id
		}
		return kindUnknown, ""
	}

	return kindCapability, prefix
}

// splitLocation 从location中取出主机和端口，未指定端口时按scheme取默认值
func splitLocation(location string) (string, int, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", 0, err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", 0, fmt.Errorf("location缺少主机: %s", location)
	}

	port := 80
	if u.Scheme == "https" {
		port = 443
	}
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, err
		}
		port = n
	}
	return host, port, nil
}

// hostIP 返回主机在指定记录类型下的地址，类型不匹配时返回nil
func hostIP(host string, qtype uint16) net.IP {
	if host == "localhost" {
		if qtype == dns.TypeA {
			return net.IPv4(127, 0, 0, 1)
		}
		return net.IPv6loopback
	}

	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}
	v4 := ip.To4()
	switch {
	case qtype == dns.TypeA && v4 != nil:
		return v4
	case qtype == dns.TypeAAAA && v4 == nil:
		return ip
	}
	return nil
}

// createAddressRecord 创建A或AAAA记录
func createAddressRecord(name string, ip net.IP, qtype uint16, ttl uint32) (dns.RR, error) {
	return dns.NewRR(fmt.Sprintf("%s %d IN %s %s", name, ttl, dns.TypeToString[qtype], ip.String()))
}

// createSRVRecord 创建SRV记录
func createSRVRecord(name, target string, port int, ttl uint32) (dns.RR, error) {
	return dns.NewRR(fmt.Sprintf("%s %d IN SRV 10 10 %d %s", name, ttl, port, target))
}
