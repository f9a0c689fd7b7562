// Package netguard 判断一个网络地址是否允许被注册或探测。
//
// 只允许本地回环与私有网段的IP字面量，不做任何DNS解析，
// 避免注册中心被用作向任意外部地址发起请求的代理。
package netguard

import (
	"net/netip"
	"net/url"
	"strings"
)

// loopbackNames 直接放行的回环主机名
var loopbackNames = map[string]struct{}{
	"localhost": {},
	"127.0.0.1": {},
	"::1":       {},
}

// IsAllowed 判断URL是否指向允许的地址
func IsAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return false
	}

	if _, ok := loopbackNames[host]; ok {
		return true
	}

	return IsAllowedHost(host)
}

// IsAllowedHost 判断主机部分是否为私有或回环网段的IP字面量
func IsAllowedHost(host string) bool {
	addr, err := netip.ParseAddr(host)
	if err != nil {
		// 非IP的主机名一律拒绝
		return false
	}
	addr = addr.Unmap()
	return addr.IsPrivate() || addr.IsLoopback()
}
