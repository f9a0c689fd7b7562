package netguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAllowed(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want bool
	}{
		{"回环IPv4带端口", "http://127.0.0.1:8080/x", true},
		{"私有10网段", "http://10.0.0.5/y", true},
		{"私有172网段", "https://172.16.3.4:9000", true},
		{"私有192网段", "http://192.168.1.20", true},
		{"localhost", "http://localhost:3000", true},
		{"大写LOCALHOST", "http://LOCALHOST:3000", true},
		{"IPv6回环", "http://[::1]:8080/", true},
		{"IPv6唯一本地地址", "http://[fd00::1]/", true},
		{"IPv4映射的私有地址", "http://[::ffff:10.1.2.3]/", true},
		{"回环整个/8", "http://127.5.6.7/", true},
		{"外部域名", "http://evil.example.com/x", false},
		{"ftp协议", "ftp://127.0.0.1/", false},
		{"公网IP", "http://8.8.8.8/", false},
		{"172网段外", "http://172.32.0.1/", false},
		{"无协议", "127.0.0.1:8080", false},
		{"空字符串", "", false},
		{"无主机", "http:///path", false},
		{"解析失败", "http://[::1", false},
		{"伪装成回环的域名", "http://127.0.0.1.nip.io/", false},
		{"本地链路地址", "http://169.254.169.254/latest/meta-data", false},
		{"全零地址", "http://0.0.0.0/", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAllowed(tt.url), tt.url)
		})
	}
}

func TestIsAllowedHost(t *testing.T) {
	assert.True(t, IsAllowedHost("10.0.0.1"))
	assert.False(t, IsAllowedHost("example.com"))
	assert.False(t, IsAllowedHost("1.1.1.1"))
}
