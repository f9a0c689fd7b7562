package dns

import (
	"errors"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hewenyu/modularity/pkg/model"
)

type fakeSource struct {
	services []*model.Service
}

func (f *fakeSource) ActiveProviders(capability string) []*model.Service {
	var out []*model.Service
	for _, s := range f.services {
		if s.IsActive() && s.HasCapability(capability) {
			out = append(out, s)
		}
	}
	return out
}

func (f *fakeSource) Get(id string) (*model.Service, error) {
	for _, s := range f.services {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, errors.New("not found")
}

func newFakeSource() *fakeSource {
	return &fakeSource{services: []*model.Service{
		{ID: "greeter-1", Capabilities: []string{"greet"}, Location: "http://127.0.0.1:8001", Status: model.StatusActive},
		{ID: "greeter-2", Capabilities: []string{"greet"}, Location: "http://localhost", Status: model.StatusActive},
		{ID: "greeter-v6", Capabilities: []string{"greet"}, Location: "https://[fd00::1]", Status: model.StatusActive},
		{ID: "sleepy", Capabilities: []string{"greet", "sleep"}, Location: "http://10.0.0.9:9000", Status: model.StatusInactive},
	}}
}

func TestParseName(t *testing.T) {
	rm := NewRecordManager(newFakeSource(), "modularity.local.", 30)

	tests := []struct {
		name string
		kind queryKind
		key  string
	}{
		{"greet.modularity.local.", kindCapability, "greet"},
		{"GREET.Modularity.Local.", kindCapability, "GREET"},
		{"_greet._tcp.modularity.local.", kindSRV, "greet"},
		{"greeter-1.node.modularity.local.", kindNode, "greeter-1"},
		{"modularity.local.", kindUnknown, ""},
		{"_greet._udp.modularity.local.", kindUnknown, ""},
		{".node.modularity.local.", kindUnknown, ""},
		{"greet.example.com.", kindUnknown, ""},
	}

	for _, tt := range tests {
		kind, key := rm.parseName(tt.name)
		assert.Equal(t, tt.kind, kind, tt.name)
		assert.Equal(t, tt.key, key, tt.name)
	}
}

func TestGetRecordsCapability(t *testing.T) {
	rm := NewRecordManager(newFakeSource(), "modularity.local", 30)

	records, exists := rm.GetRecords("greet.modularity.local.", dns.TypeA)
	require.True(t, exists)
	require.Len(t, records, 2, "inactive服务和IPv6地址不应出现在A记录中")
	assert.Equal(t, "127.0.0.1", records[0].(*dns.A).A.String())
	assert.Equal(t, "127.0.0.1", records[1].(*dns.A).A.String(), "localhost映射为127.0.0.1")
	assert.Equal(t, uint32(30), records[0].Header().Ttl)

	records, exists = rm.GetRecords("greet.modularity.local.", dns.TypeAAAA)
	require.True(t, exists)
	require.Len(t, records, 2)
	assert.Equal(t, "::1", records[0].(*dns.AAAA).AAAA.String())
	assert.Equal(t, "fd00::1", records[1].(*dns.AAAA).AAAA.String())

	_, exists = rm.GetRecords("sleep.modularity.local.", dns.TypeA)
	assert.False(t, exists, "只有inactive提供者的能力视为不存在")
}

func TestGetRecordsSRV(t *testing.T) {
	rm := NewRecordManager(newFakeSource(), "modularity.local", 30)

	records, exists := rm.GetRecords("_greet._tcp.modularity.local.", dns.TypeSRV)
	require.True(t, exists)
	require.Len(t, records, 3)

	srv := records[0].(*dns.SRV)
	assert.Equal(t, uint16(8001), srv.Port)
	assert.Equal(t, "greeter-1.node.modularity.local.", srv.Target)
	assert.Equal(t, uint16(80), records[1].(*dns.SRV).Port)
	assert.Equal(t, uint16(443), records[2].(*dns.SRV).Port)

	records, exists = rm.GetRecords("_greet._tcp.modularity.local.", dns.TypeA)
	assert.True(t, exists)
	assert.Empty(t, records)
}

func TestGetRecordsNode(t *testing.T) {
	rm := NewRecordManager(newFakeSource(), "modularity.local", 30)

	records, exists := rm.GetRecords("greeter-1.node.modularity.local.", dns.TypeA)
	require.True(t, exists)
	require.Len(t, records, 1)
	assert.Equal(t, "127.0.0.1", records[0].(*dns.A).A.String())

	_, exists = rm.GetRecords("sleepy.node.modularity.local.", dns.TypeA)
	assert.False(t, exists)

	_, exists = rm.GetRecords("ghost.node.modularity.local.", dns.TypeA)
	assert.False(t, exists)
}

func TestInDomain(t *testing.T) {
	rm := NewRecordManager(newFakeSource(), "modularity.local", 30)
	assert.True(t, rm.InDomain("a.modularity.local."))
	assert.True(t, rm.InDomain("A.MODULARITY.LOCAL"))
	assert.True(t, rm.InDomain("modularity.local."))
	assert.False(t, rm.InDomain("notmodularity.local."))
	assert.False(t, rm.InDomain("example.com."))
}
