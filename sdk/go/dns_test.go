package sdk

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hewenyu/modularity/internal/config"
	"github.com/hewenyu/modularity/pkg/dns"
	"github.com/hewenyu/modularity/pkg/model"
	"github.com/hewenyu/modularity/pkg/registry"
)

func startDNS(t *testing.T, r *registry.Registry) string {
	t.Helper()
	s := dns.NewServer(config.DNSConfig{
		Enabled: true,
		Addr:    "127.0.0.1:0",
		Domain:  "modularity.local",
		TTL:     30,
	}, r, config.NewNopLogger())
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() { s.Stop() })
	return s.Addr()
}

func TestDNSResolver(t *testing.T) {
	r := registry.New(registry.Options{})
	defer r.Close()
	ctx := context.Background()

	_, err := r.Register(ctx, model.Registration{
		ID:           "greeter",
		Name:         "greeter",
		Capabilities: []string{"greet"},
		Location:     "http://127.0.0.1:8001",
		Mode:         model.ModeHTTP,
	})
	require.NoError(t, err)

	resolver := NewDNSResolver(startDNS(t, r), "modularity.local", 0)

	addrs, err := resolver.LookupCapability(ctx, "greet")
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1"}, addrs)

	hostPort, err := resolver.ResolveCapability(ctx, "greet")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8001", hostPort)

	_, err = resolver.LookupCapability(ctx, "speak")
	assert.Error(t, err)
	_, err = resolver.ResolveCapability(ctx, "speak")
	assert.Error(t, err)
}

func TestDNSResolverCache(t *testing.T) {
	r := registry.New(registry.Options{})
	defer r.Close()
	ctx := context.Background()

	_, err := r.Register(ctx, model.Registration{
		ID:           "greeter",
		Name:         "greeter",
		Capabilities: []string{"greet"},
		Location:     "http://10.0.0.5:9000",
		Mode:         model.ModeEmbedded,
	})
	require.NoError(t, err)

	resolver := NewDNSResolver(startDNS(t, r), "modularity.local.", time.Minute)

	addrs, err := resolver.LookupCapability(ctx, "greet")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.5"}, addrs)

	require.NoError(t, r.Unregister(ctx, "greeter"))

	addrs, err = resolver.LookupCapability(ctx, "greet")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.5"}, addrs)
}

func TestSelectSRVByWeight(t *testing.T) {
	only := &net.SRV{Target: "a.", Port: 1}
	assert.Same(t, only, selectSRVByWeight([]*net.SRV{only}))

	heavy := &net.SRV{Target: "b.", Port: 2, Weight: 10}
	zero := &net.SRV{Target: "c.", Port: 3, Weight: 0}
	for i := 0; i < 20; i++ {
		assert.Same(t, heavy, selectSRVByWeight([]*net.SRV{zero, heavy}))
	}
}
