package etcd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hewenyu/modularity/internal/config"
	"github.com/hewenyu/modularity/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore 连接测试用的etcd，未设置ETCD_ENDPOINTS时跳过
func setupTestStore(t *testing.T) *Store {
	endpoints := os.Getenv("ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("未设置ETCD_ENDPOINTS，跳过集成测试")
	}

	cfg := config.EtcdConfig{
		Endpoints:   strings.Split(endpoints, ","),
		DialTimeout: 3 * time.Second,
		Key:         fmt.Sprintf("/modularity-test/%d/snapshot", time.Now().UnixNano()),
	}

	s, err := NewStore(cfg, config.NewNopLogger())
	require.NoError(t, err, "连接etcd失败")

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		s.client.Delete(ctx, s.key)
		s.Close()
	})

	return s
}

func TestStoreSaveAndLoad(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded, "key不存在时应返回空快照")

	snapshot := model.Snapshot{
		"svc-1": {ID: "svc-1", Name: "hello", Capabilities: []string{"greet"}, Status: model.StatusActive},
	}
	require.NoError(t, s.Save(ctx, snapshot))

	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	require.Contains(t, loaded, "svc-1")
	assert.Equal(t, []string{"greet"}, loaded["svc-1"].Capabilities)
}

func TestNewStoreRequiresEndpoints(t *testing.T) {
	_, err := NewStore(config.EtcdConfig{}, config.NewNopLogger())
	assert.Error(t, err)
}

func TestNewStoreWithClientDefaults(t *testing.T) {
	s := NewStoreWithClient(nil, "", config.NewNopLogger())
	assert.Equal(t, "/modularity/registry/snapshot", s.key)
	assert.Equal(t, defaultRequestTimeout, s.timeout)
	assert.NoError(t, s.Close(), "外部客户端不应被关闭")
}
