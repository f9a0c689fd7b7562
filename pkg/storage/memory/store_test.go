package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/hewenyu/modularity/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSaveAndLoad(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	snapshot := model.Snapshot{"svc-1": {ID: "svc-1", Capabilities: []string{"a"}}}
	require.NoError(t, s.Save(ctx, snapshot))
	assert.Equal(t, 1, s.Saves())

	// 保存的是副本
	snapshot["svc-1"].Capabilities[0] = "changed"
	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, loaded["svc-1"].Capabilities)
}

func TestStoreFailures(t *testing.T) {
	s := NewStoreWithSnapshot(model.Snapshot{"svc-1": {ID: "svc-1"}})
	ctx := context.Background()

	boom := errors.New("disk full")
	s.FailSaves(boom)
	assert.ErrorIs(t, s.Save(ctx, model.Snapshot{}), boom)
	assert.Len(t, s.Snapshot(), 1, "失败的Save不应覆盖已有快照")

	s.FailLoads(boom)
	_, err := s.Load(ctx)
	assert.ErrorIs(t, err, boom)

	s.FailLoads(nil)
	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Contains(t, loaded, "svc-1")
}
