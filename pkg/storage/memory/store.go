package memory

import (
	"context"
	"sync"

	"github.com/hewenyu/modularity/pkg/model"
)

// Store 是基于内存的快照存储，主要用于测试和不需要持久化的部署
type Store struct {
	mu       sync.Mutex
	snapshot model.Snapshot
	saves    int
	saveErr  error
	loadErr  error
}

// NewStore 创建新的内存存储
func NewStore() *Store {
	return &Store{}
}

// NewStoreWithSnapshot 创建带有初始快照的内存存储
func NewStoreWithSnapshot(snapshot model.Snapshot) *Store {
	return &Store{snapshot: copySnapshot(snapshot)}
}

// Save 保存快照副本
func (s *Store) Save(ctx context.Context, snapshot model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snapshot = copySnapshot(snapshot)
	return nil
}

// Load 返回最近一次保存的快照副本
func (s *Store) Load(ctx context.Context) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return copySnapshot(s.snapshot), nil
}

// Close 内存存储无需释放资源
func (s *Store) Close() error {
	return nil
}

// Saves 返回Save被调用的次数
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Snapshot 返回当前保存的快照副本
func (s *Store) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySnapshot(s.snapshot)
}

// FailSaves 让之后的Save返回指定错误，传nil恢复正常
func (s *Store) FailSaves(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveErr = err
}

// FailLoads 让之后的Load返回指定错误，传nil恢复正常
func (s *Store) FailLoads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

func copySnapshot(snapshot model.Snapshot) model.Snapshot {
	out := make(model.Snapshot, len(snapshot))
	for id, svc := range snapshot {
		out[id] = svc.Clone()
	}
	return out
}
