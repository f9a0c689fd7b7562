package etcd

import (
	"context"
	"fmt"
	"time"

	"github.com/hewenyu/modularity/internal/config"
	"github.com/hewenyu/modularity/pkg/model"
	"github.com/hewenyu/modularity/pkg/storage"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// etcd操作的默认超时时间
const defaultRequestTimeout = 5 * time.Second

// Store 将整个注册表快照保存在etcd的单个key下
//
// etcd只作为快照存储使用，内存中的注册表仍然是唯一的数据源。
type Store struct {
	client  *clientv3.Client
	key     string
	timeout time.Duration
	owned   bool
	logger  config.Logger
}

// NewStore 连接etcd集群并检查集群状态
func NewStore(cfg config.EtcdConfig, logger config.Logger) (*Store, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("etcd地址不能为空")
	}

	logger.Info("连接到etcd集群", zap.Strings("endpoints", cfg.Endpoints))

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
	})
	if err != nil {
		logger.Error("连接etcd失败", zap.Error(err))
		return nil, storage.NewUnavailableError("连接etcd失败", err)
	}

	s := newStore(client, cfg.Key, cfg.RequestTimeout, logger)
	s.owned = true

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if _, err := client.Status(ctx, cfg.Endpoints[0]); err != nil {
		client.Close()
		logger.Error("etcd健康检查失败", zap.Error(err))
		return nil, storage.NewUnavailableError("etcd健康检查失败", err)
	}

	return s, nil
}

// NewStoreWithClient 使用已有的etcd客户端创建存储，Close不会关闭该客户端
func NewStoreWithClient(client *clientv3.Client, key string, logger config.Logger) *Store {
	return newStore(client, key, 0, logger)
}

func newStore(client *clientv3.Client, key string, timeout time.Duration, logger config.Logger) *Store {
	if key == "" {
		key = "/modularity/registry/snapshot"
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Store{
		client:  client,
		key:     key,
		timeout: timeout,
		logger:  logger,
	}
}

// Save 将快照写入etcd
func (s *Store) Save(ctx context.Context, snapshot model.Snapshot) error {
	data, err := storage.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.client.Put(ctx, s.key, string(data)); err != nil {
		return storage.NewUnavailableError("写入etcd失败", err)
	}

	s.logger.Debug("快照已写入etcd", zap.String("key", s.key), zap.Int("services", len(snapshot)))
	return nil
}

// Load 从etcd读取快照，key不存在时返回空快照
func (s *Store) Load(ctx context.Context) (model.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.Get(ctx, s.key)
	if err != nil {
		return nil, storage.NewUnavailableError("读取etcd失败", err)
	}
	if len(resp.Kvs) == 0 {
		return model.Snapshot{}, nil
	}

	return storage.DecodeSnapshot(resp.Kvs[0].Value)
}

// Close 关闭由NewStore创建的客户端
func (s *Store) Close() error {
	if s.owned && s.client != nil {
		s.logger.Info("关闭etcd连接")
		return s.client.Close()
	}
	return nil
}
