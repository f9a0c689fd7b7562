package redis

import (
	"context"
	"errors"
	"time"

	"github.com/hewenyu/modularity/internal/config"
	"github.com/hewenyu/modularity/pkg/model"
	"github.com/hewenyu/modularity/pkg/storage"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const requestTimeout = 5 * time.Second

// Store 将注册表快照保存为redis中的一个字符串值
type Store struct {
	client goredis.UniversalClient
	key    string
	owned  bool
	logger config.Logger
}

// NewStore 连接redis并执行Ping
func NewStore(cfg config.RedisConfig, logger config.Logger) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		logger.Error("连接redis失败", zap.String("addr", cfg.Addr), zap.Error(err))
		return nil, storage.NewUnavailableError("连接redis失败", err)
	}

	logger.Info("已连接到redis", zap.String("addr", cfg.Addr))

	s := NewStoreWithClient(client, cfg.Key, logger)
	s.owned = true
	return s, nil
}

// NewStoreWithClient 使用已有客户端创建存储，Close不会关闭该客户端
func NewStoreWithClient(client goredis.UniversalClient, key string, logger config.Logger) *Store {
	if key == "" {
		key = "modularity:registry"
	}
	return &Store{client: client, key: key, logger: logger}
}

// Save 覆盖写入快照
func (s *Store) Save(ctx context.Context, snapshot model.Snapshot) error {
	data, err := storage.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return storage.NewUnavailableError("写入redis失败", err)
	}
	return nil
}

// Load 读取快照，key不存在时返回空快照
func (s *Store) Load(ctx context.Context) (model.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return model.Snapshot{}, nil
		}
		return nil, storage.NewUnavailableError("读取redis失败", err)
	}

	return storage.DecodeSnapshot(data)
}

// Close 关闭由NewStore创建的客户端
func (s *Store) Close() error {
	if s.owned {
		return s.client.Close()
	}
	return nil
}
