package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hewenyu/modularity/pkg/model"
	"github.com/hewenyu/modularity/pkg/storage"
)

// Store 将快照保存为本地JSON文件
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore 创建文件存储，必要时创建父目录
func NewStore(path string) (*Store, error) {
	expanded, err := expandHome(path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return nil, storage.NewUnavailableError("创建存储目录失败", err)
	}

	return &Store{path: expanded}, nil
}

// Path 返回实际使用的文件路径
func (s *Store) Path() string {
	return s.path
}

// Save 写入完整快照
//
// 先写临时文件再重命名，保证读到的文件总是完整的。
func (s *Store) Save(ctx context.Context, snapshot model.Snapshot) error {
	data, err := storage.EncodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".registry-*.json")
	if err != nil {
		return storage.NewUnavailableError("创建临时文件失败", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return storage.NewUnavailableError("写入快照失败", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return storage.NewUnavailableError("写入快照失败", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return storage.NewUnavailableError("替换快照文件失败", err)
	}

	return nil
}

// Load 读取快照，文件不存在时返回空快照
func (s *Store) Load(ctx context.Context) (model.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.Snapshot{}, nil
		}
		return nil, storage.NewUnavailableError("读取快照失败", err)
	}

	return storage.DecodeSnapshot(data)
}

// Close 文件存储无需释放资源
func (s *Store) Close() error {
	return nil
}

// expandHome 展开路径开头的~
func expandHome(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("存储路径不能为空")
	}
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("获取用户目录失败: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
