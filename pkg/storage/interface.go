package storage

import (
	"context"

	"github.com/hewenyu/modularity/pkg/model"
)

// SnapshotStore 定义服务表快照的持久化接口
//
// 注册中心只在启动时调用一次Load，之后每次变更后调用Save写入完整快照。
type SnapshotStore interface {
	// Save 写入完整快照，覆盖之前的内容
	Save(ctx context.Context, snapshot model.Snapshot) error

	// Load 读取快照，存储不存在时返回空快照
	Load(ctx context.Context) (model.Snapshot, error)

	// Close 释放底层连接
	Close() error
}

// StorageError 定义存储操作可能返回的错误类型
type StorageError struct {
	Code    int
	Message string
	Err     error
}

// Error 实现error接口
func (e *StorageError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *StorageError) Unwrap() error {
	return e.Err
}

// 定义错误代码
const (
	// ErrCorrupt 快照内容无法解析
	ErrCorrupt = iota + 1
	// ErrUnavailable 存储后端不可用
	ErrUnavailable
	// ErrInternal 内部错误
	ErrInternal
)

// NewCorruptError 创建快照损坏错误
func NewCorruptError(message string, err error) *StorageError {
	return &StorageError{Code: ErrCorrupt, Message: message, Err: err}
}

// NewUnavailableError 创建存储不可用错误
func NewUnavailableError(message string, err error) *StorageError {
	return &StorageError{Code: ErrUnavailable, Message: message, Err: err}
}

// NewInternalError 创建内部错误
func NewInternalError(message string, err error) *StorageError {
	return &StorageError{Code: ErrInternal, Message: message, Err: err}
}
