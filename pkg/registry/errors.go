package registry

import (
	"errors"
	"fmt"
)

// ErrorCode 注册中心错误类型
type ErrorCode int

const (
	// ErrValidation 请求字段缺失或不合法，调用方不应重试
	ErrValidation ErrorCode = iota + 1
	// ErrLocationRejected location不在允许的网段内
	ErrLocationRejected
	// ErrNotFound 服务或能力不存在
	ErrNotFound
	// ErrNoActiveProvider 能力存在但当前没有活跃的提供者，可稍后重试
	ErrNoActiveProvider
	// ErrPersistence 快照读写失败，只记录日志，不返回给API调用方
	ErrPersistence
)

// String 返回错误类型名称
func (c ErrorCode) String() string {
	switch c {
	case ErrValidation:
		return "ValidationError"
	case ErrLocationRejected:
		return "LocationRejected"
	case ErrNotFound:
		return "NotFound"
	case ErrNoActiveProvider:
		return "NoActiveProvider"
	case ErrPersistence:
		return "PersistenceFailure"
	}
	return "Unknown"
}

// Error 注册中心返回的带类型错误
type Error struct {
	Code    ErrorCode
	Field   string
	Message string
}

// Error 实现error接口
func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError 创建字段校验错误
func NewValidationError(field, message string) *Error {
	return &Error{Code: ErrValidation, Field: field, Message: message}
}

// NewLocationRejectedError 创建location被拒绝错误
func NewLocationRejectedError(location string) *Error {
	return &Error{
		Code:    ErrLocationRejected,
		Field:   "location",
		Message: fmt.Sprintf("location必须是本机或私有网络地址: %s", location),
	}
}

// NewNotFoundError 创建资源不存在错误
func NewNotFoundError(message string) *Error {
	return &Error{Code: ErrNotFound, Message: message}
}

// NewNoActiveProviderError 创建无活跃提供者错误
func NewNoActiveProviderError(capability string) *Error {
	return &Error{Code: ErrNoActiveProvider, Message: fmt.Sprintf("没有活跃的服务提供能力: %s", capability)}
}

// CodeOf 返回错误的类型，非注册中心错误返回0
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// IsValidation 判断是否为字段校验错误
func IsValidation(err error) bool {
	return CodeOf(err) == ErrValidation
}

// IsLocationRejected 判断是否为location被拒绝错误
func IsLocationRejected(err error) bool {
	return CodeOf(err) == ErrLocationRejected
}

// IsNotFound 判断是否为资源不存在错误
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrNotFound
}

// IsNoActiveProvider 判断是否为无活跃提供者错误
func IsNoActiveProvider(err error) bool {
	return CodeOf(err) == ErrNoActiveProvider
}
