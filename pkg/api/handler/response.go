package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hewenyu/modularity/pkg/registry"
)

// ApiResponse 统一的API响应格式
type ApiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// FieldError 请求字段错误的详细信息
type FieldError struct {
	Field string `json:"field"`
}

func success(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, ApiResponse{Code: code, Message: message, Data: data})
}

func failure(c echo.Context, code int, message string) error {
	return c.JSON(code, ApiResponse{Code: code, Message: message})
}

func fieldFailure(c echo.Context, field, message string) error {
	return c.JSON(http.StatusBadRequest, ApiResponse{
		Code:    http.StatusBadRequest,
		Message: message,
		Data:    FieldError{Field: field},
	})
}

// StatusCode 把注册中心错误映射为HTTP状态码
func StatusCode(err error) int {
	switch registry.CodeOf(err) {
	case registry.ErrValidation, registry.ErrLocationRejected:
		return http.StatusBadRequest
	case registry.ErrNotFound:
		return http.StatusNotFound
	case registry.ErrNoActiveProvider:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// registryFailure 返回注册中心错误，带字段信息的错误附带字段名
func registryFailure(c echo.Context, err error) error {
	var e *registry.Error
	if errors.As(err, &e) && e.Field != "" {
		return c.JSON(StatusCode(err), ApiResponse{
			Code:    StatusCode(err),
			Message: e.Message,
			Data:    FieldError{Field: e.Field},
		})
	}
	if errors.As(err, &e) {
		return failure(c, StatusCode(err), e.Message)
	}
	return failure(c, http.StatusInternalServerError, "内部错误: "+err.Error())
}

// bindFailure 处理请求体解析错误，字段类型错误时指出字段名
func bindFailure(c echo.Context, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return fieldFailure(c, typeErr.Field, "字段类型错误: "+typeErr.Field)
	}
	return failure(c, http.StatusBadRequest, "无效的JSON请求体")
}
