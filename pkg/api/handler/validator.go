package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CustomValidator 实现echo.Validator接口，错误中使用json字段名
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator 创建请求校验器
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate 实现echo.Validator接口
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// validationFailure 返回第一个不合法字段
func validationFailure(c echo.Context, err error) error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		fe := errs[0]
		if fe.Tag() == "required" {
			return fieldFailure(c, fe.Field(), "缺少必填字段: "+fe.Field())
		}
		return fieldFailure(c, fe.Field(), "字段不合法: "+fe.Field())
	}
	return failure(c, http.StatusBadRequest, "参数验证失败: "+err.Error())
}
