package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimit 基于令牌桶的限流中间件，r小于等于0时不限流
func RateLimit(r float64, burst int) echo.MiddlewareFunc {
	if r <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if burst <= 0 {
		burst = 1
	}

	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !limiter.Allow() {
				return failure(c, http.StatusTooManyRequests, "请求过于频繁，请稍后重试")
			}
			return next(c)
		}
	}
}
