// Package middleware file: internal/transport/http/middleware/error_handler.go
package middleware

import (
	"SnowAegis/internal/core/port"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// ErrorHandlingMiddleware 是一个Gin中间件，用于集中处理错误。
// 处理器通过 c.Error(err) 附加错误后直接返回，由这里决定状态码。
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		// 只处理最后一个错误，它通常是根本原因
		err := c.Errors.Last().Err

		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数验证失败", "details": ve.Error()})
			return
		}

		var qe *port.QueryExecutionError
		switch {
		case errors.As(err, &qe):
			c.JSON(http.StatusBadGateway, gin.H{"error": qe.Message, "refId": qe.RefID})

		case errors.Is(err, port.ErrDataSourceNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

		case errors.Is(err, port.ErrInvalidSecretField), errors.Is(err, port.ErrInvalidEditField), errors.Is(err, ErrBadRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

		case errors.Is(err, port.ErrMalformedResponse), errors.Is(err, ErrBackendUnavailable):
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})

		default:
			slog.Error("未处理的请求错误", "path", c.FullPath(), "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误"})
		}
	}
}

// 传输层自己的错误分类
var (
	ErrBadRequest         = errors.New("无效的请求")
	ErrBackendUnavailable = errors.New("后端插件不可用")
)
