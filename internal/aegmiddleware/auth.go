package aegmiddleware

import (
	"SnowAegis/internal/service"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Authenticate 校验 Bearer 令牌并把 Claim 放入请求 context。
// auth 为 nil 时不启用鉴权，所有请求直接放行。
func Authenticate(auth *service.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth == nil {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if !strings.HasPrefix(header, "Bearer ") || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "需要认证"})
			return
		}
		claims, err := auth.ParseToken(tokenString)
		if err != nil {
			slog.Warn("认证中间件: Token无效", "path", c.Request.URL.Path, "ip", c.ClientIP(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "令牌无效或已过期"})
			return
		}
		c.Request = c.Request.WithContext(service.ContextWithClaim(c.Request.Context(), claims))
		c.Next()
	}
}

// RequireAdmin 确保只有管理员能访问。未启用鉴权时 (没有 Claim 且 enabled 为 false) 放行。
func RequireAdmin(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.Next()
			return
		}
		claims := service.ClaimFrom(c.Request.Context())
		if claims == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "需要认证"})
			return
		}
		if claims.Role != service.RoleAdmin {
			slog.Warn("RequireAdmin: 访问被拒绝", "subject", claims.Subject, "role", claims.Role, "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "需要管理员权限"})
			return
		}
		c.Next()
	}
}
