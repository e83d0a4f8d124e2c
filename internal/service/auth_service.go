// Package service file: internal/service/auth_service.go
//
// JWT 鉴权：签发与校验 HS256 令牌，令牌只携带主体和角色。
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// 角色
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

const issuer = "SnowAegis"

// ErrInvalidToken 表示 JWT 无效、过期或解析失败。
var ErrInvalidToken = errors.New("invalid or expired token")

// Claim 定义 JWT 的载荷结构
type Claim struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator 持有签名密钥
type Authenticator struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewAuthenticator 创建 Authenticator。key 为空时返回错误，ttl <= 0 时为 24 小时。
func NewAuthenticator(key string, ttl time.Duration) (*Authenticator, error) {
	if key == "" {
		return nil, errors.New("JWT 密钥不能为空")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{key: []byte(key), ttl: ttl, now: time.Now}, nil
}

// GenToken 为指定主体生成一个新的 JWT
func (a *Authenticator) GenToken(subject, role string) (string, error) {
	now := a.now()
	claims := Claim{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(a.key)
	if err != nil {
		return "", fmt.Errorf("签名 JWT 失败: %w", err)
	}
	return signedToken, nil
}

// ParseToken 解析并验证 JWT 字符串
func (a *Authenticator) ParseToken(tokenString string) (*Claim, error) {
	claims := &Claim{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非预期的签名方法: %v", token.Header["alg"])
		}
		return a.key, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(a.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, jwt.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w (detail: %v)", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

/* ---------- Context Helpers for Claims ---------- */

type ctxKey int

const claimKey ctxKey = 0

// ContextWithClaim 把已验证的 Claim 放入 context
func ContextWithClaim(ctx context.Context, c *Claim) context.Context {
	return context.WithValue(ctx, claimKey, c)
}

// ClaimFrom 从 context 中取出 Claim，未认证时为 nil
func ClaimFrom(ctx context.Context) *Claim {
	claims, _ := ctx.Value(claimKey).(*Claim)
	return claims
}
