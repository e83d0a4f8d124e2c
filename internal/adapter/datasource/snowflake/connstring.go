// file: internal/adapter/datasource/snowflake/connstring.go
package snowflake

import (
	"SnowAegis/internal/core/domain"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ConnectionString 生成 gosnowflake 的 DSN:
// user[:password]@account?database=..&role=..&schema=..&warehouse=..[&extraConfig]
// 私钥模式下追加 authenticator=SNOWFLAKE_JWT 与 privateKey。
func ConnectionString(cfg *Config, cred domain.Credential) string {
	params := url.Values{}
	params.Add("role", cfg.Role)
	params.Add("warehouse", cfg.Warehouse)
	params.Add("database", cfg.Database)
	params.Add("schema", cfg.Schema)

	var userPass string
	if key := cred.PrivateKey(); key != "" {
		params.Add("authenticator", "SNOWFLAKE_JWT")
		params.Add("privateKey", key)
		userPass = url.User(cfg.Username).String()
	} else {
		userPass = url.UserPassword(cfg.Username, cred.Password()).String()
	}

	dsn := fmt.Sprintf("%s@%s?%s", userPass, cfg.Account, params.Encode())
	if extra := strings.TrimLeft(strings.TrimSpace(cfg.ExtraConfig), "&?"); extra != "" {
		dsn += "&" + extra
	}
	return dsn
}

var (
	dsnPasswordRe   = regexp.MustCompile(`^([^:@]*):[^@]*@`)
	dsnPrivateKeyRe = regexp.MustCompile(`privateKey=[^&]*`)
)

// MaskConnectionString 隐藏 DSN 中的密码与私钥，用于日志输出
func MaskConnectionString(dsn string) string {
	masked := dsnPasswordRe.ReplaceAllString(dsn, "$1:***@")
	return dsnPrivateKeyRe.ReplaceAllString(masked, "privateKey=***")
}
