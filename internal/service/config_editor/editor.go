// Package config_editor file: internal/service/config_editor/editor.go
//
// 配置编辑器的规则：每次编辑都返回一份新的设置，不修改入参。
package config_editor

import (
	"SnowAegis/internal/core/domain"
	"SnowAegis/internal/core/port"
	"fmt"
	"regexp"
	"strings"
)

var schemePrefix = regexp.MustCompile(`(?i)^https?://`)

// NormalizeAccount 把账户名规范化为唯一的主机名形式：
// 去掉 http(s):// 前缀和末尾的斜杠，缺少 .snowflakecomputing.com 时补上。
// 空字符串保持为空，表示未设置。
func NormalizeAccount(raw string) string {
	value := strings.TrimSpace(raw)
	value = schemePrefix.ReplaceAllString(value, "")
	value = strings.TrimRight(value, "/")
	if value == "" {
		return ""
	}
	if !strings.Contains(value, domain.AccountSuffix) {
		value += domain.AccountSuffix
	}
	return value
}

// SetAccount 在每次编辑时规范化账户名
func SetAccount(s domain.DataSourceSettings, raw string) domain.DataSourceSettings {
	s.JSONData.Account = NormalizeAccount(raw)
	return s
}

func SetUsername(s domain.DataSourceSettings, v string) domain.DataSourceSettings {
	s.JSONData.Username = v
	return s
}

func SetRole(s domain.DataSourceSettings, v string) domain.DataSourceSettings {
	s.JSONData.Role = v
	return s
}

func SetWarehouse(s domain.DataSourceSettings, v string) domain.DataSourceSettings {
	s.JSONData.Warehouse = v
	return s
}

func SetDatabase(s domain.DataSourceSettings, v string) domain.DataSourceSettings {
	s.JSONData.Database = v
	return s
}

func SetSchema(s domain.DataSourceSettings, v string) domain.DataSourceSettings {
	s.JSONData.Schema = v
	return s
}

func SetExtraConfig(s domain.DataSourceSettings, v string) domain.DataSourceSettings {
	s.JSONData.ExtraConfig = v
	return s
}

// SetBasicAuth 切换凭据模式。configured 标记由后端维护，这里不改动。
func SetBasicAuth(s domain.DataSourceSettings, enabled bool) domain.DataSourceSettings {
	s.JSONData.BasicAuth = enabled
	return s
}

// SetPassword 设置待保存的密码，同时清除待保存的私钥
func SetPassword(s domain.DataSourceSettings, secret string) domain.DataSourceSettings {
	c := domain.PasswordCredential(secret)
	s.SecureJSONData = &c
	return s
}

// SetPrivateKey 设置待保存的私钥，同时清除待保存的密码
func SetPrivateKey(s domain.DataSourceSettings, secret string) domain.DataSourceSettings {
	c := domain.KeyPairCredential(secret)
	s.SecureJSONData = &c
	return s
}

// ResetPassword 清除密码的 configured 标记和内存中的密码，私钥状态不变
func ResetPassword(s domain.DataSourceSettings) domain.DataSourceSettings {
	s.SecureJSONFields.Password = false
	if s.SecureJSONData != nil && s.SecureJSONData.Mode() == domain.CredentialPassword {
		s.SecureJSONData = nil
	}
	return s
}

// ResetPrivateKey 清除私钥的 configured 标记和内存中的私钥，密码状态不变
func ResetPrivateKey(s domain.DataSourceSettings) domain.DataSourceSettings {
	s.SecureJSONFields.PrivateKey = false
	if s.SecureJSONData != nil && s.SecureJSONData.Mode() == domain.CredentialKeyPair {
		s.SecureJSONData = nil
	}
	return s
}

// Reset 按字段名执行重置
func Reset(s domain.DataSourceSettings, field string) (domain.DataSourceSettings, error) {
	switch field {
	case domain.SecretPassword:
		return ResetPassword(s), nil
	case domain.SecretPrivateKey:
		return ResetPrivateKey(s), nil
	}
	return s, fmt.Errorf("%w: %q", port.ErrInvalidSecretField, field)
}

// Event 是一次字段编辑
type Event struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
	// Checked 只用于 basicAuth 开关
	Checked bool `json:"checked"`
}

// Apply 把一次编辑事件分派到对应的编辑函数
func Apply(s domain.DataSourceSettings, ev Event) (domain.DataSourceSettings, error) {
	switch ev.Field {
	case "name":
		s.Name = ev.Value
		return s, nil
	case "account":
		return SetAccount(s, ev.Value), nil
	case "username":
		return SetUsername(s, ev.Value), nil
	case "role":
		return SetRole(s, ev.Value), nil
	case "warehouse":
		return SetWarehouse(s, ev.Value), nil
	case "database":
		return SetDatabase(s, ev.Value), nil
	case "schema":
		return SetSchema(s, ev.Value), nil
	case "extraConfig":
		return SetExtraConfig(s, ev.Value), nil
	case "basicAuth":
		return SetBasicAuth(s, ev.Checked), nil
	case domain.SecretPassword:
		return SetPassword(s, ev.Value), nil
	case domain.SecretPrivateKey:
		return SetPrivateKey(s, ev.Value), nil
	case "maxOpenConnections":
		s.JSONData.MaxOpenConnections = ev.Value
	case "maxQueuedQueries":
		s.JSONData.MaxQueuedQueries = ev.Value
	case "connectionLifetime":
		s.JSONData.ConnectionLifetime = ev.Value
	case "cacheSize":
		s.JSONData.CacheSize = ev.Value
	case "cacheRetention":
		s.JSONData.CacheRetention = ev.Value
	case "maxChunkDownloadWorkers":
		s.JSONData.MaxChunkDownloadWorkers = ev.Value
	case "useCaching":
		s.JSONData.UseCaching = ev.Checked
	case "useCacheByDefault":
		s.JSONData.UseCacheByDefault = ev.Checked
	case "customJSONDecoderEnabled":
		s.JSONData.CustomJSONDecoderEnabled = ev.Checked
	default:
		return s, fmt.Errorf("%w: %q", port.ErrInvalidEditField, ev.Field)
	}
	return s, nil
}

// ApplyAll 依次应用多个编辑事件，遇到错误立即返回
func ApplyAll(s domain.DataSourceSettings, events []Event) (domain.DataSourceSettings, error) {
	var err error
	for _, ev := range events {
		if s, err = Apply(s, ev); err != nil {
			return s, err
		}
	}
	return s, nil
}
