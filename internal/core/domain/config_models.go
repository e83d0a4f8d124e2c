// Package domain file: internal/core/domain/config_models.go
package domain

import (
	"encoding/json"
	"time"
)

// AccountSuffix 是 Snowflake 账户主机名的固定后缀
const AccountSuffix = ".snowflakecomputing.com"

// 密钥字段名称
const (
	SecretPassword   = "password"
	SecretPrivateKey = "privateKey"
)

// ConnectionConfig 是数据源的连接配置 (jsonData)。
// 调优字段对前端是透传的字符串，只有后端会解析。
type ConnectionConfig struct {
	Account     string `json:"account"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	Warehouse   string `json:"warehouse"`
	Database    string `json:"database"`
	Schema      string `json:"schema"`
	ExtraConfig string `json:"extraConfig"`
	BasicAuth   bool   `json:"basicAuth"`

	MaxOpenConnections       string `json:"maxOpenConnections,omitempty"`
	MaxQueuedQueries         string `json:"maxQueuedQueries,omitempty"`
	ConnectionLifetime       string `json:"connectionLifetime,omitempty"`
	UseCaching               bool   `json:"useCaching"`
	UseCacheByDefault        bool   `json:"useCacheByDefault"`
	CacheSize                string `json:"cacheSize,omitempty"`
	CacheRetention           string `json:"cacheRetention,omitempty"`
	MaxChunkDownloadWorkers  string `json:"maxChunkDownloadWorkers,omitempty"`
	CustomJSONDecoderEnabled bool   `json:"customJSONDecoderEnabled"`
}

// CredentialMode 返回 basicAuth 开关选中的凭据模式：
// 关闭时使用密码，打开时使用密钥对。
func (c ConnectionConfig) CredentialMode() CredentialMode {
	if c.BasicAuth {
		return CredentialKeyPair
	}
	return CredentialPassword
}

// CredentialMode 是凭据的种类
type CredentialMode int

const (
	CredentialPassword CredentialMode = iota + 1
	CredentialKeyPair
)

// String 返回凭据模式对应的密钥字段名
func (m CredentialMode) String() string {
	switch m {
	case CredentialPassword:
		return SecretPassword
	case CredentialKeyPair:
		return SecretPrivateKey
	default:
		return "unknown"
	}
}

// Credential 是密码或私钥二选一的密钥。
// 同一时刻只可能持有其中一种，零值表示没有任何密钥。
type Credential struct {
	mode   CredentialMode
	secret string
}

// PasswordCredential 构造一个密码凭据
func PasswordCredential(secret string) Credential {
	return Credential{mode: CredentialPassword, secret: secret}
}

// KeyPairCredential 构造一个私钥凭据
func KeyPairCredential(secret string) Credential {
	return Credential{mode: CredentialKeyPair, secret: secret}
}

// Mode 返回凭据模式，零值返回 0
func (c Credential) Mode() CredentialMode { return c.mode }

// Secret 返回密钥原文
func (c Credential) Secret() string { return c.secret }

// IsZero 判断是否未设置任何凭据
func (c Credential) IsZero() bool { return c.mode == 0 }

// Password 仅在密码模式下返回密钥
func (c Credential) Password() string {
	if c.mode == CredentialPassword {
		return c.secret
	}
	return ""
}

// PrivateKey 仅在密钥对模式下返回密钥
func (c Credential) PrivateKey() string {
	if c.mode == CredentialKeyPair {
		return c.secret
	}
	return ""
}

type credentialJSON struct {
	Password   string `json:"password,omitempty"`
	PrivateKey string `json:"privateKey,omitempty"`
}

// MarshalJSON 以后端约定的 {password, privateKey} 形态输出，最多一个非空
func (c Credential) MarshalJSON() ([]byte, error) {
	return json.Marshal(credentialJSON{Password: c.Password(), PrivateKey: c.PrivateKey()})
}

// UnmarshalJSON 读取 {password, privateKey}；两者都非空时以私钥为准，与后端取值顺序一致
func (c *Credential) UnmarshalJSON(data []byte) error {
	var raw credentialJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.PrivateKey != "":
		*c = KeyPairCredential(raw.PrivateKey)
	case raw.Password != "":
		*c = PasswordCredential(raw.Password)
	default:
		*c = Credential{}
	}
	return nil
}

// SecureJSONFields 记录每个密钥字段是否已在后端存储 (configured)
type SecureJSONFields struct {
	Password   bool `json:"password"`
	PrivateKey bool `json:"privateKey"`
}

// DataSourceSettings 是配置编辑器操作的完整数据源设置
type DataSourceSettings struct {
	UID      string           `json:"uid"`
	Name     string           `json:"name"`
	JSONData ConnectionConfig `json:"jsonData"`
	// SecureJSONData 是尚未保存的密钥编辑，只写不读
	SecureJSONData   *Credential      `json:"secureJsonData,omitempty"`
	SecureJSONFields SecureJSONFields `json:"secureJsonFields"`
	Updated          time.Time        `json:"updated"`
}

// InstanceSettings 是每次查询随请求交给后端的数据源设置 (含已解密密钥)
type InstanceSettings struct {
	UID        string           `json:"uid"`
	Name       string           `json:"name"`
	JSONData   ConnectionConfig `json:"jsonData"`
	Credential Credential       `json:"decryptedSecureJsonData"`
	Updated    time.Time        `json:"updated"`
}
