// Package sqlite file: internal/adapter/storage/sqlite/settings_store.go
//
// 基于 SQLite 的数据源设置存储。jsonData 明文存储，密钥字段整体加密后存储，
// 对外只暴露 configured 标记。
package sqlite

import (
	"SnowAegis/internal/core/domain"
	"SnowAegis/internal/core/port"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// 编译期断言，确保 Store 实现了 port.SettingsStore 接口
var _ port.SettingsStore = (*Store)(nil)

// Store 是 port.SettingsStore 的 SQLite 实现
type Store struct {
	db     *sql.DB
	sealer *sealer
	now    func() time.Time
}

// secureData 是存储中的密钥字段集合，键为 password / privateKey
type secureData map[string]string

// Open 打开 (或创建) 指定路径的数据库并初始化表结构。
// path 为 ":memory:" 时使用内存数据库。
func Open(path, secretKey string) (*Store, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开设置数据库 '%s' 失败: %w", path, err)
	}
	if path == ":memory:" {
		// 内存库每个连接都是独立的数据库
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("连接设置数据库 '%s' (Ping) 失败: %w", path, err)
	}
	store, err := NewStore(db, secretKey)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.InitSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore 使用已有连接创建 Store，不会初始化表结构
func NewStore(db *sql.DB, secretKey string) (*Store, error) {
	if db == nil {
		return nil, errors.New("Store 初始化失败: db 实例不能为 nil")
	}
	s, err := newSealer(secretKey)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, sealer: s, now: func() time.Time { return time.Now().UTC() }}, nil
}

// InitSchema 创建数据源表 (如果不存在)
func (s *Store) InitSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS datasources (
			uid TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			json_data TEXT NOT NULL,
			secure_json_data BLOB,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("创建 datasources 表失败: %w", err)
	}
	return nil
}

// Close 关闭底层数据库连接
func (s *Store) Close() error {
	return s.db.Close()
}

// Create 新建一个数据源设置，uid 为空时自动生成
func (s *Store) Create(ctx context.Context, settings domain.DataSourceSettings) (*domain.DataSourceSettings, error) {
	if settings.UID == "" {
		settings.UID = uuid.New().String()
	}
	secure := secureData{}
	applySecureEdits(secure, settings)

	jsonData, err := json.Marshal(settings.JSONData)
	if err != nil {
		return nil, fmt.Errorf("序列化 jsonData 失败: %w", err)
	}
	sealed, err := s.sealSecure(secure)
	if err != nil {
		return nil, err
	}

	now := s.now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO datasources (uid, name, json_data, secure_json_data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		settings.UID, settings.Name, string(jsonData), sealed, now.UnixNano(), now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("创建数据源 '%s' 失败: %w", settings.UID, err)
	}
	slog.Info("设置存储: 已创建数据源", "uid", settings.UID, "name", settings.Name)
	return s.Get(ctx, settings.UID)
}

// Get 读取数据源设置，只返回 configured 标记
func (s *Store) Get(ctx context.Context, uid string) (*domain.DataSourceSettings, error) {
	settings, _, err := s.load(ctx, uid)
	return settings, err
}

// List 返回所有数据源设置，按名称排序
func (s *Store) List(ctx context.Context) ([]*domain.DataSourceSettings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT uid FROM datasources ORDER BY name, uid`)
	if err != nil {
		return nil, fmt.Errorf("查询数据源列表失败: %w", err)
	}
	var uids []string
	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("扫描数据源 uid 失败: %w", err)
		}
		uids = append(uids, uid)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	out := make([]*domain.DataSourceSettings, 0, len(uids))
	for _, uid := range uids {
		settings, err := s.Get(ctx, uid)
		if err != nil {
			return nil, err
		}
		out = append(out, settings)
	}
	return out, nil
}

// Save 保存编辑后的设置。
// 待保存的凭据只覆盖它自己的字段，另一个已存储的密钥保持不变；
// 只有 configured 标记被显式重置为 false 的字段才会被删除。
func (s *Store) Save(ctx context.Context, settings domain.DataSourceSettings) (*domain.DataSourceSettings, error) {
	_, secure, err := s.load(ctx, settings.UID)
	if err != nil {
		return nil, err
	}
	applySecureEdits(secure, settings)

	jsonData, err := json.Marshal(settings.JSONData)
	if err != nil {
		return nil, fmt.Errorf("序列化 jsonData 失败: %w", err)
	}
	sealed, err := s.sealSecure(secure)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE datasources SET name = ?, json_data = ?, secure_json_data = ?, updated_at = ? WHERE uid = ?`,
		settings.Name, string(jsonData), sealed, s.now().UnixNano(), settings.UID)
	if err != nil {
		return nil, fmt.Errorf("保存数据源 '%s' 失败: %w", settings.UID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, port.ErrDataSourceNotFound
	}
	slog.Info("设置存储: 已保存数据源", "uid", settings.UID)
	return s.Get(ctx, settings.UID)
}

// Delete 删除数据源
func (s *Store) Delete(ctx context.Context, uid string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM datasources WHERE uid = ?`, uid)
	if err != nil {
		return fmt.Errorf("删除数据源 '%s' 失败: %w", uid, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return port.ErrDataSourceNotFound
	}
	return nil
}

// Decrypted 返回交给后端的设置，包含解密后的凭据
func (s *Store) Decrypted(ctx context.Context, uid string) (*domain.InstanceSettings, error) {
	settings, secure, err := s.load(ctx, uid)
	if err != nil {
		return nil, err
	}
	// 两个密钥可以同时存在，生效的那个由 basicAuth 决定
	var cred domain.Credential
	switch settings.JSONData.CredentialMode() {
	case domain.CredentialKeyPair:
		if key := secure[domain.SecretPrivateKey]; key != "" {
			cred = domain.KeyPairCredential(key)
		}
	default:
		if pw := secure[domain.SecretPassword]; pw != "" {
			cred = domain.PasswordCredential(pw)
		}
	}
	return &domain.InstanceSettings{
		UID:        settings.UID,
		Name:       settings.Name,
		JSONData:   settings.JSONData,
		Credential: cred,
		Updated:    settings.Updated,
	}, nil
}

func (s *Store) load(ctx context.Context, uid string) (*domain.DataSourceSettings, secureData, error) {
	var (
		settings  domain.DataSourceSettings
		jsonData  string
		sealed    []byte
		updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT uid, name, json_data, secure_json_data, updated_at FROM datasources WHERE uid = ?`, uid).
		Scan(&settings.UID, &settings.Name, &jsonData, &sealed, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, port.ErrDataSourceNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("读取数据源 '%s' 失败: %w", uid, err)
	}
	if err := json.Unmarshal([]byte(jsonData), &settings.JSONData); err != nil {
		return nil, nil, fmt.Errorf("解析数据源 '%s' 的 jsonData 失败: %w", uid, err)
	}
	secure, err := s.openSecure(sealed)
	if err != nil {
		return nil, nil, fmt.Errorf("解密数据源 '%s' 的密钥失败: %w", uid, err)
	}
	settings.SecureJSONFields = domain.SecureJSONFields{
		Password:   secure[domain.SecretPassword] != "",
		PrivateKey: secure[domain.SecretPrivateKey] != "",
	}
	settings.Updated = time.Unix(0, updatedAt).UTC()
	return &settings, secure, nil
}

// applySecureEdits 把编辑器的结果合并到已存储的密钥中
func applySecureEdits(secure secureData, settings domain.DataSourceSettings) {
	if !settings.SecureJSONFields.Password {
		delete(secure, domain.SecretPassword)
	}
	if !settings.SecureJSONFields.PrivateKey {
		delete(secure, domain.SecretPrivateKey)
	}
	if c := settings.SecureJSONData; c != nil && !c.IsZero() && c.Secret() != "" {
		secure[c.Mode().String()] = c.Secret()
	}
}

func (s *Store) sealSecure(secure secureData) ([]byte, error) {
	if len(secure) == 0 {
		return nil, nil
	}
	plain, err := json.Marshal(secure)
	if err != nil {
		return nil, fmt.Errorf("序列化密钥数据失败: %w", err)
	}
	return s.sealer.seal(plain)
}

func (s *Store) openSecure(sealed []byte) (secureData, error) {
	secure := secureData{}
	if len(sealed) == 0 {
		return secure, nil
	}
	plain, err := s.sealer.open(sealed)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(plain, &secure); err != nil {
		return nil, err
	}
	return secure, nil
}
