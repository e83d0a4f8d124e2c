// file: internal/adapter/storage/sqlite/settings_store_test.go

package sqlite

import (
	"SnowAegis/internal/core/domain"
	"SnowAegis/internal/core/port"
	"SnowAegis/internal/service/config_editor"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:", "test-secret")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_CreateGetNeverReturnsSecrets(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := config_editor.SetPassword(domain.DataSourceSettings{
		Name:     "prod",
		JSONData: domain.ConnectionConfig{Account: "acme.snowflakecomputing.com", Username: "bob"},
	}, "pw")

	created, err := store.Create(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, created.UID)
	assert.Equal(t, "prod", created.Name)
	assert.Equal(t, "bob", created.JSONData.Username)
	assert.Nil(t, created.SecureJSONData)
	assert.True(t, created.SecureJSONFields.Password)
	assert.False(t, created.SecureJSONFields.PrivateKey)
	assert.False(t, created.Updated.IsZero())

	dec, err := store.Decrypted(ctx, created.UID)
	require.NoError(t, err)
	assert.Equal(t, domain.PasswordCredential("pw"), dec.Credential)
	assert.Equal(t, "acme.snowflakecomputing.com", dec.JSONData.Account)
}

func TestStore_SaveNewCredentialKeepsOtherSecret(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	keyPair := config_editor.SetPrivateKey(config_editor.SetBasicAuth(domain.DataSourceSettings{Name: "a"}, true), "MIIB")
	created, err := store.Create(ctx, keyPair)
	require.NoError(t, err)
	assert.True(t, created.SecureJSONFields.PrivateKey)
	assert.False(t, created.SecureJSONFields.Password)

	// 切换到密码模式并保存密码，私钥仍应保留
	edited := config_editor.SetPassword(config_editor.SetBasicAuth(*created, false), "pw")
	saved, err := store.Save(ctx, edited)
	require.NoError(t, err)
	assert.True(t, saved.SecureJSONFields.Password)
	assert.True(t, saved.SecureJSONFields.PrivateKey)
	assert.False(t, saved.JSONData.BasicAuth)

	dec, err := store.Decrypted(ctx, created.UID)
	require.NoError(t, err)
	assert.Equal(t, domain.PasswordCredential("pw"), dec.Credential)

	// 切回密钥对模式时无需重新输入私钥
	saved, err = store.Save(ctx, config_editor.SetBasicAuth(*saved, true))
	require.NoError(t, err)
	assert.True(t, saved.SecureJSONFields.Password)
	assert.True(t, saved.SecureJSONFields.PrivateKey)

	dec, err = store.Decrypted(ctx, created.UID)
	require.NoError(t, err)
	assert.Equal(t, domain.KeyPairCredential("MIIB"), dec.Credential)

	// 只有显式重置才会清除字段
	saved, err = store.Save(ctx, config_editor.ResetPrivateKey(*saved))
	require.NoError(t, err)
	assert.True(t, saved.SecureJSONFields.Password)
	assert.False(t, saved.SecureJSONFields.PrivateKey)

	dec, err = store.Decrypted(ctx, created.UID)
	require.NoError(t, err)
	assert.True(t, dec.Credential.IsZero(), "密钥对模式下私钥已被重置")
}

func TestStore_SaveOverwritesSameField(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, config_editor.SetPassword(domain.DataSourceSettings{Name: "a"}, "old"))
	require.NoError(t, err)

	_, err = store.Save(ctx, config_editor.SetPassword(*created, "new"))
	require.NoError(t, err)

	dec, err := store.Decrypted(ctx, created.UID)
	require.NoError(t, err)
	assert.Equal(t, "new", dec.Credential.Password())
}

func TestStore_SaveWithoutSecretEditsKeepsSecret(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, config_editor.SetPassword(domain.DataSourceSettings{Name: "a"}, "pw"))
	require.NoError(t, err)

	saved, err := store.Save(ctx, config_editor.SetBasicAuth(config_editor.SetRole(*created, "ANALYST"), true))
	require.NoError(t, err)
	assert.Equal(t, "ANALYST", saved.JSONData.Role)
	assert.True(t, saved.SecureJSONFields.Password)
}

func TestStore_ResetDeletesOnlyThatField(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, config_editor.SetPassword(domain.DataSourceSettings{Name: "a"}, "pw"))
	require.NoError(t, err)

	saved, err := store.Save(ctx, config_editor.ResetPrivateKey(*created))
	require.NoError(t, err)
	assert.True(t, saved.SecureJSONFields.Password)

	saved, err = store.Save(ctx, config_editor.ResetPassword(*saved))
	require.NoError(t, err)
	assert.False(t, saved.SecureJSONFields.Password)

	dec, err := store.Decrypted(ctx, created.UID)
	require.NoError(t, err)
	assert.True(t, dec.Credential.IsZero())
}

func TestStore_ListAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, domain.DataSourceSettings{UID: "u2", Name: "b"})
	require.NoError(t, err)
	_, err = store.Create(ctx, domain.DataSourceSettings{UID: "u1", Name: "a"})
	require.NoError(t, err)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "u1", all[0].UID)
	assert.Equal(t, "u2", all[1].UID)

	require.NoError(t, store.Delete(ctx, "u1"))
	assert.ErrorIs(t, store.Delete(ctx, "u1"), port.ErrDataSourceNotFound)
	_, err = store.Get(ctx, "u1")
	assert.ErrorIs(t, err, port.ErrDataSourceNotFound)
	_, err = store.Save(ctx, domain.DataSourceSettings{UID: "missing"})
	assert.ErrorIs(t, err, port.ErrDataSourceNotFound)
}

func TestStore_WrongKeyCannotDecrypt(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created, err := store.Create(ctx, config_editor.SetPassword(domain.DataSourceSettings{Name: "a"}, "pw"))
	require.NoError(t, err)

	other, err := NewStore(store.db, "another-secret")
	require.NoError(t, err)
	_, err = other.Decrypted(ctx, created.UID)
	assert.Error(t, err)
}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := newSealer("k")
	require.NoError(t, err)
	sealed, err := s.seal([]byte("hello"))
	require.NoError(t, err)
	plain, err := s.open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(plain))

	_, err = newSealer("")
	assert.Error(t, err)
	_, err = s.open([]byte("short"))
	assert.Error(t, err)
}
