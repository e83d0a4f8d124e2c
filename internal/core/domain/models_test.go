package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredential_JSONShape(t *testing.T) {
	b, err := json.Marshal(PasswordCredential("pw"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"password":"pw"}`, string(b))

	b, err = json.Marshal(KeyPairCredential("MIIB"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"privateKey":"MIIB"}`, string(b))

	b, err = json.Marshal(Credential{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(b))
}

func TestCredential_UnmarshalPrefersPrivateKey(t *testing.T) {
	var c Credential
	require.NoError(t, json.Unmarshal([]byte(`{"password":"pw","privateKey":"MIIB"}`), &c))
	assert.Equal(t, CredentialKeyPair, c.Mode())
	assert.Equal(t, "", c.Password())

	require.NoError(t, json.Unmarshal([]byte(`{"password":"","privateKey":""}`), &c))
	assert.True(t, c.IsZero())
}

func TestVariableValue_UnmarshalJSON(t *testing.T) {
	var b Bindings
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x","b":["1","2"],"c":42,"d":[true,3]}`), &b))

	assert.False(t, b["a"].IsList())
	assert.Equal(t, "x", b["a"].String())
	assert.True(t, b["b"].IsList())
	assert.Equal(t, []string{"1", "2"}, b["b"].Values())
	assert.Equal(t, "42", b["c"].String())
	assert.Equal(t, []string{"true", "3"}, b["d"].Values())

	var v VariableValue
	assert.Error(t, json.Unmarshal([]byte(`{"k":"v"}`), &v))
}

func TestQuery_CloneDoesNotAlias(t *testing.T) {
	q := Query{TimeColumns: []string{"time"}}
	c := q.Clone()
	c.TimeColumns[0] = "other"
	assert.Equal(t, "time", q.TimeColumns[0])
}
