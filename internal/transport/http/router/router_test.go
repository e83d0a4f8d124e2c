// file: internal/transport/http/router/router_test.go

package router

import (
	"SnowAegis/internal/adapter/storage/sqlite"
	"SnowAegis/internal/core/domain"
	"SnowAegis/internal/service"
	"SnowAegis/internal/service/template"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	calls   int
	lastReq domain.QueryRequest
	resp    *domain.QueryResponse
	err     error
}

func (f *fakeExecutor) Execute(_ context.Context, _ domain.InstanceSettings, req domain.QueryRequest) (*domain.QueryResponse, error) {
	f.calls++
	f.lastReq = req
	return f.resp, f.err
}

type fakeHealth struct{ err error }

func (f fakeHealth) CheckHealth(context.Context, domain.InstanceSettings) error { return f.err }

type testEnv struct {
	handler  http.Handler
	store    *sqlite.Store
	executor *fakeExecutor
}

func newTestEnv(t *testing.T, mutate func(*Dependencies)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, err := sqlite.Open(":memory:", "router-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	exec := &fakeExecutor{resp: &domain.QueryResponse{Data: []*domain.DataFrame{}}}
	deps := Dependencies{
		Store:         store,
		Executor:      exec,
		HealthChecker: fakeHealth{},
		Expander:      template.New(),
	}
	if mutate != nil {
		mutate(&deps)
	}
	return &testEnv{handler: New(deps), store: store, executor: exec}
}

func (e *testEnv) do(method, path string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createDataSource(t *testing.T) string {
	t.Helper()
	w := e.do(http.MethodPost, "/api/v1/datasources", map[string]any{
		"name":     "prod",
		"jsonData": map[string]any{"account": "https://acme/", "username": "bob"},
		"password": "pw",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var body struct {
		Data domain.DataSourceSettings `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Data.UID
}

func TestRouter_CreateNeverEchoesSecrets(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodPost, "/api/v1/datasources", map[string]any{
		"name":     "prod",
		"jsonData": map[string]any{"account": "https://acme/"},
		"password": "super-secret",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "super-secret")

	var body struct {
		Data domain.DataSourceSettings `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "acme.snowflakecomputing.com", body.Data.JSONData.Account)
	assert.True(t, body.Data.SecureJSONFields.Password)
	assert.False(t, body.Data.SecureJSONFields.PrivateKey)
}

func TestRouter_CreateRequiresName(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodPost, "/api/v1/datasources", map[string]any{"jsonData": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/v1/datasources/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/api/v1/datasources/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPost, "/api/v1/datasources/nope/search", map[string]any{"query": "x"}).Code)
}

func TestRouter_EditsAndReset(t *testing.T) {
	env := newTestEnv(t, nil)
	uid := env.createDataSource(t)

	w := env.do(http.MethodPost, "/api/v1/datasources/"+uid+"/edits", map[string]any{
		"events": []map[string]any{
			{"field": "basicAuth", "checked": true},
			{"field": "privateKey", "value": "PEM"},
			{"field": "warehouse", "value": "WH"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	dec, err := env.store.Decrypted(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, "PEM", dec.Credential.PrivateKey())
	assert.Equal(t, "WH", dec.JSONData.Warehouse)
	assert.True(t, dec.JSONData.BasicAuth)

	w = env.do(http.MethodPost, "/api/v1/datasources/"+uid+"/secrets/privateKey/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got, err := env.store.Get(context.Background(), uid)
	require.NoError(t, err)
	assert.False(t, got.SecureJSONFields.PrivateKey)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/v1/datasources/"+uid+"/secrets/token/reset", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/v1/datasources/"+uid+"/edits",
		map[string]any{"events": []map[string]any{{"field": "colour", "value": "red"}}}).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/api/v1/datasources/"+uid+"/edits",
		map[string]any{"events": []map[string]any{}}).Code)
}

func TestRouter_SearchReturnsValues(t *testing.T) {
	env := newTestEnv(t, nil)
	uid := env.createDataSource(t)
	env.executor.resp = &domain.QueryResponse{Data: []*domain.DataFrame{
		{Fields: []*domain.Field{{Name: "n", Values: []any{"a", "b"}}}},
	}}

	w := env.do(http.MethodPost, "/api/v1/datasources/"+uid+"/search", map[string]any{
		"query":      "select n from t where r in ($region)",
		"scopedVars": map[string]any{"region": []string{"eu", "us"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Data []domain.MetricFindValue `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []domain.MetricFindValue{{Text: "a"}, {Text: "b"}}, body.Data)

	require.Len(t, env.executor.lastReq.Targets, 1)
	assert.Equal(t, "select n from t where r in ('eu','us')", env.executor.lastReq.Targets[0].QueryText)
	assert.Equal(t, domain.SearchRefID, env.executor.lastReq.Targets[0].RefID)
}

func TestRouter_SearchMapsBackendErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	uid := env.createDataSource(t)

	env.executor.resp = &domain.QueryResponse{Error: &domain.ResponseError{Message: "SQL compilation error"}}
	w := env.do(http.MethodPost, "/api/v1/datasources/"+uid+"/search", map[string]any{"query": "bad"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "SQL compilation error")

	env.executor.resp, env.executor.err = nil, errors.New("connection refused")
	w = env.do(http.MethodPost, "/api/v1/datasources/"+uid+"/search", map[string]any{"query": "x"})
	assert.Equal(t, http.StatusBadGateway, w.Code)

	env.executor.err = nil
	calls := env.executor.calls
	w = env.do(http.MethodPost, "/api/v1/datasources/"+uid+"/search", map[string]any{"query": ""})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, calls, env.executor.calls)
	assert.JSONEq(t, `{"data":[]}`, w.Body.String())
}

func TestRouter_QueryFiltersHiddenTargets(t *testing.T) {
	env := newTestEnv(t, nil)
	uid := env.createDataSource(t)
	env.executor.resp = &domain.QueryResponse{Data: []*domain.DataFrame{{RefID: "A"}}}

	w := env.do(http.MethodPost, "/api/v1/datasources/"+uid+"/query", map[string]any{
		"targets": []map[string]any{
			{"refId": "A", "queryText": "select $x"},
			{"refId": "B", "queryText": "select 2", "hide": true},
			{"refId": "C", "queryText": ""},
		},
		"scopedVars": map[string]any{"x": "1"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, env.executor.lastReq.Targets, 1)
	assert.Equal(t, "select 1", env.executor.lastReq.Targets[0].QueryText)
}

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) { d.HealthChecker = fakeHealth{err: errors.New("bad password")} })
	uid := env.createDataSource(t)

	w := env.do(http.MethodGet, "/api/v1/datasources/"+uid+"/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ERROR"`)
	assert.Contains(t, w.Body.String(), "bad password")

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/healthz", nil).Code)
}

func TestRouter_AuthRequiredWhenEnabled(t *testing.T) {
	auth, err := service.NewAuthenticator("k", time.Hour)
	require.NoError(t, err)
	env := newTestEnv(t, func(d *Dependencies) { d.Auth = auth })

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/v1/datasources", nil).Code)

	viewer, _ := auth.GenToken("guest", service.RoleViewer)
	w := env.do(http.MethodGet, "/api/v1/datasources", nil, "Authorization", "Bearer "+viewer)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"data":[]`))

	w = env.do(http.MethodPost, "/api/v1/datasources", map[string]any{"name": "x"}, "Authorization", "Bearer "+viewer)
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin, _ := auth.GenToken("root", service.RoleAdmin)
	w = env.do(http.MethodPost, "/api/v1/datasources", map[string]any{"name": "x"}, "Authorization", "Bearer "+admin)
	assert.Equal(t, http.StatusCreated, w.Code)
}
