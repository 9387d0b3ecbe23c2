package runbook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func doGet(t *testing.T, handler http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStatusRouter(t *testing.T) {
	store := NewMemoryStore()
	engine := NewStatusRouter(store, "secret").Engine()

	require.Equal(t, http.StatusOK, doGet(t, engine, "/health", "").Code)
	require.Equal(t, http.StatusUnauthorized, doGet(t, engine, "/status", "").Code)
	require.Equal(t, http.StatusNotFound, doGet(t, engine, "/status", "secret").Code)

	_, err := Init(context.Background(), store, Tracking{Runbook: "rerun-sequential", Cluster: "chat-prod"}, map[string]*UnitState{
		"a": {Status: StatusFailed, Error: "boom"},
		"b": {Status: StatusBackfilling, JobName: "job-b"},
		"c": {},
	})
	require.NoError(t, err)

	rec := doGet(t, engine, "/status", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "chat-prod", body["cluster"])
	require.Equal(t, []any{"a"}, body["failed"])
	require.Equal(t, []any{"b"}, body["active"])
	require.Equal(t, float64(1), body["counts"].(map[string]any)["pending"])

	rec = doGet(t, engine, "/status/b", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"job_name":"job-b"`)
	require.Equal(t, http.StatusNotFound, doGet(t, engine, "/status/zzz", "secret").Code)
}

func TestNewStatusServerDisabled(t *testing.T) {
	require.Nil(t, NewStatusServer(NewMemoryStore(), 0, ""))
	require.NotNil(t, NewStatusServer(NewMemoryStore(), 8080, ""))
}
