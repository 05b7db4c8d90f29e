package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/sessionlock/pkg/adapters/memory"
	"github.com/aretw0/sessionlock/pkg/domain"
	"github.com/aretw0/sessionlock/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	handler http.Handler
	coll    *memory.Collection
	now     time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		coll: memory.NewCollection(),
		now:  time.Date(2026, 5, 4, 10, 0, 0, 0, time.Local),
	}
	store := session.NewStore(env.coll, session.WithClock(func() time.Time { return env.now }))
	env.handler = NewHandler(store, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics"))
	})))
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func TestServer_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	const path = "/v1/sessions/app/s1"

	w := env.do(t, http.MethodPost, path, InsertRequest{Payload: []byte{}, TimeoutMinutes: 2})
	require.Equal(t, http.StatusCreated, w.Code)

	// Acquire
	w = env.do(t, http.MethodGet, path+"?exclusive=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec RecordResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, domain.LockToken(1), rec.LockToken)
	assert.True(t, rec.Locked)
	assert.Equal(t, "none", rec.ActionFlags)

	// Contention
	env.now = env.now.Add(1500 * time.Millisecond)
	w = env.do(t, http.MethodGet, path+"?exclusive=true", nil)
	require.Equal(t, http.StatusLocked, w.Code)
	var locked LockedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &locked))
	assert.Equal(t, int64(1500), locked.LockAgeMS)
	assert.Equal(t, domain.LockToken(1), locked.LockToken)

	// Release with new state
	w = env.do(t, http.MethodPut, path+"/release", ReleaseRequest{LockToken: tokenPtr(1), Payload: []byte{0x01}, ItemCount: 1, TimeoutMinutes: 5})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, []byte{0x01}, rec.Payload)
	assert.False(t, rec.Locked)
	assert.Equal(t, 5, rec.TimeoutMinutes)
}

func TestServer_NotFoundAndExpired(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/v1/sessions/app/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/v1/sessions/app/s1", InsertRequest{TimeoutMinutes: 1}).Code)
	env.now = env.now.Add(2 * time.Minute)

	w = env.do(t, http.MethodGet, "/v1/sessions/app/s1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/v1/sessions/app/s1/expired", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Eventually(t, func() bool { return env.coll.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestServer_Uninitialized(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/v1/sessions/app/p1", InsertRequest{Uninitialized: true})
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodGet, "/v1/sessions/app/p1?exclusive=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec RecordResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "uninitialized", rec.ActionFlags)
	assert.Equal(t, session.DefaultTimeoutMinutes, rec.TimeoutMinutes)
}

func TestServer_UnlockTouchEvict(t *testing.T) {
	env := newTestEnv(t)
	const path = "/v1/sessions/app/s1"

	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, path, InsertRequest{TimeoutMinutes: 2}).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, path+"?exclusive=true", nil).Code)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, path+"/touch", nil).Code)
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodPost, path+"/unlock", UnlockRequest{LockToken: tokenPtr(1)}).Code)

	// Stale token: no-op, still 204
	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, path+"?lock_token=7", nil).Code)
	assert.Equal(t, 1, env.coll.Len())

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, path+"?lock_token=1", nil).Code)
	assert.Equal(t, 0, env.coll.Len())
}

func TestServer_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"Bad Exclusive", http.MethodGet, "/v1/sessions/app/s1?exclusive=maybe", ""},
		{"Missing Token", http.MethodDelete, "/v1/sessions/app/s1", ""},
		{"Malformed Body", http.MethodPut, "/v1/sessions/app/s1/release", "{"},
		{"Release Without Token", http.MethodPut, "/v1/sessions/app/s1/release", ""},
		{"Release Empty Object", http.MethodPut, "/v1/sessions/app/s1/release", `{"payload":""}`},
		{"Unlock Without Token", http.MethodPost, "/v1/sessions/app/s1/unlock", "{}"},
		{"Negative Timeout", http.MethodPost, "/v1/sessions/app/s1", `{"timeout_minutes":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			env.handler.ServeHTTP(w, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestServer_ReleaseWithoutTokenKeepsPayload(t *testing.T) {
	env := newTestEnv(t)
	const path = "/v1/sessions/app/s1"

	require.NoError(t, env.coll.InsertOne(context.Background(),
		domain.NewRecord("s1", "app", 5, []byte("precious"), 1, domain.ActionNone, env.now)))

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, path+"/release", nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, path+"/unlock", nil).Code)

	rec, err := env.coll.FindOne(context.Background(), domain.Key{ID: "s1", Namespace: "app"})
	require.NoError(t, err)
	assert.Equal(t, []byte("precious"), rec.Payload)
	assert.Equal(t, 1, rec.ItemCount)
}

func tokenPtr(v domain.LockToken) *domain.LockToken {
	return &v
}

// downStore answers every call with a backend failure.
type downStore struct {
	*session.Store
}

func (downStore) Fetch(context.Context, string, string, bool) (session.FetchResult, error) {
	return session.FetchResult{}, domain.Unavailable("fetch", errors.New("connection reset"))
}

func (downStore) Ping(context.Context) error {
	return domain.Unavailable("ping", errors.New("connection reset"))
}

func TestServer_Unavailable(t *testing.T) {
	handler := NewHandler(downStore{Store: session.NewStore(memory.NewCollection())})

	for _, path := range []string{"/v1/sessions/app/s1", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

func TestServer_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "# metrics")
}
