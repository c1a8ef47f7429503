package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/prefs"
	"github.com/kalambet/prefs/schema"
	"github.com/kalambet/prefs/storage"
)

type testEnv struct {
	handler http.Handler
	record  *prefs.Record
	store   *storage.MemoryStore
}

func newTestEnv(t *testing.T, token string) *testEnv {
	t.Helper()
	s := schema.MustNew("api-"+t.Name(), "settings",
		schema.Int("count", 0),
		schema.String("name", ""),
		schema.Bool("dark_mode", false).StoredAs("dark"),
		schema.Float("ratio", 0.5),
	)
	store := storage.NewMemoryStore()
	rec, err := prefs.Load(s, "com.example/app", prefs.WithStore(store))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { rec.Close() })
	return &testEnv{
		handler: NewHandler(Deps{Record: rec, Token: token}),
		record:  rec,
		store:   store,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func errorType(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body.Error.Type
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "secret")
	rr := env.do(t, http.MethodGet, "/health", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestGetPrefs(t *testing.T) {
	env := newTestEnv(t, "")
	rr := env.do(t, http.MethodGet, "/prefs", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var resp PrefsResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Location != "memory::prefs_com_example_app_settings.toml" {
		t.Errorf("Location = %q", resp.Location)
	}
	if resp.Values["count"] != float64(0) || resp.Values["name"] != "" || resp.Values["dark_mode"] != false {
		t.Errorf("Values = %#v", resp.Values)
	}
}

func TestGetField(t *testing.T) {
	env := newTestEnv(t, "")

	rr := env.do(t, http.MethodGet, "/prefs/dark_mode", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var resp FieldResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Key != "dark" || resp.Kind != "bool" || resp.Value != false {
		t.Errorf("resp = %+v", resp)
	}

	rr = env.do(t, http.MethodGet, "/prefs/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing field status = %d, want 404", rr.Code)
	}
}

// TestPutField verifies a PUT saves once and an identical PUT writes nothing.
func TestPutField(t *testing.T) {
	env := newTestEnv(t, "")

	rr := env.do(t, http.MethodPut, "/prefs/count", `{"value": 9007199254740993}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if got := prefs.Get(env.record, schema.Int("count", 0)); got != 9007199254740993 {
		t.Errorf("count = %d, precision lost", got)
	}
	if env.store.Writes() != 1 {
		t.Errorf("writes = %d, want 1", env.store.Writes())
	}

	rr = env.do(t, http.MethodPut, "/prefs/count", `{"value": "9007199254740993"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("string value status = %d", rr.Code)
	}
	if env.store.Writes() != 1 {
		t.Errorf("unchanged PUT wrote: writes = %d", env.store.Writes())
	}

	rr = env.do(t, http.MethodPut, "/prefs/ratio", `{"value": 2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("int for float status = %d", rr.Code)
	}
	if v, _ := env.record.Value("ratio"); v != float64(2) {
		t.Errorf("ratio = %#v", v)
	}
}

func TestPutFieldRejectsBadValues(t *testing.T) {
	env := newTestEnv(t, "")
	cases := []struct {
		path, body string
		code       int
	}{
		{"/prefs/count", `{"value": 1.5}`, http.StatusBadRequest},
		{"/prefs/count", `{"value": "many"}`, http.StatusBadRequest},
		{"/prefs/dark_mode", `{"value": 1}`, http.StatusBadRequest},
		{"/prefs/name", `{"value": true}`, http.StatusBadRequest},
		{"/prefs/name", `{}`, http.StatusBadRequest},
		{"/prefs/name", `not json`, http.StatusBadRequest},
		{"/prefs/nope", `{"value": 1}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		rr := env.do(t, http.MethodPut, tc.path, tc.body)
		if rr.Code != tc.code {
			t.Errorf("PUT %s %s: status = %d, want %d", tc.path, tc.body, rr.Code, tc.code)
		}
	}
	if env.store.Writes() != 0 {
		t.Errorf("rejected requests wrote %d times", env.store.Writes())
	}
}

// TestPatchIsOneTransaction verifies a multi-field PATCH writes once and an
// invalid entry rejects the whole request.
func TestPatchIsOneTransaction(t *testing.T) {
	env := newTestEnv(t, "")

	rr := env.do(t, http.MethodPatch, "/prefs", `{"count": 5, "name": "x", "dark_mode": true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	if env.store.Writes() != 1 {
		t.Errorf("writes = %d, want 1", env.store.Writes())
	}
	var resp PrefsResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Values["name"] != "x" || resp.Values["dark_mode"] != true {
		t.Errorf("Values = %#v", resp.Values)
	}

	rr = env.do(t, http.MethodPatch, "/prefs", `{"count": 6, "nope": 1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if v, _ := env.record.Value("count"); v != int64(5) {
		t.Errorf("partial PATCH applied: count = %v", v)
	}

	rr = env.do(t, http.MethodPatch, "/prefs", `{"count": 5}`)
	if rr.Code != http.StatusOK || env.store.Writes() != 1 {
		t.Errorf("no-op PATCH: status = %d, writes = %d", rr.Code, env.store.Writes())
	}
}

func TestStorageFailure(t *testing.T) {
	env := newTestEnv(t, "")
	env.store.FailWith(errors.New("quota exceeded"))

	rr := env.do(t, http.MethodPut, "/prefs/name", `{"value": "y"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if typ := errorType(t, rr); typ != "storage_error" {
		t.Errorf("error type = %q", typ)
	}
}

func TestReload(t *testing.T) {
	env := newTestEnv(t, "")
	if err := env.store.Set("prefs_com_example_app_settings.toml", "name = \"outside\"\n"); err != nil {
		t.Fatal(err)
	}
	rr := env.do(t, http.MethodPost, "/prefs/reload", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if v, _ := env.record.Value("name"); v != "outside" {
		t.Errorf("name = %v after reload", v)
	}
}

func TestLocation(t *testing.T) {
	env := newTestEnv(t, "")
	rr := env.do(t, http.MethodGet, "/location", "")
	var resp LocationResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Key != "settings.toml" || !strings.HasPrefix(resp.Location, "memory::") {
		t.Errorf("resp = %+v", resp)
	}
}

func TestBearerAuth(t *testing.T) {
	env := newTestEnv(t, "secret")

	rr := env.do(t, http.MethodGet, "/prefs", "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status without token = %d, want 401", rr.Code)
	}
	if typ := errorType(t, rr); typ != "authentication_error" {
		t.Errorf("error type = %q", typ)
	}

	req := httptest.NewRequest(http.MethodGet, "/prefs", nil)
	req.Header.Set("Authorization", "Bearer secret")
	ok := httptest.NewRecorder()
	env.handler.ServeHTTP(ok, req)
	if ok.Code != http.StatusOK {
		t.Errorf("status with token = %d, want 200", ok.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/prefs", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	bad := httptest.NewRecorder()
	env.handler.ServeHTTP(bad, req)
	if bad.Code != http.StatusUnauthorized {
		t.Errorf("status with wrong token = %d, want 401", bad.Code)
	}
}
