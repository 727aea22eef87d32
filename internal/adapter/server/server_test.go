package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xela07ax/donewell-adapter/internal/adapter/handler"
	"github.com/xela07ax/donewell-adapter/internal/adapter/service"
	"github.com/xela07ax/donewell-adapter/internal/audit"
	"github.com/xela07ax/donewell-adapter/internal/domain"
	"github.com/xela07ax/donewell-adapter/internal/infra/auth"
	"github.com/xela07ax/donewell-adapter/internal/repository"
	"github.com/xela07ax/donewell-adapter/internal/repository/postgrest"
)

const testSecret = "s3cret"
const secretHeader = "X-DoneWell-Secret"

type stubStore struct {
	err error
}

func (s stubStore) Provider() string { return "supabase" }

func (s stubStore) PeekOne(ctx context.Context, table string) error { return s.err }

type env struct {
	srv    *AdapterServer
	events *observer.ObservedLogs
}

// newEnv собирает сервер целиком; store == nil означает «учетные данные не заданы».
func newEnv(t *testing.T, store repository.ContentStore, secret string) env {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.NewNop()
	metrics := service.NewMetrics(nil)

	health := service.NewHealthService(service.HealthConfig{
		Site:         domain.SiteIdentity{ID: "tb_prod_001", Name: "trickbaseai.com", Environment: "production", Version: "abc1234"},
		Provider:     "supabase",
		ContentTable: "blog_posts",
		FormsTable:   "contact_submissions",
		ProbeTimeout: 200 * time.Millisecond,
	}, store, metrics, logger)
	events := service.NewEventService(audit.NewRecorder(core, nil, logger), metrics, logger)

	srv := NewAdapterServer(logger, metrics, auth.NewSecretValidator(secret), secretHeader,
		handler.NewHealthHandler(health), handler.NewEventHandler(events, logger))
	return env{srv: srv, events: logs}
}

func (e env) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&m); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return m
}

func TestPreflightOnEveryEndpoint(t *testing.T) {
	e := newEnv(t, stubStore{}, testSecret)

	tests := []struct {
		path    string
		methods string
		headers string
	}{
		{RouteHealth, "GET, OPTIONS", "Content-Type"},
		{RouteCMS, "GET, OPTIONS", "Content-Type"},
		{RouteDeploy, "POST, OPTIONS", "Content-Type"},
		{RouteFormTest, "POST, OPTIONS", "Content-Type"},
		{RouteLog, "POST, OPTIONS", "Content-Type, X-DoneWell-Secret"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := e.do(http.MethodOptions, tt.path, "", nil)

			if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
				t.Errorf("code = %d body = %q", rec.Code, rec.Body.String())
			}
			if got := rec.Header().Get("Access-Control-Allow-Methods"); got != tt.methods {
				t.Errorf("Allow-Methods = %q, want %q", got, tt.methods)
			}
			if got := rec.Header().Get("Access-Control-Allow-Headers"); got != tt.headers {
				t.Errorf("Allow-Headers = %q, want %q", got, tt.headers)
			}
		})
	}
	if e.events.Len() != 0 {
		t.Errorf("preflight produced %d events", e.events.Len())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	e := newEnv(t, stubStore{}, testSecret)

	tests := []struct{ method, path string }{
		{http.MethodPost, RouteHealth},
		{http.MethodDelete, RouteCMS},
		{http.MethodGet, RouteDeploy},
		{http.MethodPut, RouteFormTest},
		{http.MethodGet, RouteLog},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := e.do(tt.method, tt.path, "", nil)
			if rec.Code != http.StatusMethodNotAllowed {
				t.Fatalf("code = %d, want 405", rec.Code)
			}
			body := decode(t, rec)
			if body["status"] != "error" || body["error"] != "Method not allowed" {
				t.Errorf("body = %v", body)
			}
		})
	}
}

func TestAggregateHealth(t *testing.T) {
	tests := []struct {
		name   string
		store  repository.ContentStore
		status string
	}{
		{"healthy", stubStore{}, "ok"},
		{"store failing", stubStore{err: errors.New("permission denied")}, "degraded"},
		{"credentials missing", nil, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, tt.store, testSecret)
			rec := e.do(http.MethodGet, RouteHealth, "", nil)

			// Деградация не должна выводить инстанс из ротации
			if rec.Code != http.StatusOK {
				t.Fatalf("code = %d, want 200", rec.Code)
			}
			if got := rec.Header().Get("Cache-Control"); got != "no-cache, no-store, must-revalidate" {
				t.Errorf("Cache-Control = %q", got)
			}
			body := decode(t, rec)
			if body["status"] != tt.status {
				t.Errorf("status = %v, want %s", body["status"], tt.status)
			}
			if body["site_id"] != "tb_prod_001" || body["version"] != "abc1234" {
				t.Errorf("identity = %v", body)
			}
			checks, _ := body["checks"].(map[string]any)
			if checks["frontend"] != "ok" {
				t.Errorf("checks = %v", checks)
			}
		})
	}
}

func TestContentHealthEndpoint(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		e := newEnv(t, stubStore{err: repository.ErrNoRows}, testSecret)
		rec := e.do(http.MethodGet, RouteCMS, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d", rec.Code)
		}
		body := decode(t, rec)
		if body["status"] != "ok" || body["provider_name"] != "supabase" {
			t.Errorf("body = %v", body)
		}
		if _, ok := body["error_message"]; ok {
			t.Errorf("error_message present on success: %v", body)
		}
	})

	t.Run("missing config", func(t *testing.T) {
		e := newEnv(t, nil, testSecret)
		rec := e.do(http.MethodGet, RouteCMS, "", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("code = %d, want 503", rec.Code)
		}
		body := decode(t, rec)
		if body["latency_ms"] != float64(0) || body["error_message"] != "CMS configuration missing" {
			t.Errorf("body = %v", body)
		}
	})
}

func TestDeploy(t *testing.T) {
	valid := `{"site_id":"tb_prod_001","deploy_id":"dpl_42","environment":"production"}`

	t.Run("missing deploy_id is rejected without logging", func(t *testing.T) {
		e := newEnv(t, stubStore{}, testSecret)
		rec := e.do(http.MethodPost, RouteDeploy, `{"site_id":"tb_prod_001","environment":"production"}`, nil)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %d, want 400", rec.Code)
		}
		body := decode(t, rec)
		if body["received"] != false || body["error"] != "Missing required fields: site_id, deploy_id, environment" {
			t.Errorf("body = %v", body)
		}
		if e.events.Len() != 0 {
			t.Errorf("logged %d events, want 0", e.events.Len())
		}
	})

	t.Run("empty body is an empty object", func(t *testing.T) {
		e := newEnv(t, stubStore{}, testSecret)
		rec := e.do(http.MethodPost, RouteDeploy, "", nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %d, want 400", rec.Code)
		}
	})

	t.Run("malformed body", func(t *testing.T) {
		e := newEnv(t, stubStore{}, testSecret)
		rec := e.do(http.MethodPost, RouteDeploy, `{not json`, nil)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("code = %d, want 500", rec.Code)
		}
		if body := decode(t, rec); body["status"] != "error" {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("duplicates are logged twice", func(t *testing.T) {
		e := newEnv(t, stubStore{}, testSecret)
		for i := 0; i < 2; i++ {
			rec := e.do(http.MethodPost, RouteDeploy, valid, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("attempt %d: code = %d", i, rec.Code)
			}
			body := decode(t, rec)
			if body["status"] != "ok" || body["received"] != true || body["deploy_id"] != "dpl_42" {
				t.Errorf("body = %v", body)
			}
		}
		if n := e.events.FilterMessage("deploy").Len(); n != 2 {
			t.Errorf("deploy lines = %d, want 2", n)
		}
	})
}

func TestFormTest(t *testing.T) {
	e := newEnv(t, stubStore{}, testSecret)

	t.Run("valid", func(t *testing.T) {
		rec := e.do(http.MethodPost, RouteFormTest,
			`{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","phone":"+1 (555) 010-0000","message":"hi"}`, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d", rec.Code)
		}
		body := decode(t, rec)
		if body["validated"] != true || body["submission_path"] != "contact_form_v1" {
			t.Errorf("body = %v", body)
		}
		if _, ok := body["errors"]; ok {
			t.Errorf("errors present on success: %v", body)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		rec := e.do(http.MethodPost, RouteFormTest, `{"email":"nope"}`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %d", rec.Code)
		}
		body := decode(t, rec)
		errs, _ := body["errors"].([]any)
		if body["validated"] != false || len(errs) != 4 {
			t.Errorf("body = %v", body)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		rec := e.do(http.MethodPost, RouteFormTest, `[`, nil)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("code = %d, want 500", rec.Code)
		}
		body := decode(t, rec)
		if errs, _ := body["errors"].([]any); len(errs) != 1 {
			t.Errorf("body = %v", body)
		}
	})
}

func TestIncidentLog(t *testing.T) {
	valid := `{"site_id":"tb_prod_001","severity":"sev-1","type":"unhandled_rejection","message":"boom","path":"/pricing"}`

	tests := []struct {
		name       string
		serverKey  string
		header     string
		body       string
		wantCode   int
		wantError  string
		wantLogged int
	}{
		{"auth before body validation", testSecret, "wrong", `{"severity":"sev-9"}`, http.StatusUnauthorized, "Unauthorized", 0},
		{"missing header", testSecret, "", valid, http.StatusUnauthorized, "Unauthorized", 0},
		{"secret not configured", "", testSecret, valid, http.StatusInternalServerError, "Log endpoint not configured", 0},
		{"invalid severity", testSecret, testSecret, `{"site_id":"s","severity":"sev-0","type":"t","message":"m"}`, http.StatusBadRequest, "Invalid severity. Must be: sev-1, sev-2, sev-3", 0},
		{"missing fields", testSecret, testSecret, `{"site_id":"s"}`, http.StatusBadRequest, "Missing required fields: site_id, severity, type, message", 0},
		{"malformed after auth", testSecret, testSecret, `nope`, http.StatusInternalServerError, "", 0},
		{"accepted", testSecret, testSecret, valid, http.StatusOK, "", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, stubStore{}, tt.serverKey)
			headers := map[string]string{}
			if tt.header != "" {
				headers[secretHeader] = tt.header
			}

			rec := e.do(http.MethodPost, RouteLog, tt.body, headers)

			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			body := decode(t, rec)
			if tt.wantError != "" && body["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", body["error"], tt.wantError)
			}
			if tt.wantCode == http.StatusOK && (body["status"] != "ok" || body["logged"] != true) {
				t.Errorf("body = %v", body)
			}
			if n := e.events.FilterMessage("incident").Len(); n != tt.wantLogged {
				t.Errorf("incident lines = %d, want %d", n, tt.wantLogged)
			}
		})
	}
}

func TestIncidentLevelFollowsSeverity(t *testing.T) {
	e := newEnv(t, stubStore{}, testSecret)
	rec := e.do(http.MethodPost, RouteLog,
		`{"site_id":"s","severity":"sev-2","type":"t","message":"m"}`,
		map[string]string{secretHeader: testSecret})
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}

	entries := e.events.FilterMessage("incident").All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Errorf("level = %v, want warn", entries[0].Level)
	}
	if path, ok := entries[0].ContextMap()["path"]; !ok || path != nil {
		t.Errorf("path = %v, want null", path)
	}
}

func TestContentHealthEndpoint_SlowStoreStillReports(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`[]`))
	}))
	defer upstream.Close()

	e := newEnv(t, postgrest.NewClient(upstream.URL, "k"), testSecret)
	rec := e.do(http.MethodGet, RouteCMS, "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200 body = %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["status"] != "ok" || body["provider_name"] != "supabase" {
		t.Errorf("body = %v", body)
	}
	if latency, _ := body["latency_ms"].(float64); latency < 300 {
		t.Errorf("latency_ms = %v, want >= 300", body["latency_ms"])
	}
}

func TestBodyParsing(t *testing.T) {
	deploy := `{"site_id":"tb_prod_001","deploy_id":"dpl_42","environment":"production"}`
	form := `{"first_name":"Ada","last_name":"Lovelace","email":"ada@example.com","message":"hi"}`
	incident := `{"site_id":"s","severity":"sev-3","type":"t","message":"m"}`
	auth := map[string]string{secretHeader: testSecret}

	tests := []struct {
		name      string
		path      string
		body      string
		headers   map[string]string
		wantCode  int
		wantError string
	}{
		{"deploy trailing garbage", RouteDeploy, deploy + "garbage", nil, http.StatusInternalServerError, ""},
		{"deploy second document", RouteDeploy, deploy + deploy, nil, http.StatusInternalServerError, ""},
		{"deploy top-level array", RouteDeploy, `[` + deploy + `]`, nil, http.StatusInternalServerError, ""},
		{"deploy numeric site_id", RouteDeploy, `{"site_id":123,"deploy_id":"d","environment":"e"}`, nil, http.StatusBadRequest, "Invalid type for field: site_id"},
		{"deploy string metadata", RouteDeploy, `{"site_id":"s","deploy_id":"d","environment":"e","metadata":"x"}`, nil, http.StatusBadRequest, "Invalid type for field: metadata"},
		{"deploy null body", RouteDeploy, `null`, nil, http.StatusBadRequest, "Missing required fields: site_id, deploy_id, environment"},
		{"deploy surrounding whitespace", RouteDeploy, "\n " + deploy + " \n", nil, http.StatusOK, ""},
		{"form trailing braces", RouteFormTest, form + ` }}} not json`, nil, http.StatusInternalServerError, ""},
		{"form numeric name", RouteFormTest, `{"first_name":5,"last_name":"L","email":"a@b.co","message":"m"}`, nil, http.StatusBadRequest, ""},
		{"incident trailing garbage", RouteLog, incident + `x`, auth, http.StatusInternalServerError, ""},
		{"incident numeric severity", RouteLog, `{"site_id":"s","severity":1,"type":"t","message":"m"}`, auth, http.StatusBadRequest, "Invalid type for field: severity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, stubStore{}, testSecret)

			rec := e.do(http.MethodPost, tt.path, tt.body, tt.headers)

			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d body = %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			body := decode(t, rec)
			if tt.wantError != "" && body["error"] != tt.wantError {
				t.Errorf("error = %v, want %q", body["error"], tt.wantError)
			}
			wantEvents := 0
			if tt.wantCode == http.StatusOK && tt.path != RouteFormTest {
				wantEvents = 1
			}
			if e.events.Len() != wantEvents {
				t.Errorf("events = %d, want %d", e.events.Len(), wantEvents)
			}
		})
	}
}
