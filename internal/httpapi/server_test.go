package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/waspsec/wasp/internal/config"
	"github.com/waspsec/wasp/internal/store"
	"github.com/waspsec/wasp/internal/trust"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	return NewServer(cfg, st), st
}

func do(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestCheckEndpoint(t *testing.T) {
	s, st := newTestServer(t, nil)
	_ = st.UpsertContact("+4401", trust.PlatformWhatsApp, trust.Trusted, "", "")

	w := do(t, s, http.MethodPost, "/check", `{"identifier":"+4401"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var result trust.CheckResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Allowed || result.Trust != trust.Trusted {
		t.Fatalf("unexpected result: %+v", result)
	}
	if w.Header().Get("X-RateLimit-Remaining") == "" {
		t.Fatal("rate limit headers missing")
	}

	w = do(t, s, http.MethodPost, "/check", `{"identifier":"+nobody"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &result)
	if result.Allowed {
		t.Fatal("unknown sender must be denied")
	}
}

func TestCheckValidation(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, body := range []string{``, `{}`, `{"identifier":""}`, `{"identifier":"x","platform":"pager"}`} {
		w := do(t, s, http.MethodPost, "/check", body, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, w.Code)
		}
	}
	if w := do(t, s, http.MethodGet, "/check", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /check: %d", w.Code)
	}
}

func TestCheckRateLimited(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit.MaxRequests = 2
	})
	headers := map[string]string{"X-Forwarded-For": "203.0.113.9"}
	for i := 0; i < 2; i++ {
		if w := do(t, s, http.MethodPost, "/check", `{"identifier":"x"}`, headers); w.Code != http.StatusOK {
			t.Fatalf("request %d: %d", i, w.Code)
		}
	}
	w := do(t, s, http.MethodPost, "/check", `{"identifier":"x"}`, headers)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	// A different client IP has its own budget.
	other := map[string]string{"X-Forwarded-For": "203.0.113.10, 10.0.0.1"}
	if w := do(t, s, http.MethodPost, "/check", `{"identifier":"x"}`, other); w.Code != http.StatusOK {
		t.Fatalf("other client: %d", w.Code)
	}
}

func TestContactsCRUD(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/contacts", `{"identifier":"+1","platform":"telegram","trust":"limited","name":"N"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("post: %d %s", w.Code, w.Body.String())
	}

	w = do(t, s, http.MethodGet, "/contacts?platform=telegram", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: %d", w.Code)
	}
	var listing struct {
		Contacts []store.Contact `json:"contacts"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &listing)
	if len(listing.Contacts) != 1 || listing.Contacts[0].Trust != trust.Limited {
		t.Fatalf("listing: %+v", listing)
	}

	w = do(t, s, http.MethodDelete, "/contacts/+1?platform=telegram", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
	var del struct {
		Removed bool `json:"removed"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &del)
	if !del.Removed {
		t.Fatal("expected removed=true")
	}
}

func TestContactsValidation(t *testing.T) {
	s, _ := newTestServer(t, nil)
	cases := []string{
		`{"identifier":""}`,
		`{"identifier":"x","trust":"boss"}`,
		`{"identifier":"x","platform":"fax"}`,
	}
	for _, body := range cases {
		if w := do(t, s, http.MethodPost, "/contacts", body, nil); w.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestAuthTokenRequired(t *testing.T) {
	s, _ := newTestServer(t, func(cfg *config.Config) {
		cfg.Admin.APIToken = "sekrit"
	})

	w := do(t, s, http.MethodGet, "/contacts", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "sekrit") {
		t.Fatal("error body must never echo the token")
	}

	// Both bearer and bare forms are accepted.
	for _, auth := range []string{"Bearer sekrit", "sekrit"} {
		w := do(t, s, http.MethodGet, "/contacts", "", map[string]string{"Authorization": auth})
		if w.Code != http.StatusOK {
			t.Fatalf("auth %q: %d", auth, w.Code)
		}
	}

	w = do(t, s, http.MethodGet, "/contacts", "", map[string]string{"Authorization": "Bearer wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: %d", w.Code)
	}

	// /check stays unauthenticated even with a token configured.
	if w := do(t, s, http.MethodPost, "/check", `{"identifier":"x"}`, nil); w.Code != http.StatusOK {
		t.Fatalf("/check with token configured: %d", w.Code)
	}
}

func TestLoopbackOnlyWithoutToken(t *testing.T) {
	s, _ := newTestServer(t, nil)

	// Direct connections (no proxy headers) are local.
	if w := do(t, s, http.MethodGet, "/contacts", "", nil); w.Code != http.StatusOK {
		t.Fatalf("direct: %d", w.Code)
	}
	for _, ip := range []string{"127.0.0.1", "::1"} {
		w := do(t, s, http.MethodGet, "/contacts", "", map[string]string{"X-Forwarded-For": ip})
		if w.Code != http.StatusOK {
			t.Fatalf("loopback %s: %d", ip, w.Code)
		}
	}
	w := do(t, s, http.MethodGet, "/contacts", "", map[string]string{"X-Forwarded-For": "203.0.113.9"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("remote client without token: %d", w.Code)
	}
	w = do(t, s, http.MethodGet, "/contacts", "", map[string]string{"X-Real-IP": "203.0.113.9"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("remote client via X-Real-IP: %d", w.Code)
	}
}

func TestAuditEndpoint(t *testing.T) {
	s, st := newTestServer(t, nil)
	_ = st.AppendAudit(store.AuditEntry{Identifier: "a", Platform: "whatsapp", Decision: "deny", Reason: "r"})
	_ = st.AppendAudit(store.AuditEntry{Identifier: "b", Platform: "whatsapp", Decision: "allow", Reason: "r"})

	w := do(t, s, http.MethodGet, "/audit?decision=deny", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var resp struct {
		Entries []store.AuditEntry `json:"entries"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Entries) != 1 || resp.Entries[0].Identifier != "a" {
		t.Fatalf("entries: %+v", resp.Entries)
	}

	for _, q := range []string{"limit=-1", "limit=99999", "limit=abc", "decision=maybe"} {
		w := do(t, s, http.MethodGet, "/audit?"+q, "", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("query %q: expected 400, got %d", q, w.Code)
		}
	}
}

func TestHealth(t *testing.T) {
	s, st := newTestServer(t, nil)
	if w := do(t, s, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("health: %d", w.Code)
	}
	st.Close()
	if w := do(t, s, http.MethodGet, "/health", "", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("health after close: %d", w.Code)
	}
}
