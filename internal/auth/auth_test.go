package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gwlsn/docsauth/internal/hooks"
	"github.com/gwlsn/docsauth/internal/session"
)

type stubProvider struct {
	result    *Result
	err       error
	formatErr error
	calls     int
	lastCreds Credentials
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) ValidateCredentials(Credentials) error { return p.formatErr }

func (p *stubProvider) Authenticate(_ context.Context, creds Credentials) (*Result, error) {
	p.calls++
	p.lastCreds = creds
	return p.result, p.err
}

func okProvider() *stubProvider {
	return &stubProvider{result: &Result{
		AccessToken: "stub-access-token",
		IDToken:     "stub-id-token",
		TokenType:   "Bearer",
		ExpiresIn:   3600,
		User:        User{Sub: "sub-123", Username: "alice", Email: "a@b.com", EmailVerified: true},
	}}
}

type testEnv struct {
	provider *stubProvider
	store    *session.MemoryStore
	sessions *session.Manager
	handlers *Handlers
}

func newTestEnv(t *testing.T, provider *stubProvider, bindings hooks.Bindings, catalog *hooks.Catalog) *testEnv {
	t.Helper()
	store := session.NewMemoryStore()
	sessions, err := session.NewManager(store, "test-secret", session.WithTTL(time.Hour))
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	broker, err := NewBroker(provider, hooks.NewDispatcher(catalog, bindings))
	if err != nil {
		t.Fatalf("NewBroker: %v", err)
	}
	return &testEnv{
		provider: provider,
		store:    store,
		sessions: sessions,
		handlers: &Handlers{Broker: broker, Sessions: sessions, MaxBodySize: 1 << 10},
	}
}

// seedSession persists a session with the given values and returns its cookie.
func (e *testEnv) seedSession(t *testing.T, values map[string]string) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/docs/", nil)
	rec := httptest.NewRecorder()
	sess, err := e.sessions.Load(req)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for k, v := range values {
		sess.Set(k, v)
	}
	if err := e.sessions.Save(rec, req, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	return cookies[0]
}

func (e *testEnv) sessionFor(t *testing.T, cookie *http.Cookie) *session.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	sess, err := e.sessions.Load(req)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return sess
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestLoginSuccessStoresToken(t *testing.T) {
	env := newTestEnv(t, okProvider(), nil, nil)
	rec := httptest.NewRecorder()

	env.handlers.Login(rec, postJSON("/auth/login/", `{"email":"a@b.com","password":"x"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["access_token"] != "stub-access-token" {
		t.Errorf("access_token = %v", body["access_token"])
	}
	if body["message"] != "Login successful" {
		t.Errorf("message = %v", body["message"])
	}
	user, _ := body["user"].(map[string]any)
	if user["sub"] != "sub-123" || user["email"] != "a@b.com" {
		t.Errorf("user = %v", user)
	}
	if env.provider.calls != 1 {
		t.Errorf("provider called %d times, want 1", env.provider.calls)
	}

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected session cookie, got %d cookies", len(cookies))
	}
	sess := env.sessionFor(t, cookies[0])
	if token, _ := sess.Get(TokenKey); token != "stub-access-token" {
		t.Errorf("session auth_token = %q", token)
	}
	if email, _ := sess.Get(EmailKey); email != "a@b.com" {
		t.Errorf("session user_email = %q", email)
	}
}

func TestLoginAcceptsFormEncoding(t *testing.T) {
	env := newTestEnv(t, okProvider(), nil, nil)
	form := url.Values{"email": {"a@b.com"}, "password": {"x"}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	env.handlers.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if env.provider.lastCreds.Email != "a@b.com" || env.provider.lastCreds.Password != "x" {
		t.Errorf("provider got %+v", env.provider.lastCreds)
	}
}

func TestLoginMalformedRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{"email":`},
		{"empty body", ``},
		{"missing password", `{"email":"a@b.com"}`},
		{"missing email", `{"password":"x"}`},
		{"wrong type", `{"email":42,"password":"x"}`},
		{"invalid email", `{"email":"not-an-email","password":"x"}`},
		{"oversized", `{"email":"a@b.com","password":"` + strings.Repeat("x", 2048) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, okProvider(), nil, nil)
			rec := httptest.NewRecorder()

			env.handlers.Login(rec, postJSON("/auth/login/", tt.body))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if body := decodeBody(t, rec); body["error"] != "Invalid request data" {
				t.Errorf("error = %v", body["error"])
			}
			if env.provider.calls != 0 {
				t.Error("provider must not be called for malformed input")
			}
			if len(rec.Result().Cookies()) != 0 {
				t.Error("malformed request must not create a session")
			}
		})
	}
}

func TestLoginInvalidCredentialsFormat(t *testing.T) {
	provider := okProvider()
	provider.formatErr = errors.New("too short")
	env := newTestEnv(t, provider, nil, nil)
	rec := httptest.NewRecorder()

	env.handlers.Login(rec, postJSON("/auth/login/", `{"email":"a@b.com","password":"x"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Invalid credentials format" || body["detail"] != "Please check your email and password format" {
		t.Errorf("body = %v", body)
	}
	if provider.calls != 0 {
		t.Error("provider must not authenticate when the format check fails")
	}
}

func TestLoginRejected(t *testing.T) {
	provider := &stubProvider{err: NewAuthenticationError("Incorrect username or password.", nil)}
	env := newTestEnv(t, provider, nil, nil)
	cookie := env.seedSession(t, map[string]string{"other": "value"})

	req := postJSON("/auth/login/", `{"email":"a@b.com","password":"wrong"}`)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	env.handlers.Login(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Authentication failed" || body["detail"] != "Incorrect username or password." {
		t.Errorf("body = %v", body)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("rejected login must not set a cookie")
	}
	sess := env.sessionFor(t, cookie)
	if _, ok := sess.Get(TokenKey); ok {
		t.Error("rejected login must not write auth_token")
	}
	if v, _ := sess.Get("other"); v != "value" {
		t.Error("rejected login must leave the session untouched")
	}
}

func TestLoginProviderFault(t *testing.T) {
	provider := &stubProvider{err: errors.New("dial tcp: connection refused")}
	env := newTestEnv(t, provider, nil, nil)
	rec := httptest.NewRecorder()

	env.handlers.Login(rec, postJSON("/auth/login/", `{"email":"a@b.com","password":"x"}`))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["error"] != "Authentication service error" {
		t.Errorf("error = %v", body["error"])
	}
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Error("internal error details leaked to the client")
	}
}

func failingCatalog() *hooks.Catalog {
	c := hooks.NewCatalog()
	c.Register("fails", func(context.Context, hooks.Call) error { return errors.New("hook down") })
	c.Register("panics", func(context.Context, hooks.Call) error { panic("hook exploded") })
	return c
}

func TestFailingHooksDoNotChangeLogin(t *testing.T) {
	for _, name := range []string{"fails", "panics"} {
		t.Run(name, func(t *testing.T) {
			bindings := hooks.Bindings{hooks.PreLogin: name, hooks.PostLogin: name}
			env := newTestEnv(t, okProvider(), bindings, failingCatalog())
			rec := httptest.NewRecorder()

			env.handlers.Login(rec, postJSON("/auth/login/", `{"email":"a@b.com","password":"x"}`))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if env.provider.calls != 1 {
				t.Errorf("provider called %d times", env.provider.calls)
			}
		})
	}
}

func TestFailingHooksDoNotChangeLogout(t *testing.T) {
	for _, name := range []string{"fails", "panics"} {
		t.Run(name, func(t *testing.T) {
			bindings := hooks.Bindings{hooks.PreLogout: name, hooks.PostLogout: name}
			env := newTestEnv(t, okProvider(), bindings, failingCatalog())
			cookie := env.seedSession(t, map[string]string{TokenKey: "t", EmailKey: "a@b.com"})

			req := httptest.NewRequest(http.MethodPost, "/auth/logout/", nil)
			req.AddCookie(cookie)
			rec := httptest.NewRecorder()
			env.handlers.Logout(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if _, ok := env.sessionFor(t, cookie).Get(TokenKey); ok {
				t.Error("auth_token should be cleared")
			}
		})
	}
}

func TestHooksReceivePayloads(t *testing.T) {
	got := map[hooks.Event]map[string]any{}
	c := hooks.NewCatalog()
	c.Register("capture", func(_ context.Context, call hooks.Call) error {
		got[call.Event] = call.Payload
		return nil
	})
	bindings := hooks.Bindings{hooks.PreLogin: "capture", hooks.PostLogin: "capture"}
	env := newTestEnv(t, okProvider(), bindings, c)

	env.handlers.Login(httptest.NewRecorder(), postJSON("/auth/login/", `{"email":"a@b.com","password":"secret"}`))

	if got[hooks.PreLogin]["email"] != "a@b.com" {
		t.Errorf("pre_login payload = %v", got[hooks.PreLogin])
	}
	if _, ok := got[hooks.PreLogin]["password"]; ok {
		t.Error("hooks must not receive the password")
	}
	post := got[hooks.PostLogin]
	if post["sub"] != "sub-123" || post["username"] != "alice" || post["access_token"] != "stub-access-token" {
		t.Errorf("post_login payload = %v", post)
	}
}

func TestLogout(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]string
	}{
		{"logged in", map[string]string{TokenKey: "t", EmailKey: "a@b.com", "keep": "1"}},
		{"session without login", map[string]string{"keep": "1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, okProvider(), nil, nil)
			cookie := env.seedSession(t, tt.values)

			req := httptest.NewRequest(http.MethodPost, "/auth/logout/", nil)
			req.AddCookie(cookie)
			rec := httptest.NewRecorder()
			env.handlers.Logout(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if body := decodeBody(t, rec); body["message"] != "Logout successful" {
				t.Errorf("message = %v", body["message"])
			}
			sess := env.sessionFor(t, cookie)
			if _, ok := sess.Get(TokenKey); ok {
				t.Error("auth_token still present")
			}
			if _, ok := sess.Get(EmailKey); ok {
				t.Error("user_email still present")
			}
			if v, _ := sess.Get("keep"); v != "1" {
				t.Error("unrelated session keys must survive logout")
			}
		})
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	env := newTestEnv(t, okProvider(), nil, nil)
	env.handlers.CSRF = true
	rec := httptest.NewRecorder()

	env.handlers.Logout(rec, httptest.NewRequest(http.MethodPost, "/auth/logout/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("logout without a session must not create one")
	}
	if env.store.Len() != 0 {
		t.Errorf("store has %d sessions, want 0", env.store.Len())
	}
}

func TestCSRFProtection(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusForbidden},
		{"wrong token", "nope", http.StatusForbidden},
		{"matching token", "csrf-123", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, okProvider(), nil, nil)
			env.handlers.CSRF = true
			cookie := env.seedSession(t, map[string]string{session.CSRFKey: "csrf-123"})

			req := postJSON("/auth/login/", `{"email":"a@b.com","password":"x"}`)
			req.AddCookie(cookie)
			if tt.header != "" {
				req.Header.Set(session.CSRFHeader, tt.header)
			}
			rec := httptest.NewRecorder()
			env.handlers.Login(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusForbidden && env.provider.calls != 0 {
				t.Error("provider must not be called when CSRF fails")
			}
		})
	}
}

func TestLogoutCSRFProtection(t *testing.T) {
	env := newTestEnv(t, okProvider(), nil, nil)
	env.handlers.CSRF = true
	cookie := env.seedSession(t, map[string]string{session.CSRFKey: "csrf-123", TokenKey: "t"})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout/", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.handlers.Logout(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if _, ok := env.sessionFor(t, cookie).Get(TokenKey); !ok {
		t.Error("forbidden logout must not clear the session")
	}
}

func captureCatalog(got *[]hooks.Call) *hooks.Catalog {
	c := hooks.NewCatalog()
	c.Register("capture", func(_ context.Context, call hooks.Call) error {
		*got = append(*got, call)
		return nil
	})
	return c
}

func TestLogoutWithoutSessionRunsHooks(t *testing.T) {
	var calls []hooks.Call
	bindings := hooks.Bindings{hooks.PreLogout: "capture", hooks.PostLogout: "capture"}
	env := newTestEnv(t, okProvider(), bindings, captureCatalog(&calls))
	env.handlers.CSRF = true
	rec := httptest.NewRecorder()

	env.handlers.Logout(rec, httptest.NewRequest(http.MethodPost, "/auth/logout/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(calls) != 2 || calls[0].Event != hooks.PreLogout || calls[1].Event != hooks.PostLogout {
		t.Fatalf("hook events = %v, want pre_logout then post_logout", calls)
	}
	if len(rec.Result().Cookies()) != 0 || env.store.Len() != 0 {
		t.Error("logout without a session must not create one")
	}
}

func TestLogoutHooksReceiveEmail(t *testing.T) {
	var calls []hooks.Call
	bindings := hooks.Bindings{hooks.PreLogout: "capture", hooks.PostLogout: "capture"}
	env := newTestEnv(t, okProvider(), bindings, captureCatalog(&calls))
	cookie := env.seedSession(t, map[string]string{TokenKey: "t", EmailKey: "a@b.com"})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout/", nil)
	req.AddCookie(cookie)
	env.handlers.Logout(httptest.NewRecorder(), req)

	if len(calls) != 2 {
		t.Fatalf("got %d hook calls, want 2", len(calls))
	}
	for _, call := range calls {
		if call.Payload["email"] != "a@b.com" {
			t.Errorf("%s payload = %v", call.Event, call.Payload)
		}
	}
}

func TestLogoutWebhookCarriesEmail(t *testing.T) {
	var got struct {
		Event string `json:"event"`
		Email string `json:"email"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	c := hooks.NewCatalog()
	c.Register(hooks.Webhook, hooks.NewWebhookClient(srv.URL, time.Second).Hook())
	env := newTestEnv(t, okProvider(), hooks.Bindings{hooks.PostLogout: hooks.Webhook}, c)
	cookie := env.seedSession(t, map[string]string{TokenKey: "t", EmailKey: "a@b.com"})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout/", nil)
	req.AddCookie(cookie)
	env.handlers.Logout(httptest.NewRecorder(), req)

	if got.Event != string(hooks.PostLogout) || got.Email != "a@b.com" {
		t.Errorf("webhook payload = %+v", got)
	}
}

func TestLoginMalformedWithCSRFEnabled(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"wrong type", `{"email":42,"password":"x"}`, http.StatusBadRequest},
		{"missing password", `{"email":"a@b.com"}`, http.StatusBadRequest},
		{"well-formed without token", `{"email":"a@b.com","password":"x"}`, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, okProvider(), nil, nil)
			env.handlers.CSRF = true
			rec := httptest.NewRecorder()

			env.handlers.Login(rec, postJSON("/auth/login/", tt.body))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if env.provider.calls != 0 {
				t.Error("provider must not be called")
			}
		})
	}
}

func TestLoginRotatesSession(t *testing.T) {
	env := newTestEnv(t, okProvider(), nil, nil)
	env.handlers.CSRF = true
	oldCookie := env.seedSession(t, map[string]string{session.CSRFKey: "csrf-123"})
	oldID := strings.SplitN(oldCookie.Value, ".", 2)[0]

	req := postJSON("/auth/login/", `{"email":"a@b.com","password":"x"}`)
	req.AddCookie(oldCookie)
	req.Header.Set(session.CSRFHeader, "csrf-123")
	rec := httptest.NewRecorder()
	env.handlers.Login(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected a new session cookie, got %d", len(cookies))
	}
	if strings.HasPrefix(cookies[0].Value, oldID+".") {
		t.Error("login kept the pre-login session ID")
	}
	if _, ok := env.sessionFor(t, oldCookie).Get(TokenKey); ok {
		t.Error("pre-login session ID must not carry the token")
	}
	sess := env.sessionFor(t, cookies[0])
	if token, _ := sess.Get(TokenKey); token != "stub-access-token" {
		t.Errorf("auth_token = %q", token)
	}
	if !session.VerifyCSRFToken(sess, "csrf-123") {
		t.Error("csrf token should survive rotation")
	}
}
