package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrEthical07/edgeauth"
	"github.com/MrEthical07/edgeauth/password"
	"github.com/MrEthical07/edgeauth/permission"
	"github.com/MrEthical07/edgeauth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testPassword = "correct-password-123"

type stubUsers struct {
	users map[string]edgeauth.UserRecord
}

func (s *stubUsers) GetUserByIdentifier(_ context.Context, identifier string) (edgeauth.UserRecord, error) {
	for _, u := range s.users {
		if u.Email == identifier {
			return u, nil
		}
	}
	return edgeauth.UserRecord{}, edgeauth.ErrUserNotFound
}

func (s *stubUsers) GetUserByID(_ context.Context, userID string) (edgeauth.UserRecord, error) {
	u, ok := s.users[userID]
	if !ok {
		return edgeauth.UserRecord{}, edgeauth.ErrUserNotFound
	}
	return u, nil
}

func (s *stubUsers) UpdatePasswordHash(context.Context, string, string) error { return nil }

type downRepository struct{}

func (downRepository) FindLive(context.Context, string, time.Time) (*session.Session, error) {
	return nil, errors.New("connection refused")
}
func (downRepository) Create(context.Context, *session.Session) error { return errors.New("down") }
func (downRepository) Delete(context.Context, string) error           { return errors.New("down") }

func testConfig() edgeauth.Config {
	cfg := edgeauth.DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	return cfg
}

func newTestEngine(t *testing.T, repo session.Repository) *edgeauth.Engine {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users := &stubUsers{users: map[string]edgeauth.UserRecord{}}
	if repo == nil {
		repo = session.NewMemoryRepository()
	}

	engine, err := edgeauth.New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithRepository(repo).
		WithUserProvider(users).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)

	hasher, err := password.NewArgon2(password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	users.users["u1"] = edgeauth.UserRecord{UserID: "u1", Email: "creator@example.com", UserType: "creator", PasswordHash: hash}
	users.users["u2"] = edgeauth.UserRecord{UserID: "u2", Email: "investor@example.com", UserType: "investor", PasswordHash: hash}
	return engine
}

func tokenFor(t *testing.T, engine *edgeauth.Engine, email string) string {
	t.Helper()
	res, err := engine.Login(context.Background(), email, testPassword)
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return res.AccessToken
}

func request(method, path, token string) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body.Success {
		t.Fatal("error body must have success=false")
	}
	return body
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

/*
====================================
AUTHENTICATE
====================================
*/

func TestAuthenticateRejectsMissingCredential(t *testing.T) {
	engine := newTestEngine(t, nil)
	rec := httptest.NewRecorder()

	Authenticate(engine)(okHandler).ServeHTTP(rec, request(http.MethodGet, "/api/auth/me", ""))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error.Code != CodeUnauthorized {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestAuthenticateAttachesIdentity(t *testing.T) {
	engine := newTestEngine(t, nil)
	token := tokenFor(t, engine, "creator@example.com")

	var seen *edgeauth.Identity
	h := Authenticate(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = IdentityFromContext(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), request(http.MethodGet, "/api/auth/me", token))

	if seen == nil || seen.ID != "u1" || seen.Role != permission.RoleCreator {
		t.Fatalf("unexpected identity %+v", seen)
	}
}

func TestAuthenticateBackendDownIs503(t *testing.T) {
	engine := newTestEngine(t, downRepository{})

	r := request(http.MethodGet, "/api/auth/me", "")
	r.AddCookie(&http.Cookie{Name: "session", Value: "some-session"})
	rec := httptest.NewRecorder()
	Authenticate(engine)(okHandler).ServeHTTP(rec, r)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error.Code != CodeServiceUnavailable {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}
}

func TestOptionalLetsAnonymousThrough(t *testing.T) {
	engine := newTestEngine(t, nil)

	called := false
	h := Optional(engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := IdentityFromContext(r.Context()); ok {
			t.Error("anonymous request must not carry an identity")
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), request(http.MethodGet, "/api/pitches/public", "bad-token"))

	if !called {
		t.Fatal("handler not called")
	}
}

/*
====================================
ROLES
====================================
*/

func TestRequireRole(t *testing.T) {
	engine := newTestEngine(t, nil)
	creator := tokenFor(t, engine, "creator@example.com")
	investor := tokenFor(t, engine, "investor@example.com")

	h := RequireRole(engine, permission.RoleCreator)(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodGet, "/api/creator/dashboard", creator))
	if rec.Code != http.StatusOK {
		t.Fatalf("creator: expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodGet, "/api/creator/dashboard", investor))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("investor: expected 403, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error.Code != CodeForbidden {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodGet, "/api/creator/dashboard", ""))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", rec.Code)
	}
}

/*
====================================
AUTHORIZE
====================================
*/

func TestAuthorizeRouteTable(t *testing.T) {
	engine := newTestEngine(t, nil)
	creator := tokenFor(t, engine, "creator@example.com")
	investor := tokenFor(t, engine, "investor@example.com")

	h := Authorize(engine, nil)(okHandler)

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		status int
		code   string
	}{
		{"public without credentials", http.MethodGet, "/api/pitches/public", "", http.StatusOK, ""},
		{"anonymous on guarded route", http.MethodPost, "/api/pitches", "", http.StatusUnauthorized, "UNAUTHORIZED"},
		{"creator creates pitch", http.MethodPost, "/api/pitches", creator, http.StatusOK, ""},
		{"investor cannot create pitch", http.MethodPost, "/api/pitches", investor, http.StatusForbidden, "PERMISSION_DENIED"},
		{"portal denies other role", http.MethodGet, "/api/investor/dashboard", creator, http.StatusForbidden, "PORTAL_ACCESS_DENIED"},
		{"unlisted is open", http.MethodGet, "/api/unknown", creator, http.StatusOK, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, request(tc.method, tc.path, tc.token))
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if tc.code != "" {
				if body := decodeError(t, rec); body.Error.Code != tc.code {
					t.Fatalf("expected code %q, got %q", tc.code, body.Error.Code)
				}
			}
		})
	}
}

func TestAuthorizeOwnershipFromLoader(t *testing.T) {
	engine := newTestEngine(t, nil)
	creator := tokenFor(t, engine, "creator@example.com")

	owner := "u1"
	loader := func(r *http.Request, id *edgeauth.Identity) (string, map[string]any, error) {
		if r.URL.Path == "/api/pitches/404" {
			return "", nil, &Error{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "Pitch not found"}
		}
		return owner, nil, nil
	}

	var decisionPattern string
	h := Authorize(engine, loader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, _ := DecisionFromContext(r.Context())
		decisionPattern = d.Pattern
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPut, "/api/pitches/42", creator))
	if rec.Code != http.StatusOK || decisionPattern != "/api/pitches/:id" {
		t.Fatalf("owner should edit: status %d pattern %q", rec.Code, decisionPattern)
	}

	owner = "someone-else"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPut, "/api/pitches/42", creator))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner: expected 403, got %d", rec.Code)
	}
	if body := decodeError(t, rec); body.Error.Code != CodeForbidden {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, request(http.MethodPut, "/api/pitches/404", creator))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected loader status 404, got %d", rec.Code)
	}
}

func TestAuthorizeBackendDownIs503(t *testing.T) {
	engine := newTestEngine(t, downRepository{})

	r := request(http.MethodGet, "/api/pitches/public", "")
	r.AddCookie(&http.Cookie{Name: "pitchey-session", Value: "some-session"})
	rec := httptest.NewRecorder()
	Authorize(engine, nil)(okHandler).ServeHTTP(rec, r)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

/*
====================================
CORS
====================================
*/

func TestCORSPreflight(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	h := CORS(cfg)(okHandler)

	r := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	r.Header.Set("Origin", "https://app.example.com")
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("unexpected allow-origin %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatal("expected credentials to be allowed")
	}
	if rec.Header().Get("Access-Control-Max-Age") != "600" {
		t.Fatalf("unexpected max-age %q", rec.Header().Get("Access-Control-Max-Age"))
	}

	r.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unknown origin, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unknown origin must not be echoed")
	}
}

func TestCORSPreflightRequestHeaders(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com"}
	h := CORS(cfg)(okHandler)

	preflight := func(headers string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodOptions, "/api/pitches", nil)
		r.Header.Set("Origin", "https://app.example.com")
		r.Header.Set("Access-Control-Request-Method", http.MethodPut)
		r.Header.Set("Access-Control-Request-Headers", headers)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	rec := preflight("authorization, content-type")
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("expected allowed preflight, got %d %v", rec.Code, rec.Header())
	}
	if rec.Header().Get("Access-Control-Allow-Headers") == "" {
		t.Fatal("expected allowed request headers to be listed")
	}

	rec = preflight("x-not-allowed")
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("preflight with a disallowed header must not be approved, got %v", rec.Header())
	}
}

func TestCORSSimpleRequests(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"https://app.example.com/"}
	h := CORS(cfg)(okHandler)

	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("unexpected response %d %v", rec.Code, rec.Header())
	}

	r = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" || rec.Header().Get("Vary") != "" {
		t.Fatal("requests without Origin get no CORS headers")
	}
}

func TestCORSWildcardDropsCredentials(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowedOrigins = []string{"*"}
	h := CORS(cfg)(okHandler)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Origin", "https://anything.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Header().Get("Access-Control-Allow-Origin") != "*" || rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Fatalf("unexpected headers %v", rec.Header())
	}
}

func TestErrorForMapping(t *testing.T) {
	if ErrorFor(nil) != nil {
		t.Fatal("nil error maps to nil")
	}
	cases := map[error]int{
		edgeauth.ErrUnauthenticated:    http.StatusUnauthorized,
		edgeauth.ErrForbidden:          http.StatusForbidden,
		edgeauth.ErrBackendUnavailable: http.StatusServiceUnavailable,
		errors.New("mystery"):          http.StatusUnauthorized,
	}
	for err, status := range cases {
		if got := ErrorFor(err).Status; got != status {
			t.Fatalf("%v: expected %d, got %d", err, status, got)
		}
	}
}
