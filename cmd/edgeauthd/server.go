package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/MrEthical07/edgeauth"
	"github.com/MrEthical07/edgeauth/metrics/export/prometheus"
	"github.com/MrEthical07/edgeauth/middleware"
	"github.com/gorilla/mux"
)

const maxBodyBytes = 64 << 10

// Headers set on proxied requests. Inbound copies are always stripped.
const (
	headerUserID   = "X-Edgeauth-User-Id"
	headerUserRole = "X-Edgeauth-User-Role"
	headerRoute    = "X-Edgeauth-Route"
)

type server struct {
	engine       *edgeauth.Engine
	logger       *slog.Logger
	cookieName   string
	secureCookie bool
	upstream     http.Handler
}

type serverOptions struct {
	cors             middleware.CORSConfig
	secureCookie     bool
	upstream         string
	ownershipURL     string
	ownershipTimeout time.Duration
}

func newServer(engine *edgeauth.Engine, logger *slog.Logger, opts serverOptions) (http.Handler, error) {
	s := &server{
		engine:       engine,
		logger:       logger,
		cookieName:   engine.Config().Session.CookieNames[0],
		secureCookie: opts.secureCookie,
		upstream:     http.HandlerFunc(notFound),
	}
	if opts.upstream != "" {
		proxy, err := newUpstreamProxy(opts.upstream)
		if err != nil {
			return nil, err
		}
		s.upstream = proxy
	}

	owners, err := newOwnershipResolver(engine.Model(), opts.ownershipURL, opts.ownershipTimeout, logger)
	if err != nil {
		return nil, err
	}

	authn := middleware.Authenticate(engine)

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	r.Handle("/metrics", prometheus.Handler(engine)).Methods(http.MethodGet)

	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/login", s.login).Methods(http.MethodPost)
	auth.HandleFunc("/refresh", s.refresh).Methods(http.MethodPost)
	auth.Handle("/logout", authn(http.HandlerFunc(s.logout))).Methods(http.MethodPost)
	auth.Handle("/me", authn(http.HandlerFunc(s.me))).Methods(http.MethodGet)

	r.PathPrefix("/api/").Handler(middleware.Authorize(engine, owners.load)(s.upstream))

	// CORS wraps the router so preflights are answered before method matching.
	return middleware.CORS(opts.cors)(r), nil
}

func newUpstreamProxy(raw string) (http.Handler, error) {
	target, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, errors.New("upstream must be an absolute URL")
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Header.Del(headerUserID)
			pr.Out.Header.Del(headerUserRole)
			pr.Out.Header.Del(headerRoute)

			if id, ok := middleware.IdentityFromContext(pr.In.Context()); ok {
				pr.Out.Header.Set(headerUserID, id.ID)
				pr.Out.Header.Set(headerUserRole, id.Role.String())
			}
			if d, ok := middleware.DecisionFromContext(pr.In.Context()); ok && d.Pattern != "" {
				pr.Out.Header.Set(headerRoute, d.Pattern)
			}
		},
	}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type userView struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	UserType string `json:"userType"`
}

type tokenView struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	User             userView  `json:"user"`
}

func viewOf(id edgeauth.Identity) userView {
	return userView{ID: id.ID, Email: id.Email, Name: id.Name, UserType: id.UserType}
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}

	ctx := edgeauth.WithClientIP(r.Context(), clientIP(r))
	res, err := s.engine.Login(ctx, req.Email, req.Password)
	if err != nil {
		s.writeAuthError(w, "login", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    res.SessionID,
		Path:     "/",
		Expires:  res.SessionExpiresAt,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, tokensOf(res))
}

func (s *server) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := s.engine.Refresh(edgeauth.WithClientIP(r.Context(), clientIP(r)), req.RefreshToken)
	if err != nil {
		s.writeAuthError(w, "refresh", err)
		return
	}
	writeJSON(w, http.StatusOK, tokensOf(res))
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	if err := s.engine.Logout(r.Context(), id); err != nil {
		s.writeAuthError(w, "logout", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]bool{"loggedOut": true})
}

func (s *server) me(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, viewOf(*id))
}

func (s *server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func tokensOf(res *edgeauth.LoginResult) tokenView {
	return tokenView{
		AccessToken:      res.AccessToken,
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshToken:     res.RefreshToken,
		RefreshExpiresAt: res.RefreshExpiresAt,
		User:             viewOf(res.Identity),
	}
}

func (s *server) writeAuthError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, edgeauth.ErrInvalidCredentials):
		middleware.WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	case errors.Is(err, edgeauth.ErrLoginRateLimited), errors.Is(err, edgeauth.ErrRefreshRateLimited):
		middleware.WriteError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many attempts, try again later")
	case errors.Is(err, edgeauth.ErrRefreshInvalid), errors.Is(err, edgeauth.ErrUnauthenticated):
		middleware.WriteError(w, http.StatusUnauthorized, middleware.CodeUnauthorized, "Authentication required")
	case errors.Is(err, edgeauth.ErrBackendUnavailable), errors.Is(err, edgeauth.ErrSessionCreationFailed):
		s.logger.Error("auth backend failure", "op", op, "error", err)
		middleware.WriteError(w, http.StatusServiceUnavailable, middleware.CodeServiceUnavailable, "Service temporarily unavailable")
	default:
		s.logger.Error("auth request failed", "op", op, "error", err)
		middleware.WriteError(w, http.StatusInternalServerError, middleware.CodeInternal, "Internal error")
	}
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Not found")
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Malformed request body")
		return false
	}
	return true
}

type successBody struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(successBody{Success: true, Data: data})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
