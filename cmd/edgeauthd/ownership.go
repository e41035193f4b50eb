package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/MrEthical07/edgeauth"
	"github.com/MrEthical07/edgeauth/middleware"
	"github.com/MrEthical07/edgeauth/permission"
)

const (
	defaultOwnershipTimeout = 2 * time.Second
	maxOwnershipBody        = 16 << 10
)

var (
	errResourceNotFound = &middleware.Error{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "Not found"}
	errOwnershipDown    = &middleware.Error{Status: http.StatusServiceUnavailable, Code: middleware.CodeServiceUnavailable, Message: "Service temporarily unavailable"}
)

// ownershipAnswer is the body returned by the upstream ownership endpoint.
type ownershipAnswer struct {
	OwnerID  string         `json:"ownerId"`
	Metadata map[string]any `json:"metadata"`
}

// ownershipResolver supplies resource owners and condition flags to the Authorize
// middleware. Routes under /api/users/:id are owned by :id. Other ownership-aware
// or conditional routes are looked up on the configured endpoint; without one they
// carry no owner.
type ownershipResolver struct {
	model    *permission.Model
	endpoint *url.URL
	client   *http.Client
	logger   *slog.Logger
}

func newOwnershipResolver(model *permission.Model, endpoint string, timeout time.Duration, logger *slog.Logger) (*ownershipResolver, error) {
	o := &ownershipResolver{model: model, logger: logger}
	if endpoint == "" {
		return o, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("ownership endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("ownership endpoint must be an absolute URL")
	}
	if timeout <= 0 {
		timeout = defaultOwnershipTimeout
	}
	o.endpoint = u
	o.client = &http.Client{Timeout: timeout}
	return o, nil
}

func (o *ownershipResolver) load(r *http.Request, id *edgeauth.Identity) (string, map[string]any, error) {
	if id == nil {
		return "", nil, nil
	}
	b, ok := o.model.Lookup(r.Method, r.URL.Path)
	if !ok || b.Public || (!b.Ownership && b.Condition == "") {
		return "", nil, nil
	}

	owner := userOwner(b.Pattern, r.URL.Path)
	if (owner != "" && b.Condition == "") || o.endpoint == nil {
		return owner, nil, nil
	}
	return o.fetch(r.Context(), id, r.Method, b.Pattern, r.URL.Path)
}

func (o *ownershipResolver) fetch(ctx context.Context, id *edgeauth.Identity, method, route, resourcePath string) (string, map[string]any, error) {
	u := *o.endpoint
	q := u.Query()
	q.Set("method", method)
	q.Set("route", route)
	q.Set("path", resourcePath)
	q.Set("user", id.ID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		o.logger.ErrorContext(ctx, "ownership lookup failed", slog.String("route", route), slog.Any("error", err))
		return "", nil, errOwnershipDown
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil, errResourceNotFound
	case resp.StatusCode != http.StatusOK:
		o.logger.ErrorContext(ctx, "ownership lookup failed", slog.String("route", route), slog.Int("status", resp.StatusCode))
		return "", nil, errOwnershipDown
	}

	var answer ownershipAnswer
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxOwnershipBody)).Decode(&answer); err != nil {
		o.logger.ErrorContext(ctx, "ownership answer malformed", slog.String("route", route), slog.Any("error", err))
		return "", nil, errOwnershipDown
	}
	return answer.OwnerID, answer.Metadata, nil
}

// userOwner returns the value bound to the parameter that follows a "users" segment
// in pattern, keeping the request's original case.
func userOwner(pattern, requestPath string) string {
	patternSegs := strings.Split(strings.Trim(pattern, "/"), "/")
	pathSegs := strings.Split(strings.Trim(path.Clean("/"+requestPath), "/"), "/")
	if len(patternSegs) != len(pathSegs) {
		return ""
	}
	for i := 1; i < len(patternSegs); i++ {
		if patternSegs[i-1] == "users" && strings.HasPrefix(patternSegs[i], ":") {
			return pathSegs[i]
		}
	}
	return ""
}
