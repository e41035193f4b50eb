package access

import (
	"net/http"

	"github.com/MrEthical07/edgeauth/permission"
)

// Code is the machine-readable reason carried by a denied [Decision].
type Code string

const (
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodePermissionDenied   Code = "PERMISSION_DENIED"
	CodePortalDenied       Code = "PORTAL_ACCESS_DENIED"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
)

const (
	msgUnauthorized     = "Authentication required"
	msgPermissionDenied = "Insufficient permissions"
	msgOwnership        = "You do not have access to this resource"
	msgUnlisted         = "This route is not available"
)

// Context is the authorization view of a caller and, optionally, the resource it
// targets. ResourceOwnerID and Metadata are supplied by the handler that loaded the
// resource.
type Context struct {
	UserID          string
	Role            permission.Role
	ResourceOwnerID string
	Metadata        map[string]any
}

// Authenticated reports whether the context carries a caller.
func (c Context) Authenticated() bool {
	return c.UserID != ""
}

// IsOwner reports whether the caller owns the target resource.
func (c Context) IsOwner() bool {
	return c.UserID != "" && c.ResourceOwnerID != "" && c.UserID == c.ResourceOwnerID
}

// Flag reads a boolean condition flag. Missing or non-bool values are false.
func (c Context) Flag(name string) bool {
	v, ok := c.Metadata[name].(bool)
	return ok && v
}

// Decision is the outcome of an authorization check.
//
// Pattern is the matched route pattern, if any. Unlisted is set when no binding
// matched the route; such decisions are allowed unless the enforcer denies unlisted
// routes.
type Decision struct {
	Allowed  bool
	Code     Code
	Message  string
	Status   int
	Pattern  string
	Unlisted bool
}

func allow(pattern string) Decision {
	return Decision{Allowed: true, Status: http.StatusOK, Pattern: pattern}
}

func deny(code Code, status int, message, pattern string) Decision {
	return Decision{Code: code, Status: status, Message: message, Pattern: pattern}
}
