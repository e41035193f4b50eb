package access

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrEthical07/edgeauth/permission"
)

// Observer is notified of every decision made by [Enforcer.Authorize].
type Observer interface {
	ObserveDecision(ctx context.Context, subject Context, method, path string, d Decision)
}

// Option customises an [Enforcer].
type Option func(*Enforcer)

// WithDenyUnlisted makes routes without a binding fail with PERMISSION_DENIED instead
// of being allowed and flagged.
func WithDenyUnlisted(deny bool) Option {
	return func(e *Enforcer) { e.denyUnlisted = deny }
}

// WithObserver registers o for decision notifications.
func WithObserver(o Observer) Option {
	return func(e *Enforcer) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(e *Enforcer) {
		if l != nil {
			e.logger = l
		}
	}
}

// Enforcer makes route and requirement decisions. It is immutable after
// construction and safe for concurrent use.
type Enforcer struct {
	model        *permission.Model
	denyUnlisted bool
	observers    []Observer
	logger       *slog.Logger
}

// NewEnforcer creates an [Enforcer] over model.
func NewEnforcer(model *permission.Model, opts ...Option) (*Enforcer, error) {
	if model == nil {
		return nil, errors.New("permission model is required")
	}
	e := &Enforcer{
		model:  model,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Model returns the model the enforcer evaluates against.
func (e *Enforcer) Model() *permission.Model {
	return e.model
}

// Authorize decides whether subject may call method on path.
func (e *Enforcer) Authorize(ctx context.Context, subject Context, method, path string) Decision {
	d := e.authorize(subject, method, path)
	for _, o := range e.observers {
		o.ObserveDecision(ctx, subject, method, path, d)
	}
	if !d.Allowed {
		e.logger.DebugContext(ctx, "access denied",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("pattern", d.Pattern),
			slog.String("role", subject.Role.String()),
			slog.String("code", string(d.Code)),
		)
	}
	return d
}

func (e *Enforcer) authorize(subject Context, method, path string) Decision {
	binding, listed := e.model.Lookup(method, path)
	if listed && binding.Public {
		return allow(binding.Pattern)
	}

	if !subject.Authenticated() {
		return deny(CodeUnauthorized, http.StatusUnauthorized, msgUnauthorized, binding.Pattern)
	}

	if portal, portalRole, ok := e.model.Portal(path); ok && !e.model.PortalAllows(portalRole, subject.Role) {
		return deny(CodePortalDenied, http.StatusForbidden,
			"This area is only available to "+strings.ToLower(portal)+" accounts", binding.Pattern)
	}

	if !listed {
		if e.denyUnlisted {
			d := deny(CodePermissionDenied, http.StatusForbidden, msgUnlisted, "")
			d.Unlisted = true
			return d
		}
		d := allow("")
		d.Unlisted = true
		return d
	}

	d := e.evaluate(subject, binding.Requirement)
	d.Pattern = binding.Pattern
	return d
}

// Evaluate checks a requirement directly, for handlers that decide after loading a
// resource. Route bindings, portals and the unlisted policy are not consulted.
func (e *Enforcer) Evaluate(ctx context.Context, subject Context, req permission.Requirement) Decision {
	if !subject.Authenticated() {
		return deny(CodeUnauthorized, http.StatusUnauthorized, msgUnauthorized, "")
	}
	d := e.evaluate(subject, req)
	if !d.Allowed {
		e.logger.DebugContext(ctx, "requirement denied",
			slog.String("role", subject.Role.String()),
			slog.String("code", string(d.Code)),
		)
	}
	return d
}

func (e *Enforcer) evaluate(subject Context, req permission.Requirement) Decision {
	if len(req.Permissions) > 0 {
		satisfied, ownershipDenied := e.permitted(subject, req)
		if !satisfied {
			if ownershipDenied {
				return deny(CodeForbidden, http.StatusForbidden, msgOwnership, "")
			}
			return deny(CodePermissionDenied, http.StatusForbidden, msgPermissionDenied, "")
		}
	}

	if req.Condition != "" && !subject.IsOwner() && !subject.Flag(req.Condition) {
		return deny(CodeForbidden, http.StatusForbidden, e.model.ConditionMessage(req.Condition), "")
	}

	return allow("")
}

// permitted combines the requirement's permissions. ownershipDenied reports that the
// caller would have been allowed had they owned the resource.
func (e *Enforcer) permitted(subject Context, req permission.Requirement) (satisfied, ownershipDenied bool) {
	anyHeld := false
	allHeld := true
	for _, p := range req.Permissions {
		ok, wouldAsOwner := e.holds(subject, p, req.Ownership)
		if ok {
			anyHeld = true
		} else {
			allHeld = false
			ownershipDenied = ownershipDenied || wouldAsOwner
		}
	}

	if req.Match == permission.AllOf {
		return allHeld, ownershipDenied
	}
	return anyHeld, ownershipDenied
}

func (e *Enforcer) holds(subject Context, p permission.Permission, ownership bool) (ok, wouldAsOwner bool) {
	owner := subject.IsOwner()

	if ownership && p.Scope() == permission.ScopeOwn {
		has := e.model.Has(subject.Role, p)
		return has && owner, has && !owner
	}

	if e.model.Has(subject.Role, p) {
		return true, false
	}

	if ownership {
		if own, ok := p.OwnVariant(); ok && e.model.Has(subject.Role, own) {
			return owner, !owner
		}
	}
	return false, false
}
