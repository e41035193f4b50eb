package edgeauth

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrEthical07/edgeauth/access"
	internalaudit "github.com/MrEthical07/edgeauth/internal/audit"
	"github.com/MrEthical07/edgeauth/internal/rate"
	"github.com/MrEthical07/edgeauth/jwt"
	"github.com/MrEthical07/edgeauth/password"
	"github.com/MrEthical07/edgeauth/permission"
	"github.com/MrEthical07/edgeauth/session"
)

// Engine resolves request identities, enforces route access and runs the login
// lifecycle. It is immutable after [Builder.Build] and safe for concurrent use.
type Engine struct {
	config       Config
	logger       *slog.Logger
	now          func() time.Time
	model        *permission.Model
	enforcer     *access.Enforcer
	codec        *jwt.Codec
	sessions     *session.Store
	revocations  *session.Revocations
	rateLimiter  *rate.Limiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	userProvider UserProvider
}

// Close flushes and stops the audit dispatcher. It does not close the Redis client
// or the repository, which the caller owns.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot returns empty maps when metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Model returns the permission model the engine enforces.
func (e *Engine) Model() *permission.Model {
	return e.model
}

// Enforcer returns the engine's access enforcer.
func (e *Engine) Enforcer() *access.Enforcer {
	return e.enforcer
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return cloneConfig(e.config)
}

// AccessContext builds the authorization view of id. ownerID and metadata describe
// the target resource and may be empty.
func (e *Engine) AccessContext(id *Identity, ownerID string, metadata map[string]any) access.Context {
	if id == nil {
		return access.Context{ResourceOwnerID: ownerID, Metadata: metadata}
	}
	return access.Context{
		UserID:          id.ID,
		Role:            id.Role,
		ResourceOwnerID: ownerID,
		Metadata:        metadata,
	}
}

// Authorize decides whether subject may call method on path.
func (e *Engine) Authorize(ctx context.Context, subject access.Context, method, path string) access.Decision {
	return e.enforcer.Authorize(ctx, subject, method, path)
}

// Evaluate checks a single requirement for in-handler decisions.
func (e *Engine) Evaluate(ctx context.Context, subject access.Context, req permission.Requirement) access.Decision {
	return e.enforcer.Evaluate(ctx, subject, req)
}

// decisionObserver counts and audits route decisions.
type decisionObserver struct {
	engine *Engine
}

func (o decisionObserver) ObserveDecision(ctx context.Context, subject access.Context, method, path string, d access.Decision) {
	e := o.engine

	if d.Unlisted {
		e.metricInc(MetricUnlistedRoute)
		e.emitAudit(ctx, auditEventUnlistedRoute, d.Allowed, subject.UserID, "", nil, func() map[string]string {
			return map[string]string{
				"method": method,
				"path":   path,
			}
		})
	}

	if d.Allowed {
		e.metricInc(MetricAccessAllowed)
		return
	}

	e.metricInc(MetricAccessDenied)
	if d.Unlisted {
		return
	}
	e.emitAudit(ctx, auditEventAccessDenied, false, subject.UserID, "", nil, func() map[string]string {
		return map[string]string{
			"method":  method,
			"path":    path,
			"pattern": d.Pattern,
			"code":    string(d.Code),
			"role":    subject.Role.String(),
		}
	})
}
