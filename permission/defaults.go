package permission

import "net/http"

// DefaultPortals are the role-scoped API namespaces of the marketplace.
var DefaultPortals = []string{"creator", "investor", "production"}

var creatorPermissions = []Permission{
	PitchCreate,
	PitchViewPublic,
	PitchEditOwn,
	PitchDeleteOwn,
	PitchPublishOwn,
	NDAApprove,
	NDAReject,
	NDAViewOwn,
	DocumentUpload,
	DocumentViewPublic,
	DocumentViewPrivate,
	DocumentDeleteOwn,
	MessageSend,
	MessageViewOwn,
	AnalyticsViewOwn,
	ProfileEditOwn,
}

var investorPermissions = []Permission{
	PitchViewPublic,
	PitchViewPrivate,
	PitchSave,
	NDARequest,
	NDAViewOwn,
	DocumentViewPublic,
	DocumentViewPrivate,
	MessageSend,
	MessageViewOwn,
	InvestmentCreate,
	InvestmentViewOwn,
	AnalyticsViewOwn,
	ProfileEditOwn,
}

var productionPermissions = []Permission{
	PitchCreate,
	PitchViewPublic,
	PitchViewPrivate,
	PitchEditOwn,
	PitchDeleteOwn,
	PitchPublishOwn,
	PitchSave,
	NDARequest,
	NDAApprove,
	NDAReject,
	NDAViewOwn,
	DocumentUpload,
	DocumentViewPublic,
	DocumentViewPrivate,
	DocumentDeleteOwn,
	MessageSend,
	MessageViewOwn,
	AnalyticsViewOwn,
	ProductionProjectCreate,
	ProductionProjectEditOwn,
	ProfileEditOwn,
}

// DefaultRoutes is the compiled route table. Every guarded route of the API is listed
// here; anything absent is unlisted and reported as such by the enforcer.
var DefaultRoutes = []Binding{
	{Method: http.MethodPost, Pattern: "/api/auth/login", Public: true},
	{Method: http.MethodPost, Pattern: "/api/auth/register", Public: true},
	{Method: http.MethodPost, Pattern: "/api/auth/refresh", Public: true},
	{Method: http.MethodPost, Pattern: "/api/auth/logout"},
	{Method: http.MethodGet, Pattern: "/api/auth/me"},
	{Method: http.MethodGet, Pattern: "/api/health", Public: true},
	{Method: http.MethodGet, Pattern: "/api/pitches/public", Public: true},

	{Method: http.MethodPost, Pattern: "/api/pitches", Requirement: req(PitchCreate)},
	{Method: http.MethodGet, Pattern: "/api/pitches/:id", Requirement: req(PitchViewPublic)},
	{Method: http.MethodPut, Pattern: "/api/pitches/:id", Requirement: owned(PitchEditAny)},
	{Method: http.MethodDelete, Pattern: "/api/pitches/:id", Requirement: owned(PitchDeleteAny)},
	{Method: http.MethodPost, Pattern: "/api/pitches/:id/publish", Requirement: owned(PitchPublishAny)},
	{Method: http.MethodPost, Pattern: "/api/pitches/:id/save", Requirement: req(PitchSave)},
	{Method: http.MethodGet, Pattern: "/api/pitches/:id/private", Requirement: Requirement{
		Permissions: []Permission{PitchViewPrivate, PitchEditAny},
		Ownership:   true,
		Condition:   ConditionNDA,
	}},

	{Method: http.MethodPost, Pattern: "/api/ndas/request", Requirement: req(NDARequest)},
	{Method: http.MethodPost, Pattern: "/api/ndas/:id/approve", Requirement: req(NDAApprove)},
	{Method: http.MethodPost, Pattern: "/api/ndas/:id/reject", Requirement: req(NDAReject)},
	{Method: http.MethodGet, Pattern: "/api/ndas", Requirement: req(NDAViewOwn, NDAViewAny)},

	{Method: http.MethodPost, Pattern: "/api/documents", Requirement: req(DocumentUpload)},
	{Method: http.MethodGet, Pattern: "/api/documents/:id", Requirement: req(DocumentViewPublic)},
	{Method: http.MethodGet, Pattern: "/api/documents/:id/private", Requirement: Requirement{
		Permissions: []Permission{DocumentViewPrivate},
		Ownership:   true,
		Condition:   ConditionNDA,
	}},
	{Method: http.MethodDelete, Pattern: "/api/documents/:id", Requirement: owned(DocumentDeleteAny)},

	{Method: http.MethodPost, Pattern: "/api/messages", Requirement: req(MessageSend)},
	{Method: http.MethodGet, Pattern: "/api/messages", Requirement: req(MessageViewOwn, MessageViewAny)},

	{Method: http.MethodPost, Pattern: "/api/investments", Requirement: req(InvestmentCreate)},
	{Method: http.MethodGet, Pattern: "/api/investments/:id", Requirement: owned(InvestmentViewAny)},
	{Method: http.MethodGet, Pattern: "/api/analytics/pitches/:id", Requirement: owned(AnalyticsViewAny)},
	{Method: http.MethodPut, Pattern: "/api/users/:id/profile", Requirement: owned(ProfileEditAny)},

	{Method: http.MethodGet, Pattern: "/api/creator/dashboard", Requirement: req(AnalyticsViewOwn)},
	{Method: http.MethodGet, Pattern: "/api/creator/pitches", Requirement: req(PitchCreate)},
	{Method: http.MethodGet, Pattern: "/api/investor/dashboard", Requirement: req(AnalyticsViewOwn)},
	{Method: http.MethodGet, Pattern: "/api/investor/portfolio", Requirement: req(InvestmentViewOwn)},
	{Method: http.MethodGet, Pattern: "/api/production/dashboard", Requirement: req(AnalyticsViewOwn)},
	{Method: http.MethodPost, Pattern: "/api/production/projects", Requirement: req(ProductionProjectCreate)},
	{Method: http.MethodPut, Pattern: "/api/production/projects/:id", Requirement: owned(ProductionProjectEditAny)},

	{Method: http.MethodGet, Pattern: "/api/admin/dashboard", Requirement: req(AdminDashboard)},
	{Method: http.MethodGet, Pattern: "/api/admin/users", Requirement: req(UserViewAny)},
	{Method: http.MethodPost, Pattern: "/api/admin/users/:id/suspend", Requirement: req(UserSuspendAny)},
	{Method: http.MethodDelete, Pattern: "/api/admin/users/:id", Requirement: req(UserDeleteAny)},
	{Method: http.MethodPost, Pattern: "/api/admin/moderation/:id", Requirement: req(AdminModerate)},
	{Method: http.MethodPut, Pattern: "/api/admin/settings", Requirement: req(AdminManageSettings)},
}

// DefaultModelConfig returns the compiled-in model description.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Permissions: Catalogue,
		Roles: map[Role][]Permission{
			RoleCreator:    creatorPermissions,
			RoleInvestor:   investorPermissions,
			RoleProduction: productionPermissions,
			RoleAdmin:      Catalogue,
		},
		Routes:  DefaultRoutes,
		Portals: DefaultPortals,
		Conditions: map[string]string{
			ConditionNDA: "NDA required to access this content",
		},
	}
}

// DefaultModel compiles [DefaultModelConfig]. It panics if the compiled-in tables are
// inconsistent, which is a programming error caught by the package tests.
func DefaultModel() *Model {
	m, err := NewModel(DefaultModelConfig())
	if err != nil {
		panic("permission: invalid default model: " + err.Error())
	}
	return m
}

func req(perms ...Permission) Requirement {
	return Requirement{Permissions: perms}
}

func owned(perms ...Permission) Requirement {
	return Requirement{Permissions: perms, Ownership: true}
}
