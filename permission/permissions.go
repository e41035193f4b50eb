package permission

import "strings"

// Permission is a named capability. By convention a trailing _OWN or _ANY states the
// breadth of the capability: _OWN applies to resources the caller owns, _ANY to all.
type Permission string

// Scope is the breadth qualifier encoded in a permission name.
type Scope uint8

const (
	ScopeNone Scope = iota
	ScopeOwn
	ScopeAny
)

const (
	ownSuffix = "_OWN"
	anySuffix = "_ANY"
)

const (
	PitchCreate      Permission = "PITCH_CREATE"
	PitchViewPublic  Permission = "PITCH_VIEW_PUBLIC"
	PitchViewPrivate Permission = "PITCH_VIEW_PRIVATE"
	PitchEditOwn     Permission = "PITCH_EDIT_OWN"
	PitchEditAny     Permission = "PITCH_EDIT_ANY"
	PitchDeleteOwn   Permission = "PITCH_DELETE_OWN"
	PitchDeleteAny   Permission = "PITCH_DELETE_ANY"
	PitchPublishOwn  Permission = "PITCH_PUBLISH_OWN"
	PitchPublishAny  Permission = "PITCH_PUBLISH_ANY"
	PitchSave        Permission = "PITCH_SAVE"

	NDARequest Permission = "NDA_REQUEST"
	NDAApprove Permission = "NDA_APPROVE"
	NDAReject  Permission = "NDA_REJECT"
	NDAViewOwn Permission = "NDA_VIEW_OWN"
	NDAViewAny Permission = "NDA_VIEW_ANY"

	DocumentUpload      Permission = "DOCUMENT_UPLOAD"
	DocumentViewPublic  Permission = "DOCUMENT_VIEW_PUBLIC"
	DocumentViewPrivate Permission = "DOCUMENT_VIEW_PRIVATE"
	DocumentDeleteOwn   Permission = "DOCUMENT_DELETE_OWN"
	DocumentDeleteAny   Permission = "DOCUMENT_DELETE_ANY"

	MessageSend    Permission = "MESSAGE_SEND"
	MessageViewOwn Permission = "MESSAGE_VIEW_OWN"
	MessageViewAny Permission = "MESSAGE_VIEW_ANY"

	InvestmentCreate  Permission = "INVESTMENT_CREATE"
	InvestmentViewOwn Permission = "INVESTMENT_VIEW_OWN"
	InvestmentViewAny Permission = "INVESTMENT_VIEW_ANY"

	AnalyticsViewOwn Permission = "ANALYTICS_VIEW_OWN"
	AnalyticsViewAny Permission = "ANALYTICS_VIEW_ANY"

	ProductionProjectCreate  Permission = "PRODUCTION_PROJECT_CREATE"
	ProductionProjectEditOwn Permission = "PRODUCTION_PROJECT_EDIT_OWN"
	ProductionProjectEditAny Permission = "PRODUCTION_PROJECT_EDIT_ANY"

	ProfileEditOwn Permission = "PROFILE_EDIT_OWN"
	ProfileEditAny Permission = "PROFILE_EDIT_ANY"

	UserViewAny    Permission = "USER_VIEW_ANY"
	UserSuspendAny Permission = "USER_SUSPEND_ANY"
	UserDeleteAny  Permission = "USER_DELETE_ANY"

	AdminDashboard      Permission = "ADMIN_DASHBOARD"
	AdminModerate       Permission = "ADMIN_MODERATE_CONTENT"
	AdminManageSettings Permission = "ADMIN_MANAGE_SETTINGS"
)

// Catalogue lists every permission known to the deployment, in registration order.
// Bit positions follow this order, so entries are only ever appended.
var Catalogue = []Permission{
	PitchCreate,
	PitchViewPublic,
	PitchViewPrivate,
	PitchEditOwn,
	PitchEditAny,
	PitchDeleteOwn,
	PitchDeleteAny,
	PitchPublishOwn,
	PitchPublishAny,
	PitchSave,
	NDARequest,
	NDAApprove,
	NDAReject,
	NDAViewOwn,
	NDAViewAny,
	DocumentUpload,
	DocumentViewPublic,
	DocumentViewPrivate,
	DocumentDeleteOwn,
	DocumentDeleteAny,
	MessageSend,
	MessageViewOwn,
	MessageViewAny,
	InvestmentCreate,
	InvestmentViewOwn,
	InvestmentViewAny,
	AnalyticsViewOwn,
	AnalyticsViewAny,
	ProductionProjectCreate,
	ProductionProjectEditOwn,
	ProductionProjectEditAny,
	ProfileEditOwn,
	ProfileEditAny,
	UserViewAny,
	UserSuspendAny,
	UserDeleteAny,
	AdminDashboard,
	AdminModerate,
	AdminManageSettings,
}

// Scope returns the breadth qualifier encoded in the permission name.
func (p Permission) Scope() Scope {
	switch {
	case strings.HasSuffix(string(p), ownSuffix):
		return ScopeOwn
	case strings.HasSuffix(string(p), anySuffix):
		return ScopeAny
	default:
		return ScopeNone
	}
}

// OwnVariant returns the _OWN counterpart of an _ANY permission. ok is false when p
// carries no _ANY suffix.
func (p Permission) OwnVariant() (Permission, bool) {
	if p.Scope() != ScopeAny {
		return "", false
	}
	return Permission(strings.TrimSuffix(string(p), anySuffix) + ownSuffix), true
}

func (p Permission) String() string {
	return string(p)
}
