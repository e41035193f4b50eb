package permission

import (
	"net/http"
	"testing"
)

func TestParseRoleIsCaseInsensitiveAndDefaultsToUnknown(t *testing.T) {
	tests := []struct {
		in   string
		want Role
	}{
		{"creator", RoleCreator},
		{"Creator", RoleCreator},
		{" INVESTOR ", RoleInvestor},
		{"production", RoleProduction},
		{"Admin", RoleAdmin},
		{"", RoleUnknown},
		{"superuser", RoleUnknown},
		{"administrator", RoleUnknown},
	}

	for _, tc := range tests {
		if got := ParseRole(tc.in); got != tc.want {
			t.Fatalf("ParseRole(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestPermissionScopeAndOwnVariant(t *testing.T) {
	if PitchEditOwn.Scope() != ScopeOwn {
		t.Fatalf("expected _OWN scope")
	}
	if PitchEditAny.Scope() != ScopeAny {
		t.Fatalf("expected _ANY scope")
	}
	if NDAApprove.Scope() != ScopeNone {
		t.Fatalf("expected no scope")
	}

	own, ok := PitchEditAny.OwnVariant()
	if !ok || own != PitchEditOwn {
		t.Fatalf("expected %s, got %s (%v)", PitchEditOwn, own, ok)
	}
	if _, ok := PitchEditOwn.OwnVariant(); ok {
		t.Fatalf("_OWN permission must not have an own variant")
	}
}

func TestRegistryRejectsDuplicatesAndFrozenRegistration(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register(PitchCreate); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if _, err := r.Register(PitchCreate); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	r.Freeze()
	if _, err := r.Register(PitchSave); err == nil {
		t.Fatalf("expected frozen registry error")
	}
}

func TestRegistryLimitIs64(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 64; i++ {
		if _, err := r.Register(Permission("P_" + string(rune('A'+i%26)) + string(rune('a'+i/26)))); err != nil {
			t.Fatalf("register %d failed: %v", i, err)
		}
	}
	if _, err := r.Register("ONE_TOO_MANY"); err == nil {
		t.Fatalf("expected permission limit error")
	}
}

func TestRoleManagerRejectsUnknownPermission(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register(PitchCreate); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	rm := NewRoleManager(r)
	if err := rm.RegisterRole(RoleCreator, []Permission{PitchSave}); err == nil {
		t.Fatalf("expected unregistered permission error")
	}
}

func TestDefaultModelCompiles(t *testing.T) {
	m := DefaultModel()
	if len(m.Routes()) != len(DefaultRoutes) {
		t.Fatalf("expected %d routes, got %d", len(DefaultRoutes), len(m.Routes()))
	}
	if got := m.Permissions(RoleUnknown); len(got) != 0 {
		t.Fatalf("unknown role must hold nothing, got %v", got)
	}
	if got := m.Permissions(RoleAdmin); len(got) != len(Catalogue) {
		t.Fatalf("admin should hold the whole catalogue, got %d", len(got))
	}
}

func TestModelHasAdminSatisfiesAnyScope(t *testing.T) {
	cfg := DefaultModelConfig()
	cfg.Roles = map[Role][]Permission{RoleAdmin: {AdminDashboard}}
	m, err := NewModel(cfg)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}

	if !m.Has(RoleAdmin, PitchEditAny) {
		t.Fatalf("admin must satisfy _ANY permissions implicitly")
	}
	if m.Has(RoleAdmin, PitchEditOwn) {
		t.Fatalf("admin _ANY rule must not extend to _OWN permissions")
	}
	if m.Has(RoleAdmin, NDARequest) {
		t.Fatalf("admin _ANY rule must not extend to unscoped permissions")
	}
}

func TestModelAdminDoesNotHoldUnregisteredPermissions(t *testing.T) {
	m := DefaultModel()
	unknown := Permission("REPORT_EXPORT_ANY")
	if m.Known(unknown) {
		t.Fatalf("%s must not be registered", unknown)
	}
	if m.Has(RoleAdmin, unknown) {
		t.Fatalf("admin must not hold an unregistered permission")
	}
}

func TestModelCreatorHoldsOwnNotAny(t *testing.T) {
	m := DefaultModel()
	if !m.Has(RoleCreator, PitchEditOwn) {
		t.Fatalf("creator should hold PITCH_EDIT_OWN")
	}
	if m.Has(RoleCreator, PitchEditAny) {
		t.Fatalf("creator must not hold PITCH_EDIT_ANY")
	}
}

func TestNewModelRejectsUnregisteredRoutePermission(t *testing.T) {
	cfg := DefaultModelConfig()
	cfg.Routes = []Binding{{Pattern: "/api/x", Requirement: req("NOT_A_PERMISSION")}}
	if _, err := NewModel(cfg); err == nil {
		t.Fatalf("expected error for unregistered route permission")
	}
}

func TestNewModelRejectsConditionWithoutMessage(t *testing.T) {
	cfg := DefaultModelConfig()
	cfg.Routes = []Binding{{Pattern: "/api/x", Requirement: Requirement{Condition: "hasSomething"}}}
	if _, err := NewModel(cfg); err == nil {
		t.Fatalf("expected error for condition without message")
	}
}

func TestNewModelRejectsPublicRouteInsidePortal(t *testing.T) {
	cfg := DefaultModelConfig()
	cfg.Routes = append(cfg.Routes, Binding{Method: http.MethodGet, Pattern: "/api/Investor/open", Public: true})
	if _, err := NewModel(cfg); err == nil {
		t.Fatalf("expected error for a public route under a portal prefix")
	}
}

func TestRouteLookupExactBeforePattern(t *testing.T) {
	m := DefaultModel()

	b, ok := m.Lookup(http.MethodGet, "/api/pitches/public")
	if !ok || !b.Public {
		t.Fatalf("expected the exact public binding, got %+v (%v)", b, ok)
	}

	b, ok = m.Lookup(http.MethodGet, "/api/pitches/42")
	if !ok || b.Pattern != "/api/pitches/:id" {
		t.Fatalf("expected pattern binding, got %+v (%v)", b, ok)
	}

	b, ok = m.Lookup(http.MethodPut, "/api/pitches/42/")
	if !ok || !b.Ownership || b.Permissions[0] != PitchEditAny {
		t.Fatalf("expected ownership-aware edit binding, got %+v (%v)", b, ok)
	}

	if _, ok := m.Lookup(http.MethodPatch, "/api/pitches/42"); ok {
		t.Fatalf("method mismatch must not match")
	}
	if _, ok := m.Lookup(http.MethodGet, "/api/unknown/thing"); ok {
		t.Fatalf("unlisted route must not match")
	}
}

func TestRouteLookupIgnoresCaseAndUncleanPaths(t *testing.T) {
	m := DefaultModel()
	want, ok := m.Lookup(http.MethodGet, "/api/admin/users")
	if !ok {
		t.Fatalf("expected /api/admin/users to be listed")
	}

	for _, p := range []string{
		"/api/Admin/users",
		"/API/admin/USERS",
		"/api//admin/users",
		"/api/./admin/users",
		"/api/pitches/../admin/users",
	} {
		got, ok := m.Lookup(http.MethodGet, p)
		if !ok || got.Pattern != want.Pattern {
			t.Fatalf("Lookup(%q) = %+v (%v), want %q", p, got, ok, want.Pattern)
		}
	}

	if _, role, ok := m.Portal("/API/Investor/dashboard"); !ok || role != RoleInvestor {
		t.Fatalf("expected investor portal for upper-case path, got %s (%v)", role, ok)
	}
}

func TestRouteLookupPrefersFewerWildcards(t *testing.T) {
	table := NewRouteTable()
	if err := table.Add(Binding{Pattern: "/api/:kind/:id", Requirement: req(PitchSave)}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := table.Add(Binding{Pattern: "/api/pitches/:id", Requirement: req(PitchViewPublic)}); err != nil {
		t.Fatalf("add: %v", err)
	}

	b, ok := table.Lookup(http.MethodGet, "/api/pitches/7?x=1")
	if !ok || b.Pattern != "/api/pitches/:id" {
		t.Fatalf("expected most specific pattern, got %+v", b)
	}
}

func TestRouteTableRejectsDuplicates(t *testing.T) {
	table := NewRouteTable()
	if err := table.Add(Binding{Method: "get", Pattern: "/api/a/:id"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := table.Add(Binding{Method: "GET", Pattern: "/api/a/:id/"}); err == nil {
		t.Fatalf("expected duplicate route error")
	}
	if err := table.Add(Binding{Pattern: "api/no-slash"}); err == nil {
		t.Fatalf("expected invalid pattern error")
	}
}

func TestPortalMatch(t *testing.T) {
	portals, err := NewPortals(DefaultPortals)
	if err != nil {
		t.Fatalf("portals: %v", err)
	}

	tests := []struct {
		path   string
		portal string
		role   Role
		ok     bool
	}{
		{"/api/investor/dashboard", "investor", RoleInvestor, true},
		{"/api/creator", "creator", RoleCreator, true},
		{"/api/production/projects/1", "production", RoleProduction, true},
		{"/api/investors/dashboard", "", RoleUnknown, false},
		{"/api/pitches/1", "", RoleUnknown, false},
		{"/investor/dashboard", "", RoleUnknown, false},
	}
	for _, tc := range tests {
		portal, role, ok := portals.Match(tc.path)
		if portal != tc.portal || role != tc.role || ok != tc.ok {
			t.Fatalf("Match(%q) = (%q, %s, %v), want (%q, %s, %v)", tc.path, portal, role, ok, tc.portal, tc.role, tc.ok)
		}
	}

	if !portals.Allows(RoleInvestor, RoleAdmin) {
		t.Fatalf("admin must be allowed in every portal")
	}
	if portals.Allows(RoleInvestor, RoleCreator) {
		t.Fatalf("creator must not be allowed in the investor portal")
	}
}

func TestNewPortalsRejectsAdminAndUnknown(t *testing.T) {
	if _, err := NewPortals([]string{"admin"}); err == nil {
		t.Fatalf("admin is not a portal")
	}
	if _, err := NewPortals([]string{"guests"}); err == nil {
		t.Fatalf("unknown portal name must be rejected")
	}
}
