package authz

import "testing"

func TestResolveInactiveActorIsEmpty(t *testing.T) {
	r := NewResolver(nil)
	for _, role := range []Role{RoleAdmin, RoleAssistant, RoleSponsor, RoleVisitor} {
		actor := &Actor{ID: "u1", Role: role, Active: false, Overrides: map[string]bool{
			PermChildrenView: true,
		}}
		if set := r.Resolve(actor); len(set) != 0 {
			t.Fatalf("inactive %s actor resolved to %v, want empty", role, set.Keys())
		}
	}
	if set := r.Resolve(nil); len(set) != 0 {
		t.Fatalf("nil actor resolved to %v, want empty", set.Keys())
	}
}

func TestResolveAdminGetsUniversalSet(t *testing.T) {
	r := NewResolver(nil)
	actor := &Actor{ID: "a1", Role: RoleAdmin, Active: true, Overrides: map[string]bool{
		PermSponsorshipsManage: false, // overrides must not dent the admin set
	}}
	set := r.Resolve(actor)
	if len(set) != len(Catalog) {
		t.Fatalf("admin resolved to %d permissions, want %d", len(set), len(Catalog))
	}
	if !set.Has(PermSponsorshipsManage) {
		t.Fatal("admin lost a permission to an override")
	}
}

func TestResolveRoleGrants(t *testing.T) {
	r := NewResolver(nil)
	sponsor := &Actor{ID: "s1", Role: RoleSponsor, Active: true}
	set := r.Resolve(sponsor)
	for _, p := range DefaultRoleGrants[RoleSponsor] {
		if !set.Has(p) {
			t.Fatalf("sponsor missing default grant %s", p)
		}
	}
	if set.Has(PermSettingsManage) {
		t.Fatal("sponsor unexpectedly holds settings.manage")
	}
}

func TestOverridesDominateRoleGrants(t *testing.T) {
	r := NewResolver(nil)

	revoked := &Actor{ID: "s1", Role: RoleSponsor, Active: true, Overrides: map[string]bool{
		PermChildrenView: false,
	}}
	if r.Resolve(revoked).Has(PermChildrenView) {
		t.Fatal("override false did not revoke role grant")
	}

	granted := &Actor{ID: "v1", Role: RoleVisitor, Active: true, Overrides: map[string]bool{
		PermDonationsManage: true,
	}}
	if !r.Resolve(granted).Has(PermDonationsManage) {
		t.Fatal("override true did not grant beyond role")
	}
}

func TestResolveIgnoresUnknownOverrideKeys(t *testing.T) {
	r := NewResolver(nil)
	actor := &Actor{ID: "s1", Role: RoleSponsor, Active: true, Overrides: map[string]bool{
		"donations.embezzle": true,
	}}
	if r.Resolve(actor).Has("donations.embezzle") {
		t.Fatal("unknown override key leaked into permission set")
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	r := NewResolver(map[Role][]string{RoleSponsor: {PermMessagesSend}})
	actor := &Actor{ID: "s1", Role: RoleSponsor, Active: true}
	first := r.Resolve(actor).Keys()
	second := r.Resolve(actor).Keys()
	if len(first) != len(second) {
		t.Fatalf("resolve not deterministic: %v vs %v", first, second)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("resolve not deterministic: %v vs %v", first, second)
		}
	}
}
