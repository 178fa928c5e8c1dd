package authz

// Permission keys, grouped by category. The catalog is closed: override
// writes referencing keys outside this list are rejected.
const (
	PermChildrenView   = "children.view"
	PermChildrenManage = "children.manage"

	PermDonationsView   = "donations.view"
	PermDonationsManage = "donations.manage"

	PermSponsorshipsView   = "sponsorships.view"
	PermSponsorshipsManage = "sponsorships.manage"

	PermMessagesView = "messages.view"
	PermMessagesSend = "messages.send"

	PermMediaManage = "media.manage"

	PermSettingsManage    = "settings.manage"
	PermPermissionsManage = "settings.permissions.manage"
)

// Permission is an immutable catalog entry.
type Permission struct {
	Key         string `json:"key"`
	Category    string `json:"category"`
	Description string `json:"description,omitempty"`
}

// Catalog is the full static permission set.
var Catalog = []Permission{
	{Key: PermChildrenView, Category: "children", Description: "View child profiles"},
	{Key: PermChildrenManage, Category: "children", Description: "Create and edit child profiles"},
	{Key: PermDonationsView, Category: "donations", Description: "View donations"},
	{Key: PermDonationsManage, Category: "donations", Description: "Record and edit donations"},
	{Key: PermSponsorshipsView, Category: "sponsorships", Description: "View sponsorships and requests"},
	{Key: PermSponsorshipsManage, Category: "sponsorships", Description: "Operate the sponsorship lifecycle"},
	{Key: PermMessagesView, Category: "messages", Description: "Read sponsor messages"},
	{Key: PermMessagesSend, Category: "messages", Description: "Send messages"},
	{Key: PermMediaManage, Category: "media", Description: "Upload and manage photos"},
	{Key: PermSettingsManage, Category: "settings", Description: "Edit page visibility and site settings"},
	{Key: PermPermissionsManage, Category: "settings", Description: "Manage role permissions and overrides"},
}

var catalogKeys = func() map[string]struct{} {
	m := make(map[string]struct{}, len(Catalog))
	for _, p := range Catalog {
		m[p.Key] = struct{}{}
	}
	return m
}()

// KnownPermission reports whether the key exists in the catalog.
func KnownPermission(key string) bool {
	_, ok := catalogKeys[key]
	return ok
}

// UniversalSet returns every catalog permission. Admins resolve to this.
func UniversalSet() PermissionSet {
	set := make(PermissionSet, len(Catalog))
	for _, p := range Catalog {
		set[p.Key] = struct{}{}
	}
	return set
}

// DefaultRoleGrants is the compiled-in role-permission map. Runtime grants
// layer on top of these through the Service; seeds mirror this list.
var DefaultRoleGrants = map[Role][]string{
	RoleAssistant: {
		PermChildrenView, PermChildrenManage,
		PermDonationsView, PermDonationsManage,
		PermSponsorshipsView,
		PermMessagesView, PermMessagesSend,
		PermMediaManage,
	},
	RoleSponsor: {
		PermChildrenView,
		PermDonationsView,
		PermSponsorshipsView,
		PermMessagesView, PermMessagesSend,
	},
	RoleVisitor: {
		PermChildrenView,
	},
}
