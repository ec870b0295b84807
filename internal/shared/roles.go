package shared

// Role keys stored in roles.role_key and the legacy tenant_users.role column.
const (
	RoleSuperAdmin    = "super_admin"
	RoleTenantAdmin   = "tenant_admin"
	RoleJournalAdmin  = "journal_admin"
	RoleEditor        = "editor"
	RoleSectionEditor = "section_editor"
	RoleReviewer      = "reviewer"
	RoleAuthor        = "author"
	RoleReader        = "reader"
)

// KnownRoles lists role keys accepted by admin forms.
func KnownRoles() []string {
	return []string{
		RoleSuperAdmin,
		RoleTenantAdmin,
		RoleJournalAdmin,
		RoleEditor,
		RoleSectionEditor,
		RoleReviewer,
		RoleAuthor,
		RoleReader,
	}
}

// IsKnownRole reports whether key is one of KnownRoles.
func IsKnownRole(key string) bool {
	for _, r := range KnownRoles() {
		if r == key {
			return true
		}
	}
	return false
}
