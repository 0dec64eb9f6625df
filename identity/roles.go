package identity

import "strings"

// Role is the local role pair carried in credentials
type Role struct {
	Name string
	ID   int
}

var (
	RoleUser  = Role{Name: "User", ID: 1}
	RoleAdmin = Role{Name: "Admin", ID: 2}
)

// ResolveRole maps the admin flag to its role pair
func ResolveRole(isAdmin bool) Role {
	if isAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// AdminList is a case-insensitive set of usernames granted the admin role
type AdminList struct {
	names map[string]struct{}
}

// NewAdminList trims and lower-cases every entry; blanks are dropped
func NewAdminList(names []string) AdminList {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		set[n] = struct{}{}
	}
	return AdminList{names: set}
}

// Contains reports membership, ignoring case and surrounding whitespace
func (a AdminList) Contains(username string) bool {
	_, ok := a.names[strings.ToLower(strings.TrimSpace(username))]
	return ok
}

// Len returns the number of configured admins
func (a AdminList) Len() int {
	return len(a.names)
}
