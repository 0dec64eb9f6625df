// Package identity holds the caller identity resolved for a request, the
// role policy derived from the admin allow-list, and claim normalization.
package identity

import (
	"strconv"
	"strings"
)

// Scheme names the authentication scheme that produced an identity
type Scheme string

const (
	SchemeBearer        Scheme = "bearer"
	SchemeTrustedHeader Scheme = "trusted_header"
	SchemeAnonymous     Scheme = "anonymous"
)

// Claim names carried on every authenticated identity
const (
	ClaimSubject  = "sub"
	ClaimName     = "name"
	ClaimRoleName = "roleName"
	ClaimRoleID   = "roleId"
	ClaimRole     = "role"
	ClaimRoles    = "roles"
)

// Claims is a multi-valued claim set keyed by claim name
type Claims map[string][]string

// First returns the first value of a claim or the empty string
func (c Claims) First(name string) string {
	if values := c[name]; len(values) > 0 {
		return values[0]
	}
	return ""
}

// Add appends values to a claim
func (c Claims) Add(name string, values ...string) {
	c[name] = append(c[name], values...)
}

// Clone returns a deep copy
func (c Claims) Clone() Claims {
	out := make(Claims, len(c))
	for k, v := range c {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Identity is the authenticated caller for one request
type Identity struct {
	Subject string
	Name    string
	Role    Role
	Scheme  Scheme
	Claims  Claims
}

// New builds an identity with its claim set populated from the role
func New(subject, name string, role Role, scheme Scheme) *Identity {
	claims := Claims{}
	claims.Add(ClaimSubject, subject)
	claims.Add(ClaimName, name)
	claims.Add(ClaimRoleName, role.Name)
	claims.Add(ClaimRoleID, strconv.Itoa(role.ID))
	return &Identity{
		Subject: subject,
		Name:    name,
		Role:    role,
		Scheme:  scheme,
		Claims:  claims,
	}
}

// FromClaims builds a bearer identity from a verified claim set. The role id
// defaults to the user role when absent or malformed.
func FromClaims(claims Claims) *Identity {
	role := RoleUser
	if id, err := strconv.Atoi(claims.First(ClaimRoleID)); err == nil && id == RoleAdmin.ID {
		role = RoleAdmin
	}
	name := claims.First(ClaimName)
	if name == "" {
		name = claims.First(ClaimSubject)
	}
	return &Identity{
		Subject: claims.First(ClaimSubject),
		Name:    name,
		Role:    role,
		Scheme:  SchemeBearer,
		Claims:  claims,
	}
}

// HasRole reports whether any role claim matches, ignoring case
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	if strings.EqualFold(i.Role.Name, role) {
		return true
	}
	for _, name := range roleClaimNames {
		for _, v := range i.Claims[name] {
			if strings.EqualFold(strings.TrimSpace(v), role) {
				return true
			}
		}
	}
	return false
}

// IsAdmin is true for the Admin role name or the admin role id
func (i *Identity) IsAdmin() bool {
	if i == nil {
		return false
	}
	return i.HasRole(RoleAdmin.Name) || i.Claims.First(ClaimRoleID) == strconv.Itoa(RoleAdmin.ID)
}
