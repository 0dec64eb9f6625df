package identity

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// roleClaimNames lists the canonical role claim first, then its alternates
var roleClaimNames = []string{ClaimRoleName, ClaimRole, ClaimRoles}

// RoleSet is an insertion-ordered set of role names compared under Unicode
// case folding. It is not safe for concurrent use.
type RoleSet struct {
	order []string
	seen  map[string]struct{}
	fold  cases.Caser
}

// NewRoleSet builds a set from the given values
func NewRoleSet(values ...string) *RoleSet {
	s := &RoleSet{seen: make(map[string]struct{}), fold: cases.Fold()}
	s.Add(values...)
	return s
}

func (s *RoleSet) key(v string) string {
	return s.fold.String(v)
}

// Add inserts trimmed, non-empty values; the first spelling seen is kept
func (s *RoleSet) Add(values ...string) {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := s.key(v)
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}
		s.order = append(s.order, v)
	}
}

// Contains reports membership ignoring case
func (s *RoleSet) Contains(v string) bool {
	_, ok := s.seen[s.key(strings.TrimSpace(v))]
	return ok
}

// Values returns the roles in insertion order
func (s *RoleSet) Values() []string {
	return append([]string(nil), s.order...)
}

// Len returns the number of distinct roles
func (s *RoleSet) Len() int {
	return len(s.order)
}

// NormalizeClaims returns a copy of claims whose canonical role claim holds,
// for every distinct role seen across the canonical and alternate claims, the
// original, lower-case and title-case spellings. Applying it twice yields the
// same claim set.
func NormalizeClaims(claims Claims) Claims {
	out := claims.Clone()

	set := NewRoleSet()
	for _, name := range roleClaimNames {
		set.Add(claims[name]...)
	}
	if set.Len() == 0 {
		return out
	}

	title := cases.Title(language.Und)
	variants := make([]string, 0, set.Len()*3)
	seen := make(map[string]struct{}, set.Len()*3)
	for _, role := range set.Values() {
		for _, v := range []string{role, strings.ToLower(role), title.String(role)} {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			variants = append(variants, v)
		}
	}
	out[ClaimRoleName] = variants
	return out
}
