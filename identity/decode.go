package identity

import (
	"github.com/mitchellh/mapstructure"
)

// ClaimsFromMap converts decoded JWT claims into a multi-valued claim set.
// Scalars become single-element slices and arrays keep their order; values
// that cannot be represented as strings (nested objects) are skipped.
func ClaimsFromMap(raw map[string]interface{}) Claims {
	claims := make(Claims, len(raw))
	for name, value := range raw {
		if value == nil {
			continue
		}
		var values []string
		if err := mapstructure.WeakDecode(value, &values); err != nil {
			continue
		}
		if len(values) > 0 {
			claims[name] = values
		}
	}
	return claims
}
