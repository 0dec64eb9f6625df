package upstream

import (
	"strings"

	"github.com/tidwall/gjson"
)

// DefaultTokenPaths are tried in order before the document scan
var DefaultTokenPaths = []string{"token", "data.token", "data.session"}

// ExtractToken recovers the vendor session token from a login response.
//
// Each dotted path in paths is resolved field by field against nested
// objects; the first one landing on a non-blank string wins. Failing that,
// the document is scanned depth-first in field order for a string field whose
// name contains "token" (any case) or is "session". Only objects are
// descended, arrays are not.
func ExtractToken(body []byte, paths []string) (string, bool) {
	if !gjson.ValidBytes(body) {
		return "", false
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return "", false
	}

	for _, path := range paths {
		if v := lookup(doc, path); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
			return v.Str, true
		}
	}

	return scan(doc)
}

// lookup descends one literal field name per dotted segment
func lookup(doc gjson.Result, path string) gjson.Result {
	cur := doc
	for _, segment := range strings.Split(path, ".") {
		if segment == "" || !cur.IsObject() {
			return gjson.Result{}
		}
		cur = cur.Get(gjson.Escape(segment))
		if !cur.Exists() {
			return gjson.Result{}
		}
	}
	return cur
}

func scan(obj gjson.Result) (string, bool) {
	var (
		token string
		found bool
	)
	obj.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.String && isTokenField(key.String()) && strings.TrimSpace(value.Str) != "" {
			token, found = value.Str, true
			return false
		}
		if value.IsObject() {
			if t, ok := scan(value); ok {
				token, found = t, true
				return false
			}
		}
		return true
	})
	return token, found
}

func isTokenField(name string) bool {
	return strings.Contains(strings.ToLower(name), "token") || name == "session"
}

// ExtractProfile returns the raw vendor user object from a login response:
// data.user, else data when it is an object, else a top-level user object.
func ExtractProfile(body []byte) ([]byte, bool) {
	if !gjson.ValidBytes(body) {
		return nil, false
	}
	doc := gjson.ParseBytes(body)
	for _, path := range []string{"data.user", "data", "user"} {
		if v := lookup(doc, path); v.IsObject() {
			return []byte(v.Raw), true
		}
	}
	return nil, false
}
