package csrf

import (
	"net/http"
	"strings"
)

// Matcher reports whether a request falls under a skip rule.
type Matcher func(r *http.Request) bool

// SkipRule exempts matching requests from the double-submit check.
type SkipRule struct {
	Match  Matcher
	Reason string
}

// PathEquals matches requests whose path is exactly path, for any method.
func PathEquals(path string) Matcher {
	return func(r *http.Request) bool {
		return r.URL.Path == path
	}
}

// PathPrefix matches requests whose path starts with prefix.
func PathPrefix(prefix string) Matcher {
	return func(r *http.Request) bool {
		return strings.HasPrefix(r.URL.Path, prefix)
	}
}

// MethodPath matches one method on one exact path.
func MethodPath(method, path string) Matcher {
	method = strings.ToUpper(method)
	return func(r *http.Request) bool {
		return r.Method == method && r.URL.Path == path
	}
}
