package auth

import (
	"net/http"
	"strings"
)

// RoomsPrefix is the root of the room API.
const RoomsPrefix = "/v1/room/"

// Policy decides which requests need a bearer token.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt returns true when a request should skip auth.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// RequiresAuth reports whether the request manages rooms on behalf of an owner.
// Room listing, creation and deletion need a token; status, toggles and
// telemetry stay open for devices and operators.
func (p Policy) RequiresAuth(r *http.Request) bool {
	if r == nil {
		return false
	}
	path := r.URL.Path
	switch {
	case path == RoomsPrefix || path == strings.TrimSuffix(RoomsPrefix, "/"):
		return true
	case r.Method == http.MethodDelete && strings.HasPrefix(path, RoomsPrefix):
		return true
	}
	return false
}
