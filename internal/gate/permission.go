package gate

import "strings"

// Permission is "resource:action", e.g. "document:send".
type Permission string

const (
	Wildcard   = "*"
	SuperAdmin Permission = "*:*"
)

func NewPermission(resourceType string, action Action) Permission {
	return Permission(resourceType + ":" + string(action))
}

// ParsePermission splits "resource:action"; ok is false when the separator is missing.
func ParsePermission(s string) (resourceType string, action Action, ok bool) {
	res, act, found := strings.Cut(s, ":")
	if !found || res == "" || act == "" {
		return "", "", false
	}
	return res, Action(act), true
}

// Matches reports whether p grants requested. "*" matches anything on its side,
// so "document:*" grants every document action and "*:*" grants everything.
func (p Permission) Matches(requested Permission) bool {
	if p == requested {
		return true
	}
	res, act, ok := ParsePermission(string(p))
	if !ok {
		return false
	}
	reqRes, reqAct, ok := ParsePermission(string(requested))
	if !ok {
		return false
	}
	return (res == Wildcard || res == reqRes) && (string(act) == Wildcard || act == reqAct)
}
