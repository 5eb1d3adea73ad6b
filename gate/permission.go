package gate

import "strings"

// Permission grants one action on one resource type, written "resource:action"
// (task:create, leave:decide). Either half may be the wildcard "*".
type Permission string

const (
	WildcardAll                     = "*"
	PermissionSuperAdmin Permission = "*:*"
)

func NewPermission(resourceType string, action Action) Permission {
	return Permission(resourceType + ":" + string(action))
}

// Parse returns both halves, or two empty strings when p has no separator.
func (p Permission) Parse() (resourceType string, action Action) {
	res, act, ok := strings.Cut(string(p), ":")
	if !ok {
		return "", ""
	}
	return res, Action(act)
}

func (p Permission) Resource() string {
	res, _ := p.Parse()
	return res
}

// Matches reports whether holding p allows requested.
func (p Permission) Matches(requested Permission) bool {
	if p == requested {
		return true
	}
	res, act := p.Parse()
	reqRes, reqAct := requested.Parse()
	if reqRes == "" {
		return false
	}
	return (res == WildcardAll || res == reqRes) && (act == WildcardAll || act == reqAct)
}
