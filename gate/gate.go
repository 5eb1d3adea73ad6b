// Package gate provides a Gate/Policy authorization system.
// A Gate combines profile permissions ("resource:action") resolved per
// subject with resource-specific policies. The package has no dependency on
// domain models.
//
// The package uses generics to allow any comparable subject type:
//   - Gate[uint] for simple user ID based auth
//   - Gate[Actor] for a full identity value
package gate

import "context"

// Gate is the central authorization checkpoint.
// Authorization flow:
//  1. The subject must be non-zero.
//  2. A Scoped resource must share the subject's scope, otherwise ErrNotFound.
//  3. The subject's profile must grant resource:action.
//  4. A policy registered for the resource type gets the final word.
type Gate[U comparable] struct {
	resolver ProfileResolver[U]
	policies map[string]Policy[U]
}

// NewGate creates a gate with the given profile resolver.
func NewGate[U comparable](resolver ProfileResolver[U]) *Gate[U] {
	return &Gate[U]{
		resolver: resolver,
		policies: make(map[string]Policy[U]),
	}
}

// Register adds a resource-specific policy. Overwrites any existing one.
func (g *Gate[U]) Register(resourceType string, p Policy[U]) {
	g.policies[resourceType] = p
}

// Authorize returns nil when user may perform action on resource.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string, resource any) error {
	var zero U
	if user == zero {
		return ErrUnauthenticated
	}

	if !SameScope(user, resource) {
		return ErrNotFound
	}

	perm := NewPermission(resourceType, action)
	profile, err := g.resolver.Resolve(ctx, user)
	if err != nil {
		return err
	}
	if profile == nil || !profile.HasPermission(perm) {
		return &Denial{Permission: perm}
	}

	if policy, ok := g.policies[resourceType]; ok {
		if err := policy.Authorize(ctx, user, action, resource); err != nil {
			return err
		}
	}
	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string, resource any) bool {
	return g.Authorize(ctx, user, action, resourceType, resource) == nil
}

// CanProfile checks only the profile permission, without any policy.
// Useful for UI to show/hide controls before a specific resource is loaded.
func (g *Gate[U]) CanProfile(ctx context.Context, user U, action Action, resourceType string) bool {
	var zero U
	if user == zero {
		return false
	}
	profile, err := g.resolver.Resolve(ctx, user)
	if err != nil || profile == nil {
		return false
	}
	return profile.HasPermission(NewPermission(resourceType, action))
}

// SameScope reports whether resource may be seen by user with respect to scope.
// Values that do not implement Scoped are never out of scope.
func SameScope(user, resource any) bool {
	if resource == nil {
		return true
	}
	rs, ok := resource.(Scoped)
	if !ok {
		return true
	}
	us, ok := user.(Scoped)
	if !ok {
		return false
	}
	return us.ScopeID() == rs.ScopeID()
}
