package gate

import "context"

// Policy defines resource-level authorization rules for a resource type.
// Authorize returns nil to allow, a *Denial or ErrNotFound to refuse, or any
// other error when the decision itself could not be made.
// For list/create checks, resource may be nil.
type Policy[U any] interface {
	Authorize(ctx context.Context, user U, action Action, resource any) error
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc[U any] func(ctx context.Context, user U, action Action, resource any) error

func (f PolicyFunc[U]) Authorize(ctx context.Context, user U, action Action, resource any) error {
	return f(ctx, user, action, resource)
}

// Scoped is implemented by subjects and resources that live inside an
// isolation scope such as a tenant.
type Scoped interface {
	ScopeID() uint
}
