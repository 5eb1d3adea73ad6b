package policy

import (
	"context"
	"net/http"

	"github.com/diewo77/taskflow/gate"
	"github.com/diewo77/taskflow/internal/models"
)

// Resource types checked by the gate.
const (
	ResourceUser       = "user"
	ResourceTeam       = "team"
	ResourceProject    = "project"
	ResourceTask       = "task"
	ResourceReport     = "report"
	ResourceTeamReport = "team_report"
	ResourceLeave      = "leave"
	ResourceHRProfile  = "hr_profile"
	ResourceAI         = "ai"
)

// Visibility answers whether an actor may see or act on another user of the
// tenant. It is recomputed on every call.
type Visibility interface {
	CanSee(ctx context.Context, actor models.Actor, userID uint) (bool, error)
}

// AuthGate is the application's authorization point over gate.Gate.
type AuthGate struct {
	Gate *gate.Gate[models.Actor]
}

// NewAuthGate wires role profiles and every resource policy.
func NewAuthGate(vis Visibility) *AuthGate {
	g := gate.NewGate[models.Actor](RoleResolver{})
	g.Register(ResourceTask, &TaskPolicy{vis: vis})
	g.Register(ResourceUser, &UserPolicy{})
	g.Register(ResourceReport, &OwnerPolicy{vis: vis, label: "daily reports"})
	g.Register(ResourceLeave, &LeavePolicy{vis: vis})
	g.Register(ResourceHRProfile, &HRProfilePolicy{vis: vis})
	return &AuthGate{Gate: g}
}

// RegisterPolicy adds or replaces a resource policy.
func (ag *AuthGate) RegisterPolicy(resourceType string, p gate.Policy[models.Actor]) {
	ag.Gate.Register(resourceType, p)
}

// Authorize checks whether actor may perform action on resource.
func (ag *AuthGate) Authorize(ctx context.Context, actor models.Actor, action gate.Action, resourceType string, resource any) error {
	return ag.Gate.Authorize(ctx, actor, action, resourceType, resource)
}

// Can is a convenience method that returns bool instead of error.
func (ag *AuthGate) Can(ctx context.Context, actor models.Actor, action gate.Action, resourceType string, resource any) bool {
	return ag.Authorize(ctx, actor, action, resourceType, resource) == nil
}

// CanProfile checks only the role permission of the request's actor.
// Useful for templates to show or hide controls.
func (ag *AuthGate) CanProfile(ctx context.Context, action gate.Action, resourceType string) bool {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return false
	}
	return ag.Gate.CanProfile(ctx, actor, action, resourceType)
}

// RequirePermission returns middleware that checks the actor's role permission.
func (ag *AuthGate) RequirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := ActorFromContext(r.Context()); !ok {
				unauthenticated(w, r)
				return
			}
			if !ag.CanProfile(r.Context(), action, resourceType) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
