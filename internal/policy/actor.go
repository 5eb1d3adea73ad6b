package policy

import (
	"context"
	"net/http"

	"github.com/diewo77/taskflow/auth"
	"github.com/diewo77/taskflow/internal/logger"
	"github.com/diewo77/taskflow/internal/models"
	"go.uber.org/zap"
)

type actorKey struct{}

// WithActor stores the request's actor in ctx.
func WithActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the actor resolved for this request.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(models.Actor)
	if !ok || a.UserID == 0 {
		return models.Actor{}, false
	}
	return a, true
}

// ActorLoader resolves a session to a current actor.
type ActorLoader interface {
	LoadActor(ctx context.Context, userID, tenantID uint) (models.Actor, error)
}

// ActorMiddleware turns the session into an Actor once per request. A session
// whose user no longer exists is cleared and treated as anonymous.
func ActorMiddleware(loader ActorLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := auth.SessionFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			actor, err := loader.LoadActor(r.Context(), s.UserID, s.TenantID)
			if err != nil {
				logger.FromContext(r.Context()).Info("dropping stale session",
					zap.Uint("user_id", s.UserID), zap.Error(err))
				auth.ClearSession(w)
				next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), auth.Session{})))
				return
			}
			ctx := WithActor(r.Context(), actor)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(zap.Uint("user_id", actor.UserID), zap.Uint("tenant_id", actor.TenantID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthenticated(w http.ResponseWriter, r *http.Request) {
	auth.Unauthenticated(w, r)
}

// RequireRole admits actors holding at least min. Anonymous requests go to
// the login page, lower roles get 403.
func RequireRole(min models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				unauthenticated(w, r)
				return
			}
			if !actor.Role.AtLeast(min) {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin admits admins only.
func RequireAdmin() func(http.Handler) http.Handler { return RequireRole(models.RoleAdmin) }
