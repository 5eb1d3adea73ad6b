package handlers

import (
	"net/http"

	"github.com/diewo77/taskflow/auth"
	"github.com/diewo77/taskflow/internal/metrics"
	"github.com/diewo77/taskflow/internal/policy"
	"github.com/diewo77/taskflow/internal/services"
)

type AuthHandler struct {
	tenants *services.TenantService
	users   *services.UserService
	metrics *metrics.Metrics
}

func NewAuthHandler(svc *services.Services, m *metrics.Metrics) *AuthHandler {
	return &AuthHandler{tenants: svc.Tenants, users: svc.Users, metrics: m}
}

// Home sends a signed-in user to the landing page of their role.
func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	actor, ok := policy.ActorFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, actor.Role.HomePath(), http.StatusSeeOther)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if actor, ok := policy.ActorFromContext(r.Context()); ok {
		http.Redirect(w, r, actor.Role.HomePath(), http.StatusSeeOther)
		return
	}
	if r.Method == http.MethodGet {
		render(w, r, "login.html", map[string]any{"CompanySlug": r.URL.Query().Get("company")})
		return
	}

	slug := r.FormValue("company_slug")
	email := r.FormValue("email")
	user, err := h.users.Authenticate(r.Context(), slug, email, r.FormValue("password"))
	if err != nil {
		h.metrics.AuthAttempt("login", "failure")
		formFailure(w, r, "login.html", map[string]any{"CompanySlug": slug, "Email": email}, err)
		return
	}
	h.metrics.AuthAttempt("login", "success")
	auth.CreateSession(w, auth.Session{UserID: user.ID, TenantID: user.TenantID})
	http.Redirect(w, r, user.Role.HomePath(), http.StatusSeeOther)
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if actor, ok := policy.ActorFromContext(r.Context()); ok {
		http.Redirect(w, r, actor.Role.HomePath(), http.StatusSeeOther)
		return
	}
	if r.Method == http.MethodGet {
		render(w, r, "register.html", map[string]any{"Form": services.RegisterInput{}})
		return
	}

	in := services.RegisterInput{
		Name:        r.FormValue("name"),
		Email:       r.FormValue("email"),
		Company:     r.FormValue("company"),
		CompanySlug: r.FormValue("company_slug"),
		Password:    r.FormValue("password"),
	}
	user, err := h.tenants.Register(r.Context(), in)
	if err != nil {
		h.metrics.AuthAttempt("register", "failure")
		in.Password = ""
		formFailure(w, r, "register.html", map[string]any{"Form": in}, err)
		return
	}
	h.metrics.AuthAttempt("register", "success")
	auth.CreateSession(w, auth.Session{UserID: user.ID, TenantID: user.TenantID})
	http.Redirect(w, r, user.Role.HomePath(), http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSession(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
