// Package server assembles the HTTP handler of the application.
package server

import (
	"net/http"
	"time"

	"github.com/diewo77/taskflow/auth"
	"github.com/diewo77/taskflow/gate"
	"github.com/diewo77/taskflow/httpx"
	"github.com/diewo77/taskflow/internal/ai"
	"github.com/diewo77/taskflow/internal/handlers"
	"github.com/diewo77/taskflow/internal/logger"
	"github.com/diewo77/taskflow/internal/metrics"
	"github.com/diewo77/taskflow/internal/middleware"
	"github.com/diewo77/taskflow/internal/models"
	"github.com/diewo77/taskflow/internal/policy"
	"github.com/diewo77/taskflow/internal/services"
	"github.com/diewo77/taskflow/view"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Config is everything the router needs from the host process.
type Config struct {
	DB                 *gorm.DB
	Log                *zap.Logger
	Services           *services.Services
	Metrics            *metrics.Metrics
	Assistant          *ai.Assistant
	Location           *time.Location
	LoginRatePerMinute int
}

// RouterConfig holds the handlers of every area, built once per server.
type RouterConfig struct {
	AuthGate  *policy.AuthGate
	Auth      *handlers.AuthHandler
	Dashboard *handlers.DashboardHandler
	Tasks     *handlers.TaskHandler
	Admin     *handlers.AdminHandler
	Reports   *handlers.ReportHandler
	HR        *handlers.HRHandler
	AI        *handlers.AIHandler
}

func NewRouterConfig(cfg Config) *RouterConfig {
	svc := cfg.Services
	assistant := cfg.Assistant
	if assistant == nil {
		assistant = ai.NewAssistant(nil, svc.Gate)
	}
	return &RouterConfig{
		AuthGate:  svc.Gate,
		Auth:      handlers.NewAuthHandler(svc, cfg.Metrics),
		Dashboard: handlers.NewDashboardHandler(svc, cfg.Location),
		Tasks:     handlers.NewTaskHandler(svc, cfg.Location),
		Admin:     handlers.NewAdminHandler(svc),
		Reports:   handlers.NewReportHandler(svc),
		HR:        handlers.NewHRHandler(svc),
		AI:        handlers.NewAIHandler(assistant),
	}
}

// New builds the root handler: routes plus the middleware chain
// logging > recovery > language > session > CSRF > actor > metrics.
func New(cfg Config) http.Handler {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	rc := NewRouterConfig(cfg)

	view.SetCanResolver(func(r *http.Request, resource, action string) bool {
		return rc.AuthGate.CanProfile(r.Context(), gate.Action(action), resource)
	})
	view.SetUserResolver(func(r *http.Request) any {
		if a, ok := policy.ActorFromContext(r.Context()); ok {
			return a
		}
		return nil
	})

	mux := http.NewServeMux()
	registerRoutes(mux, rc, cfg)

	var h http.Handler = mux
	h = cfg.Metrics.Middleware(h)
	h = policy.ActorMiddleware(cfg.Services.Users)(h)
	h = auth.CSRF(h)
	h = auth.Middleware(h)
	h = middleware.Prefs(h)
	h = middleware.Recover(h)
	return logger.Middleware(log)(h)
}

func registerRoutes(mux *http.ServeMux, rc *RouterConfig, cfg Config) {
	requireAuth := policy.RequireRole(models.RoleUser)
	requireManager := policy.RequireRole(models.RoleManager)
	requireAdmin := policy.RequireAdmin()
	can := rc.AuthGate.RequirePermission
	throttle := middleware.NewLimiter(cfg.LoginRatePerMinute).Throttle

	// ─────────────────────────────────────────────────────────────────────
	// Public
	// ─────────────────────────────────────────────────────────────────────
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.DB == nil || cfg.DB.WithContext(r.Context()).Exec("SELECT 1").Error != nil {
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	ah := rc.Auth
	mux.HandleFunc("GET /{$}", ah.Home)
	mux.HandleFunc("GET /login", ah.Login)
	mux.Handle("POST /login", throttle(http.HandlerFunc(ah.Login)))
	mux.HandleFunc("GET /register", ah.Register)
	mux.Handle("POST /register", throttle(http.HandlerFunc(ah.Register)))
	mux.HandleFunc("POST /logout", ah.Logout)

	// ─────────────────────────────────────────────────────────────────────
	// Every signed-in role
	// ─────────────────────────────────────────────────────────────────────
	dh := rc.Dashboard
	th := rc.Tasks
	rh := rc.Reports
	hh := rc.HR

	mux.Handle("GET /dashboard", requireAuth(http.HandlerFunc(dh.Dashboard)))

	mux.Handle("GET /tasks/{id}",
		requireAuth(can(policy.ResourceTask, gate.ActionView)(http.HandlerFunc(th.View))))
	mux.Handle("POST /tasks/{id}",
		requireAuth(http.HandlerFunc(th.Act)))
	mux.Handle("POST /tasks/{id}/complete",
		requireAuth(can(policy.ResourceTask, gate.ActionComplete)(http.HandlerFunc(th.Complete))))
	mux.Handle("GET /tasks/{id}/attachments/{aid}",
		requireAuth(can(policy.ResourceTask, gate.ActionView)(http.HandlerFunc(th.Download))))

	mux.Handle("GET /reports/daily",
		requireAuth(can(policy.ResourceReport, gate.ActionView)(http.HandlerFunc(rh.Daily))))
	mux.Handle("POST /reports/daily",
		requireAuth(can(policy.ResourceReport, gate.ActionCreate)(http.HandlerFunc(rh.SubmitDaily))))

	mux.Handle("GET /hr/me",
		requireAuth(can(policy.ResourceHRProfile, gate.ActionView)(http.HandlerFunc(hh.Me))))
	mux.Handle("POST /hr/me",
		requireAuth(can(policy.ResourceLeave, gate.ActionCreate)(http.HandlerFunc(hh.RequestLeave))))

	// ─────────────────────────────────────────────────────────────────────
	// Managers and admins
	// ─────────────────────────────────────────────────────────────────────
	mux.Handle("GET /manage", requireManager(http.HandlerFunc(dh.Manage)))
	mux.Handle("GET /manage/tasks",
		requireManager(can(policy.ResourceTask, gate.ActionCreate)(http.HandlerFunc(th.List))))
	mux.Handle("POST /tasks",
		requireManager(can(policy.ResourceTask, gate.ActionCreate)(http.HandlerFunc(th.Create))))
	mux.Handle("POST /tasks/{id}/edit",
		requireManager(can(policy.ResourceTask, gate.ActionUpdate)(http.HandlerFunc(th.Update))))
	mux.Handle("GET /manage/reports",
		requireManager(can(policy.ResourceTeamReport, gate.ActionList)(http.HandlerFunc(rh.Stats))))
	mux.Handle("GET /manage/daily-reports",
		requireManager(can(policy.ResourceTeamReport, gate.ActionList)(http.HandlerFunc(rh.TeamDaily))))
	mux.Handle("GET /manage/hr",
		requireManager(can(policy.ResourceHRProfile, gate.ActionList)(http.HandlerFunc(hh.Manage))))
	mux.Handle("POST /hr/leave/{id}/decision",
		requireManager(can(policy.ResourceLeave, gate.ActionDecide)(http.HandlerFunc(hh.Decide))))
	mux.Handle("POST /hr/profiles",
		requireManager(can(policy.ResourceHRProfile, gate.ActionUpdate)(http.HandlerFunc(hh.SaveProfile))))

	aih := rc.AI
	mux.Handle("GET /ai", requireManager(can(policy.ResourceAI, gate.ActionCreate)(http.HandlerFunc(aih.Form))))
	mux.Handle("POST /ai", requireManager(can(policy.ResourceAI, gate.ActionCreate)(http.HandlerFunc(aih.Draft))))

	// ─────────────────────────────────────────────────────────────────────
	// Admins
	// ─────────────────────────────────────────────────────────────────────
	adm := rc.Admin
	mux.Handle("GET /admin", requireAdmin(http.HandlerFunc(dh.Admin)))
	mux.Handle("GET /admin/users", requireAdmin(http.HandlerFunc(adm.Users)))
	mux.Handle("POST /admin/users", requireAdmin(http.HandlerFunc(adm.CreateUser)))
	mux.Handle("POST /admin/users/{id}/role", requireAdmin(http.HandlerFunc(adm.ChangeRole)))
	mux.Handle("POST /admin/users/{id}/delete", requireAdmin(http.HandlerFunc(adm.DeleteUser)))
	mux.Handle("GET /admin/teams", requireAdmin(http.HandlerFunc(adm.Teams)))
	mux.Handle("POST /admin/teams", requireAdmin(http.HandlerFunc(adm.CreateTeam)))
	mux.Handle("POST /admin/teams/{id}/members", requireAdmin(http.HandlerFunc(adm.AddMember)))
	mux.Handle("POST /admin/teams/{id}/members/{uid}/delete", requireAdmin(http.HandlerFunc(adm.RemoveMember)))
	mux.Handle("POST /admin/teams/{id}/delete", requireAdmin(http.HandlerFunc(adm.DeleteTeam)))
	mux.Handle("GET /admin/projects", requireAdmin(http.HandlerFunc(adm.Projects)))
	mux.Handle("POST /admin/projects", requireAdmin(http.HandlerFunc(adm.CreateProject)))
	mux.Handle("POST /tasks/{id}/delete", requireAdmin(http.HandlerFunc(th.Delete)))
}
