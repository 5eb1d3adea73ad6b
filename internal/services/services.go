// Package services holds the tenant-scoped business operations. Every
// operation takes the acting identity explicitly and filters by its tenant.
package services

import (
	"time"

	"github.com/diewo77/taskflow/internal/metrics"
	"github.com/diewo77/taskflow/internal/policy"
	"github.com/diewo77/taskflow/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Options struct {
	Store          storage.Store
	Metrics        *metrics.Metrics
	MaxUploadBytes int64
	Location       *time.Location
}

// Services bundles every service over one database handle and one gate.
type Services struct {
	Gate     *policy.AuthGate
	Index    *MembershipIndex
	Tenants  *TenantService
	Users    *UserService
	Teams    *TeamService
	Projects *ProjectService
	Tasks    *TaskService
	Reports  *ReportService
	HR       *HRService
}

func New(db *gorm.DB, log *zap.Logger, opts Options) *Services {
	if log == nil {
		log = zap.NewNop()
	}
	idx := NewMembershipIndex(db)
	g := policy.NewAuthGate(idx)
	tenants := NewTenantService(db, log.Named("tenants"))
	return &Services{
		Gate:     g,
		Index:    idx,
		Tenants:  tenants,
		Users:    NewUserService(db, log.Named("users"), g, tenants, opts.Store),
		Teams:    NewTeamService(db, log.Named("teams"), g, idx),
		Projects: NewProjectService(db, log.Named("projects"), g),
		Tasks: NewTaskService(db, log.Named("tasks"), g, idx, TaskServiceOptions{
			Store:          opts.Store,
			Metrics:        opts.Metrics,
			MaxUploadBytes: opts.MaxUploadBytes,
		}),
		Reports: NewReportService(db, log.Named("reports"), g, idx, opts.Metrics, opts.Location),
		HR:      NewHRService(db, log.Named("hr"), g, idx, opts.Metrics),
	}
}
