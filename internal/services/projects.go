package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/diewo77/taskflow/gate"
	"github.com/diewo77/taskflow/internal/models"
	"github.com/diewo77/taskflow/internal/policy"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProjectRow is a project with the name of its team, if any.
type ProjectRow struct {
	models.Project
	TeamName *string `json:"team_name,omitempty"`
}

type ProjectService struct {
	db   *gorm.DB
	log  *zap.Logger
	gate *policy.AuthGate
}

func NewProjectService(db *gorm.DB, log *zap.Logger, g *policy.AuthGate) *ProjectService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProjectService{db: db, log: log, gate: g}
}

// Create adds a project, optionally attached to one of the tenant's teams.
func (s *ProjectService) Create(ctx context.Context, actor models.Actor, teamID *uint, name, description string) (*models.Project, error) {
	if err := s.gate.Authorize(ctx, actor, gate.ActionCreate, policy.ResourceProject, nil); err != nil {
		if _, ok := authzError(err).(*ForbiddenError); ok {
			return nil, &ForbiddenError{Reason: "Only admins can create projects."}
		}
		return nil, authzError(err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("Project name is required.")
	}
	if teamID != nil && *teamID == 0 {
		teamID = nil
	}
	if teamID != nil {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Team{}).Where("tenant_id = ? AND id = ?", actor.TenantID, *teamID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, invalid("Select a valid team.")
		}
	}
	p := models.Project{TenantID: actor.TenantID, TeamID: teamID, Name: name, Description: strings.TrimSpace(description)}
	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	s.log.Info("project created", zap.Uint("project_id", p.ID), zap.Uint("tenant_id", p.TenantID))
	return &p, nil
}

// List returns the tenant's projects, newest first.
func (s *ProjectService) List(ctx context.Context, tenantID uint) ([]ProjectRow, error) {
	var rows []ProjectRow
	err := s.db.WithContext(ctx).Model(&models.Project{}).
		Select("projects.*, teams.name AS team_name").
		Joins("LEFT JOIN teams ON teams.id = projects.team_id").
		Where("projects.tenant_id = ?", tenantID).
		Order("projects.created_at DESC, projects.id DESC").
		Scan(&rows).Error
	return rows, err
}

// Get returns one project of the tenant.
func (s *ProjectService) Get(ctx context.Context, tenantID, id uint) (*models.Project, error) {
	var p models.Project
	if err := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}
