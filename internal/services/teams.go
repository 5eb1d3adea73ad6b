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
	"gorm.io/gorm/clause"
)

// MembershipIndex answers team membership and visibility questions straight
// from the database. Nothing is cached, so membership changes apply to the
// next call.
type MembershipIndex struct {
	db *gorm.DB
}

func NewMembershipIndex(db *gorm.DB) *MembershipIndex { return &MembershipIndex{db: db} }

// TeamIDsForUser returns the ids of the tenant's teams userID belongs to.
func (m *MembershipIndex) TeamIDsForUser(ctx context.Context, tenantID, userID uint) ([]uint, error) {
	var ids []uint
	err := m.db.WithContext(ctx).Model(&models.TeamMember{}).
		Joins("JOIN teams ON teams.id = team_members.team_id").
		Where("teams.tenant_id = ? AND team_members.user_id = ?", tenantID, userID).
		Order("team_members.team_id").
		Pluck("team_members.team_id", &ids).Error
	return ids, err
}

// VisibleUsers is the set of users actor oversees: every tenant user for an
// admin, the members of the manager's teams for a manager, nobody for a user.
func (m *MembershipIndex) VisibleUsers(ctx context.Context, actor models.Actor) ([]models.User, error) {
	var users []models.User
	switch {
	case actor.IsAdmin():
		err := m.db.WithContext(ctx).Where("tenant_id = ?", actor.TenantID).Order("name, id").Find(&users).Error
		return users, err
	case actor.IsManager():
		teamIDs, err := m.TeamIDsForUser(ctx, actor.TenantID, actor.UserID)
		if err != nil || len(teamIDs) == 0 {
			return nil, err
		}
		members := m.db.Model(&models.TeamMember{}).Select("user_id").Where("team_id IN ?", teamIDs)
		err = m.db.WithContext(ctx).
			Where("tenant_id = ? AND id IN (?)", actor.TenantID, members).
			Order("name, id").
			Find(&users).Error
		return users, err
	}
	return nil, nil
}

// VisibleUserIDs is VisibleUsers reduced to ids.
func (m *MembershipIndex) VisibleUserIDs(ctx context.Context, actor models.Actor) ([]uint, error) {
	users, err := m.VisibleUsers(ctx, actor)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}

// CanSee reports whether userID is in actor's visible set.
func (m *MembershipIndex) CanSee(ctx context.Context, actor models.Actor, userID uint) (bool, error) {
	if userID == 0 || !actor.IsManager() {
		return false, nil
	}
	var count int64
	q := m.db.WithContext(ctx).Model(&models.User{}).Where("users.tenant_id = ? AND users.id = ?", actor.TenantID, userID)
	if !actor.IsAdmin() {
		shared := m.db.Table("team_members AS theirs").
			Select("1").
			Joins("JOIN team_members AS mine ON mine.team_id = theirs.team_id").
			Joins("JOIN teams ON teams.id = theirs.team_id").
			Where("theirs.user_id = users.id AND mine.user_id = ? AND teams.tenant_id = ?", actor.UserID, actor.TenantID)
		q = q.Where("EXISTS (?)", shared)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, fmt.Errorf("visibility: %w", err)
	}
	return count > 0, nil
}

// MemberRow is a team member joined with the user's identity.
type MemberRow struct {
	UserID uint   `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

type TeamWithMembers struct {
	models.Team
	Members []MemberRow `json:"members"`
}

// TeamService manages teams and their membership within a tenant.
type TeamService struct {
	*MembershipIndex
	db   *gorm.DB
	log  *zap.Logger
	gate *policy.AuthGate
}

func NewTeamService(db *gorm.DB, log *zap.Logger, g *policy.AuthGate, idx *MembershipIndex) *TeamService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TeamService{MembershipIndex: idx, db: db, log: log, gate: g}
}

func (s *TeamService) CreateTeam(ctx context.Context, actor models.Actor, name string) (*models.Team, error) {
	if err := authzError(s.gate.Authorize(ctx, actor, gate.ActionCreate, policy.ResourceTeam, nil)); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("Team name is required.")
	}
	t := models.Team{TenantID: actor.TenantID, Name: name}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return nil, fmt.Errorf("create team: %w", err)
	}
	s.log.Info("team created", zap.Uint("team_id", t.ID), zap.Uint("tenant_id", t.TenantID))
	return &t, nil
}

func (s *TeamService) getTeam(ctx context.Context, tenantID, teamID uint) (*models.Team, error) {
	var t models.Team
	if err := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, teamID).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// DeleteTeam removes a team with its memberships. Projects of the team are kept
// without a team.
func (s *TeamService) DeleteTeam(ctx context.Context, actor models.Actor, teamID uint) error {
	if teamID == 0 {
		return invalid("Invalid team.")
	}
	t, err := s.getTeam(ctx, actor.TenantID, teamID)
	if err != nil {
		return err
	}
	if err := authzError(s.gate.Authorize(ctx, actor, gate.ActionDelete, policy.ResourceTeam, t)); err != nil {
		return err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("team_id = ?", t.ID).Delete(&models.TeamMember{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Project{}).Where("tenant_id = ? AND team_id = ?", t.TenantID, t.ID).Update("team_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(t).Error
	})
	if err != nil {
		return fmt.Errorf("delete team: %w", err)
	}
	s.log.Info("team deleted", zap.Uint("team_id", t.ID), zap.Uint("tenant_id", t.TenantID))
	return nil
}

// AddMember puts userID in teamID. Adding an existing member changes nothing.
func (s *TeamService) AddMember(ctx context.Context, actor models.Actor, teamID, userID uint) error {
	if teamID == 0 || userID == 0 {
		return invalid("Select a team and user.")
	}
	t, err := s.getTeam(ctx, actor.TenantID, teamID)
	if err != nil {
		return err
	}
	if err := authzError(s.gate.Authorize(ctx, actor, gate.ActionManage, policy.ResourceTeam, t)); err != nil {
		return err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("tenant_id = ? AND id = ?", actor.TenantID, userID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	member := models.TeamMember{TeamID: t.ID, UserID: userID, Role: models.DefaultMemberRole}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (s *TeamService) RemoveMember(ctx context.Context, actor models.Actor, teamID, userID uint) error {
	if teamID == 0 || userID == 0 {
		return invalid("Invalid team member.")
	}
	t, err := s.getTeam(ctx, actor.TenantID, teamID)
	if err != nil {
		return err
	}
	if err := authzError(s.gate.Authorize(ctx, actor, gate.ActionManage, policy.ResourceTeam, t)); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Where("team_id = ? AND user_id = ?", t.ID, userID).Delete(&models.TeamMember{}).Error
}

// Members lists a team's members ordered by name.
func (s *TeamService) Members(ctx context.Context, tenantID, teamID uint) ([]MemberRow, error) {
	var rows []MemberRow
	err := s.db.WithContext(ctx).Table("team_members").
		Select("users.id AS user_id, users.name, users.email, team_members.role").
		Joins("JOIN users ON users.id = team_members.user_id").
		Joins("JOIN teams ON teams.id = team_members.team_id").
		Where("team_members.team_id = ? AND teams.tenant_id = ? AND users.tenant_id = ?", teamID, tenantID, tenantID).
		Order("users.name, users.id").
		Scan(&rows).Error
	return rows, err
}

// ListTeams returns the teams actor may see by name, each with its members.
// Admins see every team of the tenant, managers only the teams they belong to.
func (s *TeamService) ListTeams(ctx context.Context, actor models.Actor) ([]TeamWithMembers, error) {
	if err := authzError(s.gate.Authorize(ctx, actor, gate.ActionList, policy.ResourceTeam, nil)); err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).Where("tenant_id = ?", actor.TenantID)
	if !actor.IsAdmin() {
		ids, err := s.TeamIDsForUser(ctx, actor.TenantID, actor.UserID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []TeamWithMembers{}, nil
		}
		q = q.Where("id IN ?", ids)
	}
	var teams []models.Team
	if err := q.Order("name, id").Find(&teams).Error; err != nil {
		return nil, err
	}
	out := make([]TeamWithMembers, 0, len(teams))
	for _, t := range teams {
		members, err := s.Members(ctx, actor.TenantID, t.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, TeamWithMembers{Team: t, Members: members})
	}
	return out, nil
}
