package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/diewo77/taskflow/auth"
	"github.com/diewo77/taskflow/gate"
	"github.com/diewo77/taskflow/internal/models"
	"github.com/diewo77/taskflow/internal/policy"
	"github.com/diewo77/taskflow/internal/storage"
	"github.com/diewo77/taskflow/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// UserService is the identity and role store of a tenant.
type UserService struct {
	db      *gorm.DB
	log     *zap.Logger
	gate    *policy.AuthGate
	tenants *TenantService
	store   storage.Store
}

func NewUserService(db *gorm.DB, log *zap.Logger, g *policy.AuthGate, tenants *TenantService, store storage.Store) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{db: db, log: log, gate: g, tenants: tenants, store: store}
}

// Authenticate verifies a login by company code, email and password.
func (s *UserService) Authenticate(ctx context.Context, slug, email, password string) (*models.User, error) {
	slug = normalizeSlug(slug)
	email = normalizeEmail(email)
	if slug == "" || email == "" || password == "" {
		return nil, invalid("Please provide company code, email, and password.")
	}
	tenant, err := s.tenants.ResolveSlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalidFields("Company code not found.", validation.Violations{"company_slug": "not_found"})
		}
		return nil, err
	}
	var u models.User
	err = s.db.WithContext(ctx).Where("tenant_id = ? AND email = ?", tenant.ID, email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, invalid("Invalid login details.")
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return nil, invalid("Invalid login details.")
	}
	return &u, nil
}

// LoadActor resolves a session to the user's current identity, so role
// changes take effect on the next request.
func (s *UserService) LoadActor(ctx context.Context, userID, tenantID uint) (models.Actor, error) {
	u, err := s.Get(ctx, tenantID, userID)
	if err != nil {
		return models.Actor{}, err
	}
	return models.ActorFor(u), nil
}

// Get returns a user of the tenant.
func (s *UserService) Get(ctx context.Context, tenantID, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// List returns the tenant's users ordered by name.
func (s *UserService) List(ctx context.Context, actor models.Actor) ([]models.User, error) {
	if err := authzError(s.gate.Authorize(ctx, actor, gate.ActionList, policy.ResourceUser, nil)); err != nil {
		return nil, err
	}
	var users []models.User
	err := s.db.WithContext(ctx).Where("tenant_id = ?", actor.TenantID).Order("name, id").Find(&users).Error
	return users, err
}

// Create adds an account to the actor's tenant.
func (s *UserService) Create(ctx context.Context, actor models.Actor, in CreateUserInput) (*models.User, error) {
	if err := authzError(s.gate.Authorize(ctx, actor, gate.ActionCreate, policy.ResourceUser, nil)); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)

	v := make(validation.Violations)
	validation.Required("name", in.Name, v)
	validation.Required("email", in.Email, v)
	validation.Required("password", in.Password, v)
	if !v.Empty() {
		return nil, invalidFields("Name, email, and password are required.", v)
	}
	if validation.Email("email", in.Email, v); !v.Empty() {
		return nil, invalidFields("Please enter a valid email.", v)
	}
	if len(in.Password) < MinPasswordLength {
		v.Add("password", "too_short")
		return nil, invalidFields("Password must be at least 6 characters.", v)
	}
	role, ok := models.ParseRole(in.Role)
	if !ok {
		v.Add("role", "invalid_choice")
		return nil, invalidFields("Invalid role.", v)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := models.User{TenantID: actor.TenantID, Name: in.Name, Email: in.Email, PasswordHash: hash, Role: role}
	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, &ConflictError{Field: "email", Message: "Email already registered."}
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user created", zap.Uint("user_id", u.ID), zap.Uint("tenant_id", u.TenantID), zap.String("role", string(role)))
	return &u, nil
}

// ChangeRole sets the role of another user of the tenant.
func (s *UserService) ChangeRole(ctx context.Context, actor models.Actor, userID uint, role string) (*models.User, error) {
	if userID == 0 {
		return nil, invalid("Invalid role update.")
	}
	u, err := s.Get(ctx, actor.TenantID, userID)
	if err != nil {
		return nil, err
	}
	if err := authzError(s.gate.Authorize(ctx, actor, gate.ActionUpdate, policy.ResourceUser, u)); err != nil {
		return nil, err
	}
	r, ok := models.ParseRole(role)
	if !ok {
		return nil, invalidFields("Invalid role update.", validation.Violations{"role": "invalid_choice"})
	}
	from := u.Role
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("tenant_id = ? AND id = ?", actor.TenantID, u.ID).Update("role", r).Error; err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}
	u.Role = r
	s.log.Info("user role changed", zap.Uint("user_id", u.ID), zap.String("from", string(from)), zap.String("to", string(r)))
	return u, nil
}

// Delete removes a user together with the records that only exist through them:
// memberships, reports, HR data and the tasks assigned to them.
func (s *UserService) Delete(ctx context.Context, actor models.Actor, userID uint) error {
	if userID == 0 {
		return invalid("Invalid user.")
	}
	u, err := s.Get(ctx, actor.TenantID, userID)
	if err != nil {
		return err
	}
	if err := authzError(s.gate.Authorize(ctx, actor, gate.ActionDelete, policy.ResourceUser, u)); err != nil {
		return err
	}
	var keys []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", u.ID).Delete(&models.TeamMember{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ? AND user_id = ?", u.TenantID, u.ID).Delete(&models.DailyReport{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ? AND user_id = ?", u.TenantID, u.ID).Delete(&models.LeaveRequest{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ? AND user_id = ?", u.TenantID, u.ID).Delete(&models.EmployeeProfile{}).Error; err != nil {
			return err
		}
		var assigned []uint
		if err := tx.Model(&models.Task{}).Where("tenant_id = ? AND assigned_to = ?", u.TenantID, u.ID).Pluck("id", &assigned).Error; err != nil {
			return err
		}
		if len(assigned) > 0 {
			if err := tx.Model(&models.TaskAttachment{}).Where("task_id IN ?", assigned).Pluck("file_path", &keys).Error; err != nil {
				return err
			}
		}
		if err := deleteTaskChildren(tx, assigned); err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ? AND assigned_to = ?", u.TenantID, u.ID).Delete(&models.Task{}).Error; err != nil {
			return err
		}
		return tx.Where("tenant_id = ?", u.TenantID).Delete(u).Error
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	removeStoredFiles(ctx, s.store, s.log, keys)
	s.log.Info("user deleted", zap.Uint("user_id", u.ID), zap.Uint("tenant_id", u.TenantID))
	return nil
}

// deleteTaskChildren removes comments, activity and attachment rows of tasks.
func deleteTaskChildren(tx *gorm.DB, taskIDs []uint) error {
	if len(taskIDs) == 0 {
		return nil
	}
	for _, child := range []any{&models.TaskComment{}, &models.TaskActivity{}, &models.TaskAttachment{}} {
		if err := tx.Where("task_id IN ?", taskIDs).Delete(child).Error; err != nil {
			return err
		}
	}
	return nil
}
