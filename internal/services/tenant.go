package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/diewo77/taskflow/auth"
	"github.com/diewo77/taskflow/internal/models"
	"github.com/diewo77/taskflow/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MinPasswordLength applies to registration and admin-created accounts.
const MinPasswordLength = 6

type RegisterInput struct {
	Name        string
	Email       string
	Company     string
	CompanySlug string
	Password    string
}

func (in *RegisterInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Company = strings.TrimSpace(in.Company)
	in.CompanySlug = normalizeSlug(in.CompanySlug)
}

func normalizeSlug(s string) string  { return strings.ToLower(strings.TrimSpace(s)) }
func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// TenantService is the tenant directory: slug lookup and self-service registration.
type TenantService struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewTenantService(db *gorm.DB, log *zap.Logger) *TenantService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TenantService{db: db, log: log}
}

// ResolveSlug finds a tenant by its company code.
func (s *TenantService) ResolveSlug(ctx context.Context, slug string) (*models.Tenant, error) {
	slug = normalizeSlug(slug)
	if slug == "" {
		return nil, ErrNotFound
	}
	var t models.Tenant
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func validateRegistration(in RegisterInput) error {
	v := make(validation.Violations)
	validation.Required("name", in.Name, v)
	validation.Required("email", in.Email, v)
	validation.Required("company", in.Company, v)
	validation.Required("company_slug", in.CompanySlug, v)
	validation.Required("password", in.Password, v)
	if !v.Empty() {
		return invalidFields("All fields are required.", v)
	}
	if validation.Email("email", in.Email, v); !v.Empty() {
		return invalidFields("Please enter a valid email.", v)
	}
	if len(in.Password) < MinPasswordLength {
		v.Add("password", "too_short")
		return invalidFields("Password must be at least 6 characters.", v)
	}
	if validation.Slug("company_slug", in.CompanySlug, v); !v.Empty() {
		return invalidFields("Company code can only include lowercase letters, numbers, and dashes.", v)
	}
	return nil
}

var errSlugTaken = errors.New("tenant slug taken concurrently")

// Register creates the tenant on first use of a company code, making the
// registrant its admin; later registrants join the existing tenant as users.
func (s *TenantService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.normalize()
	if err := validateRegistration(in); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// A second attempt only happens when another registration created the
	// same slug between our lookup and insert; it then joins that tenant.
	for attempt := 0; attempt < 2; attempt++ {
		user, err := s.register(ctx, in, hash)
		if errors.Is(err, errSlugTaken) {
			continue
		}
		return user, err
	}
	return nil, &ConflictError{Field: "company_slug", Message: "Unable to create account."}
}

func (s *TenantService) register(ctx context.Context, in RegisterInput, hash string) (*models.User, error) {
	var user models.User
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tenant models.Tenant
		err := tx.Where("slug = ?", in.CompanySlug).First(&tenant).Error
		role := models.RoleUser
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			tenant = models.Tenant{Name: in.Company, Slug: in.CompanySlug}
			if err := tx.Create(&tenant).Error; err != nil {
				if isUniqueViolation(err) {
					return errSlugTaken
				}
				return fmt.Errorf("create tenant: %w", err)
			}
			role = models.RoleAdmin
			created = true
		case err != nil:
			return fmt.Errorf("lookup tenant: %w", err)
		}

		var count int64
		if err := tx.Model(&models.User{}).Where("tenant_id = ? AND email = ?", tenant.ID, in.Email).Count(&count).Error; err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if count > 0 {
			return &ConflictError{Field: "email", Message: "Email already registered for this company."}
		}
		user = models.User{TenantID: tenant.ID, Name: in.Name, Email: in.Email, PasswordHash: hash, Role: role}
		if err := tx.Create(&user).Error; err != nil {
			if isUniqueViolation(err) {
				return &ConflictError{Field: "email", Message: "Email already registered for this company."}
			}
			return fmt.Errorf("create user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Info("tenant created", zap.String("slug", in.CompanySlug), zap.Uint("tenant_id", user.TenantID))
	}
	s.log.Info("user registered", zap.Uint("user_id", user.ID), zap.Uint("tenant_id", user.TenantID), zap.String("role", string(user.Role)))
	return &user, nil
}
