package models

import "time"

// Tenant is an isolated company workspace identified by its slug (company code).
type Tenant struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Slug      string    `gorm:"uniqueIndex;size:64;not null" json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

// User belongs to exactly one tenant. Email is unique within the tenant only.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TenantID     uint      `gorm:"not null;uniqueIndex:idx_users_tenant_email,priority:1" json:"tenant_id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;not null;uniqueIndex:idx_users_tenant_email,priority:2" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"` // bcrypt digest, never exposed
	Role         Role      `gorm:"size:16;not null;default:user" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u *User) ScopeID() uint { return u.TenantID }

// Actor is the authenticated identity a request acts as.
// It is resolved once per request and passed explicitly to every operation.
type Actor struct {
	UserID   uint
	TenantID uint
	Role     Role
	Name     string
}

// ActorFor builds the actor value for a stored user.
func ActorFor(u *User) Actor {
	return Actor{UserID: u.ID, TenantID: u.TenantID, Role: u.Role, Name: u.Name}
}

func (a Actor) ScopeID() uint { return a.TenantID }

func (a Actor) IsAdmin() bool   { return a.Role == RoleAdmin }
func (a Actor) IsManager() bool { return a.Role.AtLeast(RoleManager) }
