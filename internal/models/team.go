package models

import "time"

type Team struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TenantID  uint      `gorm:"not null;index" json:"tenant_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func (t *Team) ScopeID() uint { return t.TenantID }

// TeamMember links a user to a team. The composite primary key makes a
// repeated add a no-op.
type TeamMember struct {
	TeamID    uint      `gorm:"primaryKey;autoIncrement:false" json:"team_id"`
	UserID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"user_id"`
	Role      string    `gorm:"size:32;not null;default:member" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

const DefaultMemberRole = "member"

type Project struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TenantID    uint      `gorm:"not null;index" json:"tenant_id"`
	TeamID      *uint     `gorm:"index" json:"team_id,omitempty"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description string    `gorm:"type:text;not null;default:''" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

func (p *Project) ScopeID() uint { return p.TenantID }
