package domain

import "time"

const (
	RoleStudent    = "student"
	RoleSupervisor = "supervisor"
)

// User is the single identity table for both roles. Role-specific attributes
// live in exactly one of Student or Supervisor, selected by Role.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	FirstName    string    `gorm:"type:varchar(100);not null" json:"first_name"`
	LastName     string    `gorm:"type:varchar(100);not null" json:"last_name"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Role         string    `gorm:"type:varchar(20);not null;index" json:"role"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Student    *StudentProfile    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"student,omitempty"`
	Supervisor *SupervisorProfile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"supervisor,omitempty"`
}

func (u *User) IsStudent() bool    { return u.Role == RoleStudent }
func (u *User) IsSupervisor() bool { return u.Role == RoleSupervisor }
