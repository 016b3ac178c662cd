package domain

import "time"

// Group references at most one supervisor and one applied project. Both are
// weak references: deleting the target clears the column. project_id carries
// no foreign key because applying does not check the project.
type Group struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"group_name"`
	ProjectID    *uint     `gorm:"index" json:"project_id"`
	SupervisorID *uint     `gorm:"index" json:"supervisor_id"`
	Supervisor   *User     `gorm:"foreignKey:SupervisorID;constraint:OnDelete:SET NULL" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
