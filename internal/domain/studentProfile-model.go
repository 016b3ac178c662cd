package domain

import "time"

// StudentProfile holds the student side of a User. GroupID is the only record
// of group membership, so a student is in at most one group.
type StudentProfile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Major     string    `gorm:"type:varchar(100)" json:"major"`
	Faculty   string    `gorm:"type:varchar(100)" json:"faculty"`
	Interests string    `json:"interests"`
	GroupID   *uint     `gorm:"index" json:"group_id"`
	Group     *Group    `gorm:"constraint:OnDelete:SET NULL" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
