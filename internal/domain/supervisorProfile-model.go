package domain

import "time"

type SupervisorProfile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Expertise string    `json:"expertise"`
	Faculty   string    `gorm:"type:varchar(100)" json:"faculty"`
	Quota     int       `gorm:"not null;default:0;check:quota >= 0" json:"quota"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
