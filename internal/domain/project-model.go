package domain

import "time"

const (
	ProjectStatusPending  = "Pending"
	ProjectStatusApproved = "Approved"
	ProjectStatusRejected = "Rejected"
)

const (
	ProjectModeGroup      = "group"
	ProjectModeIndividual = "individual"
)

type Project struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"type:varchar(200);not null" json:"title"`
	Description   string    `json:"description"`
	ResearchField string    `gorm:"type:varchar(100)" json:"research_field"`
	Mode          string    `gorm:"type:varchar(20)" json:"group_or_individual"`
	StartAt       time.Time `json:"project_start_time"`
	EndAt         time.Time `json:"project_end_time"`
	Grade         string    `gorm:"type:varchar(20);not null" json:"project_grade"`
	Status        string    `gorm:"type:varchar(20);not null;default:Pending" json:"project_status"`
	SupervisorID  uint      `gorm:"not null;index" json:"supervisor_id"`
	Supervisor    *User     `gorm:"foreignKey:SupervisorID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func ValidProjectDecision(status string) bool {
	return status == ProjectStatusApproved || status == ProjectStatusRejected
}
