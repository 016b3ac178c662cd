package dto

import "time"

type CreateProjectRequest struct {
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ResearchField string    `json:"research_field"`
	Mode          string    `json:"group_or_individual"`
	StartAt       time.Time `json:"project_start_time"`
	EndAt         time.Time `json:"project_end_time"`
}

// UpdateProjectRequest lists every field an owner may change. Nil means keep.
type UpdateProjectRequest struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	ResearchField *string    `json:"research_field"`
	Mode          *string    `json:"group_or_individual"`
	StartAt       *time.Time `json:"project_start_time"`
	EndAt         *time.Time `json:"project_end_time"`
	Grade         *string    `json:"project_grade"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}
