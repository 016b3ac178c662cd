package dto

import "time"

const (
	EventGroupCreated            = "group.created"
	EventGroupJoined             = "group.joined"
	EventGroupLeft               = "group.left"
	EventGroupProjectApplied     = "group.project_applied"
	EventGroupSupervisorAssigned = "group.supervisor_assigned"
	EventGroupSupervisorRemoved  = "group.supervisor_removed"
	EventProjectStatusUpdated    = "project.status_updated"
)

// AssignmentEvent is published after an assignment change commits and is
// consumed by the notifier.
type AssignmentEvent struct {
	Type         string    `json:"type"`
	GroupID      uint      `json:"group_id,omitempty"`
	GroupName    string    `json:"group_name,omitempty"`
	ProjectID    *uint     `json:"project_id,omitempty"`
	SupervisorID *uint     `json:"supervisor_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	Recipients   []string  `json:"recipients"`
	OccurredAt   time.Time `json:"occurred_at"`
}
