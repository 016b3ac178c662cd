package dto

type CreateGroupRequest struct {
	GroupName string `json:"group_name"`
}

type JoinGroupRequest struct {
	GroupID uint `json:"group_id"`
}

type ApplyProjectRequest struct {
	ProjectID uint `json:"project_id"`
}

type GroupResponse struct {
	GroupID      uint   `json:"group_id"`
	GroupName    string `json:"group_name"`
	ProjectID    *uint  `json:"project_id"`
	SupervisorID *uint  `json:"supervisor_id"`
}

type GroupMembersResponse struct {
	GroupID   uint   `json:"group_id"`
	MemberIDs []uint `json:"member_ids"`
}
