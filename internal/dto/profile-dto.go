package dto

type UserProfileResponse struct {
	ID        uint    `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	AvatarURL *string `json:"avatar_url,omitempty"`

	Major     string `json:"major,omitempty"`
	Interests string `json:"interests,omitempty"`
	GroupID   *uint  `json:"group_id,omitempty"`

	Expertise string `json:"expertise,omitempty"`
	Quota     *int   `json:"quota,omitempty"`

	Faculty   string `json:"faculty,omitempty"`
	CreatedAt string `json:"created_at"`
}

type UpdateStudentRequest struct {
	Major     *string `json:"major"`
	Faculty   *string `json:"faculty"`
	Interests *string `json:"interests"`
}

type UpdateSupervisorRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Expertise *string `json:"expertise"`
	Faculty   *string `json:"faculty"`
	Quota     *int    `json:"quota"`
}
