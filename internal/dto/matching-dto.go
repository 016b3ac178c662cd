package dto

type AnalyzeRequest struct {
	UserInput        string  `json:"user_input"`
	StudentMajor     *string `json:"student_major,omitempty"`
	StudentInterests *string `json:"student_interests,omitempty"`
	StudentFaculty   *string `json:"student_faculty,omitempty"`
}

// Requirements is the structured result of requirement analysis.
type Requirements struct {
	Fields   []string `json:"fields"`
	Keywords []string `json:"keywords"`
	Features []string `json:"features"`
}

func (r *Requirements) Empty() bool {
	return r == nil || (len(r.Fields) == 0 && len(r.Keywords) == 0 && len(r.Features) == 0)
}

// ProjectCandidate is the reduced projection of a project used for ranking.
// ID is whatever the caller sent (number or string).
type ProjectCandidate struct {
	ID                  any      `json:"id"`
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	Field               string   `json:"field"`
	ProjectType         string   `json:"project_type,omitempty"`
	SupervisorExpertise []string `json:"supervisor_expertise,omitempty"`
}

type RankRequest struct {
	Requirements *Requirements      `json:"requirements"`
	Projects     []ProjectCandidate `json:"projects"`
}

type RankedProject struct {
	ProjectCandidate
	Score     *float64 `json:"score"`
	Reasoning string   `json:"reasoning"`
}

type RankResponse struct {
	RankedProjects []RankedProject `json:"ranked_projects"`
}

type RecommendRequest struct {
	UserInput string `json:"user_input"`
}

type RecommendResponse struct {
	Requirements   *Requirements   `json:"requirements"`
	RankedProjects []RankedProject `json:"ranked_projects"`
}
