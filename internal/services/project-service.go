package services

import (
	"context"
	"strings"

	"github.com/ShixuDing/32933-project-match/internal/domain"
	"github.com/ShixuDing/32933-project-match/internal/dto"
	"github.com/ShixuDing/32933-project-match/internal/repository"
	"github.com/juju/errors"
	"gorm.io/gorm"
)

type ProjectService interface {
	Create(ctx context.Context, ownerID uint, input dto.CreateProjectRequest) (*domain.Project, error)
	Update(ctx context.Context, supervisorID, projectID uint, input dto.UpdateProjectRequest) (*domain.Project, error)
	Delete(ctx context.Context, supervisorID, projectID uint) error
	Get(ctx context.Context, projectID uint) (*domain.Project, error)
	List(ctx context.Context) ([]domain.Project, error)
	ListBySupervisor(ctx context.Context, supervisorID uint) ([]domain.Project, error)
	Candidates(ctx context.Context) ([]dto.ProjectCandidate, error)
}

type projectService struct {
	db   *gorm.DB
	repo repository.ProjectRepository
}

func NewProjectService(db *gorm.DB) ProjectService {
	return &projectService{
		db:   db,
		repo: repository.NewProjectRepository(db),
	}
}

// Create stores a Pending project owned by ownerID. Supervisors create through
// their own route; any other authenticated user may also act as creator.
func (p *projectService) Create(ctx context.Context, ownerID uint, input dto.CreateProjectRequest) (*domain.Project, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, errors.NewNotValid(nil, "title is required")
	}
	mode, err := normalizeMode(input.Mode)
	if err != nil {
		return nil, err
	}
	if !input.StartAt.IsZero() && !input.EndAt.IsZero() && input.StartAt.After(input.EndAt) {
		return nil, errors.NewNotValid(nil, "project_start_time must not be after project_end_time")
	}

	if _, err := repository.NewUserRepository(p.db).FindUserById(ctx, ownerID); err != nil {
		return nil, errors.Trace(err)
	}

	project := &domain.Project{
		Title:         title,
		Description:   strings.TrimSpace(input.Description),
		ResearchField: strings.TrimSpace(input.ResearchField),
		Mode:          mode,
		StartAt:       input.StartAt,
		EndAt:         input.EndAt,
		Status:        domain.ProjectStatusPending,
		SupervisorID:  ownerID,
	}
	if err := p.repo.Create(ctx, project); err != nil {
		return nil, errors.Trace(err)
	}
	logger.Infof("project %d created by user %d", project.ID, ownerID)
	return project, nil
}

func (p *projectService) Update(ctx context.Context, supervisorID, projectID uint, input dto.UpdateProjectRequest) (*domain.Project, error) {
	current, err := p.repo.FindOwned(ctx, supervisorID, projectID)
	if err != nil {
		return nil, errors.Trace(err)
	}

	fields := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, errors.NewNotValid(nil, "title cannot be empty")
		}
		fields["title"] = title
	}
	if input.Description != nil {
		fields["description"] = strings.TrimSpace(*input.Description)
	}
	if input.ResearchField != nil {
		fields["research_field"] = strings.TrimSpace(*input.ResearchField)
	}
	if input.Mode != nil {
		mode, err := normalizeMode(*input.Mode)
		if err != nil {
			return nil, err
		}
		fields["mode"] = mode
	}
	if input.Grade != nil {
		fields["grade"] = strings.TrimSpace(*input.Grade)
	}

	start, end := current.StartAt, current.EndAt
	if input.StartAt != nil {
		start = *input.StartAt
		fields["start_at"] = start
	}
	if input.EndAt != nil {
		end = *input.EndAt
		fields["end_at"] = end
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return nil, errors.NewNotValid(nil, "project_start_time must not be after project_end_time")
	}

	if err := p.repo.Update(ctx, projectID, fields); err != nil {
		return nil, errors.Trace(err)
	}
	return p.Get(ctx, projectID)
}

// Delete removes an owned project. Groups that applied to it keep existing
// with no project.
func (p *projectService) Delete(ctx context.Context, supervisorID, projectID uint) error {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projects := repository.NewProjectRepository(tx)
		if _, err := projects.FindOwned(ctx, supervisorID, projectID); err != nil {
			return err
		}
		if err := repository.NewGroupRepository(tx).ClearProjectRefs(ctx, projectID); err != nil {
			return err
		}
		return projects.Delete(ctx, projectID)
	})
	if err != nil {
		return errors.Trace(err)
	}
	logger.Infof("project %d deleted by supervisor %d", projectID, supervisorID)
	return nil
}

func (p *projectService) Get(ctx context.Context, projectID uint) (*domain.Project, error) {
	project, err := p.repo.FindByID(ctx, projectID)
	return project, errors.Trace(err)
}

func (p *projectService) List(ctx context.Context) ([]domain.Project, error) {
	projects, err := p.repo.List(ctx)
	return projects, errors.Trace(err)
}

func (p *projectService) ListBySupervisor(ctx context.Context, supervisorID uint) ([]domain.Project, error) {
	projects, err := p.repo.ListBySupervisor(ctx, supervisorID)
	return projects, errors.Trace(err)
}

// Candidates projects every stored project into the shape ranking consumes.
func (p *projectService) Candidates(ctx context.Context) ([]dto.ProjectCandidate, error) {
	projects, err := p.repo.List(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}

	ownerIDs := make([]uint, 0, len(projects))
	for _, project := range projects {
		ownerIDs = append(ownerIDs, project.SupervisorID)
	}
	profiles, err := repository.NewSupervisorRepository(p.db).ListByUserIDs(ctx, ownerIDs)
	if err != nil {
		return nil, errors.Trace(err)
	}
	expertise := make(map[uint][]string, len(profiles))
	for _, profile := range profiles {
		expertise[profile.UserID] = splitExpertise(profile.Expertise)
	}

	candidates := make([]dto.ProjectCandidate, 0, len(projects))
	for _, project := range projects {
		candidates = append(candidates, dto.ProjectCandidate{
			ID:                  project.ID,
			Name:                project.Title,
			Description:         project.Description,
			Field:               project.ResearchField,
			ProjectType:         project.Mode,
			SupervisorExpertise: expertise[project.SupervisorID],
		})
	}
	return candidates, nil
}

func normalizeMode(mode string) (string, error) {
	switch m := strings.ToLower(strings.TrimSpace(mode)); m {
	case "":
		return domain.ProjectModeGroup, nil
	case domain.ProjectModeGroup, domain.ProjectModeIndividual:
		return m, nil
	default:
		return "", errors.NewNotValid(nil, "group_or_individual must be group or individual")
	}
}

func splitExpertise(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
