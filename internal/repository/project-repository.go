package repository

import (
	"context"

	"github.com/ShixuDing/32933-project-match/internal/domain"
	"github.com/juju/errors"
	"gorm.io/gorm"
)

type ProjectRepository interface {
	Create(ctx context.Context, project *domain.Project) error
	FindByID(ctx context.Context, projectID uint) (*domain.Project, error)
	FindOwned(ctx context.Context, supervisorID, projectID uint) (*domain.Project, error)
	List(ctx context.Context) ([]domain.Project, error)
	ListBySupervisor(ctx context.Context, supervisorID uint) ([]domain.Project, error)
	ListIDsBySupervisor(ctx context.Context, supervisorID uint) ([]uint, error)
	Update(ctx context.Context, projectID uint, fields map[string]any) error
	Delete(ctx context.Context, projectID uint) error
	DeleteBySupervisor(ctx context.Context, supervisorID uint) error
}

type projectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return translate(err, "project %q", project.Title)
	}
	return nil
}

func (r *projectRepository) FindByID(ctx context.Context, projectID uint) (*domain.Project, error) {
	var project domain.Project
	if err := r.db.WithContext(ctx).First(&project, projectID).Error; err != nil {
		return nil, translate(err, "project %d", projectID)
	}
	return &project, nil
}

// FindOwned reports NotFound both for a missing project and for one owned by
// another supervisor.
func (r *projectRepository) FindOwned(ctx context.Context, supervisorID, projectID uint) (*domain.Project, error) {
	var project domain.Project
	err := r.db.WithContext(ctx).
		Where("id = ? AND supervisor_id = ?", projectID, supervisorID).
		First(&project).Error
	if err != nil {
		return nil, translate(err, "project %d of supervisor %d", projectID, supervisorID)
	}
	return &project, nil
}

func (r *projectRepository) List(ctx context.Context) ([]domain.Project, error) {
	projects := []domain.Project{}
	if err := r.db.WithContext(ctx).Order("id").Find(&projects).Error; err != nil {
		return nil, translate(err, "projects")
	}
	return projects, nil
}

func (r *projectRepository) ListBySupervisor(ctx context.Context, supervisorID uint) ([]domain.Project, error) {
	projects := []domain.Project{}
	err := r.db.WithContext(ctx).
		Where("supervisor_id = ?", supervisorID).
		Order("id").
		Find(&projects).Error
	if err != nil {
		return nil, translate(err, "projects of supervisor %d", supervisorID)
	}
	return projects, nil
}

func (r *projectRepository) ListIDsBySupervisor(ctx context.Context, supervisorID uint) ([]uint, error) {
	ids := []uint{}
	err := r.db.WithContext(ctx).
		Model(&domain.Project{}).
		Where("supervisor_id = ?", supervisorID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, translate(err, "projects of supervisor %d", supervisorID)
	}
	return ids, nil
}

func (r *projectRepository) Update(ctx context.Context, projectID uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&domain.Project{}).
		Where("id = ?", projectID).
		Updates(fields).Error
	return translate(err, "project %d", projectID)
}

func (r *projectRepository) Delete(ctx context.Context, projectID uint) error {
	res := r.db.WithContext(ctx).Delete(&domain.Project{}, projectID)
	if res.Error != nil {
		return translate(res.Error, "project %d", projectID)
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundf("project %d", projectID)
	}
	return nil
}

func (r *projectRepository) DeleteBySupervisor(ctx context.Context, supervisorID uint) error {
	err := r.db.WithContext(ctx).
		Where("supervisor_id = ?", supervisorID).
		Delete(&domain.Project{}).Error
	return translate(err, "projects of supervisor %d", supervisorID)
}
