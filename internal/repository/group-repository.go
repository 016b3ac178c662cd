package repository

import (
	"context"

	"github.com/ShixuDing/32933-project-match/internal/domain"
	"gorm.io/gorm"
)

type GroupRepository interface {
	Create(ctx context.Context, group *domain.Group) error
	FindByID(ctx context.Context, groupID uint) (*domain.Group, error)
	ListBySupervisor(ctx context.Context, supervisorID uint) ([]domain.Group, error)
	ListByProject(ctx context.Context, projectID uint) ([]domain.Group, error)
	CountBySupervisor(ctx context.Context, supervisorID, excludeGroupID uint) (int64, error)
	SetSupervisor(ctx context.Context, groupID uint, supervisorID *uint) error
	SetProject(ctx context.Context, groupID uint, projectID *uint) error
	ClearProjectRefs(ctx context.Context, projectIDs ...uint) error
	ClearSupervisorRefs(ctx context.Context, supervisorID uint) error
}

type groupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) Create(ctx context.Context, group *domain.Group) error {
	if err := r.db.WithContext(ctx).Create(group).Error; err != nil {
		return translate(err, "group %q", group.Name)
	}
	return nil
}

func (r *groupRepository) FindByID(ctx context.Context, groupID uint) (*domain.Group, error) {
	var group domain.Group
	if err := r.db.WithContext(ctx).First(&group, groupID).Error; err != nil {
		return nil, translate(err, "group %d", groupID)
	}
	return &group, nil
}

func (r *groupRepository) ListBySupervisor(ctx context.Context, supervisorID uint) ([]domain.Group, error) {
	groups := []domain.Group{}
	err := r.db.WithContext(ctx).
		Where("supervisor_id = ?", supervisorID).
		Order("id").
		Find(&groups).Error
	if err != nil {
		return nil, translate(err, "groups of supervisor %d", supervisorID)
	}
	return groups, nil
}

func (r *groupRepository) ListByProject(ctx context.Context, projectID uint) ([]domain.Group, error) {
	groups := []domain.Group{}
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("id").
		Find(&groups).Error
	if err != nil {
		return nil, translate(err, "groups applying to project %d", projectID)
	}
	return groups, nil
}

// CountBySupervisor counts the groups assigned to supervisorID, ignoring
// excludeGroupID (0 ignores nothing).
func (r *groupRepository) CountBySupervisor(ctx context.Context, supervisorID, excludeGroupID uint) (int64, error) {
	var n int64
	q := r.db.WithContext(ctx).
		Model(&domain.Group{}).
		Where("supervisor_id = ?", supervisorID)
	if excludeGroupID != 0 {
		q = q.Where("id <> ?", excludeGroupID)
	}
	if err := q.Count(&n).Error; err != nil {
		return 0, translate(err, "groups of supervisor %d", supervisorID)
	}
	return n, nil
}

func (r *groupRepository) SetSupervisor(ctx context.Context, groupID uint, supervisorID *uint) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Group{}).
		Where("id = ?", groupID).
		Update("supervisor_id", supervisorID).Error
	return translate(err, "group %d", groupID)
}

func (r *groupRepository) SetProject(ctx context.Context, groupID uint, projectID *uint) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Group{}).
		Where("id = ?", groupID).
		Update("project_id", projectID).Error
	return translate(err, "group %d", groupID)
}

func (r *groupRepository) ClearProjectRefs(ctx context.Context, projectIDs ...uint) error {
	if len(projectIDs) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&domain.Group{}).
		Where("project_id IN ?", projectIDs).
		Update("project_id", nil).Error
	return translate(err, "groups referencing projects %v", projectIDs)
}

func (r *groupRepository) ClearSupervisorRefs(ctx context.Context, supervisorID uint) error {
	err := r.db.WithContext(ctx).
		Model(&domain.Group{}).
		Where("supervisor_id = ?", supervisorID).
		Update("supervisor_id", nil).Error
	return translate(err, "groups of supervisor %d", supervisorID)
}
