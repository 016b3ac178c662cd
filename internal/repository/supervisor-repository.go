package repository

import (
	"context"

	"github.com/ShixuDing/32933-project-match/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SupervisorRepository interface {
	FindByUserID(ctx context.Context, userID uint) (*domain.SupervisorProfile, error)
	LockByUserID(ctx context.Context, userID uint) (*domain.SupervisorProfile, error)
	ListByUserIDs(ctx context.Context, userIDs []uint) ([]domain.SupervisorProfile, error)
	Update(ctx context.Context, userID uint, fields map[string]any) error
}

type supervisorRepository struct {
	db *gorm.DB
}

func NewSupervisorRepository(db *gorm.DB) SupervisorRepository {
	return &supervisorRepository{db: db}
}

func (r *supervisorRepository) FindByUserID(ctx context.Context, userID uint) (*domain.SupervisorProfile, error) {
	var profile domain.SupervisorProfile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, translate(err, "supervisor %d", userID)
	}
	return &profile, nil
}

// LockByUserID takes SELECT ... FOR UPDATE on the profile row, serializing
// quota checks for one supervisor across instances.
func (r *supervisorRepository) LockByUserID(ctx context.Context, userID uint) (*domain.SupervisorProfile, error) {
	var profile domain.SupervisorProfile
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&profile).Error
	if err != nil {
		return nil, translate(err, "supervisor %d", userID)
	}
	return &profile, nil
}

func (r *supervisorRepository) ListByUserIDs(ctx context.Context, userIDs []uint) ([]domain.SupervisorProfile, error) {
	profiles := []domain.SupervisorProfile{}
	if len(userIDs) == 0 {
		return profiles, nil
	}
	if err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&profiles).Error; err != nil {
		return nil, translate(err, "supervisors %v", userIDs)
	}
	return profiles, nil
}

func (r *supervisorRepository) Update(ctx context.Context, userID uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&domain.SupervisorProfile{}).
		Where("user_id = ?", userID).
		Updates(fields).Error
	return translate(err, "supervisor %d", userID)
}
