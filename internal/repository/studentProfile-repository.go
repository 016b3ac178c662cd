package repository

import (
	"context"

	"github.com/ShixuDing/32933-project-match/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StudentProfileRepository interface {
	FindByUserID(ctx context.Context, userID uint) (*domain.StudentProfile, error)
	LockByUserID(ctx context.Context, userID uint) (*domain.StudentProfile, error)
	Update(ctx context.Context, userID uint, fields map[string]any) error
	SetGroup(ctx context.Context, userID uint, groupID *uint) error
	ListMemberIDs(ctx context.Context, groupID uint) ([]uint, error)
	ListMemberEmails(ctx context.Context, groupID uint) ([]string, error)
}

type studentProfileRepository struct {
	db *gorm.DB
}

func NewStudentProfileRepository(db *gorm.DB) StudentProfileRepository {
	return &studentProfileRepository{db: db}
}

func (s *studentProfileRepository) FindByUserID(ctx context.Context, userID uint) (*domain.StudentProfile, error) {
	var profile domain.StudentProfile
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error; err != nil {
		return nil, translate(err, "student %d", userID)
	}
	return &profile, nil
}

// LockByUserID reads the profile with a row lock held until the surrounding
// transaction ends.
func (s *studentProfileRepository) LockByUserID(ctx context.Context, userID uint) (*domain.StudentProfile, error) {
	var profile domain.StudentProfile
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&profile).Error
	if err != nil {
		return nil, translate(err, "student %d", userID)
	}
	return &profile, nil
}

func (s *studentProfileRepository) Update(ctx context.Context, userID uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Model(&domain.StudentProfile{}).
		Where("user_id = ?", userID).
		Updates(fields).Error
	return translate(err, "student %d", userID)
}

func (s *studentProfileRepository) SetGroup(ctx context.Context, userID uint, groupID *uint) error {
	err := s.db.WithContext(ctx).
		Model(&domain.StudentProfile{}).
		Where("user_id = ?", userID).
		Update("group_id", groupID).Error
	return translate(err, "student %d", userID)
}

func (s *studentProfileRepository) ListMemberIDs(ctx context.Context, groupID uint) ([]uint, error) {
	ids := []uint{}
	err := s.db.WithContext(ctx).
		Model(&domain.StudentProfile{}).
		Where("group_id = ?", groupID).
		Order("user_id").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, translate(err, "members of group %d", groupID)
	}
	return ids, nil
}

func (s *studentProfileRepository) ListMemberEmails(ctx context.Context, groupID uint) ([]string, error) {
	emails := []string{}
	err := s.db.WithContext(ctx).
		Model(&domain.User{}).
		Joins("JOIN student_profiles ON student_profiles.user_id = users.id").
		Where("student_profiles.group_id = ?", groupID).
		Order("users.id").
		Pluck("users.email", &emails).Error
	if err != nil {
		return nil, translate(err, "member emails of group %d", groupID)
	}
	return emails, nil
}
