package repository

import (
	"context"

	"github.com/ShixuDing/32933-project-match/internal/domain"
	"github.com/juju/errors"
	"gorm.io/gorm"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserById(ctx context.Context, userID uint) (*domain.User, error)
	FindEmailsWithLocalPart(ctx context.Context, local, domain string) ([]string, error)
	UpdateUser(ctx context.Context, userID uint, fields map[string]any) error
	DeleteUser(ctx context.Context, userID uint) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// CreateUser inserts the user together with whichever profile is attached.
func (r *userRepository) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, errors.New("nil user")
	}

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, translate(err, "user with email %q", user.Email)
	}
	return user, nil
}

func (r *userRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Supervisor").
		First(user, "email = ?", email).Error
	if err != nil {
		return nil, translate(err, "user with email %q", email)
	}
	return user, nil
}

func (r *userRepository) FindUserById(ctx context.Context, userID uint) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Supervisor").
		First(user, userID).Error
	if err != nil {
		return nil, translate(err, "user %d", userID)
	}
	return user, nil
}

// FindEmailsWithLocalPart returns every stored email equal to local@domain or
// of the form local-N@domain. The result may contain extra rows that the
// caller filters exactly.
func (r *userRepository) FindEmailsWithLocalPart(ctx context.Context, local, host string) ([]string, error) {
	base := local + "@" + host
	var emails []string
	err := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("email = ? OR email LIKE ?", base, local+"-%@"+host).
		Pluck("email", &emails).Error
	if err != nil {
		return nil, translate(err, "emails for %q", base)
	}
	return emails, nil
}

func (r *userRepository) UpdateUser(ctx context.Context, userID uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", userID).
		Updates(fields).Error
	return translate(err, "user %d", userID)
}

// DeleteUser removes the user and its role profile.
func (r *userRepository) DeleteUser(ctx context.Context, userID uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("user_id = ?", userID).Delete(&domain.StudentProfile{}).Error; err != nil {
		return translate(err, "student profile %d", userID)
	}
	if err := db.Where("user_id = ?", userID).Delete(&domain.SupervisorProfile{}).Error; err != nil {
		return translate(err, "supervisor profile %d", userID)
	}
	res := db.Delete(&domain.User{}, userID)
	if res.Error != nil {
		return translate(res.Error, "user %d", userID)
	}
	if res.RowsAffected == 0 {
		return errors.NotFoundf("user %d", userID)
	}
	return nil
}
