package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ShixuDing/32933-project-match/internal/domain"
	"github.com/ShixuDing/32933-project-match/internal/dto"
	"github.com/ShixuDing/32933-project-match/internal/helper"
	"github.com/ShixuDing/32933-project-match/internal/helper/utils"
	"github.com/ShixuDing/32933-project-match/internal/interfaces"
	"github.com/ShixuDing/32933-project-match/internal/repository"
	imageutil "github.com/ShixuDing/32933-project-match/pkg/utils"
	"github.com/im7mortal/kmutex"
	"github.com/juju/errors"
	"gorm.io/gorm"
)

const (
	minPasswordLen = 6
	avatarMaxWidth = 512
	avatarQuality  = 85
	avatarFolder   = "projmatch/avatars"

	allocationAttempts = 3
)

type UserService interface {
	// Auth
	Register(ctx context.Context, input dto.RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, input dto.UserLogin) (*dto.TokenPair, error)
	Refresh(refreshToken string) (*dto.AccessToken, error)

	// Profile
	GetProfile(ctx context.Context, userID uint) (*dto.UserProfileResponse, error)
	UpdateStudent(ctx context.Context, userID uint, input dto.UpdateStudentRequest) (*dto.UserProfileResponse, error)
	UpdateSupervisor(ctx context.Context, userID uint, input dto.UpdateSupervisorRequest) (*dto.UserProfileResponse, error)
	UploadAvatar(ctx context.Context, userID uint, filename string, image []byte) (string, error)
	DeleteAccount(ctx context.Context, userID uint, password string) error
}

type UserServiceConfig struct {
	OrgDomain    string
	DefaultQuota int
}

type userService struct {
	db       *gorm.DB
	repo     repository.UserRepository
	auth     helper.Auth
	uploader interfaces.Uploader
	locks    *kmutex.Kmutex
	cfg      UserServiceConfig
}

// NewUserService wires the identity operations. locks must be the instance
// shared with the assignment service. uploader may be nil.
func NewUserService(
	db *gorm.DB,
	auth helper.Auth,
	uploader interfaces.Uploader,
	locks *kmutex.Kmutex,
	cfg UserServiceConfig,
) UserService {
	if locks == nil {
		locks = kmutex.New()
	}
	return &userService{
		db:       db,
		repo:     repository.NewUserRepository(db),
		auth:     auth,
		uploader: uploader,
		locks:    locks,
		cfg:      cfg,
	}
}

// AUTH

// Register creates a user and its role profile. The stored email is
// allocated from the names and the domain of the submitted address, so it may
// differ from the input by a -N suffix.
func (u *userService) Register(ctx context.Context, input dto.RegisterRequest) (*domain.User, error) {
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	email := utils.NormalizeEmail(input.Email)
	role := strings.ToLower(strings.TrimSpace(input.Role))

	if utils.NormalizeName(firstName) == "" || utils.NormalizeName(lastName) == "" || email == "" || input.Password == "" {
		return nil, errors.NewNotValid(nil, "first_name, last_name, email and password are required")
	}
	if role != domain.RoleStudent && role != domain.RoleSupervisor {
		return nil, errors.NewNotValid(nil, "role must be student or supervisor")
	}
	if len(input.Password) < minPasswordLen {
		return nil, errors.NewNotValid(nil, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}
	if err := utils.ValidateInstitutionalEmail(firstName, lastName, email, u.cfg.OrgDomain); err != nil {
		return nil, err
	}
	host, err := utils.ExtractEmailDomain(email)
	if err != nil {
		return nil, err
	}

	hashedPassword, err := helper.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	newUser := &domain.User{
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: hashedPassword,
		Role:         role,
	}
	if role == domain.RoleStudent {
		newUser.Student = &domain.StudentProfile{
			Major:     strings.TrimSpace(input.Major),
			Faculty:   strings.TrimSpace(input.Faculty),
			Interests: strings.TrimSpace(input.Interests),
		}
	} else {
		newUser.Supervisor = &domain.SupervisorProfile{
			Expertise: strings.TrimSpace(input.Expertise),
			Faculty:   strings.TrimSpace(input.Faculty),
			Quota:     u.cfg.DefaultQuota,
		}
	}

	base := utils.BaseEmail(firstName, lastName, host)
	local, _, _ := strings.Cut(base, "@")

	// One key per host: a literal "smith-1" surname shares candidates with
	// the suffixed "smith" allocations.
	u.locks.Lock("email:@" + host)
	defer u.locks.Unlock("email:@" + host)

	for attempt := 1; ; attempt++ {
		err = u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			users := repository.NewUserRepository(tx)

			existing, err := users.FindEmailsWithLocalPart(ctx, local, host)
			if err != nil {
				return err
			}
			taken := make(map[string]struct{}, len(existing))
			for _, e := range existing {
				taken[strings.ToLower(e)] = struct{}{}
			}
			newUser.Email = utils.AllocateEmail(firstName, lastName, host, func(e string) bool {
				_, ok := taken[e]
				return ok
			})

			_, err = users.CreateUser(ctx, newUser)
			return err
		})
		// another process may take the same address between read and insert
		if errors.Is(err, errors.AlreadyExists) && attempt < allocationAttempts {
			logger.Debugf("email %s taken concurrently, retrying", newUser.Email)
			resetIDs(newUser)
			continue
		}
		break
	}
	if err != nil {
		return nil, errors.Trace(err)
	}

	logger.Infof("registered %s %d as %s", role, newUser.ID, newUser.Email)
	return newUser, nil
}

func (u *userService) Login(ctx context.Context, input dto.UserLogin) (*dto.TokenPair, error) {
	email := utils.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, errors.NewNotValid(nil, "email and password are required")
	}

	user, err := u.repo.FindUserByEmail(ctx, email)
	if errors.Is(err, errors.NotFound) {
		return nil, errors.NewUnauthorized(nil, "invalid email or password")
	}
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err := u.auth.VerifyPassword(input.Password, user.PasswordHash); err != nil {
		return nil, err
	}

	access, err := u.auth.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, errors.Trace(err)
	}
	refresh, err := u.auth.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &dto.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    helper.TokenTypeBearer,
	}, nil
}

func (u *userService) Refresh(refreshToken string) (*dto.AccessToken, error) {
	access, err := u.auth.Refresh(refreshToken)
	if err != nil {
		return nil, err
	}
	return &dto.AccessToken{AccessToken: access, TokenType: helper.TokenTypeBearer}, nil
}

// PROFILE

func (u *userService) GetProfile(ctx context.Context, userID uint) (*dto.UserProfileResponse, error) {
	user, err := u.repo.FindUserById(ctx, userID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return toProfile(user), nil
}

func (u *userService) UpdateStudent(ctx context.Context, userID uint, input dto.UpdateStudentRequest) (*dto.UserProfileResponse, error) {
	fields := map[string]any{}
	if input.Major != nil {
		fields["major"] = strings.TrimSpace(*input.Major)
	}
	if input.Faculty != nil {
		fields["faculty"] = strings.TrimSpace(*input.Faculty)
	}
	if input.Interests != nil {
		fields["interests"] = strings.TrimSpace(*input.Interests)
	}

	students := repository.NewStudentProfileRepository(u.db)
	if _, err := students.FindByUserID(ctx, userID); err != nil {
		return nil, errors.Trace(err)
	}
	if err := students.Update(ctx, userID, fields); err != nil {
		return nil, errors.Trace(err)
	}
	return u.GetProfile(ctx, userID)
}

// UpdateSupervisor applies the allow-listed fields. Lowering the quota below
// the number of groups already supervised is refused.
func (u *userService) UpdateSupervisor(ctx context.Context, userID uint, input dto.UpdateSupervisorRequest) (*dto.UserProfileResponse, error) {
	userFields := map[string]any{}
	if input.FirstName != nil {
		v := strings.TrimSpace(*input.FirstName)
		if v == "" {
			return nil, errors.NewNotValid(nil, "first_name cannot be empty")
		}
		userFields["first_name"] = v
	}
	if input.LastName != nil {
		v := strings.TrimSpace(*input.LastName)
		if v == "" {
			return nil, errors.NewNotValid(nil, "last_name cannot be empty")
		}
		userFields["last_name"] = v
	}

	profileFields := map[string]any{}
	if input.Expertise != nil {
		profileFields["expertise"] = strings.TrimSpace(*input.Expertise)
	}
	if input.Faculty != nil {
		profileFields["faculty"] = strings.TrimSpace(*input.Faculty)
	}
	if input.Quota != nil {
		if *input.Quota < 0 {
			return nil, errors.NewNotValid(nil, "quota must not be negative")
		}
		profileFields["quota"] = *input.Quota
	}

	u.locks.Lock(supervisorKey(userID))
	defer u.locks.Unlock(supervisorKey(userID))

	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		supervisors := repository.NewSupervisorRepository(tx)
		if _, err := supervisors.LockByUserID(ctx, userID); err != nil {
			return err
		}
		if input.Quota != nil {
			assigned, err := repository.NewGroupRepository(tx).CountBySupervisor(ctx, userID, 0)
			if err != nil {
				return err
			}
			if int64(*input.Quota) < assigned {
				return errors.NewNotValid(nil, fmt.Sprintf("quota %d is below the %d groups already supervised", *input.Quota, assigned))
			}
		}
		if err := repository.NewUserRepository(tx).UpdateUser(ctx, userID, userFields); err != nil {
			return err
		}
		return supervisors.Update(ctx, userID, profileFields)
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return u.GetProfile(ctx, userID)
}

func (u *userService) UploadAvatar(ctx context.Context, userID uint, filename string, image []byte) (string, error) {
	if u.uploader == nil {
		return "", errors.NewNotProvisioned(nil, "avatar uploads are not configured")
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg", ".png", ".webp":
	default:
		return "", errors.NewNotValid(nil, "avatar must be a jpg, jpeg, png or webp file")
	}
	if _, err := u.repo.FindUserById(ctx, userID); err != nil {
		return "", errors.Trace(err)
	}

	normalized, err := imageutil.NormalizeToJPG(image, avatarMaxWidth, avatarQuality)
	if err != nil {
		return "", err
	}

	uploadCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	url, err := u.uploader.UploadBytes(uploadCtx, avatarFolder, fmt.Sprintf("user_%d", userID), normalized)
	if err != nil {
		return "", errors.Trace(err)
	}

	if err := u.repo.UpdateUser(ctx, userID, map[string]any{"avatar_url": url}); err != nil {
		return "", errors.Trace(err)
	}
	return url, nil
}

// DeleteAccount removes the caller after re-checking the password. A
// supervisor's projects go with it and groups lose their references to the
// supervisor and those projects.
func (u *userService) DeleteAccount(ctx context.Context, userID uint, password string) error {
	user, err := u.repo.FindUserById(ctx, userID)
	if err != nil {
		return errors.Trace(err)
	}
	if err := u.auth.VerifyPassword(password, user.PasswordHash); err != nil {
		return err
	}

	if user.IsSupervisor() {
		u.locks.Lock(supervisorKey(userID))
		defer u.locks.Unlock(supervisorKey(userID))
	} else {
		u.locks.Lock(studentKey(userID))
		defer u.locks.Unlock(studentKey(userID))
	}

	err = u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if user.IsSupervisor() {
			projects := repository.NewProjectRepository(tx)
			groups := repository.NewGroupRepository(tx)

			ids, err := projects.ListIDsBySupervisor(ctx, userID)
			if err != nil {
				return err
			}
			if err := groups.ClearProjectRefs(ctx, ids...); err != nil {
				return err
			}
			if err := projects.DeleteBySupervisor(ctx, userID); err != nil {
				return err
			}
			if err := groups.ClearSupervisorRefs(ctx, userID); err != nil {
				return err
			}
		}
		return repository.NewUserRepository(tx).DeleteUser(ctx, userID)
	})
	if err != nil {
		return errors.Trace(err)
	}

	logger.Infof("deleted %s account %d", user.Role, userID)
	return nil
}

func toProfile(user *domain.User) *dto.UserProfileResponse {
	out := &dto.UserProfileResponse{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Role:      user.Role,
		AvatarURL: user.AvatarURL,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
	switch {
	case user.Student != nil:
		out.Major = user.Student.Major
		out.Faculty = user.Student.Faculty
		out.Interests = user.Student.Interests
		out.GroupID = user.Student.GroupID
	case user.Supervisor != nil:
		quota := user.Supervisor.Quota
		out.Expertise = user.Supervisor.Expertise
		out.Faculty = user.Supervisor.Faculty
		out.Quota = &quota
	}
	return out
}

func resetIDs(user *domain.User) {
	user.ID = 0
	if user.Student != nil {
		user.Student.ID, user.Student.UserID = 0, 0
	}
	if user.Supervisor != nil {
		user.Supervisor.ID, user.Supervisor.UserID = 0, 0
	}
}
