package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ShixuDing/32933-project-match/internal/domain"
	"github.com/ShixuDing/32933-project-match/internal/dto"
	"github.com/ShixuDing/32933-project-match/internal/interfaces"
	"github.com/ShixuDing/32933-project-match/internal/metrics"
	"github.com/ShixuDing/32933-project-match/internal/repository"
	"github.com/im7mortal/kmutex"
	"github.com/juju/errors"
	"gorm.io/gorm"
)

// AssignmentService owns group membership, supervisor assignment and project
// decisions. Callers authorize; the service only enforces state rules.
type AssignmentService interface {
	CreateGroup(ctx context.Context, studentID uint, name string) (*domain.Group, error)
	JoinGroup(ctx context.Context, studentID, groupID uint) (*domain.Group, error)
	QuitGroup(ctx context.Context, studentID uint) error
	FindGroup(ctx context.Context, groupID uint) (*domain.Group, error)
	StudentGroup(ctx context.Context, studentID uint) (*domain.Group, error)
	GroupMembers(ctx context.Context, groupID uint) ([]uint, error)
	ApplyProject(ctx context.Context, groupID, projectID uint) (*domain.Group, error)
	AssignGroupToSupervisor(ctx context.Context, supervisorID, groupID uint) (*domain.Group, error)
	RemoveGroupFromSupervisor(ctx context.Context, groupID uint) (*domain.Group, error)
	SupervisedGroups(ctx context.Context, supervisorID uint) ([]domain.Group, error)
	UpdateProjectStatus(ctx context.Context, projectID uint, status string) (*domain.Project, error)
}

type assignmentService struct {
	db       *gorm.DB
	locks    *kmutex.Kmutex
	producer interfaces.ProducerHandler
	metrics  *metrics.Collector
}

func NewAssignmentService(
	db *gorm.DB,
	locks *kmutex.Kmutex,
	producer interfaces.ProducerHandler,
	collector *metrics.Collector,
) AssignmentService {
	if locks == nil {
		locks = kmutex.New()
	}
	return &assignmentService{
		db:       db,
		locks:    locks,
		producer: producer,
		metrics:  collector,
	}
}

func studentKey(id uint) string    { return fmt.Sprintf("student:%d", id) }
func supervisorKey(id uint) string { return fmt.Sprintf("supervisor:%d", id) }

// locked runs fn while holding the in-process lock for key. The lock is taken
// before any connection is borrowed from the pool.
func (s *assignmentService) locked(key string, fn func() error) error {
	s.locks.Lock(key)
	defer s.locks.Unlock(key)
	return fn()
}

func (s *assignmentService) CreateGroup(ctx context.Context, studentID uint, name string) (*domain.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewNotValid(nil, "group name is required")
	}

	group := &domain.Group{Name: name}
	var recipients []string
	err := s.locked(studentKey(studentID), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			students := repository.NewStudentProfileRepository(tx)

			profile, err := students.LockByUserID(ctx, studentID)
			if err != nil {
				return err
			}
			if profile.GroupID != nil {
				return errors.NewBadRequest(nil, fmt.Sprintf("student %d is already in group %d", studentID, *profile.GroupID))
			}
			if err := repository.NewGroupRepository(tx).Create(ctx, group); err != nil {
				return err
			}
			if err := students.SetGroup(ctx, studentID, &group.ID); err != nil {
				return err
			}
			recipients, err = students.ListMemberEmails(ctx, group.ID)
			return err
		})
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	logger.Infof("student %d created group %d %q", studentID, group.ID, group.Name)
	s.publish(dto.AssignmentEvent{
		Type:       dto.EventGroupCreated,
		GroupID:    group.ID,
		GroupName:  group.Name,
		Recipients: recipients,
	})
	return group, nil
}

func (s *assignmentService) JoinGroup(ctx context.Context, studentID, groupID uint) (*domain.Group, error) {
	var group *domain.Group
	var recipients []string
	err := s.locked(studentKey(studentID), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			students := repository.NewStudentProfileRepository(tx)

			profile, err := students.LockByUserID(ctx, studentID)
			if err != nil {
				return err
			}
			if profile.GroupID != nil {
				if *profile.GroupID == groupID {
					return errors.NewBadRequest(nil, fmt.Sprintf("student %d is already a member of group %d", studentID, groupID))
				}
				return errors.NewBadRequest(nil, fmt.Sprintf("student %d is already in group %d", studentID, *profile.GroupID))
			}
			group, err = repository.NewGroupRepository(tx).FindByID(ctx, groupID)
			if err != nil {
				return err
			}
			if err := students.SetGroup(ctx, studentID, &group.ID); err != nil {
				return err
			}
			recipients, err = s.groupRecipients(ctx, tx, group)
			return err
		})
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	logger.Infof("student %d joined group %d", studentID, group.ID)
	s.publish(dto.AssignmentEvent{
		Type:         dto.EventGroupJoined,
		GroupID:      group.ID,
		GroupName:    group.Name,
		SupervisorID: group.SupervisorID,
		Recipients:   recipients,
	})
	return group, nil
}

// QuitGroup leaves an emptied group in place.
func (s *assignmentService) QuitGroup(ctx context.Context, studentID uint) error {
	var group *domain.Group
	var recipients []string
	err := s.locked(studentKey(studentID), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			students := repository.NewStudentProfileRepository(tx)

			profile, err := students.LockByUserID(ctx, studentID)
			if err != nil {
				return err
			}
			if profile.GroupID == nil {
				return errors.NewBadRequest(nil, fmt.Sprintf("student %d is not in any group", studentID))
			}
			group, err = repository.NewGroupRepository(tx).FindByID(ctx, *profile.GroupID)
			if err != nil {
				return err
			}
			// the leaver still gets told
			recipients, err = s.groupRecipients(ctx, tx, group)
			if err != nil {
				return err
			}
			return students.SetGroup(ctx, studentID, nil)
		})
	})
	if err != nil {
		return errors.Trace(err)
	}

	logger.Infof("student %d left group %d", studentID, group.ID)
	s.publish(dto.AssignmentEvent{
		Type:         dto.EventGroupLeft,
		GroupID:      group.ID,
		GroupName:    group.Name,
		SupervisorID: group.SupervisorID,
		Recipients:   recipients,
	})
	return nil
}

func (s *assignmentService) FindGroup(ctx context.Context, groupID uint) (*domain.Group, error) {
	group, err := repository.NewGroupRepository(s.db).FindByID(ctx, groupID)
	return group, errors.Trace(err)
}

func (s *assignmentService) StudentGroup(ctx context.Context, studentID uint) (*domain.Group, error) {
	profile, err := repository.NewStudentProfileRepository(s.db).FindByUserID(ctx, studentID)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if profile.GroupID == nil {
		return nil, errors.NewBadRequest(nil, fmt.Sprintf("student %d is not in any group", studentID))
	}
	return s.FindGroup(ctx, *profile.GroupID)
}

func (s *assignmentService) GroupMembers(ctx context.Context, groupID uint) ([]uint, error) {
	if _, err := s.FindGroup(ctx, groupID); err != nil {
		return nil, err
	}
	ids, err := repository.NewStudentProfileRepository(s.db).ListMemberIDs(ctx, groupID)
	return ids, errors.Trace(err)
}

// ApplyProject records the group's chosen project. The project is not
// checked for existence or availability.
func (s *assignmentService) ApplyProject(ctx context.Context, groupID, projectID uint) (*domain.Group, error) {
	var group *domain.Group
	var recipients []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		groups := repository.NewGroupRepository(tx)

		var err error
		group, err = groups.FindByID(ctx, groupID)
		if err != nil {
			return err
		}
		if err := groups.SetProject(ctx, groupID, &projectID); err != nil {
			return err
		}
		group.ProjectID = &projectID
		recipients, err = s.groupRecipients(ctx, tx, group)
		return err
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	logger.Infof("group %d applied for project %d", groupID, projectID)
	s.publish(dto.AssignmentEvent{
		Type:         dto.EventGroupProjectApplied,
		GroupID:      group.ID,
		GroupName:    group.Name,
		ProjectID:    group.ProjectID,
		SupervisorID: group.SupervisorID,
		Recipients:   recipients,
	})
	return group, nil
}

// AssignGroupToSupervisor sets the group's supervisor if the supervisor has
// spare quota. The count and the write happen under the supervisor's lock and
// a row lock on its profile, so concurrent calls cannot exceed the quota.
// Re-assigning a group the supervisor already holds does not count twice.
func (s *assignmentService) AssignGroupToSupervisor(ctx context.Context, supervisorID, groupID uint) (*domain.Group, error) {
	var group *domain.Group
	var recipients []string
	err := s.locked(supervisorKey(supervisorID), func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			groups := repository.NewGroupRepository(tx)

			supervisor, err := repository.NewSupervisorRepository(tx).LockByUserID(ctx, supervisorID)
			if err != nil {
				return err
			}
			group, err = groups.FindByID(ctx, groupID)
			if err != nil {
				return err
			}
			count, err := groups.CountBySupervisor(ctx, supervisorID, group.ID)
			if err != nil {
				return err
			}
			if count >= int64(supervisor.Quota) {
				s.metrics.QuotaRejected()
				return errors.NewQuotaLimitExceeded(nil, fmt.Sprintf("supervisor %d quota exceeded (%d of %d groups)", supervisorID, count, supervisor.Quota))
			}
			if err := groups.SetSupervisor(ctx, group.ID, &supervisorID); err != nil {
				return err
			}
			group.SupervisorID = &supervisorID
			recipients, err = s.groupRecipients(ctx, tx, group)
			return err
		})
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	logger.Infof("group %d assigned to supervisor %d", group.ID, supervisorID)
	s.publish(dto.AssignmentEvent{
		Type:         dto.EventGroupSupervisorAssigned,
		GroupID:      group.ID,
		GroupName:    group.Name,
		ProjectID:    group.ProjectID,
		SupervisorID: group.SupervisorID,
		Recipients:   recipients,
	})
	return group, nil
}

func (s *assignmentService) RemoveGroupFromSupervisor(ctx context.Context, groupID uint) (*domain.Group, error) {
	var group *domain.Group
	var previous *uint
	var recipients []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		groups := repository.NewGroupRepository(tx)

		var err error
		group, err = groups.FindByID(ctx, groupID)
		if err != nil {
			return err
		}
		// collect while the old supervisor is still attached
		recipients, err = s.groupRecipients(ctx, tx, group)
		if err != nil {
			return err
		}
		previous = group.SupervisorID
		if err := groups.SetSupervisor(ctx, groupID, nil); err != nil {
			return err
		}
		group.SupervisorID = nil
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	logger.Infof("group %d released from supervisor %v", groupID, derefOrNil(previous))
	s.publish(dto.AssignmentEvent{
		Type:         dto.EventGroupSupervisorRemoved,
		GroupID:      group.ID,
		GroupName:    group.Name,
		SupervisorID: previous,
		Recipients:   recipients,
	})
	return group, nil
}

func (s *assignmentService) SupervisedGroups(ctx context.Context, supervisorID uint) ([]domain.Group, error) {
	groups, err := repository.NewGroupRepository(s.db).ListBySupervisor(ctx, supervisorID)
	return groups, errors.Trace(err)
}

// UpdateProjectStatus overwrites the status with Approved or Rejected. Any
// prior status is accepted, including a previous decision.
func (s *assignmentService) UpdateProjectStatus(ctx context.Context, projectID uint, status string) (*domain.Project, error) {
	if !domain.ValidProjectDecision(status) {
		return nil, errors.NewNotValid(nil, fmt.Sprintf("status must be %s or %s", domain.ProjectStatusApproved, domain.ProjectStatusRejected))
	}

	var project *domain.Project
	var recipients []string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		projects := repository.NewProjectRepository(tx)

		var err error
		project, err = projects.FindByID(ctx, projectID)
		if err != nil {
			return err
		}
		if err := projects.Update(ctx, projectID, map[string]any{"status": status}); err != nil {
			return err
		}
		project.Status = status

		applicants, err := repository.NewGroupRepository(tx).ListByProject(ctx, projectID)
		if err != nil {
			return err
		}
		students := repository.NewStudentProfileRepository(tx)
		for _, g := range applicants {
			emails, err := students.ListMemberEmails(ctx, g.ID)
			if err != nil {
				return err
			}
			recipients = append(recipients, emails...)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}

	logger.Infof("project %d status set to %s", projectID, status)
	s.publish(dto.AssignmentEvent{
		Type:         dto.EventProjectStatusUpdated,
		ProjectID:    &project.ID,
		SupervisorID: &project.SupervisorID,
		Status:       status,
		Recipients:   recipients,
	})
	return project, nil
}

// groupRecipients returns the members' emails plus the supervisor's, if any.
func (s *assignmentService) groupRecipients(ctx context.Context, tx *gorm.DB, group *domain.Group) ([]string, error) {
	emails, err := repository.NewStudentProfileRepository(tx).ListMemberEmails(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	if group.SupervisorID != nil {
		sup, err := repository.NewUserRepository(tx).FindUserById(ctx, *group.SupervisorID)
		if err != nil && !errors.Is(err, errors.NotFound) {
			return nil, err
		}
		if sup != nil {
			emails = append(emails, sup.Email)
		}
	}
	return emails, nil
}

// publish hands the event to the message bus. Failures are logged only; the
// change is already committed.
func (s *assignmentService) publish(ev dto.AssignmentEvent) {
	if s.producer == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC()
	if ev.Recipients == nil {
		ev.Recipients = []string{}
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Errorf("encode %s event: %v", ev.Type, err)
		return
	}
	err = s.producer.PublishMessage([]byte(ev.Type), payload)
	s.metrics.EventPublished(ev.Type, err)
	if err != nil {
		logger.Warningf("publish %s event for group %d: %v", ev.Type, ev.GroupID, err)
	}
}

func derefOrNil(p *uint) any {
	if p == nil {
		return nil
	}
	return *p
}
