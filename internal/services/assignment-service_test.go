package services_test

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ShixuDing/32933-project-match/internal/domain"
	"github.com/ShixuDing/32933-project-match/internal/dto"
	"github.com/ShixuDing/32933-project-match/internal/interfaces/mocks"
	"github.com/ShixuDing/32933-project-match/internal/metrics"
	"github.com/ShixuDing/32933-project-match/internal/services"
	"github.com/ShixuDing/32933-project-match/internal/testutil"
	"github.com/im7mortal/kmutex"
	"github.com/juju/errors"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gorm.io/gorm"
)

func newAssignment(t *testing.T) (services.AssignmentService, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	return services.NewAssignmentService(db, kmutex.New(), nil, metrics.NewCollector()), db
}

func createGroups(t *testing.T, db *gorm.DB, n int) []domain.Group {
	t.Helper()
	groups := make([]domain.Group, n)
	for i := range groups {
		groups[i] = domain.Group{Name: fmt.Sprintf("group-%d", i+1)}
		require.NoError(t, db.Create(&groups[i]).Error)
	}
	return groups
}

func TestCreateJoinMembers(t *testing.T) {
	svc, db := newAssignment(t)
	ctx := context.Background()
	alice := testutil.CreateStudent(t, db, "Alice", "Wong", "alice.wong@student.uts.edu.au")
	bob := testutil.CreateStudent(t, db, "Bob", "Lee", "bob.lee@student.uts.edu.au")

	group, err := svc.CreateGroup(ctx, alice.ID, "  Vision  ")
	require.NoError(t, err)
	assert.Equal(t, "Vision", group.Name)

	_, err = svc.JoinGroup(ctx, bob.ID, group.ID)
	require.NoError(t, err)

	members, err := svc.GroupMembers(ctx, group.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{alice.ID, bob.ID}, members)

	mine, err := svc.StudentGroup(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, group.ID, mine.ID)
}

func TestCreateGroupRules(t *testing.T) {
	svc, db := newAssignment(t)
	ctx := context.Background()
	alice := testutil.CreateStudent(t, db, "Alice", "Wong", "alice.wong@student.uts.edu.au")
	bob := testutil.CreateStudent(t, db, "Bob", "Lee", "bob.lee@student.uts.edu.au")

	_, err := svc.CreateGroup(ctx, alice.ID, " ")
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)

	_, err = svc.CreateGroup(ctx, alice.ID, "Vision")
	require.NoError(t, err)

	_, err = svc.CreateGroup(ctx, alice.ID, "Robotics")
	assert.True(t, errors.Is(err, errors.BadRequest), "got %v", err)

	_, err = svc.CreateGroup(ctx, bob.ID, "Vision")
	assert.True(t, errors.Is(err, errors.AlreadyExists), "got %v", err)

	// the failed create left bob unaffiliated
	_, err = svc.StudentGroup(ctx, bob.ID)
	assert.True(t, errors.Is(err, errors.BadRequest), "got %v", err)
	var groups int64
	require.NoError(t, db.Model(&domain.Group{}).Count(&groups).Error)
	assert.EqualValues(t, 1, groups)
}

func TestJoinAndQuitRules(t *testing.T) {
	svc, db := newAssignment(t)
	ctx := context.Background()
	alice := testutil.CreateStudent(t, db, "Alice", "Wong", "alice.wong@student.uts.edu.au")
	bob := testutil.CreateStudent(t, db, "Bob", "Lee", "bob.lee@student.uts.edu.au")

	_, err := svc.JoinGroup(ctx, bob.ID, 999)
	assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)

	err = svc.QuitGroup(ctx, bob.ID)
	assert.True(t, errors.Is(err, errors.BadRequest), "got %v", err)

	vision, err := svc.CreateGroup(ctx, alice.ID, "Vision")
	require.NoError(t, err)
	other := createGroups(t, db, 1)[0]

	_, err = svc.JoinGroup(ctx, alice.ID, vision.ID)
	assert.True(t, errors.Is(err, errors.BadRequest), "got %v", err)
	_, err = svc.JoinGroup(ctx, alice.ID, other.ID)
	assert.True(t, errors.Is(err, errors.BadRequest), "got %v", err)

	require.NoError(t, svc.QuitGroup(ctx, alice.ID))
	_, err = svc.JoinGroup(ctx, alice.ID, other.ID)
	require.NoError(t, err)

	// emptied group stays
	found, err := svc.FindGroup(ctx, vision.ID)
	require.NoError(t, err)
	members, err := svc.GroupMembers(ctx, found.ID)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestStudentNeverInTwoGroups(t *testing.T) {
	svc, db := newAssignment(t)
	ctx := context.Background()
	alice := testutil.CreateStudent(t, db, "Alice", "Wong", "alice.wong@student.uts.edu.au")
	groups := createGroups(t, db, 4)

	var wg sync.WaitGroup
	var mu sync.Mutex
	joined := 0
	for _, g := range groups {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			if _, err := svc.JoinGroup(ctx, alice.ID, id); err == nil {
				mu.Lock()
				joined++
				mu.Unlock()
			}
		}(g.ID)
	}
	wg.Wait()

	assert.Equal(t, 1, joined)
	var memberships int64
	require.NoError(t, db.Model(&domain.StudentProfile{}).Where("group_id IS NOT NULL").Count(&memberships).Error)
	assert.EqualValues(t, 1, memberships)
}

func TestApplyProjectIsUnconditional(t *testing.T) {
	svc, db := newAssignment(t)
	ctx := context.Background()
	group := createGroups(t, db, 1)[0]

	_, err := svc.ApplyProject(ctx, 999, 1)
	assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)

	updated, err := svc.ApplyProject(ctx, group.ID, 4242)
	require.NoError(t, err)
	require.NotNil(t, updated.ProjectID)
	assert.EqualValues(t, 4242, *updated.ProjectID)
}

func TestQuotaScenario(t *testing.T) {
	svc, db := newAssignment(t)
	ctx := context.Background()
	sup := testutil.CreateSupervisor(t, db, "Sam", "Taylor", "sam.taylor@uts.edu.au", 2)
	groups := createGroups(t, db, 3)

	for _, g := range groups[:2] {
		_, err := svc.AssignGroupToSupervisor(ctx, sup.ID, g.ID)
		require.NoError(t, err)
	}

	// re-assigning a held group does not consume quota
	_, err := svc.AssignGroupToSupervisor(ctx, sup.ID, groups[1].ID)
	require.NoError(t, err)

	_, err = svc.AssignGroupToSupervisor(ctx, sup.ID, groups[2].ID)
	assert.True(t, errors.Is(err, errors.QuotaLimitExceeded), "got %v", err)
	assert.Contains(t, err.Error(), "quota exceeded (2 of 2 groups)")

	released, err := svc.RemoveGroupFromSupervisor(ctx, groups[0].ID)
	require.NoError(t, err)
	assert.Nil(t, released.SupervisorID)

	assigned, err := svc.AssignGroupToSupervisor(ctx, sup.ID, groups[2].ID)
	require.NoError(t, err)
	require.NotNil(t, assigned.SupervisorID)
	assert.Equal(t, sup.ID, *assigned.SupervisorID)

	supervised, err := svc.SupervisedGroups(ctx, sup.ID)
	require.NoError(t, err)
	assert.Len(t, supervised, 2)
}

func TestAssignMissingEntities(t *testing.T) {
	svc, db := newAssignment(t)
	ctx := context.Background()
	sup := testutil.CreateSupervisor(t, db, "Sam", "Taylor", "sam.taylor@uts.edu.au", 2)
	group := createGroups(t, db, 1)[0]

	_, err := svc.AssignGroupToSupervisor(ctx, 999, group.ID)
	assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)
	_, err = svc.AssignGroupToSupervisor(ctx, sup.ID, 999)
	assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)
	_, err = svc.RemoveGroupFromSupervisor(ctx, 999)
	assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)
}

func TestConcurrentAssignmentRespectsQuota(t *testing.T) {
	db := testutil.NewDB(t)
	collector := metrics.NewCollector()
	svc := services.NewAssignmentService(db, kmutex.New(), nil, collector)
	ctx := context.Background()

	const quota = 3
	sup := testutil.CreateSupervisor(t, db, "Sam", "Taylor", "sam.taylor@uts.edu.au", quota)
	groups := createGroups(t, db, 10)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, rejected int
	for _, g := range groups {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := svc.AssignGroupToSupervisor(ctx, sup.ID, id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, errors.QuotaLimitExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(g.ID)
	}
	wg.Wait()

	assert.Equal(t, quota, succeeded)
	assert.Equal(t, len(groups)-quota, rejected)

	var assigned int64
	require.NoError(t, db.Model(&domain.Group{}).Where("supervisor_id = ?", sup.ID).Count(&assigned).Error)
	assert.EqualValues(t, quota, assigned)
	expected := fmt.Sprintf(`
# HELP projmatch_quota_rejections_total Group assignments refused because the supervisor was full.
# TYPE projmatch_quota_rejections_total counter
projmatch_quota_rejections_total %d
`, len(groups)-quota)
	assert.NoError(t, promtest.CollectAndCompare(collector, strings.NewReader(expected), "projmatch_quota_rejections_total"))
}

func TestUpdateProjectStatus(t *testing.T) {
	svc, db := newAssignment(t)
	ctx := context.Background()
	sup := testutil.CreateSupervisor(t, db, "Sam", "Taylor", "sam.taylor@uts.edu.au", 2)
	project := &domain.Project{Title: "Edge AI", SupervisorID: sup.ID, Status: domain.ProjectStatusPending}
	require.NoError(t, db.Create(project).Error)

	_, err := svc.UpdateProjectStatus(ctx, project.ID, "Pending")
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)
	_, err = svc.UpdateProjectStatus(ctx, 999, domain.ProjectStatusApproved)
	assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)

	updated, err := svc.UpdateProjectStatus(ctx, project.ID, domain.ProjectStatusApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusApproved, updated.Status)

	// a decided project may be decided again
	updated, err = svc.UpdateProjectStatus(ctx, project.ID, domain.ProjectStatusRejected)
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectStatusRejected, updated.Status)

	var stored domain.Project
	require.NoError(t, db.First(&stored, project.ID).Error)
	assert.Equal(t, domain.ProjectStatusRejected, stored.Status)
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	producer := mocks.NewMockProducerHandler(ctrl)
	db := testutil.NewDB(t)
	svc := services.NewAssignmentService(db, kmutex.New(), producer, nil)
	ctx := context.Background()

	alice := testutil.CreateStudent(t, db, "Alice", "Wong", "alice.wong@student.uts.edu.au")
	sup := testutil.CreateSupervisor(t, db, "Sam", "Taylor", "sam.taylor@uts.edu.au", 1)

	var events []dto.AssignmentEvent
	producer.EXPECT().
		PublishMessage(gomock.Any(), gomock.Any()).
		DoAndReturn(func(key, value []byte) error {
			var ev dto.AssignmentEvent
			require.NoError(t, json.Unmarshal(value, &ev))
			assert.Equal(t, string(key), ev.Type)
			events = append(events, ev)
			return nil
		}).
		Times(2)

	group, err := svc.CreateGroup(ctx, alice.ID, "Vision")
	require.NoError(t, err)
	_, err = svc.AssignGroupToSupervisor(ctx, sup.ID, group.ID)
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, dto.EventGroupCreated, events[0].Type)
	assert.Equal(t, []string{alice.Email}, events[0].Recipients)
	assert.Equal(t, dto.EventGroupSupervisorAssigned, events[1].Type)
	assert.ElementsMatch(t, []string{alice.Email, sup.Email}, events[1].Recipients)
	assert.False(t, events[1].OccurredAt.IsZero())
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	ctrl := gomock.NewController(t)
	producer := mocks.NewMockProducerHandler(ctrl)
	db := testutil.NewDB(t)
	svc := services.NewAssignmentService(db, kmutex.New(), producer, metrics.NewCollector())

	alice := testutil.CreateStudent(t, db, "Alice", "Wong", "alice.wong@student.uts.edu.au")
	producer.EXPECT().PublishMessage(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	_, err := svc.CreateGroup(context.Background(), alice.ID, "Vision")
	require.NoError(t, err)
}
