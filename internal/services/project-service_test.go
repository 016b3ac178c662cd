package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/ShixuDing/32933-project-match/internal/domain"
	"github.com/ShixuDing/32933-project-match/internal/dto"
	"github.com/ShixuDing/32933-project-match/internal/services"
	"github.com/ShixuDing/32933-project-match/internal/testutil"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProject(t *testing.T) {
	db := testutil.NewDB(t)
	svc := services.NewProjectService(db)
	ctx := context.Background()
	sup := testutil.CreateSupervisor(t, db, "Sam", "Taylor", "sam.taylor@uts.edu.au", 2)
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	project, err := svc.Create(ctx, sup.ID, dto.CreateProjectRequest{
		Title:         " Edge AI ",
		ResearchField: "AI",
		Mode:          "Group",
		StartAt:       start,
		EndAt:         start.AddDate(0, 6, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, "Edge AI", project.Title)
	assert.Equal(t, domain.ProjectModeGroup, project.Mode)
	assert.Equal(t, domain.ProjectStatusPending, project.Status)
	assert.Equal(t, "", project.Grade)

	_, err = svc.Create(ctx, sup.ID, dto.CreateProjectRequest{Title: ""})
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)
	_, err = svc.Create(ctx, sup.ID, dto.CreateProjectRequest{Title: "x", Mode: "pairs"})
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)
	_, err = svc.Create(ctx, sup.ID, dto.CreateProjectRequest{Title: "x", StartAt: start, EndAt: start.Add(-time.Hour)})
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)
	_, err = svc.Create(ctx, 999, dto.CreateProjectRequest{Title: "x"})
	assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)
}

func TestStudentMayCreateProject(t *testing.T) {
	db := testutil.NewDB(t)
	svc := services.NewProjectService(db)
	student := testutil.CreateStudent(t, db, "Alice", "Wong", "alice.wong@student.uts.edu.au")

	project, err := svc.Create(context.Background(), student.ID, dto.CreateProjectRequest{Title: "Own idea", Mode: "individual"})
	require.NoError(t, err)
	assert.Equal(t, student.ID, project.SupervisorID)

	candidates, err := svc.Candidates(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Empty(t, candidates[0].SupervisorExpertise)
}

func TestUpdateProjectAllowList(t *testing.T) {
	db := testutil.NewDB(t)
	svc := services.NewProjectService(db)
	ctx := context.Background()
	owner := testutil.CreateSupervisor(t, db, "Sam", "Taylor", "sam.taylor@uts.edu.au", 2)
	other := testutil.CreateSupervisor(t, db, "Kim", "Ng", "kim.ng@uts.edu.au", 2)
	project, err := svc.Create(ctx, owner.ID, dto.CreateProjectRequest{Title: "Edge AI"})
	require.NoError(t, err)

	title, grade := "Edge AI v2", "HD"
	updated, err := svc.Update(ctx, owner.ID, project.ID, dto.UpdateProjectRequest{Title: &title, Grade: &grade})
	require.NoError(t, err)
	assert.Equal(t, "Edge AI v2", updated.Title)
	assert.Equal(t, "HD", updated.Grade)
	assert.Equal(t, domain.ProjectStatusPending, updated.Status)

	_, err = svc.Update(ctx, other.ID, project.ID, dto.UpdateProjectRequest{Title: &title})
	assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(-24 * time.Hour)
	_, err = svc.Update(ctx, owner.ID, project.ID, dto.UpdateProjectRequest{StartAt: &start, EndAt: &end})
	assert.True(t, errors.Is(err, errors.NotValid), "got %v", err)
}

func TestDeleteProjectClearsGroupReferences(t *testing.T) {
	db := testutil.NewDB(t)
	svc := services.NewProjectService(db)
	ctx := context.Background()
	owner := testutil.CreateSupervisor(t, db, "Sam", "Taylor", "sam.taylor@uts.edu.au", 2)
	other := testutil.CreateSupervisor(t, db, "Kim", "Ng", "kim.ng@uts.edu.au", 2)
	project, err := svc.Create(ctx, owner.ID, dto.CreateProjectRequest{Title: "Edge AI"})
	require.NoError(t, err)
	group := createGroups(t, db, 1)[0]
	require.NoError(t, db.Model(&domain.Group{}).Where("id = ?", group.ID).Update("project_id", project.ID).Error)

	err = svc.Delete(ctx, other.ID, project.ID)
	assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)

	require.NoError(t, svc.Delete(ctx, owner.ID, project.ID))

	_, err = svc.Get(ctx, project.ID)
	assert.True(t, errors.Is(err, errors.NotFound), "got %v", err)
	var stored domain.Group
	require.NoError(t, db.First(&stored, group.ID).Error)
	assert.Nil(t, stored.ProjectID)
}

func TestListings(t *testing.T) {
	db := testutil.NewDB(t)
	svc := services.NewProjectService(db)
	ctx := context.Background()
	sam := testutil.CreateSupervisor(t, db, "Sam", "Taylor", "sam.taylor@uts.edu.au", 2)
	kim := testutil.CreateSupervisor(t, db, "Kim", "Ng", "kim.ng@uts.edu.au", 2)
	for _, title := range []string{"A", "B"} {
		_, err := svc.Create(ctx, sam.ID, dto.CreateProjectRequest{Title: title})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, kim.ID, dto.CreateProjectRequest{Title: "C", Mode: "individual"})
	require.NoError(t, err)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := svc.ListBySupervisor(ctx, sam.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	candidates, err := svc.Candidates(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, "C", candidates[2].Name)
	assert.Equal(t, "individual", candidates[2].ProjectType)
	assert.Equal(t, []string{"machine learning", "databases"}, candidates[2].SupervisorExpertise)
}
