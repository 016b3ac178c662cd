package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ShixuDing/32933-project-match/internal/clients/llm"
	"github.com/ShixuDing/32933-project-match/internal/helper"
	"github.com/ShixuDing/32933-project-match/internal/metrics"
	"github.com/ShixuDing/32933-project-match/internal/services"
	"github.com/ShixuDing/32933-project-match/internal/testutil"
	"github.com/gofiber/fiber/v2"
	"github.com/im7mortal/kmutex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *fiber.App {
	t.Helper()
	db := testutil.NewDB(t)
	require.NoError(t, Migrate(context.Background(), db))

	auth := helper.SetupAuth("test-secret", 15*time.Minute, time.Hour)
	locks := kmutex.New()
	collector := metrics.NewCollector()
	projects := services.NewProjectService(db)
	return NewApp(Deps{
		Auth:       auth,
		Users:      services.NewUserService(db, auth, nil, locks, services.UserServiceConfig{OrgDomain: "uts.edu.au", DefaultQuota: 1}),
		Assignment: services.NewAssignmentService(db, locks, nil, collector),
		Projects:   projects,
		// unconfigured: every upstream call fails with ErrNotConfigured
		Matching: services.NewMatchingService(db, llm.New(llm.Config{}), projects, collector),
		Registry: metrics.NewRegistry(collector),
	})
}

func call(t *testing.T, app *fiber.App, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func register(t *testing.T, app *fiber.App, first, last, email, role string) uint {
	t.Helper()
	status, body := call(t, app, http.MethodPost, "/register", "", map[string]string{
		"first_name": first, "last_name": last, "email": email, "password": "secret123", "role": role,
	})
	require.Equal(t, http.StatusCreated, status, body)
	return uint(body["data"].(map[string]any)["id"].(float64))
}

func login(t *testing.T, app *fiber.App, email string) map[string]any {
	t.Helper()
	status, body := call(t, app, http.MethodPost, "/login", "", map[string]string{"email": email, "password": "secret123"})
	require.Equal(t, http.StatusOK, status, body)
	return body
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestServer(t)

	status, body := call(t, app, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthFlow(t *testing.T) {
	app := newTestServer(t)
	register(t, app, "Alice", "Wong", "alice.wong@student.uts.edu.au", "student")

	status, body := call(t, app, http.MethodPost, "/register", "", map[string]string{
		"first_name": "Alice", "last_name": "Wong", "email": "alice.wong@student.uts.edu.au", "password": "secret123", "role": "admin",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, body["error"])

	status, _ = call(t, app, http.MethodPost, "/login", "", map[string]string{"email": "alice.wong@student.uts.edu.au", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)

	tokens := login(t, app, "alice.wong@student.uts.edu.au")
	assert.Equal(t, "bearer", tokens["token_type"])
	access := tokens["access_token"].(string)
	refresh := tokens["refresh_token"].(string)

	status, _ = call(t, app, http.MethodGet, "/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = call(t, app, http.MethodGet, "/me", refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = call(t, app, http.MethodGet, "/me", access, nil)
	require.Equal(t, http.StatusOK, status)
	me := body["data"].(map[string]any)
	assert.Equal(t, "alice.wong@student.uts.edu.au", me["email"])
	assert.Equal(t, "student", me["role"])

	status, body = call(t, app, http.MethodPost, "/refresh", "", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["access_token"])
	status, _ = call(t, app, http.MethodPost, "/refresh", "", map[string]string{"refresh_token": access})
	assert.Equal(t, http.StatusUnauthorized, status)

	// same name again gets the next suffix
	register(t, app, "Alice", "Wong", "alice.wong@student.uts.edu.au", "student")
	login(t, app, "alice.wong-1@student.uts.edu.au")
}

func TestRoleGuards(t *testing.T) {
	app := newTestServer(t)
	supID := register(t, app, "Sam", "Taylor", "sam.taylor@uts.edu.au", "supervisor")
	register(t, app, "Alice", "Wong", "alice.wong@student.uts.edu.au", "student")
	sup := login(t, app, "sam.taylor@uts.edu.au")["access_token"].(string)
	student := login(t, app, "alice.wong@student.uts.edu.au")["access_token"].(string)

	status, _ := call(t, app, http.MethodPost, "/student/groups/create", sup, map[string]string{"group_name": "Vision"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = call(t, app, http.MethodGet, "/supervisors/me", student, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = call(t, app, http.MethodPost, fmt.Sprintf("/supervisors/%d/projects", supID+100), sup, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusForbidden, status)

	status, body := call(t, app, http.MethodGet, "/supervisors/me", sup, nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["data"].(map[string]any)["quota"])
}

func TestAssignmentWorkflow(t *testing.T) {
	app := newTestServer(t)
	samID := register(t, app, "Sam", "Taylor", "sam.taylor@uts.edu.au", "supervisor")
	register(t, app, "Kim", "Ng", "kim.ng@uts.edu.au", "supervisor")
	aliceID := register(t, app, "Alice", "Wong", "alice.wong@student.uts.edu.au", "student")
	bobID := register(t, app, "Bob", "Lee", "bob.lee@student.uts.edu.au", "student")
	sam := login(t, app, "sam.taylor@uts.edu.au")["access_token"].(string)
	kim := login(t, app, "kim.ng@uts.edu.au")["access_token"].(string)
	alice := login(t, app, "alice.wong@student.uts.edu.au")["access_token"].(string)
	bob := login(t, app, "bob.lee@student.uts.edu.au")["access_token"].(string)

	status, body := call(t, app, http.MethodPost, fmt.Sprintf("/supervisors/%d/projects", samID), sam, map[string]string{
		"title": "Edge AI", "research_field": "AI", "group_or_individual": "group",
	})
	require.Equal(t, http.StatusCreated, status, body)
	project := body["data"].(map[string]any)
	projectID := uint(project["id"].(float64))
	assert.Equal(t, "Pending", project["project_status"])

	status, body = call(t, app, http.MethodPost, "/student/groups/create", alice, map[string]string{"group_name": "Vision"})
	require.Equal(t, http.StatusCreated, status, body)
	groupID := uint(body["data"].(map[string]any)["group_id"].(float64))

	status, _ = call(t, app, http.MethodPost, "/student/groups/join", bob, map[string]uint{"group_id": groupID})
	require.Equal(t, http.StatusOK, status)
	status, _ = call(t, app, http.MethodPost, "/student/groups/join", bob, map[string]uint{"group_id": groupID})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, app, http.MethodGet, "/student/groups/members", alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.ElementsMatch(t, []any{float64(aliceID), float64(bobID)}, body["data"].(map[string]any)["member_ids"])

	status, body = call(t, app, http.MethodPost, "/student/groups/apply_project", bob, map[string]uint{"project_id": projectID})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, projectID, body["data"].(map[string]any)["project_id"])

	// only the owner decides
	path := fmt.Sprintf("/supervisors/projects/%d/update_status", projectID)
	status, _ = call(t, app, http.MethodPost, path, kim, map[string]string{"status": "Approved"})
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = call(t, app, http.MethodPost, path, sam, map[string]string{"status": "Maybe"})
	assert.Equal(t, http.StatusBadRequest, status)
	status, body = call(t, app, http.MethodPost, path, sam, map[string]string{"status": "Approved"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Approved", body["data"].(map[string]any)["project_status"])

	status, _ = call(t, app, http.MethodPost, fmt.Sprintf("/supervisors/assign_group/%d", groupID), sam, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = call(t, app, http.MethodPost, fmt.Sprintf("/supervisors/remove_group/%d", groupID), kim, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, body = call(t, app, http.MethodPost, fmt.Sprintf("/supervisors/remove_group/%d", groupID), sam, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["data"].(map[string]any)["supervisor_id"])

	status, _ = call(t, app, http.MethodDelete, fmt.Sprintf("/supervisors/%d/projects/%d", samID, projectID), sam, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = call(t, app, http.MethodGet, fmt.Sprintf("/projects/%d", projectID), alice, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestQuotaOverHTTP(t *testing.T) {
	app := newTestServer(t)
	register(t, app, "Sam", "Taylor", "sam.taylor@uts.edu.au", "supervisor")
	register(t, app, "Alice", "Wong", "alice.wong@student.uts.edu.au", "student")
	register(t, app, "Bob", "Lee", "bob.lee@student.uts.edu.au", "student")
	sam := login(t, app, "sam.taylor@uts.edu.au")["access_token"].(string)

	var groups []uint
	for i, email := range []string{"alice.wong@student.uts.edu.au", "bob.lee@student.uts.edu.au"} {
		token := login(t, app, email)["access_token"].(string)
		status, body := call(t, app, http.MethodPost, "/student/groups/create", token, map[string]string{"group_name": fmt.Sprintf("g%d", i)})
		require.Equal(t, http.StatusCreated, status)
		groups = append(groups, uint(body["data"].(map[string]any)["group_id"].(float64)))
	}

	status, _ := call(t, app, http.MethodPost, fmt.Sprintf("/supervisors/assign_group/%d", groups[0]), sam, nil)
	require.Equal(t, http.StatusOK, status)
	status, body := call(t, app, http.MethodPost, fmt.Sprintf("/supervisors/assign_group/%d", groups[1]), sam, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "quota exceeded (1 of 1 groups)")

	status, _ = call(t, app, http.MethodPost, fmt.Sprintf("/supervisors/assign_group/%d", 999), sam, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestMatchingEndpoints(t *testing.T) {
	app := newTestServer(t)

	status, body := call(t, app, http.MethodPost, "/analyze-requirements", "", map[string]string{"user_input": "Show me all projects"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, body["fields"])
	assert.Equal(t, []any{}, body["keywords"])
	assert.Equal(t, []any{}, body["features"])

	status, body = call(t, app, http.MethodPost, "/analyze-requirements", "", map[string]string{"user_input": "robotics with ROS"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "AI service is not configured", body["error"])

	status, _ = call(t, app, http.MethodPost, "/analyze-requirements", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = call(t, app, http.MethodPost, "/rank-projects", "", map[string]any{
		"projects": []map[string]any{{"id": 2, "name": "B"}, {"id": "a", "name": "A"}},
	})
	require.Equal(t, http.StatusOK, status)
	ranked := body["ranked_projects"].([]any)
	require.Len(t, ranked, 2)
	first := ranked[0].(map[string]any)
	assert.EqualValues(t, 2, first["id"])
	assert.Equal(t, "B", first["name"])
	assert.Nil(t, first["score"])
	assert.Equal(t, "not ranked", first["reasoning"])

	// upstream unavailable: ranking is absorbed into the fallback
	status, body = call(t, app, http.MethodPost, "/rank-projects", "", map[string]any{
		"requirements": map[string]any{"fields": []string{"AI"}, "keywords": []string{}, "features": []string{}},
		"projects":     []map[string]any{{"id": 1, "name": "A"}},
	})
	require.Equal(t, http.StatusOK, status)
	ranked = body["ranked_projects"].([]any)
	require.Len(t, ranked, 1)
	assert.Equal(t, "ranking failed", ranked[0].(map[string]any)["reasoning"])
}
