package handlers

import (
	"github.com/ShixuDing/32933-project-match/internal/api/rest/middleware"
	"github.com/ShixuDing/32933-project-match/internal/domain"
	"github.com/ShixuDing/32933-project-match/internal/dto"
	"github.com/ShixuDing/32933-project-match/internal/helper"
	"github.com/ShixuDing/32933-project-match/internal/helper/utils"
	"github.com/ShixuDing/32933-project-match/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/juju/errors"
)

// ProjectHandler serves project CRUD and the supervisor side of the
// assignment workflow.
type ProjectHandler struct {
	projects   services.ProjectService
	assignment services.AssignmentService
	auth       helper.Auth
}

func NewProjectHandler(projects services.ProjectService, assignment services.AssignmentService, auth helper.Auth) *ProjectHandler {
	return &ProjectHandler{projects: projects, assignment: assignment, auth: auth}
}

func (h *ProjectHandler) SetupRoutes(app *fiber.App, authMW fiber.Handler) {
	// any signed-in user
	app.Get("/projects", authMW, h.ListProjects)
	app.Get("/projects/:id", authMW, h.GetProject)
	app.Post("/student/projects/create", authMW, h.CreateAsUser)

	sup := app.Group("/supervisors")
	supervisorOnly := middleware.RequireRole(domain.RoleSupervisor)

	sup.Get("/me/projects", authMW, supervisorOnly, h.MyProjects)
	sup.Post("/:id/projects", authMW, supervisorOnly, h.CreateProject)
	sup.Put("/:id/projects/:projectId", authMW, supervisorOnly, h.UpdateProject)
	sup.Delete("/:id/projects/:projectId", authMW, supervisorOnly, h.DeleteProject)
	sup.Post("/projects/:id/update_status", authMW, supervisorOnly, h.UpdateStatus)
	sup.Post("/assign_group/:id", authMW, supervisorOnly, h.AssignGroup)
	sup.Post("/remove_group/:id", authMW, supervisorOnly, h.RemoveGroup)
	sup.Get("/groups", authMW, supervisorOnly, h.SupervisedGroups)
}

func (h *ProjectHandler) ListProjects(ctx *fiber.Ctx) error {
	projects, err := h.projects.List(ctx.UserContext())
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, projects)
}

func (h *ProjectHandler) GetProject(ctx *fiber.Ctx) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	project, err := h.projects.Get(ctx.UserContext(), id)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, project)
}

func (h *ProjectHandler) CreateAsUser(ctx *fiber.Ctx) error {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return h.create(ctx, user.UserID)
}

func (h *ProjectHandler) CreateProject(ctx *fiber.Ctx) error {
	user, err := h.ownerFromPath(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return h.create(ctx, user.UserID)
}

func (h *ProjectHandler) create(ctx *fiber.Ctx, ownerID uint) error {
	var requestBody dto.CreateProjectRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide valid inputs")
	}

	project, err := h.projects.Create(ctx.UserContext(), ownerID, requestBody)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusCreated, project)
}

func (h *ProjectHandler) UpdateProject(ctx *fiber.Ctx) error {
	user, err := h.ownerFromPath(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	projectID, err := paramID(ctx, "projectId")
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	var requestBody dto.UpdateProjectRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide valid inputs")
	}

	project, err := h.projects.Update(ctx.UserContext(), user.UserID, projectID, requestBody)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, project)
}

func (h *ProjectHandler) DeleteProject(ctx *fiber.Ctx) error {
	user, err := h.ownerFromPath(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	projectID, err := paramID(ctx, "projectId")
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	if err := h.projects.Delete(ctx.UserContext(), user.UserID, projectID); err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (h *ProjectHandler) MyProjects(ctx *fiber.Ctx) error {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	projects, err := h.projects.ListBySupervisor(ctx.UserContext(), user.UserID)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, projects)
}

// UpdateStatus lets the owning supervisor approve or reject a project.
func (h *ProjectHandler) UpdateStatus(ctx *fiber.Ctx) error {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	projectID, err := paramID(ctx, "id")
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	var requestBody dto.UpdateStatusRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "status is required")
	}

	project, err := h.projects.Get(ctx.UserContext(), projectID)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	if project.SupervisorID != user.UserID {
		return utils.ResponseError(ctx, fiber.StatusForbidden, "not the owner of this project")
	}

	project, err = h.assignment.UpdateProjectStatus(ctx.UserContext(), projectID, requestBody.Status)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, project)
}

func (h *ProjectHandler) AssignGroup(ctx *fiber.Ctx) error {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	groupID, err := paramID(ctx, "id")
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	group, err := h.assignment.AssignGroupToSupervisor(ctx.UserContext(), user.UserID, groupID)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, toGroupResponse(group))
}

// RemoveGroup releases a group the caller currently supervises.
func (h *ProjectHandler) RemoveGroup(ctx *fiber.Ctx) error {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	groupID, err := paramID(ctx, "id")
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	group, err := h.assignment.FindGroup(ctx.UserContext(), groupID)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	if group.SupervisorID == nil || *group.SupervisorID != user.UserID {
		return utils.ResponseError(ctx, fiber.StatusForbidden, "group is not supervised by you")
	}

	group, err = h.assignment.RemoveGroupFromSupervisor(ctx.UserContext(), groupID)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, toGroupResponse(group))
}

func (h *ProjectHandler) SupervisedGroups(ctx *fiber.Ctx) error {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	groups, err := h.assignment.SupervisedGroups(ctx.UserContext(), user.UserID)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	out := make([]dto.GroupResponse, 0, len(groups))
	for i := range groups {
		out = append(out, toGroupResponse(&groups[i]))
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, out)
}

// ownerFromPath returns the caller if the :id path segment names them.
func (h *ProjectHandler) ownerFromPath(ctx *fiber.Ctx) (dto.AuthUser, error) {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return dto.AuthUser{}, err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return dto.AuthUser{}, err
	}
	if id != user.UserID {
		return dto.AuthUser{}, errors.NewForbidden(nil, "cannot manage another supervisor's projects")
	}
	return user, nil
}
