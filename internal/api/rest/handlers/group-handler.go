package handlers

import (
	"github.com/ShixuDing/32933-project-match/internal/api/rest/middleware"
	"github.com/ShixuDing/32933-project-match/internal/domain"
	"github.com/ShixuDing/32933-project-match/internal/dto"
	"github.com/ShixuDing/32933-project-match/internal/helper"
	"github.com/ShixuDing/32933-project-match/internal/helper/utils"
	"github.com/ShixuDing/32933-project-match/internal/services"
	"github.com/gofiber/fiber/v2"
)

// GroupHandler serves the student side of group formation.
type GroupHandler struct {
	svc  services.AssignmentService
	auth helper.Auth
}

func NewGroupHandler(svc services.AssignmentService, auth helper.Auth) *GroupHandler {
	return &GroupHandler{svc: svc, auth: auth}
}

func (h *GroupHandler) SetupRoutes(app *fiber.App, authMW fiber.Handler) {
	groups := app.Group("/student/groups")
	studentOnly := middleware.RequireRole(domain.RoleStudent)

	groups.Post("/create", authMW, studentOnly, h.CreateGroup)
	groups.Post("/join", authMW, studentOnly, h.JoinGroup)
	groups.Post("/quit", authMW, studentOnly, h.QuitGroup)
	groups.Post("/apply_project", authMW, studentOnly, h.ApplyProject)
	groups.Get("/members", authMW, studentOnly, h.Members)
}

func (h *GroupHandler) CreateGroup(ctx *fiber.Ctx) error {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	var requestBody dto.CreateGroupRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "group_name is required")
	}

	group, err := h.svc.CreateGroup(ctx.UserContext(), user.UserID, requestBody.GroupName)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusCreated, toGroupResponse(group))
}

func (h *GroupHandler) JoinGroup(ctx *fiber.Ctx) error {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	var requestBody dto.JoinGroupRequest
	if err := ctx.BodyParser(&requestBody); err != nil || requestBody.GroupID == 0 {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "group_id is required")
	}

	group, err := h.svc.JoinGroup(ctx.UserContext(), user.UserID, requestBody.GroupID)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, toGroupResponse(group))
}

func (h *GroupHandler) QuitGroup(ctx *fiber.Ctx) error {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	if err := h.svc.QuitGroup(ctx.UserContext(), user.UserID); err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, fiber.Map{"message": "left group"})
}

// ApplyProject applies on behalf of the caller's current group.
func (h *GroupHandler) ApplyProject(ctx *fiber.Ctx) error {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	var requestBody dto.ApplyProjectRequest
	if err := ctx.BodyParser(&requestBody); err != nil || requestBody.ProjectID == 0 {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "project_id is required")
	}

	group, err := h.svc.StudentGroup(ctx.UserContext(), user.UserID)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	group, err = h.svc.ApplyProject(ctx.UserContext(), group.ID, requestBody.ProjectID)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, toGroupResponse(group))
}

func (h *GroupHandler) Members(ctx *fiber.Ctx) error {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	group, err := h.svc.StudentGroup(ctx.UserContext(), user.UserID)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	members, err := h.svc.GroupMembers(ctx.UserContext(), group.ID)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, dto.GroupMembersResponse{
		GroupID:   group.ID,
		MemberIDs: members,
	})
}

func toGroupResponse(g *domain.Group) dto.GroupResponse {
	return dto.GroupResponse{
		GroupID:      g.ID,
		GroupName:    g.Name,
		ProjectID:    g.ProjectID,
		SupervisorID: g.SupervisorID,
	}
}
