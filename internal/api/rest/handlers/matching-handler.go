package handlers

import (
	"strings"

	"github.com/ShixuDing/32933-project-match/internal/api/rest/middleware"
	"github.com/ShixuDing/32933-project-match/internal/clients/llm"
	"github.com/ShixuDing/32933-project-match/internal/domain"
	"github.com/ShixuDing/32933-project-match/internal/dto"
	"github.com/ShixuDing/32933-project-match/internal/helper"
	"github.com/ShixuDing/32933-project-match/internal/helper/utils"
	"github.com/ShixuDing/32933-project-match/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/juju/errors"
)

const aiNotConfigured = "AI service is not configured"

type MatchingHandler struct {
	svc  services.MatchingService
	auth helper.Auth
}

func NewMatchingHandler(svc services.MatchingService, auth helper.Auth) *MatchingHandler {
	return &MatchingHandler{svc: svc, auth: auth}
}

// SetupRoutes registers the public endpoints behind limit, which may be nil.
func (h *MatchingHandler) SetupRoutes(app *fiber.App, authMW, limit fiber.Handler) {
	public := []fiber.Handler{}
	if limit != nil {
		public = append(public, limit)
	}
	app.Post("/analyze-requirements", append(public, h.Analyze)...)
	app.Post("/rank-projects", append(public, h.Rank)...)

	app.Post("/student/projects/recommend", authMW, middleware.RequireRole(domain.RoleStudent), h.Recommend)
}

// Analyze always answers with the three arrays; "nothing extracted" is three
// empty arrays.
func (h *MatchingHandler) Analyze(ctx *fiber.Ctx) error {
	var requestBody dto.AnalyzeRequest
	if err := ctx.BodyParser(&requestBody); err != nil || strings.TrimSpace(requestBody.UserInput) == "" {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "user_input is required")
	}

	requirements, err := h.svc.AnalyzeRequirements(ctx.UserContext(), requestBody)
	if errors.Is(err, llm.ErrNotConfigured) {
		logger.Warningf("%s %s: completion API key is not set", ctx.Method(), ctx.Path())
		return utils.ResponseError(ctx, fiber.StatusInternalServerError, aiNotConfigured)
	}
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	if requirements == nil {
		requirements = &dto.Requirements{Fields: []string{}, Keywords: []string{}, Features: []string{}}
	}
	return ctx.Status(fiber.StatusOK).JSON(requirements)
}

func (h *MatchingHandler) Rank(ctx *fiber.Ctx) error {
	var requestBody dto.RankRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide valid inputs")
	}

	ranked := h.svc.RankProjects(ctx.UserContext(), requestBody.Requirements, requestBody.Projects)
	return ctx.Status(fiber.StatusOK).JSON(dto.RankResponse{RankedProjects: ranked})
}

func (h *MatchingHandler) Recommend(ctx *fiber.Ctx) error {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	var requestBody dto.RecommendRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "user_input is required")
	}

	resp, err := h.svc.Recommend(ctx.UserContext(), user.UserID, requestBody.UserInput)
	if errors.Is(err, llm.ErrNotConfigured) {
		logger.Warningf("%s %s: completion API key is not set", ctx.Method(), ctx.Path())
		return utils.ResponseError(ctx, fiber.StatusInternalServerError, aiNotConfigured)
	}
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, resp)
}
