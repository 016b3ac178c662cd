package handlers

import (
	"time"

	"github.com/ShixuDing/32933-project-match/internal/api/rest/middleware"
	"github.com/ShixuDing/32933-project-match/internal/domain"
	"github.com/ShixuDing/32933-project-match/internal/dto"
	"github.com/ShixuDing/32933-project-match/internal/helper"
	"github.com/ShixuDing/32933-project-match/internal/helper/utils"
	"github.com/ShixuDing/32933-project-match/internal/services"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	svc  services.UserService
	auth helper.Auth
}

func NewUserHandler(svc services.UserService, auth helper.Auth) *UserHandler {
	return &UserHandler{svc: svc, auth: auth}
}

func (h *UserHandler) SetupRoutes(app *fiber.App, authMW fiber.Handler) {
	// Auth
	app.Post("/register", h.Register)
	app.Post("/login", h.Login)
	app.Post("/refresh", h.Refresh)

	// Profile
	app.Get("/me", authMW, h.Me)
	app.Delete("/me", authMW, h.DeleteAccount)

	studentOnly := middleware.RequireRole(domain.RoleStudent)
	app.Put("/student/me", authMW, studentOnly, h.UpdateStudent)

	supervisorOnly := middleware.RequireRole(domain.RoleSupervisor)
	app.Get("/supervisors/me", authMW, supervisorOnly, h.Me)
	app.Put("/supervisors/me", authMW, supervisorOnly, h.UpdateSupervisor)
}

func (h *UserHandler) Register(ctx *fiber.Ctx) error {
	var requestBody dto.RegisterRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide valid inputs")
	}

	user, err := h.svc.Register(ctx.UserContext(), requestBody)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	profile, err := h.svc.GetProfile(ctx.UserContext(), user.ID)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusCreated, profile)
}

func (h *UserHandler) Login(ctx *fiber.Ctx) error {
	var requestBody dto.UserLogin
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "email and password are required")
	}

	tokens, err := h.svc.Login(ctx.UserContext(), requestBody)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	ctx.Cookie(&fiber.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    tokens.AccessToken,
		Expires:  time.Now().Add(h.auth.AccessTTL),
		HTTPOnly: true,
		Secure:   ctx.Protocol() == "https",
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return ctx.Status(fiber.StatusOK).JSON(tokens)
}

func (h *UserHandler) Refresh(ctx *fiber.Ctx) error {
	var requestBody dto.RefreshRequest
	if err := ctx.BodyParser(&requestBody); err != nil || requestBody.RefreshToken == "" {
		return utils.ResponseError(ctx, fiber.StatusUnauthorized, "refresh_token is required")
	}

	token, err := h.svc.Refresh(requestBody.RefreshToken)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return ctx.Status(fiber.StatusOK).JSON(token)
}

func (h *UserHandler) Me(ctx *fiber.Ctx) error {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	profile, err := h.svc.GetProfile(ctx.UserContext(), user.UserID)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, profile)
}

func (h *UserHandler) UpdateStudent(ctx *fiber.Ctx) error {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	var requestBody dto.UpdateStudentRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide valid inputs")
	}

	profile, err := h.svc.UpdateStudent(ctx.UserContext(), user.UserID, requestBody)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, profile)
}

func (h *UserHandler) UpdateSupervisor(ctx *fiber.Ctx) error {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	var requestBody dto.UpdateSupervisorRequest
	if err := ctx.BodyParser(&requestBody); err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "Please provide valid inputs")
	}

	profile, err := h.svc.UpdateSupervisor(ctx.UserContext(), user.UserID, requestBody)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, profile)
}

func (h *UserHandler) DeleteAccount(ctx *fiber.Ctx) error {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	var requestBody dto.DeleteAccountRequest
	if err := ctx.BodyParser(&requestBody); err != nil || requestBody.Password == "" {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "password is required")
	}

	if err := h.svc.DeleteAccount(ctx.UserContext(), user.UserID, requestBody.Password); err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	ctx.ClearCookie(middleware.AccessTokenCookie)
	return ctx.SendStatus(fiber.StatusNoContent)
}
