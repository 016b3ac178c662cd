package handlers

import (
	"path/filepath"
	"strings"

	"github.com/ShixuDing/32933-project-match/internal/helper"
	"github.com/ShixuDing/32933-project-match/internal/helper/utils"
	"github.com/ShixuDing/32933-project-match/internal/services"
	imageutil "github.com/ShixuDing/32933-project-match/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

const maxAvatarSize = 5 * 1024 * 1024 //5MB

type UploadResponse struct {
	URL string `json:"avatar_url"`
}

type UploadHandler struct {
	svc  services.UserService
	auth helper.Auth
}

func NewUploadHandler(svc services.UserService, auth helper.Auth) *UploadHandler {
	return &UploadHandler{svc: svc, auth: auth}
}

func (h *UploadHandler) SetupRoutes(app *fiber.App, authMW fiber.Handler) {
	app.Post("/me/avatar", authMW, h.UploadAvatar)
}

// POST /me/avatar
// form-data: file=<image>
func (h *UploadHandler) UploadAvatar(ctx *fiber.Ctx) error {
	user, err := h.auth.GetCurrentUser(ctx)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	file, err := ctx.FormFile("file")
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "file is required")
	}

	// validate extension
	ext := strings.ToLower(filepath.Ext(file.Filename))
	allowed := map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}
	if !allowed[ext] {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "only jpg/jpeg/png/webp allowed")
	}

	// validate size
	if file.Size > maxAvatarSize {
		return utils.ResponseError(ctx, fiber.StatusBadRequest, "file too large (max 5MB)")
	}

	f, err := file.Open()
	if err != nil {
		return utils.ResponseError(ctx, fiber.StatusInternalServerError, "cannot open uploaded file")
	}
	defer f.Close()

	b, err := imageutil.ReadAllLimit(f, maxAvatarSize)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}

	url, err := h.svc.UploadAvatar(ctx.UserContext(), user.UserID, file.Filename, b)
	if err != nil {
		return utils.ResponseFromError(ctx, err)
	}
	return utils.ResponseSuccess(ctx, fiber.StatusOK, UploadResponse{URL: url})
}
