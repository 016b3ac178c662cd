package middleware

import (
	"strings"

	"github.com/ShixuDing/32933-project-match/internal/dto"
	"github.com/ShixuDing/32933-project-match/internal/helper"
	"github.com/ShixuDing/32933-project-match/internal/helper/utils"
	"github.com/gofiber/fiber/v2"
)

const AccessTokenCookie = "access_token"

// AuthMiddleware accepts an access token from the cookie or the
// Authorization header. Refresh tokens are rejected.
func AuthMiddleware(auth helper.Auth) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		// 1) try cookie first
		tokenStr := strings.TrimSpace(ctx.Cookies(AccessTokenCookie))

		// 2) fallback to Authorization header
		if tokenStr == "" {
			tokenStr = strings.TrimSpace(ctx.Get(fiber.HeaderAuthorization))
		}
		if tokenStr == "" {
			return utils.ResponseError(ctx, fiber.StatusUnauthorized, "missing access token")
		}

		user, err := auth.VerifyToken(tokenStr, helper.TokenTypeAccess)
		if err != nil {
			return utils.ResponseFromError(ctx, err)
		}

		ctx.Locals("userID", user.UserID)
		ctx.Locals("user", user)
		return ctx.Next()
	}
}

// RequireRole must run after AuthMiddleware.
func RequireRole(role string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		user, ok := ctx.Locals("user").(dto.AuthUser)
		if !ok || user.UserID == 0 {
			return utils.ResponseError(ctx, fiber.StatusUnauthorized, "unauthorized")
		}
		if user.Role != role {
			return utils.ResponseError(ctx, fiber.StatusForbidden, role+" only")
		}
		return ctx.Next()
	}
}
