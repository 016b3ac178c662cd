package utils

import (
	"github.com/gofiber/fiber/v2"
	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("projmatch.api")

func ResponseError(ctx *fiber.Ctx, status int, msg string) error {
	return ctx.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}

// create a generic response function for success
func ResponseSuccess(ctx *fiber.Ctx, status int, data interface{}) error {
	return ctx.Status(status).JSON(fiber.Map{"data": data})
}

// StatusFromError maps the error taxonomy onto HTTP status codes.
func StatusFromError(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, errors.NotValid),
		errors.Is(err, errors.BadRequest),
		errors.Is(err, errors.QuotaLimitExceeded):
		return fiber.StatusBadRequest
	case errors.Is(err, errors.Unauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, errors.Forbidden):
		return fiber.StatusForbidden
	case errors.Is(err, errors.NotFound):
		return fiber.StatusNotFound
	case errors.Is(err, errors.AlreadyExists):
		return fiber.StatusConflict
	case errors.Is(err, errors.NotProvisioned):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// ResponseFromError writes err with its mapped status. Unclassified errors are
// logged and hidden behind a generic message.
func ResponseFromError(ctx *fiber.Ctx, err error) error {
	status := StatusFromError(err)
	if status == fiber.StatusInternalServerError {
		logger.Errorf("%s %s: %v", ctx.Method(), ctx.Path(), errors.Details(err))
		return ResponseError(ctx, status, "internal server error")
	}
	return ResponseError(ctx, status, err.Error())
}
