package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("projmatch.api.access")

func RequestLogger() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()
		status := ctx.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		logger.Debugf("%s %s %d %s", ctx.Method(), ctx.OriginalURL(), status, time.Since(start))
		return err
	}
}
