package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/juju/errors"
)

func paramID(ctx *fiber.Ctx, name string) (uint, error) {
	id, err := ctx.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, errors.NewNotValid(nil, "invalid "+name)
	}
	return uint(id), nil
}
