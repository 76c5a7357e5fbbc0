package handlers

import (
	"errors"

	"project-service/internal/models"

	"github.com/gofiber/fiber/v3"
)

// errorStatus maps the business-rule error kinds onto HTTP statuses. Anything
// unrecognized is an internal failure.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, models.ErrForbidden):
		return fiber.StatusForbidden
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes the error with its mapped status. Business errors carry
// their own message so the caller knows which precondition failed; internal
// failures get the fallback text only.
func respondError(c fiber.Ctx, err error, fallback string) error {
	status := errorStatus(err)
	message := fallback
	if status != fiber.StatusInternalServerError {
		message = err.Error()
	}
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}
