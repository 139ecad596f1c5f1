package admin

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"customfields/internal/engine"
	"customfields/internal/platform"
	"customfields/internal/store"
)

// ErrorHandler renders AppErrors as {"error": ...} and hides everything else
// behind a generic 500.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *engine.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(engine.ErrorResponse{Error: appErr})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(engine.ErrorResponse{
			Error: &engine.AppError{Code: "HTTP_ERROR", Message: fiberErr.Message},
		})
	}

	zap.S().Errorf("%s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(engine.ErrorResponse{
		Error: &engine.AppError{Code: "INTERNAL_ERROR", Message: "Internal server error"},
	})
}

// mapError converts lookup sentinels into HTTP errors.
func mapError(err error, typeName string, id int64) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return engine.NotFoundError(typeName, id)
	case errors.Is(err, platform.ErrUnknownType):
		return engine.UnknownTypeError(typeName)
	}
	return err
}
