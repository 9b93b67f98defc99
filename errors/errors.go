package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Error taxonomy shared by the repository, the auth layer and the handlers.
// Concrete errors wrap one of these sentinels (usually through oops) and are
// classified with errors.Is at the HTTP boundary.
var (
	ErrInvalidIdentifier = stderrors.New("invalid identifier")
	ErrValidation        = stderrors.New("validation failure")
	ErrNotFound          = stderrors.New("not found")
	ErrNoChange          = stderrors.New("no changes were made")
	ErrConflict          = stderrors.New("conflict")
	ErrStore             = stderrors.New("store error")
	ErrUnauthenticated   = stderrors.New("authentication required")
	ErrForbidden         = stderrors.New("lack of permissions")

	// ErrInconsistent marks a two-document write whose compensation failed.
	ErrInconsistent = fmt.Errorf("%w: relationship left inconsistent", ErrStore)
)

func RaiseError(context *fiber.Ctx, status int, message string, data string) error {
	return context.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": message,
		"data":    data})
}

func RaiseUnauthorizedError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusUnauthorized, "authentication required", data)
}

func RaisePermissionsError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusForbidden, "lack of permissions", data)
}

func RaiseInternalServerError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusInternalServerError, "internal error", data)
}

func RaiseBadRequestError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusBadRequest, "bad request", data)
}

func RaiseNotFoundError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusNotFound, "resource not found", data)
}

func RaiseConflictError(context *fiber.Ctx, data string) error {
	return RaiseError(context, fiber.StatusConflict, "conflict", data)
}

// Respond writes the response for err according to the taxonomy above.
// NoChange is informational and answered with an empty 304. An
// inconsistent write is a server error whatever its cause.
func Respond(context *fiber.Ctx, err error) error {
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, ErrInconsistent):
		zap.L().Error("request left data inconsistent",
			zap.String("method", context.Method()),
			zap.String("path", context.Path()),
			zap.Error(err))
		return RaiseInternalServerError(context, err.Error())
	case stderrors.Is(err, ErrNoChange):
		return context.SendStatus(fiber.StatusNotModified)
	case stderrors.Is(err, ErrUnauthenticated):
		return RaiseUnauthorizedError(context, err.Error())
	case stderrors.Is(err, ErrForbidden):
		return RaisePermissionsError(context, err.Error())
	case stderrors.Is(err, ErrInvalidIdentifier), stderrors.Is(err, ErrValidation):
		return RaiseBadRequestError(context, err.Error())
	case stderrors.Is(err, ErrNotFound):
		return RaiseNotFoundError(context, err.Error())
	case stderrors.Is(err, ErrConflict):
		return RaiseConflictError(context, err.Error())
	default:
		zap.L().Error("request failed",
			zap.String("method", context.Method()),
			zap.String("path", context.Path()),
			zap.Error(err))
		return RaiseInternalServerError(context, err.Error())
	}
}
