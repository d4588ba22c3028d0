package middleware

import (
	"errors"

	apierrors "github.com/abisalde/creator-dashboard/internal/creator/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

// ErrorHandler renders every error a handler returns as the JSON envelope.
func ErrorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		if apiErr, ok := apierrors.As(err); ok {
			if apiErr.Status >= fiber.StatusInternalServerError {
				log.Error().Err(apiErr.Unwrap()).Str("path", c.Path()).Msg(apiErr.Message)
			}
			return c.Status(apiErr.Status).JSON(apiErr.Envelope())
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(apierrors.Envelope{
				Error:   statusText(fiberErr.Code),
				Message: fiberErr.Message,
			})
		}

		log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error")
		return c.Status(fiber.StatusInternalServerError).JSON(apierrors.ErrSomethingWentWrong.Envelope())
	}
}

func statusText(code int) string {
	switch code {
	case fiber.StatusNotFound:
		return "Not Found"
	case fiber.StatusMethodNotAllowed:
		return "Method Not Allowed"
	case fiber.StatusBadRequest:
		return string(apierrors.ErrorTypeValidation)
	case fiber.StatusUnauthorized:
		return string(apierrors.ErrorTypeUnauthorized)
	case fiber.StatusTooManyRequests:
		return string(apierrors.ErrorTypeRateLimited)
	default:
		return string(apierrors.ErrorTypeInternal)
	}
}
