package response

import (
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/midiconv/internal/apperr"
)

// Error codes
const (
	CodeValidationError     = "VALIDATION_ERROR"
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeRateLimited         = "RATE_LIMITED"
	CodeJobBusy             = "JOB_BUSY"
	CodeJobFailed           = "JOB_FAILED"
	CodeAudioLoad           = "AUDIO_LOAD_ERROR"
	CodeModelError          = "MODEL_ERROR"
	CodeInsufficientStorage = "INSUFFICIENT_STORAGE"
	CodeServiceError        = "SERVICE_ERROR"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return c.Status(status).JSON(ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// StatusFor maps a classified error to an HTTP status and error code
func StatusFor(err error) (int, string) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return fiber.StatusBadRequest, CodeValidationError
	case apperr.KindNotFound:
		return fiber.StatusNotFound, CodeNotFound
	case apperr.KindBusy:
		return fiber.StatusConflict, CodeJobBusy
	case apperr.KindAudioLoad:
		return fiber.StatusUnprocessableEntity, CodeAudioLoad
	case apperr.KindModel:
		if apperr.IsOutOfMemory(err) {
			return fiber.StatusInsufficientStorage, CodeInsufficientStorage
		}
		return fiber.StatusBadGateway, CodeModelError
	case apperr.KindConversion:
		return fiber.StatusInternalServerError, CodeJobFailed
	default:
		return fiber.StatusInternalServerError, CodeServiceError
	}
}

// FromError writes the envelope for err. Unclassified errors get a generic
// message so internals are not leaked.
func FromError(c *fiber.Ctx, err error) error {
	status, code := StatusFor(err)
	message := err.Error()
	if apperr.KindOf(err) == "" {
		message = "Internal server error"
	}
	return Error(c, status, code, message, nil)
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func Forbidden(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusForbidden, CodeForbidden, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded", nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
