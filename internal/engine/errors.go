package engine

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ForestPrefix marks every error raised by the agent itself.
const ForestPrefix = "🌳🌳🌳 "

type AppError struct {
	Code    string        `json:"code"`
	Status  int           `json:"-"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) HTTPStatus() int {
	return e.Status
}

// ErrorResponse repeats the message at the top level, where the Forest
// frontend reads it.
type ErrorResponse struct {
	Message string    `json:"message"`
	Error   *AppError `json:"error"`
}

func NewErrorResponse(err *AppError) ErrorResponse {
	return ErrorResponse{Message: err.Message, Error: err}
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

// ForestError is a chart or schema failure, reported as a server error.
func ForestError(format string, args ...any) *AppError {
	return &AppError{
		Code:    "FOREST_ERROR",
		Status:  500,
		Message: ForestPrefix + fmt.Sprintf(format, args...),
	}
}

func ForbiddenError() *AppError {
	return &AppError{
		Code:    "FORBIDDEN",
		Status:  403,
		Message: "This action is unauthorized.",
	}
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{
		Code:    "UNAUTHORIZED",
		Status:  401,
		Message: msg,
	}
}

func UnknownCollectionError(name string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_COLLECTION",
		Status:  404,
		Message: fmt.Sprintf("%sUnknown collection: %s", ForestPrefix, name),
	}
}

func BadRequestError(msg string, details ...ErrorDetail) *AppError {
	return &AppError{
		Code:    "BAD_REQUEST",
		Status:  400,
		Message: msg,
		Details: details,
	}
}

// WriteError renders err. AppErrors keep their status; anything else is
// logged and answered with a 500.
func WriteError(c *fiber.Ctx, err error, logger *zap.Logger) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(NewErrorResponse(appErr))
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(NewErrorResponse(NewAppError("HTTP_ERROR", fiberErr.Code, fiberErr.Message)))
	}

	logger.Error("request failed",
		zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(
		NewErrorResponse(NewAppError("INTERNAL_ERROR", fiber.StatusInternalServerError, "Internal server error")))
}

// ErrorHandler is a fiber.Config ErrorHandler built on WriteError.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		return WriteError(c, err, logger)
	}
}

// RenderErrors answers errors of the handlers after it, so the routes
// behave the same whatever error handler the host application installed.
func RenderErrors(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}
		return WriteError(c, err, logger)
	}
}
