package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/pedalnav/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_found, conflict, no_route, unavailable, ...
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusInternalServerError, "internal_error", msg)
}

func errNotImplemented(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotImplemented, "not_implemented", msg)
}

// errFrom maps an engine error onto the matching HTTP status.
func errFrom(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidCoordinate),
		errors.Is(err, domain.ErrInvalidBounds),
		errors.Is(err, domain.ErrEmptyRoute),
		errors.Is(err, domain.ErrUnknownRouteType):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrUnknownSession):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrAlreadyNavigating),
		errors.Is(err, domain.ErrNotNavigating),
		errors.Is(err, domain.ErrNoCandidates):
		return newError(c, fiber.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrNoRoute):
		return newError(c, fiber.StatusUnprocessableEntity, "no_route", err.Error())
	case errors.Is(err, domain.ErrSessionClosed):
		return newError(c, fiber.StatusGone, "session_closed", err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		return newError(c, fiber.StatusServiceUnavailable, "unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return newError(c, fiber.StatusGatewayTimeout, "timeout", err.Error())
	}
	LoggerFromCtx(c.UserContext()).Error("unhandled error", "path", c.Path(), "error", err)
	return errInternal(c, "internal error")
}
