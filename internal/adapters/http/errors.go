package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/groundwatch/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // bad_request, not_found, upstream_error, ...
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

func errUnauthorized(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusUnauthorized, "unauthorized", msg)
}

func errConflict(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusConflict, "conflict", msg)
}

func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusServiceUnavailable, "unavailable", msg)
}

// errFromDomain maps a use-case error onto the API error envelope.
func errFromDomain(c *fiber.Ctx, err error) error {
	var (
		ve *domain.ValidationError
		ue *domain.UpstreamError
	)
	switch {
	case errors.As(err, &ve):
		return errBadRequest(c, ve.Message)
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrLayerNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrReplyPending):
		return errConflict(c, err.Error())
	case errors.Is(err, domain.ErrNotConfigured):
		return errInternal(c, err.Error())
	case errors.Is(err, domain.ErrArchiveUnavailable):
		return errUnavailable(c, err.Error())
	case errors.As(err, &ue):
		return newError(c, upstreamStatus(ue), "upstream_error", ue.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return newError(c, fiber.StatusGatewayTimeout, "timeout", "upstream call timed out")
	default:
		LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
		return errInternal(c, err.Error())
	}
}

// upstreamStatus passes an upstream 4xx/5xx through and reports anything
// else as a bad gateway.
func upstreamStatus(ue *domain.UpstreamError) int {
	if ue.Status >= 400 && ue.Status <= 599 {
		return ue.Status
	}
	return fiber.StatusBadGateway
}
