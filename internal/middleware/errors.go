package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/neogan74/droppy-api/internal/logger"
)

// Plain-text bodies of error responses. Clients match on these literals.
const (
	MsgBadRequest          = "Bad request"
	MsgNotFound            = "Not found"
	MsgMethodNotAllowed    = "Method not allowed"
	MsgInternalServerError = "Internal server error"
)

// BadRequest returns a 400 response. reason is logged, never sent.
func BadRequest(c *fiber.Ctx, reason string) error {
	return plainError(c, fiber.StatusBadRequest, MsgBadRequest, reason)
}

// NotFound returns a 404 response
func NotFound(c *fiber.Ctx, reason string) error {
	return plainError(c, fiber.StatusNotFound, MsgNotFound, reason)
}

// MethodNotAllowed returns a 405 response
func MethodNotAllowed(c *fiber.Ctx, reason string) error {
	return plainError(c, fiber.StatusMethodNotAllowed, MsgMethodNotAllowed, reason)
}

// InternalServerError returns a 500 response
func InternalServerError(c *fiber.Ctx, reason string) error {
	return plainError(c, fiber.StatusInternalServerError, MsgInternalServerError, reason)
}

// SendText writes a plain-text body with the CORS origin header attached
func SendText(c *fiber.Ctx, status int, body string) error {
	AllowAnyOrigin(c)
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(status).SendString(body)
}

func plainError(c *fiber.Ctx, status int, body string, reason string) error {
	fields := []logger.Field{
		logger.String("reason", reason),
		logger.String("method", c.Method()),
		logger.String("path", c.Path()),
		logger.Int("status", status),
	}

	log := GetLogger(c)
	if status >= fiber.StatusInternalServerError {
		log.Error("HTTP error response", fields...)
	} else {
		log.Debug("HTTP error response", fields...)
	}

	return SendText(c, status, body)
}

// ErrorHandler turns errors that escaped a handler (fiber errors such as an
// oversized body, recovered panics, anything unexpected) into plain-text
// responses that still carry the CORS origin header.
func ErrorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	body := MsgInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
		switch {
		case status == fiber.StatusBadRequest:
			body = MsgBadRequest
		case status == fiber.StatusNotFound:
			body = MsgNotFound
		case status == fiber.StatusMethodNotAllowed:
			body = MsgMethodNotAllowed
		case status < fiber.StatusInternalServerError:
			body = fiberErr.Message
		}
	}

	return plainError(c, status, body, err.Error())
}
