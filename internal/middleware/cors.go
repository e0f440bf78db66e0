package middleware

import "github.com/gofiber/fiber/v2"

// Preflight answers advertise exactly these.
const (
	CORSAllowOrigin  = "*"
	CORSAllowMethods = "GET, POST"
	CORSAllowHeaders = "Content-Type"
)

// AllowAnyOrigin marks the response readable from any origin
func AllowAnyOrigin(c *fiber.Ctx) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, CORSAllowOrigin)
}

// CORS attaches the allow-origin header to every response passing through,
// including ones produced by later middleware or the error handler.
func CORS() fiber.Handler {
	return func(c *fiber.Ctx) error {
		AllowAnyOrigin(c)
		return c.Next()
	}
}

// Preflight writes an empty 200 answer to a CORS preflight request
func Preflight(c *fiber.Ctx) error {
	AllowAnyOrigin(c)
	c.Set(fiber.HeaderAccessControlAllowMethods, CORSAllowMethods)
	c.Set(fiber.HeaderAccessControlAllowHeaders, CORSAllowHeaders)
	// SendStatus would fill the empty body with "OK"
	c.Status(fiber.StatusOK)
	return nil
}
