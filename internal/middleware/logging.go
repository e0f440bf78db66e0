package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/neogan74/droppy-api/internal/logger"
)

// RequestIDKey is the context key for request ID
const RequestIDKey = "request_id"

// LoggerKey is the context key for logger instance
const LoggerKey = "logger"

// TraceIDKey is the context key the tracing middleware stores the trace ID under
const TraceIDKey = "trace_id"

// HeaderRequestID carries the correlation ID in both directions
const HeaderRequestID = "X-Request-ID"

// maxRequestIDLength bounds client supplied correlation IDs
const maxRequestIDLength = 128

// RequestLogging creates a middleware for request/response logging with
// correlation IDs. A client supplied X-Request-ID is reused, otherwise a
// UUID is generated; either way it is echoed back.
func RequestLogging(log logger.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID := c.Get(HeaderRequestID)
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.New().String()
		}

		c.Locals(RequestIDKey, requestID)
		c.Set(HeaderRequestID, requestID)

		requestLogger := log.WithRequest(requestID)
		if traceID, ok := c.Locals(TraceIDKey).(string); ok && traceID != "" {
			requestLogger = requestLogger.WithFields(logger.String("trace_id", traceID))
		}
		c.Locals(LoggerKey, requestLogger)

		start := time.Now()
		requestLogger.Debug("Request started",
			logger.String("method", c.Method()),
			logger.String("path", c.Path()),
			logger.String("ip", c.IP()),
			logger.String("user_agent", c.Get(fiber.HeaderUserAgent)),
		)

		err := c.Next()

		// Resolve escaped errors now so the logged status is the one sent.
		if err != nil {
			if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		logFields := []logger.Field{
			logger.String("method", c.Method()),
			logger.String("path", c.Path()),
			logger.Int("status", status),
			logger.Duration("duration", time.Since(start)),
			logger.Int("response_size", len(c.Response().Body())),
		}
		if err != nil {
			logFields = append(logFields, logger.Error(err))
		}

		switch {
		case status >= 500:
			requestLogger.Error("Request completed", logFields...)
		case status >= 400:
			requestLogger.Warn("Request completed", logFields...)
		default:
			requestLogger.Info("Request completed", logFields...)
		}

		return nil
	}
}

// GetRequestID returns the request ID from the context
func GetRequestID(c *fiber.Ctx) string {
	if requestID, ok := c.Locals(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetLogger returns the request-scoped logger, or the default logger when
// the logging middleware did not run.
func GetLogger(c *fiber.Ctx) logger.Logger {
	if log, ok := c.Locals(LoggerKey).(logger.Logger); ok {
		return log
	}
	return logger.GetDefault()
}
