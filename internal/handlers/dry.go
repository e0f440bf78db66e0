package handlers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/neogan74/droppy-api/internal/logger"
	"github.com/neogan74/droppy-api/internal/metrics"
	"github.com/neogan74/droppy-api/internal/middleware"
	"github.com/neogan74/droppy-api/internal/persistence"
)

// DefaultRecordTTL is how long a submitted response stays readable
const DefaultRecordTTL = 300 * time.Second

// DryHandler serves the single dry resource: POST stores a named response,
// GET reads it back, OPTIONS answers CORS preflights on any path.
type DryHandler struct {
	engine persistence.Engine
	path   string
	ttl    time.Duration
}

// NewDryHandler creates a handler bound to path. A non-positive ttl falls
// back to DefaultRecordTTL.
func NewDryHandler(engine persistence.Engine, path string, ttl time.Duration) *DryHandler {
	if ttl <= 0 {
		ttl = DefaultRecordTTL
	}
	return &DryHandler{engine: engine, path: path, ttl: ttl}
}

// Handle dispatches every request that reaches the public listener.
func (h *DryHandler) Handle(c *fiber.Ctx) error {
	// Preflights succeed regardless of path.
	if c.Method() == fiber.MethodOptions {
		metrics.DryOperationsTotal.WithLabelValues("preflight", "success").Inc()
		return middleware.Preflight(c)
	}

	if c.Path() != h.path {
		return middleware.NotFound(c, "Unknown path")
	}

	switch c.Method() {
	case fiber.MethodPost:
		return h.Submit(c)
	case fiber.MethodGet:
		return h.Lookup(c)
	default:
		metrics.DryOperationsTotal.WithLabelValues("other", "method_not_allowed").Inc()
		return middleware.MethodNotAllowed(c, "Unsupported method "+c.Method())
	}
}

// Submit stores the response under the normalized name
func (h *DryHandler) Submit(c *fiber.Ctx) error {
	log := middleware.GetLogger(c)

	decode := c.App().Config().JSONDecoder

	// Only the exact keys count; struct decoding would match "NAME" too.
	var fields map[string]json.RawMessage
	var rawName, response *string
	err := decode(c.Body(), &fields)
	if err == nil {
		rawName, err = stringField(decode, fields, "name")
	}
	if err == nil {
		response, err = stringField(decode, fields, "response")
	}
	if err != nil {
		log.Debug("Failed to parse request body", logger.Error(err))
		metrics.DryOperationsTotal.WithLabelValues("submit", "invalid").Inc()
		return middleware.BadRequest(c, "Invalid JSON body")
	}

	name, ok := normalizeName(rawName)
	if !ok || response == nil || *response == "" {
		metrics.DryOperationsTotal.WithLabelValues("submit", "invalid").Inc()
		return middleware.BadRequest(c, "Missing name or response")
	}

	err = h.engine.Put(c.UserContext(), name, *response, persistence.PutOptions{ExpirationTTL: h.ttl})
	if err != nil {
		log.Error("Failed to store response",
			logger.String("name", name),
			logger.Error(err))
		metrics.DryOperationsTotal.WithLabelValues("submit", "error").Inc()
		return middleware.InternalServerError(c, "Store write failed")
	}

	log.Info("Response stored",
		logger.String("name", name),
		logger.Int("size", len(*response)),
		logger.Duration("ttl", h.ttl))
	metrics.DryOperationsTotal.WithLabelValues("submit", "success").Inc()
	return middleware.SendText(c, fiber.StatusOK, "OK")
}

// Lookup returns the stored response for the name query parameter
func (h *DryHandler) Lookup(c *fiber.Ctx) error {
	log := middleware.GetLogger(c)

	name, ok := normalizeName(queryParam(c, "name"))
	if !ok {
		metrics.DryOperationsTotal.WithLabelValues("lookup", "invalid").Inc()
		return middleware.BadRequest(c, "Missing name query parameter")
	}

	value, err := h.engine.Get(c.UserContext(), name)
	if err != nil && !persistence.IsNotFound(err) {
		log.Error("Failed to read response",
			logger.String("name", name),
			logger.Error(err))
		metrics.DryOperationsTotal.WithLabelValues("lookup", "error").Inc()
		return middleware.InternalServerError(c, "Store read failed")
	}
	// An empty stored value reads the same as a missing one.
	if err != nil || value == "" {
		metrics.DryOperationsTotal.WithLabelValues("lookup", "not_found").Inc()
		return middleware.NotFound(c, "No response stored")
	}

	log.Debug("Response retrieved", logger.String("name", name))
	metrics.DryOperationsTotal.WithLabelValues("lookup", "success").Inc()

	middleware.AllowAnyOrigin(c)
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlain)
	return c.Status(fiber.StatusOK).SendString(value)
}

// stringField reads fields[key] as a string. A missing key or a JSON null
// yields nil; any other non-string value is an error.
func stringField(decode utils.JSONUnmarshal, fields map[string]json.RawMessage, key string) (*string, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, nil
	}
	var value *string
	if err := decode(raw, &value); err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	return value, nil
}

// normalizeName folds case and trims surrounding whitespace, BOM included.
// Absent and blank names both report false.
func normalizeName(raw *string) (string, bool) {
	if raw == nil {
		return "", false
	}
	name := strings.ToLower(strings.TrimFunc(*raw, isNameSpace))
	return name, name != ""
}

func isNameSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

// queryParam distinguishes an absent parameter from an empty one
func queryParam(c *fiber.Ctx, key string) *string {
	args := c.Context().QueryArgs()
	if !args.Has(key) {
		return nil
	}
	value := string(args.Peek(key))
	return &value
}
