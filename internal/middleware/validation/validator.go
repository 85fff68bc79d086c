package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Config struct {
	MaxKeywordLength    int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware rejects bodies with an unexpected content type and search
// keywords that are too long. A clean keyword is stored in Locals under
// "keyword".
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxKeywordLength == 0 {
		cfg.MaxKeywordLength = 100
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get(fiber.HeaderContentType)
			if contentType != "" && len(c.Body()) > 0 && !allowedType(contentType, cfg.AllowedContentTypes) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		if q := c.Query("q"); q != "" {
			keyword := sanitizeString(q)
			if utf8.RuneCountInString(keyword) > cfg.MaxKeywordLength {
				cfg.Logger.Warn("Search keyword too long",
					zap.String("ip", c.IP()),
					zap.Int("length", utf8.RuneCountInString(keyword)),
				)
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "params [q] is incorrect: keyword exceeds maximum length",
				})
			}
			c.Locals("keyword", keyword)
		}

		return c.Next()
	}
}

func allowedType(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

func sanitizeString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")
	return input
}
