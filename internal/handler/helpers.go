package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/autoeval/autoeval-go-api/internal/middleware"
)

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// assignmentNumberFromForm parses the optional assignmentNumber form field.
func assignmentNumberFromForm(c *fiber.Ctx) (*int, error) {
	raw := strings.TrimSpace(c.FormValue("assignmentNumber"))
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// assignmentNumberFromQuery parses the optional assignmentNumber query field.
func assignmentNumberFromQuery(c *fiber.Ctx) (*int, error) {
	raw := strings.TrimSpace(c.Query("assignmentNumber"))
	if raw == "" {
		return nil, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func extraKey(assignmentNumber *int) string {
	if assignmentNumber == nil {
		return ""
	}
	return strconv.Itoa(*assignmentNumber)
}
