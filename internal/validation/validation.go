// Package validation provides input validation for the churnwatch API.
package validation

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxClientIDLength bounds client identifiers.
const MaxClientIDLength = 64

// DateLayout is the calendar date format accepted in query strings.
const DateLayout = time.DateOnly

var clientIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidClientID checks a client identifier: letters, digits, '_',
// '.', '-', starting with a letter or digit.
func IsValidClientID(id string) bool {
	return len(id) <= MaxClientIDLength && clientIDRegex.MatchString(id)
}

// SanitizeString trims whitespace, limits length and drops null bytes.
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return strings.ReplaceAll(s, "\x00", "")
}

// ParseDate parses a YYYY-MM-DD date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate runs validators and collects their failures.
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errs ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errs = append(errs, *err)
		}
	}
	return errs
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// ValidClientID checks a client identifier field.
func ValidClientID(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		if !IsValidClientID(value) {
			return &ValidationError{Field: field, Message: "must be 1-64 letters, digits, '_', '.' or '-'"}
		}
		return nil
	}
}

// ValidDate checks a YYYY-MM-DD field.
func ValidDate(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil
		}
		if _, err := ParseDate(value); err != nil {
			return &ValidationError{Field: field, Message: "must be a date in YYYY-MM-DD format"}
		}
		return nil
	}
}

// IntRange checks an optional integer field lies in [lo, hi].
func IntRange(field, value string, lo, hi int) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < lo || n > hi {
			return &ValidationError{Field: field, Message: "must be an integer between " + strconv.Itoa(lo) + " and " + strconv.Itoa(hi)}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}
