package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/diewo77/taskflow/gate"
	"github.com/diewo77/taskflow/validation"
	"gorm.io/gorm"
)

// Sentinel errors shared by every service.
var (
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrAuthenticationRequired = errors.New("authentication required")
)

// ValidationError reports input that cannot be accepted. Message is meant
// for display next to the form; Fields holds per-field violation codes.
type ValidationError struct {
	Message string
	Fields  validation.Violations
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(message string) error { return &ValidationError{Message: message} }

func invalidFields(message string, v validation.Violations) error {
	return &ValidationError{Message: message, Fields: v}
}

// ConflictError reports a uniqueness clash such as a duplicate email.
type ConflictError struct {
	Field   string
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// ForbiddenError is an authorization refusal with a displayable reason.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	if e.Reason == "" {
		return "You do not have permission to do that."
	}
	return e.Reason
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// ExternalError wraps a failed call to an outside service.
type ExternalError struct {
	Service string
	Message string
}

func (e *ExternalError) Error() string { return e.Message }

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func IsConflictError(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// authzError translates gate errors into the service taxonomy.
func authzError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gate.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, gate.ErrUnauthenticated):
		return ErrAuthenticationRequired
	case errors.Is(err, gate.ErrUnauthorized):
		return &ForbiddenError{Reason: gate.ReasonOf(err)}
	}
	return fmt.Errorf("authorize: %w", err)
}

// notFound maps gorm's missing-record error to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// isUniqueViolation recognizes unique-constraint failures from sqlite and postgres.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
