package gate

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by Gate.Authorize.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnauthorized    = errors.New("unauthorized")
	// ErrNotFound hides a resource outside the subject's scope.
	ErrNotFound = errors.New("resource not found")
)

// Denial is an authorization refusal carrying a human-readable reason.
// errors.Is(d, ErrUnauthorized) holds for every Denial.
type Denial struct {
	Permission Permission
	Reason     string
}

func (d *Denial) Error() string {
	if d.Reason == "" {
		return fmt.Sprintf("unauthorized: %s", d.Permission)
	}
	return "unauthorized: " + d.Reason
}

func (d *Denial) Unwrap() error { return ErrUnauthorized }

// Deny builds a Denial with the given reason.
func Deny(reason string) error { return &Denial{Reason: reason} }

// ReasonOf extracts the reason of a Denial, or "" if err is not one.
func ReasonOf(err error) string {
	var d *Denial
	if errors.As(err, &d) {
		return d.Reason
	}
	return ""
}
