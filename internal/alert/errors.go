package alert

import "errors"

// Domain errors for the alert package.
var (
	// ErrAlertNotFound is returned when an alert ID does not exist.
	ErrAlertNotFound = errors.New("alert: not found")

	// ErrInvalidAlert is returned when alert validation fails.
	ErrInvalidAlert = errors.New("alert: invalid")

	// ErrInvalidSeverity is returned when a severity value is not recognised.
	ErrInvalidSeverity = errors.New("alert: invalid severity")
)
