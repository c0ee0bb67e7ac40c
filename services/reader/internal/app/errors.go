package app

import "errors"

// FieldError reports a validation failure for a single form field.
// Handlers serialize it as {"errors": {field: message}}.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return e.Message
}

// ErrContentNotFound is returned when no owned row matches an update.
var ErrContentNotFound = errors.New("content not found")
