package services

import "errors"

// Common service errors. Handlers map these onto HTTP status codes; the
// services themselves never swallow or retry them.
var (
	ErrNotFound          = errors.New("record not found")
	ErrUnauthorized      = errors.New("role lacks permission for this action")
	ErrInvalidTransition = errors.New("invalid workflow transition")
	ErrValidationFailed  = errors.New("required input missing or invalid")
	ErrConflict          = errors.New("application was modified by another user")
	ErrInvalidPassword   = errors.New("invalid credentials")
	ErrDuplicate         = errors.New("record already exists")
)
