package models

import "errors"

// Business-rule error kinds. Services wrap these with %w and context; handlers
// map them to HTTP statuses with errors.Is. Anything not matching one of these
// is an internal failure and is safe to retry.
var (
	ErrValidation = errors.New("invalid input")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
)
