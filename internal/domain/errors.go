package domain

import "errors"

// Sentinel errors for the application. Store and service layers return these
// (possibly wrapped); the transport layer maps them to HTTP status codes.
var (
	ErrNotFound                = errors.New("resource not found")
	ErrAlreadyExists           = errors.New("conversation already exists")
	ErrUnauthorized            = errors.New("not a member of this conversation")
	ErrInvalidConversationType = errors.New("invalid conversation type for this operation")
	ErrAlreadyAccepted         = errors.New("invitation already accepted")
	ErrValidation              = errors.New("invalid input")
	ErrConflict                = errors.New("resource already exists")
)
