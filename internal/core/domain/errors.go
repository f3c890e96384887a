package domain

import "errors"

// Authentication and authorization outcomes. Handlers map these to HTTP
// statuses; nothing below the service layer returns more detail to callers.
var (
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrUnauthenticated    = errors.New("could not validate credentials")
	ErrForbidden          = errors.New("not enough permissions")
	ErrUnavailable        = errors.New("service temporarily unavailable")
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("email already registered")
	ErrInvalidInput  = errors.New("invalid input")
	ErrIssueNotFound = errors.New("issue not found")
	ErrFileNotFound  = errors.New("file not found")
	ErrFileRejected  = errors.New("file rejected")
)
