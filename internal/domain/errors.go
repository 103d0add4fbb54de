package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Specific errors wrap exactly one of these so callers can
// classify with errors.Is.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("forbidden")
	ErrConflict        = errors.New("conflict")
	ErrNotFound        = errors.New("not found")
	ErrStore           = errors.New("store failure")
)

var (
	// ErrAlreadyAnswered is returned when a response already exists for the session and question.
	ErrAlreadyAnswered = fmt.Errorf("%w: question already answered", ErrConflict)
	// ErrSessionClosed is returned when recording into a session that was already finished.
	ErrSessionClosed = fmt.Errorf("%w: session already finished", ErrConflict)
	// ErrDuplicateUser indicates the username or email is taken.
	ErrDuplicateUser = fmt.Errorf("%w: username or email already exists", ErrConflict)
	// ErrDuplicateCategory indicates the category name is taken.
	ErrDuplicateCategory = fmt.Errorf("%w: category exists", ErrConflict)
	// ErrQuizClosed is returned when answering outside an active, unexpired quiz window.
	ErrQuizClosed = fmt.Errorf("%w: quiz is not active", ErrForbidden)
	// ErrSessionNotOwned is returned when acting on another user's session.
	ErrSessionNotOwned = fmt.Errorf("%w: invalid session", ErrForbidden)
	// ErrSelfDelete is returned when an admin tries to delete their own account.
	ErrSelfDelete = fmt.Errorf("%w: cannot delete yourself", ErrForbidden)
	// ErrAdminRequired is returned for admin-only operations.
	ErrAdminRequired = fmt.Errorf("%w: admins only", ErrForbidden)
	// ErrInvalidCredentials covers unknown email and wrong password alike.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	// ErrInvalidToken indicates a missing, malformed or expired bearer credential.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", ErrUnauthenticated)

	ErrUserNotFound     = fmt.Errorf("%w: user", ErrNotFound)
	ErrCategoryNotFound = fmt.Errorf("%w: category", ErrNotFound)
	ErrQuestionNotFound = fmt.Errorf("%w: question", ErrNotFound)
	ErrOptionNotFound   = fmt.Errorf("%w: option", ErrNotFound)
	ErrSessionNotFound  = fmt.Errorf("%w: session", ErrNotFound)
)

// Invalid builds a validation error carrying detail for the caller.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// StoreFailure wraps a persistence error so it classifies as ErrStore.
func StoreFailure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}
