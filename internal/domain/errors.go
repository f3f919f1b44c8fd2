// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// ErrValidation is the root of all domain validation errors. Every specific
// validation sentinel wraps it, so the HTTP layer can map the whole family
// with a single errors.Is check.
var ErrValidation = errors.New("validation failed")

// Specific validation errors. Each wraps ErrValidation.
var (
	// ErrEmptyUserID is returned when a user ID is missing.
	ErrEmptyUserID = fmt.Errorf("%w: user ID cannot be empty", ErrValidation)

	// ErrEmptyUsername is returned when a username is missing.
	ErrEmptyUsername = fmt.Errorf("%w: username cannot be empty", ErrValidation)

	// ErrUsernameTooShort is returned when a username is under 3 characters.
	ErrUsernameTooShort = fmt.Errorf("%w: username must be at least 3 characters long", ErrValidation)

	// ErrInvalidEmail is returned when an email address is malformed.
	ErrInvalidEmail = fmt.Errorf("%w: invalid email format", ErrValidation)

	// ErrEmptyEmail is returned when an email address is missing.
	ErrEmptyEmail = fmt.Errorf("%w: email cannot be empty", ErrValidation)

	// ErrPasswordTooShort is returned when a password is under 8 characters.
	ErrPasswordTooShort = fmt.Errorf("%w: password must be at least 8 characters long", ErrValidation)

	// ErrPasswordTooLong is returned when a password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = fmt.Errorf("%w: password must be at most 72 characters long", ErrValidation)

	// ErrEmptyPassword is returned when neither a plaintext nor a hashed
	// password is present on a user.
	ErrEmptyPassword = fmt.Errorf("%w: password cannot be empty", ErrValidation)

	// ErrEmptyTaskName is returned when a task name is missing.
	ErrEmptyTaskName = fmt.Errorf("%w: task name cannot be empty", ErrValidation)

	// ErrInvalidPriority is returned when a priority is outside the enum.
	ErrInvalidPriority = fmt.Errorf("%w: priority must be one of LOW, MEDIUM, HIGH", ErrValidation)

	// ErrInvalidJobStatus is returned when an import job status is not valid.
	ErrInvalidJobStatus = fmt.Errorf("%w: invalid import job status", ErrValidation)
)
