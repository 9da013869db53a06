// Package services defines the business logic for the loyalty ledger and the
// admin surface. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when a required field is missing or malformed.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidCode is returned when a visit presents a code other than the
	// venue code. It matches ErrInvalidInput under errors.Is.
	ErrInvalidCode = fmt.Errorf("%w: invalid venue code", ErrInvalidInput)

	// ErrUserNotFound indicates that the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ErrDuplicateVisit is returned when the user already has a visit on the
	// current calendar day.
	ErrDuplicateVisit = errors.New("visit already recorded today")
)

// Admin surface errors.
var (
	// ErrStaffNotFound indicates that the roster entry does not exist.
	ErrStaffNotFound = errors.New("staff member not found")

	// ErrInvalidCredentials is returned by Login for a wrong login or password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionNotFound is returned for unknown or expired bearer tokens.
	ErrSessionNotFound = errors.New("session not found")
)
