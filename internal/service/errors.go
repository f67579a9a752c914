package service

import "errors"

// Common service errors
var (
	// ErrPermissionDenied is returned when the caller lacks a required role
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition is returned when the project's position forbids the operation
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidState is returned when a stored project is outside the known pipeline
	ErrInvalidState = errors.New("invalid project state")

	// ErrConcurrentModification is returned when a project kept changing under a write
	ErrConcurrentModification = errors.New("project was modified concurrently")

	// ErrProjectNotFound is returned when a project is not found
	ErrProjectNotFound = errors.New("project not found")

	// ErrUserNotFound is returned when a user is not found
	ErrUserNotFound = errors.New("user not found")

	// ErrClientNotFound is returned when a client is not found
	ErrClientNotFound = errors.New("client not found")

	// ErrRoleNotFound is returned when a role is not found
	ErrRoleNotFound = errors.New("role not found")

	// ErrInvalidRole is returned when a role name is blank or malformed
	ErrInvalidRole = errors.New("invalid role")
)
