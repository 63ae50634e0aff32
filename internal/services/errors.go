package services

// The error taxonomy every core operation reports through. Handlers map
// these to HTTP status codes; none of them implies partial mutation —
// an operation either applies all of its side effects or none.

// ValidationError indicates malformed or missing input
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// AuthorizationError indicates the actor is not a party to the resource
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

// NewAuthorizationError creates an AuthorizationError
func NewAuthorizationError(message string) *AuthorizationError {
	return &AuthorizationError{Message: message}
}

// ConflictError indicates a duplicate or a stale-state transition
// attempt (confirming a non-pending booking, overbooking, rating twice)
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NewConflictError creates a ConflictError
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

// NotFoundError indicates a referenced trip, booking or user is missing
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// NewNotFoundError creates a NotFoundError
func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}
