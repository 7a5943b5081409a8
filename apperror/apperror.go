// Package apperror defines a centralized system for application-specific errors.
// Services return *AppError values and the HTTP layer turns them into a
// consistent JSON body with WriteError.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is an enumeration (using `iota`) for different categories of application errors.
type ErrorType int

const (
	// UnknownError is for unspecified errors
	UnknownError ErrorType = iota
	// DatabaseError represents an error originating from the database
	DatabaseError
	// ConfigError represents an error related to application configuration
	ConfigError
	// UnauthorizedError represents an authentication failure (missing/invalid token, wrong credentials)
	UnauthorizedError
	// ForbiddenError represents an authenticated caller without permission
	ForbiddenError
	// NotFoundError represents a resource not found error
	NotFoundError
	// ValidationError represents an input validation error
	ValidationError
	// BadRequestError represents a generic bad request
	BadRequestError
	// InternalError represents a generic internal server error
	InternalError
	// ExternalServiceError represents an error from an external service (object storage)
	ExternalServiceError
	// MigrationError represents an error during database migrations
	MigrationError
	// ConflictError represents a conflict, e.g., resource already exists
	ConflictError
	// PayloadTooLargeError represents an upload above the configured ceiling
	PayloadTooLargeError
	// UnsupportedMediaError represents an upload with a content type outside the whitelist
	UnsupportedMediaError
)

// FieldError describes a single invalid input field.
type FieldError struct {
	Field   string `json:"field" example:"password"`
	Message string `json:"message" example:"must contain an uppercase letter and a digit"`
}

// AppError is a custom error type for the application.
// It allows wrapping an underlying error (`Err`) for logging while only
// `Message` and `Fields` ever reach the client.
type AppError struct {
	Type    ErrorType
	Message string
	Err     error // Underlying error
	Fields  []FieldError
}

// Error returns the string representation of the error, satisfying the `error` interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status code appropriate for the error type
func (e *AppError) StatusCode() int {
	switch e.Type {
	case UnauthorizedError:
		return http.StatusUnauthorized
	case ForbiddenError:
		return http.StatusForbidden
	case NotFoundError:
		return http.StatusNotFound
	case ValidationError, BadRequestError:
		return http.StatusBadRequest
	case ConflictError:
		return http.StatusConflict
	case PayloadTooLargeError:
		return http.StatusRequestEntityTooLarge
	case UnsupportedMediaError:
		return http.StatusUnsupportedMediaType
	case ExternalServiceError:
		return http.StatusBadGateway
	case DatabaseError, ConfigError, InternalError, MigrationError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// NewAppError creates a new AppError. Useful when the error type is determined dynamically.
func NewAppError(errType ErrorType, message string, underlyingError error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Err:     underlyingError,
	}
}

// NewDatabaseError creates a new DatabaseError
func NewDatabaseError(message string, underlyingError error) *AppError {
	return NewAppError(DatabaseError, message, underlyingError)
}

// NewConfigError creates a new ConfigError
func NewConfigError(message string, underlyingError error) *AppError {
	return NewAppError(ConfigError, message, underlyingError)
}

// NewUnauthorizedError creates a new UnauthorizedError (401)
func NewUnauthorizedError(message string, underlyingError error) *AppError {
	return NewAppError(UnauthorizedError, message, underlyingError)
}

// NewForbiddenError creates a new ForbiddenError (403)
func NewForbiddenError(message string, underlyingError error) *AppError {
	return NewAppError(ForbiddenError, message, underlyingError)
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(message string, underlyingError error) *AppError {
	return NewAppError(NotFoundError, message, underlyingError)
}

// NewValidationError creates a new ValidationError carrying per-field details.
func NewValidationError(message string, fields []FieldError) *AppError {
	return &AppError{Type: ValidationError, Message: message, Fields: fields}
}

// NewBadRequestError creates a new BadRequestError
func NewBadRequestError(message string, underlyingError error) *AppError {
	return NewAppError(BadRequestError, message, underlyingError)
}

// NewInternalError creates a new InternalError
func NewInternalError(message string, underlyingError error) *AppError {
	return NewAppError(InternalError, message, underlyingError)
}

// NewExternalServiceError creates a new ExternalServiceError
func NewExternalServiceError(message string, underlyingError error) *AppError {
	return NewAppError(ExternalServiceError, message, underlyingError)
}

// NewMigrationError creates a new MigrationError
func NewMigrationError(message string, underlyingError error) *AppError {
	return NewAppError(MigrationError, message, underlyingError)
}

// NewConflictError creates a new ConflictError
func NewConflictError(message string, underlyingError error) *AppError {
	return NewAppError(ConflictError, message, underlyingError)
}

// NewPayloadTooLargeError creates a new PayloadTooLargeError
func NewPayloadTooLargeError(message string, underlyingError error) *AppError {
	return NewAppError(PayloadTooLargeError, message, underlyingError)
}

// NewUnsupportedMediaError creates a new UnsupportedMediaError
func NewUnsupportedMediaError(message string, underlyingError error) *AppError {
	return NewAppError(UnsupportedMediaError, message, underlyingError)
}

// ErrorResponse represents a generic error response payload for API clients.
type ErrorResponse struct {
	Error   string       `json:"error" example:"A description of the error"`
	Details []FieldError `json:"details,omitempty"`
}

// ToResponse converts an AppError to an ErrorResponse suitable for API responses.
// Only the user-facing `Message` is included, never the underlying `Err`.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Details: e.Fields}
}

// FromError attempts to find an *AppError in err's chain.
// It returns the *AppError and true if successful, otherwise nil and false.
func FromError(err error) (*AppError, bool) {
	if err == nil {
		return nil, false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func isType(err error, t ErrorType) bool {
	appErr, ok := FromError(err)
	return ok && appErr.Type == t
}

// IsNotFound checks if an error is a NotFound error
func IsNotFound(err error) bool { return isType(err, NotFoundError) }

// IsUnauthorizedError checks if an error is an UnauthorizedError
func IsUnauthorizedError(err error) bool { return isType(err, UnauthorizedError) }

// IsValidationError checks if an error is a Validation error
func IsValidationError(err error) bool { return isType(err, ValidationError) }

// IsConflictError checks if an error is a Conflict error
func IsConflictError(err error) bool { return isType(err, ConflictError) }
