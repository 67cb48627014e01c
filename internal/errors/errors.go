package errors

import "fmt"

// ErrorCode represents a cipherbox error code.
type ErrorCode string

const (
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"     // 400
	ErrNotFound          ErrorCode = "NOT_FOUND"           // 404
	ErrFileNotFound      ErrorCode = "FILE_NOT_FOUND"      // 404
	ErrNameAlreadyExists ErrorCode = "NAME_ALREADY_EXISTS" // 409
	ErrInputTooLarge     ErrorCode = "INPUT_TOO_LARGE"     // 413
	ErrInvalidModule     ErrorCode = "INVALID_MODULE"      // 422
	ErrInternal          ErrorCode = "INTERNAL"            // 500
)

// CipherError represents a structured error with code, status, and details.
type CipherError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *CipherError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *CipherError {
	return &CipherError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a cipher module cannot be found.
func NewNotFound(name string) *CipherError {
	return &CipherError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("module not found: %s", name),
		Details: map[string]any{"module": name},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *CipherError {
	return &CipherError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewNameAlreadyExists creates a 409 error for module name collisions.
func NewNameAlreadyExists(name string) *CipherError {
	return &CipherError{
		Code:    ErrNameAlreadyExists,
		Status:  409,
		Message: fmt.Sprintf("module with name %q already exists", name),
		Details: map[string]any{"name": name},
	}
}

// NewInputTooLarge creates a 413 error when the input text exceeds the size limit.
func NewInputTooLarge(max, actual int) *CipherError {
	return &CipherError{
		Code:    ErrInputTooLarge,
		Status:  413,
		Message: fmt.Sprintf("input exceeds maximum size: %d chars (max %d)", actual, max),
		Details: map[string]any{"max_chars": max, "actual_chars": actual},
	}
}

// NewInvalidModule creates a 422 error for a module definition that cannot be parsed.
func NewInvalidModule(name string, err error) *CipherError {
	msg := fmt.Sprintf("invalid module definition %q", name)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &CipherError{
		Code:    ErrInvalidModule,
		Status:  422,
		Message: msg,
		Details: map[string]any{"name": name},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *CipherError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CipherError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a CipherError with the given code.
func Is(err error, code ErrorCode) bool {
	if cErr, ok := err.(*CipherError); ok {
		return cErr.Code == code
	}
	return false
}
