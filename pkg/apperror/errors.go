package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// statusByCode maps the canonical wallet outcome codes to HTTP statuses.
var statusByCode = map[string]int{
	"INVALID_AMOUNT":           http.StatusBadRequest,
	"UNKNOWN_PLAYER":           http.StatusNotFound,
	"INSUFFICIENT_FUNDS":       http.StatusPaymentRequired,
	"IDEMPOTENCY_REPLAY":       http.StatusOK,
	"IDEMPOTENCY_MISMATCH":     http.StatusConflict,
	"DUPLICATE_KEY":            http.StatusConflict,
	"DEADLOCK_RETRY_EXHAUSTED": http.StatusServiceUnavailable,
	"CONNECTION_LOST":          http.StatusServiceUnavailable,
	"DEGRADED_MODE":            http.StatusServiceUnavailable,
}

// FromCode maps a canonical wallet code to an AppError. Unknown codes map to
// 500 so a taxonomy hole is loud rather than silent.
func FromCode(code string, message string) *AppError {
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	return New(code, message, status)
}

// ---- Module Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid module credentials", http.StatusUnauthorized)
}

func ErrModuleExists() *AppError {
	return New("AUTH_002", "Module id already registered", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

func ErrModuleSuspended() *AppError {
	return New("AUTH_004", "Module is suspended", http.StatusForbidden)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}
