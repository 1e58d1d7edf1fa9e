// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

// Machine-readable error codes. The shift backend client maps them back to
// the till sentinels, so they are part of the wire contract.
const (
	CodeAlreadyOpen             = "ALREADY_OPEN"
	CodeNoActiveShift           = "NO_ACTIVE_SHIFT"
	CodeBreakAlreadyActive      = "BREAK_ALREADY_ACTIVE"
	CodeNoActiveBreak           = "NO_ACTIVE_BREAK"
	CodeShiftOnBreak            = "SHIFT_ON_BREAK"
	CodeInvalidAmount           = "INVALID_AMOUNT"
	CodeInvalidBreakType        = "INVALID_BREAK_TYPE"
	CodeCollaboratorUnavailable = "COLLABORATOR_UNAVAILABLE"
	CodeNotFound                = "NOT_FOUND"
	CodeValidation              = "VALIDATION"
	CodeBadRequest              = "BAD_REQUEST"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeForbidden               = "FORBIDDEN"
	CodeRateLimited             = "RATE_LIMITED"
	CodeInternal                = "INTERNAL"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

func WithCode(code, msg string) *APIError {
	return &APIError{Detail: msg, Code: code}
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Detail
	}
	return e.Code + ": " + e.Detail
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "validation failed", Code: CodeValidation, Fields: fields}
}
