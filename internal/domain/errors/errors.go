package errors

import (
	"fmt"
	"net/http"
	"strings"

	"onboarding/internal/errors"
)

// AppError defines the interface for application-specific errors
type AppError interface {
	error
	HTTPCode() int     // HTTP status code
	ErrorCode() string // Business error code
	Message() string   // User-friendly error message
	Details() string   // Detailed error information (optional)
}

// BaseError is a basic error structure that implements the AppError interface
type BaseError struct {
	httpCode  int
	errorCode string
	message   string
	details   string
}

// NewBaseError creates a new base error
func NewBaseError(httpCode int, errorCode, message, details string) *BaseError {
	return &BaseError{
		httpCode:  httpCode,
		errorCode: errorCode,
		message:   message,
		details:   details,
	}
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.details != "" {
		return e.message + ": " + e.details
	}

	return e.message
}

// WrapMessage wraps the error with additional context message
func (e *BaseError) WrapMessage(message string) error {
	return errors.Wrap(e, message)
}

// WithDetails returns a copy of the error carrying details.
func (e *BaseError) WithDetails(details string) *BaseError {
	cloned := *e
	cloned.details = details

	return &cloned
}

// HTTPCode returns the HTTP status code
func (e *BaseError) HTTPCode() int {
	return e.httpCode
}

// ErrorCode returns the business error code
func (e *BaseError) ErrorCode() string {
	return e.errorCode
}

// Message returns the user-friendly error message
func (e *BaseError) Message() string {
	return e.message
}

// Details returns detailed error information
func (e *BaseError) Details() string {
	return e.details
}

// Is matches any BaseError carrying the same error code, so copies made by
// WithDetails still satisfy errors.Is against the predefined value.
func (e *BaseError) Is(target error) bool {
	t, ok := target.(*BaseError)

	return ok && t.errorCode == e.errorCode
}

// Predefined error types
var (
	// Merchant-related errors
	ErrMerchantNotFound = NewBaseError(
		http.StatusNotFound,
		"MERCHANT_NOT_FOUND",
		"找不到商家",
		"",
	)

	ErrDuplicateEmail = NewBaseError(
		http.StatusConflict,
		"DUPLICATE_EMAIL",
		"此電子郵件已被註冊",
		"",
	)

	ErrProvisioningFailed = NewBaseError(
		http.StatusInternalServerError,
		"PROVISIONING_FAILED",
		"建立商家帳號失敗",
		"",
	)

	ErrVersionConflict = NewBaseError(
		http.StatusConflict,
		"VERSION_CONFLICT",
		"商家資料已被其他操作更新，請重試",
		"",
	)

	// Setup token errors
	ErrTokenNotFound = NewBaseError(
		http.StatusNotFound,
		"TOKEN_NOT_FOUND",
		"設定連結無效",
		"",
	)

	ErrTokenExpired = NewBaseError(
		http.StatusGone,
		"TOKEN_EXPIRED",
		"設定連結已過期",
		"",
	)

	ErrTokenAlreadyConsumed = NewBaseError(
		http.StatusConflict,
		"TOKEN_ALREADY_CONSUMED",
		"設定連結已被使用",
		"",
	)

	// Credential errors
	ErrPasswordHashFailed = NewBaseError(
		http.StatusInternalServerError,
		"PASSWORD_HASH_FAILED",
		"密碼處理失敗",
		"",
	)

	ErrPasswordPolicyViolation = NewBaseError(
		http.StatusBadRequest,
		"PASSWORD_POLICY_VIOLATION",
		"密碼不符合安全規則",
		"",
	)

	ErrCredentialGenerationFailed = NewBaseError(
		http.StatusInternalServerError,
		"CREDENTIAL_GENERATION_FAILED",
		"憑證產生失敗",
		"",
	)

	// Verification errors
	ErrInvalidStateTransition = NewBaseError(
		http.StatusConflict,
		"INVALID_STATE_TRANSITION",
		"不允許的驗證狀態變更",
		"",
	)

	ErrDocumentNotFound = NewBaseError(
		http.StatusNotFound,
		"DOCUMENT_NOT_FOUND",
		"找不到文件",
		"",
	)

	ErrInvalidBulkAction = NewBaseError(
		http.StatusBadRequest,
		"INVALID_BULK_ACTION",
		"無效的批次操作",
		"",
	)

	// Generic errors
	ErrValidationFailed = NewBaseError(
		http.StatusBadRequest,
		"VALIDATION_FAILED",
		"輸入資料驗證失敗",
		"",
	)

	ErrTransactionFailed = NewBaseError(
		http.StatusInternalServerError,
		"TRANSACTION_FAILED",
		"交易處理失敗",
		"",
	)

	ErrInternalError = NewBaseError(
		http.StatusInternalServerError,
		"INTERNAL_ERROR",
		"系統內部錯誤",
		"",
	)

	ErrUnauthorized = NewBaseError(
		http.StatusUnauthorized,
		"UNAUTHORIZED",
		"尚未登入或權杖無效",
		"",
	)

	ErrForbidden = NewBaseError(
		http.StatusForbidden,
		"FORBIDDEN",
		"存取被拒絕",
		"",
	)

	ErrNotFound = NewBaseError(
		http.StatusNotFound,
		"NOT_FOUND",
		"找不到該資源",
		"",
	)
)

// NewInvalidTransitionError reports a verification transition that the state machine forbids.
func NewInvalidTransitionError(from, to string) *BaseError {
	return ErrInvalidStateTransition.WithDetails(fmt.Sprintf("%s -> %s", from, to))
}

// FieldError names one failing input field and the rule it broke.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError lists every invalid field of a request.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, rule string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Rule: rule}}}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Details()
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailed
}

func (e *ValidationError) HTTPCode() int     { return ErrValidationFailed.HTTPCode() }
func (e *ValidationError) ErrorCode() string { return ErrValidationFailed.ErrorCode() }
func (e *ValidationError) Message() string   { return ErrValidationFailed.Message() }

// Details renders the failing fields as "field: rule" pairs.
func (e *ValidationError) Details() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Rule)
	}

	return strings.Join(parts, "; ")
}

// PasswordPolicyError lists every password rule the candidate failed.
type PasswordPolicyError struct {
	Rules []string
}

func (e *PasswordPolicyError) Error() string {
	return "password policy violation: " + e.Details()
}

func (e *PasswordPolicyError) Is(target error) bool {
	return target == ErrPasswordPolicyViolation
}

func (e *PasswordPolicyError) HTTPCode() int     { return ErrPasswordPolicyViolation.HTTPCode() }
func (e *PasswordPolicyError) ErrorCode() string { return ErrPasswordPolicyViolation.ErrorCode() }
func (e *PasswordPolicyError) Message() string   { return ErrPasswordPolicyViolation.Message() }
func (e *PasswordPolicyError) Details() string   { return strings.Join(e.Rules, ", ") }

// DatabaseExecuteError represents a database execution error, implementing the AppError interface
type DatabaseExecuteError struct {
	err     error
	details string
}

// NewDatabaseExecuteError creates a database-related error
func NewDatabaseExecuteError(err error, details string) AppError {
	return &DatabaseExecuteError{
		err:     err,
		details: details,
	}
}

// Error implements the error interface
func (e *DatabaseExecuteError) Error() string {
	return errors.Wrap(e.err, "database execution failed").Error()
}

// Unwrap exposes the driver error.
func (e *DatabaseExecuteError) Unwrap() error {
	return e.err
}

// HTTPCode returns the HTTP status code
func (e *DatabaseExecuteError) HTTPCode() int {
	return http.StatusInternalServerError
}

// ErrorCode returns the business error code
func (e *DatabaseExecuteError) ErrorCode() string {
	return "DATABASE_EXECUTE_FAILED"
}

// Message returns the user-friendly error message
func (e *DatabaseExecuteError) Message() string {
	return "資料庫執行失敗"
}

// Details returns detailed error information
func (e *DatabaseExecuteError) Details() string {
	return e.details
}
