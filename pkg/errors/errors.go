package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrorCode represents different types of application errors
type ErrorCode string

const (
	// Validation errors, raised locally before any network call
	ErrFileTooBig          ErrorCode = "FILE_TOO_BIG"
	ErrFileTypeNotAllowed  ErrorCode = "FILE_TYPE_NOT_ALLOWED"
	ErrInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrUploadQueueEmpty    ErrorCode = "UPLOAD_QUEUE_EMPTY"
	ErrOperationNotAllowed ErrorCode = "OPERATION_NOT_ALLOWED"

	// Transport errors, raised by the backend round trip
	ErrNetworkError        ErrorCode = "NETWORK_ERROR"
	ErrConnectionTimeout   ErrorCode = "CONNECTION_TIMEOUT"
	ErrServiceUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
	ErrDNSResolutionFailed ErrorCode = "DNS_RESOLUTION_FAILED"
	ErrBackendError        ErrorCode = "BACKEND_ERROR"
	ErrUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrAccessDenied        ErrorCode = "ACCESS_DENIED"
	ErrFileNotFound        ErrorCode = "FILE_NOT_FOUND"
	ErrUploadFailed        ErrorCode = "UPLOAD_FAILED"
	ErrDownloadFailed      ErrorCode = "DOWNLOAD_FAILED"
	ErrUploadCanceled      ErrorCode = "UPLOAD_CANCELED"

	// Object store diagnostics
	ErrS3BucketNotFound   ErrorCode = "S3_BUCKET_NOT_FOUND"
	ErrS3ObjectNotFound   ErrorCode = "S3_OBJECT_NOT_FOUND"
	ErrS3AccessDenied     ErrorCode = "S3_ACCESS_DENIED"
	ErrInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"

	// Batch errors
	ErrPartialBatchFailure ErrorCode = "PARTIAL_BATCH_FAILURE"

	// Configuration errors
	ErrConfigurationError ErrorCode = "CONFIGURATION_ERROR"
	ErrInvalidConfig      ErrorCode = "INVALID_CONFIG"

	// Generic errors
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
	ErrUnknownError  ErrorCode = "UNKNOWN_ERROR"
)

// Kind groups error codes by where they are raised and how they are recovered
type Kind string

const (
	KindValidation   Kind = "validation"
	KindTransport    Kind = "transport"
	KindPartialBatch Kind = "partial_batch"
	KindInternal     Kind = "internal"
)

var codeKinds = map[ErrorCode]Kind{
	ErrFileTooBig:          KindValidation,
	ErrFileTypeNotAllowed:  KindValidation,
	ErrInvalidInput:        KindValidation,
	ErrUploadQueueEmpty:    KindValidation,
	ErrOperationNotAllowed: KindValidation,
	ErrNetworkError:        KindTransport,
	ErrConnectionTimeout:   KindTransport,
	ErrServiceUnavailable:  KindTransport,
	ErrDNSResolutionFailed: KindTransport,
	ErrBackendError:        KindTransport,
	ErrUnauthorized:        KindTransport,
	ErrAccessDenied:        KindTransport,
	ErrFileNotFound:        KindTransport,
	ErrUploadFailed:        KindTransport,
	ErrDownloadFailed:      KindTransport,
	ErrUploadCanceled:      KindTransport,
	ErrS3BucketNotFound:    KindTransport,
	ErrS3ObjectNotFound:    KindTransport,
	ErrS3AccessDenied:      KindTransport,
	ErrInvalidCredentials:  KindTransport,
	ErrPartialBatchFailure: KindPartialBatch,
}

// AppError represents an application-specific error with user-friendly messaging
type AppError struct {
	Code            ErrorCode              `json:"code"`
	Message         string                 `json:"message"`
	UserMessage     string                 `json:"user_message"`
	Cause           error                  `json:"-"`
	Context         map[string]interface{} `json:"context,omitempty"`
	StatusCode      int                    `json:"status_code,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
	Recoverable     bool                   `json:"recoverable"`
	RetryAfter      *time.Duration         `json:"retry_after,omitempty"`
	SuggestedAction string                 `json:"suggested_action,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Kind reports the taxonomy group of the error
func (e *AppError) Kind() Kind {
	if k, ok := codeKinds[e.Code]; ok {
		return k
	}
	return KindInternal
}

// IsRecoverable returns whether the error is recoverable
func (e *AppError) IsRecoverable() bool {
	return e.Recoverable
}

// GetUserMessage returns a user-friendly error message
func (e *AppError) GetUserMessage() string {
	if e.UserMessage != "" {
		return e.UserMessage
	}
	return e.Message
}

// GetSuggestedAction returns a suggested action for the user
func (e *AppError) GetSuggestedAction() string {
	return e.SuggestedAction
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:            code,
		Message:         message,
		UserMessage:     getUserFriendlyMessage(code, message),
		Cause:           cause,
		Context:         make(map[string]interface{}),
		Timestamp:       time.Now(),
		Recoverable:     isRecoverable(code),
		RetryAfter:      getRetryAfter(code),
		SuggestedAction: getSuggestedAction(code),
	}
}

// NewAppErrorWithContext creates a new application error with context
func NewAppErrorWithContext(code ErrorCode, message string, cause error, context map[string]interface{}) *AppError {
	err := NewAppError(code, message, cause)
	err.Context = context
	return err
}

// NewValidationError creates a client-side validation error
func NewValidationError(code ErrorCode, message string) *AppError {
	if codeKinds[code] != KindValidation {
		code = ErrInvalidInput
	}
	return NewAppError(code, message, nil)
}

// NewStatusError converts a non-2xx HTTP response into a transport error
func NewStatusError(status int, operation, body string) *AppError {
	var code ErrorCode
	switch {
	case status == http.StatusUnauthorized:
		code = ErrUnauthorized
	case status == http.StatusForbidden:
		code = ErrAccessDenied
	case status == http.StatusNotFound:
		code = ErrFileNotFound
	case status == http.StatusServiceUnavailable, status == http.StatusBadGateway, status == http.StatusGatewayTimeout:
		code = ErrServiceUnavailable
	default:
		code = ErrBackendError
	}

	message := fmt.Sprintf("%s failed with status %d", operation, status)
	if body = strings.TrimSpace(body); body != "" {
		message = fmt.Sprintf("%s: %s", message, body)
	}

	err := NewAppError(code, message, nil)
	err.StatusCode = status
	return err
}

// WrapError wraps an existing error with application error context
func WrapError(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}

	// If it's already an AppError, preserve the original code if not specified
	var appErr *AppError
	if stderrors.As(err, &appErr) && code == "" {
		return appErr
	}

	return NewAppError(code, message, err)
}

// ClassifyError attempts to classify a generic error into an AppError
func ClassifyError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	var batchErr *BatchError
	if stderrors.As(err, &batchErr) {
		return NewAppError(ErrPartialBatchFailure, batchErr.Error(), err)
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewAppError(ErrConnectionTimeout, "Operation timed out", err)
	}
	if stderrors.Is(err, context.Canceled) {
		return NewAppError(ErrUploadCanceled, "Operation was canceled", err)
	}

	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return NewAppError(ErrDNSResolutionFailed, "Failed to resolve DNS", err)
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewAppError(ErrConnectionTimeout, "Network operation timed out", err)
		}
		return NewAppError(ErrNetworkError, "Network error occurred", err)
	}

	errStr := strings.ToLower(err.Error())

	// S3-compatible store errors (based on error message patterns)
	if strings.Contains(errStr, "accessdenied") {
		return NewAppError(ErrS3AccessDenied, "Access denied to object storage", err)
	}
	if strings.Contains(errStr, "nosuchbucket") {
		return NewAppError(ErrS3BucketNotFound, "Bucket not found", err)
	}
	if strings.Contains(errStr, "nosuchkey") || strings.Contains(errStr, "notfound") {
		return NewAppError(ErrS3ObjectNotFound, "Object not found", err)
	}
	if strings.Contains(errStr, "invalidaccesskeyid") || strings.Contains(errStr, "signaturedoesnotmatch") {
		return NewAppError(ErrInvalidCredentials, "Invalid object storage credentials", err)
	}

	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") || strings.Contains(errStr, "unexpected eof") {
		return NewAppError(ErrNetworkError, "Network error occurred", err)
	}
	if strings.Contains(errStr, "no such file") || strings.Contains(errStr, "file not found") {
		return NewAppError(ErrFileNotFound, "File not found", err)
	}
	if strings.Contains(errStr, "permission denied") {
		return NewAppError(ErrAccessDenied, "Permission denied", err)
	}

	return NewAppError(ErrUnknownError, "An unexpected error occurred", err)
}

// KindOf reports the taxonomy group of any error
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return ClassifyError(err).Kind()
}

// IsValidation reports whether err blocked an action locally
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// HasCode reports whether err classifies to the given code
func HasCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return ClassifyError(err).Code == code
}

// getUserFriendlyMessage returns a user-friendly message for the error code
func getUserFriendlyMessage(code ErrorCode, originalMessage string) string {
	switch code {
	case ErrFileTooBig, ErrFileTypeNotAllowed, ErrInvalidInput, ErrPartialBatchFailure:
		// these messages already name the offending file or limit
		return originalMessage
	case ErrUploadQueueEmpty:
		return "Select at least one file to upload."
	case ErrOperationNotAllowed:
		return "This operation is not allowed right now."
	case ErrNetworkError:
		return "A network error occurred. Please check your connection and try again."
	case ErrConnectionTimeout:
		return "The connection timed out. Please check your connection and try again."
	case ErrServiceUnavailable:
		return "The document service is temporarily unavailable. Please try again in a few minutes."
	case ErrDNSResolutionFailed:
		return "The document service address could not be resolved. Please check your settings."
	case ErrBackendError:
		return "The document service could not complete the request."
	case ErrUnauthorized:
		return "Your session has expired. Please sign in again."
	case ErrAccessDenied:
		return "You don't have permission to perform this operation."
	case ErrFileNotFound:
		return "The file could not be found. It may have been moved or deleted."
	case ErrUploadFailed:
		return "Failed to upload the file. Please try again."
	case ErrDownloadFailed:
		return "Failed to download the file. Please try again."
	case ErrUploadCanceled:
		return "The operation was canceled."
	case ErrS3BucketNotFound:
		return "The storage bucket could not be found. Please check your configuration."
	case ErrS3ObjectNotFound:
		return "The object was not found in storage."
	case ErrS3AccessDenied:
		return "Access to the storage service was denied. Please check your permissions."
	case ErrInvalidCredentials:
		return "The storage credentials are invalid. Please check your access key and secret key."
	case ErrConfigurationError, ErrInvalidConfig:
		return "There's a configuration error. Please check your settings."
	default:
		if originalMessage != "" {
			return originalMessage
		}
		return "An unexpected error occurred. Please try again."
	}
}

// isRecoverable determines if an error is recoverable
func isRecoverable(code ErrorCode) bool {
	recoverableErrors := map[ErrorCode]bool{
		ErrNetworkError:        true,
		ErrConnectionTimeout:   true,
		ErrServiceUnavailable:  true,
		ErrDNSResolutionFailed: true,
	}
	return recoverableErrors[code]
}

// getRetryAfter returns the suggested retry delay for recoverable errors
func getRetryAfter(code ErrorCode) *time.Duration {
	retryDelays := map[ErrorCode]time.Duration{
		ErrNetworkError:        5 * time.Second,
		ErrConnectionTimeout:   10 * time.Second,
		ErrServiceUnavailable:  30 * time.Second,
		ErrDNSResolutionFailed: 10 * time.Second,
	}

	if delay, exists := retryDelays[code]; exists {
		return &delay
	}
	return nil
}

// getSuggestedAction returns a suggested action for the user
func getSuggestedAction(code ErrorCode) string {
	actions := map[ErrorCode]string{
		ErrFileTooBig:         "Choose a smaller file or compress it",
		ErrFileTypeNotAllowed: "Choose a file of an accepted type",
		ErrUnauthorized:       "Sign in again",
		ErrAccessDenied:       "Contact your administrator to check your permissions",
		ErrNetworkError:       "Check your connection and try again",
		ErrConnectionTimeout:  "Check your connection and try again",
		ErrServiceUnavailable: "Wait a few minutes and try again",
		ErrS3BucketNotFound:   "Verify the S3_BUCKET setting",
		ErrInvalidCredentials: "Verify the S3 access key and secret key",
		ErrConfigurationError: "Check your configuration",
		ErrInvalidConfig:      "Check your configuration",
	}
	return actions[code]
}

// RetryableOperation represents an operation that can be retried
type RetryableOperation func() error

// RetryConfig configures retry behavior
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
	}
}

// RetryWithBackoff retries an operation with exponential backoff.
// Only recoverable errors are retried; anything else is returned immediately.
func RetryWithBackoff(ctx context.Context, operation RetryableOperation, config RetryConfig) error {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	var lastErr error
	delay := config.BaseDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err

		appErr := ClassifyError(err)
		if !appErr.IsRecoverable() {
			return err
		}

		if attempt == config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return NewAppError(ErrUploadCanceled, "Operation was canceled", ctx.Err())
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	return lastErr
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	return ClassifyError(err).Code == ErrConnectionTimeout
}

// IsCanceled checks if an error is due to context cancellation
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	return stderrors.Is(err, context.Canceled) || ClassifyError(err).Code == ErrUploadCanceled
}
