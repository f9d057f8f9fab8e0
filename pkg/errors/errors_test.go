package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestNewAppError(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := NewAppError(ErrFileNotFound, "test message", cause)

	if err.Code != ErrFileNotFound {
		t.Errorf("Expected code %s, got %s", ErrFileNotFound, err.Code)
	}

	if err.Message != "test message" {
		t.Errorf("Expected message 'test message', got '%s'", err.Message)
	}

	if err.Cause != cause {
		t.Errorf("Expected cause to be set")
	}

	if err.UserMessage == "" {
		t.Errorf("Expected user message to be set")
	}

	if err.Timestamp.IsZero() {
		t.Errorf("Expected timestamp to be set")
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		code     ErrorCode
		message  string
		cause    error
		expected string
	}{
		{
			name:     "error with cause",
			code:     ErrFileNotFound,
			message:  "test message",
			cause:    fmt.Errorf("underlying error"),
			expected: "FILE_NOT_FOUND: test message (caused by: underlying error)",
		},
		{
			name:     "error without cause",
			code:     ErrFileNotFound,
			message:  "test message",
			expected: "FILE_NOT_FOUND: test message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAppError(tt.code, tt.message, tt.cause)
			if err.Error() != tt.expected {
				t.Errorf("Expected error string '%s', got '%s'", tt.expected, err.Error())
			}
		})
	}
}

func TestAppError_Kind(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected Kind
	}{
		{ErrFileTooBig, KindValidation},
		{ErrFileTypeNotAllowed, KindValidation},
		{ErrUploadQueueEmpty, KindValidation},
		{ErrNetworkError, KindTransport},
		{ErrUnauthorized, KindTransport},
		{ErrBackendError, KindTransport},
		{ErrPartialBatchFailure, KindPartialBatch},
		{ErrUnknownError, KindInternal},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := NewAppError(tt.code, "msg", nil).Kind(); got != tt.expected {
				t.Errorf("Expected kind %s for %s, got %s", tt.expected, tt.code, got)
			}
		})
	}
}

func TestAppError_IsRecoverable(t *testing.T) {
	tests := []struct {
		name     string
		code     ErrorCode
		expected bool
	}{
		{"network error is recoverable", ErrNetworkError, true},
		{"timeout is recoverable", ErrConnectionTimeout, true},
		{"unavailable is recoverable", ErrServiceUnavailable, true},
		{"unauthorized is not recoverable", ErrUnauthorized, false},
		{"file too big is not recoverable", ErrFileTooBig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewAppError(tt.code, "test message", nil)
			if err.IsRecoverable() != tt.expected {
				t.Errorf("Expected IsRecoverable() to return %v for %s", tt.expected, tt.code)
			}
		})
	}
}

func TestAppError_GetUserMessage(t *testing.T) {
	err := NewAppError(ErrFileNotFound, "technical message", nil)
	if err.GetUserMessage() == "technical message" {
		t.Errorf("Expected user message to be different from technical message")
	}

	tooBig := NewValidationError(ErrFileTooBig, `"big.iso" exceeds the 100MB size limit`)
	if tooBig.GetUserMessage() != `"big.iso" exceeds the 100MB size limit` {
		t.Errorf("Expected validation message to be shown verbatim, got %q", tooBig.GetUserMessage())
	}

	err.UserMessage = "custom user message"
	if err.GetUserMessage() != "custom user message" {
		t.Errorf("Expected custom user message to be returned")
	}
}

func TestNewValidationError_RejectsNonValidationCode(t *testing.T) {
	err := NewValidationError(ErrNetworkError, "bad")
	if err.Code != ErrInvalidInput {
		t.Errorf("Expected code to fall back to %s, got %s", ErrInvalidInput, err.Code)
	}
}

func TestNewStatusError(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorCode
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrAccessDenied},
		{http.StatusNotFound, ErrFileNotFound},
		{http.StatusServiceUnavailable, ErrServiceUnavailable},
		{http.StatusBadGateway, ErrServiceUnavailable},
		{http.StatusInternalServerError, ErrBackendError},
		{http.StatusRequestEntityTooLarge, ErrBackendError},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := NewStatusError(tt.status, "list files", " boom \n")
			if err.Code != tt.expected {
				t.Errorf("Expected code %s, got %s", tt.expected, err.Code)
			}
			if err.StatusCode != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, err.StatusCode)
			}
			want := fmt.Sprintf("list files failed with status %d: boom", tt.status)
			if err.Message != want {
				t.Errorf("Expected message %q, got %q", want, err.Message)
			}
		})
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name         string
		inputError   error
		expectedCode ErrorCode
	}{
		{"context deadline exceeded", context.DeadlineExceeded, ErrConnectionTimeout},
		{"wrapped deadline exceeded", fmt.Errorf("list: %w", context.DeadlineExceeded), ErrConnectionTimeout},
		{"context canceled", context.Canceled, ErrUploadCanceled},
		{"net timeout", timeoutError{}, ErrConnectionTimeout},
		{"dns error", &net.DNSError{Err: "no such host", Name: "docs.local"}, ErrDNSResolutionFailed},
		{"op error", &net.OpError{Op: "dial", Err: fmt.Errorf("connection refused")}, ErrNetworkError},
		{"connection refused text", fmt.Errorf("dial tcp: connection refused"), ErrNetworkError},
		{"access denied", fmt.Errorf("AccessDenied: permission denied"), ErrS3AccessDenied},
		{"no such bucket", fmt.Errorf("NoSuchBucket: bucket does not exist"), ErrS3BucketNotFound},
		{"no such key", fmt.Errorf("NoSuchKey: key does not exist"), ErrS3ObjectNotFound},
		{"invalid access key", fmt.Errorf("InvalidAccessKeyId: invalid key"), ErrInvalidCredentials},
		{"file not found", fmt.Errorf("open x: no such file or directory"), ErrFileNotFound},
		{"permission denied", fmt.Errorf("open x: permission denied"), ErrAccessDenied},
		{"batch error", &BatchError{Operation: "delete", Failed: []BatchItemError{{ID: "2", Err: fmt.Errorf("x")}}}, ErrPartialBatchFailure},
		{"unknown", fmt.Errorf("some unknown error"), ErrUnknownError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClassifyError(tt.inputError)
			if result == nil {
				t.Fatalf("Expected non-nil result")
			}
			if result.Code != tt.expectedCode {
				t.Errorf("Expected code %s, got %s", tt.expectedCode, result.Code)
			}
		})
	}

	if ClassifyError(nil) != nil {
		t.Errorf("Expected nil result for nil input")
	}
}

func TestClassifyError_WrappedAppError(t *testing.T) {
	original := NewAppError(ErrUnauthorized, "login required", nil)
	wrapped := fmt.Errorf("list files: %w", original)

	if ClassifyError(wrapped) != original {
		t.Errorf("Expected wrapped AppError to be returned as-is")
	}
	if KindOf(wrapped) != KindTransport {
		t.Errorf("Expected transport kind, got %s", KindOf(wrapped))
	}
	if !HasCode(wrapped, ErrUnauthorized) {
		t.Errorf("Expected HasCode to see through wrapping")
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, ErrUploadFailed, "x") != nil {
		t.Errorf("Expected nil for nil error")
	}

	cause := fmt.Errorf("boom")
	wrapped := WrapError(cause, ErrUploadFailed, "upload failed")
	if wrapped.Code != ErrUploadFailed || !stderrors.Is(wrapped, cause) {
		t.Errorf("Expected wrapped error with cause, got %v", wrapped)
	}

	existing := NewAppError(ErrFileNotFound, "missing", nil)
	if WrapError(existing, "", "ignored") != existing {
		t.Errorf("Expected existing AppError to be preserved when no code is given")
	}
}

func TestNewPartialBatchFailure(t *testing.T) {
	if err := NewPartialBatchFailure("delete files", []string{"1", "3"}, nil); err != nil {
		t.Fatalf("Expected nil when nothing failed, got %v", err)
	}

	cause := fmt.Errorf("backend said no")
	err := NewPartialBatchFailure("delete files", []string{"1", "3"}, []BatchItemError{{ID: "2", Err: cause}})
	if err == nil {
		t.Fatal("Expected an error")
	}
	if KindOf(err) != KindPartialBatch {
		t.Errorf("Expected partial batch kind, got %s", KindOf(err))
	}

	var batch *BatchError
	if !stderrors.As(err, &batch) {
		t.Fatal("Expected BatchError in chain")
	}
	if got := batch.FailedIDs(); len(got) != 1 || got[0] != "2" {
		t.Errorf("Expected failed ids [2], got %v", got)
	}
	if !stderrors.Is(err, cause) {
		t.Errorf("Expected per-item cause to be reachable")
	}
	if batch.Error() != "delete files: 1 of 3 items failed (2)" {
		t.Errorf("Unexpected batch message %q", batch.Error())
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	attempts := 0
	config := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return NewAppError(ErrNetworkError, "flaky", nil)
		}
		return nil
	}, config)

	if err != nil {
		t.Errorf("Expected success, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts)
	}
}

func TestRetryWithBackoff_NonRecoverableError(t *testing.T) {
	attempts := 0
	config := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return NewAppError(ErrUnauthorized, "no session", nil)
	}, config)

	if attempts != 1 {
		t.Errorf("Expected 1 attempt for non-recoverable error, got %d", attempts)
	}
	if !HasCode(err, ErrUnauthorized) {
		t.Errorf("Expected original error, got %v", err)
	}
}

func TestRetryWithBackoff_MaxAttemptsReached(t *testing.T) {
	attempts := 0
	config := RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2}

	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return NewAppError(ErrServiceUnavailable, "down", nil)
	}, config)

	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
	if !HasCode(err, ErrServiceUnavailable) {
		t.Errorf("Expected last error to be returned, got %v", err)
	}
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := RetryConfig{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Second, Multiplier: 2}

	attempts := 0
	err := RetryWithBackoff(ctx, func() error {
		attempts++
		cancel()
		return NewAppError(ErrNetworkError, "down", nil)
	}, config)

	if attempts != 1 {
		t.Errorf("Expected 1 attempt before cancellation, got %d", attempts)
	}
	if !IsCanceled(err) {
		t.Errorf("Expected canceled error, got %v", err)
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded to be a timeout")
	}
	if !IsTimeout(timeoutError{}) {
		t.Errorf("Expected net timeout to be a timeout")
	}
	if IsTimeout(fmt.Errorf("nope")) || IsTimeout(nil) {
		t.Errorf("Expected plain errors not to be timeouts")
	}
}
