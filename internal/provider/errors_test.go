package provider

import (
	"errors"
	"testing"
)

func TestInvocationErrorWrapping(t *testing.T) {
	original := errors.New("connection refused")
	err := NewInvocationError("openai", ErrorCodeServerError, "upstream down", original)

	if !errors.Is(err, original) {
		t.Error("Unwrap must expose the original error")
	}
	if got := err.Error(); got != "openai error: upstream down" {
		t.Errorf("Error() = %q", got)
	}
}

func TestRetryability(t *testing.T) {
	tests := []struct {
		code      string
		retryable bool
	}{
		{ErrorCodeRateLimit, true},
		{ErrorCodeServerError, true},
		{ErrorCodeTimeout, true},
		{ErrorCodeEmptyResponse, true},
		{ErrorCodeInvalidRequest, false},
		{ErrorCodeAuthentication, false},
		{ErrorCodeModelNotFound, false},
		{ErrorCodeUnknown, false},
	}
	for _, tt := range tests {
		err := NewInvocationError("p", tt.code, "msg", nil)
		if err.IsRetryable != tt.retryable {
			t.Errorf("code %s: IsRetryable = %v, want %v", tt.code, err.IsRetryable, tt.retryable)
		}
	}
}

func TestCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   string
	}{
		{400, ErrorCodeInvalidRequest},
		{401, ErrorCodeAuthentication},
		{403, ErrorCodeAuthentication},
		{404, ErrorCodeModelNotFound},
		{429, ErrorCodeRateLimit},
		{500, ErrorCodeServerError},
		{503, ErrorCodeServerError},
		{418, ErrorCodeUnknown},
	}
	for _, tt := range tests {
		if got := CodeForStatus(tt.status); got != tt.want {
			t.Errorf("CodeForStatus(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}
