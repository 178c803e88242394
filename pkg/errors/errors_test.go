package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrorTypeAuth, 401, "token %s", "expired")
	if got := err.Error(); got != "auth error (code 401): token expired" {
		t.Errorf("unexpected message: %s", got)
	}

	cause := fmt.Errorf("disk full")
	wrapped := Persistence(cause, "save tried codes")
	if got := wrapped.Error(); got != "persistence error: save tried codes: disk full" {
		t.Errorf("unexpected message: %s", got)
	}
	if !stderrors.Is(wrapped, cause) {
		t.Error("expected wrapped error to unwrap to its cause")
	}
}

func TestTypeOf(t *testing.T) {
	inner := New(ErrorTypeNetwork, 0, "reset")
	outer := fmt.Errorf("fetch page: %w", inner)

	if TypeOf(outer) != ErrorTypeNetwork {
		t.Errorf("expected network, got %s", TypeOf(outer))
	}
	if TypeOf(fmt.Errorf("plain")) != ErrorTypeUnknown {
		t.Error("expected unknown for untyped error")
	}
	if TypeOf(nil) != ErrorTypeUnknown {
		t.Error("expected unknown for nil")
	}
}

func TestFromStatus(t *testing.T) {
	cases := map[int]ErrorType{
		0:   ErrorTypeNetwork,
		401: ErrorTypeAuth,
		403: ErrorTypeAuth,
		404: ErrorTypeNotFound,
		429: ErrorTypeRateLimit,
		502: ErrorTypeServerError,
		418: ErrorTypeUnknown,
	}
	for code, want := range cases {
		if got := FromStatus(code); got != want {
			t.Errorf("FromStatus(%d) = %s, want %s", code, got, want)
		}
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	retryable := []int{0, 429, 500, 503, 599}
	for _, code := range retryable {
		if !IsRetryableStatusCode(code) {
			t.Errorf("expected %d to be retryable", code)
		}
	}
	permanent := []int{400, 401, 403, 404}
	for _, code := range permanent {
		if IsRetryableStatusCode(code) {
			t.Errorf("expected %d to be permanent", code)
		}
	}
	if !IsRetryable(ErrorTypeServerError) || IsRetryable(ErrorTypePersistence) {
		t.Error("unexpected IsRetryable result")
	}
}
