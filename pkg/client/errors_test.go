package client

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	err := newError(KindQuotaExceeded, 430, "rate limit exceeded")
	want := "scrape quota_exceeded error (status 430): rate limit exceeded"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := wrapError(KindNetwork, "request failed", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}

	var classified *Error
	wrapped := fmt.Errorf("outer: %w", err)
	if !errors.As(wrapped, &classified) {
		t.Fatal("errors.As should find *Error through wrapping")
	}
	if classified.Kind != KindNetwork {
		t.Errorf("Kind = %s, want network", classified.Kind)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"classified", newError(KindNotFound, 404, "missing"), KindNotFound},
		{"wrapped classified", fmt.Errorf("ctx: %w", newError(KindMalformed, 0, "bad")), KindMalformed},
		{"unclassified", errors.New("plain"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestShouldRetry(t *testing.T) {
	retryable := map[ErrorKind]bool{
		KindNetwork:            true,
		KindServiceUnavailable: true,
		KindBadRequest:         false,
		KindAccessForbidden:    false,
		KindQuotaExceeded:      false,
		KindNotFound:           false,
		KindMalformed:          false,
		KindUnknown:            false,
	}
	for kind, want := range retryable {
		if got := shouldRetry(kind); got != want {
			t.Errorf("shouldRetry(%s) = %v, want %v", kind, got, want)
		}
	}
}
