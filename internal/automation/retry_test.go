package automation

import (
	"errors"
	"fmt"
	"testing"
)

func TestRetryable(t *testing.T) {
	base := errors.New("boom")

	if Retryable(nil) != nil {
		t.Error("Retryable(nil) must be nil")
	}
	if IsRetryable(base) {
		t.Error("plain error must not be retryable")
	}

	r := Retryable(base)
	if !IsRetryable(r) {
		t.Error("wrapped error must be retryable")
	}
	if !errors.Is(r, base) {
		t.Error("wrapping must preserve the cause")
	}

	// The marker survives further fmt.Errorf wrapping.
	wrapped := fmt.Errorf("run failed: %w", r)
	if !IsRetryable(wrapped) {
		t.Error("marker lost through wrapping")
	}
	if r.Error() != "boom" {
		t.Errorf("message = %q", r.Error())
	}
}
