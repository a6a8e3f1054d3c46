package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestNewClassifies(t *testing.T) {
	errMissing := New("widget missing", ErrNotFound)
	wrapped := fmt.Errorf("%w: id=42", errMissing)

	if !stderrors.Is(wrapped, errMissing) {
		t.Error("wrapped error should match its sentinel")
	}
	if !stderrors.Is(wrapped, ErrNotFound) {
		t.Error("wrapped error should match its kind")
	}
	if stderrors.Is(wrapped, ErrInvalidInput) {
		t.Error("wrapped error should not match an unrelated kind")
	}
	if got := wrapped.Error(); got != "widget missing: id=42" {
		t.Errorf("message = %q", got)
	}
}

func TestKindRoundTrip(t *testing.T) {
	for _, sentinel := range []error{ErrNotFound, ErrInvalidInput, ErrAlreadyExists, ErrConflict, ErrTimeout, ErrClosed} {
		kind := Kind(fmt.Errorf("op: %w", sentinel))
		if got := FromKind(kind); got != sentinel {
			t.Errorf("FromKind(Kind(%v)) = %v", sentinel, got)
		}
	}
	if Kind(stderrors.New("boom")) != "internal" {
		t.Error("unclassified errors should be internal")
	}
	if FromKind("internal") != nil {
		t.Error("internal should not map to a sentinel")
	}
	if Kind(nil) != "" {
		t.Error("nil error should have empty kind")
	}
}
