package util

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestEngineErrorUnwrap(t *testing.T) {
	inner := errors.New("lock poisoned")
	err := NewEngineError("bucket", "insert", "table full", inner)

	if !errors.Is(err, ErrEngineFailure) {
		t.Error("EngineError should unwrap to ErrEngineFailure")
	}
	msg := err.Error()
	for _, want := range []string{"bucket", "insert", "table full", "lock poisoned"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q missing %q", msg, want)
		}
	}
}

func TestPrefixErrorUnwrap(t *testing.T) {
	err := NewPrefixError("10.0.0.0/99", "mask length 99 out of range 0-32")
	if !errors.Is(err, ErrInvalidPrefix) {
		t.Error("PrefixError should unwrap to ErrInvalidPrefix")
	}
	if !strings.Contains(err.Error(), "10.0.0.0/99") {
		t.Errorf("error message should carry the input: %q", err.Error())
	}

	wrapped := fmt.Errorf("insert: %w", err)
	if !errors.Is(wrapped, ErrInvalidPrefix) {
		t.Error("wrapped PrefixError should still match ErrInvalidPrefix")
	}
}

func TestAddressErrorUnwrap(t *testing.T) {
	err := NewAddressError("not-an-ip")
	if !errors.Is(err, ErrInvalidAddress) {
		t.Error("AddressError should unwrap to ErrInvalidAddress")
	}
}

func TestInsertErrorUnwrap(t *testing.T) {
	err := NewInsertError(map[string]error{
		"linear": errors.New("boom"),
		"bucket": errors.New("crash"),
	})
	if !errors.Is(err, ErrAllEnginesFailed) {
		t.Error("InsertError should unwrap to ErrAllEnginesFailed")
	}
	msg := err.Error()
	if !strings.Contains(msg, "linear") || !strings.Contains(msg, "bucket") {
		t.Errorf("error message should name every engine: %q", msg)
	}
}
