// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for lookup and control-plane failures
var (
	ErrInvalidPrefix    = errors.New("invalid prefix")
	ErrInvalidAddress   = errors.New("invalid address")
	ErrEngineFailure    = errors.New("engine operation failed")
	ErrAllEnginesFailed = errors.New("all engines failed")
	ErrTimeout          = errors.New("lookup deadline exceeded")
	ErrNotRegistered    = errors.New("engine not registered")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// EngineError represents a failure of a single lookup engine with context
type EngineError struct {
	EngineID string
	Op       string
	Detail   string
	Err      error
}

func (e *EngineError) Error() string {
	msg := fmt.Sprintf("engine %s: %s failed", e.EngineID, e.Op)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EngineError) Unwrap() error {
	return ErrEngineFailure
}

// NewEngineError creates a new engine error
func NewEngineError(engineID, op, detail string, err error) *EngineError {
	return &EngineError{
		EngineID: engineID,
		Op:       op,
		Detail:   detail,
		Err:      err,
	}
}

// PrefixError represents a malformed CIDR prefix
type PrefixError struct {
	Input  string
	Reason string
}

func (e *PrefixError) Error() string {
	return fmt.Sprintf("invalid prefix %q: %s", e.Input, e.Reason)
}

func (e *PrefixError) Unwrap() error {
	return ErrInvalidPrefix
}

// NewPrefixError creates a prefix error
func NewPrefixError(input, reason string) *PrefixError {
	return &PrefixError{Input: input, Reason: reason}
}

// AddressError represents a malformed lookup address
type AddressError struct {
	Input string
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("invalid address %q: not a dotted-quad IPv4 address", e.Input)
}

func (e *AddressError) Unwrap() error {
	return ErrInvalidAddress
}

// NewAddressError creates an address error
func NewAddressError(input string) *AddressError {
	return &AddressError{Input: input}
}

// InsertError aggregates per-engine failures when no engine accepted a route
type InsertError struct {
	Failures map[string]error
}

func (e *InsertError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for id, err := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", id, err))
	}
	return "all engines failed: " + strings.Join(parts, "; ")
}

func (e *InsertError) Unwrap() error {
	return ErrAllEnginesFailed
}

// NewInsertError creates an insert error from per-engine failures
func NewInsertError(failures map[string]error) *InsertError {
	return &InsertError{Failures: failures}
}
