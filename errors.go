package mandcluster

import (
	"errors"
	"fmt"
)

// Error represents a structured mandcluster error with enough context to
// diagnose a dispatch failure without round-tripping to the register log.
type Error struct {
	Op    string // Operation that failed (e.g. "SUBMIT", "RESET")
	Core  int64  // Hardware core involved (-1 if not applicable)
	Code  ErrorCode
	Msg   string
	Inner error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		if e.Core >= 0 {
			return fmt.Sprintf("mandcluster: %s (op=%s core=%d)", msg, e.Op, e.Core)
		}
		return fmt.Sprintf("mandcluster: %s (op=%s)", msg, e.Op)
	}
	return fmt.Sprintf("mandcluster: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is lets errors.Is match on Code alone, the way callers actually want to
// distinguish a retry-exhausted submission from a closed scheduler.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// ErrorCode represents a high-level category for a mandcluster failure.
type ErrorCode string

const (
	ErrCodeFatalInit        ErrorCode = "fatal initialization failure"
	ErrCodeAlreadyOpen      ErrorCode = "facade already open"
	ErrCodeDispatchRejected ErrorCode = "dispatch rejected"
	ErrCodeCoreReset        ErrorCode = "core reset mid-flight"
	ErrCodeRetryExhausted   ErrorCode = "retry budget exhausted"
	ErrCodeSchedulerClosed  ErrorCode = "scheduler closed"
	ErrCodeQueueFull        ErrorCode = "intake queue full"
	ErrCodeInvalidOperand   ErrorCode = "operand out of range"
)

// NewError creates a new structured error with no associated core.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Core: -1, Code: code, Msg: msg}
}

// NewCoreError creates a new structured error scoped to a specific core.
func NewCoreError(op string, core uint64, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Core: int64(core), Code: code, Msg: msg}
}

// WrapError wraps an existing error with mandcluster context, preserving its
// code if it is already a structured Error.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if me, ok := inner.(*Error); ok {
		return &Error{Op: op, Core: me.Core, Code: me.Code, Msg: me.Msg, Inner: me.Inner}
	}
	return &Error{Op: op, Core: -1, Code: ErrCodeFatalInit, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a mandcluster Error carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
