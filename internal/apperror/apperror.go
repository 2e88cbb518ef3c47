// Package apperror defines the failure taxonomy for sandboxed runs.
//
// Every failure a script can cause maps onto one of five sentinel errors.
// The sandbox converts anything that goes wrong inside a run into an
// *ExecError and attaches it to the execution result; nothing in this
// package ever crashes the host process.
package apperror

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrCompile       = errors.New("compile error")
	ErrBlockedName   = errors.New("blocked name")
	ErrRuntime       = errors.New("runtime error")
	ErrTimeout       = errors.New("timeout")
	ErrResourceLimit = errors.New("resource limit exceeded")
)

// Kind identifiers, stable across releases. Used as metric labels and in
// serialized results.
const (
	KindCompile       = "compile_error"
	KindBlockedName   = "blocked_name"
	KindRuntime       = "runtime_error"
	KindTimeout       = "timeout"
	KindResourceLimit = "resource_limit"
)

type ExecError struct {
	Err     error  `json:"-"`                // sentinel for errors.Is
	Kind    string `json:"kind"`             // stable kind identifier
	Message string `json:"message"`          // shown to the code author
	Detail  string `json:"detail,omitempty"` // optional: short traceback or offending name
}

func (e *ExecError) Error() string {
	return e.Message
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

func Compile(message string) *ExecError {
	return &ExecError{
		Err:     ErrCompile,
		Kind:    KindCompile,
		Message: message,
	}
}

// BlockedName reports a reference to a name the sandbox does not expose.
// The message is phrased so the code author can tell a sandbox denial
// apart from a plain typo.
func BlockedName(name string) *ExecError {
	return &ExecError{
		Err:     ErrBlockedName,
		Kind:    KindBlockedName,
		Message: fmt.Sprintf("'%s' is not available in the sandbox", name),
		Detail:  name,
	}
}

func Runtime(message, detail string) *ExecError {
	return &ExecError{
		Err:     ErrRuntime,
		Kind:    KindRuntime,
		Message: message,
		Detail:  detail,
	}
}

func Timeout(budget time.Duration) *ExecError {
	return &ExecError{
		Err:     ErrTimeout,
		Kind:    KindTimeout,
		Message: fmt.Sprintf("execution timed out after %s", budget),
	}
}

// Cancelled reports a caller-initiated cancellation. It shares the timeout
// sentinel: cancellation and timeout are both forcible terminations and
// callers treat them identically.
func Cancelled() *ExecError {
	return &ExecError{
		Err:     ErrTimeout,
		Kind:    KindTimeout,
		Message: "execution cancelled by caller",
	}
}

func ResourceLimit(message string) *ExecError {
	return &ExecError{
		Err:     ErrResourceLimit,
		Kind:    KindResourceLimit,
		Message: message,
	}
}
