// Package errors defines the ingestion error taxonomy.
//
// Callers check categories with errors.Is against the sentinels:
//
//	if errors.Is(err, errors.ErrPolicyDenied) {
//	    // skip this origin for the rest of the day
//	}
//
// or inspect the Code directly:
//
//	var ingestErr *errors.Error
//	if errors.As(err, &ingestErr) && ingestErr.Code == errors.CodeFetchFailed { ... }
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code is a machine-readable error category.
type Code string

const (
	CodePolicyDenied       Code = "POLICY_DENIED"
	CodeFetchFailed        Code = "FETCH_FAILED"
	CodeParseFailure       Code = "PARSE_FAILURE"
	CodeValidationConflict Code = "VALIDATION_CONFLICT"
	CodeStoreWriteFailure  Code = "STORE_WRITE_FAILURE"
)

// Retryable reports whether work failing with this code should be attempted
// again on a later cycle.
func (c Code) Retryable() bool {
	switch c {
	case CodeFetchFailed, CodeStoreWriteFailure:
		return true
	default:
		return false
	}
}

// Error is a categorized error with an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Sentinels for errors.Is checks.
var (
	ErrPolicyDenied       = &Error{Code: CodePolicyDenied, Message: "policy denied"}
	ErrFetchFailed        = &Error{Code: CodeFetchFailed, Message: "fetch failed"}
	ErrParseFailure       = &Error{Code: CodeParseFailure, Message: "parse failure"}
	ErrValidationConflict = &Error{Code: CodeValidationConflict, Message: "validation conflict"}
	ErrStoreWriteFailure  = &Error{Code: CodeStoreWriteFailure, Message: "store write failure"}
)

// PolicyDenied reports a robots.txt disallow for origin.
func PolicyDenied(origin string) *Error {
	return &Error{Code: CodePolicyDenied, Message: fmt.Sprintf("robots.txt disallows %s", origin)}
}

// FetchFailed reports a fetch that exhausted its attempts.
func FetchFailed(url string, attempts int, cause error) *Error {
	return &Error{Code: CodeFetchFailed, Message: fmt.Sprintf("%s after %d attempt(s)", url, attempts), Err: cause}
}

// ParseFailure reports a malformed page or row.
func ParseFailure(what string, cause error) *Error {
	return &Error{Code: CodeParseFailure, Message: what, Err: cause}
}

// ValidationConflict reports a cross-source disagreement.
func ValidationConflict(gameID string, cause error) *Error {
	return &Error{Code: CodeValidationConflict, Message: fmt.Sprintf("sources disagree for %s", gameID), Err: cause}
}

// StoreWriteFailure reports a rolled-back batch.
func StoreWriteFailure(entity string, cause error) *Error {
	return &Error{Code: CodeStoreWriteFailure, Message: fmt.Sprintf("upsert %s batch rolled back", entity), Err: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
