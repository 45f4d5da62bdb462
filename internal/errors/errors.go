package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeInternal     ErrorType = "INTERNAL"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"

	// ErrorTypePrivateRepoPublicInstance is reported when a repository is
	// private and the configured instance only serves public code.
	ErrorTypePrivateRepoPublicInstance ErrorType = "ERPRIVATEREPOPUBLICSOURCEGRAPHCOM"
	ErrorTypeRepoNotFound              ErrorType = "REPO_NOT_FOUND"
	ErrorTypeRevNotFound               ErrorType = "REV_NOT_FOUND"
	ErrorTypeCloneInProgress           ErrorType = "CLONE_IN_PROGRESS"
)

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details any       `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

func ValidationError(message string, details any) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: details,
	}
}

func Internal(message string) *Error {
	return &Error{
		Type:    ErrorTypeInternal,
		Message: message,
		Code:    http.StatusInternalServerError,
	}
}

func Unauthorized(message string) *Error {
	return &Error{
		Type:    ErrorTypeUnauthorized,
		Message: message,
		Code:    http.StatusUnauthorized,
	}
}

func PrivateRepoPublicInstance(operation string) *Error {
	return &Error{
		Type:    ErrorTypePrivateRepoPublicInstance,
		Message: fmt.Sprintf("%s: private repositories are not available on a public-only instance", operation),
		Code:    http.StatusForbidden,
	}
}

func RepoNotFound(repoName string) *Error {
	return &Error{
		Type:    ErrorTypeRepoNotFound,
		Message: fmt.Sprintf("repository not found: %s", repoName),
		Code:    http.StatusNotFound,
		Details: repoName,
	}
}

func RevNotFound(repoName, rev string) *Error {
	return &Error{
		Type:    ErrorTypeRevNotFound,
		Message: fmt.Sprintf("revision not found: %s@%s", repoName, rev),
		Code:    http.StatusNotFound,
		Details: rev,
	}
}

func CloneInProgress(repoName string) *Error {
	return &Error{
		Type:    ErrorTypeCloneInProgress,
		Message: fmt.Sprintf("repository is still being cloned: %s", repoName),
		Code:    http.StatusAccepted,
		Details: repoName,
	}
}

// IsType reports whether err, or anything it wraps, is an *Error of type t.
func IsType(err error, t ErrorType) bool {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type == t
	}
	return false
}

// StatusCode returns the HTTP status for err, 500 for untyped errors.
func StatusCode(err error) int {
	var e *Error
	if stderrors.As(err, &e) && e.Code != 0 {
		return e.Code
	}
	return http.StatusInternalServerError
}
