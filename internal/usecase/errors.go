package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorTransport          ErrorCode = "TRANSPORT_FAILURE"
	ErrorValidation         ErrorCode = "VALIDATION_FAILURE"
	ErrorArchiveFetch       ErrorCode = "ARCHIVE_FETCH_FAILURE"
	ErrorInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrorUnauthenticated    ErrorCode = "UNAUTHENTICATED"
	ErrorInternal           ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or
// ErrorInternal when there is none.
func CodeOf(err error) ErrorCode {
	var ue *Error
	if errors.As(err, &ue) {
		return ue.Code
	}
	return ErrorInternal
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

func upstreamStatusCode(err error) (int, bool) {
	var sc httpStatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatusCode(), true
	}
	return 0, false
}

// upstreamReason names a backend failure for logs and API responses, e.g.
// "list_sessions_status_502" or "list_sessions_unreachable".
func upstreamReason(op string, err error) string {
	if status, ok := upstreamStatusCode(err); ok {
		return fmt.Sprintf("%s_status_%d", op, status)
	}
	return op + "_unreachable"
}
