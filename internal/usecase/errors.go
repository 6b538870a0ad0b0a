package usecase

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorUpstream     ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal     ErrorCode = "INTERNAL_ERROR"
)

// Error is returned by ChatService only for requests it refuses to run.
// Pipeline failures are rendered as reply text instead.
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

type DispatchCode string

const (
	DispatchUnknownRoute     DispatchCode = "unknown_route"
	DispatchMalformedPayload DispatchCode = "malformed_payload"
)

// DispatchError reports a router/dispatcher contract mismatch or a specialist
// payload that does not match the result schema. Its Reply is shown to the
// user as is.
type DispatchError struct {
	Code    DispatchCode
	Domain  string
	Payload string
	Err     error
}

func (e *DispatchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("usecase: dispatch %s (%s)", e.Code, e.Domain)
	}
	return fmt.Sprintf("usecase: dispatch %s (%s): %v", e.Code, e.Domain, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// Reply renders the diagnostic text returned to the user.
func (e *DispatchError) Reply() string {
	if e.Code == DispatchUnknownRoute {
		return fmt.Sprintf(replyUnknownRoute, e.Domain)
	}
	return fmt.Sprintf(replyMalformedPayload, e.Domain, e.Payload)
}
