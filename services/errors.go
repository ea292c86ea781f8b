package services

import "fmt"

type ErrorKind string

const (
	KindSessionExpired ErrorKind = "session_expired"
	KindInvalidInput   ErrorKind = "invalid_input"
	KindRateLimited    ErrorKind = "rate_limit_exceeded"
	KindProvider       ErrorKind = "provider_error"
)

// Error is returned by ChatService for every request that ends before a
// response is produced. Err holds the provider cause, if any.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can test against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrSessionExpired = &Error{Kind: KindSessionExpired}
	ErrInvalidInput   = &Error{Kind: KindInvalidInput}
	ErrRateLimited    = &Error{Kind: KindRateLimited}
	ErrProvider       = &Error{Kind: KindProvider}
)

const SessionExpiredMessage = "Session expired. Please refresh the page."

func sessionExpired() *Error {
	return &Error{Kind: KindSessionExpired, Message: SessionExpiredMessage}
}

func invalidInput(message string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message}
}

func rateLimited(reason string) *Error {
	return &Error{Kind: KindRateLimited, Message: reason}
}

func providerError(err error) *Error {
	return &Error{Kind: KindProvider, Message: fmt.Sprintf("provider request failed: %v", err), Err: err}
}
