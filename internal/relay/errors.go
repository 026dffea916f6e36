package relay

import "fmt"

// ErrorKind classifies why a client event was rejected. Every kind maps to
// one ERROR wire event sent to the originating connection only; no kind
// ever mutates state or reaches the broker.
type ErrorKind string

const (
	KindAuth          ErrorKind = "auth"
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindNotFound      ErrorKind = "not_found"
	KindDependency    ErrorKind = "dependency"
)

// EventError is a rejected client event. Message is client-facing; Err is
// the underlying cause and stays in the logs.
type EventError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *EventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *EventError) Unwrap() error {
	return e.Err
}

func validationError(message string) *EventError {
	return &EventError{Kind: KindValidation, Message: message}
}

func authorizationError(message string) *EventError {
	return &EventError{Kind: KindAuthorization, Message: message}
}

func notFoundError(message string) *EventError {
	return &EventError{Kind: KindNotFound, Message: message}
}

// dependencyError marks a store, cache, or broker failure. The write is
// considered not-applied; the client must resend.
func dependencyError(message string, err error) *EventError {
	return &EventError{Kind: KindDependency, Message: message, Err: err}
}
