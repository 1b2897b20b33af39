package upstream

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed upstream call.
type Kind string

const (
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindNotFound           Kind = "not_found"
	KindServerError        Kind = "server_error"
	KindNetworkUnreachable Kind = "network_unreachable"
	KindRejected           Kind = "rejected"
)

// Sentinels for errors.Is matching on a *RequestError's kind.
var (
	ErrUnauthorized       = errors.New("upstream: unauthorized")
	ErrForbidden          = errors.New("upstream: forbidden")
	ErrNotFound           = errors.New("upstream: not found")
	ErrServerError        = errors.New("upstream: server error")
	ErrNetworkUnreachable = errors.New("upstream: network unreachable")
	ErrRejected           = errors.New("upstream: request rejected")
)

// Business codes used by the upstream envelope.
const (
	codeTokenExpired = 1002
	codeTokenInvalid = 1003
)

var fallbackMessages = map[Kind]string{
	KindUnauthorized:       "session expired, please sign in again",
	KindForbidden:          "you do not have permission to perform this action",
	KindNotFound:           "the requested resource does not exist",
	KindServerError:        "internal server error, please try again later",
	KindNetworkUnreachable: "network connection failed, please check your network",
	KindRejected:           "operation failed, please try again",
}

// RequestError is returned for every failed upstream call.
type RequestError struct {
	Kind   Kind
	Status int
	Code   int
	// ServerMessage is the upstream's own text, empty when none was sent.
	ServerMessage string
	Op            string
	Err           error
}

func (e *RequestError) Error() string {
	if e.Op == "" {
		return e.Message()
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message())
}

// Message prefers the server-provided text over the generic fallback.
func (e *RequestError) Message() string {
	if e.ServerMessage != "" {
		return e.ServerMessage
	}
	return fallbackMessages[e.Kind]
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrForbidden:
		return e.Kind == KindForbidden
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrServerError:
		return e.Kind == KindServerError
	case ErrNetworkUnreachable:
		return e.Kind == KindNetworkUnreachable
	case ErrRejected:
		return e.Kind == KindRejected
	}
	return false
}

// ErrorMessage extracts the most specific message available from err.
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.Message()
	}
	return err.Error()
}

// HTTPStatus maps an upstream failure to the status the console should
// answer with.
func HTTPStatus(err error) int {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return http.StatusInternalServerError
	}
	switch reqErr.Kind {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindNetworkUnreachable:
		return http.StatusBadGateway
	case KindServerError:
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}

func classify(status int, code int) Kind {
	if code == codeTokenExpired || code == codeTokenInvalid {
		return KindUnauthorized
	}
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindServerError
	default:
		return KindRejected
	}
}
