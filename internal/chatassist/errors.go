package chatassist

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a failed dispatch or upload.
type ErrorKind string

const (
	KindEmptyPrompt       ErrorKind = "EmptyPrompt"
	KindMissingCredential ErrorKind = "MissingCredential"
	KindBadRequest        ErrorKind = "BadRequest"
	KindUnauthorized      ErrorKind = "Unauthorized"
	KindModelNotFound     ErrorKind = "ModelNotFound"
	KindRateLimited       ErrorKind = "RateLimited"
	KindServerError       ErrorKind = "ServerError"
	KindTransport         ErrorKind = "Transport"
	KindEmptyResponse     ErrorKind = "EmptyResponse"
	KindBackendRequired   ErrorKind = "BackendRequired"
	KindMissingFile       ErrorKind = "MissingFile"
)

// Sentinel errors for errors.Is matching against a *ChatError of the same kind.
var (
	ErrEmptyPrompt       = errors.New("empty prompt")
	ErrMissingCredential = errors.New("missing credential")
	ErrBadRequest        = errors.New("bad request")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrModelNotFound     = errors.New("model not found")
	ErrRateLimited       = errors.New("rate limited")
	ErrServerError       = errors.New("server error")
	ErrTransport         = errors.New("transport failure")
	ErrEmptyResponse     = errors.New("empty response")
	ErrBackendRequired   = errors.New("backend required")
	ErrMissingFile       = errors.New("missing file")
)

var sentinels = map[ErrorKind]error{
	KindEmptyPrompt:       ErrEmptyPrompt,
	KindMissingCredential: ErrMissingCredential,
	KindBadRequest:        ErrBadRequest,
	KindUnauthorized:      ErrUnauthorized,
	KindModelNotFound:     ErrModelNotFound,
	KindRateLimited:       ErrRateLimited,
	KindServerError:       ErrServerError,
	KindTransport:         ErrTransport,
	KindEmptyResponse:     ErrEmptyResponse,
	KindBackendRequired:   ErrBackendRequired,
	KindMissingFile:       ErrMissingFile,
}

// ChatError is the classified failure returned by the request router.
type ChatError struct {
	Kind    ErrorKind
	Message string // User-facing text
	Status  int    // HTTP status, 0 when no response was received
	Err     error  // Underlying cause, if any
}

// NewError creates a ChatError without an HTTP status.
func NewError(kind ErrorKind, format string, args ...any) *ChatError {
	return &ChatError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *ChatError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *ChatError) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// Info returns the UI-facing summary of the error.
func (e *ChatError) Info() ErrorInfo {
	return ErrorInfo{Kind: e.Kind, Message: e.Message}
}

// ErrorInfo is the ephemeral error record surfaced to the UI.
type ErrorInfo struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// KindOf returns the kind of a classified error. Unclassified errors are
// reported as KindTransport; nil yields "".
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindTransport
}

// AsChatError converts any error into a *ChatError, classifying unknown
// errors as transport failures.
func AsChatError(err error) *ChatError {
	if err == nil {
		return nil
	}
	var ce *ChatError
	if errors.As(err, &ce) {
		return ce
	}
	return &ChatError{Kind: KindTransport, Message: err.Error(), Err: err}
}

// TransportError classifies a failure where no response was received from
// target.
func TransportError(target string, err error) *ChatError {
	var netErr net.Error
	msg := fmt.Sprintf("failed to reach %s: %v", target, err)
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		msg = fmt.Sprintf("request to %s timed out", target)
	case errors.Is(err, context.Canceled):
		msg = fmt.Sprintf("request to %s was canceled", target)
	}
	return &ChatError{Kind: KindTransport, Message: msg, Err: err}
}
