package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/randalmurphal/nodemap/pkg/nodemap"
)

// ValidationError indicates a request was rejected before it was sent
// because required fields were missing.
type ValidationError struct {
	Endpoint string
	Fields   []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("Missing required fields: %s", strings.Join(e.Fields, ", "))
}

// RemoteError is a non-2xx response. Message is the server's error text, or
// "<label> failed. Status: <code>" when the body carried none.
type RemoteError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *RemoteError) Error() string {
	return e.Message
}

// Is reports a 401 response as ErrNoSession so callers route to
// authentication the same way as for a missing credential.
func (e *RemoteError) Is(target error) bool {
	return target == nodemap.ErrNoSession && e.StatusCode == http.StatusUnauthorized
}

// NetworkError indicates the request never produced a response.
type NetworkError struct {
	Endpoint string
	Timeout  bool
	Err      error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("Network error during %s: request timed out", e.Endpoint)
	}
	return fmt.Sprintf("Network error during %s: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

func newRemoteError(ep endpoint, status int, body []byte) *RemoteError {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"msg"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		msg = payload.Error
		if msg == "" {
			msg = payload.Message
		}
	}
	if msg == "" {
		msg = fmt.Sprintf("%s failed. Status: %d", ep.label, status)
	}
	return &RemoteError{Endpoint: ep.name, StatusCode: status, Message: msg}
}

// Category classifies a remote failure for handling.
type Category int

const (
	// CategoryUnknown is anything not produced by this package.
	CategoryUnknown Category = iota

	// CategoryValidation means the request was never sent.
	CategoryValidation

	// CategorySession means there is no usable credential.
	CategorySession

	// CategoryRemote means the server answered with an error status.
	CategoryRemote

	// CategoryNetwork means no response was received. Retrying may help.
	CategoryNetwork
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategorySession:
		return "session"
	case CategoryRemote:
		return "remote"
	case CategoryNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Categorize determines which kind of failure err is.
func Categorize(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return CategoryValidation
	}
	if errors.Is(err, nodemap.ErrNoSession) {
		return CategorySession
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return CategoryNetwork
	}
	var remErr *RemoteError
	if errors.As(err, &remErr) {
		return CategoryRemote
	}
	return CategoryUnknown
}

// StatusCode returns the HTTP status of a RemoteError in err's chain, or 0.
func StatusCode(err error) int {
	var remErr *RemoteError
	if errors.As(err, &remErr) {
		return remErr.StatusCode
	}
	return 0
}
