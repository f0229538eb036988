package nodemap

import (
	"errors"
	"fmt"
)

// Sentinel errors for selection and canvas operations.
var (
	// ErrNoSelection indicates an operation needs a selected graph.
	ErrNoSelection = errors.New("no graph selected")

	// ErrCanvasNotReady indicates the canvas has not been initialized for the
	// selected graph yet.
	ErrCanvasNotReady = errors.New("canvas not ready")

	// ErrStaleResponse indicates a remote result arrived after the selection
	// it was issued for was replaced. The result was discarded.
	ErrStaleResponse = errors.New("stale response discarded")

	// ErrNodeNotFound indicates a change or connection references a node
	// that is not on the canvas.
	ErrNodeNotFound = errors.New("node not found")

	// ErrDuplicateNode indicates a node id is already on the canvas.
	ErrDuplicateNode = errors.New("duplicate node id")

	// ErrInvalidDescriptor indicates a drag payload is not a usable agent
	// descriptor.
	ErrInvalidDescriptor = errors.New("invalid agent descriptor")
)

// Sentinel errors for the remote boundary.
var (
	// ErrNoSession indicates no credential is available. Callers should route
	// to the authentication view instead of treating this as a failure.
	ErrNoSession = errors.New("no active session")

	// ErrMalformedResponse indicates the remote answered with a body that
	// could not be interpreted.
	ErrMalformedResponse = errors.New("malformed remote response")
)

// OperationError wraps an error from a store operation with the operation
// name and the graph it targeted.
type OperationError struct {
	// Op is the operation that failed.
	Op Operation
	// GraphID is the target graph, empty for list and create.
	GraphID ID
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e.GraphID.IsZero() {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s graph %s: %v", e.Op, e.GraphID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	return e.Err
}

// Message returns the human-readable message carried in operation status.
// The remote boundary produces display-ready messages, so the op prefix is
// left off.
func (e *OperationError) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func opError(op Operation, id ID, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Op: op, GraphID: id, Err: err}
}
