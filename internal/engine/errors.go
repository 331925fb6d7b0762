package engine

import "errors"

// Sentinel errors for engine operations.
var (
	ErrUnknownOperation   = errors.New("unknown operation")
	ErrNotFound           = errors.New("not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrExternalDependency = errors.New("external dependency failure")
)

// ErrorCode maps an engine error onto a stable, transport-neutral code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownOperation):
		return "unknown_operation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrExternalDependency):
		return "external_dependency_failure"
	default:
		return "internal"
	}
}
