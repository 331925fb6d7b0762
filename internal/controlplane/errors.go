package controlplane

import (
	"encoding/json"
	"net/http"

	"github.com/NivraSD/SignalDesk-sub028/internal/engine"
)

// ErrorBody is the machine-readable part of an error response.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps every non-2xx JSON reply.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// httpStatus maps an engine error code onto an HTTP status.
func httpStatus(code string) int {
	switch code {
	case "invalid_request":
		return http.StatusBadRequest
	case "unknown_operation", "not_found":
		return http.StatusNotFound
	case "external_dependency_failure":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := engine.ErrorCode(err)
	writeJSON(w, httpStatus(code), ErrorResponse{Error: ErrorBody{Code: code, Message: err.Error()}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
