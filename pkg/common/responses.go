// Package common holds the HTTP response envelope shared by every
// handler.
package common

import (
	"encoding/json"
	"errors"
	"net/http"

	pkgerrors "flowcanvas-backend/pkg/errors"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	response := APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}
	writeJSON(w, status, response)
}

// RespondError maps an application error onto the envelope. Internal
// causes never reach the wire; the client sees the type, message and
// any structured details.
func RespondError(w http.ResponseWriter, err error) {
	info := &ErrorInfo{
		Code:    pkgerrors.CodeOf(err),
		Message: "internal server error",
	}

	var appErr *pkgerrors.AppError
	if errors.As(err, &appErr) {
		info.Message = appErr.Message
		info.Details = appErr.Details
	}

	writeJSON(w, pkgerrors.HTTPStatus(err), APIResponse{
		Success: false,
		Error:   info,
	})
}

// ParseJSONBody decodes a request body into dst, rejecting unknown
// fields
func ParseJSONBody(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return pkgerrors.NewValidationError("invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}
