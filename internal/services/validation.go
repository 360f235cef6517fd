package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Kind    ErrorKind         `json:"kind"`              // Machine-readable error kind
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response. The kind is derived from
// the status code.
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	kind := kindForStatus(statusCode)
	if validationErr != nil {
		kind = KindValidation
	}
	writeErrorResponse(w, ErrorResponse{Error: message, Kind: kind}, statusCode, validationErr)
}

// WriteError sends err as a JSON error response with the kind and status
// from KindOf and StatusOf. Internal errors are not echoed to the client.
func WriteError(w http.ResponseWriter, err error) {
	kind, status := classify(err)
	message := err.Error()
	if kind == KindInternal {
		message = "An Internal Error Occurred"
	}
	writeErrorResponse(w, ErrorResponse{Error: message, Kind: kind}, status, nil)
}

func writeErrorResponse(w http.ResponseWriter, resp ErrorResponse, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		resp.Details = make(map[string]string)
		for _, err := range fieldErrs {
			resp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(resp)
}

func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return KindValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusServiceUnavailable:
		return KindStoreUnavailable
	}
	return KindInternal
}
