package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/koskita/backend/internal/models"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
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

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResp := ErrorResponse{Error: message}
	var vErrs validator.ValidationErrors
	if errors.As(validationErr, &vErrs) {
		errorResp.Details = make(map[string]string)
		for _, err := range vErrs {
			errorResp.Details[err.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", err.Tag())
		}
	}

	json.NewEncoder(w).Encode(errorResp)
}

// decodeJSONBody decodes a request body into dst with the usual guards:
// 1 MB cap, unknown fields rejected, exactly one JSON object.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	maxBytes := 1_048_576 // 1 MB
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid request body")
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("request body must only contain a single JSON object")
	}
	return nil
}

// SendDomainError maps business-rule errors to HTTP statuses.
func SendDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrBookingNotFound),
		errors.Is(err, models.ErrPaymentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrSaldoTidakCukup),
		errors.Is(err, models.ErrRoomUnavailable),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrBookingTerminal),
		errors.Is(err, models.ErrPaymentAlreadySettled):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrPayoutAlreadyDecided):
		status = http.StatusConflict
	}
	SendErrorResponse(w, err.Error(), status, nil)
}
