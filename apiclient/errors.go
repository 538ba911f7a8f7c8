package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const GenericErrorMessage = "Something went wrong. Please try again."

const sessionExpiredMessage = "Your session has expired. Please log in again."

// ErrSessionExpired is returned when the refresh protocol gives up and the
// session has been cleared.
var ErrSessionExpired = errors.New("session expired")

// APIError is a failed call. Status is 0 for transport failures.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		if e.Err != nil {
			return fmt.Sprintf("request failed: %v", e.Err)
		}
		return "request failed"
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// MessageOf returns the text shown to the operator for err.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrSessionExpired) {
		return sessionExpiredMessage
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return GenericErrorMessage
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// extractMessage pulls a message out of an error payload. The backend
// sends either a string or a list of validation messages.
func extractMessage(body []byte) string {
	var payload struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return GenericErrorMessage
	}

	if len(payload.Message) > 0 {
		var single string
		if err := json.Unmarshal(payload.Message, &single); err == nil && single != "" {
			return single
		}
		var list []string
		if err := json.Unmarshal(payload.Message, &list); err == nil && len(list) > 0 {
			return strings.Join(list, ", ")
		}
	}
	if payload.Error != "" {
		return payload.Error
	}
	return GenericErrorMessage
}
