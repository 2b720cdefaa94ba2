// Package httpserverutils carries the shared plumbing of the HTTP layer:
// handler error types and the JSON response helpers.
package httpserverutils

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

// HandlerError is an error returned from a route handler. Message is what is
// logged; ClientMessage is what the caller sees.
type HandlerError struct {
	Code          int
	Message       string
	ClientMessage string
}

func (hErr *HandlerError) Error() string {
	return hErr.Message
}

// NewHandlerError returns a HandlerError with the given code and message.
func NewHandlerError(code int, message string) *HandlerError {
	return &HandlerError{
		Code:          code,
		Message:       message,
		ClientMessage: message,
	}
}

// NewHandlerErrorWithCustomClientMessage returns a HandlerError with the
// given code, message, and client-facing message.
func NewHandlerErrorWithCustomClientMessage(code int, message, clientMessage string) *HandlerError {
	return &HandlerError{
		Code:          code,
		Message:       message,
		ClientMessage: clientMessage,
	}
}

// NewInternalServerHandlerError returns a HandlerError with the given
// message and a generic client-facing message.
func NewInternalServerHandlerError(message string) *HandlerError {
	return NewHandlerErrorWithCustomClientMessage(http.StatusInternalServerError,
		message, http.StatusText(http.StatusInternalServerError))
}

// ClientError is the JSON shape of an error response.
type ClientError struct {
	ErrorCode    int    `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// SendErr writes hErr to w as a JSON error response.
func SendErr(w http.ResponseWriter, hErr *HandlerError) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(hErr.Code)
	return SendJSONResponse(w, &ClientError{
		ErrorCode:    hErr.Code,
		ErrorMessage: hErr.ClientMessage,
	})
}

// SendJSONResponse encodes response as JSON into w.
func SendJSONResponse(w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		return errors.Wrap(err, "couldn't encode the response")
	}
	return nil
}
