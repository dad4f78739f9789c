// Package jsonresponse enables consistent responses across all handlers.
package jsonresponse

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-petr/fund-transfer/pkg/errorspkg"
	"github.com/go-playground/validator/v10"
)

// CodeInvalidRequest is returned when the request body or params fail binding.
const CodeInvalidRequest = "INVALID_REQUEST"

// jsonError provides type for explicit json encoded error response.
type jsonError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorBody struct {
	Error jsonError `json:"error"`
}

// Error wraps a given code and message into json frinedly struct.
func Error(status int, code, message string) errorBody {
	return errorBody{
		Error: jsonError{
			Code:      code,
			Message:   message,
			Status:    status,
			Timestamp: time.Now().UTC(),
		},
	}
}

// InvalidRequest wraps a binding or validation error.
//
// Validation errors are reported for the first failed field, anything else as a malformed request.
func InvalidRequest(err error) errorBody {
	msg := "malformed request"

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		field := ve[0]
		msg = field.Field() + ValidationMessage(field)
	}

	return Error(http.StatusBadRequest, CodeInvalidRequest, msg)
}

// ValidationMessage returns the human readable reason of the field error.
func ValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return " is required"
	case "min":
		return " must be at least " + fe.Param()
	case "max":
		return " must be at most " + fe.Param()
	case "amount":
		return " must be a non negative amount with at most 4 decimals"
	case "positive_amount":
		return " must be a positive amount with at most 4 decimals"
	}

	return " is invalid"
}

// FromError maps an app error to its http status and json body.
//
// Only tagged errors expose their message, anything else becomes the generic internal error.
func FromError(err error) (int, errorBody) {
	e := errorspkg.As(err)
	status := StatusOf(e.Kind)

	if e.Kind == errorspkg.KindDuplicate {
		e = errorspkg.ErrInternal
	}

	return status, Error(status, e.Code, e.Message)
}

// StatusOf returns the http status for the error kind.
func StatusOf(kind errorspkg.Kind) int {
	switch kind {
	case errorspkg.KindInvalid:
		return http.StatusBadRequest
	case errorspkg.KindNotFound:
		return http.StatusNotFound
	case errorspkg.KindInsufficientBalance:
		return http.StatusUnprocessableEntity
	case errorspkg.KindLockUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
