// README: Shared error kinds. Modules declare their own sentinels wrapping one
// of these kinds, so callers can match either the sentinel or the kind with
// errors.Is.
package apperrors

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound: a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState: the operation is not allowed in the entity's current state.
	ErrInvalidState = errors.New("invalid state")
	// ErrConflict: a concurrent writer changed the entity first.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput: malformed request data, detected before any write.
	ErrInvalidInput = errors.New("invalid input")
)

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
