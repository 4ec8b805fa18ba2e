// Package httpx provides HTTP response utilities following RFC7807.
package httpx

import (
	"errors"
	"net/http"

	"github.com/traceline-scm/traceline/internal/shared"
)

// RespondError maps traceline error kinds to RFC7807 problem responses.
// Unknown errors become an opaque 500 so internals never leak to callers.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrInvalidArgument):
		Problem(w, http.StatusBadRequest, "Invalid Argument", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Invalid Credentials", err.Error())
	case errors.Is(err, shared.ErrUnauthorized):
		Problem(w, http.StatusForbidden, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrAlreadyExists):
		Problem(w, http.StatusConflict, "Already Exists", err.Error())
	case errors.Is(err, shared.ErrAlreadyAssigned):
		Problem(w, http.StatusConflict, "Already Assigned", err.Error())
	case errors.Is(err, shared.ErrInvalidTransition):
		Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrPolicyDisabled):
		Problem(w, http.StatusConflict, "Policy Disabled", err.Error())
	case errors.Is(err, shared.ErrInvalidRole):
		Problem(w, http.StatusUnprocessableEntity, "Invalid Role", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
