package httpapi

import (
	"errors"
	"net/http"

	"fieldgate.org/internal/grant"
	"fieldgate.org/internal/obs"
	"fieldgate.org/internal/projection"
	"fieldgate.org/internal/resource"
	"fieldgate.org/internal/session"
)

// translateError maps pipeline errors to HTTP statuses. Storage and other
// unexpected failures are logged with detail and surfaced as a generic 500.
func translateError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrAuthMissing):
		writeError(w, r, http.StatusBadRequest, "credential required")
	case errors.Is(err, session.ErrAuthMalformed):
		writeError(w, r, http.StatusBadRequest, "credential malformed")
	case errors.Is(err, session.ErrAuthInvalid):
		writeError(w, r, http.StatusBadRequest, "credential invalid")
	case errors.Is(err, session.ErrInvalidCredentials):
		writeError(w, r, http.StatusBadRequest, "invalid email or password")
	case errors.Is(err, session.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrConflict):
		writeError(w, r, http.StatusConflict, "email already registered")
	case errors.Is(err, grant.ErrNoActiveGrant):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, grant.ErrPermissionDenied):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, grant.ErrUnknownModule), errors.Is(err, grant.ErrUnknownAction):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, projection.ErrUnknownField):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, projection.ErrNoFieldsAvailable):
		writeError(w, r, http.StatusBadRequest, "no fields available")
	case errors.Is(err, resource.ErrInvalidID):
		writeError(w, r, http.StatusBadRequest, "invalid id")
	case errors.Is(err, resource.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	default:
		obs.LogError("request failed", map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"path":       r.URL.Path,
			"error":      err.Error(),
		})
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
