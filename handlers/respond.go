package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/irfandhamhudi/APi-FocusFlow/logging"
	"github.com/irfandhamhudi/APi-FocusFlow/services"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": status < 400,
		"message": message,
	})
}

// writeError maps the service error taxonomy onto HTTP statuses and renders
// the uniform error envelope. Authorization failures reuse 401, not 403.
func writeError(w http.ResponseWriter, err error) {
	var validationErr *services.ValidationError
	var authErr *services.AuthError
	var authzErr *services.AuthorizationError
	var notFoundErr *services.NotFoundError
	var dependencyErr *services.DependencyError

	switch {
	case errors.As(err, &validationErr):
		writeMessage(w, http.StatusBadRequest, validationErr.Message)
	case errors.As(err, &authErr):
		writeMessage(w, http.StatusUnauthorized, authErr.Message)
	case errors.As(err, &authzErr):
		writeMessage(w, http.StatusUnauthorized, authzErr.Message)
	case errors.As(err, &notFoundErr):
		writeMessage(w, http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &dependencyErr):
		logging.Logger.Errorf("Event ID: DEPENDENCY_FAILURE, Description: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
	default:
		logging.Logger.Errorf("Event ID: UNHANDLED_ERROR, Description: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
	}
}
