// Copyright (C) 2026 BQD Services LLC. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/bqd-services-llc/super-pxe-server/internal/apperrors"
)

// WriteJSON marshals data as the response body at the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes a {"error": message} body at status.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// WriteAppError maps err's apperrors.Kind to an HTTP status and writes it.
// Unrecognized errors map to 500 without leaking their text.
func WriteAppError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	status := statusForKind(kind)
	message := err.Error()
	if kind == apperrors.KindUnknown {
		message = "internal error"
	}
	WriteError(w, status, message)
}

func statusForKind(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindUnavailable:
		return http.StatusServiceUnavailable
	case apperrors.KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
