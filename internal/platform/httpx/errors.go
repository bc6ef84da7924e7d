// Package httpx provides HTTP response utilities.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/famledger/famledger/internal/shared"
)

// StatusForKind maps an error kind onto an HTTP status.
func StatusForKind(kind string) int {
	switch kind {
	case shared.KindNotFound:
		return http.StatusNotFound
	case shared.KindInvalidInput, shared.KindInvalidAmount:
		return http.StatusBadRequest
	case shared.KindAuthentication:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// RespondError writes err as an RFC7807 problem carrying its error kind.
func RespondError(w http.ResponseWriter, err error) {
	kind := shared.KindOf(err)
	status := StatusForKind(kind)
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ProblemDetail{
		Title:  http.StatusText(status),
		Status: status,
		Detail: err.Error(),
		Kind:   kind,
	})
}
