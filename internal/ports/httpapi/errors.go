package httpapi

import (
	"encoding/json"
	"net/http"

	"bataille/internal/app"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusOf(kind app.ErrorKind) int {
	switch kind {
	case app.KindUnauthenticated:
		return http.StatusUnauthorized
	case app.KindInvalidArgument:
		return http.StatusBadRequest
	case app.KindNotFound:
		return http.StatusNotFound
	case app.KindPermissionDenied:
		return http.StatusForbidden
	case app.KindFailedPrecondition:
		return http.StatusConflict
	case app.KindDeadlineExceeded:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := app.KindOf(err)
	msg := err.Error()
	if kind == app.KindInternal {
		msg = "internal error"
	}
	writeJSON(w, statusOf(kind), errorResponse{Error: kind.String(), Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
