package explorehttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"modpackBack/internal/explore/access"
	"modpackBack/internal/explore/pay"
	"modpackBack/internal/explore/repo"
	"modpackBack/utils"
)

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func contextWithTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 10*time.Second)
}

func userID(r *http.Request) int64 {
	if c, ok := utils.ClaimsFrom(r.Context()); ok {
		return c.UserID
	}
	return 0
}

func modpackID(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get(":id"))
}

// writeServiceError maps domain errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, op string, err error) {
	var gwErr *pay.StatusError
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeError(w, http.StatusNotFound, "Modpack not found")
	case errors.Is(err, access.ErrMethodMismatch):
		writeError(w, http.StatusBadRequest, "This modpack cannot be acquired this way")
	case errors.Is(err, pay.ErrGatewayUnavailable):
		writeError(w, http.StatusBadRequest, "Payment method unavailable")
	case errors.As(err, &gwErr):
		s.logger.Errorf("%s: %v", op, err)
		writeError(w, http.StatusBadGateway, "Payment provider error, please try again")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "Request timed out")
	default:
		s.logger.Errorf("%s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
