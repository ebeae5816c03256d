package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/verte-zerg/swifttype/internal/auth"
	"github.com/verte-zerg/swifttype/internal/leaderboard"
	"github.com/verte-zerg/swifttype/internal/validation"
)

type messageResponse struct {
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Headers are already sent; nothing useful left to report.
		_ = err
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// writeError maps domain errors to statuses. Anything unrecognized is a
// storage or internal fault and is reported generically.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: verr.Message, Field: verr.Field})
	case errors.Is(err, leaderboard.ErrInvalidDuration):
		writeMessage(w, http.StatusBadRequest, "Invalid duration")
	case errors.Is(err, auth.ErrUsernameTaken):
		writeMessage(w, http.StatusBadRequest, "Username already exists")
	case errors.Is(err, auth.ErrEmailTaken):
		writeMessage(w, http.StatusBadRequest, "Email already exists")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
		writeMessage(w, http.StatusUnauthorized, "Invalid token!")
	default:
		logger.Error("request failed", "err", err)
		writeMessage(w, http.StatusInternalServerError, "Server error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return validation.Fail("body", "Invalid request body")
	}
	return nil
}
