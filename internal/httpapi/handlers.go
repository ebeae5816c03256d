package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/verte-zerg/swifttype/internal/auth"
	"github.com/verte-zerg/swifttype/internal/leaderboard"
	"github.com/verte-zerg/swifttype/internal/model"
)

const healthTimeout = 2 * time.Second

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type sessionResponse struct {
	Message string       `json:"message"`
	Token   string       `json:"token"`
	User    userResponse `json:"user"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Email: u.Email}
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := a.health.Ping(ctx); err != nil {
			a.logger.Warn("health check failed", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) handleText(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.texts.Random())
}

func (a *api) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}
	sess, err := a.accounts.Register(r.Context(), req)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	a.logger.Info("user registered", "user", sess.User.ID)
	writeJSON(w, http.StatusCreated, sessionResponse{
		Message: "User created successfully",
		Token:   sess.Token,
		User:    toUserResponse(sess.User),
	})
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, a.logger, err)
		return
	}
	sess, err := a.accounts.Login(r.Context(), req)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Message: "Login successful",
		Token:   sess.Token,
		User:    toUserResponse(sess.User),
	})
}

func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (a *api) handleTop(w http.ResponseWriter, r *http.Request) {
	duration, err := strconv.Atoi(chi.URLParam(r, "duration"))
	if err != nil || !leaderboard.ValidDuration(duration) {
		writeMessage(w, http.StatusBadRequest, "Invalid duration")
		return
	}
	entries, err := a.leaderboard.TopScores(r.Context(), duration, leaderboard.DefaultLimit)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *api) handlePersonalBest(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFromContext(r.Context())
	best, err := a.leaderboard.PersonalBest(r.Context(), user.ID, model.Durations)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	out := make(map[string]*model.LeaderboardEntry, len(best))
	for _, d := range model.Durations {
		out[strconv.Itoa(d)] = best[d]
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) handleSubmit(successMessage string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := UserFromContext(r.Context())
		var req leaderboard.SubmitRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, a.logger, err)
			return
		}
		score, err := a.leaderboard.Submit(r.Context(), user.ID, req)
		if err != nil {
			writeError(w, a.logger, err)
			return
		}
		a.logger.Info("score recorded", "user", user.ID, "wpm", score.WPM, "duration", score.Duration)
		writeMessage(w, http.StatusCreated, successMessage)
	}
}

func (a *api) handleListScores(w http.ResponseWriter, r *http.Request) {
	filter := model.ScoreFilter{}
	if raw := r.URL.Query().Get("duration"); raw != "" {
		d, err := strconv.Atoi(raw)
		if err != nil || !leaderboard.ValidDuration(d) {
			writeMessage(w, http.StatusBadRequest, "Invalid duration")
			return
		}
		filter.Duration = d
	}
	if r.URL.Query().Get("mine") == "true" {
		user, _ := UserFromContext(r.Context())
		filter.UserID = user.ID
	}
	scores, err := a.history.ListScores(r.Context(), filter)
	if err != nil {
		writeError(w, a.logger, err)
		return
	}
	if scores == nil {
		scores = []model.ScoreRecord{}
	}
	writeJSON(w, http.StatusOK, scores)
}
