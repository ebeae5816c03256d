// Package leaderboard answers ranking queries over persisted scores and
// accepts new score submissions.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/verte-zerg/swifttype/internal/model"
	"github.com/verte-zerg/swifttype/internal/validation"
)

// DefaultLimit is the number of rows returned by TopScores when no limit is given.
const DefaultLimit = 10

var (
	// ErrInvalidDuration is returned for durations outside model.Durations.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrQueryFailed wraps storage faults.
	ErrQueryFailed = errors.New("query failed")
)

// Repository is the storage behind the leaderboard.
type Repository interface {
	InsertScore(ctx context.Context, score model.Score) (model.Score, error)
	TopScores(ctx context.Context, duration, limit int) ([]model.LeaderboardEntry, error)
	BestScore(ctx context.Context, userID string, duration int) (*model.LeaderboardEntry, error)
}

// Broadcaster receives a hint after each accepted submission.
type Broadcaster interface {
	Publish(eventType string, payload any)
}

// UpdateEvent is the event type broadcast after a submission.
const UpdateEvent = "leaderboardUpdate"

// SubmitRequest is an incoming score.
type SubmitRequest struct {
	WPM      int `json:"wpm"`
	Accuracy int `json:"accuracy"`
	Duration int `json:"duration"`
}

// Service implements the leaderboard queries.
type Service struct {
	repo  Repository
	bcast Broadcaster
	// OnSubmit, if set, observes every accepted score.
	OnSubmit func(model.Score)
}

// New returns a Service. bcast may be nil.
func New(repo Repository, bcast Broadcaster) *Service {
	return &Service{repo: repo, bcast: bcast}
}

// ValidDuration reports whether d is a supported bucket.
func ValidDuration(d int) bool {
	return slices.Contains(model.Durations, d)
}

// TopScores returns up to limit entries for duration, best first.
func (s *Service) TopScores(ctx context.Context, duration, limit int) ([]model.LeaderboardEntry, error) {
	if !ValidDuration(duration) {
		return nil, ErrInvalidDuration
	}
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	entries, err := s.repo.TopScores(ctx, duration, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: top scores: %v", ErrQueryFailed, err)
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	if entries == nil {
		entries = []model.LeaderboardEntry{}
	}
	return entries, nil
}

// PersonalBest returns the user's best entry per requested duration. Buckets
// without scores map to nil. Each bucket is queried on its own.
func (s *Service) PersonalBest(ctx context.Context, userID string, durations []int) (map[int]*model.LeaderboardEntry, error) {
	if len(durations) == 0 {
		durations = model.Durations
	}
	out := make(map[int]*model.LeaderboardEntry, len(durations))
	for _, d := range durations {
		if !ValidDuration(d) {
			return nil, ErrInvalidDuration
		}
		best, err := s.repo.BestScore(ctx, userID, d)
		if err != nil {
			return nil, fmt.Errorf("%w: personal best %ds: %v", ErrQueryFailed, d, err)
		}
		out[d] = best
	}
	return out, nil
}

// Validate checks a submission.
func Validate(req SubmitRequest) error {
	switch {
	case req.WPM < 0:
		return validation.Fail("wpm", "wpm must be non-negative")
	case req.Accuracy < 0 || req.Accuracy > 100:
		return validation.Fail("accuracy", "accuracy must be between 0 and 100")
	case !ValidDuration(req.Duration):
		return validation.Fail("duration", "Invalid duration")
	}
	return nil
}

// Submit validates and stores a score for userID, then broadcasts an update hint.
func (s *Service) Submit(ctx context.Context, userID string, req SubmitRequest) (model.Score, error) {
	if err := Validate(req); err != nil {
		return model.Score{}, err
	}
	score, err := s.repo.InsertScore(ctx, model.Score{
		UserID:   userID,
		WPM:      req.WPM,
		Accuracy: req.Accuracy,
		Duration: req.Duration,
	})
	if err != nil {
		return model.Score{}, fmt.Errorf("%w: insert score: %v", ErrQueryFailed, err)
	}
	if s.OnSubmit != nil {
		s.OnSubmit(score)
	}
	if s.bcast != nil {
		s.bcast.Publish(UpdateEvent, score)
	}
	return score, nil
}
