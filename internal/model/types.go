// Package model defines shared data structures.
package model

import "time"

// Supported test lengths in seconds. Leaderboards are partitioned by these buckets.
const (
	Duration30 = 30
	Duration60 = 60
)

// Durations lists the supported duration buckets in ascending order.
var Durations = []int{Duration30, Duration60}

// Config defines practice settings.
type Config struct {
	DurationSec  int
	StartOnInput bool
	Source       string
	Words        int
	CapsPct      float64
	PunctPct     float64
	PunctSet     string
	WordListPath string
}

// HistoryConfig defines filters and options for history output.
type HistoryConfig struct {
	Duration    int
	Since       *time.Time
	Last        int
	CurveWindow int
}

// User is a registered account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Score is one persisted test result. Scores are append-only.
type Score struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	WPM       int       `json:"wpm"`
	Accuracy  int       `json:"accuracy"`
	Duration  int       `json:"duration"`
	CreatedAt time.Time `json:"timestamp"`
}

// ScoreRecord is a score joined with its owner's display name.
type ScoreRecord struct {
	Score
	Username string `json:"username"`
}

// ScoreFilter narrows score listings. Zero values mean "any".
type ScoreFilter struct {
	UserID   string
	Duration int
	Since    *time.Time
	// Ascending orders by creation time oldest first; the default is newest first.
	Ascending bool
}

// LeaderboardEntry is a derived ranking row.
type LeaderboardEntry struct {
	Username  string    `json:"username"`
	WPM       int       `json:"wpm"`
	Accuracy  int       `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// Text is a reference passage for a typing test.
type Text struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}
