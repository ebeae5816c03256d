// Package store handles SQLite persistence for users and scores.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/verte-zerg/swifttype/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique field is already taken.
	ErrDuplicate = errors.New("already exists")
)

// Store wraps SQLite access for users and their score history.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers anyway; a single connection keeps pragmas consistent.
	db.SetMaxOpenConns(1)
	store := &Store{db: db, now: time.Now}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS scores (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES users(id),
			wpm INTEGER NOT NULL,
			accuracy INTEGER NOT NULL,
			duration INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_duration_wpm ON scores(duration, wpm DESC, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_user_duration ON scores(user_id, duration, wpm DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_created_at ON scores(created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// CreateUser inserts a new user. A taken username or email yields ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, fmt.Errorf("user %q: %w", user.Username, ErrDuplicate)
		}
		return model.User{}, err
	}
	return user, nil
}

// EnsureUser returns the user with the given name, creating a passwordless one if missing.
func (s *Store) EnsureUser(ctx context.Context, username string) (model.User, error) {
	user, err := s.UserByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.User{}, err
	}
	return s.CreateUser(ctx, model.User{Username: username, Email: username + "@localhost"})
}

// UserByID looks a user up by id.
func (s *Store) UserByID(ctx context.Context, id string) (model.User, error) {
	return s.userWhere(ctx, "id = ?", id)
}

// UserByUsername looks a user up by username.
func (s *Store) UserByUsername(ctx context.Context, username string) (model.User, error) {
	return s.userWhere(ctx, "username = ?", username)
}

// UserByEmail looks a user up by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (model.User, error) {
	return s.userWhere(ctx, "email = ?", email)
}

func (s *Store) userWhere(ctx context.Context, clause string, arg any) (model.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE `+clause, arg)
	var user model.User
	var createdAt int64
	if err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	user.CreatedAt = fromUnixNano(createdAt)
	return user, nil
}

// InsertScore appends a score to its owner's history.
func (s *Store) InsertScore(ctx context.Context, score model.Score) (model.Score, error) {
	if score.ID == "" {
		score.ID = uuid.NewString()
	}
	if score.CreatedAt.IsZero() {
		score.CreatedAt = s.now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (id, user_id, wpm, accuracy, duration, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		score.ID, score.UserID, score.WPM, score.Accuracy, score.Duration, score.CreatedAt.UnixNano(),
	)
	if err != nil {
		return model.Score{}, err
	}
	return score, nil
}

// TopScores returns the highest-wpm scores of a duration bucket. Equal wpm
// values are ordered by earliest submission, then by id.
func (s *Store) TopScores(ctx context.Context, duration, limit int) ([]model.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT u.username, s.wpm, s.accuracy, s.created_at
		 FROM scores s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.duration = ?
		 ORDER BY s.wpm DESC, s.created_at ASC, s.id ASC
		 LIMIT ?`, duration, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var entries []model.LeaderboardEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// BestScore returns the user's highest-wpm score in a bucket, or nil when
// the user has none.
func (s *Store) BestScore(ctx context.Context, userID string, duration int) (*model.LeaderboardEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT u.username, s.wpm, s.accuracy, s.created_at
		 FROM scores s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.user_id = ? AND s.duration = ?
		 ORDER BY s.wpm DESC, s.created_at ASC, s.id ASC
		 LIMIT 1`, userID, duration)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// ListScores returns scores joined with usernames, filtered and ordered by creation time.
func (s *Store) ListScores(ctx context.Context, filter model.ScoreFilter) ([]model.ScoreRecord, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.UserID != "" {
		clauses = append(clauses, "s.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Duration > 0 {
		clauses = append(clauses, "s.duration = ?")
		args = append(args, filter.Duration)
	}
	if filter.Since != nil {
		clauses = append(clauses, "s.created_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	order := "DESC"
	if filter.Ascending {
		order = "ASC"
	}
	query := fmt.Sprintf(`SELECT s.id, s.user_id, s.wpm, s.accuracy, s.duration, s.created_at, u.username
		FROM scores s
		JOIN users u ON u.id = s.user_id
		WHERE %s
		ORDER BY s.created_at %s, s.id %s`, strings.Join(clauses, " AND "), order, order)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var records []model.ScoreRecord
	for rows.Next() {
		var rec model.ScoreRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.WPM, &rec.Accuracy, &rec.Duration, &createdAt, &rec.Username); err != nil {
			return nil, err
		}
		rec.CreatedAt = fromUnixNano(createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (model.LeaderboardEntry, error) {
	var entry model.LeaderboardEntry
	var createdAt int64
	if err := row.Scan(&entry.Username, &entry.WPM, &entry.Accuracy, &createdAt); err != nil {
		return model.LeaderboardEntry{}, err
	}
	entry.Timestamp = fromUnixNano(createdAt)
	return entry, nil
}

func fromUnixNano(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		return serr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
