package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/swifttype/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "nested", "swifttype.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func mustUser(t *testing.T, st *Store, name string) model.User {
	t.Helper()
	user, err := st.CreateUser(context.Background(), model.User{
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "hash",
	})
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user
}

func mustScore(t *testing.T, st *Store, userID string, wpm, duration int, at time.Time) model.Score {
	t.Helper()
	score, err := st.InsertScore(context.Background(), model.Score{
		UserID:    userID,
		WPM:       wpm,
		Accuracy:  95,
		Duration:  duration,
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("insert score: %v", err)
	}
	return score
}

func TestCreateUserAndLookup(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	user := mustUser(t, st, "alice")
	if user.ID == "" {
		t.Fatalf("expected generated id")
	}

	byName, err := st.UserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("by username: %v", err)
	}
	if byName.ID != user.ID || byName.PasswordHash != "hash" {
		t.Fatalf("unexpected user %+v", byName)
	}
	byEmail, err := st.UserByEmail(ctx, "alice@example.com")
	if err != nil || byEmail.ID != user.ID {
		t.Fatalf("by email: %+v %v", byEmail, err)
	}
	byID, err := st.UserByID(ctx, user.ID)
	if err != nil || byID.Username != "alice" {
		t.Fatalf("by id: %+v %v", byID, err)
	}
	if _, err := st.UserByUsername(ctx, "bob"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateUserDuplicate(t *testing.T) {
	st := openTestStore(t)
	mustUser(t, st, "alice")
	_, err := st.CreateUser(context.Background(), model.User{
		Username: "alice", Email: "other@example.com", PasswordHash: "x",
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for username, got %v", err)
	}
	_, err = st.CreateUser(context.Background(), model.User{
		Username: "alice2", Email: "alice@example.com", PasswordHash: "x",
	})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate for email, got %v", err)
	}
}

func TestEnsureUser(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	first, err := st.EnsureUser(ctx, "local")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	second, err := st.EnsureUser(ctx, "local")
	if err != nil {
		t.Fatalf("ensure user again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same user, got %s and %s", first.ID, second.ID)
	}
}

func TestTopScoresOrdering(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, st, "alice")
	bob := mustUser(t, st, "bob")
	base := time.Unix(1_700_000_000, 0).UTC()

	mustScore(t, st, alice.ID, 50, 30, base.Add(2*time.Minute))
	mustScore(t, st, bob.ID, 50, 30, base.Add(time.Minute))
	mustScore(t, st, alice.ID, 70, 30, base)
	mustScore(t, st, bob.ID, 90, 60, base)

	entries, err := st.TopScores(ctx, 30, 10)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries for 30s, got %d", len(entries))
	}
	if entries[0].WPM != 70 || entries[0].Username != "alice" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	// Equal wpm: earlier submission ranks first.
	if entries[1].Username != "bob" || entries[2].Username != "alice" {
		t.Fatalf("expected tie broken by creation time, got %+v", entries[1:])
	}
	if !entries[0].Timestamp.Equal(base) {
		t.Fatalf("expected timestamp round trip, got %v", entries[0].Timestamp)
	}

	limited, err := st.TopScores(ctx, 30, 2)
	if err != nil {
		t.Fatalf("top scores limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestTopScoresEmpty(t *testing.T) {
	st := openTestStore(t)
	entries, err := st.TopScores(context.Background(), 60, 10)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}

func TestBestScore(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, st, "alice")
	base := time.Unix(1_700_000_000, 0).UTC()
	mustScore(t, st, alice.ID, 40, 30, base)
	mustScore(t, st, alice.ID, 55, 30, base.Add(time.Minute))

	best, err := st.BestScore(ctx, alice.ID, 30)
	if err != nil {
		t.Fatalf("best score: %v", err)
	}
	if best == nil || best.WPM != 55 {
		t.Fatalf("expected best 55, got %+v", best)
	}
	none, err := st.BestScore(ctx, alice.ID, 60)
	if err != nil {
		t.Fatalf("best score 60: %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil for empty bucket, got %+v", none)
	}
}

func TestListScoresFilters(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	alice := mustUser(t, st, "alice")
	bob := mustUser(t, st, "bob")
	base := time.Unix(1_700_000_000, 0).UTC()
	mustScore(t, st, alice.ID, 40, 30, base)
	mustScore(t, st, alice.ID, 45, 60, base.Add(time.Minute))
	mustScore(t, st, alice.ID, 50, 30, base.Add(2*time.Minute))
	mustScore(t, st, bob.ID, 80, 30, base.Add(3*time.Minute))

	all, err := st.ListScores(ctx, model.ScoreFilter{UserID: alice.ID})
	if err != nil {
		t.Fatalf("list scores: %v", err)
	}
	if len(all) != 3 || all[0].WPM != 50 {
		t.Fatalf("expected newest first for alice, got %+v", all)
	}

	since := base.Add(time.Minute)
	filtered, err := st.ListScores(ctx, model.ScoreFilter{
		UserID:    alice.ID,
		Duration:  30,
		Since:     &since,
		Ascending: true,
	})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].WPM != 50 || filtered[0].Username != "alice" {
		t.Fatalf("unexpected filtered scores %+v", filtered)
	}

	everyone, err := st.ListScores(ctx, model.ScoreFilter{Ascending: true})
	if err != nil {
		t.Fatalf("list everyone: %v", err)
	}
	if len(everyone) != 4 || everyone[3].Username != "bob" {
		t.Fatalf("unexpected global listing %+v", everyone)
	}
}

func TestPing(t *testing.T) {
	st := openTestStore(t)
	if err := st.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
