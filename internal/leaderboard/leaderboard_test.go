package leaderboard

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/verte-zerg/swifttype/internal/model"
	"github.com/verte-zerg/swifttype/internal/store"
	"github.com/verte-zerg/swifttype/internal/validation"
)

type fakeRepo struct {
	scores []model.Score
	err    error
}

func (f *fakeRepo) InsertScore(_ context.Context, score model.Score) (model.Score, error) {
	if f.err != nil {
		return model.Score{}, f.err
	}
	score.ID = "s" + string(rune('a'+len(f.scores)))
	score.CreatedAt = time.Unix(int64(len(f.scores)), 0)
	f.scores = append(f.scores, score)
	return score, nil
}

func (f *fakeRepo) TopScores(_ context.Context, duration, _ int) ([]model.LeaderboardEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.LeaderboardEntry
	for _, s := range f.scores {
		if s.Duration == duration {
			out = append(out, model.LeaderboardEntry{Username: s.UserID, WPM: s.WPM, Accuracy: s.Accuracy, Timestamp: s.CreatedAt})
		}
	}
	// Deliberately ignores the limit so the service cap is exercised.
	sort.SliceStable(out, func(i, j int) bool { return out[i].WPM > out[j].WPM })
	return out, nil
}

func (f *fakeRepo) BestScore(_ context.Context, userID string, duration int) (*model.LeaderboardEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	var best *model.LeaderboardEntry
	for _, s := range f.scores {
		if s.UserID != userID || s.Duration != duration {
			continue
		}
		if best == nil || s.WPM > best.WPM {
			best = &model.LeaderboardEntry{Username: s.UserID, WPM: s.WPM, Accuracy: s.Accuracy, Timestamp: s.CreatedAt}
		}
	}
	return best, nil
}

type recordingBroadcaster struct {
	events []string
}

func (r *recordingBroadcaster) Publish(eventType string, _ any) {
	r.events = append(r.events, eventType)
}

func TestTopScoresCapsAndSorts(t *testing.T) {
	repo := &fakeRepo{}
	svc := New(repo, nil)
	ctx := context.Background()
	for i := 0; i < 15; i++ {
		if _, err := svc.Submit(ctx, "u", SubmitRequest{WPM: (i * 7) % 13, Accuracy: 90, Duration: 60}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	entries, err := svc.TopScores(ctx, 60, 50)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if len(entries) != DefaultLimit {
		t.Fatalf("expected %d entries, got %d", DefaultLimit, len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].WPM < entries[i].WPM {
			t.Fatalf("entries not sorted desc at %d: %+v", i, entries)
		}
	}
}

func TestTopScoresInvalidDuration(t *testing.T) {
	svc := New(&fakeRepo{}, nil)
	if _, err := svc.TopScores(context.Background(), 45, 10); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}

func TestTopScoresEmptyIsNonNil(t *testing.T) {
	svc := New(&fakeRepo{}, nil)
	entries, err := svc.TopScores(context.Background(), 30, 0)
	if err != nil {
		t.Fatalf("top scores: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", entries)
	}
}

func TestQueryFailure(t *testing.T) {
	svc := New(&fakeRepo{err: errors.New("disk on fire")}, nil)
	ctx := context.Background()
	if _, err := svc.TopScores(ctx, 30, 10); !errors.Is(err, ErrQueryFailed) {
		t.Fatalf("expected ErrQueryFailed from top scores, got %v", err)
	}
	if _, err := svc.PersonalBest(ctx, "u", nil); !errors.Is(err, ErrQueryFailed) {
		t.Fatalf("expected ErrQueryFailed from personal best, got %v", err)
	}
	if _, err := svc.Submit(ctx, "u", SubmitRequest{WPM: 1, Accuracy: 1, Duration: 30}); !errors.Is(err, ErrQueryFailed) {
		t.Fatalf("expected ErrQueryFailed from submit, got %v", err)
	}
}

func TestSubmitValidation(t *testing.T) {
	svc := New(&fakeRepo{}, nil)
	cases := []struct {
		name  string
		req   SubmitRequest
		field string
	}{
		{name: "negative wpm", req: SubmitRequest{WPM: -1, Accuracy: 50, Duration: 30}, field: "wpm"},
		{name: "accuracy high", req: SubmitRequest{WPM: 1, Accuracy: 101, Duration: 30}, field: "accuracy"},
		{name: "accuracy low", req: SubmitRequest{WPM: 1, Accuracy: -1, Duration: 30}, field: "accuracy"},
		{name: "zero duration", req: SubmitRequest{WPM: 1, Accuracy: 50}, field: "duration"},
		{name: "unsupported duration", req: SubmitRequest{WPM: 50, Accuracy: 90, Duration: 45}, field: "duration"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), "u", tc.req)
			var verr *validation.Error
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if verr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, verr.Field)
			}
		})
	}
}

func TestSubmitBroadcasts(t *testing.T) {
	bcast := &recordingBroadcaster{}
	svc := New(&fakeRepo{}, bcast)
	var observed int
	svc.OnSubmit = func(model.Score) { observed++ }
	if _, err := svc.Submit(context.Background(), "u", SubmitRequest{WPM: 50, Accuracy: 95, Duration: 30}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(bcast.events) != 1 || bcast.events[0] != UpdateEvent {
		t.Fatalf("expected one %s event, got %v", UpdateEvent, bcast.events)
	}
	if observed != 1 {
		t.Fatalf("expected OnSubmit to run once, got %d", observed)
	}
}

func TestPersonalBestWithStore(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "swifttype.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	ctx := context.Background()
	alice, err := st.CreateUser(ctx, model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	svc := New(st, nil)
	for _, wpm := range []int{40, 55} {
		if _, err := svc.Submit(ctx, alice.ID, SubmitRequest{WPM: wpm, Accuracy: 97, Duration: 60}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	best, err := svc.PersonalBest(ctx, alice.ID, []int{60})
	if err != nil {
		t.Fatalf("personal best: %v", err)
	}
	if best[60] == nil || best[60].WPM != 55 || best[60].Username != "alice" {
		t.Fatalf("expected 55 wpm record, got %+v", best[60])
	}

	all, err := svc.PersonalBest(ctx, alice.ID, nil)
	if err != nil {
		t.Fatalf("personal best all: %v", err)
	}
	if all[30] != nil {
		t.Fatalf("expected nil for empty 30s bucket, got %+v", all[30])
	}
	if len(all) != len(model.Durations) {
		t.Fatalf("expected one key per duration, got %v", all)
	}
}

func TestPersonalBestRejectsUnknownDuration(t *testing.T) {
	svc := New(&fakeRepo{}, nil)
	if _, err := svc.PersonalBest(context.Background(), "u", []int{45}); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected ErrInvalidDuration, got %v", err)
	}
}
