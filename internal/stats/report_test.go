package stats

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/swifttype/internal/model"
	"github.com/verte-zerg/swifttype/internal/store"
)

func TestBuildReport(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "swifttype.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	ctx := context.Background()
	user, err := st.CreateUser(ctx, model.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	base := time.Unix(1_700_000_000, 0).UTC()
	wpms := []int{40, 55, 48, 61}
	for i, wpm := range wpms {
		_, err := st.InsertScore(ctx, model.Score{
			UserID:    user.ID,
			WPM:       wpm,
			Accuracy:  90 + i,
			Duration:  model.Duration30,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert score: %v", err)
		}
	}
	if _, err := st.InsertScore(ctx, model.Score{
		UserID: user.ID, WPM: 99, Accuracy: 99, Duration: model.Duration60, CreatedAt: base,
	}); err != nil {
		t.Fatalf("insert score: %v", err)
	}

	report, err := BuildReport(ctx, st, user.ID, model.HistoryConfig{Duration: model.Duration30, Last: 3, CurveWindow: 2})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	if len(report.Scores) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(report.Scores))
	}
	if report.Scores[0].WPM != 55 || report.Scores[2].WPM != 61 {
		t.Fatalf("expected oldest-first window [55 48 61], got %+v", report.Scores)
	}
	if len(report.Window) != 2 {
		t.Fatalf("expected curve window of 2, got %d", len(report.Window))
	}
	if report.Summary.BestWPM != 61 {
		t.Fatalf("expected best wpm 61, got %d", report.Summary.BestWPM)
	}
	if report.Scores[0].Username != "alice" {
		t.Fatalf("expected username to be joined, got %q", report.Scores[0].Username)
	}

	var buf bytes.Buffer
	if err := report.Render(&buf, 2); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "Per-Duration") {
		t.Fatalf("expected per-duration table in output")
	}
}

func TestBuildReportEmpty(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "swifttype.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})

	report, err := BuildReport(context.Background(), st, "nobody", model.HistoryConfig{})
	if err != nil {
		t.Fatalf("build report: %v", err)
	}
	var buf bytes.Buffer
	if err := report.Render(&buf, 0); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "No scores found.") {
		t.Fatalf("expected empty notice, got %q", buf.String())
	}
}
