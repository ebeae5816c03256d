package stats

import (
	"context"
	"io"

	"github.com/verte-zerg/swifttype/internal/model"
)

// HistorySource lists persisted scores.
type HistorySource interface {
	ListScores(ctx context.Context, filter model.ScoreFilter) ([]model.ScoreRecord, error)
}

// Report contains precomputed data for history rendering.
type Report struct {
	Scores  []model.ScoreRecord
	Window  []model.ScoreRecord
	Summary Summary
}

// BuildReport loads and prepares data for history rendering. Scores are
// ordered oldest first so curves read left to right.
func BuildReport(ctx context.Context, src HistorySource, userID string, cfg model.HistoryConfig) (Report, error) {
	scores, err := src.ListScores(ctx, model.ScoreFilter{
		UserID:    userID,
		Duration:  cfg.Duration,
		Since:     cfg.Since,
		Ascending: true,
	})
	if err != nil {
		return Report{}, err
	}
	if cfg.Last > 0 && len(scores) > cfg.Last {
		scores = scores[len(scores)-cfg.Last:]
	}
	return Report{
		Scores:  scores,
		Window:  lastScores(scores, cfg.CurveWindow),
		Summary: Summarize(scores),
	}, nil
}

// Render writes the summary, per-duration table and curves.
func (r Report) Render(w io.Writer, window int) error {
	if err := RenderSummary(w, r.Scores); err != nil {
		return err
	}
	if err := RenderDurationTable(w, r.Scores); err != nil {
		return err
	}
	return RenderCurves(w, r.Scores, window)
}

func lastScores(scores []model.ScoreRecord, window int) []model.ScoreRecord {
	if window <= 0 || len(scores) <= window {
		return scores
	}
	return scores[len(scores)-window:]
}
