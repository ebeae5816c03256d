package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/verte-zerg/swifttype/internal/model"
)

const sparkChars = " .:-=+*#%@"

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := seriesMinMaxSingle(values)
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// Summary aggregates a score history.
type Summary struct {
	Count       int
	AvgWPM      float64
	BestWPM     int
	AvgAccuracy float64
}

// Summarize folds scores into a Summary.
func Summarize(scores []model.ScoreRecord) Summary {
	if len(scores) == 0 {
		return Summary{}
	}
	var totalWPM, totalAcc int
	best := 0
	for _, s := range scores {
		totalWPM += s.WPM
		totalAcc += s.Accuracy
		if s.WPM > best {
			best = s.WPM
		}
	}
	n := float64(len(scores))
	return Summary{
		Count:       len(scores),
		AvgWPM:      float64(totalWPM) / n,
		BestWPM:     best,
		AvgAccuracy: float64(totalAcc) / n,
	}
}

// RenderSummary prints a summary block for scores.
func RenderSummary(w io.Writer, scores []model.ScoreRecord) error {
	if len(scores) == 0 {
		_, err := fmt.Fprintln(w, "No scores found.")
		return err
	}
	sum := Summarize(scores)
	wpms := make([]float64, len(scores))
	for i, s := range scores {
		wpms[i] = float64(s.WPM)
	}
	lines := []string{
		"Summary",
		fmt.Sprintf("Tests: %d", sum.Count),
		fmt.Sprintf("Avg WPM: %.2f", sum.AvgWPM),
		fmt.Sprintf("Best WPM: %d", sum.BestWPM),
		fmt.Sprintf("Avg Accuracy: %.2f%%", sum.AvgAccuracy),
		fmt.Sprintf("Trend: %s", Sparkline(wpms)),
		"",
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// RenderCurves prints learning curves for WPM and accuracy.
func RenderCurves(w io.Writer, scores []model.ScoreRecord, window int) error {
	return RenderCurvesWithSize(w, scores, window, 0, defaultPlotHeight, false)
}

// RenderCurvesWithSize prints learning curves sized to a given total width.
func RenderCurvesWithSize(w io.Writer, scores []model.ScoreRecord, window, totalWidth, height int, useColor bool) error {
	if len(scores) == 0 {
		return nil
	}
	wpms := make([]float64, len(scores))
	accs := make([]float64, len(scores))
	for i, s := range scores {
		wpms[i] = float64(s.WPM)
		accs[i] = float64(s.Accuracy)
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	return PlotSeriesWithColor(w, "Learning Curves", []Series{
		{Name: "WPM", Values: MovingAverage(wpms, window)},
		{Name: "Accuracy", Values: MovingAverage(accs, window)},
	}, width, height, useColor)
}

// RenderDurationTable prints one row per duration bucket present in scores.
func RenderDurationTable(w io.Writer, scores []model.ScoreRecord) error {
	if len(scores) == 0 {
		return nil
	}
	byDuration := map[int][]model.ScoreRecord{}
	for _, s := range scores {
		byDuration[s.Duration] = append(byDuration[s.Duration], s)
	}
	durations := make([]int, 0, len(byDuration))
	for d := range byDuration {
		durations = append(durations, d)
	}
	sort.Ints(durations)

	if _, err := fmt.Fprintln(w, "Per-Duration"); err != nil {
		return err
	}
	headers := []string{"Duration", "Tests", "Avg WPM", "Best WPM", "Avg Accuracy"}
	rows := make([][]string, 0, len(durations))
	for _, d := range durations {
		sum := Summarize(byDuration[d])
		rows = append(rows, []string{
			fmt.Sprintf("%ds", d),
			fmt.Sprintf("%d", sum.Count),
			fmt.Sprintf("%.1f", sum.AvgWPM),
			fmt.Sprintf("%d", sum.BestWPM),
			fmt.Sprintf("%.1f%%", sum.AvgAccuracy),
		})
	}
	for _, line := range formatTable(headers, rows, map[int]bool{1: true, 2: true, 3: true, 4: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderLeaderboard prints ranked entries as a table.
func RenderLeaderboard(w io.Writer, title string, entries []model.LeaderboardEntry) error {
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No scores yet.")
		return err
	}
	headers := []string{"#", "User", "WPM", "Accuracy", "When"}
	rows := make([][]string, 0, len(entries))
	for i, e := range entries {
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1),
			e.Username,
			fmt.Sprintf("%d", e.WPM),
			fmt.Sprintf("%d%%", e.Accuracy),
			e.Timestamp.Local().Format("2006-01-02 15:04"),
		})
	}
	for _, line := range formatTable(headers, rows, map[int]bool{0: true, 2: true, 3: true}) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
