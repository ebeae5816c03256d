package main

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/swifttype/internal/boardui"
	"github.com/verte-zerg/swifttype/internal/client"
	"github.com/verte-zerg/swifttype/internal/leaderboard"
	"github.com/verte-zerg/swifttype/internal/model"
	"github.com/verte-zerg/swifttype/internal/realtime"
	"github.com/verte-zerg/swifttype/internal/stats"
)

const resubscribeDelay = 5 * time.Second

var (
	boardPlain    bool
	boardDuration int

	historyDuration    int
	historySince       string
	historyLast        int
	historyCurveWindow int
	historyAll         bool
)

func newLeaderboardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show top scores and personal bests",
		Args:  cobra.NoArgs,
		RunE:  runLeaderboardCmd,
	}
	cmd.Flags().BoolVar(&boardPlain, "plain", false, "print tables instead of opening the TUI")
	cmd.Flags().IntVar(&boardDuration, "duration", 0, "with --plain, only this duration (30 or 60)")
	return cmd
}

func runLeaderboardCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "server", &serverURL, fileCfg.Client.Server)
	if boardDuration != 0 && !leaderboard.ValidDuration(boardDuration) {
		return fmt.Errorf("--duration must be %d or %d", model.Duration30, model.Duration60)
	}

	var (
		source  boardui.Source
		best    boardui.BestSource
		updates <-chan struct{}
	)
	c, remote, err := remoteClient(false)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if remote {
		source = c
		if creds, _ := currentCredentials(); creds.Token != "" {
			best = c
		}
		if !boardPlain {
			updates = subscribeUpdates(ctx, c)
		}
	} else {
		local, err := openLocal()
		if err != nil {
			return err
		}
		defer local.Close()
		source, best = local, local
	}

	if boardPlain {
		return printLeaderboard(ctx, cmd.OutOrStdout(), source, best)
	}
	m := boardui.NewModel(boardui.Options{Source: source, Best: best, Updates: updates})
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run leaderboard TUI: %w", err)
	}
	return nil
}

// subscribeUpdates turns leaderboardUpdate frames into refresh hints,
// reconnecting until ctx is done.
func subscribeUpdates(ctx context.Context, c *client.Client) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for {
			err := c.Subscribe(ctx, func(msg realtime.Message) {
				if msg.Type != realtime.EventLeaderboardUpdate {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			})
			if ctx.Err() != nil {
				return
			}
			logErrf("live updates disconnected: %v\n", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(resubscribeDelay):
			}
		}
	}()
	return out
}

func printLeaderboard(ctx context.Context, w io.Writer, source boardui.Source, best boardui.BestSource) error {
	durations := model.Durations
	if boardDuration != 0 {
		durations = []int{boardDuration}
	}
	for _, d := range durations {
		entries, err := source.TopScores(ctx, d)
		if err != nil {
			return fmt.Errorf("failed to load leaderboard: %w", describeAPIError(err))
		}
		if err := stats.RenderLeaderboard(w, fmt.Sprintf("Top %ds", d), entries); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if best == nil {
		return nil
	}
	bests, err := best.PersonalBest(ctx)
	if err != nil {
		return fmt.Errorf("failed to load personal best: %w", describeAPIError(err))
	}
	entries := make([]model.LeaderboardEntry, 0, len(durations))
	for _, d := range durations {
		if e := bests[d]; e != nil {
			entries = append(entries, *e)
		}
	}
	if err := stats.RenderLeaderboard(w, "Personal best", entries); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show your score history and learning curves",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyDuration, "duration", 0, "only this duration (30 or 60)")
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N scores")
	cmd.Flags().IntVar(&historyCurveWindow, "curve-window", defaultCurveWindow, "moving average window")
	cmd.Flags().BoolVar(&historyAll, "all", false, "include every user's scores")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig()
	if err != nil {
		return err
	}
	applyStringConfig(cmd, "server", &serverURL, fileCfg.Client.Server)

	var sinceTime *time.Time
	if historySince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", historySince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if historyDuration != 0 && !leaderboard.ValidDuration(historyDuration) {
		return fmt.Errorf("--duration must be %d or %d", model.Duration30, model.Duration60)
	}
	cfg := model.HistoryConfig{
		Duration:    historyDuration,
		Since:       sinceTime,
		Last:        historyLast,
		CurveWindow: historyCurveWindow,
	}

	var src stats.HistorySource
	c, remote, err := remoteClient(true)
	if err != nil {
		return err
	}
	if remote {
		src = c
	} else {
		local, err := openLocal()
		if err != nil {
			return err
		}
		defer local.Close()
		src = local
	}

	// Any non-empty id selects the caller's own scores; backends resolve it.
	userID := "me"
	if historyAll {
		userID = ""
	}
	report, err := stats.BuildReport(context.Background(), src, userID, cfg)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", describeAPIError(err))
	}
	if err := report.Render(cmd.OutOrStdout(), cfg.CurveWindow); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
