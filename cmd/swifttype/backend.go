package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"strings"
	"time"

	"github.com/verte-zerg/swifttype/internal/client"
	"github.com/verte-zerg/swifttype/internal/config"
	"github.com/verte-zerg/swifttype/internal/leaderboard"
	"github.com/verte-zerg/swifttype/internal/model"
	"github.com/verte-zerg/swifttype/internal/store"
	"github.com/verte-zerg/swifttype/internal/texts"
	"github.com/verte-zerg/swifttype/internal/tui"
)

const (
	remoteTextTimeout = 3 * time.Second
	localUserFallback = "local"
)

// practiceBackend bundles where texts come from and where scores go.
type practiceBackend struct {
	texts     tui.TextSource
	submitter tui.Submitter
	close     func()
}

// openPracticeBackend submits to the server when logged in, and to the local
// database otherwise.
func openPracticeBackend(provider *texts.Provider, offline bool) (practiceBackend, error) {
	if !offline {
		if c, ok, err := remoteClient(true); err != nil {
			return practiceBackend{}, err
		} else if ok {
			return practiceBackend{
				texts:     &remoteTexts{client: c, fallback: provider},
				submitter: &remoteSubmitter{client: c},
				close:     func() {},
			}, nil
		}
	}
	local, err := openLocal()
	if err != nil {
		return practiceBackend{}, err
	}
	return practiceBackend{
		texts:     provider,
		submitter: local,
		close:     local.Close,
	}, nil
}

// remoteClient builds a client for the configured server. With requireToken
// it reports ok=false when no saved login matches the server.
func remoteClient(requireToken bool) (*client.Client, bool, error) {
	if strings.TrimSpace(serverURL) == "" {
		return nil, false, nil
	}
	creds, err := config.LoadCredentials(config.DefaultCredentialsPath())
	if err != nil {
		return nil, false, err
	}
	token := ""
	if creds.Server == serverURL {
		token = creds.Token
	}
	if requireToken && token == "" {
		logErrf("not logged in to %s; using local scores (run: swifttype login)\n", serverURL)
		return nil, false, nil
	}
	c, err := client.New(serverURL, token)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// remoteTexts fetches passages from the server and falls back to the local
// provider when it is unreachable.
type remoteTexts struct {
	client   *client.Client
	fallback tui.TextSource
}

func (r *remoteTexts) Random() model.Text {
	ctx, cancel := context.WithTimeout(context.Background(), remoteTextTimeout)
	defer cancel()
	text, err := r.client.Text(ctx)
	if err != nil || strings.TrimSpace(text.Text) == "" {
		return r.fallback.Random()
	}
	return text
}

type remoteSubmitter struct {
	client *client.Client
}

func (r *remoteSubmitter) SubmitScore(ctx context.Context, score model.Score) error {
	req := leaderboard.SubmitRequest{WPM: score.WPM, Accuracy: score.Accuracy, Duration: score.Duration}
	if err := r.client.SubmitScore(ctx, req); err != nil {
		return err
	}
	// Relay hint for connected peers.
	if err := r.client.AnnounceScore(ctx, req); err != nil {
		logErrf("failed to announce score: %v\n", err)
	}
	return nil
}

// localBackend keeps scores in the SQLite database under a passwordless
// account named after the OS user.
type localBackend struct {
	store *store.Store
	board *leaderboard.Service
	user  model.User
}

func openLocal() (*localBackend, error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	u, err := st.EnsureUser(context.Background(), localUsername())
	if err != nil {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close db: %v\n", cerr)
		}
		return nil, fmt.Errorf("failed to load local user: %w", err)
	}
	return &localBackend{store: st, board: leaderboard.New(st, nil), user: u}, nil
}

func localUsername() string {
	if name := strings.TrimSpace(os.Getenv("USER")); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return localUserFallback
}

func (l *localBackend) Close() {
	if err := l.store.Close(); err != nil {
		logErrf("failed to close db: %v\n", err)
	}
}

func (l *localBackend) SubmitScore(ctx context.Context, score model.Score) error {
	_, err := l.board.Submit(ctx, l.user.ID, leaderboard.SubmitRequest{
		WPM:      score.WPM,
		Accuracy: score.Accuracy,
		Duration: score.Duration,
	})
	return err
}

func (l *localBackend) TopScores(ctx context.Context, duration int) ([]model.LeaderboardEntry, error) {
	return l.board.TopScores(ctx, duration, leaderboard.DefaultLimit)
}

func (l *localBackend) PersonalBest(ctx context.Context) (map[int]*model.LeaderboardEntry, error) {
	return l.board.PersonalBest(ctx, l.user.ID, model.Durations)
}

func (l *localBackend) ListScores(ctx context.Context, filter model.ScoreFilter) ([]model.ScoreRecord, error) {
	if filter.UserID != "" {
		filter.UserID = l.user.ID
	}
	return l.store.ListScores(ctx, filter)
}

// describeAPIError turns server errors into one-line CLI messages.
func describeAPIError(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return errors.New(apiErr.Message)
	}
	return err
}
