// Package client talks to a swifttype server over HTTP and WebSocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verte-zerg/swifttype/internal/auth"
	"github.com/verte-zerg/swifttype/internal/leaderboard"
	"github.com/verte-zerg/swifttype/internal/model"
	"github.com/verte-zerg/swifttype/internal/realtime"
)

const defaultTimeout = 10 * time.Second

// ErrNoServer is returned when no server URL is configured.
var ErrNoServer = errors.New("no server configured")

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Session is the result of register or login.
type Session struct {
	Message string `json:"message"`
	Token   string `json:"token"`
	User    struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
}

// Client is a thin API client. The zero value is not usable; call New.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	dialer  *websocket.Dialer
}

// New returns a client for baseURL authenticating with token (which may be empty).
func New(baseURL, token string) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrNoServer
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", baseURL)
	}
	return &Client{
		baseURL: u,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		dialer:  &websocket.Dialer{HandshakeTimeout: defaultTimeout},
	}, nil
}

// WithToken returns a copy using token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, req auth.RegisterRequest) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/api/auth/register", req, &out)
	return out, err
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, req auth.LoginRequest) (Session, error) {
	var out Session
	err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &out)
	return out, err
}

// SubmitScore records a finished test.
func (c *Client) SubmitScore(ctx context.Context, req leaderboard.SubmitRequest) error {
	return c.do(ctx, http.MethodPost, "/api/leaderboard/scores", req, nil)
}

// TopScores fetches the leaderboard for a duration bucket.
func (c *Client) TopScores(ctx context.Context, duration int) ([]model.LeaderboardEntry, error) {
	var out []model.LeaderboardEntry
	err := c.do(ctx, http.MethodGet, "/api/leaderboard/top/"+strconv.Itoa(duration), nil, &out)
	return out, err
}

// PersonalBest fetches the caller's best score per duration.
func (c *Client) PersonalBest(ctx context.Context) (map[int]*model.LeaderboardEntry, error) {
	var raw map[string]*model.LeaderboardEntry
	if err := c.do(ctx, http.MethodGet, "/api/leaderboard/personal-best", nil, &raw); err != nil {
		return nil, err
	}
	out := make(map[int]*model.LeaderboardEntry, len(raw))
	for k, v := range raw {
		d, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("unexpected duration key %q", k)
		}
		out[d] = v
	}
	return out, nil
}

// ListScores fetches score history. A ScoreFilter with a UserID limits the
// listing to the caller; the server resolves the id from the token.
func (c *Client) ListScores(ctx context.Context, filter model.ScoreFilter) ([]model.ScoreRecord, error) {
	q := url.Values{}
	if filter.UserID != "" {
		q.Set("mine", "true")
	}
	if filter.Duration > 0 {
		q.Set("duration", strconv.Itoa(filter.Duration))
	}
	path := "/api/scores"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []model.ScoreRecord
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	kept := out[:0]
	for _, s := range out {
		if filter.Since != nil && s.CreatedAt.Before(*filter.Since) {
			continue
		}
		kept = append(kept, s)
	}
	if filter.Ascending {
		for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
			kept[i], kept[j] = kept[j], kept[i]
		}
	}
	return kept, nil
}

// Text fetches a random reference passage.
func (c *Client) Text(ctx context.Context) (model.Text, error) {
	var out model.Text
	err := c.do(ctx, http.MethodGet, "/api/text", nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var msg struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&msg); err == nil {
			apiErr.Message = msg.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) wsURL() string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String()
}

// AnnounceScore sends a newScore hint over the broadcast channel.
func (c *Client) AnnounceScore(ctx context.Context, payload any) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := conn.WriteJSON(realtime.Message{Type: realtime.EventNewScore, Data: data}); err != nil {
		return err
	}
	deadline := time.Now().Add(time.Second)
	return conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}

// Subscribe calls fn for every frame until ctx is cancelled or the
// connection drops.
func (c *Client) Subscribe(ctx context.Context, fn func(realtime.Message)) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.wsURL(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer func() {
		_ = conn.Close()
	}()
	for {
		var msg realtime.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		fn(msg)
	}
}
