// Package auth registers users, checks credentials and issues bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/verte-zerg/swifttype/internal/model"
	"github.com/verte-zerg/swifttype/internal/store"
	"github.com/verte-zerg/swifttype/internal/validation"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown user or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUsernameTaken      = errors.New("username already exists")
	ErrEmailTaken         = errors.New("email already exists")
)

// UserRepository is the user storage used by Service.
type UserRepository interface {
	CreateUser(ctx context.Context, user model.User) (model.User, error)
	UserByID(ctx context.Context, id string) (model.User, error)
	UserByUsername(ctx context.Context, username string) (model.User, error)
	UserByEmail(ctx context.Context, email string) (model.User, error)
}

// RegisterRequest is the body of a registration.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest identifies a user by username or email.
type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Identifier returns the email when present, otherwise the username.
func (r LoginRequest) Identifier() string {
	if r.Email != "" {
		return strings.TrimSpace(r.Email)
	}
	return strings.TrimSpace(r.Username)
}

// Session is an authenticated user plus their token.
type Session struct {
	Token string
	User  model.User
}

// Service implements registration, login and token checks.
type Service struct {
	users  UserRepository
	tokens *TokenProvider
}

// NewService wires a Service.
func NewService(users UserRepository, tokens *TokenProvider) *Service {
	return &Service{users: users, tokens: tokens}
}

// Register creates a user and returns a session for it.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (Session, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Username(req.Username); err != nil {
		return Session{}, err
	}
	if err := validation.Email(req.Email); err != nil {
		return Session{}, err
	}
	if err := validation.Password(req.Password); err != nil {
		return Session{}, err
	}
	if _, err := s.users.UserByUsername(ctx, req.Username); err == nil {
		return Session{}, ErrUsernameTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return Session{}, fmt.Errorf("lookup username: %w", err)
	}
	if _, err := s.users.UserByEmail(ctx, req.Email); err == nil {
		return Session{}, ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return Session{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return Session{}, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	})
	if err != nil {
		// A concurrent registration can still win the race past the lookups.
		if errors.Is(err, store.ErrDuplicate) {
			return Session{}, ErrUsernameTaken
		}
		return Session{}, fmt.Errorf("create user: %w", err)
	}
	return s.session(user)
}

// Login checks credentials. Identifiers containing "@" are treated as emails.
func (s *Service) Login(ctx context.Context, req LoginRequest) (Session, error) {
	id := req.Identifier()
	if id == "" {
		return Session{}, validation.Fail("username", "Email or username is required")
	}
	var (
		user model.User
		err  error
	)
	if strings.Contains(id, "@") {
		user, err = s.users.UserByEmail(ctx, id)
	} else {
		user, err = s.users.UserByUsername(ctx, id)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if !CheckPassword(user.PasswordHash, req.Password) {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(user)
}

// Authenticate resolves a token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (model.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return model.User{}, err
	}
	user, err := s.users.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.User{}, ErrInvalidToken
		}
		return model.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func (s *Service) session(user model.User) (Session, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, User: user}, nil
}

// ExtractToken accepts "Bearer <token>" or a raw token header value.
func ExtractToken(header string) string {
	header = strings.TrimSpace(header)
	if rest, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(rest)
	}
	return header
}
