package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/hospital-admin/internal/apperr"
	"github.com/hackgods/hospital-admin/internal/audit"
)

type Service struct {
	repo   UserRepository
	tokens *TokenIssuer
	audit  audit.Recorder
	logger zerolog.Logger
}

func NewService(repo UserRepository, tokens *TokenIssuer, rec audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tokens: tokens, audit: rec, logger: logger}
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *User     `json:"user"`
}

// Login checks the password and issues a token. Unknown email, wrong password
// and inactive accounts all fail the same way.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, apperr.Persistence("load user", err)
	}
	if !u.Active || !CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.repo.TouchLastLogin(ctx, u.ID, now); err != nil {
		s.logger.Warn().Err(err).Str("user_id", u.ID.String()).Msg("failed to update last login")
	} else {
		u.LastLoginAt = &now
	}
	s.audit.Record(audit.NewEvent(ctx, &u.ID, audit.ActionLogin, "users", u.ID))

	return &LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}

// Authenticate turns a bearer token into a principal. The account is
// reloaded on every call so a deactivation or role change applies to tokens
// that are already out.
func (s *Service) Authenticate(ctx context.Context, raw string) (Principal, error) {
	p, err := s.tokens.Parse(raw)
	if err != nil {
		return Principal{}, err
	}

	u, err := s.repo.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Principal{}, ErrAccountDisabled
		}
		return Principal{}, apperr.Persistence("load user", err)
	}
	if !u.Active {
		return Principal{}, ErrAccountDisabled
	}

	return Principal{UserID: u.ID, Email: u.Email, Role: u.Role}, nil
}

func (s *Service) Me(ctx context.Context, p Principal) (*User, error) {
	u, err := s.repo.GetByID(ctx, p.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, apperr.Persistence("load user", err)
	}
	return u, nil
}

func (s *Service) CreateUser(ctx context.Context, actor Principal, in CreateUserInput) (*User, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		ID:           uuid.New(),
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Active:       true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, apperr.Persistence("create user", err)
	}

	s.audit.Record(audit.NewEvent(ctx, actor.ActorID(), audit.ActionCreate, "users", u.ID))
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Persistence("list users", err)
	}
	return users, nil
}
