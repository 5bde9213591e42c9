package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/health-assistant/health-assistant/internal/platform/auth"
	"github.com/health-assistant/health-assistant/internal/platform/captcha"
	"github.com/health-assistant/health-assistant/internal/platform/db"
)

// ErrInvalidCredentials is returned for both unknown usernames and wrong
// passwords, so a caller cannot probe which usernames exist.
var ErrInvalidCredentials = errors.New("invalid username or password")

// CaptchaVerifier is the slice of the captcha service the identity flow
// needs: issue a challenge, check an answer.
type CaptchaVerifier interface {
	Generate() (*captcha.Result, error)
	Validate(id, answer string) error
}

type Service struct {
	users    UserRepository
	tokens   *auth.TokenManager
	captchas CaptchaVerifier
}

func NewService(users UserRepository, tokens *auth.TokenManager, captchas CaptchaVerifier) *Service {
	return &Service{users: users, tokens: tokens, captchas: captchas}
}

// Captcha issues a fresh challenge for the login and registration forms.
func (s *Service) Captcha() (*captcha.Result, error) {
	return s.captchas.Generate()
}

// Register creates a new account after the captcha checks out. The password
// is stored as a bcrypt hash.
func (s *Service) Register(ctx context.Context, username, password, nickname, captchaID, captchaCode string) (*User, error) {
	if len(username) < 3 || len(username) > 30 {
		return nil, fmt.Errorf("username must be 3-30 characters")
	}
	if len(password) < 6 || len(password) > 72 {
		return nil, fmt.Errorf("password must be 6-72 characters")
	}
	if err := s.captchas.Validate(captchaID, captchaCode); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if nickname == "" {
		nickname = username
	}
	u := &User{
		Username:     username,
		PasswordHash: string(hash),
		Nickname:     nickname,
		Role:         "user",
	}
	if err := s.users.Create(ctx, u); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, fmt.Errorf("username already taken")
		}
		return nil, err
	}
	return u, nil
}

// Login verifies the captcha and credentials and returns a signed token
// together with the account.
func (s *Service) Login(ctx context.Context, username, password, captchaID, captchaCode string) (string, *User, error) {
	if err := s.captchas.Validate(captchaID, captchaCode); err != nil {
		return "", nil, err
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return "", nil, fmt.Errorf("issue token: %w", err)
	}
	return token, u, nil
}

// Profile returns the account for an authenticated user id.
func (s *Service) Profile(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user not found")
	}
	return u, nil
}
