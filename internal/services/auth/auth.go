package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/receipt-ledger/internal/lib/apperr"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/password"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/sl"
	"github.com/magabrotheeeer/receipt-ledger/internal/models"
	"github.com/magabrotheeeer/receipt-ledger/internal/storage"
)

const (
	msgInvalidCredentials = "invalid username or password"
	maxUsernameLen        = 64
	maxPasswordBytes      = 72
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// RegisterUser атомарно создаёт пользователя и его первую сессию.
	RegisterUser(ctx context.Context, username, passwordHash, tokenDigest string) (int64, error)
	// GetUserByUsername возвращает пользователя по имени или storage.ErrNotFound.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// PasswordHasher хеширует и сверяет пароли.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
	CompareDummy(password string) error
}

// AuthService отвечает за регистрацию и вход. Токены выдаёт Registry.
type AuthService struct {
	users    UserRepository
	registry *Registry
	hasher   PasswordHasher
	log      *slog.Logger
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, registry *Registry, hasher PasswordHasher, log *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		registry: registry,
		hasher:   hasher,
		log:      log,
	}
}

// Signup регистрирует пользователя и возвращает его первый токен.
func (s *AuthService) Signup(ctx context.Context, username, rawPassword string) (string, error) {
	const op = "auth.Signup"
	if err := validateCredentials(username, rawPassword); err != nil {
		return "", err
	}

	hashed, err := s.hasher.Hash(rawPassword)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	tok, digest, err := s.registry.mint()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.users.RegisterUser(ctx, username, hashed, digest)
	if errors.Is(err, storage.ErrUserExists) {
		return "", apperr.Conflict("username already taken")
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered", sl.UserID(id))
	return tok, nil
}

// Login проверяет пароль и выдаёт новый токен. Неизвестный пользователь и
// неверный пароль неразличимы для вызывающего.
func (s *AuthService) Login(ctx context.Context, username, rawPassword string) (string, error) {
	const op = "auth.Login"
	if username == "" || rawPassword == "" {
		return "", apperr.Auth(msgInvalidCredentials)
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		_ = s.hasher.CompareDummy(rawPassword)
		s.log.Debug("login for unknown user")
		return "", apperr.Auth(msgInvalidCredentials)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	err = s.hasher.Compare(user.PasswordHash, rawPassword)
	if errors.Is(err, password.ErrMismatch) {
		s.log.Debug("login with wrong password", sl.UserID(user.ID))
		return "", apperr.Auth(msgInvalidCredentials)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	tok, err := s.registry.Issue(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user logged in", sl.UserID(user.ID))
	return tok, nil
}

// Resolve проверяет токен через Registry.
func (s *AuthService) Resolve(ctx context.Context, tok string) (int64, error) {
	return s.registry.Resolve(ctx, tok)
}

func validateCredentials(username, rawPassword string) error {
	switch {
	case strings.TrimSpace(username) == "":
		return apperr.Validation("username", "must not be empty")
	case len(username) > maxUsernameLen:
		return apperr.Validation("username", fmt.Sprintf("must be at most %d characters", maxUsernameLen))
	case rawPassword == "":
		return apperr.Validation("password", "must not be empty")
	case len(rawPassword) > maxPasswordBytes:
		return apperr.Validation("password", fmt.Sprintf("must be at most %d bytes", maxPasswordBytes))
	}
	return nil
}
