// Package services содержит логику регистрации, входа и разрешения токенов сессии.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/receipt-ledger/internal/lib/apperr"
	"github.com/magabrotheeeer/receipt-ledger/internal/lib/token"
	"github.com/magabrotheeeer/receipt-ledger/internal/models"
	"github.com/magabrotheeeer/receipt-ledger/internal/storage"
)

// msgInvalidToken — единое сообщение для любого нераспознанного токена.
const msgInvalidToken = "invalid or missing token"

// SessionRepository хранит дайджесты выданных токенов.
type SessionRepository interface {
	// SaveSession сохраняет сессию.
	SaveSession(ctx context.Context, session models.Session) error
	// GetSessionUserID возвращает владельца сессии или storage.ErrNotFound.
	GetSessionUserID(ctx context.Context, tokenDigest string) (int64, error)
}

// Registry связывает непрозрачные токены с пользователями.
// Передаётся явно всем, кому нужна авторизация.
type Registry struct {
	sessions SessionRepository
	generate func() (string, error)
	now      func() time.Time
}

// NewRegistry создает реестр токенов поверх хранилища сессий.
func NewRegistry(sessions SessionRepository) *Registry {
	return &Registry{
		sessions: sessions,
		generate: token.Generate,
		now:      time.Now,
	}
}

// Issue выдаёт новый токен для userID.
func (r *Registry) Issue(ctx context.Context, userID int64) (string, error) {
	const op = "auth.Issue"
	tok, digest, err := r.mint()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	err = r.sessions.SaveSession(ctx, models.Session{
		TokenDigest: digest,
		UserID:      userID,
		IssuedAt:    r.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return tok, nil
}

// Resolve возвращает пользователя, которому выдан токен.
// Пустой, некорректный или неизвестный токен даёт ошибку вида Auth.
func (r *Registry) Resolve(ctx context.Context, tok string) (int64, error) {
	const op = "auth.Resolve"
	if !token.WellFormed(tok) {
		return 0, apperr.Auth(msgInvalidToken)
	}
	userID, err := r.sessions.GetSessionUserID(ctx, token.Digest(tok))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, apperr.Auth(msgInvalidToken)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return userID, nil
}

func (r *Registry) mint() (string, string, error) {
	tok, err := r.generate()
	if err != nil {
		return "", "", err
	}
	return tok, token.Digest(tok), nil
}
