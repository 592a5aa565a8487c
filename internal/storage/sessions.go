package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/receipt-ledger/internal/models"
)

// SaveSession сохраняет дайджест выданного токена.
func (s *Storage) SaveSession(ctx context.Context, session models.Session) error {
	const op = "storage.SaveSession"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO sessions (token_digest, user_id, issued_at) VALUES ($1, $2, $3)`,
		session.TokenDigest, session.UserID, session.IssuedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetSessionUserID возвращает владельца сессии по дайджесту токена.
// Возвращает ErrNotFound, если такой сессии нет.
func (s *Storage) GetSessionUserID(ctx context.Context, tokenDigest string) (int64, error) {
	const op = "storage.GetSessionUserID"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var userID int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT s.user_id
		 FROM sessions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.token_digest = $1`, tokenDigest).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return userID, nil
}
