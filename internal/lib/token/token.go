// Package token реализует генерацию непрозрачных токенов сессии.
//
// Токен — 32 криптографически случайных байта в hex-кодировке. Клиенту он
// ничего не сообщает; в хранилище сохраняется только его SHA-256 дайджест.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Size — количество случайных байт в токене.
const Size = 32

// Generate создаёт новый токен из crypto/rand.
func Generate() (string, error) {
	return generate(rand.Reader)
}

func generate(r io.Reader) (string, error) {
	const op = "token.Generate"
	buf := make([]byte, Size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return hex.EncodeToString(buf), nil
}

// Digest возвращает дайджест токена, под которым он хранится.
func Digest(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

// WellFormed сообщает, может ли строка быть выданным токеном.
func WellFormed(tok string) bool {
	if len(tok) != Size*2 {
		return false
	}
	_, err := hex.DecodeString(tok)
	return err == nil
}
