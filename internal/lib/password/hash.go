// Package password реализует хеширование и проверку паролей через bcrypt.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrMismatch — пароль не соответствует хэшу.
var ErrMismatch = errors.New("password does not match")

// Hasher хеширует пароли с заданной стоимостью bcrypt.
type Hasher struct {
	cost  int
	dummy []byte
}

// NewHasher создаёт Hasher. Стоимость вне допустимого диапазона заменяется на bcrypt.DefaultCost.
//
// Заранее вычисляется хэш-заглушка: CompareDummy тратит на неизвестного
// пользователя столько же времени, сколько Compare на известного.
func NewHasher(cost int) (*Hasher, error) {
	const op = "password.NewHasher"
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("receipt-ledger"), cost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Hasher{cost: cost, dummy: dummy}, nil
}

// Hash возвращает bcrypt-хэш пароля. Пароли длиннее 72 байт bcrypt не принимает.
func (h *Hasher) Hash(password string) (string, error) {
	const op = "password.Hash"
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// Compare сравнивает хэш с введённым паролем.
// Возвращает ErrMismatch, если пароль не подходит.
func (h *Hasher) Compare(hash, password string) error {
	const op = "password.Compare"
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrMismatch
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CompareDummy выполняет сравнение с хэшем-заглушкой и всегда возвращает ErrMismatch.
func (h *Hasher) CompareDummy(password string) error {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
	return ErrMismatch
}
