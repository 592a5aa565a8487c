// Package models содержит доменную модель пользователя системы,
// включающую данные учётной записи и хэш пароля.
// Структура используется в бизнес‑логике и при работе с хранилищем.
package models

import "time"

// User представляет зарегистрированного пользователя системы.
// После регистрации запись не изменяется.
type User struct {
	ID           int64     // Уникальный идентификатор пользователя
	Username     string    // Имя пользователя (уникальное, с учётом регистра)
	PasswordHash string    // bcrypt-хэш пароля
	CreatedAt    time.Time // Дата регистрации
}
