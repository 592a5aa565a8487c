package models

import "time"

// Session связывает непрозрачный токен с пользователем.
// В хранилище попадает только дайджест токена, сам токен знает лишь клиент.
type Session struct {
	TokenDigest string
	UserID      int64
	IssuedAt    time.Time
}
