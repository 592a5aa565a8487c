// Package apperr описывает таксономию ошибок бизнес-логики.
//
// Каждая ошибка относится ровно к одному виду (Kind), поэтому граничный слой
// может сопоставить её с ответом через исчерпывающий switch, не разбирая текст.
package apperr

import "errors"

// Kind — вид ошибки.
type Kind int

const (
	// KindInternal — любая ошибка вне таксономии (хранилище, диск, брокер).
	KindInternal Kind = iota
	// KindValidation — некорректные или отсутствующие входные данные.
	KindValidation
	// KindConflict — имя пользователя уже занято.
	KindConflict
	// KindAuth — неверные учётные данные или нераспознанный токен.
	KindAuth
	// KindNotFound — нет данных за запрошенный период.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error — ошибка с видом и, для ошибок валидации, именем поля.
type Error struct {
	Kind  Kind
	Field string
	Msg   string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return e.Kind.String() + ": " + e.Field + ": " + e.Msg
	}
	return e.Kind.String() + ": " + e.Msg
}

// Validation возвращает ошибку валидации конкретного поля.
func Validation(field, msg string) error {
	return &Error{Kind: KindValidation, Field: field, Msg: msg}
}

// Conflict возвращает ошибку конфликта.
func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Msg: msg}
}

// Auth возвращает ошибку аутентификации.
func Auth(msg string) error {
	return &Error{Kind: KindAuth, Msg: msg}
}

// NotFound возвращает ошибку отсутствия данных.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Msg: msg}
}

// KindOf возвращает вид ошибки, в том числе обёрнутой через %w.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As извлекает *Error из цепочки.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
