// Package gateway — граница с Telegram API для фоновых чисток.
// Здесь определён узкий интерфейс (запрос статуса, кик, список админов)
// и закрытая классификация ошибок, чтобы логика чисток ветвилась
// по понятным категориям, а не по строкам из API.
package gateway

import (
	"context"
	"errors"
	"fmt"
)

// Status — статус участника в группе, как его сообщает Telegram.
type Status string

const (
	StatusCreator       Status = "creator"
	StatusAdministrator Status = "administrator"
	StatusMember        Status = "member"
	StatusRestricted    Status = "restricted"
	StatusLeft          Status = "left"
	StatusKicked        Status = "kicked"
)

// Gone сообщает, что участника в группе больше нет.
func (s Status) Gone() bool {
	return s == StatusLeft || s == StatusKicked
}

// Privileged сообщает, что участник — админ или владелец группы.
// Таких не трогаем никогда.
func (s Status) Privileged() bool {
	return s == StatusCreator || s == StatusAdministrator
}

// Gateway — операции Telegram API, нужные боту поверх обычной отправки сообщений.
// За интерфейсом стоит telegramGateway; в тестах подставляется фейк.
type Gateway interface {
	// MembershipStatus возвращает статус пользователя в группе.
	MembershipStatus(ctx context.Context, chatID, userID int64) (Status, error)
	// RemoveMember банит пользователя в группе.
	RemoveMember(ctx context.Context, chatID, userID int64) error
	// RestoreMember снимает бан. Вызов сразу после RemoveMember
	// превращает бан в одноразовый кик.
	RestoreMember(ctx context.Context, chatID, userID int64) error
	// ListAdministrators возвращает user_id всех админов группы.
	ListAdministrators(ctx context.Context, chatID int64) ([]int64, error)
}

// Kind — категория ошибки Telegram API.
type Kind int

const (
	// KindTransient — сеть, rate limit, 5xx. Пропускаем до следующего цикла.
	KindTransient Kind = iota
	// KindForbidden — у бота нет доступа (выгнали из группы, юзер заблокировал).
	KindForbidden
	// KindMigrated — группа переехала на новый chat_id. Требует починки записей.
	KindMigrated
	// KindOther — всё остальное (кривой запрос и т.п.).
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindForbidden:
		return "forbidden"
	case KindMigrated:
		return "migrated"
	default:
		return "other"
	}
}

// Error — классифицированная ошибка вызова Telegram API.
type Error struct {
	Kind Kind
	Op   string
	// NewChatID заполнен только для KindMigrated.
	NewChatID int64
	Err       error
}

func (e *Error) Error() string {
	if e.Kind == KindMigrated {
		return fmt.Sprintf("gateway %s: %s → chat_id %d: %v", e.Op, e.Kind, e.NewChatID, e.Err)
	}
	return fmt.Sprintf("gateway %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsForbidden сообщает, что у бота нет доступа.
func IsForbidden(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindForbidden
}

// IsTransient сообщает, что ошибку имеет смысл пропустить до следующего цикла.
func IsTransient(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.Kind == KindTransient
}

// MigratedTo возвращает новый chat_id, если группа переехала.
func MigratedTo(err error) (int64, bool) {
	var ge *Error
	if errors.As(err, &ge) && ge.Kind == KindMigrated {
		return ge.NewChatID, true
	}
	return 0, false
}
