// Package points — store.go описывает операции хранилища,
// нужные сервису очков. Боевая реализация — Repository (MongoDB),
// в тестах подставляется хранилище в памяти.
package points

import (
	"context"
	"time"
)

// Store — операции над коллекцией members, которые использует Service.
//
// Ключевое требование: IncGroupPoints, PushGroup и RemoveGroup меняют
// элемент массива groups И total_points одним атомарным обновлением
// документа. Два отдельных шага здесь = потерянные обновления, когда
// один участник активен сразу в двух группах.
type Store interface {
	// FindByUserID возвращает запись участника.
	// Если записи нет — ошибка с common.ErrMemberNotFound.
	FindByUserID(ctx context.Context, userID int64) (*Member, error)

	// Insert создаёт новую запись участника. Если запись уже есть
	// (параллельное событие вставило первым) — common.ErrMemberExists.
	Insert(ctx context.Context, m *Member) error

	// SetProfile обновляет денормализованные поля профиля (username, имя).
	SetProfile(ctx context.Context, userID int64, username, firstName, lastName string) error

	// IncGroupPoints атомарно прибавляет delta к groups.$.points и к
	// total_points, обновляя last_message_at и название группы.
	IncGroupPoints(ctx context.Context, userID, chatID, delta int64, title string, now time.Time) error

	// PushGroup добавляет новую группу в массив groups и прибавляет
	// delta к total_points одним обновлением. Группа с тем же chat_id
	// никогда не вставляется второй раз: если она уже есть (или
	// участника нет) — common.ErrMemberNotFound, вызывающий повторяет
	// через IncGroupPoints.
	PushGroup(ctx context.Context, userID int64, g GroupMembership, delta int64) error

	// TopByPoints возвращает участников с хотя бы одной группой,
	// отсортированных по total_points по убыванию (при равенстве —
	// по порядку появления), не больше limit.
	TopByPoints(ctx context.Context, limit int64) ([]*Member, error)
}
