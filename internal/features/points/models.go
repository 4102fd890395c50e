// Package points управляет глобальным учётом очков участников по всем группам.
// models.go описывает документы коллекции members.
package points

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Member — глобальная запись участника (один документ на user_id).
// Очки по группам лежат внутри, в массиве groups; total_points
// всегда равен сумме points по всем группам.
type Member struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    int64              `bson:"user_id"`            // Telegram user ID (уникальный)
	Username  string             `bson:"username,omitempty"` // @username (может быть пустым)
	FirstName string             `bson:"first_name"`
	LastName  string             `bson:"last_name,omitempty"`
	Groups    []GroupMembership  `bson:"groups"`       // по одной записи на группу
	Total     int64              `bson:"total_points"` // сумма очков по всем группам
	CreatedAt time.Time          `bson:"created_at"`   // первое появление, не меняется
}

// GroupMembership — очки и активность участника в одной группе.
// chat_id уникален внутри массива groups.
type GroupMembership struct {
	ChatID        int64     `bson:"chat_id"`
	Title         string    `bson:"title"` // последнее виденное название группы
	JoinedAt      time.Time `bson:"joined_at"`
	Points        int64     `bson:"points"` // групповой подытог, при вставке не ниже нуля
	LastMessageAt time.Time `bson:"last_message_at"`
}

// Group возвращает запись о группе с данным chat_id или nil.
func (m *Member) Group(chatID int64) *GroupMembership {
	for i := range m.Groups {
		if m.Groups[i].ChatID == chatID {
			return &m.Groups[i]
		}
	}
	return nil
}

// DisplayName возвращает отображаемое имя участника.
// Если есть @username — возвращает его, иначе — имя + фамилию.
func (m *Member) DisplayName() string {
	if m.Username != "" {
		return "@" + m.Username
	}
	name := m.FirstName
	if m.LastName != "" {
		name += " " + m.LastName
	}
	return name
}
