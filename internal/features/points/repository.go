// Package points — repository.go отвечает за все операции с коллекцией members в MongoDB.
// Каждая функция выполняет одну команду к базе и возвращает результат или ошибку.
package points

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"points-bot/internal/common"
)

// Repository — MongoDB-реализация хранилища участников.
// Реализует Store для сервиса очков и интерфейсы чисток из пакета cleanup.
type Repository struct {
	col *mongo.Collection
}

// NewRepository создаёт репозиторий поверх коллекции members.
func NewRepository(col *mongo.Collection) *Repository {
	return &Repository{col: col}
}

// EnsureIndexes создаёт индексы коллекции. Вызывается один раз при старте.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "groups.chat_id", Value: 1}},
		},
		// Для выборки спящих кандидатов и сортировки топа
		{
			Keys: bson.D{{Key: "total_points", Value: -1}, {Key: "created_at", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("ошибка создания индексов: %w", err)
	}
	return nil
}

// FindByUserID: если не найден — ошибка с common.ErrMemberNotFound.
func (r *Repository) FindByUserID(ctx context.Context, userID int64) (*Member, error) {
	var m Member
	err := r.col.FindOne(ctx, bson.M{"user_id": userID}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("user_id=%d: %w", userID, common.ErrMemberNotFound)
		}
		return nil, fmt.Errorf("ошибка чтения участника (user_id=%d): %w", userID, err)
	}
	return &m, nil
}

// Insert добавляет нового участника. Если параллельное событие успело
// создать запись первым, уникальный индекс по user_id вернёт дубликат —
// отдаём ErrMemberExists, чтобы вызывающий применил дельту к готовой записи.
func (r *Repository) Insert(ctx context.Context, m *Member) error {
	if _, err := r.col.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("user_id=%d: %w", m.UserID, common.ErrMemberExists)
		}
		return fmt.Errorf("ошибка создания участника (user_id=%d): %w", m.UserID, err)
	}
	return nil
}

// SetProfile обновляет денормализованные поля профиля.
func (r *Repository) SetProfile(ctx context.Context, userID int64, username, firstName, lastName string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{
			"username":   username,
			"first_name": firstName,
			"last_name":  lastName,
		}},
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления профиля (user_id=%d): %w", userID, err)
	}
	return nil
}

// IncGroupPoints прибавляет delta к очкам группы и к общему счёту
// одной командой. Позиционный $ находит нужный элемент массива.
func (r *Repository) IncGroupPoints(ctx context.Context, userID, chatID, delta int64, title string, now time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"user_id": userID, "groups.chat_id": chatID},
		bson.M{
			"$inc": bson.M{"groups.$.points": delta, "total_points": delta},
			"$set": bson.M{"groups.$.last_message_at": now, "groups.$.title": title},
		},
	)
	if err != nil {
		return fmt.Errorf("ошибка начисления очков (user_id=%d, chat_id=%d): %w", userID, chatID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user_id=%d, chat_id=%d: %w", userID, chatID, common.ErrMemberNotFound)
	}
	return nil
}

// PushGroup добавляет группу и прибавляет delta к общему счёту одной командой.
// Фильтр $ne не пускает вторую запись с тем же chat_id: два параллельных
// события в свежей группе оба видят её отсутствующей, но $push пройдёт
// только у одного. Когда фильтр не совпал (группу уже добавили или
// участника нет) — ErrMemberNotFound, вызывающий повторяет через $inc.
func (r *Repository) PushGroup(ctx context.Context, userID int64, g GroupMembership, delta int64) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"user_id":        userID,
			"groups.chat_id": bson.M{"$ne": g.ChatID},
		},
		bson.M{
			"$push": bson.M{"groups": g},
			"$inc":  bson.M{"total_points": delta},
		},
	)
	if err != nil {
		return fmt.Errorf("ошибка добавления группы (user_id=%d, chat_id=%d): %w", userID, g.ChatID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user_id=%d, chat_id=%d: %w", userID, g.ChatID, common.ErrMemberNotFound)
	}
	return nil
}

// TopByPoints возвращает рейтинг: только участники с группами,
// по убыванию total_points, при равенстве — кто раньше появился.
func (r *Repository) TopByPoints(ctx context.Context, limit int64) ([]*Member, error) {
	cur, err := r.col.Find(ctx,
		bson.M{"groups.0": bson.M{"$exists": true}},
		options.Find().
			SetSort(bson.D{{Key: "total_points", Value: -1}, {Key: "created_at", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса рейтинга: %w", err)
	}
	return decodeMembers(ctx, cur)
}

// ListMembers возвращает все записи участников (для сверки членства).
func (r *Repository) ListMembers(ctx context.Context) ([]*Member, error) {
	cur, err := r.col.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса участников: %w", err)
	}
	return decodeMembers(ctx, cur)
}

// ListDormant возвращает кандидатов на авто-кик: без очков и старше before.
func (r *Repository) ListDormant(ctx context.Context, before time.Time) ([]*Member, error) {
	cur, err := r.col.Find(ctx, bson.M{
		"total_points": 0,
		"created_at":   bson.M{"$lte": before},
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса спящих участников: %w", err)
	}
	return decodeMembers(ctx, cur)
}

// RemoveGroup удаляет группу из записи и вычитает её очки из общего
// счёта одной командой, чтобы инвариант суммы держался всегда.
// Фильтр $elemMatch сверяет очки группы со значением из снимка: если их
// успели изменить после чтения, вычитать points уже нельзя — возвращаем
// ErrStaleRecord, пара будет пересмотрена в следующем цикле.
func (r *Repository) RemoveGroup(ctx context.Context, userID, chatID, points int64) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{
			"user_id": userID,
			"groups":  bson.M{"$elemMatch": bson.M{"chat_id": chatID, "points": points}},
		},
		bson.M{
			"$pull": bson.M{"groups": bson.M{"chat_id": chatID}},
			"$inc":  bson.M{"total_points": -points},
		},
	)
	if err != nil {
		return fmt.Errorf("ошибка удаления группы (user_id=%d, chat_id=%d): %w", userID, chatID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("user_id=%d, chat_id=%d: %w", userID, chatID, common.ErrStaleRecord)
	}
	return nil
}

// RewriteChatID переписывает chat_id переехавшей группы во всех записях,
// не трогая накопленные очки. Возвращает число изменённых записей.
func (r *Repository) RewriteChatID(ctx context.Context, oldChatID, newChatID int64) (int64, error) {
	res, err := r.col.UpdateMany(ctx,
		bson.M{"groups.chat_id": oldChatID},
		bson.M{"$set": bson.M{"groups.$.chat_id": newChatID}},
	)
	if err != nil {
		return 0, fmt.Errorf("ошибка миграции группы (%d → %d): %w", oldChatID, newChatID, err)
	}
	return res.ModifiedCount, nil
}

// DeleteOrphans удаляет записи без групп и без очков, созданные до before.
// Свежие записи не трогаем — они могли появиться секунду назад.
func (r *Repository) DeleteOrphans(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{
		"total_points": 0,
		"groups":       bson.M{"$size": 0},
		"created_at":   bson.M{"$lte": before},
	})
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления пустых записей: %w", err)
	}
	return res.DeletedCount, nil
}

// DeleteMember удаляет запись участника целиком.
func (r *Repository) DeleteMember(ctx context.Context, userID int64) error {
	if _, err := r.col.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("ошибка удаления участника (user_id=%d): %w", userID, err)
	}
	return nil
}

func decodeMembers(ctx context.Context, cur *mongo.Cursor) ([]*Member, error) {
	defer cur.Close(ctx)

	var out []*Member
	for cur.Next(ctx) {
		var m Member
		if err := cur.Decode(&m); err != nil {
			return nil, fmt.Errorf("ошибка декодирования записи: %w", err)
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения курсора: %w", err)
	}
	return out, nil
}
