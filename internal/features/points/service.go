// Package points — service.go содержит бизнес-логику учёта очков.
// Сервис держит инвариант total_points == сумме очков по группам:
// каждое изменение очков группы и общего счёта — одно атомарное
// обновление документа в хранилище.
package points

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"points-bot/internal/common"
)

// UserInfo — данные пользователя из события Telegram.
// Берём только то, что нужно учёту; валидируется на границе.
type UserInfo struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// ChatInfo — данные группы из события Telegram.
type ChatInfo struct {
	ID    int64
	Title string
}

// Service управляет очками участников.
type Service struct {
	store Store
	// Активность этого псевдоаккаунта (анонимные админы) не учитываем.
	excludedUsername string
}

// NewService создаёт сервис очков.
func NewService(store Store, excludedUsername string) *Service {
	return &Service{store: store, excludedUsername: excludedUsername}
}

// RecordActivity применяет дельту очков к паре (участник, группа).
// delta == 0 — обычное сообщение: только обновляем last_message_at.
//
// Новый участник → новая запись с одной группой (points не ниже нуля).
// Знакомый участник, знакомая группа → атомарный $inc очков группы и
// общего счёта. Знакомый участник, новая группа → $push группы + $inc
// общего счёта.
func (s *Service) RecordActivity(ctx context.Context, user UserInfo, chat ChatInfo, delta int64) error {
	if s.excludedUsername != "" && user.Username == s.excludedUsername {
		// Служебный аккаунт: молча выходим, записи не создаём
		return nil
	}

	now := time.Now().UTC()

	if _, err := s.store.FindByUserID(ctx, user.ID); err != nil {
		if !errors.Is(err, common.ErrMemberNotFound) {
			return fmt.Errorf("ошибка поиска участника: %w", err)
		}

		member := &Member{
			UserID:    user.ID,
			Username:  user.Username,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			Groups:    []GroupMembership{newGroup(chat, delta, now)},
			Total:     delta,
			CreatedAt: now,
		}
		err = s.store.Insert(ctx, member)
		if err == nil {
			log.WithFields(log.Fields{
				"user_id": user.ID,
				"chat_id": chat.ID,
			}).Info("Новый участник зарегистрирован")
			return nil
		}
		if !errors.Is(err, common.ErrMemberExists) {
			return fmt.Errorf("ошибка регистрации участника: %w", err)
		}
		// Гонка: параллельное событие создало запись первым.
		// Дельту не теряем — применяем её к готовой записи.
	}

	return s.applyToExisting(ctx, user, chat, delta, now)
}

// applyToExisting применяет дельту к существующей записи.
// Порядок устойчив к гонкам параллельных апдейтов: сначала $inc по
// знакомой группе; если группы нет — охраняемый $push; если и он не
// прошёл (группу успело добавить параллельное событие) — снова $inc.
func (s *Service) applyToExisting(ctx context.Context, user UserInfo, chat ChatInfo, delta int64, now time.Time) error {
	// Имя и username могли смениться — обновляем на каждом событии
	if err := s.store.SetProfile(ctx, user.ID, user.Username, user.FirstName, user.LastName); err != nil {
		return fmt.Errorf("ошибка обновления профиля: %w", err)
	}

	err := s.store.IncGroupPoints(ctx, user.ID, chat.ID, delta, chatTitle(chat), now)
	if err == nil {
		return nil
	}
	if !errors.Is(err, common.ErrMemberNotFound) {
		return fmt.Errorf("ошибка начисления очков: %w", err)
	}

	err = s.store.PushGroup(ctx, user.ID, newGroup(chat, delta, now), delta)
	if err == nil {
		log.WithFields(log.Fields{
			"user_id": user.ID,
			"chat_id": chat.ID,
		}).Debug("Участник замечен в новой группе")
		return nil
	}
	if !errors.Is(err, common.ErrMemberNotFound) {
		return fmt.Errorf("ошибка добавления группы: %w", err)
	}

	if err := s.store.IncGroupPoints(ctx, user.ID, chat.ID, delta, chatTitle(chat), now); err != nil {
		return fmt.Errorf("ошибка начисления очков: %w", err)
	}
	return nil
}

// GrantPoints начисляет amount очков (команда модератора) и возвращает
// новый общий счёт участника. Права вызывающего проверяет обработчик.
func (s *Service) GrantPoints(ctx context.Context, user UserInfo, chat ChatInfo, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, common.ErrInvalidAmount
	}
	if err := s.RecordActivity(ctx, user, chat, amount); err != nil {
		return 0, err
	}
	return s.GetTotal(ctx, user.ID), nil
}

// GetTotal возвращает общий счёт участника. Никогда не падает:
// нет записи или база недоступна — возвращаем 0.
func (s *Service) GetTotal(ctx context.Context, userID int64) int64 {
	m, err := s.store.FindByUserID(ctx, userID)
	if err != nil {
		if !errors.Is(err, common.ErrMemberNotFound) {
			log.WithError(err).WithField("user_id", userID).Error("Ошибка чтения счёта")
		}
		return 0
	}
	return m.Total
}

// ListRanked возвращает рейтинг участников по общему счёту, не больше limit.
func (s *Service) ListRanked(ctx context.Context, limit int64) ([]*Member, error) {
	return s.store.TopByPoints(ctx, limit)
}

func newGroup(chat ChatInfo, delta int64, now time.Time) GroupMembership {
	points := delta
	if points < 0 {
		points = 0
	}
	return GroupMembership{
		ChatID:        chat.ID,
		Title:         chatTitle(chat),
		JoinedAt:      now,
		Points:        points,
		LastMessageAt: now,
	}
}

func chatTitle(chat ChatInfo) string {
	if chat.Title == "" {
		return "Без названия"
	}
	return chat.Title
}
