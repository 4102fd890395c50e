// Package cleanup — enforcer.go: авто-кик спящих участников.
// Раз в сутки находим участников без единого очка, появившихся давнее
// порога спячки, и выгоняем их из всех групп (бан + разбан = кик).
package cleanup

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"points-bot/internal/features/points"
	"points-bot/internal/gateway"
)

// EnforcerStore — операции хранилища, нужные авто-кику.
// Реализуется points.Repository.
type EnforcerStore interface {
	ListDormant(ctx context.Context, before time.Time) ([]*points.Member, error)
	RewriteChatID(ctx context.Context, oldChatID, newChatID int64) (int64, error)
	DeleteMember(ctx context.Context, userID int64) error
}

// EnforceStats — итоги одного прохода авто-кика.
type EnforceStats struct {
	Candidates int // найдено спящих кандидатов
	Kicked     int // выдано киков
	SkippedAdm int // пропущено групп, где кандидат — админ
	Deleted    int // удалено записей
}

func (s EnforceStats) String() string {
	return fmt.Sprintf("кандидатов %d, кикнуто %d, пропущено админов %d, удалено записей %d",
		s.Candidates, s.Kicked, s.SkippedAdm, s.Deleted)
}

// Enforcer выгоняет давно спящих участников без очков.
type Enforcer struct {
	store EnforcerStore
	gw    gateway.Gateway
	// Порог спячки: кандидат — запись старше threshold с нулём очков
	threshold time.Duration
}

// NewEnforcer создаёт авто-кик.
func NewEnforcer(store EnforcerStore, gw gateway.Gateway, threshold time.Duration) *Enforcer {
	return &Enforcer{store: store, gw: gw, threshold: threshold}
}

// Sweep выполняет один проход авто-кика.
//
// Для каждого кандидата, для каждой его группы:
//   - смотрим роль: админов и владельцев не трогаем никогда;
//   - уже вышедших не кикаем (их уберёт сверка членства);
//   - остальным — бан и сразу разбан: Telegram понимает это как
//     одноразовый кик, а не вечный бан. Одна попытка на группу за проход.
//
// Запись кандидата удаляем целиком, но только если хоть один кик был
// реально выдан (или групп не было вовсе). Кандидат, у которого все
// группы пропущены, останется и будет пересмотрен в следующем цикле.
func (e *Enforcer) Sweep(ctx context.Context) (EnforceStats, error) {
	var stats EnforceStats

	cutoff := time.Now().UTC().Add(-e.threshold)
	candidates, err := e.store.ListDormant(ctx, cutoff)
	if err != nil {
		return stats, fmt.Errorf("авто-кик: %w", err)
	}
	stats.Candidates = len(candidates)

	for _, m := range candidates {
		attempted := 0

		for _, g := range m.Groups {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}

			status, err := e.gw.MembershipStatus(ctx, g.ChatID, m.UserID)
			if err != nil {
				e.repairOrSkip(ctx, err, g.ChatID, m.UserID)
				continue
			}

			if status.Privileged() {
				// Привилегированных не выгоняем
				log.WithFields(log.Fields{
					"user_id": m.UserID,
					"chat_id": g.ChatID,
					"status":  status,
				}).Info("Кандидат — админ группы, пропускаем")
				stats.SkippedAdm++
				continue
			}
			if status.Gone() {
				continue
			}

			attempted++
			if err := e.gw.RemoveMember(ctx, g.ChatID, m.UserID); err != nil {
				e.repairOrSkip(ctx, err, g.ChatID, m.UserID)
				continue
			}
			// Сразу снимаем бан — получился кик, а не вечный бан
			if err := e.gw.RestoreMember(ctx, g.ChatID, m.UserID); err != nil {
				log.WithError(err).WithFields(log.Fields{
					"user_id": m.UserID,
					"chat_id": g.ChatID,
				}).Warn("Кик выдан, но разбан не прошёл")
			}
			stats.Kicked++

			log.WithFields(log.Fields{
				"user_id": m.UserID,
				"chat_id": g.ChatID,
			}).Info("Спящий участник кикнут")
		}

		if len(m.Groups) == 0 || attempted > 0 {
			if err := e.store.DeleteMember(ctx, m.UserID); err != nil {
				log.WithError(err).WithField("user_id", m.UserID).Error("Не удалось удалить запись кандидата")
				continue
			}
			stats.Deleted++
		}
	}

	return stats, nil
}

// repairOrSkip чинит миграцию группы, остальные ошибки только логирует.
func (e *Enforcer) repairOrSkip(ctx context.Context, err error, chatID, userID int64) {
	if newID, ok := gateway.MigratedTo(err); ok {
		if _, rerr := e.store.RewriteChatID(ctx, chatID, newID); rerr != nil {
			log.WithError(rerr).WithField("chat_id", chatID).Error("Не удалось починить переехавшую группу")
			return
		}
		log.WithFields(log.Fields{
			"old_chat_id": chatID,
			"new_chat_id": newID,
		}).Info("Группа переехала, записи починены")
		return
	}

	if gateway.IsForbidden(err) {
		log.WithFields(log.Fields{
			"chat_id": chatID,
			"user_id": userID,
		}).Debug("Нет доступа, пропускаем")
		return
	}

	log.WithError(err).WithFields(log.Fields{
		"chat_id": chatID,
		"user_id": userID,
	}).Warn("Ошибка Telegram при авто-кике, пропускаем")
}
