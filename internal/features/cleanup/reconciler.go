// Package cleanup содержит фоновые чистки: сверку членства (кто вышел
// из групп), авто-кик спящих участников без очков и уборку пустых записей.
// Все чистки идемпотентны: повторный проход без изменений в Telegram
// ничего не меняет в базе.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"points-bot/internal/common"
	"points-bot/internal/features/points"
	"points-bot/internal/gateway"
)

// ReconcilerStore — операции хранилища, нужные сверке членства.
// Реализуется points.Repository.
type ReconcilerStore interface {
	ListMembers(ctx context.Context) ([]*points.Member, error)
	// RemoveGroup удаляет группу и вычитает её очки из total_points
	// одним атомарным обновлением.
	RemoveGroup(ctx context.Context, userID, chatID, groupPoints int64) error
	RewriteChatID(ctx context.Context, oldChatID, newChatID int64) (int64, error)
	DeleteOrphans(ctx context.Context, before time.Time) (int64, error)
}

// ReconcileStats — итоги одного прохода сверки.
type ReconcileStats struct {
	Checked        int   // проверено пар (участник, группа)
	Removed        int   // удалено членств (участник вышел/кикнут)
	Migrated       int   // починено переехавших групп
	Skipped        int   // пропущено (ошибка Telegram или устаревший снимок)
	DeletedOrphans int64 // удалено пустых записей
}

func (s ReconcileStats) String() string {
	return fmt.Sprintf("проверено %d, удалено членств %d, мигрировано %d, пропущено %d, убрано пустых %d",
		s.Checked, s.Removed, s.Migrated, s.Skipped, s.DeletedOrphans)
}

// Reconciler сверяет записи в базе с реальным членством в группах.
type Reconciler struct {
	store ReconcilerStore
	gw    gateway.Gateway
	// Пустые записи моложе grace не удаляем
	grace time.Duration
}

// NewReconciler создаёт сверку членства.
func NewReconciler(store ReconcilerStore, gw gateway.Gateway, grace time.Duration) *Reconciler {
	return &Reconciler{store: store, gw: gw, grace: grace}
}

// Sweep выполняет один полный проход по всем записям.
//
// Для каждой пары (участник, группа) спрашиваем Telegram:
//   - вышел/кикнут → удаляем членство и вычитаем его очки из общего счёта;
//   - группа переехала → переписываем chat_id во всех записях, очки не трогаем;
//   - нет доступа → пропускаем (бота выгнали, починится после re-invite);
//   - временная ошибка → пропускаем, Telegram переспросим в следующем цикле.
//
// Ошибка на одной паре никогда не прерывает проход: уже применённые
// удаления остаются, остальные пары обрабатываются дальше.
func (r *Reconciler) Sweep(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats

	members, err := r.store.ListMembers(ctx)
	if err != nil {
		return stats, fmt.Errorf("сверка членства: %w", err)
	}

	for _, m := range members {
		for _, g := range m.Groups {
			if ctx.Err() != nil {
				// Остановка процесса: бросаем проход, откатывать нечего —
				// каждый шаг идемпотентен
				return stats, ctx.Err()
			}
			stats.Checked++

			status, err := r.gw.MembershipStatus(ctx, g.ChatID, m.UserID)
			if err != nil {
				r.handleGatewayError(ctx, err, g.ChatID, m.UserID, &stats)
				continue
			}

			if !status.Gone() {
				continue
			}

			if err := r.store.RemoveGroup(ctx, m.UserID, g.ChatID, g.Points); err != nil {
				if errors.Is(err, common.ErrStaleRecord) {
					// Очки успели измениться после снимка — вычитать
					// старое значение нельзя, пара подождёт следующего цикла
					log.WithFields(log.Fields{
						"user_id": m.UserID,
						"chat_id": g.ChatID,
					}).Debug("Запись изменилась после снимка, пропускаем")
					stats.Skipped++
					continue
				}
				log.WithError(err).WithFields(log.Fields{
					"user_id": m.UserID,
					"chat_id": g.ChatID,
				}).Error("Не удалось удалить членство")
				continue
			}
			stats.Removed++

			log.WithFields(log.Fields{
				"user_id": m.UserID,
				"chat_id": g.ChatID,
				"points":  g.Points,
			}).Info("Участник вышел из группы, членство удалено")
		}
	}

	// Записи без групп и очков убираем, но только отлежавшиеся:
	// свежая запись могла появиться прямо во время прохода
	deleted, err := r.store.DeleteOrphans(ctx, time.Now().UTC().Add(-r.grace))
	if err != nil {
		log.WithError(err).Error("Не удалось убрать пустые записи")
	} else {
		stats.DeletedOrphans = deleted
	}

	return stats, nil
}

// handleGatewayError разбирает классифицированную ошибку Telegram.
// Миграция — единственная ошибка, которую чиним записью в базу.
func (r *Reconciler) handleGatewayError(ctx context.Context, err error, chatID, userID int64, stats *ReconcileStats) {
	if newID, ok := gateway.MigratedTo(err); ok {
		changed, rerr := r.store.RewriteChatID(ctx, chatID, newID)
		if rerr != nil {
			log.WithError(rerr).WithField("chat_id", chatID).Error("Не удалось починить переехавшую группу")
			stats.Skipped++
			return
		}
		stats.Migrated++
		log.WithFields(log.Fields{
			"old_chat_id": chatID,
			"new_chat_id": newID,
			"records":     changed,
		}).Info("Группа переехала, записи починены")
		return
	}

	if gateway.IsForbidden(err) {
		// Ожидаемо: бота выгнали из группы или юзер его заблокировал
		log.WithFields(log.Fields{
			"chat_id": chatID,
			"user_id": userID,
		}).Debug("Нет доступа, пропускаем")
		stats.Skipped++
		return
	}

	log.WithError(err).WithFields(log.Fields{
		"chat_id": chatID,
		"user_id": userID,
	}).Warn("Ошибка Telegram, пара пропущена до следующего цикла")
	stats.Skipped++
}
