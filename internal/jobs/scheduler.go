// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает расписание: сверка членства, авто-кик
// спящих и уборка пустых записей.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"points-bot/internal/config"
	"points-bot/internal/features/cleanup"
)

// Scheduler управляет фоновыми чистками.
// Обе большие чистки независимы: запускаются один раз при старте
// и живут до остановки процесса.
type Scheduler struct {
	cron       *cron.Cron
	reconciler *cleanup.Reconciler
	enforcer   *cleanup.Enforcer
	janitor    *cleanup.Janitor
	cfg        *config.Config
	// Отправка итогов чисток в LOG_CHAT_ID (nil — отключено)
	notify func(text string)
}

// NewScheduler создаёт планировщик чисток.
func NewScheduler(
	cfg *config.Config,
	reconciler *cleanup.Reconciler,
	enforcer *cleanup.Enforcer,
	janitor *cleanup.Janitor,
	notify func(text string),
) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		reconciler: reconciler,
		enforcer:   enforcer,
		janitor:    janitor,
		cfg:        cfg,
		notify:     notify,
	}
}

// Start запускает все фоновые задачи.
// Расписание — @every с интервалами из конфига; первая пара чисток
// выполняется отдельно после паузы прогрева, не дожидаясь интервала.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.ReconcileInterval), func() {
		s.runReconcile(ctx)
	})
	s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.EnforceInterval), func() {
		s.runEnforce(ctx)
	})
	s.cron.AddFunc(fmt.Sprintf("@every %s", s.cfg.JanitorInterval), func() {
		if _, err := s.janitor.Sweep(ctx); err != nil {
			log.WithError(err).Error("[CRON] Ошибка уборки")
		}
	})

	s.cron.Start()

	// Первый проход — после паузы прогрева. Ждём отменяемо:
	// на shutdown просто выходим, не дожидаясь.
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.SweepStartDelay):
		}
		s.runReconcile(ctx)
		s.runEnforce(ctx)
	}()

	log.WithFields(log.Fields{
		"reconcile": s.cfg.ReconcileInterval.String(),
		"enforce":   s.cfg.EnforceInterval.String(),
		"janitor":   s.cfg.JanitorInterval.String(),
	}).Info("Планировщик чисток запущен")
}

// Stop останавливает планировщик, дожидаясь текущих задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик чисток остановлен")
}

func (s *Scheduler) runReconcile(ctx context.Context) {
	log.Info("[CRON] Сверка членства...")
	stats, err := s.reconciler.Sweep(ctx)
	if err != nil {
		// Не падаем: фоновые чистки повторятся в следующем цикле
		log.WithError(err).Error("[CRON] Ошибка сверки членства")
		return
	}
	log.Infof("[CRON] Сверка членства: %s", stats)
	s.report("🧹 Сверка членства: " + stats.String())
}

func (s *Scheduler) runEnforce(ctx context.Context) {
	log.Info("[CRON] Авто-кик спящих...")
	stats, err := s.enforcer.Sweep(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка авто-кика")
		return
	}
	log.Infof("[CRON] Авто-кик: %s", stats)
	s.report("🔍 Авто-кик: " + stats.String())
}

func (s *Scheduler) report(text string) {
	if s.notify != nil {
		s.notify(text)
	}
}
