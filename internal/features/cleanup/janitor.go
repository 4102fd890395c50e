// Package cleanup — janitor.go: фоновая уборка осиротевших записей.
// Лёгкая задача, крутится чаще больших чисток: удаляет отлежавшиеся
// записи без групп и без очков, чтобы не ждать суточной сверки.
package cleanup

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// JanitorStore — единственная операция, нужная уборщику.
// Реализуется points.Repository.
type JanitorStore interface {
	DeleteOrphans(ctx context.Context, before time.Time) (int64, error)
}

// Janitor удаляет пустые записи, пережившие льготный период.
type Janitor struct {
	store JanitorStore
	grace time.Duration
}

// NewJanitor создаёт уборщик.
func NewJanitor(store JanitorStore, grace time.Duration) *Janitor {
	return &Janitor{store: store, grace: grace}
}

// Sweep выполняет одну уборку. Возвращает число удалённых записей.
func (j *Janitor) Sweep(ctx context.Context) (int64, error) {
	deleted, err := j.store.DeleteOrphans(ctx, time.Now().UTC().Add(-j.grace))
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.WithField("deleted", deleted).Info("Уборка: удалены пустые записи")
	}
	return deleted, nil
}
