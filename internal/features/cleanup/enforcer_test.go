package cleanup

import (
	"context"
	"testing"
	"time"

	"points-bot/internal/gateway"
)

const dormancy = 180 * 24 * time.Hour

func TestEnforcer_KicksDormantMember(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore(
		member(201, 0, now.Add(-200*24*time.Hour), group(-1003, 0)),
	)
	gw := newFakeGateway()
	gw.status[pair{-1003, 201}] = gateway.StatusMember

	e := NewEnforcer(store, gw, dormancy)
	stats, err := e.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if stats.Kicked != 1 {
		t.Fatalf("ожидали 1 кик, получили %d", stats.Kicked)
	}
	// Кик = бан + немедленный разбан, ровно по одному разу
	if len(gw.removed) != 1 || gw.removed[0] != (pair{-1003, 201}) {
		t.Fatalf("ожидали один бан в -1003, получили %+v", gw.removed)
	}
	if len(gw.restored) != 1 || gw.restored[0] != (pair{-1003, 201}) {
		t.Fatalf("ожидали один разбан в -1003, получили %+v", gw.restored)
	}
	if _, ok := store.members[201]; ok {
		t.Fatal("запись кандидата должна быть удалена после кика")
	}
}

func TestEnforcer_NeverKicksPrivileged(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore(
		member(202, 0, now.Add(-200*24*time.Hour), group(-1004, 0)),
	)
	gw := newFakeGateway()
	gw.status[pair{-1004, 202}] = gateway.StatusAdministrator

	e := NewEnforcer(store, gw, dormancy)
	stats, err := e.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if len(gw.removed) != 0 {
		t.Fatalf("админа кикать нельзя, а было %+v", gw.removed)
	}
	if stats.SkippedAdm != 1 {
		t.Fatalf("ожидали 1 пропуск админа, получили %d", stats.SkippedAdm)
	}
	// Ни одной попытки кика не было — запись остаётся до следующего цикла
	if _, ok := store.members[202]; !ok {
		t.Fatal("запись админа не должна удаляться")
	}
}

func TestEnforcer_DeletesCandidateWithoutGroups(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore(
		member(203, 0, now.Add(-200*24*time.Hour)),
	)
	gw := newFakeGateway()

	e := NewEnforcer(store, gw, dormancy)
	if _, err := e.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	// Выгонять неоткуда — запись удаляется безусловно
	if _, ok := store.members[203]; ok {
		t.Fatal("кандидат без групп должен быть удалён")
	}
}

func TestEnforcer_IgnoresFreshAndScoredMembers(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore(
		member(204, 0, now.Add(-10*24*time.Hour), group(-1005, 0)), // свежий
		member(205, 7, now.Add(-400*24*time.Hour), group(-1005, 7)), // с очками
	)
	gw := newFakeGateway()

	e := NewEnforcer(store, gw, dormancy)
	stats, err := e.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if stats.Candidates != 0 {
		t.Fatalf("ожидали 0 кандидатов, получили %d", stats.Candidates)
	}
	if len(gw.removed) != 0 {
		t.Fatalf("никого не должны были кикать: %+v", gw.removed)
	}
}

func TestEnforcer_GoneMemberIsNotKicked(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore(
		member(206, 0, now.Add(-200*24*time.Hour), group(-1006, 0)),
	)
	gw := newFakeGateway()
	gw.status[pair{-1006, 206}] = gateway.StatusLeft

	e := NewEnforcer(store, gw, dormancy)
	if _, err := e.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if len(gw.removed) != 0 {
		t.Fatalf("ушедшего кикать не надо: %+v", gw.removed)
	}
	// Кик не выдавался — членство уберёт сверка, запись пока остаётся
	if _, ok := store.members[206]; !ok {
		t.Fatal("запись не должна удаляться без единой попытки кика")
	}
}

func TestEnforcer_FailedKickStillCountsAsAttempt(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore(
		member(207, 0, now.Add(-200*24*time.Hour), group(-1007, 0)),
	)
	gw := newFakeGateway()
	gw.status[pair{-1007, 207}] = gateway.StatusMember
	gw.removeErr[pair{-1007, 207}] = &gateway.Error{Kind: gateway.KindForbidden, Op: "RemoveMember"}

	e := NewEnforcer(store, gw, dormancy)
	stats, err := e.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	if stats.Kicked != 0 {
		t.Fatalf("кик не прошёл, Kicked должен быть 0, получили %d", stats.Kicked)
	}
	// Попытка была выдана — запись удаляется, как после обычного прохода
	if _, ok := store.members[207]; ok {
		t.Fatal("запись должна быть удалена после выданной попытки")
	}
}

func TestEnforcer_RepairsMigratedChat(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore(
		member(208, 0, now.Add(-200*24*time.Hour), group(-1008, 0)),
	)
	gw := newFakeGateway()
	gw.statusErr[pair{-1008, 208}] = &gateway.Error{
		Kind: gateway.KindMigrated, Op: "MembershipStatus", NewChatID: -2008,
	}

	e := NewEnforcer(store, gw, dormancy)
	if _, err := e.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep: %v", err)
	}

	// chat_id починен; кик отложен до следующего цикла, запись на месте
	m, ok := store.members[208]
	if !ok {
		t.Fatal("запись не должна удаляться при миграции")
	}
	if m.Groups[0].ChatID != -2008 {
		t.Fatalf("chat_id не переписан: %+v", m.Groups[0])
	}
	if len(gw.removed) != 0 {
		t.Fatalf("кик при миграции не выдаётся: %+v", gw.removed)
	}
}

func TestJanitor_DeletesOnlyStaleOrphans(t *testing.T) {
	now := time.Now().UTC()
	store := newFakeStore(
		member(301, 0, now.Add(-100*time.Hour)),
		member(302, 0, now.Add(-time.Hour)),
		member(303, 4, now.Add(-100*time.Hour), group(-1009, 4)),
	)

	j := NewJanitor(store, 72*time.Hour)
	deleted, err := j.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("ожидали 1 удаление, получили %d", deleted)
	}
	if _, ok := store.members[301]; ok {
		t.Fatal("старая пустая запись должна быть удалена")
	}
	if _, ok := store.members[302]; !ok {
		t.Fatal("свежая запись должна остаться")
	}
	if _, ok := store.members[303]; !ok {
		t.Fatal("запись с очками должна остаться")
	}
}
