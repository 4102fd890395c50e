package cleanup

import (
	"context"
	"fmt"
	"time"

	"points-bot/internal/common"
	"points-bot/internal/features/points"
	"points-bot/internal/gateway"
)

type pair struct {
	chatID int64
	userID int64
}

// fakeGateway — сценарный Telegram: статусы и ошибки задаются заранее,
// кики записываются.
type fakeGateway struct {
	status    map[pair]gateway.Status
	statusErr map[pair]error
	removeErr map[pair]error

	removed  []pair
	restored []pair
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		status:    make(map[pair]gateway.Status),
		statusErr: make(map[pair]error),
		removeErr: make(map[pair]error),
	}
}

func (g *fakeGateway) MembershipStatus(_ context.Context, chatID, userID int64) (gateway.Status, error) {
	p := pair{chatID, userID}
	if err, ok := g.statusErr[p]; ok {
		return "", err
	}
	if st, ok := g.status[p]; ok {
		return st, nil
	}
	return "", &gateway.Error{Kind: gateway.KindOther, Op: "MembershipStatus", Err: fmt.Errorf("нет сценария для %+v", p)}
}

func (g *fakeGateway) RemoveMember(_ context.Context, chatID, userID int64) error {
	p := pair{chatID, userID}
	g.removed = append(g.removed, p)
	if err, ok := g.removeErr[p]; ok {
		return err
	}
	return nil
}

func (g *fakeGateway) RestoreMember(_ context.Context, chatID, userID int64) error {
	g.restored = append(g.restored, pair{chatID, userID})
	return nil
}

func (g *fakeGateway) ListAdministrators(_ context.Context, chatID int64) ([]int64, error) {
	return nil, nil
}

// fakeStore — хранилище в памяти с семантикой репозитория:
// RemoveGroup вычитает очки группы из общего счёта, RewriteChatID
// правит первый совпавший элемент массива в каждой записи.
type fakeStore struct {
	members map[int64]*points.Member
	order   []int64
}

func newFakeStore(members ...*points.Member) *fakeStore {
	s := &fakeStore{members: make(map[int64]*points.Member)}
	for _, m := range members {
		cp := *m
		cp.Groups = append([]points.GroupMembership(nil), m.Groups...)
		s.members[m.UserID] = &cp
		s.order = append(s.order, m.UserID)
	}
	return s
}

func (s *fakeStore) ListMembers(_ context.Context) ([]*points.Member, error) {
	var out []*points.Member
	for _, id := range s.order {
		m, ok := s.members[id]
		if !ok {
			continue
		}
		cp := *m
		cp.Groups = append([]points.GroupMembership(nil), m.Groups...)
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeStore) ListDormant(_ context.Context, before time.Time) ([]*points.Member, error) {
	var out []*points.Member
	for _, id := range s.order {
		m, ok := s.members[id]
		if !ok || m.Total != 0 || m.CreatedAt.After(before) {
			continue
		}
		cp := *m
		cp.Groups = append([]points.GroupMembership(nil), m.Groups...)
		out = append(out, &cp)
	}
	return out, nil
}

func (s *fakeStore) RemoveGroup(_ context.Context, userID, chatID, groupPoints int64) error {
	m, ok := s.members[userID]
	if !ok {
		return fmt.Errorf("user_id=%d: %w", userID, common.ErrStaleRecord)
	}
	for i, g := range m.Groups {
		if g.ChatID == chatID {
			// Как $elemMatch в боевом репозитории: очки должны совпасть со снимком
			if g.Points != groupPoints {
				return fmt.Errorf("user_id=%d, chat_id=%d: %w", userID, chatID, common.ErrStaleRecord)
			}
			m.Groups = append(m.Groups[:i], m.Groups[i+1:]...)
			m.Total -= groupPoints
			return nil
		}
	}
	return fmt.Errorf("user_id=%d, chat_id=%d: %w", userID, chatID, common.ErrStaleRecord)
}

func (s *fakeStore) RewriteChatID(_ context.Context, oldChatID, newChatID int64) (int64, error) {
	var changed int64
	for _, m := range s.members {
		for i := range m.Groups {
			if m.Groups[i].ChatID == oldChatID {
				m.Groups[i].ChatID = newChatID
				changed++
				break
			}
		}
	}
	return changed, nil
}

func (s *fakeStore) DeleteOrphans(_ context.Context, before time.Time) (int64, error) {
	var deleted int64
	for id, m := range s.members {
		if m.Total == 0 && len(m.Groups) == 0 && !m.CreatedAt.After(before) {
			delete(s.members, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *fakeStore) DeleteMember(_ context.Context, userID int64) error {
	delete(s.members, userID)
	return nil
}

// member — конструктор записи для тестов.
func member(userID int64, total int64, createdAt time.Time, groups ...points.GroupMembership) *points.Member {
	return &points.Member{
		UserID:    userID,
		FirstName: fmt.Sprintf("user%d", userID),
		Groups:    groups,
		Total:     total,
		CreatedAt: createdAt,
	}
}

func group(chatID, pts int64) points.GroupMembership {
	return points.GroupMembership{
		ChatID:        chatID,
		Title:         fmt.Sprintf("chat%d", chatID),
		JoinedAt:      time.Now().UTC().Add(-time.Hour),
		Points:        pts,
		LastMessageAt: time.Now().UTC().Add(-time.Hour),
	}
}
