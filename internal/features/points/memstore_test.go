package points

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"points-bot/internal/common"
)

// memStore — хранилище в памяти для тестов сервиса.
// Повторяет контракт Store: изменение очков группы и общего счёта —
// один шаг под общим замком.
type memStore struct {
	mu      sync.Mutex
	members map[int64]*Member
	order   []int64 // порядок появления, для стабильной сортировки
}

func newMemStore() *memStore {
	return &memStore{members: make(map[int64]*Member)}
}

func (s *memStore) FindByUserID(_ context.Context, userID int64) (*Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[userID]
	if !ok {
		return nil, fmt.Errorf("user_id=%d: %w", userID, common.ErrMemberNotFound)
	}
	cp := *m
	cp.Groups = append([]GroupMembership(nil), m.Groups...)
	return &cp, nil
}

func (s *memStore) Insert(_ context.Context, m *Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.members[m.UserID]; ok {
		return fmt.Errorf("user_id=%d: %w", m.UserID, common.ErrMemberExists)
	}
	cp := *m
	cp.Groups = append([]GroupMembership(nil), m.Groups...)
	s.members[m.UserID] = &cp
	s.order = append(s.order, m.UserID)
	return nil
}

func (s *memStore) SetProfile(_ context.Context, userID int64, username, firstName, lastName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[userID]
	if !ok {
		return common.ErrMemberNotFound
	}
	m.Username = username
	m.FirstName = firstName
	m.LastName = lastName
	return nil
}

func (s *memStore) IncGroupPoints(_ context.Context, userID, chatID, delta int64, title string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[userID]
	if !ok {
		return common.ErrMemberNotFound
	}
	g := m.Group(chatID)
	if g == nil {
		return common.ErrMemberNotFound
	}
	g.Points += delta
	g.LastMessageAt = now
	g.Title = title
	m.Total += delta
	return nil
}

func (s *memStore) PushGroup(_ context.Context, userID int64, g GroupMembership, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.members[userID]
	if !ok {
		return common.ErrMemberNotFound
	}
	// Как фильтр $ne в боевом репозитории: вторую запись с тем же chat_id не пускаем
	if m.Group(g.ChatID) != nil {
		return fmt.Errorf("user_id=%d, chat_id=%d: %w", userID, g.ChatID, common.ErrMemberNotFound)
	}
	m.Groups = append(m.Groups, g)
	m.Total += delta
	return nil
}

func (s *memStore) TopByPoints(_ context.Context, limit int64) ([]*Member, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Member
	for _, id := range s.order {
		m := s.members[id]
		if len(m.Groups) == 0 {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total > out[j].Total
	})
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// get достаёт запись напрямую, минуя копии — для проверок в тестах.
func (s *memStore) get(userID int64) *Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[userID]
}
