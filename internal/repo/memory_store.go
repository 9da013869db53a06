// Package repo implements the data persistence layer for domain entities.
// This file provides an in-process store with the same contract as
// GormStore, used for STORE_DRIVER=memory and for fast tests.
package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-loyalty-backend/internal/domain"
)

// memTxKey marks a context whose goroutine already holds the store lock.
type memTxKey struct{}

// memTx collects undo steps for a running InTx call.
type memTx struct {
	store *MemoryStore
	undo  []func()
}

func (tx *memTx) record(fn func()) {
	if tx != nil {
		tx.undo = append(tx.undo, fn)
	}
}

type userDay struct {
	userID uint64
	day    string
}

type userMilestone struct {
	userID    uint64
	milestone int64
}

// MemoryStore keeps all state in maps guarded by a single mutex. InTx holds
// the mutex for the whole callback, so transactions are fully serialized
// and a failed callback is rolled back from the undo log.
//
// Uniqueness mirrors the relational indexes: one user per ExternalID, one
// visit per (user, day), one bonus per (user, milestone).
type MemoryStore struct {
	mu sync.Mutex

	now func() time.Time

	users      map[uint64]domain.User
	byExternal map[string]uint64
	visits     []domain.Visit
	visitDays  map[userDay]struct{}
	bonuses    []domain.Bonus
	bonusIdx   map[uint64]int
	milestones map[userMilestone]struct{}
	sessions   map[string]domain.AdminSession
	staff      map[uint64]domain.StaffMember

	nextUser, nextVisit, nextBonus, nextStaff uint64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:        func() time.Time { return time.Now().UTC() },
		users:      map[uint64]domain.User{},
		byExternal: map[string]uint64{},
		visitDays:  map[userDay]struct{}{},
		bonusIdx:   map[uint64]int{},
		milestones: map[userMilestone]struct{}{},
		sessions:   map[string]domain.AdminSession{},
		staff:      map[uint64]domain.StaffMember{},
	}
}

// acquire locks the store unless ctx already belongs to an InTx on it.
func (s *MemoryStore) acquire(ctx context.Context) (*memTx, func()) {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok && tx.store == s {
		return tx, func() {}
	}
	s.mu.Lock()
	return nil, s.mu.Unlock
}

// InTx runs fn with the store locked. If fn returns an error every write it
// made is undone.
func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(memTxKey{}).(*memTx); ok && tx.store == s {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

// ---- users ----

func (s *MemoryStore) CreateUser(ctx context.Context, u *domain.User) error {
	tx, unlock := s.acquire(ctx)
	defer unlock()

	if _, taken := s.byExternal[u.ExternalID]; taken {
		return ErrDuplicate
	}
	s.nextUser++
	u.ID = s.nextUser
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = *u
	s.byExternal[u.ExternalID] = u.ID

	id, ext := u.ID, u.ExternalID
	tx.record(func() {
		delete(s.users, id)
		delete(s.byExternal, ext)
	})
	return nil
}

func (s *MemoryStore) GetUser(ctx context.Context, id uint64) (*domain.User, error) {
	_, unlock := s.acquire(ctx)
	defer unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	_, unlock := s.acquire(ctx)
	defer unlock()

	id, ok := s.byExternal[externalID]
	if !ok {
		return nil, ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *MemoryStore) CountUsers(ctx context.Context) (int64, error) {
	_, unlock := s.acquire(ctx)
	defer unlock()
	return int64(len(s.users)), nil
}

// ListUserStats pages users newest first, matching ListUsersPage ordering.
func (s *MemoryStore) ListUserStats(ctx context.Context, offset, limit int) ([]domain.UserStats, error) {
	_, unlock := s.acquire(ctx)
	defer unlock()

	users := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return users[i].ID > users[j].ID
	})

	out := []domain.UserStats{}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(users) {
		return out, nil
	}
	end := len(users)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}

	for _, u := range users[offset:end] {
		st := domain.UserStats{User: u}
		for _, v := range s.visits {
			if v.UserID != u.ID {
				continue
			}
			st.VisitCount++
			if st.LastVisitAt == nil || v.OccurredAt.After(*st.LastVisitAt) {
				at := v.OccurredAt
				st.LastVisitAt = &at
			}
		}
		for _, b := range s.bonuses {
			if b.UserID == u.ID && !b.Used {
				st.UnusedBonus++
			}
		}
		out = append(out, st)
	}
	return out, nil
}

// ---- visits ----

func (s *MemoryStore) CreateVisit(ctx context.Context, v *domain.Visit) error {
	tx, unlock := s.acquire(ctx)
	defer unlock()

	if _, ok := s.users[v.UserID]; !ok {
		return ErrMissingParent
	}
	key := userDay{v.UserID, v.VisitDay}
	if _, dup := s.visitDays[key]; dup {
		return ErrDuplicate
	}
	s.nextVisit++
	v.ID = s.nextVisit
	s.visits = append(s.visits, *v)
	s.visitDays[key] = struct{}{}

	tx.record(func() {
		s.visits = s.visits[:len(s.visits)-1]
		delete(s.visitDays, key)
	})
	return nil
}

func (s *MemoryStore) CountVisits(ctx context.Context, userID uint64) (int64, error) {
	_, unlock := s.acquire(ctx)
	defer unlock()

	var n int64
	for _, v := range s.visits {
		if v.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListVisits(ctx context.Context, userID uint64) ([]domain.Visit, error) {
	_, unlock := s.acquire(ctx)
	defer unlock()

	out := []domain.Visit{}
	for _, v := range s.visits {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// ---- bonuses ----

func (s *MemoryStore) CreateBonus(ctx context.Context, b *domain.Bonus) error {
	tx, unlock := s.acquire(ctx)
	defer unlock()

	if _, ok := s.users[b.UserID]; !ok {
		return ErrMissingParent
	}
	key := userMilestone{b.UserID, b.Milestone}
	if _, dup := s.milestones[key]; dup {
		return ErrDuplicate
	}
	if b.Kind == "" {
		b.Kind = domain.BonusKindFreeVisit
	}
	b.Used = false
	b.UsedAt = nil
	s.nextBonus++
	b.ID = s.nextBonus
	s.bonusIdx[b.ID] = len(s.bonuses)
	s.bonuses = append(s.bonuses, *b)
	s.milestones[key] = struct{}{}

	id := b.ID
	tx.record(func() {
		s.bonuses = s.bonuses[:len(s.bonuses)-1]
		delete(s.bonusIdx, id)
		delete(s.milestones, key)
	})
	return nil
}

func (s *MemoryStore) CountUnusedBonuses(ctx context.Context, userID uint64) (int64, error) {
	_, unlock := s.acquire(ctx)
	defer unlock()

	var n int64
	for _, b := range s.bonuses {
		if b.UserID == userID && !b.Used {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListBonuses(ctx context.Context, userID uint64) ([]domain.Bonus, error) {
	_, unlock := s.acquire(ctx)
	defer unlock()

	out := []domain.Bonus{}
	for _, b := range s.bonuses {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EarnedAt.Equal(out[j].EarnedAt) {
			return out[i].EarnedAt.After(out[j].EarnedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// MarkBonusUsed performs the unused→used transition under the lock, so
// exactly one of any number of concurrent callers observes true.
func (s *MemoryStore) MarkBonusUsed(ctx context.Context, id uint64, at time.Time) (bool, error) {
	tx, unlock := s.acquire(ctx)
	defer unlock()

	i, ok := s.bonusIdx[id]
	if !ok || s.bonuses[i].Used {
		return false, nil
	}
	prev := s.bonuses[i]
	stamp := at
	s.bonuses[i].Used = true
	s.bonuses[i].UsedAt = &stamp

	tx.record(func() { s.bonuses[i] = prev })
	return true, nil
}

// ---- admin sessions ----

func (s *MemoryStore) CreateAdminSession(ctx context.Context, now time.Time, ttl time.Duration) (*domain.AdminSession, error) {
	tx, unlock := s.acquire(ctx)
	defer unlock()

	rec := domain.AdminSession{
		Token:     uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if _, dup := s.sessions[rec.Token]; dup {
		return nil, ErrDuplicate
	}
	s.sessions[rec.Token] = rec
	tx.record(func() { delete(s.sessions, rec.Token) })
	return &rec, nil
}

func (s *MemoryStore) GetAdminSession(ctx context.Context, token string, now time.Time) (*domain.AdminSession, error) {
	_, unlock := s.acquire(ctx)
	defer unlock()

	if strings.TrimSpace(token) == "" {
		return nil, ErrNotFound
	}
	rec, ok := s.sessions[token]
	if !ok || !rec.ExpiresAt.After(now) {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) DeleteAdminSession(ctx context.Context, token string) error {
	tx, unlock := s.acquire(ctx)
	defer unlock()

	rec, ok := s.sessions[token]
	if !ok {
		return ErrNotFound
	}
	delete(s.sessions, token)
	tx.record(func() { s.sessions[token] = rec })
	return nil
}

func (s *MemoryStore) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	tx, unlock := s.acquire(ctx)
	defer unlock()

	var n int64
	for token, rec := range s.sessions {
		if rec.ExpiresAt.After(now) {
			continue
		}
		delete(s.sessions, token)
		n++
		tx.record(func() { s.sessions[token] = rec })
	}
	return n, nil
}

// ---- staff ----

func (s *MemoryStore) CreateStaff(ctx context.Context, m *domain.StaffMember) error {
	tx, unlock := s.acquire(ctx)
	defer unlock()

	s.nextStaff++
	m.ID = s.nextStaff
	now := s.now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	s.staff[m.ID] = *m

	id := m.ID
	tx.record(func() { delete(s.staff, id) })
	return nil
}

func (s *MemoryStore) ListStaff(ctx context.Context, onShiftOnly bool) ([]domain.StaffMember, error) {
	_, unlock := s.acquire(ctx)
	defer unlock()

	out := []domain.StaffMember{}
	for _, m := range s.staff {
		if onShiftOnly && !m.OnShift {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) SetStaffOnShift(ctx context.Context, id uint64, onShift bool) (*domain.StaffMember, error) {
	tx, unlock := s.acquire(ctx)
	defer unlock()

	m, ok := s.staff[id]
	if !ok {
		return nil, ErrNotFound
	}
	prev := m
	m.OnShift = onShift
	m.UpdatedAt = s.now()
	s.staff[id] = m

	tx.record(func() { s.staff[id] = prev })
	return &m, nil
}

func (s *MemoryStore) DeleteStaff(ctx context.Context, id uint64) (*domain.StaffMember, error) {
	tx, unlock := s.acquire(ctx)
	defer unlock()

	m, ok := s.staff[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.staff, id)
	tx.record(func() { s.staff[id] = m })
	return &m, nil
}
