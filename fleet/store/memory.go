// Package store provides the in-memory fleet.Store.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warp/fleetlog/fleet"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	state *memState
}

type memState struct {
	users     map[fleet.UserID]fleet.User
	mileage   map[fleet.EntryID]fleet.MileageEntry
	equipment map[fleet.EntryID]fleet.EquipmentEntry
	sessions  map[fleet.SessionID]fleet.Session
	audit     []fleet.AuditEntry
}

func newMemState() *memState {
	return &memState{
		users:     make(map[fleet.UserID]fleet.User),
		mileage:   make(map[fleet.EntryID]fleet.MileageEntry),
		equipment: make(map[fleet.EntryID]fleet.EquipmentEntry),
		sessions:  make(map[fleet.SessionID]fleet.Session),
	}
}

func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

var _ fleet.Store = (*Memory)(nil)

// =============================================================================
// USERS
// =============================================================================

func (m *Memory) SaveUser(_ context.Context, u fleet.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.saveUser(u)
}

func (m *Memory) GetUser(_ context.Context, id fleet.UserID) (*fleet.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getUser(id), nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*fleet.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getUserByEmail(email), nil
}

func (m *Memory) ListUsers(_ context.Context, role fleet.Role) ([]fleet.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listUsers(role), nil
}

func (m *Memory) DeleteUser(_ context.Context, id fleet.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteUser(id)
}

// =============================================================================
// ENTRIES
// =============================================================================

func (m *Memory) InsertMileage(_ context.Context, e fleet.MileageEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertMileage(e)
}

func (m *Memory) GetMileage(_ context.Context, id fleet.EntryID) (*fleet.MileageEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getMileage(id), nil
}

func (m *Memory) ListMileage(_ context.Context, riderID fleet.UserID) ([]fleet.MileageEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listMileage(riderID), nil
}

func (m *Memory) DeleteMileage(_ context.Context, id fleet.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteMileage(id)
}

func (m *Memory) InsertEquipment(_ context.Context, e fleet.EquipmentEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.insertEquipment(e)
}

func (m *Memory) GetEquipment(_ context.Context, id fleet.EntryID) (*fleet.EquipmentEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getEquipment(id), nil
}

func (m *Memory) ListEquipment(_ context.Context, riderID fleet.UserID) ([]fleet.EquipmentEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.listEquipment(riderID), nil
}

func (m *Memory) DeleteEquipment(_ context.Context, id fleet.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteEquipment(id)
}

// =============================================================================
// SESSIONS & AUDIT
// =============================================================================

func (m *Memory) SaveSession(_ context.Context, s fleet.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.sessions[s.ID] = s
	return nil
}

func (m *Memory) GetSession(_ context.Context, id fleet.SessionID) (*fleet.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.getSession(id), nil
}

func (m *Memory) DeleteSession(_ context.Context, id fleet.SessionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.state.sessions, id)
	return nil
}

func (m *Memory) DeleteExpiredSessions(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.deleteExpiredSessions(now), nil
}

func (m *Memory) AppendAudit(_ context.Context, entry fleet.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.audit = append(m.state.audit, entry)
	return nil
}

func (m *Memory) QueryAudit(_ context.Context, filter fleet.AuditFilter) ([]fleet.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.queryAudit(filter), nil
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = newMemState()
	return nil
}

func (m *Memory) Close() error { return nil }

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole of fn, so fn must only use the view
// it is given.
func (m *Memory) WithTx(_ context.Context, fn func(fleet.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.clone()
	if err := fn(&txView{state: m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// =============================================================================
// STATE - Unlocked operations shared by Memory and txView
// =============================================================================

func (s *memState) clone() *memState {
	c := newMemState()
	for k, u := range s.users {
		c.users[k] = copyUser(u)
	}
	for k, e := range s.mileage {
		c.mileage[k] = e
	}
	for k, e := range s.equipment {
		c.equipment[k] = e
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	c.audit = append([]fleet.AuditEntry(nil), s.audit...)
	return c
}

func copyUser(u fleet.User) fleet.User {
	if u.Rider != nil {
		p := *u.Rider
		u.Rider = &p
	}
	return u
}

func (s *memState) saveUser(u fleet.User) error {
	u.Email = fleet.NormalizeEmail(u.Email)
	for id, other := range s.users {
		if id != u.ID && other.Email == u.Email {
			return fleet.ErrDuplicateEmail
		}
	}
	if existing, ok := s.users[u.ID]; ok && !existing.CreatedAt.IsZero() {
		u.CreatedAt = existing.CreatedAt
	}
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *memState) getUser(id fleet.UserID) *fleet.User {
	u, ok := s.users[id]
	if !ok {
		return nil
	}
	c := copyUser(u)
	return &c
}

func (s *memState) getUserByEmail(email string) *fleet.User {
	email = fleet.NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			c := copyUser(u)
			return &c
		}
	}
	return nil
}

func (s *memState) listUsers(role fleet.Role) []fleet.User {
	out := make([]fleet.User, 0, len(s.users))
	for _, u := range s.users {
		if role == "" || u.Role == role {
			out = append(out, copyUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *memState) deleteUser(id fleet.UserID) error {
	if _, ok := s.users[id]; !ok {
		return fleet.ErrUserNotFound
	}
	delete(s.users, id)
	for sid, sess := range s.sessions {
		if sess.UserID == id {
			delete(s.sessions, sid)
		}
	}
	return nil
}

func (s *memState) insertMileage(e fleet.MileageEntry) error {
	if _, ok := s.mileage[e.ID]; ok {
		return fleet.ErrDuplicateEntry
	}
	s.mileage[e.ID] = e
	return nil
}

func (s *memState) getMileage(id fleet.EntryID) *fleet.MileageEntry {
	e, ok := s.mileage[id]
	if !ok {
		return nil
	}
	return &e
}

func (s *memState) listMileage(riderID fleet.UserID) []fleet.MileageEntry {
	out := make([]fleet.MileageEntry, 0, len(s.mileage))
	for _, e := range s.mileage {
		if riderID == "" || e.RiderID == riderID {
			out = append(out, e)
		}
	}
	fleet.SortNewestFirst(out)
	return out
}

func (s *memState) deleteMileage(id fleet.EntryID) error {
	if _, ok := s.mileage[id]; !ok {
		return fleet.ErrEntryNotFound
	}
	delete(s.mileage, id)
	return nil
}

func (s *memState) insertEquipment(e fleet.EquipmentEntry) error {
	if _, ok := s.equipment[e.ID]; ok {
		return fleet.ErrDuplicateEntry
	}
	s.equipment[e.ID] = e
	return nil
}

func (s *memState) getEquipment(id fleet.EntryID) *fleet.EquipmentEntry {
	e, ok := s.equipment[id]
	if !ok {
		return nil
	}
	return &e
}

func (s *memState) listEquipment(riderID fleet.UserID) []fleet.EquipmentEntry {
	out := make([]fleet.EquipmentEntry, 0, len(s.equipment))
	for _, e := range s.equipment {
		if riderID == "" || e.RiderID == riderID {
			out = append(out, e)
		}
	}
	fleet.SortNewestFirst(out)
	return out
}

func (s *memState) deleteEquipment(id fleet.EntryID) error {
	if _, ok := s.equipment[id]; !ok {
		return fleet.ErrEntryNotFound
	}
	delete(s.equipment, id)
	return nil
}

func (s *memState) getSession(id fleet.SessionID) *fleet.Session {
	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	return &sess
}

func (s *memState) deleteExpiredSessions(now time.Time) int {
	n := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *memState) queryAudit(filter fleet.AuditFilter) []fleet.AuditEntry {
	var out []fleet.AuditEntry
	for i := len(s.audit) - 1; i >= 0; i-- {
		if !filter.Matches(s.audit[i]) {
			continue
		}
		out = append(out, s.audit[i])
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// =============================================================================
// TRANSACTIONAL VIEW
// =============================================================================

// txView is the Store handed to WithTx callbacks. The parent's write lock is
// already held, so it touches state directly.
type txView struct {
	state *memState
}

var _ fleet.Store = (*txView)(nil)

func (tv *txView) SaveUser(_ context.Context, u fleet.User) error { return tv.state.saveUser(u) }

func (tv *txView) GetUser(_ context.Context, id fleet.UserID) (*fleet.User, error) {
	return tv.state.getUser(id), nil
}

func (tv *txView) GetUserByEmail(_ context.Context, email string) (*fleet.User, error) {
	return tv.state.getUserByEmail(email), nil
}

func (tv *txView) ListUsers(_ context.Context, role fleet.Role) ([]fleet.User, error) {
	return tv.state.listUsers(role), nil
}

func (tv *txView) DeleteUser(_ context.Context, id fleet.UserID) error { return tv.state.deleteUser(id) }

func (tv *txView) InsertMileage(_ context.Context, e fleet.MileageEntry) error {
	return tv.state.insertMileage(e)
}

func (tv *txView) GetMileage(_ context.Context, id fleet.EntryID) (*fleet.MileageEntry, error) {
	return tv.state.getMileage(id), nil
}

func (tv *txView) ListMileage(_ context.Context, riderID fleet.UserID) ([]fleet.MileageEntry, error) {
	return tv.state.listMileage(riderID), nil
}

func (tv *txView) DeleteMileage(_ context.Context, id fleet.EntryID) error {
	return tv.state.deleteMileage(id)
}

func (tv *txView) InsertEquipment(_ context.Context, e fleet.EquipmentEntry) error {
	return tv.state.insertEquipment(e)
}

func (tv *txView) GetEquipment(_ context.Context, id fleet.EntryID) (*fleet.EquipmentEntry, error) {
	return tv.state.getEquipment(id), nil
}

func (tv *txView) ListEquipment(_ context.Context, riderID fleet.UserID) ([]fleet.EquipmentEntry, error) {
	return tv.state.listEquipment(riderID), nil
}

func (tv *txView) DeleteEquipment(_ context.Context, id fleet.EntryID) error {
	return tv.state.deleteEquipment(id)
}

func (tv *txView) SaveSession(_ context.Context, s fleet.Session) error {
	tv.state.sessions[s.ID] = s
	return nil
}

func (tv *txView) GetSession(_ context.Context, id fleet.SessionID) (*fleet.Session, error) {
	return tv.state.getSession(id), nil
}

func (tv *txView) DeleteSession(_ context.Context, id fleet.SessionID) error {
	delete(tv.state.sessions, id)
	return nil
}

func (tv *txView) DeleteExpiredSessions(_ context.Context, now time.Time) (int, error) {
	return tv.state.deleteExpiredSessions(now), nil
}

func (tv *txView) AppendAudit(_ context.Context, entry fleet.AuditEntry) error {
	tv.state.audit = append(tv.state.audit, entry)
	return nil
}

func (tv *txView) QueryAudit(_ context.Context, filter fleet.AuditFilter) ([]fleet.AuditEntry, error) {
	return tv.state.queryAudit(filter), nil
}

// WithTx inside a transaction joins it.
func (tv *txView) WithTx(_ context.Context, fn func(fleet.Store) error) error {
	return fn(tv)
}

func (tv *txView) Reset(_ context.Context) error {
	fresh := newMemState()
	*tv.state = *fresh
	return nil
}

func (tv *txView) Close() error { return nil }
