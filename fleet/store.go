/*
store.go - Persistence interfaces for users, entries, sessions and audit

PURPOSE:
  Defines the interface between the domain logic and the database.
  Implementations: in-memory (fleet/store), SQLite (store/sqlite) and
  PostgreSQL (store/postgres). The API only ever sees fleet.Store.

PER-RECORD WRITES:
  Every write touches exactly one record: users are upserted by id, entries
  are inserted once, deletes remove one id. There is no "read the whole
  collection, rewrite the whole collection" path, so two concurrent writers
  never drop each other's changes.

NOT FOUND:
  Get* methods return (nil, nil) when the record doesn't exist. Delete*
  methods return ErrUserNotFound / ErrEntryNotFound.

ATOMIC BATCHES:
  WithTx() runs fn against a transactional view. If fn returns an error
  nothing it wrote is kept. Used by collection imports.

SEE ALSO:
  - collections.go: Legacy whole-collection boundary built on these methods
  - store/sqlite/sqlite.go: Default implementation
*/
package fleet

import (
	"context"
	"time"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

// UserStore persists riders and admins.
type UserStore interface {
	// SaveUser inserts or replaces the user with u.ID.
	// Returns ErrDuplicateEmail if another user owns the email.
	SaveUser(ctx context.Context, u User) error

	GetUser(ctx context.Context, id UserID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// ListUsers returns users ordered by name. An empty role returns everyone.
	ListUsers(ctx context.Context, role Role) ([]User, error)

	DeleteUser(ctx context.Context, id UserID) error
}

// EntryStore persists mileage and equipment entries.
// Entries are insert-only; a second insert with the same id fails with ErrDuplicateEntry.
type EntryStore interface {
	InsertMileage(ctx context.Context, e MileageEntry) error
	GetMileage(ctx context.Context, id EntryID) (*MileageEntry, error)
	// ListMileage returns entries newest first. An empty riderID returns all.
	ListMileage(ctx context.Context, riderID UserID) ([]MileageEntry, error)
	DeleteMileage(ctx context.Context, id EntryID) error

	InsertEquipment(ctx context.Context, e EquipmentEntry) error
	GetEquipment(ctx context.Context, id EntryID) (*EquipmentEntry, error)
	ListEquipment(ctx context.Context, riderID UserID) ([]EquipmentEntry, error)
	DeleteEquipment(ctx context.Context, id EntryID) error
}

// SessionStore persists login sessions.
type SessionStore interface {
	SaveSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id SessionID) (*Session, error)
	DeleteSession(ctx context.Context, id SessionID) error
	// DeleteExpiredSessions removes sessions expired at now and returns how many.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// Store is everything the application needs from persistence.
type Store interface {
	UserStore
	EntryStore
	SessionStore
	AuditLog

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Reset clears all data (for demo scenarios and tests).
	Reset(ctx context.Context) error

	Close() error
}

// =============================================================================
// AUDIT LOG - Who changed which record, with before/after values
// =============================================================================

type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
	AuditImport AuditAction = "import"
)

// Audited tables.
const (
	TableUsers            = "users"
	TableMileageEntries   = "mileage_entries"
	TableEquipmentEntries = "equipment_entries"
)

// AuditEntry records who did what when.
type AuditEntry struct {
	ID        string         `json:"id"`
	ActorID   UserID         `json:"actor_id"`
	Action    AuditAction    `json:"action"`
	Table     string         `json:"table"`
	RecordID  string         `json:"record_id"`
	OldValues map[string]any `json:"old_values,omitempty"`
	NewValues map[string]any `json:"new_values,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	// QueryAudit returns matching entries newest first.
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditFilter struct {
	ActorID  UserID
	Table    string
	RecordID string
	Limit    int // 0 = no limit
}

// Matches reports whether e satisfies the filter (Limit is not considered).
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.Table != "" && e.Table != f.Table {
		return false
	}
	if f.RecordID != "" && e.RecordID != f.RecordID {
		return false
	}
	return true
}
