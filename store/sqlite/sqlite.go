/*
Package sqlite provides a SQLite-backed implementation of fleet.Store.

PURPOSE:
  Default persistence for a single fleet deployment. Every domain write is a
  single-row INSERT, UPSERT or DELETE; imports batch them in one transaction.

KEY TABLES:
  users:             riders and admins, one identity space (type = rider|admin)
  mileage_entries:   odometer readings, insert-only
  equipment_entries: equipment checklists, insert-only
  sessions:          login sessions, cascade-deleted with their user
  audit_logs:        who changed which record, old/new values as JSON

  Entries carry no foreign key to users: an entry whose rider was deleted is
  kept and shown with a placeholder name in the reports.

MONEY:
  Amounts are stored as decimal strings (TEXT) so CDF totals never pass
  through float64. NULL means "not recorded".

CONCURRENCY:
  Uses sync.RWMutex for thread-safety and a single connection, which keeps
  ":memory:" databases coherent. WithTx holds the write lock and hands fn a
  Store bound to the *sql.Tx; that Store takes no locks of its own.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better crash recovery.

USAGE:
  store, err := sqlite.New("./data/fleetlog.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - fleet/store.go: Interface definitions
  - fleet/store/memory.go: In-memory implementation for testing
  - store/postgres: Same contract on PostgreSQL
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/fleetlog/fleet"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements fleet.Store using SQLite.
type Store struct {
	db *sql.DB
	q  querier
	mu *sync.RWMutex // nil inside a transaction
}

var _ fleet.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db, q: db, mu: &sync.RWMutex{}}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.mu == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) lock() func() {
	if s.mu == nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) rlock() func() {
	if s.mu == nil {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL CHECK (type IN ('rider', 'admin')),
		photo TEXT NOT NULL DEFAULT '',
		matricule TEXT,
		password_hash TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS mileage_entries (
		id TEXT PRIMARY KEY,
		rider_id TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('ouverture', 'fermeture', 'carburant')),
		shift INTEGER NOT NULL CHECK (shift IN (1, 2)),
		kilometrage INTEGER NOT NULL,
		amount TEXT,
		photo TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS equipment_entries (
		id TEXT PRIMARY KEY,
		rider_id TEXT NOT NULL,
		motorcycle_matricule TEXT NOT NULL,
		phone_id TEXT NOT NULL,
		has_helmet INTEGER NOT NULL,
		has_motorcycle_document INTEGER NOT NULL,
		has_exchange_money INTEGER NOT NULL,
		exchange_money_usd TEXT,
		exchange_money_cdf TEXT,
		matriculation_photo TEXT NOT NULL,
		mileage_photo TEXT NOT NULL,
		shift INTEGER NOT NULL CHECK (shift IN (1, 2)),
		timestamp INTEGER NOT NULL,
		date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		language TEXT NOT NULL,
		created_at TEXT NOT NULL,
		expires_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_logs (
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		table_name TEXT NOT NULL,
		record_id TEXT NOT NULL,
		old_values TEXT,
		new_values TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_mileage_entries_rider_id ON mileage_entries(rider_id);
	CREATE INDEX IF NOT EXISTS idx_mileage_entries_timestamp ON mileage_entries(timestamp);
	CREATE INDEX IF NOT EXISTS idx_equipment_entries_rider_id ON equipment_entries(rider_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_table_name ON audit_logs(table_name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USER STORE
// =============================================================================

const userColumns = `id, name, email, type, photo, matricule, password_hash, created_at, updated_at`

// SaveUser inserts or updates a user. created_at is kept on update.
func (s *Store) SaveUser(ctx context.Context, u fleet.User) error {
	defer s.lock()()

	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			type = excluded.type,
			photo = excluded.photo,
			matricule = excluded.matricule,
			password_hash = excluded.password_hash,
			updated_at = excluded.updated_at
	`
	_, err := s.q.ExecContext(ctx, query,
		u.ID,
		u.Name,
		fleet.NormalizeEmail(u.Email),
		u.Role,
		u.Photo,
		nullString(u.Matricule()),
		u.PasswordHash,
		formatTime(u.CreatedAt),
		formatTime(u.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fleet.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id fleet.UserID) (*fleet.User, error) {
	defer s.rlock()()
	row := s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUserRow(row)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*fleet.User, error) {
	defer s.rlock()()
	row := s.q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, fleet.NormalizeEmail(email))
	return scanUserRow(row)
}

func (s *Store) ListUsers(ctx context.Context, role fleet.Role) ([]fleet.User, error) {
	defer s.rlock()()

	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE type = ?`
		args = append(args, role)
	}
	query += ` ORDER BY name, id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []fleet.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) DeleteUser(ctx context.Context, id fleet.UserID) error {
	defer s.lock()()
	return execDelete(ctx, s.q, `DELETE FROM users WHERE id = ?`, id, fleet.ErrUserNotFound)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(sc scanner) (fleet.User, error) {
	var (
		u                    fleet.User
		matricule            sql.NullString
		createdAt, updatedAt string
	)
	if err := sc.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.Photo, &matricule,
		&u.PasswordHash, &createdAt, &updatedAt); err != nil {
		return fleet.User{}, err
	}
	if u.Role == fleet.RoleRider {
		u.Rider = &fleet.RiderProfile{Matricule: matricule.String}
	}
	u.CreatedAt = parseTime(createdAt)
	u.UpdatedAt = parseTime(updatedAt)
	return u, nil
}

func scanUserRow(row *sql.Row) (*fleet.User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

// =============================================================================
// MILEAGE ENTRIES
// =============================================================================

const mileageColumns = `id, rider_id, type, shift, kilometrage, amount, photo, timestamp, date`

// newestFirst matches fleet's in-memory ordering: unknown timestamps last, ties by id.
const newestFirst = ` ORDER BY CASE WHEN timestamp > 0 THEN timestamp ELSE 0 END DESC, id ASC`

func (s *Store) InsertMileage(ctx context.Context, e fleet.MileageEntry) error {
	defer s.lock()()

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO mileage_entries (`+mileageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		e.ID, e.RiderID, e.Type, e.Shift, e.Kilometrage,
		nullDecimal(e.Amount), e.Photo, e.Timestamp, e.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to insert mileage entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fleet.ErrDuplicateEntry
	}
	return nil
}

func (s *Store) GetMileage(ctx context.Context, id fleet.EntryID) (*fleet.MileageEntry, error) {
	defer s.rlock()()

	row := s.q.QueryRowContext(ctx, `SELECT `+mileageColumns+` FROM mileage_entries WHERE id = ?`, id)
	e, err := scanMileage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mileage entry: %w", err)
	}
	return &e, nil
}

func (s *Store) ListMileage(ctx context.Context, riderID fleet.UserID) ([]fleet.MileageEntry, error) {
	defer s.rlock()()

	query := `SELECT ` + mileageColumns + ` FROM mileage_entries`
	var args []any
	if riderID != "" {
		query += ` WHERE rider_id = ?`
		args = append(args, riderID)
	}
	rows, err := s.q.QueryContext(ctx, query+newestFirst, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list mileage entries: %w", err)
	}
	defer rows.Close()

	var entries []fleet.MileageEntry
	for rows.Next() {
		e, err := scanMileage(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) DeleteMileage(ctx context.Context, id fleet.EntryID) error {
	defer s.lock()()
	return execDelete(ctx, s.q, `DELETE FROM mileage_entries WHERE id = ?`, id, fleet.ErrEntryNotFound)
}

func scanMileage(sc scanner) (fleet.MileageEntry, error) {
	var (
		e      fleet.MileageEntry
		amount sql.NullString
	)
	if err := sc.Scan(&e.ID, &e.RiderID, &e.Type, &e.Shift, &e.Kilometrage,
		&amount, &e.Photo, &e.Timestamp, &e.Date); err != nil {
		return fleet.MileageEntry{}, err
	}
	var err error
	if e.Amount, err = parseDecimal(amount); err != nil {
		return fleet.MileageEntry{}, fmt.Errorf("mileage entry %s: %w", e.ID, err)
	}
	return e, nil
}

// =============================================================================
// EQUIPMENT ENTRIES
// =============================================================================

const equipmentColumns = `id, rider_id, motorcycle_matricule, phone_id, has_helmet,
	has_motorcycle_document, has_exchange_money, exchange_money_usd, exchange_money_cdf,
	matriculation_photo, mileage_photo, shift, timestamp, date`

func (s *Store) InsertEquipment(ctx context.Context, e fleet.EquipmentEntry) error {
	defer s.lock()()

	res, err := s.q.ExecContext(ctx, `
		INSERT INTO equipment_entries (`+equipmentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		e.ID, e.RiderID, e.MotorcycleMatricule, e.PhoneID,
		e.HasHelmet, e.HasMotorcycleDocument, e.HasExchangeMoney,
		nullDecimal(e.ExchangeMoneyUSD), nullDecimal(e.ExchangeMoneyCDF),
		e.MatriculationPhoto, e.MileagePhoto, e.Shift, e.Timestamp, e.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to insert equipment entry: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fleet.ErrDuplicateEntry
	}
	return nil
}

func (s *Store) GetEquipment(ctx context.Context, id fleet.EntryID) (*fleet.EquipmentEntry, error) {
	defer s.rlock()()

	row := s.q.QueryRowContext(ctx, `SELECT `+equipmentColumns+` FROM equipment_entries WHERE id = ?`, id)
	e, err := scanEquipment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load equipment entry: %w", err)
	}
	return &e, nil
}

func (s *Store) ListEquipment(ctx context.Context, riderID fleet.UserID) ([]fleet.EquipmentEntry, error) {
	defer s.rlock()()

	query := `SELECT ` + equipmentColumns + ` FROM equipment_entries`
	var args []any
	if riderID != "" {
		query += ` WHERE rider_id = ?`
		args = append(args, riderID)
	}
	rows, err := s.q.QueryContext(ctx, query+newestFirst, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list equipment entries: %w", err)
	}
	defer rows.Close()

	var entries []fleet.EquipmentEntry
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) DeleteEquipment(ctx context.Context, id fleet.EntryID) error {
	defer s.lock()()
	return execDelete(ctx, s.q, `DELETE FROM equipment_entries WHERE id = ?`, id, fleet.ErrEntryNotFound)
}

func scanEquipment(sc scanner) (fleet.EquipmentEntry, error) {
	var (
		e        fleet.EquipmentEntry
		usd, cdf sql.NullString
	)
	if err := sc.Scan(&e.ID, &e.RiderID, &e.MotorcycleMatricule, &e.PhoneID,
		&e.HasHelmet, &e.HasMotorcycleDocument, &e.HasExchangeMoney, &usd, &cdf,
		&e.MatriculationPhoto, &e.MileagePhoto, &e.Shift, &e.Timestamp, &e.Date); err != nil {
		return fleet.EquipmentEntry{}, err
	}
	var err error
	if e.ExchangeMoneyUSD, err = parseDecimal(usd); err != nil {
		return fleet.EquipmentEntry{}, fmt.Errorf("equipment entry %s: %w", e.ID, err)
	}
	if e.ExchangeMoneyCDF, err = parseDecimal(cdf); err != nil {
		return fleet.EquipmentEntry{}, fmt.Errorf("equipment entry %s: %w", e.ID, err)
	}
	return e, nil
}

// =============================================================================
// SESSION STORE
// =============================================================================

func (s *Store) SaveSession(ctx context.Context, sess fleet.Session) error {
	defer s.lock()()

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, language, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			language = excluded.language,
			expires_at = excluded.expires_at`,
		sess.ID, sess.UserID, sess.Language, formatTime(sess.CreatedAt), formatTime(sess.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id fleet.SessionID) (*fleet.Session, error) {
	defer s.rlock()()

	var sess fleet.Session
	var createdAt, expiresAt string
	err := s.q.QueryRowContext(ctx, `
		SELECT id, user_id, language, created_at, expires_at FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.Language, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	sess.CreatedAt = parseTime(createdAt)
	sess.ExpiresAt = parseTime(expiresAt)
	return &sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, id fleet.SessionID) error {
	defer s.lock()()
	if _, err := s.q.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	defer s.lock()()

	res, err := s.q.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry fleet.AuditEntry) error {
	defer s.lock()()

	oldJSON, err := marshalValues(entry.OldValues)
	if err != nil {
		return err
	}
	newJSON, err := marshalValues(entry.NewValues)
	if err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, action, table_name, record_id, old_values, new_values, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.ActorID, entry.Action, entry.Table, entry.RecordID,
		oldJSON, newJSON, formatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) QueryAudit(ctx context.Context, filter fleet.AuditFilter) ([]fleet.AuditEntry, error) {
	defer s.rlock()()

	query := `SELECT id, actor_id, action, table_name, record_id, old_values, new_values, created_at
		FROM audit_logs WHERE 1 = 1`
	var args []any
	if filter.ActorID != "" {
		query += ` AND actor_id = ?`
		args = append(args, filter.ActorID)
	}
	if filter.Table != "" {
		query += ` AND table_name = ?`
		args = append(args, filter.Table)
	}
	if filter.RecordID != "" {
		query += ` AND record_id = ?`
		args = append(args, filter.RecordID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []fleet.AuditEntry
	for rows.Next() {
		var (
			e                fleet.AuditEntry
			oldJSON, newJSON sql.NullString
			createdAt        string
		)
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Table, &e.RecordID,
			&oldJSON, &newJSON, &createdAt); err != nil {
			return nil, err
		}
		if e.OldValues, err = unmarshalValues(oldJSON); err != nil {
			return nil, err
		}
		if e.NewValues, err = unmarshalValues(newJSON); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// TRANSACTIONS & RESET
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store fleet.Store) error) error {
	if s.mu == nil {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Store{db: s.db, q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	defer s.lock()()

	tables := []string{"sessions", "audit_logs", "equipment_entries", "mileage_entries", "users"}
	for _, table := range tables {
		if _, err := s.q.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func execDelete(ctx context.Context, q querier, query string, id any, notFound error) error {
	res, err := q.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", ns.String, err)
	}
	return &d, nil
}

// timeLayout is fixed-width so stored times compare correctly as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func marshalValues(v map[string]any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode audit values: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalValues(ns sql.NullString) (map[string]any, error) {
	if !ns.Valid {
		return nil, nil
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(ns.String), &v); err != nil {
		return nil, fmt.Errorf("failed to decode audit values: %w", err)
	}
	return v, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed"))
}
