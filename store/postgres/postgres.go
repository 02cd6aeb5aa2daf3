/*
Package postgres provides a PostgreSQL implementation of fleet.Store.

PURPOSE:
  Same contract as store/sqlite, for deployments where several API
  instances share one database. Concurrency control is left to PostgreSQL:
  there is no process-level mutex, and WithTx is a real database
  transaction.

DIALECT NOTES:
  - amounts are NUMERIC; they travel as text so decimals never become floats
  - the entry timestamp and date columns are timestamp_ms and entry_date
  - audit values are JSONB

SEE ALSO:
  - store/sqlite/sqlite.go: Default single-node implementation
*/
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/warp/fleetlog/fleet"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
	q    querier
	inTx bool
}

var _ fleet.Store = (*Store)(nil)

// New connects to url, checks the connection and migrates the schema.
func New(ctx context.Context, url string) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &Store{pool: pool, q: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Printf("[Postgres] Connected, schema ready")
	return s, nil
}

func (s *Store) Close() error {
	if !s.inTx {
		s.pool.Close()
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		type TEXT NOT NULL CHECK (type IN ('rider', 'admin')),
		photo TEXT NOT NULL DEFAULT '',
		matricule TEXT,
		password_hash TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS mileage_entries (
		id TEXT PRIMARY KEY,
		rider_id TEXT NOT NULL,
		type TEXT NOT NULL CHECK (type IN ('ouverture', 'fermeture', 'carburant')),
		shift INTEGER NOT NULL CHECK (shift IN (1, 2)),
		kilometrage BIGINT NOT NULL,
		amount NUMERIC,
		photo TEXT NOT NULL,
		timestamp_ms BIGINT NOT NULL,
		entry_date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS equipment_entries (
		id TEXT PRIMARY KEY,
		rider_id TEXT NOT NULL,
		motorcycle_matricule TEXT NOT NULL,
		phone_id TEXT NOT NULL,
		has_helmet BOOLEAN NOT NULL,
		has_motorcycle_document BOOLEAN NOT NULL,
		has_exchange_money BOOLEAN NOT NULL,
		exchange_money_usd NUMERIC,
		exchange_money_cdf NUMERIC,
		matriculation_photo TEXT NOT NULL,
		mileage_photo TEXT NOT NULL,
		shift INTEGER NOT NULL CHECK (shift IN (1, 2)),
		timestamp_ms BIGINT NOT NULL,
		entry_date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		language TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS audit_logs (
		seq BIGSERIAL,
		id TEXT PRIMARY KEY,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		table_name TEXT NOT NULL,
		record_id TEXT NOT NULL,
		old_values JSONB,
		new_values JSONB,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_mileage_entries_rider_id ON mileage_entries(rider_id);
	CREATE INDEX IF NOT EXISTS idx_equipment_entries_rider_id ON equipment_entries(rider_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);
	CREATE INDEX IF NOT EXISTS idx_audit_logs_table_name ON audit_logs(table_name);
	`)
	return err
}

// =============================================================================
// USERS
// =============================================================================

const userColumns = `id, name, email, type, photo, matricule, password_hash, created_at, updated_at`

func (s *Store) SaveUser(ctx context.Context, u fleet.User) error {
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			type = EXCLUDED.type,
			photo = EXCLUDED.photo,
			matricule = EXCLUDED.matricule,
			password_hash = EXCLUDED.password_hash,
			updated_at = EXCLUDED.updated_at`,
		string(u.ID), u.Name, fleet.NormalizeEmail(u.Email), string(u.Role), u.Photo,
		nullable(u.Matricule()), u.PasswordHash, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fleet.ErrDuplicateEmail
		}
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id fleet.UserID) (*fleet.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, string(id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*fleet.User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, fleet.NormalizeEmail(email))
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (*fleet.User, error) {
	u, err := scanUser(s.q.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, role fleet.Role) ([]fleet.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE type = $1`
		args = append(args, string(role))
	}
	rows, err := s.q.Query(ctx, query+` ORDER BY name, id`, args...)
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
	return s.execDelete(ctx, `DELETE FROM users WHERE id = $1`, string(id), fleet.ErrUserNotFound)
}

func scanUser(row pgx.Row) (fleet.User, error) {
	var (
		id, name, email, role, photo, hash string
		matricule                          *string
		createdAt, updatedAt               time.Time
	)
	if err := row.Scan(&id, &name, &email, &role, &photo, &matricule, &hash, &createdAt, &updatedAt); err != nil {
		return fleet.User{}, err
	}
	u := fleet.User{
		ID:           fleet.UserID(id),
		Name:         name,
		Email:        email,
		Role:         fleet.Role(role),
		Photo:        photo,
		PasswordHash: hash,
		CreatedAt:    createdAt.UTC(),
		UpdatedAt:    updatedAt.UTC(),
	}
	if u.Role == fleet.RoleRider {
		u.Rider = &fleet.RiderProfile{}
		if matricule != nil {
			u.Rider.Matricule = *matricule
		}
	}
	return u, nil
}

// =============================================================================
// MILEAGE ENTRIES
// =============================================================================

const mileageColumns = `id, rider_id, type, shift, kilometrage, amount::text, photo, timestamp_ms, entry_date`

const newestFirst = ` ORDER BY GREATEST(timestamp_ms, 0) DESC, id ASC`

// InsertMileage skips an existing id with ON CONFLICT instead of raising a
// unique violation, which would abort the surrounding transaction.
func (s *Store) InsertMileage(ctx context.Context, e fleet.MileageEntry) error {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO mileage_entries (id, rider_id, type, shift, kilometrage, amount, photo, timestamp_ms, entry_date)
		VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING`,
		string(e.ID), string(e.RiderID), string(e.Type), int(e.Shift), e.Kilometrage,
		decimalText(e.Amount), e.Photo, e.Timestamp, e.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to insert mileage entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fleet.ErrDuplicateEntry
	}
	return nil
}

func (s *Store) GetMileage(ctx context.Context, id fleet.EntryID) (*fleet.MileageEntry, error) {
	e, err := scanMileage(s.q.QueryRow(ctx, `SELECT `+mileageColumns+` FROM mileage_entries WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load mileage entry: %w", err)
	}
	return &e, nil
}

func (s *Store) ListMileage(ctx context.Context, riderID fleet.UserID) ([]fleet.MileageEntry, error) {
	query := `SELECT ` + mileageColumns + ` FROM mileage_entries`
	var args []any
	if riderID != "" {
		query += ` WHERE rider_id = $1`
		args = append(args, string(riderID))
	}
	rows, err := s.q.Query(ctx, query+newestFirst, args...)
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
	return s.execDelete(ctx, `DELETE FROM mileage_entries WHERE id = $1`, string(id), fleet.ErrEntryNotFound)
}

func scanMileage(row pgx.Row) (fleet.MileageEntry, error) {
	var (
		id, riderID, typ, photo, date string
		shift                         int
		km, ts                        int64
		amount                        *string
	)
	if err := row.Scan(&id, &riderID, &typ, &shift, &km, &amount, &photo, &ts, &date); err != nil {
		return fleet.MileageEntry{}, err
	}
	a, err := parseDecimal(amount)
	if err != nil {
		return fleet.MileageEntry{}, fmt.Errorf("mileage entry %s: %w", id, err)
	}
	return fleet.MileageEntry{
		ID:          fleet.EntryID(id),
		RiderID:     fleet.UserID(riderID),
		Type:        fleet.EntryType(typ),
		Shift:       fleet.Shift(shift),
		Kilometrage: km,
		Amount:      a,
		Photo:       photo,
		Timestamp:   ts,
		Date:        date,
	}, nil
}

// =============================================================================
// EQUIPMENT ENTRIES
// =============================================================================

const equipmentColumns = `id, rider_id, motorcycle_matricule, phone_id, has_helmet,
	has_motorcycle_document, has_exchange_money, exchange_money_usd::text, exchange_money_cdf::text,
	matriculation_photo, mileage_photo, shift, timestamp_ms, entry_date`

func (s *Store) InsertEquipment(ctx context.Context, e fleet.EquipmentEntry) error {
	tag, err := s.q.Exec(ctx, `
		INSERT INTO equipment_entries (id, rider_id, motorcycle_matricule, phone_id, has_helmet,
			has_motorcycle_document, has_exchange_money, exchange_money_usd, exchange_money_cdf,
			matriculation_photo, mileage_photo, shift, timestamp_ms, entry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::text::numeric, $9::text::numeric, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING`,
		string(e.ID), string(e.RiderID), e.MotorcycleMatricule, e.PhoneID,
		e.HasHelmet, e.HasMotorcycleDocument, e.HasExchangeMoney,
		decimalText(e.ExchangeMoneyUSD), decimalText(e.ExchangeMoneyCDF),
		e.MatriculationPhoto, e.MileagePhoto, int(e.Shift), e.Timestamp, e.Date,
	)
	if err != nil {
		return fmt.Errorf("failed to insert equipment entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fleet.ErrDuplicateEntry
	}
	return nil
}

func (s *Store) GetEquipment(ctx context.Context, id fleet.EntryID) (*fleet.EquipmentEntry, error) {
	e, err := scanEquipment(s.q.QueryRow(ctx, `SELECT `+equipmentColumns+` FROM equipment_entries WHERE id = $1`, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load equipment entry: %w", err)
	}
	return &e, nil
}

func (s *Store) ListEquipment(ctx context.Context, riderID fleet.UserID) ([]fleet.EquipmentEntry, error) {
	query := `SELECT ` + equipmentColumns + ` FROM equipment_entries`
	var args []any
	if riderID != "" {
		query += ` WHERE rider_id = $1`
		args = append(args, string(riderID))
	}
	rows, err := s.q.Query(ctx, query+newestFirst, args...)
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
	return s.execDelete(ctx, `DELETE FROM equipment_entries WHERE id = $1`, string(id), fleet.ErrEntryNotFound)
}

func scanEquipment(row pgx.Row) (fleet.EquipmentEntry, error) {
	var (
		id, riderID, matricule, phoneID, matPhoto, kmPhoto, date string
		helmet, document, exchange                              bool
		usd, cdf                                                *string
		shift                                                   int
		ts                                                      int64
	)
	if err := row.Scan(&id, &riderID, &matricule, &phoneID, &helmet, &document, &exchange,
		&usd, &cdf, &matPhoto, &kmPhoto, &shift, &ts, &date); err != nil {
		return fleet.EquipmentEntry{}, err
	}
	usdAmount, err := parseDecimal(usd)
	if err != nil {
		return fleet.EquipmentEntry{}, fmt.Errorf("equipment entry %s: %w", id, err)
	}
	cdfAmount, err := parseDecimal(cdf)
	if err != nil {
		return fleet.EquipmentEntry{}, fmt.Errorf("equipment entry %s: %w", id, err)
	}
	return fleet.EquipmentEntry{
		ID:                    fleet.EntryID(id),
		RiderID:               fleet.UserID(riderID),
		MotorcycleMatricule:   matricule,
		PhoneID:               phoneID,
		HasHelmet:             helmet,
		HasMotorcycleDocument: document,
		HasExchangeMoney:      exchange,
		ExchangeMoneyUSD:      usdAmount,
		ExchangeMoneyCDF:      cdfAmount,
		MatriculationPhoto:    matPhoto,
		MileagePhoto:          kmPhoto,
		Shift:                 fleet.Shift(shift),
		Timestamp:             ts,
		Date:                  date,
	}, nil
}

// =============================================================================
// SESSIONS
// =============================================================================

func (s *Store) SaveSession(ctx context.Context, sess fleet.Session) error {
	_, err := s.q.Exec(ctx, `
		INSERT INTO sessions (id, user_id, language, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			language = EXCLUDED.language,
			expires_at = EXCLUDED.expires_at`,
		string(sess.ID), string(sess.UserID), string(sess.Language), sess.CreatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id fleet.SessionID) (*fleet.Session, error) {
	var (
		sid, userID, lang    string
		createdAt, expiresAt time.Time
	)
	err := s.q.QueryRow(ctx, `
		SELECT id, user_id, language, created_at, expires_at FROM sessions WHERE id = $1`, string(id),
	).Scan(&sid, &userID, &lang, &createdAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &fleet.Session{
		ID:        fleet.SessionID(sid),
		UserID:    fleet.UserID(userID),
		Language:  fleet.Language(lang),
		CreatedAt: createdAt.UTC(),
		ExpiresAt: expiresAt.UTC(),
	}, nil
}

func (s *Store) DeleteSession(ctx context.Context, id fleet.SessionID) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, string(id)); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry fleet.AuditEntry) error {
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

	_, err = s.q.Exec(ctx, `
		INSERT INTO audit_logs (id, actor_id, action, table_name, record_id, old_values, new_values, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::text::jsonb, $7::text::jsonb, $8)`,
		entry.ID, string(entry.ActorID), string(entry.Action), entry.Table, entry.RecordID,
		oldJSON, newJSON, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

func (s *Store) QueryAudit(ctx context.Context, filter fleet.AuditFilter) ([]fleet.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(column, value string) {
		args = append(args, value)
		where = append(where, column+" = $"+strconv.Itoa(len(args)))
	}
	if filter.ActorID != "" {
		add("actor_id", string(filter.ActorID))
	}
	if filter.Table != "" {
		add("table_name", filter.Table)
	}
	if filter.RecordID != "" {
		add("record_id", filter.RecordID)
	}

	query := `SELECT id, actor_id, action, table_name, record_id, old_values::text, new_values::text, created_at
		FROM audit_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, seq DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + strconv.Itoa(filter.Limit)
	}

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []fleet.AuditEntry
	for rows.Next() {
		var (
			id, actorID, action, table, recordID string
			oldJSON, newJSON                     *string
			createdAt                            time.Time
		)
		if err := rows.Scan(&id, &actorID, &action, &table, &recordID, &oldJSON, &newJSON, &createdAt); err != nil {
			return nil, err
		}
		e := fleet.AuditEntry{
			ID:        id,
			ActorID:   fleet.UserID(actorID),
			Action:    fleet.AuditAction(action),
			Table:     table,
			RecordID:  recordID,
			CreatedAt: createdAt.UTC(),
		}
		if e.OldValues, err = unmarshalValues(oldJSON); err != nil {
			return nil, err
		}
		if e.NewValues, err = unmarshalValues(newJSON); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// TRANSACTIONS & RESET
// =============================================================================

func (s *Store) WithTx(ctx context.Context, fn func(fleet.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Store{pool: s.pool, q: tx, inTx: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Reset(ctx context.Context) error {
	_, err := s.q.Exec(ctx, `TRUNCATE sessions, audit_logs, equipment_entries, mileage_entries, users`)
	if err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Store) execDelete(ctx context.Context, query, id string, notFound error) error {
	tag, err := s.q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", *s, err)
	}
	return &d, nil
}

func marshalValues(v map[string]any) (*string, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode audit values: %w", err)
	}
	s := string(b)
	return &s, nil
}

func unmarshalValues(s *string) (map[string]any, error) {
	if s == nil {
		return nil, nil
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(*s), &v); err != nil {
		return nil, fmt.Errorf("failed to decode audit values: %w", err)
	}
	return v, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
