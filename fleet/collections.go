/*
collections.go - Whole-collection boundary for device data dumps

PURPOSE:
  The first version of the application kept everything on the device as
  three JSON arrays plus a current-user record:

    riders            every user (riders AND admins, tagged by "type")
    mileageEntries    every odometer reading
    equipmentEntries  every equipment checklist
    currentUser       the logged-in user

  GetCollection/SetCollection speak that exact camelCase shape so a device
  dump can be imported and the data exported back out.

IMPORT SEMANTICS:
  SetCollection does NOT replace the collection. Each record is upserted
  (users) or inserted once (entries) inside a single WithTx, so:
  - a re-import is idempotent (existing entry ids are skipped)
  - records already in the store but absent from the dump are kept
  - a decode or validation failure aborts the whole import, nothing written

  Plaintext legacy passwords are hashed with ImportOptions.HashPassword;
  without a hasher they are dropped. Timestamps that are not numbers are
  read as 0 (unknown), which the filters treat as "use the date field" and
  which sorts last.

SEE ALSO:
  - store.go: per-record methods used here
  - api/collections.go: HTTP exposure
*/
package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COLLECTION NAMES
// =============================================================================

type CollectionName string

const (
	CollectionRiders      CollectionName = "riders"
	CollectionMileage     CollectionName = "mileageEntries"
	CollectionEquipment   CollectionName = "equipmentEntries"
	CollectionCurrentUser CollectionName = "currentUser"
)

// ParseCollectionName validates a collection name.
func ParseCollectionName(s string) (CollectionName, error) {
	switch n := CollectionName(s); n {
	case CollectionRiders, CollectionMileage, CollectionEquipment, CollectionCurrentUser:
		return n, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCollection, s)
}

// =============================================================================
// LEGACY RECORD SHAPES
// =============================================================================

type legacyUser struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Type      string `json:"type"`
	Photo     string `json:"photo,omitempty"`
	Matricule string `json:"matricule,omitempty"`
	Password  string `json:"password,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type legacyMileage struct {
	ID          string           `json:"id"`
	RiderID     string           `json:"riderId"`
	Type        string           `json:"type"`
	Shift       int              `json:"shift"`
	Kilometrage int64            `json:"kilometrage"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Photo       string           `json:"photo"`
	Timestamp   lenientMillis    `json:"timestamp"`
	Date        string           `json:"date"`
}

type legacyEquipment struct {
	ID                    string           `json:"id"`
	RiderID               string           `json:"riderId"`
	MotorcycleMatricule   string           `json:"motorcycleMatricule"`
	PhoneID               string           `json:"phoneId"`
	HasHelmet             bool             `json:"hasHelmet"`
	HasMotorcycleDocument bool             `json:"hasMotorcycleDocument"`
	HasExchangeMoney      bool             `json:"hasExchangeMoney"`
	ExchangeMoneyUSD      *decimal.Decimal `json:"exchangeMoneyUSD,omitempty"`
	ExchangeMoneyCDF      *decimal.Decimal `json:"exchangeMoneyCDF,omitempty"`
	MatriculationPhoto    string           `json:"matriculationPhoto"`
	MileagePhoto          string           `json:"mileagePhoto"`
	Shift                 int              `json:"shift"`
	Timestamp             lenientMillis    `json:"timestamp"`
	Date                  string           `json:"date"`
}

// lenientMillis accepts a JSON number or numeric string; anything else is 0.
type lenientMillis int64

func (m *lenientMillis) UnmarshalJSON(b []byte) error {
	*m = 0
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	var raw string
	switch t := v.(type) {
	case json.Number:
		raw = t.String()
	case string:
		raw = strings.TrimSpace(t)
	default:
		return nil
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*m = lenientMillis(n)
	} else if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*m = lenientMillis(int64(f))
	}
	if *m < 0 {
		*m = 0
	}
	return nil
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toLegacyUser(u User) legacyUser {
	lu := legacyUser{
		ID:        string(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		Type:      string(u.Role),
		Photo:     u.Photo,
		Matricule: u.Matricule(),
	}
	if !u.CreatedAt.IsZero() {
		lu.CreatedAt = u.CreatedAt.UTC().Format(time.RFC3339)
	}
	if !u.UpdatedAt.IsZero() {
		lu.UpdatedAt = u.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return lu
}

func (lu legacyUser) toUser(now time.Time) User {
	id := UserID(lu.ID)
	if id == "" {
		id = NewUserID()
	}
	var u User
	if lu.Type == string(RoleAdmin) {
		u = NewAdmin(id, lu.Name, lu.Email)
	} else {
		u = NewRider(id, lu.Name, lu.Email, lu.Matricule)
	}
	u.Photo = lu.Photo
	u.CreatedAt = parseLegacyTime(lu.CreatedAt, now)
	u.UpdatedAt = parseLegacyTime(lu.UpdatedAt, now)
	return u
}

func parseLegacyTime(s string, fallback time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return fallback
}

func toLegacyMileage(e MileageEntry) legacyMileage {
	return legacyMileage{
		ID:          string(e.ID),
		RiderID:     string(e.RiderID),
		Type:        string(e.Type),
		Shift:       int(e.Shift),
		Kilometrage: e.Kilometrage,
		Amount:      e.Amount,
		Photo:       e.Photo,
		Timestamp:   lenientMillis(e.Timestamp),
		Date:        e.Date,
	}
}

func (lm legacyMileage) toEntry() MileageEntry {
	return MileageEntry{
		ID:          EntryID(lm.ID),
		RiderID:     UserID(lm.RiderID),
		Type:        EntryType(lm.Type),
		Shift:       Shift(lm.Shift),
		Kilometrage: lm.Kilometrage,
		Amount:      lm.Amount,
		Photo:       lm.Photo,
		Timestamp:   int64(lm.Timestamp),
		Date:        lm.Date,
	}
}

func toLegacyEquipment(e EquipmentEntry) legacyEquipment {
	return legacyEquipment{
		ID:                    string(e.ID),
		RiderID:               string(e.RiderID),
		MotorcycleMatricule:   e.MotorcycleMatricule,
		PhoneID:               e.PhoneID,
		HasHelmet:             e.HasHelmet,
		HasMotorcycleDocument: e.HasMotorcycleDocument,
		HasExchangeMoney:      e.HasExchangeMoney,
		ExchangeMoneyUSD:      e.ExchangeMoneyUSD,
		ExchangeMoneyCDF:      e.ExchangeMoneyCDF,
		MatriculationPhoto:    e.MatriculationPhoto,
		MileagePhoto:          e.MileagePhoto,
		Shift:                 int(e.Shift),
		Timestamp:             lenientMillis(e.Timestamp),
		Date:                  e.Date,
	}
}

func (le legacyEquipment) toEntry() EquipmentEntry {
	shift := Shift(le.Shift)
	if le.Shift == 0 {
		// The first checklist form had no shift selector.
		shift = ShiftMorning
	}
	return EquipmentEntry{
		ID:                    EntryID(le.ID),
		RiderID:               UserID(le.RiderID),
		MotorcycleMatricule:   le.MotorcycleMatricule,
		PhoneID:               le.PhoneID,
		HasHelmet:             le.HasHelmet,
		HasMotorcycleDocument: le.HasMotorcycleDocument,
		HasExchangeMoney:      le.HasExchangeMoney,
		ExchangeMoneyUSD:      le.ExchangeMoneyUSD,
		ExchangeMoneyCDF:      le.ExchangeMoneyCDF,
		MatriculationPhoto:    le.MatriculationPhoto,
		MileagePhoto:          le.MileagePhoto,
		Shift:                 shift,
		Timestamp:             int64(le.Timestamp),
		Date:                  le.Date,
	}
}

// =============================================================================
// GET / SET
// =============================================================================

// GetCollection returns the named collection as a JSON array in the legacy
// shape. currentUser returns the caller (or null).
func GetCollection(ctx context.Context, s Store, name CollectionName, current *User) ([]byte, error) {
	switch name {
	case CollectionRiders:
		users, err := s.ListUsers(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
		out := make([]legacyUser, len(users))
		for i, u := range users {
			out[i] = toLegacyUser(u)
		}
		return json.Marshal(out)

	case CollectionMileage:
		entries, err := s.ListMileage(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("list mileage: %w", err)
		}
		out := make([]legacyMileage, len(entries))
		for i, e := range entries {
			out[i] = toLegacyMileage(e)
		}
		return json.Marshal(out)

	case CollectionEquipment:
		entries, err := s.ListEquipment(ctx, "")
		if err != nil {
			return nil, fmt.Errorf("list equipment: %w", err)
		}
		out := make([]legacyEquipment, len(entries))
		for i, e := range entries {
			out[i] = toLegacyEquipment(e)
		}
		return json.Marshal(out)

	case CollectionCurrentUser:
		if current == nil {
			return []byte("null"), nil
		}
		return json.Marshal(toLegacyUser(*current))
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
}

// ImportOptions configures SetCollection.
type ImportOptions struct {
	HashPassword func(plain string) (string, error)
	Now          func() time.Time
}

// ImportResult reports what SetCollection did.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// SetCollection merges a legacy JSON array into the store, record by record,
// in one transaction.
func SetCollection(ctx context.Context, s Store, name CollectionName, data []byte, opts ImportOptions) (ImportResult, error) {
	now := time.Now().UTC()
	if opts.Now != nil {
		now = opts.Now()
	}

	var result ImportResult
	var apply func(tx Store) error

	switch name {
	case CollectionRiders:
		var records []legacyUser
		if err := json.Unmarshal(data, &records); err != nil {
			return result, &ValidationError{Field: string(name), Message: "is not a JSON array of users: " + err.Error()}
		}
		apply = func(tx Store) error {
			for i, lu := range records {
				u := lu.toUser(now)
				existing, err := tx.GetUser(ctx, u.ID)
				if err != nil {
					return err
				}
				if existing != nil {
					u.PasswordHash = existing.PasswordHash
				}
				if lu.Password != "" && opts.HashPassword != nil {
					hash, err := opts.HashPassword(lu.Password)
					if err != nil {
						return fmt.Errorf("hash password of record %d: %w", i, err)
					}
					u.PasswordHash = hash
				}
				if err := u.Validate(); err != nil {
					return fmt.Errorf("record %d: %w", i, err)
				}
				if err := tx.SaveUser(ctx, u); err != nil {
					return fmt.Errorf("record %d: %w", i, err)
				}
				result.Imported++
			}
			return nil
		}

	case CollectionMileage:
		var records []legacyMileage
		if err := json.Unmarshal(data, &records); err != nil {
			return result, &ValidationError{Field: string(name), Message: "is not a JSON array of mileage entries: " + err.Error()}
		}
		apply = func(tx Store) error {
			for i, lm := range records {
				e := lm.toEntry()
				if e.ID == "" {
					e.ID = NewEntryID()
				}
				if err := e.Validate(); err != nil {
					return fmt.Errorf("record %d: %w", i, err)
				}
				if err := tx.InsertMileage(ctx, e); err != nil {
					if errors.Is(err, ErrDuplicateEntry) {
						result.Skipped++
						continue
					}
					return fmt.Errorf("record %d: %w", i, err)
				}
				result.Imported++
			}
			return nil
		}

	case CollectionEquipment:
		var records []legacyEquipment
		if err := json.Unmarshal(data, &records); err != nil {
			return result, &ValidationError{Field: string(name), Message: "is not a JSON array of equipment entries: " + err.Error()}
		}
		apply = func(tx Store) error {
			for i, le := range records {
				e := le.toEntry()
				if e.ID == "" {
					e.ID = NewEntryID()
				}
				if err := e.Validate(); err != nil {
					return fmt.Errorf("record %d: %w", i, err)
				}
				if err := tx.InsertEquipment(ctx, e); err != nil {
					if errors.Is(err, ErrDuplicateEntry) {
						result.Skipped++
						continue
					}
					return fmt.Errorf("record %d: %w", i, err)
				}
				result.Imported++
			}
			return nil
		}

	case CollectionCurrentUser:
		return result, fmt.Errorf("%w: %s is derived from the session", ErrReadOnlyCollection, name)

	default:
		return result, fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}

	if err := s.WithTx(ctx, apply); err != nil {
		return ImportResult{}, err
	}
	return result, nil
}
