// Package storetest holds the behaviour every fleet.Store must share.
// Each implementation's tests call Run with its own constructor.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fleetlog/fleet"
)

// Factory returns an empty store. It should register its own cleanup.
type Factory func(t *testing.T) fleet.Store

// Run executes the shared store suite.
func Run(t *testing.T, newStore Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("DuplicateEmail", func(t *testing.T) { testDuplicateEmail(t, newStore(t)) })
	t.Run("Mileage", func(t *testing.T) { testMileage(t, newStore(t)) })
	t.Run("Equipment", func(t *testing.T) { testEquipment(t, newStore(t)) })
	t.Run("Sessions", func(t *testing.T) { testSessions(t, newStore(t)) })
	t.Run("Audit", func(t *testing.T) { testAudit(t, newStore(t)) })
	t.Run("TxCommit", func(t *testing.T) { testTxCommit(t, newStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("Reset", func(t *testing.T) { testReset(t, newStore(t)) })
	t.Run("Reimport", func(t *testing.T) { testReimport(t, newStore(t)) })
}

// =============================================================================
// FIXTURES
// =============================================================================

var created = time.Date(2024, time.January, 10, 9, 0, 0, 0, time.UTC)

func rider(id, name, email, matricule string) fleet.User {
	u := fleet.NewRider(fleet.UserID(id), name, email, matricule)
	u.PasswordHash = "hash-" + id
	u.CreatedAt = created
	u.UpdatedAt = created
	return u
}

func entry(id string, riderID fleet.UserID, ts int64) fleet.MileageEntry {
	return fleet.MileageEntry{
		ID:          fleet.EntryID(id),
		RiderID:     riderID,
		Type:        fleet.EntryOpening,
		Shift:       fleet.ShiftMorning,
		Kilometrage: 1200,
		Photo:       "photo.jpg",
		Timestamp:   ts,
		Date:        "2024-01-15",
	}
}

// =============================================================================
// CASES
// =============================================================================

func testUsers(t *testing.T, s fleet.Store) {
	ctx := context.Background()

	require.NoError(t, s.SaveUser(ctx, rider("r2", "Marie", "marie@shoppi.cd", "KIN-002")))
	require.NoError(t, s.SaveUser(ctx, rider("r1", "Jean", "Jean@Shoppi.cd", "KIN-001")))
	admin := fleet.NewAdmin("a1", "Admin", "admin@shoppi.cd")
	admin.CreatedAt, admin.UpdatedAt = created, created
	require.NoError(t, s.SaveUser(ctx, admin))

	got, err := s.GetUser(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Jean", got.Name)
	assert.Equal(t, "jean@shoppi.cd", got.Email)
	assert.Equal(t, "KIN-001", got.Matricule())
	assert.Equal(t, "hash-r1", got.PasswordHash)
	assert.True(t, got.CreatedAt.Equal(created))

	byEmail, err := s.GetUserByEmail(ctx, " JEAN@shoppi.cd")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, fleet.UserID("r1"), byEmail.ID)

	a, err := s.GetUser(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.True(t, a.IsAdmin())
	assert.Nil(t, a.Rider)

	missing, err := s.GetUser(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	riders, err := s.ListUsers(ctx, fleet.RoleRider)
	require.NoError(t, err)
	require.Len(t, riders, 2)
	assert.Equal(t, "Jean", riders[0].Name)
	assert.Equal(t, "Marie", riders[1].Name)

	all, err := s.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Upsert keeps the original creation time
	updated := rider("r1", "Jean-Claude", "jean@shoppi.cd", "KIN-010")
	updated.CreatedAt = created.Add(time.Hour)
	updated.UpdatedAt = created.Add(time.Hour)
	require.NoError(t, s.SaveUser(ctx, updated))
	got, err = s.GetUser(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "Jean-Claude", got.Name)
	assert.Equal(t, "KIN-010", got.Matricule())
	assert.True(t, got.CreatedAt.Equal(created))

	require.NoError(t, s.DeleteUser(ctx, "r1"))
	got, err = s.GetUser(ctx, "r1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, s.DeleteUser(ctx, "r1"), fleet.ErrUserNotFound)
}

func testDuplicateEmail(t *testing.T, s fleet.Store) {
	ctx := context.Background()

	require.NoError(t, s.SaveUser(ctx, rider("r1", "Jean", "jean@shoppi.cd", "")))
	err := s.SaveUser(ctx, rider("r2", "Other", "jean@shoppi.cd", ""))
	assert.ErrorIs(t, err, fleet.ErrDuplicateEmail)
}

func testMileage(t *testing.T, s fleet.Store) {
	ctx := context.Background()

	amount := decimal.RequireFromString("25000.75")
	fuel := entry("m3", "r2", 3000)
	fuel.Type = fleet.EntryFuel
	fuel.Amount = &amount

	require.NoError(t, s.InsertMileage(ctx, entry("m1", "r1", 1000)))
	require.NoError(t, s.InsertMileage(ctx, entry("m2", "r1", 2000)))
	require.NoError(t, s.InsertMileage(ctx, fuel))

	err := s.InsertMileage(ctx, entry("m1", "r1", 9999))
	assert.ErrorIs(t, err, fleet.ErrDuplicateEntry)

	got, err := s.GetMileage(ctx, "m3")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Amount)
	assert.True(t, amount.Equal(*got.Amount))
	assert.Equal(t, fleet.EntryFuel, got.Type)

	plain, err := s.GetMileage(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, plain)
	assert.Nil(t, plain.Amount)
	assert.Equal(t, int64(1000), plain.Timestamp)

	all, err := s.ListMileage(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, fleet.EntryID("m3"), all[0].ID)
	assert.Equal(t, fleet.EntryID("m1"), all[2].ID)

	mine, err := s.ListMileage(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	require.NoError(t, s.DeleteMileage(ctx, "m2"))
	assert.ErrorIs(t, s.DeleteMileage(ctx, "m2"), fleet.ErrEntryNotFound)
	missing, err := s.GetMileage(ctx, "m2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testEquipment(t *testing.T, s fleet.Store) {
	ctx := context.Background()

	usd := decimal.NewFromInt(20)
	e := fleet.EquipmentEntry{
		ID:                    "q1",
		RiderID:               "r1",
		MotorcycleMatricule:   "MOTO-1",
		PhoneID:               "PH-1",
		HasHelmet:             true,
		HasMotorcycleDocument: false,
		HasExchangeMoney:      true,
		ExchangeMoneyUSD:      &usd,
		MatriculationPhoto:    "m.jpg",
		MileagePhoto:          "k.jpg",
		Shift:                 fleet.ShiftAfternoon,
		Timestamp:             5000,
		Date:                  "2024-01-15",
	}
	require.NoError(t, s.InsertEquipment(ctx, e))
	assert.ErrorIs(t, s.InsertEquipment(ctx, e), fleet.ErrDuplicateEntry)

	got, err := s.GetEquipment(ctx, "q1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.HasHelmet)
	assert.False(t, got.HasMotorcycleDocument)
	require.NotNil(t, got.ExchangeMoneyUSD)
	assert.True(t, usd.Equal(*got.ExchangeMoneyUSD))
	assert.Nil(t, got.ExchangeMoneyCDF)
	assert.Equal(t, fleet.ShiftAfternoon, got.Shift)

	list, err := s.ListEquipment(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	none, err := s.ListEquipment(ctx, "r2")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.DeleteEquipment(ctx, "q1"))
	assert.ErrorIs(t, s.DeleteEquipment(ctx, "q1"), fleet.ErrEntryNotFound)
}

func testSessions(t *testing.T, s fleet.Store) {
	ctx := context.Background()
	now := time.Date(2024, time.January, 15, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveUser(ctx, rider("r1", "Jean", "jean@shoppi.cd", "")))
	live := fleet.Session{ID: "s1", UserID: "r1", Language: fleet.LangFR, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	old := fleet.Session{ID: "s2", UserID: "r1", Language: fleet.LangEN, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
	require.NoError(t, s.SaveSession(ctx, live))
	require.NoError(t, s.SaveSession(ctx, old))

	got, err := s.GetSession(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, fleet.LangFR, got.Language)
	assert.True(t, got.ExpiresAt.Equal(live.ExpiresAt))

	// Language changes are saved in place
	live.Language = fleet.LangEN
	require.NoError(t, s.SaveSession(ctx, live))
	got, err = s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, fleet.LangEN, got.Language)

	n, err := s.DeleteExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	gone, err := s.GetSession(ctx, "s2")
	require.NoError(t, err)
	assert.Nil(t, gone)

	require.NoError(t, s.DeleteSession(ctx, "s1"))
	gone, err = s.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func testAudit(t *testing.T, s fleet.Store) {
	ctx := context.Background()

	for i, rec := range []string{"m1", "m2", "u1"} {
		table := fleet.TableMileageEntries
		if rec == "u1" {
			table = fleet.TableUsers
		}
		require.NoError(t, s.AppendAudit(ctx, fleet.AuditEntry{
			ID:        fleet.NewAuditID(),
			ActorID:   "a1",
			Action:    fleet.AuditDelete,
			Table:     table,
			RecordID:  rec,
			OldValues: map[string]any{"kilometrage": float64(100 + i)},
			CreatedAt: created.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := s.QueryAudit(ctx, fleet.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "u1", all[0].RecordID)
	assert.Equal(t, float64(100), all[2].OldValues["kilometrage"])

	mileage, err := s.QueryAudit(ctx, fleet.AuditFilter{Table: fleet.TableMileageEntries, Limit: 1})
	require.NoError(t, err)
	require.Len(t, mileage, 1)
	assert.Equal(t, "m2", mileage[0].RecordID)
}

func testTxCommit(t *testing.T, s fleet.Store) {
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx fleet.Store) error {
		if err := tx.SaveUser(ctx, rider("r1", "Jean", "jean@shoppi.cd", "")); err != nil {
			return err
		}
		u, err := tx.GetUser(ctx, "r1")
		if err != nil {
			return err
		}
		if u == nil {
			return errors.New("write not visible inside transaction")
		}
		return tx.InsertMileage(ctx, entry("m1", "r1", 1000))
	})
	require.NoError(t, err)

	u, err := s.GetUser(ctx, "r1")
	require.NoError(t, err)
	assert.NotNil(t, u)
	m, err := s.GetMileage(ctx, "m1")
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func testTxRollback(t *testing.T, s fleet.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, s.InsertMileage(ctx, entry("keep", "r1", 1000)))

	err := s.WithTx(ctx, func(tx fleet.Store) error {
		if err := tx.InsertMileage(ctx, entry("m1", "r1", 2000)); err != nil {
			return err
		}
		if err := tx.DeleteMileage(ctx, "keep"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	m, err := s.GetMileage(ctx, "m1")
	require.NoError(t, err)
	assert.Nil(t, m)
	kept, err := s.GetMileage(ctx, "keep")
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func testReset(t *testing.T, s fleet.Store) {
	ctx := context.Background()

	require.NoError(t, s.SaveUser(ctx, rider("r1", "Jean", "jean@shoppi.cd", "")))
	require.NoError(t, s.InsertMileage(ctx, entry("m1", "r1", 1000)))
	require.NoError(t, s.Reset(ctx))

	users, err := s.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, users)
	entries, err := s.ListMileage(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

const (
	mileageDump = `[
	  {"id":"m1","riderId":"1","type":"ouverture","shift":1,"kilometrage":1200,"photo":"p","timestamp":1705300000000,"date":"2024-01-15"},
	  {"id":"m2","riderId":"1","type":"fermeture","shift":2,"kilometrage":1260,"photo":"p","timestamp":1705310000000,"date":"2024-01-15"}
	]`
	equipmentDump = `[
	  {"id":"q1","riderId":"1","motorcycleMatricule":"MOTO-1","phoneId":"PH-1","hasHelmet":true,
	   "matriculationPhoto":"m","mileagePhoto":"k","timestamp":1705300000000,"date":"2024-01-15"},
	  {"id":"q2","riderId":"1","motorcycleMatricule":"MOTO-1","phoneId":"PH-1","hasHelmet":false,
	   "matriculationPhoto":"m","mileagePhoto":"k","timestamp":1705310000000,"date":"2024-01-15"}
	]`
)

func testReimport(t *testing.T, s fleet.Store) {
	// GIVEN: A device dump already imported once
	// WHEN: The same dump is imported again, plus one new record
	// THEN: Known ids are skipped inside the same transaction and the new one lands

	ctx := context.Background()
	opts := fleet.ImportOptions{Now: func() time.Time { return created }}

	for _, c := range []struct {
		name fleet.CollectionName
		dump string
	}{{fleet.CollectionMileage, mileageDump}, {fleet.CollectionEquipment, equipmentDump}} {
		res, err := fleet.SetCollection(ctx, s, c.name, []byte(c.dump), opts)
		require.NoError(t, err, c.name)
		assert.Equal(t, fleet.ImportResult{Imported: 2}, res, c.name)

		res, err = fleet.SetCollection(ctx, s, c.name, []byte(c.dump), opts)
		require.NoError(t, err, c.name)
		assert.Equal(t, fleet.ImportResult{Skipped: 2}, res, c.name)
	}

	// A duplicate first must not poison the rest of the transaction
	more := `[
	  {"id":"m1","riderId":"1","type":"ouverture","shift":1,"kilometrage":1200,"photo":"p","timestamp":1705300000000,"date":"2024-01-15"},
	  {"id":"m3","riderId":"1","type":"carburant","shift":2,"kilometrage":1300,"amount":15000,"photo":"p","timestamp":1705320000000,"date":"2024-01-15"}
	]`
	res, err := fleet.SetCollection(ctx, s, fleet.CollectionMileage, []byte(more), opts)
	require.NoError(t, err)
	assert.Equal(t, fleet.ImportResult{Imported: 1, Skipped: 1}, res)

	mileage, err := s.ListMileage(ctx, "")
	require.NoError(t, err)
	assert.Len(t, mileage, 3)
	equipment, err := s.ListEquipment(ctx, "")
	require.NoError(t, err)
	assert.Len(t, equipment, 2)
}
