package fleet_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fleetlog/fleet"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func at(year int, month time.Month, day, hour int) int64 {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC).UnixMilli()
}

func mileage(id string, rider fleet.UserID, typ fleet.EntryType, shift fleet.Shift, km int64, ts int64) fleet.MileageEntry {
	return fleet.MileageEntry{
		ID:          fleet.EntryID(id),
		RiderID:     rider,
		Type:        typ,
		Shift:       shift,
		Kilometrage: km,
		Photo:       "data:image/jpeg;base64,AAAA",
		Timestamp:   ts,
		Date:        time.UnixMilli(ts).UTC().Format(fleet.DayLayout),
	}
}

func testDirectory() fleet.Directory {
	return fleet.NewDirectory([]fleet.User{
		fleet.NewRider("r1", "Jean", "jean@example.cd", "KIN-001"),
		fleet.NewRider("r2", "Marie", "marie@example.cd", "KIN-002"),
		fleet.NewAdmin("a1", "Admin", "admin@example.cd"),
	})
}

func testEntries() []fleet.MileageEntry {
	return []fleet.MileageEntry{
		mileage("e1", "r1", fleet.EntryOpening, fleet.ShiftMorning, 100, at(2024, time.January, 15, 8)),
		mileage("e2", "r2", fleet.EntryClosing, fleet.ShiftAfternoon, 50, at(2024, time.January, 15, 17)),
		mileage("e3", "r1", fleet.EntryFuel, fleet.ShiftAfternoon, 120, at(2024, time.January, 16, 12)),
	}
}

func day(s string) *fleet.Day {
	d, err := fleet.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func ids[E fleet.Entry](enriched []fleet.Enriched[E]) []fleet.EntryID {
	out := make([]fleet.EntryID, len(enriched))
	for i, en := range enriched {
		out[i] = en.Entry.Key()
	}
	return out
}

// =============================================================================
// APPLY
// =============================================================================

func TestApply_EmptyFilterIsIdentity(t *testing.T) {
	entries := testEntries()

	got := fleet.Apply(entries, testDirectory(), fleet.Filter{}, time.UTC)

	require.Len(t, got, len(entries))
	assert.Equal(t, []fleet.EntryID{"e3", "e2", "e1"}, ids(got))
	assert.Equal(t, "Jean", got[0].RiderName)
	assert.Equal(t, "KIN-001", got[0].RiderMatricule)
	assert.True(t, got[0].RiderFound)
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	entries := testEntries()
	before := append([]fleet.MileageEntry(nil), entries...)

	fleet.Apply(entries, testDirectory(), fleet.Filter{Search: "marie"}, time.UTC)

	assert.Equal(t, before, entries)
}

func TestApply_DayIgnoresTimeOfDay(t *testing.T) {
	// GIVEN: two entries on the same day at different hours
	entries := testEntries()

	// WHEN: filtering on that day
	got := fleet.Apply(entries, testDirectory(), fleet.Filter{Day: day("2024-01-15")}, time.UTC)

	// THEN: both come back, newest first
	assert.Equal(t, []fleet.EntryID{"e2", "e1"}, ids(got))
}

func TestApply_DayUsesLocation(t *testing.T) {
	// 23:30 UTC on the 15th is already the 16th in Kinshasa (UTC+1)
	loc := time.FixedZone("WAT", 3600)
	ts := time.Date(2024, time.January, 15, 23, 30, 0, 0, time.UTC).UnixMilli()
	entries := []fleet.MileageEntry{mileage("late", "r1", fleet.EntryClosing, fleet.ShiftAfternoon, 10, ts)}

	assert.Len(t, fleet.Apply(entries, testDirectory(), fleet.Filter{Day: day("2024-01-16")}, loc), 1)
	assert.Empty(t, fleet.Apply(entries, testDirectory(), fleet.Filter{Day: day("2024-01-15")}, loc))
}

func TestApply_RangeIsInclusive(t *testing.T) {
	entries := testEntries()
	r := &fleet.DayRange{From: *day("2024-01-16"), To: *day("2024-01-16")}

	got := fleet.Apply(entries, testDirectory(), fleet.Filter{Range: r}, time.UTC)

	assert.Equal(t, []fleet.EntryID{"e3"}, ids(got))
}

func TestApply_RiderTypeShift(t *testing.T) {
	entries := testEntries()
	dir := testDirectory()

	assert.Equal(t, []fleet.EntryID{"e3", "e1"}, ids(fleet.Apply(entries, dir, fleet.Filter{RiderID: "r1"}, time.UTC)))
	assert.Equal(t, []fleet.EntryID{"e3"}, ids(fleet.Apply(entries, dir, fleet.Filter{Type: fleet.EntryFuel}, time.UTC)))
	assert.Equal(t, []fleet.EntryID{"e3", "e2"}, ids(fleet.Apply(entries, dir, fleet.Filter{Shift: fleet.ShiftAfternoon}, time.UTC)))
}

func TestApply_CriteriaAreANDed(t *testing.T) {
	got := fleet.Apply(testEntries(), testDirectory(), fleet.Filter{
		RiderID: "r1",
		Shift:   fleet.ShiftMorning,
		Day:     day("2024-01-15"),
	}, time.UTC)

	assert.Equal(t, []fleet.EntryID{"e1"}, ids(got))
}

func TestApply_SearchIsCaseInsensitive(t *testing.T) {
	dir := testDirectory()

	assert.Equal(t, []fleet.EntryID{"e2"}, ids(fleet.Apply(testEntries(), dir, fleet.Filter{Search: "MAR"}, time.UTC)))
	assert.Equal(t, []fleet.EntryID{"e3", "e1"}, ids(fleet.Apply(testEntries(), dir, fleet.Filter{Search: "kin-001"}, time.UTC)))
	assert.Empty(t, fleet.Apply(testEntries(), dir, fleet.Filter{Search: "nobody"}, time.UTC))
}

func TestApply_ResultIsSubsetSatisfyingFilter(t *testing.T) {
	entries := testEntries()
	filters := []fleet.Filter{
		{RiderID: "r2"},
		{Type: fleet.EntryOpening},
		{Day: day("2024-01-16")},
		{Search: "jean"},
		{Shift: fleet.ShiftMorning, Search: "marie"},
	}
	in := make(map[fleet.EntryID]bool)
	for _, e := range entries {
		in[e.ID] = true
	}

	for _, f := range filters {
		for _, en := range fleet.Apply(entries, testDirectory(), f, time.UTC) {
			assert.True(t, in[en.Entry.ID], "entry %s not from input", en.Entry.ID)
			if f.RiderID != "" {
				assert.Equal(t, f.RiderID, en.Entry.RiderID)
			}
			if f.Type != "" {
				assert.Equal(t, f.Type, en.Entry.Type)
			}
			if f.Shift != 0 {
				assert.Equal(t, f.Shift, en.Entry.Shift)
			}
		}
	}
}

func TestApply_UnknownRiderIsKeptWithPlaceholder(t *testing.T) {
	// GIVEN: an entry whose rider was deleted
	entries := []fleet.MileageEntry{mileage("orphan", "99", fleet.EntryOpening, fleet.ShiftMorning, 10, at(2024, time.January, 15, 9))}

	// WHEN: joining
	got := fleet.Apply(entries, testDirectory(), fleet.Filter{}, time.UTC)

	// THEN: no error, the placeholder name is used and is searchable
	require.Len(t, got, 1)
	assert.Equal(t, fleet.UnknownRiderName, got[0].RiderName)
	assert.False(t, got[0].RiderFound)
	assert.Len(t, fleet.Apply(entries, testDirectory(), fleet.Filter{Search: "inconnu"}, time.UTC), 1)
}

func TestApply_UnknownTimestampFallsBackToDateAndSortsLast(t *testing.T) {
	noStamp := mileage("nostamp", "r1", fleet.EntryOpening, fleet.ShiftMorning, 5, 0)
	noStamp.Date = "2024-01-15"
	entries := append(testEntries(), noStamp)

	all := fleet.Apply(entries, testDirectory(), fleet.Filter{}, time.UTC)
	assert.Equal(t, fleet.EntryID("nostamp"), all[len(all)-1].Entry.ID)

	onDay := fleet.Apply(entries, testDirectory(), fleet.Filter{Day: day("2024-01-15")}, time.UTC)
	assert.Equal(t, []fleet.EntryID{"e2", "e1", "nostamp"}, ids(onDay))
}

func TestApply_UnusableDateNeverMatchesDayFilter(t *testing.T) {
	bad := mileage("bad", "r1", fleet.EntryOpening, fleet.ShiftMorning, 5, 0)
	bad.Date = "not a date"

	assert.Empty(t, fleet.Apply([]fleet.MileageEntry{bad}, testDirectory(), fleet.Filter{Day: day("2024-01-15")}, time.UTC))
	assert.Len(t, fleet.Apply([]fleet.MileageEntry{bad}, testDirectory(), fleet.Filter{}, time.UTC), 1)
}

func TestApply_TiesBreakOnID(t *testing.T) {
	ts := at(2024, time.January, 15, 8)
	entries := []fleet.MileageEntry{
		mileage("b", "r1", fleet.EntryOpening, fleet.ShiftMorning, 1, ts),
		mileage("a", "r2", fleet.EntryOpening, fleet.ShiftMorning, 1, ts),
	}

	assert.Equal(t, []fleet.EntryID{"a", "b"}, ids(fleet.Apply(entries, testDirectory(), fleet.Filter{}, time.UTC)))
}

func TestApply_EquipmentIgnoresTypeAndSearchesOwnFields(t *testing.T) {
	eq := fleet.EquipmentEntry{
		ID:                  "q1",
		RiderID:             "r2",
		MotorcycleMatricule: "MOTO-77",
		PhoneID:             "PH-5",
		Shift:               fleet.ShiftMorning,
		Timestamp:           at(2024, time.January, 15, 7),
	}
	entries := []fleet.EquipmentEntry{eq}

	assert.Len(t, fleet.Apply(entries, testDirectory(), fleet.Filter{Type: fleet.EntryFuel}, time.UTC), 1)
	assert.Len(t, fleet.Apply(entries, testDirectory(), fleet.Filter{Search: "moto-77"}, time.UTC), 1)
	assert.Len(t, fleet.Apply(entries, testDirectory(), fleet.Filter{Search: "ph-5"}, time.UTC), 1)
	assert.Empty(t, fleet.Apply(entries, testDirectory(), fleet.Filter{Search: "zzz"}, time.UTC))
}

// =============================================================================
// FILTER VALIDATION
// =============================================================================

func TestFilter_Validate(t *testing.T) {
	assert.NoError(t, fleet.Filter{}.Validate())
	assert.True(t, fleet.Filter{}.IsEmpty())
	assert.False(t, fleet.Filter{Search: "x"}.IsEmpty())

	err := fleet.Filter{Type: "vidange"}.Validate()
	assert.ErrorIs(t, err, fleet.ErrValidation)

	err = fleet.Filter{Shift: 3}.Validate()
	assert.ErrorIs(t, err, fleet.ErrValidation)

	err = fleet.Filter{Range: &fleet.DayRange{From: *day("2024-02-01"), To: *day("2024-01-01")}}.Validate()
	assert.ErrorIs(t, err, fleet.ErrInvalidRange)
	assert.True(t, fleet.IsClientError(err))
}

// =============================================================================
// RIDER SEARCH
// =============================================================================

func TestSearchRiders(t *testing.T) {
	users := []fleet.User{
		fleet.NewRider("r1", "Jean-Claude Mulumba", "jean@shoppi.cd", "KIN-001"),
		fleet.NewRider("r2", "Marie Kabila", "marie@shoppi.cd", "KIN-002"),
	}

	assert.Len(t, fleet.SearchRiders(users, ""), 2)
	assert.Len(t, fleet.SearchRiders(users, "KABILA"), 1)
	assert.Len(t, fleet.SearchRiders(users, "kin-00"), 2)
	assert.Len(t, fleet.SearchRiders(users, "jean@"), 1)
	assert.Empty(t, fleet.SearchRiders(users, "pascal"))
}
