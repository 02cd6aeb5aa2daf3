package fleet_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fleetlog/fleet"
)

func TestSummarize_JeanAndMarie(t *testing.T) {
	// GIVEN: two riders, one entry each
	dir := fleet.NewDirectory([]fleet.User{
		fleet.NewRider("1", "Jean", "jean@example.cd", ""),
		fleet.NewRider("2", "Marie", "marie@example.cd", ""),
	})
	entries := []fleet.MileageEntry{
		{ID: "e1", RiderID: "1", Type: fleet.EntryOpening, Shift: fleet.ShiftMorning, Kilometrage: 100, Timestamp: 1000},
		{ID: "e2", RiderID: "2", Type: fleet.EntryOpening, Shift: fleet.ShiftMorning, Kilometrage: 200, Timestamp: 2000},
	}

	// WHEN: filtering on rider 1
	got := fleet.Apply(entries, dir, fleet.Filter{RiderID: "1"}, time.UTC)

	// THEN: exactly e1, enriched, and the aggregate follows
	require.Len(t, got, 1)
	assert.Equal(t, fleet.EntryID("e1"), got[0].Entry.ID)
	assert.Equal(t, "Jean", got[0].RiderName)

	s := fleet.Summarize(fleet.Entries(got))
	assert.Equal(t, int64(100), s.TotalKilometrage)
	assert.Equal(t, 1, s.ActiveRiderCount)
	assert.Equal(t, 1, s.Count)
	assert.True(t, decimal.NewFromInt(100).Equal(s.AverageKilometrage))
}

func TestSummarize_Empty(t *testing.T) {
	s := fleet.Summarize(nil)

	assert.Equal(t, 0, s.Count)
	assert.Equal(t, int64(0), s.TotalKilometrage)
	assert.Equal(t, 0, s.ActiveRiderCount)
	assert.True(t, s.AverageKilometrage.IsZero())
	assert.True(t, s.TotalFuelAmount.IsZero())
	for _, typ := range fleet.EntryTypes {
		assert.Equal(t, 0, s.ByType[typ])
	}
}

func TestSummarize_FuelAndTypes(t *testing.T) {
	amount := decimal.RequireFromString("15000.50")
	fuel := mileage("f1", "r1", fleet.EntryFuel, fleet.ShiftMorning, 30, 3000)
	fuel.Amount = &amount
	entries := []fleet.MileageEntry{
		mileage("o1", "r1", fleet.EntryOpening, fleet.ShiftMorning, 10, 1000),
		mileage("o2", "r2", fleet.EntryOpening, fleet.ShiftMorning, 11, 2000),
		fuel,
	}

	s := fleet.Summarize(entries)

	assert.Equal(t, 2, s.ByType[fleet.EntryOpening])
	assert.Equal(t, 0, s.ByType[fleet.EntryClosing])
	assert.Equal(t, 1, s.ByType[fleet.EntryFuel])
	assert.Equal(t, "15000.5", s.TotalFuelAmount.String())
	assert.Equal(t, "17", s.AverageKilometrage.String())
}

func TestSummarize_ActiveRidersNeverExceedCount(t *testing.T) {
	entries := testEntries()
	for i := 0; i <= len(entries); i++ {
		s := fleet.Summarize(entries[:i])
		assert.LessOrEqual(t, s.ActiveRiderCount, s.Count)
	}
	assert.Equal(t, 2, fleet.ActiveRiderCount(entries))
}

func TestTotalKilometrage_IsAdditive(t *testing.T) {
	entries := testEntries()
	for split := 0; split <= len(entries); split++ {
		a, b := entries[:split], entries[split:]
		assert.Equal(t,
			fleet.TotalKilometrage(entries),
			fleet.TotalKilometrage(a)+fleet.TotalKilometrage(b))
	}
	assert.Equal(t, int64(270), fleet.TotalKilometrage(entries))
}

func TestRiderSubtotal(t *testing.T) {
	entries := testEntries()

	assert.Equal(t, int64(220), fleet.RiderSubtotal(entries, "r1"))
	assert.Equal(t, int64(50), fleet.RiderSubtotal(entries, "r2"))
	assert.Equal(t, int64(0), fleet.RiderSubtotal(entries, "nobody"))
}

func TestStatsFor(t *testing.T) {
	entries := testEntries()

	st := fleet.StatsFor(entries, "r1")
	assert.Equal(t, 2, st.TotalEntries)
	require.NotNil(t, st.LastEntry)
	assert.Equal(t, at(2024, time.January, 16, 12), *st.LastEntry)
	assert.Equal(t, fleet.RiderSubtotal(entries, "r1"), st.TotalKilometrage)

	none := fleet.StatsFor(entries, "nobody")
	assert.Equal(t, 0, none.TotalEntries)
	assert.Nil(t, none.LastEntry)
	assert.Zero(t, none.TotalKilometrage)

	checks := []fleet.EquipmentEntry{{ID: "q1", RiderID: "r1", Timestamp: 1000}}
	eq := fleet.StatsFor(checks, "r1")
	assert.Equal(t, 1, eq.TotalEntries)
	assert.Zero(t, eq.TotalKilometrage, "equipment checks carry no odometer reading")
}

func TestCountOnDay(t *testing.T) {
	entries := testEntries()

	assert.Equal(t, 2, fleet.CountOnDay(entries, *day("2024-01-15"), time.UTC))
	assert.Equal(t, 1, fleet.CountOnDay(entries, *day("2024-01-16"), time.UTC))
	assert.Equal(t, 0, fleet.CountOnDay(entries, *day("2024-01-17"), time.UTC))
}

func TestSummarizeEquipment(t *testing.T) {
	usd := decimal.NewFromInt(20)
	cdf := decimal.NewFromInt(50000)
	entries := []fleet.EquipmentEntry{
		{ID: "q1", RiderID: "r1", HasHelmet: true, HasMotorcycleDocument: true},
		{ID: "q2", RiderID: "r2", HasHelmet: true, HasExchangeMoney: true, ExchangeMoneyUSD: &usd, ExchangeMoneyCDF: &cdf},
		{ID: "q3", RiderID: "r2"},
	}

	s := fleet.SummarizeEquipment(entries)

	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 2, s.ActiveRiderCount)
	assert.Equal(t, 2, s.WithHelmet)
	assert.Equal(t, 1, s.WithDocument)
	assert.Equal(t, 1, s.WithExchangeMoney)
	assert.True(t, usd.Equal(s.TotalExchangeUSD))
	assert.True(t, cdf.Equal(s.TotalExchangeCDF))
}
