package fleet

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MILEAGE SUMMARY
// =============================================================================

// MileageSummary is computed over a filtered set of mileage entries.
// All fields are additive over disjoint sets except ActiveRiderCount and
// AverageKilometrage.
type MileageSummary struct {
	Count              int
	TotalKilometrage   int64
	ActiveRiderCount   int
	AverageKilometrage decimal.Decimal // 0 when Count is 0
	TotalFuelAmount    decimal.Decimal
	ByType             map[EntryType]int
}

// Summarize aggregates mileage entries. Pure.
func Summarize(entries []MileageEntry) MileageSummary {
	s := MileageSummary{
		Count:              len(entries),
		AverageKilometrage: decimal.Zero,
		TotalFuelAmount:    decimal.Zero,
		ByType:             make(map[EntryType]int, len(EntryTypes)),
	}
	for _, t := range EntryTypes {
		s.ByType[t] = 0
	}
	for _, e := range entries {
		s.TotalKilometrage += e.Kilometrage
		s.ByType[e.Type]++
		if e.Amount != nil {
			s.TotalFuelAmount = s.TotalFuelAmount.Add(*e.Amount)
		}
	}
	s.ActiveRiderCount = ActiveRiderCount(entries)
	if s.Count > 0 {
		s.AverageKilometrage = decimal.NewFromInt(s.TotalKilometrage).
			Div(decimal.NewFromInt(int64(s.Count))).
			Round(2)
	}
	return s
}

// TotalKilometrage sums the kilometrage field.
func TotalKilometrage(entries []MileageEntry) int64 {
	var total int64
	for _, e := range entries {
		total += e.Kilometrage
	}
	return total
}

// RiderSubtotal sums the kilometrage of one rider's entries.
func RiderSubtotal(entries []MileageEntry, riderID UserID) int64 {
	var total int64
	for _, e := range entries {
		if e.RiderID == riderID {
			total += e.Kilometrage
		}
	}
	return total
}

// =============================================================================
// GENERIC AGGREGATES - Work on any entry kind
// =============================================================================

// ActiveRiderCount is the number of distinct rider ids present.
func ActiveRiderCount[E Entry](entries []E) int {
	seen := make(map[UserID]struct{}, len(entries))
	for _, e := range entries {
		seen[e.Owner()] = struct{}{}
	}
	return len(seen)
}

// RiderStats is the per-rider row of the dashboard.
type RiderStats struct {
	TotalEntries     int
	LastEntry        *int64 // epoch millis, nil when the rider has no entry
	TotalKilometrage int64  // mileage entries only, 0 for equipment checks
}

// StatsFor computes RiderStats for one rider.
func StatsFor[E Entry](entries []E, riderID UserID) RiderStats {
	var st RiderStats
	for _, e := range entries {
		if e.Owner() != riderID {
			continue
		}
		st.TotalEntries++
		if m, ok := any(e).(MileageEntry); ok {
			st.TotalKilometrage += m.Kilometrage
		}
		if ts := e.Stamp(); ts > 0 && (st.LastEntry == nil || ts > *st.LastEntry) {
			last := ts
			st.LastEntry = &last
		}
	}
	return st
}

// CountOnDay counts entries whose calendar day in loc is day.
func CountOnDay[E Entry](entries []E, day Day, loc *time.Location) int {
	n := 0
	for _, e := range entries {
		if d, ok := EntryDay(e, loc); ok && d.Equal(day) {
			n++
		}
	}
	return n
}

// =============================================================================
// EQUIPMENT SUMMARY
// =============================================================================

type EquipmentSummary struct {
	Count             int
	ActiveRiderCount  int
	WithHelmet        int
	WithDocument      int
	WithExchangeMoney int
	TotalExchangeUSD  decimal.Decimal
	TotalExchangeCDF  decimal.Decimal
}

// SummarizeEquipment aggregates equipment checklists. Pure.
func SummarizeEquipment(entries []EquipmentEntry) EquipmentSummary {
	s := EquipmentSummary{
		Count:            len(entries),
		ActiveRiderCount: ActiveRiderCount(entries),
		TotalExchangeUSD: decimal.Zero,
		TotalExchangeCDF: decimal.Zero,
	}
	for _, e := range entries {
		if e.HasHelmet {
			s.WithHelmet++
		}
		if e.HasMotorcycleDocument {
			s.WithDocument++
		}
		if e.HasExchangeMoney {
			s.WithExchangeMoney++
		}
		if e.ExchangeMoneyUSD != nil {
			s.TotalExchangeUSD = s.TotalExchangeUSD.Add(*e.ExchangeMoneyUSD)
		}
		if e.ExchangeMoneyCDF != nil {
			s.TotalExchangeCDF = s.TotalExchangeCDF.Add(*e.ExchangeMoneyCDF)
		}
	}
	return s
}
