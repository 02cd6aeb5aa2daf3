package fleet_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fleetlog/fleet"
)

// =============================================================================
// USERS
// =============================================================================

func TestUser_Validate(t *testing.T) {
	rider := fleet.NewRider("r1", "Jean", "  Jean@Example.CD ", "KIN-001")
	assert.Equal(t, "jean@example.cd", rider.Email)
	assert.NoError(t, rider.Validate())
	assert.True(t, rider.IsRider())
	assert.Equal(t, "KIN-001", rider.Matricule())

	admin := fleet.NewAdmin("a1", "Admin", "admin@example.cd")
	assert.NoError(t, admin.Validate())
	assert.True(t, admin.IsAdmin())
	assert.Equal(t, "", admin.Matricule())

	tests := []struct {
		name  string
		user  fleet.User
		field string
	}{
		{"missing id", fleet.NewRider("", "Jean", "j@x.cd", ""), "id"},
		{"missing name", fleet.NewRider("r1", " ", "j@x.cd", ""), "name"},
		{"bad email", fleet.NewRider("r1", "Jean", "jean", ""), "email"},
		{"rider without profile", fleet.User{ID: "r1", Name: "Jean", Email: "j@x.cd", Role: fleet.RoleRider}, "rider"},
		{"admin with profile", fleet.User{ID: "a1", Name: "A", Email: "a@x.cd", Role: fleet.RoleAdmin, Rider: &fleet.RiderProfile{}}, "rider"},
		{"unknown role", fleet.User{ID: "x", Name: "X", Email: "x@x.cd", Role: "guest"}, "role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			var ve *fleet.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
			assert.ErrorIs(t, err, fleet.ErrValidation)
		})
	}
}

// =============================================================================
// ENTRIES
// =============================================================================

func TestMileageEntry_Validate(t *testing.T) {
	valid := mileage("e1", "r1", fleet.EntryFuel, fleet.ShiftMorning, 10, 1000)
	assert.NoError(t, valid.Validate())

	amount := decimal.NewFromInt(5000)
	withAmount := valid
	withAmount.Amount = &amount
	assert.NoError(t, withAmount.Validate())

	opening := withAmount
	opening.Type = fleet.EntryOpening
	assert.ErrorIs(t, opening.Validate(), fleet.ErrValidation, "amount on a non-fuel entry")

	negative := decimal.NewFromInt(-1)
	neg := valid
	neg.Amount = &negative
	assert.ErrorIs(t, neg.Validate(), fleet.ErrValidation)

	noPhoto := valid
	noPhoto.Photo = ""
	assert.ErrorIs(t, noPhoto.Validate(), fleet.ErrValidation)

	badShift := valid
	badShift.Shift = 0
	assert.ErrorIs(t, badShift.Validate(), fleet.ErrValidation)

	badKm := valid
	badKm.Kilometrage = -3
	assert.ErrorIs(t, badKm.Validate(), fleet.ErrValidation)
}

func TestEquipmentEntry_Validate(t *testing.T) {
	valid := fleet.EquipmentEntry{
		ID:                  "q1",
		RiderID:             "r1",
		MotorcycleMatricule: "MOTO-1",
		PhoneID:             "PH-1",
		MatriculationPhoto:  "m.jpg",
		MileagePhoto:        "k.jpg",
		Shift:               fleet.ShiftAfternoon,
	}
	assert.NoError(t, valid.Validate())

	usd := decimal.NewFromInt(10)
	cash := valid
	cash.ExchangeMoneyUSD = &usd
	err := cash.Validate()
	var ve *fleet.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "exchange_money_usd", ve.Field)

	cash.HasExchangeMoney = true
	assert.NoError(t, cash.Validate())

	noPhone := valid
	noPhone.PhoneID = " "
	assert.ErrorIs(t, noPhone.Validate(), fleet.ErrValidation)
}

// =============================================================================
// DAYS
// =============================================================================

func TestParseDay(t *testing.T) {
	d, err := fleet.ParseDay("2024-03-09")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09", d.String())

	_, err = fleet.ParseDay("09/03/2024")
	assert.Error(t, err)

	assert.Equal(t, "", fleet.Day{}.String())
}

func TestDayRange_Contains(t *testing.T) {
	jan1, jan5, jan10 := *day("2024-01-01"), *day("2024-01-05"), *day("2024-01-10")

	r := fleet.DayRange{From: jan1, To: jan5}
	assert.True(t, r.Contains(jan1))
	assert.True(t, r.Contains(jan5))
	assert.False(t, r.Contains(jan10))

	open := fleet.DayRange{From: jan5}
	assert.True(t, open.Contains(jan10))
	assert.False(t, open.Contains(jan1))

	assert.ErrorIs(t, fleet.DayRange{From: jan10, To: jan1}.Validate(), fleet.ErrInvalidRange)
}

func TestEntryDay(t *testing.T) {
	e := mileage("e1", "r1", fleet.EntryOpening, fleet.ShiftMorning, 1, at(2024, time.May, 2, 10))
	d, ok := fleet.EntryDay(e, time.UTC)
	require.True(t, ok)
	assert.Equal(t, "2024-05-02", d.String())

	e.Timestamp = -5
	e.Date = "2024-05-01"
	d, ok = fleet.EntryDay(e, time.UTC)
	require.True(t, ok)
	assert.Equal(t, "2024-05-01", d.String())

	e.Date = ""
	_, ok = fleet.EntryDay(e, time.UTC)
	assert.False(t, ok)
}

// =============================================================================
// SESSIONS & ERRORS
// =============================================================================

func TestSession_Expired(t *testing.T) {
	now := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	s := fleet.Session{ExpiresAt: now}

	assert.True(t, s.Expired(now))
	assert.False(t, s.Expired(now.Add(-time.Second)))
}

func TestErrorHelpers(t *testing.T) {
	assert.True(t, fleet.IsClientError(fleet.ErrPasswordMismatch))
	assert.True(t, fleet.IsConflict(fleet.ErrDuplicateEmail))
	assert.True(t, fleet.IsNotFound(fleet.ErrEntryNotFound))
	assert.False(t, fleet.IsClientError(errors.New("disk full")))
}
