package fleet

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTRY KINDS
// =============================================================================

// EntryType is the kind of odometer reading.
type EntryType string

const (
	EntryOpening EntryType = "ouverture" // start of shift
	EntryClosing EntryType = "fermeture" // end of shift
	EntryFuel    EntryType = "carburant" // before refueling, carries an amount
)

func (t EntryType) Valid() bool {
	return t == EntryOpening || t == EntryClosing || t == EntryFuel
}

// EntryTypes lists the types in display order.
var EntryTypes = []EntryType{EntryOpening, EntryClosing, EntryFuel}

// Shift is one of the two daily work periods.
type Shift int

const (
	ShiftMorning   Shift = 1
	ShiftAfternoon Shift = 2
)

func (s Shift) Valid() bool {
	return s == ShiftMorning || s == ShiftAfternoon
}

// =============================================================================
// ENTRY - What the filter pipeline needs from any entry
// =============================================================================

// Entry is implemented by MileageEntry and EquipmentEntry.
type Entry interface {
	Key() EntryID
	Owner() UserID
	// Stamp is the creation time in epoch milliseconds. Non-positive means unknown.
	Stamp() int64
	// DateString is the stored ISO calendar day, used when Stamp is unknown.
	DateString() string
	WorkShift() Shift
	// Kind is the entry type, or "" when the entry has none.
	Kind() EntryType
	// SearchFields are the entry's own free-text searchable values.
	SearchFields() []string
}

// =============================================================================
// MILEAGE ENTRY
// =============================================================================

// MileageEntry is an odometer reading with photo evidence.
// Immutable once stored.
type MileageEntry struct {
	ID          EntryID          `json:"id"`
	RiderID     UserID           `json:"rider_id"`
	Type        EntryType        `json:"type"`
	Shift       Shift            `json:"shift"`
	Kilometrage int64            `json:"kilometrage"`
	Amount      *decimal.Decimal `json:"amount,omitempty"` // CDF, fuel entries only
	Photo       string           `json:"photo"`
	Timestamp   int64            `json:"timestamp"`
	Date        string           `json:"date"`
}

func (e MileageEntry) Key() EntryID           { return e.ID }
func (e MileageEntry) Owner() UserID          { return e.RiderID }
func (e MileageEntry) Stamp() int64           { return e.Timestamp }
func (e MileageEntry) DateString() string     { return e.Date }
func (e MileageEntry) WorkShift() Shift       { return e.Shift }
func (e MileageEntry) Kind() EntryType        { return e.Type }
func (e MileageEntry) SearchFields() []string { return nil }

// Validate checks a submitted reading. Nothing is written when it fails.
func (e MileageEntry) Validate() error {
	if e.RiderID == "" {
		return &ValidationError{Field: "rider_id", Message: "is required"}
	}
	if !e.Type.Valid() {
		return &ValidationError{Field: "type", Message: "must be ouverture, fermeture or carburant"}
	}
	if !e.Shift.Valid() {
		return &ValidationError{Field: "shift", Message: "must be 1 or 2"}
	}
	if e.Kilometrage < 0 {
		return &ValidationError{Field: "kilometrage", Message: "must not be negative"}
	}
	if strings.TrimSpace(e.Photo) == "" {
		return &ValidationError{Field: "photo", Message: "is required"}
	}
	if e.Amount != nil {
		if e.Type != EntryFuel {
			return &ValidationError{Field: "amount", Message: "only allowed on carburant entries"}
		}
		if e.Amount.IsNegative() {
			return &ValidationError{Field: "amount", Message: "must not be negative"}
		}
	}
	return nil
}

// =============================================================================
// EQUIPMENT ENTRY
// =============================================================================

// EquipmentEntry is a per-shift checklist with photo evidence.
type EquipmentEntry struct {
	ID                    EntryID          `json:"id"`
	RiderID               UserID           `json:"rider_id"`
	MotorcycleMatricule   string           `json:"motorcycle_matricule"`
	PhoneID               string           `json:"phone_id"`
	HasHelmet             bool             `json:"has_helmet"`
	HasMotorcycleDocument bool             `json:"has_motorcycle_document"`
	HasExchangeMoney      bool             `json:"has_exchange_money"`
	ExchangeMoneyUSD      *decimal.Decimal `json:"exchange_money_usd,omitempty"`
	ExchangeMoneyCDF      *decimal.Decimal `json:"exchange_money_cdf,omitempty"`
	MatriculationPhoto    string           `json:"matriculation_photo"`
	MileagePhoto          string           `json:"mileage_photo"`
	Shift                 Shift            `json:"shift"`
	Timestamp             int64            `json:"timestamp"`
	Date                  string           `json:"date"`
}

func (e EquipmentEntry) Key() EntryID       { return e.ID }
func (e EquipmentEntry) Owner() UserID      { return e.RiderID }
func (e EquipmentEntry) Stamp() int64       { return e.Timestamp }
func (e EquipmentEntry) DateString() string { return e.Date }
func (e EquipmentEntry) WorkShift() Shift   { return e.Shift }
func (e EquipmentEntry) Kind() EntryType    { return "" }

func (e EquipmentEntry) SearchFields() []string {
	return []string{e.MotorcycleMatricule, e.PhoneID}
}

// Validate checks a submitted checklist. Nothing is written when it fails.
func (e EquipmentEntry) Validate() error {
	if e.RiderID == "" {
		return &ValidationError{Field: "rider_id", Message: "is required"}
	}
	if strings.TrimSpace(e.MotorcycleMatricule) == "" {
		return &ValidationError{Field: "motorcycle_matricule", Message: "is required"}
	}
	if strings.TrimSpace(e.PhoneID) == "" {
		return &ValidationError{Field: "phone_id", Message: "is required"}
	}
	if strings.TrimSpace(e.MatriculationPhoto) == "" {
		return &ValidationError{Field: "matriculation_photo", Message: "is required"}
	}
	if strings.TrimSpace(e.MileagePhoto) == "" {
		return &ValidationError{Field: "mileage_photo", Message: "is required"}
	}
	if !e.Shift.Valid() {
		return &ValidationError{Field: "shift", Message: "must be 1 or 2"}
	}
	amounts := []struct {
		field string
		value *decimal.Decimal
	}{
		{"exchange_money_usd", e.ExchangeMoneyUSD},
		{"exchange_money_cdf", e.ExchangeMoneyCDF},
	}
	for _, a := range amounts {
		if a.value == nil {
			continue
		}
		if !e.HasExchangeMoney {
			return &ValidationError{Field: a.field, Message: "only allowed when has_exchange_money is set"}
		}
		if a.value.IsNegative() {
			return &ValidationError{Field: a.field, Message: "must not be negative"}
		}
	}
	return nil
}
