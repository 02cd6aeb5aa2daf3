/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model (fleet) from the external API contract: password hashes
  never leave the server, and entries carry their resolved rider name.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

DEGRADED READS:
  List and dashboard responses carry "degraded": true when the store could
  not be read. The payload is then empty rather than an error page.

VALIDATION:
  Validation is done in the domain (Validate methods) and handlers, not in
  DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/fleetlog/auth"
	"github.com/warp/fleetlog/fleet"
)

// =============================================================================
// USERS & AUTH
// =============================================================================

// UserDTO represents a rider or admin in API responses.
type UserDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Photo     string `json:"photo,omitempty"`
	Matricule string `json:"matricule,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionDTO is returned by login and /api/auth/me.
type SessionDTO struct {
	Token     string  `json:"token,omitempty"`
	User      UserDTO `json:"user"`
	Language  string  `json:"language"`
	ExpiresAt string  `json:"expires_at"`
}

type LanguageRequest struct {
	Language string `json:"language"`
}

// RiderRequest creates or updates a rider. On update an empty password
// keeps the current one.
type RiderRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Matricule       string `json:"matricule"`
	Photo           string `json:"photo"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// AdminRequest creates or updates an admin.
type AdminRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// =============================================================================
// ENTRIES
// =============================================================================

// MileageEntryDTO is a mileage entry joined with its rider.
type MileageEntryDTO struct {
	ID             string           `json:"id"`
	RiderID        string           `json:"rider_id"`
	RiderName      string           `json:"rider_name"`
	RiderMatricule string           `json:"rider_matricule,omitempty"`
	Type           string           `json:"type"`
	Shift          int              `json:"shift"`
	Kilometrage    int64            `json:"kilometrage"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Photo          string           `json:"photo"`
	Timestamp      int64            `json:"timestamp"`
	Date           string           `json:"date"`
}

// EquipmentEntryDTO is an equipment check joined with its rider.
type EquipmentEntryDTO struct {
	ID                    string           `json:"id"`
	RiderID               string           `json:"rider_id"`
	RiderName             string           `json:"rider_name"`
	RiderMatricule        string           `json:"rider_matricule,omitempty"`
	MotorcycleMatricule   string           `json:"motorcycle_matricule"`
	PhoneID               string           `json:"phone_id"`
	HasHelmet             bool             `json:"has_helmet"`
	HasMotorcycleDocument bool             `json:"has_motorcycle_document"`
	HasExchangeMoney      bool             `json:"has_exchange_money"`
	ExchangeMoneyUSD      *decimal.Decimal `json:"exchange_money_usd,omitempty"`
	ExchangeMoneyCDF      *decimal.Decimal `json:"exchange_money_cdf,omitempty"`
	MatriculationPhoto    string           `json:"matriculation_photo"`
	MileagePhoto          string           `json:"mileage_photo"`
	Shift                 int              `json:"shift"`
	Timestamp             int64            `json:"timestamp"`
	Date                  string           `json:"date"`
}

// CreateMileageRequest is submitted by a rider for themselves.
// A zero timestamp means "now".
type CreateMileageRequest struct {
	Type        string           `json:"type"`
	Shift       int              `json:"shift"`
	Kilometrage int64            `json:"kilometrage"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Photo       string           `json:"photo"`
	Timestamp   int64            `json:"timestamp,omitempty"`
}

type CreateEquipmentRequest struct {
	MotorcycleMatricule   string           `json:"motorcycle_matricule"`
	PhoneID               string           `json:"phone_id"`
	HasHelmet             bool             `json:"has_helmet"`
	HasMotorcycleDocument bool             `json:"has_motorcycle_document"`
	HasExchangeMoney      bool             `json:"has_exchange_money"`
	ExchangeMoneyUSD      *decimal.Decimal `json:"exchange_money_usd,omitempty"`
	ExchangeMoneyCDF      *decimal.Decimal `json:"exchange_money_cdf,omitempty"`
	MatriculationPhoto    string           `json:"matriculation_photo"`
	MileagePhoto          string           `json:"mileage_photo"`
	Shift                 int              `json:"shift"`
	Timestamp             int64            `json:"timestamp,omitempty"`
}

// =============================================================================
// AGGREGATES
// =============================================================================

type MileageSummaryDTO struct {
	Count              int             `json:"count"`
	TotalKilometrage   int64           `json:"total_kilometrage"`
	ActiveRiders       int             `json:"active_riders"`
	AverageKilometrage decimal.Decimal `json:"average_kilometrage"`
	TotalFuelAmount    decimal.Decimal `json:"total_fuel_amount"`
	ByType             map[string]int  `json:"by_type"`
}

type EquipmentSummaryDTO struct {
	Count             int             `json:"count"`
	ActiveRiders      int             `json:"active_riders"`
	WithHelmet        int             `json:"with_helmet"`
	WithDocument      int             `json:"with_document"`
	WithExchangeMoney int             `json:"with_exchange_money"`
	TotalExchangeUSD  decimal.Decimal `json:"total_exchange_usd"`
	TotalExchangeCDF  decimal.Decimal `json:"total_exchange_cdf"`
}

type MileageListResponse struct {
	Entries  []MileageEntryDTO `json:"entries"`
	Summary  MileageSummaryDTO `json:"summary"`
	Degraded bool              `json:"degraded,omitempty"`
}

type EquipmentListResponse struct {
	Entries  []EquipmentEntryDTO `json:"entries"`
	Summary  EquipmentSummaryDTO `json:"summary"`
	Degraded bool                `json:"degraded,omitempty"`
}

// RiderStatsDTO is one row of the dashboard rider table.
type RiderStatsDTO struct {
	UserDTO
	TotalEntries     int    `json:"total_entries"`
	LastEntry        *int64 `json:"last_entry"`
	TotalKilometrage int64  `json:"total_kilometrage"`
}

type DashboardResponse struct {
	Date                 string          `json:"date"`
	TotalRiders          int             `json:"total_riders"`
	TotalEntries         int             `json:"total_entries"`
	TodayEntries         int             `json:"today_entries"`
	TodayEquipmentChecks int             `json:"today_equipment_checks"`
	ActiveRidersToday    int             `json:"active_riders_today"`
	Riders               []RiderStatsDTO `json:"riders"`
	Degraded             bool            `json:"degraded,omitempty"`
}

// RiderSummaryResponse is the rider home screen.
type RiderSummaryResponse struct {
	Mileage       MileageSummaryDTO   `json:"mileage"`
	Equipment     EquipmentSummaryDTO `json:"equipment"`
	TodayEntries  int                 `json:"today_entries"`
	LastEntry     *int64              `json:"last_entry"`
	RecentEntries []MileageEntryDTO   `json:"recent_entries"`
	Degraded      bool                `json:"degraded,omitempty"`
}

// =============================================================================
// AUDIT, COLLECTIONS, SCENARIOS, ERRORS
// =============================================================================

type AuditEntryDTO struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	Table     string         `json:"table"`
	RecordID  string         `json:"record_id"`
	OldValues map[string]any `json:"old_values,omitempty"`
	NewValues map[string]any `json:"new_values,omitempty"`
	CreatedAt string         `json:"created_at"`
}

type AuditListResponse struct {
	Entries  []AuditEntryDTO `json:"entries"`
	Degraded bool            `json:"degraded,omitempty"`
}

type UserListResponse struct {
	Users    []UserDTO `json:"users"`
	Degraded bool      `json:"degraded,omitempty"`
}

type ImportResponse struct {
	Collection string `json:"collection"`
	Imported   int    `json:"imported"`
	Skipped    int    `json:"skipped"`
}

// ScenarioDTO represents an available demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toUserDTO(u fleet.User) UserDTO {
	dto := UserDTO{
		ID:        string(u.ID),
		Name:      u.Name,
		Email:     u.Email,
		Role:      string(u.Role),
		Photo:     u.Photo,
		Matricule: u.Matricule(),
	}
	if !u.CreatedAt.IsZero() {
		dto.CreatedAt = u.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toSessionDTO(token string, c *auth.Context) SessionDTO {
	return SessionDTO{
		Token:     token,
		User:      toUserDTO(c.User),
		Language:  string(c.Language()),
		ExpiresAt: c.Session.ExpiresAt.Format(time.RFC3339),
	}
}

func toMileageDTOs(entries []fleet.Enriched[fleet.MileageEntry]) []MileageEntryDTO {
	dtos := make([]MileageEntryDTO, len(entries))
	for i, en := range entries {
		e := en.Entry
		dtos[i] = MileageEntryDTO{
			ID:             string(e.ID),
			RiderID:        string(e.RiderID),
			RiderName:      en.RiderName,
			RiderMatricule: en.RiderMatricule,
			Type:           string(e.Type),
			Shift:          int(e.Shift),
			Kilometrage:    e.Kilometrage,
			Amount:         e.Amount,
			Photo:          e.Photo,
			Timestamp:      e.Timestamp,
			Date:           e.Date,
		}
	}
	return dtos
}

func toEquipmentDTOs(entries []fleet.Enriched[fleet.EquipmentEntry]) []EquipmentEntryDTO {
	dtos := make([]EquipmentEntryDTO, len(entries))
	for i, en := range entries {
		e := en.Entry
		dtos[i] = EquipmentEntryDTO{
			ID:                    string(e.ID),
			RiderID:               string(e.RiderID),
			RiderName:             en.RiderName,
			RiderMatricule:        en.RiderMatricule,
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
			Timestamp:             e.Timestamp,
			Date:                  e.Date,
		}
	}
	return dtos
}

func toMileageSummaryDTO(s fleet.MileageSummary) MileageSummaryDTO {
	byType := make(map[string]int, len(s.ByType))
	for t, n := range s.ByType {
		byType[string(t)] = n
	}
	return MileageSummaryDTO{
		Count:              s.Count,
		TotalKilometrage:   s.TotalKilometrage,
		ActiveRiders:       s.ActiveRiderCount,
		AverageKilometrage: s.AverageKilometrage,
		TotalFuelAmount:    s.TotalFuelAmount,
		ByType:             byType,
	}
}

func toEquipmentSummaryDTO(s fleet.EquipmentSummary) EquipmentSummaryDTO {
	return EquipmentSummaryDTO{
		Count:             s.Count,
		ActiveRiders:      s.ActiveRiderCount,
		WithHelmet:        s.WithHelmet,
		WithDocument:      s.WithDocument,
		WithExchangeMoney: s.WithExchangeMoney,
		TotalExchangeUSD:  s.TotalExchangeUSD,
		TotalExchangeCDF:  s.TotalExchangeCDF,
	}
}

func toAuditDTO(e fleet.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:        e.ID,
		ActorID:   string(e.ActorID),
		Action:    string(e.Action),
		Table:     e.Table,
		RecordID:  e.RecordID,
		OldValues: e.OldValues,
		NewValues: e.NewValues,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}
