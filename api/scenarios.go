/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates riders and, for the
	busier ones, a day of mileage readings and equipment checks.

AVAILABLE SCENARIOS:

	standard-fleet: The three Kinshasa riders, no entries yet
	busy-day:       Same riders with a full day of readings and checks,
	                plus an entry whose rider was deleted
	empty:          No data at all (only the bootstrap admin)

HOW SCENARIOS WORK:
 1. Reset database (clear all data, sessions included)
 2. Re-create the bootstrap admin from configuration
 3. Create riders with the demo password
 4. Add entries stamped relative to "today" in the configured timezone

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "busy-day"}

NOTE:

	Scenarios reset the database, which also ends every session including
	the caller's. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler and helpers
  - cmd/server/main.go: seed command
*/
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/fleetlog/auth"
	"github.com/warp/fleetlog/fleet"
)

// DemoPassword is the password of every scenario rider.
const DemoPassword = "rider123"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "standard-fleet",
		Name:        "Standard Fleet",
		Description: "Three Kinshasa riders (KIN-001 to KIN-003), password rider123",
	},
	{
		ID:          "busy-day",
		Name:        "Busy Day",
		Description: "Standard fleet with a full day of readings, fuel stops and equipment checks",
	},
	{
		ID:          "empty",
		Name:        "Empty",
		Description: "No riders and no entries",
	},
}

var demoRiders = []struct {
	id, name, email, matricule, photo string
}{
	{"1", "Jean-Claude Mulumba", "jc.mulumba@shoppi.cd", "KIN-001", "https://images.unsplash.com/photo-1507003211169-0a1dd7228f2d?w=100&h=100&fit=crop&crop=face"},
	{"2", "Marie Kabila", "marie.kabila@shoppi.cd", "KIN-002", "https://images.unsplash.com/photo-1494790108755-2616b612b814?w=100&h=100&fit=crop&crop=face"},
	{"3", "Pascal Mokoko", "pascal.mokoko@shoppi.cd", "KIN-003", "https://images.unsplash.com/photo-1472099645785-5658abf4ff4e?w=100&h=100&fit=crop&crop=face"},
}

// ScenarioIDs lists the ids Seed accepts.
func ScenarioIDs() []string {
	ids := make([]string, len(scenarios))
	for i, s := range scenarios {
		ids[i] = s.ID
	}
	return ids
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.Seed(r.Context(), req.ScenarioID); err != nil {
		respondError(w, "Failed to load scenario", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// Seed resets the store and loads the scenario with the given id. The reset,
// the bootstrap admin and the scenario data commit together: if loading
// fails, the previous data and sessions are left as they were.
func (h *Handler) Seed(ctx context.Context, id string) error {
	var load func(ctx context.Context, tx fleet.Store) error
	switch id {
	case "standard-fleet":
		load = h.loadStandardFleet
	case "busy-day":
		load = h.loadBusyDay
	case "empty":
		load = func(context.Context, fleet.Store) error { return nil }
	default:
		return &fleet.ValidationError{Field: "scenario_id", Message: fmt.Sprintf("unknown scenario %q", id)}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	err := h.Store.WithTx(ctx, func(tx fleet.Store) error {
		if err := tx.Reset(ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		if h.Auth != nil {
			if err := h.Auth.EnsureAdminIn(ctx, tx); err != nil {
				return err
			}
		}
		return load(ctx, tx)
	})
	if err != nil {
		return fmt.Errorf("load %s: %w", id, err)
	}

	h.currentScenario = id
	log.Printf("[Scenarios] Loaded %s", id)
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadStandardFleet(ctx context.Context, tx fleet.Store) error {
	hash, err := auth.HashPassword(DemoPassword)
	if err != nil {
		return err
	}

	now := h.Now().UTC()
	for _, d := range demoRiders {
		u := fleet.NewRider(fleet.UserID(d.id), d.name, d.email, d.matricule)
		u.Photo = d.photo
		u.PasswordHash = hash
		u.CreatedAt = now
		u.UpdatedAt = now
		if err := tx.SaveUser(ctx, u); err != nil {
			return fmt.Errorf("rider %s: %w", d.id, err)
		}
	}
	return nil
}

func (h *Handler) loadBusyDay(ctx context.Context, tx fleet.Store) error {
	if err := h.loadStandardFleet(ctx, tx); err != nil {
		return err
	}

	today := h.today()
	at := func(hour, minute int) int64 {
		t := time.Date(today.Time.Year(), today.Time.Month(), today.Time.Day(), hour, minute, 0, 0, h.Location)
		return fleet.ToMillis(t)
	}
	date := today.String()
	yesterday := today.Time.AddDate(0, 0, -1).Format(fleet.DayLayout)
	amount := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}

	mileage := []fleet.MileageEntry{
		{RiderID: "1", Type: fleet.EntryOpening, Shift: fleet.ShiftMorning, Kilometrage: 12450, Timestamp: at(7, 45)},
		{RiderID: "1", Type: fleet.EntryFuel, Shift: fleet.ShiftMorning, Kilometrage: 12510, Amount: amount("25000"), Timestamp: at(10, 20)},
		{RiderID: "1", Type: fleet.EntryClosing, Shift: fleet.ShiftMorning, Kilometrage: 12580, Timestamp: at(13, 5)},
		{RiderID: "2", Type: fleet.EntryOpening, Shift: fleet.ShiftAfternoon, Kilometrage: 8320, Timestamp: at(13, 30)},
		{RiderID: "2", Type: fleet.EntryFuel, Shift: fleet.ShiftAfternoon, Kilometrage: 8365, Amount: amount("18500.50"), Timestamp: at(15, 10)},
		{RiderID: "3", Type: fleet.EntryOpening, Shift: fleet.ShiftMorning, Kilometrage: 4100, Timestamp: at(8, 0)},
		// Rider 99 was deleted; the entry stays and shows as "Rider inconnu"
		{RiderID: "99", Type: fleet.EntryClosing, Shift: fleet.ShiftAfternoon, Kilometrage: 20010, Timestamp: at(9, 15)},
		// Imported legacy entry without a timestamp
		{RiderID: "3", Type: fleet.EntryClosing, Shift: fleet.ShiftAfternoon, Kilometrage: 4095, Date: yesterday},
	}
	for i := range mileage {
		e := &mileage[i]
		e.ID = fleet.EntryID(fmt.Sprintf("busy-m%d", i+1))
		e.Photo = "data:image/jpeg;base64,demo"
		if e.Date == "" {
			e.Date = date
		}
		if err := tx.InsertMileage(ctx, *e); err != nil {
			return fmt.Errorf("mileage %s: %w", e.ID, err)
		}
	}

	equipment := []fleet.EquipmentEntry{
		{RiderID: "1", MotorcycleMatricule: "MOTO-4521", PhoneID: "PH-001", HasHelmet: true, HasMotorcycleDocument: true,
			HasExchangeMoney: true, ExchangeMoneyUSD: amount("20"), ExchangeMoneyCDF: amount("50000"), Shift: fleet.ShiftMorning, Timestamp: at(7, 40)},
		{RiderID: "2", MotorcycleMatricule: "MOTO-3318", PhoneID: "PH-002", HasHelmet: true, Shift: fleet.ShiftAfternoon, Timestamp: at(13, 25)},
		{RiderID: "3", MotorcycleMatricule: "MOTO-7702", PhoneID: "PH-003", HasMotorcycleDocument: true, Shift: fleet.ShiftMorning, Timestamp: at(7, 55)},
	}
	for i := range equipment {
		e := &equipment[i]
		e.ID = fleet.EntryID(fmt.Sprintf("busy-q%d", i+1))
		e.MatriculationPhoto = "data:image/jpeg;base64,demo"
		e.MileagePhoto = "data:image/jpeg;base64,demo"
		e.Date = date
		if err := tx.InsertEquipment(ctx, *e); err != nil {
			return fmt.Errorf("equipment %s: %w", e.ID, err)
		}
	}
	return nil
}
