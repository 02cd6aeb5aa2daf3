/*
handlers.go - HTTP API handlers for the rider mileage tracker

PURPOSE:
  Exposes the fleet domain via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic (fleet, auth, report).

ENDPOINTS:
  Auth:
    POST   /api/auth/login              Open a session
    POST   /api/auth/logout             Close the session
    GET    /api/auth/me                 Current caller
    PUT    /api/auth/language           Switch fr/en for this session

  Rider (the caller acting for themselves):
    GET    /api/me/mileage?limit=5      Recent own entries
    POST   /api/me/mileage              Log an odometer reading (riders only)
    POST   /api/me/equipment            Log an equipment check (riders only)
    GET    /api/me/summary              Home screen numbers

  Admin:
    GET    /api/dashboard?q=            Totals + riders with stats
    *      /api/riders, /api/admins     User management
    GET    /api/mileage, /api/equipment Filtered entry lists
    GET    /api/audit                   Who changed what

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Database access (any fleet.Store)
  - Auth: Sessions and passwords
  - Location: Timezone that defines "today" and calendar days

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (filter, aggregate, store)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Bad credentials, missing or expired session
  - 403: Admin-only endpoint
  - 404: Resource not found
  - 409: Conflict (duplicate email)
  - 500: Internal errors
  Reads that feed a view (lists, dashboard, exports) never 500 on a store
  failure: they log it and answer with an empty, degraded result.

SEE ALSO:
  - dto.go: Request/response data structures
  - middleware.go: Authentication
  - reports.go, collections.go, scenarios.go: Remaining endpoints
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/warp/fleetlog/auth"
	"github.com/warp/fleetlog/fleet"
)

// recentLimit is how many entries the rider home screen shows.
const recentLimit = 5

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    fleet.Store
	Auth     *auth.Authenticator
	Location *time.Location
	Now      func() time.Time

	// Track currently loaded scenario
	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a new handler. A nil loc means UTC.
func NewHandler(store fleet.Store, authn *auth.Authenticator, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		Store:    store,
		Auth:     authn,
		Location: loc,
		Now:      time.Now,
	}
}

func (h *Handler) today() fleet.Day {
	return fleet.DayOfTime(h.Now(), h.Location)
}

// stamp returns the timestamp and calendar date stored on a new entry.
// A non-positive ts means now.
func (h *Handler) stamp(ts int64) (int64, string) {
	t := h.Now()
	if ts > 0 {
		t = time.UnixMilli(ts)
	}
	return fleet.ToMillis(t), fleet.DayOfTime(t, h.Location).String()
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// Login checks credentials and returns a session token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, c, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, "Login failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toSessionDTO(token, c))
}

// Logout deletes the caller's session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(r.Context(), caller(r)); err != nil {
		respondError(w, "Failed to log out", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// Me returns the caller and their session language.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toSessionDTO("", caller(r)))
}

// SetLanguage switches the session language.
func (h *Handler) SetLanguage(w http.ResponseWriter, r *http.Request) {
	var req LanguageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c := caller(r)
	lang := fleet.Language(strings.ToLower(strings.TrimSpace(req.Language)))
	if err := h.Auth.SetLanguage(r.Context(), c, lang); err != nil {
		respondError(w, "Failed to set language", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO("", c))
}

// =============================================================================
// RIDER HANDLERS - The caller acting for themselves
// =============================================================================

// ListMyMileage returns the caller's own entries, newest first.
// ?limit=N (default 5, 0 = all).
func (h *Handler) ListMyMileage(w http.ResponseWriter, r *http.Request) {
	limit := recentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, "Invalid limit", &fleet.ValidationError{Field: "limit", Message: "must be a non-negative integer"})
			return
		}
		limit = n
	}

	c := caller(r)
	entries, err := h.Store.ListMileage(r.Context(), c.User.ID)
	if err != nil {
		logDegraded("list own mileage", err)
		writeJSON(w, http.StatusOK, MileageListResponse{
			Entries:  []MileageEntryDTO{},
			Summary:  toMileageSummaryDTO(fleet.Summarize(nil)),
			Degraded: true,
		})
		return
	}

	enriched := fleet.Apply(entries, fleet.NewDirectory([]fleet.User{c.User}), fleet.Filter{}, h.Location)
	if limit > 0 && len(enriched) > limit {
		enriched = enriched[:limit]
	}
	writeJSON(w, http.StatusOK, MileageListResponse{
		Entries: toMileageDTOs(enriched),
		Summary: toMileageSummaryDTO(fleet.Summarize(entries)),
	})
}

// CreateMyMileage records an odometer reading for the caller.
func (h *Handler) CreateMyMileage(w http.ResponseWriter, r *http.Request) {
	var req CreateMileageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c := caller(r)
	ts, date := h.stamp(req.Timestamp)
	e := fleet.MileageEntry{
		ID:          fleet.NewEntryID(),
		RiderID:     c.User.ID,
		Type:        fleet.EntryType(strings.ToLower(strings.TrimSpace(req.Type))),
		Shift:       fleet.Shift(req.Shift),
		Kilometrage: req.Kilometrage,
		Amount:      req.Amount,
		Photo:       req.Photo,
		Timestamp:   ts,
		Date:        date,
	}
	if err := e.Validate(); err != nil {
		respondError(w, "Invalid mileage entry", err)
		return
	}

	if err := h.Store.InsertMileage(r.Context(), e); err != nil {
		respondError(w, "Failed to save mileage entry", err)
		return
	}

	enriched := fleet.Apply([]fleet.MileageEntry{e}, fleet.NewDirectory([]fleet.User{c.User}), fleet.Filter{}, h.Location)
	writeJSON(w, http.StatusCreated, toMileageDTOs(enriched)[0])
}

// CreateMyEquipment records an equipment check for the caller.
func (h *Handler) CreateMyEquipment(w http.ResponseWriter, r *http.Request) {
	var req CreateEquipmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c := caller(r)
	ts, date := h.stamp(req.Timestamp)
	e := fleet.EquipmentEntry{
		ID:                    fleet.NewEntryID(),
		RiderID:               c.User.ID,
		MotorcycleMatricule:   strings.TrimSpace(req.MotorcycleMatricule),
		PhoneID:               strings.TrimSpace(req.PhoneID),
		HasHelmet:             req.HasHelmet,
		HasMotorcycleDocument: req.HasMotorcycleDocument,
		HasExchangeMoney:      req.HasExchangeMoney,
		ExchangeMoneyUSD:      req.ExchangeMoneyUSD,
		ExchangeMoneyCDF:      req.ExchangeMoneyCDF,
		MatriculationPhoto:    req.MatriculationPhoto,
		MileagePhoto:          req.MileagePhoto,
		Shift:                 fleet.Shift(req.Shift),
		Timestamp:             ts,
		Date:                  date,
	}
	if err := e.Validate(); err != nil {
		respondError(w, "Invalid equipment entry", err)
		return
	}

	if err := h.Store.InsertEquipment(r.Context(), e); err != nil {
		respondError(w, "Failed to save equipment entry", err)
		return
	}

	enriched := fleet.Apply([]fleet.EquipmentEntry{e}, fleet.NewDirectory([]fleet.User{c.User}), fleet.Filter{}, h.Location)
	writeJSON(w, http.StatusCreated, toEquipmentDTOs(enriched)[0])
}

// MySummary returns the rider home screen numbers.
func (h *Handler) MySummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c := caller(r)
	degraded := false

	mileage, err := h.Store.ListMileage(ctx, c.User.ID)
	if err != nil {
		logDegraded("list own mileage", err)
		mileage, degraded = nil, true
	}
	equipment, err := h.Store.ListEquipment(ctx, c.User.ID)
	if err != nil {
		logDegraded("list own equipment", err)
		equipment, degraded = nil, true
	}

	recent := fleet.Apply(mileage, fleet.NewDirectory([]fleet.User{c.User}), fleet.Filter{}, h.Location)
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}

	writeJSON(w, http.StatusOK, RiderSummaryResponse{
		Mileage:       toMileageSummaryDTO(fleet.Summarize(mileage)),
		Equipment:     toEquipmentSummaryDTO(fleet.SummarizeEquipment(equipment)),
		TodayEntries:  fleet.CountOnDay(mileage, h.today(), h.Location),
		LastEntry:     fleet.StatsFor(mileage, c.User.ID).LastEntry,
		RecentEntries: toMileageDTOs(recent),
		Degraded:      degraded,
	})
}

// =============================================================================
// DASHBOARD
// =============================================================================

// Dashboard returns fleet totals and the rider table, optionally searched with ?q=.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	degraded := false

	riders, err := h.Store.ListUsers(ctx, fleet.RoleRider)
	if err != nil {
		logDegraded("list riders", err)
		riders, degraded = nil, true
	}
	mileage, err := h.Store.ListMileage(ctx, "")
	if err != nil {
		logDegraded("list mileage", err)
		mileage, degraded = nil, true
	}
	equipment, err := h.Store.ListEquipment(ctx, "")
	if err != nil {
		logDegraded("list equipment", err)
		equipment, degraded = nil, true
	}

	today := h.today()
	todays := fleet.Apply(mileage, fleet.NewDirectory(riders), fleet.Filter{Day: &today}, h.Location)

	matched := fleet.SearchRiders(riders, r.URL.Query().Get("q"))
	rows := make([]RiderStatsDTO, len(matched))
	for i, u := range matched {
		st := fleet.StatsFor(mileage, u.ID)
		rows[i] = RiderStatsDTO{
			UserDTO:          toUserDTO(u),
			TotalEntries:     st.TotalEntries,
			LastEntry:        st.LastEntry,
			TotalKilometrage: st.TotalKilometrage,
		}
	}

	writeJSON(w, http.StatusOK, DashboardResponse{
		Date:                 today.String(),
		TotalRiders:          len(riders),
		TotalEntries:         len(mileage),
		TodayEntries:         len(todays),
		TodayEquipmentChecks: fleet.CountOnDay(equipment, today, h.Location),
		ActiveRidersToday:    fleet.ActiveRiderCount(fleet.Entries(todays)),
		Riders:               rows,
		Degraded:             degraded,
	})
}

// =============================================================================
// RIDER MANAGEMENT
// =============================================================================

// ListRiders returns riders ordered by name, optionally searched with ?q=.
func (h *Handler) ListRiders(w http.ResponseWriter, r *http.Request) {
	h.listUsers(w, r, fleet.RoleRider)
}

// GetRider returns a single rider.
func (h *Handler) GetRider(w http.ResponseWriter, r *http.Request) {
	u, ok := h.lookupUser(w, r, fleet.RoleRider)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(*u))
}

// CreateRider creates a rider with a password.
func (h *Handler) CreateRider(w http.ResponseWriter, r *http.Request) {
	var req RiderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	hash, err := auth.HashNewPassword(req.Password, req.ConfirmPassword)
	if err != nil {
		respondError(w, "Invalid password", err)
		return
	}

	now := h.Now().UTC()
	u := fleet.NewRider(fleet.NewUserID(), strings.TrimSpace(req.Name), req.Email, req.Matricule)
	u.Photo = req.Photo
	u.PasswordHash = hash
	u.CreatedAt = now
	u.UpdatedAt = now

	if err := h.saveUser(r.Context(), caller(r), nil, u); err != nil {
		respondError(w, "Failed to create rider", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

// UpdateRider replaces a rider's profile. An empty password keeps the current one.
func (h *Handler) UpdateRider(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.lookupUser(w, r, fleet.RoleRider)
	if !ok {
		return
	}

	var req RiderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u := *existing
	u.Name = strings.TrimSpace(req.Name)
	u.Email = fleet.NormalizeEmail(req.Email)
	u.Photo = req.Photo
	u.Rider = &fleet.RiderProfile{Matricule: strings.TrimSpace(req.Matricule)}
	if !h.applyPassword(w, &u, req.Password, req.ConfirmPassword) {
		return
	}
	u.UpdatedAt = h.Now().UTC()

	if err := h.saveUser(r.Context(), caller(r), existing, u); err != nil {
		respondError(w, "Failed to update rider", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

// DeleteRider removes a rider. Their entries stay and show as "Rider inconnu".
func (h *Handler) DeleteRider(w http.ResponseWriter, r *http.Request) {
	h.deleteUser(w, r, fleet.RoleRider)
}

// RiderMileage returns one rider's history with the usual filters.
func (h *Handler) RiderMileage(w http.ResponseWriter, r *http.Request) {
	u, ok := h.lookupUser(w, r, fleet.RoleRider)
	if !ok {
		return
	}

	f, err := parseFilter(r)
	if err != nil {
		respondError(w, "Invalid filter", err)
		return
	}
	f.RiderID = u.ID

	entries, degraded := h.loadMileage(r.Context(), f)
	writeJSON(w, http.StatusOK, MileageListResponse{
		Entries:  toMileageDTOs(entries),
		Summary:  toMileageSummaryDTO(fleet.Summarize(fleet.Entries(entries))),
		Degraded: degraded,
	})
}

// =============================================================================
// ADMIN MANAGEMENT
// =============================================================================

func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	h.listUsers(w, r, fleet.RoleAdmin)
}

// CreateAdmin creates another administrator.
func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req AdminRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	hash, err := auth.HashNewPassword(req.Password, req.ConfirmPassword)
	if err != nil {
		respondError(w, "Invalid password", err)
		return
	}

	now := h.Now().UTC()
	u := fleet.NewAdmin(fleet.NewUserID(), strings.TrimSpace(req.Name), req.Email)
	u.PasswordHash = hash
	u.CreatedAt = now
	u.UpdatedAt = now

	if err := h.saveUser(r.Context(), caller(r), nil, u); err != nil {
		respondError(w, "Failed to create admin", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

// UpdateAdmin changes an admin's name, email or password.
func (h *Handler) UpdateAdmin(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.lookupUser(w, r, fleet.RoleAdmin)
	if !ok {
		return
	}

	var req AdminRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	u := *existing
	u.Name = strings.TrimSpace(req.Name)
	u.Email = fleet.NormalizeEmail(req.Email)
	if !h.applyPassword(w, &u, req.Password, req.ConfirmPassword) {
		return
	}
	u.UpdatedAt = h.Now().UTC()

	if err := h.saveUser(r.Context(), caller(r), existing, u); err != nil {
		respondError(w, "Failed to update admin", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

// DeleteAdmin removes another admin. An admin cannot delete themselves.
func (h *Handler) DeleteAdmin(w http.ResponseWriter, r *http.Request) {
	if fleet.UserID(chi.URLParam(r, "id")) == caller(r).User.ID {
		respondError(w, "Cannot delete yourself", &fleet.ValidationError{Field: "id", Message: "is the current admin"})
		return
	}
	h.deleteUser(w, r, fleet.RoleAdmin)
}

// =============================================================================
// USER HELPERS
// =============================================================================

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request, role fleet.Role) {
	users, err := h.Store.ListUsers(r.Context(), role)
	if err != nil {
		logDegraded("list "+string(role)+"s", err)
		writeJSON(w, http.StatusOK, UserListResponse{Users: []UserDTO{}, Degraded: true})
		return
	}

	matched := fleet.SearchRiders(users, r.URL.Query().Get("q"))
	dtos := make([]UserDTO, len(matched))
	for i, u := range matched {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, UserListResponse{Users: dtos})
}

// lookupUser loads the {id} user and checks its role, writing 404 otherwise.
func (h *Handler) lookupUser(w http.ResponseWriter, r *http.Request, role fleet.Role) (*fleet.User, bool) {
	id := fleet.UserID(chi.URLParam(r, "id"))

	u, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		respondError(w, "Failed to get user", err)
		return nil, false
	}
	if u == nil || u.Role != role {
		respondError(w, "User not found", fleet.ErrUserNotFound)
		return nil, false
	}
	return u, true
}

// applyPassword replaces the hash when a new password is given.
func (h *Handler) applyPassword(w http.ResponseWriter, u *fleet.User, password, confirm string) bool {
	if password == "" && confirm == "" {
		return true
	}
	hash, err := auth.HashNewPassword(password, confirm)
	if err != nil {
		respondError(w, "Invalid password", err)
		return false
	}
	u.PasswordHash = hash
	return true
}

// saveUser validates and upserts u, recording an audit entry in the same
// transaction. before is nil for creates.
func (h *Handler) saveUser(ctx context.Context, actor *auth.Context, before *fleet.User, u fleet.User) error {
	if err := u.Validate(); err != nil {
		return err
	}

	action := fleet.AuditCreate
	if before != nil {
		action = fleet.AuditUpdate
	}
	return h.Store.WithTx(ctx, func(tx fleet.Store) error {
		if err := tx.SaveUser(ctx, u); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, h.auditEntry(actor, action, fleet.TableUsers, string(u.ID), userValues(before), userValues(&u)))
	})
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request, role fleet.Role) {
	existing, ok := h.lookupUser(w, r, role)
	if !ok {
		return
	}

	ctx := r.Context()
	err := h.Store.WithTx(ctx, func(tx fleet.Store) error {
		if err := tx.DeleteUser(ctx, existing.ID); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, h.auditEntry(caller(r), fleet.AuditDelete, fleet.TableUsers, string(existing.ID), userValues(existing), nil))
	})
	if err != nil {
		respondError(w, "Failed to delete user", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": string(existing.ID)})
}

// =============================================================================
// ENTRY QUERIES
// =============================================================================

// ListMileage returns filtered mileage entries and their summary.
func (h *Handler) ListMileage(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		respondError(w, "Invalid filter", err)
		return
	}

	entries, degraded := h.loadMileage(r.Context(), f)
	writeJSON(w, http.StatusOK, MileageListResponse{
		Entries:  toMileageDTOs(entries),
		Summary:  toMileageSummaryDTO(fleet.Summarize(fleet.Entries(entries))),
		Degraded: degraded,
	})
}

// ListEquipment returns filtered equipment checks and their summary.
func (h *Handler) ListEquipment(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		respondError(w, "Invalid filter", err)
		return
	}

	entries, degraded := h.loadEquipment(r.Context(), f)
	writeJSON(w, http.StatusOK, EquipmentListResponse{
		Entries:  toEquipmentDTOs(entries),
		Summary:  toEquipmentSummaryDTO(fleet.SummarizeEquipment(fleet.Entries(entries))),
		Degraded: degraded,
	})
}

// DeleteMileage removes one mileage entry.
func (h *Handler) DeleteMileage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := fleet.EntryID(chi.URLParam(r, "id"))

	e, err := h.Store.GetMileage(ctx, id)
	if err != nil {
		respondError(w, "Failed to get entry", err)
		return
	}
	if e == nil {
		respondError(w, "Entry not found", fleet.ErrEntryNotFound)
		return
	}

	err = h.Store.WithTx(ctx, func(tx fleet.Store) error {
		if err := tx.DeleteMileage(ctx, id); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, h.auditEntry(caller(r), fleet.AuditDelete, fleet.TableMileageEntries, string(id), mileageValues(*e), nil))
	})
	if err != nil {
		respondError(w, "Failed to delete entry", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": string(id)})
}

// DeleteEquipment removes one equipment check.
func (h *Handler) DeleteEquipment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := fleet.EntryID(chi.URLParam(r, "id"))

	e, err := h.Store.GetEquipment(ctx, id)
	if err != nil {
		respondError(w, "Failed to get entry", err)
		return
	}
	if e == nil {
		respondError(w, "Entry not found", fleet.ErrEntryNotFound)
		return
	}

	err = h.Store.WithTx(ctx, func(tx fleet.Store) error {
		if err := tx.DeleteEquipment(ctx, id); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, h.auditEntry(caller(r), fleet.AuditDelete, fleet.TableEquipmentEntries, string(id), equipmentValues(*e), nil))
	})
	if err != nil {
		respondError(w, "Failed to delete entry", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": string(id)})
}

// loadMileage joins and filters mileage entries. degraded is true when the
// store could not be read; the result is then empty.
func (h *Handler) loadMileage(ctx context.Context, f fleet.Filter) ([]fleet.Enriched[fleet.MileageEntry], bool) {
	riders, err := h.Store.ListUsers(ctx, fleet.RoleRider)
	if err != nil {
		logDegraded("list riders", err)
		return []fleet.Enriched[fleet.MileageEntry]{}, true
	}
	entries, err := h.Store.ListMileage(ctx, f.RiderID)
	if err != nil {
		logDegraded("list mileage", err)
		return []fleet.Enriched[fleet.MileageEntry]{}, true
	}
	return fleet.Apply(entries, fleet.NewDirectory(riders), f, h.Location), false
}

func (h *Handler) loadEquipment(ctx context.Context, f fleet.Filter) ([]fleet.Enriched[fleet.EquipmentEntry], bool) {
	riders, err := h.Store.ListUsers(ctx, fleet.RoleRider)
	if err != nil {
		logDegraded("list riders", err)
		return []fleet.Enriched[fleet.EquipmentEntry]{}, true
	}
	entries, err := h.Store.ListEquipment(ctx, f.RiderID)
	if err != nil {
		logDegraded("list equipment", err)
		return []fleet.Enriched[fleet.EquipmentEntry]{}, true
	}
	return fleet.Apply(entries, fleet.NewDirectory(riders), f, h.Location), false
}

func parseFilter(r *http.Request) (fleet.Filter, error) {
	return ParseFilter(r.URL.Query())
}

// ParseFilter reads date, from, to, rider_id, q, type and shift.
func ParseFilter(q url.Values) (fleet.Filter, error) {
	var f fleet.Filter

	if raw := q.Get("date"); raw != "" {
		d, err := fleet.ParseDay(raw)
		if err != nil {
			return f, &fleet.ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}
		}
		f.Day = &d
	}

	from, to := q.Get("from"), q.Get("to")
	if from != "" || to != "" {
		var rng fleet.DayRange
		for _, b := range []struct {
			field, raw string
			dst        *fleet.Day
		}{{"from", from, &rng.From}, {"to", to, &rng.To}} {
			if b.raw == "" {
				continue
			}
			d, err := fleet.ParseDay(b.raw)
			if err != nil {
				return f, &fleet.ValidationError{Field: b.field, Message: "must be YYYY-MM-DD"}
			}
			*b.dst = d
		}
		f.Range = &rng
	}

	f.RiderID = fleet.UserID(q.Get("rider_id"))
	f.Search = q.Get("q")
	f.Type = fleet.EntryType(strings.ToLower(q.Get("type")))

	if raw := q.Get("shift"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return f, &fleet.ValidationError{Field: "shift", Message: "must be 1 or 2"}
		}
		f.Shift = fleet.Shift(n)
	}

	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
}

// =============================================================================
// AUDIT
// =============================================================================

// ListAudit returns audit entries newest first.
// ?table=&actor_id=&record_id=&limit= (default 100).
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := fleet.AuditFilter{
		ActorID:  fleet.UserID(q.Get("actor_id")),
		Table:    q.Get("table"),
		RecordID: q.Get("record_id"),
		Limit:    100,
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(w, "Invalid limit", &fleet.ValidationError{Field: "limit", Message: "must be a non-negative integer"})
			return
		}
		filter.Limit = n
	}

	entries, err := h.Store.QueryAudit(r.Context(), filter)
	if err != nil {
		logDegraded("query audit", err)
		writeJSON(w, http.StatusOK, AuditListResponse{Entries: []AuditEntryDTO{}, Degraded: true})
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditDTO(e)
	}
	writeJSON(w, http.StatusOK, AuditListResponse{Entries: dtos})
}

func (h *Handler) auditEntry(actor *auth.Context, action fleet.AuditAction, table, recordID string, oldValues, newValues map[string]any) fleet.AuditEntry {
	e := fleet.AuditEntry{
		ID:        fleet.NewAuditID(),
		Action:    action,
		Table:     table,
		RecordID:  recordID,
		OldValues: oldValues,
		NewValues: newValues,
		CreatedAt: h.Now().UTC(),
	}
	if actor != nil {
		e.ActorID = actor.User.ID
	}
	return e
}

func userValues(u *fleet.User) map[string]any {
	if u == nil {
		return nil
	}
	v := map[string]any{
		"name":  u.Name,
		"email": u.Email,
		"role":  string(u.Role),
	}
	if u.IsRider() {
		v["matricule"] = u.Matricule()
	}
	return v
}

func mileageValues(e fleet.MileageEntry) map[string]any {
	v := map[string]any{
		"rider_id":    string(e.RiderID),
		"type":        string(e.Type),
		"shift":       float64(e.Shift),
		"kilometrage": float64(e.Kilometrage),
		"timestamp":   float64(e.Timestamp),
	}
	if e.Amount != nil {
		v["amount"] = e.Amount.String()
	}
	return v
}

func equipmentValues(e fleet.EquipmentEntry) map[string]any {
	return map[string]any{
		"rider_id":             string(e.RiderID),
		"motorcycle_matricule": e.MotorcycleMatricule,
		"phone_id":             e.PhoneID,
		"shift":                float64(e.Shift),
		"timestamp":            float64(e.Timestamp),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
		var ve *fleet.ValidationError
		if errors.As(err, &ve) {
			resp.Field = ve.Field
		}
	}
	writeJSON(w, status, resp)
}

// statusFor maps domain and auth errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrRiderOnly):
		return http.StatusForbidden
	case fleet.IsNotFound(err):
		return http.StatusNotFound
	case fleet.IsConflict(err):
		return http.StatusConflict
	case fleet.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with the status it maps to. Internal errors are logged.
func respondError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[API] %s: %v", message, err)
	}
	writeError(w, status, message, err)
}

// decodeJSON reads the request body into dst, writing 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func logDegraded(op string, err error) {
	log.Printf("[API] %s failed, serving empty result: %v", op, err)
}
