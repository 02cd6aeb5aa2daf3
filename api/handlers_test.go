/*
handlers_test.go - HTTP tests for API handlers

Tests for:
- Login, session context, language and logout
- Role checks (rider vs admin)
- Dashboard numbers and filtered entry lists over the busy-day scenario
- Rider self-service entries
- User management with audit trail
- Report export and legacy collections
- Degraded reads when the store fails
*/
package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/fleetlog/auth"
	"github.com/warp/fleetlog/fleet"
	"github.com/warp/fleetlog/report"
	"github.com/warp/fleetlog/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const (
	adminEmail    = "shoppirideradmin@shoppi.cd"
	adminPassword = "Myadminriders"
	riderEmail    = "jc.mulumba@shoppi.cd"
)

// kinshasa is UTC+1 all year.
var kinshasa = time.FixedZone("WAT", 3600)

// testNow is 2024-01-15 11:00 in Kinshasa.
var testNow = time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	handler *Handler
	router  http.Handler
	store   *sqlite.Store
}

func setupTestEnv(t *testing.T, scenario string) *testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	clock := func() time.Time { return testNow }
	authn := auth.New(store, auth.Config{
		Secret:        []byte("test-secret"),
		SessionTTL:    time.Hour,
		AdminEmail:    adminEmail,
		AdminPassword: adminPassword,
		Now:           clock,
	})
	h := NewHandler(store, authn, kinshasa)
	h.Now = clock
	require.NoError(t, h.Seed(context.Background(), scenario))

	return &testEnv{handler: h, router: NewRouter(h, RouterOptions{}), store: store}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[SessionDTO](t, rec).Token
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin_AdminAndMe(t *testing.T) {
	env := setupTestEnv(t, "standard-fleet")

	// GIVEN: the bootstrap admin
	// WHEN: logging in and asking who we are
	token := env.login(t, adminEmail, adminPassword)
	rec := env.do(t, http.MethodGet, "/api/auth/me", token, nil)

	// THEN: the session is an admin, in French by default
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[SessionDTO](t, rec)
	assert.Equal(t, "admin", me.User.Role)
	assert.Equal(t, "fr", me.Language)
	assert.Empty(t, me.Token)
}

func TestLogin_WrongPassword(t *testing.T) {
	env := setupTestEnv(t, "standard-fleet")

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: riderEmail, Password: "nope"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Login failed", decode[ErrorResponse](t, rec).Error)
}

func TestRequireAuth_AndRoles(t *testing.T) {
	env := setupTestEnv(t, "standard-fleet")
	riderToken := env.login(t, riderEmail, DemoPassword)

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/dashboard", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/dashboard", "garbage", nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/dashboard", riderToken, nil).Code)
	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/collections/riders", riderToken, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/me/summary", riderToken, nil).Code)
}

func TestSetLanguage_AndLogout(t *testing.T) {
	env := setupTestEnv(t, "standard-fleet")
	token := env.login(t, riderEmail, DemoPassword)

	rec := env.do(t, http.MethodPut, "/api/auth/language", token, LanguageRequest{Language: "EN"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "en", decode[SessionDTO](t, rec).Language)

	rec = env.do(t, http.MethodPut, "/api/auth/language", token, LanguageRequest{Language: "de"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "language", decode[ErrorResponse](t, rec).Field)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/auth/logout", token, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/auth/me", token, nil).Code)
}

// =============================================================================
// DASHBOARD & ENTRY LISTS
// =============================================================================

func TestDashboard_BusyDay(t *testing.T) {
	env := setupTestEnv(t, "busy-day")
	token := env.login(t, adminEmail, adminPassword)

	rec := env.do(t, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[DashboardResponse](t, rec)

	assert.Equal(t, "2024-01-15", dash.Date)
	assert.Equal(t, 3, dash.TotalRiders)
	assert.Equal(t, 8, dash.TotalEntries)
	assert.Equal(t, 7, dash.TodayEntries, "yesterday's legacy entry is excluded")
	assert.Equal(t, 3, dash.TodayEquipmentChecks)
	assert.Equal(t, 4, dash.ActiveRidersToday, "the deleted rider still counts")
	assert.False(t, dash.Degraded)

	require.Len(t, dash.Riders, 3)
	jean := dash.Riders[0]
	assert.Equal(t, "Jean-Claude Mulumba", jean.Name)
	assert.Equal(t, 3, jean.TotalEntries)
	assert.Equal(t, int64(12450+12510+12580), jean.TotalKilometrage)
	require.NotNil(t, jean.LastEntry)

	rec = env.do(t, http.MethodGet, "/api/dashboard?q=kin-002", token, nil)
	dash = decode[DashboardResponse](t, rec)
	require.Len(t, dash.Riders, 1)
	assert.Equal(t, "Marie Kabila", dash.Riders[0].Name)
	assert.Equal(t, 3, dash.TotalRiders, "totals ignore the search")
}

func TestListMileage_Filters(t *testing.T) {
	env := setupTestEnv(t, "busy-day")
	token := env.login(t, adminEmail, adminPassword)

	list := func(query string) MileageListResponse {
		t.Helper()
		rec := env.do(t, http.MethodGet, "/api/mileage"+query, token, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode[MileageListResponse](t, rec)
	}

	all := list("")
	require.Len(t, all.Entries, 8)
	assert.Greater(t, all.Entries[0].Timestamp, all.Entries[1].Timestamp, "newest first")
	assert.Equal(t, int64(0), all.Entries[7].Timestamp, "unknown timestamp sorts last")

	unknown := list("?rider_id=99")
	require.Len(t, unknown.Entries, 1)
	assert.Equal(t, fleet.UnknownRiderName, unknown.Entries[0].RiderName)

	assert.Len(t, list("?q=rider%20inconnu").Entries, 1)
	assert.Len(t, list("?q=KIN-001").Entries, 3)
	assert.Len(t, list("?date=2024-01-14").Entries, 1)
	assert.Len(t, list("?from=2024-01-14&to=2024-01-15&shift=2").Entries, 4)

	fuel := list("?type=carburant")
	assert.Len(t, fuel.Entries, 2)
	assert.Equal(t, 2, fuel.Summary.Count)
	assert.True(t, decimal.RequireFromString("43500.5").Equal(fuel.Summary.TotalFuelAmount))
}

func TestListMileage_InvalidFilters(t *testing.T) {
	env := setupTestEnv(t, "busy-day")
	token := env.login(t, adminEmail, adminPassword)

	tests := []struct {
		query string
		field string
	}{
		{"?date=15/01/2024", "date"},
		{"?shift=3", "shift"},
		{"?type=vacances", "type"},
		{"?from=2024-01-16&to=2024-01-14", ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, "/api/mileage"+tt.query, token, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.field, decode[ErrorResponse](t, rec).Field)
		})
	}
}

func TestListEquipment_SearchesMotorcycle(t *testing.T) {
	env := setupTestEnv(t, "busy-day")
	token := env.login(t, adminEmail, adminPassword)

	rec := env.do(t, http.MethodGet, "/api/equipment?q=moto-3318", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[EquipmentListResponse](t, rec)

	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "Marie Kabila", resp.Entries[0].RiderName)
	assert.Equal(t, 1, resp.Summary.WithHelmet)
}

func TestDeleteMileage(t *testing.T) {
	env := setupTestEnv(t, "busy-day")
	token := env.login(t, adminEmail, adminPassword)

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/mileage/busy-m1", token, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/mileage/busy-m1", token, nil).Code)

	rec := env.do(t, http.MethodGet, "/api/audit?table=mileage_entries", token, nil)
	audit := decode[AuditListResponse](t, rec)
	require.Len(t, audit.Entries, 1)
	assert.Equal(t, "delete", audit.Entries[0].Action)
	assert.Equal(t, "busy-m1", audit.Entries[0].RecordID)
}

// =============================================================================
// RIDER SELF-SERVICE
// =============================================================================

func TestRider_CreatesOwnEntries(t *testing.T) {
	env := setupTestEnv(t, "busy-day")
	token := env.login(t, riderEmail, DemoPassword)

	// GIVEN: Jean-Claude with three entries today
	// WHEN: logging a fuel stop without a timestamp
	rec := env.do(t, http.MethodPost, "/api/me/mileage", token, map[string]any{
		"type": "carburant", "shift": 1, "kilometrage": 12600, "amount": "1000", "photo": "data:image/jpeg;base64,x",
	})

	// THEN: it is stamped now, in Kinshasa's calendar, and joined with the rider
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[MileageEntryDTO](t, rec)
	assert.Equal(t, "1", created.RiderID)
	assert.Equal(t, "Jean-Claude Mulumba", created.RiderName)
	assert.Equal(t, testNow.UnixMilli(), created.Timestamp)
	assert.Equal(t, "2024-01-15", created.Date)

	mine := decode[MileageListResponse](t, env.do(t, http.MethodGet, "/api/me/mileage", token, nil))
	assert.Len(t, mine.Entries, 4)
	assert.Equal(t, 4, mine.Summary.Count)
	assert.Len(t, decode[MileageListResponse](t, env.do(t, http.MethodGet, "/api/me/mileage?limit=2", token, nil)).Entries, 2)

	summary := decode[RiderSummaryResponse](t, env.do(t, http.MethodGet, "/api/me/summary", token, nil))
	assert.Equal(t, 4, summary.TodayEntries)
	assert.Equal(t, 1, summary.Equipment.Count)
}

func TestRider_InvalidEntryIsRejected(t *testing.T) {
	env := setupTestEnv(t, "standard-fleet")
	token := env.login(t, riderEmail, DemoPassword)

	rec := env.do(t, http.MethodPost, "/api/me/mileage", token, CreateMileageRequest{Type: "ouverture", Shift: 1, Kilometrage: 10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "photo", decode[ErrorResponse](t, rec).Field)

	rec = env.do(t, http.MethodPost, "/api/me/equipment", token, CreateEquipmentRequest{
		MotorcycleMatricule: "MOTO-1", PhoneID: "PH-1", MatriculationPhoto: "a", MileagePhoto: "b", Shift: 1,
		ExchangeMoneyUSD: ptr(decimal.NewFromInt(5)),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "exchange_money_usd", decode[ErrorResponse](t, rec).Field)

	rec = env.do(t, http.MethodPost, "/api/me/mileage", token, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	mine := decode[MileageListResponse](t, env.do(t, http.MethodGet, "/api/me/mileage", token, nil))
	assert.Empty(t, mine.Entries, "nothing was written")
}

func TestAdmin_CannotLogEntries(t *testing.T) {
	env := setupTestEnv(t, "standard-fleet")
	token := env.login(t, adminEmail, adminPassword)

	// GIVEN: an admin, who has no rider profile to join entries against
	// WHEN: posting to the rider entry forms
	rec := env.do(t, http.MethodPost, "/api/me/mileage", token, CreateMileageRequest{
		Type: "ouverture", Shift: 1, Kilometrage: 10, Photo: "data:image/jpeg;base64,x",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/me/equipment", token, CreateEquipmentRequest{
		MotorcycleMatricule: "MOTO-1", PhoneID: "PH-1", MatriculationPhoto: "a", MileagePhoto: "b", Shift: 1,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// THEN: nothing reaches the reports
	mileage := decode[MileageListResponse](t, env.do(t, http.MethodGet, "/api/mileage", token, nil))
	assert.Empty(t, mileage.Entries)
	equipment := decode[EquipmentListResponse](t, env.do(t, http.MethodGet, "/api/equipment", token, nil))
	assert.Empty(t, equipment.Entries)
}

func ptr[T any](v T) *T { return &v }

// =============================================================================
// USER MANAGEMENT
// =============================================================================

func TestRiderManagement_WithAudit(t *testing.T) {
	env := setupTestEnv(t, "standard-fleet")
	token := env.login(t, adminEmail, adminPassword)

	// Password mismatch writes nothing
	rec := env.do(t, http.MethodPost, "/api/riders", token, RiderRequest{
		Name: "Paul Tshisekedi", Email: "paul@shoppi.cd", Matricule: "KIN-004", Password: "secret1", ConfirmPassword: "secret2",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, decode[UserListResponse](t, env.do(t, http.MethodGet, "/api/riders", token, nil)).Users, 3)

	rec = env.do(t, http.MethodPost, "/api/riders", token, RiderRequest{
		Name: "Paul Tshisekedi", Email: "Paul@Shoppi.cd", Matricule: "KIN-004", Password: "secret1", ConfirmPassword: "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	paul := decode[UserDTO](t, rec)
	assert.Equal(t, "paul@shoppi.cd", paul.Email)
	assert.Equal(t, "KIN-004", paul.Matricule)

	// The new rider can log in
	env.login(t, "paul@shoppi.cd", "secret1")

	rec = env.do(t, http.MethodPost, "/api/riders", token, RiderRequest{
		Name: "Copy", Email: riderEmail, Matricule: "KIN-009", Password: "secret1", ConfirmPassword: "secret1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/riders/"+paul.ID, token, RiderRequest{
		Name: "Paul T.", Email: "paul@shoppi.cd", Matricule: "KIN-004",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Paul T.", decode[UserDTO](t, rec).Name)
	env.login(t, "paul@shoppi.cd", "secret1")

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/riders/admin", token, nil).Code, "admins are not riders")
	require.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/riders/"+paul.ID, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/riders/"+paul.ID, token, nil).Code)

	audit := decode[AuditListResponse](t, env.do(t, http.MethodGet, "/api/audit?table=users&record_id="+paul.ID, token, nil))
	require.Len(t, audit.Entries, 3)
	assert.Equal(t, []string{"delete", "update", "create"}, []string{
		audit.Entries[0].Action, audit.Entries[1].Action, audit.Entries[2].Action,
	})
	assert.Equal(t, "admin", audit.Entries[0].ActorID)
	assert.Equal(t, "Paul T.", audit.Entries[0].OldValues["name"])
}

func TestAdminManagement(t *testing.T) {
	env := setupTestEnv(t, "empty")
	token := env.login(t, adminEmail, adminPassword)

	rec := env.do(t, http.MethodPost, "/api/admins", token, AdminRequest{
		Name: "Sarah", Email: "sarah@shoppi.cd", Password: "abc", ConfirmPassword: "abc",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "too short")

	rec = env.do(t, http.MethodPost, "/api/admins", token, AdminRequest{
		Name: "Sarah", Email: "sarah@shoppi.cd", Password: "secret1", ConfirmPassword: "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	sarah := decode[UserDTO](t, rec)
	assert.Empty(t, sarah.Matricule)

	admins := decode[UserListResponse](t, env.do(t, http.MethodGet, "/api/admins", token, nil))
	assert.Len(t, admins.Users, 2)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodDelete, "/api/admins/admin", token, nil).Code, "cannot delete yourself")
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, "/api/admins/"+sarah.ID, token, nil).Code)
}

// =============================================================================
// REPORTS & COLLECTIONS
// =============================================================================

func TestExportReport_CSV(t *testing.T) {
	env := setupTestEnv(t, "busy-day")
	token := env.login(t, adminEmail, adminPassword)

	rec := env.do(t, http.MethodGet, "/api/reports/mileage/export?format=csv", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, report.FormatCSV.ContentType(), rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "mileage_report_2024-01-15.csv")

	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 9)
	assert.Equal(t, "Heure", records[0][1])

	rec = env.do(t, http.MethodGet, "/api/reports/riders_report/export?lang=en&q=marie", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	records, err = csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Marie Kabila", "marie.kabila@shoppi.cd", "KIN-002", "2"}, records[1][:4])
}

func TestExportReport_XLSXAndErrors(t *testing.T) {
	env := setupTestEnv(t, "busy-day")
	token := env.login(t, adminEmail, adminPassword)

	rec := env.do(t, http.MethodGet, "/api/reports/equipments/export?format=xlsx", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, report.FormatXLSX.ContentType(), rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "equipments_report_2024-01-15.xlsx")
	assert.NotZero(t, rec.Body.Len())

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/reports/payroll/export", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/reports/mileage/export?format=pdf", token, nil).Code)
}

func TestCollections(t *testing.T) {
	env := setupTestEnv(t, "busy-day")
	adminToken := env.login(t, adminEmail, adminPassword)
	riderToken := env.login(t, riderEmail, DemoPassword)

	rec := env.do(t, http.MethodGet, "/api/collections/currentUser", riderToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "KIN-001", me["matricule"])
	assert.NotContains(t, me, "password")

	// One known id, one new record
	body := `[
		{"id":"busy-m1","riderId":"1","type":"ouverture","shift":1,"kilometrage":12450,"photo":"p","timestamp":1,"date":"2024-01-15"},
		{"id":"legacy-1","riderId":"2","type":"fermeture","shift":2,"kilometrage":8400,"photo":"p","timestamp":"","date":"2024-01-13"}
	]`
	rec = env.do(t, http.MethodPut, "/api/collections/mileageEntries", adminToken, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[ImportResponse](t, rec)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.Skipped)

	all := decode[MileageListResponse](t, env.do(t, http.MethodGet, "/api/mileage", adminToken, nil))
	assert.Len(t, all.Entries, 9)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/api/collections/currentUser", adminToken, "{}").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/api/collections/photos", adminToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPut, "/api/collections/riders", adminToken, "{broken").Code)
}

// =============================================================================
// DEGRADED READS
// =============================================================================

// brokenReads fails every list call and passes everything else through.
type brokenReads struct {
	fleet.Store
}

var errDiskGone = errors.New("disk gone")

func (brokenReads) ListUsers(context.Context, fleet.Role) ([]fleet.User, error) {
	return nil, errDiskGone
}

func (brokenReads) ListMileage(context.Context, fleet.UserID) ([]fleet.MileageEntry, error) {
	return nil, errDiskGone
}

func (brokenReads) ListEquipment(context.Context, fleet.UserID) ([]fleet.EquipmentEntry, error) {
	return nil, errDiskGone
}

func TestDegradedReads(t *testing.T) {
	env := setupTestEnv(t, "busy-day")
	token := env.login(t, adminEmail, adminPassword)
	env.handler.Store = brokenReads{Store: env.store}

	rec := env.do(t, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[DashboardResponse](t, rec)
	assert.True(t, dash.Degraded)
	assert.Empty(t, dash.Riders)
	assert.Zero(t, dash.TotalEntries)

	rec = env.do(t, http.MethodGet, "/api/mileage", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[MileageListResponse](t, rec)
	assert.True(t, list.Degraded)
	assert.Empty(t, list.Entries)

	rec = env.do(t, http.MethodGet, "/api/reports/mileage/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("X-Fleetlog-Degraded"))
	records, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 1, "header only")
}
