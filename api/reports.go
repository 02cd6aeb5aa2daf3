package api

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warp/fleetlog/fleet"
	"github.com/warp/fleetlog/report"
)

// ExportReport streams a report as a CSV or XLSX attachment.
//
//	GET /api/reports/{kind}/export?format=csv|xlsx&lang=fr|en&<filters>
//
// Filters are the same as GET /api/mileage. For the riders report, q and
// rider_id select riders and the date filters select which entries count.
func (h *Handler) ExportReport(w http.ResponseWriter, r *http.Request) {
	kind, err := report.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, "Unknown report", err)
		return
	}
	format, err := report.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondError(w, "Unknown format", err)
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		respondError(w, "Invalid filter", err)
		return
	}

	opts := report.Options{Language: caller(r).Language(), Location: h.Location}
	if lang := fleet.Language(r.URL.Query().Get("lang")); lang.Valid() {
		opts.Language = lang
	}

	table, degraded := h.BuildReport(r.Context(), kind, f, opts)
	if degraded {
		log.Printf("[Reports] %s export is degraded, store read failed", kind)
		w.Header().Set("X-Fleetlog-Degraded", "true")
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, table, format); err != nil {
		respondError(w, "Failed to render report", err)
		return
	}

	name := report.FileName(kind, format, h.Now(), h.Location)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("[Reports] Failed to send %s: %v", name, err)
		return
	}
	log.Printf("[Reports] Exported %s (%d rows)", name, len(table.Rows))
}

// BuildReport assembles the table for kind. degraded is true when the store
// could not be read; the table is then header-only.
func (h *Handler) BuildReport(ctx context.Context, kind report.Kind, f fleet.Filter, opts report.Options) (report.Table, bool) {
	switch kind {
	case report.KindEquipment:
		entries, degraded := h.loadEquipment(ctx, f)
		return report.EquipmentTable(entries, opts), degraded

	case report.KindRiders:
		riders, err := h.Store.ListUsers(ctx, fleet.RoleRider)
		if err != nil {
			logDegraded("list riders", err)
			return report.RidersTable(nil, opts), true
		}
		riders = fleet.SearchRiders(riders, f.Search)

		entryFilter := f
		entryFilter.Search = ""
		entries, degraded := h.loadMileage(ctx, entryFilter)
		mileage := fleet.Entries(entries)

		rows := make([]report.RiderRow, 0, len(riders))
		for _, u := range riders {
			if f.RiderID != "" && u.ID != f.RiderID {
				continue
			}
			rows = append(rows, report.RiderRow{User: u, Stats: fleet.StatsFor(mileage, u.ID)})
		}
		return report.RidersTable(rows, opts), degraded

	default:
		entries, degraded := h.loadMileage(ctx, f)
		return report.MileageTable(entries, opts), degraded
	}
}
